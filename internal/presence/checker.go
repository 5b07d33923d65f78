// Package presence asks the language model whether a business is surfaced by
// AI assistants.
package presence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/site-audit/internal/audit"
	"github.com/JakeFAU/site-audit/internal/llm"
	"github.com/JakeFAU/site-audit/internal/logging"
)

const defaultMaxTokens = 1024

// ErrEmptyResult is returned when the reply decodes but carries no findings.
var ErrEmptyResult = errors.New("presence: reply has neither summary nor details")

// Config controls the presence checker.
type Config struct {
	Language  string
	MaxTokens int64
}

// Checker implements audit.PresenceChecker.
type Checker struct {
	cfg    Config
	llm    llm.Completer
	logger *zap.Logger
}

// New creates a Checker.
func New(cfg Config, completer llm.Completer, logger *zap.Logger) *Checker {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Language == "" {
		cfg.Language = "English"
	}
	return &Checker{cfg: cfg, llm: completer, logger: logging.OrNop(logger)}
}

// Check returns the presence findings for businessName at website.
func (c *Checker) Check(ctx context.Context, businessName, website string) (audit.PresenceResult, error) {
	reply, err := c.llm.Complete(ctx, BuildPrompt(businessName, website, c.cfg.Language), c.cfg.MaxTokens)
	if err != nil {
		return audit.PresenceResult{}, fmt.Errorf("presence check: %w", err)
	}
	result, err := Parse(reply)
	if err != nil {
		return audit.PresenceResult{}, err
	}
	c.logger.Debug("presence checked",
		zap.String("business", businessName),
		zap.Any("chatgpt", result.FoundInChatGPT),
		zap.Any("gemini", result.FoundInGemini),
		zap.Any("perplexity", result.FoundInPerplexity),
	)
	return result, nil
}

// Parse decodes and validates a presence reply.
func Parse(reply string) (audit.PresenceResult, error) {
	var result audit.PresenceResult
	if err := llm.Decode(reply, &result); err != nil {
		return audit.PresenceResult{}, fmt.Errorf("parse presence reply: %w", err)
	}
	result.Summary = strings.TrimSpace(result.Summary)
	result.Details = strings.TrimSpace(result.Details)
	if result.Summary == "" && result.Details == "" {
		return audit.PresenceResult{}, ErrEmptyResult
	}
	return result, nil
}

// BuildPrompt renders the presence instruction.
func BuildPrompt(businessName, website, language string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Check if the business %q (website: %s) appears in AI search results. ", businessName, website)
	b.WriteString("Search for the business name and related industry terms. ")
	b.WriteString("Report whether this business is mentioned by AI assistants like ChatGPT, Gemini, or Perplexity ")
	b.WriteString("when users ask about their industry or services.\n\n")
	fmt.Fprintf(&b, "Write the text fields in %s.\n\n", language)
	b.WriteString("Respond with a JSON object (no markdown fencing):\n")
	b.WriteString(`{
  "summary": "Brief summary",
  "foundInChatGPT": true | false | null,
  "foundInGemini": true | false | null,
  "foundInPerplexity": true | false | null,
  "details": "Detailed findings"
}`)
	b.WriteString("\n\nUse null when you cannot tell. Return ONLY the JSON object.")
	return b.String()
}
