// Package llm wraps the large-language-model service used for the presence
// check and narrative synthesis, and recovers structured JSON from its replies.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-audit/internal/logging"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "claude-sonnet-4-20250514"

// ErrEmptyReply is returned when the model answers without any text content.
var ErrEmptyReply = errors.New("llm: reply has no text content")

// Completer sends one prompt and returns the model's concatenated text reply.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int64) (string, error)
}

// Config controls the Anthropic client.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// Anthropic implements Completer with the Anthropic Messages API.
type Anthropic struct {
	client anthropic.Client
	model  anthropic.Model
	logger *zap.Logger
}

// NewAnthropic builds a client once; it is safe for concurrent use.
// Retries are disabled: a failed call is a stage failure.
func NewAnthropic(cfg Config, logger *zap.Logger) *Anthropic {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Anthropic{
		client: anthropic.NewClient(opts...),
		model:  anthropic.Model(model),
		logger: logging.OrNop(logger).Named("llm"),
	}
}

// Complete implements Completer.
func (a *Anthropic) Complete(ctx context.Context, prompt string, maxTokens int64) (string, error) {
	start := time.Now()
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	a.logger.Debug("completion received",
		zap.String("model", string(a.model)),
		zap.String("stop_reason", string(msg.StopReason)),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)),
	)
	if b.Len() == 0 {
		return "", ErrEmptyReply
	}
	return b.String(), nil
}
