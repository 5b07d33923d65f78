// Package synth builds the narrative report from collected audit inputs with a
// single language-model call.
package synth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/site-audit/internal/audit"
	"github.com/JakeFAU/site-audit/internal/llm"
	"github.com/JakeFAU/site-audit/internal/logging"
)

const defaultMaxTokens = 4096

// ErrInvalidNarrative is returned when the reply decodes but violates the
// narrative contract.
var ErrInvalidNarrative = errors.New("synth: invalid narrative")

// Config controls the narrative synthesizer.
type Config struct {
	Brand     string
	Language  string
	MaxTokens int64
}

// Synthesizer implements audit.Synthesizer.
type Synthesizer struct {
	cfg    Config
	llm    llm.Completer
	logger *zap.Logger
}

// New creates a Synthesizer.
func New(cfg Config, completer llm.Completer, logger *zap.Logger) *Synthesizer {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Language == "" {
		cfg.Language = "English"
	}
	return &Synthesizer{cfg: cfg, llm: completer, logger: logging.OrNop(logger)}
}

// Synthesize produces the report narrative. Screenshots never reach the prompt.
func (s *Synthesizer) Synthesize(
	ctx context.Context,
	scraped audit.ScrapedData,
	perf audit.PerformanceResult,
	presence audit.PresenceResult,
) (audit.Narrative, error) {
	prompt, err := BuildPrompt(s.cfg, scraped, perf, presence)
	if err != nil {
		return audit.Narrative{}, err
	}
	reply, err := s.llm.Complete(ctx, prompt, s.cfg.MaxTokens)
	if err != nil {
		return audit.Narrative{}, fmt.Errorf("synthesize narrative: %w", err)
	}
	narrative, err := Parse(reply)
	if err != nil {
		return audit.Narrative{}, err
	}
	s.logger.Debug("narrative synthesized",
		zap.String("website", scraped.URL),
		zap.Int("action_items", len(narrative.ActionPlan)),
	)
	return narrative, nil
}

// Parse decodes a narrative reply and normalizes its impact levels.
func Parse(reply string) (audit.Narrative, error) {
	var n audit.Narrative
	if err := llm.Decode(reply, &n); err != nil {
		return audit.Narrative{}, fmt.Errorf("parse narrative reply: %w", err)
	}
	if strings.TrimSpace(n.ExecutiveSummary) == "" {
		return audit.Narrative{}, fmt.Errorf("%w: missing executiveSummary", ErrInvalidNarrative)
	}
	for i := range n.ActionPlan {
		item := &n.ActionPlan[i]
		item.Impact = audit.Impact(strings.ToLower(strings.TrimSpace(string(item.Impact))))
		if !item.Impact.Valid() {
			return audit.Narrative{}, fmt.Errorf("%w: action %d has impact %q", ErrInvalidNarrative, i+1, item.Impact)
		}
	}
	return n, nil
}

// BuildPrompt renders the synthesis instruction.
func BuildPrompt(
	cfg Config,
	scraped audit.ScrapedData,
	perf audit.PerformanceResult,
	presence audit.PresenceResult,
) (string, error) {
	og, err := json.Marshal(scraped.OGTags)
	if err != nil {
		return "", fmt.Errorf("encode og tags: %w", err)
	}
	headings, err := json.Marshal(scraped.Headings)
	if err != nil {
		return "", fmt.Errorf("encode headings: %w", err)
	}
	opportunities, err := json.Marshal(perf.Opportunities)
	if err != nil {
		return "", fmt.Errorf("encode opportunities: %w", err)
	}

	var b strings.Builder
	b.WriteString("You are a senior digital marketing consultant")
	if cfg.Brand != "" {
		fmt.Fprintf(&b, " at %s", cfg.Brand)
	}
	fmt.Fprintf(&b, ". Analyze the following website data and produce a structured audit report in %s.\n\n", cfg.Language)

	b.WriteString("## Website Data\n")
	fmt.Fprintf(&b, "- URL: %s\n", scraped.URL)
	fmt.Fprintf(&b, "- Title: %s\n", scraped.Title)
	fmt.Fprintf(&b, "- Meta Description: %s\n", scraped.MetaDescription)
	fmt.Fprintf(&b, "- Meta Keywords: %s\n", scraped.MetaKeywords)
	fmt.Fprintf(&b, "- Open Graph Tags: %s\n", og)
	fmt.Fprintf(&b, "- Headings: %s\n", headings)
	fmt.Fprintf(&b, "- Internal Links: %d\n", scraped.InternalLinkCount)
	fmt.Fprintf(&b, "- External Links: %d\n", scraped.ExternalLinkCount)
	fmt.Fprintf(&b, "- Images: %d total, %d with alt text\n", scraped.ImageCount, scraped.ImagesWithAlt)
	fmt.Fprintf(&b, "- SSL: %s\n", yesNo(scraped.HasSSL))
	fmt.Fprintf(&b, "- Language: %s, Direction: %s\n", scraped.Language, scraped.Direction)
	fmt.Fprintf(&b, "- Viewport Meta: %s\n", yesNo(scraped.HasViewportMeta))
	fmt.Fprintf(&b, "- Schema.org: %s\n", yesNo(scraped.HasSchemaOrg))
	fmt.Fprintf(&b, "- Load Time: %dms\n\n", scraped.LoadTimeMs)

	b.WriteString("## PageSpeed Insights\n")
	fmt.Fprintf(&b, "- Performance: %d/100\n", perf.PerformanceScore)
	fmt.Fprintf(&b, "- Accessibility: %d/100\n", perf.AccessibilityScore)
	fmt.Fprintf(&b, "- SEO: %d/100\n", perf.SEOScore)
	fmt.Fprintf(&b, "- Best Practices: %d/100\n", perf.BestPracticesScore)
	fmt.Fprintf(&b, "- LCP: %gms (%s)\n", perf.LCP.Value, perf.LCP.Rating)
	fmt.Fprintf(&b, "- INP: %gms (%s)\n", perf.INP.Value, perf.INP.Rating)
	fmt.Fprintf(&b, "- CLS: %g (%s)\n", perf.CLS.Value, perf.CLS.Rating)
	fmt.Fprintf(&b, "- Top Opportunities: %s\n\n", opportunities)

	b.WriteString("## AI Presence\n")
	fmt.Fprintf(&b, "%s\n%s\n\n", presence.Summary, presence.Details)

	b.WriteString("## Instructions\n")
	fmt.Fprintf(&b, "Write ALL content in %s. ", cfg.Language)
	b.WriteString("Be helpful and authoritative. Point out issues without being alarmist and always offer solutions.\n\n")
	b.WriteString("Respond with a JSON object (no markdown fencing) with this exact structure:\n")
	b.WriteString(`{
  "executiveSummary": "3-4 sentence overview",
  "screenshotObservations": {"desktop": "string", "mobile": "string"},
  "seoAnalysis": "string",
  "aiPresenceAnalysis": "string",
  "competitorPositioning": "string",
  "actionPlan": [
    {"priority": 1, "title": "string", "description": "string", "impact": "high" | "medium" | "low"}
  ],
  "nextSteps": "string"
}`)
	b.WriteString("\n\nInclude 5-8 action plan items ordered by impact. Return ONLY the JSON object.")
	return b.String(), nil
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
