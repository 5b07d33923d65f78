package pagespeed

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/JakeFAU/site-audit/internal/audit"
)

// MaxOpportunities caps the improvement suggestions kept per analysis.
const MaxOpportunities = 5

// opportunityAudits are checked in this order.
var opportunityAudits = []string{
	"render-blocking-resources",
	"unused-css-rules",
	"unused-javascript",
	"modern-image-formats",
	"offscreen-images",
	"unminified-css",
	"unminified-javascript",
	"efficient-animated-content",
	"uses-responsive-images",
}

type response struct {
	LighthouseResult *lighthouseResult `json:"lighthouseResult"`
}

type lighthouseResult struct {
	Categories map[string]category `json:"categories"`
	Audits     map[string]lhAudit  `json:"audits"`
}

type category struct {
	Score *float64 `json:"score"`
}

type lhAudit struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Score        *float64 `json:"score"`
	NumericValue *float64 `json:"numericValue"`
}

// Decode parses a raw PageSpeed payload into a PerformanceResult.
// Missing categories and metrics read as zero.
func Decode(body []byte) (audit.PerformanceResult, error) {
	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		return audit.PerformanceResult{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if r.LighthouseResult == nil {
		return audit.PerformanceResult{}, fmt.Errorf("%w: missing lighthouseResult", ErrMalformedResponse)
	}
	lh := r.LighthouseResult

	lcp := lh.numeric("largest-contentful-paint")
	inp := lh.numeric("interaction-to-next-paint")
	cls := lh.numeric("cumulative-layout-shift")

	return audit.PerformanceResult{
		PerformanceScore:   lh.score("performance"),
		AccessibilityScore: lh.score("accessibility"),
		SEOScore:           lh.score("seo"),
		BestPracticesScore: lh.score("best-practices"),
		LCP:                audit.Vital{Value: lcp, Unit: "ms", Rating: RateLCP(lcp)},
		INP:                audit.Vital{Value: inp, Unit: "ms", Rating: RateINP(inp)},
		CLS:                audit.Vital{Value: cls, Unit: "", Rating: RateCLS(cls)},
		Opportunities:      lh.opportunities(),
	}, nil
}

func (lh *lighthouseResult) score(name string) int {
	cat, ok := lh.Categories[name]
	if !ok || cat.Score == nil {
		return 0
	}
	return int(math.Round(*cat.Score * 100))
}

func (lh *lighthouseResult) numeric(id string) float64 {
	a, ok := lh.Audits[id]
	if !ok || a.NumericValue == nil {
		return 0
	}
	return *a.NumericValue
}

func (lh *lighthouseResult) opportunities() []audit.Opportunity {
	out := make([]audit.Opportunity, 0, MaxOpportunities)
	for _, id := range opportunityAudits {
		if len(out) == MaxOpportunities {
			break
		}
		a, ok := lh.Audits[id]
		if !ok || a.Score == nil || *a.Score >= 1 {
			continue
		}
		title := a.Title
		if title == "" {
			title = id
		}
		out = append(out, audit.Opportunity{Title: title, Description: a.Description})
	}
	return out
}

// RateLCP buckets Largest Contentful Paint in milliseconds.
func RateLCP(ms float64) audit.Rating { return rate(ms, 2500, 4000) }

// RateINP buckets Interaction to Next Paint in milliseconds.
func RateINP(ms float64) audit.Rating { return rate(ms, 200, 500) }

// RateCLS buckets Cumulative Layout Shift.
func RateCLS(v float64) audit.Rating { return rate(v, 0.1, 0.25) }

func rate(v, good, needsImprovement float64) audit.Rating {
	switch {
	case v <= good:
		return audit.RatingGood
	case v <= needsImprovement:
		return audit.RatingNeedsImprovement
	default:
		return audit.RatingPoor
	}
}
