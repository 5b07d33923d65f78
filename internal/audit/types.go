// Package audit defines core types shared across the audit pipeline subsystems.
package audit

import (
	"encoding/json"
	"net/url"
	"strings"
	"time"
)

// Request is a validated audit submission. It is never mutated after validation.
type Request struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Website string `json:"website"`
	Source  string `json:"source"`
}

// Hostname returns the lowercase host of the request website, or "" when it cannot be parsed.
func (r Request) Hostname() string {
	u, err := url.Parse(r.Website)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Heading is one h1-h6 element in document order.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// ScrapedData holds the structural facts captured from one rendered page.
type ScrapedData struct {
	URL               string            `json:"url"`
	Title             string            `json:"title"`
	MetaDescription   string            `json:"metaDescription"`
	MetaKeywords      string            `json:"metaKeywords"`
	OGTags            map[string]string `json:"ogTags"`
	Headings          []Heading         `json:"headings"`
	InternalLinkCount int               `json:"internalLinkCount"`
	ExternalLinkCount int               `json:"externalLinkCount"`
	ImageCount        int               `json:"imageCount"`
	ImagesWithAlt     int               `json:"imagesWithAlt"`
	HasSSL            bool              `json:"hasSSL"`
	Language          string            `json:"language"`
	Direction         string            `json:"direction"`
	HasViewportMeta   bool              `json:"hasViewportMeta"`
	HasSchemaOrg      bool              `json:"hasSchemaOrg"`
	LoadTimeMs        int64             `json:"loadTimeMs"`

	ScreenshotDesktop []byte `json:"-"`
	ScreenshotMobile  []byte `json:"-"`
}

// Rating is the qualitative Core Web Vitals bucket.
type Rating string

// Core Web Vitals ratings.
const (
	RatingGood             Rating = "good"
	RatingNeedsImprovement Rating = "needs-improvement"
	RatingPoor             Rating = "poor"
)

// Vital is a single Core Web Vitals measurement.
type Vital struct {
	Value  float64 `json:"value"`
	Unit   string  `json:"unit"`
	Rating Rating  `json:"rating"`
}

// Opportunity is one improvement suggestion from the performance service.
type Opportunity struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// PerformanceResult is the normalized output of the performance measurement service.
type PerformanceResult struct {
	PerformanceScore   int           `json:"performanceScore"`
	AccessibilityScore int           `json:"accessibilityScore"`
	SEOScore           int           `json:"seoScore"`
	BestPracticesScore int           `json:"bestPracticesScore"`
	LCP                Vital         `json:"lcp"`
	INP                Vital         `json:"inp"`
	CLS                Vital         `json:"cls"`
	Opportunities      []Opportunity `json:"opportunities"`
}

// DegradedPerformance is substituted when the performance service fails.
func DegradedPerformance() PerformanceResult {
	return PerformanceResult{
		LCP:           Vital{Unit: "ms", Rating: RatingNeedsImprovement},
		INP:           Vital{Unit: "ms", Rating: RatingNeedsImprovement},
		CLS:           Vital{Unit: "", Rating: RatingNeedsImprovement},
		Opportunities: []Opportunity{},
	}
}

// PresenceResult reports whether AI assistants surface the business.
// A nil pointer means the assistant could not be checked.
type PresenceResult struct {
	Summary           string `json:"summary"`
	FoundInChatGPT    *bool  `json:"foundInChatGPT"`
	FoundInGemini     *bool  `json:"foundInGemini"`
	FoundInPerplexity *bool  `json:"foundInPerplexity"`
	Details           string `json:"details"`
}

// Impact classifies the expected effect of an action item.
type Impact string

// Supported impact levels.
const (
	ImpactHigh   Impact = "high"
	ImpactMedium Impact = "medium"
	ImpactLow    Impact = "low"
)

// Valid reports whether the impact is one of the supported levels.
func (i Impact) Valid() bool {
	switch i {
	case ImpactHigh, ImpactMedium, ImpactLow:
		return true
	default:
		return false
	}
}

// ActionItem is one entry in the prioritized action plan.
type ActionItem struct {
	Priority    int    `json:"priority"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Impact      Impact `json:"impact"`
}

// ScreenshotObservations holds the model's notes on both captured viewports.
type ScreenshotObservations struct {
	Desktop string `json:"desktop"`
	Mobile  string `json:"mobile"`
}

// Narrative is the synthesized report text and action plan.
type Narrative struct {
	ExecutiveSummary       string                 `json:"executiveSummary"`
	ScreenshotObservations ScreenshotObservations `json:"screenshotObservations"`
	SEOAnalysis            string                 `json:"seoAnalysis"`
	AIPresenceAnalysis     string                 `json:"aiPresenceAnalysis"`
	CompetitorPositioning  string                 `json:"competitorPositioning"`
	ActionPlan             []ActionItem           `json:"actionPlan"`
	NextSteps              string                 `json:"nextSteps"`
}

// Highlights returns the first limit action items in plan order.
func (n Narrative) Highlights(limit int) []ActionItem {
	if limit <= 0 || len(n.ActionPlan) == 0 {
		return nil
	}
	if limit > len(n.ActionPlan) {
		limit = len(n.ActionPlan)
	}
	out := make([]ActionItem, limit)
	copy(out, n.ActionPlan[:limit])
	return out
}

// Artifact bundles everything the document renderer needs.
type Artifact struct {
	Request     Request
	Scraped     ScrapedData
	Performance PerformanceResult
	Presence    PresenceResult
	Narrative   Narrative
}

// Results are the analysis outputs flattened into the status record.
type Results struct {
	Scraped     ScrapedData
	Performance PerformanceResult
	Presence    PresenceResult
	Narrative   Narrative
}

// EmailReceipt records when each outbound report email was accepted.
type EmailReceipt struct {
	UserSentAt time.Time
	TeamSentAt time.Time
}

// Record is the persisted projection of one audit run.
type Record struct {
	ID                 string          `json:"id"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	Name               string          `json:"name"`
	Email              string          `json:"email"`
	Phone              string          `json:"phone"`
	Website            string          `json:"website"`
	Source             string          `json:"source"`
	Status             Status          `json:"status"`
	ErrorMessage       *string         `json:"error_message,omitempty"`
	PerformanceScore   *int            `json:"performance_score,omitempty"`
	AccessibilityScore *int            `json:"accessibility_score,omitempty"`
	SEOScore           *int            `json:"seo_score,omitempty"`
	BestPracticesScore *int            `json:"best_practices_score,omitempty"`
	LoadTimeMs         *int64          `json:"load_time_ms,omitempty"`
	AIChatGPT          *bool           `json:"ai_chatgpt,omitempty"`
	AIGemini           *bool           `json:"ai_gemini,omitempty"`
	AIPerplexity       *bool           `json:"ai_perplexity,omitempty"`
	PerformanceDetails json.RawMessage `json:"pagespeed_details,omitempty"`
	ActionPlan         json.RawMessage `json:"action_plan,omitempty"`
	ScrapedMeta        json.RawMessage `json:"scraped_meta,omitempty"`
	ReportURI          *string         `json:"report_uri,omitempty"`
	UserEmailSentAt    *time.Time      `json:"user_email_sent_at,omitempty"`
	TeamEmailSentAt    *time.Time      `json:"team_email_sent_at,omitempty"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
}

// Event is the lifecycle notification published on terminal states.
type Event struct {
	AuditID   string    `json:"audit_id"`
	Status    Status    `json:"status"`
	Website   string    `json:"website"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
