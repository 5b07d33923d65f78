// Package storage holds what the status-store and blob-store backends share:
// the flattened record projection of audit results and the report object path.
package storage

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/JakeFAU/site-audit/internal/audit"
)

// Projection is the flattened, persisted form of audit.Results.
type Projection struct {
	PerformanceScore   int
	AccessibilityScore int
	SEOScore           int
	BestPracticesScore int
	LoadTimeMs         int64
	AIChatGPT          *bool
	AIGemini           *bool
	AIPerplexity       *bool
	PerformanceDetails json.RawMessage
	ActionPlan         json.RawMessage
	ScrapedMeta        json.RawMessage
}

type performanceDetails struct {
	LCP           audit.Vital         `json:"lcp"`
	INP           audit.Vital         `json:"inp"`
	CLS           audit.Vital         `json:"cls"`
	Opportunities []audit.Opportunity `json:"opportunities"`
}

type scrapedMeta struct {
	Title             string `json:"title"`
	MetaDescription   string `json:"metaDescription"`
	Language          string `json:"language"`
	HasSSL            bool   `json:"hasSSL"`
	HasViewportMeta   bool   `json:"hasViewportMeta"`
	HasSchemaOrg      bool   `json:"hasSchemaOrg"`
	LoadTimeMs        int64  `json:"loadTimeMs"`
	ImageCount        int    `json:"imageCount"`
	InternalLinkCount int    `json:"internalLinkCount"`
	ExternalLinkCount int    `json:"externalLinkCount"`
}

// Project flattens results into the columns and JSON blobs of the audit record.
func Project(r audit.Results) (Projection, error) {
	perf := r.Performance
	opportunities := perf.Opportunities
	if opportunities == nil {
		opportunities = []audit.Opportunity{}
	}
	details, err := json.Marshal(performanceDetails{
		LCP:           perf.LCP,
		INP:           perf.INP,
		CLS:           perf.CLS,
		Opportunities: opportunities,
	})
	if err != nil {
		return Projection{}, fmt.Errorf("marshal performance details: %w", err)
	}

	plan := r.Narrative.ActionPlan
	if plan == nil {
		plan = []audit.ActionItem{}
	}
	actionPlan, err := json.Marshal(plan)
	if err != nil {
		return Projection{}, fmt.Errorf("marshal action plan: %w", err)
	}

	s := r.Scraped
	meta, err := json.Marshal(scrapedMeta{
		Title:             s.Title,
		MetaDescription:   s.MetaDescription,
		Language:          s.Language,
		HasSSL:            s.HasSSL,
		HasViewportMeta:   s.HasViewportMeta,
		HasSchemaOrg:      s.HasSchemaOrg,
		LoadTimeMs:        s.LoadTimeMs,
		ImageCount:        s.ImageCount,
		InternalLinkCount: s.InternalLinkCount,
		ExternalLinkCount: s.ExternalLinkCount,
	})
	if err != nil {
		return Projection{}, fmt.Errorf("marshal scraped meta: %w", err)
	}

	return Projection{
		PerformanceScore:   perf.PerformanceScore,
		AccessibilityScore: perf.AccessibilityScore,
		SEOScore:           perf.SEOScore,
		BestPracticesScore: perf.BestPracticesScore,
		LoadTimeMs:         s.LoadTimeMs,
		AIChatGPT:          r.Presence.FoundInChatGPT,
		AIGemini:           r.Presence.FoundInGemini,
		AIPerplexity:       r.Presence.FoundInPerplexity,
		PerformanceDetails: details,
		ActionPlan:         actionPlan,
		ScrapedMeta:        meta,
	}, nil
}

// Apply copies the projection onto rec.
func (p Projection) Apply(rec *audit.Record) {
	rec.PerformanceScore = intPtr(p.PerformanceScore)
	rec.AccessibilityScore = intPtr(p.AccessibilityScore)
	rec.SEOScore = intPtr(p.SEOScore)
	rec.BestPracticesScore = intPtr(p.BestPracticesScore)
	loadTime := p.LoadTimeMs
	rec.LoadTimeMs = &loadTime
	rec.AIChatGPT = p.AIChatGPT
	rec.AIGemini = p.AIGemini
	rec.AIPerplexity = p.AIPerplexity
	rec.PerformanceDetails = p.PerformanceDetails
	rec.ActionPlan = p.ActionPlan
	rec.ScrapedMeta = p.ScrapedMeta
}

// ReportPath is the object key of an archived report:
// <prefix>/<audit id>/audit-report-<host>.pdf.
func ReportPath(prefix, auditID, host string) string {
	if host == "" {
		host = "site"
	}
	return path.Join(strings.Trim(prefix, "/"), auditID, "audit-report-"+host+".pdf")
}

func intPtr(v int) *int { return &v }
