// Package document renders the audit report to HTML and prints it to PDF with
// headless Chrome.
package document

import (
	"bytes"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/site-audit/internal/audit"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var reportTemplate = template.Must(
	template.New("report.html.tmpl").Funcs(template.FuncMap{
		"pageHeader":  pageHeader,
		"pageFooter":  pageFooter,
		"ratingLabel": ratingLabel,
		"impactLabel": impactLabel,
		"formatVital": formatVital,
		"inc":         func(i int) int { return i + 1 },
	}).ParseFS(templateFS, "templates/*.tmpl"),
)

const gaugeRadius = 54.0

// Branding controls the fixed chrome of the report.
type Branding struct {
	Brand     string
	LangCode  string
	Direction string
	Contact   string
}

type gauge struct {
	Score         int
	Label         string
	Color         string
	Radius        float64
	Circumference string
	Offset        string
}

type vitalRow struct {
	Name  string
	Vital audit.Vital
}

type check struct {
	Label string
	Pass  bool
}

type reportView struct {
	Branding
	Request        audit.Request
	Domain         string
	Date           string
	Performance    audit.PerformanceResult
	Narrative      audit.Narrative
	DesktopShot    template.URL
	MobileShot     template.URL
	Gauges         []gauge
	Vitals         []vitalRow
	SEOChecks      []check
	PresenceChecks []check
}

type chrome struct {
	Brand   string
	Contact string
	Title   string
	Number  int
}

// RenderHTML produces the report markup for artifact, dated at now.
func RenderHTML(artifact audit.Artifact, branding Branding, now time.Time) ([]byte, error) {
	view := newReportView(artifact, branding, now)
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("render report html: %w", err)
	}
	return buf.Bytes(), nil
}

func newReportView(a audit.Artifact, b Branding, now time.Time) reportView {
	if b.LangCode == "" {
		b.LangCode = "en"
	}
	if b.Direction == "" {
		b.Direction = "ltr"
	}
	perf := a.Performance
	s := a.Scraped
	return reportView{
		Branding:    b,
		Request:     a.Request,
		Domain:      Domain(a.Request.Website),
		Date:        now.Format("January 2, 2006"),
		Performance: perf,
		Narrative:   a.Narrative,
		DesktopShot: pngDataURI(s.ScreenshotDesktop),
		MobileShot:  pngDataURI(s.ScreenshotMobile),
		Gauges: []gauge{
			newGauge(perf.PerformanceScore, "Performance"),
			newGauge(perf.AccessibilityScore, "Accessibility"),
			newGauge(perf.SEOScore, "SEO"),
			newGauge(perf.BestPracticesScore, "Best Practices"),
		},
		Vitals: []vitalRow{
			{Name: "LCP", Vital: perf.LCP},
			{Name: "INP", Vital: perf.INP},
			{Name: "CLS", Vital: perf.CLS},
		},
		SEOChecks: []check{
			{Label: "SSL (HTTPS)", Pass: s.HasSSL},
			{Label: "Viewport Meta", Pass: s.HasViewportMeta},
			{Label: "Schema.org", Pass: s.HasSchemaOrg},
			{Label: "Meta Description", Pass: s.MetaDescription != ""},
			{Label: "Meta Keywords", Pass: s.MetaKeywords != ""},
			{Label: "OG Tags", Pass: len(s.OGTags) > 0},
			{Label: fmt.Sprintf("Images with alt text (%d/%d)", s.ImagesWithAlt, s.ImageCount), Pass: s.ImagesWithAlt == s.ImageCount},
			{Label: fmt.Sprintf("Internal links (%d)", s.InternalLinkCount), Pass: s.InternalLinkCount >= 5},
		},
		PresenceChecks: []check{
			{Label: "ChatGPT", Pass: isTrue(a.Presence.FoundInChatGPT)},
			{Label: "Gemini", Pass: isTrue(a.Presence.FoundInGemini)},
			{Label: "Perplexity", Pass: isTrue(a.Presence.FoundInPerplexity)},
		},
	}
}

// Domain strips the scheme and trailing slashes from a website URL.
func Domain(website string) string {
	d := strings.TrimPrefix(strings.TrimPrefix(website, "https://"), "http://")
	return strings.TrimRight(d, "/")
}

func pageHeader(v reportView, title string) chrome {
	return chrome{Brand: v.Brand, Contact: v.Contact, Title: title}
}

func pageFooter(v reportView, number int) chrome {
	return chrome{Brand: v.Brand, Contact: v.Contact, Number: number}
}

// ScoreColor maps a 0-100 score to the Lighthouse traffic-light palette.
func ScoreColor(score int) string {
	switch {
	case score >= 90:
		return "#0cce6b"
	case score >= 50:
		return "#ffa400"
	default:
		return "#ff4e42"
	}
}

func newGauge(score int, label string) gauge {
	circumference := 2 * math.Pi * gaugeRadius
	offset := circumference - float64(score)/100*circumference
	return gauge{
		Score:         score,
		Label:         label,
		Color:         ScoreColor(score),
		Radius:        gaugeRadius,
		Circumference: strconv.FormatFloat(circumference, 'f', 2, 64),
		Offset:        strconv.FormatFloat(offset, 'f', 2, 64),
	}
}

func ratingLabel(r audit.Rating) string {
	switch r {
	case audit.RatingGood:
		return "Good"
	case audit.RatingNeedsImprovement:
		return "Needs improvement"
	default:
		return "Poor"
	}
}

func impactLabel(i audit.Impact) string {
	switch i {
	case audit.ImpactHigh:
		return "High"
	case audit.ImpactLow:
		return "Low"
	default:
		return "Medium"
	}
}

func formatVital(v audit.Vital) string {
	if v.Unit == "ms" {
		return strconv.FormatFloat(math.Round(v.Value), 'f', 0, 64) + v.Unit
	}
	return strconv.FormatFloat(v.Value, 'f', 2, 64) + v.Unit
}

func pngDataURI(data []byte) template.URL {
	if len(data) == 0 {
		return ""
	}
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(data)) //nolint:gosec // own screenshot bytes
}

func isTrue(b *bool) bool {
	return b != nil && *b
}
