package audit

import (
	"context"
	"io"
	"time"
)

// StatusStore persists the audit record and advances its lifecycle.
type StatusStore interface {
	Create(ctx context.Context, id string, req Request) error
	UpdateStatus(ctx context.Context, id string, status Status, errMsg string) error
	SaveResults(ctx context.Context, id string, results Results) error
	SaveReportLocation(ctx context.Context, id string, uri string) error
	Complete(ctx context.Context, id string, receipt EmailReceipt) error
	Get(ctx context.Context, id string) (Record, error)
}

// SiteCollector renders one URL in a browser and captures its structure and screenshots.
type SiteCollector interface {
	Collect(ctx context.Context, website string) (ScrapedData, error)
}

// PerformanceClient measures a URL with an external performance service.
type PerformanceClient interface {
	Analyze(ctx context.Context, website string) (PerformanceResult, error)
}

// PresenceChecker asks an LLM whether the business shows up in AI assistants.
type PresenceChecker interface {
	Check(ctx context.Context, businessName string, website string) (PresenceResult, error)
}

// Synthesizer turns the collected signals into a report narrative.
type Synthesizer interface {
	Synthesize(ctx context.Context, scraped ScrapedData, perf PerformanceResult, presence PresenceResult) (Narrative, error)
}

// DocumentRenderer turns the assembled artifact into a paginated binary document.
type DocumentRenderer interface {
	Render(ctx context.Context, artifact Artifact) ([]byte, error)
}

// Notifier delivers the finished report and failure alerts.
type Notifier interface {
	SendReport(ctx context.Context, req Request, document []byte, highlights []ActionItem) (EmailReceipt, error)
	SendFailureAlert(ctx context.Context, req Request, errText string) error
}

// BlobStore writes report artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes lifecycle events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, evt Event) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces audit IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
