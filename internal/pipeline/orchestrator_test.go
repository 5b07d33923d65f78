package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/site-audit/internal/audit"
	"github.com/JakeFAU/site-audit/internal/llm"
	pubmemory "github.com/JakeFAU/site-audit/internal/publisher/memory"
	"github.com/JakeFAU/site-audit/internal/storage/memory"
)

type fakeCollector struct {
	data audit.ScrapedData
	err  error
	pan  bool
}

func (f *fakeCollector) Collect(_ context.Context, website string) (audit.ScrapedData, error) {
	if f.pan {
		panic("browser crashed")
	}
	if f.err != nil {
		return audit.ScrapedData{}, f.err
	}
	d := f.data
	d.URL = website
	return d, nil
}

// wait, when set, runs before a fake answers; a non-nil error is returned as the leg's error.
type waitFunc func(ctx context.Context) error

type fakePerformance struct {
	result audit.PerformanceResult
	err    error
	pan    bool
	wait   waitFunc
}

func (f *fakePerformance) Analyze(ctx context.Context, _ string) (audit.PerformanceResult, error) {
	if f.wait != nil {
		if err := f.wait(ctx); err != nil {
			return audit.PerformanceResult{}, err
		}
	}
	if f.pan {
		panic("lighthouse exploded")
	}
	return f.result, f.err
}

type fakePresence struct {
	mu     sync.Mutex
	result audit.PresenceResult
	err    error
	pan    bool
	wait   waitFunc
	names  []string
}

func (f *fakePresence) Check(ctx context.Context, name, _ string) (audit.PresenceResult, error) {
	f.mu.Lock()
	f.names = append(f.names, name)
	f.mu.Unlock()
	if f.wait != nil {
		if err := f.wait(ctx); err != nil {
			return audit.PresenceResult{}, err
		}
	}
	if f.pan {
		panic("presence exploded")
	}
	return f.result, f.err
}

type fakeSynth struct {
	narrative audit.Narrative
	err       error
	calls     int
	gotPerf   audit.PerformanceResult
}

func (f *fakeSynth) Synthesize(_ context.Context, _ audit.ScrapedData, perf audit.PerformanceResult, _ audit.PresenceResult) (audit.Narrative, error) {
	f.calls++
	f.gotPerf = perf
	return f.narrative, f.err
}

type fakeRenderer struct {
	doc []byte
	err error
}

func (f *fakeRenderer) Render(context.Context, audit.Artifact) ([]byte, error) {
	return f.doc, f.err
}

type fakeNotifier struct {
	mu         sync.Mutex
	reportErr  error
	alertErr   error
	reports    int
	highlights []audit.ActionItem
	alerts     []string
	sentAt     time.Time
}

func (f *fakeNotifier) SendReport(_ context.Context, _ audit.Request, _ []byte, highlights []audit.ActionItem) (audit.EmailReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports++
	f.highlights = highlights
	if f.reportErr != nil {
		return audit.EmailReceipt{}, f.reportErr
	}
	return audit.EmailReceipt{UserSentAt: f.sentAt, TeamSentAt: f.sentAt}, nil
}

func (f *fakeNotifier) SendFailureAlert(_ context.Context, _ audit.Request, errText string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, errText)
	return f.alertErr
}

type fixedIDs struct {
	id  string
	err error
}

func (f fixedIDs) NewID() (string, error) { return f.id, f.err }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// failingStore wraps the memory store and fails selected operations.
type failingStore struct {
	*memory.StatusStore
	failCreate bool
	failWrites bool
}

func (s *failingStore) Create(ctx context.Context, id string, req audit.Request) error {
	if s.failCreate {
		return errors.New("db down")
	}
	return s.StatusStore.Create(ctx, id, req)
}

func (s *failingStore) UpdateStatus(ctx context.Context, id string, status audit.Status, msg string) error {
	if s.failWrites {
		return errors.New("db down")
	}
	return s.StatusStore.UpdateStatus(ctx, id, status, msg)
}

type harness struct {
	store     *memory.StatusStore
	blobs     *memory.BlobStore
	events    *pubmemory.Publisher
	collector *fakeCollector
	perf      *fakePerformance
	presence  *fakePresence
	synth     *fakeSynth
	renderer  *fakeRenderer
	notifier  *fakeNotifier
	deps      Deps
}

func newHarness() *harness {
	yes := true
	h := &harness{
		store:  memory.NewStatusStore(),
		blobs:  memory.NewBlobStore(),
		events: pubmemory.New(),
		collector: &fakeCollector{data: audit.ScrapedData{
			Title:      "Dani's Bakery",
			LoadTimeMs: 2100,
			HasSSL:     true,
		}},
		perf: &fakePerformance{result: audit.PerformanceResult{
			PerformanceScore:   72,
			AccessibilityScore: 90,
			SEOScore:           85,
			BestPracticesScore: 100,
			LCP:                audit.Vital{Value: 2300, Unit: "ms", Rating: audit.RatingGood},
		}},
		presence: &fakePresence{result: audit.PresenceResult{Summary: "Rarely cited", FoundInChatGPT: &yes}},
		synth: &fakeSynth{narrative: audit.Narrative{
			ExecutiveSummary: "Solid site.",
			ActionPlan: []audit.ActionItem{
				{Priority: 1, Title: "One", Impact: audit.ImpactHigh},
				{Priority: 2, Title: "Two", Impact: audit.ImpactHigh},
				{Priority: 3, Title: "Three", Impact: audit.ImpactMedium},
				{Priority: 4, Title: "Four", Impact: audit.ImpactLow},
			},
		}},
		renderer: &fakeRenderer{doc: []byte("%PDF-1.7")},
		notifier: &fakeNotifier{sentAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)},
	}
	h.deps = Deps{
		Store:       h.store,
		Collector:   h.collector,
		Performance: h.perf,
		Presence:    h.presence,
		Synthesizer: h.synth,
		Renderer:    h.renderer,
		Notifier:    h.notifier,
		Blobs:       h.blobs,
		Publisher:   h.events,
		IDs:         fixedIDs{id: "audit-1"},
		Clock:       fixedClock{t: time.Date(2025, 6, 1, 9, 0, 1, 0, time.UTC)},
	}
	return h
}

func (h *harness) orchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	o, err := New(h.deps, Config{ArchivePrefix: "reports"}, nil)
	require.NoError(t, err)
	return o
}

func validRequest(t *testing.T) audit.Request {
	t.Helper()
	req, err := audit.NewRequest(audit.RawRequest{Name: "Dani", Email: "d@x.com", Website: "example.com"})
	require.NoError(t, err)
	return req
}

func TestAuditHappyPath(t *testing.T) {
	t.Parallel()

	h := newHarness()
	o := h.orchestrator(t)
	req := validRequest(t)
	require.Equal(t, "https://example.com", req.Website)

	id, err := o.Audit(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "audit-1", id)

	require.Equal(t, []audit.Status{
		audit.StatusReceived,
		audit.StatusScraping,
		audit.StatusAnalyzing,
		audit.StatusGeneratingPDF,
		audit.StatusSendingEmail,
		audit.StatusCompleted,
	}, h.store.History(id))

	rec, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, audit.StatusCompleted, rec.Status)
	require.Equal(t, 72, *rec.PerformanceScore)
	require.True(t, *rec.AIChatGPT)
	require.Equal(t, h.notifier.sentAt, *rec.UserEmailSentAt)
	require.Equal(t, "memory://reports/audit-1/audit-report-example.com.pdf", *rec.ReportURI)
	require.NotNil(t, rec.CompletedAt)

	doc, contentType, ok := h.blobs.Object("reports/audit-1/audit-report-example.com.pdf")
	require.True(t, ok)
	require.Equal(t, "%PDF-1.7", string(doc))
	require.Equal(t, "application/pdf", contentType)

	require.Equal(t, []string{"Dani's Bakery"}, h.presence.names)
	require.Len(t, h.notifier.highlights, HighlightCount)
	require.Equal(t, "One", h.notifier.highlights[0].Title)
	require.Empty(t, h.notifier.alerts)

	events := h.events.Events()
	require.Len(t, events, 1)
	require.Equal(t, audit.StatusCompleted, events[0].Status)
	require.Empty(t, events[0].Error)
}

func TestPerformanceFailureDegrades(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.perf.err = errors.New("pagespeed: 500")
	o := h.orchestrator(t)

	id, err := o.Audit(context.Background(), validRequest(t))
	require.NoError(t, err)

	rec, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, audit.StatusCompleted, rec.Status)
	require.Zero(t, *rec.PerformanceScore)
	require.Zero(t, *rec.AccessibilityScore)
	require.Zero(t, *rec.SEOScore)
	require.Zero(t, *rec.BestPracticesScore)

	var details struct {
		LCP, INP, CLS audit.Vital
		Opportunities []audit.Opportunity
	}
	require.NoError(t, json.Unmarshal(rec.PerformanceDetails, &details))
	require.Equal(t, audit.RatingNeedsImprovement, details.LCP.Rating)
	require.Equal(t, audit.RatingNeedsImprovement, details.INP.Rating)
	require.Equal(t, audit.RatingNeedsImprovement, details.CLS.Rating)
	require.Empty(t, details.Opportunities)
	require.Equal(t, audit.DegradedPerformance(), h.synth.gotPerf)
}

func TestPerformancePanicDegrades(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.perf.pan = true
	o := h.orchestrator(t)

	var (
		id  string
		err error
	)
	require.NotPanics(t, func() {
		id, err = o.Audit(context.Background(), validRequest(t))
	})
	require.NoError(t, err)

	rec, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, audit.StatusCompleted, rec.Status)
	require.Zero(t, *rec.PerformanceScore)
	require.Equal(t, audit.DegradedPerformance(), h.synth.gotPerf)
	require.Empty(t, h.notifier.alerts)
}

// meet returns a waitFunc that announces its own start and then blocks until
// the other leg has started too.
func meet(own chan struct{}, other <-chan struct{}) waitFunc {
	return func(ctx context.Context) error {
		close(own)
		select {
		case <-other:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
			return errors.New("other leg never started")
		}
	}
}

func TestFanOutRunsLegsConcurrently(t *testing.T) {
	t.Parallel()

	h := newHarness()
	perfStarted, presenceStarted := make(chan struct{}), make(chan struct{})
	h.perf.wait = meet(perfStarted, presenceStarted)
	h.presence.wait = meet(presenceStarted, perfStarted)
	o := h.orchestrator(t)

	id, err := o.Audit(context.Background(), validRequest(t))
	require.NoError(t, err)

	rec, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, audit.StatusCompleted, rec.Status)
	require.Equal(t, 72, h.synth.gotPerf.PerformanceScore)
	require.Equal(t, 72, *rec.PerformanceScore)
}

func TestPresenceFailureAbandonsPerformanceWithoutFallback(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.presence.err = errors.New("anthropic: overloaded")
	h.perf.wait = func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	core, logs := observer.New(zapcore.DebugLevel)
	o, err := New(h.deps, Config{}, zap.New(core))
	require.NoError(t, err)

	_, err = o.Audit(context.Background(), validRequest(t))
	require.Equal(t, audit.StagePresence, audit.StageOf(err))

	require.Zero(t, logs.FilterMessage("performance measurement failed, using degraded scores").Len())
	require.Equal(t, 1, logs.FilterMessage("performance measurement abandoned").Len())
	require.Zero(t, h.synth.calls)
}

func TestPresenceFailureFailsRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		alertErr error
	}{
		{name: "alert delivered"},
		{name: "alert also fails", alertErr: errors.New("resend: 503")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness()
			h.presence.err = errors.New("anthropic: overloaded")
			h.notifier.alertErr = tt.alertErr
			o := h.orchestrator(t)

			var (
				id  string
				err error
			)
			require.NotPanics(t, func() {
				id, err = o.Audit(context.Background(), validRequest(t))
			})
			require.Error(t, err)
			require.Equal(t, audit.StagePresence, audit.StageOf(err))

			rec, getErr := h.store.Get(context.Background(), id)
			require.NoError(t, getErr)
			require.Equal(t, audit.StatusFailed, rec.Status)
			require.Contains(t, *rec.ErrorMessage, "anthropic: overloaded")
			require.Equal(t, []audit.Status{
				audit.StatusReceived,
				audit.StatusScraping,
				audit.StatusAnalyzing,
				audit.StatusFailed,
			}, h.store.History(id))

			require.Zero(t, h.synth.calls)
			require.Len(t, h.notifier.alerts, 1)
			require.Contains(t, h.notifier.alerts[0], "anthropic: overloaded")

			events := h.events.Events()
			require.Len(t, events, 1)
			require.Equal(t, audit.StatusFailed, events[0].Status)
		})
	}
}

func TestUnparseableNarrativeFailsRun(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.synth.err = fmt.Errorf("decode narrative: %w: unexpected end of JSON input", llm.ErrNoStructuredPayload)
	o := h.orchestrator(t)

	id, err := o.Audit(context.Background(), validRequest(t))
	require.ErrorIs(t, err, llm.ErrNoStructuredPayload)

	rec, getErr := h.store.Get(context.Background(), id)
	require.NoError(t, getErr)
	require.Equal(t, audit.StatusFailed, rec.Status)
	require.Contains(t, *rec.ErrorMessage, "unexpected end of JSON input")
}

func TestStageFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mutate    func(h *harness)
		stage     audit.Stage
		wantMsg   string
		lastGood  audit.Status
		reportsOK int
	}{
		{
			name:     "collector error",
			mutate:   func(h *harness) { h.collector.err = errors.New("navigation timeout") },
			stage:    audit.StageCollect,
			wantMsg:  "navigation timeout",
			lastGood: audit.StatusScraping,
		},
		{
			name:     "collector panic",
			mutate:   func(h *harness) { h.collector.pan = true },
			stage:    audit.StageCollect,
			wantMsg:  "panic: browser crashed",
			lastGood: audit.StatusScraping,
		},
		{
			name:     "presence panic",
			mutate:   func(h *harness) { h.presence.pan = true },
			stage:    audit.StagePresence,
			wantMsg:  "panic: presence exploded",
			lastGood: audit.StatusAnalyzing,
		},
		{
			name:     "render error",
			mutate:   func(h *harness) { h.renderer.err = errors.New("print timeout") },
			stage:    audit.StageRender,
			wantMsg:  "print timeout",
			lastGood: audit.StatusGeneratingPDF,
		},
		{
			name:      "notify error",
			mutate:    func(h *harness) { h.notifier.reportErr = errors.New("invalid recipient") },
			stage:     audit.StageNotify,
			wantMsg:   "invalid recipient",
			lastGood:  audit.StatusSendingEmail,
			reportsOK: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness()
			tt.mutate(h)
			o := h.orchestrator(t)

			id, err := o.Audit(context.Background(), validRequest(t))
			require.Error(t, err)
			require.Equal(t, tt.stage, audit.StageOf(err))

			rec, getErr := h.store.Get(context.Background(), id)
			require.NoError(t, getErr)
			require.Equal(t, audit.StatusFailed, rec.Status)
			require.Contains(t, *rec.ErrorMessage, tt.wantMsg)

			history := h.store.History(id)
			require.Equal(t, audit.StatusFailed, history[len(history)-1])
			require.Equal(t, tt.lastGood, history[len(history)-2])
			require.Equal(t, tt.reportsOK, h.notifier.reports)
			require.Len(t, h.notifier.alerts, 1)
		})
	}
}

func TestCreateFailureSkipsWrites(t *testing.T) {
	t.Parallel()

	h := newHarness()
	store := &failingStore{StatusStore: h.store, failCreate: true}
	h.deps.Store = store
	o := h.orchestrator(t)

	id, err := o.Audit(context.Background(), validRequest(t))
	require.NoError(t, err)
	require.Empty(t, id)
	require.Zero(t, h.store.Len())
	require.Zero(t, h.blobs.Len())
	require.Equal(t, 1, h.notifier.reports)
}

func TestStatusWriteFailuresDoNotAbort(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.deps.Store = &failingStore{StatusStore: h.store, failWrites: true}
	o := h.orchestrator(t)

	id, err := o.Audit(context.Background(), validRequest(t))
	require.NoError(t, err)
	require.Equal(t, 1, h.notifier.reports)

	rec, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, audit.StatusCompleted, rec.Status)
}

func TestBusinessNameFallsBackToHostname(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.collector.data.Title = "  "
	o := h.orchestrator(t)

	_, err := o.Audit(context.Background(), validRequest(t))
	require.NoError(t, err)
	require.Equal(t, []string{"example.com"}, h.presence.names)
}

func TestSubmitRunsInBackgroundAndShutdownDrains(t *testing.T) {
	t.Parallel()

	h := newHarness()
	o := h.orchestrator(t)

	ctx, cancel := context.WithCancel(context.Background())
	id, err := o.Submit(ctx, validRequest(t))
	require.NoError(t, err)
	require.Equal(t, "audit-1", id)
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	require.NoError(t, o.Shutdown(shutdownCtx))

	rec, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, audit.StatusCompleted, rec.Status)

	_, err = o.Submit(context.Background(), validRequest(t))
	require.ErrorIs(t, err, ErrShuttingDown)
}

func TestShutdownTimesOut(t *testing.T) {
	t.Parallel()

	h := newHarness()
	release := make(chan struct{})
	h.deps.Renderer = blockingRenderer{release: release}
	o := h.orchestrator(t)

	_, err := o.Submit(context.Background(), validRequest(t))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, o.Shutdown(ctx), context.DeadlineExceeded)

	close(release)
	require.NoError(t, o.Shutdown(context.Background()))
}

type blockingRenderer struct{ release chan struct{} }

func (b blockingRenderer) Render(context.Context, audit.Artifact) ([]byte, error) {
	<-b.release
	return []byte("%PDF"), nil
}

func TestNewRequiresCollaborators(t *testing.T) {
	t.Parallel()

	h := newHarness()
	deps := h.deps
	deps.Presence = nil
	_, err := New(deps, Config{}, nil)
	require.ErrorContains(t, err, "presence")

	deps = h.deps
	deps.Blobs = nil
	deps.Publisher = nil
	o, err := New(deps, Config{}, nil)
	require.NoError(t, err)
	require.Equal(t, defaultStoreTimeout, o.cfg.StoreTimeout)
	require.Equal(t, defaultIntakeTimeout, o.cfg.IntakeTimeout)
}
