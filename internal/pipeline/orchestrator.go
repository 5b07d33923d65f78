// Package pipeline runs one audit end-to-end: collection, the performance and
// presence fan-out, synthesis, rendering and delivery, while advancing the
// persisted status record at every transition.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/site-audit/internal/audit"
	"github.com/JakeFAU/site-audit/internal/logging"
	"github.com/JakeFAU/site-audit/internal/metrics"
)

// HighlightCount is how many action items the requester email lists.
const HighlightCount = 3

// ErrShuttingDown rejects submissions once Shutdown has begun.
var ErrShuttingDown = errors.New("audit service is shutting down")

// Deps are the collaborators of one run. Blobs and Publisher are optional.
type Deps struct {
	Store       audit.StatusStore
	Collector   audit.SiteCollector
	Performance audit.PerformanceClient
	Presence    audit.PresenceChecker
	Synthesizer audit.Synthesizer
	Renderer    audit.DocumentRenderer
	Notifier    audit.Notifier
	Blobs       audit.BlobStore
	Publisher   audit.Publisher
	IDs         audit.IDGenerator
	Clock       audit.Clock
}

// Config bounds the orchestrator's own bookkeeping calls.
type Config struct {
	IntakeTimeout time.Duration
	StoreTimeout  time.Duration
	ArchivePrefix string
}

const (
	defaultIntakeTimeout = 5 * time.Second
	defaultStoreTimeout  = 10 * time.Second
)

// Orchestrator owns background audit runs.
type Orchestrator struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// New validates deps and constructs an Orchestrator.
func New(deps Deps, cfg Config, logger *zap.Logger) (*Orchestrator, error) {
	switch {
	case deps.Store == nil:
		return nil, fmt.Errorf("status store is required")
	case deps.Collector == nil:
		return nil, fmt.Errorf("site collector is required")
	case deps.Performance == nil:
		return nil, fmt.Errorf("performance client is required")
	case deps.Presence == nil:
		return nil, fmt.Errorf("presence checker is required")
	case deps.Synthesizer == nil:
		return nil, fmt.Errorf("synthesizer is required")
	case deps.Renderer == nil:
		return nil, fmt.Errorf("document renderer is required")
	case deps.Notifier == nil:
		return nil, fmt.Errorf("notifier is required")
	case deps.IDs == nil:
		return nil, fmt.Errorf("id generator is required")
	case deps.Clock == nil:
		return nil, fmt.Errorf("clock is required")
	}
	if cfg.IntakeTimeout <= 0 {
		cfg.IntakeTimeout = defaultIntakeTimeout
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = defaultStoreTimeout
	}
	metrics.Init()
	return &Orchestrator{
		deps:   deps,
		cfg:    cfg,
		logger: logging.OrNop(logger).Named("pipeline"),
	}, nil
}

// Submit records the request as received and starts its run in the background.
// It returns as soon as the run has been started. The returned id is empty when
// the record could not be created; the run still proceeds without status writes.
func (o *Orchestrator) Submit(ctx context.Context, req audit.Request) (string, error) {
	o.mu.Lock()
	if o.closing {
		o.mu.Unlock()
		metrics.ObserveSubmission(metrics.OutcomeRejected)
		return "", ErrShuttingDown
	}
	o.wg.Add(1)
	o.mu.Unlock()

	id := o.intake(ctx, req)
	metrics.ObserveSubmission(metrics.OutcomeAccepted)

	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer o.wg.Done()
		_ = o.Run(runCtx, id, req)
	}()
	return id, nil
}

// Audit creates the record and runs the audit in the foreground.
func (o *Orchestrator) Audit(ctx context.Context, req audit.Request) (string, error) {
	id := o.intake(ctx, req)
	metrics.ObserveSubmission(metrics.OutcomeAccepted)
	return id, o.Run(ctx, id, req)
}

// Shutdown stops accepting submissions and waits for in-flight runs until ctx ends.
// Runs still going when ctx ends are abandoned.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closing = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for in-flight audits: %w", ctx.Err())
	}
}

// Run executes one audit to a terminal state. The returned error is the fatal
// stage failure, if any; it has already been recorded, alerted and published.
func (o *Orchestrator) Run(ctx context.Context, id string, req audit.Request) (err error) {
	metrics.IncInFlight()
	defer metrics.DecInFlight()

	r := &run{
		o:      o,
		id:     id,
		req:    req,
		status: audit.StatusReceived,
		stage:  audit.StageCollect,
		logger: o.logger.With(zap.String("audit_id", id), zap.String("website", req.Website)),
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = &audit.StageError{Stage: r.stage, Err: fmt.Errorf("panic: %v", rec)}
			r.fail(ctx, err)
		}
	}()

	if err = r.execute(ctx); err != nil {
		r.fail(ctx, err)
		return err
	}
	return nil
}

func (o *Orchestrator) intake(ctx context.Context, req audit.Request) string {
	logger := o.logger.With(zap.String("website", req.Website))
	id, err := o.deps.IDs.NewID()
	if err != nil {
		logger.Error("failed to generate audit id", zap.Error(err))
		metrics.ObserveSecondaryFailure("intake")
		return ""
	}

	intakeCtx, cancel := context.WithTimeout(ctx, o.cfg.IntakeTimeout)
	defer cancel()
	if err := o.deps.Store.Create(intakeCtx, id, req); err != nil {
		logger.Error("failed to create audit record",
			zap.String("audit_id", id),
			zap.Error(err),
		)
		metrics.ObserveSecondaryFailure("intake")
		return ""
	}
	logger.Info("audit received",
		zap.String("audit_id", id),
		zap.String("status", string(audit.StatusReceived)),
	)
	return id
}
