package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/site-audit/internal/audit"
	"github.com/JakeFAU/site-audit/internal/metrics"
	"github.com/JakeFAU/site-audit/internal/storage"
)

const reportContentType = "application/pdf"

// run is the state of one audit execution.
type run struct {
	o      *Orchestrator
	id     string
	req    audit.Request
	status audit.Status
	stage  audit.Stage
	logger *zap.Logger
}

func (r *run) execute(ctx context.Context) error {
	deps := r.o.deps

	r.advance(ctx, audit.StatusScraping)
	r.stage = audit.StageCollect
	var scraped audit.ScrapedData
	err := r.timed(audit.StageCollect, func() error {
		var cerr error
		scraped, cerr = deps.Collector.Collect(ctx, r.req.Website)
		return cerr
	})
	if err != nil {
		return &audit.StageError{Stage: audit.StageCollect, Err: err}
	}

	r.advance(ctx, audit.StatusAnalyzing)
	r.stage = audit.StagePresence
	perf, presence, err := r.fanOut(ctx, scraped)
	if err != nil {
		return err
	}

	r.stage = audit.StageSynthesize
	var narrative audit.Narrative
	err = r.timed(audit.StageSynthesize, func() error {
		var serr error
		narrative, serr = deps.Synthesizer.Synthesize(ctx, scraped, perf, presence)
		return serr
	})
	if err != nil {
		return &audit.StageError{Stage: audit.StageSynthesize, Err: err}
	}

	r.saveResults(ctx, audit.Results{
		Scraped:     scraped,
		Performance: perf,
		Presence:    presence,
		Narrative:   narrative,
	})

	r.stage = audit.StageRender
	var document []byte
	err = r.timed(audit.StageRender, func() error {
		var rerr error
		document, rerr = deps.Renderer.Render(ctx, audit.Artifact{
			Request:     r.req,
			Scraped:     scraped,
			Performance: perf,
			Presence:    presence,
			Narrative:   narrative,
		})
		return rerr
	})
	if err != nil {
		return &audit.StageError{Stage: audit.StageRender, Err: err}
	}

	r.archive(ctx, document)

	r.advance(ctx, audit.StatusSendingEmail)
	r.stage = audit.StageNotify
	var receipt audit.EmailReceipt
	err = r.timed(audit.StageNotify, func() error {
		var nerr error
		receipt, nerr = deps.Notifier.SendReport(ctx, r.req, document, narrative.Highlights(HighlightCount))
		return nerr
	})
	if err != nil {
		return &audit.StageError{Stage: audit.StageNotify, Err: err}
	}

	r.complete(ctx, receipt)
	return nil
}

// fanOut resolves performance and presence concurrently. A performance failure
// is replaced by the degraded default; a presence failure fails the fan-out.
func (r *run) fanOut(ctx context.Context, scraped audit.ScrapedData) (audit.PerformanceResult, audit.PresenceResult, error) {
	deps := r.o.deps
	var (
		perf     audit.PerformanceResult
		presence audit.PresenceResult
	)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := r.timed(audit.StagePerformance, func() error {
			return recovered(func() error {
				var perr error
				perf, perr = deps.Performance.Analyze(gctx, r.req.Website)
				return perr
			})
		})
		if err != nil {
			if gctx.Err() != nil {
				// The presence leg already failed the fan-out; nothing continues on degraded data.
				r.logger.Debug("performance measurement abandoned", zap.Error(err))
				return nil
			}
			r.logger.Warn("performance measurement failed, using degraded scores", zap.Error(err))
			metrics.ObservePerformanceFallback()
			perf = audit.DegradedPerformance()
		}
		return nil
	})

	g.Go(func() error {
		err := r.timed(audit.StagePresence, func() error {
			return recovered(func() error {
				var perr error
				presence, perr = deps.Presence.Check(gctx, businessName(scraped, r.req), r.req.Website)
				return perr
			})
		})
		if err != nil {
			return &audit.StageError{Stage: audit.StagePresence, Err: err}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return audit.PerformanceResult{}, audit.PresenceResult{}, err
	}
	return perf, presence, nil
}

// advance moves the in-memory status forward and records it best-effort.
func (r *run) advance(ctx context.Context, next audit.Status) {
	if !r.status.CanAdvanceTo(next) {
		r.logger.Error("refusing non-monotonic status transition",
			zap.String("from", string(r.status)),
			zap.String("to", string(next)),
		)
		return
	}
	r.status = next
	r.logger.Info("audit stage", zap.String("status", string(next)))
	r.write(ctx, "update status", func(sctx context.Context) error {
		return r.o.deps.Store.UpdateStatus(sctx, r.id, next, "")
	})
}

func (r *run) saveResults(ctx context.Context, results audit.Results) {
	if !r.status.CanAdvanceTo(audit.StatusGeneratingPDF) {
		return
	}
	r.status = audit.StatusGeneratingPDF
	r.logger.Info("audit stage", zap.String("status", string(r.status)))
	r.write(ctx, "save results", func(sctx context.Context) error {
		return r.o.deps.Store.SaveResults(sctx, r.id, results)
	})
}

func (r *run) archive(ctx context.Context, document []byte) {
	blobs := r.o.deps.Blobs
	if blobs == nil || r.id == "" {
		return
	}
	path := storage.ReportPath(r.o.cfg.ArchivePrefix, r.id, r.req.Hostname())
	uri, err := blobs.PutObject(ctx, path, reportContentType, bytes.NewReader(document))
	if err != nil {
		r.logger.Warn("failed to archive report", zap.String("path", path), zap.Error(err))
		metrics.ObserveSecondaryFailure("archive")
		return
	}
	r.logger.Debug("report archived", zap.String("uri", uri))
	r.write(ctx, "save report location", func(sctx context.Context) error {
		return r.o.deps.Store.SaveReportLocation(sctx, r.id, uri)
	})
}

func (r *run) complete(ctx context.Context, receipt audit.EmailReceipt) {
	r.status = audit.StatusCompleted
	r.write(ctx, "complete", func(sctx context.Context) error {
		return r.o.deps.Store.Complete(sctx, r.id, receipt)
	})
	r.logger.Info("audit completed", zap.String("status", string(r.status)))
	metrics.ObserveRun(string(audit.StatusCompleted))
	r.publish(ctx, "")
}

// fail records the failure, alerts the team and publishes the event. Nothing
// here propagates: every secondary failure is logged and counted.
func (r *run) fail(ctx context.Context, cause error) {
	ctx = context.WithoutCancel(ctx)
	errText := cause.Error()
	stage := audit.StageOf(cause)
	if stage == "" {
		stage = r.stage
	}

	if r.status.Terminal() {
		r.logger.Error("failure after terminal status", zap.String("status", string(r.status)), zap.Error(cause))
		return
	}
	r.status = audit.StatusFailed
	r.logger.Error("audit failed",
		zap.String("status", string(r.status)),
		zap.String("stage", string(stage)),
		zap.Error(cause),
	)
	metrics.ObserveStageFailure(string(stage))
	metrics.ObserveRun(string(audit.StatusFailed))

	r.write(ctx, "update status", func(sctx context.Context) error {
		return r.o.deps.Store.UpdateStatus(sctx, r.id, audit.StatusFailed, errText)
	})

	alertErr := recovered(func() error {
		return r.o.deps.Notifier.SendFailureAlert(ctx, r.req, errText)
	})
	if alertErr != nil {
		r.logger.Error("failed to send failure alert", zap.Error(alertErr))
		metrics.ObserveSecondaryFailure("alert")
	}

	r.publish(ctx, errText)
}

func (r *run) publish(ctx context.Context, errText string) {
	pub := r.o.deps.Publisher
	if pub == nil {
		return
	}
	evt := audit.Event{
		AuditID:   r.id,
		Status:    r.status,
		Website:   r.req.Website,
		Error:     errText,
		Timestamp: r.o.deps.Clock.Now(),
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.o.cfg.StoreTimeout)
	defer cancel()
	err := recovered(func() error {
		_, perr := pub.Publish(pctx, evt)
		return perr
	})
	if err != nil {
		r.logger.Warn("failed to publish audit event", zap.Error(err))
		metrics.ObserveSecondaryFailure("publish")
	}
}

// write runs one best-effort store call bounded by the store timeout.
// Writes are skipped when the record was never created.
func (r *run) write(ctx context.Context, op string, fn func(context.Context) error) {
	if r.id == "" {
		return
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.o.cfg.StoreTimeout)
	defer cancel()
	if err := recovered(func() error { return fn(sctx) }); err != nil {
		r.logger.Warn("status store write failed",
			zap.String("op", op),
			zap.String("status", string(r.status)),
			zap.Error(err),
		)
		metrics.ObserveSecondaryFailure("status_store")
	}
}

func (r *run) timed(stage audit.Stage, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.ObserveStage(string(stage), time.Since(start))
	return err
}

// recovered converts a panic in fn into an error.
func recovered(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn()
}

// businessName is the page title, or the request hostname when the page has none.
func businessName(scraped audit.ScrapedData, req audit.Request) string {
	if title := strings.TrimSpace(scraped.Title); title != "" {
		return title
	}
	return req.Hostname()
}
