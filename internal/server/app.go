// Package server builds the audit service's dependencies and runs the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-audit/internal/api"
	"github.com/JakeFAU/site-audit/internal/audit"
	"github.com/JakeFAU/site-audit/internal/browser"
	"github.com/JakeFAU/site-audit/internal/clock/system"
	"github.com/JakeFAU/site-audit/internal/collector/headless"
	"github.com/JakeFAU/site-audit/internal/config"
	"github.com/JakeFAU/site-audit/internal/document"
	"github.com/JakeFAU/site-audit/internal/id/uuid"
	"github.com/JakeFAU/site-audit/internal/llm"
	"github.com/JakeFAU/site-audit/internal/notify"
	"github.com/JakeFAU/site-audit/internal/notify/resend"
	"github.com/JakeFAU/site-audit/internal/pagespeed"
	"github.com/JakeFAU/site-audit/internal/pipeline"
	"github.com/JakeFAU/site-audit/internal/policy/ratelimit"
	"github.com/JakeFAU/site-audit/internal/presence"
	gcppublisher "github.com/JakeFAU/site-audit/internal/publisher/pubsub"
	gcsstorage "github.com/JakeFAU/site-audit/internal/storage/gcs"
	localstorage "github.com/JakeFAU/site-audit/internal/storage/local"
	memorystorage "github.com/JakeFAU/site-audit/internal/storage/memory"
	pgstore "github.com/JakeFAU/site-audit/internal/storage/postgres"
	"github.com/JakeFAU/site-audit/internal/synth"
)

// App contains the application's dependencies.
type App struct {
	cfg          *config.Config
	logger       *zap.Logger
	orchestrator *pipeline.Orchestrator
	statusStore  audit.StatusStore
	pgStore      *pgstore.StatusStore
	migrator     *pgstore.Migrator
	pubsubClient *pubsub.Client
	publisher    *gcppublisher.Publisher
	storage      *storage.Client
}

// Orchestrator exposes the pipeline for one-shot runs.
func (a *App) Orchestrator() *pipeline.Orchestrator {
	return a.orchestrator
}

// Records exposes the status store for lookups.
func (a *App) Records() audit.StatusStore {
	return a.statusStore
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Bool("postgres", cfg.DB.DSN != ""),
		zap.Bool("pubsub", cfg.PubSub.TopicName != ""),
	)

	if err := app.setupDatabase(ctx); err != nil {
		app.Close()
		return nil, err
	}
	blobs, err := app.setupStorage(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}
	publisher, err := app.setupPublisher(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	browserCfg := browser.Config{
		ExecPath:  cfg.Headless.ExecPath,
		UserAgent: cfg.Headless.UserAgent,
		Logger:    logger.Named("browser"),
	}
	completer := llm.NewAnthropic(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
	}, logger.Named("llm"))

	deps := pipeline.Deps{
		Store: app.statusStore,
		Collector: headless.New(headless.Config{
			NavigationTimeout: cfg.NavTimeout(),
			Browser:           browserCfg,
		}, logger.Named("collector")),
		Performance: pagespeed.New(pagespeed.Config{
			BaseURL: cfg.PageSpeed.BaseURL,
			APIKey:  cfg.PageSpeed.APIKey,
			Timeout: time.Duration(cfg.PageSpeed.TimeoutSeconds) * time.Second,
			Throttle: ratelimit.New(ratelimit.Config{
				RPS:   cfg.PageSpeed.RequestsPerSecond,
				Burst: cfg.PageSpeed.Burst,
			}),
		}, nil, logger.Named("pagespeed")),
		Presence: presence.New(presence.Config{
			Language:  cfg.Report.Language,
			MaxTokens: cfg.LLM.PresenceMaxTokens,
		}, completer, logger.Named("presence")),
		Synthesizer: synth.New(synth.Config{
			Brand:     cfg.Report.Brand,
			Language:  cfg.Report.Language,
			MaxTokens: cfg.LLM.ReportMaxTokens,
		}, completer, logger.Named("synth")),
		Renderer: document.NewRenderer(document.Config{
			Timeout: cfg.RenderTimeout(),
			Browser: browserCfg,
			Branding: document.Branding{
				Brand:     cfg.Report.Brand,
				LangCode:  cfg.Report.LangCode,
				Direction: cfg.Report.Direction,
				Contact:   cfg.Report.Contact,
			},
		}, logger.Named("document")),
		Notifier: notify.New(notify.Config{
			From:          cfg.Email.From,
			TeamRecipient: cfg.Email.TeamRecipient,
			Brand:         cfg.Report.Brand,
			LangCode:      cfg.Report.LangCode,
			Direction:     cfg.Report.Direction,
			Contact:       cfg.Report.Contact,
		}, resend.New(cfg.Email.APIKey), logger.Named("notify")),
		Blobs:     blobs,
		Publisher: publisher,
		IDs:       uuid.New(),
		Clock:     system.New(),
	}

	app.orchestrator, err = pipeline.New(deps, pipeline.Config{
		IntakeTimeout: cfg.IntakeTimeout(),
		StoreTimeout:  cfg.StoreTimeout(),
		ArchivePrefix: cfg.Storage.Prefix,
	}, logger)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("pipeline init failed: %w", err)
	}
	return app, nil
}

// Handler builds the HTTP API for this app.
func (a *App) Handler() http.Handler {
	deps := api.Deps{
		Submitter:  a.orchestrator,
		Records:    a.statusStore,
		SetupToken: a.cfg.Auth.SetupToken,
	}
	if a.migrator != nil {
		deps.Migrator = a.migrator
	}
	if a.pgStore != nil {
		deps.Ready = a.pgStore.Ping
	}
	return api.NewServer(deps, a.logger).Handler()
}

// Run serves HTTP until SIGINT/SIGTERM, then drains in-flight audits.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	if err := a.orchestrator.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("abandoning in-flight audits", zap.Error(err))
	}
	a.Close()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// Close releases clients. It is safe to call on a partially built App.
func (a *App) Close() {
	if a.publisher != nil {
		a.publisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
	a.logger.Info("shutdown complete")
}

func (a *App) setupDatabase(ctx context.Context) error {
	if a.cfg.DB.DSN == "" {
		a.logger.Warn("No DSN specified for database, using in-memory status store")
		a.statusStore = memorystorage.NewStatusStore()
		return nil
	}
	store, err := pgstore.NewStatusStore(ctx, pgstore.Config{
		DSN:      a.cfg.DB.DSN,
		MaxConns: a.cfg.DB.MaxConns,
	})
	if err != nil {
		return fmt.Errorf("status store init failed: %w", err)
	}
	a.pgStore = store
	a.statusStore = store
	a.migrator = pgstore.NewMigrator(a.cfg.DB.DSN, a.logger.Named("migrate"))
	a.logger.Info("postgres status store initialized")
	return nil
}

func (a *App) setupStorage(ctx context.Context) (audit.BlobStore, error) {
	switch a.cfg.Storage.Backend {
	case config.StorageGCS:
		a.logger.Info("using GCS report archive", zap.String("bucket", a.cfg.Storage.GCSBucket))
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		a.storage = client
		blobs, err := gcsstorage.New(client, gcsstorage.Config{Bucket: a.cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		return blobs, nil
	case config.StorageLocal:
		a.logger.Info("using local report archive", zap.String("path", a.cfg.Storage.LocalDir))
		blobs, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Storage.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		return blobs, nil
	case config.StorageMemory:
		a.logger.Info("using in-memory report archive")
		return memorystorage.NewBlobStore(), nil
	default:
		a.logger.Info("report archive disabled")
		return nil, nil
	}
}

func (a *App) setupPublisher(ctx context.Context) (audit.Publisher, error) {
	if a.cfg.PubSub.TopicName == "" || a.cfg.PubSub.ProjectID == "" {
		a.logger.Info("No Pub/Sub topic configured, lifecycle events disabled")
		return nil, nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.pubsubClient = client
	a.publisher = gcppublisher.New(client.Topic(a.cfg.PubSub.TopicName))
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return a.publisher, nil
}
