// Package main hosts the audit service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, audit intake, schema setup and record lookup.
//     Submissions are validated into an audit.Request and handed to the pipeline, which creates the status
//     record and answers before any slow work starts.
//   - Pipeline: internal/pipeline.Orchestrator runs each audit in its own goroutine. The site is collected with a
//     headless Chromedp browser, then PageSpeed performance and the LLM presence check run concurrently. A
//     performance failure degrades to default scores; every other stage failure ends the audit as failed.
//   - Synthesis & delivery: the LLM writes the narrative, internal/document prints it to PDF through the same
//     browser, and internal/notify sends the requester and team emails via Resend.
//   - Persistence & fanout: status transitions are written best-effort to Postgres (or memory when no DSN is
//     set). Finished PDFs are archived to the configured BlobStore (memory/local/GCS) and a lifecycle event is
//     published to Pub/Sub when a topic is configured.
//   - Configuration & plumbing: Viper populates config from env/files; zap provides structured logging; Prometheus
//     metrics are exported via the metrics middleware and /metrics handler.
//
// Operational notes:
//   - Concurrency model: one goroutine per audit, bounded only by intake. The browser allocator is shared and each
//     collection or print opens its own tab.
//   - Shutdown: SIGTERM stops intake (503 for new submissions), then waits up to server.shutdown_timeout_seconds
//     for in-flight audits before closing clients.
//   - Cloud Run: the HTTP server listens on the configured port. /healthz is static and /readyz pings Postgres.
//
// Quick checklist:
//   - Configure env vars: AUDIT_LLM_API_KEY, AUDIT_EMAIL_API_KEY, AUDIT_EMAIL_FROM, AUDIT_EMAIL_TEAM_RECIPIENT,
//     AUDIT_AUTH_SETUP_TOKEN, AUDIT_DB_DSN, storage (AUDIT_STORAGE_*) and pubsub when fanout is required.
//   - Apply the schema: go run ./cmd/auditd migrate, or POST /api/db-setup with the setup token.
//   - Run locally: go run ./cmd/auditd serve --config config.yaml (or rely solely on env overrides).
//   - One-off audit: go run ./cmd/auditd run --name Dani --email d@example.com --website example.com
package main
