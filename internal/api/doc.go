// Package api hosts the HTTP server, middleware, and handlers of the audit
// service. Notable routes:
//   - POST /api/audit accepts a submission and starts a background run.
//   - POST /api/db-setup applies schema migrations (bearer token).
//   - GET /api/audits/{id} returns the persisted record (bearer token).
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
package api
