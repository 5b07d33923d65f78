package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-audit/internal/audit"
	"github.com/JakeFAU/site-audit/internal/logging"
	"github.com/JakeFAU/site-audit/internal/metrics"
	"github.com/JakeFAU/site-audit/internal/pipeline"
)

const maxBodyBytes = 64 << 10

// Submitter starts a background audit run.
type Submitter interface {
	Submit(ctx context.Context, req audit.Request) (string, error)
}

// RecordReader loads persisted audit records.
type RecordReader interface {
	Get(ctx context.Context, id string) (audit.Record, error)
}

// Migrator applies the database schema.
type Migrator interface {
	Migrate(ctx context.Context) error
}

// ReadinessCheck reports whether a downstream dependency is usable.
type ReadinessCheck func(ctx context.Context) error

// Deps wires handlers to the pipeline and stores. Migrator and Ready are optional.
type Deps struct {
	Submitter  Submitter
	Records    RecordReader
	Migrator   Migrator
	Ready      ReadinessCheck
	SetupToken string
}

// Server wires HTTP handlers to the orchestrator and stores.
type Server struct {
	router chi.Router
	deps   Deps
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, logger *zap.Logger) *Server {
	metrics.Init()
	s := &Server{
		deps:   deps,
		logger: logging.OrNop(logger).Named("api"),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.HandleFunc("/audit", s.submitAudit)
		r.HandleFunc("/db-setup", s.setupDatabase)
		r.With(s.requireToken).Get("/audits/{id}", s.getAudit)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type auditRequestBody struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Website string `json:"website"`
	Source  string `json:"source"`
}

type auditAccepted struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	AuditID string `json:"audit_id,omitempty"`
}

func (s *Server) submitAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var body auditRequestBody
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		metrics.ObserveSubmission(metrics.OutcomeRejected)
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req, err := audit.NewRequest(audit.RawRequest(body))
	if err != nil {
		metrics.ObserveSubmission(metrics.OutcomeRejected)
		msg := "Missing required fields: name, email, website"
		if strings.TrimSpace(body.Name) != "" && strings.TrimSpace(body.Email) != "" && strings.TrimSpace(body.Website) != "" {
			msg = err.Error()
		}
		s.writeError(w, http.StatusBadRequest, msg)
		return
	}

	id, err := s.deps.Submitter.Submit(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrShuttingDown) {
			status = http.StatusServiceUnavailable
		}
		s.writeError(w, status, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, auditAccepted{
		Success: true,
		Message: "Audit request received",
		AuditID: id,
	})
}

func (s *Server) setupDatabase(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !s.authorized(r) {
		s.writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if s.deps.Migrator == nil {
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Migration failed",
			"details": "database is not configured",
		})
		return
	}
	if err := s.deps.Migrator.Migrate(r.Context()); err != nil {
		s.logger.Error("migration failed", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Migration failed",
			"details": err.Error(),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Database setup complete"})
}

func (s *Server) getAudit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		s.writeError(w, http.StatusNotFound, "audit not found")
		return
	}
	rec, err := s.deps.Records.Get(r.Context(), id)
	if errors.Is(err, audit.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "audit not found")
		return
	}
	if err != nil {
		s.logger.Error("load audit failed", zap.String("audit_id", id), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load audit")
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authorized(r) {
			s.writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authorized checks the bearer token. An unset token rejects every request.
func (s *Server) authorized(r *http.Request) bool {
	if s.deps.SetupToken == "" {
		return false
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.deps.SetupToken)) == 1
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

type requestIDKey struct{}

// RequestID returns the id assigned to the request carried by ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("request_id", RequestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = fmt.Fprintln(w, `{"error":"internal server error"}`)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
