// Package postgres provides the Postgres-backed audit status store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/site-audit/internal/audit"
	"github.com/JakeFAU/site-audit/internal/storage"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// StatusStore implements audit.StatusStore on the audits table.
type StatusStore struct {
	pool querier
}

// NewStatusStore connects a pool described by cfg.
func NewStatusStore(ctx context.Context, cfg Config) (*StatusStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &StatusStore{pool: pool}, nil
}

// NewStatusStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewStatusStoreWithPool(pool querier) (*StatusStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &StatusStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *StatusStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping reports whether the database is reachable.
func (s *StatusStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Create inserts a new record in the received state.
func (s *StatusStore) Create(ctx context.Context, id string, req audit.Request) error {
	const query = `
INSERT INTO audits (id, name, email, phone, website, source, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := s.pool.Exec(ctx, query,
		id, req.Name, req.Email, req.Phone, req.Website, req.Source, string(audit.StatusReceived),
	); err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

// UpdateStatus sets the status and error message. An empty errMsg clears it.
func (s *StatusStore) UpdateStatus(ctx context.Context, id string, status audit.Status, errMsg string) error {
	const query = `
UPDATE audits SET status = $1, error_message = $2, updated_at = now()
WHERE id = $3`
	return s.exec(ctx, "update audit status", query, string(status), nullableString(errMsg), id)
}

// SaveResults writes the analysis projection and advances to generating_pdf.
func (s *StatusStore) SaveResults(ctx context.Context, id string, results audit.Results) error {
	p, err := storage.Project(results)
	if err != nil {
		return err
	}
	const query = `
UPDATE audits SET
	status = $1,
	performance_score = $2,
	accessibility_score = $3,
	seo_score = $4,
	best_practices_score = $5,
	load_time_ms = $6,
	ai_chatgpt = $7,
	ai_gemini = $8,
	ai_perplexity = $9,
	pagespeed_details = $10,
	action_plan = $11,
	scraped_meta = $12,
	updated_at = now()
WHERE id = $13`
	return s.exec(ctx, "save audit results", query,
		string(audit.StatusGeneratingPDF),
		p.PerformanceScore,
		p.AccessibilityScore,
		p.SEOScore,
		p.BestPracticesScore,
		p.LoadTimeMs,
		p.AIChatGPT,
		p.AIGemini,
		p.AIPerplexity,
		[]byte(p.PerformanceDetails),
		[]byte(p.ActionPlan),
		[]byte(p.ScrapedMeta),
		id,
	)
}

// SaveReportLocation records where the archived report lives.
func (s *StatusStore) SaveReportLocation(ctx context.Context, id string, uri string) error {
	const query = `UPDATE audits SET report_uri = $1, updated_at = now() WHERE id = $2`
	return s.exec(ctx, "save report location", query, uri, id)
}

// Complete stores the email timestamps and marks the record completed.
func (s *StatusStore) Complete(ctx context.Context, id string, receipt audit.EmailReceipt) error {
	const query = `
UPDATE audits SET
	status = $1,
	user_email_sent_at = $2,
	team_email_sent_at = $3,
	completed_at = now(),
	updated_at = now()
WHERE id = $4`
	return s.exec(ctx, "complete audit", query,
		string(audit.StatusCompleted), receipt.UserSentAt, receipt.TeamSentAt, id,
	)
}

// Get loads one record by id.
func (s *StatusStore) Get(ctx context.Context, id string) (audit.Record, error) {
	const query = `
SELECT id::text, created_at, updated_at, name, email, phone, website, source, status,
	error_message, performance_score, accessibility_score, seo_score, best_practices_score,
	load_time_ms, ai_chatgpt, ai_gemini, ai_perplexity,
	pagespeed_details, action_plan, scraped_meta, report_uri,
	user_email_sent_at, team_email_sent_at, completed_at
FROM audits WHERE id = $1`

	var (
		rec     audit.Record
		status  string
		details []byte
		plan    []byte
		meta    []byte
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&rec.ID, &rec.CreatedAt, &rec.UpdatedAt,
		&rec.Name, &rec.Email, &rec.Phone, &rec.Website, &rec.Source, &status,
		&rec.ErrorMessage,
		&rec.PerformanceScore, &rec.AccessibilityScore, &rec.SEOScore, &rec.BestPracticesScore,
		&rec.LoadTimeMs, &rec.AIChatGPT, &rec.AIGemini, &rec.AIPerplexity,
		&details, &plan, &meta, &rec.ReportURI,
		&rec.UserEmailSentAt, &rec.TeamEmailSentAt, &rec.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return audit.Record{}, audit.ErrNotFound
	}
	if err != nil {
		return audit.Record{}, fmt.Errorf("select audit: %w", err)
	}
	rec.Status = audit.Status(status)
	rec.PerformanceDetails = details
	rec.ActionPlan = plan
	rec.ScrapedMeta = meta
	return rec, nil
}

func (s *StatusStore) exec(ctx context.Context, op, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, audit.ErrNotFound)
	}
	return nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
