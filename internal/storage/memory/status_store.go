package memory

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/site-audit/internal/audit"
	"github.com/JakeFAU/site-audit/internal/storage"
)

// StatusStore provides an in-memory audit.StatusStore for development/testing.
type StatusStore struct {
	mu      sync.RWMutex
	records map[string]audit.Record
	history map[string][]audit.Status
	now     func() time.Time
}

// NewStatusStore constructs a StatusStore.
func NewStatusStore() *StatusStore {
	return &StatusStore{
		records: make(map[string]audit.Record),
		history: make(map[string][]audit.Status),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new record in the received state.
func (s *StatusStore) Create(_ context.Context, id string, req audit.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[id]; exists {
		return fmt.Errorf("audit %s already exists", id)
	}
	now := s.now()
	s.records[id] = audit.Record{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Website:   req.Website,
		Source:    req.Source,
		Status:    audit.StatusReceived,
	}
	s.history[id] = []audit.Status{audit.StatusReceived}
	return nil
}

// UpdateStatus sets the status and error message. An empty errMsg clears it.
func (s *StatusStore) UpdateStatus(_ context.Context, id string, status audit.Status, errMsg string) error {
	if !status.Valid() {
		return fmt.Errorf("unknown status %q", status)
	}
	return s.update(id, func(rec *audit.Record) {
		rec.Status = status
		rec.ErrorMessage = nil
		if errMsg != "" {
			msg := errMsg
			rec.ErrorMessage = &msg
		}
	})
}

// SaveResults writes the analysis projection and advances to generating_pdf.
func (s *StatusStore) SaveResults(_ context.Context, id string, results audit.Results) error {
	p, err := storage.Project(results)
	if err != nil {
		return err
	}
	return s.update(id, func(rec *audit.Record) {
		p.Apply(rec)
		rec.Status = audit.StatusGeneratingPDF
	})
}

// SaveReportLocation records where the archived report lives.
func (s *StatusStore) SaveReportLocation(_ context.Context, id string, uri string) error {
	return s.update(id, func(rec *audit.Record) {
		u := uri
		rec.ReportURI = &u
	})
}

// Complete stores the email timestamps and marks the record completed.
func (s *StatusStore) Complete(_ context.Context, id string, receipt audit.EmailReceipt) error {
	return s.update(id, func(rec *audit.Record) {
		user, team, done := receipt.UserSentAt, receipt.TeamSentAt, s.now()
		rec.UserEmailSentAt = &user
		rec.TeamEmailSentAt = &team
		rec.CompletedAt = &done
		rec.Status = audit.StatusCompleted
	})
}

// Get fetches a record by id.
func (s *StatusStore) Get(_ context.Context, id string) (audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return audit.Record{}, audit.ErrNotFound
	}
	return cloneRecord(rec), nil
}

// History returns every status the record has been written with, in order.
func (s *StatusStore) History(id string) []audit.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Status, len(s.history[id]))
	copy(out, s.history[id])
	return out
}

// Len reports how many records exist.
func (s *StatusStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// cloneRecord copies every pointer and blob so callers cannot reach stored state.
func cloneRecord(rec audit.Record) audit.Record {
	rec.ErrorMessage = clonePtr(rec.ErrorMessage)
	rec.PerformanceScore = clonePtr(rec.PerformanceScore)
	rec.AccessibilityScore = clonePtr(rec.AccessibilityScore)
	rec.SEOScore = clonePtr(rec.SEOScore)
	rec.BestPracticesScore = clonePtr(rec.BestPracticesScore)
	rec.LoadTimeMs = clonePtr(rec.LoadTimeMs)
	rec.AIChatGPT = clonePtr(rec.AIChatGPT)
	rec.AIGemini = clonePtr(rec.AIGemini)
	rec.AIPerplexity = clonePtr(rec.AIPerplexity)
	rec.PerformanceDetails = bytes.Clone(rec.PerformanceDetails)
	rec.ActionPlan = bytes.Clone(rec.ActionPlan)
	rec.ScrapedMeta = bytes.Clone(rec.ScrapedMeta)
	rec.ReportURI = clonePtr(rec.ReportURI)
	rec.UserEmailSentAt = clonePtr(rec.UserEmailSentAt)
	rec.TeamEmailSentAt = clonePtr(rec.TeamEmailSentAt)
	rec.CompletedAt = clonePtr(rec.CompletedAt)
	return rec
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (s *StatusStore) update(id string, fn func(*audit.Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return audit.ErrNotFound
	}
	before := rec.Status
	fn(&rec)
	rec.UpdatedAt = s.now()
	s.records[id] = rec
	if rec.Status != before {
		s.history[id] = append(s.history[id], rec.Status)
	}
	return nil
}
