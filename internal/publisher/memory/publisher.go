// Package memory records audit lifecycle events in-memory for tests and development.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/site-audit/internal/audit"
)

// Publisher stores published events for inspection.
type Publisher struct {
	mu     sync.RWMutex
	events []audit.Event
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the event and returns a pseudo ID.
func (p *Publisher) Publish(_ context.Context, evt audit.Event) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return fmt.Sprintf("memory-%d", len(p.events)), nil
}

// Events returns the recorded events.
func (p *Publisher) Events() []audit.Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]audit.Event, len(p.events))
	copy(out, p.events)
	return out
}
