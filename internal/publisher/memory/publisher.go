// Package memory records published notification events in memory, for
// tests and the memory provider profile.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/openrec/reggie/internal/reggie"
)

// Event captures one publish call.
type Event struct {
	Topic   string
	Payload any
}

// Publisher accumulates events for later inspection.
type Publisher struct {
	mu     sync.RWMutex
	events []Event
}

// New returns an empty recording publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the event and returns a pseudo message id.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, Event{Topic: topic, Payload: payload})
	return fmt.Sprintf("memory-%d", len(p.events)), nil
}

// Events returns a copy of everything published so far.
func (p *Publisher) Events() []Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

var _ reggie.Publisher = (*Publisher)(nil)
