// Package events publishes domain events for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the service.
const (
	SeatingPlanSaved     = "seating.plan.saved"
	SeatingPlanPublished = "seating.plan.published"
	SeatingPlanDeleted   = "seating.plan.deleted"
)

// Envelope wraps every payload on the wire.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload interface{}) error
	Close() error
}

// NewEnvelope marshals payload into an envelope stamped with a fresh id.
func NewEnvelope(eventType string, payload interface{}) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}, nil
}

// NopPublisher drops every event.
type NopPublisher struct{}

var _ Publisher = NopPublisher{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, string, interface{}) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }

// MemoryPublisher keeps events in memory; handy for tests and local runs.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Envelope
}

var _ Publisher = (*MemoryPublisher)(nil)

// NewMemoryPublisher constructs an empty in-memory publisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Publish implements Publisher.
func (m *MemoryPublisher) Publish(_ context.Context, eventType string, payload interface{}) error {
	env, err := NewEnvelope(eventType, payload)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.events = append(m.events, env)
	m.mu.Unlock()
	return nil
}

// Events returns a copy of everything published so far.
func (m *MemoryPublisher) Events() []Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Envelope(nil), m.events...)
}

// Close implements Publisher.
func (m *MemoryPublisher) Close() error { return nil }
