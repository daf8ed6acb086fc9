// Package audit captures the immutable compliance trail: consent decisions,
// forced compliance resets, and startup settlements.
//
// The Publisher writes synchronously - consent writes are paired with their
// audit record or they fail. The Worker drains an inbox channel for events
// that are informational and must not block their emitters.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Publisher appends structured audit events. It is append-only and uses the
// store interface for persistence so tests can swap sinks easily.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

// Emit fills in identity and timestamp defaults, then appends synchronously.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return p.store.Append(ctx, event)
}

// List returns the recorded trail in append order.
func (p *Publisher) List(ctx context.Context) ([]Event, error) {
	return p.store.List(ctx)
}
