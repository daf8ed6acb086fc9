package audit

import "context"

// Store is append-only. Implementations must never mutate or drop events.
type Store interface {
	Append(ctx context.Context, event Event) error
	List(ctx context.Context) ([]Event, error)
}
