// Package assess captures plant-health assessments offline and uploads them
// opportunistically. Captures must never be lost to missing connectivity:
// they are persisted first and drained to the backend later, in capture
// order.
package assess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"cultivar/internal/storage"
)

const (
	indexKey       = "assess:index"
	entryKeyPrefix = "assess:item:"
)

// Assessment is one captured plant-health check awaiting upload.
type Assessment struct {
	ID         string         `json:"id"`
	PlantID    string         `json:"plantId"`
	CapturedAt time.Time      `json:"capturedAt"`
	ImageRef   string         `json:"imageRef,omitempty"`
	Notes      string         `json:"notes,omitempty"`
	Readings   map[string]any `json:"readings,omitempty"`
}

// Queue is the durable FIFO of pending assessments. Entries are stored
// individually under their ID with a separate ordered index, so a partial
// drain removes only what was uploaded.
type Queue struct {
	mu    sync.Mutex
	store storage.Store
	clock func() time.Time
}

// QueueOption configures the Queue.
type QueueOption func(*Queue)

// WithQueueClock injects a deterministic clock (primarily for tests).
func WithQueueClock(clock func() time.Time) QueueOption {
	return func(q *Queue) {
		if clock != nil {
			q.clock = clock
		}
	}
}

func NewQueue(store storage.Store, opts ...QueueOption) *Queue {
	q := &Queue{store: store, clock: time.Now}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue persists one assessment and appends it to the upload order.
// Missing ID and capture time are filled in.
func (q *Queue) Enqueue(ctx context.Context, a Assessment) (Assessment, error) {
	if a.PlantID == "" {
		return Assessment{}, errors.New("plant id is required")
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CapturedAt.IsZero() {
		a.CapturedAt = q.clock()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	raw, err := json.Marshal(a)
	if err != nil {
		return Assessment{}, fmt.Errorf("marshal assessment: %w", err)
	}
	if err := q.store.Set(ctx, entryKeyPrefix+a.ID, raw); err != nil {
		return Assessment{}, fmt.Errorf("persist assessment: %w", err)
	}

	ids, err := q.readIndex(ctx)
	if err != nil {
		return Assessment{}, err
	}
	if !slices.Contains(ids, a.ID) {
		ids = append(ids, a.ID)
		if err := q.writeIndex(ctx, ids); err != nil {
			return Assessment{}, err
		}
	}
	return a, nil
}

// Pending returns queued assessments in capture order. An index entry whose
// blob is missing is skipped; it will be pruned on the next Ack.
func (q *Queue) Pending(ctx context.Context) ([]Assessment, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ids, err := q.readIndex(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Assessment, 0, len(ids))
	for _, id := range ids {
		raw, err := q.store.Get(ctx, entryKeyPrefix+id)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read assessment %s: %w", id, err)
		}
		var a Assessment
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("decode assessment %s: %w", id, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// Ack removes one uploaded assessment from the queue.
func (q *Queue) Ack(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.store.Remove(ctx, entryKeyPrefix+id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("remove assessment %s: %w", id, err)
	}
	ids, err := q.readIndex(ctx)
	if err != nil {
		return err
	}
	trimmed := slices.DeleteFunc(ids, func(existing string) bool { return existing == id })
	return q.writeIndex(ctx, trimmed)
}

// Len reports how many assessments are queued.
func (q *Queue) Len(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids, err := q.readIndex(ctx)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (q *Queue) readIndex(ctx context.Context) ([]string, error) {
	raw, err := q.store.Get(ctx, indexKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read assessment index: %w", err)
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decode assessment index: %w", err)
	}
	return ids, nil
}

func (q *Queue) writeIndex(ctx context.Context, ids []string) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("marshal assessment index: %w", err)
	}
	if err := q.store.Set(ctx, indexKey, raw); err != nil {
		return fmt.Errorf("persist assessment index: %w", err)
	}
	return nil
}
