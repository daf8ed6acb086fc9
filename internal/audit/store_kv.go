package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"cultivar/internal/storage"
	"cultivar/pkg/domainerrors"
)

const (
	indexKey  = "audit:index"
	entryKey  = "audit:event:"
	maxEvents = 2048
)

// KVStore persists the audit trail through the durable key-value layer. An
// index key lists event IDs in append order; each event lives under its own
// key so single appends stay small.
type KVStore struct {
	mu      sync.Mutex
	backend storage.Store
}

func NewKVStore(backend storage.Store) *KVStore {
	return &KVStore{backend: backend}
}

func (s *KVStore) Append(ctx context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.readIndex(ctx)
	if err != nil {
		return err
	}
	if len(ids) >= maxEvents {
		return fmt.Errorf("audit trail full (%d events)", len(ids))
	}

	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	if err := s.backend.Set(ctx, entryKey+event.ID, raw); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}

	ids = append(ids, event.ID)
	rawIndex, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("marshal audit index: %w", err)
	}
	if err := s.backend.Set(ctx, indexKey, rawIndex); err != nil {
		return fmt.Errorf("write audit index: %w", err)
	}
	return nil
}

func (s *KVStore) List(ctx context.Context) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.readIndex(ctx)
	if err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(ids))
	for _, id := range ids {
		raw, err := s.backend.Get(ctx, entryKey+id)
		if domainerrors.HasCode(err, domainerrors.CodeNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read audit event %q: %w", id, err)
		}
		var event Event
		if err := json.Unmarshal(raw, &event); err != nil {
			return nil, fmt.Errorf("decode audit event %q: %w", id, err)
		}
		events = append(events, event)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events, nil
}

func (s *KVStore) readIndex(ctx context.Context) ([]string, error) {
	raw, err := s.backend.Get(ctx, indexKey)
	if domainerrors.HasCode(err, domainerrors.CodeNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read audit index: %w", err)
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decode audit index: %w", err)
	}
	return ids, nil
}
