// Package state implements the persisted-state engine shared by the auth,
// age-gate, legal, onboarding, consent, and favorites stores.
//
// A Store keeps an authoritative in-memory value that is always readable,
// hydrates it from durable storage once per process lifetime, and flushes
// mutations back asynchronously. Flush failures are logged and swallowed:
// the in-memory value stays authoritative for the session. Hydration
// failures fall back to the default value and propagate to the caller so
// startup can run its timeout/cleanup logic.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cultivar/internal/storage"
	"cultivar/pkg/domainerrors"
)

const flushTimeout = 2 * time.Second

// envelope is the persisted blob format: one versioned value per store key.
type envelope struct {
	SchemaVersion int             `json:"schemaVersion"`
	Value         json.RawMessage `json:"value"`
}

// Store owns one slice of persisted state.
type Store[T any] struct {
	key           string
	schemaVersion int
	defaults      func() T
	clone         func(T) T
	storage       storage.Store
	logger        *slog.Logger

	mu    sync.RWMutex
	value T

	// Hydration is single-flight: concurrent callers share one load and all
	// observe the same result; later calls return the cached result.
	hydrateMu  sync.Mutex
	hydrating  chan struct{}
	hydrated   bool
	hydrateErr error

	// Stale flushes are skipped so last-write-wins holds on disk too.
	flushMu    sync.Mutex
	writeSeq   uint64
	flushedSeq uint64
}

// Option configures a Store.
type Option[T any] func(*Store[T])

func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(s *Store[T]) {
		s.logger = logger
	}
}

// WithClone installs a deep-copy for states carrying maps or slices. A
// shallow struct copy would leave those fields aliased to the live value, so
// a snapshot taken on one goroutine could observe a concurrent Set mid-write.
// States made of value types only do not need one.
func WithClone[T any](clone func(T) T) Option[T] {
	return func(s *Store[T]) {
		if clone != nil {
			s.clone = clone
		}
	}
}

// New builds a store for the given key. defaults must return a fully usable
// zero state; Snapshot never returns anything else before hydration.
func New[T any](key string, schemaVersion int, defaults func() T, store storage.Store, opts ...Option[T]) *Store[T] {
	s := &Store[T]{
		key:           key,
		schemaVersion: schemaVersion,
		defaults:      defaults,
		storage:       store,
		logger:        slog.Default(),
		value:         defaults(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current in-memory value. Always defined: before
// hydration it is the default value. The returned value is detached from the
// store: stores whose state carries reference types install a clone via
// WithClone so later Sets cannot reach into an already-taken snapshot.
func (s *Store[T]) Snapshot() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.clone != nil {
		return s.clone(s.value)
	}
	return s.value
}

// Hydrated reports whether hydration has completed (successfully or not).
func (s *Store[T]) Hydrated() bool {
	s.hydrateMu.Lock()
	defer s.hydrateMu.Unlock()
	return s.hydrated
}

// Hydrate loads the persisted value into memory. It runs at most once per
// process lifetime; a second call while one is in flight waits for it and
// returns the same result rather than rerunning the load.
func (s *Store[T]) Hydrate(ctx context.Context) error {
	s.hydrateMu.Lock()
	if s.hydrated {
		err := s.hydrateErr
		s.hydrateMu.Unlock()
		return err
	}
	if s.hydrating != nil {
		done := s.hydrating
		s.hydrateMu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		s.hydrateMu.Lock()
		err := s.hydrateErr
		s.hydrateMu.Unlock()
		return err
	}
	done := make(chan struct{})
	s.hydrating = done
	s.hydrateMu.Unlock()

	err := s.load(ctx)

	s.hydrateMu.Lock()
	s.hydrated = true
	s.hydrateErr = err
	s.hydrating = nil
	close(done)
	s.hydrateMu.Unlock()
	return err
}

func (s *Store[T]) load(ctx context.Context) error {
	raw, err := s.storage.Get(ctx, s.key)
	if domainerrors.HasCode(err, domainerrors.CodeNotFound) {
		// First launch: keep the default and persist it so later reads see a
		// well-formed envelope.
		s.flush()
		return nil
	}
	if err != nil {
		return domainerrors.Wrap(domainerrors.CodeHydrationFailure,
			fmt.Sprintf("read %q", s.key), err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// Corrupt blob: the default stays authoritative for this session.
		return domainerrors.Wrap(domainerrors.CodeHydrationFailure,
			fmt.Sprintf("decode %q", s.key), err)
	}
	if env.SchemaVersion != s.schemaVersion {
		// Schema bump resets to defaults rather than migrating.
		s.logger.Warn("persisted state schema mismatch, resetting",
			"key", s.key, "stored", env.SchemaVersion, "want", s.schemaVersion)
		s.flush()
		return nil
	}

	value := s.defaults()
	if err := json.Unmarshal(env.Value, &value); err != nil {
		return domainerrors.Wrap(domainerrors.CodeHydrationFailure,
			fmt.Sprintf("decode %q value", s.key), err)
	}

	s.mu.Lock()
	s.value = value
	s.mu.Unlock()
	return nil
}

// Set applies a mutation write-through: memory updates synchronously, the
// durable flush happens asynchronously best-effort. Callers needing atomic
// multi-field updates batch them into one mutation.
func (s *Store[T]) Set(mutate func(*T)) {
	s.mu.Lock()
	mutate(&s.value)
	s.mu.Unlock()
	s.flushAsync()
}

// SetLocal applies a mutation to memory only, scheduling no flush. Used
// where the persisted blob was deliberately removed and must stay absent,
// e.g. the post-Clear signed-out downgrade.
func (s *Store[T]) SetLocal(mutate func(*T)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mutate(&s.value)
}

// Reset restores the default value and persists it.
func (s *Store[T]) Reset() {
	s.mu.Lock()
	s.value = s.defaults()
	s.mu.Unlock()
	s.flushAsync()
}

// Persist flushes the current value synchronously. Used where a confirmed
// durable write matters, e.g. consent decisions.
func (s *Store[T]) Persist(ctx context.Context) error {
	raw, seq, err := s.encode()
	if err != nil {
		return err
	}
	return s.write(ctx, raw, seq)
}

func (s *Store[T]) flushAsync() {
	raw, seq, err := s.encode()
	if err != nil {
		s.logger.Error("encode persisted state", "key", s.key, "error", err)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		if err := s.write(ctx, raw, seq); err != nil {
			// Swallowed: in-memory state remains authoritative.
			s.logger.Error("persist state", "key", s.key, "error", err)
		}
	}()
}

// flush is flushAsync without the goroutine; used on the hydration path
// where ordering against later Sets does not matter yet.
func (s *Store[T]) flush() {
	raw, seq, err := s.encode()
	if err != nil {
		s.logger.Error("encode persisted state", "key", s.key, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := s.write(ctx, raw, seq); err != nil {
		s.logger.Error("persist default state", "key", s.key, "error", err)
	}
}

func (s *Store[T]) encode() ([]byte, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, err := json.Marshal(s.value)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal %q value: %w", s.key, err)
	}
	raw, err := json.Marshal(envelope{SchemaVersion: s.schemaVersion, Value: value})
	if err != nil {
		return nil, 0, fmt.Errorf("marshal %q envelope: %w", s.key, err)
	}
	s.writeSeq++
	return raw, s.writeSeq, nil
}

func (s *Store[T]) write(ctx context.Context, raw []byte, seq uint64) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()
	if seq <= s.flushedSeq {
		// A newer snapshot already reached storage.
		return nil
	}
	if err := s.storage.Set(ctx, s.key, raw); err != nil {
		return err
	}
	s.flushedSeq = seq
	return nil
}

// Clear removes the persisted blob and restores the in-memory default. Unlike
// Reset it does not rewrite storage, so the next launch starts from scratch.
func (s *Store[T]) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.value = s.defaults()
	s.mu.Unlock()
	if err := s.storage.Remove(ctx, s.key); err != nil {
		return fmt.Errorf("clear %q: %w", s.key, err)
	}
	return nil
}
