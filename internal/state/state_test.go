package state

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cultivar/internal/storage"
	"cultivar/pkg/domainerrors"
)

type testValue struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func defaults() testValue { return testValue{Name: "fresh"} }

// countingStore wraps the in-memory store to observe read traffic.
type countingStore struct {
	*storage.InMemoryStore
	gets  atomic.Int64
	block chan struct{}
}

func (c *countingStore) Get(ctx context.Context, key string) ([]byte, error) {
	c.gets.Add(1)
	if c.block != nil {
		<-c.block
	}
	return c.InMemoryStore.Get(ctx, key)
}

// failingStore rejects every operation.
type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("storage unavailable")
}
func (failingStore) Set(context.Context, string, []byte) error {
	return errors.New("storage unavailable")
}
func (failingStore) Remove(context.Context, string) error { return errors.New("storage unavailable") }
func (failingStore) Close() error                         { return nil }

func TestSnapshotBeforeHydrationReturnsDefault(t *testing.T) {
	store := New("test", 1, defaults, storage.NewInMemoryStore())

	assert.Equal(t, testValue{Name: "fresh"}, store.Snapshot())
	assert.False(t, store.Hydrated())
}

func TestHydrateLoadsPersistedValue(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewInMemoryStore()
	raw, err := json.Marshal(envelope{SchemaVersion: 1, Value: json.RawMessage(`{"name":"stored","count":3}`)})
	require.NoError(t, err)
	require.NoError(t, backend.Set(ctx, "test", raw))

	store := New("test", 1, defaults, backend)
	require.NoError(t, store.Hydrate(ctx))

	assert.Equal(t, testValue{Name: "stored", Count: 3}, store.Snapshot())
	assert.True(t, store.Hydrated())
}

func TestHydrateIsSingleFlight(t *testing.T) {
	ctx := context.Background()
	backend := &countingStore{InMemoryStore: storage.NewInMemoryStore(), block: make(chan struct{})}
	store := New("test", 1, defaults, backend)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Hydrate(ctx)
		}()
	}
	// Give the racers time to pile up on the in-flight load.
	time.Sleep(20 * time.Millisecond)
	close(backend.block)
	wg.Wait()

	assert.Equal(t, int64(1), backend.gets.Load())

	// A later call returns the cached result without rerunning.
	require.NoError(t, store.Hydrate(ctx))
	assert.Equal(t, int64(1), backend.gets.Load())
}

func TestHydrateMalformedBlobFallsBackToDefault(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewInMemoryStore()
	require.NoError(t, backend.Set(ctx, "test", []byte("not json")))

	store := New("test", 1, defaults, backend)
	err := store.Hydrate(ctx)

	require.Error(t, err)
	assert.Equal(t, domainerrors.CodeHydrationFailure, domainerrors.CodeOf(err))
	assert.Equal(t, testValue{Name: "fresh"}, store.Snapshot())
}

func TestHydrateStorageErrorPropagates(t *testing.T) {
	store := New("test", 1, defaults, failingStore{})

	err := store.Hydrate(context.Background())
	require.Error(t, err)
	assert.Equal(t, domainerrors.CodeHydrationFailure, domainerrors.CodeOf(err))
}

func TestHydrateSchemaMismatchResets(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewInMemoryStore()
	raw, err := json.Marshal(envelope{SchemaVersion: 99, Value: json.RawMessage(`{"name":"old"}`)})
	require.NoError(t, err)
	require.NoError(t, backend.Set(ctx, "test", raw))

	store := New("test", 1, defaults, backend)
	require.NoError(t, store.Hydrate(ctx))
	assert.Equal(t, testValue{Name: "fresh"}, store.Snapshot())
}

func TestSetIsWriteThrough(t *testing.T) {
	store := New("test", 1, defaults, storage.NewInMemoryStore())

	store.Set(func(v *testValue) { v.Count = 7 })

	// Memory reflects the write immediately, before any flush lands.
	assert.Equal(t, 7, store.Snapshot().Count)
}

func TestSetPersistFailureIsSwallowed(t *testing.T) {
	store := New("test", 1, defaults, failingStore{})

	store.Set(func(v *testValue) { v.Name = "kept" })

	// Flush fails in the background; in-memory state stays authoritative.
	assert.Equal(t, "kept", store.Snapshot().Name)
}

type refValue struct {
	Tags map[string]int `json:"tags"`
}

func refDefaults() refValue { return refValue{Tags: map[string]int{}} }

func cloneRefValue(v refValue) refValue {
	copied := make(map[string]int, len(v.Tags))
	for k, val := range v.Tags {
		copied[k] = val
	}
	v.Tags = copied
	return v
}

func TestSnapshotWithCloneIsDetached(t *testing.T) {
	store := New("test", 1, refDefaults, storage.NewInMemoryStore(),
		WithClone[refValue](cloneRefValue))
	store.Set(func(v *refValue) { v.Tags["a"] = 1 })

	snap := store.Snapshot()
	store.Set(func(v *refValue) { v.Tags["b"] = 2 })

	// The earlier snapshot must not see the later write.
	assert.Equal(t, map[string]int{"a": 1}, snap.Tags)
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, store.Snapshot().Tags)
}

func TestSnapshotWithCloneSafeUnderConcurrentSets(t *testing.T) {
	store := New("test", 1, refDefaults, storage.NewInMemoryStore(),
		WithClone[refValue](cloneRefValue))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range 500 {
			store.Set(func(v *refValue) { v.Tags["k"] = i })
		}
	}()
	go func() {
		defer wg.Done()
		for range 500 {
			snap := store.Snapshot()
			for range snap.Tags {
			}
		}
	}()
	wg.Wait()
}

func TestSetLocalSkipsFlush(t *testing.T) {
	backend := storage.NewInMemoryStore()
	store := New("test", 1, defaults, backend)

	store.SetLocal(func(v *testValue) { v.Name = "memory-only" })

	assert.Equal(t, "memory-only", store.Snapshot().Name)
	assert.Never(t, func() bool {
		_, err := backend.Get(context.Background(), "test")
		return err == nil
	}, 100*time.Millisecond, 10*time.Millisecond)
}

func TestResetRestoresDefault(t *testing.T) {
	store := New("test", 1, defaults, storage.NewInMemoryStore())
	store.Set(func(v *testValue) { v.Name = "dirty"; v.Count = 42 })

	store.Reset()

	assert.Equal(t, testValue{Name: "fresh"}, store.Snapshot())
}

func TestPersistWritesEnvelope(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewInMemoryStore()
	store := New("test", 2, defaults, backend)
	store.Set(func(v *testValue) { v.Count = 1 })

	require.NoError(t, store.Persist(ctx))

	raw, err := backend.Get(ctx, "test")
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, 2, env.SchemaVersion)
}

func TestClearRemovesBlob(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewInMemoryStore()
	store := New("test", 1, defaults, backend)
	store.Set(func(v *testValue) { v.Name = "dirty" })
	require.NoError(t, store.Persist(ctx))

	require.NoError(t, store.Clear(ctx))

	assert.Equal(t, testValue{Name: "fresh"}, store.Snapshot())
	_, err := backend.Get(ctx, "test")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
