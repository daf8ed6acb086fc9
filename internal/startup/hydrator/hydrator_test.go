package hydrator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRaceHydrateWinsNoFallback(t *testing.T) {
	guard := New()
	var fallbacks atomic.Int32

	outcome, err := guard.Race(context.Background(), "auth",
		func(context.Context) error { return nil },
		100*time.Millisecond,
		func(context.Context) error { fallbacks.Add(1); return nil },
	)

	require.NoError(t, err)
	assert.Equal(t, OutcomeHydrated, outcome)
	assert.Equal(t, int32(0), fallbacks.Load())
}

func TestRaceTimeoutRunsFallbackOnce(t *testing.T) {
	guard := New()
	var fallbacks atomic.Int32

	start := time.Now()
	outcome, err := guard.Race(context.Background(), "auth",
		func(ctx context.Context) error {
			time.Sleep(300 * time.Millisecond)
			return errors.New("too late anyway")
		},
		50*time.Millisecond,
		func(context.Context) error { fallbacks.Add(1); return nil },
	)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, OutcomeTimedOut, outcome)
	assert.Equal(t, int32(1), fallbacks.Load())
	// The race resolves at the timeout, not when the slow hydrate settles.
	assert.Less(t, elapsed, 250*time.Millisecond)

	// The abandoned hydrate settling later must not re-trigger the fallback.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), fallbacks.Load())
}

func TestRaceHydrateErrorRunsFallback(t *testing.T) {
	guard := New()
	var fallbacks atomic.Int32

	outcome, err := guard.Race(context.Background(), "auth",
		func(context.Context) error { return errors.New("corrupt blob") },
		time.Second,
		func(context.Context) error { fallbacks.Add(1); return nil },
	)

	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, int32(1), fallbacks.Load())
}

func TestRaceFallbackErrorIsReturned(t *testing.T) {
	guard := New()
	boom := errors.New("cleanup failed")

	outcome, err := guard.Race(context.Background(), "auth",
		func(context.Context) error { return errors.New("nope") },
		time.Second,
		func(context.Context) error { return boom },
	)

	assert.Equal(t, OutcomeFailed, outcome)
	assert.ErrorIs(t, err, boom)
}

func TestRaceNilFallback(t *testing.T) {
	guard := New()

	outcome, err := guard.Race(context.Background(), "favorites",
		func(context.Context) error { return errors.New("nope") },
		time.Second,
		nil,
	)

	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
}

func TestRaceContextCancellation(t *testing.T) {
	guard := New()
	ctx, cancel := context.WithCancel(context.Background())
	var fallbacks atomic.Int32

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	outcome, err := guard.Race(ctx, "auth",
		func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
		5*time.Second,
		func(context.Context) error { fallbacks.Add(1); return nil },
	)

	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, int32(1), fallbacks.Load())
}
