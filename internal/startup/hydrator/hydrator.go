// Package hydrator bounds unbounded hydration calls so startup can never
// hang on a slow or wedged storage read.
package hydrator

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"cultivar/pkg/domainerrors"
)

// DefaultAuthTimeout bounds auth hydration specifically. Tunable in one
// place; call sites must not restate it.
const DefaultAuthTimeout = 5 * time.Second

// Outcome classifies how a race settled. Failure and timeout share the same
// cleanup path and differ only for logging and metrics.
type Outcome string

const (
	OutcomeHydrated Outcome = "hydrated"
	OutcomeFailed   Outcome = "failed"
	OutcomeTimedOut Outcome = "timed_out"
)

// Guard runs hydration races with single-fire fallback semantics.
type Guard struct {
	logger *slog.Logger
}

// Option configures a Guard.
type Option func(*Guard)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

func New(opts ...Option) *Guard {
	g := &Guard{logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Race starts hydrate and a timer of timeout; whichever settles first wins.
// If hydrate fails or the timer fires first, fallback runs - exactly once,
// and never after a confirmed-good hydration (a compare-and-swap settled
// flag closes the window where both paths could act). A hydrate call that
// loses the race is abandoned: its eventual result is logged and otherwise
// ignored, since the storage layer offers no cancellation primitive.
//
// Race always resolves; the returned error is the fallback's own failure,
// which callers treat as non-fatal.
func (g *Guard) Race(
	ctx context.Context,
	name string,
	hydrate func(context.Context) error,
	timeout time.Duration,
	fallback func(context.Context) error,
) (Outcome, error) {
	done := make(chan error, 1)
	var settled atomic.Bool

	go func() {
		done <- hydrate(ctx)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if !settled.CompareAndSwap(false, true) {
			return OutcomeHydrated, nil
		}
		if err != nil {
			g.logger.Warn("hydration failed, running fallback",
				"name", name, "error", err,
				"code", domainerrors.CodeHydrationFailure)
			return OutcomeFailed, g.runFallback(ctx, name, fallback)
		}
		return OutcomeHydrated, nil

	case <-timer.C:
		if !settled.CompareAndSwap(false, true) {
			return OutcomeHydrated, nil
		}
		g.logger.Warn("hydration timed out, running fallback",
			"name", name, "timeout", timeout,
			"code", domainerrors.CodeHydrationTimeout)
		g.watchAbandoned(name, done)
		return OutcomeTimedOut, g.runFallback(ctx, name, fallback)

	case <-ctx.Done():
		if !settled.CompareAndSwap(false, true) {
			return OutcomeHydrated, nil
		}
		g.watchAbandoned(name, done)
		return OutcomeFailed, g.runFallback(ctx, name, fallback)
	}
}

func (g *Guard) runFallback(ctx context.Context, name string, fallback func(context.Context) error) error {
	if fallback == nil {
		return nil
	}
	if err := fallback(ctx); err != nil {
		g.logger.Error("hydration fallback failed", "name", name, "error", err)
		return err
	}
	return nil
}

// watchAbandoned drains the abandoned hydrate result so the goroutine can
// exit, and records how the lost race eventually settled.
func (g *Guard) watchAbandoned(name string, done <-chan error) {
	go func() {
		err := <-done
		if err != nil {
			g.logger.Debug("abandoned hydration settled with error", "name", name, "error", err)
			return
		}
		g.logger.Debug("abandoned hydration settled successfully after race", "name", name)
	}()
}
