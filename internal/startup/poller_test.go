package startup

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cultivar/internal/notify"
)

type manualTicker struct {
	ch chan time.Time
}

func (m *manualTicker) factory(time.Duration) (<-chan time.Time, func()) {
	return m.ch, func() {}
}

func (m *manualTicker) tick() {
	m.ch <- time.Now()
}

// settableTimezone is a thread-safe resolve function for the poller.
type settableTimezone struct {
	mu sync.Mutex
	tz string
}

func (s *settableTimezone) set(tz string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tz = tz
}

func (s *settableTimezone) get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tz
}

func TestPollerReplansOncePerDetectedChange(t *testing.T) {
	tz := &settableTimezone{tz: "America/Los_Angeles"}
	scheduler := notify.NewLogScheduler(slog.Default())
	ticker := &manualTicker{ch: make(chan time.Time)}

	poller := NewTimezonePoller(time.Minute, tz.get, scheduler, WithTicker(ticker.factory))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()

	// Unchanged timezone: ticks are no-ops.
	ticker.tick()
	ticker.tick()
	assert.EqualValues(t, 0, scheduler.Rehydrates())

	// One change, then several quiet ticks: exactly one re-plan.
	tz.set("America/New_York")
	ticker.tick()
	require.Eventually(t, func() bool { return scheduler.Rehydrates() == 1 },
		time.Second, 5*time.Millisecond)
	ticker.tick()
	ticker.tick()
	assert.EqualValues(t, 1, scheduler.Rehydrates())

	// A second change fires again.
	tz.set("Europe/Berlin")
	ticker.tick()
	require.Eventually(t, func() bool { return scheduler.Rehydrates() == 2 },
		time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestPollerBaselineTakenOnEntry(t *testing.T) {
	tz := &settableTimezone{tz: "America/Los_Angeles"}
	scheduler := notify.NewLogScheduler(slog.Default())
	ticker := &manualTicker{ch: make(chan time.Time)}

	poller := NewTimezonePoller(time.Minute, tz.get, scheduler, WithTicker(ticker.factory))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()

	// The first tick compares against the snapshot taken when Run started,
	// so a change before that tick is still caught.
	tz.set("Asia/Tokyo")
	ticker.tick()
	require.Eventually(t, func() bool { return scheduler.Rehydrates() == 1 },
		time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestInitStateClaimsOnce(t *testing.T) {
	s := NewInitState()

	assert.True(t, s.MarkInitialized("crash-reporter"))
	assert.False(t, s.MarkInitialized("crash-reporter"))
	assert.True(t, s.Initialized("crash-reporter"))
	assert.False(t, s.Initialized("telemetry"))
	assert.True(t, s.MarkInitialized("telemetry"))
}
