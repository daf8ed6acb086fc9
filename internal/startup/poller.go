package startup

import (
	"context"
	"log/slog"
	"time"

	"cultivar/internal/notify"
	"cultivar/internal/startup/metrics"
)

// DefaultTimezonePollInterval is how often the device timezone is
// re-checked. Polling is the cross-platform-safe strategy here: neither
// mobile platform exposes a reliable "timezone changed" event to an embedded
// core, so a low-frequency snapshot comparison is the documented tradeoff.
const DefaultTimezonePollInterval = 60 * time.Second

// TickerFactory lets tests inject a manual tick channel. The stop function
// releases timer resources.
type TickerFactory func(interval time.Duration) (ticks <-chan time.Time, stop func())

func defaultTicker(interval time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(interval)
	return t.C, t.Stop
}

// TimezonePoller re-plans notifications when the device timezone changes
// between ticks. A re-plan fires only on the tick where the change is
// detected, never once per tick.
type TimezonePoller struct {
	interval  time.Duration
	resolve   func() string
	scheduler notify.Scheduler
	newTicker TickerFactory
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// PollerOption configures the TimezonePoller.
type PollerOption func(*TimezonePoller)

func WithPollerLogger(logger *slog.Logger) PollerOption {
	return func(p *TimezonePoller) {
		p.logger = logger
	}
}

func WithPollerMetrics(m *metrics.Metrics) PollerOption {
	return func(p *TimezonePoller) {
		p.metrics = m
	}
}

// WithTicker injects the tick source (primarily for tests).
func WithTicker(factory TickerFactory) PollerOption {
	return func(p *TimezonePoller) {
		if factory != nil {
			p.newTicker = factory
		}
	}
}

func NewTimezonePoller(interval time.Duration, resolve func() string, scheduler notify.Scheduler, opts ...PollerOption) *TimezonePoller {
	p := &TimezonePoller{
		interval:  interval,
		resolve:   resolve,
		scheduler: scheduler,
		newTicker: defaultTicker,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls until ctx is cancelled. The baseline snapshot is taken on entry
// so a change that happened before the first tick is still detected.
func (p *TimezonePoller) Run(ctx context.Context) error {
	last := p.resolve()
	ticks, stop := p.newTicker(p.interval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticks:
			current := p.resolve()
			if current == last {
				continue
			}
			p.logger.Info("device timezone changed", "from", last, "to", current)
			last = current
			p.metrics.IncTimezoneChange()
			if err := p.scheduler.RehydrateNotifications(ctx, current); err != nil {
				p.logger.Error("notification replan failed", "timezone", current, "error", err)
			}
		}
	}
}
