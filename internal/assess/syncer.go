package assess

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultSyncInterval is how often the syncer attempts a drain.
const DefaultSyncInterval = 30 * time.Second

// Uploader ships one assessment to the backend.
type Uploader interface {
	Upload(ctx context.Context, a Assessment) error
}

// Syncer drains the queue in capture order. A failed upload stops the pass;
// the remaining entries wait for the next tick so ordering is preserved and
// a dead backend is not hammered per item.
type Syncer struct {
	queue     *Queue
	uploader  Uploader
	interval  time.Duration
	newTicker func(time.Duration) (<-chan time.Time, func())
	logger    *slog.Logger
}

// SyncerOption configures the Syncer.
type SyncerOption func(*Syncer)

func WithSyncerLogger(logger *slog.Logger) SyncerOption {
	return func(s *Syncer) {
		s.logger = logger
	}
}

func WithSyncInterval(interval time.Duration) SyncerOption {
	return func(s *Syncer) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithSyncerTicker injects the tick source (primarily for tests).
func WithSyncerTicker(factory func(time.Duration) (<-chan time.Time, func())) SyncerOption {
	return func(s *Syncer) {
		if factory != nil {
			s.newTicker = factory
		}
	}
}

func NewSyncer(queue *Queue, uploader Uploader, opts ...SyncerOption) *Syncer {
	s := &Syncer{
		queue:    queue,
		uploader: uploader,
		interval: DefaultSyncInterval,
		newTicker: func(interval time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(interval)
			return t.C, t.Stop
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run drains on every tick until ctx is cancelled. An initial drain runs on
// entry so captures from a previous session upload without waiting a full
// interval.
func (s *Syncer) Run(ctx context.Context) error {
	if err := s.Drain(ctx); err != nil {
		s.logger.Warn("initial assessment drain incomplete", "error", err)
	}

	ticks, stop := s.newTicker(s.interval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticks:
			if err := s.Drain(ctx); err != nil {
				s.logger.Warn("assessment drain incomplete", "error", err)
			}
		}
	}
}

// LogUploader accepts every upload and logs it; the corehost runs with it
// until the sync backend is wired in.
type LogUploader struct {
	logger *slog.Logger
}

func NewLogUploader(logger *slog.Logger) *LogUploader {
	return &LogUploader{logger: logger}
}

func (u *LogUploader) Upload(_ context.Context, a Assessment) error {
	u.logger.Info("assessment uploaded", "assessment_id", a.ID, "plant_id", a.PlantID)
	return nil
}

// Drain uploads pending assessments oldest-first, acknowledging each as it
// lands. Returns the first upload error, leaving the rest queued.
func (s *Syncer) Drain(ctx context.Context) error {
	pending, err := s.queue.Pending(ctx)
	if err != nil {
		return err
	}
	for _, a := range pending {
		if err := s.uploader.Upload(ctx, a); err != nil {
			return fmt.Errorf("upload assessment %s: %w", a.ID, err)
		}
		if err := s.queue.Ack(ctx, a.ID); err != nil {
			return err
		}
		s.logger.Debug("assessment uploaded", "assessment_id", a.ID, "plant_id", a.PlantID)
	}
	return nil
}
