// Package notify defines the push-notification scheduler contract. Planning
// internals live in the platform layer; the core only requests permissions
// and triggers re-plans on timezone changes.
package notify

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Scheduler is what the startup orchestrator needs from notifications.
type Scheduler interface {
	RequestPermissions(ctx context.Context) error
	// RehydrateNotifications re-plans pending notifications against the
	// given timezone.
	RehydrateNotifications(ctx context.Context, timezone string) error
}

// LogScheduler records scheduler calls without touching any platform API;
// the corehost uses it until a platform bridge is wired, and tests use it
// to count re-plans.
type LogScheduler struct {
	logger      *slog.Logger
	rehydrates  atomic.Int64
	permissions atomic.Int64
}

func NewLogScheduler(logger *slog.Logger) *LogScheduler {
	return &LogScheduler{logger: logger}
}

func (s *LogScheduler) RequestPermissions(context.Context) error {
	s.permissions.Add(1)
	s.logger.Info("notification permissions requested")
	return nil
}

// PermissionRequests reports how many permission prompts have been asked for.
func (s *LogScheduler) PermissionRequests() int64 { return s.permissions.Load() }

func (s *LogScheduler) RehydrateNotifications(_ context.Context, timezone string) error {
	s.rehydrates.Add(1)
	s.logger.Info("notifications replanned", "timezone", timezone)
	return nil
}

// Rehydrates reports how many re-plans have run.
func (s *LogScheduler) Rehydrates() int64 { return s.rehydrates.Load() }
