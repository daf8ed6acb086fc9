// Package agegate owns the age-verification slice of compliance state.
package agegate

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"cultivar/internal/state"
	"cultivar/internal/storage"
	"cultivar/pkg/domainerrors"
)

const (
	stateKey      = "agegate"
	schemaVersion = 1
)

// Status of the age gate.
type Status string

const (
	StatusUnverified Status = "unverified"
	StatusVerified   Status = "verified"
)

// ErrUnderage rejects verification attempts below the configured minimum.
var ErrUnderage = domainerrors.New(domainerrors.CodeInvalidInput, "minimum age requirement not met")

// State is the persisted age-gate slice. SessionID is non-empty only while
// Status is verified; a session starts exactly once per verification event.
type State struct {
	Status     Status    `json:"status"`
	SessionID  string    `json:"sessionId,omitempty"`
	VerifiedAt time.Time `json:"verifiedAt,omitzero"`
}

func defaultState() State { return State{Status: StatusUnverified} }

// Service wraps the persisted store with verification rules.
type Service struct {
	state      *state.Store[State]
	minimumAge int
	clock      func() time.Time
	logger     *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewService(store storage.Store, minimumAge int, opts ...Option) *Service {
	s := &Service{
		minimumAge: minimumAge,
		clock:      time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state = state.New(stateKey, schemaVersion, defaultState, store,
		state.WithLogger[State](s.logger))
	return s
}

func (s *Service) Snapshot() State { return s.state.Snapshot() }

func (s *Service) Hydrate(ctx context.Context) error { return s.state.Hydrate(ctx) }

// Verify asserts a birth date against the minimum age. On success the gate
// flips to verified; the session itself is started by the startup effect so
// verification and session bookkeeping stay separate.
func (s *Service) Verify(birthDate time.Time) error {
	now := s.clock()
	if age(birthDate, now) < s.minimumAge {
		return ErrUnderage
	}
	s.state.Set(func(v *State) {
		v.Status = StatusVerified
		v.VerifiedAt = now
	})
	return nil
}

// StartSession begins a verified session. Idempotent: while a session is
// active the existing ID is returned and started reports false.
func (s *Service) StartSession() (sessionID string, started bool) {
	s.state.Set(func(v *State) {
		if v.Status != StatusVerified {
			return
		}
		if v.SessionID != "" {
			sessionID = v.SessionID
			return
		}
		v.SessionID = uuid.NewString()
		sessionID = v.SessionID
		started = true
	})
	if started {
		s.logger.Info("age-gate session started", "session_id", sessionID)
	}
	return sessionID, started
}

// Reset wipes verification; used when a legal version bump forces a fresh
// compliance cycle.
func (s *Service) Reset() { s.state.Reset() }

func age(birthDate, now time.Time) int {
	years := now.Year() - birthDate.Year()
	anniversary := birthDate.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	return years
}
