package auth

import (
	"context"
	"log/slog"

	"cultivar/internal/state"
	"cultivar/internal/storage"
)

const (
	stateKey      = "auth"
	schemaVersion = 1
)

func defaultState() State { return State{Status: StatusIdle} }

// Service owns the persisted auth slice. Hydration additionally validates
// any cached token so stale sessions degrade to signed-out instead of
// presenting a half-authenticated UI.
type Service struct {
	state     *state.Store[State]
	validator *TokenValidator
	logger    *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(store storage.Store, validator *TokenValidator, opts ...Option) *Service {
	s := &Service{
		validator: validator,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state = state.New(stateKey, schemaVersion, defaultState, store,
		state.WithLogger[State](s.logger))
	return s
}

func (s *Service) Snapshot() State { return s.state.Snapshot() }

// Hydrate loads the persisted auth state and validates the cached token.
// An expired or malformed token downgrades to signed-out in the same pass.
func (s *Service) Hydrate(ctx context.Context) error {
	if err := s.state.Hydrate(ctx); err != nil {
		return err
	}
	snap := s.state.Snapshot()
	if snap.Token == "" {
		return nil
	}
	if _, err := s.validator.Validate(snap.Token); err != nil {
		s.logger.Warn("cached token rejected, signing out", "error", err)
		s.state.Set(func(v *State) {
			v.Status = StatusSignOut
			v.Token = ""
		})
	}
	return nil
}

// SignIn records a fresh token from a completed login flow.
func (s *Service) SignIn(token string) {
	s.state.Set(func(v *State) {
		v.Status = StatusSignIn
		v.Token = token
	})
}

func (s *Service) SignOut() {
	s.state.Set(func(v *State) {
		v.Status = StatusSignOut
		v.Token = ""
	})
}

// ClearAuthStorage is the hydration fallback: it wipes any persisted auth
// blob so the next launch starts clean. A sign-in that lands before the
// fallback fires is preserved - the guard re-reads state inside the call so
// the destructive path is skipped once a live session exists. The caller's
// single-fire race guard ensures this runs at most once.
func (s *Service) ClearAuthStorage(ctx context.Context) error {
	if s.state.Snapshot().SignedIn() {
		s.logger.Info("skipping auth cleanup, session already signed in")
		return nil
	}
	if err := s.state.Clear(ctx); err != nil {
		return err
	}
	// Memory-only downgrade: Clear's contract is that the next launch starts
	// from scratch, so no fresh blob may be flushed back.
	s.state.SetLocal(func(v *State) {
		v.Status = StatusSignOut
		v.Token = ""
	})
	return nil
}
