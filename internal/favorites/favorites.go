// Package favorites persists the user's saved strains. Hydrated after auth
// settles because favorites may be re-keyed to the resolved user.
package favorites

import (
	"context"
	"log/slog"
	"slices"

	"cultivar/internal/state"
	"cultivar/internal/storage"
)

const (
	stateKey      = "favorites"
	schemaVersion = 1
)

// State is the persisted favorites slice.
type State struct {
	StrainIDs []string `json:"strainIds"`
}

func defaultState() State { return State{} }

// Service wraps the persisted favorites store.
type Service struct {
	state  *state.Store[State]
	logger *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(store storage.Store, opts ...Option) *Service {
	s := &Service{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.state = state.New(stateKey, schemaVersion, defaultState, store,
		state.WithLogger[State](s.logger),
		state.WithClone[State](func(v State) State {
			v.StrainIDs = slices.Clone(v.StrainIDs)
			return v
		}))
	return s
}

func (s *Service) Hydrate(ctx context.Context) error { return s.state.Hydrate(ctx) }

func (s *Service) List() []string {
	return s.state.Snapshot().StrainIDs
}

// Add is idempotent.
func (s *Service) Add(strainID string) {
	s.state.Set(func(v *State) {
		if slices.Contains(v.StrainIDs, strainID) {
			return
		}
		v.StrainIDs = append(v.StrainIDs, strainID)
	})
}

func (s *Service) Remove(strainID string) {
	s.state.Set(func(v *State) {
		v.StrainIDs = slices.DeleteFunc(v.StrainIDs, func(id string) bool {
			return id == strainID
		})
	})
}
