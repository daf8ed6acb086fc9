package legal

import (
	"context"
	"log/slog"
	"maps"
	"time"

	"cultivar/internal/state"
	"cultivar/internal/storage"
)

const (
	stateKey      = "legal"
	schemaVersion = 1
)

func defaultState() State {
	return State{Accepted: map[string]Acceptance{}}
}

// Service wraps the persisted acceptance store.
type Service struct {
	state  *state.Store[State]
	clock  func() time.Time
	logger *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewService(store storage.Store, opts ...Option) *Service {
	s := &Service{
		clock:  time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state = state.New(stateKey, schemaVersion, defaultState, store,
		state.WithLogger[State](s.logger),
		state.WithClone[State](cloneState))
	return s
}

// cloneState detaches the acceptance map so snapshot readers (the
// reconciler, the transport layer) never alias the live value.
func cloneState(v State) State {
	copied := make(map[string]Acceptance, len(v.Accepted))
	maps.Copy(copied, v.Accepted)
	v.Accepted = copied
	return v
}

func (s *Service) Snapshot() State { return s.state.Snapshot() }

func (s *Service) Hydrate(ctx context.Context) error { return s.state.Hydrate(ctx) }

// Accept records acceptance of one document version.
func (s *Service) Accept(docID string, version int) {
	now := s.clock()
	s.state.Set(func(v *State) {
		if v.Accepted == nil {
			v.Accepted = map[string]Acceptance{}
		}
		v.Accepted[docID] = Acceptance{AcceptedVersion: version, AcceptedAt: now}
	})
}

// AcceptAll records acceptance of every document in the required table in a
// single write; the legal-confirmation screen accepts as a bundle.
func (s *Service) AcceptAll(required RequiredVersions) {
	now := s.clock()
	s.state.Set(func(v *State) {
		if v.Accepted == nil {
			v.Accepted = map[string]Acceptance{}
		}
		for docID, version := range required {
			v.Accepted[docID] = Acceptance{AcceptedVersion: version, AcceptedAt: now}
		}
	})
}

// Reset wipes all acceptances; part of the forced compliance-cycle reset.
func (s *Service) Reset() { s.state.Reset() }
