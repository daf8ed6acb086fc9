package consent

import (
	"context"
	"log/slog"
	"time"

	"cultivar/internal/audit"
	"cultivar/internal/state"
	"cultivar/internal/storage"
	"cultivar/pkg/domainerrors"
)

const (
	stateKey      = "consent"
	schemaVersion = 1
)

func defaultState() State { return State{} }

// Service persists consent decisions and answers SDK gating queries.
type Service struct {
	state         *state.Store[State]
	registry      *Registry
	publisher     *audit.Publisher
	policyVersion string
	clock         func() time.Time
	logger        *slog.Logger
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

func NewService(store storage.Store, registry *Registry, publisher *audit.Publisher, policyVersion string, opts ...Option) *Service {
	s := &Service{
		registry:      registry,
		publisher:     publisher,
		policyVersion: policyVersion,
		clock:         time.Now,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state = state.New(stateKey, schemaVersion, defaultState, store,
		state.WithLogger[State](s.logger))
	return s
}

func (s *Service) Snapshot() State { return s.state.Snapshot() }

// Hydrate loads any persisted decision. A decision read back from storage is
// by definition durably persisted, so gating re-opens for granted
// categories on the launch after a failed write was retried successfully.
func (s *Service) Hydrate(ctx context.Context) error {
	if err := s.state.Hydrate(ctx); err != nil {
		return err
	}
	snap := s.state.Snapshot()
	if snap.Acquired && !snap.PersistConfirmed {
		s.state.Set(func(v *State) { v.PersistConfirmed = true })
	}
	return nil
}

// IsConsentRequired reports whether the consent modal must be shown: gated
// SDKs exist and either no decision was acquired or the policy version has
// moved on since the stored decision.
func (s *Service) IsConsentRequired() bool {
	if s.registry.Empty() {
		return false
	}
	snap := s.state.Snapshot()
	if !snap.Acquired {
		return true
	}
	return snap.Meta.PolicyVersion != s.policyVersion
}

// SetConsents records the user's decision. The in-memory decision always
// takes effect for the current session; the durable write and its paired
// audit record decide whether SDK gating opens. A persistence failure is
// returned as CodeConsentPersistFailure so callers can surface it, but the
// session decision stands (fail-open UX, fail-closed gating).
func (s *Service) SetConsents(ctx context.Context, values Values, meta Meta) error {
	if meta.PolicyVersion == "" {
		meta.PolicyVersion = s.policyVersion
	}
	now := s.clock()

	s.state.Set(func(v *State) {
		v.Values = values
		v.Meta = meta
		v.Acquired = true
		v.DecidedAtUnix = now.Unix()
		v.PersistConfirmed = false
	})

	if err := s.state.Persist(ctx); err != nil {
		s.logger.Error("persist consent decision", "error", err,
			"code", domainerrors.CodeConsentPersistFailure)
		return domainerrors.Wrap(domainerrors.CodeConsentPersistFailure,
			"consent decision not durably persisted", err)
	}

	if err := s.publisher.Emit(ctx, audit.Event{
		Action:        audit.ActionConsentSet,
		Timestamp:     now,
		PolicyVersion: meta.PolicyVersion,
		LawfulBasis:   meta.LawfulBasis,
		Region:        meta.Region,
		UISurface:     meta.UISurface,
		Detail: map[string]any{
			"telemetry":        values.Telemetry,
			"experiments":      values.Experiments,
			"aiTraining":       values.AITraining,
			"crashDiagnostics": values.CrashDiagnostics,
		},
	}); err != nil {
		s.logger.Error("append consent audit record", "error", err,
			"code", domainerrors.CodeConsentPersistFailure)
		return domainerrors.Wrap(domainerrors.CodeConsentPersistFailure,
			"consent audit record not recorded", err)
	}

	s.state.Set(func(v *State) { v.PersistConfirmed = true })
	return nil
}

// Allowed answers the gating question for one SDK category: the category
// must be granted and the grant must be durably persisted.
func (s *Service) Allowed(category Category) bool {
	snap := s.state.Snapshot()
	return snap.PersistConfirmed && snap.Values.Granted(category)
}

// Reset wipes the decision; the modal becomes required again.
func (s *Service) Reset() { s.state.Reset() }
