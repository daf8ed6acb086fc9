package onboarding

import (
	"context"
	"log/slog"

	"cultivar/internal/state"
	"cultivar/internal/storage"
)

const (
	stateKey      = "onboarding"
	schemaVersion = 1

	// flowVersion tags the persisted state with the step-flow revision.
	flowVersion = 3
)

func defaultState() State {
	return State{
		Status:      StatusNotStarted,
		CurrentStep: StepAgeGate,
		Version:     flowVersion,
	}
}

// Machine owns the persisted onboarding slice and applies the pure
// transition rules to it.
type Machine struct {
	state  *state.Store[State]
	logger *slog.Logger
}

// Option configures the Machine.
type Option func(*Machine)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

func NewMachine(store storage.Store, opts ...Option) *Machine {
	m := &Machine{logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	m.state = state.New(stateKey, schemaVersion, defaultState, store,
		state.WithLogger[State](m.logger))
	return m
}

func (m *Machine) Snapshot() State { return m.state.Snapshot() }

func (m *Machine) Hydrate(ctx context.Context) error { return m.state.Hydrate(ctx) }

// Complete advances the machine when step is the expected next step;
// anything else is a no-op. Advancing marks the flow in-progress, and
// reaching the terminal step marks it completed.
func (m *Machine) Complete(step Step) {
	m.state.Set(func(v *State) {
		advanced := CompleteStep(v.CurrentStep, step)
		if advanced == v.CurrentStep {
			return
		}
		v.CurrentStep = advanced
		if advanced == StepCompleted {
			v.Status = StatusCompleted
		} else {
			v.Status = StatusInProgress
		}
	})
}

// Begin marks the flow in-progress without advancing; called when the user
// lands on the first onboarding screen.
func (m *Machine) Begin() {
	m.state.Set(func(v *State) {
		if v.Status == StatusNotStarted {
			v.Status = StatusInProgress
		}
	})
}

// Reset rewinds to a fresh flow; the only back-transition.
func (m *Machine) Reset() { m.state.Reset() }

// NeedsOnboarding derives the routing predicate from the current snapshot.
func (m *Machine) NeedsOnboarding() bool {
	snap := m.state.Snapshot()
	return ShouldShowOnboarding(snap.Status, snap.CurrentStep)
}
