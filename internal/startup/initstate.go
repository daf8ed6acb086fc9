package startup

import "sync"

// InitState tracks one-time initializations (crash reporter, telemetry SDK,
// filesystem prep) behind a guarded setter. Constructed once at bootstrap
// and passed to whoever needs it, instead of module-scoped booleans read as
// ambient global state.
type InitState struct {
	mu          sync.Mutex
	initialized map[string]bool
}

func NewInitState() *InitState {
	return &InitState{initialized: make(map[string]bool)}
}

// MarkInitialized claims the named initialization. Returns false when it was
// already claimed; callers skip their init work in that case.
func (s *InitState) MarkInitialized(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized[name] {
		return false
	}
	s.initialized[name] = true
	return true
}

// Initialized reports whether the named initialization has run.
func (s *InitState) Initialized(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized[name]
}
