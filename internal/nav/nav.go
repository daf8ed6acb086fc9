// Package nav abstracts the UI layer's navigation stack. The core only ever
// replaces the current location; push/pop semantics stay in the UI.
package nav

import "sync"

// Router receives routing commands from the startup orchestrator. Replace
// must be idempotent when already at path.
type Router interface {
	Replace(path string)
	Current() string
}

// Recorder is the in-process Router used by the corehost and tests: it
// tracks the current location and every effective replace so redirect-loop
// regressions are observable.
type Recorder struct {
	mu       sync.Mutex
	current  string
	replaces []string
}

func NewRecorder(initial string) *Recorder {
	return &Recorder{current: initial}
}

func (r *Recorder) Replace(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == path {
		return
	}
	r.current = path
	r.replaces = append(r.replaces, path)
}

func (r *Recorder) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// SetCurrent simulates the user navigating on their own (or the UI syncing
// its location into the core).
func (r *Recorder) SetCurrent(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = path
}

// Replaces returns the effective replace calls in order.
func (r *Recorder) Replaces() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.replaces...)
}
