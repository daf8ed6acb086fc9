package consent

import (
	"sort"
	"sync"
)

// SDK describes one third-party SDK subject to consent gating.
type SDK struct {
	Name     string
	Category Category
	Domains  []string
}

// Registry tracks which SDKs need consent before they may transmit. SDKs
// register once at bootstrap; registration is what makes the consent modal
// required on first run.
type Registry struct {
	mu   sync.RWMutex
	sdks map[string]SDK
}

func NewRegistry() *Registry {
	return &Registry{sdks: make(map[string]SDK)}
}

// RegisterSDK adds or replaces an SDK entry.
func (r *Registry) RegisterSDK(name string, category Category, domains []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sdks[name] = SDK{Name: name, Category: category, Domains: append([]string(nil), domains...)}
}

// SDKs returns registered SDKs in name order.
func (r *Registry) SDKs() []SDK {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SDK, 0, len(r.sdks))
	for _, sdk := range r.sdks {
		out = append(out, sdk)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Empty reports whether any SDK is registered at all.
func (r *Registry) Empty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sdks) == 0
}
