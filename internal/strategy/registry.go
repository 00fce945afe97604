package strategy

import (
	"sort"
	"strings"
	"sync"

	"amp-engine/internal/models"
)

// Registry maps module ids to constructors so that amp settings can select
// which strategies run. Registration happens at startup; lookups during
// evaluation cycles are read-only.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Module
}

// NewRegistry creates a registry pre-loaded with the built-in modules.
func NewRegistry() *Registry {
	r := &Registry{modules: make(map[string]Module)}
	r.Register(NewMomentum())
	r.Register(NewMeanReversion())
	r.Register(NewBreakout())
	return r
}

// Register adds a module, replacing any module with the same id.
func (r *Registry) Register(m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[m.ID()] = m
}

// Get returns the module with the given id.
func (r *Registry) Get(id string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[id]
	return m, ok
}

// IDs returns the registered module ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.modules))
	for id := range r.modules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ForAmp resolves the modules an amp runs. The amp's "modules" setting is a
// comma-separated id list; unset or unknown-only lists fall back to every
// registered module. Result order is deterministic.
func (r *Registry) ForAmp(amp models.LayerAmp) []Module {
	var wanted []string
	if raw, ok := amp.Settings["modules"]; ok && raw != "" {
		for _, id := range strings.Split(raw, ",") {
			wanted = append(wanted, strings.TrimSpace(id))
		}
	}

	var out []Module
	if len(wanted) > 0 {
		sort.Strings(wanted)
		for _, id := range wanted {
			if m, ok := r.Get(id); ok {
				out = append(out, m)
			}
		}
	}
	if len(out) == 0 {
		for _, id := range r.IDs() {
			m, _ := r.Get(id)
			out = append(out, m)
		}
	}
	return out
}
