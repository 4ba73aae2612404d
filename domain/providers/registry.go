package providers

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/voxlane/voxlane-core/domain/integrations"
)

// Registry holds the registered adapters keyed by provider.
type Registry struct {
	mu       sync.RWMutex
	adapters map[integrations.Provider]Adapter
	log      *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		adapters: make(map[integrations.Provider]Adapter),
		log:      log,
	}
}

// Register adds an adapter. Registering the same provider twice replaces the
// earlier adapter.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Provider()] = a
}

// Get returns the adapter for a provider.
func (r *Registry) Get(p integrations.Provider) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[p]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for provider %q", p)
	}
	return a, nil
}

// Lister returns the adapter's inbound capability, when it has one.
func (r *Registry) Lister(p integrations.Provider) (RecordLister, bool) {
	a, err := r.Get(p)
	if err != nil {
		return nil, false
	}
	l, ok := a.(RecordLister)
	return l, ok
}

// Pusher returns the adapter's outbound capability, when it has one.
func (r *Registry) Pusher(p integrations.Provider) (RecordPusher, bool) {
	a, err := r.Get(p)
	if err != nil {
		return nil, false
	}
	pu, ok := a.(RecordPusher)
	return pu, ok
}

// Providers lists the registered providers.
func (r *Registry) Providers() []integrations.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]integrations.Provider, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	return out
}
