package exchange

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory builds a raw venue. Factories are registered by venue id.
type Factory func() (Venue, error)

// Registry maps venue ids (e.g. "binance", "paper") to their factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

func (r *Registry) Register(name string, f Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || f == nil {
		return
	}
	r.mu.Lock()
	r.factories[key] = f
	r.mu.Unlock()
}

// New builds the venue registered under name.
func (r *Registry) New(name string) (Venue, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	f, ok := r.factories[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownVenue, name, strings.Join(r.Names(), ", "))
	}
	v, err := f()
	if err != nil {
		return nil, fmt.Errorf("init venue %s: %w", key, err)
	}
	return v, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
