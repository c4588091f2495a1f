package ingest

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Adapter parses one provider's native webhook payloads into canonical
// events. Implementations own event-type discrimination, direction
// inference, media field fallback chains, and chat-type inference for
// their provider; none of that leaks past Parse.
//
// Unrecognized-but-well-formed notification types yield an empty event
// slice and a nil error so provider schema drift is tolerated. A
// *ParseError is returned only for malformed payloads or recognized
// events missing mandatory fields (message id, chat id).
type Adapter interface {
	Provider() string
	Parse(body []byte) ([]Event, error)
}

// Registry holds the known provider adapters keyed by provider name.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter. Duplicate provider names are an error.
func (r *Registry) Register(a Adapter) error {
	if a == nil {
		return fmt.Errorf("register nil adapter")
	}
	name := strings.ToLower(strings.TrimSpace(a.Provider()))
	if name == "" {
		return fmt.Errorf("register adapter with empty provider name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("adapter %q already registered", name)
	}
	r.adapters[name] = a
	return nil
}

// MustRegister adds an adapter and panics on conflict. Used at wiring
// time where a duplicate registration is a programming error.
func (r *Registry) MustRegister(a Adapter) {
	if err := r.Register(a); err != nil {
		panic(err)
	}
}

// Get returns the adapter for the given provider name.
func (r *Registry) Get(provider string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[strings.ToLower(strings.TrimSpace(provider))]
	return a, ok
}

// Providers lists the registered provider names, sorted.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
