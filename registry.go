package volcache

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Registry holds named sources. Applications serving several volumes keep
// one Registry instead of package-level state.
//
// A Registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]*Source
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]*Source)}
}

// Register adds s under name. It fails with ErrDuplicateName if the name is
// taken.
func (r *Registry) Register(name string, s *Source) error {
	if s == nil {
		return fmt.Errorf("%w: nil source %q", ErrInvalidArgument, name)
	}
	if name == "" {
		return fmt.Errorf("%w: empty source name", ErrInvalidArgument)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sources[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	r.sources[name] = s
	return nil
}

// Get returns the source registered under name.
func (r *Registry) Get(name string) (*Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[name]
	return s, ok
}

// Unregister removes name and returns its source without closing it.
func (r *Registry) Unregister(name string) (*Source, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sources[name]
	delete(r.sources, name)
	return s, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	r.mu.RUnlock()
	slices.Sort(names)
	return names
}

// Close closes and removes every source. Errors are joined.
func (r *Registry) Close() error {
	r.mu.Lock()
	sources := r.sources
	r.sources = make(map[string]*Source)
	r.mu.Unlock()

	var errs []error
	for name, s := range sources {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
