package engine

import (
	"fmt"
	"sync"
)

// Factory constructs a backend instance on first acquire.
type Factory func() (Engine, error)

// Backends is a process-wide reference-counted registry of engine
// backends. Backend runtimes often carry expensive global state (threads,
// GPU contexts); modelling init/teardown as explicit acquire/release
// keeps that lifecycle out of ambient globals.
type Backends struct {
	mu        sync.Mutex
	factories map[string]Factory
	active    map[string]*backendRef
}

type backendRef struct {
	engine Engine
	refs   int
}

func NewBackends() *Backends {
	return &Backends{
		factories: make(map[string]Factory),
		active:    make(map[string]*backendRef),
	}
}

// RegisterFactory records a backend constructor under a unique name.
func (b *Backends) RegisterFactory(name string, factory Factory) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.factories[name]; exists {
		return fmt.Errorf("backend %q already registered", name)
	}
	b.factories[name] = factory
	return nil
}

// Acquire returns the named backend, constructing it on the first
// reference. Each Acquire must be paired with exactly one Release.
func (b *Backends) Acquire(name string) (Engine, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ref, ok := b.active[name]; ok {
		ref.refs++
		return ref.engine, nil
	}

	factory, ok := b.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown backend %q", name)
	}
	eng, err := factory()
	if err != nil {
		return nil, fmt.Errorf("construct backend %q: %w", name, err)
	}
	b.active[name] = &backendRef{engine: eng, refs: 1}
	return eng, nil
}

// Release drops one reference; the backend is unloaded when the last
// reference goes away.
func (b *Backends) Release(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ref, ok := b.active[name]
	if !ok {
		return fmt.Errorf("backend %q is not acquired", name)
	}
	ref.refs--
	if ref.refs > 0 {
		return nil
	}
	delete(b.active, name)
	return ref.engine.Unload()
}

// Refs reports the current reference count for a backend.
func (b *Backends) Refs(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ref, ok := b.active[name]; ok {
		return ref.refs
	}
	return 0
}
