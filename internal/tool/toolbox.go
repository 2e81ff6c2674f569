package tool

import (
	"fmt"
	"sort"
	"sync"

	kiterrors "github.com/nate11235813/SonifiedLLMKit/internal/errors"
)

// Toolbox holds the fixed set of tools available to a process. Registration
// happens once at startup; lookups may run concurrently from any number of
// turns.
type Toolbox struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewToolbox() *Toolbox {
	return &Toolbox{
		tools: make(map[string]Tool),
	}
}

// Register inserts a tool. A duplicate name is a setup error, not a
// runtime condition.
func (b *Toolbox) Register(t Tool) error {
	name := NormalizeToolName(t.Name())
	if name == "" {
		return fmt.Errorf("empty tool name: %w", kiterrors.ErrInvalidInput)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.tools[name]; exists {
		return fmt.Errorf("%q: %w", name, kiterrors.ErrDuplicateTool)
	}
	b.tools[name] = t
	return nil
}

// MustRegister is Register for static startup wiring.
func (b *Toolbox) MustRegister(t Tool) {
	if err := b.Register(t); err != nil {
		panic(err)
	}
}

// Lookup returns absence rather than erroring.
func (b *Toolbox) Lookup(name string) (Tool, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.tools[NormalizeToolName(name)]
	return t, ok
}

// Get fails with ErrToolNotFound when the tool is absent.
func (b *Toolbox) Get(name string) (Tool, error) {
	t, ok := b.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%q: %w", NormalizeToolName(name), kiterrors.ErrToolNotFound)
	}
	return t, nil
}

// Descriptors returns (name, description, schema) for every registered
// tool, sorted by name.
func (b *Toolbox) Descriptors() []Descriptor {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.tools))
	for name := range b.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	descriptors := make([]Descriptor, 0, len(names))
	for _, name := range names {
		t := b.tools[name]
		descriptors = append(descriptors, Descriptor{
			Name:        name,
			Description: t.Description(),
			Schema:      t.Schema(),
		})
	}
	return descriptors
}
