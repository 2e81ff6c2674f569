package tool

import (
	"fmt"
	"sort"
	"sync"
)

// BuiltinOptions carries process-level settings builtin tools need at
// construction time.
type BuiltinOptions struct {
	// FileRoot confines file tools; paths resolving outside it are rejected.
	FileRoot string
}

type BuiltinFactory func(options BuiltinOptions) (Tool, error)

var (
	builtinMu        sync.Mutex
	builtinFactories = map[string]BuiltinFactory{}
)

// RegisterBuiltin records a factory under a unique name. Called from
// builtin package init functions.
func RegisterBuiltin(name string, factory BuiltinFactory) {
	builtinMu.Lock()
	defer builtinMu.Unlock()
	name = NormalizeToolName(name)
	if name == "" {
		panic("tool: empty builtin name")
	}
	if _, exists := builtinFactories[name]; exists {
		panic("tool: builtin registered twice: " + name)
	}
	builtinFactories[name] = factory
}

// BuiltinNames lists all registered builtin factories, sorted.
func BuiltinNames() []string {
	builtinMu.Lock()
	defer builtinMu.Unlock()
	names := make([]string, 0, len(builtinFactories))
	for name := range builtinFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewBuiltinToolbox constructs a toolbox holding the named builtins, or
// every builtin when names is empty.
func NewBuiltinToolbox(names []string, options BuiltinOptions) (*Toolbox, error) {
	if len(names) == 0 {
		names = BuiltinNames()
	}

	box := NewToolbox()
	for _, name := range names {
		builtinMu.Lock()
		factory, ok := builtinFactories[NormalizeToolName(name)]
		builtinMu.Unlock()
		if !ok {
			return nil, fmt.Errorf("unknown builtin tool %q", name)
		}
		t, err := factory(options)
		if err != nil {
			return nil, fmt.Errorf("construct builtin %q: %w", name, err)
		}
		if err := box.Register(t); err != nil {
			return nil, err
		}
	}
	return box, nil
}
