package callback

import (
	"fmt"
	"sort"

	"blocklens/pkg/engine"
)

// Constructor builds a fresh callback instance; the engine owns exactly
// one per run, so callbacks are free to hold run-scoped state.
type Constructor func() engine.Callback

var registry = map[string]Constructor{}

// Register adds a callback constructor under name. Called from each
// callback's package-level init(), the same self-registering map pattern
// gRPC's generated code uses for service registration.
func Register(name string, ctor Constructor) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("callback: duplicate registration for %q", name))
	}
	registry[name] = ctor
}

// Names returns every registered callback name, sorted, for the help
// callback and for --callback flag validation.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New constructs the named callback, or an error listing valid names.
func New(name string) (engine.Callback, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("callback: unknown callback %q (available: %v)", name, Names())
	}
	return ctor(), nil
}
