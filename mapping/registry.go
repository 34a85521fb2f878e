package mapping

import (
	"fmt"
	"sync"

	"github.com/c360/twinbridge/errors"
)

// Factory constructs a fresh, unconfigured Mapper instance for one engine.
// Grounded on the teacher's payload registry, which keys a factory by
// alias rather than constructing the value directly so every mapping
// context gets its own instance (component/payload_registry.go).
type Factory func() Mapper

// Registry is a thread-safe catalogue of mapper engines keyed by name. The
// built-in engines are registered once at startup; a host may additionally
// register its own engines under any other name (spec.md §4.2). The
// registry does not limit how many such engines are registered.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]Factory
}

// NewRegistry returns a Registry with the three built-in engines already
// registered.
func NewRegistry() *Registry {
	r := &Registry{engines: make(map[string]Factory)}
	r.mustRegister(EngineTwinProtocol, func() Mapper { return NewTwinMapper() })
	r.mustRegister(EngineAddHeader, func() Mapper { return NewAddHeaderMapper() })
	r.mustRegister(EngineConnectionStatus, func() Mapper { return NewConnectionStatusMapper() })
	return r
}

func (r *Registry) mustRegister(name string, f Factory) {
	if err := r.RegisterEngine(name, f); err != nil {
		panic(err)
	}
}

// RegisterEngine installs a named engine factory, replacing any factory a
// host registered earlier under the same name. Built-in engine names may
// not be overwritten.
func (r *Registry) RegisterEngine(name string, f Factory) error {
	if name == "" || f == nil {
		return errors.WrapInvalid(errors.ErrConnectionConfigurationInvalid, "mapping.Registry", "RegisterEngine", "name and factory required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.engines[name]; exists && isBuiltin(name) {
		return errors.WrapInvalid(errors.ErrConnectionConfigurationInvalid, "mapping.Registry", "RegisterEngine",
			fmt.Sprintf("engine %q is built-in and cannot be overridden", name))
	}
	r.engines[name] = f
	return nil
}

func isBuiltin(name string) bool {
	switch name {
	case EngineTwinProtocol, EngineAddHeader, EngineConnectionStatus:
		return true
	default:
		return false
	}
}

// Instantiate creates and configures a Mapper for the named engine.
func (r *Registry) Instantiate(engine string, options map[string]string) (Mapper, error) {
	r.mu.RLock()
	factory, ok := r.engines[engine]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: unknown mapping engine %q", errors.ErrConnectionConfigurationInvalid, engine),
			"mapping.Registry", "Instantiate", "lookup engine")
	}

	m := factory()
	if err := m.Configure(options); err != nil {
		return nil, errors.WrapInvalid(err, "mapping.Registry", "Instantiate", "configure "+engine)
	}
	return m, nil
}

// Build instantiates one Mapper per Definition, keyed by alias, and
// ensures a "default" twin-protocol mapper exists even if defs names none,
// per spec.md §4.2's "the built-in twin-protocol mapper is always present".
func (r *Registry) Build(defs []Definition) (map[string]Mapper, error) {
	out := make(map[string]Mapper, len(defs)+1)
	for _, d := range defs {
		if _, dup := out[d.Alias]; dup {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: duplicate mapping alias %q", errors.ErrConnectionConfigurationInvalid, d.Alias),
				"mapping.Registry", "Build", "check alias uniqueness")
		}
		m, err := r.Instantiate(d.Engine, d.Options)
		if err != nil {
			return nil, err
		}
		out[d.Alias] = m
	}
	if _, ok := out[DefaultAlias]; !ok {
		m, err := r.Instantiate(EngineTwinProtocol, nil)
		if err != nil {
			return nil, err
		}
		out[DefaultAlias] = m
	}
	return out, nil
}
