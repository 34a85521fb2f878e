package placeholder

import (
	"sync"

	"github.com/c360/twinbridge/errors"
)

// Resolver returns the value for a placeholder name within one namespace.
// The second return value reports whether the name resolved to anything.
type Resolver func(name string) (string, bool)

// Namespace describes one placeholder namespace, e.g. "header", "thing",
// "topic", "source", or a caller-installed namespace such as "test".
type Namespace struct {
	Prefix   string   // e.g. "header"
	Names    []string // supported names; empty means an open set (e.g. header:* accepts any header)
	Resolver Resolver
}

// supports reports whether name is one this namespace will resolve. An
// empty Names list means the namespace accepts any name (its Resolver is
// authoritative).
func (n Namespace) supports(name string) bool {
	if len(n.Names) == 0 {
		return true
	}
	for _, candidate := range n.Names {
		if candidate == name {
			return true
		}
	}
	return false
}

// Registry is a thread-safe, per-call set of installed namespaces. It
// follows the same registration pattern as the teacher's payload-type
// registry: explicit construction and injection rather than a package-level
// singleton, so inbound and outbound resolution (and tests) can each build
// exactly the namespace set they need.
type Registry struct {
	mu         sync.RWMutex
	namespaces map[string]Namespace
}

// NewRegistry creates an empty namespace registry.
func NewRegistry() *Registry {
	return &Registry{namespaces: make(map[string]Namespace)}
}

// Register installs a namespace under its Prefix. Re-registering a prefix
// replaces the previous namespace, which lets call sites layer a base set
// (header/thing/topic) and then add a context-specific one (source, test).
func (r *Registry) Register(ns Namespace) error {
	if ns.Prefix == "" {
		return errors.WrapInvalid(errors.ErrConnectionConfigurationInvalid, "placeholder.Registry", "Register", "namespace prefix required")
	}
	if ns.Resolver == nil {
		return errors.WrapInvalid(errors.ErrConnectionConfigurationInvalid, "placeholder.Registry", "Register", "namespace resolver required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.namespaces[ns.Prefix] = ns
	return nil
}

// reservedPrefixes are the namespace types spec.md §4.1 enumerates as part
// of the placeholder grammar itself (header, thing, topic, source). A
// template token whose prefix is one of these is a recognized placeholder
// even when this particular Registry has nothing registered under it, so
// resolution failure is a strict-mode error rather than a pass-through. A
// prefix outside this set (e.g. a foreign "eclipse:ditto") is never a
// placeholder this system understands — it is left untouched in the
// output regardless of strict/lenient mode (spec.md §8 scenario 1).
var reservedPrefixes = map[string]struct{}{
	"header": {},
	"thing":  {},
	"topic":  {},
	"source": {},
}

// known reports whether ns is a placeholder type this resolution should
// treat as recognized: either one of spec.md's built-in namespace types,
// or a namespace this specific Registry has had installed (covering
// user-installed namespaces such as "test:*").
func (r *Registry) known(ns string) bool {
	if _, ok := reservedPrefixes[ns]; ok {
		return true
	}
	r.mu.RLock()
	_, ok := r.namespaces[ns]
	r.mu.RUnlock()
	return ok
}

// resolve looks up ns:name across the registered namespaces. known reports
// whether ns is a recognized placeholder type at all (see known); ok
// reports whether it actually produced a value. A caller only has grounds
// to treat the lookup as a resolution failure (as opposed to "not a
// placeholder") when known is true.
func (r *Registry) resolve(ns, name string) (value string, known bool, ok bool) {
	known = r.known(ns)

	r.mu.RLock()
	namespace, registered := r.namespaces[ns]
	r.mu.RUnlock()

	if !registered || !namespace.supports(name) {
		return "", known, false
	}
	v, found := namespace.Resolver(name)
	return v, known, found
}

// With returns a shallow copy of r with extra namespaces layered on top.
// Used to add a `source:*` namespace for inbound consumer processing
// without mutating a connection-wide base registry.
func (r *Registry) With(extra ...Namespace) *Registry {
	out := NewRegistry()
	r.mu.RLock()
	for k, v := range r.namespaces {
		out.namespaces[k] = v
	}
	r.mu.RUnlock()
	for _, ns := range extra {
		out.namespaces[ns.Prefix] = ns
	}
	return out
}
