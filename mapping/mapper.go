// Package mapping implements the payload mapping registry and the
// built-in mappers converting between external.Message and signal.Signal
// (spec.md §4.2).
package mapping

import (
	"github.com/c360/twinbridge/external"
	"github.com/c360/twinbridge/signal"
)

// Mapper converts between external messages and internal signals. An
// instance is configured once (from a connection's mapping-context
// options) and then invoked many times. The processor shares one instance
// per alias across every consumer worker of a connection and its outbound
// bus handler, so MapInbound and MapOutbound may run concurrently; the
// built-in mappers hold no mutable state after Configure.
type Mapper interface {
	// Configure applies the mapping context's options. Called exactly
	// once, immediately after construction.
	Configure(options map[string]string) error

	// MapInbound converts one external message into zero or more signals.
	MapInbound(msg external.Message) ([]signal.Signal, error)

	// MapOutbound converts one signal into zero or more external
	// messages, e.g. one per configured target.
	MapOutbound(sig signal.Signal) ([]external.Message, error)

	// ContentTypeBlacklist lists content-types this mapper refuses to
	// handle inbound. The processor does not consult it: every mapper a
	// message names is invoked whatever its content-type.
	ContentTypeBlacklist() []string
}

// Definition is a connection's mapping context: an alias naming a mapper
// instance, the built-in engine it's an instance of, and its options.
// Aliases are unique within a connection (spec.md §3).
type Definition struct {
	Alias   string
	Engine  string
	Options map[string]string
}

// DefaultAlias is used whenever a source or target names no mapper alias
// (spec.md §4.4 step 1).
const DefaultAlias = "default"

// EngineTwinProtocol etc. name the built-in engines a Definition.Engine
// may reference.
const (
	EngineTwinProtocol     = "twin-protocol"
	EngineAddHeader        = "add-header"
	EngineConnectionStatus = "connection-status"
)
