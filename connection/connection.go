// Package connection defines the connection configuration data model:
// Connection, Source, Target, Enforcement and mapping definitions, mirroring
// the JSON configuration shape in spec.md §6. Protocol-specific validation
// lives in package validator; this package only enforces structural
// invariants that hold for every connection type.
package connection

import (
	"fmt"

	"github.com/c360/twinbridge/errors"
)

// Type enumerates the supported connection types (spec.md §3).
type Type string

const (
	AMQP091  Type = "amqp-091"
	AMQP10   Type = "amqp-10"
	MQTT     Type = "mqtt"
	Kafka    Type = "kafka"
	HTTPPush Type = "http-push"
)

// Status is the administrative open/closed state of a connection.
type Status string

const (
	Open   Status = "open"
	Closed Status = "closed"
)

// Enforcement is the unresolved input/filter template pair gating inbound
// messages by identity (spec.md §3, §4.1).
type Enforcement struct {
	Input   string   `json:"input"`
	Filters []string `json:"filters"`
}

// Source is one inbound configuration fragment.
type Source struct {
	Addresses            []string          `json:"addresses"`
	ConsumerCount        int               `json:"consumerCount"`
	QoS                  *int              `json:"qos,omitempty"`
	AuthorizationContext []string          `json:"authorizationContext"`
	Enforcement          *Enforcement      `json:"enforcement,omitempty"`
	HeaderMapping        map[string]string `json:"headerMapping,omitempty"`
	PayloadMapping       []string          `json:"payloadMapping,omitempty"`

	// Index disambiguates otherwise-equal sources within one connection
	// (spec.md §3); assigned by Connection.Validate from declaration
	// order, not read from JSON.
	Index int `json:"-"`
}

// Target is one outbound configuration fragment.
type Target struct {
	Address              string            `json:"address"`
	Topics               []string          `json:"topics"`
	AuthorizationContext []string          `json:"authorizationContext"`
	QoS                  *int              `json:"qos,omitempty"`
	HeaderMapping        map[string]string `json:"headerMapping,omitempty"`
	PayloadMapping       []string          `json:"payloadMapping,omitempty"`
}

// MappingDefinition is one entry of a connection's mapping context table,
// keyed by alias (spec.md §3, §6 "mappingDefinitions").
type MappingDefinition struct {
	MappingEngine string            `json:"mappingEngine"`
	Options       map[string]string `json:"options,omitempty"`
}

// Connection is the full configuration of one connection (spec.md §3, §6).
type Connection struct {
	ID                   string                       `json:"id"`
	ConnectionType       Type                         `json:"connectionType"`
	ConnectionStatus     Status                       `json:"connectionStatus"`
	FailoverEnabled      bool                         `json:"failoverEnabled"`
	URI                  string                       `json:"uri"`
	ClientCount          int                          `json:"clientCount,omitempty"`
	AuthorizationContext []string                     `json:"authorizationContext,omitempty"`
	Sources              []Source                     `json:"sources"`
	Targets              []Target                     `json:"targets"`
	MappingDefinitions   map[string]MappingDefinition `json:"mappingDefinitions,omitempty"`

	// MaxMappedInboundMessages/MaxMappedOutboundMessages cap a single
	// mapper invocation's fan-out (spec.md §4.2); zero means unlimited.
	MaxMappedInboundMessages  int `json:"maxMappedInboundMessages,omitempty"`
	MaxMappedOutboundMessages int `json:"maxMappedOutboundMessages,omitempty"`
}

// Validate checks the structural invariants shared by every connection
// type: identifiers present, at least one client, non-negative counts,
// unique mapping aliases. It assigns Source.Index. Protocol-specific rules
// (URI schemes, MQTT caps, enforcement namespaces, alias resolution) are
// the job of validator.Validate, which calls this first.
func (c *Connection) Validate() error {
	if c.ID == "" {
		return invalid("id required")
	}
	if c.URI == "" {
		return invalid("uri required")
	}
	if c.ClientCount == 0 {
		c.ClientCount = 1
	}
	if c.ClientCount < 1 {
		return invalid("clientCount must be >= 1")
	}

	for i := range c.Sources {
		c.Sources[i].Index = i
		if c.Sources[i].ConsumerCount == 0 {
			c.Sources[i].ConsumerCount = 1
		}
		if c.Sources[i].ConsumerCount < 1 {
			return invalid(fmt.Sprintf("sources[%d].consumerCount must be >= 1", i))
		}
		if len(c.Sources[i].Addresses) == 0 {
			return invalid(fmt.Sprintf("sources[%d].addresses must not be empty", i))
		}
	}

	for i, t := range c.Targets {
		if t.Address == "" {
			return invalid(fmt.Sprintf("targets[%d].address required", i))
		}
	}

	seen := make(map[string]struct{}, len(c.MappingDefinitions))
	for alias := range c.MappingDefinitions {
		if _, dup := seen[alias]; dup {
			return invalid(fmt.Sprintf("duplicate mapping alias %q", alias))
		}
		seen[alias] = struct{}{}
	}

	return nil
}

func invalid(msg string) error {
	return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrConnectionConfigurationInvalid, msg), "connection.Connection", "Validate", "check structure")
}
