// Package signal models the internal command/event/response messages that
// flow across the bus between the message mapping processor and the rest
// of the platform. The wire representation of a Signal (the twin protocol
// envelope) is treated as a black box by everything outside this package:
// callers construct and inspect Signals through typed accessors, never by
// touching raw envelope JSON (spec.md §1, §3, §9).
package signal

import "encoding/json"

// Kind identifies which of the four signal shapes a Signal carries.
type Kind string

const (
	Command         Kind = "command"
	CommandResponse Kind = "command-response"
	Event           Kind = "event"
	ErrorResponse   Kind = "error-response"
)

// ThingID is the namespaced identifier of the digital twin a signal is
// about, e.g. "org.acme:hallway-sensor-07".
type ThingID struct {
	Namespace string
	Name      string
}

// String renders the canonical "namespace:name" form.
func (t ThingID) String() string {
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + ":" + t.Name
}

// IsZero reports whether t carries no identity at all.
func (t ThingID) IsZero() bool {
	return t.Namespace == "" && t.Name == ""
}

// Signal is the internal, protocol-agnostic representation of a command,
// command response, event, or error response. Its payload is opaque: this
// package never interprets it beyond passing it through.
type Signal struct {
	Kind    Kind
	Thing   ThingID
	Topic   TopicPath
	Headers Headers
	Payload json.RawMessage

	// Status is set only on command-responses and error-responses; its
	// presence (rather than its value) drives outbound "asResponse"
	// wrapping semantics (spec.md §4.2).
	Status    int
	HasStatus bool
}

// Clone returns a deep-enough copy of s for use as the basis of a second,
// independently-mutable signal (e.g. when a single mapper invocation fans
// out into several produced signals sharing an inbound payload mapper
// header but needing distinct correlation handling downstream).
func (s Signal) Clone() Signal {
	clone := s
	clone.Headers = s.Headers.Clone()
	if s.Payload != nil {
		clone.Payload = append(json.RawMessage{}, s.Payload...)
	}
	return clone
}

// NewErrorResponse builds an error-response signal preserving the
// originating correlation-id and mirroring the inbound topic's channel, per
// spec.md §4.4's requirement that mapping-originated errors round-trip the
// correlation-id and land on a "<ns>/<name>/things/<channel>/errors" topic.
func NewErrorResponse(thing ThingID, inboundTopic TopicPath, correlationID string, payload json.RawMessage) Signal {
	headers := NewHeaders()
	if correlationID != "" {
		headers.SetCorrelationID(correlationID)
	}
	headers.SetResponseRequired(false)

	return Signal{
		Kind:      ErrorResponse,
		Thing:     thing,
		Topic:     inboundTopic.AsErrorsTopic(),
		Headers:   headers,
		Payload:   payload,
		HasStatus: false,
	}
}
