// Package external models the wire-level message that a consumer worker
// builds from a library stream element, and that a publisher worker sends
// to a library sink. It is the boundary type between this core and the
// outside messaging world (spec.md §3).
package external

import "unicode/utf8"

// Message is an external message: either a consumer's view of an inbound
// wire message, or the processor's output headed to a publisher.
type Message struct {
	// Bytes is always populated. Text holds the UTF-8 decoding of Bytes
	// when it is valid UTF-8, so mappers that want text don't each redo
	// the decode-and-check.
	Bytes []byte
	Text  string
	IsText bool

	ContentType string
	Headers     map[string]string

	// SourceAddress is the wire-level address the message arrived on
	// (inbound) or the resolved publish address (outbound).
	SourceAddress string

	AuthorizationContext []string

	// EnforcementInput is the raw wire address an inbound message arrived
	// on, set by the consumer only when the owning source has enforcement
	// configured and empty otherwise. The processor's enforcement check
	// does not read it: it resolves the source's input template itself,
	// with `source:address` bound to SourceAddress.
	EnforcementInput string

	// PayloadMapping lists the mapper aliases this message's owning
	// source/target configured, in order. Empty means "use the default
	// mapper" (spec.md §4.4 step 1).
	PayloadMapping []string

	// Response marks an outbound message produced from a command-response
	// or error-response signal, distinct from one produced from a command
	// or event.
	Response bool

	// QoS is the publish quality-of-service the owning target configured
	// (spec.md §4.7 step 3 "attach QoS where applicable (target.qos
	// default 0)"). Nil means the protocol's own default applies.
	QoS *int
}

// New builds a Message from raw bytes, detecting whether they decode as
// valid UTF-8 text.
func New(payload []byte, contentType string, headers map[string]string) Message {
	m := Message{
		Bytes:       payload,
		ContentType: contentType,
		Headers:     headers,
	}
	if utf8.Valid(payload) {
		m.IsText = true
		m.Text = string(payload)
	}
	if m.Headers == nil {
		m.Headers = make(map[string]string)
	}
	return m
}

// Header returns a header value by name, matching the case-sensitive
// lookup the placeholder engine's `header:*` namespace performs.
func (m Message) Header(name string) (string, bool) {
	v, ok := m.Headers[name]
	return v, ok
}
