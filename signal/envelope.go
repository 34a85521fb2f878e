package signal

import (
	"encoding/json"

	"github.com/c360/twinbridge/errors"
)

// TwinContentType is the content-type that routes an external message to
// the default twin-protocol mapper (spec.md §4.2, §6).
const TwinContentType = "application/vnd.eclipse.ditto+json"

// envelope is the wire form of a Signal. The full twin-protocol JSON
// schema and topic grammar are an external black box per spec.md §1/§9;
// this is the minimal self-describing envelope this core needs to round
// trip a Signal through bytes, grounded on the teacher's wireFormat
// pattern (typed envelope with an opaque value field).
type envelope struct {
	Topic   string            `json:"topic"`
	Path    string            `json:"path,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Value   json.RawMessage   `json:"value,omitempty"`
	Status  *int              `json:"status,omitempty"`
}

// MarshalJSON serializes s into the twin envelope wire form.
func (s Signal) MarshalJSON() ([]byte, error) {
	env := envelope{
		Topic:   s.Topic.String(),
		Path:    kindToPath(s.Kind),
		Headers: map[string]string(s.Headers.Clone()),
		Value:   s.Payload,
	}
	if s.HasStatus {
		status := s.Status
		env.Status = &status
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, errors.WrapInvalid(err, "signal.Signal", "MarshalJSON", "encode envelope")
	}
	return data, nil
}

// ParseEnvelope decodes a twin-protocol envelope into a Signal. The
// envelope's topic is parsed into a TopicPath by naive slash-splitting;
// anything more than that belongs to the external adapter this core
// treats as a black box.
func ParseEnvelope(kind Kind, thing ThingID, data []byte) (Signal, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Signal{}, errors.WrapInvalid(err, "signal", "ParseEnvelope", "decode envelope")
	}

	topic := parseTopic(env.Topic)
	if thing.IsZero() {
		thing = ThingID{Namespace: topic.Namespace, Name: topic.EntityName}
	}

	sig := Signal{
		Kind:    kind,
		Thing:   thing,
		Topic:   topic,
		Headers: Headers(env.Headers),
		Payload: env.Value,
	}
	if sig.Headers == nil {
		sig.Headers = NewHeaders()
	}
	if env.Status != nil {
		sig.Status = *env.Status
		sig.HasStatus = true
	}
	return sig, nil
}

func kindToPath(k Kind) string {
	switch k {
	case Command:
		return "/"
	case CommandResponse:
		return "/"
	case Event:
		return "/"
	case ErrorResponse:
		return "/"
	default:
		return "/"
	}
}

func parseTopic(raw string) TopicPath {
	segs := splitNonEmpty(raw, '/')
	p := TopicPath{}
	if len(segs) > 0 {
		p.Namespace = segs[0]
	}
	if len(segs) > 1 {
		p.EntityName = segs[1]
	}
	if len(segs) > 2 {
		p.Group = segs[2]
	}
	if len(segs) > 3 {
		p.Channel = segs[3]
	}
	if len(segs) > 4 {
		p.Criterion = segs[4]
	}
	if len(segs) > 5 {
		p.ActionOrSubject = segs[5]
	}
	return p
}

func splitNonEmpty(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
