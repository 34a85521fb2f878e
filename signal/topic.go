package signal

import "strings"

// TopicPath decomposes a twin envelope's topic string into the named
// segments the placeholder engine's `topic:*` namespace exposes. The
// adapter that actually parses/synthesizes the full twin-protocol topic
// grammar is out of scope here (spec.md §9 Open Question); TopicPath is
// the minimal structured form this core needs to route and match against.
type TopicPath struct {
	Namespace string // e.g. "org.acme"
	EntityName string // e.g. "hallway-sensor-07"
	Group      string // e.g. "things"
	Channel    string // "twin" or "live"
	Criterion  string // "commands", "events", "messages", "errors"

	// ActionOrSubject is the final topic segment: an action name for
	// commands/events (e.g. "modify") or a message subject for "messages"
	// criterion topics. Exposed to templates as `topic:action-subject`.
	ActionOrSubject string
}

// String renders the canonical slash-joined topic.
func (p TopicPath) String() string {
	segs := []string{p.Namespace, p.EntityName, p.Group, p.Channel, p.Criterion}
	if p.ActionOrSubject != "" {
		segs = append(segs, p.ActionOrSubject)
	}
	return strings.Join(segs, "/")
}

// AsErrorsTopic returns a copy of p with its criterion switched to
// "errors" and its action/subject cleared, matching the
// "<ns>/<name>/things/<channel>/errors" shape required by spec.md §4.4/§6.
func (p TopicPath) AsErrorsTopic() TopicPath {
	p.Criterion = "errors"
	p.ActionOrSubject = ""
	return p
}

// KindFromCriterion maps a topic's criterion segment back to the Kind of
// signal it carries, for consumers that only have a topic string to go on
// (e.g. a bus subscription fanning a mix of kinds across one subject).
// A signal that also carries a status should be treated as a
// CommandResponse regardless of this heuristic.
func KindFromCriterion(criterion string) Kind {
	switch criterion {
	case "commands":
		return Command
	case "events":
		return Event
	case "errors":
		return ErrorResponse
	default:
		return Event
	}
}

// PlaceholderValues returns the field map backing the `topic:*` namespace
// for this path, keyed exactly by the names spec.md §4.1 lists.
func (p TopicPath) PlaceholderValues() map[string]string {
	return map[string]string{
		"namespace":     p.Namespace,
		"entity-name":   p.EntityName,
		"group":         p.Group,
		"channel":       p.Channel,
		"criterion":     p.Criterion,
		"action-subject": p.ActionOrSubject,
		"action":        p.ActionOrSubject,
	}
}
