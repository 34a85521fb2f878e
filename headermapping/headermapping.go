// Package headermapping projects and renames headers using the
// placeholder engine (spec.md §4.3). The processor applies a target's
// header mapping outbound, after payload mapping; a source's header
// mapping is not applied on the inbound path.
package headermapping

import "github.com/c360/twinbridge/placeholder"

// Mapping is an ordered output-header-name → value-template list. Order
// matters only in that later entries can reference earlier ones' resolved
// values if a caller layers them into reg between applications; the
// mapping itself does not chain internally.
type Mapping []Entry

// Entry pairs one output header name with the template that produces it.
type Entry struct {
	Header   string
	Template string
}

// Apply resolves every entry against reg in order and returns the
// resulting header set. Resolution is always lenient here: an unresolved
// placeholder simply omits that header rather than failing the whole
// mapping (spec.md §4.3 "Unresolved placeholders here are non-fatal").
func Apply(m Mapping, reg *placeholder.Registry) map[string]string {
	out := make(map[string]string, len(m))
	for _, entry := range m {
		value, err := placeholder.Resolve(entry.Template, reg, false)
		if err != nil {
			continue
		}
		if placeholder.HasPlaceholder(value) {
			// the template still contains a literal `{{ ns:name }}`
			// because lenient resolution couldn't resolve it — per
			// spec.md §4.3 that means this header is omitted.
			continue
		}
		out[entry.Header] = value
	}
	return out
}
