// Package enforcement checks a resolved input template against a set of
// resolved filter templates, used to reject inbound messages whose claimed
// signal id does not match any of the addresses a source is willing to
// accept from (spec.md §4.1).
package enforcement

import (
	"fmt"
	"strings"

	"github.com/c360/twinbridge/errors"
	"github.com/c360/twinbridge/placeholder"
)

// Matcher compares a resolved input value against a resolved filter value.
// MQTT sources use wildcard-aware topic matching; every other source type
// uses plain string equality.
type Matcher func(input, filter string) bool

// Filter holds an unresolved input template and the unresolved filter
// templates it must match at least one of, plus the Matcher appropriate to
// the owning source's protocol.
type Filter struct {
	Input   string
	Filters []string
	Matcher Matcher
}

// PlainMatcher is the default Matcher: exact string equality after
// resolution, used by every connection type except MQTT.
func PlainMatcher(input, filter string) bool {
	return input == filter
}

// MQTTTopicMatcher matches input against filter, a topic that may contain
// the MQTT wildcard segments "+" (single level) and "#" (multi level,
// terminal only). Grounded on the wildcard-segment rules enforced at
// subscribe time for MQTT sources (spec.md §4.5).
func MQTTTopicMatcher(input, filter string) bool {
	inputSegs := strings.Split(input, "/")
	filterSegs := strings.Split(filter, "/")

	for i, fseg := range filterSegs {
		if fseg == "#" {
			return true
		}
		if i >= len(inputSegs) {
			return false
		}
		if fseg == "+" {
			continue
		}
		if fseg != inputSegs[i] {
			return false
		}
	}
	return len(inputSegs) == len(filterSegs)
}

// Check resolves f.Input and every entry of f.Filters against reg, then
// reports whether the resolved input matches at least one resolved filter
// under f.Matcher. An unresolved input or filter template is an error
// (strict resolution): enforcement inputs must reference available fields,
// never optional ones.
func Check(f Filter, reg *placeholder.Registry) error {
	if f.Matcher == nil {
		f.Matcher = PlainMatcher
	}

	input, err := placeholder.Resolve(f.Input, reg, true)
	if err != nil {
		return errors.WrapInvalid(err, "enforcement", "Check", "resolve input")
	}

	for _, rawFilter := range f.Filters {
		resolved, err := placeholder.Resolve(rawFilter, reg, true)
		if err != nil {
			return errors.WrapInvalid(err, "enforcement", "Check", "resolve filter")
		}
		if f.Matcher(input, resolved) {
			return nil
		}
	}

	return errors.WrapInvalid(
		fmt.Errorf("%w: %q matched none of %v", errors.ErrConnectionSignalIDEnforcementFailed, input, f.Filters),
		"enforcement", "Check", "no filter matched",
	)
}
