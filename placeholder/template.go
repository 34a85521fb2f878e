package placeholder

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/c360/twinbridge/errors"
)

// placeholderPattern matches `{{ ns:name }}`, tolerating the optional
// surrounding whitespace the grammar allows. name may contain path
// separators (thing:namespace/name/id) and dashes/dots but never braces or
// whitespace.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z][a-zA-Z0-9_]*):([^{}\s]+)\s*\}\}`)

// Resolve substitutes every `{{ ns:name }}` occurrence in tpl using reg.
//
// A token whose namespace is not one this system recognizes at all (not
// one of spec.md §4.1's built-in types and never installed on reg) is left
// untouched in the output unconditionally — it was never a placeholder
// this resolver owns (spec.md §8 scenario 1: `{{ eclipse:ditto }}` passes
// through literally on an address template even under strict resolution).
//
// For a recognized namespace, in strict mode a name that fails to resolve
// produces an error wrapping errors.ErrUnresolvedPlaceholder and the
// template is abandoned. In lenient mode an unresolved placeholder is left
// untouched in the output rather than failing the whole template, matching
// the header-mapping behavior in spec.md §4.3 (outbound header values that
// reference an absent field are simply dropped by the caller, not the
// resolver).
func Resolve(tpl string, reg *Registry, strict bool) (string, error) {
	var firstErr error

	result := placeholderPattern.ReplaceAllStringFunc(tpl, func(match string) string {
		if firstErr != nil {
			return match
		}

		groups := placeholderPattern.FindStringSubmatch(match)
		ns, name := groups[1], groups[2]

		value, known, ok := reg.resolve(ns, name)
		if !ok {
			if known && strict {
				firstErr = errors.WrapInvalid(errors.ErrUnresolvedPlaceholder, "placeholder", "Resolve",
					fmt.Sprintf("%s:%s", ns, name))
			}
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// HasPlaceholder reports whether tpl contains at least one `{{ ns:name }}`
// occurrence, letting callers skip resolution entirely for fixed literals.
func HasPlaceholder(tpl string) bool {
	return placeholderPattern.MatchString(tpl)
}

// FromMap builds a Namespace backed by a fixed set of key/value pairs,
// e.g. FromMap("header", msg.Headers) or FromMap("thing", map[string]string{
// "namespace": thingID.Namespace, "name": thingID.Name, "id": thingID.String()}).
// Lookups are case-sensitive on the field name, matching header:* semantics
// in spec.md §4.1.
func FromMap(prefix string, values map[string]string) Namespace {
	return Namespace{
		Prefix: prefix,
		Resolver: func(name string) (string, bool) {
			v, ok := values[name]
			return v, ok
		},
	}
}

// FromFunc builds a Namespace whose Names are fixed but whose values are
// computed lazily, e.g. topic:action re-derived per message rather than
// precomputed into a map.
func FromFunc(prefix string, names []string, fn Resolver) Namespace {
	return Namespace{Prefix: prefix, Names: names, Resolver: fn}
}

// SplitPath splits a dotted/slashed placeholder name into its segments,
// used by namespaces such as thing:namespace/name/id whose Resolver wants
// to address nested fields without re-implementing path parsing per call
// site.
func SplitPath(name string) []string {
	name = strings.Trim(name, "/")
	if name == "" {
		return nil
	}
	return strings.Split(name, "/")
}
