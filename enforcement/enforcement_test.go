package enforcement_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/twinbridge/enforcement"
	"github.com/c360/twinbridge/placeholder"
)

func registryWithInput(t *testing.T, deviceID string) *placeholder.Registry {
	t.Helper()
	reg := placeholder.NewRegistry()
	require.NoError(t, reg.Register(placeholder.FromMap("header", map[string]string{
		"device-id": deviceID,
	})))
	require.NoError(t, reg.Register(placeholder.FromMap("thing", map[string]string{
		"id": "org.acme:" + deviceID,
	})))
	return reg
}

// Scenario 2 (spec.md §8): plain string equality enforcement for a
// non-MQTT source accepts a matching filter and rejects a non-matching one.
func TestCheck_PlainEquality(t *testing.T) {
	reg := registryWithInput(t, "hallway-sensor-07")

	match := enforcement.Filter{
		Input:   "org.acme:hallway-sensor-07",
		Filters: []string{"{{ thing:id }}"},
	}
	assert.NoError(t, enforcement.Check(match, reg))

	mismatch := enforcement.Filter{
		Input:   "org.acme:other-device",
		Filters: []string{"{{ thing:id }}"},
	}
	assert.Error(t, enforcement.Check(mismatch, reg))
}

// Scenario 3 (spec.md §8): MQTT wildcard topic matching accepts a filter
// with "+" and "#" wildcards and rejects a filter that doesn't cover the
// input's depth.
func TestCheck_MQTTWildcards(t *testing.T) {
	reg := placeholder.NewRegistry()
	require.NoError(t, reg.Register(placeholder.FromMap("source", map[string]string{
		"address": "telemetry/hallway-sensor-07/events",
	})))

	singleLevel := enforcement.Filter{
		Input:   "{{ source:address }}",
		Filters: []string{"telemetry/+/events"},
		Matcher: enforcement.MQTTTopicMatcher,
	}
	assert.NoError(t, enforcement.Check(singleLevel, reg))

	multiLevel := enforcement.Filter{
		Input:   "{{ source:address }}",
		Filters: []string{"telemetry/#"},
		Matcher: enforcement.MQTTTopicMatcher,
	}
	assert.NoError(t, enforcement.Check(multiLevel, reg))

	tooShallow := enforcement.Filter{
		Input:   "{{ source:address }}",
		Filters: []string{"telemetry/+"},
		Matcher: enforcement.MQTTTopicMatcher,
	}
	assert.Error(t, enforcement.Check(tooShallow, reg))
}

func TestCheck_UnresolvedInputIsError(t *testing.T) {
	reg := placeholder.NewRegistry()
	f := enforcement.Filter{Input: "{{ header:missing }}", Filters: []string{"x"}}
	assert.Error(t, enforcement.Check(f, reg))
}

func TestMQTTTopicMatcher(t *testing.T) {
	assert.True(t, enforcement.MQTTTopicMatcher("a/b/c", "a/+/c"))
	assert.True(t, enforcement.MQTTTopicMatcher("a/b/c", "a/#"))
	assert.True(t, enforcement.MQTTTopicMatcher("a/b/c", "#"))
	assert.False(t, enforcement.MQTTTopicMatcher("a/b", "a/+/c"))
	assert.False(t, enforcement.MQTTTopicMatcher("a/b/c", "a/b"))
}
