package processor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/twinbridge/connection"
	"github.com/c360/twinbridge/enforcement"
	"github.com/c360/twinbridge/external"
	"github.com/c360/twinbridge/mapping"
	"github.com/c360/twinbridge/processor"
	"github.com/c360/twinbridge/signal"
)

func newMappers(t *testing.T) map[string]mapping.Mapper {
	t.Helper()
	reg := mapping.NewRegistry()
	m, err := reg.Build(nil)
	require.NoError(t, err)
	wrapped := map[string]mapping.Mapper{}
	for alias, inner := range m {
		wrapped[alias] = &mapping.Wrapping{Delegate: inner}
	}
	return wrapped
}

// Scenario 1 (spec.md §8): topic placeholder resolution across three
// targets, where a failure on one target does not affect the others.
func TestProcessOutbound_TopicPlaceholderAcrossTargets(t *testing.T) {
	p := processor.New(newMappers(t), enforcement.PlainMatcher)

	sig := signal.Signal{
		Kind:  signal.Event,
		Thing: signal.ThingID{Namespace: "org.acme", Name: "hallway-sensor-07"},
		Topic: signal.TopicPath{Namespace: "org.acme", EntityName: "hallway-sensor-07", Group: "things", Channel: "twin", Criterion: "events", ActionOrSubject: "some-subject"},
		Headers: signal.NewHeaders(),
	}

	targets := []connection.Target{
		{Address: "some/topic/{{ topic:action-subject }}"},
		{Address: "some/topic/{{ eclipse:ditto }}"},
		{Address: "fixedAddress"},
	}

	deliveries, err := p.ProcessOutbound(sig, targets)
	require.NoError(t, err)
	require.Len(t, deliveries, 3)

	byOriginal := map[string]processor.Delivery{}
	for _, d := range deliveries {
		byOriginal[d.OriginalAddress] = d
	}

	first, ok := byOriginal["some/topic/{{ topic:action-subject }}"]
	require.True(t, ok)
	assert.Equal(t, "some/topic/some-subject", first.ResolvedAddress)

	// "eclipse" is not a recognized placeholder namespace, so the token is
	// left untouched rather than the target being dropped.
	unresolved, ok := byOriginal["some/topic/{{ eclipse:ditto }}"]
	require.True(t, ok)
	assert.Equal(t, "some/topic/{{ eclipse:ditto }}", unresolved.ResolvedAddress)

	fixed, ok := byOriginal["fixedAddress"]
	require.True(t, ok)
	assert.Equal(t, "fixedAddress", fixed.ResolvedAddress)
}

// A target whose address references a recognized namespace with no value
// available for that name is dropped, while its siblings still resolve
// (spec.md §4.4 step 3 "failure on one target does not affect siblings").
func TestProcessOutbound_UnresolvedKnownNamespaceDropsOnlyThatTarget(t *testing.T) {
	p := processor.New(newMappers(t), enforcement.PlainMatcher)

	sig := signal.Signal{
		Kind:    signal.Event,
		Thing:   signal.ThingID{Namespace: "org.acme", Name: "hallway-sensor-07"},
		Topic:   signal.TopicPath{Namespace: "org.acme", EntityName: "hallway-sensor-07", Group: "things", Channel: "twin", Criterion: "events"},
		Headers: signal.NewHeaders(),
	}

	targets := []connection.Target{
		{Address: "some/{{ header:missing }}"},
		{Address: "fixedAddress"},
	}

	deliveries, err := p.ProcessOutbound(sig, targets)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, "fixedAddress", deliveries[0].ResolvedAddress)
}

// Scenario 2/3 (spec.md §8): MQTT enforcement accepts a matching filter
// and rejects a non-matching one, producing an error-response that
// preserves the correlation-id.
func TestProcessInbound_MQTTEnforcement(t *testing.T) {
	p := processor.New(newMappers(t), enforcement.MQTTTopicMatcher)

	src := connection.Source{
		Enforcement: &connection.Enforcement{
			Input:   "{{ source:address }}",
			Filters: []string{"mqtt/topic/{{ thing:namespace }}/{{ thing:name }}"},
		},
	}

	accept := external.New(
		[]byte(`{"topic":"my/thing/things/twin/events/modified","value":{}}`),
		signal.TwinContentType,
		map[string]string{signal.HeaderCorrelationID: "C"},
	)
	accept.SourceAddress = "mqtt/topic/my/thing"

	outcome, err := p.ProcessInbound(accept, src)
	require.NoError(t, err)
	assert.Len(t, outcome.Forwarded, 1)
	assert.Empty(t, outcome.ErrorResponses)

	reject := accept
	reject.SourceAddress = "some/invalid/target"
	outcome, err = p.ProcessInbound(reject, src)
	require.NoError(t, err)
	assert.Empty(t, outcome.Forwarded)
	require.Len(t, outcome.ErrorResponses, 1)
	assert.Equal(t, "C", outcome.ErrorResponses[0].Headers.CorrelationID())
}

// spec.md §8 universal property: the fallback correlation-id minted for
// an inbound message with none must be identical across every mapper's
// output, not minted independently per mapper.
func TestProcessInbound_FallbackCorrelationIDIdenticalAcrossMappers(t *testing.T) {
	reg := mapping.NewRegistry()
	m, err := reg.Build([]mapping.Definition{
		{Alias: "default", Engine: mapping.EngineTwinProtocol},
		{Alias: "withHeader", Engine: mapping.EngineAddHeader},
	})
	require.NoError(t, err)
	wrapped := map[string]mapping.Mapper{}
	for alias, inner := range m {
		wrapped[alias] = &mapping.Wrapping{Delegate: inner}
	}
	p := processor.New(wrapped, enforcement.PlainMatcher)

	msg := external.New(
		[]byte(`{"topic":"my/thing/things/twin/commands/modify","value":{}}`),
		signal.TwinContentType,
		nil,
	)
	msg.PayloadMapping = []string{"default", "withHeader"}

	outcome, err := p.ProcessInbound(msg, connection.Source{})
	require.NoError(t, err)
	require.Len(t, outcome.Forwarded, 2)
	assert.NotEmpty(t, outcome.Forwarded[0].Headers.CorrelationID())
	assert.Equal(t, outcome.Forwarded[0].Headers.CorrelationID(), outcome.Forwarded[1].Headers.CorrelationID())
}

// Scenario 4 (spec.md §8): authorization-context subject templates
// resolve against the inbound message's own headers.
func TestProcessInbound_AuthContextPlaceholders(t *testing.T) {
	p := processor.New(newMappers(t), enforcement.PlainMatcher)

	src := connection.Source{
		AuthorizationContext: []string{
			"integration:{{ header:correlation-id }}:hub-{{ header:content-type }}",
			"integration:{{ header:content-type }}:hub-{{ header:correlation-id }}",
		},
	}

	msg := external.New(
		[]byte(`{"topic":"org.acme/hallway-sensor-07/things/twin/commands/modify","value":{}}`),
		signal.TwinContentType,
		map[string]string{
			signal.HeaderCorrelationID: "C",
			signal.HeaderContentType:   "application/json",
		},
	)

	outcome, err := p.ProcessInbound(msg, src)
	require.NoError(t, err)
	require.Len(t, outcome.Forwarded, 1)

	ctx := outcome.Forwarded[0].Headers.AuthorizationContext()
	require.Len(t, ctx, 2)
	assert.Equal(t, "integration:C:hub-application/json", ctx[0])
	assert.Equal(t, "integration:application/json:hub-C", ctx[1])
}

func TestProcessOutbound_SuppressesResponseRequiredFalse(t *testing.T) {
	p := processor.New(newMappers(t), enforcement.PlainMatcher)

	headers := signal.NewHeaders()
	headers.SetResponseRequired(false)
	sig := signal.Signal{Kind: signal.CommandResponse, Headers: headers, HasStatus: true, Status: 204}

	deliveries, err := p.ProcessOutbound(sig, []connection.Target{{Address: "fixed"}})
	require.NoError(t, err)
	assert.Empty(t, deliveries)
}
