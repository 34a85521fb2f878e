package processor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/twinbridge/connection"
	"github.com/c360/twinbridge/enforcement"
	"github.com/c360/twinbridge/processor"
	"github.com/c360/twinbridge/signal"
)

func TestProcessOutbound_SkipsTargetsNotSubscribedToTopic(t *testing.T) {
	p := processor.New(newMappers(t), enforcement.PlainMatcher)

	sig := signal.Signal{
		Kind:    signal.Event,
		Thing:   signal.ThingID{Namespace: "org.acme", Name: "hallway-sensor-07"},
		Topic:   signal.TopicPath{Namespace: "org.acme", EntityName: "hallway-sensor-07", Group: "things", Channel: "twin", Criterion: "events"},
		Headers: signal.NewHeaders(),
	}

	targets := []connection.Target{
		{Address: "events-sink", Topics: []string{"_/_/things/twin/events"}},
		{Address: "commands-sink", Topics: []string{"_/_/things/twin/commands"}},
	}

	deliveries, err := p.ProcessOutbound(sig, targets)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, "events-sink", deliveries[0].OriginalAddress)
}
