package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/twinbridge/protocol"
)

func TestParseAMQPTarget(t *testing.T) {
	cases := []struct {
		address string
		want    protocol.AMQPTarget
	}{
		{"orders", protocol.AMQPTarget{Scheme: protocol.AMQPQueue, Name: "orders"}},
		{"queue://orders", protocol.AMQPTarget{Scheme: protocol.AMQPQueue, Name: "orders"}},
		{"topic://events", protocol.AMQPTarget{Scheme: protocol.AMQPTopic, Name: "events"}},
	}
	for _, tc := range cases {
		got, err := protocol.ParseAMQPTarget(tc.address)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestParseAMQPTarget_Invalid(t *testing.T) {
	cases := []string{"", "queue://", "ftp://orders"}
	for _, address := range cases {
		_, err := protocol.ParseAMQPTarget(address)
		assert.Error(t, err, address)
	}
}

func TestAMQPScheme_String(t *testing.T) {
	assert.Equal(t, "queue", protocol.AMQPQueue.String())
	assert.Equal(t, "topic", protocol.AMQPTopic.String())
}

func TestParseKafkaTarget(t *testing.T) {
	got, err := protocol.ParseKafkaTarget("sensor-events")
	require.NoError(t, err)
	assert.Equal(t, protocol.KafkaTarget{Topic: "sensor-events"}, got)

	got, err = protocol.ParseKafkaTarget("sensor-events#thing-42")
	require.NoError(t, err)
	assert.Equal(t, protocol.KafkaTarget{Topic: "sensor-events", PartitionKey: "thing-42", HasKey: true}, got)
}

func TestParseKafkaTarget_Invalid(t *testing.T) {
	cases := []string{"", "#key"}
	for _, address := range cases {
		_, err := protocol.ParseKafkaTarget(address)
		assert.Error(t, err, address)
	}
}
