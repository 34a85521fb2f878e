package validator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/c360/twinbridge/connection"
	"github.com/c360/twinbridge/validator"
)

func qos(v int) *int { return &v }

func validMQTT() connection.Connection {
	return connection.Connection{
		ID:             "c1",
		ConnectionType: connection.MQTT,
		URI:            "tcp://broker.local:1883",
		Sources: []connection.Source{
			{Addresses: []string{"telemetry/+/events"}, ConsumerCount: 1, QoS: qos(1)},
		},
		Targets: []connection.Target{
			{Address: "commands/hallway-sensor-07", Topics: []string{"_/_/things/twin/commands"}, QoS: qos(0)},
		},
	}
}

func TestValidate_MQTTHappyPath(t *testing.T) {
	c := validMQTT()
	assert.NoError(t, validator.Validate(&c, nil))
}

func TestValidate_MQTTRejectsWrongScheme(t *testing.T) {
	c := validMQTT()
	c.URI = "amqp://broker.local:5672"
	assert.Error(t, validator.Validate(&c, nil))
}

func TestValidate_MQTTRequiresQoS(t *testing.T) {
	c := validMQTT()
	c.Sources[0].QoS = nil
	assert.Error(t, validator.Validate(&c, nil))
}

func TestValidate_MQTTForbidsWildcardOnTarget(t *testing.T) {
	c := validMQTT()
	c.Targets[0].Address = "commands/+"
	assert.Error(t, validator.Validate(&c, nil))
}

func TestValidate_MQTTForbidsHeaderMapping(t *testing.T) {
	c := validMQTT()
	c.Sources[0].HeaderMapping = map[string]string{"x": "y"}
	assert.Error(t, validator.Validate(&c, nil))
}

func TestValidate_MQTTCapsClientCount(t *testing.T) {
	c := validMQTT()
	c.ClientCount = 2
	assert.Error(t, validator.Validate(&c, nil))
}

func TestValidate_RejectsUnknownPayloadMappingAlias(t *testing.T) {
	c := validMQTT()
	c.Sources[0].PayloadMapping = []string{"nonexistent"}
	assert.Error(t, validator.Validate(&c, map[string]struct{}{"default": {}}))
}

func TestValidate_RejectsUnknownEnforcementNamespace(t *testing.T) {
	c := validMQTT()
	c.Sources[0].Enforcement = &connection.Enforcement{
		Input:   "{{ bogus:field }}",
		Filters: []string{"mqtt/topic/{{ thing:name }}"},
	}
	assert.Error(t, validator.Validate(&c, nil))
}

func TestValidate_AcceptsHTTPPushScheme(t *testing.T) {
	c := connection.Connection{
		ID: "c2", ConnectionType: connection.HTTPPush, URI: "https://api.acme.example/webhook",
		Sources: []connection.Source{{Addresses: []string{"inbox"}, ConsumerCount: 1}},
	}
	assert.NoError(t, validator.Validate(&c, nil))
}
