package mapping_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/twinbridge/external"
	"github.com/c360/twinbridge/mapping"
	"github.com/c360/twinbridge/signal"
)

func TestAddHeaderMapper_AddsConfiguredHeadersBothWays(t *testing.T) {
	m := mapping.NewAddHeaderMapper()
	require.NoError(t, m.Configure(map[string]string{
		"inbound":  `{"x-source":"hallway"}`,
		"outbound": `{"x-sink":"broker"}`,
	}))

	msg := external.New([]byte(`{"topic":"org.acme/s/things/twin/commands/modify","value":{}}`), signal.TwinContentType, nil)
	sigs, err := m.MapInbound(msg)
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, "hallway", sigs[0].Headers["x-source"])

	msgs, err := m.MapOutbound(signal.Signal{Headers: signal.NewHeaders()})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "broker", msgs[0].Headers["x-sink"])
}
