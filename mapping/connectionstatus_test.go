package mapping_test

import (
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/twinbridge/external"
	"github.com/c360/twinbridge/mapping"
)

func newStatusMsg(t *testing.T, creationTimeMs, ttd int64) external.Message {
	t.Helper()
	return external.New([]byte("{}"), "application/json", map[string]string{
		"creation-time": strconv.FormatInt(creationTimeMs, 10),
		"ttd":           strconv.FormatInt(ttd, 10),
	})
}

func decodeFeatureProperty(t *testing.T, payload json.RawMessage) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(payload, &out))
	return out
}

// Scenario 7 (spec.md §8): ttd == 0 yields a ModifyFeatureProperty at
// status/readyUntil = 1970-01-01T00:00:01Z.
func TestConnectionStatusMapper_TTDZero(t *testing.T) {
	m := mapping.NewConnectionStatusMapper()
	require.NoError(t, m.Configure(map[string]string{"thingId": "org.acme:hallway-sensor-07"}))

	sigs, err := m.MapInbound(newStatusMsg(t, 1000, 0))
	require.NoError(t, err)
	require.Len(t, sigs, 1)

	got := decodeFeatureProperty(t, sigs[0].Payload)
	assert.Equal(t, "modifyFeatureProperty", got["command"])
	assert.Equal(t, "status/readyUntil", got["path"])
	assert.Equal(t, "1970-01-01T00:00:01Z", got["value"])
	assert.False(t, sigs[0].Headers.ResponseRequired())
}

// Scenario 7: ttd == -1 yields a ModifyFeature with readyUntil pinned to
// the distant future.
func TestConnectionStatusMapper_TTDIndefinite(t *testing.T) {
	m := mapping.NewConnectionStatusMapper()
	require.NoError(t, m.Configure(map[string]string{"thingId": "org.acme:hallway-sensor-07"}))

	sigs, err := m.MapInbound(newStatusMsg(t, 1000, -1))
	require.NoError(t, err)
	require.Len(t, sigs, 1)

	got := decodeFeatureProperty(t, sigs[0].Payload)
	assert.Equal(t, "modifyFeature", got["command"])
	feature := got["feature"].(map[string]any)
	props := feature["properties"].(map[string]any)
	status := props["status"].(map[string]any)
	assert.Equal(t, "9999-12-31T23:59:59Z", status["readyUntil"])
	assert.Equal(t, "1970-01-01T00:00:01Z", status["readySince"])
}

// Scenario 7: ttd > 0 yields a ModifyFeature whose readyUntil is
// creation-time + ttd*1000ms.
func TestConnectionStatusMapper_TTDPositive(t *testing.T) {
	m := mapping.NewConnectionStatusMapper()
	require.NoError(t, m.Configure(map[string]string{"thingId": "org.acme:hallway-sensor-07"}))

	sigs, err := m.MapInbound(newStatusMsg(t, 1000, 10))
	require.NoError(t, err)
	require.Len(t, sigs, 1)

	got := decodeFeatureProperty(t, sigs[0].Payload)
	feature := got["feature"].(map[string]any)
	props := feature["properties"].(map[string]any)
	status := props["status"].(map[string]any)
	assert.Equal(t, "1970-01-01T00:00:01Z", status["readySince"])
	assert.Equal(t, "1970-01-01T00:00:11Z", status["readyUntil"])
}

// creation-time == 0 is a valid epoch-ms input (the Unix epoch itself),
// not "unset" — it must format as the real timestamp, not an empty value.
func TestConnectionStatusMapper_CreationTimeZeroFormatsAsEpoch(t *testing.T) {
	m := mapping.NewConnectionStatusMapper()
	require.NoError(t, m.Configure(map[string]string{"thingId": "org.acme:hallway-sensor-07"}))

	sigs, err := m.MapInbound(newStatusMsg(t, 0, 0))
	require.NoError(t, err)
	require.Len(t, sigs, 1)

	got := decodeFeatureProperty(t, sigs[0].Payload)
	assert.Equal(t, "1970-01-01T00:00:00Z", got["value"])
}

func TestConnectionStatusMapper_InvalidTTDYieldsEmptyNotError(t *testing.T) {
	m := mapping.NewConnectionStatusMapper()
	require.NoError(t, m.Configure(map[string]string{"thingId": "org.acme:hallway-sensor-07"}))

	sigs, err := m.MapInbound(newStatusMsg(t, 1000, -2))
	require.NoError(t, err)
	assert.Empty(t, sigs)

	sigs, err = m.MapInbound(newStatusMsg(t, -1, 0))
	require.NoError(t, err)
	assert.Empty(t, sigs)
}

func TestConnectionStatusMapper_UnresolvedThingIDYieldsEmpty(t *testing.T) {
	m := mapping.NewConnectionStatusMapper()
	require.NoError(t, m.Configure(map[string]string{"thingId": "{{ header:missing }}"}))

	sigs, err := m.MapInbound(newStatusMsg(t, 1000, 0))
	require.NoError(t, err)
	assert.Empty(t, sigs)
}
