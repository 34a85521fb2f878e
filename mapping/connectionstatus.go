package mapping

import (
	"encoding/json"
	"strconv"

	"github.com/c360/twinbridge/external"
	"github.com/c360/twinbridge/pkg/timestamp"
	"github.com/c360/twinbridge/placeholder"
	"github.com/c360/twinbridge/signal"
)

const (
	headerHonoTTD          = "ttd"
	headerHonoCreationTime = "creation-time"
	defaultFeatureID       = "ConnectionStatus"
	featureDefinition      = "org.eclipse.ditto:ConnectionStatus:1.0.0"

	// distantFutureMs is 9999-12-31T23:59:59Z in epoch milliseconds,
	// matching the Hono ConnectionStatus mapper's treatment of an
	// indefinite time-to-disconnect (ttd == -1).
	distantFutureMs int64 = 253402300799000
)

// ConnectionStatusMapper ports the Hono ConnectionStatus mapper: it turns
// a device's "time to disconnect" header pair into a ModifyFeature or
// ModifyFeatureProperty command against a ConnectionStatus feature,
// ported line-for-line from the original's ttd/creation-time branches
// (spec.md §4.2, §8 scenario 7).
type ConnectionStatusMapper struct {
	thingIDTemplate string
	featureID       string
}

func NewConnectionStatusMapper() *ConnectionStatusMapper {
	return &ConnectionStatusMapper{featureID: defaultFeatureID}
}

func (m *ConnectionStatusMapper) Configure(options map[string]string) error {
	m.thingIDTemplate = options["thingId"]
	if fid, ok := options["featureId"]; ok && fid != "" {
		m.featureID = fid
	}
	return nil
}

func (m *ConnectionStatusMapper) ContentTypeBlacklist() []string { return nil }

// MapOutbound is not meaningful for this inbound-only device-status
// mapper; it returns no messages.
func (m *ConnectionStatusMapper) MapOutbound(signal.Signal) ([]external.Message, error) {
	return nil, nil
}

// MapInbound never returns an error: any internal failure (unresolved
// thingId placeholder, missing or out-of-range headers) yields an empty
// result, matching the original's catch-and-drop behavior.
func (m *ConnectionStatusMapper) MapInbound(msg external.Message) ([]signal.Signal, error) {
	reg := placeholder.NewRegistry()
	_ = reg.Register(placeholder.FromMap("header", msg.Headers))

	thingStr, err := placeholder.Resolve(m.thingIDTemplate, reg, true)
	if err != nil || thingStr == "" {
		return nil, nil
	}
	thing := parseThingID(thingStr)

	creationTime, ok := parseInt64Header(msg, headerHonoCreationTime)
	if !ok || creationTime < 0 {
		return nil, nil
	}
	ttd, ok := parseInt64Header(msg, headerHonoTTD)
	if !ok || ttd < -1 {
		return nil, nil
	}

	payload, err := m.buildPayload(creationTime, ttd)
	if err != nil {
		return nil, nil
	}

	headers := signal.NewHeaders()
	if cid, ok := msg.Header(signal.HeaderCorrelationID); ok {
		headers.SetCorrelationID(cid)
	}
	headers.SetResponseRequired(false)

	return []signal.Signal{{
		Kind:    signal.Command,
		Thing:   thing,
		Headers: headers,
		Payload: payload,
	}}, nil
}

func (m *ConnectionStatusMapper) buildPayload(creationTimeMs, ttdSeconds int64) (json.RawMessage, error) {
	switch {
	case ttdSeconds == 0:
		return json.Marshal(map[string]any{
			"featureId": m.featureID,
			"command":   "modifyFeatureProperty",
			"path":      "status/readyUntil",
			"value":     timestamp.Format(creationTimeMs),
		})

	case ttdSeconds == -1:
		return json.Marshal(map[string]any{
			"featureId": m.featureID,
			"command":   "modifyFeature",
			"feature": map[string]any{
				"definition": []string{featureDefinition},
				"properties": map[string]any{
					"status": map[string]any{
						"readySince": timestamp.Format(creationTimeMs),
						"readyUntil": timestamp.Format(distantFutureMs),
					},
				},
			},
		})

	default: // ttdSeconds > 0
		readyUntilMs := creationTimeMs + ttdSeconds*1000
		return json.Marshal(map[string]any{
			"featureId": m.featureID,
			"command":   "modifyFeature",
			"feature": map[string]any{
				"definition": []string{featureDefinition},
				"properties": map[string]any{
					"status": map[string]any{
						"readySince": timestamp.Format(creationTimeMs),
						"readyUntil": timestamp.Format(readyUntilMs),
					},
				},
			},
		})
	}
}

func parseInt64Header(msg external.Message, name string) (int64, bool) {
	raw, ok := msg.Header(name)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseThingID(s string) signal.ThingID {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return signal.ThingID{Namespace: s[:i], Name: s[i+1:]}
		}
	}
	return signal.ThingID{Name: s}
}
