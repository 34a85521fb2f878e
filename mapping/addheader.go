package mapping

import (
	"encoding/json"

	"github.com/c360/twinbridge/errors"
	"github.com/c360/twinbridge/external"
	"github.com/c360/twinbridge/signal"
)

// AddHeaderMapper passes the payload through unchanged and adds a fixed
// set of configured header pairs on the way in and/or out (spec.md §4.2).
// Grounded on the teacher's field-mapping config shape
// (processor/json_map), adapted from renaming JSON fields to adding
// headers on an envelope.
type AddHeaderMapper struct {
	delegate *TwinMapper
	inbound  map[string]string
	outbound map[string]string
}

func NewAddHeaderMapper() *AddHeaderMapper {
	return &AddHeaderMapper{delegate: NewTwinMapper()}
}

// Configure reads the "inbound" and "outbound" options, each a
// JSON-encoded object of header-name to literal value, matching the
// "options mapping (string→string, may carry JSON)" shape in spec.md §3.
func (m *AddHeaderMapper) Configure(options map[string]string) error {
	inbound, err := decodeHeaderOption(options["inbound"])
	if err != nil {
		return errors.WrapInvalid(err, "mapping.AddHeaderMapper", "Configure", "decode inbound headers")
	}
	outbound, err := decodeHeaderOption(options["outbound"])
	if err != nil {
		return errors.WrapInvalid(err, "mapping.AddHeaderMapper", "Configure", "decode outbound headers")
	}
	m.inbound = inbound
	m.outbound = outbound
	return nil
}

func decodeHeaderOption(raw string) (map[string]string, error) {
	if raw == "" {
		return nil, nil
	}
	var out map[string]string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *AddHeaderMapper) MapInbound(msg external.Message) ([]signal.Signal, error) {
	sigs, err := m.delegate.MapInbound(msg)
	if err != nil {
		return nil, err
	}
	for i := range sigs {
		for k, v := range m.inbound {
			sigs[i].Headers.Set(k, v)
		}
	}
	return sigs, nil
}

func (m *AddHeaderMapper) MapOutbound(sig signal.Signal) ([]external.Message, error) {
	msgs, err := m.delegate.MapOutbound(sig)
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		for k, v := range m.outbound {
			msgs[i].Headers[k] = v
		}
	}
	return msgs, nil
}

func (m *AddHeaderMapper) ContentTypeBlacklist() []string { return nil }
