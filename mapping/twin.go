package mapping

import (
	"github.com/c360/twinbridge/errors"
	"github.com/c360/twinbridge/external"
	"github.com/c360/twinbridge/signal"
)

// TwinMapper is the default built-in mapper: it parses/serializes the twin
// protocol envelope verbatim, without reshaping the payload (spec.md
// §4.2). An empty content-type or signal.TwinContentType routes here by
// default.
type TwinMapper struct{}

func NewTwinMapper() *TwinMapper { return &TwinMapper{} }

func (m *TwinMapper) Configure(map[string]string) error { return nil }

func (m *TwinMapper) MapInbound(msg external.Message) ([]signal.Signal, error) {
	sig, err := signal.ParseEnvelope(signal.Command, signal.ThingID{}, msg.Bytes)
	if err != nil {
		return nil, errors.WrapInvalid(err, "mapping.TwinMapper", "MapInbound", "parse twin envelope")
	}
	return []signal.Signal{sig}, nil
}

func (m *TwinMapper) MapOutbound(sig signal.Signal) ([]external.Message, error) {
	data, err := sig.MarshalJSON()
	if err != nil {
		return nil, errors.WrapInvalid(err, "mapping.TwinMapper", "MapOutbound", "marshal twin envelope")
	}
	out := external.New(data, signal.TwinContentType, map[string]string(sig.Headers.Clone()))
	out.Response = sig.Kind == signal.CommandResponse || sig.Kind == signal.ErrorResponse
	return []external.Message{out}, nil
}

func (m *TwinMapper) ContentTypeBlacklist() []string { return nil }
