package mapping

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/c360/twinbridge/errors"
	"github.com/c360/twinbridge/external"
	"github.com/c360/twinbridge/signal"
)

// Wrapping applies the header and limit semantics spec.md §4.2 requires
// of every mapper regardless of its implementation, ported from
// WrappingMessageMapper.java: correlation-id generation, reply-to
// propagation, mapper-header precedence, max-mapped-message enforcement,
// and outbound asResponse flagging.
type Wrapping struct {
	Delegate Mapper

	// MaxMappedInbound/MaxMappedOutbound cap the number of signals or
	// external messages a single invocation may produce; zero means
	// unlimited (spec.md §4.2, connection limits config).
	MaxMappedInbound  int
	MaxMappedOutbound int
}

func (w *Wrapping) Configure(options map[string]string) error {
	return w.Delegate.Configure(options)
}

func (w *Wrapping) ContentTypeBlacklist() []string {
	return w.Delegate.ContentTypeBlacklist()
}

func (w *Wrapping) MapInbound(msg external.Message) ([]signal.Signal, error) {
	correlationID, had := msg.Header(signal.HeaderCorrelationID)
	if !had || correlationID == "" {
		correlationID = uuid.NewString()
	}
	replyTo, hasReplyTo := msg.Header(signal.HeaderReplyTo)

	sigs, err := w.Delegate.MapInbound(msg)
	if err != nil {
		return nil, err
	}
	if w.MaxMappedInbound > 0 && len(sigs) > w.MaxMappedInbound {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: produced %d signals, limit %d", errors.ErrMessageMappingFailed, len(sigs), w.MaxMappedInbound),
			"mapping.Wrapping", "MapInbound", "check max mapped inbound messages")
	}

	for i := range sigs {
		base := signal.NewHeaders()
		base.SetCorrelationID(correlationID)
		if hasReplyTo {
			base.SetReplyTo(replyTo)
		}
		// the delegate's own headers win over the wrapper's defaults.
		for k, v := range sigs[i].Headers {
			base.Set(k, v)
		}
		sigs[i].Headers = base
	}
	return sigs, nil
}

func (w *Wrapping) MapOutbound(sig signal.Signal) ([]external.Message, error) {
	msgs, err := w.Delegate.MapOutbound(sig)
	if err != nil {
		return nil, err
	}
	if w.MaxMappedOutbound > 0 && len(msgs) > w.MaxMappedOutbound {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: produced %d messages, limit %d", errors.ErrMessageMappingFailed, len(msgs), w.MaxMappedOutbound),
			"mapping.Wrapping", "MapOutbound", "check max mapped outbound messages")
	}

	for i := range msgs {
		msgs[i].Response = sig.HasStatus
	}
	return msgs, nil
}
