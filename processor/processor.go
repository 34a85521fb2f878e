// Package processor implements the message mapping processor: the stage
// that sits between consumer/publisher workers and the mapping/
// enforcement/placeholder engines, orchestrating both the inbound and
// outbound paths (spec.md §4.4).
package processor

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/c360/twinbridge/connection"
	"github.com/c360/twinbridge/enforcement"
	"github.com/c360/twinbridge/errors"
	"github.com/c360/twinbridge/external"
	"github.com/c360/twinbridge/headermapping"
	"github.com/c360/twinbridge/mapping"
	"github.com/c360/twinbridge/metrics"
	"github.com/c360/twinbridge/placeholder"
	"github.com/c360/twinbridge/signal"
)

// Processor applies a connection generation's configured mappers, header
// mappings and enforcement rules to messages crossing the external/
// internal boundary. One Processor instance is built per connection
// generation and shared read-only across consumer and publisher workers —
// it holds no mutable state of its own.
type Processor struct {
	Mappers map[string]mapping.Mapper

	// EnforcementMatcher is the topic-matching rule enforcement.Check
	// uses for this connection: enforcement.MQTTTopicMatcher for MQTT
	// connections, enforcement.PlainMatcher (the zero value) for every
	// other connection type (spec.md §4.1).
	EnforcementMatcher enforcement.Matcher

	// ConnectionID and Metrics label and receive this processor's
	// Prometheus series; both are optional, and a nil Metrics disables
	// collection.
	ConnectionID string
	Metrics      *metrics.Metrics
}

// New builds a Processor from a connection's already-instantiated mapper
// set (typically mapping.Registry.Build's output, each wrapped in a
// mapping.Wrapping) and the enforcement matcher appropriate to its
// connection type.
func New(mappers map[string]mapping.Mapper, matcher enforcement.Matcher) *Processor {
	return &Processor{Mappers: mappers, EnforcementMatcher: matcher}
}

func aliasesOrDefault(configured []string) []string {
	if len(configured) == 0 {
		return []string{mapping.DefaultAlias}
	}
	return configured
}

// Outcome is the result of processing one inbound external message:
// Forwarded signals are destined for the internal bus; ErrorResponses are
// destined back out through the normal outbound path, preserving
// correlation-id (spec.md §4.4 step 4).
type Outcome struct {
	Forwarded      []signal.Signal
	ErrorResponses []signal.Signal
}

// ProcessInbound runs the inbound path for one external message arriving
// on src: mapper fan-out, inbound-payload-mapper header stamping,
// authorization-context placeholder resolution, and enforcement.
func (p *Processor) ProcessInbound(msg external.Message, src connection.Source) (Outcome, error) {
	var out Outcome

	// Minted once, before the mapper fan-out, so that every mapper's
	// Wrapping sees the same already-present correlation-id header rather
	// than each generating its own fallback (spec.md §8: the produced
	// correlation-id is identical across all mappers' outputs for a
	// single inbound message).
	if id, had := msg.Header(signal.HeaderCorrelationID); !had || id == "" {
		if msg.Headers == nil {
			msg.Headers = make(map[string]string)
		}
		msg.Headers[signal.HeaderCorrelationID] = uuid.NewString()
	}

	for _, alias := range aliasesOrDefault(msg.PayloadMapping) {
		m, ok := p.Mappers[alias]
		if !ok {
			return out, errors.WrapInvalid(
				fmt.Errorf("%w: unknown payload-mapping alias %q", errors.ErrMessageMappingFailed, alias),
				"processor.Processor", "ProcessInbound", "resolve mapper alias")
		}

		sigs, err := m.MapInbound(msg)
		if err != nil {
			out.ErrorResponses = append(out.ErrorResponses, errorResponseFor(msg, signal.TopicPath{}, err))
			p.incError("mapping")
			continue
		}

		for i := range sigs {
			sigs[i].Headers.SetInboundPayloadMapper(alias)
			p.resolveAuthorizationContext(&sigs[i], msg, src)

			if src.Enforcement != nil {
				if err := p.checkEnforcement(sigs[i], msg, src); err != nil {
					out.ErrorResponses = append(out.ErrorResponses, errorResponseFor(msg, sigs[i].Topic, err))
					p.incEnforcement("rejected")
					continue
				}
				p.incEnforcement("accepted")
			}
			p.incMapped("inbound", alias)
			out.Forwarded = append(out.Forwarded, sigs[i])
		}
	}

	return out, nil
}

func (p *Processor) resolveAuthorizationContext(sig *signal.Signal, msg external.Message, src connection.Source) {
	if len(sig.Headers.AuthorizationContext()) > 0 || len(src.AuthorizationContext) == 0 {
		return
	}
	reg := placeholder.NewRegistry()
	_ = reg.Register(placeholder.FromMap("header", msg.Headers))

	resolved := make([]string, 0, len(src.AuthorizationContext))
	for _, subject := range src.AuthorizationContext {
		value, err := placeholder.Resolve(subject, reg, false)
		if err != nil {
			continue
		}
		resolved = append(resolved, value)
	}
	sig.Headers.SetAuthorizationContext(resolved)
}

func (p *Processor) checkEnforcement(sig signal.Signal, msg external.Message, src connection.Source) error {
	reg := placeholder.NewRegistry()
	_ = reg.Register(placeholder.FromMap("header", msg.Headers))
	_ = reg.Register(placeholder.FromMap("source", map[string]string{"address": msg.SourceAddress}))
	_ = reg.Register(placeholder.FromMap("thing", map[string]string{
		"namespace": sig.Thing.Namespace,
		"name":      sig.Thing.Name,
		"id":        sig.Thing.String(),
	}))

	return enforcement.Check(enforcement.Filter{
		Input:   src.Enforcement.Input,
		Filters: src.Enforcement.Filters,
		Matcher: p.EnforcementMatcher,
	}, reg)
}

func (p *Processor) incMapped(direction, alias string) {
	if p.Metrics != nil {
		p.Metrics.ProcessorMapped.WithLabelValues(p.ConnectionID, direction, alias).Inc()
	}
}

func (p *Processor) incError(reason string) {
	if p.Metrics != nil {
		p.Metrics.ProcessorErrors.WithLabelValues(p.ConnectionID, reason).Inc()
	}
}

func (p *Processor) incEnforcement(result string) {
	if p.Metrics != nil {
		p.Metrics.ProcessorEnforcement.WithLabelValues(p.ConnectionID, result).Inc()
	}
}

func errorResponseFor(msg external.Message, topic signal.TopicPath, cause error) signal.Signal {
	correlationID, _ := msg.Header(signal.HeaderCorrelationID)
	payload := []byte(fmt.Sprintf(`{"error":%q}`, cause.Error()))
	return signal.NewErrorResponse(signal.ThingID{}, topic, correlationID, payload)
}

// Delivery is one outbound external message ready for the publisher,
// alongside the target it was produced for and that target's original
// (pre-placeholder) address, preserved for logging (spec.md §3, §4.4
// step 3).
type Delivery struct {
	Target          connection.Target
	OriginalAddress string
	ResolvedAddress string
	Message         external.Message
}

// ProcessOutbound runs the outbound path for one internal signal across
// every target subscribed to its topic: mapper fan-out, per-target address
// resolution (failures drop only that target), and outbound header
// mapping. Response suppression (spec.md §4.4 "Response-suppression") is
// checked once for the whole signal before any target is considered.
func (p *Processor) ProcessOutbound(sig signal.Signal, targets []connection.Target) ([]Delivery, error) {
	if sig.Kind == signal.CommandResponse && !sig.Headers.ResponseRequired() {
		return nil, nil
	}

	var deliveries []Delivery
	for _, target := range targets {
		if !subscribesTo(target, sig.Topic) {
			continue
		}

		for _, alias := range aliasesOrDefault(target.PayloadMapping) {
			m, ok := p.Mappers[alias]
			if !ok {
				return nil, errors.WrapInvalid(
					fmt.Errorf("%w: unknown payload-mapping alias %q", errors.ErrMessageMappingFailed, alias),
					"processor.Processor", "ProcessOutbound", "resolve mapper alias")
			}

			msgs, err := m.MapOutbound(sig)
			if err != nil {
				p.incError("mapping")
				continue
			}

			for _, msg := range msgs {
				resolved, ok := p.resolveTargetAddress(target, sig, &msg)
				if !ok {
					p.incError("address-resolution")
					continue
				}
				msg.SourceAddress = resolved
				msg.QoS = target.QoS
				p.incMapped("outbound", alias)
				deliveries = append(deliveries, Delivery{
					Target:          target,
					OriginalAddress: target.Address,
					ResolvedAddress: resolved,
					Message:         msg,
				})
			}
		}
	}
	return deliveries, nil
}

func subscribesTo(target connection.Target, topic signal.TopicPath) bool {
	if len(target.Topics) == 0 {
		return true
	}
	wanted := topic.Channel + "/" + topic.Criterion
	for _, t := range target.Topics {
		if containsSegmentPair(t, wanted) {
			return true
		}
	}
	return false
}

func containsSegmentPair(topic, pair string) bool {
	return len(topic) >= len(pair) && indexOf(topic, pair) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

func (p *Processor) resolveTargetAddress(target connection.Target, sig signal.Signal, msg *external.Message) (string, bool) {
	reg := placeholder.NewRegistry()
	_ = reg.Register(placeholder.FromMap("topic", sig.Topic.PlaceholderValues()))
	_ = reg.Register(placeholder.FromMap("thing", map[string]string{
		"namespace": sig.Thing.Namespace,
		"name":      sig.Thing.Name,
		"id":        sig.Thing.String(),
	}))
	_ = reg.Register(placeholder.FromMap("header", map[string]string(sig.Headers.Clone())))

	resolved, err := placeholder.Resolve(target.Address, reg, true)
	if err != nil {
		return "", false
	}

	if len(target.HeaderMapping) > 0 {
		m := make(headermapping.Mapping, 0, len(target.HeaderMapping))
		for header, tpl := range target.HeaderMapping {
			m = append(m, headermapping.Entry{Header: header, Template: tpl})
		}
		for k, v := range headermapping.Apply(m, reg) {
			msg.Headers[k] = v
		}
	}

	return resolved, true
}
