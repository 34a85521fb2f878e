package protocol

import (
	"context"
	"sync"

	"github.com/c360/twinbridge/client"
	"github.com/c360/twinbridge/connection"
	"github.com/c360/twinbridge/consumer"
	"github.com/c360/twinbridge/external"
	"github.com/c360/twinbridge/publisher"
)

// FakeFactory is an in-memory client.Factory used for AMQP_091, AMQP_10
// and Kafka connections: no broker client library for any of those three
// protocols appears anywhere in the retrieved example corpus (checked
// every example repo's go.mod and every other_examples/ file), so there is
// nothing to wire a real wire transport to without fabricating a
// dependency (spec.md's Non-goal "implementing the broker protocols
// themselves" also excludes hand-rolling one here). FakeFactory still
// exercises every other per-protocol operation this core owns — address
// parsing/validation, handle lifecycle, backoff, the publish/consume
// plumbing — via a loopback: anything published to an address is
// delivered to every active subscription whose source addresses include
// it, exactly like a real topic/queue would for a single-process test
// harness.
type FakeFactory struct {
	connType connection.Type

	mu   sync.Mutex
	subs map[string][]func(consumer.RawMessage)
}

// NewFakeFactory builds a FakeFactory for conn's connection type, used to
// validate per-protocol address grammar (ParseAMQPTarget/ParseKafkaTarget)
// whenever a publish handle is created, even though delivery itself is
// in-memory.
func NewFakeFactory(conn connection.Connection) *FakeFactory {
	return &FakeFactory{connType: conn.ConnectionType, subs: make(map[string][]func(consumer.RawMessage))}
}

// NewPublishHandle validates address against the connection type's
// address grammar and returns a handle that loops the message back to
// every Subscribe call site whose source addresses include it.
func (f *FakeFactory) NewPublishHandle(_ context.Context, address string) (publisher.Handle, error) {
	canonical, err := f.canonicalAddress(address)
	if err != nil {
		return nil, err
	}
	return &fakeHandle{factory: f, address: canonical}, nil
}

func (f *FakeFactory) canonicalAddress(address string) (string, error) {
	switch f.connType {
	case connection.Kafka:
		target, err := ParseKafkaTarget(address)
		if err != nil {
			return "", err
		}
		return target.Topic, nil
	default:
		target, err := ParseAMQPTarget(address)
		if err != nil {
			return "", err
		}
		return target.Scheme.String() + "://" + target.Name, nil
	}
}

// Subscribe registers onMessage against every address of src, delivered
// whenever a FakeFactory handle on the same (canonicalized) address sends.
func (f *FakeFactory) Subscribe(_ context.Context, src connection.Source, _ int, onMessage func(consumer.RawMessage)) (client.Subscription, error) {
	registered := make([]string, 0, len(src.Addresses))
	for _, addr := range src.Addresses {
		canonical, err := f.canonicalAddress(addr)
		if err != nil {
			return nil, err
		}
		f.mu.Lock()
		f.subs[canonical] = append(f.subs[canonical], onMessage)
		f.mu.Unlock()
		registered = append(registered, canonical)
	}
	return &fakeSubscription{factory: f, addresses: registered, handler: onMessage}, nil
}

// Close clears every registered subscription.
func (f *FakeFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = make(map[string][]func(consumer.RawMessage))
	return nil
}

type fakeHandle struct {
	factory *FakeFactory
	address string
}

func (h *fakeHandle) Send(_ context.Context, msg external.Message) error {
	h.factory.mu.Lock()
	handlers := append([]func(consumer.RawMessage){}, h.factory.subs[h.address]...)
	h.factory.mu.Unlock()

	for _, handler := range handlers {
		handler(consumer.RawMessage{
			Payload:     msg.Bytes,
			ContentType: msg.ContentType,
			Headers:     msg.Headers,
			Address:     h.address,
			Ack:         func() {},
		})
	}
	return nil
}

func (h *fakeHandle) Close() error { return nil }

type fakeSubscription struct {
	factory   *FakeFactory
	addresses []string
	handler   func(consumer.RawMessage)
}

func (s *fakeSubscription) Close() error {
	s.factory.mu.Lock()
	defer s.factory.mu.Unlock()
	for _, addr := range s.addresses {
		handlers := s.factory.subs[addr]
		for i, h := range handlers {
			if &h == &s.handler {
				s.factory.subs[addr] = append(handlers[:i], handlers[i+1:]...)
				break
			}
		}
	}
	return nil
}
