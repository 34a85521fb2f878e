package bus

import (
	"context"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/c360/twinbridge/errors"
	"github.com/c360/twinbridge/signal"
)

// NATSBus is a Bus backed directly by github.com/nats-io/nats.go. Unlike the
// connectivity daemon's other internal dependencies it talks to the NATS
// connection directly rather than through a JetStream-aware wrapper: this
// service only ever needs core publish/subscribe, not streams or KV.
type NATSBus struct {
	mu   sync.RWMutex
	conn *nats.Conn
}

// Dial connects to the given NATS URL and returns a ready NATSBus.
func Dial(url string, opts ...nats.Option) (*NATSBus, error) {
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, errors.WrapTransient(err, "bus.NATSBus", "Dial", "connect to "+url)
	}
	return &NATSBus{conn: conn}, nil
}

// NewNATSBus wraps an already-connected *nats.Conn, e.g. one shared with
// other components of the host process.
func NewNATSBus(conn *nats.Conn) *NATSBus {
	return &NATSBus{conn: conn}
}

func (b *NATSBus) Publish(_ context.Context, subject string, sig signal.Signal) error {
	b.mu.RLock()
	conn := b.conn
	b.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return errors.WrapTransient(errors.ErrConnectionLost, "bus.NATSBus", "Publish", "not connected")
	}

	data, err := sig.MarshalJSON()
	if err != nil {
		return errors.WrapInvalid(err, "bus.NATSBus", "Publish", "marshal signal")
	}
	if err := conn.Publish(subject, data); err != nil {
		return errors.WrapTransient(err, "bus.NATSBus", "Publish", "publish to "+subject)
	}
	return nil
}

func (b *NATSBus) Subscribe(ctx context.Context, subject string, handler func(signal.Signal)) (Subscription, error) {
	b.mu.RLock()
	conn := b.conn
	b.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return nil, errors.WrapTransient(errors.ErrConnectionLost, "bus.NATSBus", "Subscribe", "not connected")
	}

	sub, err := conn.Subscribe(subject, func(msg *nats.Msg) {
		sig, err := signal.ParseEnvelope(signal.Event, signal.ThingID{}, msg.Data)
		if err != nil {
			return
		}
		sig.Kind = signal.KindFromCriterion(sig.Topic.Criterion)
		if sig.HasStatus && sig.Kind == signal.Command {
			sig.Kind = signal.CommandResponse
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
		handler(sig)
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "bus.NATSBus", "Subscribe", "subscribe to "+subject)
	}
	return natsSubscription{sub}, nil
}

func (b *NATSBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil
	}
	b.conn.Close()
	b.conn = nil
	return nil
}

type natsSubscription struct {
	sub *nats.Subscription
}

func (s natsSubscription) Unsubscribe() error {
	return s.sub.Unsubscribe()
}
