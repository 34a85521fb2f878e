// Package bus defines the internal signal bus that sits between connection
// workers: consumer workers forward decoded signals onto the bus, and the
// component(s) that own a connection's targets subscribe to receive them for
// outbound delivery (spec.md §1 "the internal bus that signals cross after
// ingress" is an external collaborator, not something this service owns).
package bus

import (
	"context"

	"github.com/c360/twinbridge/signal"
)

// Subscription is a live subscription returned by Subscribe. Unsubscribe
// stops delivery; it is safe to call more than once.
type Subscription interface {
	Unsubscribe() error
}

// Bus is the minimum surface the connectivity service needs from the
// internal signal bus: publish a signal for downstream consumers, and
// subscribe to receive signals addressed to this connection's targets.
type Bus interface {
	// Publish sends sig onto subject. Subjects are constructed by the
	// caller (typically from the signal's thing ID and topic).
	Publish(ctx context.Context, subject string, sig signal.Signal) error

	// Subscribe registers handler to be called for every signal published
	// on subject (NATS-style subject wildcards such as ">" and "*" are
	// honored by the underlying transport). The handler is invoked from a
	// transport-owned goroutine; it must not block for long.
	Subscribe(ctx context.Context, subject string, handler func(signal.Signal)) (Subscription, error)

	// Close releases the bus's underlying connection.
	Close() error
}
