// Package publisher implements the per-connection publisher worker:
// it owns a map from resolved publish address to a publish handle,
// publishes mapped external messages, and recreates handles after
// closure notifications using exponential backoff (spec.md §4.7).
package publisher

import (
	"context"
	"sync"
	"time"

	"github.com/c360/twinbridge/errors"
	"github.com/c360/twinbridge/external"
	"github.com/c360/twinbridge/metrics"
)

// Handle is a protocol-specific publish handle (e.g. an AMQP sender link,
// an MQTT client reference, an HTTP keep-alive connection). The publisher
// worker never inspects a Handle's internals.
type Handle interface {
	// Send delivers one external message over this handle.
	Send(ctx context.Context, msg external.Message) error
	// Close releases the handle's underlying resources.
	Close() error
}

// HandleFactory creates a fresh Handle for a resolved publish address.
// Creation is serialized per address by the worker (spec.md §4.7 step 2).
type HandleFactory func(ctx context.Context, address string) (Handle, error)

// backoffBase/backoffFactor are the exponential backoff parameters for
// handle recreation after a closure notification (spec.md §4.7: "start
// exponential backoff from 1 s, doubling on each consecutive failure").
const (
	backoffBase   = time.Second
	backoffFactor = 2
	// backoffCeiling caps the delay at a sane maximum; spec.md §5
	// declares no ceiling but recommends implementations cap it.
	backoffCeiling = 2 * time.Minute
)

// Worker owns a single connection generation's address→handle map. It
// runs no goroutine of its own: Publish, OnHandleClosed, ResetBackoff and
// Close may be called from any goroutine, and the worker's own mutex
// serializes every access to the map.
type Worker struct {
	Factory HandleFactory
	Clock   func() time.Time

	// ConnectionID and Metrics label and receive this worker's Prometheus
	// series; both are optional, and a nil Metrics disables collection.
	ConnectionID string
	Metrics      *metrics.Metrics

	mu      sync.Mutex
	handles map[string]*handleState
}

type handleState struct {
	handle       Handle
	creating     bool
	backoffUntil time.Time
	nextDelay    time.Duration
}

// New constructs a Worker. clock defaults to time.Now; tests substitute a
// controllable clock to assert the backoff schedule in spec.md §8
// scenario 6 without real sleeps.
func New(factory HandleFactory, clock func() time.Time) *Worker {
	if clock == nil {
		clock = time.Now
	}
	return &Worker{Factory: factory, Clock: clock, handles: make(map[string]*handleState)}
}

// Publish sends msg over the handle for address, creating it if absent
// and not currently backing off. Handle creation is serialized per
// address because Publish holds w.mu for the whole obtain-or-create step;
// Send itself runs outside the lock so a slow send on one address never
// blocks publishes to another.
func (w *Worker) Publish(ctx context.Context, address string, msg external.Message) error {
	handle, err := w.obtainHandle(ctx, address)
	if err != nil {
		if w.Metrics != nil {
			w.Metrics.PublisherFailures.WithLabelValues(w.ConnectionID, address).Inc()
		}
		return err
	}
	if err := handle.Send(ctx, msg); err != nil {
		if w.Metrics != nil {
			w.Metrics.PublisherFailures.WithLabelValues(w.ConnectionID, address).Inc()
		}
		return err
	}
	if w.Metrics != nil {
		w.Metrics.PublisherSent.WithLabelValues(w.ConnectionID, address).Inc()
	}
	return nil
}

func (w *Worker) obtainHandle(ctx context.Context, address string) (Handle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	st, ok := w.handles[address]
	if ok && st.handle != nil {
		return st.handle, nil
	}
	if ok && w.Clock().Before(st.backoffUntil) {
		return nil, errors.WrapTransient(errors.ErrConnectionLost, "publisher.Worker", "obtainHandle",
			"handle for "+address+" is backing off")
	}

	h, err := w.Factory(ctx, address)
	if err != nil {
		return nil, errors.WrapTransient(err, "publisher.Worker", "obtainHandle", "create handle for "+address)
	}
	if w.Metrics != nil {
		w.Metrics.PublisherHandleCreate.WithLabelValues(w.ConnectionID, address).Inc()
	}

	if !ok {
		st = &handleState{}
		w.handles[address] = st
	}
	st.handle = h
	return h, nil
}

// OnHandleClosed records a closure/failure notification for address and
// discards the handle so the next Publish recreates it once the backoff
// elapses. The first notification for an address (or the first after
// ResetBackoff) sets the delay to backoffBase; each later one doubles it,
// up to backoffCeiling, even if a recreated handle worked in between.
// Notifications arriving while already backing off are ignored, per
// spec.md §4.7.
func (w *Worker) OnHandleClosed(address string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.Clock()
	st, ok := w.handles[address]
	if !ok {
		st = &handleState{}
		w.handles[address] = st
	}

	if now.Before(st.backoffUntil) {
		return
	}

	if st.nextDelay == 0 {
		st.nextDelay = backoffBase
	} else {
		st.nextDelay *= backoffFactor
		if st.nextDelay > backoffCeiling {
			st.nextDelay = backoffCeiling
		}
	}
	st.handle = nil
	st.backoffUntil = now.Add(st.nextDelay)

	if w.Metrics != nil {
		w.Metrics.PublisherBackoff.WithLabelValues(w.ConnectionID, address).Set(st.nextDelay.Seconds())
	}
}

// ResetBackoff clears an address's backoff state, e.g. after a
// successfully recreated handle has stayed open long enough to no longer
// be considered flapping. Not called automatically: spec.md §4.7 only
// specifies doubling "on each consecutive failure," leaving recovery
// detection to the caller.
func (w *Worker) ResetBackoff(address string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if st, ok := w.handles[address]; ok {
		st.nextDelay = 0
		st.backoffUntil = time.Time{}
	}
	if w.Metrics != nil {
		w.Metrics.PublisherBackoff.WithLabelValues(w.ConnectionID, address).Set(0)
	}
}

// Close closes every open handle, used during CloseConnection teardown.
func (w *Worker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	for _, st := range w.handles {
		if st.handle == nil {
			continue
		}
		if err := st.handle.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	w.handles = make(map[string]*handleState)
	return firstErr
}
