package client

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/c360/twinbridge/bus"
	"github.com/c360/twinbridge/connection"
	"github.com/c360/twinbridge/consumer"
	"github.com/c360/twinbridge/enforcement"
	"github.com/c360/twinbridge/errors"
	"github.com/c360/twinbridge/mapping"
	"github.com/c360/twinbridge/metrics"
	"github.com/c360/twinbridge/processor"
	"github.com/c360/twinbridge/publisher"
	"github.com/c360/twinbridge/signal"
	"github.com/c360/twinbridge/validator"
)

// readinessTimeout bounds a TestConnection attempt. OpenConnection runs
// no publisher-readiness probe: consumers are started without waiting on
// the publisher.
const readinessTimeout = time.Second

// Subscription is a live protocol-level stream; Close must cause the
// underlying library stream to stop within bounded time, which is what
// lets CloseConnection join the generation's termination future before
// tearing down the publisher (spec.md §4.8, §5).
type Subscription io.Closer

// Factory creates the protocol-specific pieces one connection generation
// needs: a publish handle per resolved address, and a subscription per
// (source, consumer index) pair that feeds decoded RawMessages to
// onMessage. Implementations
// live in package protocol; Factory is defined here, not there, so
// client never imports a specific transport.
type Factory interface {
	NewPublishHandle(ctx context.Context, address string) (publisher.Handle, error)
	Subscribe(ctx context.Context, src connection.Source, index int, onMessage func(consumer.RawMessage)) (Subscription, error)
}

// Status is the machine's RetrieveStatus reply: overall state plus one
// entry per live consumer worker.
type Status struct {
	State     State
	Consumers []consumer.Status
}

// Machine is the per-connection supervisor described by spec.md §4.8. One
// Machine owns exactly one connection's worker subtree for the lifetime of
// one generation; OpenConnection/CloseConnection/TestConnection drive its
// transitions, and RetrieveStatus may be called from any goroutine at any
// time.
type Machine struct {
	Bus      bus.Bus
	Registry *mapping.Registry
	Logger   *slog.Logger
	Metrics  *metrics.Metrics

	// BufferSize sizes every consumer worker's inbox; zero defaults to the
	// consumer package's own default.
	BufferSize int

	mu    sync.Mutex
	state State

	conn      connection.Connection
	proc      *processor.Processor
	pub       *publisher.Worker
	workers   []*consumer.Worker
	subs      []Subscription
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New constructs a Machine in the Disconnected state.
func New(b bus.Bus, registry *mapping.Registry, logger *slog.Logger) *Machine {
	if registry == nil {
		registry = mapping.NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{Bus: b, Registry: registry, Logger: logger, state: Disconnected}
}

// State returns the machine's current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OpenConnection validates conn, builds its mapping/enforcement pipeline,
// and starts exactly one publisher and sum(source.consumerCount)
// consumers, entering Connected on success. On any failure it tears down
// whatever had already started and returns to Disconnected.
func (m *Machine) OpenConnection(ctx context.Context, conn connection.Connection, factory Factory) error {
	m.mu.Lock()
	if m.state != Disconnected {
		m.mu.Unlock()
		return errors.ErrAlreadyStarted
	}
	m.state = Connecting
	m.mu.Unlock()
	m.reportState(conn.ID, Connecting)

	if err := m.start(ctx, conn, factory, false); err != nil {
		m.mu.Lock()
		m.state = Disconnected
		m.mu.Unlock()
		m.reportState(conn.ID, Disconnected)
		return err
	}

	m.mu.Lock()
	m.state = Connected
	m.mu.Unlock()
	m.reportState(conn.ID, Connected)
	return nil
}

// TestConnection runs the same start sequence as OpenConnection with every
// consumer in dry-run mode, bounded by readinessTimeout, then immediately
// tears the generation back down regardless of outcome. It never leaves
// the machine in Connected.
func (m *Machine) TestConnection(ctx context.Context, conn connection.Connection, factory Factory) error {
	m.mu.Lock()
	if m.state != Disconnected {
		m.mu.Unlock()
		return errors.ErrAlreadyStarted
	}
	m.state = Testing
	m.mu.Unlock()
	m.reportState(conn.ID, Testing)

	testCtx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()

	startErr := m.start(testCtx, conn, factory, true)
	stopErr := m.stop()

	m.mu.Lock()
	m.state = Disconnected
	m.mu.Unlock()
	m.reportState(conn.ID, Disconnected)

	if startErr != nil {
		return startErr
	}
	return stopErr
}

// CloseConnection activates the generation's kill-switch, waits for every
// consumer to drain, closes the publisher, and re-enters Disconnected.
// Reconnection is expected to be a fresh OpenConnection call, not an
// in-place mutation of this Machine (spec.md §4.8).
func (m *Machine) CloseConnection() error {
	m.mu.Lock()
	if m.state != Connected {
		m.mu.Unlock()
		return errors.ErrNotStarted
	}
	connID := m.conn.ID
	m.state = Disconnecting
	m.mu.Unlock()
	m.reportState(connID, Disconnecting)

	err := m.stop()

	m.mu.Lock()
	m.state = Disconnected
	m.mu.Unlock()
	m.reportState(connID, Disconnected)
	return err
}

// reportState publishes s to the client_state gauge, if Metrics is
// configured. It never touches m.state; callers update that themselves
// under m.mu so the check-and-set in OpenConnection/TestConnection/
// CloseConnection stays a single critical section.
func (m *Machine) reportState(connID string, s State) {
	if m.Metrics != nil {
		m.Metrics.ClientState.WithLabelValues(connID).Set(float64(s))
	}
}

// RetrieveStatus aggregates overall state and every consumer worker's
// self-reported status.
func (m *Machine) RetrieveStatus(ctx context.Context) Status {
	m.mu.Lock()
	state := m.state
	workers := append([]*consumer.Worker(nil), m.workers...)
	m.mu.Unlock()

	statuses := make([]consumer.Status, 0, len(workers))
	for _, w := range workers {
		statuses = append(statuses, w.RetrieveAddressStatus(ctx))
	}
	return Status{State: state, Consumers: statuses}
}

func (m *Machine) start(ctx context.Context, conn connection.Connection, factory Factory, dryRun bool) error {
	knownAliases := aliasSet(conn)
	if err := validator.Validate(&conn, knownAliases); err != nil {
		return err
	}

	defs := make([]mapping.Definition, 0, len(conn.MappingDefinitions))
	for alias, md := range conn.MappingDefinitions {
		defs = append(defs, mapping.Definition{Alias: alias, Engine: md.MappingEngine, Options: md.Options})
	}
	built, err := m.Registry.Build(defs)
	if err != nil {
		return err
	}
	wrapped := make(map[string]mapping.Mapper, len(built))
	for alias, inner := range built {
		wrapped[alias] = &mapping.Wrapping{
			Delegate:          inner,
			MaxMappedInbound:  conn.MaxMappedInboundMessages,
			MaxMappedOutbound: conn.MaxMappedOutboundMessages,
		}
	}

	matcher := enforcement.Matcher(enforcement.PlainMatcher)
	if conn.ConnectionType == connection.MQTT {
		matcher = enforcement.MQTTTopicMatcher
	}

	genCtx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	m.conn = conn
	m.proc = processor.New(wrapped, matcher)
	m.proc.ConnectionID = conn.ID
	m.proc.Metrics = m.Metrics
	m.pub = publisher.New(factory.NewPublishHandle, nil)
	m.pub.ConnectionID = conn.ID
	m.pub.Metrics = m.Metrics
	m.cancel = cancel
	m.workers = nil
	m.subs = nil
	m.mu.Unlock()

	if m.Bus != nil {
		sub, err := m.Bus.Subscribe(genCtx, ">", m.handleOutboundSignal)
		if err != nil {
			cancel()
			return err
		}
		m.mu.Lock()
		m.subs = append(m.subs, subscriptionAdapter{sub})
		m.mu.Unlock()
	}

	for _, src := range conn.Sources {
		for i := 0; i < src.ConsumerCount; i++ {
			w := consumer.New(src, i, m.proc, m, m, m.Logger, m.BufferSize)
			w.DryRun = dryRun
			w.ConnectionID = conn.ID
			w.Metrics = m.Metrics

			sub, err := factory.Subscribe(genCtx, src, i, w.Enqueue)
			if err != nil {
				cancel()
				m.stop()
				return err
			}

			m.mu.Lock()
			m.workers = append(m.workers, w)
			m.subs = append(m.subs, sub)
			m.mu.Unlock()

			m.wg.Add(1)
			go func(w *consumer.Worker) {
				defer m.wg.Done()
				w.Run(genCtx)
			}(w)
		}
	}

	return nil
}

// stop is the shared teardown path for CloseConnection and a failed/
// completed TestConnection: cancel the kill-switch, close every stream,
// join the consumer goroutines, then close the publisher.
func (m *Machine) stop() error {
	m.mu.Lock()
	cancel := m.cancel
	subs := m.subs
	pub := m.pub
	m.cancel = nil
	m.subs = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, s := range subs {
		if s != nil {
			_ = s.Close()
		}
	}
	m.wg.Wait()

	var err error
	if pub != nil {
		err = pub.Close()
	}

	m.mu.Lock()
	m.workers = nil
	m.pub = nil
	m.mu.Unlock()
	return err
}

// Forward implements consumer.Sink: a successfully mapped inbound signal
// is published onto the internal bus for downstream consumption (e.g. by
// the digital twin core), on a subject derived from its topic.
func (m *Machine) Forward(ctx context.Context, sig signal.Signal) error {
	if m.Bus == nil {
		return nil
	}
	return m.Bus.Publish(ctx, topicSubject(sig.Topic), sig)
}

// Reply implements consumer.Sink: an error-response is routed back out
// through the same outbound path as any other signal, per spec.md §4.4/§7
// ("through the normal outbound path, preserving correlation-id").
func (m *Machine) Reply(ctx context.Context, sig signal.Signal) error {
	return m.deliver(ctx, sig)
}

// OnConsumerFailure implements consumer.FailureMonitor: a parse/processing
// failure that never tears down the stream is logged, not escalated.
func (m *Machine) OnConsumerFailure(address string, err error) {
	m.Logger.Warn("client: consumer failure", "address", address, "connection", m.conn.ID, "error", err)
}

func (m *Machine) handleOutboundSignal(sig signal.Signal) {
	if err := m.deliver(context.Background(), sig); err != nil {
		m.Logger.Warn("client: outbound delivery failed", "connection", m.conn.ID, "error", err)
	}
}

func (m *Machine) deliver(ctx context.Context, sig signal.Signal) error {
	m.mu.Lock()
	proc := m.proc
	pub := m.pub
	targets := m.conn.Targets
	m.mu.Unlock()

	if proc == nil || pub == nil {
		return nil
	}

	deliveries, err := proc.ProcessOutbound(sig, targets)
	if err != nil {
		return err
	}

	var firstErr error
	for _, d := range deliveries {
		if err := pub.Publish(ctx, d.ResolvedAddress, d.Message); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func aliasSet(conn connection.Connection) map[string]struct{} {
	set := make(map[string]struct{}, len(conn.MappingDefinitions)+1)
	set[mapping.DefaultAlias] = struct{}{}
	for alias := range conn.MappingDefinitions {
		set[alias] = struct{}{}
	}
	return set
}

// topicSubject converts a slash-joined topic path into a NATS-style
// dot-joined subject.
func topicSubject(t signal.TopicPath) string {
	return strings.ReplaceAll(t.String(), "/", ".")
}

type subscriptionAdapter struct {
	bus.Subscription
}

func (s subscriptionAdapter) Close() error {
	return s.Unsubscribe()
}
