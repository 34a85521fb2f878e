// Package consumer implements the per-source, per-consumer-count worker
// that turns library stream elements into external messages and hands
// them to the message mapping processor (spec.md §4.6).
package consumer

import (
	"context"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/c360/twinbridge/connection"
	"github.com/c360/twinbridge/external"
	"github.com/c360/twinbridge/metrics"
	"github.com/c360/twinbridge/processor"
	"github.com/c360/twinbridge/signal"
)

// RawMessage is one element read off a protocol library's stream. Ack is
// called exactly once, after processing, regardless of outcome — the
// worker never blocks the upstream stream on this core's own failures
// (spec.md §4.6).
type RawMessage struct {
	Payload     []byte
	ContentType string
	Headers     map[string]string
	Address     string
	Ack         func()
}

// Status is the worker's self-reported health, returned in answer to
// RetrieveAddressStatus.
type Status struct {
	Address       string
	MessageCount  uint64
	FailureCount  uint64
	LastMessageAt time.Time
	Running       bool
}

// Sink is where a consumer worker delivers the processor's output: every
// forwarded signal goes to the internal bus, every error-response goes
// back out through the outbound path.
type Sink interface {
	Forward(ctx context.Context, sig signal.Signal) error
	Reply(ctx context.Context, sig signal.Signal) error
}

// FailureMonitor observes protocol-level failures that never tear down the
// stream (spec.md §4.6 "emit a failure monitoring event").
type FailureMonitor interface {
	OnConsumerFailure(address string, err error)
}

// Worker is one (source, consumer-index) pair's run loop. Construct one
// per consumer-count entry of a source; the client state machine owns
// starting and stopping every worker for a generation.
type Worker struct {
	Source    connection.Source
	Index     int
	Processor *processor.Processor
	Sink      Sink
	Monitor   FailureMonitor
	Logger    *slog.Logger

	// ConnectionID and Metrics label and receive this worker's Prometheus
	// series; both are optional, and a nil Metrics disables collection.
	ConnectionID string
	Metrics      *metrics.Metrics

	// DryRun discards every message without processing it, used by
	// TestConnection (spec.md §4.6).
	DryRun bool

	// BufferSize bounds the inbox; Enqueue drops the oldest queued
	// message to make room for a new one once full (spec.md §5
	// "sourceBufferSize... overflow policy: drop-head").
	BufferSize int

	inbox      chan RawMessage
	statusReq  chan chan Status
	mu         sync.Mutex
	status     Status
}

// New constructs a Worker with its inbox sized per bufferSize (a
// non-positive value defaults to 64).
func New(src connection.Source, index int, p *processor.Processor, sink Sink, monitor FailureMonitor, logger *slog.Logger, bufferSize int) *Worker {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		Source:     src,
		Index:      index,
		Processor:  p,
		Sink:       sink,
		Monitor:    monitor,
		Logger:     logger,
		BufferSize: bufferSize,
		statusReq:  make(chan chan Status),
		inbox:      make(chan RawMessage, bufferSize),
	}
}

// Enqueue delivers one RawMessage to the worker, implementing the
// drop-head overflow policy: if the inbox is full, the oldest queued
// message is discarded (its Ack still fires, since the stream element was
// in fact consumed) to make room for raw.
func (w *Worker) Enqueue(raw RawMessage) {
	select {
	case w.inbox <- raw:
		return
	default:
	}

	select {
	case dropped := <-w.inbox:
		if dropped.Ack != nil {
			dropped.Ack()
		}
		if w.Metrics != nil {
			w.Metrics.ConsumerQueueDrop.WithLabelValues(w.ConnectionID, dropped.Address).Inc()
		}
	default:
	}

	select {
	case w.inbox <- raw:
	default:
		if raw.Ack != nil {
			raw.Ack()
		}
	}
}

// RetrieveAddressStatus answers with a snapshot of the worker's status.
// Safe to call concurrently with Run.
func (w *Worker) RetrieveAddressStatus(ctx context.Context) Status {
	reply := make(chan Status, 1)
	select {
	case w.statusReq <- reply:
	case <-ctx.Done():
		return Status{}
	}
	select {
	case s := <-reply:
		return s
	case <-ctx.Done():
		return Status{}
	}
}

// Run is the worker's single-goroutine message loop; it processes exactly
// one RawMessage or status request at a time against private state and
// returns when ctx is cancelled (the generation's shared kill-switch).
func (w *Worker) Run(ctx context.Context) {
	w.setRunning(true)
	defer w.setRunning(false)

	for {
		select {
		case raw := <-w.inbox:
			w.handle(ctx, raw)
		case reply := <-w.statusReq:
			w.mu.Lock()
			snapshot := w.status
			w.mu.Unlock()
			reply <- snapshot
		case <-ctx.Done():
			return
		}
	}
}

func (w *Worker) setRunning(running bool) {
	w.mu.Lock()
	w.status.Running = running
	w.mu.Unlock()
}

func (w *Worker) handle(ctx context.Context, raw RawMessage) {
	defer func() {
		if raw.Ack != nil {
			raw.Ack()
		}
	}()

	w.mu.Lock()
	w.status.MessageCount++
	w.status.LastMessageAt = time.Now()
	w.mu.Unlock()

	if w.Metrics != nil {
		w.Metrics.ConsumerMessages.WithLabelValues(w.ConnectionID, raw.Address).Inc()
	}

	if w.DryRun {
		return
	}

	msg := buildExternalMessage(raw, w.Source)

	outcome, err := w.Processor.ProcessInbound(msg, w.Source)
	if err != nil {
		w.mu.Lock()
		w.status.FailureCount++
		w.mu.Unlock()
		if w.Metrics != nil {
			w.Metrics.ConsumerFailures.WithLabelValues(w.ConnectionID, raw.Address).Inc()
		}
		if w.Monitor != nil {
			w.Monitor.OnConsumerFailure(raw.Address, err)
		}
		return
	}

	for _, sig := range outcome.Forwarded {
		if err := w.Sink.Forward(ctx, sig); err != nil {
			w.Logger.Warn("consumer: forward failed", "address", raw.Address, "error", err)
		}
	}
	for _, sig := range outcome.ErrorResponses {
		if err := w.Sink.Reply(ctx, sig); err != nil {
			w.Logger.Warn("consumer: reply failed", "address", raw.Address, "error", err)
		}
	}
}

func buildExternalMessage(raw RawMessage, src connection.Source) external.Message {
	msg := external.New(raw.Payload, raw.ContentType, raw.Headers)
	msg.SourceAddress = raw.Address
	msg.AuthorizationContext = src.AuthorizationContext
	msg.PayloadMapping = src.PayloadMapping
	if src.Enforcement != nil {
		msg.EnforcementInput = raw.Address
	}
	if !utf8.Valid(raw.Payload) {
		msg.IsText = false
		msg.Text = ""
	}
	return msg
}
