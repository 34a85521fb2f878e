// Package metrics holds the Prometheus metrics emitted by a connection
// generation's workers: consumer throughput and failures, publisher
// handle churn and backoff, and processor mapping/enforcement outcomes.
// Every worker accepts a *Metrics that may be nil, so metrics collection
// is opt-in and never required to exercise the core (spec.md §1 treats
// metrics sinks as an external collaborator; this package only defines
// and updates the series, not where they are shipped).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the full set of connectivity-core series, grouped by the
// worker that owns them. Construct exactly one per process with New and
// share it across every connection's Machine — each series is labeled by
// connection id, so one Metrics instance serves any number of
// generations.
type Metrics struct {
	ConsumerMessages  *prometheus.CounterVec
	ConsumerFailures  *prometheus.CounterVec
	ConsumerQueueDrop *prometheus.CounterVec

	ProcessorMapped      *prometheus.CounterVec
	ProcessorErrors      *prometheus.CounterVec
	ProcessorEnforcement *prometheus.CounterVec

	PublisherSent         *prometheus.CounterVec
	PublisherFailures     *prometheus.CounterVec
	PublisherHandleCreate *prometheus.CounterVec
	PublisherBackoff      *prometheus.GaugeVec

	ClientState *prometheus.GaugeVec
}

// New constructs a fresh set of metrics, unregistered with any
// prometheus.Registerer. Callers MustRegister (or Register, handling
// prometheus.AlreadyRegisteredError for test reuse) against whichever
// registry their process exposes on /metrics.
func New() *Metrics {
	return &Metrics{
		ConsumerMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "twinbridge",
				Subsystem: "consumer",
				Name:      "messages_total",
				Help:      "Total external messages received by a consumer worker.",
			},
			[]string{"connection", "address"},
		),
		ConsumerFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "twinbridge",
				Subsystem: "consumer",
				Name:      "failures_total",
				Help:      "Total consumer-side processing failures (never tear down the stream).",
			},
			[]string{"connection", "address"},
		),
		ConsumerQueueDrop: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "twinbridge",
				Subsystem: "consumer",
				Name:      "queue_drop_total",
				Help:      "Total messages dropped by the consumer inbox's drop-head overflow policy.",
			},
			[]string{"connection", "address"},
		),

		ProcessorMapped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "twinbridge",
				Subsystem: "processor",
				Name:      "signals_total",
				Help:      "Total signals produced by the mapping pipeline, by direction.",
			},
			[]string{"connection", "direction", "mapper"},
		),
		ProcessorErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "twinbridge",
				Subsystem: "processor",
				Name:      "errors_total",
				Help:      "Total mapping and address-resolution errors in the processor, by reason.",
			},
			[]string{"connection", "reason"},
		),
		ProcessorEnforcement: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "twinbridge",
				Subsystem: "processor",
				Name:      "enforcement_total",
				Help:      "Total enforcement outcomes, by result (accepted/rejected).",
			},
			[]string{"connection", "result"},
		),

		PublisherSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "twinbridge",
				Subsystem: "publisher",
				Name:      "sent_total",
				Help:      "Total external messages sent by the publisher worker.",
			},
			[]string{"connection", "address"},
		),
		PublisherFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "twinbridge",
				Subsystem: "publisher",
				Name:      "failures_total",
				Help:      "Total publish failures, by address.",
			},
			[]string{"connection", "address"},
		),
		PublisherHandleCreate: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "twinbridge",
				Subsystem: "publisher",
				Name:      "handle_create_total",
				Help:      "Total publish handle (re)creations, including backoff-driven recreation.",
			},
			[]string{"connection", "address"},
		),
		PublisherBackoff: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "twinbridge",
				Subsystem: "publisher",
				Name:      "backoff_seconds",
				Help:      "Current backoff delay for a publish handle, 0 when not backing off.",
			},
			[]string{"connection", "address"},
		),

		ClientState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "twinbridge",
				Subsystem: "client",
				Name:      "state",
				Help:      "Current client state machine state (0=Disconnected,1=Connecting,2=Connected,3=Disconnecting,4=Testing).",
			},
			[]string{"connection"},
		),
	}
}

// Collectors returns every series as a slice, for bulk Register/
// MustRegister calls against a prometheus.Registerer.
func (m *Metrics) Collectors() []prometheus.Collector {
	if m == nil {
		return nil
	}
	return []prometheus.Collector{
		m.ConsumerMessages, m.ConsumerFailures, m.ConsumerQueueDrop,
		m.ProcessorMapped, m.ProcessorErrors, m.ProcessorEnforcement,
		m.PublisherSent, m.PublisherFailures, m.PublisherHandleCreate, m.PublisherBackoff,
		m.ClientState,
	}
}

// MustRegister registers every series against reg, panicking on failure
// as prometheus.Registry.MustRegister does. Safe to call with a nil
// receiver (no-op).
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	if m == nil {
		return
	}
	reg.MustRegister(m.Collectors()...)
}
