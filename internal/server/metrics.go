package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/omochice/chat-relay/internal/chat"
)

const metricsNamespace = "chatrelay"

// Metrics holds the Prometheus metrics for the relay. It implements
// chat.Observer.
type Metrics struct {
	accepted      prometheus.Counter
	rejected      prometheus.Counter
	closed        prometheus.Counter
	active        prometheus.Gauge
	acceptErrors  prometheus.Counter
	commands      *prometheus.CounterVec
	delivered     prometheus.Counter
	writeFailures prometheus.Counter
}

// NewMetrics registers the relay's metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		accepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connections_accepted_total",
			Help:      "Connections admitted to the registry",
		}),
		rejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connections_rejected_total",
			Help:      "Connections refused because the registry was full",
		}),
		closed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connections_closed_total",
			Help:      "Connections torn down",
		}),
		active: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "connections_active",
			Help:      "Connections currently in the registry",
		}),
		acceptErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "accept_errors_total",
			Help:      "Accept calls that failed with something other than would-block",
		}),
		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "commands_total",
			Help:      "Decoded client messages by kind",
		}, []string{"kind"}),
		delivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "envelopes_delivered_total",
			Help:      "Envelopes written in full to a connection",
		}),
		writeFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "write_failures_total",
			Help:      "Envelope writes that failed or were short",
		}),
	}
}

func (m *Metrics) ConnectionAdmitted() {
	m.accepted.Inc()
	m.active.Inc()
}

func (m *Metrics) ConnectionRejected() { m.rejected.Inc() }

func (m *Metrics) ConnectionClosed() {
	m.closed.Inc()
	m.active.Dec()
}

func (m *Metrics) CommandDecoded(kind chat.CommandKind) {
	m.commands.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) Delivered(n int) { m.delivered.Add(float64(n)) }

func (m *Metrics) WriteFailed() { m.writeFailures.Inc() }

// AcceptFailed counts a failed accept call.
func (m *Metrics) AcceptFailed() { m.acceptErrors.Inc() }

var _ chat.Observer = (*Metrics)(nil)
