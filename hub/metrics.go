package hub

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the hub's prometheus collectors.
type Metrics struct {
	sessions        prometheus.Gauge
	historySize     prometheus.Gauge
	eventsReceived  *prometheus.CounterVec
	messagesRelayed prometheus.Counter
	acksRelayed     *prometheus.CounterVec
	deletions       *prometheus.CounterVec
	dropped         *prometheus.CounterVec
}

// NewMetrics creates the hub collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "relaysync",
			Subsystem: "hub",
			Name:      "sessions",
			Help:      "Number of connected sessions.",
		}),
		historySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "relaysync",
			Subsystem: "hub",
			Name:      "history_messages",
			Help:      "Number of messages held in the shared history.",
		}),
		eventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relaysync",
			Subsystem: "hub",
			Name:      "events_received_total",
			Help:      "Events received from sessions, by event name.",
		}, []string{"event"}),
		messagesRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relaysync",
			Subsystem: "hub",
			Name:      "messages_relayed_total",
			Help:      "Messages fanned out to sessions.",
		}),
		acksRelayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relaysync",
			Subsystem: "hub",
			Name:      "acks_relayed_total",
			Help:      "Acknowledgements relayed as status updates, by status.",
		}, []string{"status"}),
		deletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relaysync",
			Subsystem: "hub",
			Name:      "deletions_total",
			Help:      "Delete requests applied, by scope.",
		}, []string{"scope"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relaysync",
			Subsystem: "hub",
			Name:      "dropped_total",
			Help:      "Events dropped or sessions evicted, by reason.",
		}, []string{"reason"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.sessions,
			m.historySize,
			m.eventsReceived,
			m.messagesRelayed,
			m.acksRelayed,
			m.deletions,
			m.dropped,
		)
	}
	return m
}
