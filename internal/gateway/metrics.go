package gateway

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the gateway. A nil *Metrics is valid
// and disables instrumentation entirely.
type Metrics struct {
	clientsConnected    prometheus.Gauge
	connectionsTotal    *prometheus.CounterVec
	disconnectionsTotal *prometheus.CounterVec
	messagesBroadcast   prometheus.Counter
	broadcastDuration   prometheus.Histogram
	readingsPersisted   prometheus.Counter
	persistenceFailures prometheus.Counter
	commandsRelayed     prometheus.Counter
	clientsEvicted      prometheus.Counter
}

// NewMetrics creates and registers gateway metrics. Returns nil if no
// registerer is provided (nil input = nil feature pattern).
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		clientsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gateway",
			Subsystem: "websocket",
			Name:      "clients_connected",
			Help:      "Number of currently connected clients",
		}),

		connectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "websocket",
			Name:      "connections_total",
			Help:      "Total accepted connections by class",
		}, []string{"class"}),

		disconnectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "websocket",
			Name:      "disconnections_total",
			Help:      "Total disconnections by reason",
		}, []string{"reason"}),

		messagesBroadcast: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "websocket",
			Name:      "messages_broadcast_total",
			Help:      "Total messages fanned out to clients",
		}),

		broadcastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gateway",
			Subsystem: "websocket",
			Name:      "broadcast_duration_seconds",
			Help:      "Time to broadcast one message to all clients",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),

		readingsPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "pipeline",
			Name:      "readings_persisted_total",
			Help:      "Sensor readings handed to the store",
		}),

		persistenceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "pipeline",
			Name:      "persistence_failures_total",
			Help:      "Sensor store save failures",
		}),

		commandsRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "relay",
			Name:      "commands_relayed_total",
			Help:      "Commands forwarded to the device",
		}),

		clientsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "liveness",
			Name:      "clients_evicted_total",
			Help:      "Clients removed for missing a heartbeat cycle",
		}),
	}

	registry.MustRegister(
		metrics.clientsConnected,
		metrics.connectionsTotal,
		metrics.disconnectionsTotal,
		metrics.messagesBroadcast,
		metrics.broadcastDuration,
		metrics.readingsPersisted,
		metrics.persistenceFailures,
		metrics.commandsRelayed,
		metrics.clientsEvicted,
	)

	return metrics
}
