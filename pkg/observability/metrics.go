package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the application's Prometheus collectors.
type Metrics struct {
	SnapshotSaves        *prometheus.CounterVec
	SnapshotSaveDuration prometheus.Histogram
	ViewportSaves        prometheus.Counter

	GenerationsTotal    *prometheus.CounterVec
	GenerationDuration  *prometheus.HistogramVec
	GenerationsInFlight prometheus.Gauge

	DroppedConnectionIDs prometheus.Counter
	PlacementFallbacks   prometheus.Counter

	NodesOnCanvas prometheus.Gauge
	EdgesOnCanvas prometheus.Gauge

	WebsocketClients prometheus.Gauge
}

// NewMetrics registers the application collectors with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SnapshotSaves: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "canvas",
			Name:      "snapshot_saves_total",
			Help:      "Canvas snapshot save attempts by outcome.",
		}, []string{"outcome"}),
		SnapshotSaveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "canvas",
			Name:      "snapshot_save_duration_seconds",
			Help:      "Latency of canvas snapshot writes.",
			Buckets:   prometheus.DefBuckets,
		}),
		ViewportSaves: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "canvas",
			Name:      "viewport_saves_total",
			Help:      "Debounced viewport-only writes.",
		}),

		GenerationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "canvas",
			Name:      "generations_total",
			Help:      "Generation runs by agent type and outcome.",
		}, []string{"agent_type", "outcome"}),
		GenerationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "canvas",
			Name:      "generation_duration_seconds",
			Help:      "End-to-end latency of generation runs.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"agent_type"}),
		GenerationsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "canvas",
			Name:      "generations_in_flight",
			Help:      "Generation runs currently executing.",
		}),

		DroppedConnectionIDs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "canvas",
			Name:      "dropped_connection_ids_total",
			Help:      "Persisted connection ids that resolved to no live node at load.",
		}),
		PlacementFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "canvas",
			Name:      "placement_fallbacks_total",
			Help:      "Placements that exhausted the ring search and used the fixed offset.",
		}),

		NodesOnCanvas: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "canvas",
			Name:      "nodes",
			Help:      "Nodes currently on the canvas.",
		}),
		EdgesOnCanvas: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "canvas",
			Name:      "edges",
			Help:      "Edges currently on the canvas.",
		}),

		WebsocketClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "canvas",
			Name:      "websocket_clients",
			Help:      "Connected websocket clients.",
		}),
	}
}

// NewNopMetrics returns metrics bound to a private registry, for tests.
func NewNopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
