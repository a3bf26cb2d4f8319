package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns the service's prometheus collectors on a private registry.
type Recorder struct {
	registry       *prometheus.Registry
	ticks          prometheus.Counter
	tickDuration   prometheus.Histogram
	edges          *prometheus.CounterVec
	anomalies      *prometheus.CounterVec
	sensorFailures prometheus.Counter
	occupiedSlots  prometheus.Gauge
	billed         prometheus.Counter
}

// NewRecorder registers all collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "reconcile_ticks_total",
			Help:      "Reconciliation passes completed.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "parking",
			Name:      "reconcile_tick_duration_seconds",
			Help:      "Wall time of one reconciliation pass, sensor poll included.",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2},
		}),
		edges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "occupancy_edges_total",
			Help:      "Occupancy transitions observed, by direction.",
		}, []string{"edge"}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "consistency_anomalies_total",
			Help:      "Edges that could not be matched to session state.",
		}, []string{"kind"}),
		sensorFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "sensor_failures_total",
			Help:      "Sensor polls that fell back to all-free.",
		}),
		occupiedSlots: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "parking",
			Name:      "occupied_slots",
			Help:      "Slots currently observed occupied.",
		}),
		billed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "billed_amount_total",
			Help:      "Sum of costs of closed sessions.",
		}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.ticks,
		r.tickDuration,
		r.edges,
		r.anomalies,
		r.sensorFailures,
		r.occupiedSlots,
		r.billed,
	)
	return r
}

// Handler exposes the registry for scraping.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) TickCompleted(d time.Duration, occupied int) {
	r.ticks.Inc()
	r.tickDuration.Observe(d.Seconds())
	r.occupiedSlots.Set(float64(occupied))
}

func (r *Recorder) Edge(kind string) {
	r.edges.WithLabelValues(kind).Inc()
}

func (r *Recorder) Anomaly(kind string) {
	r.anomalies.WithLabelValues(kind).Inc()
}

func (r *Recorder) Billed(amount float64) {
	if amount > 0 {
		r.billed.Add(amount)
	}
}

func (r *Recorder) SensorFailure() {
	r.sensorFailures.Inc()
}
