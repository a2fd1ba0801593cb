package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the workflow engine.
type Metrics struct {
	SubmissionsCreated  prometheus.Counter
	SubmissionsVerified *prometheus.CounterVec
	SubmissionsDeleted  prometheus.Counter
	PointsAwarded       prometheus.Counter
	BadgesAwarded       prometheus.Counter
	BatchItems          *prometheus.CounterVec
	EventsBroadcast     prometheus.Counter
	EventsDropped       prometheus.Counter
	LiveConnections     prometheus.Gauge
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		SubmissionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "citeline_submissions_created_total",
			Help: "Total number of submissions created",
		}),
		SubmissionsVerified: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "citeline_submissions_verified_total",
			Help: "Total number of verification transitions applied, by outcome",
		}, []string{"status"}),
		SubmissionsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "citeline_submissions_deleted_total",
			Help: "Total number of submissions deleted",
		}),
		PointsAwarded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "citeline_points_awarded_total",
			Help: "Total points credited across all accounts",
		}),
		BadgesAwarded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "citeline_badges_awarded_total",
			Help: "Total badges awarded",
		}),
		BatchItems: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "citeline_batch_items_total",
			Help: "Total batch apply items processed, by result",
		}, []string{"result"}),
		EventsBroadcast: promauto.NewCounter(prometheus.CounterOpts{
			Name: "citeline_events_broadcast_total",
			Help: "Total domain events delivered to live connections",
		}),
		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "citeline_events_dropped_total",
			Help: "Total domain events dropped due to slow or dead connections",
		}),
		LiveConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "citeline_live_connections",
			Help: "Current number of registered live connections",
		}),
	}
}

func (m *Metrics) IncrementSubmissionsCreated() {
	if m != nil {
		m.SubmissionsCreated.Inc()
	}
}

func (m *Metrics) IncrementSubmissionsVerified(status string) {
	if m != nil {
		m.SubmissionsVerified.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) IncrementSubmissionsDeleted() {
	if m != nil {
		m.SubmissionsDeleted.Inc()
	}
}

func (m *Metrics) AddPointsAwarded(points int) {
	if m != nil {
		m.PointsAwarded.Add(float64(points))
	}
}

func (m *Metrics) IncrementBadgesAwarded() {
	if m != nil {
		m.BadgesAwarded.Inc()
	}
}

func (m *Metrics) IncrementBatchItems(result string) {
	if m != nil {
		m.BatchItems.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) IncrementEventsBroadcast() {
	if m != nil {
		m.EventsBroadcast.Inc()
	}
}

func (m *Metrics) IncrementEventsDropped() {
	if m != nil {
		m.EventsDropped.Inc()
	}
}

func (m *Metrics) SetLiveConnections(count int) {
	if m != nil {
		m.LiveConnections.Set(float64(count))
	}
}
