// Package metricsx exposes the detector and discretizer's Prometheus
// metrics, grounded on internal/interfaces/http's MetricsRegistry: one
// struct field per metric, a constructor that registers them all, and
// small Record*/Observe* helper methods colocated with the metrics
// they touch.
package metricsx

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric the legs/swingstate/discretize pipeline
// emits. Unlike the teacher's global DefaultMetrics, NewRegistry takes
// its own prometheus.Registerer so tests can use a private registry
// instead of colliding with package-level global state.
type Registry struct {
	BarDuration *prometheus.HistogramVec

	LegsCreated *prometheus.CounterVec
	LegsPruned  *prometheus.CounterVec
	LegsActive  *prometheus.GaugeVec

	SwingsFormed      *prometheus.CounterVec
	SwingsInvalidated *prometheus.CounterVec
	SwingsCompleted   *prometheus.CounterVec

	DiscretizeEvents *prometheus.CounterVec

	LevelCrosses *prometheus.CounterVec
}

// NewRegistry builds and registers every metric against reg. Passing
// prometheus.NewRegistry() isolates a test instance; passing
// prometheus.DefaultRegisterer matches the teacher's process-wide
// registration.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		BarDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "legscan_bar_processing_duration_seconds",
				Help:    "Duration of a single ProcessBar call in seconds",
				Buckets: []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
			},
			[]string{"stage"},
		),

		LegsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "legscan_legs_created_total",
				Help: "Total number of legs created, by direction",
			},
			[]string{"direction"},
		),

		LegsPruned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "legscan_legs_pruned_total",
				Help: "Total number of legs pruned, by reason",
			},
			[]string{"reason"},
		),

		LegsActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "legscan_legs_active",
				Help: "Current number of actively tracked legs, by direction",
			},
			[]string{"direction"},
		),

		SwingsFormed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "legscan_swings_formed_total",
				Help: "Total number of swings promoted from a leg, by scale",
			},
			[]string{"scale"},
		),

		SwingsInvalidated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "legscan_swings_invalidated_total",
				Help: "Total number of swings invalidated, by scale",
			},
			[]string{"scale"},
		),

		SwingsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "legscan_swings_completed_total",
				Help: "Total number of swings completed, by scale",
			},
			[]string{"scale"},
		),

		DiscretizeEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "legscan_discretize_events_total",
				Help: "Total number of discretization events emitted, by event_type",
			},
			[]string{"event_type"},
		),

		LevelCrosses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "legscan_level_crosses_total",
				Help: "Total number of Fibonacci level crossings, by level",
			},
			[]string{"level"},
		),
	}

	reg.MustRegister(
		r.BarDuration,
		r.LegsCreated,
		r.LegsPruned,
		r.LegsActive,
		r.SwingsFormed,
		r.SwingsInvalidated,
		r.SwingsCompleted,
		r.DiscretizeEvents,
		r.LevelCrosses,
	)
	return r
}

// BarTimer times a single ProcessBar stage; Stop records the
// observation against BarDuration.
type BarTimer struct {
	reg   *Registry
	stage string
	start time.Time
}

// StartBarTimer begins timing stage ("legs", "swingstate",
// "discretize").
func (r *Registry) StartBarTimer(stage string) *BarTimer {
	return &BarTimer{reg: r, stage: stage, start: time.Now()}
}

// Stop completes the timing and records it.
func (bt *BarTimer) Stop() {
	bt.reg.BarDuration.WithLabelValues(bt.stage).Observe(time.Since(bt.start).Seconds())
}

// RecordLegCreated increments LegsCreated and LegsActive for direction.
func (r *Registry) RecordLegCreated(direction string) {
	r.LegsCreated.WithLabelValues(direction).Inc()
	r.LegsActive.WithLabelValues(direction).Inc()
}

// RecordLegPruned increments LegsPruned for reason and decrements the
// active gauge for direction.
func (r *Registry) RecordLegPruned(reason, direction string) {
	r.LegsPruned.WithLabelValues(reason).Inc()
	r.LegsActive.WithLabelValues(direction).Dec()
}

// RecordSwingFormed increments SwingsFormed for scale.
func (r *Registry) RecordSwingFormed(scale string) {
	r.SwingsFormed.WithLabelValues(scale).Inc()
}

// RecordSwingInvalidated increments SwingsInvalidated for scale.
func (r *Registry) RecordSwingInvalidated(scale string) {
	r.SwingsInvalidated.WithLabelValues(scale).Inc()
}

// RecordSwingCompleted increments SwingsCompleted for scale.
func (r *Registry) RecordSwingCompleted(scale string) {
	r.SwingsCompleted.WithLabelValues(scale).Inc()
}

// RecordSwingStateLevelCross increments LevelCrosses for level, for a
// crossing observed by the swing-state reference layer (C4) rather
// than the discretizer (C5) replay pass.
func (r *Registry) RecordSwingStateLevelCross(level string) {
	r.LevelCrosses.WithLabelValues(level).Inc()
}

// RecordDiscretizeEvent increments DiscretizeEvents for eventType, and
// LevelCrosses for level when eventType is a level crossing (level ==
// "" for every other event type).
func (r *Registry) RecordDiscretizeEvent(eventType, level string) {
	r.DiscretizeEvents.WithLabelValues(eventType).Inc()
	if level != "" {
		r.LevelCrosses.WithLabelValues(level).Inc()
	}
}

// Handler returns the Prometheus scrape handler for reg, the same
// registerer NewRegistry was built against.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
