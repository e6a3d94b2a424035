// Package metrics exposes solve and repair activity as Prometheus metrics
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "scheduler"

// Metrics implements both model.SolveObserver and repair.Observer
type Metrics struct {
	// SolvesTotal counts solves by result (feasible, infeasible, timeout, error)
	SolvesTotal *prometheus.CounterVec

	// SolveDurationSeconds measures solve wall time by result
	SolveDurationSeconds *prometheus.HistogramVec

	// SolverCalls measures the SAT calls issued per solve
	SolverCalls prometheus.Histogram

	// RepairsTotal counts engine operations by operation (reset, baseline, apply, release, undo)
	// and outcome (applied, rejected, error)
	RepairsTotal *prometheus.CounterVec

	RepairDurationSeconds *prometheus.HistogramVec

	// Violations is the number of hard rule violations in the latest published report
	Violations prometheus.Gauge
}

func New(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		SolvesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "solve",
				Name:      "total",
				Help:      "Total number of solves by result",
			},
			[]string{"result"},
		),
		SolveDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "solve",
				Name:      "duration_seconds",
				Help:      "Solve duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"result"},
		),
		SolverCalls: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "solve",
				Name:      "sat_calls",
				Help:      "SAT calls issued per solve",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		RepairsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "repair",
				Name:      "total",
				Help:      "Total number of engine operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		RepairDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "repair",
				Name:      "duration_seconds",
				Help:      "Engine operation duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"operation"},
		),
		Violations: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "violations",
				Help:      "Hard rule violations knowingly introduced by forced overrides in the current schedule",
			},
		),
	}
}

func (metrics *Metrics) ObserveSolve(result string, calls int, duration time.Duration) {
	metrics.SolvesTotal.WithLabelValues(result).Inc()
	metrics.SolveDurationSeconds.WithLabelValues(result).Observe(duration.Seconds())
	metrics.SolverCalls.Observe(float64(calls))
}

func (metrics *Metrics) ObserveRepair(operation, outcome string, duration time.Duration) {
	metrics.RepairsTotal.WithLabelValues(operation, outcome).Inc()
	metrics.RepairDurationSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

func (metrics *Metrics) ObserveViolations(count int) {
	metrics.Violations.Set(float64(count))
}
