package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/limaJavier/scheduler/pkg/catalog"
	"github.com/limaJavier/scheduler/pkg/conflict"
	"github.com/limaJavier/scheduler/pkg/model"
	"github.com/limaJavier/scheduler/pkg/repair"
	"github.com/limaJavier/scheduler/pkg/sat"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservers(t *testing.T) {
	metrics := New(prometheus.NewRegistry())

	metrics.ObserveSolve("feasible", 4, 20*time.Millisecond)
	metrics.ObserveSolve("infeasible", 2, time.Millisecond)
	metrics.ObserveRepair("apply", "rejected", time.Millisecond)
	metrics.ObserveViolations(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SolvesTotal.WithLabelValues("feasible")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RepairsTotal.WithLabelValues("apply", "rejected")))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.Violations))
}

func TestEngineReportsThroughMetrics(t *testing.T) {
	//** Arrange
	registry := prometheus.NewRegistry()
	metrics := New(registry)
	cat := catalog.Default()
	entities, err := model.NewEntities(
		[]model.Course{{ID: "CS102", Components: []model.Component{{Type: catalog.Lecture, Sessions: 3}}}},
		[]model.Room{{ID: "R1", Capacity: 50, Type: model.LectureHall}},
		[]model.Faculty{{ID: "F1", Teaches: []model.Teachable{{Course: "CS102"}}}},
		nil,
	)
	require.NoError(t, err)
	engine := repair.NewEngine(
		cat,
		model.NewTimetabler(sat.NewGiniSolver(), model.WithObserver(metrics)),
		conflict.NewDetector(cat, conflict.DefaultConfig()),
		repair.WithObserver(metrics),
	)

	//** Act
	_, err = engine.Reset(context.Background(), entities)

	//** Assert
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SolvesTotal.WithLabelValues("feasible")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RepairsTotal.WithLabelValues("reset", "applied")))
	count, err := testutil.GatherAndCount(registry, "scheduler_solve_sat_calls")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
