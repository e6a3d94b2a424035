package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/limaJavier/scheduler/internal/config"
	"github.com/limaJavier/scheduler/pkg/model"
	"github.com/limaJavier/scheduler/pkg/repair"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const entitiesFile = `
courses:
  - id: CS102
    components: [{type: lecture, sessions: 3}]
    groups: [G1]
  - id: CS201
    components: [{type: L, sessions: 3}]
    groups: [G1]
rooms:
  - {id: R1, capacity: 50, type: lecture_hall}
faculty:
  - id: F1
    teaches: [{course: CS102}, {course: CS201}]
groups:
  - {id: G1, size: 30}
`

const singleRowGrid = `
families:
  - name: MWF
    days: [Mon, Wed, Fri]
rows:
  - id: MWF_09
    family: MWF
    start: "09:00"
    end: "10:00"
    allowed: [L]
`

func writeFile(t *testing.T, dir, name, content string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Chdir(t.TempDir())
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSolve(t *testing.T) {
	//** Arrange
	dir := t.TempDir()
	entities := writeFile(t, dir, "entities.yaml", entitiesFile)

	//** Act
	out, err := execute(t, "solve", "--entities", entities)

	//** Assert
	require.NoError(t, err)
	assert.Equal(t, exitSolved, exitCode(err))
	var decoded struct {
		State struct {
			Assignments []model.Assignment `json:"assignments"`
		} `json:"state"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded.State.Assignments, 2)
	assert.Equal(t, "CS102", decoded.State.Assignments[0].Key.Course)
	assert.Len(t, decoded.State.Assignments[0].Slots, 3)
}

func TestSolveInfeasible(t *testing.T) {
	dir := t.TempDir()
	entities := writeFile(t, dir, "entities.yaml", entitiesFile)
	grid := writeFile(t, dir, "grid.yaml", singleRowGrid)

	_, err := execute(t, "solve", "--entities", entities, "--grid", grid)

	var infeasible *repair.InfeasibleError
	require.True(t, errors.As(err, &infeasible), "expected InfeasibleError, got %v", err)
	assert.Equal(t, exitInfeasible, exitCode(err))
}

func TestRepairReportsRejections(t *testing.T) {
	//** Arrange
	dir := t.TempDir()
	entities := writeFile(t, dir, "entities.yaml", entitiesFile)
	commands := writeFile(t, dir, "commands.yaml", `
commands:
  - {course: CS102, component: L, day: Wed, start: "13:00"}
  - {course: CS999, component: L, day: Mon, start: "09:00"}
  - {course: CS201, component: L, day: Mon, start: "07:00", end: "07:50", forced: true, reason: dean request}
`)
	outFile := filepath.Join(dir, "out.json")

	//** Act
	_, err := execute(t, "repair", "--entities", entities, "--commands", commands, "--out", outFile)

	//** Assert
	require.NoError(t, err)
	bytes, err := os.ReadFile(outFile)
	require.NoError(t, err)
	var decoded struct {
		Ledger struct {
			Entries []map[string]any `json:"entries"`
		} `json:"ledger"`
		Rejected []rejection `json:"rejected"`
	}
	require.NoError(t, json.Unmarshal(bytes, &decoded))
	assert.Len(t, decoded.Rejected, 1)
	assert.Equal(t, "CS999", decoded.Rejected[0].Command.Course)
	assert.Len(t, decoded.Ledger.Entries, 2)
}

func TestInspectText(t *testing.T) {
	dir := t.TempDir()
	entities := writeFile(t, dir, "entities.yaml", entitiesFile)

	out, err := execute(t, "inspect", "--entities", entities, "--text")

	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestInvalidInvocations(t *testing.T) {
	_, err := execute(t, "solve")
	assert.Error(t, err)
	assert.Equal(t, exitInvalidInput, exitCode(err))

	_, err = execute(t, "solve", "--entities", "entities.yaml", "--solver", "z3")
	assert.Error(t, err)

	assert.Equal(t, exitUnverified, exitCode(repair.ErrVerification))
}

func TestWatchRebuildsOnChange(t *testing.T) {
	//** Arrange
	dir := t.TempDir()
	entities := writeFile(t, dir, "entities.yaml", entitiesFile)
	t.Chdir(t.TempDir())
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Entities.Path = entities
	cfg.Metrics.Addr = "127.0.0.1:0"
	cfg.Log.Level = "error"
	app, err := newApp(cfg)
	require.NoError(t, err)
	resets := func() float64 {
		return testutil.ToFloat64(app.metrics.RepairsTotal.WithLabelValues("reset", "applied"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	addresses := make(chan net.Addr, 1)
	done := make(chan error, 1)
	go func() {
		done <- watch(ctx, app, func(addr net.Addr) { addresses <- addr })
	}()
	var addr net.Addr
	select {
	case addr = <-addresses:
	case <-time.After(10 * time.Second):
		require.FailNow(t, "metrics server did not start")
	}
	require.Equal(t, 1.0, resets())

	//** Act
	require.NoError(t, os.WriteFile(entities, []byte(entitiesFile+"\n# edited\n"), 0o600))

	//** Assert
	require.Eventually(t, func() bool { return resets() >= 2 }, 10*time.Second, 20*time.Millisecond)

	response, err := http.Get("http://" + addr.String() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(response.Body)
	response.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `scheduler_repair_total{operation="reset",outcome="applied"}`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		require.FailNow(t, "watch did not stop")
	}
}
