package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "gini", cfg.Solve.Backend)
	assert.Equal(t, time.Minute, cfg.Solve.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Solve.CoreTimeout)
	assert.Equal(t, 55, cfg.Repair.AdHocLength)
	assert.Equal(t, "info", cfg.Log.Level)
	detector, err := cfg.Inspect.Detector()
	require.NoError(t, err)
	assert.Equal(t, "08:30", detector.EarlyBefore.String())
}

func TestFileAndEnvironment(t *testing.T) {
	//** Arrange
	path := filepath.Join(t.TempDir(), "scheduler.yaml")
	content := `
solve:
  backend: kissat
  timeout: 2m
repair:
  snap_tolerance: 45
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("SCHEDULER_LOG_LEVEL", "warn")
	t.Setenv("SCHEDULER_SOLVE_EXECUTABLE", "/opt/kissat/bin/kissat")

	//** Act
	cfg, err := Load(path)

	//** Assert
	require.NoError(t, err)
	assert.Equal(t, "kissat", cfg.Solve.Backend)
	assert.Equal(t, 2*time.Minute, cfg.Solve.Timeout)
	assert.Equal(t, "/opt/kissat/bin/kissat", cfg.Solve.Executable)
	assert.Equal(t, 45, cfg.Repair.SnapTolerance)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestInvalidConfig(t *testing.T) {
	scenarios := map[string]string{
		"Unknown backend":     "solve:\n  backend: z3\n",
		"Negative tolerance":  "repair:\n  snap_tolerance: -5\n",
		"Malformed threshold": "inspect:\n  early_before: early\n",
	}
	for name, content := range scenarios {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "scheduler.yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

			_, err := Load(path)

			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
