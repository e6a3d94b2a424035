package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/limaJavier/scheduler/internal/config"
	"github.com/limaJavier/scheduler/internal/logger"
	"github.com/limaJavier/scheduler/internal/metrics"
	"github.com/limaJavier/scheduler/pkg/catalog"
	"github.com/limaJavier/scheduler/pkg/conflict"
	"github.com/limaJavier/scheduler/pkg/model"
	"github.com/limaJavier/scheduler/pkg/repair"
	"github.com/limaJavier/scheduler/pkg/sat"
	"github.com/limaJavier/scheduler/pkg/schedule"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// application holds what every command shares once the configuration is loaded
type application struct {
	config   *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	catalog  *catalog.Catalog
}

func newApp(cfg *config.Config) (*application, error) {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	cat := catalog.Default()
	if cfg.Grid.Path != "" {
		if cat, err = catalog.Load(cfg.Grid.Path); err != nil {
			return nil, err
		}
	}

	registry := prometheus.NewRegistry()
	return &application{
		config:   cfg,
		logger:   log,
		registry: registry,
		metrics:  metrics.New(registry),
		catalog:  cat,
	}, nil
}

func (app *application) engine() (*repair.Engine, error) {
	solver, err := sat.New(app.config.Solve.Backend, app.config.Solve.Executable)
	if err != nil {
		return nil, err
	}
	thresholds, err := app.config.Inspect.Detector()
	if err != nil {
		return nil, err
	}

	timetabler := model.NewTimetabler(solver,
		model.WithLogger(app.logger.Named("solver")),
		model.WithObserver(app.metrics),
		model.WithTimeout(app.config.Solve.Timeout),
		model.WithCoreTimeout(app.config.Solve.CoreTimeout),
	)
	return repair.NewEngine(app.catalog, timetabler, conflict.NewDetector(app.catalog, thresholds),
		repair.WithLogger(app.logger.Named("engine")),
		repair.WithObserver(app.metrics),
		repair.WithSnapTolerance(app.config.Repair.SnapTolerance),
		repair.WithAdHocLength(app.config.Repair.AdHocLength),
		repair.WithParallelism(app.config.Solve.Parallel),
	), nil
}

func (app *application) entities() (*model.Entities, error) {
	if app.config.Entities.Path == "" {
		return nil, fmt.Errorf("an entities file must be specified")
	}
	return model.LoadEntities(app.config.Entities.Path)
}

type rejection struct {
	Command repair.Command `json:"command"`
	Error   string         `json:"error"`
}

type output struct {
	State    *schedule.State  `json:"state,omitempty"`
	Ledger   *schedule.Ledger `json:"ledger,omitempty"`
	Report   conflict.Report  `json:"report"`
	Rejected []rejection      `json:"rejected,omitempty"`
}

// write marshals the value into the output file, or into the writer when no file is given
func write(w io.Writer, outFile string, value any) error {
	bytes, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("an error occurred while building output json: %w", err)
	}
	if outFile == "" {
		_, err = fmt.Fprintln(w, string(bytes))
		return err
	}
	if err := os.WriteFile(outFile, bytes, 0o644); err != nil {
		return fmt.Errorf("an error occurred while writing to the output file: %w", err)
	}
	return nil
}
