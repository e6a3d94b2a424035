package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/limaJavier/scheduler/pkg/catalog"
	"github.com/limaJavier/scheduler/pkg/conflict"
	"github.com/spf13/viper"
)

const envPrefix = "SCHEDULER"

var backends = []string{"gini", "kissat", "cadical", "minisat"}

type Config struct {
	Solve    SolveConfig   `mapstructure:"solve"`
	Repair   RepairConfig  `mapstructure:"repair"`
	Inspect  InspectConfig `mapstructure:"inspect"`
	Log      LogConfig     `mapstructure:"log"`
	Grid     PathConfig    `mapstructure:"grid"`
	Entities PathConfig    `mapstructure:"entities"`
	Metrics  MetricsConfig `mapstructure:"metrics"`
}

type SolveConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	Backend     string        `mapstructure:"backend"`
	Executable  string        `mapstructure:"executable"` // Defaults to the backend name looked up in PATH
	CoreTimeout time.Duration `mapstructure:"core_timeout"`
	Parallel    int           `mapstructure:"parallel"` // Clause generators running at once, zero for one per CPU
}

type RepairConfig struct {
	SnapTolerance int `mapstructure:"snap_tolerance"` // Minutes
	AdHocLength   int `mapstructure:"adhoc_length"`   // Minutes
}

type InspectConfig struct {
	EarlyBefore      string `mapstructure:"early_before"`
	LateAfter        string `mapstructure:"late_after"`
	ClusterSize      int    `mapstructure:"cluster_size"`
	MaxDailyPerGroup int    `mapstructure:"max_daily_per_group"`
	HeavyDay         int    `mapstructure:"heavy_day"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type PathConfig struct {
	Path string `mapstructure:"path"` // Empty selects the built-in default where there is one
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load reads the configuration file, if any, then the SCHEDULER_* environment variables.
// Environment variables win over the file, which wins over the defaults
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("solve.timeout", "60s")
	v.SetDefault("solve.backend", "gini")
	v.SetDefault("solve.executable", "")
	v.SetDefault("solve.core_timeout", "5s")
	v.SetDefault("solve.parallel", 0)

	v.SetDefault("repair.snap_tolerance", 0)
	v.SetDefault("repair.adhoc_length", 55)

	v.SetDefault("inspect.early_before", "08:30")
	v.SetDefault("inspect.late_after", "17:30")
	v.SetDefault("inspect.cluster_size", 3)
	v.SetDefault("inspect.max_daily_per_group", 4)
	v.SetDefault("inspect.heavy_day", 4)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("grid.path", "")
	v.SetDefault("entities.path", "")
	v.SetDefault("metrics.addr", ":9090")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("scheduler")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("cannot read config file: %w", err)
		}
		// Defaults and environment only
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) Validate() error {
	if !slices.Contains(backends, cfg.Solve.Backend) {
		return fmt.Errorf("invalid config: solve.backend must be one of %v, got %q", strings.Join(backends, ", "), cfg.Solve.Backend)
	}
	if cfg.Solve.Timeout < 0 || cfg.Solve.CoreTimeout < 0 {
		return fmt.Errorf("invalid config: solve timeouts cannot be negative")
	}
	if cfg.Repair.SnapTolerance < 0 {
		return fmt.Errorf("invalid config: repair.snap_tolerance cannot be negative")
	}
	if cfg.Repair.AdHocLength <= 0 {
		return fmt.Errorf("invalid config: repair.adhoc_length must be positive")
	}
	if _, err := cfg.Inspect.Detector(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Detector converts the inspection thresholds into a conflict detector configuration
func (inspect InspectConfig) Detector() (conflict.Config, error) {
	early, err := catalog.ParseClock(inspect.EarlyBefore)
	if err != nil {
		return conflict.Config{}, fmt.Errorf("inspect.early_before: %w", err)
	}
	late, err := catalog.ParseClock(inspect.LateAfter)
	if err != nil {
		return conflict.Config{}, fmt.Errorf("inspect.late_after: %w", err)
	}
	return conflict.Config{
		EarlyBefore:      early,
		LateAfter:        late,
		ClusterSize:      inspect.ClusterSize,
		MaxDailyPerGroup: inspect.MaxDailyPerGroup,
		HeavyDay:         inspect.HeavyDay,
	}, nil
}
