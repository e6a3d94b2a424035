package main

import (
	"github.com/limaJavier/scheduler/internal/config"
	"github.com/spf13/cobra"
)

type cliFlags struct {
	configPath   string
	entitiesPath string
	gridPath     string
	backend      string
	outFile      string
	commandsPath string
	text         bool
}

func newRootCmd() *cobra.Command {
	var (
		flags cliFlags
		app   = new(application)
	)

	rootCmd := &cobra.Command{
		Use:           "scheduler",
		Short:         "Builds course timetables and repairs them under overrides",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			// Flags win over the file and the environment
			if flags.entitiesPath != "" {
				cfg.Entities.Path = flags.entitiesPath
			}
			if flags.gridPath != "" {
				cfg.Grid.Path = flags.gridPath
			}
			if flags.backend != "" {
				cfg.Solve.Backend = flags.backend
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			loaded, err := newApp(cfg)
			if err != nil {
				return err
			}
			*app = *loaded
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app.logger != nil {
				_ = app.logger.Sync()
			}
		},
	}

	persistent := rootCmd.PersistentFlags()
	persistent.StringVar(&flags.configPath, "config", "", "Path to the configuration file; if empty, scheduler.yaml is looked up in ./config and .")
	persistent.StringVar(&flags.entitiesPath, "entities", "", "Path to the courses, rooms, faculty and groups file")
	persistent.StringVar(&flags.gridPath, "grid", "", "Path to the slot grid file; if empty, the built-in grid is used")
	persistent.StringVar(&flags.backend, "solver", "", "SAT backend: gini, kissat, cadical or minisat")
	persistent.StringVar(&flags.outFile, "out", "", "Path to the file where the output will be written; if empty, it'll be written into the Standard Output")

	solveCmd := &cobra.Command{
		Use:   "solve",
		Short: "Builds the baseline schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolve(cmd, app, flags)
		},
	}

	repairCmd := &cobra.Command{
		Use:   "repair",
		Short: "Builds the baseline then applies the override commands in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepair(cmd, app, flags)
		},
	}
	repairCmd.Flags().StringVar(&flags.commandsPath, "commands", "", "Path to the JSON or YAML commands file")
	_ = repairCmd.MarkFlagRequired("commands")

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Prints the violations and concerns of the schedule, after the optional commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, app, flags)
		},
	}
	inspectCmd.Flags().StringVar(&flags.commandsPath, "commands", "", "Path to the JSON or YAML commands file")
	inspectCmd.Flags().BoolVar(&flags.text, "text", false, "Print a plain text summary instead of JSON")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuilds the baseline whenever the entities file changes and serves metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, app)
		},
	}

	rootCmd.AddCommand(solveCmd, repairCmd, inspectCmd, watchCmd)
	return rootCmd
}
