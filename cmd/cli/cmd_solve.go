package main

import (
	"fmt"

	"github.com/limaJavier/scheduler/pkg/repair"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runSolve(cmd *cobra.Command, app *application, flags cliFlags) error {
	engine, result, err := baseline(cmd, app)
	if err != nil {
		return err
	}
	defer logStatus(app, engine)
	return write(cmd.OutOrStdout(), flags.outFile, output{State: result.State, Report: result.Report})
}

func runRepair(cmd *cobra.Command, app *application, flags cliFlags) error {
	engine, result, rejected, err := replay(cmd, app, flags.commandsPath)
	if err != nil {
		return err
	}
	defer logStatus(app, engine)
	return write(cmd.OutOrStdout(), flags.outFile, output{
		State:    result.State,
		Ledger:   result.Ledger,
		Report:   result.Report,
		Rejected: rejected,
	})
}

func runInspect(cmd *cobra.Command, app *application, flags cliFlags) error {
	_, result, _, err := replay(cmd, app, flags.commandsPath)
	if err != nil {
		return err
	}
	if flags.text {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), result.Report.String())
		return err
	}
	return write(cmd.OutOrStdout(), flags.outFile, result.Report)
}

func baseline(cmd *cobra.Command, app *application) (*repair.Engine, repair.Result, error) {
	entities, err := app.entities()
	if err != nil {
		return nil, repair.Result{}, err
	}
	engine, err := app.engine()
	if err != nil {
		return nil, repair.Result{}, err
	}
	result, err := engine.Reset(cmd.Context(), entities)
	if err != nil {
		return nil, repair.Result{}, err
	}
	return engine, result, nil
}

// replay builds the baseline and applies every command in order. Rejected commands leave the schedule unchanged
// and are returned alongside the final result
func replay(cmd *cobra.Command, app *application, commandsPath string) (*repair.Engine, repair.Result, []rejection, error) {
	engine, result, err := baseline(cmd, app)
	if err != nil {
		return nil, repair.Result{}, nil, err
	}
	if commandsPath == "" {
		return engine, result, nil, nil
	}

	commands, err := repair.DecodeCommands(commandsPath)
	if err != nil {
		return nil, repair.Result{}, nil, err
	}
	rejected := make([]rejection, 0)
	for _, command := range commands {
		applied, err := engine.Apply(cmd.Context(), command)
		if err != nil {
			if ctxErr := cmd.Context().Err(); ctxErr != nil {
				return nil, repair.Result{}, nil, ctxErr
			}
			rejected = append(rejected, rejection{Command: command, Error: err.Error()})
			continue
		}
		result = applied
	}
	return engine, result, rejected, nil
}

func logStatus(app *application, engine *repair.Engine) {
	state, err := engine.State()
	if err != nil {
		return
	}
	app.logger.Info("schedule published",
		zap.Stringer("session", state.Session()),
		zap.Uint64("ledgerVersion", state.LedgerVersion()),
		zap.Int("assignments", state.Len()),
		zap.Bool("timedOut", state.TimedOut()),
	)
}
