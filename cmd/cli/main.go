package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/limaJavier/scheduler/pkg/repair"
)

const (
	exitSolved       = 10
	exitUnverified   = 15
	exitInfeasible   = 20
	exitInvalidInput = 1
)

func main() {
	err := newRootCmd().ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(exitCode(err))
}

// exitCode maps a command result to the process exit status
func exitCode(err error) int {
	var infeasible *repair.InfeasibleError
	switch {
	case err == nil:
		return exitSolved
	case errors.As(err, &infeasible):
		return exitInfeasible
	case errors.Is(err, repair.ErrVerification):
		return exitUnverified
	}
	return exitInvalidInput
}
