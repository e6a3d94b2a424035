package sat

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

const minisatPath = "minisat"

type minisatSolver struct {
	path string
}

func NewMinisatSolver(path string) SATSolver {
	if path == "" {
		path = minisatPath
	}
	return &minisatSolver{path: path}
}

func (solver *minisatSolver) Solve(ctx context.Context, sat *SAT, assumptions []int64) (Result, error) {
	dimacs := withAssumptions(sat, assumptions).ToDIMACS()

	// Minisat reads its input from a file and writes the model to another one
	inputTempFile, err := os.CreateTemp("", "dimacs-*.cnf")
	if err != nil {
		return Result{}, fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(inputTempFile.Name())

	outputTempFile, err := os.CreateTemp("", "minisat_output-*.cnf")
	if err != nil {
		return Result{}, fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(outputTempFile.Name())
	if err := outputTempFile.Close(); err != nil {
		return Result{}, fmt.Errorf("failed to close temporary file: %w", err)
	}

	if _, err := inputTempFile.WriteString(dimacs); err != nil {
		return Result{}, fmt.Errorf("failed to write DIMACS to temporary file: %w", err)
	}
	if err := inputTempFile.Close(); err != nil {
		return Result{}, fmt.Errorf("failed to close temporary file: %w", err)
	}

	cmd := exec.CommandContext(ctx, solver.path, "-verb=0", inputTempFile.Name(), outputTempFile.Name())
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	status, err := exitStatus(ctx, "minisat", cmd.Run(), cmd, &stderr)
	if err != nil || status != Satisfiable {
		return failedResult(status, assumptions), err
	}

	output, err := os.ReadFile(outputTempFile.Name())
	if err != nil {
		return Result{}, fmt.Errorf("failed to read output file: %w", err)
	}
	// The first line is the header, the model is on the second one
	lines := strings.SplitN(string(output), "\n", 2)
	if len(lines) < 2 {
		return Result{}, fmt.Errorf("unexpected minisat output: %q", output)
	}
	solution, err := parseLiterals(strings.Fields(lines[1]))
	if err != nil {
		return Result{}, err
	}
	return Result{Status: Satisfiable, Solution: normalize(solution, sat.Variables)}, nil
}
