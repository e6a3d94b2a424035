package sat

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// runStreamingSolver drives solvers reading DIMACS on stdin and printing "v" lines on stdout
func runStreamingSolver(ctx context.Context, name, path string, args []string, sat *SAT, assumptions []int64) (Result, error) {
	dimacs := withAssumptions(sat, assumptions).ToDIMACS()

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdin = strings.NewReader(dimacs)

	var stdOut bytes.Buffer
	cmd.Stdout = &stdOut
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	status, err := exitStatus(ctx, name, cmd.Run(), cmd, &stderr)
	if err != nil || status != Satisfiable {
		return failedResult(status, assumptions), err
	}

	solution, err := parseSolution(stdOut.String())
	if err != nil {
		return Result{}, err
	}
	return Result{Status: Satisfiable, Solution: normalize(solution, sat.Variables)}, nil
}

// exitStatus maps the process outcome to a status. Exit-code of 10 stands for satisfiable and exit-code 20 stands for unsatisfiable
func exitStatus(ctx context.Context, name string, runErr error, cmd *exec.Cmd, stderr *bytes.Buffer) (Status, error) {
	if ctx.Err() != nil {
		return Unknown, nil
	}
	if cmd.ProcessState == nil {
		return Unknown, fmt.Errorf("cannot execute %v: %w", name, runErr)
	}
	switch code := cmd.ProcessState.ExitCode(); code {
	case 10:
		return Satisfiable, nil
	case 20:
		return Unsatisfiable, nil
	default:
		return Unknown, fmt.Errorf("an error occurred during %v execution (exit code %d): %v : %v", name, code, runErr, stderr.String())
	}
}

// failedResult blames every assumption: external solvers expose no final conflict
func failedResult(status Status, assumptions []int64) Result {
	if status != Unsatisfiable {
		return Result{Status: status}
	}
	return Result{Status: Unsatisfiable, Failed: slices.Clone(assumptions)}
}

// withAssumptions encodes assumptions as unit clauses on a shallow copy of the instance
func withAssumptions(sat *SAT, assumptions []int64) *SAT {
	if len(assumptions) == 0 {
		return sat
	}
	clauses := make([][]int64, 0, len(sat.Clauses)+len(assumptions))
	clauses = append(clauses, sat.Clauses...)
	for _, literal := range assumptions {
		clauses = append(clauses, []int64{literal})
	}
	return &SAT{Variables: sat.Variables, Clauses: clauses}
}

func parseSolution(solverOutput string) (SATSolution, error) {
	fields := lo.FlatMap(
		lo.Filter(strings.Split(solverOutput, "\n"), func(line string, _ int) bool {
			return len(line) > 0 && line[0] == 'v'
		}),
		func(line string, _ int) []string { return strings.Fields(line[1:]) },
	)
	return parseLiterals(fields)
}

// parseLiterals reads literals up to the terminating zero
func parseLiterals(fields []string) (SATSolution, error) {
	solution := make(SATSolution, 0, len(fields))
	for _, field := range fields {
		value, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid literal in solver output: %w", err)
		}
		if value == 0 {
			break
		}
		solution = append(solution, value)
	}
	return solution, nil
}

// normalize indexes the solution by variable so that solution[v-1] holds the literal of v
func normalize(solution SATSolution, variables uint64) SATSolution {
	normalized := make(SATSolution, variables)
	for i := range normalized {
		normalized[i] = -int64(i + 1)
	}
	for _, literal := range solution {
		variable := literal
		if variable < 0 {
			variable = -variable
		}
		if uint64(variable) <= variables {
			normalized[variable-1] = literal
		}
	}
	return normalized
}
