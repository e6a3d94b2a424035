package sat

import (
	"context"
	"fmt"
	"strings"
)

type SATSolution []int64

type SAT struct {
	Variables uint64
	Clauses   [][]int64
}

func (s SAT) ToDIMACS() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "p cnf %d %d\n", s.Variables, len(s.Clauses))
	for _, clause := range s.Clauses {
		for _, literal := range clause {
			fmt.Fprintf(&builder, "%d ", literal)
		}
		builder.WriteString("0\n")
	}
	return builder.String()
}

// Status follows the SAT competition exit codes
type Status int

const (
	Unknown       Status = 0
	Satisfiable   Status = 10
	Unsatisfiable Status = 20
)

func (status Status) String() string {
	switch status {
	case Satisfiable:
		return "SAT"
	case Unsatisfiable:
		return "UNSAT"
	}
	return "UNKNOWN"
}

type Result struct {
	Status   Status
	Solution SATSolution // Set only when satisfiable
	Failed   []int64     // Subset of the assumptions responsible for unsatisfiability, set only when unsatisfiable
}

// Value reports the truth value of a variable in the solution
func (result Result) Value(variable int64) bool {
	if variable <= 0 || variable > int64(len(result.Solution)) {
		return false
	}
	return result.Solution[variable-1] > 0
}

type SATSolver interface {
	// Solve decides the instance under the given assumption literals. A cancelled or expired
	// context yields Unknown without error
	Solve(ctx context.Context, sat *SAT, assumptions []int64) (Result, error)
}

// New returns the backend registered under name. The executable is only used by external backends
// and defaults to the backend's name
func New(name, executable string) (SATSolver, error) {
	switch name {
	case "", "gini":
		return NewGiniSolver(), nil
	case "kissat":
		return NewKissatSolver(executable), nil
	case "cadical":
		return NewCadicalSolver(executable), nil
	case "minisat":
		return NewMinisatSolver(executable), nil
	}
	return nil, fmt.Errorf("unknown SAT backend %q", name)
}
