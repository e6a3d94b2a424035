package sat

import (
	"context"
)

const kissatPath = "kissat"

type kissatSolver struct {
	path string
}

func NewKissatSolver(path string) SATSolver {
	if path == "" {
		path = kissatPath
	}
	return &kissatSolver{path: path}
}

func (solver *kissatSolver) Solve(ctx context.Context, sat *SAT, assumptions []int64) (Result, error) {
	return runStreamingSolver(ctx, "kissat", solver.path, []string{"-q", "--relaxed"}, sat, assumptions)
}
