package sat

import (
	"context"
)

const cadicalPath = "cadical"

type cadicalSolver struct {
	path string
}

func NewCadicalSolver(path string) SATSolver {
	if path == "" {
		path = cadicalPath
	}
	return &cadicalSolver{path: path}
}

func (solver *cadicalSolver) Solve(ctx context.Context, sat *SAT, assumptions []int64) (Result, error) {
	return runStreamingSolver(ctx, "cadical", solver.path, []string{"-q"}, sat, assumptions)
}
