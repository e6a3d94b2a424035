package sat

import (
	"context"
	"sync"
	"time"

	"github.com/go-air/gini"
	"github.com/go-air/gini/z"
	"github.com/samber/lo"
)

const giniPollInterval = 5 * time.Millisecond

// giniSolver keeps the clauses of the last instance loaded so that consecutive calls over the same
// instance only pay for the new assumptions
type giniSolver struct {
	mu       sync.Mutex
	g        *gini.Gini
	instance *SAT
	loaded   int
}

func NewGiniSolver() SATSolver {
	return &giniSolver{}
}

func (solver *giniSolver) Solve(ctx context.Context, sat *SAT, assumptions []int64) (Result, error) {
	solver.mu.Lock()
	defer solver.mu.Unlock()

	if ctx.Err() != nil {
		return Result{Status: Unknown}, nil
	}

	solver.load(sat)
	solver.g.Assume(lo.Map(assumptions, func(literal int64, _ int) z.Lit { return z.Dimacs2Lit(int(literal)) })...)

	var status int
	if ctx.Done() == nil {
		status = solver.g.Solve()
	} else {
		status = solver.wait(ctx)
	}

	switch status {
	case 1:
		return Result{Status: Satisfiable, Solution: solver.model(sat.Variables)}, nil
	case -1:
		failed := lo.Map(solver.g.Why(nil), func(literal z.Lit, _ int) int64 { return int64(literal.Dimacs()) })
		return Result{Status: Unsatisfiable, Failed: failed}, nil
	}
	return Result{Status: Unknown}, nil
}

func (solver *giniSolver) load(sat *SAT) {
	if solver.instance != sat || solver.loaded > len(sat.Clauses) {
		solver.g = gini.New()
		solver.instance = sat
		solver.loaded = 0
	}
	for _, clause := range sat.Clauses[solver.loaded:] {
		for _, literal := range clause {
			solver.g.Add(z.Dimacs2Lit(int(literal)))
		}
		solver.g.Add(z.LitNull)
	}
	solver.loaded = len(sat.Clauses)
}

func (solver *giniSolver) wait(ctx context.Context) int {
	solve := solver.g.GoSolve()
	ticker := time.NewTicker(giniPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return solve.Stop()
		case <-ticker.C:
			if status, done := solve.Test(); done {
				return status
			}
		}
	}
}

func (solver *giniSolver) model(variables uint64) SATSolution {
	maxVar := uint64(solver.g.MaxVar())
	solution := make(SATSolution, variables)
	for i := range variables {
		variable := int64(i + 1)
		solution[i] = -variable
		if uint64(variable) <= maxVar && solver.g.Value(z.Var(variable).Pos()) {
			solution[i] = variable
		}
	}
	return solution
}
