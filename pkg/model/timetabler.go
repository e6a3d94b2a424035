package model

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Timetabler interface {
	// Solve schedules every instance of the model. The hint, usually the previous schedule, steers the
	// tie-break so that re-solving moves as little as possible. Infeasibility is reported through Outcome.Core
	Solve(ctx context.Context, model *ConstraintModel, hint []Assignment) (Outcome, error)

	// Verify independently checks that the assignments satisfy every hard rule of the model
	Verify(model *ConstraintModel, assignments []Assignment) bool
}

type Outcome struct {
	Assignments []Assignment  // Solver choices plus forced facts, ordered by key. Nil when infeasible
	Core        *ConflictCore // Set when infeasible
	TimedOut    bool          // The deadline expired: Assignments hold the best feasible schedule found so far
	Calls       int           // SAT calls issued
	Duration    time.Duration
}

func (outcome Outcome) Feasible() bool {
	return outcome.Core == nil
}

// SolveObserver receives one notification per Solve call
type SolveObserver interface {
	ObserveSolve(result string, calls int, duration time.Duration)
}

type TimetablerOption func(*satTimetabler)

func WithLogger(logger *zap.Logger) TimetablerOption {
	return func(timetabler *satTimetabler) {
		if logger != nil {
			timetabler.logger = logger
		}
	}
}

func WithObserver(observer SolveObserver) TimetablerOption {
	return func(timetabler *satTimetabler) {
		timetabler.observer = observer
	}
}

// WithTimeout bounds every Solve call, in addition to the context deadline
func WithTimeout(timeout time.Duration) TimetablerOption {
	return func(timetabler *satTimetabler) {
		timetabler.timeout = timeout
	}
}

// WithCoreTimeout bounds the conflict core minimisation
func WithCoreTimeout(timeout time.Duration) TimetablerOption {
	return func(timetabler *satTimetabler) {
		timetabler.coreTimeout = timeout
	}
}
