package model

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/limaJavier/scheduler/pkg/sat"
	"go.uber.org/zap"
)

const defaultCoreTimeout = 5 * time.Second

type satTimetabler struct {
	solver      sat.SATSolver
	logger      *zap.Logger
	observer    SolveObserver
	timeout     time.Duration
	coreTimeout time.Duration
}

func NewTimetabler(solver sat.SATSolver, opts ...TimetablerOption) Timetabler {
	timetabler := &satTimetabler{
		solver:      solver,
		logger:      zap.NewNop(),
		coreTimeout: defaultCoreTimeout,
	}
	for _, opt := range opts {
		opt(timetabler)
	}
	return timetabler
}

// solveRun counts the SAT calls of one Solve
type solveRun struct {
	timetabler *satTimetabler
	model      *ConstraintModel
	calls      int
}

func (run *solveRun) call(ctx context.Context, assumptions []int64) (sat.Result, error) {
	run.calls++
	result, err := run.timetabler.solver.Solve(ctx, run.model.sat, assumptions)
	if err != nil {
		return sat.Result{}, fmt.Errorf("cannot solve SAT instance: %w", err)
	}
	return result, nil
}

func (timetabler *satTimetabler) Solve(ctx context.Context, model *ConstraintModel, hint []Assignment) (Outcome, error) {
	start := time.Now()
	if timetabler.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timetabler.timeout)
		defer cancel()
	}

	run := &solveRun{timetabler: timetabler, model: model}
	outcome, err := run.solve(ctx, hint)
	outcome.Calls = run.calls
	outcome.Duration = time.Since(start)

	result := "feasible"
	switch {
	case err != nil:
		result = "error"
	case !outcome.Feasible():
		result = "infeasible"
	case outcome.TimedOut:
		result = "timeout"
	}
	if timetabler.observer != nil {
		timetabler.observer.ObserveSolve(result, outcome.Calls, outcome.Duration)
	}
	timetabler.logger.Debug("solve finished",
		zap.String("result", result),
		zap.Int("instances", len(model.instances)),
		zap.Int("facts", len(model.facts)),
		zap.Uint64("variables", model.Variables()),
		zap.Int("clauses", model.Clauses()),
		zap.Int("calls", outcome.Calls),
		zap.Duration("duration", outcome.Duration),
	)
	return outcome, err
}

func (run *solveRun) solve(ctx context.Context, hint []Assignment) (Outcome, error) {
	model := run.model

	//** Cheap necessary condition before any SAT call
	if core := hallCheck(model); core != nil {
		return Outcome{Core: core}, nil
	}

	//** Feasibility
	base := model.Assumptions()
	result, err := run.call(ctx, base)
	if err != nil {
		return Outcome{}, err
	}
	switch result.Status {
	case sat.Unknown:
		return Outcome{Core: &ConflictCore{Reason: "deadline exceeded before a feasible schedule was found"}, TimedOut: true}, nil
	case sat.Unsatisfiable:
		core, err := run.core(ctx, base, result.Failed)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Core: core}, nil
	}

	//** Deterministic tie-break: fix instances one at a time to their best candidate that stays satisfiable
	hints := make(map[Key]Assignment, len(hint))
	for _, assignment := range hint {
		instance, ok := model.Instance(assignment.Key)
		if !ok || (instance.Pin != nil && !instance.Pin.Matches(assignment.Key, assignment.Slots, assignment.Room, assignment.Faculty)) {
			continue // Forced facts and positions a new pin moves away from
		}
		hints[assignment.Key] = assignment
	}
	fixes := slices.Clone(base)
	courseRooms := make(map[string][]string)
	timedOut := false

	for i, instance := range model.instances {
		picked := -1
		for _, c := range rank(model, i, hints, courseRooms[instance.Key.Course]) {
			variable := model.indexer.Index(i, c)
			if result.Value(variable) {
				picked = c
				break
			}
			trial, err := run.call(ctx, append(slices.Clone(fixes), variable))
			if err != nil {
				return Outcome{}, err
			}
			if trial.Status == sat.Satisfiable {
				result, picked = trial, c
				break
			}
			if trial.Status == sat.Unknown {
				timedOut = true
				break
			}
		}
		if timedOut || picked < 0 {
			break
		}

		fixes = append(fixes, model.indexer.Index(i, picked))
		courseRooms[instance.Key.Course] = append(courseRooms[instance.Key.Course], instance.Candidates[picked].Room)
	}

	return Outcome{Assignments: decode(model, result), TimedOut: timedOut}, nil
}

// rank orders the candidates of an instance by tie-break preference
func rank(model *ConstraintModel, i int, hints map[Key]Assignment, courseRooms []string) []int {
	instance := model.instances[i]
	previous, hinted := hints[instance.Key]
	scores := make([][6]int, len(instance.Candidates))
	for c, candidate := range instance.Candidates {
		assignment := instance.Assignment(candidate)

		// Pinned candidates first
		if !instance.matches(candidate) {
			scores[c][0] = 1
		}

		// Stay where the previous schedule had the instance
		scores[c][1] = 2
		if hinted && sameSlots(previous.Slots, assignment.Slots) {
			scores[c][1] = 1
			if previous.Room == candidate.Room && previous.Faculty == candidate.Faculty {
				scores[c][1] = 0
			}
		}

		// Keep clear of forced facts
		for _, fact := range model.facts {
			if len(model.evaluator.Clashes(assignment, fact)) > 0 {
				scores[c][2] = 1
				break
			}
		}

		// Leave other instances where the previous schedule had them
		for key, other := range hints {
			if key != instance.Key && len(model.evaluator.Clashes(assignment, other)) > 0 {
				scores[c][3] = 1
				break
			}
		}

		// Fewer distinct rooms per course
		if !slices.Contains(courseRooms, candidate.Room) {
			scores[c][4] = 1
		}

		// Earlier families and start times, then room and faculty ids
		scores[c][5] = c
	}

	order := make([]int, len(instance.Candidates))
	for c := range order {
		order[c] = c
	}
	slices.SortStableFunc(order, func(a, b int) int {
		for k := range scores[a] {
			if result := cmp.Compare(scores[a][k], scores[b][k]); result != 0 {
				return result
			}
		}
		return 0
	})
	return order
}

// decode reads the assignments out of a model of the SAT instance and adds the forced facts
func decode(model *ConstraintModel, result sat.Result) []Assignment {
	assignments := make([]Assignment, 0, len(model.instances)+len(model.facts))
	for i, instance := range model.instances {
		for c, candidate := range instance.Candidates {
			if result.Value(model.indexer.Index(i, c)) {
				assignments = append(assignments, instance.Assignment(candidate))
				break
			}
		}
	}
	assignments = append(assignments, model.Facts()...)
	SortAssignments(assignments)
	return assignments
}

// core shrinks the failed assumptions to a minimal unsatisfiable subset by deletion
func (run *solveRun) core(ctx context.Context, base, failed []int64) (*ConflictCore, error) {
	current := slices.Clone(failed)
	if len(current) == 0 {
		current = slices.Clone(base)
	}

	if run.timetabler.coreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, run.timetabler.coreTimeout)
		defer cancel()
	}

	for i := 0; i < len(current); {
		trial := slices.Delete(slices.Clone(current), i, i+1)
		result, err := run.call(ctx, trial)
		if err != nil {
			return nil, err
		}
		if result.Status != sat.Unsatisfiable {
			i++ // Necessary member, or undecided within the deadline
			continue
		}
		if len(result.Failed) > 0 {
			trial = slices.DeleteFunc(trial, func(literal int64) bool { return !slices.Contains(result.Failed, literal) })
		}
		current = trial
		i = min(i, len(current))
	}

	return describeCore(run.model, current), nil
}

func (timetabler *satTimetabler) Verify(model *ConstraintModel, assignments []Assignment) bool {
	return verify(model, assignments)
}
