package repair

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/limaJavier/scheduler/pkg/catalog"
	"github.com/limaJavier/scheduler/pkg/conflict"
	"github.com/limaJavier/scheduler/pkg/model"
	"github.com/limaJavier/scheduler/pkg/schedule"
	"go.uber.org/zap"
)

type Status int32

const (
	Idle Status = iota
	Validating
	Pinning
	Resolving
	Rejected
)

func (status Status) String() string {
	switch status {
	case Idle:
		return "idle"
	case Validating:
		return "validating"
	case Pinning:
		return "pinning"
	case Resolving:
		return "resolving"
	case Rejected:
		return "rejected"
	}
	return fmt.Sprintf("Status(%d)", int32(status))
}

// Observer receives one notification per engine operation
type Observer interface {
	ObserveRepair(operation, outcome string, duration time.Duration)
	ObserveViolations(count int)
}

// Result is what an accepted operation published
type Result struct {
	State      *schedule.State
	Ledger     *schedule.Ledger
	Report     conflict.Report
	Entry      *schedule.OverrideEntry // Ledger entry appended by the operation, if any
	Violations []conflict.Violation    // Violations involving the entry's pin
	Moved      []model.Key             // Instances whose assignment changed
}

// snapshot is the unit of publication: readers always see a state together with the ledger and entities it was solved from
type snapshot struct {
	entities  *model.Entities
	evaluator model.PredicateEvaluator
	ledger    *schedule.Ledger
	state     *schedule.State
	report    conflict.Report
}

// Engine owns the schedule of one session. Mutating operations are serialized; reads never block
type Engine struct {
	mu      sync.Mutex
	current atomic.Pointer[snapshot]
	status  atomic.Int32

	catalog    *catalog.Catalog
	timetabler model.Timetabler
	detector   *conflict.Detector

	logger        *zap.Logger
	observer      Observer
	snapTolerance int // Minutes
	adHocLength   int // Minutes
	parallelism   int
	now           func() time.Time
}

type Option func(*Engine)

func WithLogger(logger *zap.Logger) Option {
	return func(engine *Engine) {
		if logger != nil {
			engine.logger = logger
		}
	}
}

func WithObserver(observer Observer) Option {
	return func(engine *Engine) {
		engine.observer = observer
	}
}

// WithSnapTolerance lets requested times snap to a catalog slot starting at most the given minutes away
func WithSnapTolerance(minutes int) Option {
	return func(engine *Engine) {
		engine.snapTolerance = max(minutes, 0)
	}
}

// WithAdHocLength sets the length of off-catalog slots of forced overrides that give no end time
func WithAdHocLength(minutes int) Option {
	return func(engine *Engine) {
		if minutes > 0 {
			engine.adHocLength = minutes
		}
	}
}

func WithParallelism(parallelism int) Option {
	return func(engine *Engine) {
		if parallelism > 0 {
			engine.parallelism = parallelism
		}
	}
}

func NewEngine(cat *catalog.Catalog, timetabler model.Timetabler, detector *conflict.Detector, opts ...Option) *Engine {
	engine := &Engine{
		catalog:     cat,
		timetabler:  timetabler,
		detector:    detector,
		logger:      zap.NewNop(),
		adHocLength: 55,
		parallelism: runtime.NumCPU(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

func (engine *Engine) Status() Status {
	return Status(engine.status.Load())
}

func (engine *Engine) setStatus(status Status) {
	engine.status.Store(int32(status))
}

func (engine *Engine) published() (*snapshot, error) {
	snap := engine.current.Load()
	if snap == nil {
		return nil, ErrNoBaseline
	}
	return snap, nil
}

func (engine *Engine) State() (*schedule.State, error) {
	snap, err := engine.published()
	if err != nil {
		return nil, err
	}
	return snap.state, nil
}

func (engine *Engine) Ledger() (*schedule.Ledger, error) {
	snap, err := engine.published()
	if err != nil {
		return nil, err
	}
	return snap.ledger, nil
}

func (engine *Engine) Report() (conflict.Report, error) {
	snap, err := engine.published()
	if err != nil {
		return conflict.Report{}, err
	}
	return snap.report, nil
}

// Reset replaces the entity set, clears the ledger and solves a fresh baseline under a new session.
// On failure no schedule remains published
func (engine *Engine) Reset(ctx context.Context, entities *model.Entities) (Result, error) {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	start := engine.now()

	engine.setStatus(Resolving)
	engine.current.Store(nil)
	ledger := schedule.NewLedger(uuid.New())
	result, err := engine.resolve(ctx, entities, ledger, nil, nil, model.Key{})
	engine.finish("reset", start, result, err)
	if err != nil {
		return Result{}, err
	}
	engine.logger.Info("baseline solved",
		zap.String("session", ledger.Session().String()),
		zap.Int("assignments", result.State.Len()),
		zap.Bool("timedOut", result.State.TimedOut()),
	)
	return result, nil
}

// Baseline re-solves the current entity set and ledger, steered by the published schedule so that unchanged
// inputs give the same schedule back
func (engine *Engine) Baseline(ctx context.Context) (Result, error) {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	start := engine.now()

	snap, err := engine.published()
	if err != nil {
		return Result{}, err
	}
	engine.setStatus(Resolving)
	result, err := engine.resolve(ctx, snap.entities, snap.ledger, nil, snap.state, model.Key{})
	engine.finish("baseline", start, result, err)
	return result, err
}

// Apply pins the commanded instance and re-solves the rest of the schedule around it. A rejected command
// leaves the published state, ledger and report untouched
func (engine *Engine) Apply(ctx context.Context, command Command) (Result, error) {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	start := engine.now()

	snap, err := engine.published()
	if err != nil {
		return Result{}, err
	}

	//** Validating
	engine.setStatus(Validating)
	req, err := engine.validateCommand(snap, command)
	if err != nil {
		engine.finish("apply", start, Result{}, err)
		return Result{}, err
	}

	//** Pinning
	engine.setStatus(Pinning)
	slots, err := engine.pinSlots(snap, req)
	if err != nil {
		engine.finish("apply", start, Result{}, err)
		return Result{}, err
	}
	ledger, entry := snap.ledger.Append(schedule.OverrideEntry{
		Kind:      schedule.KindPin,
		Key:       req.key,
		Slots:     slots,
		Room:      engine.inferRoom(snap, req, slots),
		Faculty:   engine.inferFaculty(snap, req, slots),
		Forced:    req.forced,
		Reason:    req.reason,
		CreatedAt: engine.now().UTC(),
	})

	//** Resolving
	engine.setStatus(Resolving)
	result, err := engine.resolve(ctx, snap.entities, ledger, &entry, snap.state, req.key)
	engine.finish("apply", start, result, err)
	if err != nil {
		return Result{}, err
	}
	engine.logger.Info("override applied",
		zap.String("session", ledger.Session().String()),
		zap.String("course", req.key.Course),
		zap.String("component", string(req.key.Component)),
		zap.Uint64("seq", entry.Seq),
		zap.Bool("forced", entry.Forced),
		zap.Int("moved", len(result.Moved)),
		zap.Int("violations", len(result.Violations)),
	)
	return result, nil
}

// Release drops the override of an instance and re-solves
func (engine *Engine) Release(ctx context.Context, key model.Key, reason string) (Result, error) {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	start := engine.now()

	snap, err := engine.published()
	if err != nil {
		return Result{}, err
	}
	engine.setStatus(Validating)
	if latest, ok := snap.ledger.Latest(key); !ok || latest.Kind != schedule.KindPin {
		err := &UnknownTargetError{Kind: "override", ID: key.String()}
		engine.finish("release", start, Result{}, err)
		return Result{}, err
	}

	engine.setStatus(Pinning)
	ledger, entry := snap.ledger.Append(schedule.OverrideEntry{
		Kind:      schedule.KindRelease,
		Key:       key,
		Reason:    reason,
		CreatedAt: engine.now().UTC(),
	})

	engine.setStatus(Resolving)
	result, err := engine.resolve(ctx, snap.entities, ledger, &entry, snap.state, key)
	engine.finish("release", start, result, err)
	return result, err
}

// Undo appends an entry restoring the override the last touched instance had before the latest entry
func (engine *Engine) Undo(ctx context.Context) (Result, error) {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	start := engine.now()

	snap, err := engine.published()
	if err != nil {
		return Result{}, err
	}
	engine.setStatus(Validating)
	last, ok := snap.ledger.Last()
	if !ok {
		engine.finish("undo", start, Result{}, ErrNothingToUndo)
		return Result{}, ErrNothingToUndo
	}

	engine.setStatus(Pinning)
	restored := schedule.OverrideEntry{Kind: schedule.KindRelease, Key: last.Key}
	if history := snap.ledger.History(last.Key); len(history) > 1 {
		restored = history[len(history)-2]
	}
	restored.Reason = fmt.Sprintf("undo #%d", last.Seq)
	restored.CreatedAt = engine.now().UTC()
	ledger, entry := snap.ledger.Append(restored)

	engine.setStatus(Resolving)
	result, err := engine.resolve(ctx, snap.entities, ledger, &entry, snap.state, last.Key)
	engine.finish("undo", start, result, err)
	return result, err
}

// resolve rebuilds the model from the candidate ledger, solves it and publishes the result. Nothing is
// published on error
func (engine *Engine) resolve(ctx context.Context, entities *model.Entities, ledger *schedule.Ledger, entry *schedule.OverrideEntry, previous *schedule.State, key model.Key) (Result, error) {
	constraintModel, err := model.Build(engine.catalog, entities, ledger.Pins(), model.WithParallelism(engine.parallelism))
	if err != nil {
		return Result{}, err
	}

	var hint []model.Assignment
	if previous != nil {
		hint = previous.Assignments()
	}
	outcome, err := engine.timetabler.Solve(ctx, constraintModel, hint)
	if err != nil {
		return Result{}, err
	}
	// A cancelled caller never publishes, even a best-so-far schedule
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if !outcome.Feasible() {
		return Result{}, &InfeasibleError{Key: key, Core: *outcome.Core}
	}
	if !engine.timetabler.Verify(constraintModel, outcome.Assignments) {
		return Result{}, ErrVerification
	}

	state := schedule.NewState(ledger.Session(), ledger.Version(), entities, outcome, engine.now().UTC())
	next := &snapshot{
		entities:  entities,
		evaluator: constraintModel.Evaluator(),
		ledger:    ledger,
		state:     state,
		report:    engine.detector.Inspect(state),
	}
	engine.current.Store(next)

	result := Result{State: state, Ledger: ledger, Report: next.report, Entry: entry}
	if entry != nil {
		result.Violations = next.report.ViolationsFor(entry.Seq)
	}
	if previous != nil {
		result.Moved = state.Moved(previous)
	}
	return result, nil
}

// finish settles the status and notifies the observer
func (engine *Engine) finish(operation string, start time.Time, result Result, err error) {
	outcome := "applied"
	var (
		unknown    *UnknownTargetError
		invalid    *InvalidSlotError
		infeasible *InfeasibleError
		pinned     *model.PinConflictError
	)
	switch {
	case err == nil:
		engine.setStatus(Idle)
	case errors.As(err, &unknown), errors.As(err, &invalid), errors.As(err, &infeasible), errors.As(err, &pinned):
		outcome = "rejected"
		engine.setStatus(Rejected)
	default:
		outcome = "error"
		engine.setStatus(Rejected)
	}
	if err != nil {
		engine.logger.Warn("operation rejected", zap.String("operation", operation), zap.Error(err))
	}

	if engine.observer != nil {
		engine.observer.ObserveRepair(operation, outcome, engine.now().Sub(start))
		if err == nil {
			engine.observer.ObserveViolations(len(result.Report.Violations))
		}
	}
}
