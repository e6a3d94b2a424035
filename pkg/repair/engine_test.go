package repair

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/limaJavier/scheduler/pkg/catalog"
	"github.com/limaJavier/scheduler/pkg/conflict"
	"github.com/limaJavier/scheduler/pkg/model"
	"github.com/limaJavier/scheduler/pkg/sat"
	"github.com/limaJavier/scheduler/pkg/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	cs102 = model.Key{Course: "CS102", Component: catalog.Lecture}
	cs201 = model.Key{Course: "CS201", Component: catalog.Lecture}
	ma101 = model.Key{Course: "MA101", Component: catalog.Lecture}
)

// gridWith builds a catalog with one MWF lecture row per start time and a TTH tutorial row
func gridWith(t *testing.T, starts ...string) *catalog.Catalog {
	t.Helper()
	rows := []catalog.Row{{ID: "TTH_T", Family: "TTH", Start: "14:00", End: "15:00", Allowed: []string{"T"}}}
	for _, start := range starts {
		clock, err := catalog.ParseClock(start)
		require.NoError(t, err)
		rows = append(rows, catalog.Row{ID: "MWF_" + start[:2], Family: "MWF", Start: start, End: (clock + 60).String(), Allowed: []string{"L"}})
	}
	cat, err := catalog.New(catalog.Grid{
		Families: []catalog.FamilySpec{
			{Name: "MWF", Days: []string{"Mon", "Wed", "Fri"}},
			{Name: "TTH", Days: []string{"Tue", "Thu"}},
		},
		Rows: rows,
	})
	require.NoError(t, err)
	return cat
}

// courses shares the single lecture room R1 between every course. CS201's teacher cannot teach on Monday at 09:00
func courses(t *testing.T, ids ...string) *model.Entities {
	t.Helper()
	catalogue := map[string]model.Course{
		"CS102": {ID: "CS102", Title: "Programming II", Credits: 3, Groups: []string{"G1"}},
		"CS201": {ID: "CS201", Title: "Data Structures", Credits: 3, Groups: []string{"G2"}},
		"MA101": {ID: "MA101", Title: "Calculus I", Credits: 3, Groups: []string{"G3"}},
	}
	teachers := map[string]model.Faculty{
		"CS102": {ID: "F1", Teaches: []model.Teachable{{Course: "CS102"}}},
		"CS201": {ID: "F2", Teaches: []model.Teachable{{Course: "CS201"}}, Unavailable: []string{"MWF_09/Mon"}},
		"MA101": {ID: "F3", Teaches: []model.Teachable{{Course: "MA101"}}},
	}
	selected := make([]model.Course, 0, len(ids))
	faculty := make([]model.Faculty, 0, len(ids))
	for _, id := range ids {
		course := catalogue[id]
		course.Components = []model.Component{{Type: catalog.Lecture, Sessions: 3}}
		selected = append(selected, course)
		faculty = append(faculty, teachers[id])
	}
	entities, err := model.NewEntities(
		selected,
		[]model.Room{{ID: "R1", Capacity: 50, Type: model.LectureHall}},
		faculty,
		[]model.Group{{ID: "G1", Size: 40}, {ID: "G2", Size: 30}, {ID: "G3", Size: 20}},
	)
	require.NoError(t, err)
	return entities
}

type recorder struct {
	mu         sync.Mutex
	outcomes   []string
	violations []int
}

func (recorder *recorder) ObserveRepair(operation, outcome string, _ time.Duration) {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	recorder.outcomes = append(recorder.outcomes, operation+":"+outcome)
}

func (recorder *recorder) ObserveViolations(count int) {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	recorder.violations = append(recorder.violations, count)
}

func newEngine(t *testing.T, cat *catalog.Catalog, entities *model.Entities, opts ...Option) *Engine {
	t.Helper()
	engine := NewEngine(cat, model.NewTimetabler(sat.NewGiniSolver()), conflict.NewDetector(cat, conflict.DefaultConfig()), opts...)
	_, err := engine.Reset(context.Background(), entities)
	require.NoError(t, err)
	return engine
}

func slotsOf(t *testing.T, engine *Engine, key model.Key) []string {
	t.Helper()
	state, err := engine.State()
	require.NoError(t, err)
	assignment, ok := state.Assignment(key)
	require.True(t, ok, key.String())
	return assignment.SlotIDs()
}

func row(id string) []string {
	return []string{id + "/Mon", id + "/Wed", id + "/Fri"}
}

func TestBaseline(t *testing.T) {
	//** Arrange
	cat := gridWith(t, "09:00", "11:00")
	engine := NewEngine(cat, model.NewTimetabler(sat.NewGiniSolver()), conflict.NewDetector(cat, conflict.DefaultConfig()))

	//** Act
	_, errBefore := engine.State()
	result, err := engine.Reset(context.Background(), courses(t, "CS102"))

	//** Assert
	assert.ErrorIs(t, errBefore, ErrNoBaseline)
	require.NoError(t, err)
	assert.Equal(t, Idle, engine.Status())
	assert.Equal(t, uint64(0), result.Ledger.Version())
	assignment, ok := result.State.Assignment(cs102)
	require.True(t, ok)
	assert.Equal(t, row("MWF_09"), assignment.SlotIDs())
	assert.Equal(t, "R1", assignment.Room)
	assert.False(t, result.Report.HasViolations())

	// Re-solving unchanged inputs is idempotent
	again, err := engine.Baseline(context.Background())
	require.NoError(t, err)
	assert.True(t, result.State.Equal(again.State))
}

func TestNonForcedRepairMovesOnlyWhatConflicts(t *testing.T) {
	//** Arrange
	engine := newEngine(t, gridWith(t, "09:00", "11:00", "14:00"), courses(t, "CS102", "CS201", "MA101"))
	require.Equal(t, row("MWF_09"), slotsOf(t, engine, cs102))
	require.Equal(t, row("MWF_11"), slotsOf(t, engine, cs201))
	require.Equal(t, row("MWF_14"), slotsOf(t, engine, ma101))

	//** Act
	result, err := engine.Apply(context.Background(), Command{Course: "MA101", Component: "lecture", Day: "Monday", Start: "09:00"})

	//** Assert
	require.NoError(t, err)
	assert.Equal(t, row("MWF_09"), slotsOf(t, engine, ma101))
	assert.Equal(t, row("MWF_11"), slotsOf(t, engine, cs201))
	assert.Equal(t, row("MWF_14"), slotsOf(t, engine, cs102))
	assert.ElementsMatch(t, []model.Key{cs102, ma101}, result.Moved)
	require.NotNil(t, result.Entry)
	assert.Equal(t, uint64(1), result.Entry.Seq)
	assert.Equal(t, uint64(1), result.State.LedgerVersion())
	assert.Empty(t, result.Violations)
}

func TestBaselineAfterRepairKeepsTheSchedule(t *testing.T) {
	//** Arrange
	engine := newEngine(t, gridWith(t, "09:00", "11:00", "14:00"), courses(t, "CS102", "CS201", "MA101"))
	repaired, err := engine.Apply(context.Background(), Command{Course: "MA101", Component: "L", Day: "Mon", Start: "09:00"})
	require.NoError(t, err)

	//** Act
	again, err := engine.Baseline(context.Background())

	//** Assert
	require.NoError(t, err)
	assert.True(t, repaired.State.Equal(again.State))
	assert.Empty(t, again.Moved)
	assert.Equal(t, row("MWF_14"), slotsOf(t, engine, cs102))
	assert.Equal(t, row("MWF_11"), slotsOf(t, engine, cs201))
	assert.Equal(t, uint64(1), again.Ledger.Version())
}

// expiringTimetabler reports every feasible outcome as the best schedule found before the deadline
type expiringTimetabler struct {
	model.Timetabler
}

func (timetabler expiringTimetabler) Solve(ctx context.Context, constraintModel *model.ConstraintModel, hint []model.Assignment) (model.Outcome, error) {
	outcome, err := timetabler.Timetabler.Solve(ctx, constraintModel, hint)
	outcome.TimedOut = outcome.Feasible()
	return outcome, err
}

func TestDeadlineSchedulesArePublished(t *testing.T) {
	//** Arrange
	cat := gridWith(t, "09:00", "11:00")
	engine := NewEngine(cat, expiringTimetabler{model.NewTimetabler(sat.NewGiniSolver())}, conflict.NewDetector(cat, conflict.DefaultConfig()))

	//** Act
	result, err := engine.Reset(context.Background(), courses(t, "CS102", "CS201"))

	//** Assert
	require.NoError(t, err)
	assert.True(t, result.State.TimedOut())
	assert.Equal(t, 2, result.State.Len())
	published, err := engine.State()
	require.NoError(t, err)
	assert.Same(t, result.State, published)
	assert.True(t, published.TimedOut())
}

func TestBaselineDeadlineError(t *testing.T) {
	//** Arrange
	cat := gridWith(t, "09:00", "11:00")
	timetabler := model.NewTimetabler(sat.NewGiniSolver(), model.WithTimeout(time.Nanosecond))
	engine := NewEngine(cat, timetabler, conflict.NewDetector(cat, conflict.DefaultConfig()))

	//** Act
	_, err := engine.Reset(context.Background(), courses(t, "CS102"))

	//** Assert
	var infeasible *InfeasibleError
	require.True(t, errors.As(err, &infeasible), "expected InfeasibleError, got %v", err)
	assert.Contains(t, err.Error(), "cannot build the schedule")
	assert.NotContains(t, err.Error(), "override")
}

func TestRejectedRepairLeavesStateUnchanged(t *testing.T) {
	//** Arrange
	observer := &recorder{}
	engine := newEngine(t, gridWith(t, "09:00", "11:00"), courses(t, "CS102", "CS201"), WithObserver(observer))
	before, err := engine.State()
	require.NoError(t, err)
	ledgerBefore, _ := engine.Ledger()

	//** Act
	_, err = engine.Apply(context.Background(), Command{Course: "CS102", Component: "L", Day: "Mon", Start: "11:00"})

	//** Assert
	var infeasible *InfeasibleError
	require.True(t, errors.As(err, &infeasible))
	assert.Equal(t, cs102, infeasible.Key)
	assert.Contains(t, infeasible.Core.Keys, cs201)
	assert.Contains(t, err.Error(), "CS201/L")
	assert.Equal(t, Rejected, engine.Status())

	after, _ := engine.State()
	ledgerAfter, _ := engine.Ledger()
	assert.Same(t, before, after)
	assert.True(t, before.Equal(after))
	assert.Same(t, ledgerBefore, ledgerAfter)
	assert.Equal(t, uint64(0), ledgerAfter.Version())
	assert.Equal(t, "apply:rejected", observer.outcomes[len(observer.outcomes)-1])
}

func TestForcedRepairIsReported(t *testing.T) {
	//** Arrange
	engine := newEngine(t, gridWith(t, "09:00", "11:00"), courses(t, "CS102", "CS201"))

	//** Act
	result, err := engine.Apply(context.Background(), Command{Course: "CS102", Component: "L", Day: "Mon", Start: "11:00", Forced: true, Reason: "only slot the lecturer can make"})

	//** Assert
	require.NoError(t, err)
	assert.Equal(t, Idle, engine.Status())
	assert.Equal(t, row("MWF_11"), slotsOf(t, engine, cs102))
	assert.Equal(t, row("MWF_11"), slotsOf(t, engine, cs201))
	assert.True(t, result.Entry.Forced)
	assert.Equal(t, "R1", result.Entry.Room)
	assert.Equal(t, "F1", result.Entry.Faculty)

	require.Len(t, result.Violations, 1)
	assert.Equal(t, model.RuleRoomDoubleBooking, result.Violations[0].Rule)
	assert.Equal(t, []model.Key{cs102, cs201}, result.Violations[0].Keys)
	assert.Equal(t, []model.Rule{model.RuleRoomDoubleBooking}, result.Report.RulesFor(result.Entry.Seq))
}

func TestForcedOffCatalogRepair(t *testing.T) {
	//** Arrange
	engine := newEngine(t, gridWith(t, "09:00", "11:00"), courses(t, "CS102"), WithAdHocLength(50))

	//** Act
	result, err := engine.Apply(context.Background(), Command{Course: "CS102", Component: "L", Day: "Mon", Start: "07:00", Forced: true})

	//** Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"adhoc/Mon/07:00-07:50", "MWF_09/Wed", "MWF_09/Fri"}, slotsOf(t, engine, cs102))
	assert.Equal(t, []model.Rule{model.RuleCatalogMembership, model.RulePattern}, result.Report.RulesFor(result.Entry.Seq))
}

func TestInvalidCommands(t *testing.T) {
	engine := newEngine(t, gridWith(t, "09:00", "11:00"), courses(t, "CS102"))
	before, _ := engine.State()

	unknown := map[string]Command{
		"Course":    {Course: "XX999", Component: "L", Day: "Mon", Start: "09:00"},
		"Component": {Course: "CS102", Component: "P", Day: "Mon", Start: "09:00"},
		"Room":      {Course: "CS102", Component: "L", Day: "Mon", Start: "09:00", Room: "R9"},
		"Faculty":   {Course: "CS102", Component: "L", Day: "Mon", Start: "09:00", Faculty: "F9"},
	}
	for name, command := range unknown {
		t.Run("Unknown "+name, func(t *testing.T) {
			_, err := engine.Apply(context.Background(), command)
			var target *UnknownTargetError
			assert.True(t, errors.As(err, &target), "got %v", err)
		})
	}

	invalid := map[string]Command{
		"Off-catalog time":        {Course: "CS102", Component: "L", Day: "Mon", Start: "10:30"},
		"Slot of another type":    {Course: "CS102", Component: "L", Day: "Tue", Start: "14:00"},
		"Malformed time":          {Course: "CS102", Component: "L", Day: "Mon", Start: "nine"},
		"Malformed day":           {Course: "CS102", Component: "L", Day: "Someday", Start: "09:00"},
		"End before start":        {Course: "CS102", Component: "L", Day: "Mon", Start: "09:00", End: "08:00", Forced: true},
		"End outside of the slot": {Course: "CS102", Component: "L", Day: "Mon", Start: "09:00", End: "11:00"},
	}
	for name, command := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := engine.Apply(context.Background(), command)
			var slot *InvalidSlotError
			assert.True(t, errors.As(err, &slot), "got %v", err)
		})
	}

	after, _ := engine.State()
	assert.Same(t, before, after)
}

func TestSnapTolerance(t *testing.T) {
	engine := newEngine(t, gridWith(t, "09:00", "11:00"), courses(t, "CS102"), WithSnapTolerance(10))

	_, err := engine.Apply(context.Background(), Command{Course: "CS102", Component: "L", Day: "Wed", Start: "10:55"})

	require.NoError(t, err)
	assert.Equal(t, row("MWF_11"), slotsOf(t, engine, cs102))
}

func TestUndoAndRelease(t *testing.T) {
	//** Arrange
	engine := newEngine(t, gridWith(t, "09:00", "11:00"), courses(t, "CS102", "CS201"))
	ctx := context.Background()
	_, err := engine.Undo(ctx)
	require.ErrorIs(t, err, ErrNothingToUndo)
	_, err = engine.Apply(ctx, Command{Course: "CS102", Component: "L", Day: "Mon", Start: "11:00", Forced: true})
	require.NoError(t, err)

	//** Act
	undone, err := engine.Undo(ctx)

	//** Assert
	require.NoError(t, err)
	assert.Equal(t, schedule.KindRelease, undone.Entry.Kind)
	assert.Equal(t, "undo #1", undone.Entry.Reason)
	assert.Equal(t, uint64(2), undone.Ledger.Version())
	assert.Empty(t, undone.Ledger.Active())
	assert.False(t, undone.Report.HasViolations())
	assert.Equal(t, row("MWF_09"), slotsOf(t, engine, cs102))

	// Nothing left to release
	_, err = engine.Release(ctx, cs102, "")
	var target *UnknownTargetError
	assert.True(t, errors.As(err, &target))

	// Undoing the undo restores the forced pin
	redone, err := engine.Undo(ctx)
	require.NoError(t, err)
	assert.True(t, redone.Entry.Forced)
	assert.Equal(t, row("MWF_11"), slotsOf(t, engine, cs102))

	released, err := engine.Release(ctx, cs102, "back to normal")
	require.NoError(t, err)
	assert.Empty(t, released.Ledger.Active())
	assert.Len(t, released.Ledger.History(cs102), 4)
}

func TestCancelledRepairDoesNotPublish(t *testing.T) {
	engine := newEngine(t, gridWith(t, "09:00", "11:00", "14:00"), courses(t, "CS102", "CS201", "MA101"))
	before, _ := engine.State()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Apply(ctx, Command{Course: "MA101", Component: "L", Day: "Mon", Start: "09:00"})

	assert.ErrorIs(t, err, context.Canceled)
	after, _ := engine.State()
	assert.Same(t, before, after)
}

func TestResetFailureInvalidatesTheSchedule(t *testing.T) {
	//** Arrange
	cat := gridWith(t, "09:00", "11:00")
	engine := newEngine(t, cat, courses(t, "CS102"))
	labs, err := model.NewEntities(
		[]model.Course{{ID: "CH101", Components: []model.Component{{Type: catalog.Practical, Sessions: 1}}}},
		nil, nil, nil,
	)
	require.NoError(t, err)

	//** Act
	_, err = engine.Reset(context.Background(), labs)

	//** Assert
	var ineligible *model.InfeasibleEligibilityError
	assert.True(t, errors.As(err, &ineligible))
	_, err = engine.State()
	assert.ErrorIs(t, err, ErrNoBaseline)
	_, err = engine.Apply(context.Background(), Command{Course: "CS102", Component: "L", Day: "Mon", Start: "09:00"})
	assert.ErrorIs(t, err, ErrNoBaseline)
}

func TestConcurrentRepairsAreSerialized(t *testing.T) {
	//** Arrange
	engine := newEngine(t, gridWith(t, "09:00", "11:00", "14:00"), courses(t, "CS102", "CS201", "MA101"))
	commands := []Command{
		{Course: "MA101", Component: "L", Day: "Mon", Start: "09:00"},
		{Course: "MA101", Component: "L", Day: "Mon", Start: "14:00"},
	}
	const writers = 6

	//** Act
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := range writers {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, errs[i] = engine.Apply(context.Background(), commands[i%len(commands)])
		}()
		go func() {
			defer wg.Done()
			state, err := engine.State()
			if assert.NoError(t, err) {
				assert.Equal(t, 3, state.Len())
			}
		}()
	}
	wg.Wait()

	//** Assert
	for _, err := range errs {
		assert.NoError(t, err)
	}
	ledger, err := engine.Ledger()
	require.NoError(t, err)
	assert.Equal(t, uint64(writers), ledger.Version())
	state, _ := engine.State()
	assert.Equal(t, ledger.Version(), state.LedgerVersion())
}

func TestDecodeCommands(t *testing.T) {
	//** Arrange
	path := filepath.Join(t.TempDir(), "commands.yaml")
	content := `
commands:
  - course: CS102
    component: lecture
    day: Monday
    start: "11:00"
    forced: true
    reason: dean's request
  - course: CS201
    component: L
    day: Wed
    start: "09:00"
    room: R1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	//** Act
	commands, err := DecodeCommands(path)

	//** Assert
	require.NoError(t, err)
	require.Len(t, commands, 2)
	assert.True(t, commands[0].Forced)
	assert.Equal(t, "R1", commands[1].Room)

	_, err = DecodeCommand(map[string]any{"course": "CS102", "component": "L", "day": "Mon"})
	assert.Error(t, err)
	_, err = DecodeCommand(map[string]any{"course": "CS102", "component": "L", "day": "Mon", "start": "09:00", "room_id": "R1"})
	assert.Error(t, err)
}
