package schedule

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/limaJavier/scheduler/pkg/catalog"
	"github.com/limaJavier/scheduler/pkg/model"
	"github.com/samber/lo"
)

// State is an immutable schedule snapshot. It is never updated in place: every change produces a new State
type State struct {
	session       uuid.UUID
	ledgerVersion uint64
	entities      *model.Entities
	assignments   []model.Assignment
	index         map[model.Key][]int
	timedOut      bool
	solvedAt      time.Time
}

// NewState snapshots the assignments of a feasible solve outcome
func NewState(session uuid.UUID, ledgerVersion uint64, entities *model.Entities, outcome model.Outcome, solvedAt time.Time) *State {
	assignments := lo.Map(outcome.Assignments, func(assignment model.Assignment, _ int) model.Assignment {
		assignment.Slots = slices.Clone(assignment.Slots)
		return assignment
	})
	model.SortAssignments(assignments)

	state := &State{
		session:       session,
		ledgerVersion: ledgerVersion,
		entities:      entities,
		assignments:   assignments,
		index:         make(map[model.Key][]int),
		timedOut:      outcome.TimedOut,
		solvedAt:      solvedAt,
	}
	for i, assignment := range assignments {
		state.index[assignment.Key] = append(state.index[assignment.Key], i)
	}
	return state
}

func (state *State) Session() uuid.UUID        { return state.session }
func (state *State) LedgerVersion() uint64     { return state.ledgerVersion }
func (state *State) Entities() *model.Entities { return state.entities }
func (state *State) TimedOut() bool            { return state.timedOut }
func (state *State) SolvedAt() time.Time       { return state.solvedAt }
func (state *State) Len() int                  { return len(state.assignments) }

// Assignments returns every assignment ordered by key, forced ones included
func (state *State) Assignments() []model.Assignment {
	return slices.Clone(state.assignments)
}

func (state *State) Keys() []model.Key {
	return lo.Uniq(lo.Map(state.assignments, func(assignment model.Assignment, _ int) model.Key { return assignment.Key }))
}

// Assignment returns the assignment of an instance
func (state *State) Assignment(key model.Key) (model.Assignment, bool) {
	indices := state.index[key]
	if len(indices) == 0 {
		return model.Assignment{}, false
	}
	return state.assignments[indices[0]], true
}

// InSlot returns the assignments meeting during the slot, ad-hoc slots overlapping it included.
// The slot need not be held by any assignment
func (state *State) InSlot(slot catalog.TimeSlot) []model.Assignment {
	return lo.Filter(state.assignments, func(assignment model.Assignment, _ int) bool {
		return lo.SomeBy(assignment.Slots, slot.Overlaps)
	})
}

func (state *State) ForRoom(room string) []model.Assignment {
	return lo.Filter(state.assignments, func(assignment model.Assignment, _ int) bool { return assignment.Room == room })
}

func (state *State) ForFaculty(faculty string) []model.Assignment {
	return lo.Filter(state.assignments, func(assignment model.Assignment, _ int) bool { return assignment.Faculty == faculty })
}

func (state *State) ForGroup(group string) []model.Assignment {
	return lo.Filter(state.assignments, func(assignment model.Assignment, _ int) bool {
		return slices.Contains(state.entities.GroupsOf(assignment.Key.Course), group)
	})
}

// Equal compares the schedules and the ledger version they were solved against
func (state *State) Equal(other *State) bool {
	if state == other {
		return true
	}
	if state == nil || other == nil {
		return false
	}
	return state.session == other.session &&
		state.ledgerVersion == other.ledgerVersion &&
		state.timedOut == other.timedOut &&
		slices.EqualFunc(state.assignments, other.assignments, model.Assignment.Equal)
}

// Moved lists the instances whose assignment differs from the previous state
func (state *State) Moved(previous *State) []model.Key {
	return lo.Filter(state.Keys(), func(key model.Key, _ int) bool {
		current, _ := state.Assignment(key)
		before, ok := previous.Assignment(key)
		return !ok || current.Room != before.Room || current.Faculty != before.Faculty || !slices.Equal(current.SlotIDs(), before.SlotIDs())
	})
}

func (state *State) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Session       string             `json:"session"`
		LedgerVersion uint64             `json:"ledgerVersion"`
		SolvedAt      time.Time          `json:"solvedAt"`
		TimedOut      bool               `json:"timedOut,omitempty"`
		Assignments   []model.Assignment `json:"assignments"`
	}{
		Session:       state.session.String(),
		LedgerVersion: state.ledgerVersion,
		SolvedAt:      state.solvedAt,
		TimedOut:      state.timedOut,
		Assignments:   lo.Ternary(state.assignments == nil, []model.Assignment{}, state.assignments),
	})
}
