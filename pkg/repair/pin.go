package repair

import (
	"slices"

	"github.com/limaJavier/scheduler/pkg/catalog"
	"github.com/limaJavier/scheduler/pkg/model"
	"github.com/samber/lo"
)

// request is a command checked against the entity set of the published snapshot
type request struct {
	key      model.Key
	sessions int
	day      catalog.Day
	start    catalog.Clock
	end      catalog.Clock // Zero when unspecified
	room     string
	faculty  string
	forced   bool
	reason   string
	command  Command
}

func (engine *Engine) validateCommand(snap *snapshot, command Command) (request, error) {
	entities := snap.entities

	if _, ok := entities.Course(command.Course); !ok {
		return request{}, &UnknownTargetError{Kind: "course", ID: command.Course}
	}
	componentType, err := catalog.ParseComponent(command.Component)
	if err != nil {
		return request{}, &UnknownTargetError{Kind: "component", ID: command.Component}
	}
	key := model.Key{Course: command.Course, Component: componentType}
	component, ok := entities.Component(key)
	if !ok {
		return request{}, &UnknownTargetError{Kind: "component", ID: key.String()}
	}
	if _, ok := entities.Room(command.Room); command.Room != "" && !ok {
		return request{}, &UnknownTargetError{Kind: "room", ID: command.Room}
	}
	if _, ok := entities.FacultyMember(command.Faculty); command.Faculty != "" && !ok {
		return request{}, &UnknownTargetError{Kind: "faculty", ID: command.Faculty}
	}

	req := request{
		key:      key,
		sessions: component.Sessions,
		room:     command.Room,
		faculty:  command.Faculty,
		forced:   command.Forced,
		reason:   command.Reason,
		command:  command,
	}
	invalid := func(reason string) error {
		return &InvalidSlotError{Key: key, Day: command.Day, Start: command.Start, Reason: reason}
	}
	if req.day, err = catalog.ParseDay(command.Day); err != nil {
		return request{}, invalid(err.Error())
	}
	if req.start, err = catalog.ParseClock(command.Start); err != nil {
		return request{}, invalid(err.Error())
	}
	if command.End != "" {
		if req.end, err = catalog.ParseClock(command.End); err != nil {
			return request{}, invalid(err.Error())
		}
		if req.end <= req.start {
			return request{}, invalid("end is not after start")
		}
	}
	return req, nil
}

// pinSlots turns the requested time into the full slot set of the instance. Non-forced requests must land on an
// option of the instance; forced ones may take any time, replacing the session held on that day
func (engine *Engine) pinSlots(snap *snapshot, req request) ([]catalog.TimeSlot, error) {
	current, _ := snap.state.Assignment(req.key)
	invalid := func(reason string) error {
		return &InvalidSlotError{Key: req.key, Day: req.command.Day, Start: req.command.Start, Reason: reason}
	}

	slot, found := engine.catalog.Nearest(req.day, req.start, engine.snapTolerance)
	if found && req.end != 0 && abs(int(slot.End-req.end)) > engine.snapTolerance {
		found = false
	}

	if !req.forced {
		if !found {
			return nil, invalid("no catalog slot starts at that time")
		}
		if !slot.Allows(req.key.Component) {
			return nil, invalid("slot " + slot.ID + " does not allow component " + string(req.key.Component))
		}
		option, ok := pickOption(model.Options(engine.catalog, req.key.Component, req.sessions), slot, current.Slots)
		if !ok {
			return nil, invalid("slot " + slot.ID + " belongs to no slot pattern the instance can follow")
		}
		return option.Slots, nil
	}

	if found {
		if option, ok := pickOption(model.Options(engine.catalog, req.key.Component, req.sessions), slot, current.Slots); ok {
			return option.Slots, nil
		}
		if option, ok := pickOption(model.PatternOptions(engine.catalog, req.sessions), slot, current.Slots); ok {
			return option.Slots, nil
		}
	} else {
		end := req.end
		if end == 0 {
			end = req.start + catalog.Clock(engine.adHocLength)
		}
		slot = catalog.AdHocSlot(req.day, req.start, end)
	}
	return replaceSession(current.Slots, slot), nil
}

// pickOption returns an option holding the slot, preferring one on the same days as the current slots
func pickOption(options []model.Option, slot catalog.TimeSlot, current []catalog.TimeSlot) (model.Option, bool) {
	holding := lo.Filter(options, func(option model.Option, _ int) bool {
		return lo.ContainsBy(option.Slots, func(other catalog.TimeSlot) bool { return other.ID == slot.ID })
	})
	if len(holding) == 0 {
		return model.Option{}, false
	}
	days := daysOf(current)
	if option, ok := lo.Find(holding, func(option model.Option) bool { return slices.Equal(daysOf(option.Slots), days) }); ok {
		return option, true
	}
	return holding[0], true
}

// replaceSession swaps the session held on the slot's day, or the first session when none is, for the slot
func replaceSession(current []catalog.TimeSlot, slot catalog.TimeSlot) []catalog.TimeSlot {
	if len(current) == 0 {
		return []catalog.TimeSlot{slot}
	}
	slots := slices.Clone(current)
	i := slices.IndexFunc(slots, func(other catalog.TimeSlot) bool { return other.Day == slot.Day })
	slots[max(i, 0)] = slot
	slices.SortFunc(slots, catalog.CompareSlots)
	return slots
}

// inferRoom keeps the requested room, else picks the first eligible room free at the slots, the current one first.
// A non-forced request with no free eligible room leaves the choice to the solver
func (engine *Engine) inferRoom(snap *snapshot, req request, slots []catalog.TimeSlot) string {
	if req.room != "" {
		return req.room
	}
	current, _ := snap.state.Assignment(req.key)
	evaluator := snap.evaluator

	rooms := lo.Uniq(lo.Compact(append([]string{current.Room}, lo.Map(snap.entities.Rooms(), func(room model.Room, _ int) string { return room.ID })...)))
	eligible := lo.Filter(rooms, func(room string, _ int) bool {
		return evaluator.RoomTypeMatches(req.key, room) && evaluator.Fits(req.key, room) &&
			lo.EveryBy(slots, func(slot catalog.TimeSlot) bool { return evaluator.RoomAvailable(room, slot) })
	})
	free := lo.Filter(eligible, func(room string, _ int) bool {
		return !lo.ContainsBy(snap.state.ForRoom(room), func(other model.Assignment) bool {
			return other.Key != req.key && overlaps(other.Slots, slots)
		})
	})

	switch {
	case len(free) > 0:
		return free[0]
	case !req.forced:
		return ""
	case len(eligible) > 0:
		return eligible[0]
	}
	return current.Room
}

// inferFaculty mirrors inferRoom for faculty members
func (engine *Engine) inferFaculty(snap *snapshot, req request, slots []catalog.TimeSlot) string {
	if req.faculty != "" {
		return req.faculty
	}
	current, _ := snap.state.Assignment(req.key)
	evaluator := snap.evaluator

	teachers := lo.Uniq(lo.Compact(append([]string{current.Faculty}, snap.entities.TeachersOf(req.key)...)))
	eligible := lo.Filter(teachers, func(faculty string, _ int) bool {
		return evaluator.Teaches(faculty, req.key) &&
			lo.EveryBy(slots, func(slot catalog.TimeSlot) bool { return evaluator.FacultyAvailable(faculty, slot) })
	})
	free := lo.Filter(eligible, func(faculty string, _ int) bool {
		return !lo.ContainsBy(snap.state.ForFaculty(faculty), func(other model.Assignment) bool {
			return other.Key != req.key && overlaps(other.Slots, slots)
		})
	})

	switch {
	case len(free) > 0:
		return free[0]
	case !req.forced:
		return ""
	case len(eligible) > 0:
		return eligible[0]
	}
	return current.Faculty
}

func daysOf(slots []catalog.TimeSlot) []catalog.Day {
	days := lo.Map(slots, func(slot catalog.TimeSlot, _ int) catalog.Day { return slot.Day })
	slices.Sort(days)
	return days
}

func overlaps(a, b []catalog.TimeSlot) bool {
	return lo.SomeBy(a, func(slot catalog.TimeSlot) bool { return lo.SomeBy(b, slot.Overlaps) })
}

func abs(value int) int {
	if value < 0 {
		return -value
	}
	return value
}
