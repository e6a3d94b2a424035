package model

import (
	"slices"

	"github.com/limaJavier/scheduler/pkg/catalog"
	"github.com/samber/lo"
)

type predicateEvaluatorStandard struct {
	catalog  *catalog.Catalog
	entities *Entities

	patterns           map[int][]Option // Pattern options per session count
	roomUnavailable    map[string][]catalog.TimeSlot
	facultyUnavailable map[string][]catalog.TimeSlot
}

func NewPredicateEvaluator(cat *catalog.Catalog, entities *Entities) PredicateEvaluator {
	evaluator := predicateEvaluatorStandard{
		catalog:            cat,
		entities:           entities,
		patterns:           make(map[int][]Option),
		roomUnavailable:    make(map[string][]catalog.TimeSlot),
		facultyUnavailable: make(map[string][]catalog.TimeSlot),
	}

	for _, course := range entities.Courses() {
		for _, component := range course.Components {
			if _, ok := evaluator.patterns[component.Sessions]; !ok {
				evaluator.patterns[component.Sessions] = PatternOptions(cat, component.Sessions)
			}
		}
	}

	// Unknown slot ids cannot match any slot and are dropped
	resolve := func(ids []string) []catalog.TimeSlot {
		return lo.FilterMap(ids, func(id string, _ int) (catalog.TimeSlot, bool) { return cat.Slot(id) })
	}
	for _, room := range entities.Rooms() {
		evaluator.roomUnavailable[room.ID] = resolve(room.Unavailable)
	}
	for _, member := range entities.Faculty() {
		evaluator.facultyUnavailable[member.ID] = resolve(member.Unavailable)
	}

	return &evaluator
}

func (evaluator *predicateEvaluatorStandard) InCatalog(slot catalog.TimeSlot) bool {
	return evaluator.catalog.Contains(slot)
}

func (evaluator *predicateEvaluatorStandard) Allowed(key Key, slot catalog.TimeSlot) bool {
	official, ok := evaluator.catalog.Slot(slot.ID)
	return ok && !slot.AdHoc && official.Allows(key.Component)
}

func (evaluator *predicateEvaluatorStandard) Patterned(key Key, slots []catalog.TimeSlot) bool {
	component, ok := evaluator.entities.Component(key)
	if !ok || len(slots) != component.Sessions {
		return false
	}

	patterns, ok := evaluator.patterns[component.Sessions]
	if !ok {
		patterns = PatternOptions(evaluator.catalog, component.Sessions)
	}

	// Single meetings are unconstrained unless some family meets once a week
	if component.Sessions == 1 && !lo.SomeBy(evaluator.catalog.Families(), func(family catalog.Family) bool { return family.Sessions() == 1 }) {
		return true
	}
	return lo.SomeBy(patterns, func(option Option) bool { return option.Same(slots) && lo.EveryBy(slots, evaluator.InCatalog) })
}

func (evaluator *predicateEvaluatorStandard) RoomTypeMatches(key Key, room string) bool {
	record, ok := evaluator.entities.Room(room)
	return ok && slices.Contains(evaluator.entities.RoomTypes(key), record.Type)
}

func (evaluator *predicateEvaluatorStandard) Fits(key Key, room string) bool {
	record, ok := evaluator.entities.Room(room)
	return ok && record.Capacity >= evaluator.entities.CapacityNeed(key.Course)
}

func (evaluator *predicateEvaluatorStandard) RoomAvailable(room string, slot catalog.TimeSlot) bool {
	return !lo.SomeBy(evaluator.roomUnavailable[room], func(unavailable catalog.TimeSlot) bool { return unavailable.Overlaps(slot) })
}

func (evaluator *predicateEvaluatorStandard) Teaches(faculty string, key Key) bool {
	return evaluator.entities.MayTeach(faculty, key)
}

func (evaluator *predicateEvaluatorStandard) FacultyAvailable(faculty string, slot catalog.TimeSlot) bool {
	return !lo.SomeBy(evaluator.facultyUnavailable[faculty], func(unavailable catalog.TimeSlot) bool { return unavailable.Overlaps(slot) })
}

func (evaluator *predicateEvaluatorStandard) Violations(assignment Assignment) []Rule {
	key, slots := assignment.Key, assignment.Slots
	broken := make(map[Rule]bool)

	if !lo.EveryBy(slots, evaluator.InCatalog) {
		broken[RuleCatalogMembership] = true
	}
	if lo.SomeBy(slots, func(slot catalog.TimeSlot) bool { return evaluator.InCatalog(slot) && !evaluator.Allowed(key, slot) }) {
		broken[RuleComponentType] = true
	}
	if !evaluator.Patterned(key, slots) {
		broken[RulePattern] = true
	}

	if assignment.Room != "" {
		broken[RuleRoomType] = !evaluator.RoomTypeMatches(key, assignment.Room)
		broken[RuleRoomCapacity] = !evaluator.Fits(key, assignment.Room)
		broken[RuleRoomAvailability] = lo.SomeBy(slots, func(slot catalog.TimeSlot) bool { return !evaluator.RoomAvailable(assignment.Room, slot) })
	}
	if assignment.Faculty != "" {
		broken[RuleFacultyEligibility] = !evaluator.Teaches(assignment.Faculty, key)
		broken[RuleFacultyAvailability] = lo.SomeBy(slots, func(slot catalog.TimeSlot) bool { return !evaluator.FacultyAvailable(assignment.Faculty, slot) })
	}

	return lo.Filter(HardRules, func(rule Rule, _ int) bool { return broken[rule] })
}

func (evaluator *predicateEvaluatorStandard) Clashes(a, b Assignment) []Rule {
	if a.Key == b.Key || !a.Overlaps(b) {
		return nil
	}
	rules := make([]Rule, 0)
	if a.Room != "" && a.Room == b.Room {
		rules = append(rules, RuleRoomDoubleBooking)
	}
	if a.Faculty != "" && a.Faculty == b.Faculty {
		rules = append(rules, RuleFacultyDoubleBooking)
	}
	if sharesGroup(evaluator.entities, a.Key, b.Key) {
		rules = append(rules, RuleGroupDoubleBooking)
	}
	return rules
}

func sharesGroup(entities *Entities, a, b Key) bool {
	if a.Course == b.Course {
		return true
	}
	groups := entities.GroupsOf(b.Course)
	return lo.SomeBy(entities.GroupsOf(a.Course), func(group string) bool { return slices.Contains(groups, group) })
}
