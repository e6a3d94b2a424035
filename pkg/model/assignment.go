package model

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/limaJavier/scheduler/pkg/catalog"
)

// Assignment places one instance on a set of slots with a room and a faculty member
type Assignment struct {
	Key     Key                `json:"key"`
	Slots   []catalog.TimeSlot `json:"slots"`
	Room    string             `json:"room"`
	Faculty string             `json:"faculty"`
	Forced  bool               `json:"forced,omitempty"`
	Pin     uint64             `json:"pin,omitempty"` // Sequence number of the binding override, zero when chosen by the solver
}

func (assignment Assignment) SlotIDs() []string {
	return slotIDs(assignment.Slots)
}

func (assignment Assignment) Overlaps(other Assignment) bool {
	return overlapping(assignment.Slots, other.Slots)
}

func (assignment Assignment) Equal(other Assignment) bool {
	return assignment.Key == other.Key &&
		assignment.Room == other.Room &&
		assignment.Faculty == other.Faculty &&
		assignment.Forced == other.Forced &&
		assignment.Pin == other.Pin &&
		slices.EqualFunc(assignment.Slots, other.Slots, func(a, b catalog.TimeSlot) bool {
			return a.ID == b.ID && a.Day == b.Day && a.Start == b.Start && a.End == b.End
		})
}

func (assignment Assignment) String() string {
	return fmt.Sprintf("%v @ [%v] room=%v faculty=%v", assignment.Key, slotsLabel(assignment.Slots), assignment.Room, assignment.Faculty)
}

func SortAssignments(assignments []Assignment) {
	slices.SortFunc(assignments, func(a, b Assignment) int {
		return cmp.Or(CompareKeys(a.Key, b.Key), cmp.Compare(a.Pin, b.Pin))
	})
}

// Pin fixes an instance before solving. Empty room or faculty lets the solver choose any eligible one
type Pin struct {
	Seq     uint64             `json:"seq"`
	Key     Key                `json:"key"`
	Slots   []catalog.TimeSlot `json:"slots"`
	Room    string             `json:"room,omitempty"`
	Faculty string             `json:"faculty,omitempty"`
	Forced  bool               `json:"forced"`
	Reason  string             `json:"reason,omitempty"`
}

func (pin Pin) String() string {
	forced := ""
	if pin.Forced {
		forced = " (forced)"
	}
	return fmt.Sprintf("pin #%d %v @ [%v]%v", pin.Seq, pin.Key, slotsLabel(pin.Slots), forced)
}

// Matches reports whether the assignment honours the pin
func (pin Pin) Matches(key Key, slots []catalog.TimeSlot, room, faculty string) bool {
	return pin.Key == key &&
		sameSlots(pin.Slots, slots) &&
		(pin.Room == "" || pin.Room == room) &&
		(pin.Faculty == "" || pin.Faculty == faculty)
}

type Rule string

const (
	RuleCatalogMembership    Rule = "catalog-membership"
	RuleComponentType        Rule = "component-type"
	RuleRoomType             Rule = "room-type"
	RuleRoomCapacity         Rule = "room-capacity"
	RuleRoomAvailability     Rule = "room-availability"
	RuleFacultyEligibility   Rule = "faculty-eligibility"
	RuleFacultyAvailability  Rule = "faculty-availability"
	RuleRoomDoubleBooking    Rule = "room-double-booking"
	RuleFacultyDoubleBooking Rule = "faculty-double-booking"
	RuleGroupDoubleBooking   Rule = "group-double-booking"
	RulePattern              Rule = "pattern"
	RuleCompleteness         Rule = "completeness"
)

// HardRules lists the rules a non-forced schedule always satisfies, in reporting order
var HardRules = []Rule{
	RuleCatalogMembership,
	RuleComponentType,
	RulePattern,
	RuleRoomType,
	RuleRoomCapacity,
	RuleRoomAvailability,
	RuleFacultyEligibility,
	RuleFacultyAvailability,
	RuleRoomDoubleBooking,
	RuleFacultyDoubleBooking,
	RuleGroupDoubleBooking,
}
