package model

import "github.com/limaJavier/scheduler/pkg/catalog"

type PredicateEvaluator interface {
	// Checks whether the slot is an official catalog slot
	InCatalog(slot catalog.TimeSlot) bool

	// Checks whether the catalog slot allows the instance's component type
	Allowed(key Key, slot catalog.TimeSlot) bool

	// Checks whether the slots follow the pattern rule for the instance's session count
	Patterned(key Key, slots []catalog.TimeSlot) bool

	// Checks whether the room's type is compatible with the instance
	RoomTypeMatches(key Key, room string) bool

	// Checks whether the instance's enrolled seats fit in the room
	Fits(key Key, room string) bool

	// Checks whether the room is not marked unavailable over the slot
	RoomAvailable(room string, slot catalog.TimeSlot) bool

	// Checks whether the faculty member may teach the instance
	Teaches(faculty string, key Key) bool

	// Checks whether the faculty member is not marked unavailable over the slot
	FacultyAvailable(faculty string, slot catalog.TimeSlot) bool

	// Lists the hard rules broken by the assignment on its own, in reporting order
	Violations(assignment Assignment) []Rule

	// Lists the double-booking rules broken by two assignments together
	Clashes(a, b Assignment) []Rule
}
