package model

import (
	"slices"
	"strings"

	"github.com/limaJavier/scheduler/pkg/catalog"
	"github.com/samber/lo"
)

// Option is a set of slots one instance can occupy during a week
type Option struct {
	Slots  []catalog.TimeSlot
	Family string // Set when the option is a whole family row
	Row    string
}

func (option Option) SlotIDs() []string {
	return slotIDs(option.Slots)
}

func (option Option) Overlaps(other Option) bool {
	return overlapping(option.Slots, other.Slots)
}

func (option Option) Same(slots []catalog.TimeSlot) bool {
	return sameSlots(option.Slots, slots)
}

// Options enumerates the slot sets an instance with the given component and session count may occupy, in tie-break order:
//   - when a family meets as many times as the component, every whole row of such a family whose slots allow the component
//   - otherwise, for single-session components, every slot allowing the component
//   - otherwise every subset of a row with the requested number of days
func Options(cat *catalog.Catalog, component catalog.ComponentType, sessions int) []Option {
	return options(cat, sessions, func(slot catalog.TimeSlot) bool { return slot.Allows(component) })
}

// PatternOptions enumerates the options allowed by the pattern rule alone, regardless of component types
func PatternOptions(cat *catalog.Catalog, sessions int) []Option {
	return options(cat, sessions, func(catalog.TimeSlot) bool { return true })
}

func options(cat *catalog.Catalog, sessions int, allows func(catalog.TimeSlot) bool) []Option {
	if sessions <= 0 {
		return nil
	}

	patternFamilies := lo.FilterMap(cat.Families(), func(family catalog.Family, _ int) (string, bool) {
		return family.Name, family.Sessions() == sessions
	})

	result := make([]Option, 0)
	for _, bundle := range cat.Bundles() {
		switch {
		case len(patternFamilies) > 0:
			if slices.Contains(patternFamilies, bundle.Family) && len(bundle.Slots) == sessions && lo.EveryBy(bundle.Slots, allows) {
				result = append(result, Option{Slots: bundle.Slots, Family: bundle.Family, Row: bundle.Row})
			}
		case sessions == 1:
			for _, slot := range bundle.Slots {
				if allows(slot) {
					result = append(result, Option{Slots: []catalog.TimeSlot{slot}, Row: bundle.Row})
				}
			}
		default:
			allowed := lo.Filter(bundle.Slots, func(slot catalog.TimeSlot, _ int) bool { return allows(slot) })
			for _, subset := range combinations(allowed, sessions) {
				result = append(result, Option{Slots: subset, Row: bundle.Row})
			}
		}
	}
	return result
}

// combinations returns every k-subset of items preserving their order
func combinations[T any](items []T, k int) [][]T {
	if k > len(items) {
		return nil
	}
	result := make([][]T, 0)
	current := make([]T, 0, k)
	var backtrack func(start int)
	backtrack = func(start int) {
		if len(current) == k {
			result = append(result, slices.Clone(current))
			return
		}
		for i := start; i <= len(items)-(k-len(current)); i++ {
			current = append(current, items[i])
			backtrack(i + 1)
			current = current[:len(current)-1]
		}
	}
	backtrack(0)
	return result
}

func slotIDs(slots []catalog.TimeSlot) []string {
	return lo.Map(slots, func(slot catalog.TimeSlot, _ int) string { return slot.ID })
}

func overlapping(a, b []catalog.TimeSlot) bool {
	return lo.SomeBy(a, func(slot catalog.TimeSlot) bool {
		return lo.SomeBy(b, func(other catalog.TimeSlot) bool { return slot.Overlaps(other) })
	})
}

// sameSlots compares slot sets by day and time range, ignoring order and ids
func sameSlots(a, b []catalog.TimeSlot) bool {
	if len(a) != len(b) {
		return false
	}
	key := func(slots []catalog.TimeSlot) []string {
		keys := lo.Map(slots, func(slot catalog.TimeSlot, _ int) string { return slot.Label() })
		slices.Sort(keys)
		return keys
	}
	return slices.Equal(key(a), key(b))
}

func slotsLabel(slots []catalog.TimeSlot) string {
	return strings.Join(lo.Map(slots, func(slot catalog.TimeSlot, _ int) string { return slot.Label() }), ", ")
}
