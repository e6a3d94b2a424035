package catalog

import (
	"cmp"
	"fmt"
	"os"
	"slices"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

type TimeSlot struct {
	ID      string          `json:"id"`
	Row     string          `json:"row"`
	Family  string          `json:"family"`
	Day     Day             `json:"day"`
	Start   Clock           `json:"start"`
	End     Clock           `json:"end"`
	Allowed []ComponentType `json:"allowed"`
	AdHoc   bool            `json:"adHoc,omitempty"`
}

func (slot TimeSlot) Allows(component ComponentType) bool {
	return slices.Contains(slot.Allowed, component)
}

// Overlaps reports whether both slots share the same day and their [start, end) ranges intersect
func (slot TimeSlot) Overlaps(other TimeSlot) bool {
	return slot.Day == other.Day && slot.Start < other.End && other.Start < slot.End
}

func (slot TimeSlot) Label() string {
	return fmt.Sprintf("%v %v-%v", slot.Day, slot.Start, slot.End)
}

// AdHocSlot builds a slot outside of the official grid. Only forced overrides may reference one
func AdHocSlot(day Day, start, end Clock) TimeSlot {
	return TimeSlot{
		ID:    fmt.Sprintf("adhoc/%v/%v-%v", day, start, end),
		Day:   day,
		Start: start,
		End:   end,
		AdHoc: true,
	}
}

type Family struct {
	Name  string `json:"name"`
	Days  []Day  `json:"days"`
	Order int    `json:"order"`
}

// Sessions is the number of weekly meetings of a component following the family's pattern
func (family Family) Sessions() int {
	return len(family.Days)
}

// Bundle is the set of slots produced by one grid row, i.e. the same time block on every day of the row
type Bundle struct {
	Row    string
	Family string
	Slots  []TimeSlot
}

type FamilySpec struct {
	Name string   `yaml:"name"`
	Days []string `yaml:"days"`
}

type Row struct {
	ID      string   `yaml:"id"`
	Family  string   `yaml:"family"`
	Days    []string `yaml:"days"` // Defaults to the family's days
	Start   string   `yaml:"start"`
	End     string   `yaml:"end"`
	Allowed []string `yaml:"allowed"`
}

type Grid struct {
	Families []FamilySpec `yaml:"families"`
	Rows     []Row        `yaml:"rows"`
}

// Catalog is the immutable, validated set of official time slots
type Catalog struct {
	slots       []TimeSlot
	index       map[string]int
	aliases     map[string]string
	families    []Family
	familyIndex map[string]int
	bundles     []Bundle
}

type MalformedGridError struct {
	Row    string
	Other  string
	Reason string
}

func (err *MalformedGridError) Error() string {
	if err.Other != "" {
		return fmt.Sprintf("malformed grid: row %q conflicts with row %q: %v", err.Row, err.Other, err.Reason)
	}
	if err.Row != "" {
		return fmt.Sprintf("malformed grid: row %q: %v", err.Row, err.Reason)
	}
	return "malformed grid: " + err.Reason
}

func New(grid Grid) (*Catalog, error) {
	catalog := &Catalog{
		index:       make(map[string]int),
		aliases:     make(map[string]string),
		familyIndex: make(map[string]int),
	}

	//** Families
	for order, spec := range grid.Families {
		if spec.Name == "" {
			return nil, &MalformedGridError{Reason: fmt.Sprintf("family #%d has no name", order)}
		}
		if _, ok := catalog.familyIndex[spec.Name]; ok {
			return nil, &MalformedGridError{Reason: fmt.Sprintf("family %q declared twice", spec.Name)}
		}
		days, err := parseDays(spec.Days)
		if err != nil || len(days) == 0 {
			return nil, &MalformedGridError{Reason: fmt.Sprintf("family %q has invalid days %v", spec.Name, spec.Days)}
		}
		catalog.familyIndex[spec.Name] = len(catalog.families)
		catalog.families = append(catalog.families, Family{Name: spec.Name, Days: days, Order: order})
	}

	//** Rows expanded into per-day slots
	rowIDs := make(map[string]bool)
	expanded := make([]TimeSlot, 0, len(grid.Rows)*3)
	for _, row := range grid.Rows {
		if row.ID == "" {
			return nil, &MalformedGridError{Reason: "row without id"}
		}
		if rowIDs[row.ID] {
			return nil, &MalformedGridError{Row: row.ID, Reason: "duplicate row id"}
		}
		rowIDs[row.ID] = true

		familyIdx, ok := catalog.familyIndex[row.Family]
		if !ok {
			return nil, &MalformedGridError{Row: row.ID, Reason: fmt.Sprintf("unknown family %q", row.Family)}
		}
		family := catalog.families[familyIdx]

		days := family.Days
		if len(row.Days) > 0 {
			parsed, err := parseDays(row.Days)
			if err != nil {
				return nil, &MalformedGridError{Row: row.ID, Reason: err.Error()}
			}
			if lo.SomeBy(parsed, func(day Day) bool { return !slices.Contains(family.Days, day) }) {
				return nil, &MalformedGridError{Row: row.ID, Reason: fmt.Sprintf("days %v are not a subset of family %q", row.Days, family.Name)}
			}
			days = parsed
		}

		start, err := ParseClock(row.Start)
		if err != nil {
			return nil, &MalformedGridError{Row: row.ID, Reason: err.Error()}
		}
		end, err := ParseClock(row.End)
		if err != nil {
			return nil, &MalformedGridError{Row: row.ID, Reason: err.Error()}
		}
		if end <= start {
			return nil, &MalformedGridError{Row: row.ID, Reason: fmt.Sprintf("end %v is not after start %v", end, start)}
		}

		allowed := make([]ComponentType, 0, len(row.Allowed))
		for _, value := range row.Allowed {
			component, err := ParseComponent(value)
			if err != nil {
				return nil, &MalformedGridError{Row: row.ID, Reason: err.Error()}
			}
			if !slices.Contains(allowed, component) {
				allowed = append(allowed, component)
			}
		}

		for _, day := range days {
			expanded = append(expanded, TimeSlot{
				ID:      fmt.Sprintf("%v/%v", row.ID, day),
				Row:     row.ID,
				Family:  family.Name,
				Day:     day,
				Start:   start,
				End:     end,
				Allowed: allowed,
			})
		}
	}

	//** Deduplicate and validate overlaps
	slices.SortStableFunc(expanded, compareSlots)
	for _, slot := range expanded {
		merged := false
		for i := len(catalog.slots) - 1; i >= 0 && catalog.slots[i].Day == slot.Day; i-- {
			existing := &catalog.slots[i]
			if !existing.Overlaps(slot) {
				continue
			}
			if existing.Start != slot.Start || existing.End != slot.End {
				return nil, &MalformedGridError{Row: slot.Row, Other: existing.Row, Reason: fmt.Sprintf("overlapping ranges on %v", slot.Day)}
			}
			if existing.Family != slot.Family {
				return nil, &MalformedGridError{Row: slot.Row, Other: existing.Row, Reason: fmt.Sprintf("same range on %v tagged with families %q and %q", slot.Day, existing.Family, slot.Family)}
			}
			existing.Allowed = lo.Union(existing.Allowed, slot.Allowed)
			catalog.aliases[slot.ID] = existing.ID
			merged = true
			break
		}
		if !merged {
			catalog.slots = append(catalog.slots, slot)
		}
	}
	for i, slot := range catalog.slots {
		catalog.index[slot.ID] = i
	}

	//** Bundles per row, ordered by family, start and row id
	bundleIndex := make(map[string]int)
	for _, row := range grid.Rows {
		bundleIndex[row.ID] = len(catalog.bundles)
		catalog.bundles = append(catalog.bundles, Bundle{Row: row.ID, Family: row.Family})
	}
	for _, slot := range expanded {
		bundle := &catalog.bundles[bundleIndex[slot.Row]]
		resolved, _ := catalog.Slot(slot.ID)
		bundle.Slots = append(bundle.Slots, resolved)
	}
	catalog.bundles = lo.Filter(catalog.bundles, func(bundle Bundle, _ int) bool { return len(bundle.Slots) > 0 })
	for i := range catalog.bundles {
		slices.SortFunc(catalog.bundles[i].Slots, compareSlots)
	}
	slices.SortStableFunc(catalog.bundles, func(a, b Bundle) int {
		return cmp.Or(
			cmp.Compare(catalog.families[catalog.familyIndex[a.Family]].Order, catalog.families[catalog.familyIndex[b.Family]].Order),
			cmp.Compare(a.Slots[0].Start, b.Slots[0].Start),
			cmp.Compare(a.Slots[0].End, b.Slots[0].End),
			cmp.Compare(a.Row, b.Row),
		)
	})

	return catalog, nil
}

func Load(path string) (*Catalog, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read grid file: %w", err)
	}
	var grid Grid
	if err := yaml.Unmarshal(bytes, &grid); err != nil {
		return nil, fmt.Errorf("cannot parse grid file: %w", err)
	}
	return New(grid)
}

func (catalog *Catalog) Len() int {
	return len(catalog.slots)
}

// Slots returns every slot ordered by day and start time
func (catalog *Catalog) Slots() []TimeSlot {
	return slices.Clone(catalog.slots)
}

func (catalog *Catalog) Slot(id string) (TimeSlot, bool) {
	if alias, ok := catalog.aliases[id]; ok {
		id = alias
	}
	i, ok := catalog.index[id]
	if !ok {
		return TimeSlot{}, false
	}
	return catalog.slots[i], true
}

// Contains reports whether the slot is an official slot with the same range
func (catalog *Catalog) Contains(slot TimeSlot) bool {
	official, ok := catalog.Slot(slot.ID)
	return ok && !slot.AdHoc && official.Day == slot.Day && official.Start == slot.Start && official.End == slot.End
}

func (catalog *Catalog) Families() []Family {
	return slices.Clone(catalog.families)
}

func (catalog *Catalog) Family(name string) (Family, bool) {
	i, ok := catalog.familyIndex[name]
	if !ok {
		return Family{}, false
	}
	return catalog.families[i], true
}

func (catalog *Catalog) ByFamily(name string) []TimeSlot {
	return lo.Filter(catalog.slots, func(slot TimeSlot, _ int) bool { return slot.Family == name })
}

func (catalog *Catalog) ByComponent(component ComponentType) []TimeSlot {
	return lo.Filter(catalog.slots, func(slot TimeSlot, _ int) bool { return slot.Allows(component) })
}

// Bundles returns the per-row slot bundles ordered by family order and start time
func (catalog *Catalog) Bundles() []Bundle {
	return lo.Map(catalog.bundles, func(bundle Bundle, _ int) Bundle {
		return Bundle{Row: bundle.Row, Family: bundle.Family, Slots: slices.Clone(bundle.Slots)}
	})
}

// At returns the slot starting exactly at the given day and time
func (catalog *Catalog) At(day Day, start Clock) (TimeSlot, bool) {
	return lo.Find(catalog.slots, func(slot TimeSlot) bool { return slot.Day == day && slot.Start == start })
}

// Nearest snaps a requested start time to the closest slot on that day whose start lies within tolerance minutes.
// An exact match always wins; ties are broken in favour of the earlier slot
func (catalog *Catalog) Nearest(day Day, start Clock, tolerance int) (TimeSlot, bool) {
	if slot, ok := catalog.At(day, start); ok {
		return slot, true
	}
	best, found, bestDiff := TimeSlot{}, false, tolerance+1
	for _, slot := range catalog.slots {
		if slot.Day != day {
			continue
		}
		diff := int(slot.Start - start)
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			best, found, bestDiff = slot, true, diff
		}
	}
	return best, found
}

func compareSlots(a, b TimeSlot) int {
	return cmp.Or(
		cmp.Compare(a.Day, b.Day),
		cmp.Compare(a.Start, b.Start),
		cmp.Compare(a.End, b.End),
		cmp.Compare(a.ID, b.ID),
	)
}

// CompareSlots orders slots by day, start, end and id
func CompareSlots(a, b TimeSlot) int {
	return compareSlots(a, b)
}

func parseDays(values []string) ([]Day, error) {
	days := make([]Day, 0, len(values))
	for _, value := range values {
		day, err := ParseDay(value)
		if err != nil {
			return nil, err
		}
		if slices.Contains(days, day) {
			return nil, fmt.Errorf("day %v listed twice", day)
		}
		days = append(days, day)
	}
	slices.Sort(days)
	return days, nil
}
