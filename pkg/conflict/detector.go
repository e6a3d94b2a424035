package conflict

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/limaJavier/scheduler/pkg/catalog"
	"github.com/limaJavier/scheduler/pkg/model"
	"github.com/limaJavier/scheduler/pkg/schedule"
	"github.com/samber/lo"
)

type Config struct {
	EarlyBefore      catalog.Clock // Sessions starting before are early
	LateAfter        catalog.Clock // Sessions ending after are late
	ClusterSize      int           // Early or late sessions per group and week before it is a cluster
	MaxDailyPerGroup int
	HeavyDay         int // Sessions per day before a faculty day is heavy
}

func DefaultConfig() Config {
	return Config{
		EarlyBefore:      8*60 + 30,
		LateAfter:        17*60 + 30,
		ClusterSize:      3,
		MaxDailyPerGroup: 4,
		HeavyDay:         4,
	}
}

// Detector inspects published states. It never changes them
type Detector struct {
	catalog *catalog.Catalog
	config  Config
}

func NewDetector(cat *catalog.Catalog, config Config) *Detector {
	return &Detector{catalog: cat, config: config}
}

func (detector *Detector) Inspect(state *schedule.State) Report {
	report := Report{
		Session:       state.Session().String(),
		LedgerVersion: state.LedgerVersion(),
		Violations:    make([]Violation, 0),
		Concerns:      make([]Concern, 0),
	}
	if state.Entities() == nil {
		return report
	}

	evaluator := model.NewPredicateEvaluator(detector.catalog, state.Entities())
	assignments := state.Assignments()

	report.Violations = append(report.Violations, detector.ruleViolations(evaluator, assignments)...)
	report.Violations = append(report.Violations, detector.clashViolations(evaluator, state.Entities(), assignments)...)
	report.Concerns = append(report.Concerns, detector.groupConcerns(state)...)
	report.Concerns = append(report.Concerns, detector.facultyConcerns(state)...)
	return report
}

// ruleViolations covers the rules a forced assignment breaks on its own
func (detector *Detector) ruleViolations(evaluator model.PredicateEvaluator, assignments []model.Assignment) []Violation {
	violations := make([]Violation, 0)
	for _, assignment := range assignments {
		if !assignment.Forced {
			continue
		}
		for _, rule := range evaluator.Violations(assignment) {
			violations = append(violations, Violation{
				Rule:     rule,
				Severity: SeverityError,
				Pins:     []uint64{assignment.Pin},
				Keys:     []model.Key{assignment.Key},
				Slots:    assignment.SlotIDs(),
				Rooms:    nonEmpty(assignment.Room),
				Faculty:  nonEmpty(assignment.Faculty),
				Message:  fmt.Sprintf("%v (pin #%d) breaks %v: %v", assignment.Key, assignment.Pin, rule, assignment),
			})
		}
	}
	return violations
}

// clashViolations covers double bookings involving at least one forced assignment
func (detector *Detector) clashViolations(evaluator model.PredicateEvaluator, entities *model.Entities, assignments []model.Assignment) []Violation {
	violations := make([]Violation, 0)
	for i, a := range assignments {
		for j, b := range assignments {
			if i == j || !a.Forced || (b.Forced && j < i) {
				continue
			}
			for _, rule := range evaluator.Clashes(a, b) {
				violation := Violation{
					Rule:     rule,
					Severity: SeverityError,
					Pins:     lo.Uniq(lo.Filter([]uint64{a.Pin, b.Pin}, func(seq uint64, _ int) bool { return seq > 0 })),
					Keys:     []model.Key{a.Key, b.Key},
					Slots:    sharedSlots(a, b),
				}
				switch rule {
				case model.RuleRoomDoubleBooking:
					violation.Rooms = []string{a.Room}
				case model.RuleFacultyDoubleBooking:
					violation.Faculty = []string{a.Faculty}
				case model.RuleGroupDoubleBooking:
					violation.Groups = lo.Intersect(entities.GroupsOf(a.Key.Course), entities.GroupsOf(b.Key.Course))
				}
				violation.Message = fmt.Sprintf("%v (pin #%d) and %v share %v at %v: %v",
					a.Key, a.Pin, b.Key, shared(violation), strings.Join(violation.Slots, ", "), rule)
				violations = append(violations, violation)
			}
		}
	}
	slices.SortStableFunc(violations, func(x, y Violation) int {
		return cmp.Or(cmp.Compare(lo.Min(x.Pins), lo.Min(y.Pins)), model.CompareKeys(x.Keys[1], y.Keys[1]))
	})
	return violations
}

func (detector *Detector) groupConcerns(state *schedule.State) []Concern {
	concerns := make([]Concern, 0)
	for _, group := range state.Entities().Groups() {
		assignments := state.ForGroup(group.ID)
		if len(assignments) == 0 {
			continue
		}

		perDay := sessionsPerDay(assignments)
		if heavy := heavyDays(perDay, detector.config.MaxDailyPerGroup); len(heavy) > 0 {
			concerns = append(concerns, Concern{
				Kind:     UnevenDays,
				Severity: SeverityWarning,
				Subject:  group.ID,
				Days:     heavy,
				Keys:     keysOf(assignments),
				Message:  fmt.Sprintf("group %v has more than %d sessions on %v", group.ID, detector.config.MaxDailyPerGroup, strings.Join(heavy, ", ")),
			})
		}

		early := detector.matching(assignments, func(slot catalog.TimeSlot) bool { return slot.Start < detector.config.EarlyBefore })
		if len(early) >= detector.config.ClusterSize {
			concerns = append(concerns, detector.cluster(EarlyCluster, group.ID, early, "before "+detector.config.EarlyBefore.String()))
		}
		late := detector.matching(assignments, func(slot catalog.TimeSlot) bool { return slot.End > detector.config.LateAfter })
		if len(late) >= detector.config.ClusterSize {
			concerns = append(concerns, detector.cluster(LateCluster, group.ID, late, "after "+detector.config.LateAfter.String()))
		}
	}
	return concerns
}

func (detector *Detector) facultyConcerns(state *schedule.State) []Concern {
	concerns := make([]Concern, 0)
	for _, member := range state.Entities().Faculty() {
		assignments := state.ForFaculty(member.ID)
		if len(assignments) == 0 {
			continue
		}

		perDay := sessionsPerDay(assignments)
		if heavy := heavyDays(perDay, detector.config.HeavyDay); len(heavy) > 0 {
			concerns = append(concerns, Concern{
				Kind:     FacultyHeavyDay,
				Severity: SeverityWarning,
				Subject:  member.ID,
				Days:     heavy,
				Keys:     keysOf(assignments),
				Message:  fmt.Sprintf("faculty %v teaches more than %d sessions on %v", member.ID, detector.config.HeavyDay, strings.Join(heavy, ", ")),
			})
		}

		if member.MaxDays > 0 && len(perDay) > member.MaxDays {
			days := lo.Map(sortedDays(perDay), func(day catalog.Day, _ int) string { return day.String() })
			concerns = append(concerns, Concern{
				Kind:     FacultyMaxDays,
				Severity: SeverityWarning,
				Subject:  member.ID,
				Days:     days,
				Keys:     keysOf(assignments),
				Message:  fmt.Sprintf("faculty %v teaches on %d days, above their limit of %d", member.ID, len(perDay), member.MaxDays),
			})
		}
	}
	return concerns
}

func (detector *Detector) matching(assignments []model.Assignment, predicate func(catalog.TimeSlot) bool) []model.Assignment {
	result := make([]model.Assignment, 0)
	for _, assignment := range assignments {
		for _, slot := range assignment.Slots {
			if predicate(slot) {
				// One entry per matching session
				result = append(result, model.Assignment{Key: assignment.Key, Slots: []catalog.TimeSlot{slot}})
			}
		}
	}
	return result
}

func (detector *Detector) cluster(kind ConcernKind, group string, sessions []model.Assignment, when string) Concern {
	days := make(map[catalog.Day]int)
	for _, session := range sessions {
		days[session.Slots[0].Day]++
	}
	return Concern{
		Kind:     kind,
		Severity: SeverityInfo,
		Subject:  group,
		Days:     lo.Map(sortedDays(days), func(day catalog.Day, _ int) string { return day.String() }),
		Keys:     keysOf(sessions),
		Message:  fmt.Sprintf("group %v has %d sessions %v", group, len(sessions), when),
	}
}

func sessionsPerDay(assignments []model.Assignment) map[catalog.Day]int {
	perDay := make(map[catalog.Day]int)
	for _, assignment := range assignments {
		for _, slot := range assignment.Slots {
			perDay[slot.Day]++
		}
	}
	return perDay
}

func heavyDays(perDay map[catalog.Day]int, limit int) []string {
	if limit <= 0 {
		return nil
	}
	return lo.FilterMap(sortedDays(perDay), func(day catalog.Day, _ int) (string, bool) {
		return day.String(), perDay[day] > limit
	})
}

func sortedDays(days map[catalog.Day]int) []catalog.Day {
	keys := lo.Keys(days)
	slices.Sort(keys)
	return keys
}

func keysOf(assignments []model.Assignment) []model.Key {
	keys := lo.Uniq(lo.Map(assignments, func(assignment model.Assignment, _ int) model.Key { return assignment.Key }))
	slices.SortFunc(keys, model.CompareKeys)
	return keys
}

func sharedSlots(a, b model.Assignment) []string {
	return lo.FilterMap(a.Slots, func(slot catalog.TimeSlot, _ int) (string, bool) {
		return slot.ID, lo.SomeBy(b.Slots, slot.Overlaps)
	})
}

func shared(violation Violation) string {
	switch {
	case len(violation.Rooms) > 0:
		return "room " + violation.Rooms[0]
	case len(violation.Faculty) > 0:
		return "faculty " + violation.Faculty[0]
	case len(violation.Groups) > 0:
		return "group(s) " + strings.Join(violation.Groups, ", ")
	}
	return "students of " + violation.Keys[0].Course
}

func nonEmpty(value string) []string {
	if value == "" {
		return nil
	}
	return []string{value}
}
