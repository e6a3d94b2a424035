package model

import (
	"cmp"
	"fmt"
	"runtime"
	"slices"
	"strings"

	"github.com/limaJavier/scheduler/pkg/catalog"
	"github.com/limaJavier/scheduler/pkg/sat"
	"github.com/samber/lo"
)

// Candidate is one eligible (option, room, faculty) tuple of an instance
type Candidate struct {
	Option  int
	Room    string
	Faculty string
}

// Instance is one (course, component) pair left to the solver
type Instance struct {
	Key        Key
	Sessions   int
	Groups     []string
	Options    []Option
	Candidates []Candidate // Ordered by option, room and faculty
	Pin        *Pin        // Non-forced pin, if any
}

func (instance Instance) Assignment(candidate Candidate) Assignment {
	assignment := Assignment{
		Key:     instance.Key,
		Slots:   slices.Clone(instance.Options[candidate.Option].Slots),
		Room:    candidate.Room,
		Faculty: candidate.Faculty,
	}
	if instance.Pin != nil {
		assignment.Pin = instance.Pin.Seq
	}
	return assignment
}

func (instance Instance) matches(candidate Candidate) bool {
	return instance.Pin == nil || instance.Pin.Matches(instance.Key, instance.Options[candidate.Option].Slots, candidate.Room, candidate.Faculty)
}

// cohorts names the student populations attending the instance: its groups and the course itself
func (instance Instance) cohorts() []string {
	cohorts := make([]string, 0, len(instance.Groups)+1)
	cohorts = append(cohorts, "course:"+instance.Key.Course)
	for _, group := range instance.Groups {
		cohorts = append(cohorts, "group:"+group)
	}
	return cohorts
}

// ConstraintModel is the immutable encoding of one entity set, catalog and pin set
type ConstraintModel struct {
	catalog   *catalog.Catalog
	entities  *Entities
	evaluator PredicateEvaluator

	instances []Instance
	index     map[Key]int
	facts     []Assignment // Forced pins, outside of the encoding
	pins      []Pin        // Non-forced pins ordered by sequence

	indexer indexer
	sat     *sat.SAT
}

type buildConfig struct {
	parallelism int
}

type BuildOption func(*buildConfig)

// WithParallelism bounds the number of clause generators running at once
func WithParallelism(parallelism int) BuildOption {
	return func(config *buildConfig) {
		if parallelism > 0 {
			config.parallelism = parallelism
		}
	}
}

// Build derives the variable space and clauses. Pins are applied latest sequence first per instance
func Build(cat *catalog.Catalog, entities *Entities, pins []Pin, opts ...BuildOption) (*ConstraintModel, error) {
	config := buildConfig{parallelism: runtime.NumCPU()}
	for _, opt := range opts {
		opt(&config)
	}

	model := &ConstraintModel{
		catalog:   cat,
		entities:  entities,
		evaluator: NewPredicateEvaluator(cat, entities),
		index:     make(map[Key]int),
	}

	//** Active pins
	active := make(map[Key]Pin)
	for _, pin := range pins {
		if _, ok := entities.Component(pin.Key); !ok {
			return nil, fmt.Errorf("%v targets unknown instance %v", pin, pin.Key)
		}
		if current, ok := active[pin.Key]; !ok || pin.Seq >= current.Seq {
			active[pin.Key] = pin
		}
	}

	//** Forced pins become facts
	for _, key := range entities.Keys() {
		pin, ok := active[key]
		if !ok || !pin.Forced {
			continue
		}
		model.facts = append(model.facts, Assignment{
			Key:     key,
			Slots:   slices.Clone(pin.Slots),
			Room:    pin.Room,
			Faculty: pin.Faculty,
			Forced:  true,
			Pin:     pin.Seq,
		})
	}

	//** Instances and eligible candidates
	for _, key := range entities.Keys() {
		pin, pinned := active[key]
		if pinned && pin.Forced {
			continue
		}
		instance := model.newInstance(key)
		if pinned {
			instance.Pin = &pin
			if !lo.SomeBy(instance.Candidates, instance.matches) {
				return nil, &PinConflictError{Pin: pin, Rule: model.pinRule(instance, pin)}
			}
			model.pins = append(model.pins, pin)
		}
		if len(instance.Candidates) == 0 {
			return nil, &InfeasibleEligibilityError{Key: key, Reason: model.ineligibility(instance)}
		}
		model.index[key] = len(model.instances)
		model.instances = append(model.instances, instance)
	}

	//** Non-forced pins must not contradict each other
	slices.SortFunc(model.pins, func(a, b Pin) int { return cmp.Compare(a.Seq, b.Seq) })
	for j := range model.pins {
		for i := range j {
			if rules := model.evaluator.Clashes(pinAssignment(model.pins[i]), pinAssignment(model.pins[j])); len(rules) > 0 {
				earlier := model.pins[i]
				return nil, &PinConflictError{Pin: model.pins[j], Other: &earlier, Rule: rules[0]}
			}
		}
	}

	//** Variables and clauses
	buckets := model.buckets()
	model.indexer = newIndexer(
		lo.Map(model.instances, func(instance Instance, _ int) int { return len(instance.Candidates) }),
		lo.Map(model.instances, func(instance Instance, _ int) bool { return instance.Pin != nil }),
		buckets,
	)

	constraints := []func(state constraintState) [][]int64{
		completenessConstraints,
		uniquenessConstraints,
		usageConstraints,
		roomConstraints,
		facultyConstraints,
		groupConstraints,
		pinConstraints,
	}
	state := constraintState{
		model:   model,
		indexer: model.indexer,
		buckets: buckets,
	}
	satInstance, err := buildSat(model.indexer.Variables(), constraints, state, config.parallelism)
	if err != nil {
		return nil, err
	}
	model.sat = &satInstance

	return model, nil
}

func (model *ConstraintModel) newInstance(key Key) Instance {
	component, _ := model.entities.Component(key)
	instance := Instance{
		Key:      key,
		Sessions: component.Sessions,
		Groups:   model.entities.GroupsOf(key.Course),
		Options:  Options(model.catalog, key.Component, component.Sessions),
	}

	rooms := lo.FilterMap(model.entities.Rooms(), func(room Room, _ int) (string, bool) {
		return room.ID, model.evaluator.RoomTypeMatches(key, room.ID) && model.evaluator.Fits(key, room.ID)
	})
	teachers := model.entities.TeachersOf(key)

	for o, option := range instance.Options {
		optionRooms := lo.Filter(rooms, func(room string, _ int) bool {
			return lo.EveryBy(option.Slots, func(slot catalog.TimeSlot) bool { return model.evaluator.RoomAvailable(room, slot) })
		})
		optionTeachers := lo.Filter(teachers, func(faculty string, _ int) bool {
			return lo.EveryBy(option.Slots, func(slot catalog.TimeSlot) bool { return model.evaluator.FacultyAvailable(faculty, slot) })
		})
		for _, room := range optionRooms {
			for _, faculty := range optionTeachers {
				instance.Candidates = append(instance.Candidates, Candidate{Option: o, Room: room, Faculty: faculty})
			}
		}
	}
	return instance
}

// ineligibility explains why an instance has no candidate
func (model *ConstraintModel) ineligibility(instance Instance) string {
	key := instance.Key
	if len(instance.Options) == 0 {
		return fmt.Sprintf("no catalog option offers %d session(s) allowing component %v", instance.Sessions, key.Component)
	}
	types := model.entities.RoomTypes(key)
	if !lo.SomeBy(model.entities.Rooms(), func(room Room) bool {
		return model.evaluator.RoomTypeMatches(key, room.ID) && model.evaluator.Fits(key, room.ID)
	}) {
		return fmt.Sprintf("no room of type %v with capacity >= %d", strings.Join(lo.Map(types, func(roomType RoomType, _ int) string { return string(roomType) }), " or "), model.entities.CapacityNeed(key.Course))
	}
	if len(model.entities.TeachersOf(key)) == 0 {
		return "no faculty member may teach it"
	}
	return "no option where an eligible room and faculty member are both available"
}

// pinRule names the first hard rule that keeps a pin from matching any candidate
func (model *ConstraintModel) pinRule(instance Instance, pin Pin) Rule {
	evaluator, key := model.evaluator, instance.Key

	if rules := evaluator.Violations(pinAssignment(pin)); len(rules) > 0 {
		return rules[0]
	}
	if !lo.SomeBy(instance.Options, func(option Option) bool { return option.Same(pin.Slots) }) {
		return RulePattern
	}

	available := func(slots []catalog.TimeSlot, check func(catalog.TimeSlot) bool) bool { return lo.EveryBy(slots, check) }
	if pin.Room == "" {
		fitting := lo.Filter(model.entities.Rooms(), func(room Room, _ int) bool {
			return evaluator.RoomTypeMatches(key, room.ID) && evaluator.Fits(key, room.ID)
		})
		if len(fitting) == 0 {
			return RuleRoomCapacity
		}
		if !lo.SomeBy(fitting, func(room Room) bool {
			return available(pin.Slots, func(slot catalog.TimeSlot) bool { return evaluator.RoomAvailable(room.ID, slot) })
		}) {
			return RuleRoomAvailability
		}
	}
	if pin.Faculty == "" {
		teachers := model.entities.TeachersOf(key)
		if len(teachers) == 0 {
			return RuleFacultyEligibility
		}
		if !lo.SomeBy(teachers, func(faculty string) bool {
			return available(pin.Slots, func(slot catalog.TimeSlot) bool { return evaluator.FacultyAvailable(faculty, slot) })
		}) {
			return RuleFacultyAvailability
		}
	}
	return RuleCompleteness
}

// buckets lists, in a deterministic order, the (resource, slot) pairs that more than one instance may use
func (model *ConstraintModel) buckets() []bucket {
	users := make(map[[3]string][]int)
	add := func(rule Rule, resource, slot string, instance int) {
		key := [3]string{string(rule), resource, slot}
		if current := users[key]; len(current) == 0 || current[len(current)-1] != instance {
			users[key] = append(current, instance)
		}
	}
	for i, instance := range model.instances {
		for _, candidate := range instance.Candidates {
			for _, slot := range instance.Options[candidate.Option].Slots {
				add(RuleRoomDoubleBooking, candidate.Room, slot.ID, i)
				add(RuleFacultyDoubleBooking, candidate.Faculty, slot.ID, i)
				for _, cohort := range instance.cohorts() {
					add(RuleGroupDoubleBooking, cohort, slot.ID, i)
				}
			}
		}
	}

	buckets := make([]bucket, 0, len(users))
	for key, instances := range users {
		if len(instances) > 1 {
			buckets = append(buckets, bucket{rule: Rule(key[0]), resource: key[1], slot: key[2], instances: instances})
		}
	}
	slices.SortFunc(buckets, func(a, b bucket) int {
		return cmp.Or(cmp.Compare(a.rule, b.rule), cmp.Compare(a.resource, b.resource), cmp.Compare(a.slot, b.slot))
	})
	return buckets
}

func pinAssignment(pin Pin) Assignment {
	return Assignment{Key: pin.Key, Slots: pin.Slots, Room: pin.Room, Faculty: pin.Faculty, Forced: pin.Forced, Pin: pin.Seq}
}

func (model *ConstraintModel) Catalog() *catalog.Catalog     { return model.catalog }
func (model *ConstraintModel) Entities() *Entities           { return model.entities }
func (model *ConstraintModel) Evaluator() PredicateEvaluator { return model.evaluator }
func (model *ConstraintModel) Instances() []Instance         { return slices.Clone(model.instances) }
func (model *ConstraintModel) Facts() []Assignment           { return slices.Clone(model.facts) }
func (model *ConstraintModel) Pins() []Pin                   { return slices.Clone(model.pins) }
func (model *ConstraintModel) SAT() *sat.SAT                 { return model.sat }
func (model *ConstraintModel) Variables() uint64             { return model.indexer.Variables() }
func (model *ConstraintModel) Clauses() int                  { return len(model.sat.Clauses) }

func (model *ConstraintModel) Instance(key Key) (Instance, bool) {
	i, ok := model.index[key]
	if !ok {
		return Instance{}, false
	}
	return model.instances[i], true
}

// Assumptions activates every instance and every non-forced pin
func (model *ConstraintModel) Assumptions() []int64 {
	assumptions := make([]int64, 0, len(model.instances)+len(model.pins))
	for i := range model.instances {
		assumptions = append(assumptions, model.indexer.Activation(i))
	}
	for i, instance := range model.instances {
		if instance.Pin != nil {
			assumptions = append(assumptions, model.indexer.PinActivation(i))
		}
	}
	return assumptions
}
