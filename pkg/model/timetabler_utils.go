package model

import (
	"fmt"
	"slices"
	"strings"

	"github.com/limaJavier/scheduler/pkg/catalog"
	"github.com/limaJavier/scheduler/pkg/sat"
	"github.com/onsi/gomega/matchers/support/goraph/bipartitegraph"
	"github.com/onsi/gomega/matchers/support/goraph/edge"
	"github.com/onsi/gomega/matchers/support/goraph/node"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

func verify(model *ConstraintModel, assignments []Assignment) bool {
	evaluator := model.evaluator

	//** Every forced fact is kept as pinned
	for _, fact := range model.facts {
		if !lo.ContainsBy(assignments, func(assignment Assignment) bool { return assignment.Equal(fact) }) {
			return false
		}
	}

	//** Every instance is assigned exactly once, satisfies every rule and honours its pin
	assigned := make(map[Key]bool)
	free := make([]Assignment, 0, len(assignments))
	for _, assignment := range assignments {
		if assignment.Forced {
			continue
		}
		instance, ok := model.Instance(assignment.Key)
		if !ok || assigned[assignment.Key] {
			return false
		}
		assigned[assignment.Key] = true

		// Check that:
		// - The slots form one of the instance's options (catalog membership, component type and pattern)
		// - Room and faculty are eligible and available
		// - The pin, if any, is honoured
		if !lo.SomeBy(instance.Options, func(option Option) bool { return option.Same(assignment.Slots) }) ||
			len(evaluator.Violations(assignment)) > 0 ||
			(instance.Pin != nil && !instance.Pin.Matches(assignment.Key, assignment.Slots, assignment.Room, assignment.Faculty)) {
			return false
		}
		free = append(free, assignment)
	}
	if len(assigned) != len(model.instances) {
		return false
	}

	//** No room, faculty or group double booking among non-forced assignments
	for i := range free {
		for j := i + 1; j < len(free); j++ {
			if len(evaluator.Clashes(free[i], free[j])) > 0 {
				return false
			}
		}
	}
	return true
}

func buildSat(variables uint64, constraints []func(state constraintState) [][]int64, state constraintState, parallelism int) (sat.SAT, error) {
	satInstance := sat.SAT{
		Variables: variables,
		Clauses:   [][]int64{},
	}

	// Execute constraints functions on different goroutines to improve performance. Results are stored per
	// generator so that the clause order does not depend on scheduling
	results := make([][][]int64, len(constraints))
	var group errgroup.Group
	group.SetLimit(max(parallelism, 1))
	for i, constraint := range constraints {
		group.Go(func() error {
			results[i] = constraint(state)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return sat.SAT{}, err
	}

	for _, clauses := range results {
		for _, clause := range clauses {
			for _, literal := range clause {
				if literal == 0 || uint64(max(literal, -literal)) > variables {
					return sat.SAT{}, fmt.Errorf("literal %d out of range [1, %d]", literal, variables)
				}
			}
		}
		satInstance.Clauses = append(satInstance.Clauses, clauses...)
	}
	return satInstance, nil
}

// hallCheck matches the sessions of every group to distinct slots. A group whose sessions cannot all be matched
// is infeasible whatever the rooms and faculty. The core holds the instances whose sessions compete for too few slots
func hallCheck(model *ConstraintModel) *ConflictCore {
	for _, group := range model.entities.Groups() {
		members := lo.Filter(lo.Range(len(model.instances)), func(i int, _ int) bool {
			return slices.Contains(model.instances[i].Groups, group.ID)
		})
		if len(members) == 0 {
			continue
		}

		sessions := make([]any, 0)
		reachable := make(map[int]map[string]bool)
		right := make([]any, 0)
		seen := make(map[string]bool)
		for _, i := range members {
			instance := model.instances[i]
			reachable[i] = make(map[string]bool)
			for _, candidate := range instance.Candidates {
				if !instance.matches(candidate) {
					continue
				}
				for _, slot := range instance.Options[candidate.Option].Slots {
					reachable[i][slot.ID] = true
					if !seen[slot.ID] {
						seen[slot.ID] = true
						right = append(right, slot.ID)
					}
				}
			}
			for session := range instance.Sessions {
				sessions = append(sessions, [2]int{i, session})
			}
		}

		neighbours := func(sessionAny any, slotAny any) (bool, error) {
			session, slot := sessionAny.([2]int), slotAny.(string)
			return reachable[session[0]][slot], nil
		}
		graph, err := bipartitegraph.NewBipartiteGraph(sessions, right, neighbours)
		if err != nil {
			continue
		}

		// Check the matching is a maximum one
		matching := graph.LargestMatching()
		if len(matching) == len(sessions) {
			continue
		}

		violator := hallViolator(graph, matching)
		indices := lo.Uniq(lo.Map(violator, func(id int, _ int) int { return graph.Left[id].Value.([2]int)[0] }))
		slices.Sort(indices)
		keys := lo.Map(indices, func(i int, _ int) Key { return model.instances[i].Key })
		pins := lo.FilterMap(indices, func(i int, _ int) (Pin, bool) {
			if pin := model.instances[i].Pin; pin != nil {
				return *pin, true
			}
			return Pin{}, false
		})
		return &ConflictCore{
			Keys:   keys,
			Pins:   pins,
			Rules:  []Rule{RuleGroupDoubleBooking},
			Reason: fmt.Sprintf("group %v needs %d sessions for %v but they reach only %d distinct slots", group.ID, len(violator), strings.Join(lo.Map(keys, func(key Key, _ int) string { return key.String() }), ", "), len(violator)-1),
		}
	}
	return nil
}

// hallViolator follows alternating paths from one unmatched left node of a maximum matching. The left nodes reached
// have exactly one neighbour fewer than their count, so they cannot all be matched
func hallViolator(graph *bipartitegraph.BipartiteGraph, matching edge.EdgeSet) []int {
	isLeft := make(map[int]bool, len(graph.Left))
	for _, node := range graph.Left {
		isLeft[node.ID] = true
	}
	matchedLeft := make(map[int]int) // Right node -> left node
	for _, matched := range matching {
		left, right := matched.Node1, matched.Node2
		if !isLeft[left] {
			left, right = right, left
		}
		matchedLeft[right] = left
	}
	adjacent := make(map[int][]int)
	for _, link := range graph.Edges {
		left, right := link.Node1, link.Node2
		if !isLeft[left] {
			left, right = right, left
		}
		adjacent[left] = append(adjacent[left], right)
	}

	free, ok := lo.Find(graph.Left, func(candidate node.Node) bool { return matching.Free(candidate) })
	if !ok {
		return nil
	}
	visited := map[int]bool{free.ID: true}
	queue := []int{free.ID}
	reached := make(map[int]bool)
	for len(queue) > 0 {
		left := queue[0]
		queue = queue[1:]
		for _, right := range adjacent[left] {
			if reached[right] {
				continue
			}
			reached[right] = true
			if next, ok := matchedLeft[right]; ok && !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}

	violator := lo.Keys(visited)
	slices.Sort(violator)
	return violator
}

// describeCore maps activation literals back to instances and pins and names the rules linking them
func describeCore(model *ConstraintModel, literals []int64) *ConflictCore {
	members := make(map[int]bool)
	pins := make([]Pin, 0)
	for i, instance := range model.instances {
		activation, pinActivation := model.indexer.Activation(i), model.indexer.PinActivation(i)
		if slices.Contains(literals, activation) {
			members[i] = true
		}
		if pinActivation != 0 && slices.Contains(literals, pinActivation) {
			members[i] = true
			pins = append(pins, *instance.Pin)
		}
	}

	indices := lo.Keys(members)
	slices.Sort(indices)

	linked := make(map[Rule]bool)
	for x := range indices {
		for y := x + 1; y < len(indices); y++ {
			for _, rule := range linkingRules(model, model.instances[indices[x]], model.instances[indices[y]]) {
				linked[rule] = true
			}
		}
	}

	core := &ConflictCore{
		Keys:   lo.Map(indices, func(i int, _ int) Key { return model.instances[i].Key }),
		Pins:   pins,
		Rules:  lo.Filter(HardRules, func(rule Rule, _ int) bool { return linked[rule] }),
		Reason: "no schedule satisfies every member at once",
	}
	if len(core.Keys) == 1 {
		core.Reason = "the instance cannot be scheduled under its pin"
	}
	return core
}

// linkingRules names the double-booking rules through which two instances compete
func linkingRules(model *ConstraintModel, a, b Instance) []Rule {
	rules := make([]Rule, 0, 3)
	uses := func(instance Instance, resource func(Candidate) string) map[string]bool {
		result := make(map[string]bool)
		for _, candidate := range instance.Candidates {
			if instance.matches(candidate) {
				result[resource(candidate)] = true
			}
		}
		return result
	}
	intersects := func(x, y map[string]bool) bool {
		return lo.SomeBy(lo.Keys(x), func(value string) bool { return y[value] })
	}
	slotsOf := func(instance Instance) []catalog.TimeSlot {
		return lo.FlatMap(instance.Candidates, func(candidate Candidate, _ int) []catalog.TimeSlot {
			if !instance.matches(candidate) {
				return nil
			}
			return instance.Options[candidate.Option].Slots
		})
	}
	if !overlapping(slotsOf(a), slotsOf(b)) {
		return rules
	}

	room := func(candidate Candidate) string { return candidate.Room }
	faculty := func(candidate Candidate) string { return candidate.Faculty }
	if intersects(uses(a, room), uses(b, room)) {
		rules = append(rules, RuleRoomDoubleBooking)
	}
	if intersects(uses(a, faculty), uses(b, faculty)) {
		rules = append(rules, RuleFacultyDoubleBooking)
	}
	if sharesGroup(model.entities, a.Key, b.Key) {
		rules = append(rules, RuleGroupDoubleBooking)
	}
	return rules
}
