package model

import "github.com/samber/lo"

type constraintState struct {
	model   *ConstraintModel
	indexer indexer
	buckets []bucket
}

// bucket gathers the instances that may use one resource at one slot
type bucket struct {
	rule      Rule
	resource  string
	slot      string
	instances []int
}

// Every activated instance takes at least one candidate
func completenessConstraints(state constraintState) [][]int64 {
	clauses := make([][]int64, 0, len(state.model.instances))
	for i, instance := range state.model.instances {
		clause := make([]int64, 0, len(instance.Candidates)+1)
		clause = append(clause, -state.indexer.Activation(i))
		for c := range instance.Candidates {
			clause = append(clause, state.indexer.Index(i, c))
		}
		clauses = append(clauses, clause)
	}
	return clauses
}

// Every instance takes at most one candidate
func uniquenessConstraints(state constraintState) [][]int64 {
	clauses := make([][]int64, 0)
	for i, instance := range state.model.instances {
		if len(instance.Candidates) < 2 {
			continue
		}
		literals := lo.Times(len(instance.Candidates), func(c int) int64 { return state.indexer.Index(i, c) })
		clauses = append(clauses, atMostOne(literals, state.indexer.Counter(uniquenessGroup(i)))...)
	}
	return clauses
}

// A candidate marks the resources it uses at each of its slots
func usageConstraints(state constraintState) [][]int64 {
	lookup := make(map[[3]string]int, len(state.buckets))
	for b, bucket := range state.buckets {
		lookup[[3]string{string(bucket.rule), bucket.resource, bucket.slot}] = b
	}
	usage := func(rule Rule, resource, slot string, instance int) int64 {
		b, ok := lookup[[3]string{string(rule), resource, slot}]
		if !ok {
			return 0
		}
		return state.indexer.Usage(b, instance)
	}

	clauses := make([][]int64, 0)
	for i, instance := range state.model.instances {
		for c, candidate := range instance.Candidates {
			variable := state.indexer.Index(i, c)
			for _, slot := range instance.Options[candidate.Option].Slots {
				resources := [][2]string{{string(RuleRoomDoubleBooking), candidate.Room}, {string(RuleFacultyDoubleBooking), candidate.Faculty}}
				for _, cohort := range instance.cohorts() {
					resources = append(resources, [2]string{string(RuleGroupDoubleBooking), cohort})
				}
				for _, resource := range resources {
					if used := usage(Rule(resource[0]), resource[1], slot.ID, i); used != 0 {
						clauses = append(clauses, []int64{-variable, used})
					}
				}
			}
		}
	}
	return clauses
}

func roomConstraints(state constraintState) [][]int64 {
	return clashConstraints(state, RuleRoomDoubleBooking)
}

func facultyConstraints(state constraintState) [][]int64 {
	return clashConstraints(state, RuleFacultyDoubleBooking)
}

func groupConstraints(state constraintState) [][]int64 {
	return clashConstraints(state, RuleGroupDoubleBooking)
}

// At most one instance uses a resource at a given slot
func clashConstraints(state constraintState, rule Rule) [][]int64 {
	clauses := make([][]int64, 0)
	for b, bucket := range state.buckets {
		if bucket.rule != rule {
			continue
		}
		literals := lo.Map(bucket.instances, func(instance int, _ int) int64 { return state.indexer.Usage(b, instance) })
		clauses = append(clauses, atMostOne(literals, state.indexer.Counter(bucketGroup(b)))...)
	}
	return clauses
}

// An activated pin restricts its instance to the matching candidates
func pinConstraints(state constraintState) [][]int64 {
	clauses := make([][]int64, 0)
	for i, instance := range state.model.instances {
		if instance.Pin == nil {
			continue
		}
		clause := []int64{-state.indexer.PinActivation(i)}
		for c, candidate := range instance.Candidates {
			if instance.matches(candidate) {
				clause = append(clause, state.indexer.Index(i, c))
			}
		}
		clauses = append(clauses, clause)
	}
	return clauses
}

// atMostOne is the sequential-counter encoding, using n-1 auxiliary variables for n literals
func atMostOne(literals []int64, counter func(position int) int64) [][]int64 {
	n := len(literals)
	if n < 2 {
		return nil
	}
	clauses := make([][]int64, 0, 3*n)
	clauses = append(clauses, []int64{-literals[0], counter(0)})
	for i := 1; i < n-1; i++ {
		clauses = append(clauses,
			[]int64{-literals[i], counter(i)},
			[]int64{-counter(i - 1), counter(i)},
			[]int64{-literals[i], -counter(i - 1)},
		)
	}
	clauses = append(clauses, []int64{-literals[n-1], -counter(n - 2)})
	return clauses
}
