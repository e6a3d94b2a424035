package model

// indexer interface is designed to give a unique variable to every literal of the encoding and vice versa
type indexer interface {
	// Returns the variable standing for the instance taking its candidate
	Index(instance, candidate int) int64
	// Returns the instance and candidate behind a candidate variable
	Attributes(variable int64) (instance int, candidate int, ok bool)
	// Returns the variable that, when assumed, requires the instance to be scheduled
	Activation(instance int) int64
	// Returns the variable that, when assumed, enforces the instance's pin. Zero when the instance is not pinned
	PinActivation(instance int) int64
	// Returns the variable set whenever the instance uses the bucket's resource at the bucket's slot. Zero when untracked
	Usage(bucket, instance int) int64
	// Returns the auxiliary variables of an at-most-one group
	Counter(group string) func(position int) int64
	// Total number of variables
	Variables() uint64
}

func newIndexer(candidates []int, pinned []bool, buckets []bucket) indexer {
	indexer := &indexerImplementation{
		offsets:  make([]int64, len(candidates)+1),
		pins:     make(map[int]int64),
		usages:   make(map[[2]int]int64),
		counters: make(map[string]int64),
	}

	next := int64(1)
	for i, count := range candidates {
		indexer.offsets[i] = next
		next += int64(count)
	}
	indexer.offsets[len(candidates)] = next

	indexer.activations = next
	next += int64(len(candidates))

	for i, isPinned := range pinned {
		if isPinned {
			indexer.pins[i] = next
			next++
		}
	}

	for b, bucket := range buckets {
		for _, instance := range bucket.instances {
			indexer.usages[[2]int{b, instance}] = next
			next++
		}
	}

	// Sequential-counter auxiliaries: n-1 per group of n literals
	for i, count := range candidates {
		if count > 1 {
			indexer.counters[uniquenessGroup(i)] = next
			next += int64(count - 1)
		}
	}
	for b, bucket := range buckets {
		indexer.counters[bucketGroup(b)] = next
		next += int64(len(bucket.instances) - 1)
	}

	indexer.variables = uint64(next - 1)
	return indexer
}
