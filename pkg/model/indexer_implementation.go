package model

import (
	"fmt"
	"log"
	"sort"
)

type indexerImplementation struct {
	offsets     []int64 // First candidate variable per instance, plus the end sentinel
	activations int64
	pins        map[int]int64
	usages      map[[2]int]int64
	counters    map[string]int64
	variables   uint64
}

func (indexer *indexerImplementation) Index(instance, candidate int) int64 {
	return indexer.offsets[instance] + int64(candidate)
}

func (indexer *indexerImplementation) Attributes(variable int64) (instance int, candidate int, ok bool) {
	if variable < 1 || variable >= indexer.offsets[len(indexer.offsets)-1] {
		return 0, 0, false
	}
	// First instance whose range ends after the variable
	instance = sort.Search(len(indexer.offsets)-1, func(i int) bool { return indexer.offsets[i+1] > variable })
	return instance, int(variable - indexer.offsets[instance]), true
}

func (indexer *indexerImplementation) Activation(instance int) int64 {
	return indexer.activations + int64(instance)
}

func (indexer *indexerImplementation) PinActivation(instance int) int64 {
	return indexer.pins[instance]
}

func (indexer *indexerImplementation) Usage(bucket, instance int) int64 {
	return indexer.usages[[2]int{bucket, instance}]
}

func (indexer *indexerImplementation) Counter(group string) func(position int) int64 {
	first, ok := indexer.counters[group]
	if !ok {
		log.Panicf("unknown at-most-one group %q", group)
	}
	return func(position int) int64 { return first + int64(position) }
}

func (indexer *indexerImplementation) Variables() uint64 {
	return indexer.variables
}

func uniquenessGroup(instance int) string {
	return fmt.Sprintf("instance/%d", instance)
}

func bucketGroup(bucket int) string {
	return fmt.Sprintf("bucket/%d", bucket)
}
