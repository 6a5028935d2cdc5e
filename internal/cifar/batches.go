package cifar

import (
	"math/rand"
)

// Iterator yields consecutive mini-batches of examples.
type Iterator struct {
	examples  []Example
	order     []int
	batchSize int
	dropLast  bool
	pos       int
}

// Batches returns an iterator over examples in batches of batchSize. When rng
// is non-nil the order is shuffled with it. With dropLast an incomplete final
// batch is skipped.
func Batches(examples []Example, batchSize int, rng *rand.Rand, dropLast bool) *Iterator {
	if batchSize <= 0 {
		panic("cifar: batch size must be positive")
	}
	it := &Iterator{
		examples:  examples,
		order:     make([]int, len(examples)),
		batchSize: batchSize,
		dropLast:  dropLast,
	}
	it.Reset(rng)
	return it
}

// Reset rewinds the iterator, reshuffling when rng is non-nil.
func (it *Iterator) Reset(rng *rand.Rand) {
	for i := range it.order {
		it.order[i] = i
	}
	if rng != nil {
		rng.Shuffle(len(it.order), func(i, j int) {
			it.order[i], it.order[j] = it.order[j], it.order[i]
		})
	}
	it.pos = 0
}

// Next returns the next batch, or false when the epoch is exhausted.
func (it *Iterator) Next() ([]Example, bool) {
	remaining := len(it.order) - it.pos
	if remaining <= 0 || (it.dropLast && remaining < it.batchSize) {
		return nil, false
	}
	n := min(it.batchSize, remaining)
	batch := make([]Example, n)
	for i := range batch {
		batch[i] = it.examples[it.order[it.pos+i]]
	}
	it.pos += n
	return batch, true
}

// Len returns the number of batches per epoch.
func (it *Iterator) Len() int {
	if it.dropLast {
		return len(it.order) / it.batchSize
	}
	return (len(it.order) + it.batchSize - 1) / it.batchSize
}
