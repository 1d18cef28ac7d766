package service

import (
	"slices"
	"sync"

	"github.com/helixml/artsearch/domain/artwork"
)

// Accumulator collects embedded records from concurrent workers.
// Records come back in source order regardless of completion order.
type Accumulator struct {
	mu    sync.Mutex
	items []positioned
}

type positioned struct {
	pos    int
	record artwork.EmbeddedRecord
}

// NewAccumulator creates an Accumulator sized for n records.
func NewAccumulator(n int) *Accumulator {
	return &Accumulator{items: make([]positioned, 0, n)}
}

// Add stores the record embedded from the source record at pos.
func (a *Accumulator) Add(pos int, record artwork.EmbeddedRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items = append(a.items, positioned{pos: pos, record: record})
}

// Len returns the number of records collected so far.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.items)
}

// Records returns the collected records ordered by source position.
func (a *Accumulator) Records() []artwork.EmbeddedRecord {
	a.mu.Lock()
	items := slices.Clone(a.items)
	a.mu.Unlock()

	slices.SortFunc(items, func(x, y positioned) int { return x.pos - y.pos })

	out := make([]artwork.EmbeddedRecord, len(items))
	for i, it := range items {
		out[i] = it.record
	}
	return out
}

// Chunk splits items into consecutive slices of at most size elements.
// The last chunk holds the remainder.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) == 0 {
		return nil
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
