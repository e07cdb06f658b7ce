// Package flowtable implements the fixed-capacity, no-eviction flow hash
// table that backs each GK instance's per-shard flow state, the Go
// translation of the original gk_instance's struct rte_hash plus its
// parallel struct flow_entry array: a bounded slot array indexed by a
// Go map for O(1) lookup, with insert failing closed (the packet is
// dropped, nothing is evicted) once the table is full.
package flowtable

import (
	"errors"

	"gatekeeper/core/flow"
)

// ErrFull is returned by Insert when the table has no free slots. The
// caller must drop the packet that would have created the entry, exactly
// as the source does on a failed rte_hash_add_key.
var ErrFull = errors.New("flowtable: full")

// ErrNotFound is returned by Lookup and Delete when no entry exists for a
// given key.
var ErrNotFound = errors.New("flowtable: not found")

// Table is a fixed-capacity map from flow.Key to an entry of type E. It
// never evicts: once full, inserts fail until an existing entry is
// deleted. E is expected to be a pointer type so that Lookup callers can
// mutate state in place.
type Table[E any] struct {
	slots    []E
	index    map[flow.Key]uint32
	freeList []uint32
}

// New creates a Table with room for exactly capacity entries.
func New[E any](capacity int) *Table[E] {
	t := &Table[E]{
		slots:    make([]E, capacity),
		index:    make(map[flow.Key]uint32, capacity),
		freeList: make([]uint32, capacity),
	}
	for i := 0; i < capacity; i++ {
		t.freeList[i] = uint32(capacity - 1 - i)
	}
	return t
}

// Len returns the number of occupied slots.
func (t *Table[E]) Len() int {
	return len(t.index)
}

// Cap returns the table's fixed capacity.
func (t *Table[E]) Cap() int {
	return len(t.slots)
}

// Lookup returns the entry for k, or ErrNotFound.
func (t *Table[E]) Lookup(k flow.Key) (E, error) {
	var zero E
	idx, ok := t.index[k]
	if !ok {
		return zero, ErrNotFound
	}
	return t.slots[idx], nil
}

// Insert adds a new entry for k. If k is already present, its slot is
// overwritten in place and no new slot is used. Otherwise it returns ErrFull
// if the table has no free slots (callers Lookup first, matching the
// source's add-on-miss-only discipline).
func (t *Table[E]) Insert(k flow.Key, entry E) error {
	if _, exists := t.index[k]; exists {
		t.slots[t.index[k]] = entry
		return nil
	}
	if len(t.freeList) == 0 {
		return ErrFull
	}
	idx := t.freeList[len(t.freeList)-1]
	t.freeList = t.freeList[:len(t.freeList)-1]
	t.slots[idx] = entry
	t.index[k] = idx
	return nil
}

// Delete removes the entry for k, returning its free slot to the pool.
func (t *Table[E]) Delete(k flow.Key) error {
	idx, ok := t.index[k]
	if !ok {
		return ErrNotFound
	}
	var zero E
	t.slots[idx] = zero
	delete(t.index, k)
	t.freeList = append(t.freeList, idx)
	return nil
}

// Range calls fn for every occupied entry, in unspecified order. fn
// returning false stops iteration early, mirroring the source's scan loop
// used for periodic expiry sweeps.
func (t *Table[E]) Range(fn func(k flow.Key, e E) bool) {
	for k, idx := range t.index {
		if !fn(k, t.slots[idx]) {
			return
		}
	}
}
