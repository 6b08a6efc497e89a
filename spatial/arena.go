// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package spatial

// Handle is a stable reference into an Arena: a dense slot index plus
// a generation counter, so a removed-then-reused slot never aliases a
// stale handle (spec §9 "Cyclic / shared ownership": "Tracks reference
// entities in the spatial index by stable handle (generational index),
// not by owning pointer ... Removing a track invalidates the handle
// safely via the generation counter").
type Handle struct {
	Index      uint32
	Generation uint32
}

type arenaSlot[T any] struct {
	value      T
	generation uint32
	occupied   bool
}

// Arena is a dense-indexed, generation-guarded object pool (spec §4.3
// "Storage": "arena-style, stable integer indices with generation
// counters"). Insert/Remove/Get are all O(1).
type Arena[T any] struct {
	slots []arenaSlot[T]
	free  []uint32
}

// NewArena returns an empty Arena.
func NewArena[T any]() *Arena[T] {
	return &Arena[T]{}
}

// Insert stores value and returns a stable Handle for it.
func (a *Arena[T]) Insert(value T) Handle {
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		slot := &a.slots[idx]
		slot.value = value
		slot.occupied = true
		return Handle{Index: idx, Generation: slot.generation}
	}

	idx := uint32(len(a.slots))
	a.slots = append(a.slots, arenaSlot[T]{value: value, occupied: true})
	return Handle{Index: idx, Generation: 0}
}

// Get returns the value at h, or false if h is stale or unoccupied.
func (a *Arena[T]) Get(h Handle) (T, bool) {
	var zero T
	if int(h.Index) >= len(a.slots) {
		return zero, false
	}
	slot := &a.slots[h.Index]
	if !slot.occupied || slot.generation != h.Generation {
		return zero, false
	}
	return slot.value, true
}

// Set overwrites the value at h in place, without changing its
// generation. Returns false if h is stale.
func (a *Arena[T]) Set(h Handle, value T) bool {
	if int(h.Index) >= len(a.slots) {
		return false
	}
	slot := &a.slots[h.Index]
	if !slot.occupied || slot.generation != h.Generation {
		return false
	}
	slot.value = value
	return true
}

// Remove frees the slot at h and bumps its generation, invalidating
// every outstanding handle to it. Returns false if h was already
// stale.
func (a *Arena[T]) Remove(h Handle) bool {
	if int(h.Index) >= len(a.slots) {
		return false
	}
	slot := &a.slots[h.Index]
	if !slot.occupied || slot.generation != h.Generation {
		return false
	}
	var zero T
	slot.value = zero
	slot.occupied = false
	slot.generation++
	a.free = append(a.free, h.Index)
	return true
}

// Len returns the number of currently occupied slots.
func (a *Arena[T]) Len() int {
	return len(a.slots) - len(a.free)
}
