// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package shared implements reference-counted ownership
// of GPU resources.
package shared

import (
	"github.com/gviegas/gfxcore/status"
)

// ID identifies an element of a Table.
// The low 32 bits hold the slot index plus one and the
// high 32 bits hold the slot's generation, so an ID that
// outlives its element never refers to a later one.
// The zero ID is never valid.
type ID uint64

func makeID(idx int, gen uint32) ID { return ID(gen)<<32 | ID(idx+1) }

func (id ID) index() int { return int(uint32(id)) - 1 }

func (id ID) gen() uint32 { return uint32(id >> 32) }

type entry[T any] struct {
	val   T
	count int
	gen   uint32
	live  bool
}

// Table is an arena of shared values.
// Each live element has a use count. When the count
// drops to zero, the element is passed to the table's
// destroy function and its slot is recycled.
type Table[T any] struct {
	elems   []entry[T]
	free    []int
	n       int
	destroy func(T)
}

// New creates a new table.
// destroy may be nil.
func New[T any](destroy func(T)) *Table[T] {
	return &Table[T]{destroy: destroy}
}

// Add inserts v with a use count of one and returns
// its ID.
func (t *Table[T]) Add(v T) ID {
	var i int
	if n := len(t.free); n > 0 {
		i = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		i = len(t.elems)
		t.elems = append(t.elems, entry[T]{})
	}
	e := &t.elems[i]
	e.val = v
	e.count = 1
	e.live = true
	t.n++
	return makeID(i, e.gen)
}

func (t *Table[T]) lookup(id ID) *entry[T] {
	i := id.index()
	if i < 0 || i >= len(t.elems) {
		return nil
	}
	e := &t.elems[i]
	if !e.live || e.gen != id.gen() {
		return nil
	}
	return e
}

// Valid reports whether id refers to a live element.
func (t *Table[T]) Valid(id ID) bool { return t.lookup(id) != nil }

// Get returns the element identified by id.
func (t *Table[T]) Get(id ID) (T, bool) {
	if e := t.lookup(id); e != nil {
		return e.val, true
	}
	var zero T
	return zero, false
}

// Count returns the use count of id.
// It returns zero if id is not valid.
func (t *Table[T]) Count(id ID) int {
	if e := t.lookup(id); e != nil {
		return e.count
	}
	return 0
}

// Acquire increments the use count of id.
func (t *Table[T]) Acquire(id ID) error {
	e := t.lookup(id)
	if e == nil {
		return status.New("shared.Acquire", status.InvalidObject, "stale or unknown id %#x", uint64(id))
	}
	e.count++
	return nil
}

// Release decrements the use count of id, destroying
// the element when the count reaches zero.
func (t *Table[T]) Release(id ID) error {
	e := t.lookup(id)
	if e == nil {
		return status.New("shared.Release", status.InvalidObject, "stale or unknown id %#x", uint64(id))
	}
	if e.count--; e.count > 0 {
		return nil
	}
	v := e.val
	var zero T
	e.val = zero
	e.live = false
	e.gen++
	t.free = append(t.free, id.index())
	t.n--
	if t.destroy != nil {
		t.destroy(v)
	}
	return nil
}

// Len returns the number of live elements.
func (t *Table[T]) Len() int { return t.n }

// Clear destroys every live element regardless of
// its use count.
func (t *Table[T]) Clear() {
	for i := range t.elems {
		e := &t.elems[i]
		if !e.live {
			continue
		}
		v := e.val
		*e = entry[T]{gen: e.gen + 1}
		t.free = append(t.free, i)
		if t.destroy != nil {
			t.destroy(v)
		}
	}
	t.n = 0
}
