// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package heap implements the descriptor tables used by
// the renderer.
// A heap has a fixed capacity and hands out contiguous
// ranges of slots, each addressed by an opaque handle
// computed as the heap's base handle plus the slot index
// times a per-kind stride. Heaps never grow nor compact.
package heap

import (
	"sync/atomic"

	"github.com/gviegas/gfxcore/driver"
	"github.com/gviegas/gfxcore/status"
)

// Handle is the address of a heap slot.
type Handle uint64

// Base handles are drawn from a single address space so
// that handles of distinct heaps never alias.
var nextBase atomic.Uint64

func init() { nextBase.Store(1 << 16) }

// Heap is a fixed-capacity table of slots holding
// values of type T.
type Heap[T any] struct {
	kind   driver.HeapKind
	base   Handle
	stride int64
	slots  []T
	used   bitset
}

// New creates a new heap of the given kind with n slots.
// The stride and the maximum capacity come from lim.
func New[T any](kind driver.HeapKind, n int, lim *driver.Limits) (*Heap[T], error) {
	const op = "heap.New"
	if kind < driver.HRenderTarget || kind > driver.HSampler {
		return nil, status.New(op, status.InvalidEnum, "heap kind %d", kind)
	}
	if n <= 0 || n > lim.MaxDescriptors {
		return nil, status.New(op, status.InvalidValue, "capacity %d not in [1, %d]", n, lim.MaxDescriptors)
	}
	stride := lim.DescStride[kind]
	if stride <= 0 {
		return nil, status.New(op, status.InvalidValue, "descriptor stride %d", stride)
	}
	span := uint64(n) * uint64(stride)
	base := nextBase.Add(span) - span
	h := &Heap[T]{
		kind:   kind,
		base:   Handle(base),
		stride: stride,
		slots:  make([]T, n),
		used:   newBitset(n),
	}
	driver.Logger().Debug("heap created", "kind", kind, "cap", n, "base", base)
	return h, nil
}

// Kind returns the kind of the heap.
func (h *Heap[T]) Kind() driver.HeapKind { return h.kind }

// Cap returns the number of slots in the heap.
func (h *Heap[T]) Cap() int { return len(h.slots) }

// Len returns the number of slots in use.
func (h *Heap[T]) Len() int { return h.used.n - h.used.rem }

// Alloc reserves n contiguous slots and returns the index
// of the first one.
// It fails with status.OutOfResources when no such range
// exists, in which case nothing is reserved.
func (h *Heap[T]) Alloc(n int) (int, error) {
	if n <= 0 {
		return 0, status.New("heap.Alloc", status.InvalidValue, "range of %d slots", n)
	}
	i, ok := h.used.searchRange(n)
	if !ok {
		return 0, status.New("heap.Alloc", status.OutOfResources, "%d of %d slots in use, %d requested", h.Len(), h.Cap(), n)
	}
	for j := i; j < i+n; j++ {
		h.used.set(j)
	}
	return i, nil
}

// Free releases n slots starting at first and clears
// their values.
// Slots that are not in use are ignored.
func (h *Heap[T]) Free(first, n int) {
	var zero T
	for i := max(first, 0); i < first+n && i < len(h.slots); i++ {
		h.used.unset(i)
		h.slots[i] = zero
	}
}

// InUse reports whether slot i is in use.
func (h *Heap[T]) InUse(i int) bool {
	return i >= 0 && i < len(h.slots) && h.used.isSet(i)
}

// Handle returns the address of slot i.
func (h *Heap[T]) Handle(i int) Handle {
	if i < 0 || i >= len(h.slots) {
		panic("heap.Handle: index out of range")
	}
	return h.base + Handle(int64(i)*h.stride)
}

// Set stores v in slot i.
// The slot must be in use.
func (h *Heap[T]) Set(i int, v T) {
	if !h.InUse(i) {
		panic("heap.Set: slot not in use")
	}
	h.slots[i] = v
}

// Get returns the value stored in slot i.
func (h *Heap[T]) Get(i int) T { return h.slots[i] }
