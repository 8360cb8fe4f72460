// Copyright 2022 Gustavo C. Viegas. All rights reserved.

//go:build !(js && wasm)

package wgpu

import (
	"errors"
	"sync"

	"github.com/gogpu/wgpu/hal"

	"github.com/gviegas/gfxcore/driver"
)

// Queue implements driver.Queue.
// hal tracks completion through submission indices,
// so fences are signaled by binding a fence value to
// the index of the last submission.
type Queue struct {
	gpu  *GPU
	last uint64
}

// Submit submits a batch of closed command lists.
func (q *Queue) Submit(cl []driver.CmdList) error {
	if len(cl) == 0 {
		return nil
	}
	cbs := make([]hal.CommandBuffer, len(cl))
	for i, c := range cl {
		c := c.(*CmdList)
		if c.cb == nil {
			return errors.New("wgpu: submitting command list that is not closed")
		}
		cbs[i] = c.cb
	}
	idx, err := q.gpu.hq.Submit(cbs)
	if err != nil {
		return convErr(err)
	}
	q.last = idx
	for _, c := range cl {
		c := c.(*CmdList)
		c.pend = append(c.pend, pending{c.enc, c.cb, idx})
		c.enc, c.cb = nil, nil
	}
	return nil
}

// Signal binds value to the completion of every list
// submitted so far.
func (q *Queue) Signal(f driver.Fence, value uint64) error {
	fc := f.(*Fence)
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if fc.gpu == nil {
		return errors.New("wgpu: signaling destroyed fence")
	}
	if value <= fc.signaled {
		return errors.New("wgpu: fence value must increase")
	}
	fc.signaled = value
	fc.marks = append(fc.marks, mark{value, q.last})
	return nil
}

// Destroy releases the queue.
// The GPU can then hand it out again.
func (q *Queue) Destroy() {
	if q == nil || q.gpu == nil {
		return
	}
	if q.gpu.q == q {
		q.gpu.q = nil
	}
	*q = Queue{}
}

// mark binds a fence value to a submission index.
type mark struct {
	value uint64
	index uint64
}

// Fence implements driver.Fence.
// It has no native counterpart: its values complete
// with the submissions they were bound to.
type Fence struct {
	gpu       *GPU
	mu        sync.Mutex
	signaled  uint64
	completed uint64
	marks     []mark
}

// Completed returns the last value that the GPU has
// reached.
func (f *Fence) Completed() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.poll()
}

// poll advances the completed value.
// f.mu must be held.
func (f *Fence) poll() uint64 {
	if len(f.marks) == 0 {
		return f.completed
	}
	done := f.gpu.hq.PollCompleted()
	n := 0
	for _, m := range f.marks {
		if m.index > done {
			break
		}
		f.completed = m.value
		n++
	}
	f.marks = f.marks[n:]
	return f.completed
}

// Notify sends the outcome of waiting for value to ch.
func (f *Fence) Notify(value uint64, ch chan<- error) {
	f.mu.Lock()
	if f.poll() >= value {
		f.mu.Unlock()
		ch <- nil
		return
	}
	if value > f.signaled {
		f.mu.Unlock()
		ch <- errors.New("wgpu: waiting for a fence value that was never signaled")
		return
	}
	g := f.gpu
	f.mu.Unlock()
	if g == nil {
		ch <- errors.New("wgpu: waiting on destroyed fence")
		return
	}
	go func() {
		if err := g.dev.WaitIdle(); err != nil {
			ch <- convErr(err)
			return
		}
		if f.Completed() < value {
			ch <- driver.ErrFatal
			return
		}
		ch <- nil
	}()
}

// Destroy destroys the fence.
func (f *Fence) Destroy() {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gpu = nil
	f.marks = nil
}
