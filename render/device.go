// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package render

import (
	"github.com/gviegas/gfxcore/driver"
	"github.com/gviegas/gfxcore/status"
)

// deviceContext owns the queue and the fence that
// tracks the completion of submitted work.
type deviceContext struct {
	gpu   driver.GPU
	queue driver.Queue
	fence driver.Fence
	// value is the last value signaled on fence.
	value uint64
	// event receives the outcome of fence waits.
	event chan error
}

func (d *deviceContext) init(gpu driver.GPU) error {
	const op = "render.New"
	q, err := gpu.NewQueue()
	if err != nil {
		return status.Wrap(op, status.SubsystemFailed, err)
	}
	f, err := gpu.NewFence()
	if err != nil {
		q.Destroy()
		return status.Wrap(op, status.SubsystemFailed, err)
	}
	*d = deviceContext{
		gpu:   gpu,
		queue: q,
		fence: f,
		event: make(chan error, 1),
	}
	return nil
}

// submit submits closed command lists.
func (d *deviceContext) submit(cls ...*cmdList) error {
	const op = "render.submit"
	dcl := make([]driver.CmdList, len(cls))
	for i, c := range cls {
		if c.open {
			return status.New(op, status.InvalidOperation, "%s command list is still open", c.name)
		}
		dcl[i] = c.cl
	}
	if err := d.queue.Submit(dcl); err != nil {
		return status.Wrap(op, status.SubsystemFailed, err)
	}
	return nil
}

// wait signals the next fence value and blocks until
// the GPU reaches it.
// Every call observes a strictly greater value.
func (d *deviceContext) wait() error {
	const op = "render.wait"
	next := d.value + 1
	if err := d.queue.Signal(d.fence, next); err != nil {
		return status.Wrap(op, status.SubsystemFailed, err)
	}
	d.value = next
	if d.fence.Completed() >= next {
		return nil
	}
	d.fence.Notify(next, d.event)
	if err := <-d.event; err != nil {
		return status.Wrap(op, status.SubsystemFailed, err)
	}
	driver.Logger().Debug("render: fence reached", "value", next)
	return nil
}

// destroy drains outstanding work and then destroys
// the fence and queue.
func (d *deviceContext) destroy() {
	if d.fence == nil {
		return
	}
	if err := d.wait(); err != nil {
		driver.Logger().Warn("render: fence wait failed during teardown", "err", err)
		if err := d.gpu.WaitIdle(); err != nil {
			driver.Logger().Warn("render: WaitIdle failed", "err", err)
		}
	}
	d.fence.Destroy()
	d.queue.Destroy()
	*d = deviceContext{}
}

// cmdList wraps a driver.CmdList with the state needed
// to reject misuse.
// A list is either open, accepting commands, or closed,
// ready for submission.
type cmdList struct {
	cl   driver.CmdList
	name string
	open bool
}

func newCmdList(gpu driver.GPU, name string) (*cmdList, error) {
	cl, err := gpu.NewCmdList()
	if err != nil {
		return nil, status.Wrap("render.New", status.SubsystemFailed, err)
	}
	return &cmdList{cl: cl, name: name}, nil
}

// reset opens the list, discarding anything recorded
// since the last reset.
func (c *cmdList) reset() error {
	if err := c.cl.Reset(); err != nil {
		return status.Wrap("render.reset", status.SubsystemFailed, err)
	}
	c.open = true
	return nil
}

// close ends recording.
func (c *cmdList) close() error {
	if !c.open {
		return status.New("render.close", status.InvalidOperation, "%s command list is not open", c.name)
	}
	c.open = false
	if err := c.cl.Close(); err != nil {
		return status.Wrap("render.close", status.SubsystemFailed, err)
	}
	return nil
}

// rec returns c.cl if c is open.
func (c *cmdList) rec(op string) (driver.CmdList, error) {
	if !c.open {
		return nil, status.New(op, status.InvalidOperation, "%s command list is not open", c.name)
	}
	return c.cl, nil
}

func (c *cmdList) destroy() {
	if c == nil || c.cl == nil {
		return
	}
	c.cl.Destroy()
	c.cl = nil
	c.open = false
}

// teardown is a stack of release functions.
// Creation sequences push the release of each resource
// as soon as it exists and run the stack if a later
// step fails.
type teardown []func()

func (t *teardown) push(f func()) { *t = append(*t, f) }

// run calls every function in reverse order of push
// and empties the stack.
func (t *teardown) run() {
	for i := len(*t) - 1; i >= 0; i-- {
		(*t)[i]()
	}
	*t = nil
}
