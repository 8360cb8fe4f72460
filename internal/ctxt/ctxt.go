// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package ctxt loads the GPU driver used by the renderer.
package ctxt

import (
	"errors"
	"strings"
	"sync"

	"github.com/gviegas/gfxcore/driver"
)

var errNoDriver = errors.New("ctxt: driver not found")

// Context is an open driver.
type Context struct {
	drv    driver.Driver
	gpu    driver.GPU
	limits driver.Limits
}

// Open counts for driver.Driver.Close.
var (
	mu    sync.Mutex
	opens = make(map[driver.Driver]int)
)

// Open opens the first registered driver whose name
// contains name, ignoring case. An empty name matches
// every driver.
// A non-empty backend is forwarded to drivers that
// implement driver.Selector, and drivers that do not
// implement it are skipped. The error of the last
// candidate is returned if none can be opened.
func Open(name, backend string) (*Context, error) {
	mu.Lock()
	defer mu.Unlock()
	name = strings.ToLower(name)
	err := errNoDriver
	for _, drv := range driver.Drivers() {
		if !strings.Contains(strings.ToLower(drv.Name()), name) {
			continue
		}
		var gpu driver.GPU
		if gpu, err = open(drv, backend); err != nil {
			continue
		}
		opens[drv]++
		driver.Logger().Debug("ctxt: driver opened", "name", drv.Name(), "backend", backend)
		return &Context{drv: drv, gpu: gpu, limits: gpu.Limits()}, nil
	}
	return nil, err
}

// open selects backend (unless drv is already open)
// and opens drv.
func open(drv driver.Driver, backend string) (driver.GPU, error) {
	if backend != "" && opens[drv] == 0 {
		sel, ok := drv.(driver.Selector)
		if !ok {
			return nil, errNoDriver
		}
		if err := sel.SelectBackend(backend); err != nil {
			return nil, err
		}
	}
	return drv.Open()
}

// Close closes the driver once every Context that
// opened it is closed.
// Calling Close more than once has no effect.
func (c *Context) Close() {
	mu.Lock()
	defer mu.Unlock()
	if c.drv == nil {
		return
	}
	if opens[c.drv]--; opens[c.drv] <= 0 {
		delete(opens, c.drv)
		c.drv.Close()
	}
	*c = Context{}
}

// Driver returns the driver.Driver.
func (c *Context) Driver() driver.Driver { return c.drv }

// GPU returns the driver.GPU.
func (c *Context) GPU() driver.GPU { return c.gpu }

// Limits returns the limits queried when the driver
// was opened. Callers must not modify them.
func (c *Context) Limits() *driver.Limits { return &c.limits }
