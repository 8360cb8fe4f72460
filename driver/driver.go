// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package driver defines a set of interfaces encompassing
// the native GPU functionality required by the renderer.
// It is modeled after explicit APIs that expose a single
// submission queue, fences with monotonic values, command
// lists that are reset and reused, and fixed-size
// descriptor tables.
package driver

import (
	"errors"
	"sync"
)

// Driver loads and unloads a native implementation.
type Driver interface {
	// Open initializes the driver and returns its GPU.
	// Once open, further calls return the same GPU.
	// Open is not safe for concurrent use.
	Open() (GPU, error)

	// Name identifies the driver.
	// Calling it does not open the driver.
	Name() string

	// Close releases the GPU returned by Open.
	// It is a no-op if the driver is not open.
	Close()
}

// Selector is implemented by drivers that can run on
// more than one native backend.
type Selector interface {
	// SelectBackend restricts the next Open call to
	// the named backend.
	SelectBackend(name string) error
}

// Errors that drivers may return.
// Implementations wrap these so that callers can match
// them with errors.Is.
var (
	// ErrNotInstalled means that no native backend usable
	// by the driver is present.
	ErrNotInstalled = errors.New("driver: missing required backend")

	// ErrNoDevice means that no adapter satisfies the
	// driver's requirements.
	ErrNoDevice = errors.New("driver: no suitable device found")

	ErrNoHostMemory   = errors.New("driver: out of host memory")
	ErrNoDeviceMemory = errors.New("driver: out of device memory")

	// ErrQueueTaken means that the GPU's only queue is
	// already in use.
	ErrQueueTaken = errors.New("driver: queue already in use")

	// ErrFatal means that the device was lost.
	// Everything created from the GPU must be destroyed
	// and the driver closed before it can be opened again.
	ErrFatal = errors.New("driver: fatal error")
)

// registry holds drivers in registration order.
type registry struct {
	sync.Mutex
	index map[string]int
	list  []Driver
}

var reg = registry{index: make(map[string]int)}

// Drivers returns a copy of the registered drivers, in
// the order they were first registered.
// Only drivers whose packages were imported (and thus
// whose init functions ran) are present.
func Drivers() []Driver {
	reg.Lock()
	defer reg.Unlock()
	return append([]Driver(nil), reg.list...)
}

// Register makes drv available through Drivers.
// Implementations call it once, from init.
// Registering a name twice replaces the earlier driver
// in place.
func Register(drv Driver) {
	reg.Lock()
	defer reg.Unlock()
	name := drv.Name()
	if i, ok := reg.index[name]; ok {
		reg.list[i] = drv
		Logger().Warn("driver replaced", "name", name)
		return
	}
	reg.index[name] = len(reg.list)
	reg.list = append(reg.list, drv)
	Logger().Info("driver registered", "name", name)
}
