// Copyright 2022 Gustavo C. Viegas. All rights reserved.

//go:build !(js && wasm)

// Package wgpu implements the driver interfaces on top of
// the gogpu/wgpu hardware abstraction layer.
// The native backend (DX12, Vulkan, Metal, GLES or the
// in-memory noop backend) is chosen when the driver is
// opened, among the hal backends that the program links.
package wgpu

import (
	"errors"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gviegas/gfxcore/driver"
)

const driverName = "wgpu"

// Backend preference when no backend is selected.
var preference = []gputypes.Backend{
	gputypes.BackendDX12,
	gputypes.BackendVulkan,
	gputypes.BackendMetal,
	gputypes.BackendGL,
	gputypes.BackendEmpty,
}

// Driver implements driver.Driver and driver.Selector.
type Driver struct {
	backend  gputypes.Backend
	selected bool
	inst     hal.Instance
	adapter  hal.Adapter
	gpu      *GPU
}

func init() {
	driver.Register(&Driver{})
}

// Open initializes the driver.
func (d *Driver) Open() (gpu driver.GPU, err error) {
	if d.gpu != nil {
		return d.gpu, nil
	}
	bk, err := d.pickBackend()
	if err != nil {
		return
	}
	inst, err := bk.CreateInstance(&hal.InstanceDescriptor{})
	if err != nil {
		return nil, errors.Join(driver.ErrNotInstalled, err)
	}
	defer func() {
		if err != nil {
			inst.Destroy()
		}
	}()
	ads := inst.EnumerateAdapters(nil)
	if len(ads) == 0 {
		return nil, driver.ErrNoDevice
	}
	ad := ads[0]
	od, err := ad.Adapter.Open(0, ad.Capabilities.Limits)
	if err != nil {
		return nil, errors.Join(driver.ErrNoDevice, err)
	}
	d.inst = inst
	d.adapter = ad.Adapter
	d.gpu = newGPU(d, od, &ad)
	driver.Logger().Info("wgpu: device opened",
		"backend", bk.Variant().String(),
		"adapter", ad.Info.Name)
	return d.gpu, nil
}

// pickBackend returns the selected backend or the first
// available one in order of preference.
func (d *Driver) pickBackend() (hal.Backend, error) {
	if d.selected {
		if bk, ok := hal.GetBackend(d.backend); ok {
			return bk, nil
		}
		return nil, driver.ErrNotInstalled
	}
	for _, v := range preference {
		if bk, ok := hal.GetBackend(v); ok {
			return bk, nil
		}
	}
	return nil, driver.ErrNotInstalled
}

// Name returns the driver name.
func (d *Driver) Name() string { return driverName }

// Close deinitializes the driver.
func (d *Driver) Close() {
	if d.gpu == nil {
		return
	}
	d.gpu.dev.Destroy()
	d.adapter.Destroy()
	d.inst.Destroy()
	*d = Driver{backend: d.backend, selected: d.selected}
}

// SelectBackend restricts Open to the named backend
// (e.g., "vulkan", "dx12", "noop").
// An empty name restores the default preference order.
// It has no effect on a driver that is already open.
func (d *Driver) SelectBackend(name string) error {
	name = strings.ToLower(name)
	if name == "" {
		d.selected = false
		return nil
	}
	if name == "noop" {
		name = "empty"
	}
	for _, v := range []gputypes.Backend{
		gputypes.BackendEmpty,
		gputypes.BackendVulkan,
		gputypes.BackendMetal,
		gputypes.BackendDX12,
		gputypes.BackendGL,
	} {
		if strings.ToLower(v.String()) == name {
			d.backend = v
			d.selected = true
			return nil
		}
	}
	return driver.ErrNotInstalled
}
