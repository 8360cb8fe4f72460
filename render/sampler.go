// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package render

import (
	"github.com/gogpu/gputypes"

	"github.com/gviegas/gfxcore/driver"
	"github.com/gviegas/gfxcore/internal/heap"
	"github.com/gviegas/gfxcore/status"
)

// SamplerDesc describes a sampler of the global
// sampler table.
// A non-zero Compare makes it a comparison sampler.
// Zero filter and address modes mean nearest and
// clamp to edge.
type SamplerDesc struct {
	Min, Mag, Mip       gputypes.FilterMode
	AddrU, AddrV, AddrW gputypes.AddressMode
	MinLOD, MaxLOD      float32
	LODBias             float32
	MaxAniso            int
	Compare             gputypes.CompareFunction
}

// samplerTable is the global sampler table.
// Parameter sets refer to samplers by index and keep
// a use count for each.
type samplerTable struct {
	heap  *heap.Heap[driver.Sampler]
	descs []SamplerDesc
	uses  []int
}

func (t *samplerTable) Len() int { return len(t.uses) }

func (t *samplerTable) Acquire(i int) { t.uses[i]++ }

func (t *samplerTable) Release(i int) { t.uses[i]-- }

func (t *samplerTable) inUse() bool {
	for _, n := range t.uses {
		if n > 0 {
			return true
		}
	}
	return false
}

func (t *samplerTable) get(i int) driver.Sampler { return t.heap.Get(i) }

func (t *samplerTable) destroy() {
	if t.heap == nil {
		return
	}
	for i := range t.uses {
		if s := t.heap.Get(i); s != nil {
			s.Destroy()
		}
	}
	*t = samplerTable{}
}

// CreateSamplers replaces the global sampler table.
// It fails with status.InvalidOperation if any sampler
// of the current table is bound to a parameter set.
// On failure, the current table is kept.
func (r *Renderer) CreateSamplers(descs []SamplerDesc) error {
	const op = "render.CreateSamplers"
	if r.splr.inUse() {
		return r.fail(status.New(op, status.InvalidOperation, "samplers are in use"))
	}
	if len(descs) == 0 || len(descs) > r.cfg.MaxSamplers {
		return r.fail(status.New(op, status.InvalidValue, "%d samplers (max %d)", len(descs), r.cfg.MaxSamplers))
	}
	descs = append([]SamplerDesc(nil), descs...)
	for i := range descs {
		descs[i].setDefaults()
		if err := validateSampler(&descs[i]); err != nil {
			return r.fail(err)
		}
	}

	h, err := heap.New[driver.Sampler](driver.HSampler, len(descs), &r.limits)
	if err != nil {
		return r.fail(err)
	}
	if _, err := h.Alloc(len(descs)); err != nil {
		return r.fail(err)
	}
	for i := range descs {
		d := &descs[i]
		s, err := r.gpu.NewSampler(&driver.Sampling{
			Min:      d.Min,
			Mag:      d.Mag,
			Mipmap:   d.Mip,
			AddrU:    d.AddrU,
			AddrV:    d.AddrV,
			AddrW:    d.AddrW,
			MaxAniso: max(d.MaxAniso, 1),
			Cmp:      d.Compare,
			MinLOD:   d.MinLOD,
			MaxLOD:   d.MaxLOD,
			LODBias:  d.LODBias,
		})
		if err != nil {
			for j := range i {
				h.Get(j).Destroy()
			}
			return r.fail(status.Wrap(op, status.SubsystemFailed, err))
		}
		h.Set(i, s)
	}

	r.splr.destroy()
	r.splr = samplerTable{
		heap:  h,
		descs: descs,
		uses:  make([]int, len(descs)),
	}
	driver.Logger().Debug("render: sampler table created", "count", len(descs))
	return nil
}

func (d *SamplerDesc) setDefaults() {
	for _, f := range [3]*gputypes.FilterMode{&d.Min, &d.Mag, &d.Mip} {
		if *f == gputypes.FilterModeUndefined {
			*f = gputypes.FilterModeNearest
		}
	}
	for _, a := range [3]*gputypes.AddressMode{&d.AddrU, &d.AddrV, &d.AddrW} {
		if *a == gputypes.AddressModeUndefined {
			*a = gputypes.AddressModeClampToEdge
		}
	}
}

func validateSampler(d *SamplerDesc) error {
	const op = "render.CreateSamplers"
	for _, f := range [3]gputypes.FilterMode{d.Min, d.Mag, d.Mip} {
		if f != gputypes.FilterModeNearest && f != gputypes.FilterModeLinear {
			return status.New(op, status.InvalidEnum, "filter mode %d", int(f))
		}
	}
	for _, a := range [3]gputypes.AddressMode{d.AddrU, d.AddrV, d.AddrW} {
		switch a {
		case gputypes.AddressModeClampToEdge, gputypes.AddressModeRepeat, gputypes.AddressModeMirrorRepeat:
		default:
			return status.New(op, status.InvalidEnum, "address mode %d", int(a))
		}
	}
	if d.Compare > gputypes.CompareFunctionAlways {
		return status.New(op, status.InvalidEnum, "compare function %d", int(d.Compare))
	}
	if d.MinLOD < 0 || d.MaxLOD < d.MinLOD || d.MaxAniso < 0 || d.MaxAniso > 16 {
		return status.New(op, status.InvalidValue, "LOD [%g, %g], anisotropy %d", d.MinLOD, d.MaxLOD, d.MaxAniso)
	}
	return nil
}
