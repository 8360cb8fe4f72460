// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package render

import (
	"github.com/gogpu/gputypes"

	"github.com/gviegas/gfxcore/driver"
	"github.com/gviegas/gfxcore/internal/shared"
	"github.com/gviegas/gfxcore/param"
	"github.com/gviegas/gfxcore/status"
)

// BlockBinding binds a block of a data buffer to a
// uniform block parameter.
// Slot is relative to the parameter set. Block selects
// one of the buffer's blocks and Index an element of
// an array of such blocks laid out back to back.
type BlockBinding struct {
	Slot   int
	Buffer *Buffer
	Block  int
	Index  int
}

// TextureBinding binds a texture and a sampler of the
// global sampler table to a texture parameter.
type TextureBinding struct {
	Slot    int
	Texture *Texture
	Sampler int
}

// Bindings is the list of resources bound to a
// parameter set.
// Constant slots, like the others, are relative to
// the set.
type Bindings struct {
	Blocks    []BlockBinding
	Textures  []TextureBinding
	Constants []param.ConstantBinding
}

// ParameterSet is the set of resources bound to one
// parameter set of a pipeline.
type ParameterSet struct {
	r      *Renderer
	ps     *PipelineState
	set    int
	store  param.Store
	group  driver.BindGroup
	cbuf   driver.Buffer
	static bool
	dead   bool
}

// refTable exposes a shared table to param.Store.
type refTable[T any] struct{ t *shared.Table[T] }

func (r refTable[T]) Valid(ref param.Ref) bool { return r.t.Valid(shared.ID(ref)) }

func (r refTable[T]) Acquire(ref param.Ref) error { return r.t.Acquire(shared.ID(ref)) }

func (r refTable[T]) Release(ref param.Ref) error { return r.t.Release(shared.ID(ref)) }

func (r *Renderer) env() param.Env {
	return param.Env{
		Buffers:  refTable[*Buffer]{r.bufs},
		Textures: refTable[*Texture]{r.texs},
		Samplers: &r.splr,
		Heap:     r.srv,
	}
}

// NewParameterSet binds resources to the dynamic
// parameter set set of ps.
// Bound buffers and textures stay alive until the
// parameter set is destroyed.
func (r *Renderer) NewParameterSet(ps *PipelineState, set int, b *Bindings) (*ParameterSet, error) {
	const op = "render.NewParameterSet"
	switch {
	case ps == nil || ps.r != r || ps.dead:
		return nil, r.fail(status.New(op, status.InvalidObject, "pipeline state"))
	case set < 0 || set >= len(ps.layout.Sets):
		return nil, r.fail(status.New(op, status.InvalidValue, "set %d of %d", set, len(ps.layout.Sets)))
	case ps.layout.Sets[set].Static:
		return nil, r.fail(status.New(op, status.InvalidOperation, "set %d is static", set))
	}
	p, err := r.newParameterSet(ps, set, b)
	if err != nil {
		return nil, r.fail(err)
	}
	r.psets[p] = struct{}{}
	return p, nil
}

func (r *Renderer) newParameterSet(ps *PipelineState, set int, b *Bindings) (p *ParameterSet, err error) {
	const op = "render.NewParameterSet"
	lay := ps.layout
	s := &lay.Sets[set]
	n := s.SlotCount()
	abs := func(slot int) (int, error) {
		if slot < 0 || slot >= n {
			return 0, status.New(op, status.InvalidValue, "slot %d of %d", slot, n)
		}
		return s.First + slot, nil
	}

	blocks := make([]param.BlockBinding, len(b.Blocks))
	for i, x := range b.Blocks {
		if blocks[i].Slot, err = abs(x.Slot); err != nil {
			return
		}
		switch {
		case x.Buffer == nil:
			return nil, status.New(op, status.InvalidValue, "slot %d: missing buffer", x.Slot)
		case x.Buffer.r != r || x.Buffer.dead || x.Buffer.geometry:
			return nil, status.New(op, status.InvalidObject, "slot %d: buffer", x.Slot)
		case x.Block < 0 || x.Block >= len(x.Buffer.blocks):
			return nil, status.New(op, status.InvalidValue, "slot %d: block %d of %d", x.Slot, x.Block, len(x.Buffer.blocks))
		}
		blk := x.Buffer.blocks[x.Block]
		if x.Index < 0 || blk.Offset+blk.Size*int64(x.Index+1) > x.Buffer.size {
			return nil, status.New(op, status.InvalidValue, "slot %d: block index %d out of buffer range", x.Slot, x.Index)
		}
		blocks[i].Buffer = param.Ref(x.Buffer.id)
		blocks[i].Offset = blk.Offset
		blocks[i].Size = blk.Size
		blocks[i].Index = x.Index
	}
	textures := make([]param.TextureBinding, len(b.Textures))
	for i, x := range b.Textures {
		if textures[i].Slot, err = abs(x.Slot); err != nil {
			return
		}
		switch {
		case x.Texture == nil:
			return nil, status.New(op, status.InvalidValue, "slot %d: missing texture", x.Slot)
		case x.Texture.r != r || x.Texture.dead || x.Texture.samples > 1:
			return nil, status.New(op, status.InvalidObject, "slot %d: texture", x.Slot)
		}
		sl := &lay.Slots[textures[i].Slot]
		if sl.Kind == param.Texture && x.Sampler >= 0 && x.Sampler < r.splr.Len() &&
			sl.Compare != (r.splr.descs[x.Sampler].Compare != gputypes.CompareFunctionUndefined) {
			return nil, status.New(op, status.InvalidValue, "slot %d: sampler %d comparison mismatch", x.Slot, x.Sampler)
		}
		textures[i].Texture = param.Ref(x.Texture.id)
		textures[i].Sampler = x.Sampler
	}
	constants := make([]param.ConstantBinding, len(b.Constants))
	for i, x := range b.Constants {
		constants[i] = x
		if constants[i].Slot, err = abs(x.Slot); err != nil {
			return
		}
	}

	q := &ParameterSet{r: r, ps: ps, set: set, static: s.Static}
	if err = q.store.Allocate(r.env(), lay, set, blocks, textures, constants); err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			q.destroy()
		}
	}()
	p = q

	var res []driver.BindRes
	for _, x := range p.store.Blocks {
		buf, _ := r.bufs.Get(shared.ID(x.Buffer))
		br := driver.BindRes{Nr: x.Loc, Buf: buf.buf, Off: x.Offset, Size: x.Size}
		r.srv.Set(x.Desc, br)
		res = append(res, br)
	}
	for _, x := range p.store.Textures {
		tex, _ := r.texs.Get(shared.ID(x.Texture))
		br := driver.BindRes{Nr: x.Loc, View: tex.view}
		r.srv.Set(x.Desc, br)
		res = append(res, br, driver.BindRes{Nr: x.SamplerLoc, Splr: r.splr.get(x.Sampler)})
	}
	if s.ConstLoc != param.Unbound {
		data := packConstants(lay, set, &p.store)
		if p.cbuf, err = r.gpu.NewBuffer(int64(len(data)), true, gputypes.BufferUsageUniform); err != nil {
			return nil, status.Wrap(op, status.SubsystemFailed, err)
		}
		if err = p.cbuf.Write(0, data); err != nil {
			return nil, status.Wrap(op, status.SubsystemFailed, err)
		}
		res = append(res, driver.BindRes{Nr: s.ConstLoc, Buf: p.cbuf, Size: int64(len(data))})
	}
	if p.group, err = r.gpu.NewBindGroup(ps.binds[set], res); err != nil {
		return nil, status.Wrap(op, status.SubsystemFailed, err)
	}
	return p, nil
}

// Constant blocks are sized in multiples of this.
const constAlign = 16

// constOffsets returns the offset of each visible
// constant of set i in the set's constant block, indexed
// by location, and the size of the block.
// Offsets follow the WGSL uniform layout of a struct
// with one member per constant.
func constOffsets(l *param.Layout, i int) (offs []int, size int) {
	// Locations are given in declaration order.
	for _, sl := range l.SetSlots(i) {
		if sl.Kind != param.Constant || sl.Loc == param.Unbound {
			continue
		}
		a := sl.Const.Align()
		size = (size + a - 1) &^ (a - 1)
		offs = append(offs, size)
		size += sl.Const.BlockSize()
	}
	return offs, (size + constAlign - 1) &^ (constAlign - 1)
}

// packConstants lays out the constants of s in the
// order of their locations.
// Constants left unbound are zero.
func packConstants(l *param.Layout, i int, s *param.Store) []byte {
	offs, size := constOffsets(l, i)
	data := make([]byte, max(size, constAlign))
	for j, c := range s.Constants {
		c.Type.Place(data[offs[c.Loc]:], s.Constant(j))
	}
	return data
}

// Pipeline returns the pipeline state p was created
// for, and the index of its set.
func (p *ParameterSet) Pipeline() (*PipelineState, int) { return p.ps, p.set }

// Destroy destroys the parameter set and releases the
// resources bound to it.
// Static parameter sets are owned by their pipeline
// state and cannot be destroyed directly.
func (p *ParameterSet) Destroy() {
	if p == nil || p.dead || p.static {
		return
	}
	p.destroy()
	delete(p.r.psets, p)
}

func (p *ParameterSet) destroy() {
	if p.dead {
		return
	}
	p.dead = true
	if err := p.store.Release(); err != nil {
		driver.Logger().Warn("render: parameter set release", "err", err)
	}
	if p.group != nil {
		p.group.Destroy()
		p.group = nil
	}
	if p.cbuf != nil {
		p.cbuf.Destroy()
		p.cbuf = nil
	}
}
