// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package render

import (
	"github.com/gogpu/gputypes"

	"github.com/gviegas/gfxcore/driver"
	"github.com/gviegas/gfxcore/param"
	"github.com/gviegas/gfxcore/status"
)

// VertexBuffer is a range of a geometry buffer used
// as a vertex input.
type VertexBuffer struct {
	Buffer *Buffer
	Offset int64
}

// DrawCall describes a draw.
// If Index is set, the draw is indexed and Count is
// the number of indices, otherwise it is the number
// of vertices.
// Params must hold a parameter set for each dynamic
// set of Pipeline.
type DrawCall struct {
	Pipeline *PipelineState
	Params   []*ParameterSet
	Vertex   []VertexBuffer

	Index       *Buffer
	IndexOffset int64
	IndexFormat gputypes.IndexFormat

	Count         int
	Instances     int
	First         int
	BaseVertex    int
	FirstInstance int
}

// Draw records a draw into the current render target.
// A render pass that loads the target's contents is
// begun if none is active.
func (r *Renderer) Draw(d *DrawCall) error {
	const op = "render.Draw"
	ps := d.Pipeline
	switch {
	case ps == nil || ps.r != r || ps.dead:
		return r.fail(status.New(op, status.InvalidObject, "pipeline state"))
	case d.Count <= 0 || d.Instances < 0 || d.First < 0 || d.FirstInstance < 0:
		return r.fail(status.New(op, status.InvalidValue, "count %d, instances %d, first %d", d.Count, d.Instances, d.First))
	}
	sets := make([]*ParameterSet, len(ps.layout.Sets))
	copy(sets, ps.statics)
	for _, p := range d.Params {
		switch {
		case p == nil || p.r != r || p.dead:
			return r.fail(status.New(op, status.InvalidObject, "parameter set"))
		case p.ps != ps:
			return r.fail(status.New(op, status.InvalidObject, "parameter set of another pipeline"))
		case p.static:
			return r.fail(status.New(op, status.InvalidOperation, "set %d is static", p.set))
		case sets[p.set] != nil:
			return r.fail(status.New(op, status.InvalidValue, "set %d given twice", p.set))
		}
		sets[p.set] = p
	}
	for i, p := range sets {
		if p == nil {
			return r.fail(status.New(op, status.InvalidValue, "no parameter set for set %d", i))
		}
	}
	vbufs := make([]driver.Buffer, len(d.Vertex))
	voffs := make([]int64, len(d.Vertex))
	for i, v := range d.Vertex {
		if !r.isGeometry(v.Buffer) {
			return r.fail(status.New(op, status.InvalidObject, "vertex buffer %d", i))
		}
		if v.Offset < 0 || v.Offset >= v.Buffer.size {
			return r.fail(status.New(op, status.InvalidValue, "vertex buffer %d offset %d", i, v.Offset))
		}
		vbufs[i], voffs[i] = v.Buffer.buf, v.Offset
	}
	if d.Index != nil {
		if !r.isGeometry(d.Index) {
			return r.fail(status.New(op, status.InvalidObject, "index buffer"))
		}
		if d.IndexFormat != gputypes.IndexFormatUint16 && d.IndexFormat != gputypes.IndexFormatUint32 {
			return r.fail(status.New(op, status.InvalidEnum, "index format %d", int(d.IndexFormat)))
		}
		if d.IndexOffset < 0 || d.IndexOffset >= d.Index.size {
			return r.fail(status.New(op, status.InvalidValue, "index offset %d", d.IndexOffset))
		}
	}

	cl, err := r.record()
	if err != nil {
		return r.fail(err)
	}
	if !r.pass {
		r.beginPass(cl, 0)
	}
	if r.debug && r.target != nil {
		written := r.target.written()
		for _, p := range sets {
			param.CheckHazards(&p.store, written)
		}
	}
	cl.SetPipeline(ps.pipe)
	for i, p := range sets {
		cl.SetBindGroup(i, p.group)
	}
	if len(vbufs) > 0 {
		cl.SetVertexBuf(0, vbufs, voffs)
	}
	inst := max(d.Instances, 1)
	if d.Index != nil {
		cl.SetIndexBuf(d.IndexFormat, d.Index.buf, d.IndexOffset)
		cl.DrawIndexed(d.Count, inst, d.First, d.BaseVertex, d.FirstInstance)
	} else {
		cl.Draw(d.Count, inst, d.First, d.FirstInstance)
	}
	return nil
}

func (r *Renderer) isGeometry(b *Buffer) bool {
	return b != nil && b.r == r && !b.dead && b.geometry
}
