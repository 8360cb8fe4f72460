// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package render

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"

	"github.com/gviegas/gfxcore/driver"
	"github.com/gviegas/gfxcore/param"
	"github.com/gviegas/gfxcore/status"
)

// Default entry points.
const (
	DefaultVertexEntry   = "vs_main"
	DefaultFragmentEntry = "fs_main"
)

// ParamSetDesc describes a parameter set of a pipeline.
// Static sets are bound once, at pipeline creation,
// from Defaults. Dynamic sets are bound by parameter
// sets created with NewParameterSet.
type ParamSetDesc struct {
	Decls    []param.Decl
	Static   bool
	Defaults Bindings
}

// PipelineDesc describes a pipeline state.
// Shaders are given either as WGSL source, compiled
// at creation, or as SPIR-V.
type PipelineDesc struct {
	Source string
	SPIRV  []byte

	// Entry points. Empty means the defaults.
	VertexEntry   string
	FragmentEntry string

	Input     []gputypes.VertexBufferLayout
	Topology  gputypes.PrimitiveTopology
	Cull      gputypes.CullMode
	Clockwise bool

	DepthTest  bool
	DepthWrite bool
	DepthCmp   gputypes.CompareFunction
	Blend      []*gputypes.BlendState

	// Target whose formats the pipeline renders to.
	// nil means the back buffer.
	Target *Framebuffer

	Sets []ParamSetDesc
}

// PipelineState is a graphics pipeline together with
// the parameter layout of its shaders.
type PipelineState struct {
	r       *Renderer
	layout  *param.Layout
	code    driver.ShaderCode
	binds   []driver.BindLayout
	pl      driver.PipeLayout
	pipe    driver.Pipeline
	statics []*ParameterSet
	td      teardown
	dead    bool
}

// NewPipelineState creates a new pipeline state.
func (r *Renderer) NewPipelineState(desc *PipelineDesc) (*PipelineState, error) {
	ps, err := r.newPipelineState(desc)
	if err != nil {
		return nil, r.fail(err)
	}
	r.pipes[ps] = struct{}{}
	return ps, nil
}

func (r *Renderer) newPipelineState(desc *PipelineDesc) (ps *PipelineState, err error) {
	const op = "render.NewPipelineState"
	switch {
	case (desc.Source == "") == (desc.SPIRV == nil):
		return nil, status.New(op, status.InvalidValue, "exactly one of Source and SPIRV must be set")
	case len(desc.Sets) > r.limits.MaxBindGroups:
		return nil, status.New(op, status.InvalidValue, "%d parameter sets (max %d)", len(desc.Sets), r.limits.MaxBindGroups)
	case desc.Target != nil && (desc.Target.r != r || desc.Target.dead):
		return nil, status.New(op, status.InvalidObject, "target framebuffer")
	}
	sets := make([]param.SetDesc, len(desc.Sets))
	for i, s := range desc.Sets {
		sets[i] = param.SetDesc{Decls: s.Decls, Static: s.Static}
	}
	lay, err := param.Resolve(sets)
	if err != nil {
		return nil, err
	}
	spirv := desc.SPIRV
	if desc.Source != "" {
		if spirv, err = naga.Compile(desc.Source); err != nil {
			return nil, status.Wrap(op, status.InvalidValue, err)
		}
	}

	ps = &PipelineState{r: r, layout: lay}
	td := &ps.td
	defer func() {
		if err != nil {
			td.run()
		}
	}()
	if ps.code, err = r.gpu.NewShaderCode(spirv); err != nil {
		return nil, status.Wrap(op, status.SubsystemFailed, err)
	}
	ps.td.push(ps.code.Destroy)
	for i := range lay.Sets {
		var bl driver.BindLayout
		if bl, err = r.gpu.NewBindLayout(lay.Entries(i)); err != nil {
			return nil, status.Wrap(op, status.SubsystemFailed, err)
		}
		ps.td.push(bl.Destroy)
		ps.binds = append(ps.binds, bl)
	}
	if ps.pl, err = r.gpu.NewPipeLayout(ps.binds); err != nil {
		return nil, status.Wrap(op, status.SubsystemFailed, err)
	}
	ps.td.push(ps.pl.Destroy)

	vert, frag := desc.VertexEntry, desc.FragmentEntry
	if vert == "" {
		vert = DefaultVertexEntry
	}
	if frag == "" {
		frag = DefaultFragmentEntry
	}
	gs := driver.GraphState{
		VertFunc:   driver.ShaderFunc{Code: ps.code, Name: vert},
		FragFunc:   driver.ShaderFunc{Code: ps.code, Name: frag},
		Layout:     ps.pl,
		Input:      desc.Input,
		Topology:   desc.Topology,
		Cull:       desc.Cull,
		Clockwise:  desc.Clockwise,
		DepthTest:  desc.DepthTest,
		DepthWrite: desc.DepthWrite,
		DepthCmp:   desc.DepthCmp,
		Blend:      desc.Blend,
	}
	if desc.Target != nil {
		gs.ColorFmt, gs.DSFmt, gs.Samples = desc.Target.formats()
	} else {
		bb, _ := FormatInfo(r.cfg.BackBufferFormat)
		ds, _ := FormatInfo(r.cfg.DepthFormat)
		gs.ColorFmt = []gputypes.TextureFormat{bb.Native}
		gs.DSFmt = ds.Native
		gs.Samples = 1
	}
	if gs.DepthTest && gs.DepthCmp == gputypes.CompareFunctionUndefined {
		gs.DepthCmp = gputypes.CompareFunctionLess
	}
	if ps.pipe, err = r.gpu.NewPipeline(&gs); err != nil {
		return nil, status.Wrap(op, status.SubsystemFailed, err)
	}
	ps.td.push(ps.pipe.Destroy)

	ps.statics = make([]*ParameterSet, len(lay.Sets))
	for i, s := range desc.Sets {
		if !s.Static {
			continue
		}
		var p *ParameterSet
		if p, err = r.newParameterSet(ps, i, &s.Defaults); err != nil {
			return nil, err
		}
		ps.td.push(p.destroy)
		ps.statics[i] = p
	}
	driver.Logger().Debug("render: pipeline created", "sets", len(lay.Sets), "slots", len(lay.Slots))
	return ps, nil
}

// Layout returns the parameter layout of the pipeline.
func (ps *PipelineState) Layout() *param.Layout { return ps.layout }

// Destroy destroys the pipeline state and every
// parameter set created for it.
func (ps *PipelineState) Destroy() {
	if ps == nil || ps.dead {
		return
	}
	ps.dead = true
	for p := range ps.r.psets {
		if p.ps == ps {
			p.Destroy()
		}
	}
	ps.td.run()
	ps.statics = nil
	delete(ps.r.pipes, ps)
}
