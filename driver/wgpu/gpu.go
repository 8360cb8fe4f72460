// Copyright 2022 Gustavo C. Viegas. All rights reserved.

//go:build !(js && wasm)

package wgpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gviegas/gfxcore/driver"
)

// Descriptor sizes reported in driver.Limits.
// hal has no descriptor tables of its own, so these
// match the record sizes of the tables kept by the
// renderer.
const (
	rtvStride     = 32
	dsvStride     = 32
	srvStride     = 64
	samplerStride = 32
	maxDescs      = 1 << 16
)

// GPU implements driver.GPU.
type GPU struct {
	drv    *Driver
	dev    hal.Device
	hq     hal.Queue
	q      *Queue
	limits driver.Limits
}

func newGPU(d *Driver, od hal.OpenDevice, ad *hal.ExposedAdapter) *GPU {
	l := &ad.Capabilities.Limits
	return &GPU{
		drv: d,
		dev: od.Device,
		hq:  od.Queue,
		limits: driver.Limits{
			MaxDescriptors: maxDescs,
			DescStride:     [4]int64{rtvStride, dsvStride, srvStride, samplerStride},
			MaxBindGroups:  int(l.MaxBindGroups),
			MaxTextures:    int(l.MaxSampledTexturesPerShaderStage),
			MaxSamplers:    int(l.MaxSamplersPerShaderStage),
			MaxConstant:    int(l.MaxUniformBuffersPerShaderStage),
			ConstantAlign:  int64(max(l.MinUniformBufferOffsetAlignment, 1)),
			MaxTexture2D:   int(l.MaxTextureDimension2D),
			MaxLayers:      int(l.MaxTextureArrayLayers),
		},
	}
}

// Driver returns the Driver that owns the GPU.
func (g *GPU) Driver() driver.Driver { return g.drv }

// NewQueue returns the submission queue.
func (g *GPU) NewQueue() (driver.Queue, error) {
	if g.q != nil {
		return nil, driver.ErrQueueTaken
	}
	g.q = &Queue{gpu: g}
	return g.q, nil
}

// NewFence creates a new fence.
func (g *GPU) NewFence() (driver.Fence, error) {
	return &Fence{gpu: g}, nil
}

// NewCmdList creates a new command list.
func (g *GPU) NewCmdList() (driver.CmdList, error) {
	enc, err := g.dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "cmdlist"})
	if err != nil {
		return nil, convErr(err)
	}
	return &CmdList{gpu: g, enc: enc}, nil
}

// NewBuffer creates a new buffer.
func (g *GPU) NewBuffer(size int64, visible bool, usg gputypes.BufferUsage) (driver.Buffer, error) {
	if size <= 0 {
		return nil, errors.New("wgpu: buffer size must be positive")
	}
	if visible {
		usg |= gputypes.BufferUsageMapWrite
	}
	hb, err := g.dev.CreateBuffer(&hal.BufferDescriptor{
		Size:  uint64(size),
		Usage: usg,
	})
	if err != nil {
		return nil, convErr(err)
	}
	return &Buffer{gpu: g, hb: hb, size: size, visible: visible}, nil
}

// NewTexture creates a new texture.
func (g *GPU) NewTexture(param *driver.TexParam) (driver.Texture, error) {
	p := *param
	switch {
	case p.Size.Width <= 0 || p.Size.Height <= 0:
		return nil, errors.New("wgpu: texture size must be positive")
	case p.Size.Width > g.limits.MaxTexture2D || p.Size.Height > g.limits.MaxTexture2D:
		return nil, fmt.Errorf("wgpu: texture size exceeds %d", g.limits.MaxTexture2D)
	}
	p.Layers = max(p.Layers, 1)
	p.Levels = max(p.Levels, 1)
	p.Samples = max(p.Samples, 1)
	ht, err := g.dev.CreateTexture(&hal.TextureDescriptor{
		Size: hal.Extent3D{
			Width:              uint32(p.Size.Width),
			Height:             uint32(p.Size.Height),
			DepthOrArrayLayers: uint32(p.Layers),
		},
		MipLevelCount: uint32(p.Levels),
		SampleCount:   uint32(p.Samples),
		Dimension:     gputypes.TextureDimension2D,
		Format:        p.Format,
		Usage:         p.Usage,
	})
	if err != nil {
		return nil, convErr(err)
	}
	return &Texture{gpu: g, ht: ht, param: p, owned: true}, nil
}

// NewSampler creates a new sampler.
func (g *GPU) NewSampler(spln *driver.Sampling) (driver.Sampler, error) {
	desc := hal.SamplerDescriptor{
		AddressModeU: spln.AddrU,
		AddressModeV: spln.AddrV,
		AddressModeW: spln.AddrW,
		MagFilter:    spln.Mag,
		MinFilter:    spln.Min,
		MipmapFilter: spln.Mipmap,
		LodMinClamp:  spln.MinLOD,
		LodMaxClamp:  spln.MaxLOD,
		Compare:      spln.Cmp,
		Anisotropy:   uint16(max(spln.MaxAniso, 1)),
	}
	hs, err := g.dev.CreateSampler(&desc)
	if err != nil {
		return nil, convErr(err)
	}
	return &Sampler{gpu: g, hs: hs}, nil
}

// NewShaderCode creates a new shader code.
func (g *GPU) NewShaderCode(spirv []byte) (driver.ShaderCode, error) {
	if len(spirv) == 0 || len(spirv)%4 != 0 {
		return nil, errors.New("wgpu: malformed SPIR-V binary")
	}
	words := make([]uint32, len(spirv)/4)
	for i := range words {
		j := i * 4
		words[i] = uint32(spirv[j]) | uint32(spirv[j+1])<<8 | uint32(spirv[j+2])<<16 | uint32(spirv[j+3])<<24
	}
	sm, err := g.dev.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Source: hal.ShaderSource{SPIRV: words},
	})
	if err != nil {
		return nil, convErr(err)
	}
	return &ShaderCode{gpu: g, sm: sm}, nil
}

// NewBindLayout creates a new binding layout.
func (g *GPU) NewBindLayout(entries []driver.BindEntry) (driver.BindLayout, error) {
	ents := make([]gputypes.BindGroupLayoutEntry, len(entries))
	for i, e := range entries {
		ents[i] = gputypes.BindGroupLayoutEntry{
			Binding:    uint32(e.Nr),
			Visibility: convStages(e.Stages),
		}
		switch e.Type {
		case driver.DConstant:
			ents[i].Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}
		case driver.DTexture:
			ents[i].Texture = &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			}
		case driver.DSampler:
			ents[i].Sampler = &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering}
		case driver.DCmpSampler:
			ents[i].Sampler = &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeComparison}
		default:
			return nil, fmt.Errorf("wgpu: undefined descriptor type %d", e.Type)
		}
	}
	bl, err := g.dev.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{Entries: ents})
	if err != nil {
		return nil, convErr(err)
	}
	return &BindLayout{gpu: g, bl: bl, entries: append([]driver.BindEntry(nil), entries...)}, nil
}

// NewBindGroup creates a new binding group.
func (g *GPU) NewBindGroup(layout driver.BindLayout, res []driver.BindRes) (driver.BindGroup, error) {
	l := layout.(*BindLayout)
	ents := make([]gputypes.BindGroupEntry, 0, len(res))
	for _, r := range res {
		e, err := l.entry(r.Nr)
		if err != nil {
			return nil, err
		}
		var br gputypes.BindingResource
		switch e.Type {
		case driver.DConstant:
			if r.Buf == nil {
				return nil, fmt.Errorf("wgpu: missing buffer for binding %d", r.Nr)
			}
			br = gputypes.BufferBinding{
				Buffer: r.Buf.(*Buffer).hb.NativeHandle(),
				Offset: uint64(r.Off),
				Size:   uint64(r.Size),
			}
		case driver.DTexture:
			if r.View == nil {
				return nil, fmt.Errorf("wgpu: missing view for binding %d", r.Nr)
			}
			br = gputypes.TextureViewBinding{TextureView: r.View.(*TextureView).hv.NativeHandle()}
		default:
			if r.Splr == nil {
				return nil, fmt.Errorf("wgpu: missing sampler for binding %d", r.Nr)
			}
			br = gputypes.SamplerBinding{Sampler: r.Splr.(*Sampler).hs.NativeHandle()}
		}
		ents = append(ents, gputypes.BindGroupEntry{Binding: uint32(r.Nr), Resource: br})
	}
	bg, err := g.dev.CreateBindGroup(&hal.BindGroupDescriptor{Layout: l.bl, Entries: ents})
	if err != nil {
		return nil, convErr(err)
	}
	return &BindGroup{gpu: g, bg: bg}, nil
}

// NewPipeLayout creates a new pipeline layout.
func (g *GPU) NewPipeLayout(sets []driver.BindLayout) (driver.PipeLayout, error) {
	if len(sets) > g.limits.MaxBindGroups {
		return nil, fmt.Errorf("wgpu: too many binding layouts (%d > %d)", len(sets), g.limits.MaxBindGroups)
	}
	bls := make([]hal.BindGroupLayout, len(sets))
	for i := range sets {
		bls[i] = sets[i].(*BindLayout).bl
	}
	pl, err := g.dev.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{BindGroupLayouts: bls})
	if err != nil {
		return nil, convErr(err)
	}
	return &PipeLayout{gpu: g, pl: pl}, nil
}

// NewPipeline creates a new graphics pipeline.
func (g *GPU) NewPipeline(state *driver.GraphState) (driver.Pipeline, error) {
	if state.VertFunc.Code == nil {
		return nil, errors.New("wgpu: missing vertex function")
	}
	desc := hal.RenderPipelineDescriptor{
		Vertex: hal.VertexState{
			Module:     state.VertFunc.Code.(*ShaderCode).sm,
			EntryPoint: state.VertFunc.Name,
			Buffers:    state.Input,
		},
		Primitive: gputypes.PrimitiveState{
			Topology: state.Topology,
			CullMode: state.Cull,
		},
		Multisample: gputypes.DefaultMultisampleState(),
	}
	if state.Layout != nil {
		desc.Layout = state.Layout.(*PipeLayout).pl
	}
	if state.Clockwise {
		desc.Primitive.FrontFace = gputypes.FrontFaceCW
	}
	if state.Samples > 1 {
		desc.Multisample.Count = uint32(state.Samples)
	}
	if state.DSFmt != gputypes.TextureFormatUndefined {
		cmp := state.DepthCmp
		if !state.DepthTest {
			cmp = gputypes.CompareFunctionAlways
		}
		desc.DepthStencil = &hal.DepthStencilState{
			Format:            state.DSFmt,
			DepthWriteEnabled: state.DepthWrite,
			DepthCompare:      cmp,
			StencilReadMask:   0xff,
			StencilWriteMask:  0xff,
		}
	}
	if state.FragFunc.Code != nil {
		tgts := make([]gputypes.ColorTargetState, len(state.ColorFmt))
		for i, f := range state.ColorFmt {
			tgts[i] = gputypes.ColorTargetState{Format: f, WriteMask: gputypes.ColorWriteMaskAll}
			if i < len(state.Blend) {
				tgts[i].Blend = state.Blend[i]
			}
		}
		desc.Fragment = &hal.FragmentState{
			Module:     state.FragFunc.Code.(*ShaderCode).sm,
			EntryPoint: state.FragFunc.Name,
			Targets:    tgts,
		}
	}
	rp, err := g.dev.CreateRenderPipeline(&desc)
	if err != nil {
		return nil, convErr(err)
	}
	return &Pipeline{gpu: g, rp: rp}, nil
}

// WaitIdle blocks until all submitted work completes.
func (g *GPU) WaitIdle() error { return convErr(g.dev.WaitIdle()) }

// Limits returns the implementation limits.
func (g *GPU) Limits() driver.Limits { return g.limits }

// convErr maps hal errors to driver errors.
func convErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, hal.ErrDeviceOutOfMemory):
		return errors.Join(driver.ErrNoDeviceMemory, err)
	case errors.Is(err, hal.ErrDeviceLost):
		return errors.Join(driver.ErrFatal, err)
	case errors.Is(err, hal.ErrSurfaceLost), errors.Is(err, hal.ErrSurfaceOutdated):
		return errors.Join(driver.ErrSwapchain, err)
	}
	return err
}

// convStages converts a driver.Stage mask.
func convStages(s driver.Stage) gputypes.ShaderStages {
	var ss gputypes.ShaderStages
	if s&driver.SVertex != 0 {
		ss |= gputypes.ShaderStageVertex
	}
	if s&driver.SFragment != 0 {
		ss |= gputypes.ShaderStageFragment
	}
	return ss
}
