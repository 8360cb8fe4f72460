// Copyright 2022 Gustavo C. Viegas. All rights reserved.

//go:build !(js && wasm)

package wgpu

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gviegas/gfxcore/driver"
)

// Buffer implements driver.Buffer.
type Buffer struct {
	gpu     *GPU
	hb      hal.Buffer
	size    int64
	visible bool
}

// Visible returns whether the buffer is host visible.
func (b *Buffer) Visible() bool { return b.visible }

// Write copies p into the buffer at offset off.
func (b *Buffer) Write(off int64, p []byte) error {
	if !b.visible {
		return errors.New("wgpu: buffer is not host visible")
	}
	if off < 0 || off+int64(len(p)) > b.size {
		return fmt.Errorf("wgpu: write range [%d, %d) out of bounds", off, off+int64(len(p)))
	}
	if len(p) == 0 {
		return nil
	}
	m, err := b.gpu.dev.MapBuffer(b.hb, uint64(off), uint64(len(p)))
	if err != nil {
		return convErr(err)
	}
	copy(unsafe.Slice((*byte)(m.Ptr), len(p)), p)
	return convErr(b.gpu.dev.UnmapBuffer(b.hb))
}

// Cap returns the capacity of the buffer in bytes.
func (b *Buffer) Cap() int64 { return b.size }

// Destroy destroys the buffer.
func (b *Buffer) Destroy() {
	if b == nil || b.hb == nil {
		return
	}
	b.gpu.dev.DestroyBuffer(b.hb)
	*b = Buffer{}
}

// Texture implements driver.Texture.
// Textures acquired from a surface are not owned and
// thus not destroyed by Destroy.
type Texture struct {
	gpu   *GPU
	ht    hal.Texture
	param driver.TexParam
	owned bool
}

// NewView creates a new view of the texture.
func (t *Texture) NewView(layer, layers, level, levels int) (driver.TextureView, error) {
	if layer < 0 || layers < 1 || layer+layers > t.param.Layers {
		return nil, fmt.Errorf("wgpu: layer range [%d, %d) out of bounds", layer, layer+layers)
	}
	if level < 0 || levels < 1 || level+levels > t.param.Levels {
		return nil, fmt.Errorf("wgpu: level range [%d, %d) out of bounds", level, level+levels)
	}
	hv, err := t.gpu.dev.CreateTextureView(t.ht, &hal.TextureViewDescriptor{
		Format:          t.param.Format,
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          aspectOf(t.param.Format),
		BaseMipLevel:    uint32(level),
		MipLevelCount:   uint32(levels),
		BaseArrayLayer:  uint32(layer),
		ArrayLayerCount: uint32(layers),
	})
	if err != nil {
		return nil, convErr(err)
	}
	return &TextureView{tex: t, hv: hv}, nil
}

// Param returns the parameters used to create the texture.
func (t *Texture) Param() driver.TexParam { return t.param }

// Destroy destroys the texture.
func (t *Texture) Destroy() {
	if t == nil || t.ht == nil {
		return
	}
	if t.owned {
		t.gpu.dev.DestroyTexture(t.ht)
	}
	*t = Texture{}
}

// TextureView implements driver.TextureView.
type TextureView struct {
	tex *Texture
	hv  hal.TextureView
}

// Texture returns the texture that the view refers to.
func (v *TextureView) Texture() driver.Texture { return v.tex }

// Destroy destroys the texture view.
func (v *TextureView) Destroy() {
	if v == nil || v.hv == nil {
		return
	}
	v.tex.gpu.dev.DestroyTextureView(v.hv)
	v.hv = nil
}

// Sampler implements driver.Sampler.
type Sampler struct {
	gpu *GPU
	hs  hal.Sampler
}

// Destroy destroys the sampler.
func (s *Sampler) Destroy() {
	if s == nil || s.hs == nil {
		return
	}
	s.gpu.dev.DestroySampler(s.hs)
	*s = Sampler{}
}

// ShaderCode implements driver.ShaderCode.
type ShaderCode struct {
	gpu *GPU
	sm  hal.ShaderModule
}

// Destroy destroys the shader code.
func (c *ShaderCode) Destroy() {
	if c == nil || c.sm == nil {
		return
	}
	c.gpu.dev.DestroyShaderModule(c.sm)
	*c = ShaderCode{}
}

// BindLayout implements driver.BindLayout.
type BindLayout struct {
	gpu     *GPU
	bl      hal.BindGroupLayout
	entries []driver.BindEntry
}

// entry returns the entry whose binding number is nr.
func (l *BindLayout) entry(nr int) (driver.BindEntry, error) {
	for _, e := range l.entries {
		if e.Nr == nr {
			return e, nil
		}
	}
	return driver.BindEntry{}, fmt.Errorf("wgpu: no binding %d in layout", nr)
}

// Destroy destroys the binding layout.
func (l *BindLayout) Destroy() {
	if l == nil || l.bl == nil {
		return
	}
	l.gpu.dev.DestroyBindGroupLayout(l.bl)
	*l = BindLayout{}
}

// BindGroup implements driver.BindGroup.
type BindGroup struct {
	gpu *GPU
	bg  hal.BindGroup
}

// Destroy destroys the binding group.
func (g *BindGroup) Destroy() {
	if g == nil || g.bg == nil {
		return
	}
	g.gpu.dev.DestroyBindGroup(g.bg)
	*g = BindGroup{}
}

// PipeLayout implements driver.PipeLayout.
type PipeLayout struct {
	gpu *GPU
	pl  hal.PipelineLayout
}

// Destroy destroys the pipeline layout.
func (l *PipeLayout) Destroy() {
	if l == nil || l.pl == nil {
		return
	}
	l.gpu.dev.DestroyPipelineLayout(l.pl)
	*l = PipeLayout{}
}

// Pipeline implements driver.Pipeline.
type Pipeline struct {
	gpu *GPU
	rp  hal.RenderPipeline
}

// Destroy destroys the pipeline.
func (p *Pipeline) Destroy() {
	if p == nil || p.rp == nil {
		return
	}
	p.gpu.dev.DestroyRenderPipeline(p.rp)
	*p = Pipeline{}
}

// aspectOf returns the view aspect of a given format.
func aspectOf(f gputypes.TextureFormat) gputypes.TextureAspect {
	if f.IsDepthStencil() && !f.HasStencil() {
		return gputypes.TextureAspectDepthOnly
	}
	return gputypes.TextureAspectAll
}
