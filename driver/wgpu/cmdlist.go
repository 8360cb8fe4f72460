// Copyright 2022 Gustavo C. Viegas. All rights reserved.

//go:build !(js && wasm)

package wgpu

import (
	"errors"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gviegas/gfxcore/driver"
)

// pending is a submitted command buffer together with
// the encoder that produced it.
type pending struct {
	enc   hal.CommandEncoder
	cb    hal.CommandBuffer
	index uint64
}

// CmdList implements driver.CmdList.
// hal encoders cannot be reset while their command
// buffers execute, so a list that is reset right after
// submission records into another encoder taken from
// its pool.
type CmdList struct {
	gpu       *GPU
	enc       hal.CommandEncoder
	cb        hal.CommandBuffer
	pass      hal.RenderPassEncoder
	recording bool
	pend      []pending
	pool      []hal.CommandEncoder
}

// Reset opens the list for recording.
func (c *CmdList) Reset() error {
	c.sweep()
	switch {
	case c.recording:
		if c.pass != nil {
			c.pass.End()
			c.pass = nil
		}
		c.enc.DiscardEncoding()
		c.recording = false
	case c.cb != nil:
		c.enc.ResetAll([]hal.CommandBuffer{c.cb})
		c.cb = nil
	}
	if c.enc == nil {
		if n := len(c.pool); n > 0 {
			c.enc = c.pool[n-1]
			c.pool = c.pool[:n-1]
		} else {
			enc, err := c.gpu.dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "cmdlist"})
			if err != nil {
				return convErr(err)
			}
			c.enc = enc
		}
	}
	if err := c.enc.BeginEncoding("cmdlist"); err != nil {
		return convErr(err)
	}
	c.recording = true
	return nil
}

// sweep recycles the encoders whose work has completed.
func (c *CmdList) sweep() {
	if len(c.pend) == 0 {
		return
	}
	done := c.gpu.hq.PollCompleted()
	n := 0
	for _, p := range c.pend {
		if p.index > done {
			break
		}
		p.enc.ResetAll([]hal.CommandBuffer{p.cb})
		c.pool = append(c.pool, p.enc)
		n++
	}
	c.pend = c.pend[n:]
}

// Close ends recording.
func (c *CmdList) Close() error {
	if !c.recording {
		return errors.New("wgpu: closing command list that is not recording")
	}
	if c.pass != nil {
		c.pass.End()
		c.pass = nil
	}
	c.recording = false
	cb, err := c.enc.EndEncoding()
	if err != nil {
		return convErr(err)
	}
	c.cb = cb
	return nil
}

// Transition records resource state transitions.
func (c *CmdList) Transition(t []driver.Transition) {
	var bb []hal.BufferBarrier
	var tb []hal.TextureBarrier
	for _, x := range t {
		// Presentation transitions are done by the
		// hal queue itself.
		if x.LayoutBefore == driver.LPresent || x.LayoutAfter == driver.LPresent {
			continue
		}
		switch {
		case x.Buf != nil:
			bb = append(bb, hal.BufferBarrier{
				Buffer: x.Buf.(*Buffer).hb,
				Usage: hal.BufferUsageTransition{
					OldUsage: bufferUsage(x.LayoutBefore),
					NewUsage: bufferUsage(x.LayoutAfter),
				},
			})
		case x.Tex != nil:
			tex := x.Tex.(*Texture)
			tb = append(tb, hal.TextureBarrier{
				Texture: tex.ht,
				Range:   hal.TextureRange{Aspect: gputypes.TextureAspectAll},
				Usage: hal.TextureUsageTransition{
					OldUsage: textureUsage(x.LayoutBefore),
					NewUsage: textureUsage(x.LayoutAfter),
				},
			})
		}
	}
	if len(bb) > 0 {
		c.enc.TransitionBuffers(bb)
	}
	if len(tb) > 0 {
		c.enc.TransitionTextures(tb)
	}
}

// CopyBuffer copies data between buffers.
func (c *CmdList) CopyBuffer(param *driver.BufferCopy) {
	c.enc.CopyBufferToBuffer(param.From.(*Buffer).hb, param.To.(*Buffer).hb, []hal.BufferCopy{{
		SrcOffset: uint64(param.FromOff),
		DstOffset: uint64(param.ToOff),
		Size:      uint64(param.Size),
	}})
}

// CopyBufToTex copies data from a buffer to a texture.
func (c *CmdList) CopyBufToTex(param *driver.BufTexCopy) {
	tex := param.Tex.(*Texture)
	aspect := gputypes.TextureAspectAll
	if param.DepthCopy {
		aspect = gputypes.TextureAspectDepthOnly
	}
	c.enc.CopyBufferToTexture(param.Buf.(*Buffer).hb, tex.ht, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{
			Offset:       uint64(param.BufOff),
			BytesPerRow:  uint32(param.RowStride),
			RowsPerImage: uint32(param.Size.Height),
		},
		TextureBase: hal.ImageCopyTexture{
			Texture:  tex.ht,
			MipLevel: uint32(param.Level),
			Origin: hal.Origin3D{
				X: uint32(param.Off.X),
				Y: uint32(param.Off.Y),
				Z: uint32(param.Layer),
			},
			Aspect: aspect,
		},
		Size: hal.Extent3D{
			Width:              uint32(param.Size.Width),
			Height:             uint32(param.Size.Height),
			DepthOrArrayLayers: uint32(max(param.Size.Depth, 1)),
		},
	}})
}

// BeginPass begins a render pass.
func (c *CmdList) BeginPass(pass *driver.Pass) {
	desc := hal.RenderPassDescriptor{
		ColorAttachments: make([]hal.RenderPassColorAttachment, len(pass.Color)),
	}
	for i, ct := range pass.Color {
		desc.ColorAttachments[i] = hal.RenderPassColorAttachment{
			View:    ct.View.(*TextureView).hv,
			LoadOp:  loadOp(ct.Load),
			StoreOp: storeOp(ct.Store),
			ClearValue: gputypes.Color{
				R: float64(ct.Clear[0]),
				G: float64(ct.Clear[1]),
				B: float64(ct.Clear[2]),
				A: float64(ct.Clear[3]),
			},
		}
	}
	if ds := pass.DS; ds != nil {
		desc.DepthStencilAttachment = &hal.RenderPassDepthStencilAttachment{
			View:              ds.View.(*TextureView).hv,
			DepthLoadOp:       loadOp(ds.Load[0]),
			DepthStoreOp:      storeOp(ds.Store[0]),
			DepthClearValue:   ds.Depth,
			StencilLoadOp:     loadOp(ds.Load[1]),
			StencilStoreOp:    storeOp(ds.Store[1]),
			StencilClearValue: ds.Stencil,
		}
		if !ds.View.Texture().Param().Format.HasStencil() {
			desc.DepthStencilAttachment.StencilLoadOp = 0
			desc.DepthStencilAttachment.StencilStoreOp = 0
		}
	}
	c.pass = c.enc.BeginRenderPass(&desc)
}

// EndPass ends the current render pass.
func (c *CmdList) EndPass() {
	if c.pass != nil {
		c.pass.End()
		c.pass = nil
	}
}

// SetViewport sets the bounds of the viewport.
func (c *CmdList) SetViewport(vp driver.Viewport) {
	c.pass.SetViewport(vp.X, vp.Y, vp.Width, vp.Height, vp.Znear, vp.Zfar)
}

// SetScissor sets the scissor rectangle.
func (c *CmdList) SetScissor(sciss driver.Scissor) {
	c.pass.SetScissorRect(uint32(sciss.X), uint32(sciss.Y), uint32(sciss.Width), uint32(sciss.Height))
}

// SetPipeline sets the graphics pipeline.
func (c *CmdList) SetPipeline(pl driver.Pipeline) {
	c.pass.SetPipeline(pl.(*Pipeline).rp)
}

// SetBindGroup sets the binding group at index.
func (c *CmdList) SetBindGroup(index int, bg driver.BindGroup) {
	c.pass.SetBindGroup(uint32(index), bg.(*BindGroup).bg, nil)
}

// SetVertexBuf sets one or more vertex buffers.
func (c *CmdList) SetVertexBuf(start int, buf []driver.Buffer, off []int64) {
	for i := range buf {
		c.pass.SetVertexBuffer(uint32(start+i), buf[i].(*Buffer).hb, uint64(off[i]))
	}
}

// SetIndexBuf sets the index buffer.
func (c *CmdList) SetIndexBuf(format gputypes.IndexFormat, buf driver.Buffer, off int64) {
	c.pass.SetIndexBuffer(buf.(*Buffer).hb, format, uint64(off))
}

// Draw draws primitives.
func (c *CmdList) Draw(vertCount, instCount, baseVert, baseInst int) {
	c.pass.Draw(uint32(vertCount), uint32(instCount), uint32(baseVert), uint32(baseInst))
}

// DrawIndexed draws indexed primitives.
func (c *CmdList) DrawIndexed(idxCount, instCount, baseIdx, vertOff, baseInst int) {
	c.pass.DrawIndexed(uint32(idxCount), uint32(instCount), uint32(baseIdx), int32(vertOff), uint32(baseInst))
}

// Destroy destroys the command list.
// It blocks until submitted work completes.
func (c *CmdList) Destroy() {
	if c == nil || c.gpu == nil {
		return
	}
	if c.recording {
		if c.pass != nil {
			c.pass.End()
		}
		c.enc.DiscardEncoding()
	}
	if len(c.pend) > 0 {
		if err := c.gpu.dev.WaitIdle(); err != nil {
			driver.Logger().Warn("wgpu: wait on command list destruction", "err", err)
		}
		c.sweep()
	}
	for _, p := range c.pend {
		p.enc.Destroy()
	}
	for _, enc := range c.pool {
		enc.Destroy()
	}
	if c.enc != nil {
		if c.cb != nil {
			c.enc.ResetAll([]hal.CommandBuffer{c.cb})
		}
		c.enc.Destroy()
	}
	*c = CmdList{}
}

// textureUsage converts a driver.Layout to the texture
// usage that hal barriers expect.
func textureUsage(l driver.Layout) gputypes.TextureUsage {
	switch l {
	case driver.LColorTarget, driver.LDSTarget:
		return gputypes.TextureUsageRenderAttachment
	case driver.LCopyDst:
		return gputypes.TextureUsageCopyDst
	case driver.LGenericRead, driver.LShaderRead:
		return gputypes.TextureUsageTextureBinding
	}
	return gputypes.TextureUsageNone
}

// bufferUsage converts a driver.Layout to the buffer
// usage that hal barriers expect.
func bufferUsage(l driver.Layout) gputypes.BufferUsage {
	switch l {
	case driver.LCopyDst:
		return gputypes.BufferUsageCopyDst
	case driver.LGenericRead, driver.LShaderRead:
		return gputypes.BufferUsageUniform | gputypes.BufferUsageVertex | gputypes.BufferUsageIndex
	}
	return 0
}

func loadOp(op driver.LoadOp) gputypes.LoadOp {
	if op == driver.LLoad {
		return gputypes.LoadOpLoad
	}
	return gputypes.LoadOpClear
}

func storeOp(op driver.StoreOp) gputypes.StoreOp {
	if op == driver.SStore {
		return gputypes.StoreOpStore
	}
	return gputypes.StoreOpDiscard
}
