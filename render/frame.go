// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package render

import (
	"github.com/gviegas/gfxcore/driver"
	"github.com/gviegas/gfxcore/status"
)

// ClearFlags is a mask of targets to clear.
type ClearFlags int

// Clear flags.
const (
	ClearColor ClearFlags = 1 << iota
	ClearDepth
	ClearStencil
)

// Viewport is the region of the render target that
// draws map to.
// Znear and Zfar must be in the [0, 1] interval.
type Viewport struct {
	X, Y, Width, Height float32
	Znear, Zfar         float32
}

// SetClearColor sets the color used by Clear.
func (r *Renderer) SetClearColor(c [4]float32) { r.clear = c }

// Clear begins rendering into the current target,
// clearing the targets that flags select.
// The first command recorded after Display, usually
// a Clear, also resizes the back buffers if the window
// size changed.
func (r *Renderer) Clear(flags ClearFlags) error {
	const op = "render.Clear"
	if flags&^(ClearColor|ClearDepth|ClearStencil) != 0 {
		return r.fail(status.New(op, status.InvalidEnum, "clear flags %#x", int(flags)))
	}
	cl, err := r.record()
	if err != nil {
		return r.fail(err)
	}
	r.endPass(cl)
	r.beginPass(cl, flags)
	return nil
}

// Display ends the frame, presents the current back
// buffer and waits for the GPU to finish the frame.
// The primary command list is then reopened for the
// next frame.
func (r *Renderer) Display() error {
	const op = "render.Display"
	cl, err := r.record()
	if err != nil {
		return r.fail(err)
	}
	r.endPass(cl)
	r.unsetTarget(cl)
	cl.Transition([]driver.Transition{{
		Tex:          r.backTexture(),
		LayoutBefore: driver.LColorTarget,
		LayoutAfter:  driver.LPresent,
	}})
	r.bbReady = false
	if err := r.prim.close(); err != nil {
		return r.fail(err)
	}
	if err := r.dev.submit(r.prim); err != nil {
		return r.fail(err)
	}
	if err := r.sc.Present(r.cur); err != nil {
		return r.fail(status.Wrap(op, status.SubsystemFailed, err))
	}
	if r.cur, err = r.sc.Next(); err != nil {
		return r.fail(status.Wrap(op, status.SubsystemFailed, err))
	}
	if err := r.dev.wait(); err != nil {
		return r.fail(err)
	}
	if _, err := r.record(); err != nil {
		return r.fail(err)
	}
	r.frames++
	r.checkSize = true
	return nil
}

// record returns the primary command list, reopening
// it if needed and making sure that the current back
// buffer can be rendered to.
func (r *Renderer) record() (driver.CmdList, error) {
	if r.checkSize {
		r.checkSize = false
		if err := r.resize(); err != nil {
			return nil, err
		}
	}
	if !r.prim.open {
		if err := r.prim.reset(); err != nil {
			return nil, err
		}
		r.pass = false
	}
	cl := r.prim.cl
	if !r.bbReady {
		cl.Transition([]driver.Transition{{
			Tex:          r.backTexture(),
			LayoutBefore: driver.LPresent,
			LayoutAfter:  driver.LColorTarget,
		}})
		r.bbReady = true
	}
	return cl, nil
}

func (r *Renderer) backTexture() driver.Texture { return r.sc.Views()[r.cur].Texture() }

// beginPass begins a render pass on the current target.
// Targets not selected by flags are loaded.
func (r *Renderer) beginPass(cl driver.CmdList, flags ClearFlags) {
	load := func(f ClearFlags) driver.LoadOp {
		if flags&f != 0 {
			return driver.LClear
		}
		return driver.LLoad
	}
	var pass driver.Pass
	if r.target == nil {
		pass.Color = []driver.ColorTarget{{
			View:  r.rtv.Get(r.back + r.cur),
			Load:  load(ClearColor),
			Store: driver.SStore,
			Clear: r.clear,
		}}
		pass.DS = &driver.DSTarget{
			View:  r.dsv.Get(r.depth.slot),
			Load:  [2]driver.LoadOp{load(ClearDepth), load(ClearStencil)},
			Store: [2]driver.StoreOp{driver.SStore, driver.SStore},
			Depth: 1,
		}
	} else {
		pass = r.target.pass(load(ClearColor), [2]driver.LoadOp{load(ClearDepth), load(ClearStencil)}, r.clear)
	}
	cl.BeginPass(&pass)
	cl.SetViewport(r.viewport())
	r.pass = true
}

func (r *Renderer) endPass(cl driver.CmdList) {
	if r.pass {
		cl.EndPass()
		r.pass = false
	}
}

// viewport returns the viewport that was set or,
// if none was, one covering the whole target.
func (r *Renderer) viewport() driver.Viewport {
	if r.vpSet {
		return driver.Viewport(r.vp)
	}
	w, h := r.width, r.height
	if r.target != nil {
		w, h = r.target.width, r.target.height
	}
	return driver.Viewport{Width: float32(w), Height: float32(h), Zfar: 1}
}

// SetViewport sets the viewport.
// It persists across frames and back buffer resizes.
func (r *Renderer) SetViewport(vp Viewport) error {
	const op = "render.SetViewport"
	if vp.Width <= 0 || vp.Height <= 0 {
		return r.fail(status.New(op, status.InvalidValue, "viewport size %gx%g", vp.Width, vp.Height))
	}
	if vp.Znear < 0 || vp.Znear > 1 || vp.Zfar < 0 || vp.Zfar > 1 {
		return r.fail(status.New(op, status.InvalidValue, "depth range [%g, %g]", vp.Znear, vp.Zfar))
	}
	r.vp = vp
	r.vpSet = true
	if r.pass {
		r.prim.cl.SetViewport(driver.Viewport(vp))
	}
	return nil
}

// ResetViewport makes the viewport cover the whole
// render target again.
func (r *Renderer) ResetViewport() {
	r.vpSet = false
	if r.pass {
		r.prim.cl.SetViewport(r.viewport())
	}
}

// SetRenderTarget sets the target of subsequent draws.
// A nil fb selects the back buffer.
// Changing the target ends the current render pass; the
// next Clear or Draw begins a new one.
func (r *Renderer) SetRenderTarget(fb *Framebuffer) error {
	const op = "render.SetRenderTarget"
	if fb != nil && (fb.r != r || fb.dead) {
		return r.fail(status.New(op, status.InvalidObject, "framebuffer"))
	}
	if fb == r.target {
		return nil
	}
	cl, err := r.record()
	if err != nil {
		return r.fail(err)
	}
	r.endPass(cl)
	r.unsetTarget(cl)
	if fb != nil {
		fb.transition(cl, true)
		r.target = fb
	}
	return nil
}

// unsetTarget makes the framebuffer textures readable
// again and selects the back buffer.
func (r *Renderer) unsetTarget(cl driver.CmdList) {
	if r.target != nil {
		r.target.transition(cl, false)
		r.target = nil
	}
}

// resize recreates the back buffers and the depth buffer
// if the window size changed since the last check.
// If it fails, the next command tries again and nothing
// is recorded until a resize succeeds.
func (r *Renderer) resize() error {
	const op = "render.resize"
	w, h := r.win.PixelSize()
	if w == r.width && h == r.height && !r.stale {
		return nil
	}
	if w <= 0 || h <= 0 {
		// Minimized. Check again on the next command.
		r.checkSize = true
		if r.stale {
			return status.New(op, status.SubsystemFailed, "back buffers unavailable")
		}
		return nil
	}
	if err := r.recreate(w, h); err != nil {
		r.checkSize = true
		return err
	}
	r.stale = false
	// The only command recorded since Display is the
	// transition of the old back buffer.
	r.pass = false
	r.bbReady = false
	if r.prim.open {
		if err := r.prim.reset(); err != nil {
			return err
		}
	}
	driver.Logger().Info("render: back buffers resized", "width", r.width, "height", r.height)
	return nil
}

// recreate replaces the back buffers and the depth
// buffer with ones of size w by h.
// The renderer is left stale if it fails.
func (r *Renderer) recreate(w, h int) error {
	const op = "render.resize"
	if err := r.dev.wait(); err != nil {
		return err
	}
	r.stale = true
	r.unbindBackBuffers()
	r.destroyDepth()
	if err := r.sc.Recreate(w, h); err != nil {
		return status.Wrap(op, status.SubsystemFailed, err)
	}
	if err := r.bindBackBuffers(); err != nil {
		return err
	}
	w, h = r.sc.Size()
	if err := r.newDepth(w, h); err != nil {
		return err
	}
	cur, err := r.sc.Next()
	if err != nil {
		return status.Wrap(op, status.SubsystemFailed, err)
	}
	r.cur = cur
	r.width, r.height = w, h
	return nil
}
