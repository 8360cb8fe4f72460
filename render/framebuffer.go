// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package render

import (
	"github.com/gogpu/gputypes"

	"github.com/gviegas/gfxcore/driver"
	"github.com/gviegas/gfxcore/param"
	"github.com/gviegas/gfxcore/status"
)

// AttachSlot identifies an attachment of a framebuffer.
type AttachSlot int

// Attachment slots.
const (
	Color0 AttachSlot = iota
	Color1
	Color2
	Color3
	DepthStencil
)

// MaxColorAttachments is the number of color slots.
const MaxColorAttachments = int(DepthStencil)

// Attachment attaches a level/layer of a target texture
// to a framebuffer slot.
// Discard means that the contents need not be stored
// at the end of a render pass.
type Attachment struct {
	Slot    AttachSlot
	Texture *Texture
	Level   int
	Layer   int
	Discard bool
}

// FormatDecl declares a framebuffer slot whose texture
// is created and owned by the framebuffer.
type FormatDecl struct {
	Slot    AttachSlot
	Format  ColorFormat
	Samples int
}

// FramebufferDesc describes a framebuffer.
// Every slot must be either attached or declared, and
// color slots must be used in order starting at Color0.
type FramebufferDesc struct {
	Width, Height int
	Attachments   []Attachment
	Formats       []FormatDecl
}

// Framebuffer is a render target made of textures.
type Framebuffer struct {
	r             *Renderer
	width, height int
	samples       int
	color         []fbAttach
	ds            *fbAttach
	rtv, dsv      int
	owned         []*Texture
	dead          bool
}

type fbAttach struct {
	tex     *Texture
	view    driver.TextureView
	discard bool
}

// NewFramebuffer creates a new framebuffer.
func (r *Renderer) NewFramebuffer(desc *FramebufferDesc) (*Framebuffer, error) {
	fb, err := r.newFramebuffer(desc)
	if err != nil {
		return nil, r.fail(err)
	}
	r.fbs[fb] = struct{}{}
	return fb, nil
}

func (r *Renderer) newFramebuffer(desc *FramebufferDesc) (fb *Framebuffer, err error) {
	const op = "render.NewFramebuffer"
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, status.New(op, status.InvalidValue, "framebuffer size %dx%d", desc.Width, desc.Height)
	}
	if len(desc.Attachments)+len(desc.Formats) == 0 {
		return nil, status.New(op, status.InvalidValue, "no attachments")
	}

	// Validate everything before creating anything.
	var used, attached [DepthStencil + 1]bool
	use := func(s AttachSlot) error {
		switch {
		case s < Color0 || s > DepthStencil:
			return status.New(op, status.InvalidEnum, "attachment slot %d", int(s))
		case attached[s]:
			return status.New(op, status.InvalidValue, "attachment slot %d both attached and declared", int(s))
		case used[s]:
			return status.New(op, status.InvalidValue, "attachment slot %d declared twice", int(s))
		}
		used[s] = true
		return nil
	}
	samples := 0
	srgb := -1
	check := func(s AttachSlot, f ColorFormat, n int) error {
		if (s == DepthStencil) != f.IsDepth() {
			return status.New(op, status.InvalidValue, "format %v in attachment slot %d", f, int(s))
		}
		if samples != 0 && n != samples {
			return status.New(op, status.InvalidValue, "mismatched sample counts %d and %d", samples, n)
		}
		samples = n
		if s != DepthStencil {
			v := 0
			if f.IsSRGB() {
				v = 1
			}
			if srgb != -1 && v != srgb {
				return status.New(op, status.InvalidValue, "mixed sRGB and linear color attachments")
			}
			srgb = v
		}
		return nil
	}
	for _, a := range desc.Attachments {
		if err := use(a.Slot); err != nil {
			return nil, err
		}
		t := a.Texture
		switch {
		case t == nil:
			return nil, status.New(op, status.InvalidValue, "missing texture in attachment slot %d", int(a.Slot))
		case t.r != r || t.dead:
			return nil, status.New(op, status.InvalidObject, "texture in attachment slot %d", int(a.Slot))
		case !t.target:
			return nil, status.New(op, status.InvalidValue, "texture in attachment slot %d is not a target", int(a.Slot))
		case a.Level < 0 || a.Level >= t.levels || a.Layer < 0 || a.Layer >= t.layers:
			return nil, status.New(op, status.InvalidValue, "level %d, layer %d in attachment slot %d", a.Level, a.Layer, int(a.Slot))
		case max(t.width>>a.Level, 1) != desc.Width || max(t.height>>a.Level, 1) != desc.Height:
			return nil, status.New(op, status.InvalidValue, "attachment slot %d size differs from framebuffer", int(a.Slot))
		}
		if err := check(a.Slot, t.format, t.samples); err != nil {
			return nil, err
		}
	}
	attached = used
	for _, f := range desc.Formats {
		if err := use(f.Slot); err != nil {
			return nil, err
		}
		if _, err := FormatInfo(f.Format); err != nil {
			return nil, err
		}
		if err := check(f.Slot, f.Format, max(f.Samples, 1)); err != nil {
			return nil, err
		}
	}
	ncolor := 0
	for s := Color0; s < DepthStencil; s++ {
		if !used[s] {
			break
		}
		ncolor++
	}
	for s := AttachSlot(ncolor); s < DepthStencil; s++ {
		if used[s] {
			return nil, status.New(op, status.InvalidValue, "attachment slot %d used but slot %d is not", int(s), ncolor)
		}
	}

	fb = &Framebuffer{
		r:       r,
		width:   desc.Width,
		height:  desc.Height,
		samples: samples,
		color:   make([]fbAttach, ncolor),
		rtv:     -1,
		dsv:     -1,
	}
	var td teardown
	defer func() {
		if err != nil {
			td.run()
		}
	}()
	var atts [DepthStencil + 1]Attachment
	for _, a := range desc.Attachments {
		if err = r.texs.Acquire(a.Texture.id); err != nil {
			return
		}
		td.push(func() {
			if err := r.texs.Release(a.Texture.id); err != nil {
				driver.Logger().Warn("render: NewFramebuffer", "err", err)
			}
		})
		atts[a.Slot] = a
	}
	for _, f := range desc.Formats {
		var t *Texture
		if t, err = r.newTexture(&TextureDesc{
			Format:  f.Format,
			Width:   desc.Width,
			Height:  desc.Height,
			Samples: f.Samples,
			Target:  true,
		}); err != nil {
			return
		}
		td.push(t.Destroy)
		fb.owned = append(fb.owned, t)
		atts[f.Slot] = Attachment{Slot: f.Slot, Texture: t}
	}

	if ncolor > 0 {
		if fb.rtv, err = r.rtv.Alloc(ncolor); err != nil {
			return
		}
		td.push(func() { r.rtv.Free(fb.rtv, ncolor) })
	}
	if used[DepthStencil] {
		if fb.dsv, err = r.dsv.Alloc(1); err != nil {
			return
		}
		td.push(func() { r.dsv.Free(fb.dsv, 1) })
	}
	for s := Color0; s <= DepthStencil; s++ {
		if !used[s] {
			continue
		}
		a := atts[s]
		var view driver.TextureView
		if view, err = a.Texture.tex.NewView(a.Layer, 1, a.Level, 1); err != nil {
			err = status.Wrap(op, status.SubsystemFailed, err)
			return
		}
		td.push(view.Destroy)
		fa := fbAttach{tex: a.Texture, view: view, discard: a.Discard}
		if s == DepthStencil {
			fb.ds = &fa
			r.dsv.Set(fb.dsv, view)
		} else {
			fb.color[s] = fa
			r.rtv.Set(fb.rtv+int(s), view)
		}
	}
	driver.Logger().Debug("render: framebuffer created",
		"width", fb.width, "height", fb.height, "colors", ncolor, "depth", fb.ds != nil)
	return fb, nil
}

// Size returns the size of the framebuffer.
func (fb *Framebuffer) Size() (width, height int) { return fb.width, fb.height }

// Texture returns the texture in slot s, or nil if
// the slot is not used.
func (fb *Framebuffer) Texture(s AttachSlot) *Texture {
	switch {
	case s == DepthStencil && fb.ds != nil:
		return fb.ds.tex
	case s >= Color0 && int(s) < len(fb.color):
		return fb.color[s].tex
	}
	return nil
}

func (fb *Framebuffer) each(f func(a *fbAttach, ds bool)) {
	for i := range fb.color {
		f(&fb.color[i], false)
	}
	if fb.ds != nil {
		f(fb.ds, true)
	}
}

// pass returns the description of a render pass that
// targets fb.
func (fb *Framebuffer) pass(color driver.LoadOp, ds [2]driver.LoadOp, clear [4]float32) driver.Pass {
	store := func(a *fbAttach) driver.StoreOp {
		if a.discard {
			return driver.SDontCare
		}
		return driver.SStore
	}
	var p driver.Pass
	for i := range fb.color {
		p.Color = append(p.Color, driver.ColorTarget{
			View:  fb.r.rtv.Get(fb.rtv + i),
			Load:  color,
			Store: store(&fb.color[i]),
			Clear: clear,
		})
	}
	if fb.ds != nil {
		s := store(fb.ds)
		p.DS = &driver.DSTarget{
			View:  fb.r.dsv.Get(fb.dsv),
			Load:  ds,
			Store: [2]driver.StoreOp{s, s},
			Depth: 1,
		}
	}
	return p
}

// transition records the transition of every attached
// texture, either to a render target state or to a
// shader readable state.
func (fb *Framebuffer) transition(cl driver.CmdList, toTarget bool) {
	var ts []driver.Transition
	fb.each(func(a *fbAttach, ds bool) {
		after := driver.LShaderRead
		if toTarget {
			after = driver.LColorTarget
			if ds {
				after = driver.LDSTarget
			}
		}
		if a.tex.layout == after {
			return
		}
		ts = append(ts, driver.Transition{Tex: a.tex.tex, LayoutBefore: a.tex.layout, LayoutAfter: after})
		a.tex.layout = after
	})
	if len(ts) > 0 {
		cl.Transition(ts)
	}
}

// written returns the textures whose contents a render
// pass targeting fb keeps.
func (fb *Framebuffer) written() []param.Ref {
	var refs []param.Ref
	fb.each(func(a *fbAttach, _ bool) {
		if !a.discard {
			refs = append(refs, param.Ref(a.tex.id))
		}
	})
	return refs
}

// formats returns the formats of fb, as used by
// pipelines.
func (fb *Framebuffer) formats() (color []gputypes.TextureFormat, ds gputypes.TextureFormat, samples int) {
	for i := range fb.color {
		color = append(color, fb.color[i].tex.info.Native)
	}
	if fb.ds != nil {
		ds = fb.ds.tex.info.Native
	}
	return color, ds, fb.samples
}

// Destroy destroys the framebuffer.
// If it is the current render target, the back buffer
// becomes the target.
func (fb *Framebuffer) Destroy() {
	if fb == nil || fb.dead {
		return
	}
	r := fb.r
	if r.target == fb {
		if err := r.SetRenderTarget(nil); err != nil {
			driver.Logger().Warn("render: Framebuffer.Destroy", "err", err)
			r.target = nil
		}
	}
	owned := make(map[*Texture]bool, len(fb.owned))
	for _, t := range fb.owned {
		owned[t] = true
	}
	fb.each(func(a *fbAttach, _ bool) {
		a.view.Destroy()
		if !owned[a.tex] {
			if err := r.texs.Release(a.tex.id); err != nil {
				driver.Logger().Warn("render: Framebuffer.Destroy", "err", err)
			}
		}
	})
	for _, t := range fb.owned {
		t.Destroy()
	}
	if len(fb.color) > 0 {
		r.rtv.Free(fb.rtv, len(fb.color))
	}
	if fb.ds != nil {
		r.dsv.Free(fb.dsv, 1)
	}
	fb.dead = true
	fb.color, fb.ds, fb.owned = nil, nil, nil
	delete(r.fbs, fb)
}
