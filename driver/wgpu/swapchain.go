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

// Swapchain implements driver.Swapchain.
// Surface textures are acquired one at a time, so each
// swapchain slot holds whichever texture was acquired
// the last time the slot was returned by Next.
type Swapchain struct {
	gpu    *GPU
	win    driver.Window
	sf     hal.Surface
	param  driver.SwapParam
	width  int
	height int
	views  []driver.TextureView
	slots  []swapSlot
	cur    int
}

type swapSlot struct {
	view *TextureView
	st   hal.SurfaceTexture
}

// NewSwapchain creates a new swapchain.
func (g *GPU) NewSwapchain(win driver.Window, param *driver.SwapParam) (driver.Swapchain, error) {
	if win.WindowProvider == nil {
		return nil, driver.ErrWindow
	}
	if param.Count < 1 {
		return nil, errors.New("wgpu: swapchain needs at least one buffer")
	}
	sf, err := g.drv.inst.CreateSurface(win.Display, win.Handle)
	if err != nil {
		return nil, errors.Join(driver.ErrCannotPresent, err)
	}
	s := &Swapchain{
		gpu:   g,
		win:   win,
		sf:    sf,
		param: *param,
		views: make([]driver.TextureView, param.Count),
		slots: make([]swapSlot, param.Count),
		cur:   -1,
	}
	for i := range s.slots {
		tex := &Texture{gpu: g}
		s.slots[i].view = &TextureView{tex: tex}
		s.views[i] = s.slots[i].view
	}
	w, h := win.PixelSize()
	if err := s.configure(w, h); err != nil {
		sf.Destroy()
		return nil, err
	}
	return s, nil
}

// configure configures the surface with a new size.
func (s *Swapchain) configure(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: zero-area client region", driver.ErrWindow)
	}
	mode := hal.PresentModeImmediate
	if s.param.VSync {
		mode = hal.PresentModeFifo
	}
	err := s.sf.Configure(s.gpu.dev, &hal.SurfaceConfiguration{
		Width:       uint32(width),
		Height:      uint32(height),
		Format:      s.param.Format,
		Usage:       gputypes.TextureUsageRenderAttachment,
		PresentMode: mode,
		AlphaMode:   hal.CompositeAlphaModeOpaque,
	})
	if err != nil {
		return errors.Join(driver.ErrSwapchain, err)
	}
	s.width, s.height = width, height
	for i := range s.slots {
		*s.slots[i].view.tex = Texture{
			gpu: s.gpu,
			param: driver.TexParam{
				Format:  s.param.Format,
				Size:    driver.Dim3D{Width: width, Height: height, Depth: 1},
				Layers:  1,
				Levels:  1,
				Samples: 1,
				Usage:   gputypes.TextureUsageRenderAttachment,
			},
		}
	}
	return nil
}

// Views returns the swapchain's texture views.
func (s *Swapchain) Views() []driver.TextureView { return s.views }

// Next acquires the next writable texture view.
func (s *Swapchain) Next() (int, error) {
	i := (s.cur + 1) % len(s.slots)
	sl := &s.slots[i]
	if sl.st != nil {
		s.sf.DiscardTexture(sl.st)
		sl.st = nil
	}
	ast, err := s.sf.AcquireTexture(nil)
	if err != nil {
		return -1, convErr(err)
	}
	hv, err := s.gpu.dev.CreateTextureView(ast.Texture, &hal.TextureViewDescriptor{
		Format:          s.param.Format,
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   1,
		ArrayLayerCount: 1,
	})
	if err != nil {
		s.sf.DiscardTexture(ast.Texture)
		return -1, convErr(err)
	}
	if sl.view.hv != nil {
		s.gpu.dev.DestroyTextureView(sl.view.hv)
	}
	sl.view.hv = hv
	sl.view.tex.ht = ast.Texture
	sl.st = ast.Texture
	s.cur = i
	if ast.Suboptimal {
		driver.Logger().Debug("wgpu: suboptimal surface texture", "index", i)
	}
	return i, nil
}

// Present presents the texture view identified by index.
func (s *Swapchain) Present(index int) error {
	if index < 0 || index >= len(s.slots) || s.slots[index].st == nil {
		return fmt.Errorf("wgpu: no acquired texture at index %d", index)
	}
	sl := &s.slots[index]
	err := s.gpu.hq.Present(s.sf, sl.st, nil)
	sl.st = nil
	return convErr(err)
}

// Recreate recreates the swapchain with a new size.
func (s *Swapchain) Recreate(width, height int) error {
	s.release()
	s.sf.Unconfigure(s.gpu.dev)
	s.cur = -1
	return s.configure(width, height)
}

// release destroys the views and discards the
// textures that were not presented.
func (s *Swapchain) release() {
	for i := range s.slots {
		sl := &s.slots[i]
		if sl.st != nil {
			s.sf.DiscardTexture(sl.st)
			sl.st = nil
		}
		if sl.view.hv != nil {
			s.gpu.dev.DestroyTextureView(sl.view.hv)
			sl.view.hv = nil
		}
		sl.view.tex.ht = nil
	}
}

// Size returns the size of the views.
func (s *Swapchain) Size() (width, height int) { return s.width, s.height }

// Format returns the views' format.
func (s *Swapchain) Format() gputypes.TextureFormat { return s.param.Format }

// Destroy destroys the swapchain.
func (s *Swapchain) Destroy() {
	if s == nil || s.sf == nil {
		return
	}
	s.release()
	s.sf.Unconfigure(s.gpu.dev)
	s.sf.Destroy()
	*s = Swapchain{}
}
