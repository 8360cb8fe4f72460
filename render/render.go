// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package render implements a low-level renderer.
//
// A Renderer owns a GPU queue, two command lists, the
// descriptor heaps and a double-buffered swap chain with
// a depth buffer. Every frame is recorded into the
// primary command list and submitted by Display, which
// then blocks until the GPU has finished it:
//
//	r, err := render.New(cfg)
//	...
//	for running {
//		r.Clear(render.ClearColor | render.ClearDepth)
//		r.Draw(&render.DrawCall{...})
//		if err := r.Display(); err != nil {
//			...
//		}
//	}
//	r.Destroy()
//
// Data uploads go through a secondary command list and
// are synchronous.
//
// Every operation that fails records its error as the
// renderer's last error (see LastError).
package render

import (
	"github.com/gviegas/gfxcore/driver"
	"github.com/gviegas/gfxcore/internal/ctxt"
	"github.com/gviegas/gfxcore/internal/heap"
	"github.com/gviegas/gfxcore/internal/shared"
	"github.com/gviegas/gfxcore/param"
	"github.com/gviegas/gfxcore/status"
)

// Renderer is a real-time renderer that targets a
// window.
// It must be used from a single goroutine.
type Renderer struct {
	cfg    Config
	ctx    *ctxt.Context
	gpu    driver.GPU
	limits driver.Limits
	debug  bool

	dev  deviceContext
	prim *cmdList
	sec  *cmdList

	rtv  *heap.Heap[driver.TextureView]
	dsv  *heap.Heap[driver.TextureView]
	srv  *heap.Heap[driver.BindRes]
	splr samplerTable

	bufs *shared.Table[*Buffer]
	texs *shared.Table[*Texture]

	win   driver.Window
	sc    driver.Swapchain
	back  int // first RTV slot of the back buffers
	depth depthBuffer

	width, height int
	// cur is the back buffer being recorded.
	cur int
	// bbReady is set once the current back buffer has
	// been transitioned to a color target.
	bbReady bool
	// checkSize is set by Display and consumed by the
	// next command recorded.
	checkSize bool
	// stale is set while the back buffers or the depth
	// buffer are missing because a resize failed.
	stale bool
	frames    uint64

	target *Framebuffer
	pass   bool
	vp     Viewport
	vpSet  bool
	clear  [4]float32

	pipes map[*PipelineState]struct{}
	psets map[*ParameterSet]struct{}
	fbs   map[*Framebuffer]struct{}

	td  teardown
	err error
}

// depthBuffer is the depth/stencil target paired with
// the back buffers.
type depthBuffer struct {
	tex  driver.Texture
	view driver.TextureView
	slot int
}

// New creates a new renderer.
// The driver is loaded as described by cfg.Driver and
// cfg.Backend.
func New(cfg Config) (*Renderer, error) {
	c, err := ctxt.Open(cfg.Driver, cfg.Backend)
	if err != nil {
		return nil, status.Wrap("render.New", status.SubsystemFailed, err)
	}
	r, err := newRenderer(&cfg, c.GPU())
	if err != nil {
		c.Close()
		return nil, err
	}
	r.ctx = c
	return r, nil
}

// newRenderer creates a renderer on gpu.
// Each resource is created in sequence and, if any step
// fails, the ones created before it are destroyed in
// reverse order.
func newRenderer(cfg *Config, gpu driver.GPU) (r *Renderer, err error) {
	const op = "render.New"
	r = &Renderer{
		cfg:    *cfg,
		gpu:    gpu,
		limits: gpu.Limits(),
		clear:  cfg.ClearColor,
		pipes:  make(map[*PipelineState]struct{}),
		psets:  make(map[*ParameterSet]struct{}),
		fbs:    make(map[*Framebuffer]struct{}),
	}
	r.debug = r.cfg.Debug || param.Debug
	if err = r.cfg.validate(&r.limits); err != nil {
		return nil, err
	}
	var td teardown
	defer func() {
		if err != nil {
			td.run()
			r = nil
		}
	}()

	if err = r.dev.init(gpu); err != nil {
		return
	}
	td.push(r.dev.destroy)
	if r.prim, err = newCmdList(gpu, "primary"); err != nil {
		return
	}
	td.push(r.prim.destroy)
	if r.sec, err = newCmdList(gpu, "secondary"); err != nil {
		return
	}
	td.push(r.sec.destroy)

	if r.rtv, err = heap.New[driver.TextureView](driver.HRenderTarget, r.cfg.RenderTargets, &r.limits); err != nil {
		return
	}
	if r.dsv, err = heap.New[driver.TextureView](driver.HDepthStencil, r.cfg.DepthTargets, &r.limits); err != nil {
		return
	}
	if r.srv, err = heap.New[driver.BindRes](driver.HShaderResource, r.cfg.HeapSize, &r.limits); err != nil {
		return
	}
	td.push(r.splr.destroy)

	r.bufs = shared.New(func(b *Buffer) { b.release() })
	r.texs = shared.New(func(t *Texture) { t.release() })
	td.push(func() {
		r.bufs.Clear()
		r.texs.Clear()
	})

	r.win = driver.Window{WindowProvider: r.cfg.Window, Display: r.cfg.Display, Handle: r.cfg.Handle}
	bb, _ := FormatInfo(r.cfg.BackBufferFormat)
	if r.sc, err = gpu.NewSwapchain(r.win, &driver.SwapParam{
		Format: bb.Native,
		Count:  BackBuffers,
		VSync:  r.cfg.VSync,
	}); err != nil {
		err = status.Wrap(op, status.SubsystemFailed, err)
		return
	}
	td.push(r.sc.Destroy)
	r.width, r.height = r.sc.Size()

	if err = r.bindBackBuffers(); err != nil {
		return
	}
	td.push(r.unbindBackBuffers)
	if err = r.newDepth(r.width, r.height); err != nil {
		return
	}
	td.push(r.destroyDepth)
	if r.cur, err = r.sc.Next(); err != nil {
		err = status.Wrap(op, status.SubsystemFailed, err)
		return
	}

	r.td = td
	driver.Logger().Info("render: renderer created",
		"driver", gpu.Driver().Name(),
		"width", r.width,
		"height", r.height,
		"format", r.cfg.BackBufferFormat.String())
	return r, nil
}

// bindBackBuffers stores the swap chain views in the
// RTV heap.
func (r *Renderer) bindBackBuffers() error {
	i, err := r.rtv.Alloc(BackBuffers)
	if err != nil {
		return err
	}
	for j, v := range r.sc.Views() {
		r.rtv.Set(i+j, v)
	}
	r.back = i
	return nil
}

func (r *Renderer) unbindBackBuffers() {
	if r.back >= 0 {
		r.rtv.Free(r.back, BackBuffers)
		r.back = -1
	}
}

// newDepth creates a depth buffer of the given size.
func (r *Renderer) newDepth(width, height int) error {
	const op = "render.depth"
	fi, _ := FormatInfo(r.cfg.DepthFormat)
	tex, err := r.gpu.NewTexture(&driver.TexParam{
		Format:  fi.Native,
		Size:    driver.Dim3D{Width: width, Height: height, Depth: 1},
		Layers:  1,
		Levels:  1,
		Samples: 1,
		Usage:   renderTargetUsage,
	})
	if err != nil {
		return status.Wrap(op, status.SubsystemFailed, err)
	}
	view, err := tex.NewView(0, 1, 0, 1)
	if err != nil {
		tex.Destroy()
		return status.Wrap(op, status.SubsystemFailed, err)
	}
	slot, err := r.dsv.Alloc(1)
	if err != nil {
		view.Destroy()
		tex.Destroy()
		return err
	}
	r.dsv.Set(slot, view)
	r.depth = depthBuffer{tex, view, slot}
	return nil
}

func (r *Renderer) destroyDepth() {
	if r.depth.tex == nil {
		return
	}
	r.dsv.Free(r.depth.slot, 1)
	r.depth.view.Destroy()
	r.depth.tex.Destroy()
	r.depth = depthBuffer{}
}

// Destroy destroys the renderer and every object
// created from it.
// It waits for the GPU to finish any pending work
// first.
func (r *Renderer) Destroy() {
	if r == nil || r.gpu == nil {
		return
	}
	if err := r.dev.wait(); err != nil {
		driver.Logger().Warn("render: Destroy could not drain the queue", "err", err)
	}
	for p := range r.psets {
		p.Destroy()
	}
	for p := range r.pipes {
		p.Destroy()
	}
	r.target = nil
	for fb := range r.fbs {
		fb.Destroy()
	}
	r.td.run()
	if r.ctx != nil {
		r.ctx.Close()
	}
	driver.Logger().Info("render: renderer destroyed", "frames", r.frames)
	*r = Renderer{}
}

// fail records err as the last error.
func (r *Renderer) fail(err error) error {
	if err != nil {
		r.err = err
	}
	return err
}

// LastError returns the error of the last operation
// that failed.
func (r *Renderer) LastError() error { return r.err }

// ClearError clears the last error.
func (r *Renderer) ClearError() { r.err = nil }

// Size returns the size of the back buffers.
func (r *Renderer) Size() (width, height int) { return r.width, r.height }
