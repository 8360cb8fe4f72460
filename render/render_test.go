// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package render

import (
	"fmt"
	"slices"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gviegas/gfxcore/driver"
	"github.com/gviegas/gfxcore/status"
)

const (
	testWidth  = 640
	testHeight = 480
)

// newTest creates a renderer on a fake GPU.
// The cleanup checks that Destroy leaves no object
// behind.
func newTest(t *testing.T, mod ...func(*Config)) (*Renderer, *fakeGPU, *gpucontext.NullWindowProvider) {
	t.Helper()
	g := newFakeGPU()
	win := &gpucontext.NullWindowProvider{W: testWidth, H: testHeight}
	cfg := DefaultConfig()
	cfg.Window = win
	for _, f := range mod {
		f(&cfg)
	}
	r, err := newRenderer(&cfg, g)
	require.NoError(t, err)
	t.Cleanup(func() {
		r.Destroy()
		assert.Zero(t, g.count(""), "objects left after Destroy")
		assert.Zero(t, g.destroyedTwice, "objects destroyed twice")
	})
	return r, g, win
}

func query(t *testing.T, r *Renderer, v Value) int64 {
	t.Helper()
	x, err := r.Query(v)
	require.NoError(t, err)
	return x
}

func primCmds(r *Renderer) []string { return r.prim.cl.(*fakeCmdList).cmds }

func TestNew(t *testing.T) {
	r, g, _ := newTest(t)
	for kind, n := range map[string]int{
		"queue":      1,
		"fence":      1,
		"cmdlist":    2,
		"swapchain":  1,
		"backbuffer": 2 * BackBuffers,
		"texture":    1,
		"view":       1,
	} {
		assert.Equalf(t, n, g.count(kind), "live %s", kind)
	}
	assert.Equal(t, int64(testWidth), query(t, r, BackBufferWidth))
	assert.Equal(t, int64(testHeight), query(t, r, BackBufferHeight))
	assert.Equal(t, int64(dflHeapSize), query(t, r, HeapCapacity))
	assert.Zero(t, query(t, r, HeapUsed))
	assert.Zero(t, query(t, r, FrameIndex))
	assert.Zero(t, query(t, r, SamplerCount))
	assert.Equal(t, BackBuffers, r.rtv.Len())
	assert.Equal(t, 1, r.dsv.Len())
	assert.Nil(t, r.LastError())
}

func TestNewInvalidConfig(t *testing.T) {
	cases := []struct {
		name string
		mod  func(*Config)
	}{
		{"no window", func(c *Config) { c.Window = nil }},
		{"depth back buffer", func(c *Config) { c.BackBufferFormat = D32F }},
		{"color depth buffer", func(c *Config) { c.DepthFormat = RGBA8 }},
		{"one render target", func(c *Config) { c.RenderTargets = 1 }},
		{"no depth target", func(c *Config) { c.DepthTargets = 0 }},
		{"no samplers", func(c *Config) { c.MaxSamplers = 0 }},
		{"heap too large", func(c *Config) { c.HeapSize = 1 << 20 }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			g := newFakeGPU()
			cfg := DefaultConfig()
			cfg.Window = &gpucontext.NullWindowProvider{W: 1, H: 1}
			c.mod(&cfg)
			r, err := newRenderer(&cfg, g)
			assert.Nil(t, r)
			assert.ErrorIs(t, err, status.InvalidValue)
			assert.Zero(t, g.count(""))
		})
	}
}

func TestNewFailure(t *testing.T) {
	// Every native object that New creates, in order.
	steps := []struct {
		kind string
		nth  int
	}{
		{"queue", 1},
		{"fence", 1},
		{"cmdlist", 1},
		{"cmdlist", 2},
		{"swapchain", 1},
		{"texture", 1},
		{"view", 1},
	}
	for _, s := range steps {
		t.Run(fmt.Sprintf("%s#%d", s.kind, s.nth), func(t *testing.T) {
			g := newFakeGPU()
			g.fail[s.kind] = s.nth
			cfg := DefaultConfig()
			cfg.Window = &gpucontext.NullWindowProvider{W: 8, H: 8}
			r, err := newRenderer(&cfg, g)
			assert.Nil(t, r)
			assert.ErrorIs(t, err, status.SubsystemFailed)
			assert.ErrorIs(t, err, errFake)
			assert.Zero(t, g.count(""), "objects left after failure")
			assert.Zero(t, g.destroyedTwice)
			assert.False(t, g.queueTaken)
		})
	}

	t.Run("next", func(t *testing.T) {
		g := newFakeGPU()
		g.failNext = true
		cfg := DefaultConfig()
		cfg.Window = &gpucontext.NullWindowProvider{W: 8, H: 8}
		r, err := newRenderer(&cfg, g)
		assert.Nil(t, r)
		assert.ErrorIs(t, err, status.SubsystemFailed)
		assert.ErrorIs(t, err, driver.ErrSwapchain)
		assert.Zero(t, g.count(""))
	})
}

func TestDisplay(t *testing.T) {
	r, g, _ := newTest(t)
	sc := r.sc.(*fakeSwapchain)
	var fence int64
	for i := 1; i <= 3; i++ {
		require.NoError(t, r.Clear(ClearColor|ClearDepth|ClearStencil))
		require.NoError(t, r.Display())
		v := query(t, r, FenceValue)
		assert.Greater(t, v, fence, "fence value must increase")
		fence = v
		assert.Equal(t, int64(i), query(t, r, DisplayedFrames))
		assert.Equal(t, i, g.submits)
		assert.True(t, r.prim.open, "primary list not reopened")
	}
	assert.Equal(t, []int{0, 1, 0}, sc.presented)
	assert.Equal(t, int64(1), query(t, r, FrameIndex))
}

func TestDisplayNoClear(t *testing.T) {
	r, _, _ := newTest(t)
	require.NoError(t, r.Display())
	require.NoError(t, r.Display())
	assert.Equal(t, int64(2), query(t, r, DisplayedFrames))
}

func TestDisplayLagging(t *testing.T) {
	r, g, _ := newTest(t)
	g.lagging = true
	require.NoError(t, r.Clear(ClearColor))
	require.NoError(t, r.Display())
	f := r.dev.fence.(*fakeFence)
	assert.Equal(t, 1, f.notified)
	assert.Equal(t, f.signaled, f.Completed())
}

func TestClear(t *testing.T) {
	r, _, _ := newTest(t)
	require.NoError(t, r.Clear(ClearColor))
	require.NoError(t, r.Clear(ClearDepth))
	cmds := primCmds(r)
	assert.Equal(t, 1, count(cmds, "end pass"))
	assert.Equal(t, 2, countPrefix(cmds, "begin pass"))
	assert.Contains(t, cmds, fmt.Sprintf("begin pass 1 colors, load %d", driver.LClear))
	assert.Contains(t, cmds, fmt.Sprintf("begin pass 1 colors, load %d", driver.LLoad))

	err := r.Clear(1 << 5)
	assert.ErrorIs(t, err, status.InvalidEnum)
	assert.Same(t, err, r.LastError())
	r.ClearError()
	assert.Nil(t, r.LastError())
}

func TestResize(t *testing.T) {
	r, g, win := newTest(t)
	require.NoError(t, r.SetViewport(Viewport{Width: 100, Height: 50, Zfar: 1}))

	depth := r.depth.tex
	require.NoError(t, r.Display())
	require.NoError(t, r.Clear(ClearColor))
	assert.Same(t, depth, r.depth.tex, "same size must not recreate")
	assert.Zero(t, g.recreates)

	win.W, win.H = 800, 600
	require.NoError(t, r.Display())
	require.NoError(t, r.Clear(ClearColor))
	assert.Equal(t, 1, g.recreates)
	assert.NotSame(t, depth, r.depth.tex)
	assert.Equal(t, int64(800), query(t, r, BackBufferWidth))
	assert.Equal(t, int64(600), query(t, r, BackBufferHeight))
	assert.Equal(t, 800, r.depth.tex.Param().Size.Width)
	assert.Equal(t, 1, g.count("texture"))
	assert.Equal(t, BackBuffers, r.rtv.Len())
	assert.Equal(t, 1, r.dsv.Len())
	assert.Contains(t, primCmds(r), "viewport 100x50", "viewport not preserved")

	// Minimized windows are not resized.
	win.W, win.H = 0, 0
	require.NoError(t, r.Display())
	require.NoError(t, r.Clear(ClearColor))
	assert.Equal(t, 1, g.recreates)
	win.W, win.H = 320, 200
	require.NoError(t, r.Clear(ClearColor))
	assert.Equal(t, 2, g.recreates)
	assert.Equal(t, int64(320), query(t, r, BackBufferWidth))
}

func TestResizeFailure(t *testing.T) {
	r, g, win := newTest(t)
	require.NoError(t, r.Display())
	win.W, win.H = 800, 600
	g.fail["texture"] = 2
	err := r.Clear(ClearColor)
	assert.ErrorIs(t, err, status.SubsystemFailed)
	assert.ErrorIs(t, err, errFake)
	assert.Nil(t, r.depth.tex)
	assert.Zero(t, r.dsv.Len())
	assert.Equal(t, int64(testWidth), query(t, r, BackBufferWidth))
	n := len(primCmds(r))

	// Nothing is recorded until a resize succeeds.
	g.fail["texture"] = 3
	assert.ErrorIs(t, r.Clear(ClearColor), errFake)
	win.W, win.H = 0, 0
	assert.ErrorIs(t, r.Clear(ClearColor), status.SubsystemFailed)
	assert.ErrorIs(t, r.LastError(), status.SubsystemFailed)
	assert.Len(t, primCmds(r), n)
	_, err = r.Query(BackBufferDescriptor)
	assert.ErrorIs(t, err, status.InvalidOperation)
	assert.Equal(t, 2, g.recreates)

	win.W, win.H = 800, 600
	require.NoError(t, r.Clear(ClearColor|ClearDepth))
	assert.Equal(t, 3, g.recreates)
	require.NotNil(t, r.depth.tex)
	assert.Equal(t, 800, r.depth.tex.Param().Size.Width)
	assert.Equal(t, 1, g.count("texture"))
	assert.Equal(t, 1, r.dsv.Len())
	assert.Equal(t, BackBuffers, r.rtv.Len())
	assert.Equal(t, int64(800), query(t, r, BackBufferWidth))
	require.NoError(t, r.Display())
}

func TestViewport(t *testing.T) {
	r, _, _ := newTest(t)
	require.NoError(t, r.Clear(ClearColor))
	assert.Contains(t, primCmds(r), fmt.Sprintf("viewport %dx%d", testWidth, testHeight))
	require.NoError(t, r.SetViewport(Viewport{X: 10, Y: 10, Width: 32, Height: 16, Zfar: 1}))
	assert.Contains(t, primCmds(r), "viewport 32x16")

	for _, vp := range []Viewport{
		{Width: 0, Height: 1},
		{Width: 1, Height: -1},
		{Width: 1, Height: 1, Znear: -0.5},
		{Width: 1, Height: 1, Zfar: 2},
	} {
		assert.ErrorIs(t, r.SetViewport(vp), status.InvalidValue)
	}
	assert.Equal(t, float32(32), r.vp.Width, "failed call changed the viewport")

	r.ResetViewport()
	require.NoError(t, r.Clear(ClearColor))
	cmds := primCmds(r)
	assert.Equal(t, fmt.Sprintf("viewport %dx%d", testWidth, testHeight), cmds[len(cmds)-1])
}

func TestQueryBackBufferDescriptor(t *testing.T) {
	r, _, _ := newTest(t)
	d0 := query(t, r, BackBufferDescriptor)
	assert.Equal(t, int64(r.rtv.Handle(r.back+r.cur)), d0)
	require.NoError(t, r.Display())
	d1 := query(t, r, BackBufferDescriptor)
	assert.NotEqual(t, d0, d1, "next back buffer")
	assert.Equal(t, int64(r.rtv.Handle(r.back+r.cur)), d1)
}

func TestQueryInvalid(t *testing.T) {
	r, _, _ := newTest(t)
	_, err := r.Query(0)
	assert.ErrorIs(t, err, status.InvalidEnum)
	_, err = r.Query(BackBufferDescriptor + 1)
	assert.ErrorIs(t, err, status.InvalidEnum)
	assert.ErrorIs(t, r.LastError(), status.InvalidEnum)
}

func TestDestroyTwice(t *testing.T) {
	r, _, _ := newTest(t)
	r.Destroy()
	r.Destroy()
}

func count(s []string, x string) int {
	n := 0
	for _, e := range s {
		if e == x {
			n++
		}
	}
	return n
}

func countPrefix(s []string, p string) int {
	return len(slices.DeleteFunc(slices.Clone(s), func(e string) bool {
		return len(e) < len(p) || e[:len(p)] != p
	}))
}
