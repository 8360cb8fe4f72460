// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package render

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gviegas/gfxcore/driver"
	"github.com/gviegas/gfxcore/param"
	"github.com/gviegas/gfxcore/status"
)

type drawFixture struct {
	*paramFixture
	params *ParameterSet
	vert   *Buffer
	index  *Buffer
}

func newDrawFixture(t *testing.T, r *Renderer) *drawFixture {
	t.Helper()
	f := &drawFixture{paramFixture: newParamFixture(t, r)}
	var err error
	f.params, err = r.NewParameterSet(f.ps, 0, f.bindings())
	require.NoError(t, err)
	f.vert, err = r.NewGeometryBuffer(&BufferDesc{Size: 3 * 16})
	require.NoError(t, err)
	f.index, err = r.NewGeometryBuffer(&BufferDesc{Size: 6 * 2, Immediate: true, Data: make([]byte, 12)})
	require.NoError(t, err)
	return f
}

func TestDraw(t *testing.T) {
	r, _, _ := newTest(t)
	f := newDrawFixture(t, r)
	require.NoError(t, r.Clear(ClearColor|ClearDepth))
	n := len(primCmds(r))

	require.NoError(t, r.Draw(&DrawCall{
		Pipeline:  f.ps,
		Params:    []*ParameterSet{f.params},
		Vertex:    []VertexBuffer{{Buffer: f.vert}},
		Count:     3,
		Instances: 2,
	}))
	assert.Equal(t, []string{
		"pipeline",
		"bind group 0",
		"bind group 1",
		"vertex buffers 1",
		"draw 3 2",
	}, primCmds(r)[n:])

	n = len(primCmds(r))
	require.NoError(t, r.Draw(&DrawCall{
		Pipeline:    f.ps,
		Params:      []*ParameterSet{f.params},
		Vertex:      []VertexBuffer{{Buffer: f.vert, Offset: 16}},
		Index:       f.index,
		IndexFormat: gputypes.IndexFormatUint16,
		Count:       6,
	}))
	assert.Equal(t, []string{
		"pipeline",
		"bind group 0",
		"bind group 1",
		"vertex buffers 1",
		"index buffer",
		"draw indexed 6 1",
	}, primCmds(r)[n:])
	require.NoError(t, r.Display())
}

func TestDrawBeginsPass(t *testing.T) {
	r, _, _ := newTest(t)
	f := newDrawFixture(t, r)
	require.NoError(t, r.Draw(&DrawCall{Pipeline: f.ps, Params: []*ParameterSet{f.params}, Count: 3}))
	cmds := primCmds(r)
	require.GreaterOrEqual(t, len(cmds), 3)
	assert.Equal(t, "transition 7->2", cmds[0])
	assert.Equal(t, "begin pass 1 colors, load 2", cmds[1])
	assert.NotContains(t, cmds, "vertex buffers 0")
}

func TestDrawInvalid(t *testing.T) {
	r, _, _ := newTest(t)
	f := newDrawFixture(t, r)
	other := newTestPipeline(t, r)
	otherParams, err := r.NewParameterSet(other, 0, f.bindings())
	require.NoError(t, err)
	gone, err := r.NewParameterSet(f.ps, 0, f.bindings())
	require.NoError(t, err)
	gone.Destroy()
	require.NoError(t, r.Clear(ClearColor))
	n := len(primCmds(r))

	valid := func(m func(d *DrawCall)) *DrawCall {
		d := &DrawCall{
			Pipeline:    f.ps,
			Params:      []*ParameterSet{f.params},
			Vertex:      []VertexBuffer{{Buffer: f.vert}},
			Index:       f.index,
			IndexFormat: gputypes.IndexFormatUint32,
			Count:       3,
		}
		m(d)
		return d
	}
	cases := []struct {
		name string
		d    *DrawCall
		code status.Code
	}{
		{"nil pipeline", valid(func(d *DrawCall) { d.Pipeline = nil }), status.InvalidObject},
		{"zero count", valid(func(d *DrawCall) { d.Count = 0 }), status.InvalidValue},
		{"negative instances", valid(func(d *DrawCall) { d.Instances = -1 }), status.InvalidValue},
		{"negative first", valid(func(d *DrawCall) { d.First = -1 }), status.InvalidValue},
		{"missing set", valid(func(d *DrawCall) { d.Params = nil }), status.InvalidValue},
		{"nil set", valid(func(d *DrawCall) { d.Params = []*ParameterSet{nil} }), status.InvalidObject},
		{"destroyed set", valid(func(d *DrawCall) { d.Params = []*ParameterSet{gone} }), status.InvalidObject},
		{"foreign set", valid(func(d *DrawCall) { d.Params = []*ParameterSet{otherParams} }), status.InvalidObject},
		{"static set", valid(func(d *DrawCall) { d.Params = append(d.Params, f.ps.statics[1]) }), status.InvalidOperation},
		{"set twice", valid(func(d *DrawCall) { d.Params = append(d.Params, f.params) }), status.InvalidValue},
		{"data vertex buffer", valid(func(d *DrawCall) { d.Vertex[0].Buffer = f.data }), status.InvalidObject},
		{"vertex offset", valid(func(d *DrawCall) { d.Vertex[0].Offset = 48 }), status.InvalidValue},
		{"index format", valid(func(d *DrawCall) { d.IndexFormat = gputypes.IndexFormatUndefined }), status.InvalidEnum},
		{"data index buffer", valid(func(d *DrawCall) { d.Index = f.data }), status.InvalidObject},
		{"index offset", valid(func(d *DrawCall) { d.IndexOffset = -2 }), status.InvalidValue},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := r.Draw(c.d)
			assert.ErrorIs(t, err, c.code)
			assert.Same(t, err, r.LastError())
			assert.Len(t, primCmds(r), n, "failed draw recorded commands")
		})
	}
}

// captureLog redirects the renderer's log to a buffer
// for the rest of the test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := driver.Logger()
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})))
	t.Cleanup(func() { SetLogger(prev) })
	return &buf
}

func TestDrawHazard(t *testing.T) {
	r, _, _ := newTest(t, func(c *Config) { c.Debug = true })
	f := newDrawFixture(t, r)
	target := newTarget(t, r, TextureDesc{Format: RGBA8, Width: 4, Height: 4})
	fb, err := r.NewFramebuffer(&FramebufferDesc{
		Width:       4,
		Height:      4,
		Attachments: []Attachment{{Slot: Color0, Texture: target}},
	})
	require.NoError(t, err)
	scratch, err := r.NewFramebuffer(&FramebufferDesc{
		Width:       4,
		Height:      4,
		Attachments: []Attachment{{Slot: Color0, Texture: target, Discard: true}},
	})
	require.NoError(t, err)
	b := f.bindings()
	b.Textures[0].Texture = target
	feedback, err := r.NewParameterSet(f.ps, 0, b)
	require.NoError(t, err)
	log := captureLog(t)

	draw := &DrawCall{Pipeline: f.ps, Params: []*ParameterSet{feedback}, Count: 3}
	require.NoError(t, r.Draw(draw))
	assert.Empty(t, log.String(), "back buffer target cannot alias")

	require.NoError(t, r.SetRenderTarget(fb))
	require.NoError(t, r.Draw(draw))
	assert.Equal(t, 1, strings.Count(log.String(), "also a render target"))

	// Discarded attachments are not written.
	log.Reset()
	require.NoError(t, r.SetRenderTarget(scratch))
	require.NoError(t, r.Draw(draw))
	assert.Empty(t, log.String())

	// Hazards are only reported, never rejected.
	log.Reset()
	require.NoError(t, r.SetRenderTarget(fb))
	require.NoError(t, r.Draw(&DrawCall{Pipeline: f.ps, Params: []*ParameterSet{f.params}, Count: 3}))
	assert.Empty(t, log.String())
}

func TestDrawHazardOff(t *testing.T) {
	if param.Debug {
		t.Skip("hazard checks are always on in debug builds")
	}
	r, _, _ := newTest(t)
	f := newDrawFixture(t, r)
	target := newTarget(t, r, TextureDesc{Format: RGBA8, Width: 4, Height: 4})
	fb, err := r.NewFramebuffer(&FramebufferDesc{
		Width:       4,
		Height:      4,
		Attachments: []Attachment{{Slot: Color0, Texture: target}},
	})
	require.NoError(t, err)
	b := f.bindings()
	b.Textures[0].Texture = target
	feedback, err := r.NewParameterSet(f.ps, 0, b)
	require.NoError(t, err)
	log := captureLog(t)
	require.NoError(t, r.SetRenderTarget(fb))
	require.NoError(t, r.Draw(&DrawCall{Pipeline: f.ps, Params: []*ParameterSet{feedback}, Count: 3}))
	assert.Empty(t, log.String())
}
