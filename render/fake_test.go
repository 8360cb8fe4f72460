// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package render

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/gviegas/gfxcore/driver"
)

// fakeGPU is an in-memory driver.GPU that tracks every
// object it creates.
// Creation of the nth object of a given kind can be
// made to fail.
type fakeGPU struct {
	mu   sync.Mutex
	live map[*fakeRes]bool
	// created counts creations per kind.
	created map[string]int
	// fail maps a kind to the creation (1-based) that
	// must fail.
	fail map[string]int
	// destroyedTwice counts Destroy calls on objects
	// that were already destroyed.
	destroyedTwice int

	queueTaken bool
	// lagging fences complete only when Notify is
	// called.
	lagging   bool
	submits   int
	failNext  bool
	recreates int
}

var errFake = errors.New("fake: injected failure")

func newFakeGPU() *fakeGPU {
	return &fakeGPU{
		live:    make(map[*fakeRes]bool),
		created: make(map[string]int),
		fail:    make(map[string]int),
	}
}

type fakeRes struct {
	g    *fakeGPU
	kind string
	dead bool
}

func (r *fakeRes) Destroy() {
	r.g.mu.Lock()
	defer r.g.mu.Unlock()
	if r.dead {
		r.g.destroyedTwice++
		return
	}
	r.dead = true
	delete(r.g.live, r)
}

// add registers a new object of the given kind, unless
// its creation is set to fail.
func (g *fakeGPU) add(r *fakeRes, kind string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created[kind]++
	if n, ok := g.fail[kind]; ok && n == g.created[kind] {
		return fmt.Errorf("%w (%s #%d)", errFake, kind, n)
	}
	*r = fakeRes{g: g, kind: kind}
	g.live[r] = true
	return nil
}

// count returns the number of live objects of kind.
// An empty kind counts all of them.
func (g *fakeGPU) count(kind string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for r := range g.live {
		if kind == "" || r.kind == kind {
			n++
		}
	}
	return n
}

type fakeDriver struct{}

func (fakeDriver) Open() (driver.GPU, error) { return nil, errors.New("fake: not openable") }
func (fakeDriver) Name() string              { return "fake" }
func (fakeDriver) Close()                    {}

func (g *fakeGPU) Driver() driver.Driver { return fakeDriver{} }

func (g *fakeGPU) NewQueue() (driver.Queue, error) {
	if g.queueTaken {
		return nil, driver.ErrQueueTaken
	}
	q := &fakeQueue{}
	if err := g.add(&q.fakeRes, "queue"); err != nil {
		return nil, err
	}
	g.queueTaken = true
	return q, nil
}

func (g *fakeGPU) NewFence() (driver.Fence, error) {
	f := &fakeFence{}
	if err := g.add(&f.fakeRes, "fence"); err != nil {
		return nil, err
	}
	return f, nil
}

func (g *fakeGPU) NewCmdList() (driver.CmdList, error) {
	c := &fakeCmdList{}
	if err := g.add(&c.fakeRes, "cmdlist"); err != nil {
		return nil, err
	}
	return c, nil
}

func (g *fakeGPU) NewBuffer(size int64, visible bool, usg gputypes.BufferUsage) (driver.Buffer, error) {
	b := &fakeBuffer{data: make([]byte, size), visible: visible, usage: usg}
	if err := g.add(&b.fakeRes, "buffer"); err != nil {
		return nil, err
	}
	return b, nil
}

func (g *fakeGPU) NewTexture(param *driver.TexParam) (driver.Texture, error) {
	t := &fakeTexture{param: *param}
	if err := g.add(&t.fakeRes, "texture"); err != nil {
		return nil, err
	}
	return t, nil
}

func (g *fakeGPU) NewSampler(spln *driver.Sampling) (driver.Sampler, error) {
	s := &fakeSampler{spln: *spln}
	if err := g.add(&s.fakeRes, "sampler"); err != nil {
		return nil, err
	}
	return s, nil
}

func (g *fakeGPU) NewShaderCode(spirv []byte) (driver.ShaderCode, error) {
	s := &fakeShader{}
	if err := g.add(&s.fakeRes, "shader"); err != nil {
		return nil, err
	}
	return s, nil
}

func (g *fakeGPU) NewBindLayout(entries []driver.BindEntry) (driver.BindLayout, error) {
	l := &fakeBindLayout{entries: entries}
	if err := g.add(&l.fakeRes, "bindlayout"); err != nil {
		return nil, err
	}
	return l, nil
}

func (g *fakeGPU) NewBindGroup(layout driver.BindLayout, res []driver.BindRes) (driver.BindGroup, error) {
	b := &fakeBindGroup{layout: layout.(*fakeBindLayout), res: res}
	if err := g.add(&b.fakeRes, "bindgroup"); err != nil {
		return nil, err
	}
	return b, nil
}

func (g *fakeGPU) NewPipeLayout(sets []driver.BindLayout) (driver.PipeLayout, error) {
	l := &fakePipeLayout{sets: sets}
	if err := g.add(&l.fakeRes, "pipelayout"); err != nil {
		return nil, err
	}
	return l, nil
}

func (g *fakeGPU) NewPipeline(state *driver.GraphState) (driver.Pipeline, error) {
	p := &fakePipeline{state: *state}
	if err := g.add(&p.fakeRes, "pipeline"); err != nil {
		return nil, err
	}
	return p, nil
}

func (g *fakeGPU) NewSwapchain(win driver.Window, param *driver.SwapParam) (driver.Swapchain, error) {
	s := &fakeSwapchain{param: *param, cur: -1}
	if err := g.add(&s.fakeRes, "swapchain"); err != nil {
		return nil, err
	}
	w, h := win.PixelSize()
	s.configure(w, h)
	return s, nil
}

func (g *fakeGPU) WaitIdle() error { return nil }

func (g *fakeGPU) Limits() driver.Limits {
	return driver.Limits{
		MaxDescriptors: 1 << 16,
		DescStride:     [4]int64{32, 32, 64, 16},
		MaxBindGroups:  4,
		MaxTextures:    16,
		MaxSamplers:    16,
		MaxConstant:    1 << 16,
		ConstantAlign:  256,
		MaxTexture2D:   8192,
		MaxLayers:      256,
	}
}

type fakeQueue struct{ fakeRes }

func (q *fakeQueue) Submit(cl []driver.CmdList) error {
	for _, c := range cl {
		if c.(*fakeCmdList).open {
			return errors.New("fake: submitting open command list")
		}
	}
	q.g.submits++
	return nil
}

func (q *fakeQueue) Signal(f driver.Fence, value uint64) error {
	ff := f.(*fakeFence)
	ff.mu.Lock()
	defer ff.mu.Unlock()
	ff.signaled = value
	if !q.g.lagging {
		ff.completed = value
	}
	return nil
}

func (q *fakeQueue) Destroy() {
	q.g.queueTaken = false
	q.fakeRes.Destroy()
}

type fakeFence struct {
	fakeRes
	mu        sync.Mutex
	signaled  uint64
	completed uint64
	notified  int
}

func (f *fakeFence) Completed() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

func (f *fakeFence) Notify(value uint64, ch chan<- error) {
	f.mu.Lock()
	f.notified++
	f.mu.Unlock()
	go func() {
		f.mu.Lock()
		f.completed = max(f.completed, value)
		f.mu.Unlock()
		ch <- nil
	}()
}

type fakeCmdList struct {
	fakeRes
	open bool
	cmds []string
}

func (c *fakeCmdList) rec(format string, args ...any) {
	c.cmds = append(c.cmds, fmt.Sprintf(format, args...))
}

func (c *fakeCmdList) Reset() error {
	c.open = true
	c.cmds = nil
	return nil
}

func (c *fakeCmdList) Close() error {
	if !c.open {
		return errors.New("fake: closing closed command list")
	}
	c.open = false
	return nil
}

func (c *fakeCmdList) Transition(t []driver.Transition) {
	for _, x := range t {
		c.rec("transition %d->%d", x.LayoutBefore, x.LayoutAfter)
	}
}

// CopyBuffer copies at record time.
func (c *fakeCmdList) CopyBuffer(param *driver.BufferCopy) {
	from, to := param.From.(*fakeBuffer), param.To.(*fakeBuffer)
	copy(to.data[param.ToOff:param.ToOff+param.Size], from.data[param.FromOff:])
	c.rec("copy buffer %d", param.Size)
}

func (c *fakeCmdList) CopyBufToTex(param *driver.BufTexCopy) {
	tex := param.Tex.(*fakeTexture)
	tex.copies = append(tex.copies, *param)
	tex.data = append([]byte(nil), param.Buf.(*fakeBuffer).data...)
	c.rec("copy texture level %d layer %d", param.Level, param.Layer)
}

func (c *fakeCmdList) BeginPass(pass *driver.Pass) {
	c.rec("begin pass %d colors, load %d", len(pass.Color), loadOf(pass))
}

func loadOf(p *driver.Pass) driver.LoadOp {
	if len(p.Color) > 0 {
		return p.Color[0].Load
	}
	return p.DS.Load[0]
}

func (c *fakeCmdList) EndPass() { c.rec("end pass") }

func (c *fakeCmdList) SetViewport(vp driver.Viewport) { c.rec("viewport %gx%g", vp.Width, vp.Height) }

func (c *fakeCmdList) SetScissor(sciss driver.Scissor) { c.rec("scissor") }

func (c *fakeCmdList) SetPipeline(pl driver.Pipeline) { c.rec("pipeline") }

func (c *fakeCmdList) SetBindGroup(i int, _ driver.BindGroup) { c.rec("bind group %d", i) }

func (c *fakeCmdList) SetVertexBuf(start int, buf []driver.Buffer, off []int64) {
	c.rec("vertex buffers %d", len(buf))
}

func (c *fakeCmdList) SetIndexBuf(format gputypes.IndexFormat, buf driver.Buffer, off int64) {
	c.rec("index buffer")
}

func (c *fakeCmdList) Draw(vertCount, instCount, baseVert, baseInst int) {
	c.rec("draw %d %d", vertCount, instCount)
}

func (c *fakeCmdList) DrawIndexed(idxCount, instCount, baseIdx, vertOff, baseInst int) {
	c.rec("draw indexed %d %d", idxCount, instCount)
}

type fakeBuffer struct {
	fakeRes
	data    []byte
	visible bool
	usage   gputypes.BufferUsage
}

func (b *fakeBuffer) Visible() bool { return b.visible }

func (b *fakeBuffer) Write(off int64, p []byte) error {
	if !b.visible {
		return errors.New("fake: buffer not visible")
	}
	if off < 0 || off+int64(len(p)) > int64(len(b.data)) {
		return errors.New("fake: write out of bounds")
	}
	copy(b.data[off:], p)
	return nil
}

func (b *fakeBuffer) Cap() int64 { return int64(len(b.data)) }

type fakeTexture struct {
	fakeRes
	param  driver.TexParam
	copies []driver.BufTexCopy
	data   []byte
}

func (t *fakeTexture) NewView(layer, layers, level, levels int) (driver.TextureView, error) {
	if layer < 0 || layer+layers > max(t.param.Layers, 1) || level < 0 || level+levels > max(t.param.Levels, 1) {
		return nil, errors.New("fake: view out of range")
	}
	v := &fakeView{tex: t}
	if err := t.g.add(&v.fakeRes, "view"); err != nil {
		return nil, err
	}
	return v, nil
}

func (t *fakeTexture) Param() driver.TexParam { return t.param }

type fakeView struct {
	fakeRes
	tex *fakeTexture
}

func (v *fakeView) Texture() driver.Texture { return v.tex }

type fakeSampler struct {
	fakeRes
	spln driver.Sampling
}

type fakeShader struct{ fakeRes }

type fakeBindLayout struct {
	fakeRes
	entries []driver.BindEntry
}

type fakeBindGroup struct {
	fakeRes
	layout *fakeBindLayout
	res    []driver.BindRes
}

type fakePipeLayout struct {
	fakeRes
	sets []driver.BindLayout
}

type fakePipeline struct {
	fakeRes
	state driver.GraphState
}

type fakeSwapchain struct {
	fakeRes
	param         driver.SwapParam
	texs          []*fakeTexture
	views         []driver.TextureView
	width, height int
	cur           int
	presented     []int
}

func (s *fakeSwapchain) configure(w, h int) {
	s.width, s.height = w, h
	s.texs = make([]*fakeTexture, s.param.Count)
	s.views = make([]driver.TextureView, s.param.Count)
	for i := range s.texs {
		t := &fakeTexture{param: driver.TexParam{
			Format: s.param.Format,
			Size:   driver.Dim3D{Width: w, Height: h, Depth: 1},
		}}
		t.fakeRes = fakeRes{g: s.g, kind: "backbuffer"}
		s.g.live[&t.fakeRes] = true
		v := &fakeView{tex: t}
		v.fakeRes = fakeRes{g: s.g, kind: "backbuffer"}
		s.g.live[&v.fakeRes] = true
		s.texs[i] = t
		s.views[i] = v
	}
}

func (s *fakeSwapchain) release() {
	for i := range s.texs {
		s.views[i].Destroy()
		s.texs[i].Destroy()
	}
	s.texs, s.views = nil, nil
}

func (s *fakeSwapchain) Views() []driver.TextureView { return s.views }

func (s *fakeSwapchain) Next() (int, error) {
	if s.g.failNext {
		return -1, driver.ErrSwapchain
	}
	s.cur = (s.cur + 1) % len(s.views)
	return s.cur, nil
}

func (s *fakeSwapchain) Present(index int) error {
	if index != s.cur {
		return driver.ErrCannotPresent
	}
	s.presented = append(s.presented, index)
	return nil
}

func (s *fakeSwapchain) Recreate(width, height int) error {
	s.release()
	s.configure(width, height)
	s.cur = -1
	s.g.recreates++
	return nil
}

func (s *fakeSwapchain) Size() (width, height int) { return s.width, s.height }

func (s *fakeSwapchain) Format() gputypes.TextureFormat { return s.param.Format }

func (s *fakeSwapchain) Destroy() {
	s.release()
	s.fakeRes.Destroy()
}
