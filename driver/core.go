// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package driver

import (
	"github.com/gogpu/gputypes"
)

// GPU is an open device.
// It creates every other driver object, and its Queue
// executes the commands recorded in them.
// Driver.Open returns the GPU.
type GPU interface {
	// Driver returns the Driver that owns the GPU.
	Driver() Driver

	// NewQueue returns the submission queue.
	// A GPU has exactly one queue. It fails with
	// ErrQueueTaken if the queue is in use.
	NewQueue() (Queue, error)

	// NewFence creates a new fence whose completed
	// value is zero.
	NewFence() (Fence, error)

	// NewCmdList creates a new command list.
	// The list is created closed.
	NewCmdList() (CmdList, error)

	// NewBuffer creates a new buffer.
	// If visible is set, the buffer can be written
	// by the CPU through Buffer.Write.
	NewBuffer(size int64, visible bool, usg gputypes.BufferUsage) (Buffer, error)

	// NewTexture creates a new texture.
	NewTexture(param *TexParam) (Texture, error)

	// NewSampler creates a new sampler.
	NewSampler(spln *Sampling) (Sampler, error)

	// NewShaderCode creates a new shader code from
	// a SPIR-V binary.
	NewShaderCode(spirv []byte) (ShaderCode, error)

	// NewBindLayout creates a new binding layout.
	NewBindLayout(entries []BindEntry) (BindLayout, error)

	// NewBindGroup creates a new binding group whose
	// resources match the entries of layout.
	NewBindGroup(layout BindLayout, res []BindRes) (BindGroup, error)

	// NewPipeLayout creates a new pipeline layout.
	// The position of each binding layout in sets is
	// the index used in CmdList.SetBindGroup.
	NewPipeLayout(sets []BindLayout) (PipeLayout, error)

	// NewPipeline creates a new graphics pipeline.
	NewPipeline(state *GraphState) (Pipeline, error)

	// NewSwapchain creates a new swapchain.
	// Only one swapchain can be associated with a
	// specific window at a time.
	NewSwapchain(win Window, param *SwapParam) (Swapchain, error)

	// WaitIdle blocks until all submitted work
	// completes execution.
	WaitIdle() error

	// Limits returns the device limits, which never
	// change while the GPU is open.
	Limits() Limits
}

// Destroyer wraps the Destroy method.
// Driver objects hold native resources that the GC does
// not track. They are released only by Destroy.
type Destroyer interface {
	Destroy()
}

// Queue is the interface that defines the submission
// queue of a GPU.
type Queue interface {
	Destroyer

	// Submit submits a batch of closed command lists
	// for execution, in order.
	// Lists must not be reset until the work they
	// contain has been fenced.
	Submit(cl []CmdList) error

	// Signal sets the fence's completed value to
	// value once every previously submitted list
	// completes execution.
	// value must be greater than any value
	// signaled before on f.
	Signal(f Fence, value uint64) error
}

// Fence is the interface that defines a monotonic
// synchronization primitive between the CPU and the GPU.
type Fence interface {
	Destroyer

	// Completed returns the last value that the
	// GPU has reached.
	Completed() uint64

	// Notify sends the outcome of waiting for value
	// to ch, once.
	// If the fence already reached value, the send
	// happens before Notify returns, so ch must be
	// buffered.
	Notify(value uint64, ch chan<- error)
}

// CmdList is the interface that defines a command list.
// Commands are recorded into command lists and later
// submitted to the Queue for execution. The usage is as
// follows: call Reset to open the list, record copy and
// transition commands, and render passes bracketed by
// BeginPass and EndPass, then call Close and, if it
// succeeds, Queue.Submit.
type CmdList interface {
	Destroyer

	// Reset opens the list for recording.
	// Commands recorded before the last Close are
	// discarded from the list, but commands already
	// submitted still execute.
	Reset() error

	// Close ends recording.
	Close() error

	// Transition records resource state transitions.
	// It must not be called during a render pass.
	Transition(t []Transition)

	// CopyBuffer copies data between buffers.
	// It must not be called during a render pass.
	CopyBuffer(param *BufferCopy)

	// CopyBufToTex copies data from a buffer to
	// a texture.
	// It must not be called during a render pass.
	CopyBufToTex(param *BufTexCopy)

	// BeginPass begins a render pass.
	BeginPass(pass *Pass)

	// EndPass ends the current render pass.
	EndPass()

	// SetViewport sets the bounds of the viewport.
	SetViewport(vp Viewport)

	// SetScissor sets the scissor rectangle.
	SetScissor(sciss Scissor)

	// SetPipeline sets the graphics pipeline.
	SetPipeline(pl Pipeline)

	// SetBindGroup sets the binding group at
	// index of the pipeline layout.
	SetBindGroup(index int, bg BindGroup)

	// SetVertexBuf sets one or more vertex buffers.
	SetVertexBuf(start int, buf []Buffer, off []int64)

	// SetIndexBuf sets the index buffer.
	// off must be aligned to 4 bytes.
	SetIndexBuf(format gputypes.IndexFormat, buf Buffer, off int64)

	// Draw draws primitives.
	// It must only be called during a render pass.
	Draw(vertCount, instCount, baseVert, baseInst int)

	// DrawIndexed draws indexed primitives.
	// It must only be called during a render pass.
	DrawIndexed(idxCount, instCount, baseIdx, vertOff, baseInst int)
}

// BufferCopy describes a copy between buffers.
type BufferCopy struct {
	From    Buffer
	FromOff int64
	To      Buffer
	ToOff   int64
	Size    int64
}

// BufTexCopy describes a copy from a buffer into a
// texture subresource.
// RowStride is given in bytes.
type BufTexCopy struct {
	Buf       Buffer
	BufOff    int64
	RowStride int64
	Tex       Texture
	Off       Off3D
	Layer     int
	Level     int
	Size      Dim3D
	DepthCopy bool
}

// Layout is the type of a resource state.
type Layout int

// Resource states.
const (
	LUndefined Layout = iota
	LCommon
	LColorTarget
	LDSTarget
	LCopyDst
	LGenericRead
	LShaderRead
	LPresent
)

// Transition represents a state transition of a single
// resource. Exactly one of Buf and Tex is set.
type Transition struct {
	Buf          Buffer
	Tex          Texture
	LayoutBefore Layout
	LayoutAfter  Layout
}

// LoadOp is the type of an attachment's load operation.
type LoadOp int

// Load operations.
const (
	LDontCare LoadOp = iota
	LClear
	LLoad
)

// StoreOp is the type of an attachment's store operation.
type StoreOp int

// Store operations.
const (
	SDontCare StoreOp = iota
	SStore
)

// ColorTarget describes a color attachment of a
// render pass.
type ColorTarget struct {
	View  TextureView
	Load  LoadOp
	Store StoreOp
	Clear [4]float32
}

// DSTarget describes the depth/stencil attachment of
// a render pass.
// In the Load and Store arrays, [0] is for depth and
// [1] is for stencil.
type DSTarget struct {
	View    TextureView
	Load    [2]LoadOp
	Store   [2]StoreOp
	Depth   float32
	Stencil uint32
}

// Pass describes the render targets of a render pass.
type Pass struct {
	Color []ColorTarget
	DS    *DSTarget
}

// Dim3D is a three-dimensional size.
type Dim3D struct {
	Width, Height, Depth int
}

// Off3D is a three-dimensional offset.
type Off3D struct {
	X, Y, Z int
}

// Buffer is the interface that defines a GPU buffer.
type Buffer interface {
	Destroyer

	// Visible returns whether the buffer is host
	// visible.
	Visible() bool

	// Write copies p into the buffer at offset off.
	// It fails if the buffer is not host visible or
	// if the range is out of bounds.
	Write(off int64, p []byte) error

	// Cap returns the capacity of the buffer in
	// bytes.
	Cap() int64
}

// TexParam describes the configuration of a texture.
type TexParam struct {
	Format  gputypes.TextureFormat
	Size    Dim3D
	Layers  int
	Levels  int
	Samples int
	Usage   gputypes.TextureUsage
}

// Texture is the interface that defines a GPU texture.
type Texture interface {
	Destroyer

	// NewView creates a new view of the texture.
	NewView(layer, layers, level, levels int) (TextureView, error)

	// Param returns the parameters used to create
	// the texture.
	Param() TexParam
}

// TextureView is the interface that defines a view
// of a texture subresource range.
type TextureView interface {
	Destroyer

	// Texture returns the texture that the view
	// refers to.
	Texture() Texture
}

// Sampling describes the configuration of a sampler.
// If Cmp is the zero value, the sampler is not a
// comparison sampler.
type Sampling struct {
	Min, Mag, Mipmap gputypes.FilterMode
	AddrU            gputypes.AddressMode
	AddrV            gputypes.AddressMode
	AddrW            gputypes.AddressMode
	MaxAniso         int
	Cmp              gputypes.CompareFunction
	MinLOD, MaxLOD   float32
	LODBias          float32
}

// Sampler is the interface that defines a texture
// sampler.
type Sampler interface {
	Destroyer
}

// ShaderCode is the interface that defines a shader binary
// for execution in a programmable pipeline stage.
type ShaderCode interface {
	Destroyer
}

// ShaderFunc specifies a function within a shader binary.
type ShaderFunc struct {
	Code ShaderCode
	Name string
}

// Stage is a mask of programmable stages.
type Stage int

// Stages.
const (
	SVertex Stage = 1 << iota
	SFragment
)

// DescType is the type of a descriptor.
type DescType int

// Descriptor types.
const (
	// Constant buffer range.
	DConstant DescType = iota
	// Sampled texture.
	DTexture
	// Texture sampler.
	DSampler
	// Comparison sampler.
	DCmpSampler
)

// BindEntry describes a single binding of a BindLayout.
type BindEntry struct {
	Type   DescType
	Stages Stage
	Nr     int
}

// BindRes identifies the resource bound to the entry
// whose Nr matches.
// Buf, Off and Size are used by DConstant entries,
// View by DTexture entries and Splr by sampler
// entries.
type BindRes struct {
	Nr   int
	Buf  Buffer
	Off  int64
	Size int64
	View TextureView
	Splr Sampler
}

// BindLayout is the interface that defines the
// layout of a binding group.
type BindLayout interface {
	Destroyer
}

// BindGroup is the interface that defines a set of
// resources bound to the entries of a BindLayout.
type BindGroup interface {
	Destroyer
}

// PipeLayout is the interface that defines the
// binding layouts used by a pipeline.
type PipeLayout interface {
	Destroyer
}

// GraphState defines the state of a graphics pipeline.
type GraphState struct {
	VertFunc   ShaderFunc
	FragFunc   ShaderFunc
	Layout     PipeLayout
	Input      []gputypes.VertexBufferLayout
	Topology   gputypes.PrimitiveTopology
	Cull       gputypes.CullMode
	Clockwise  bool
	Samples    int
	DepthTest  bool
	DepthWrite bool
	DepthCmp   gputypes.CompareFunction
	ColorFmt   []gputypes.TextureFormat
	DSFmt      gputypes.TextureFormat
	Blend      []*gputypes.BlendState
}

// Pipeline is the interface that defines a graphics
// pipeline.
type Pipeline interface {
	Destroyer
}

// Viewport defines the bounds of a viewport.
type Viewport struct {
	X, Y, Width, Height, Znear, Zfar float32
}

// Scissor defines a scissor rectangle.
type Scissor struct {
	X, Y, Width, Height int
}

// HeapKind identifies a kind of descriptor table.
type HeapKind int

// Descriptor table kinds.
const (
	HRenderTarget HeapKind = iota
	HDepthStencil
	HShaderResource
	HSampler
)

// Limits describes implementation limits.
type Limits struct {
	// Maximum number of slots in a descriptor table.
	MaxDescriptors int
	// Size in bytes of a descriptor, per HeapKind.
	DescStride [4]int64
	// Maximum number of binding groups in a
	// pipeline layout.
	MaxBindGroups int
	// Per-stage limits.
	MaxTextures int
	MaxSamplers int
	MaxConstant int
	// Required alignment of constant buffer ranges.
	ConstantAlign int64
	// Maximum width/height of a texture.
	MaxTexture2D int
	// Maximum number of texture layers.
	MaxLayers int
}
