// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package render

import (
	"github.com/gviegas/gfxcore/status"
)

// Value identifies a renderer property.
type Value int

// Values.
const (
	BackBufferWidth Value = iota + 1
	BackBufferHeight
	// Index of the back buffer being recorded.
	FrameIndex
	// Last value signaled on the frame fence.
	FenceValue
	// Capacity and use of the shader resource heap.
	HeapCapacity
	HeapUsed
	SamplerCount
	MaxTextureSize
	DisplayedFrames
	// Render target descriptor handle of the back
	// buffer being recorded.
	BackBufferDescriptor
)

// Query returns the value of a renderer property.
// It fails with status.InvalidEnum if v is unknown.
func (r *Renderer) Query(v Value) (int64, error) {
	switch v {
	case BackBufferWidth:
		return int64(r.width), nil
	case BackBufferHeight:
		return int64(r.height), nil
	case FrameIndex:
		return int64(r.cur), nil
	case FenceValue:
		return int64(r.dev.value), nil
	case HeapCapacity:
		return int64(r.srv.Cap()), nil
	case HeapUsed:
		return int64(r.srv.Len()), nil
	case SamplerCount:
		return int64(r.splr.Len()), nil
	case MaxTextureSize:
		return int64(r.limits.MaxTexture2D), nil
	case DisplayedFrames:
		return int64(r.frames), nil
	case BackBufferDescriptor:
		if r.stale {
			return 0, r.fail(status.New("render.Query", status.InvalidOperation, "back buffers unavailable"))
		}
		return int64(r.rtv.Handle(r.back + r.cur)), nil
	}
	return 0, r.fail(status.New("render.Query", status.InvalidEnum, "value %d", int(v)))
}
