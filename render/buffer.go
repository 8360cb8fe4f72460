// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package render

import (
	"github.com/gogpu/gputypes"

	"github.com/gviegas/gfxcore/driver"
	"github.com/gviegas/gfxcore/internal/shared"
	"github.com/gviegas/gfxcore/status"
)

// Block is a region of a data buffer that can be bound
// to a uniform block parameter.
type Block struct {
	Offset, Size int64
}

// BufferDesc describes a buffer.
type BufferDesc struct {
	Size int64
	// Blocks is only used by data buffers.
	Blocks []Block
	// Immediate buffers are host visible and written
	// once, from Data, at creation. They cannot be
	// locked.
	Immediate bool
	// Initial contents. May be shorter than Size.
	Data []byte
}

// Buffer is a GPU buffer.
// Data buffers hold uniform blocks, geometry buffers
// hold vertices and indices.
type Buffer struct {
	r         *Renderer
	id        shared.ID
	buf       driver.Buffer
	size      int64
	geometry  bool
	immediate bool
	blocks    []Block
	shadow    []byte
	locked    bool
	dead      bool
}

// NewDataBuffer creates a buffer of uniform blocks.
func (r *Renderer) NewDataBuffer(desc *BufferDesc) (*Buffer, error) {
	const op = "render.NewDataBuffer"
	if len(desc.Blocks) == 0 {
		return nil, r.fail(status.New(op, status.InvalidValue, "no blocks"))
	}
	for _, b := range desc.Blocks {
		switch {
		case b.Offset < 0 || b.Size <= 0 || b.Offset+b.Size > desc.Size:
			return nil, r.fail(status.New(op, status.InvalidValue, "block [%d, %d) in buffer of size %d", b.Offset, b.Offset+b.Size, desc.Size))
		case r.limits.ConstantAlign > 0 && b.Offset%r.limits.ConstantAlign != 0:
			return nil, r.fail(status.New(op, status.InvalidValue, "block offset %d not aligned to %d", b.Offset, r.limits.ConstantAlign))
		case b.Size > int64(r.limits.MaxConstant):
			return nil, r.fail(status.New(op, status.InvalidValue, "block size %d exceeds %d", b.Size, r.limits.MaxConstant))
		}
	}
	b, err := r.newBuffer(op, desc, gputypes.BufferUsageUniform)
	if err != nil {
		return nil, r.fail(err)
	}
	b.blocks = append([]Block(nil), desc.Blocks...)
	return b, nil
}

// NewGeometryBuffer creates a buffer of vertices and
// indices.
func (r *Renderer) NewGeometryBuffer(desc *BufferDesc) (*Buffer, error) {
	const op = "render.NewGeometryBuffer"
	if len(desc.Blocks) != 0 {
		return nil, r.fail(status.New(op, status.InvalidValue, "geometry buffer with blocks"))
	}
	b, err := r.newBuffer(op, desc, gputypes.BufferUsageVertex|gputypes.BufferUsageIndex)
	if err != nil {
		return nil, r.fail(err)
	}
	b.geometry = true
	return b, nil
}

func (r *Renderer) newBuffer(op string, desc *BufferDesc, usg gputypes.BufferUsage) (*Buffer, error) {
	switch {
	case desc.Size <= 0:
		return nil, status.New(op, status.InvalidValue, "buffer size %d", desc.Size)
	case int64(len(desc.Data)) > desc.Size:
		return nil, status.New(op, status.InvalidValue, "%d bytes of data for buffer of size %d", len(desc.Data), desc.Size)
	case desc.Immediate && len(desc.Data) == 0:
		return nil, status.New(op, status.InvalidValue, "immediate buffer without data")
	}
	if !desc.Immediate {
		usg |= gputypes.BufferUsageCopyDst
	}
	buf, err := r.gpu.NewBuffer(desc.Size, desc.Immediate, usg)
	if err != nil {
		return nil, status.Wrap(op, status.SubsystemFailed, err)
	}
	if desc.Immediate {
		err = buf.Write(0, desc.Data)
		if err != nil {
			err = status.Wrap(op, status.SubsystemFailed, err)
		}
	} else {
		err = r.uploadBuffer(buf, 0, desc.Data)
	}
	if err != nil {
		buf.Destroy()
		return nil, err
	}
	b := &Buffer{
		r:         r,
		buf:       buf,
		size:      desc.Size,
		immediate: desc.Immediate,
	}
	b.id = r.bufs.Add(b)
	return b, nil
}

// Size returns the size of the buffer in bytes.
func (b *Buffer) Size() int64 { return b.size }

// Blocks returns the blocks of a data buffer.
func (b *Buffer) Blocks() []Block { return b.blocks }

// Lock returns a host copy of the buffer contents.
// The copy is uploaded by Unlock.
// Immediate buffers cannot be locked.
func (b *Buffer) Lock() ([]byte, error) {
	const op = "render.Buffer.Lock"
	switch {
	case b.dead:
		return nil, b.r.fail(status.New(op, status.InvalidObject, "destroyed buffer"))
	case b.immediate:
		return nil, b.r.fail(status.New(op, status.InvalidOperation, "immediate buffer"))
	case b.locked:
		return nil, b.r.fail(status.New(op, status.InvalidOperation, "buffer already locked"))
	}
	if b.shadow == nil {
		b.shadow = make([]byte, b.size)
	}
	b.locked = true
	return b.shadow, nil
}

// Unlock uploads the data written to the slice that
// Lock returned.
// It blocks until the upload completes.
func (b *Buffer) Unlock() error {
	const op = "render.Buffer.Unlock"
	switch {
	case b.dead:
		return b.r.fail(status.New(op, status.InvalidObject, "destroyed buffer"))
	case !b.locked:
		return b.r.fail(status.New(op, status.InvalidOperation, "buffer not locked"))
	}
	b.locked = false
	return b.r.fail(b.r.uploadBuffer(b.buf, 0, b.shadow))
}

// Destroy releases the buffer.
// The GPU buffer is destroyed once no parameter set
// refers to it.
func (b *Buffer) Destroy() {
	if b == nil || b.dead {
		return
	}
	b.dead = true
	if err := b.r.bufs.Release(b.id); err != nil {
		driver.Logger().Warn("render: Buffer.Destroy", "err", err)
	}
}

// release is called when the last reference is gone.
func (b *Buffer) release() {
	b.dead = true
	if b.buf != nil {
		b.buf.Destroy()
		b.buf = nil
	}
	b.shadow = nil
}
