// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package render

import (
	"github.com/gogpu/gputypes"

	"github.com/gviegas/gfxcore/driver"
	"github.com/gviegas/gfxcore/status"
)

// Row stride alignment of buffer to texture copies.
const rowAlign = 256

// staging creates a host-visible buffer holding data.
func (r *Renderer) staging(op string, data []byte) (driver.Buffer, error) {
	buf, err := r.gpu.NewBuffer(int64(len(data)), true, gputypes.BufferUsageCopySrc)
	if err != nil {
		return nil, status.Wrap(op, status.SubsystemFailed, err)
	}
	if err := buf.Write(0, data); err != nil {
		buf.Destroy()
		return nil, status.Wrap(op, status.SubsystemFailed, err)
	}
	return buf, nil
}

// runUpload records copy commands into the secondary
// command list, submits it and waits for completion.
func (r *Renderer) runUpload(rec func(cl driver.CmdList)) error {
	if err := r.sec.reset(); err != nil {
		return err
	}
	rec(r.sec.cl)
	if err := r.sec.close(); err != nil {
		return err
	}
	if err := r.dev.submit(r.sec); err != nil {
		return err
	}
	return r.dev.wait()
}

// uploadBuffer copies data into dst at offset off.
// It returns once the copy has completed.
func (r *Renderer) uploadBuffer(dst driver.Buffer, off int64, data []byte) error {
	const op = "render.upload"
	if off < 0 || off+int64(len(data)) > dst.Cap() {
		return status.New(op, status.InvalidValue, "range [%d, %d) exceeds buffer size %d", off, off+int64(len(data)), dst.Cap())
	}
	if len(data) == 0 {
		return nil
	}
	stg, err := r.staging(op, data)
	if err != nil {
		return err
	}
	defer stg.Destroy()
	err = r.runUpload(func(cl driver.CmdList) {
		cl.Transition([]driver.Transition{{Buf: dst, LayoutBefore: driver.LCommon, LayoutAfter: driver.LCopyDst}})
		cl.CopyBuffer(&driver.BufferCopy{
			From:  stg,
			To:    dst,
			ToOff: off,
			Size:  int64(len(data)),
		})
		cl.Transition([]driver.Transition{{Buf: dst, LayoutBefore: driver.LCopyDst, LayoutAfter: driver.LGenericRead}})
	})
	if err == nil {
		driver.Logger().Debug("render: buffer upload", "offset", off, "size", len(data))
	}
	return err
}

// uploadTexture copies tightly packed pixel data into
// a level/layer of t.
// Rows are repacked to satisfy the copy alignment.
func (r *Renderer) uploadTexture(t *Texture, level, layer int, data []byte) error {
	const op = "render.upload"
	w := max(t.width>>level, 1)
	h := max(t.height>>level, 1)
	row := w * t.info.BytesPerPixel
	if len(data) != row*h {
		return status.New(op, status.InvalidValue, "%d bytes of data for %dx%d level %d", len(data), w, h, level)
	}
	stride := (row + rowAlign - 1) &^ (rowAlign - 1)
	packed := data
	if stride != row {
		packed = make([]byte, stride*h)
		for y := range h {
			copy(packed[y*stride:], data[y*row:(y+1)*row])
		}
	}
	stg, err := r.staging(op, packed)
	if err != nil {
		return err
	}
	defer stg.Destroy()
	err = r.runUpload(func(cl driver.CmdList) {
		cl.Transition([]driver.Transition{{Tex: t.tex, LayoutBefore: t.layout, LayoutAfter: driver.LCopyDst}})
		cl.CopyBufToTex(&driver.BufTexCopy{
			Buf:       stg,
			RowStride: int64(stride),
			Tex:       t.tex,
			Layer:     layer,
			Level:     level,
			Size:      driver.Dim3D{Width: w, Height: h, Depth: 1},
			DepthCopy: t.format.IsDepth(),
		})
		cl.Transition([]driver.Transition{{Tex: t.tex, LayoutBefore: driver.LCopyDst, LayoutAfter: driver.LGenericRead}})
	})
	if err != nil {
		return err
	}
	t.layout = driver.LGenericRead
	driver.Logger().Debug("render: texture upload", "level", level, "layer", layer, "size", len(data))
	return nil
}
