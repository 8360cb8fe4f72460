// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package render

import (
	"math/bits"

	"github.com/gogpu/gputypes"

	"github.com/gviegas/gfxcore/driver"
	"github.com/gviegas/gfxcore/internal/shared"
	"github.com/gviegas/gfxcore/status"
)

const (
	sampledUsage      = gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst
	renderTargetUsage = gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding
)

// TextureDesc describes a texture.
// Zero Levels, Layers and Samples mean one.
type TextureDesc struct {
	Format        ColorFormat
	Width, Height int
	Levels        int
	Layers        int
	Samples       int
	// Target textures can be attached to framebuffers.
	// Depth formats are always targets.
	Target bool
}

// Texture is a 2D texture.
type Texture struct {
	r    *Renderer
	id   shared.ID
	tex  driver.Texture
	view driver.TextureView

	format ColorFormat
	info   Format
	// layout is the current state of every
	// subresource.
	layout driver.Layout

	width, height  int
	levels, layers int
	samples        int
	target         bool
	dead           bool
}

// NewTexture creates a new texture.
// Its contents are undefined until uploaded or
// rendered to.
func (r *Renderer) NewTexture(desc *TextureDesc) (*Texture, error) {
	t, err := r.newTexture(desc)
	return t, r.fail(err)
}

func (r *Renderer) newTexture(desc *TextureDesc) (*Texture, error) {
	const op = "render.NewTexture"
	fi, err := FormatInfo(desc.Format)
	if err != nil {
		return nil, err
	}
	d := *desc
	d.Levels = max(d.Levels, 1)
	d.Layers = max(d.Layers, 1)
	d.Samples = max(d.Samples, 1)
	d.Target = d.Target || d.Format.IsDepth()
	switch {
	case d.Width <= 0 || d.Height <= 0 || d.Width > r.limits.MaxTexture2D || d.Height > r.limits.MaxTexture2D:
		return nil, status.New(op, status.InvalidValue, "texture size %dx%d", d.Width, d.Height)
	case d.Levels > bits.Len(uint(max(d.Width, d.Height))):
		return nil, status.New(op, status.InvalidValue, "%d levels for %dx%d texture", d.Levels, d.Width, d.Height)
	case d.Layers > r.limits.MaxLayers:
		return nil, status.New(op, status.InvalidValue, "%d layers", d.Layers)
	case d.Samples != 1 && d.Samples != 4:
		return nil, status.New(op, status.InvalidValue, "%d samples", d.Samples)
	case d.Samples > 1 && (d.Levels > 1 || !d.Target):
		return nil, status.New(op, status.InvalidValue, "multisample texture must be a single level target")
	}
	usg := sampledUsage
	if d.Target {
		usg |= renderTargetUsage
	}
	tex, err := r.gpu.NewTexture(&driver.TexParam{
		Format:  fi.Native,
		Size:    driver.Dim3D{Width: d.Width, Height: d.Height, Depth: 1},
		Layers:  d.Layers,
		Levels:  d.Levels,
		Samples: d.Samples,
		Usage:   usg,
	})
	if err != nil {
		return nil, status.Wrap(op, status.SubsystemFailed, err)
	}
	view, err := tex.NewView(0, d.Layers, 0, d.Levels)
	if err != nil {
		tex.Destroy()
		return nil, status.Wrap(op, status.SubsystemFailed, err)
	}
	t := &Texture{
		r:       r,
		tex:     tex,
		view:    view,
		format:  d.Format,
		info:    fi,
		layout:  driver.LCommon,
		width:   d.Width,
		height:  d.Height,
		levels:  d.Levels,
		layers:  d.Layers,
		samples: d.Samples,
		target:  d.Target,
	}
	t.id = r.texs.Add(t)
	return t, nil
}

// Size returns the size of the texture's first level.
func (t *Texture) Size() (width, height int) { return t.width, t.height }

// Format returns the format of the texture.
func (t *Texture) Format() ColorFormat { return t.format }

// Upload replaces the contents of a level/layer with
// data, which must be tightly packed.
// It blocks until the copy completes.
func (t *Texture) Upload(level, layer int, data []byte) error {
	const op = "render.Texture.Upload"
	switch {
	case t.dead:
		return t.r.fail(status.New(op, status.InvalidObject, "destroyed texture"))
	case t.samples > 1 || t.format.IsDepth():
		return t.r.fail(status.New(op, status.InvalidOperation, "texture cannot be uploaded to"))
	case level < 0 || level >= t.levels || layer < 0 || layer >= t.layers:
		return t.r.fail(status.New(op, status.InvalidValue, "level %d, layer %d", level, layer))
	}
	return t.r.fail(t.r.uploadTexture(t, level, layer, data))
}

// Destroy releases the texture.
// The GPU texture is destroyed once no parameter set or
// framebuffer refers to it.
func (t *Texture) Destroy() {
	if t == nil || t.dead {
		return
	}
	t.dead = true
	if err := t.r.texs.Release(t.id); err != nil {
		driver.Logger().Warn("render: Texture.Destroy", "err", err)
	}
}

func (t *Texture) release() {
	t.dead = true
	if t.tex != nil {
		t.view.Destroy()
		t.tex.Destroy()
		t.tex, t.view = nil, nil
	}
}
