// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package render

import (
	"strings"

	"github.com/gogpu/gputypes"

	"github.com/gviegas/gfxcore/status"
)

// ColorFormat is the format of a texture or render
// target.
type ColorFormat int

// Color formats.
const (
	RGBA8 ColorFormat = iota + 1
	RGBA8SRGB
	BGRA8
	BGRA8SRGB
	R8
	RG8
	RGBA16F
	RGBA32F
	R32F
	D16
	D24S8
	D32F
)

// Format describes a ColorFormat.
type Format struct {
	Name          string
	BytesPerPixel int
	Native        gputypes.TextureFormat
}

var formats = [...]Format{
	RGBA8:     {"rgba8", 4, gputypes.TextureFormatRGBA8Unorm},
	RGBA8SRGB: {"rgba8_srgb", 4, gputypes.TextureFormatRGBA8UnormSrgb},
	BGRA8:     {"bgra8", 4, gputypes.TextureFormatBGRA8Unorm},
	BGRA8SRGB: {"bgra8_srgb", 4, gputypes.TextureFormatBGRA8UnormSrgb},
	R8:        {"r8", 1, gputypes.TextureFormatR8Unorm},
	RG8:       {"rg8", 2, gputypes.TextureFormatRG8Unorm},
	RGBA16F:   {"rgba16f", 8, gputypes.TextureFormatRGBA16Float},
	RGBA32F:   {"rgba32f", 16, gputypes.TextureFormatRGBA32Float},
	R32F:      {"r32f", 4, gputypes.TextureFormatR32Float},
	D16:       {"d16", 2, gputypes.TextureFormatDepth16Unorm},
	D24S8:     {"d24s8", 4, gputypes.TextureFormatDepth24PlusStencil8},
	D32F:      {"d32f", 4, gputypes.TextureFormatDepth32Float},
}

// FormatInfo returns the description of f.
// It fails with status.InvalidEnum if f is not a valid
// ColorFormat.
func FormatInfo(f ColorFormat) (Format, error) {
	if f <= 0 || int(f) >= len(formats) {
		return Format{}, status.New("render.FormatInfo", status.InvalidEnum, "color format %d", int(f))
	}
	return formats[f], nil
}

// IsDepth reports whether f is a depth/stencil format.
func (f ColorFormat) IsDepth() bool {
	fi, err := FormatInfo(f)
	return err == nil && fi.Native.IsDepthStencil()
}

// IsSRGB reports whether f is a sRGB format.
func (f ColorFormat) IsSRGB() bool {
	fi, err := FormatInfo(f)
	return err == nil && fi.Native.IsSrgb()
}

func (f ColorFormat) String() string {
	if fi, err := FormatInfo(f); err == nil {
		return fi.Name
	}
	return "invalid format"
}

// MarshalText implements encoding.TextMarshaler.
func (f ColorFormat) MarshalText() ([]byte, error) {
	fi, err := FormatInfo(f)
	if err != nil {
		return nil, err
	}
	return []byte(fi.Name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *ColorFormat) UnmarshalText(text []byte) error {
	s := strings.ToLower(string(text))
	for i := 1; i < len(formats); i++ {
		if formats[i].Name == s {
			*f = ColorFormat(i)
			return nil
		}
	}
	return status.New("render.ColorFormat", status.InvalidEnum, "unknown format %q", s)
}
