// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package render

import (
	"errors"
	"log/slog"
	"os"

	"github.com/gogpu/gpucontext"
	"github.com/pelletier/go-toml/v2"

	"github.com/gviegas/gfxcore/driver"
	"github.com/gviegas/gfxcore/status"
)

const (
	// The number of back buffers.
	BackBuffers = 2

	dflHeapSize      = 256
	dflRenderTargets = 16
	dflDepthTargets  = 8
	dflMaxSamplers   = 16
)

// Config is used to configure a Renderer.
type Config struct {
	// Name of the driver to use, matched as a case
	// insensitive substring. Empty means any.
	//
	// Default is "wgpu".
	Driver string `toml:"driver"`

	// Native backend of the driver (e.g., "vulkan",
	// "dx12", "noop"). Empty means the driver's choice.
	Backend string `toml:"backend"`

	// Window is the output surface. Its size is
	// queried at creation and after every Display.
	Window gpucontext.WindowProvider `toml:"-"`

	// Raw platform handles of Window, used as the
	// presentation target.
	Display uintptr `toml:"-"`
	Handle  uintptr `toml:"-"`

	// Format of the back buffers.
	//
	// Default is BGRA8SRGB.
	BackBufferFormat ColorFormat `toml:"back_buffer_format"`

	// Format of the depth buffer.
	//
	// Default is D24S8.
	DepthFormat ColorFormat `toml:"depth_format"`

	// Capacity of the shader resource heap.
	//
	// Default is 256.
	HeapSize int `toml:"heap_size"`

	// Capacity of the render target and depth/stencil
	// heaps. Back buffers and the depth buffer take
	// slots from these.
	//
	// Default is 16 and 8.
	RenderTargets int `toml:"render_targets"`
	DepthTargets  int `toml:"depth_targets"`

	// Maximum number of samplers in CreateSamplers.
	//
	// Default is 16.
	MaxSamplers int `toml:"max_samplers"`

	VSync bool `toml:"vsync"`

	// Check parameter hazards before each draw.
	// Always on in builds with the gfxdebug tag.
	Debug bool `toml:"debug"`

	// Clear color of the back buffer.
	//
	// Default is opaque black.
	ClearColor [4]float32 `toml:"clear_color"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Driver:           "wgpu",
		BackBufferFormat: BGRA8SRGB,
		DepthFormat:      D24S8,
		HeapSize:         dflHeapSize,
		RenderTargets:    dflRenderTargets,
		DepthTargets:     dflDepthTargets,
		MaxSamplers:      dflMaxSamplers,
		VSync:            true,
		ClearColor:       [4]float32{0, 0, 0, 1},
	}
}

// LoadConfig reads a TOML configuration file.
// Fields that the file omits keep their default values.
func LoadConfig(path string) (Config, error) {
	const op = "render.LoadConfig"
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		return cfg, &status.Error{Op: op, Code: status.InvalidValue, Err: err}
	}
	defer f.Close()
	dec := toml.NewDecoder(f).DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var sm *toml.StrictMissingError
		if errors.As(err, &sm) {
			return cfg, status.New(op, status.InvalidValue, "%s", sm.String())
		}
		// Decoding errors may wrap the InvalidEnum of
		// a bad format name.
		return cfg, &status.Error{Op: op, Code: status.InvalidValue, Err: err}
	}
	return cfg, nil
}

// validate checks the fields that New depends on.
func (c *Config) validate(lim *driver.Limits) error {
	const op = "render.New"
	if c.Window == nil {
		return status.New(op, status.InvalidValue, "nil Config.Window")
	}
	if c.BackBufferFormat.IsDepth() || !c.DepthFormat.IsDepth() {
		return status.New(op, status.InvalidValue, "back buffer format %v, depth format %v", c.BackBufferFormat, c.DepthFormat)
	}
	for _, f := range [2]ColorFormat{c.BackBufferFormat, c.DepthFormat} {
		if _, err := FormatInfo(f); err != nil {
			return err
		}
	}
	if c.RenderTargets < BackBuffers || c.DepthTargets < 1 {
		return status.New(op, status.InvalidValue, "%d render targets, %d depth targets", c.RenderTargets, c.DepthTargets)
	}
	if c.MaxSamplers < 1 || c.MaxSamplers > lim.MaxDescriptors {
		return status.New(op, status.InvalidValue, "max samplers %d", c.MaxSamplers)
	}
	return nil
}

// SetLogger sets the logger used by the renderer and
// its driver. A nil l disables logging.
func SetLogger(l *slog.Logger) { driver.SetLogger(l) }
