// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package driver

import (
	"errors"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// ErrCannotPresent means that the driver and/or device do not
// support presentation.
var ErrCannotPresent = errors.New("driver: presentation not supported")

// ErrWindow represents an error related to a specific window.
// This error usually indicates that a window misconfiguration
// is preventing correct operation. For instance, the driver
// may require a visible window to create a swapchain.
var ErrWindow = errors.New("driver: window-related error")

// ErrSwapchain represents an error related to a specific
// swapchain.
// This error usually indicates that changes to the window or
// compositor made the swapchain unusable.
var ErrSwapchain = errors.New("driver: swapchain-related error")

// Window identifies a native window.
// The provider reports the client area size, while
// Display and Handle are the raw platform handles
// used to create the presentation surface. Both
// handles may be zero for headless drivers.
type Window struct {
	gpucontext.WindowProvider
	Display uintptr
	Handle  uintptr
}

// PixelSize returns the client area size in physical
// pixels.
func (w Window) PixelSize() (width, height int) {
	width, height = w.Size()
	if sf := w.ScaleFactor(); sf > 0 && sf != 1 {
		width = int(float64(width)*sf + 0.5)
		height = int(float64(height)*sf + 0.5)
	}
	return
}

// SwapParam describes the configuration of a swapchain.
type SwapParam struct {
	Format gputypes.TextureFormat
	Count  int
	VSync  bool
}

// Swapchain is the interface that defines a n-buffered
// swapchain for presentation.
// To present, one calls Next to obtain the index of a
// texture to target, transitions it to LColorTarget,
// records commands as needed, transitions it to
// LPresent, submits these commands and then calls
// Present.
type Swapchain interface {
	Destroyer

	// Views returns the list of texture views that
	// comprises the swapchain.
	// The values remain valid as long as the
	// swapchain's Destroy or Recreate methods are
	// not called.
	Views() []TextureView

	// Next returns the index of the next writable
	// texture view.
	Next() (int, error)

	// Present presents the texture view identified
	// by index.
	Present(index int) error

	// Recreate recreates the swapchain with a new
	// size.
	// Views obtained before the call are invalid.
	Recreate(width, height int) error

	// Size returns the size of the views.
	Size() (width, height int)

	// Format returns the views' format.
	Format() gputypes.TextureFormat
}
