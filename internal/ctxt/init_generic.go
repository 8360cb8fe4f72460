// Copyright 2023 Gustavo C. Viegas. All rights reserved.

//go:build !(js && wasm)

package ctxt

import (
	_ "github.com/gviegas/gfxcore/driver/wgpu"
)
