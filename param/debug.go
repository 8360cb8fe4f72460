// Copyright 2023 Gustavo C. Viegas. All rights reserved.

//go:build gfxdebug

package param

// Debug is set when building with the gfxdebug tag.
const Debug = true
