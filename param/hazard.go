// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package param

import (
	"github.com/gviegas/gfxcore/driver"
)

// Hazards returns the textures of s that are also in
// written, which is the list of textures attached to the
// current render target with their contents kept.
func (s *Store) Hazards(written []Ref) []BoundTexture {
	var hz []BoundTexture
	for _, t := range s.Textures {
		for _, w := range written {
			if t.Texture == w {
				hz = append(hz, t)
				break
			}
		}
	}
	return hz
}

// CheckHazards logs a warning for every texture of s
// that is read while also being written as a render
// target. It returns the number of such textures.
// It never fails.
func CheckHazards(s *Store, written []Ref) int {
	hz := s.Hazards(written)
	for _, t := range hz {
		driver.Logger().Warn("texture bound for reading is also a render target",
			"slot", t.Slot, "loc", t.Loc, "texture", uint64(t.Texture))
	}
	return len(hz)
}
