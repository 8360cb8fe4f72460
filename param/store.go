// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package param

import (
	"errors"

	"github.com/gviegas/gfxcore/driver"
	"github.com/gviegas/gfxcore/status"
)

// Ref refers to a shared buffer or texture.
type Ref uint64

// Refs is a table of shared resources.
type Refs interface {
	Valid(r Ref) bool
	Acquire(r Ref) error
	Release(r Ref) error
}

// Samplers is the global sampler table.
// Every sampler has a use count.
type Samplers interface {
	Len() int
	Acquire(i int)
	Release(i int)
}

// Slots reserves ranges of descriptor slots.
type Slots interface {
	Alloc(n int) (int, error)
	Free(first, n int)
}

// Env is where a Store acquires its resources.
type Env struct {
	Buffers  Refs
	Textures Refs
	Samplers Samplers
	Heap     Slots
}

// BlockBinding binds a block of a buffer to a
// UniformBlock slot.
// The buffer is seen as a sequence of blocks of Size
// bytes starting at Offset. Index selects one of them.
type BlockBinding struct {
	Slot   int
	Buffer Ref
	Offset int64
	Size   int64
	Index  int
}

// TextureBinding binds a texture and a sampler from the
// global sampler table to a Texture slot.
type TextureBinding struct {
	Slot    int
	Texture Ref
	Sampler int
}

// ConstantBinding binds a literal value to a Constant
// slot.
// Type may be left as zero, in which case the type of
// the slot's declaration is used.
type ConstantBinding struct {
	Slot int
	Type ConstType
	Data []byte
}

// BoundBlock is a uniform block in a Store.
// Desc is the descriptor slot holding it.
type BoundBlock struct {
	Slot, Loc, Desc int
	Buffer          Ref
	Offset, Size    int64
}

// BoundTexture is a texture in a Store.
type BoundTexture struct {
	Slot, Loc, Desc int
	SamplerLoc      int
	Texture         Ref
	Sampler         int
}

// BoundConstant is a constant in a Store.
// Its value is Scratch[Offset:Offset+Type.Size()].
type BoundConstant struct {
	Slot   int
	Type   ConstType
	Loc    int
	Offset int
}

// Store holds the resources bound to a parameter set.
type Store struct {
	Set       Set
	Blocks    []BoundBlock
	Textures  []BoundTexture
	Constants []BoundConstant
	// Scratch holds the raw bytes of every constant.
	Scratch []byte
	// FirstDesc and DescCount describe the range of
	// descriptor slots reserved from Env.Heap.
	FirstDesc, DescCount int

	env  Env
	live bool
}

// Allocate binds resources to the slots of set i of l.
// Slot numbers in the binding lists refer to l.Slots.
// Bindings that target Unbound slots are validated but
// otherwise ignored.
//
// All bindings are validated before anything is
// reserved or acquired, so a failed call has no effect
// on env.
func (s *Store) Allocate(env Env, l *Layout, i int, blocks []BlockBinding, textures []TextureBinding, constants []ConstantBinding) error {
	const op = "param.Allocate"
	if s.live {
		return status.New(op, status.InvalidOperation, "store already allocated")
	}
	if i < 0 || i >= len(l.Sets) {
		return status.New(op, status.InvalidValue, "set %d of %d", i, len(l.Sets))
	}
	set := l.Sets[i]
	cnt := set.SlotCount()
	seen := make(map[int]bool, len(blocks)+len(textures)+len(constants))
	slot := func(n int, kind Kind) (*Slot, error) {
		if rel := n - set.First; rel < 0 || rel >= cnt {
			return nil, status.New(op, status.InvalidValue, "slot %d not in set %d [%d, %d)", n, i, set.First, set.OnePastLast)
		}
		sl := &l.Slots[n]
		if sl.Kind != kind {
			return nil, status.New(op, status.InvalidEnum, "slot %d (%q) is a %v, not a %v", n, sl.Name, sl.Kind, kind)
		}
		if seen[n] {
			return nil, status.New(op, status.InvalidValue, "slot %d bound twice", n)
		}
		seen[n] = true
		return sl, nil
	}

	// Descriptor slots are ranked by declaration order
	// among the set's blocks and textures.
	rank := make([]int, cnt)
	for j, r := 0, 0; j < cnt; j++ {
		if l.Slots[set.First+j].Kind != Constant {
			rank[j] = r
			r++
		}
	}

	var bb []BoundBlock
	for _, b := range blocks {
		sl, err := slot(b.Slot, UniformBlock)
		if err != nil {
			return err
		}
		if b.Offset < 0 || b.Size <= 0 || b.Index < 0 {
			return status.New(op, status.InvalidValue, "slot %d: block offset %d, size %d, index %d", b.Slot, b.Offset, b.Size, b.Index)
		}
		if !env.Buffers.Valid(b.Buffer) {
			return status.New(op, status.InvalidObject, "slot %d: buffer", b.Slot)
		}
		if sl.Loc == Unbound {
			continue
		}
		bb = append(bb, BoundBlock{
			Slot:   b.Slot,
			Loc:    sl.Loc,
			Desc:   rank[b.Slot-set.First],
			Buffer: b.Buffer,
			Offset: b.Offset + b.Size*int64(b.Index),
			Size:   b.Size,
		})
	}

	var bt []BoundTexture
	for _, t := range textures {
		sl, err := slot(t.Slot, Texture)
		if err != nil {
			return err
		}
		if t.Sampler < 0 || t.Sampler >= env.Samplers.Len() {
			return status.New(op, status.InvalidValue, "slot %d: sampler %d of %d", t.Slot, t.Sampler, env.Samplers.Len())
		}
		if !env.Textures.Valid(t.Texture) {
			return status.New(op, status.InvalidObject, "slot %d: texture", t.Slot)
		}
		if sl.Loc == Unbound {
			continue
		}
		bt = append(bt, BoundTexture{
			Slot:       t.Slot,
			Loc:        sl.Loc,
			Desc:       rank[t.Slot-set.First],
			SamplerLoc: sl.SamplerLoc,
			Texture:    t.Texture,
			Sampler:    t.Sampler,
		})
	}

	var bc []BoundConstant
	var scratch []byte
	for _, c := range constants {
		sl, err := slot(c.Slot, Constant)
		if err != nil {
			return err
		}
		typ := c.Type
		if typ == 0 {
			typ = sl.Const
		}
		n := typ.Size()
		if n == 0 || typ != sl.Const {
			return status.New(op, status.InvalidEnum, "slot %d: constant type %v, declared %v", c.Slot, typ, sl.Const)
		}
		if len(c.Data) < n {
			return status.New(op, status.InvalidValue, "slot %d: %d bytes of data for %v", c.Slot, len(c.Data), typ)
		}
		if sl.Loc == Unbound {
			continue
		}
		bc = append(bc, BoundConstant{
			Slot:   c.Slot,
			Type:   typ,
			Loc:    sl.Loc,
			Offset: len(scratch),
		})
		scratch = append(scratch, c.Data[:n]...)
	}

	first, ndesc := -1, set.BlockCount()+set.SamplerCount()
	if ndesc > 0 {
		var err error
		if first, err = env.Heap.Alloc(ndesc); err != nil {
			return err
		}
	}
	// References were validated above, so Acquire
	// failing means the tables changed underneath.
	for j := range bb {
		bb[j].Desc += first
		if err := env.Buffers.Acquire(bb[j].Buffer); err != nil {
			driver.Logger().Error("param: acquiring bound buffer", "ref", bb[j].Buffer, "err", err)
		}
	}
	for j := range bt {
		bt[j].Desc += first
		if err := env.Textures.Acquire(bt[j].Texture); err != nil {
			driver.Logger().Error("param: acquiring bound texture", "ref", bt[j].Texture, "err", err)
		}
		env.Samplers.Acquire(bt[j].Sampler)
	}

	*s = Store{
		Set:       set,
		Blocks:    bb,
		Textures:  bt,
		Constants: bc,
		Scratch:   scratch,
		FirstDesc: first,
		DescCount: ndesc,
		env:       env,
		live:      true,
	}
	return nil
}

// Live reports whether s holds resources.
func (s *Store) Live() bool { return s.live }

// Release releases every resource acquired by Allocate.
// Only the first call after Allocate has any effect.
func (s *Store) Release() error {
	if !s.live {
		return nil
	}
	s.live = false
	var errs []error
	for _, b := range s.Blocks {
		errs = append(errs, s.env.Buffers.Release(b.Buffer))
	}
	for _, t := range s.Textures {
		errs = append(errs, s.env.Textures.Release(t.Texture))
		s.env.Samplers.Release(t.Sampler)
	}
	if s.DescCount > 0 {
		s.env.Heap.Free(s.FirstDesc, s.DescCount)
	}
	s.env = Env{}
	return errors.Join(errs...)
}

// Constant returns the bytes of constant i.
func (s *Store) Constant(i int) []byte {
	c := &s.Constants[i]
	return s.Scratch[c.Offset : c.Offset+c.Type.Size()]
}
