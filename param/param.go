// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package param resolves shader parameter declarations
// into binding locations and stores the resources bound
// to them.
//
// A pipeline declares its parameters as a list of sets.
// Each set is a list of declarations of kind Constant,
// UniformBlock or Texture. Resolve assigns every
// declaration a slot (its position in the pipeline's
// flat slot space) and a location (its binding number
// within the set), producing a Layout.
// A Store then binds actual resources to a set's slots.
package param

import (
	"github.com/gviegas/gfxcore/driver"
	"github.com/gviegas/gfxcore/status"
)

// Kind is the kind of a parameter declaration.
type Kind int

// Parameter kinds.
const (
	Constant Kind = iota + 1
	UniformBlock
	Texture
)

func (k Kind) String() string {
	switch k {
	case Constant:
		return "constant"
	case UniformBlock:
		return "uniform block"
	case Texture:
		return "texture"
	}
	return "invalid kind"
}

// Unbound is the location of a declaration that is not
// visible to any shader stage.
const Unbound = -1

// Decl declares a parameter.
type Decl struct {
	Kind Kind
	Name string
	// Const is the type of a Constant declaration.
	// It is ignored for other kinds.
	Const ConstType
	// Stages is the set of shader stages that access
	// the parameter. If zero, the parameter is Unbound.
	Stages driver.Stage
	// Compare indicates that a Texture is sampled with
	// a depth comparison sampler.
	Compare bool
}

// SetDesc describes a parameter set.
type SetDesc struct {
	Decls []Decl
	// Static sets are bound once, when the pipeline is
	// created, rather than per draw.
	Static bool
}

// Set is a contiguous range of slots resolved from one
// SetDesc.
type Set struct {
	First              int
	OnePastLast        int
	FirstSampler       int
	OnePastLastSampler int
	ConstantCount      int
	Static             bool
	// ConstLoc is the location of the block holding the
	// set's constants, or Unbound if none is visible.
	ConstLoc int
}

// SlotCount returns the number of slots in s.
func (s *Set) SlotCount() int { return s.OnePastLast - s.First }

// SamplerCount returns the number of texture slots in s.
func (s *Set) SamplerCount() int { return s.OnePastLastSampler - s.FirstSampler }

// BlockCount returns the number of uniform block slots
// in s.
func (s *Set) BlockCount() int { return s.SlotCount() - s.SamplerCount() - s.ConstantCount }

// Slot is a resolved parameter declaration.
type Slot struct {
	Kind Kind
	Name string
	// Set is the index of the Set the slot belongs to
	// and Decl is the index of its declaration there.
	Set, Decl int
	// Loc is the binding number of a UniformBlock or a
	// Texture, or the index within the set's constant
	// block of a Constant. Unbound if not visible.
	Loc int
	// Sampler is the index of a Texture in the global
	// sampler range and SamplerLoc is the binding
	// number of its sampler.
	Sampler    int
	SamplerLoc int
	Const      ConstType
	Stages     driver.Stage
	Compare    bool
}

// Layout is the result of resolving a list of SetDesc.
type Layout struct {
	Sets  []Set
	Slots []Slot
}

// Resolve assigns slots and locations to the
// declarations in sets.
// Slots are numbered contiguously across all sets,
// in declaration order. Within each set, uniform blocks
// and textures are given consecutive binding numbers,
// followed by the bindings of the texture samplers and
// then by the constant block.
// An empty sets is valid and produces an empty Layout.
func Resolve(sets []SetDesc) (*Layout, error) {
	const op = "param.Resolve"
	l := &Layout{Sets: make([]Set, 0, len(sets))}
	slot, splr := 0, 0
	for i := range sets {
		decls := sets[i].Decls
		s := Set{
			First:        slot,
			FirstSampler: splr,
			Static:       sets[i].Static,
			ConstLoc:     Unbound,
		}
		loc, cloc := 0, 0
		for j := range decls {
			d := &decls[j]
			sl := Slot{
				Kind:       d.Kind,
				Name:       d.Name,
				Set:        i,
				Decl:       j,
				Loc:        Unbound,
				Sampler:    -1,
				SamplerLoc: Unbound,
				Stages:     d.Stages,
				Compare:    d.Kind == Texture && d.Compare,
			}
			switch d.Kind {
			case UniformBlock:
				if d.Stages != 0 {
					sl.Loc = loc
					loc++
				}
			case Texture:
				sl.Sampler = splr
				splr++
				if d.Stages != 0 {
					sl.Loc = loc
					loc++
				}
			case Constant:
				if d.Const.Size() == 0 {
					return nil, status.New(op, status.InvalidEnum, "set %d, decl %d (%q): constant type %d", i, j, d.Name, d.Const)
				}
				sl.Const = d.Const
				s.ConstantCount++
				if d.Stages != 0 {
					sl.Loc = cloc
					cloc++
				}
			default:
				return nil, status.New(op, status.InvalidEnum, "set %d, decl %d (%q): kind %d", i, j, d.Name, d.Kind)
			}
			l.Slots = append(l.Slots, sl)
		}
		// Sampler bindings follow the block/texture
		// bindings of the set.
		for j := s.First; j < len(l.Slots); j++ {
			if l.Slots[j].Kind == Texture && l.Slots[j].Loc != Unbound {
				l.Slots[j].SamplerLoc = loc
				loc++
			}
		}
		if cloc > 0 {
			s.ConstLoc = loc
		}
		slot += len(decls)
		s.OnePastLast = slot
		s.OnePastLastSampler = splr
		l.Sets = append(l.Sets, s)
	}
	return l, nil
}

// SetSlots returns the slots of set i.
// The returned slice aliases l.Slots.
func (l *Layout) SetSlots(i int) []Slot {
	s := &l.Sets[i]
	return l.Slots[s.First:s.OnePastLast]
}

// Entries returns the bind entries describing set i,
// in binding number order.
// Unbound slots produce no entries and all constants
// share a single DConstant entry at the set's ConstLoc.
func (l *Layout) Entries(i int) []driver.BindEntry {
	s := &l.Sets[i]
	var ents, splrs []driver.BindEntry
	var cstages driver.Stage
	for _, sl := range l.SetSlots(i) {
		if sl.Loc == Unbound {
			continue
		}
		switch sl.Kind {
		case UniformBlock:
			ents = append(ents, driver.BindEntry{Type: driver.DConstant, Stages: sl.Stages, Nr: sl.Loc})
		case Texture:
			ents = append(ents, driver.BindEntry{Type: driver.DTexture, Stages: sl.Stages, Nr: sl.Loc})
			typ := driver.DSampler
			if sl.Compare {
				typ = driver.DCmpSampler
			}
			splrs = append(splrs, driver.BindEntry{Type: typ, Stages: sl.Stages, Nr: sl.SamplerLoc})
		case Constant:
			cstages |= sl.Stages
		}
	}
	ents = append(ents, splrs...)
	if s.ConstLoc != Unbound {
		ents = append(ents, driver.BindEntry{Type: driver.DConstant, Stages: cstages, Nr: s.ConstLoc})
	}
	return ents
}
