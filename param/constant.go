// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package param

import (
	"encoding/binary"
	"math"
)

// ConstType is the type of a Constant.
type ConstType int

// Constant types.
// Matrices are column-major.
//
// A set's constants reach shaders as a single uniform
// block, declared as a WGSL struct with one member per
// visible constant in declaration order. Members use the
// natural WGSL types (f32, vec2<f32>, ..., mat4x4<f32>)
// and so follow the uniform layout rules given by Align
// and BlockSize.
const (
	Float ConstType = iota + 1
	Vec2
	Vec3
	Vec4
	Mat2
	Mat3
	Mat4
)

// Size returns the size in bytes of a constant of
// type t, or zero if t is not a valid ConstType.
func (t ConstType) Size() int {
	switch t {
	case Float:
		return 4
	case Vec2:
		return 8
	case Vec3:
		return 12
	case Vec4, Mat2:
		return 16
	case Mat3:
		return 36
	case Mat4:
		return 64
	}
	return 0
}

// shape returns the number of columns and rows of t.
func (t ConstType) shape() (cols, rows int) {
	switch t {
	case Float:
		return 1, 1
	case Vec2:
		return 1, 2
	case Vec3:
		return 1, 3
	case Vec4:
		return 1, 4
	case Mat2:
		return 2, 2
	case Mat3:
		return 3, 3
	case Mat4:
		return 4, 4
	}
	return 0, 0
}

// Align returns the alignment in bytes of a constant of
// type t in a uniform block.
func (t ConstType) Align() int {
	switch _, rows := t.shape(); rows {
	case 1:
		return 4
	case 2:
		return 8
	case 3, 4:
		return 16
	}
	return 0
}

// BlockSize returns the number of bytes a constant of
// type t occupies in a uniform block.
// It differs from Size only for Mat3, whose columns are
// padded to 16 bytes.
func (t ConstType) BlockSize() int {
	cols, rows := t.shape()
	if cols <= 1 {
		return 4 * rows
	}
	return cols * t.Align()
}

// Place copies the tightly packed value src into dst
// using the uniform block layout of t.
// dst must have at least BlockSize bytes.
func (t ConstType) Place(dst, src []byte) {
	cols, rows := t.shape()
	if cols <= 1 {
		copy(dst, src)
		return
	}
	n, stride := 4*rows, t.Align()
	for c := 0; c < cols && n*c < len(src); c++ {
		copy(dst[c*stride:c*stride+n], src[c*n:])
	}
}

func (t ConstType) String() string {
	switch t {
	case Float:
		return "float"
	case Vec2:
		return "vec2"
	case Vec3:
		return "vec3"
	case Vec4:
		return "vec4"
	case Mat2:
		return "mat2"
	case Mat3:
		return "mat3"
	case Mat4:
		return "mat4"
	}
	return "invalid constant type"
}

// Pack encodes v as the little-endian bytes expected
// by ConstantBinding.Data.
//
//	param.ConstantBinding{Slot: 2, Data: param.Pack(1, 0, 0, 1)}
func Pack(v ...float32) []byte {
	b := make([]byte, 0, 4*len(v))
	for _, x := range v {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(x))
	}
	return b
}
