// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package heap

import (
	"math/bits"
)

// bitset tracks which slots of a heap are in use.
// Unlike a growable bit vector, its length is fixed
// at creation, matching the fixed capacity of heaps.
type bitset struct {
	w   []uint64
	n   int
	rem int
}

func newBitset(n int) bitset {
	return bitset{w: make([]uint64, (n+63)/64), n: n, rem: n}
}

func (b *bitset) set(i int) {
	m := uint64(1) << (i & 63)
	if b.w[i>>6]&m == 0 {
		b.w[i>>6] |= m
		b.rem--
	}
}

func (b *bitset) unset(i int) {
	m := uint64(1) << (i & 63)
	if b.w[i>>6]&m != 0 {
		b.w[i>>6] &^= m
		b.rem++
	}
}

func (b *bitset) isSet(i int) bool {
	return b.w[i>>6]&(1<<(i&63)) != 0
}

// search locates the first unset bit.
func (b *bitset) search() (int, bool) {
	if b.rem == 0 {
		return 0, false
	}
	for i, x := range b.w {
		if x == ^uint64(0) {
			continue
		}
		j := i*64 + bits.TrailingZeros64(^x)
		if j >= b.n {
			break
		}
		return j, true
	}
	return 0, false
}

// searchRange locates the first run of n unset bits.
func (b *bitset) searchRange(n int) (int, bool) {
	if n <= 1 {
		return b.search()
	}
	if b.rem < n {
		return 0, false
	}
	cnt, start := 0, 0
	for i := 0; i < b.n; {
		x := b.w[i>>6]
		// Skip whole words.
		if i&63 == 0 && i+64 <= b.n {
			switch x {
			case ^uint64(0):
				cnt = 0
				i += 64
				continue
			case 0:
				if cnt == 0 {
					start = i
				}
				cnt += 64
				if cnt >= n {
					return start, true
				}
				i += 64
				continue
			}
		}
		if x&(1<<(i&63)) != 0 {
			cnt = 0
		} else {
			if cnt == 0 {
				start = i
			}
			if cnt++; cnt >= n {
				return start, true
			}
		}
		i++
	}
	return 0, false
}
