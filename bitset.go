// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package rollup

import (
	"fmt"
	"math/bits"
)

// MaxValidators is the widest roster a Bits value can represent.
const MaxValidators = 32

// Bits is a fixed-width bit set over validator slot indices. Unlike a
// growable bit vector, the width is bounded by the roster size fixed at
// construction, so a single machine word is enough.
type Bits uint32

// AllBits returns a bit set with every index below width set.
func AllBits(width int) Bits {
	if width <= 0 {
		return 0
	}
	if width >= MaxValidators {
		return Bits(^uint32(0))
	}
	return Bits(1<<uint(width) - 1)
}

// Add returns the bit set with index i set.
func (b Bits) Add(i int) Bits {
	if i < 0 || i >= MaxValidators {
		return b
	}
	return b | 1<<uint(i)
}

// Remove returns the bit set with index i cleared.
func (b Bits) Remove(i int) Bits {
	if i < 0 || i >= MaxValidators {
		return b
	}
	return b &^ (1 << uint(i))
}

// Contains returns true if the bit set contains the index.
func (b Bits) Contains(i int) bool {
	if i < 0 || i >= MaxValidators {
		return false
	}
	return b&(1<<uint(i)) != 0
}

// Len returns the number of set bits.
func (b Bits) Len() int {
	return bits.OnesCount32(uint32(b))
}

// IsEmpty returns true if no bits are set.
func (b Bits) IsEmpty() bool {
	return b == 0
}

// Equal returns true if two bit sets are equal bit for bit.
func (b Bits) Equal(other Bits) bool {
	return b == other
}

// IsSubsetOf returns true if every bit set in b is also set in other.
func (b Bits) IsSubsetOf(other Bits) bool {
	return b&^other == 0
}

// Lowest returns the lowest set bit index. The second return value is
// false if the set is empty.
func (b Bits) Lowest() (int, bool) {
	if b == 0 {
		return 0, false
	}
	return bits.TrailingZeros32(uint32(b)), true
}

// String returns the set slot indices, the empty set as "[]".
func (b Bits) String() string {
	indices := make([]int, 0, b.Len())
	for i := 0; i < MaxValidators; i++ {
		if b.Contains(i) {
			indices = append(indices, i)
		}
	}

	return fmt.Sprintf("%v", indices)
}
