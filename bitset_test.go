// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package rollup

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllBits(t *testing.T) {
	tests := []struct {
		name     string
		width    int
		expected Bits
	}{
		{name: "zero width", width: 0, expected: 0},
		{name: "negative width", width: -1, expected: 0},
		{name: "single slot", width: 1, expected: 0b1},
		{name: "three slots", width: 3, expected: 0b111},
		{name: "full width", width: 32, expected: Bits(^uint32(0))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, AllBits(tt.width))
		})
	}
}

func TestBitsAddRemove(t *testing.T) {
	var b Bits
	require.True(t, b.IsEmpty())

	b = b.Add(0)
	b = b.Add(2)
	require.Equal(t, Bits(0b101), b)
	require.True(t, b.Contains(0))
	require.False(t, b.Contains(1))
	require.True(t, b.Contains(2))
	require.Equal(t, 2, b.Len())

	// Removing an index clears exactly that bit.
	b = b.Remove(2)
	require.Equal(t, Bits(0b001), b)

	// Out-of-range indices are ignored.
	require.Equal(t, b, b.Add(-1))
	require.Equal(t, b, b.Add(32))
	require.Equal(t, b, b.Remove(32))
	require.False(t, b.Contains(-1))
	require.False(t, b.Contains(32))
}

func TestBitsEqualIsExact(t *testing.T) {
	// Equality is bit for bit, not cardinality.
	a := Bits(0).Add(0).Add(2)
	b := Bits(0).Add(1).Add(2)
	require.Equal(t, a.Len(), b.Len())
	require.False(t, a.Equal(b))
	require.True(t, a.Equal(a))
}

func TestBitsIsSubsetOf(t *testing.T) {
	goal := AllBits(3)
	require.True(t, Bits(0).IsSubsetOf(goal))
	require.True(t, Bits(0b011).IsSubsetOf(goal))
	require.True(t, goal.IsSubsetOf(goal))
	require.False(t, Bits(0b1000).IsSubsetOf(goal))
}

func TestBitsLowest(t *testing.T) {
	_, ok := Bits(0).Lowest()
	require.False(t, ok)

	b := Bits(0).Add(3).Add(5)
	lowest, ok := b.Lowest()
	require.True(t, ok)
	require.Equal(t, 3, lowest)

	b = b.Remove(3)
	lowest, ok = b.Lowest()
	require.True(t, ok)
	require.Equal(t, 5, lowest)
}

func TestBitsString(t *testing.T) {
	require.Equal(t, "[]", Bits(0).String())
	require.Equal(t, "[0 2]", Bits(0b101).String())
}
