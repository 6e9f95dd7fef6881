// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package merkle

import (
	"fmt"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

func testLeaves(n int) []common.Hash {
	leaves := make([]common.Hash, n)
	for i := range leaves {
		leaves[i] = HashLeaf([]byte(fmt.Sprintf("leaf-%d", i)))
	}
	return leaves
}

func TestRootEmptyTree(t *testing.T) {
	root, err := Root(nil, 4)
	require.NoError(t, err)
	require.Equal(t, zeroHashes[4], root)

	// An all-zero-leaf tree has the same root as an empty one.
	root2, err := Root(make([]common.Hash, 16), 4)
	require.NoError(t, err)
	require.Equal(t, root, root2)
}

func TestRootSingleLeafHeightZero(t *testing.T) {
	leaf := HashLeaf([]byte("only"))
	root, err := Root([]common.Hash{leaf}, 0)
	require.NoError(t, err)
	require.Equal(t, leaf, root)
}

func TestRootTooManyLeaves(t *testing.T) {
	_, err := Root(testLeaves(5), 2)
	require.ErrorIs(t, err, ErrTooManyLeaves)
}

func TestProofRoundTrip(t *testing.T) {
	const height = 5
	leaves := testLeaves(11)

	root, err := Root(leaves, height)
	require.NoError(t, err)

	for i := range leaves {
		siblings, err := Proof(leaves, height, uint64(i))
		require.NoError(t, err)
		require.Len(t, siblings, height)
		require.NoError(t, Verify(root, leaves[i], uint64(i), siblings))
	}

	// Padding positions verify with the zero leaf.
	siblings, err := Proof(leaves, height, 20)
	require.NoError(t, err)
	require.NoError(t, Verify(root, common.Hash{}, 20, siblings))
}

func TestVerifyRejectsWrongLeaf(t *testing.T) {
	const height = 3
	leaves := testLeaves(8)

	root, err := Root(leaves, height)
	require.NoError(t, err)

	siblings, err := Proof(leaves, height, 2)
	require.NoError(t, err)

	require.ErrorIs(t, Verify(root, leaves[3], 2, siblings), ErrInvalidProof)
	require.ErrorIs(t, Verify(root, leaves[2], 3, siblings), ErrInvalidProof)
	require.ErrorIs(t, Verify(common.Hash{}, leaves[2], 2, siblings), ErrInvalidProof)
}

func TestVerifyRejectsOutOfRangeIndex(t *testing.T) {
	siblings := make([]common.Hash, 3)
	err := Verify(common.Hash{}, common.Hash{}, 8, siblings)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestProofIndexOutOfRange(t *testing.T) {
	_, err := Proof(testLeaves(2), 1, 2)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}
