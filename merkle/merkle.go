// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package merkle implements fixed-depth binary Merkle trees over SHA-256.
// The tree layout is fixed: a tree of height h has exactly 2^h leaf
// positions, with absent leaves padded by the zero-subtree hash of the
// corresponding level.
package merkle

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/luxfi/geth/common"
)

// MaxHeight bounds tree height so leaf indices fit in a uint64.
const MaxHeight = 64

var (
	// ErrInvalidProof is returned when a sibling path does not lead from
	// the leaf to the root.
	ErrInvalidProof = errors.New("invalid merkle proof")

	// ErrTooManyLeaves is returned when the leaf slice does not fit in a
	// tree of the requested height.
	ErrTooManyLeaves = errors.New("too many leaves for tree height")

	// ErrIndexOutOfRange is returned when a leaf index has no position in
	// a tree of the requested height.
	ErrIndexOutOfRange = errors.New("leaf index out of range")
)

// zeroHashes[i] is the root of an empty subtree of height i.
var zeroHashes = computeZeroHashes()

func computeZeroHashes() [MaxHeight + 1]common.Hash {
	var hashes [MaxHeight + 1]common.Hash
	for i := 1; i <= MaxHeight; i++ {
		hashes[i] = hashPair(hashes[i-1], hashes[i-1])
	}
	return hashes
}

func hashPair(left, right common.Hash) common.Hash {
	h := sha256.New()
	h.Write(left[:])
	h.Write(right[:])
	return common.BytesToHash(h.Sum(nil))
}

// HashLeaf hashes raw leaf data into its leaf node.
func HashLeaf(data []byte) common.Hash {
	return common.Hash(sha256.Sum256(data))
}

// Root computes the root of a tree of the given height whose first
// len(leaves) positions hold the given leaf hashes.
func Root(leaves []common.Hash, height int) (common.Hash, error) {
	if err := checkHeight(height); err != nil {
		return common.Hash{}, err
	}
	if height < MaxHeight && uint64(len(leaves)) > 1<<uint(height) {
		return common.Hash{}, fmt.Errorf("%w: %d leaves, height %d", ErrTooManyLeaves, len(leaves), height)
	}
	if len(leaves) == 0 {
		return zeroHashes[height], nil
	}

	level := make([]common.Hash, len(leaves))
	copy(level, leaves)

	for depth := 0; depth < height; depth++ {
		next := make([]common.Hash, (len(level)+1)/2)
		for i := range next {
			left := level[2*i]
			right := zeroHashes[depth]
			if 2*i+1 < len(level) {
				right = level[2*i+1]
			}
			next[i] = hashPair(left, right)
		}
		if len(next) == 0 {
			next = []common.Hash{zeroHashes[depth+1]}
		}
		level = next
	}

	return level[0], nil
}

// Proof returns the sibling path for the leaf at the given index, bottom
// up. The path always has exactly height entries.
func Proof(leaves []common.Hash, height int, index uint64) ([]common.Hash, error) {
	if err := checkHeight(height); err != nil {
		return nil, err
	}
	if height < MaxHeight && index >= 1<<uint(height) {
		return nil, fmt.Errorf("%w: index %d, height %d", ErrIndexOutOfRange, index, height)
	}
	if height < MaxHeight && uint64(len(leaves)) > 1<<uint(height) {
		return nil, fmt.Errorf("%w: %d leaves, height %d", ErrTooManyLeaves, len(leaves), height)
	}

	siblings := make([]common.Hash, 0, height)
	level := make([]common.Hash, len(leaves))
	copy(level, leaves)

	for depth := 0; depth < height; depth++ {
		sibIndex := index ^ 1
		sibling := zeroHashes[depth]
		if sibIndex < uint64(len(level)) {
			sibling = level[sibIndex]
		}
		siblings = append(siblings, sibling)

		next := make([]common.Hash, (len(level)+1)/2)
		for i := range next {
			left := level[2*i]
			right := zeroHashes[depth]
			if 2*i+1 < len(level) {
				right = level[2*i+1]
			}
			next[i] = hashPair(left, right)
		}
		level = next
		index >>= 1
	}

	return siblings, nil
}

// Verify checks that the sibling path leads from the leaf at the given
// index to the root. The path length fixes the tree height.
func Verify(root, leaf common.Hash, index uint64, siblings []common.Hash) error {
	if err := checkHeight(len(siblings)); err != nil {
		return err
	}
	if len(siblings) < MaxHeight && index >= 1<<uint(len(siblings)) {
		return fmt.Errorf("%w: index %d, height %d", ErrIndexOutOfRange, index, len(siblings))
	}

	computed := leaf
	for _, sibling := range siblings {
		if index&1 == 0 {
			computed = hashPair(computed, sibling)
		} else {
			computed = hashPair(sibling, computed)
		}
		index >>= 1
	}

	if computed != root {
		return ErrInvalidProof
	}
	return nil
}

func checkHeight(height int) error {
	if height < 0 || height > MaxHeight {
		return fmt.Errorf("tree height %d out of range [0, %d]", height, MaxHeight)
	}
	return nil
}
