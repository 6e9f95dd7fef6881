// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package inputs accumulates raw input records into per-epoch boxes.
// Two boxes alternate: one accumulates the current epoch's inputs while
// the other holds the sealed previous epoch, and they swap on every
// epoch boundary.
package inputs

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	log "github.com/luxfi/log"
)

// MaxPayloadSize bounds a single input payload.
const MaxPayloadSize = 64 * 1024

var (
	// ErrNotOrchestrator is returned when the epoch boundary is driven by
	// anyone but the orchestrator.
	ErrNotOrchestrator = errors.New("caller is not the orchestrator")

	// ErrInvalidInput is returned for empty or oversized payloads.
	ErrInvalidInput = errors.New("invalid input")

	// ErrIndexOutOfRange is returned when an input index has no entry in
	// the accumulating box.
	ErrIndexOutOfRange = errors.New("input index out of range")
)

// Box is the pair of alternating per-epoch input boxes.
type Box struct {
	orchestrator ids.NodeID

	boxes   [2][]common.Hash
	current int

	log log.Logger
}

// NewBox creates an input box pair. Only the orchestrator may swap boxes.
func NewBox(orchestrator ids.NodeID, logger log.Logger) (*Box, error) {
	if orchestrator == ids.EmptyNodeID {
		return nil, errors.New("empty orchestrator identity")
	}
	if logger == nil {
		logger = log.NoLog{}
	}
	return &Box{
		orchestrator: orchestrator,
		log:          logger,
	}, nil
}

// InputHash derives the hash of a single input record.
func InputHash(sender ids.NodeID, timestamp uint64, payload []byte) common.Hash {
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], timestamp)

	h := sha256.New()
	h.Write(sender[:])
	h.Write(ts[:])
	h.Write(payload)
	return common.BytesToHash(h.Sum(nil))
}

// AddInput appends an input record to the accumulating box and returns
// its hash.
func (b *Box) AddInput(sender ids.NodeID, payload []byte, timestamp uint64) (common.Hash, error) {
	if len(payload) == 0 {
		return common.Hash{}, fmt.Errorf("%w: empty payload", ErrInvalidInput)
	}
	if len(payload) > MaxPayloadSize {
		return common.Hash{}, fmt.Errorf("%w: payload size %d exceeds maximum %d", ErrInvalidInput, len(payload), MaxPayloadSize)
	}

	hash := InputHash(sender, timestamp, payload)
	b.boxes[b.current] = append(b.boxes[b.current], hash)

	b.log.Debug("input accumulated",
		log.Stringer("hash", hash),
		log.Int("index", len(b.boxes[b.current])-1),
	)
	return hash, nil
}

// OnNewEpoch seals the accumulating box and swaps in the other one,
// cleared, as the new accumulating box. It returns a snapshot of the
// sealed box.
func (b *Box) OnNewEpoch(caller ids.NodeID) ([]common.Hash, error) {
	if caller != b.orchestrator {
		return nil, ErrNotOrchestrator
	}

	sealed := b.boxes[b.current]
	b.current = 1 - b.current
	b.boxes[b.current] = b.boxes[b.current][:0]

	snapshot := make([]common.Hash, len(sealed))
	copy(snapshot, sealed)

	b.log.Info("input box sealed", log.Int("inputs", len(snapshot)))
	return snapshot, nil
}

// Len returns the number of inputs in the accumulating box.
func (b *Box) Len() int {
	return len(b.boxes[b.current])
}

// SealedLen returns the number of inputs in the sealed box.
func (b *Box) SealedLen() int {
	return len(b.boxes[1-b.current])
}

// InputHashAt returns the hash of the accumulating box entry at index i.
func (b *Box) InputHashAt(i int) (common.Hash, error) {
	box := b.boxes[b.current]
	if i < 0 || i >= len(box) {
		return common.Hash{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	return box[i], nil
}

// Sealed returns a copy of the sealed box.
func (b *Box) Sealed() []common.Hash {
	sealed := b.boxes[1-b.current]
	snapshot := make([]common.Hash, len(sealed))
	copy(snapshot, sealed)
	return snapshot
}
