// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package outputs validates claimed output payloads against the epoch's
// finalized claim and executes each voucher at most once.
//
// The finalized claim is the fold of the vouchers drive, the notices
// drive and the machine state hash. A voucher proof re-supplies the
// drive hashes, which must fold back into the registered claim, plus the
// Merkle sibling path of the voucher inside the vouchers drive. Replay
// is prevented by a per-(epoch, input, output) occupancy bitmask kept in
// 256-bit pages; that bitmask is unrelated to the validator manager's
// agreement and goal bit sets.
package outputs

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	log "github.com/luxfi/log"
	"github.com/luxfi/rollup/merkle"
)

const (
	// DefaultInputTreeHeight is the height of the per-epoch input layer of
	// the vouchers drive (up to 128 inputs per epoch).
	DefaultInputTreeHeight = 7

	// DefaultOutputTreeHeight is the height of the per-input output layer
	// of the vouchers drive (up to 256 vouchers per input).
	DefaultOutputTreeHeight = 8
)

var (
	// ErrNotOrchestrator is returned when epoch registration is driven by
	// anyone but the orchestrator.
	ErrNotOrchestrator = errors.New("caller is not the orchestrator")

	// ErrEpochNotFinalized is returned when a voucher targets an epoch
	// with no registered finalized claim.
	ErrEpochNotFinalized = errors.New("epoch not finalized")

	// ErrEpochAlreadyRegistered is returned when an epoch is registered
	// twice.
	ErrEpochAlreadyRegistered = errors.New("epoch already registered")

	// ErrInvalidProof is returned when the drive hashes do not fold into
	// the finalized claim or the Merkle path does not check out.
	ErrInvalidProof = errors.New("invalid voucher proof")

	// ErrAlreadyExecuted is returned when a voucher position was already
	// consumed.
	ErrAlreadyExecuted = errors.New("voucher already executed")

	// ErrIndexOutOfRange is returned when an input or output index does
	// not fit the drive layout.
	ErrIndexOutOfRange = errors.New("voucher index out of range")
)

// Proof carries everything needed to validate one voucher against a
// finalized claim.
type Proof struct {
	// VouchersRoot is the root of the vouchers drive.
	VouchersRoot common.Hash

	// NoticesRoot is the root of the notices drive.
	NoticesRoot common.Hash

	// MachineStateHash is the machine state hash of the epoch.
	MachineStateHash common.Hash

	// Siblings is the Merkle path of the voucher inside the vouchers
	// drive, bottom up.
	Siblings []common.Hash
}

// EpochHash folds the per-epoch drive hashes into the finalized claim.
func EpochHash(vouchersRoot, noticesRoot, machineStateHash common.Hash) common.Hash {
	h := sha256.New()
	h.Write(vouchersRoot[:])
	h.Write(noticesRoot[:])
	h.Write(machineStateHash[:])
	return common.BytesToHash(h.Sum(nil))
}

// pageKey addresses one 256-bit occupancy page.
type pageKey struct {
	epoch uint64
	input uint64
	page  uint64
}

// ExecuteFunc consumes a validated voucher payload. It runs at most once
// per voucher position.
type ExecuteFunc func(payload []byte) error

// Executor is the voucher execution gate.
type Executor struct {
	orchestrator ids.NodeID

	inputTreeHeight  int
	outputTreeHeight int

	epochs    map[uint64]common.Hash
	occupancy map[pageKey]*uint256.Int

	onExecute ExecuteFunc

	log log.Logger
}

// NewExecutor creates a voucher executor for the given drive layout.
// onExecute may be nil, in which case validated vouchers are only marked
// as consumed.
func NewExecutor(
	orchestrator ids.NodeID,
	inputTreeHeight int,
	outputTreeHeight int,
	onExecute ExecuteFunc,
	logger log.Logger,
) (*Executor, error) {
	if orchestrator == ids.EmptyNodeID {
		return nil, errors.New("empty orchestrator identity")
	}
	if inputTreeHeight <= 0 || outputTreeHeight <= 0 ||
		inputTreeHeight+outputTreeHeight > merkle.MaxHeight {
		return nil, fmt.Errorf("invalid drive layout: input height %d, output height %d", inputTreeHeight, outputTreeHeight)
	}
	if logger == nil {
		logger = log.NoLog{}
	}
	return &Executor{
		orchestrator:     orchestrator,
		inputTreeHeight:  inputTreeHeight,
		outputTreeHeight: outputTreeHeight,
		epochs:           make(map[uint64]common.Hash),
		occupancy:        make(map[pageKey]*uint256.Int),
		onExecute:        onExecute,
		log:              logger,
	}, nil
}

// RegisterEpoch seeds voucher verification with the finalized claim of an
// epoch. Each epoch registers once.
func (e *Executor) RegisterEpoch(caller ids.NodeID, epoch uint64, claim common.Hash) error {
	if caller != e.orchestrator {
		return ErrNotOrchestrator
	}
	if claim == (common.Hash{}) {
		return errors.New("zero finalized claim")
	}
	if _, ok := e.epochs[epoch]; ok {
		return fmt.Errorf("%w: %d", ErrEpochAlreadyRegistered, epoch)
	}

	e.epochs[epoch] = claim
	e.log.Info("epoch registered for voucher execution",
		log.Uint64("epoch", epoch),
		log.Stringer("claim", claim),
	)
	return nil
}

// ExecuteVoucher validates the voucher at (epoch, inputIndex,
// outputIndex) against the epoch's finalized claim and executes it. A
// voucher position executes at most once; a failed execution leaves the
// position unconsumed.
func (e *Executor) ExecuteVoucher(
	epoch uint64,
	inputIndex uint64,
	outputIndex uint64,
	payload []byte,
	proof Proof,
) error {
	claim, ok := e.epochs[epoch]
	if !ok {
		return fmt.Errorf("%w: %d", ErrEpochNotFinalized, epoch)
	}

	if inputIndex >= 1<<uint(e.inputTreeHeight) {
		return fmt.Errorf("%w: input index %d", ErrIndexOutOfRange, inputIndex)
	}
	if outputIndex >= 1<<uint(e.outputTreeHeight) {
		return fmt.Errorf("%w: output index %d", ErrIndexOutOfRange, outputIndex)
	}

	if EpochHash(proof.VouchersRoot, proof.NoticesRoot, proof.MachineStateHash) != claim {
		return fmt.Errorf("%w: drive hashes do not fold into finalized claim", ErrInvalidProof)
	}

	if len(proof.Siblings) != e.inputTreeHeight+e.outputTreeHeight {
		return fmt.Errorf("%w: expected %d siblings, got %d",
			ErrInvalidProof, e.inputTreeHeight+e.outputTreeHeight, len(proof.Siblings))
	}

	leaf := merkle.HashLeaf(payload)
	index := inputIndex<<uint(e.outputTreeHeight) | outputIndex
	if err := merkle.Verify(proof.VouchersRoot, leaf, index, proof.Siblings); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidProof, err)
	}

	key, mask := e.position(epoch, inputIndex, outputIndex)
	if page, ok := e.occupancy[key]; ok && !new(uint256.Int).And(page, mask).IsZero() {
		return fmt.Errorf("%w: epoch %d input %d output %d", ErrAlreadyExecuted, epoch, inputIndex, outputIndex)
	}

	if e.onExecute != nil {
		if err := e.onExecute(payload); err != nil {
			return fmt.Errorf("voucher execution failed: %w", err)
		}
	}

	page, ok := e.occupancy[key]
	if !ok {
		page = new(uint256.Int)
		e.occupancy[key] = page
	}
	page.Or(page, mask)

	e.log.Info("voucher executed",
		log.Uint64("epoch", epoch),
		log.Uint64("input", inputIndex),
		log.Uint64("output", outputIndex),
	)
	return nil
}

// Executed reports whether the voucher position was already consumed.
func (e *Executor) Executed(epoch, inputIndex, outputIndex uint64) bool {
	key, mask := e.position(epoch, inputIndex, outputIndex)
	page, ok := e.occupancy[key]
	return ok && !new(uint256.Int).And(page, mask).IsZero()
}

// FinalizedClaim returns the registered claim of an epoch.
func (e *Executor) FinalizedClaim(epoch uint64) (common.Hash, error) {
	claim, ok := e.epochs[epoch]
	if !ok {
		return common.Hash{}, fmt.Errorf("%w: %d", ErrEpochNotFinalized, epoch)
	}
	return claim, nil
}

// position maps a voucher position onto its occupancy page and bit mask.
func (e *Executor) position(epoch, inputIndex, outputIndex uint64) (pageKey, *uint256.Int) {
	key := pageKey{
		epoch: epoch,
		input: inputIndex,
		page:  outputIndex / 256,
	}
	mask := new(uint256.Int).Lsh(uint256.NewInt(1), uint(outputIndex%256))
	return key, mask
}
