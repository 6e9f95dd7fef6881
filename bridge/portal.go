// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package bridge encodes deposit and withdrawal operations as opaque
// input payloads. The rollup treats them like any other input; only the
// portal on the other side interprets them.
package bridge

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/rlp"
)

// Portal operation types
const (
	// OpEtherDeposit deposits native ether into the rollup
	OpEtherDeposit uint8 = iota
	// OpTokenDeposit deposits an ERC-20 token into the rollup
	OpTokenDeposit
	// OpWithdrawal requests a transfer out of the rollup
	OpWithdrawal
)

var (
	// ErrInvalidPayload is returned when a portal payload is malformed.
	ErrInvalidPayload = errors.New("invalid portal payload")
)

// PortalPayload is a value-transfer operation carried as a rollup input.
type PortalPayload struct {
	// Version for future upgrades
	Version uint8
	// Operation type (EtherDeposit, TokenDeposit, Withdrawal)
	Operation uint8
	// Beneficiary address inside (deposit) or outside (withdrawal) the rollup
	Beneficiary common.Address
	// Token contract address; the zero address for native ether
	Token common.Address
	// Amount in the token's smallest unit
	Amount *big.Int
	// Data additional payload forwarded to the rollup machine
	Data []byte
}

// NewEtherDeposit creates an ether deposit payload.
func NewEtherDeposit(beneficiary common.Address, amount *big.Int, data []byte) (*PortalPayload, error) {
	p := &PortalPayload{
		Version:     1,
		Operation:   OpEtherDeposit,
		Beneficiary: beneficiary,
		Amount:      amount,
		Data:        data,
	}
	if err := p.Verify(); err != nil {
		return nil, err
	}
	return p, nil
}

// NewTokenDeposit creates an ERC-20 deposit payload.
func NewTokenDeposit(beneficiary, token common.Address, amount *big.Int, data []byte) (*PortalPayload, error) {
	p := &PortalPayload{
		Version:     1,
		Operation:   OpTokenDeposit,
		Beneficiary: beneficiary,
		Token:       token,
		Amount:      amount,
		Data:        data,
	}
	if err := p.Verify(); err != nil {
		return nil, err
	}
	return p, nil
}

// NewWithdrawal creates a withdrawal payload. Withdrawals surface as
// vouchers proved against the finalized claim before any value moves.
func NewWithdrawal(beneficiary, token common.Address, amount *big.Int) (*PortalPayload, error) {
	p := &PortalPayload{
		Version:     1,
		Operation:   OpWithdrawal,
		Beneficiary: beneficiary,
		Token:       token,
		Amount:      amount,
	}
	if err := p.Verify(); err != nil {
		return nil, err
	}
	return p, nil
}

// Verify verifies the portal payload.
func (p *PortalPayload) Verify() error {
	if p.Version != 1 {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidPayload, p.Version)
	}
	if p.Operation > OpWithdrawal {
		return fmt.Errorf("%w: unknown operation %d", ErrInvalidPayload, p.Operation)
	}
	if p.Beneficiary == (common.Address{}) {
		return fmt.Errorf("%w: empty beneficiary", ErrInvalidPayload)
	}
	if p.Amount == nil || p.Amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidPayload)
	}
	if p.Operation == OpEtherDeposit && p.Token != (common.Address{}) {
		return fmt.Errorf("%w: ether deposit with token address", ErrInvalidPayload)
	}
	if p.Operation == OpTokenDeposit && p.Token == (common.Address{}) {
		return fmt.Errorf("%w: token deposit without token address", ErrInvalidPayload)
	}
	return nil
}

// OperationName returns a human-readable operation name.
func (p *PortalPayload) OperationName() string {
	switch p.Operation {
	case OpEtherDeposit:
		return "ether-deposit"
	case OpTokenDeposit:
		return "token-deposit"
	case OpWithdrawal:
		return "withdrawal"
	default:
		return "unknown"
	}
}

// Bytes returns the byte representation of the payload.
func (p *PortalPayload) Bytes() []byte {
	bytes, _ := rlp.EncodeToBytes(p)
	return bytes
}

// ParsePortalPayload parses a portal payload from bytes.
func ParsePortalPayload(b []byte) (*PortalPayload, error) {
	p := &PortalPayload{}
	if err := rlp.DecodeBytes(b, p); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPayload, err)
	}
	if err := p.Verify(); err != nil {
		return nil, err
	}
	return p, nil
}
