// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package node

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"

	"github.com/luxfi/rollup/cache"
)

// verificationCacheSize bounds the memory spent remembering claim
// signatures that already verified.
const verificationCacheSize = 1024

var (
	// ErrInvalidClaimSignature is returned when a claim signature does
	// not verify against the validator's registered public key.
	ErrInvalidClaimSignature = errors.New("invalid claim signature")

	// ErrNoPublicKey is returned when a validator has no registered
	// public key.
	ErrNoPublicKey = errors.New("no registered public key")
)

// ClaimVerifier checks that a claim was signed by the validator that
// submits it, before the claim reaches the validator manager.
type ClaimVerifier interface {
	VerifyClaim(validatorID ids.NodeID, claim common.Hash, signature []byte) error
}

// NoopVerifier accepts every claim. Used when claim authenticity is
// enforced upstream.
type NoopVerifier struct{}

func (NoopVerifier) VerifyClaim(ids.NodeID, common.Hash, []byte) error {
	return nil
}

// BLSVerifier verifies claim signatures against a fixed registry of
// compressed BLS public keys, one per roster validator. Verified
// signatures are remembered so a resubmitted claim skips the pairing
// check.
type BLSVerifier struct {
	keys     map[ids.NodeID]*bls.PublicKey
	verified *cache.LRUCache[common.Hash, struct{}]
}

// NewBLSVerifier parses the compressed public keys of the roster.
func NewBLSVerifier(publicKeys map[ids.NodeID][]byte) (*BLSVerifier, error) {
	keys := make(map[ids.NodeID]*bls.PublicKey, len(publicKeys))
	for validatorID, keyBytes := range publicKeys {
		pk, err := bls.PublicKeyFromCompressedBytes(keyBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key of %s: %w", validatorID, err)
		}
		keys[validatorID] = pk
	}
	return &BLSVerifier{
		keys:     keys,
		verified: cache.NewLRUCache[common.Hash, struct{}](verificationCacheSize),
	}, nil
}

func (v *BLSVerifier) VerifyClaim(validatorID ids.NodeID, claim common.Hash, signature []byte) error {
	pk, ok := v.keys[validatorID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoPublicKey, validatorID)
	}

	_, err := v.verified.Get(
		verificationCacheKey(validatorID, claim, signature),
		func(common.Hash) (struct{}, error) {
			sig, err := bls.SignatureFromBytes(signature)
			if err != nil {
				return struct{}{}, fmt.Errorf("%w: %s", ErrInvalidClaimSignature, err)
			}
			if !bls.Verify(pk, sig, claim[:]) {
				return struct{}{}, ErrInvalidClaimSignature
			}
			return struct{}{}, nil
		},
	)
	return err
}

func verificationCacheKey(validatorID ids.NodeID, claim common.Hash, signature []byte) common.Hash {
	hasher := sha256.New()
	hasher.Write(validatorID.Bytes())
	hasher.Write(claim[:])
	hasher.Write(signature)
	return common.BytesToHash(hasher.Sum(nil))
}
