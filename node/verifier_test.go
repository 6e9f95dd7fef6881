// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package node

import (
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

func TestNoopVerifierAcceptsEverything(t *testing.T) {
	require.NoError(t, NoopVerifier{}.VerifyClaim(
		ids.GenerateTestNodeID(),
		common.HexToHash("0x0a"),
		nil,
	))
}

func TestBLSVerifierUnknownValidator(t *testing.T) {
	v, err := NewBLSVerifier(nil)
	require.NoError(t, err)

	err = v.VerifyClaim(ids.GenerateTestNodeID(), common.HexToHash("0x0a"), []byte{0x01})
	require.ErrorIs(t, err, ErrNoPublicKey)
}

func TestBLSVerifierRejectsGarbageKey(t *testing.T) {
	_, err := NewBLSVerifier(map[ids.NodeID][]byte{
		ids.GenerateTestNodeID(): {0x00, 0x01, 0x02},
	})
	require.Error(t, err)
}
