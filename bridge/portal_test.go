// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"math/big"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

var (
	beneficiary = common.HexToAddress("0x1111111111111111111111111111111111111111")
	token       = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func TestEtherDepositRoundTrip(t *testing.T) {
	deposit, err := NewEtherDeposit(beneficiary, big.NewInt(1_000_000), []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, "ether-deposit", deposit.OperationName())

	parsed, err := ParsePortalPayload(deposit.Bytes())
	require.NoError(t, err)
	require.Equal(t, deposit.Operation, parsed.Operation)
	require.Equal(t, beneficiary, parsed.Beneficiary)
	require.Equal(t, common.Address{}, parsed.Token)
	require.Zero(t, parsed.Amount.Cmp(big.NewInt(1_000_000)))
	require.Equal(t, []byte("hello"), parsed.Data)
}

func TestTokenDepositRoundTrip(t *testing.T) {
	deposit, err := NewTokenDeposit(beneficiary, token, big.NewInt(42), nil)
	require.NoError(t, err)

	parsed, err := ParsePortalPayload(deposit.Bytes())
	require.NoError(t, err)
	require.Equal(t, OpTokenDeposit, parsed.Operation)
	require.Equal(t, token, parsed.Token)
}

func TestWithdrawalRoundTrip(t *testing.T) {
	withdrawal, err := NewWithdrawal(beneficiary, common.Address{}, big.NewInt(7))
	require.NoError(t, err)
	require.Equal(t, "withdrawal", withdrawal.OperationName())

	parsed, err := ParsePortalPayload(withdrawal.Bytes())
	require.NoError(t, err)
	require.Equal(t, OpWithdrawal, parsed.Operation)
}

func TestPortalPayloadValidation(t *testing.T) {
	tests := []struct {
		name    string
		payload PortalPayload
	}{
		{
			name: "unsupported version",
			payload: PortalPayload{
				Version:     2,
				Operation:   OpEtherDeposit,
				Beneficiary: beneficiary,
				Amount:      big.NewInt(1),
			},
		},
		{
			name: "unknown operation",
			payload: PortalPayload{
				Version:     1,
				Operation:   OpWithdrawal + 1,
				Beneficiary: beneficiary,
				Amount:      big.NewInt(1),
			},
		},
		{
			name: "empty beneficiary",
			payload: PortalPayload{
				Version:   1,
				Operation: OpEtherDeposit,
				Amount:    big.NewInt(1),
			},
		},
		{
			name: "nil amount",
			payload: PortalPayload{
				Version:     1,
				Operation:   OpEtherDeposit,
				Beneficiary: beneficiary,
			},
		},
		{
			name: "zero amount",
			payload: PortalPayload{
				Version:     1,
				Operation:   OpEtherDeposit,
				Beneficiary: beneficiary,
				Amount:      big.NewInt(0),
			},
		},
		{
			name: "ether deposit with token",
			payload: PortalPayload{
				Version:     1,
				Operation:   OpEtherDeposit,
				Beneficiary: beneficiary,
				Token:       token,
				Amount:      big.NewInt(1),
			},
		},
		{
			name: "token deposit without token",
			payload: PortalPayload{
				Version:     1,
				Operation:   OpTokenDeposit,
				Beneficiary: beneficiary,
				Amount:      big.NewInt(1),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, tt.payload.Verify(), ErrInvalidPayload)
		})
	}
}

func TestParsePortalPayloadRejectsGarbage(t *testing.T) {
	_, err := ParsePortalPayload([]byte{0xff, 0x00, 0x13})
	require.Error(t, err)
}
