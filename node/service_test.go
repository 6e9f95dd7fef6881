// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package node

import (
	"fmt"
	"sync"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/rollup"
	"github.com/luxfi/rollup/inputs"
	"github.com/luxfi/rollup/merkle"
	"github.com/luxfi/rollup/outputs"
)

const (
	testInputDuration   = 100
	testChallengePeriod = 50
	testCreation        = 1000
)

// fakeClock is a settable clock.
type fakeClock struct {
	now uint64
}

func (c *fakeClock) read() uint64 { return c.now }

type fixture struct {
	service  *Service
	manager  *rollup.ValidatorManager
	box      *inputs.Box
	executor *outputs.Executor
	clock    *fakeClock

	vdrA, vdrB, vdrC ids.NodeID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	self := ids.GenerateTestNodeID()
	vdrA := ids.GenerateTestNodeID()
	vdrB := ids.GenerateTestNodeID()
	vdrC := ids.GenerateTestNodeID()

	manager, err := rollup.NewValidatorManager(self, []ids.NodeID{vdrA, vdrB, vdrC}, nil, nil)
	require.NoError(t, err)

	box, err := inputs.NewBox(self, nil)
	require.NoError(t, err)

	executor, err := outputs.NewExecutor(self, 2, 3, nil, nil)
	require.NoError(t, err)

	clock := &fakeClock{now: testCreation}

	service, err := New(
		Config{
			Self:              self,
			InputDuration:     testInputDuration,
			ChallengePeriod:   testChallengePeriod,
			CreationTimestamp: testCreation,
		},
		manager,
		box,
		executor,
		nil,
		clock.read,
		nil,
		nil,
	)
	require.NoError(t, err)

	return &fixture{
		service:  service,
		manager:  manager,
		box:      box,
		executor: executor,
		clock:    clock,
		vdrA:     vdrA,
		vdrB:     vdrB,
		vdrC:     vdrC,
	}
}

// seal moves the clock past the input duration and seals via an
// interaction.
func (f *fixture) seal(t *testing.T) {
	t.Helper()
	f.clock.now = f.clock.now + testInputDuration + 1
	require.Equal(t, PhaseAwaitingFirstClaim, f.service.Phase(f.clock.now))
}

func TestNewValidation(t *testing.T) {
	f := newFixture(t)

	_, err := New(Config{}, f.manager, nil, nil, nil, nil, nil, nil)
	require.Error(t, err)

	_, err = New(Config{Self: ids.GenerateTestNodeID()}, f.manager, nil, nil, nil, nil, nil, nil)
	require.Error(t, err)
}

func TestPhaseLifecycle(t *testing.T) {
	f := newFixture(t)
	s := f.service

	require.Equal(t, PhaseInputAccumulation, s.Phase(f.clock.now))
	require.Equal(t, uint64(0), s.CurrentEpoch())
	_, sealed := s.SealedEpoch()
	require.False(t, sealed)

	// Claims before the epoch seals are rejected.
	_, err := s.SubmitClaim(f.vdrA, common.HexToHash("0x0a"), nil)
	require.ErrorIs(t, err, ErrNoSealedEpoch)

	f.seal(t)

	// The first claim seals the epoch and starts the challenge period.
	claim := common.HexToHash("0x0a")
	verdict, err := s.SubmitClaim(f.vdrA, claim, nil)
	require.NoError(t, err)
	require.Equal(t, rollup.NoConflict, verdict.Outcome)
	require.Equal(t, PhaseAwaitingConsensus, s.Phase(f.clock.now))

	sealedEpoch, sealed := s.SealedEpoch()
	require.True(t, sealed)
	require.Equal(t, uint64(0), sealedEpoch)
	require.Equal(t, uint64(1), s.CurrentEpoch())

	// Inputs continue to accumulate for the next epoch while claims are
	// being collected for the sealed one.
	_, err = s.AddInput(f.vdrA, []byte("next-epoch-input"))
	require.NoError(t, err)

	// Consensus finalizes the epoch.
	_, err = s.SubmitClaim(f.vdrB, claim, nil)
	require.NoError(t, err)
	verdict, err = s.SubmitClaim(f.vdrC, claim, nil)
	require.NoError(t, err)
	require.Equal(t, rollup.Consensus, verdict.Outcome)

	require.Equal(t, PhaseInputAccumulation, s.Phase(f.clock.now))
	history := s.FinalizedEpochs()
	require.Len(t, history, 1)
	require.Equal(t, uint64(0), history[0].Epoch)
	require.Equal(t, claim, history[0].Claim)
	require.False(t, history[0].ByTimeout)

	// The finalized claim seeded voucher execution.
	registered, err := f.executor.FinalizedClaim(0)
	require.NoError(t, err)
	require.Equal(t, claim, registered)
}

func TestDisputeLifecycle(t *testing.T) {
	f := newFixture(t)
	s := f.service

	// No dispute can be recorded while accumulating.
	_, err := s.ResolveDispute(f.vdrA, f.vdrB, common.HexToHash("0x0a"))
	require.ErrorIs(t, err, ErrNoSealedEpoch)

	f.seal(t)

	claimX := common.HexToHash("0x0a")
	claimY := common.HexToHash("0x0b")

	_, err = s.SubmitClaim(f.vdrA, claimX, nil)
	require.NoError(t, err)

	verdict, err := s.SubmitClaim(f.vdrB, claimY, nil)
	require.NoError(t, err)
	require.Equal(t, rollup.Conflict, verdict.Outcome)

	// The resolution restarts the challenge period.
	f.clock.now += 10
	verdict, err = s.ResolveDispute(f.vdrB, f.vdrA, claimY)
	require.NoError(t, err)
	require.Equal(t, rollup.NoConflict, verdict.Outcome)
	require.Equal(t, PhaseAwaitingConsensusAfterConflict, s.Phase(f.clock.now))
	require.Equal(t, claimY, s.CurrentClaim())

	// The remaining validator completes consensus over the shrunk goal.
	verdict, err = s.SubmitClaim(f.vdrC, claimY, nil)
	require.NoError(t, err)
	require.Equal(t, rollup.Consensus, verdict.Outcome)
	require.Len(t, s.FinalizedEpochs(), 1)
	require.Equal(t, claimY, s.FinalizedEpochs()[0].Claim)
}

func TestFinalizeByTimeout(t *testing.T) {
	f := newFixture(t)
	s := f.service

	_, err := s.FinalizeByTimeout()
	require.ErrorIs(t, err, ErrNoSealedEpoch)

	f.seal(t)

	_, err = s.FinalizeByTimeout()
	require.ErrorIs(t, err, ErrNothingToFinalize)

	claim := common.HexToHash("0x0a")
	_, err = s.SubmitClaim(f.vdrA, claim, nil)
	require.NoError(t, err)

	// Too early.
	f.clock.now += testChallengePeriod
	_, err = s.FinalizeByTimeout()
	require.ErrorIs(t, err, ErrChallengePeriodActive)

	// Past the challenge period the uncontested claim finalizes.
	f.clock.now++
	require.Equal(t, PhaseConsensusTimeout, s.Phase(f.clock.now))
	finalized, err := s.FinalizeByTimeout()
	require.NoError(t, err)
	require.Equal(t, claim, finalized)

	history := s.FinalizedEpochs()
	require.Len(t, history, 1)
	require.True(t, history[0].ByTimeout)

	// The agreement set reset but the goal carried over.
	require.True(t, s.Agreement().IsEmpty())
	require.Equal(t, rollup.AllBits(3), s.ConsensusGoal())
}

func TestSecondEpochLifecycle(t *testing.T) {
	f := newFixture(t)
	s := f.service

	f.seal(t)
	claim := common.HexToHash("0x0a")
	for _, vdr := range []ids.NodeID{f.vdrA, f.vdrB, f.vdrC} {
		_, err := s.SubmitClaim(vdr, claim, nil)
		require.NoError(t, err)
	}
	require.Len(t, s.FinalizedEpochs(), 1)

	// Epoch 1 accumulates from the finalization timestamp.
	require.Equal(t, PhaseInputAccumulation, s.Phase(f.clock.now))
	_, err := s.AddInput(f.vdrA, []byte("epoch1"))
	require.NoError(t, err)

	f.seal(t)
	claim2 := common.HexToHash("0x0b")
	for _, vdr := range []ids.NodeID{f.vdrA, f.vdrB, f.vdrC} {
		_, err := s.SubmitClaim(vdr, claim2, nil)
		require.NoError(t, err)
	}

	history := s.FinalizedEpochs()
	require.Len(t, history, 2)
	require.Equal(t, uint64(1), history[1].Epoch)
	require.Equal(t, claim2, history[1].Claim)
}

func TestClaimVerifierGate(t *testing.T) {
	f := newFixture(t)

	// Rebuild the service with a verifier that rejects everything.
	rejecting := rejectingVerifier{}
	s, err := New(
		Config{
			Self:              f.service.cfg.Self,
			InputDuration:     testInputDuration,
			ChallengePeriod:   testChallengePeriod,
			CreationTimestamp: testCreation,
		},
		f.manager,
		mustBox(t, f.service.cfg.Self),
		f.executor,
		rejecting,
		f.clock.read,
		nil,
		nil,
	)
	require.NoError(t, err)

	f.clock.now += testInputDuration + 1
	_, err = s.SubmitClaim(f.vdrA, common.HexToHash("0x0a"), nil)
	require.ErrorIs(t, err, ErrInvalidClaimSignature)

	// The rejected claim never reached the validator manager.
	require.Equal(t, common.Hash{}, f.manager.CurrentClaim())
}

type rejectingVerifier struct{}

func (rejectingVerifier) VerifyClaim(ids.NodeID, common.Hash, []byte) error {
	return ErrInvalidClaimSignature
}

func mustBox(t *testing.T, self ids.NodeID) *inputs.Box {
	t.Helper()
	box, err := inputs.NewBox(self, nil)
	require.NoError(t, err)
	return box
}

// The HTTP layer calls the service from one goroutine per request, so
// every entry point must be safe to call concurrently.
func TestConcurrentCalls(t *testing.T) {
	f := newFixture(t)
	s := f.service

	const (
		writers          = 8
		inputsPerWriter  = 100
		readersPerWriter = 1
	)

	errs := make(chan error, writers*inputsPerWriter)
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < inputsPerWriter; i++ {
				payload := []byte(fmt.Sprintf("input-%d-%d", w, i))
				if _, err := s.AddInput(f.vdrA, payload); err != nil {
					errs <- err
				}
			}
		}(w)

		for r := 0; r < readersPerWriter; r++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < inputsPerWriter; i++ {
					_ = s.Phase(s.Now())
					_ = s.Agreement()
					_, _ = s.SealedEpoch()
				}
			}()
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// Every input landed exactly once: seal and count the box.
	f.seal(t)
	_, err := s.SubmitClaim(f.vdrA, common.HexToHash("0x0a"), nil)
	require.NoError(t, err)
	require.Equal(t, writers*inputsPerWriter, f.box.SealedLen())
}

func TestExecuteVoucherThroughService(t *testing.T) {
	f := newFixture(t)
	s := f.service

	// Build a drive whose fold is the claim the validators agree on.
	payload := []byte("voucher")
	index := uint64(1)<<3 | 2
	leaves := make([]common.Hash, index+1)
	leaves[index] = merkle.HashLeaf(payload)

	vouchersRoot, err := merkle.Root(leaves, 5)
	require.NoError(t, err)
	siblings, err := merkle.Proof(leaves, 5, index)
	require.NoError(t, err)

	noticesRoot := merkle.HashLeaf([]byte("notices"))
	machineState := merkle.HashLeaf([]byte("state"))
	claim := outputs.EpochHash(vouchersRoot, noticesRoot, machineState)

	f.seal(t)
	for _, vdr := range []ids.NodeID{f.vdrA, f.vdrB, f.vdrC} {
		_, err := s.SubmitClaim(vdr, claim, nil)
		require.NoError(t, err)
	}

	proof := outputs.Proof{
		VouchersRoot:     vouchersRoot,
		NoticesRoot:      noticesRoot,
		MachineStateHash: machineState,
		Siblings:         siblings,
	}
	require.NoError(t, s.ExecuteVoucher(0, 1, 2, payload, proof))

	err = s.ExecuteVoucher(0, 1, 2, payload, proof)
	require.ErrorIs(t, err, outputs.ErrAlreadyExecuted)
}
