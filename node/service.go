// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package node drives the rollup through its epoch lifecycle. The
// service is the single trusted orchestrator of the validator manager,
// the input boxes and the voucher executor: a service-level mutex
// serializes every call, so the components themselves carry no locks.
// The serialization order is semantically significant (the first claim
// of an epoch becomes the baseline the rest are compared to).
package node

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	log "github.com/luxfi/log"

	"github.com/luxfi/rollup"
	"github.com/luxfi/rollup/inputs"
	"github.com/luxfi/rollup/metrics"
	"github.com/luxfi/rollup/outputs"
)

var (
	// ErrNoSealedEpoch is returned when a claim or dispute targets an
	// epoch that is still accumulating inputs.
	ErrNoSealedEpoch = errors.New("no sealed epoch awaiting claims")

	// ErrChallengePeriodActive is returned when a timeout finalization is
	// requested before the challenge period expired.
	ErrChallengePeriodActive = errors.New("challenge period still active")

	// ErrNothingToFinalize is returned when a timeout finalization is
	// requested with no claim on the table.
	ErrNothingToFinalize = errors.New("no claim to finalize")
)

// FinalizedEpoch is one entry of the finalized epoch history.
type FinalizedEpoch struct {
	Epoch       uint64
	Claim       common.Hash
	FinalizedAt uint64
	ByTimeout   bool
}

// Config holds the immutable constants of the rollup, fixed at creation.
type Config struct {
	// Self is the orchestrator identity the managed components trust.
	Self ids.NodeID

	// InputDuration is how long an epoch accumulates inputs, in seconds.
	InputDuration uint64

	// ChallengePeriod is how long a sealed epoch stays open to
	// challenges after the last move, in seconds.
	ChallengePeriod uint64

	// CreationTimestamp is when accumulation of epoch 0 began.
	CreationTimestamp uint64
}

// Service is the rollup orchestrator. The lock guards every field below
// it and the managed components; HTTP handlers call in concurrently.
type Service struct {
	cfg Config

	lock sync.Mutex

	manager  *rollup.ValidatorManager
	box      *inputs.Box
	executor *outputs.Executor
	verifier ClaimVerifier

	clock func() uint64

	// accumulating is the index of the epoch currently collecting
	// inputs. When sealed is true, epoch accumulating-1 awaits claims.
	accumulating uint64
	sealed       bool

	accumulationStart uint64
	firstClaimAt      uint64
	lastDisputeAt     uint64

	finalized []FinalizedEpoch

	log     log.Logger
	metrics *metrics.RollupMetrics
}

// New creates the orchestrator service around its managed components.
func New(
	cfg Config,
	manager *rollup.ValidatorManager,
	box *inputs.Box,
	executor *outputs.Executor,
	verifier ClaimVerifier,
	clock func() uint64,
	logger log.Logger,
	m *metrics.RollupMetrics,
) (*Service, error) {
	if cfg.Self == ids.EmptyNodeID {
		return nil, errors.New("empty orchestrator identity")
	}
	if cfg.InputDuration == 0 {
		return nil, errors.New("zero input duration")
	}
	if cfg.ChallengePeriod == 0 {
		return nil, errors.New("zero challenge period")
	}
	if manager == nil || box == nil || executor == nil {
		return nil, errors.New("nil component")
	}
	if verifier == nil {
		verifier = NoopVerifier{}
	}
	if clock == nil {
		clock = func() uint64 { return uint64(time.Now().Unix()) }
	}
	if logger == nil {
		logger = log.NoLog{}
	}

	return &Service{
		cfg:               cfg,
		manager:           manager,
		box:               box,
		executor:          executor,
		verifier:          verifier,
		clock:             clock,
		accumulationStart: cfg.CreationTimestamp,
		log:               logger,
		metrics:           m,
	}, nil
}

// Phase derives the logical phase at the given timestamp.
func (s *Service) Phase(now uint64) Phase {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.phase(now)
}

func (s *Service) phase(now uint64) Phase {
	if !s.sealed {
		if now > s.accumulationStart+s.cfg.InputDuration {
			// Accumulation expired; the next interaction seals the epoch.
			return PhaseAwaitingFirstClaim
		}
		return PhaseInputAccumulation
	}

	if s.manager.CurrentClaim() == (common.Hash{}) {
		return PhaseAwaitingFirstClaim
	}

	// The challenge period starts at the first claim and restarts after
	// every dispute resolution.
	lastMove := s.firstClaimAt
	if s.lastDisputeAt > lastMove {
		lastMove = s.lastDisputeAt
	}
	if now > lastMove+s.cfg.ChallengePeriod {
		return PhaseConsensusTimeout
	}
	if s.lastDisputeAt > s.firstClaimAt {
		return PhaseAwaitingConsensusAfterConflict
	}
	return PhaseAwaitingConsensus
}

// AddInput accumulates an input into the current epoch. If accumulation
// has expired the epoch is sealed first, so the input lands in the next
// epoch's box.
func (s *Service) AddInput(sender ids.NodeID, payload []byte) (common.Hash, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	now := s.clock()
	s.maybeSeal(now)

	hash, err := s.box.AddInput(sender, payload, now)
	if err != nil {
		return common.Hash{}, err
	}
	if s.metrics != nil {
		s.metrics.InputsAccumulated.Inc()
	}
	return hash, nil
}

// SubmitClaim verifies a validator's signed claim for the sealed epoch
// and records it. Reaching consensus finalizes the epoch.
func (s *Service) SubmitClaim(
	validatorID ids.NodeID,
	claim common.Hash,
	signature []byte,
) (rollup.Verdict, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	now := s.clock()
	s.maybeSeal(now)

	if !s.sealed {
		return rollup.Verdict{}, ErrNoSealedEpoch
	}

	if err := s.verifier.VerifyClaim(validatorID, claim, signature); err != nil {
		return rollup.Verdict{}, err
	}

	verdict, err := s.manager.SubmitClaim(s.cfg.Self, validatorID, claim)
	if err != nil {
		return rollup.Verdict{}, err
	}

	if s.firstClaimAt == 0 {
		s.firstClaimAt = now
	}
	if s.metrics != nil {
		s.metrics.ClaimsReceived.Inc()
		if verdict.Outcome == rollup.Conflict {
			s.metrics.Conflicts.Inc()
		}
	}

	if verdict.Outcome == rollup.Consensus {
		if err := s.finalize(now, false); err != nil {
			return rollup.Verdict{}, err
		}
	}
	return verdict, nil
}

// ResolveDispute records the outcome of an externally adjudicated
// dispute. The challenge period restarts at the resolution. Reaching
// consensus finalizes the epoch.
func (s *Service) ResolveDispute(
	winner ids.NodeID,
	loser ids.NodeID,
	winningClaim common.Hash,
) (rollup.Verdict, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	now := s.clock()

	if !s.sealed {
		return rollup.Verdict{}, ErrNoSealedEpoch
	}

	verdict, err := s.manager.ResolveDispute(s.cfg.Self, winner, loser, winningClaim)
	if err != nil {
		return rollup.Verdict{}, err
	}

	s.lastDisputeAt = now
	if s.metrics != nil {
		s.metrics.DisputesResolved.Inc()
	}

	if verdict.Outcome == rollup.Consensus {
		if err := s.finalize(now, false); err != nil {
			return rollup.Verdict{}, err
		}
	}
	return verdict, nil
}

// FinalizeByTimeout finalizes the sealed epoch with its uncontested
// claim after the challenge period expired without full agreement.
func (s *Service) FinalizeByTimeout() (common.Hash, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	now := s.clock()
	s.maybeSeal(now)

	if !s.sealed {
		return common.Hash{}, ErrNoSealedEpoch
	}
	if s.manager.CurrentClaim() == (common.Hash{}) {
		return common.Hash{}, ErrNothingToFinalize
	}
	if s.phase(now) != PhaseConsensusTimeout {
		return common.Hash{}, ErrChallengePeriodActive
	}

	claim := s.manager.CurrentClaim()
	if err := s.finalize(now, true); err != nil {
		return common.Hash{}, err
	}
	return claim, nil
}

// ExecuteVoucher validates and executes one voucher of a finalized epoch.
func (s *Service) ExecuteVoucher(
	epoch uint64,
	inputIndex uint64,
	outputIndex uint64,
	payload []byte,
	proof outputs.Proof,
) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.executor.ExecuteVoucher(epoch, inputIndex, outputIndex, payload, proof); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.VouchersExecuted.Inc()
	}
	return nil
}

// CurrentEpoch returns the index of the currently accumulating epoch.
func (s *Service) CurrentEpoch() uint64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.accumulating
}

// SealedEpoch returns the index of the sealed epoch awaiting claims. The
// second return value is false while no epoch is sealed.
func (s *Service) SealedEpoch() (uint64, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.sealed {
		return 0, false
	}
	return s.accumulating - 1, true
}

// FinalizedEpochs returns a copy of the finalized epoch history.
func (s *Service) FinalizedEpochs() []FinalizedEpoch {
	s.lock.Lock()
	defer s.lock.Unlock()

	history := make([]FinalizedEpoch, len(s.finalized))
	copy(history, s.finalized)
	return history
}

// CurrentClaim exposes the validator manager's current claim.
func (s *Service) CurrentClaim() common.Hash {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.manager.CurrentClaim()
}

// Agreement exposes the validator manager's agreement bit set.
func (s *Service) Agreement() rollup.Bits {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.manager.Agreement()
}

// ConsensusGoal exposes the validator manager's consensus-goal bit set.
func (s *Service) ConsensusGoal() rollup.Bits {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.manager.ConsensusGoal()
}

// Roster exposes the validator manager's roster, tombstones included.
func (s *Service) Roster() []ids.NodeID {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.manager.Roster()
}

// Now returns the service's current timestamp.
func (s *Service) Now() uint64 {
	return s.clock()
}

// maybeSeal seals the accumulating epoch once its input duration has
// expired. At most one epoch is sealed at a time: if a sealed epoch is
// still awaiting claims, accumulation of the next one simply runs long.
func (s *Service) maybeSeal(now uint64) {
	if s.sealed || now <= s.accumulationStart+s.cfg.InputDuration {
		return
	}

	if _, err := s.box.OnNewEpoch(s.cfg.Self); err != nil {
		// The box trusts the same orchestrator identity as everything
		// else; a failure here is a wiring bug.
		s.log.Error("failed to seal input box", log.String("error", err.Error()))
		return
	}

	s.sealed = true
	s.accumulating++
	s.log.Info("epoch sealed",
		log.Uint64("epoch", s.accumulating-1),
		log.Int("inputs", s.box.SealedLen()),
	)
	if s.metrics != nil {
		s.metrics.CurrentEpoch.Set(float64(s.accumulating))
	}
}

// finalize closes the sealed epoch with the manager's current claim and
// seeds voucher execution with it.
func (s *Service) finalize(now uint64, byTimeout bool) error {
	epoch := s.accumulating - 1

	claim, err := s.manager.AdvanceEpoch(s.cfg.Self)
	if err != nil {
		return err
	}
	if claim == (common.Hash{}) {
		// finalize is only reached with a claim on the table.
		return fmt.Errorf("epoch %d finalized with no claim", epoch)
	}

	if err := s.executor.RegisterEpoch(s.cfg.Self, epoch, claim); err != nil {
		return err
	}

	s.finalized = append(s.finalized, FinalizedEpoch{
		Epoch:       epoch,
		Claim:       claim,
		FinalizedAt: now,
		ByTimeout:   byTimeout,
	})

	s.sealed = false
	s.accumulationStart = now
	s.firstClaimAt = 0
	s.lastDisputeAt = 0

	s.log.Info("epoch finalized",
		log.Uint64("epoch", epoch),
		log.Stringer("claim", claim),
		log.Bool("byTimeout", byTimeout),
	)
	if s.metrics != nil {
		s.metrics.EpochsFinalized.Inc()
		if !byTimeout {
			s.metrics.ConsensusReached.Inc()
		}
	}
	return nil
}
