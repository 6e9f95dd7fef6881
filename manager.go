// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package rollup

import (
	"errors"
	"fmt"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	log "github.com/luxfi/log"
)

var (
	// ErrNotOrchestrator is returned when a mutating call does not come
	// from the orchestrator identity fixed at construction.
	ErrNotOrchestrator = errors.New("caller is not the orchestrator")

	// ErrInvalidClaim is returned when a submitted claim is the zero hash.
	ErrInvalidClaim = errors.New("invalid claim")

	// ErrUnknownValidator is returned when an identity does not match an
	// occupied roster slot.
	ErrUnknownValidator = errors.New("unknown validator")

	// ErrInvalidDispute is returned when a dispute outcome names the same
	// identity as both winner and loser.
	ErrInvalidDispute = errors.New("invalid dispute outcome")

	// ErrNoEndorser signals a conflicting claim with an empty agreement
	// set. The first claim of an epoch always endorses itself, so this is
	// unreachable unless internal state is corrupted.
	ErrNoEndorser = errors.New("conflicting claim with no recorded endorser")
)

// ValidatorManager tracks which validators have endorsed the current
// epoch's claim, detects conflicting claims, and records the outcome of
// externally adjudicated disputes.
//
// The roster is fixed at construction. A validator's slot index is its
// permanent bit index in the agreement and consensus-goal bit sets;
// removal tombstones the slot and never renumbers the rest. The goal set
// only ever shrinks, one bit per removed validator, while the agreement
// set and current claim reset on every epoch rollover.
//
// All mutating calls are restricted to a single orchestrator identity.
// Calls are validate-then-mutate: a rejected call leaves state untouched.
// The manager is not safe for concurrent use; the orchestrator serializes
// calls, and the serialization order is semantically significant (the
// first claim of an epoch becomes the baseline the rest are compared to).
type ValidatorManager struct {
	orchestrator ids.NodeID
	roster       []ids.NodeID

	goal         Bits
	agreement    Bits
	currentClaim common.Hash

	log      log.Logger
	notifier Notifier
}

// NewValidatorManager creates a validator manager for a fixed roster.
// Only the orchestrator identity may invoke the mutating entry points.
func NewValidatorManager(
	orchestrator ids.NodeID,
	validators []ids.NodeID,
	logger log.Logger,
	notifier Notifier,
) (*ValidatorManager, error) {
	if orchestrator == ids.EmptyNodeID {
		return nil, errors.New("empty orchestrator identity")
	}
	if len(validators) == 0 {
		return nil, errors.New("empty validator set")
	}
	if len(validators) > MaxValidators {
		return nil, fmt.Errorf("validator set size %d exceeds maximum %d", len(validators), MaxValidators)
	}

	seen := make(map[ids.NodeID]bool, len(validators))
	for i, v := range validators {
		if v == ids.EmptyNodeID {
			return nil, fmt.Errorf("empty validator identity at index %d", i)
		}
		if seen[v] {
			return nil, fmt.Errorf("duplicate validator identity at index %d: %s", i, v)
		}
		seen[v] = true
	}

	if logger == nil {
		logger = log.NoLog{}
	}
	if notifier == nil {
		notifier = NoopNotifier{}
	}

	roster := make([]ids.NodeID, len(validators))
	copy(roster, validators)

	return &ValidatorManager{
		orchestrator: orchestrator,
		roster:       roster,
		goal:         AllBits(len(roster)),
		log:          logger,
		notifier:     notifier,
	}, nil
}

// SubmitClaim records a validator's claim for the current epoch.
//
// The first non-zero claim of an epoch is adopted as the current claim. A
// matching claim endorses it; once the agreement set equals the goal set
// bit for bit the verdict is Consensus. A differing claim produces a
// Conflict verdict naming the lowest-index endorser of the current claim
// and the challenger, without mutating any state.
func (m *ValidatorManager) SubmitClaim(
	caller ids.NodeID,
	validatorID ids.NodeID,
	claim common.Hash,
) (Verdict, error) {
	if caller != m.orchestrator {
		return Verdict{}, ErrNotOrchestrator
	}
	if claim == (common.Hash{}) {
		return Verdict{}, fmt.Errorf("%w: zero claim", ErrInvalidClaim)
	}

	slot, ok := m.slotOf(validatorID)
	if !ok {
		return Verdict{}, fmt.Errorf("%w: %s", ErrUnknownValidator, validatorID)
	}

	if m.currentClaim == (common.Hash{}) {
		m.currentClaim = claim
	}

	if claim != m.currentClaim {
		endorser, ok := m.lowestEndorser()
		if !ok {
			return Verdict{}, ErrNoEndorser
		}
		verdict := Verdict{
			Outcome:    Conflict,
			Claims:     [2]common.Hash{m.currentClaim, claim},
			Validators: [2]ids.NodeID{endorser, validatorID},
		}
		m.log.Debug("conflicting claim",
			log.Stringer("currentClaim", m.currentClaim),
			log.Stringer("claim", claim),
			log.Stringer("validator", validatorID),
		)
		m.notifier.ClaimReceived(verdict)
		return verdict, nil
	}

	m.agreement = m.agreement.Add(slot)
	verdict := m.evaluate(claim, validatorID)
	m.notifier.ClaimReceived(verdict)
	return verdict, nil
}

// ResolveDispute records the outcome of an externally adjudicated dispute.
//
// The loser is tombstoned and cleared from both bit sets; a loser that no
// longer matches an occupied slot only skips the removal step, since the
// outcome must still be recorded when the loser was already removed by an
// earlier resolution. If another validator still endorses the losing
// claim the dispute continues against the lowest-index remaining endorser.
// Otherwise the winning claim becomes the current claim with the winner
// as its first endorser.
func (m *ValidatorManager) ResolveDispute(
	caller ids.NodeID,
	winner ids.NodeID,
	loser ids.NodeID,
	winningClaim common.Hash,
) (Verdict, error) {
	if caller != m.orchestrator {
		return Verdict{}, ErrNotOrchestrator
	}
	if winningClaim == (common.Hash{}) {
		return Verdict{}, fmt.Errorf("%w: zero winning claim", ErrInvalidClaim)
	}
	if winner == loser {
		return Verdict{}, fmt.Errorf("%w: winner and loser are both %s", ErrInvalidDispute, winner)
	}

	winnerSlot, ok := m.slotOf(winner)
	if !ok {
		return Verdict{}, fmt.Errorf("%w: winner %s", ErrUnknownValidator, winner)
	}

	if loserSlot, ok := m.slotOf(loser); ok {
		m.roster[loserSlot] = ids.EmptyNodeID
		m.agreement = m.agreement.Remove(loserSlot)
		m.goal = m.goal.Remove(loserSlot)
		m.log.Info("validator removed",
			log.Stringer("validator", loser),
			log.Int("slot", loserSlot),
		)
	} else {
		m.log.Debug("dispute loser already removed", log.Stringer("validator", loser))
	}

	var verdict Verdict
	switch {
	case winningClaim == m.currentClaim:
		verdict = m.evaluate(m.currentClaim, winner)

	case !m.agreement.IsEmpty():
		// Another validator endorsed the now-losing claim; the dispute
		// continues against them.
		endorser, _ := m.lowestEndorser()
		verdict = Verdict{
			Outcome:    Conflict,
			Claims:     [2]common.Hash{m.currentClaim, winningClaim},
			Validators: [2]ids.NodeID{endorser, winner},
		}

	default:
		m.currentClaim = winningClaim
		m.agreement = m.agreement.Add(winnerSlot)
		verdict = m.evaluate(winningClaim, winner)
	}

	m.notifier.DisputeEnded(verdict)
	return verdict, nil
}

// AdvanceEpoch finalizes the current epoch. It returns the finalized
// claim (the zero hash if none was ever submitted) and resets the current
// claim and agreement set. The consensus-goal set carries over unchanged.
func (m *ValidatorManager) AdvanceEpoch(caller ids.NodeID) (common.Hash, error) {
	if caller != m.orchestrator {
		return common.Hash{}, ErrNotOrchestrator
	}

	finalized := m.currentClaim
	m.currentClaim = common.Hash{}
	m.agreement = 0

	m.notifier.NewEpoch(finalized)
	return finalized, nil
}

// Agreement returns the set of slot indices that endorsed the current
// claim within the current epoch.
func (m *ValidatorManager) Agreement() Bits {
	return m.agreement
}

// ConsensusGoal returns the set of slot indices of all active validators.
func (m *ValidatorManager) ConsensusGoal() Bits {
	return m.goal
}

// CurrentClaim returns the claim under agreement, or the zero hash if no
// claim has been submitted this epoch.
func (m *ValidatorManager) CurrentClaim() common.Hash {
	return m.currentClaim
}

// Roster returns a copy of the validator slots. Tombstoned slots hold the
// empty identity.
func (m *ValidatorManager) Roster() []ids.NodeID {
	roster := make([]ids.NodeID, len(m.roster))
	copy(roster, m.roster)
	return roster
}

// slotOf returns the slot index of an occupied roster entry. Tombstoned
// slots never match.
func (m *ValidatorManager) slotOf(validatorID ids.NodeID) (int, bool) {
	if validatorID == ids.EmptyNodeID {
		return 0, false
	}
	for i, v := range m.roster {
		if v == validatorID {
			return i, true
		}
	}
	return 0, false
}

// lowestEndorser returns the validator at the lowest slot index in the
// agreement set. Lowest index is the universal tie-break when a single
// representative endorser must be named.
func (m *ValidatorManager) lowestEndorser() (ids.NodeID, bool) {
	slot, ok := m.agreement.Lowest()
	if !ok {
		return ids.EmptyNodeID, false
	}
	return m.roster[slot], true
}

// evaluate compares the agreement set to the goal set after an
// endorsement was recorded.
func (m *ValidatorManager) evaluate(claim common.Hash, validatorID ids.NodeID) Verdict {
	if m.agreement.Equal(m.goal) {
		m.log.Info("consensus reached",
			log.Stringer("claim", claim),
			log.Stringer("validator", validatorID),
		)
		return Verdict{
			Outcome:    Consensus,
			Claims:     [2]common.Hash{claim, {}},
			Validators: [2]ids.NodeID{validatorID, ids.EmptyNodeID},
		}
	}
	return Verdict{Outcome: NoConflict}
}
