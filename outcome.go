// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package rollup

import (
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	log "github.com/luxfi/log"
)

// Outcome is the result of a claim submission or dispute resolution.
type Outcome uint8

const (
	// NoConflict means the claim agrees with the current claim but full
	// agreement has not been reached yet.
	NoConflict Outcome = iota

	// Consensus means every active validator has endorsed the current claim.
	Consensus

	// Conflict means two validators stand behind different claims; the
	// standoff is left for external resolution.
	Conflict
)

func (o Outcome) String() string {
	switch o {
	case NoConflict:
		return "no-conflict"
	case Consensus:
		return "consensus"
	case Conflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Verdict is the full result tuple of a mutating validator manager call.
//
// For Conflict, Claims holds (current claim, challenging claim) and
// Validators holds (lowest-index endorser of the current claim, challenger).
// For Consensus, Claims[0] is the agreed claim and Validators[0] is the
// validator whose endorsement completed agreement; the second elements are
// the zero sentinels. For NoConflict every element is the zero sentinel.
type Verdict struct {
	Outcome    Outcome
	Claims     [2]common.Hash
	Validators [2]ids.NodeID
}

// Notifier receives the authoritative event stream of the validator
// manager. Each event mirrors the tuple returned by the corresponding
// call exactly; downstream indexers rely on this.
type Notifier interface {
	// ClaimReceived is emitted by every successful claim submission.
	ClaimReceived(Verdict)

	// DisputeEnded is emitted by every successful dispute resolution.
	DisputeEnded(Verdict)

	// NewEpoch is emitted on epoch rollover with the finalized claim,
	// or the zero hash if no claim was ever submitted.
	NewEpoch(common.Hash)
}

// NoopNotifier discards all events.
type NoopNotifier struct{}

func (NoopNotifier) ClaimReceived(Verdict)  {}
func (NoopNotifier) DisputeEnded(Verdict)   {}
func (NoopNotifier) NewEpoch(common.Hash)   {}

// LogNotifier writes every event to a logger.
type LogNotifier struct {
	Log log.Logger
}

func (n LogNotifier) ClaimReceived(v Verdict) {
	n.Log.Info("claim received",
		log.Stringer("outcome", v.Outcome),
		log.Stringer("currentClaim", v.Claims[0]),
		log.Stringer("challengingClaim", v.Claims[1]),
		log.Stringer("endorser", v.Validators[0]),
		log.Stringer("challenger", v.Validators[1]),
	)
}

func (n LogNotifier) DisputeEnded(v Verdict) {
	n.Log.Info("dispute ended",
		log.Stringer("outcome", v.Outcome),
		log.Stringer("currentClaim", v.Claims[0]),
		log.Stringer("challengingClaim", v.Claims[1]),
		log.Stringer("endorser", v.Validators[0]),
		log.Stringer("challenger", v.Validators[1]),
	)
}

func (n LogNotifier) NewEpoch(claim common.Hash) {
	n.Log.Info("new epoch", log.Stringer("finalizedClaim", claim))
}
