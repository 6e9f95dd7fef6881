// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package node

// Phase is the logical phase of the rollup, derived from the raw state
// and the clock rather than stored directly. An epoch accumulates inputs
// for a fixed duration, is then sealed awaiting claims, and stays open to
// challenges until either full agreement or the challenge period expires.
type Phase uint8

const (
	// PhaseInputAccumulation means the current epoch is still collecting
	// inputs.
	PhaseInputAccumulation Phase = iota

	// PhaseAwaitingFirstClaim means the epoch is sealed and no claim has
	// been submitted yet.
	PhaseAwaitingFirstClaim

	// PhaseAwaitingConsensus means at least one claim is in and no
	// dispute has occurred this epoch.
	PhaseAwaitingConsensus

	// PhaseAwaitingConsensusAfterConflict means a dispute was resolved
	// this epoch; the challenge period restarted at the resolution.
	PhaseAwaitingConsensusAfterConflict

	// PhaseConsensusTimeout means the challenge period expired with an
	// uncontested claim; the epoch may be finalized without full
	// agreement.
	PhaseConsensusTimeout
)

func (p Phase) String() string {
	switch p {
	case PhaseInputAccumulation:
		return "input-accumulation"
	case PhaseAwaitingFirstClaim:
		return "awaiting-first-claim"
	case PhaseAwaitingConsensus:
		return "awaiting-consensus"
	case PhaseAwaitingConsensusAfterConflict:
		return "awaiting-consensus-after-conflict"
	case PhaseConsensusTimeout:
		return "consensus-timeout"
	default:
		return "unknown"
	}
}
