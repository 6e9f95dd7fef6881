// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package api exposes the rollup node over HTTP with JSON bodies.
package api

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	log "github.com/luxfi/log"

	"github.com/luxfi/rollup/node"
	"github.com/luxfi/rollup/outputs"
)

const (
	SubmitClaimPath    = "/submit-claim"
	ResolveDisputePath = "/resolve-dispute"
	AddInputPath       = "/add-input"
	ExecuteVoucherPath = "/execute-voucher"
	StatusPath         = "/status"

	// removedRosterSlot marks a tombstoned roster slot in status
	// responses.
	removedRosterSlot = "removed"
)

type SubmitClaimRequest struct {
	// ValidatorID is the submitting validator's node ID, in CB58.
	ValidatorID string `json:"validator-id"`
	// Claim is the hex-encoded epoch hash, optionally prefixed with "0x".
	Claim string `json:"claim"`
	// Signature is the hex-encoded BLS signature over the claim.
	// Optional when the node runs without claim verification.
	Signature string `json:"signature"`
}

type SubmitClaimResponse struct {
	Outcome      string `json:"outcome"`
	CurrentClaim string `json:"current-claim"`
}

type ResolveDisputeRequest struct {
	WinnerID string `json:"winner-id"`
	LoserID  string `json:"loser-id"`
	// WinningClaim is the hex-encoded claim the dispute upheld.
	WinningClaim string `json:"winning-claim"`
}

type ResolveDisputeResponse struct {
	Outcome      string `json:"outcome"`
	CurrentClaim string `json:"current-claim"`
}

type AddInputRequest struct {
	// SenderID is the input sender's node ID, in CB58.
	SenderID string `json:"sender-id"`
	// Payload is the hex-encoded input payload.
	Payload string `json:"payload"`
}

type AddInputResponse struct {
	InputHash string `json:"input-hash"`
}

type ExecuteVoucherRequest struct {
	Epoch       uint64 `json:"epoch"`
	InputIndex  uint64 `json:"input-index"`
	OutputIndex uint64 `json:"output-index"`
	// Payload is the hex-encoded voucher payload.
	Payload string `json:"payload"`

	VouchersRoot     string   `json:"vouchers-root"`
	NoticesRoot      string   `json:"notices-root"`
	MachineStateHash string   `json:"machine-state-hash"`
	Siblings         []string `json:"siblings"`
}

type StatusResponse struct {
	Phase           string   `json:"phase"`
	CurrentEpoch    uint64   `json:"current-epoch"`
	SealedEpoch     *uint64  `json:"sealed-epoch,omitempty"`
	CurrentClaim    string   `json:"current-claim"`
	Agreement       string   `json:"agreement"`
	ConsensusGoal   string   `json:"consensus-goal"`
	FinalizedEpochs int      `json:"finalized-epochs"`
	Roster          []string `json:"roster,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// RegisterHandlers installs every rollup endpoint on the mux.
func RegisterHandlers(logger log.Logger, mux *http.ServeMux, service *node.Service) {
	mux.Handle(SubmitClaimPath, submitClaimHandler(logger, service))
	mux.Handle(ResolveDisputePath, resolveDisputeHandler(logger, service))
	mux.Handle(AddInputPath, addInputHandler(logger, service))
	mux.Handle(ExecuteVoucherPath, executeVoucherHandler(logger, service))
	mux.Handle(StatusPath, statusHandler(logger, service))
}

func writeJSONError(
	logger log.Logger,
	w http.ResponseWriter,
	httpStatusCode int,
	errorMsg string,
) {
	resp, err := json.Marshal(ErrorResponse{Error: errorMsg})
	if err != nil {
		msg := "Error marshalling JSON error response"
		logger.Error(msg, log.Err(err))
		resp = []byte(msg)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)

	if _, err = w.Write(resp); err != nil {
		logger.Error("Error writing error response", log.Err(err))
	}
}

func writeJSON(logger log.Logger, w http.ResponseWriter, body interface{}) {
	resp, err := json.Marshal(body)
	if err != nil {
		msg := "Failed to marshal response"
		logger.Error(msg, log.Err(err))
		writeJSONError(logger, w, http.StatusInternalServerError, msg)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err = w.Write(resp); err != nil {
		logger.Error("Error writing response", log.Err(err))
	}
}

func sanitizeHexString(hexString string) string {
	return strings.TrimPrefix(hexString, "0x")
}

func parseHash(hexString string) (common.Hash, bool) {
	raw, err := hex.DecodeString(sanitizeHexString(hexString))
	if err != nil || len(raw) != common.HashLength {
		return common.Hash{}, false
	}
	return common.BytesToHash(raw), true
}

func submitClaimHandler(logger log.Logger, service *node.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req SubmitClaimRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			msg := "Could not decode request body"
			logger.Warn(msg, log.Err(err))
			writeJSONError(logger, w, http.StatusBadRequest, msg)
			return
		}

		validatorID, err := ids.NodeIDFromString(req.ValidatorID)
		if err != nil {
			msg := "Could not parse validator ID"
			logger.Warn(msg, log.String("validatorID", req.ValidatorID), log.Err(err))
			writeJSONError(logger, w, http.StatusBadRequest, msg)
			return
		}

		claim, ok := parseHash(req.Claim)
		if !ok {
			msg := "Could not decode claim"
			logger.Warn(msg, log.String("claim", req.Claim))
			writeJSONError(logger, w, http.StatusBadRequest, msg)
			return
		}

		signature, err := hex.DecodeString(sanitizeHexString(req.Signature))
		if err != nil {
			msg := "Could not decode signature"
			logger.Warn(msg, log.Err(err))
			writeJSONError(logger, w, http.StatusBadRequest, msg)
			return
		}

		verdict, err := service.SubmitClaim(validatorID, claim, signature)
		if err != nil {
			logger.Warn("Failed to submit claim", log.Err(err))
			writeJSONError(logger, w, http.StatusUnprocessableEntity, err.Error())
			return
		}

		writeJSON(logger, w, SubmitClaimResponse{
			Outcome:      verdict.Outcome.String(),
			CurrentClaim: service.CurrentClaim().Hex(),
		})
	})
}

func resolveDisputeHandler(logger log.Logger, service *node.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ResolveDisputeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			msg := "Could not decode request body"
			logger.Warn(msg, log.Err(err))
			writeJSONError(logger, w, http.StatusBadRequest, msg)
			return
		}

		winnerID, err := ids.NodeIDFromString(req.WinnerID)
		if err != nil {
			msg := "Could not parse winner ID"
			logger.Warn(msg, log.String("winnerID", req.WinnerID), log.Err(err))
			writeJSONError(logger, w, http.StatusBadRequest, msg)
			return
		}
		loserID, err := ids.NodeIDFromString(req.LoserID)
		if err != nil {
			msg := "Could not parse loser ID"
			logger.Warn(msg, log.String("loserID", req.LoserID), log.Err(err))
			writeJSONError(logger, w, http.StatusBadRequest, msg)
			return
		}

		winningClaim, ok := parseHash(req.WinningClaim)
		if !ok {
			msg := "Could not decode winning claim"
			logger.Warn(msg, log.String("winningClaim", req.WinningClaim))
			writeJSONError(logger, w, http.StatusBadRequest, msg)
			return
		}

		verdict, err := service.ResolveDispute(winnerID, loserID, winningClaim)
		if err != nil {
			logger.Warn("Failed to resolve dispute", log.Err(err))
			writeJSONError(logger, w, http.StatusUnprocessableEntity, err.Error())
			return
		}

		writeJSON(logger, w, ResolveDisputeResponse{
			Outcome:      verdict.Outcome.String(),
			CurrentClaim: service.CurrentClaim().Hex(),
		})
	})
}

func addInputHandler(logger log.Logger, service *node.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req AddInputRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			msg := "Could not decode request body"
			logger.Warn(msg, log.Err(err))
			writeJSONError(logger, w, http.StatusBadRequest, msg)
			return
		}

		senderID, err := ids.NodeIDFromString(req.SenderID)
		if err != nil {
			msg := "Could not parse sender ID"
			logger.Warn(msg, log.String("senderID", req.SenderID), log.Err(err))
			writeJSONError(logger, w, http.StatusBadRequest, msg)
			return
		}

		payload, err := hex.DecodeString(sanitizeHexString(req.Payload))
		if err != nil {
			msg := "Could not decode payload"
			logger.Warn(msg, log.Err(err))
			writeJSONError(logger, w, http.StatusBadRequest, msg)
			return
		}

		hash, err := service.AddInput(senderID, payload)
		if err != nil {
			logger.Warn("Failed to add input", log.Err(err))
			writeJSONError(logger, w, http.StatusUnprocessableEntity, err.Error())
			return
		}

		writeJSON(logger, w, AddInputResponse{InputHash: hash.Hex()})
	})
}

func executeVoucherHandler(logger log.Logger, service *node.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ExecuteVoucherRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			msg := "Could not decode request body"
			logger.Warn(msg, log.Err(err))
			writeJSONError(logger, w, http.StatusBadRequest, msg)
			return
		}

		payload, err := hex.DecodeString(sanitizeHexString(req.Payload))
		if err != nil {
			msg := "Could not decode payload"
			logger.Warn(msg, log.Err(err))
			writeJSONError(logger, w, http.StatusBadRequest, msg)
			return
		}

		vouchersRoot, ok := parseHash(req.VouchersRoot)
		if !ok {
			writeJSONError(logger, w, http.StatusBadRequest, "Could not decode vouchers root")
			return
		}
		noticesRoot, ok := parseHash(req.NoticesRoot)
		if !ok {
			writeJSONError(logger, w, http.StatusBadRequest, "Could not decode notices root")
			return
		}
		machineStateHash, ok := parseHash(req.MachineStateHash)
		if !ok {
			writeJSONError(logger, w, http.StatusBadRequest, "Could not decode machine state hash")
			return
		}
		siblings := make([]common.Hash, len(req.Siblings))
		for i, sibling := range req.Siblings {
			siblings[i], ok = parseHash(sibling)
			if !ok {
				writeJSONError(logger, w, http.StatusBadRequest, "Could not decode proof sibling")
				return
			}
		}

		err = service.ExecuteVoucher(
			req.Epoch,
			req.InputIndex,
			req.OutputIndex,
			payload,
			outputs.Proof{
				VouchersRoot:     vouchersRoot,
				NoticesRoot:      noticesRoot,
				MachineStateHash: machineStateHash,
				Siblings:         siblings,
			},
		)
		if err != nil {
			logger.Warn("Failed to execute voucher", log.Err(err))
			writeJSONError(logger, w, http.StatusUnprocessableEntity, err.Error())
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

func statusHandler(logger log.Logger, service *node.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{
			Phase:           service.Phase(service.Now()).String(),
			CurrentEpoch:    service.CurrentEpoch(),
			CurrentClaim:    service.CurrentClaim().Hex(),
			Agreement:       service.Agreement().String(),
			ConsensusGoal:   service.ConsensusGoal().String(),
			FinalizedEpochs: len(service.FinalizedEpochs()),
		}
		// Slot indices are permanent, so removed validators keep their
		// position with an explicit marker.
		for _, validatorID := range service.Roster() {
			if validatorID == ids.EmptyNodeID {
				resp.Roster = append(resp.Roster, removedRosterSlot)
				continue
			}
			resp.Roster = append(resp.Roster, validatorID.String())
		}
		if sealed, ok := service.SealedEpoch(); ok {
			resp.SealedEpoch = &sealed
		}
		writeJSON(logger, w, resp)
	})
}
