package rpc

import (
	"encoding/json"
	"math/big"
	"net/http"
)

type proposeParams struct {
	Owner     string `json:"owner"`
	Tag       string `json:"tag"`
	Signature string `json:"signature"`
}

func (s *Server) handlePropose(w *statusRecorder, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "parameter object required", nil)
		return
	}
	var params proposeParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "invalid proposal parameters", err.Error())
		return
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "failed to decode owner address", err.Error())
		return
	}
	signature, err := parseSignature(params.Signature)
	if err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	id, err := s.ledger.Propose(owner, params.Tag, signature)
	if err != nil {
		w.ledgerError(req.ID, err)
		return
	}
	contribution, err := s.ledger.ContributionAt(id)
	if err != nil {
		w.ledgerError(req.ID, err)
		return
	}
	writeResult(w, req.ID, contributionToResult(contribution))
}

type proposeBatchParams struct {
	Entries []struct {
		Owner string `json:"owner"`
		Tag   string `json:"tag"`
	} `json:"entries"`
	Signature string `json:"signature"`
}

func (s *Server) handleProposeBatch(w *statusRecorder, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "parameter object required", nil)
		return
	}
	var params proposeBatchParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "invalid batch parameters", err.Error())
		return
	}
	if len(params.Entries) == 0 {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "batch must not be empty", nil)
		return
	}
	owners := make([][20]byte, len(params.Entries))
	tags := make([]string, len(params.Entries))
	for i, entry := range params.Entries {
		owner, err := parseAddress(entry.Owner)
		if err != nil {
			w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "failed to decode owner address", err.Error())
			return
		}
		owners[i] = owner
		tags[i] = entry.Tag
	}
	signature, err := parseSignature(params.Signature)
	if err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	ids, err := s.ledger.ProposeBatch(owners, tags, signature)
	if err != nil {
		w.ledgerError(req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{"ids": ids})
}

type resolveParams struct {
	Caller string `json:"caller"`
	ID     uint64 `json:"id"`
	Accept bool   `json:"accept"`
}

func (s *Server) handleResolve(w *statusRecorder, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "parameter object required", nil)
		return
	}
	var params resolveParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "invalid resolve parameters", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "failed to decode caller address", err.Error())
		return
	}
	if err := s.ledger.Resolve(caller, params.ID, params.Accept); err != nil {
		w.ledgerError(req.ID, err)
		return
	}
	contribution, err := s.ledger.ContributionAt(params.ID)
	if err != nil {
		w.ledgerError(req.ID, err)
		return
	}
	writeResult(w, req.ID, contributionToResult(contribution))
}

type removeParams struct {
	Caller string   `json:"caller"`
	ID     uint64   `json:"id"`
	IDs    []uint64 `json:"ids"`
}

func (s *Server) handleRemove(w *statusRecorder, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "parameter object required", nil)
		return
	}
	var params removeParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "invalid remove parameters", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "failed to decode caller address", err.Error())
		return
	}
	if err := s.ledger.Remove(caller, params.ID); err != nil {
		w.ledgerError(req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{"removed": params.ID})
}

func (s *Server) handleRemoveBatch(w *statusRecorder, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "parameter object required", nil)
		return
	}
	var params removeParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "invalid remove parameters", err.Error())
		return
	}
	if len(params.IDs) == 0 {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "ids must not be empty", nil)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "failed to decode caller address", err.Error())
		return
	}
	if err := s.ledger.RemoveBatch(caller, params.IDs); err != nil {
		w.ledgerError(req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{"removed": params.IDs})
}

type contributionParams struct {
	ID uint64 `json:"id"`
}

func (s *Server) handleContribution(w *statusRecorder, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "parameter object required", nil)
		return
	}
	var params contributionParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "invalid contribution parameters", err.Error())
		return
	}
	contribution, err := s.ledger.ContributionAt(params.ID)
	if err != nil {
		w.ledgerError(req.ID, err)
		return
	}
	writeResult(w, req.ID, contributionToResult(contribution))
}

type snapshotParams struct {
	Snapshot uint64   `json:"snapshot"`
	Owner    string   `json:"owner"`
	Tags     []string `json:"tags"`
}

func (s *Server) handleTagCounts(w *statusRecorder, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "parameter object required", nil)
		return
	}
	var params snapshotParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "invalid snapshot parameters", err.Error())
		return
	}
	counts, err := s.ledger.TagCountsAt(params.Snapshot)
	if err != nil {
		w.ledgerError(req.ID, err)
		return
	}
	writeResult(w, req.ID, tagCountsToResult(counts))
}

func (s *Server) handleOwnerTagCounts(w *statusRecorder, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "parameter object required", nil)
		return
	}
	var params snapshotParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "invalid snapshot parameters", err.Error())
		return
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "failed to decode owner address", err.Error())
		return
	}
	counts, err := s.ledger.OwnerTagCountsAt(params.Snapshot, owner)
	if err != nil {
		w.ledgerError(req.ID, err)
		return
	}
	writeResult(w, req.ID, tagCountsToResult(counts))
}

func (s *Server) handleOwnerTagPercentage(w *statusRecorder, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "parameter object required", nil)
		return
	}
	var params snapshotParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "invalid snapshot parameters", err.Error())
		return
	}
	if len(params.Tags) == 0 {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "tags must not be empty", nil)
		return
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "failed to decode owner address", err.Error())
		return
	}
	percentages, err := s.ledger.OwnerTagPercentageAt(params.Snapshot, owner, params.Tags)
	if err != nil {
		w.ledgerError(req.ID, err)
		return
	}
	out := make([]string, len(percentages))
	for i, pct := range percentages {
		if pct == nil {
			pct = big.NewInt(0)
		}
		out[i] = pct.String()
	}
	writeResult(w, req.ID, map[string]interface{}{"percentages": out})
}

type verifierParams struct {
	Caller    string   `json:"caller"`
	Tag       string   `json:"tag"`
	Tags      []string `json:"tags"`
	Verifier  string   `json:"verifier"`
	Verifiers []string `json:"verifiers"`
}

func (s *Server) handleSetDefaultVerifier(w *statusRecorder, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "parameter object required", nil)
		return
	}
	var params verifierParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "invalid verifier parameters", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "failed to decode caller address", err.Error())
		return
	}
	verifier, err := parseAddress(params.Verifier)
	if err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "failed to decode verifier address", err.Error())
		return
	}
	if err := s.ledger.SetDefaultVerifier(caller, verifier); err != nil {
		w.ledgerError(req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{"verifier": params.Verifier})
}

func (s *Server) handleSetTagVerifier(w *statusRecorder, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "parameter object required", nil)
		return
	}
	var params verifierParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "invalid verifier parameters", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "failed to decode caller address", err.Error())
		return
	}
	verifier, err := parseAddress(params.Verifier)
	if err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "failed to decode verifier address", err.Error())
		return
	}
	if err := s.ledger.SetTagVerifier(caller, params.Tag, verifier); err != nil {
		w.ledgerError(req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{"tag": params.Tag, "verifier": params.Verifier})
}

func (s *Server) handleSetTagVerifiers(w *statusRecorder, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "parameter object required", nil)
		return
	}
	var params verifierParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "invalid verifier parameters", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "failed to decode caller address", err.Error())
		return
	}
	verifiers := make([][20]byte, len(params.Verifiers))
	for i, value := range params.Verifiers {
		verifier, err := parseAddress(value)
		if err != nil {
			w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "failed to decode verifier address", err.Error())
			return
		}
		verifiers[i] = verifier
	}
	if err := s.ledger.SetTagVerifiers(caller, params.Tags, verifiers); err != nil {
		w.ledgerError(req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{"tags": params.Tags})
}
