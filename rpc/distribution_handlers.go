package rpc

import (
	"encoding/json"
	"net/http"
	"time"

	"revledger/native/distribution"
	"revledger/observability"
)

type tagWeightParam struct {
	Tag    string `json:"tag"`
	Weight string `json:"weight"`
}

type setWeightsParams struct {
	Caller  string           `json:"caller"`
	Weights []tagWeightParam `json:"weights"`
}

func (s *Server) handleSetTagWeights(w *statusRecorder, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "parameter object required", nil)
		return
	}
	var params setWeightsParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "invalid weight parameters", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "failed to decode caller address", err.Error())
		return
	}
	weights := make([]distribution.TagWeight, len(params.Weights))
	for i, entry := range params.Weights {
		weight, err := parseAmount(entry.Weight)
		if err != nil {
			w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
		weights[i] = distribution.TagWeight{Tag: entry.Tag, Weight: weight}
	}
	version, err := s.ledger.SetTagWeights(caller, weights)
	if err != nil {
		w.ledgerError(req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{"version": version})
}

type ownerPercentageParams struct {
	Caller     string `json:"caller"`
	Percentage string `json:"percentage"`
}

func (s *Server) handleSetOwnerPercentage(w *statusRecorder, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "parameter object required", nil)
		return
	}
	var params ownerPercentageParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "invalid percentage parameters", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "failed to decode caller address", err.Error())
		return
	}
	pct, err := parseAmount(params.Percentage)
	if err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.ledger.SetOwnerPercentage(caller, pct); err != nil {
		w.ledgerError(req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{"percentage": pct.String()})
}

type receivePaymentParams struct {
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

func (s *Server) handleReceivePayment(w *statusRecorder, r *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "parameter object required", nil)
		return
	}
	var params receivePaymentParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "invalid payment parameters", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	source := clientSource(r)
	if s.limiter != nil && !s.limiter.Allow(source, time.Now()) {
		w.fail(http.StatusTooManyRequests, req.ID, codeRateLimited, "payment rate limit exceeded", source)
		return
	}
	record, err := s.ledger.ReceivePayment(params.Currency, amount)
	if err != nil {
		w.ledgerError(req.ID, err)
		return
	}
	observability.LedgerMetrics().RecordPayment(record.Currency, amount)
	writeResult(w, req.ID, paymentToResult(record))
}

type claimParams struct {
	Ticket struct {
		RegistryID string `json:"registryId"`
		Kind       string `json:"kind"`
		Account    string `json:"account"`
		IssuedAt   int64  `json:"issuedAt"`
		ExpiresAt  int64  `json:"expiresAt"`
		Nonce      string `json:"nonce"`
		Signature  string `json:"signature"`
	} `json:"ticket"`
}

func (s *Server) parseClaimTicket(w *statusRecorder, req *RPCRequest) (distribution.ClaimTicket, bool) {
	var out distribution.ClaimTicket
	if len(req.Params) != 1 {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "parameter object required", nil)
		return out, false
	}
	var params claimParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "invalid claim parameters", err.Error())
		return out, false
	}
	account, err := parseAddress(params.Ticket.Account)
	if err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "failed to decode account address", err.Error())
		return out, false
	}
	signature, err := parseSignature(params.Ticket.Signature)
	if err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return out, false
	}
	out = distribution.ClaimTicket{
		RegistryID: params.Ticket.RegistryID,
		Kind:       distribution.ClaimKind(params.Ticket.Kind),
		Account:    account,
		IssuedAt:   params.Ticket.IssuedAt,
		ExpiresAt:  params.Ticket.ExpiresAt,
		Nonce:      params.Ticket.Nonce,
		Signature:  signature,
	}
	return out, true
}

func (s *Server) handleClaimOwner(w *statusRecorder, _ *http.Request, req *RPCRequest) {
	ticket, ok := s.parseClaimTicket(w, req)
	if !ok {
		return
	}
	settled, err := s.ledger.ClaimOwnerPayouts(ticket)
	if err != nil {
		w.ledgerError(req.ID, err)
		return
	}
	for _, entry := range settled {
		observability.LedgerMetrics().RecordSettlement("owner", entry.Currency, entry.Amount)
	}
	writeResult(w, req.ID, map[string]interface{}{"settlements": settlementsToResult(settled)})
}

func (s *Server) handleClaimContributor(w *statusRecorder, _ *http.Request, req *RPCRequest) {
	ticket, ok := s.parseClaimTicket(w, req)
	if !ok {
		return
	}
	settled, err := s.ledger.ClaimContributorPayouts(ticket)
	if err != nil {
		w.ledgerError(req.ID, err)
		return
	}
	for _, entry := range settled {
		observability.LedgerMetrics().RecordSettlement("contributor", entry.Currency, entry.Amount)
	}
	writeResult(w, req.ID, map[string]interface{}{"settlements": settlementsToResult(settled)})
}

func (s *Server) handleClaimAll(w *statusRecorder, _ *http.Request, req *RPCRequest) {
	ticket, ok := s.parseClaimTicket(w, req)
	if !ok {
		return
	}
	contributor, owner, err := s.ledger.ClaimAllPayouts(ticket)
	if err != nil {
		w.ledgerError(req.ID, err)
		return
	}
	for _, entry := range contributor {
		observability.LedgerMetrics().RecordSettlement("contributor", entry.Currency, entry.Amount)
	}
	for _, entry := range owner {
		observability.LedgerMetrics().RecordSettlement("owner", entry.Currency, entry.Amount)
	}
	writeResult(w, req.ID, map[string]interface{}{
		"contributorSettlements": settlementsToResult(contributor),
		"ownerSettlements":       settlementsToResult(owner),
	})
}

type indexParams struct {
	Index uint64 `json:"index"`
}

func (s *Server) handlePayment(w *statusRecorder, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "parameter object required", nil)
		return
	}
	var params indexParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "invalid payment parameters", err.Error())
		return
	}
	record, err := s.ledger.PaymentAt(params.Index)
	if err != nil {
		w.ledgerError(req.ID, err)
		return
	}
	writeResult(w, req.ID, paymentToResult(record))
}

func (s *Server) handleWeightVersion(w *statusRecorder, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "parameter object required", nil)
		return
	}
	var params indexParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "invalid version parameters", err.Error())
		return
	}
	version, err := s.ledger.WeightVersionAt(params.Index)
	if err != nil {
		w.ledgerError(req.ID, err)
		return
	}
	weights := make([]tagWeightParam, len(version.Weights))
	for i, entry := range version.Weights {
		weights[i] = tagWeightParam{Tag: entry.Tag, Weight: entry.Weight.String()}
	}
	writeResult(w, req.ID, map[string]interface{}{"version": version.Index, "weights": weights})
}

type projectParams struct {
	Currency string `json:"currency"`
	Account  string `json:"account"`
}

func (s *Server) handleProjectPayout(w *statusRecorder, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "parameter object required", nil)
		return
	}
	var params projectParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "invalid projection parameters", err.Error())
		return
	}
	account, err := parseAddress(params.Account)
	if err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "failed to decode account address", err.Error())
		return
	}
	projected, err := s.ledger.ProjectPayout(params.Currency, account)
	if err != nil {
		w.ledgerError(req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{"currency": params.Currency, "amount": projected.String()})
}

type balanceParams struct {
	Account  string `json:"account"`
	Currency string `json:"currency"`
}

func (s *Server) handleBalance(w *statusRecorder, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "parameter object required", nil)
		return
	}
	var params balanceParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "invalid balance parameters", err.Error())
		return
	}
	account, err := parseAddress(params.Account)
	if err != nil {
		w.fail(http.StatusBadRequest, req.ID, codeInvalidParams, "failed to decode account address", err.Error())
		return
	}
	balance, err := s.ledger.Balance(account, params.Currency)
	if err != nil {
		w.ledgerError(req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"account":  params.Account,
		"currency": params.Currency,
		"balance":  balance.String(),
	})
}
