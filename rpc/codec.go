package rpc

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"revledger/crypto"
	"revledger/native/distribution"
	"revledger/native/registry"
	"revledger/native/verification"
)

func parseAddress(value string) ([20]byte, error) {
	var out [20]byte
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return out, err
	}
	copy(out[:], addr.Bytes())
	return out, nil
}

func formatAddress(addr [20]byte) string {
	return crypto.NewAddress(crypto.LedgerPrefix, addr[:]).String()
}

func parseSignature(value string) ([]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	sig, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid signature encoding: %w", err)
	}
	return sig, nil
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", trimmed)
	}
	return amount, nil
}

type contributionResult struct {
	ID     uint64 `json:"id"`
	Tag    string `json:"tag,omitempty"`
	Status string `json:"status"`
	Owner  string `json:"owner,omitempty"`
}

type tagCountResult struct {
	Tag   string `json:"tag"`
	Count uint64 `json:"count"`
}

type settlementResult struct {
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

type paymentResult struct {
	Index         uint64 `json:"index"`
	Currency      string `json:"currency"`
	Amount        string `json:"amount"`
	Snapshot      uint64 `json:"snapshot"`
	WeightVersion uint64 `json:"weightVersion"`
}

func contributionToResult(c *registry.Contribution) contributionResult {
	out := contributionResult{ID: c.ID, Tag: c.Tag, Status: c.Status.String()}
	if c.Owner != ([20]byte{}) {
		out.Owner = formatAddress(c.Owner)
	}
	return out
}

func tagCountsToResult(counts []registry.TagCount) []tagCountResult {
	out := make([]tagCountResult, len(counts))
	for i, c := range counts {
		out[i] = tagCountResult{Tag: c.Tag, Count: c.Count}
	}
	return out
}

func settlementsToResult(settled []distribution.Settlement) []settlementResult {
	out := make([]settlementResult, len(settled))
	for i, s := range settled {
		out[i] = settlementResult{Currency: s.Currency, Amount: s.Amount.String()}
	}
	return out
}

func paymentToResult(record *distribution.PaymentRecord) paymentResult {
	return paymentResult{
		Index:         record.Index,
		Currency:      record.Currency,
		Amount:        record.Amount.String(),
		Snapshot:      record.Snapshot,
		WeightVersion: record.WeightVersion,
	}
}

// writeLedgerError maps engine sentinel errors onto JSON-RPC error codes.
func (w *statusRecorder) ledgerError(id interface{}, err error) {
	switch {
	case errors.Is(err, registry.ErrUnauthorized),
		errors.Is(err, verification.ErrUnauthorized),
		errors.Is(err, distribution.ErrUnauthorized):
		w.fail(http.StatusForbidden, id, codeUnauthorized, err.Error(), nil)
	case errors.Is(err, registry.ErrSignatureInvalid),
		errors.Is(err, distribution.ErrSignatureInvalid),
		errors.Is(err, distribution.ErrTicketExpired),
		errors.Is(err, distribution.ErrTicketNotYetValid),
		errors.Is(err, distribution.ErrTicketKind):
		w.fail(http.StatusUnauthorized, id, codeUnauthorized, err.Error(), nil)
	case errors.Is(err, registry.ErrNotFound),
		errors.Is(err, distribution.ErrPaymentNotFound),
		errors.Is(err, distribution.ErrVersionNotFound):
		w.fail(http.StatusNotFound, id, codeServerError, err.Error(), nil)
	case errors.Is(err, registry.ErrEmptyTag),
		errors.Is(err, registry.ErrZeroOwner),
		errors.Is(err, registry.ErrLengthMismatch),
		errors.Is(err, registry.ErrNotPending),
		errors.Is(err, registry.ErrNotRemovable),
		errors.Is(err, registry.ErrSnapshotOutOfRange),
		errors.Is(err, verification.ErrZeroVerifier),
		errors.Is(err, verification.ErrLengthMismatch),
		errors.Is(err, verification.ErrVerifierNotSet),
		errors.Is(err, verification.ErrNotPending),
		errors.Is(err, distribution.ErrEmptyWeights),
		errors.Is(err, distribution.ErrDuplicateTag),
		errors.Is(err, distribution.ErrNegativeWeight),
		errors.Is(err, distribution.ErrWeightSum),
		errors.Is(err, distribution.ErrPercentageTooHigh),
		errors.Is(err, distribution.ErrNoWeightVersion),
		errors.Is(err, distribution.ErrInvalidAmount),
		errors.Is(err, distribution.ErrEmptyCurrency):
		w.fail(http.StatusBadRequest, id, codeInvalidParams, err.Error(), nil)
	default:
		w.fail(http.StatusInternalServerError, id, codeServerError, err.Error(), nil)
	}
}
