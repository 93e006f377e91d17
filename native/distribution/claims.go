package distribution

import (
	"fmt"
	"math/big"

	"revledger/core/events"
	"revledger/crypto"
	"revledger/native/common"
)

// Claims follow a checkpoint-before-effects discipline: the cursor is
// advanced (or the pending balance zeroed) before any value settles, so a
// re-entrant call can never read and spend the same balance twice. A claim
// with nothing new to process is a successful no-op returning no
// settlements.

func (e *Engine) verifyTicket(ticket ClaimTicket, kind ClaimKind) error {
	if e.authorizer == ([20]byte{}) {
		return ErrSignerUnknown
	}
	if ticket.Kind != kind {
		return ErrTicketKind
	}
	signer, err := crypto.RecoverAddress(ticket.Hash(), ticket.Signature)
	if err != nil {
		return ErrSignatureInvalid
	}
	if signer != e.authorizer {
		return ErrSignatureInvalid
	}
	now := e.nowFn()
	if ticket.IssuedAt > 0 && now < ticket.IssuedAt {
		return ErrTicketNotYetValid
	}
	if ticket.ExpiresAt <= 0 || now > ticket.ExpiresAt {
		return ErrTicketExpired
	}
	return nil
}

// ClaimOwnerPayouts drains the owner's per-currency pending balances across
// the unclaimed payment slice. A currency recurring in the slice is only
// meaningfully drained at its first occurrence; later occurrences observe
// zero and are skipped.
func (e *Engine) ClaimOwnerPayouts(ticket ClaimTicket) ([]Settlement, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.verifyTicket(ticket, ClaimKindOwner); err != nil {
		return nil, err
	}
	if ticket.Account != e.poolOwner {
		return nil, ErrUnauthorized
	}
	return e.claimOwner()
}

func (e *Engine) claimOwner() ([]Settlement, error) {
	if e.vault == nil {
		return nil, ErrVaultNotSet
	}
	cursor, err := e.state.OwnerCursor()
	if err != nil {
		return nil, err
	}
	count, err := e.state.PaymentCount()
	if err != nil {
		return nil, err
	}
	if cursor >= count {
		return []Settlement{}, nil
	}
	if err := e.state.SetOwnerCursor(count); err != nil {
		return nil, err
	}
	settled := []Settlement{}
	for i := cursor; i < count; i++ {
		record, found, err := e.state.PaymentGet(i)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, ErrPaymentNotFound
		}
		pending, err := e.state.PendingOwnerBalance(record.Currency)
		if err != nil {
			return nil, err
		}
		if pending.Sign() <= 0 {
			continue
		}
		if err := e.state.SetPendingOwnerBalance(record.Currency, big.NewInt(0)); err != nil {
			return nil, err
		}
		if err := e.vault.Credit(e.poolOwner, record.Currency, pending); err != nil {
			return nil, fmt.Errorf("%w: owner payout: %v", ErrSettlementFailed, err)
		}
		e.emitter.Emit(events.OwnerPayoutsClaimed{Owner: e.poolOwner, Currency: record.Currency, Amount: new(big.Int).Set(pending)})
		settled = append(settled, Settlement{Currency: record.Currency, Amount: pending})
	}
	return settled, nil
}

// ClaimContributorPayouts settles a contributor's share of every unclaimed
// payment record, coalescing consecutive same-currency records into one
// settlement.
func (e *Engine) ClaimContributorPayouts(ticket ClaimTicket) ([]Settlement, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.verifyTicket(ticket, ClaimKindContributor); err != nil {
		return nil, err
	}
	return e.claimContributor(ticket.Account)
}

func (e *Engine) claimContributor(account [20]byte) ([]Settlement, error) {
	if e.vault == nil {
		return nil, ErrVaultNotSet
	}
	if e.registry == nil {
		return nil, ErrRegistryNotSet
	}
	cursor, err := e.state.ContributorCursor(account)
	if err != nil {
		return nil, err
	}
	count, err := e.state.PaymentCount()
	if err != nil {
		return nil, err
	}
	if cursor >= count {
		return []Settlement{}, nil
	}
	runs, err := e.accumulate(account, cursor, count, "")
	if err != nil {
		return nil, err
	}
	if err := e.state.SetContributorCursor(account, count); err != nil {
		return nil, err
	}
	settled := make([]Settlement, 0, len(runs))
	for _, run := range runs {
		if run.Amount.Sign() <= 0 {
			continue
		}
		if err := e.vault.Credit(account, run.Currency, run.Amount); err != nil {
			return nil, fmt.Errorf("%w: contributor payout: %v", ErrSettlementFailed, err)
		}
		e.emitter.Emit(events.ContributorPayoutsClaimed{Account: account, Currency: run.Currency, Amount: new(big.Int).Set(run.Amount)})
		settled = append(settled, run)
	}
	return settled, nil
}

// ClaimAllPayouts combines the contributor path with the owner path when the
// claiming account is the pool owner.
func (e *Engine) ClaimAllPayouts(ticket ClaimTicket) (contributor []Settlement, owner []Settlement, err error) {
	if err := e.ready(); err != nil {
		return nil, nil, err
	}
	if err := e.verifyTicket(ticket, ClaimKindAll); err != nil {
		return nil, nil, err
	}
	contributor, err = e.claimContributor(ticket.Account)
	if err != nil {
		return nil, nil, err
	}
	if ticket.Account == e.poolOwner {
		owner, err = e.claimOwner()
		if err != nil {
			return nil, nil, err
		}
	}
	return contributor, owner, nil
}

// accumulate walks payment records [from, to), computing the account's
// payout per record and coalescing consecutive same-currency records. When
// currency is non-empty only matching records contribute (ProjectPayout's
// filter); coalescing is unaffected because filtered records never settle.
func (e *Engine) accumulate(account [20]byte, from, to uint64, currency string) ([]Settlement, error) {
	runs := []Settlement{}
	for i := from; i < to; i++ {
		record, found, err := e.state.PaymentGet(i)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, ErrPaymentNotFound
		}
		if currency != "" && record.Currency != currency {
			continue
		}
		share, err := e.contributorShare(record, account)
		if err != nil {
			return nil, err
		}
		if n := len(runs); n > 0 && runs[n-1].Currency == record.Currency {
			runs[n-1].Amount.Add(runs[n-1].Amount, share)
			continue
		}
		runs = append(runs, Settlement{Currency: record.Currency, Amount: share})
	}
	return runs, nil
}

// contributorShare computes amount × weight(tag) × ownership(tag) / base²
// summed over the tags of the record's bound weight version, evaluated at
// the record's bound snapshot.
func (e *Engine) contributorShare(record *PaymentRecord, account [20]byte) (*big.Int, error) {
	version, found, err := e.state.WeightVersionGet(record.WeightVersion)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrVersionNotFound
	}
	percentages, err := e.registry.OwnerTagPercentageAt(record.Snapshot, account, version.Tags())
	if err != nil {
		return nil, err
	}
	total := big.NewInt(0)
	for i, weight := range version.Weights {
		total.Add(total, common.ApplyPercentSquared(record.Amount, weight.Weight, percentages[i]))
	}
	return total, nil
}

// ProjectPayout estimates, without mutating anything, what a contributor
// claim restricted to one currency would settle starting from the account's
// current cursor.
func (e *Engine) ProjectPayout(currency string, account [20]byte) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.registry == nil {
		return nil, ErrRegistryNotSet
	}
	cursor, err := e.state.ContributorCursor(account)
	if err != nil {
		return nil, err
	}
	count, err := e.state.PaymentCount()
	if err != nil {
		return nil, err
	}
	total := big.NewInt(0)
	if cursor >= count {
		return total, nil
	}
	runs, err := e.accumulate(account, cursor, count, currency)
	if err != nil {
		return nil, err
	}
	for _, run := range runs {
		total.Add(total, run.Amount)
	}
	return total, nil
}
