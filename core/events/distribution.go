package events

import (
	"math/big"
	"strings"

	"revledger/core/types"
)

const (
	TypeWeightVersionSet          = "distribution.weights.versioned"
	TypeOwnerPercentageSet        = "distribution.ownerPercentage.set"
	TypePaymentReceived           = "distribution.payment.received"
	TypeOwnerPayoutsClaimed       = "distribution.payouts.ownerClaimed"
	TypeContributorPayoutsClaimed = "distribution.payouts.contributorClaimed"
)

type WeightVersionSet struct {
	Version uint64
	Tags    []string
}

func (WeightVersionSet) EventType() string { return TypeWeightVersionSet }

func (e WeightVersionSet) Event() *types.Event {
	return &types.Event{
		Type: TypeWeightVersionSet,
		Attributes: map[string]string{
			"version": uintToString(e.Version),
			"tags":    strings.Join(e.Tags, ","),
		},
	}
}

type OwnerPercentageSet struct {
	Percentage *big.Int
}

func (OwnerPercentageSet) EventType() string { return TypeOwnerPercentageSet }

func (e OwnerPercentageSet) Event() *types.Event {
	return &types.Event{
		Type: TypeOwnerPercentageSet,
		Attributes: map[string]string{
			"percentage": formatAmount(e.Percentage),
		},
	}
}

type PaymentReceived struct {
	Index         uint64
	Currency      string
	Gross         *big.Int
	Pool          *big.Int
	Snapshot      uint64
	WeightVersion uint64
}

func (PaymentReceived) EventType() string { return TypePaymentReceived }

func (e PaymentReceived) Event() *types.Event {
	return &types.Event{
		Type: TypePaymentReceived,
		Attributes: map[string]string{
			"index":         uintToString(e.Index),
			"currency":      e.Currency,
			"gross":         formatAmount(e.Gross),
			"pool":          formatAmount(e.Pool),
			"snapshot":      uintToString(e.Snapshot),
			"weightVersion": uintToString(e.WeightVersion),
		},
	}
}

type OwnerPayoutsClaimed struct {
	Owner    [20]byte
	Currency string
	Amount   *big.Int
}

func (OwnerPayoutsClaimed) EventType() string { return TypeOwnerPayoutsClaimed }

func (e OwnerPayoutsClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeOwnerPayoutsClaimed,
		Attributes: map[string]string{
			"owner":    formatAddress(e.Owner),
			"currency": e.Currency,
			"amount":   formatAmount(e.Amount),
		},
	}
}

type ContributorPayoutsClaimed struct {
	Account  [20]byte
	Currency string
	Amount   *big.Int
}

func (ContributorPayoutsClaimed) EventType() string { return TypeContributorPayoutsClaimed }

func (e ContributorPayoutsClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeContributorPayoutsClaimed,
		Attributes: map[string]string{
			"account":  formatAddress(e.Account),
			"currency": e.Currency,
			"amount":   formatAmount(e.Amount),
		},
	}
}
