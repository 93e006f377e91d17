package events

import (
	"revledger/core/types"
)

const (
	TypeVerifierAssigned = "verification.verifier.assigned"
	TypeProposalRouted   = "verification.proposal.routed"
)

type VerifierAssigned struct {
	Tag      string
	Verifier [20]byte
	Default  bool
}

func (VerifierAssigned) EventType() string { return TypeVerifierAssigned }

func (e VerifierAssigned) Event() *types.Event {
	isDefault := "false"
	if e.Default {
		isDefault = "true"
	}
	return &types.Event{
		Type: TypeVerifierAssigned,
		Attributes: map[string]string{
			"tag":      e.Tag,
			"verifier": formatAddress(e.Verifier),
			"default":  isDefault,
		},
	}
}

type ProposalRouted struct {
	ID       uint64
	Tag      string
	Verifier [20]byte
}

func (ProposalRouted) EventType() string { return TypeProposalRouted }

func (e ProposalRouted) Event() *types.Event {
	return &types.Event{
		Type: TypeProposalRouted,
		Attributes: map[string]string{
			"id":       uintToString(e.ID),
			"tag":      e.Tag,
			"verifier": formatAddress(e.Verifier),
		},
	}
}
