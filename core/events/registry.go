package events

import (
	"revledger/core/types"
)

const (
	TypeContributionProposed = "registry.contribution.proposed"
	TypeContributionAccepted = "registry.contribution.accepted"
	TypeContributionRejected = "registry.contribution.rejected"
	TypeContributionRemoved  = "registry.contribution.removed"
	TypeSnapshotClosed       = "registry.snapshot.closed"
)

type ContributionProposed struct {
	ID    uint64
	Owner [20]byte
	Tag   string
}

func (ContributionProposed) EventType() string { return TypeContributionProposed }

func (e ContributionProposed) Event() *types.Event {
	return &types.Event{
		Type: TypeContributionProposed,
		Attributes: map[string]string{
			"id":    uintToString(e.ID),
			"owner": formatAddress(e.Owner),
			"tag":   e.Tag,
		},
	}
}

type ContributionAccepted struct {
	ID    uint64
	Owner [20]byte
	Tag   string
}

func (ContributionAccepted) EventType() string { return TypeContributionAccepted }

func (e ContributionAccepted) Event() *types.Event {
	return &types.Event{
		Type: TypeContributionAccepted,
		Attributes: map[string]string{
			"id":    uintToString(e.ID),
			"owner": formatAddress(e.Owner),
			"tag":   e.Tag,
		},
	}
}

type ContributionRejected struct {
	ID uint64
}

func (ContributionRejected) EventType() string { return TypeContributionRejected }

func (e ContributionRejected) Event() *types.Event {
	return &types.Event{
		Type: TypeContributionRejected,
		Attributes: map[string]string{
			"id": uintToString(e.ID),
		},
	}
}

type ContributionRemoved struct {
	ID       uint64
	Accepted bool
}

func (ContributionRemoved) EventType() string { return TypeContributionRemoved }

func (e ContributionRemoved) Event() *types.Event {
	accepted := "false"
	if e.Accepted {
		accepted = "true"
	}
	return &types.Event{
		Type: TypeContributionRemoved,
		Attributes: map[string]string{
			"id":          uintToString(e.ID),
			"wasAccepted": accepted,
		},
	}
}

type SnapshotClosed struct {
	Index uint64
}

func (SnapshotClosed) EventType() string { return TypeSnapshotClosed }

func (e SnapshotClosed) Event() *types.Event {
	return &types.Event{
		Type: TypeSnapshotClosed,
		Attributes: map[string]string{
			"index": uintToString(e.Index),
		},
	}
}
