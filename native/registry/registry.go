package registry

import (
	"fmt"
	"math/big"
	"strings"

	"revledger/core/events"
	"revledger/crypto"
	"revledger/native/common"
)

// State is the persistence surface the registry engine requires. The ledger
// state manager implements it; tests substitute an in-memory mock.
type State interface {
	ContributionGet(id uint64) (*Contribution, bool, error)
	ContributionPut(c *Contribution) error
	ContributionCount() (uint64, error)
	SetContributionCount(count uint64) error

	OpenFrame() (uint64, error)
	SetOpenFrame(frame uint64) error

	CheckpointList(party [20]byte) ([]uint64, error)
	// CheckpointAppend stores counts at frame and appends frame to the
	// party's checkpoint list. The frame must be beyond the current tail.
	CheckpointAppend(party [20]byte, frame uint64, counts []TagCount) error
	// CheckpointUpdate overwrites the content of an existing checkpoint. It
	// is only ever invoked against the open frame.
	CheckpointUpdate(party [20]byte, frame uint64, counts []TagCount) error
	CheckpointCounts(party [20]byte, frame uint64) ([]TagCount, bool, error)
}

// Router forwards freshly proposed contributions into the verification flow
// and cancels pending entries when the owner force-removes a contribution.
type Router interface {
	RouteProposal(id uint64, tag string) error
	CancelProposal(id uint64) error
}

// Engine owns contribution identity, lifecycle state and the versioned
// snapshot ledger of tag-ownership counts.
type Engine struct {
	state      State
	emitter    events.Emitter
	router     Router
	registryID string
	authorizer [20]byte
	poolOwner  [20]byte
}

// NewEngine constructs a registry engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state State) { e.state = state }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetRouter wires the verification coordinator.
func (e *Engine) SetRouter(router Router) { e.router = router }

// SetRegistryID configures the identity bound into authorization tickets.
func (e *Engine) SetRegistryID(id string) { e.registryID = strings.TrimSpace(id) }

// SetAuthorizer registers the signer whose tickets authorize proposals.
func (e *Engine) SetAuthorizer(addr [20]byte) { e.authorizer = addr }

// SetPoolOwner registers the resource owner allowed to remove contributions.
func (e *Engine) SetPoolOwner(addr [20]byte) { e.poolOwner = addr }

// PoolOwner exposes the configured resource owner.
func (e *Engine) PoolOwner() [20]byte { return e.poolOwner }

func (e *Engine) ready() error {
	if e.state == nil {
		return ErrNilState
	}
	return nil
}

// --- Lifecycle ---

// Propose allocates the next sequential id, validates the authorization
// ticket against it and hands the contribution to the verification router.
// The id stays frozen until a verifier resolves it.
func (e *Engine) Propose(owner [20]byte, tag string, signature []byte) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if e.router == nil {
		return 0, ErrRouterNotSet
	}
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return 0, ErrEmptyTag
	}
	if owner == ([20]byte{}) {
		return 0, ErrZeroOwner
	}
	id, err := e.state.ContributionCount()
	if err != nil {
		return 0, err
	}
	ticket := ProposeTicket{
		RegistryID: e.registryID,
		ID:         id,
		Owner:      owner,
		Tag:        tag,
		Signature:  signature,
	}
	if err := e.verifyTicket(ticket.Hash(), signature); err != nil {
		return 0, err
	}
	if err := e.createPending(id, owner, tag); err != nil {
		return 0, err
	}
	if err := e.state.SetContributionCount(id + 1); err != nil {
		return 0, err
	}
	if err := e.router.RouteProposal(id, tag); err != nil {
		return 0, err
	}
	return id, nil
}

// ProposeBatch creates a contiguous run of contributions under one combined
// ticket. A zero owner anywhere in the batch rejects the whole call; ids are
// only consumed when every entry is valid.
func (e *Engine) ProposeBatch(owners [][20]byte, tags []string, signature []byte) ([]uint64, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.router == nil {
		return nil, ErrRouterNotSet
	}
	if len(owners) != len(tags) {
		return nil, ErrLengthMismatch
	}
	if len(owners) == 0 {
		return []uint64{}, nil
	}
	trimmed := make([]string, len(tags))
	for i, tag := range tags {
		trimmed[i] = strings.TrimSpace(tag)
		if trimmed[i] == "" {
			return nil, ErrEmptyTag
		}
		if owners[i] == ([20]byte{}) {
			return nil, ErrZeroOwner
		}
	}
	first, err := e.state.ContributionCount()
	if err != nil {
		return nil, err
	}
	ticket := ProposeBatchTicket{
		RegistryID: e.registryID,
		First:      first,
		Owners:     owners,
		Tags:       trimmed,
		Signature:  signature,
	}
	if err := e.verifyTicket(ticket.Hash(), signature); err != nil {
		return nil, err
	}
	ids := make([]uint64, len(owners))
	for i := range owners {
		id := first + uint64(i)
		if err := e.createPending(id, owners[i], trimmed[i]); err != nil {
			return nil, err
		}
		ids[i] = id
	}
	if err := e.state.SetContributionCount(first + uint64(len(owners))); err != nil {
		return nil, err
	}
	for i, id := range ids {
		if err := e.router.RouteProposal(id, trimmed[i]); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func (e *Engine) createPending(id uint64, owner [20]byte, tag string) error {
	if existing, found, err := e.state.ContributionGet(id); err != nil {
		return err
	} else if found && existing.Status != StatusUninitiated {
		return fmt.Errorf("registry: id %d already allocated", id)
	}
	contribution := &Contribution{
		ID:           id,
		Tag:          tag,
		Status:       StatusPending,
		PendingOwner: owner,
	}
	if err := e.state.ContributionPut(contribution); err != nil {
		return err
	}
	e.emitter.Emit(events.ContributionProposed{ID: id, Owner: owner, Tag: tag})
	return nil
}

func (e *Engine) verifyTicket(digest []byte, signature []byte) error {
	if e.authorizer == ([20]byte{}) {
		return ErrSignerUnknown
	}
	signer, err := crypto.RecoverAddress(digest, signature)
	if err != nil {
		return ErrSignatureInvalid
	}
	if signer != e.authorizer {
		return ErrSignatureInvalid
	}
	return nil
}

// Accept binds ownership and credits the open frame's global and owner views
// for the contribution's tag. Reachable only through the verification
// coordinator's resolve path.
func (e *Engine) Accept(id uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	contribution, err := e.pendingContribution(id)
	if err != nil {
		return err
	}
	owner := contribution.PendingOwner
	contribution.Owner = owner
	contribution.PendingOwner = [20]byte{}
	contribution.Status = StatusAccepted
	if err := e.state.ContributionPut(contribution); err != nil {
		return err
	}
	if err := e.adjustTag(owner, contribution.Tag, 1); err != nil {
		return err
	}
	if err := e.adjustTag(GlobalParty, contribution.Tag, 1); err != nil {
		return err
	}
	e.emitter.Emit(events.ContributionAccepted{ID: id, Owner: owner, Tag: contribution.Tag})
	return nil
}

// Reject clears the tag association without touching any counts.
func (e *Engine) Reject(id uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	contribution, err := e.pendingContribution(id)
	if err != nil {
		return err
	}
	contribution.Tag = ""
	contribution.PendingOwner = [20]byte{}
	contribution.Status = StatusRejected
	if err := e.state.ContributionPut(contribution); err != nil {
		return err
	}
	e.emitter.Emit(events.ContributionRejected{ID: id})
	return nil
}

func (e *Engine) pendingContribution(id uint64) (*Contribution, error) {
	contribution, found, err := e.state.ContributionGet(id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	if contribution.Status != StatusPending {
		return nil, ErrNotPending
	}
	return contribution, nil
}

// Remove transitions a contribution to Removed, debiting the open frame's
// counts when it had been accepted. Only the pool owner may remove.
func (e *Engine) Remove(caller [20]byte, id uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if caller != e.poolOwner || caller == ([20]byte{}) {
		return ErrUnauthorized
	}
	return e.remove(id)
}

// RemoveBatch removes several contributions atomically.
func (e *Engine) RemoveBatch(caller [20]byte, ids []uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if caller != e.poolOwner || caller == ([20]byte{}) {
		return ErrUnauthorized
	}
	for _, id := range ids {
		if err := e.remove(id); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) remove(id uint64) error {
	contribution, found, err := e.state.ContributionGet(id)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	switch contribution.Status {
	case StatusAccepted:
		if err := e.adjustTag(contribution.Owner, contribution.Tag, -1); err != nil {
			return err
		}
		if err := e.adjustTag(GlobalParty, contribution.Tag, -1); err != nil {
			return err
		}
	case StatusPending:
		if e.router != nil {
			if err := e.router.CancelProposal(id); err != nil {
				return err
			}
		}
	default:
		return ErrNotRemovable
	}
	wasAccepted := contribution.Status == StatusAccepted
	contribution.Tag = ""
	contribution.Owner = [20]byte{}
	contribution.PendingOwner = [20]byte{}
	contribution.Status = StatusRemoved
	if err := e.state.ContributionPut(contribution); err != nil {
		return err
	}
	e.emitter.Emit(events.ContributionRemoved{ID: id, Accepted: wasAccepted})
	return nil
}

// --- Snapshots ---

// CloseSnapshot closes the currently open frame and opens the next one,
// returning the index of the just-closed frame. Reachable only through the
// distribution engine's payment path.
func (e *Engine) CloseSnapshot() (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	open, err := e.state.OpenFrame()
	if err != nil {
		return 0, err
	}
	if err := e.state.SetOpenFrame(open + 1); err != nil {
		return 0, err
	}
	e.emitter.Emit(events.SnapshotClosed{Index: open})
	return open, nil
}

// --- Historical queries ---

// ContributionAt returns a copy of the contribution record.
func (e *Engine) ContributionAt(id uint64) (*Contribution, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	contribution, found, err := e.state.ContributionGet(id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return contribution.Clone(), nil
}

// TagCountsAt returns the global view as of closed frame s.
func (e *Engine) TagCountsAt(s uint64) ([]TagCount, error) {
	return e.OwnerTagCountsAt(s, GlobalParty)
}

// OwnerTagCountsAt returns one owner's view as of closed frame s. An index
// earlier than the owner's first checkpoint yields an empty view.
func (e *Engine) OwnerTagCountsAt(s uint64, owner [20]byte) ([]TagCount, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.closedFrameCheck(s); err != nil {
		return nil, err
	}
	view, err := e.viewAt(owner, s)
	if err != nil {
		return nil, err
	}
	return mapToCounts(view), nil
}

// OwnerTagPercentageAt returns, for each requested tag, the owner's share of
// that tag's global count as of closed frame s, scaled to
// common.PercentBase. Tags the owner never held resolve to zero.
func (e *Engine) OwnerTagPercentageAt(s uint64, owner [20]byte, tags []string) ([]*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.closedFrameCheck(s); err != nil {
		return nil, err
	}
	ownerView, err := e.viewAt(owner, s)
	if err != nil {
		return nil, err
	}
	globalView, err := e.viewAt(GlobalParty, s)
	if err != nil {
		return nil, err
	}
	out := make([]*big.Int, len(tags))
	for i, tag := range tags {
		out[i] = common.Fraction(ownerView[tag], globalView[tag])
	}
	return out, nil
}
