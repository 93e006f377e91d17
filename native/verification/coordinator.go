package verification

import (
	"strings"

	"revledger/core/events"
)

// PendingProposal records the routing decision taken when a contribution was
// proposed. Resolve checks the caller against the verifier bound here, never
// against the current routing table, so re-routing a tag cannot hijack
// in-flight proposals.
type PendingProposal struct {
	Tag      string
	Verifier [20]byte
}

// State is the persistence surface the coordinator requires.
type State interface {
	DefaultVerifier() ([20]byte, bool, error)
	SetDefaultVerifier(addr [20]byte) error
	TagVerifier(tag string) ([20]byte, bool, error)
	SetTagVerifier(tag string, addr [20]byte) error

	PendingProposalGet(id uint64) (*PendingProposal, bool, error)
	PendingProposalPut(id uint64, p *PendingProposal) error
	PendingProposalDelete(id uint64) error
}

// Resolver is the slice of the registry the coordinator is allowed to drive:
// the accept/reject transition of a pending contribution.
type Resolver interface {
	Accept(id uint64) error
	Reject(id uint64) error
}

// Verifier is the decision hook invoked when a proposal is routed. In-process
// verifiers may resolve inline by calling the supplied resolve function;
// external verifiers ignore it and resolve later through Coordinator.Resolve.
// Returning an error aborts the whole propose chain.
type Verifier interface {
	VerifyContribution(resolve func(accept bool) error, id uint64, tag string) error
}

// Coordinator routes proposed contributions to the verifier selected by tag
// and relays decisions back into the registry.
type Coordinator struct {
	state     State
	emitter   events.Emitter
	resolver  Resolver
	poolOwner [20]byte
	hooks     map[[20]byte]Verifier
}

// NewCoordinator constructs a coordinator with default dependencies.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		emitter: events.NoopEmitter{},
		hooks:   make(map[[20]byte]Verifier),
	}
}

// SetState configures the state backend used by the coordinator.
func (c *Coordinator) SetState(state State) { c.state = state }

// SetEmitter configures the event emitter used by the coordinator.
func (c *Coordinator) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		c.emitter = events.NoopEmitter{}
		return
	}
	c.emitter = emitter
}

// SetResolver wires the registry's accept/reject port.
func (c *Coordinator) SetResolver(resolver Resolver) { c.resolver = resolver }

// SetPoolOwner registers the resource owner allowed to configure routing.
func (c *Coordinator) SetPoolOwner(addr [20]byte) { c.poolOwner = addr }

// RegisterHook attaches an in-process decision hook for a verifier address.
// Hooks are wiring-time configuration, not persisted state.
func (c *Coordinator) RegisterHook(addr [20]byte, hook Verifier) {
	if hook == nil {
		delete(c.hooks, addr)
		return
	}
	c.hooks[addr] = hook
}

func (c *Coordinator) ready() error {
	if c.state == nil {
		return ErrNilState
	}
	return nil
}

func (c *Coordinator) ownerOnly(caller [20]byte) error {
	if caller != c.poolOwner || caller == ([20]byte{}) {
		return ErrUnauthorized
	}
	return nil
}

// --- Routing configuration ---

// SetDefaultVerifier sets the fallback verifier used when a tag has no
// explicit assignment.
func (c *Coordinator) SetDefaultVerifier(caller [20]byte, verifier [20]byte) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.ownerOnly(caller); err != nil {
		return err
	}
	if verifier == ([20]byte{}) {
		return ErrZeroVerifier
	}
	if err := c.state.SetDefaultVerifier(verifier); err != nil {
		return err
	}
	c.emitter.Emit(events.VerifierAssigned{Verifier: verifier, Default: true})
	return nil
}

// SetTagVerifier assigns an explicit verifier for one tag.
func (c *Coordinator) SetTagVerifier(caller [20]byte, tag string, verifier [20]byte) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.ownerOnly(caller); err != nil {
		return err
	}
	return c.assignTag(tag, verifier)
}

// SetTagVerifiers assigns verifiers for several tags atomically.
func (c *Coordinator) SetTagVerifiers(caller [20]byte, tags []string, verifiers [][20]byte) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.ownerOnly(caller); err != nil {
		return err
	}
	if len(tags) != len(verifiers) {
		return ErrLengthMismatch
	}
	for i := range tags {
		if err := c.assignTag(tags[i], verifiers[i]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator) assignTag(tag string, verifier [20]byte) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ErrVerifierNotSet
	}
	if verifier == ([20]byte{}) {
		return ErrZeroVerifier
	}
	if err := c.state.SetTagVerifier(tag, verifier); err != nil {
		return err
	}
	c.emitter.Emit(events.VerifierAssigned{Tag: tag, Verifier: verifier})
	return nil
}

// resolveVerifier applies the routing order: explicit tag verifier, else the
// default, else failure.
func (c *Coordinator) resolveVerifier(tag string) ([20]byte, error) {
	if verifier, ok, err := c.state.TagVerifier(tag); err != nil {
		return [20]byte{}, err
	} else if ok {
		return verifier, nil
	}
	if verifier, ok, err := c.state.DefaultVerifier(); err != nil {
		return [20]byte{}, err
	} else if ok {
		return verifier, nil
	}
	return [20]byte{}, ErrVerifierNotSet
}

// --- Proposal flow ---

// RouteProposal records the pending association and invokes the resolved
// verifier's decision hook, when one is registered in-process. Implements
// registry.Router.
func (c *Coordinator) RouteProposal(id uint64, tag string) error {
	if err := c.ready(); err != nil {
		return err
	}
	if c.resolver == nil {
		return ErrResolverNotSet
	}
	if _, found, err := c.state.PendingProposalGet(id); err != nil {
		return err
	} else if found {
		return ErrAlreadyPending
	}
	verifier, err := c.resolveVerifier(tag)
	if err != nil {
		return err
	}
	pending := &PendingProposal{Tag: tag, Verifier: verifier}
	if err := c.state.PendingProposalPut(id, pending); err != nil {
		return err
	}
	c.emitter.Emit(events.ProposalRouted{ID: id, Tag: tag, Verifier: verifier})
	if hook, ok := c.hooks[verifier]; ok {
		resolve := func(accept bool) error {
			return c.Resolve(verifier, id, accept)
		}
		if err := hook.VerifyContribution(resolve, id, tag); err != nil {
			return err
		}
	}
	return nil
}

// CancelProposal drops the pending entry when the owner force-removes a
// contribution before the verifier resolved it. Implements registry.Router.
func (c *Coordinator) CancelProposal(id uint64) error {
	if err := c.ready(); err != nil {
		return err
	}
	if _, found, err := c.state.PendingProposalGet(id); err != nil {
		return err
	} else if !found {
		return ErrNotPending
	}
	return c.state.PendingProposalDelete(id)
}

// Resolve relays a verifier decision into the registry. The caller must be
// the verifier bound at propose time; the tag is looked up internally rather
// than re-supplied by the caller.
func (c *Coordinator) Resolve(caller [20]byte, id uint64, accept bool) error {
	if err := c.ready(); err != nil {
		return err
	}
	if c.resolver == nil {
		return ErrResolverNotSet
	}
	pending, found, err := c.state.PendingProposalGet(id)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotPending
	}
	if caller != pending.Verifier {
		return ErrUnauthorized
	}
	if err := c.state.PendingProposalDelete(id); err != nil {
		return err
	}
	if accept {
		return c.resolver.Accept(id)
	}
	return c.resolver.Reject(id)
}
