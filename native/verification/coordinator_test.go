package verification

import (
	"errors"
	"testing"
)

type mockState struct {
	defaultVerifier *[20]byte
	tagVerifiers    map[string][20]byte
	pending         map[uint64]*PendingProposal
}

func newMockState() *mockState {
	return &mockState{
		tagVerifiers: make(map[string][20]byte),
		pending:      make(map[uint64]*PendingProposal),
	}
}

func (m *mockState) DefaultVerifier() ([20]byte, bool, error) {
	if m.defaultVerifier == nil {
		return [20]byte{}, false, nil
	}
	return *m.defaultVerifier, true, nil
}

func (m *mockState) SetDefaultVerifier(addr [20]byte) error {
	m.defaultVerifier = &addr
	return nil
}

func (m *mockState) TagVerifier(tag string) ([20]byte, bool, error) {
	v, ok := m.tagVerifiers[tag]
	return v, ok, nil
}

func (m *mockState) SetTagVerifier(tag string, addr [20]byte) error {
	m.tagVerifiers[tag] = addr
	return nil
}

func (m *mockState) PendingProposalGet(id uint64) (*PendingProposal, bool, error) {
	p, ok := m.pending[id]
	if !ok {
		return nil, false, nil
	}
	clone := *p
	return &clone, true, nil
}

func (m *mockState) PendingProposalPut(id uint64, p *PendingProposal) error {
	clone := *p
	m.pending[id] = &clone
	return nil
}

func (m *mockState) PendingProposalDelete(id uint64) error {
	delete(m.pending, id)
	return nil
}

type mockResolver struct {
	accepted []uint64
	rejected []uint64
}

func (r *mockResolver) Accept(id uint64) error {
	r.accepted = append(r.accepted, id)
	return nil
}

func (r *mockResolver) Reject(id uint64) error {
	r.rejected = append(r.rejected, id)
	return nil
}

func addr(last byte) [20]byte {
	var out [20]byte
	out[19] = last
	return out
}

func newTestCoordinator() (*Coordinator, *mockState, *mockResolver) {
	state := newMockState()
	resolver := &mockResolver{}
	c := NewCoordinator()
	c.SetState(state)
	c.SetResolver(resolver)
	c.SetPoolOwner(addr(0xA0))
	return c, state, resolver
}

func TestRoutingPrefersTagVerifier(t *testing.T) {
	c, state, _ := newTestCoordinator()
	owner := addr(0xA0)
	if err := c.SetDefaultVerifier(owner, addr(0x0D)); err != nil {
		t.Fatalf("set default: %v", err)
	}
	if err := c.SetTagVerifier(owner, "schema", addr(0x0E)); err != nil {
		t.Fatalf("set tag verifier: %v", err)
	}

	if err := c.RouteProposal(1, "schema"); err != nil {
		t.Fatalf("route schema: %v", err)
	}
	if err := c.RouteProposal(2, "rows"); err != nil {
		t.Fatalf("route rows: %v", err)
	}
	if state.pending[1].Verifier != addr(0x0E) {
		t.Fatalf("tag verifier must win, got %x", state.pending[1].Verifier)
	}
	if state.pending[2].Verifier != addr(0x0D) {
		t.Fatalf("default verifier must catch the rest, got %x", state.pending[2].Verifier)
	}
}

func TestRoutingFailsWithoutVerifier(t *testing.T) {
	c, _, _ := newTestCoordinator()
	if err := c.RouteProposal(1, "schema"); !errors.Is(err, ErrVerifierNotSet) {
		t.Fatalf("expected verifier-not-set, got %v", err)
	}
}

func TestRoutingConfigurationOwnerOnly(t *testing.T) {
	c, _, _ := newTestCoordinator()
	if err := c.SetDefaultVerifier(addr(0x99), addr(0x0D)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := c.SetTagVerifiers(addr(0xA0), []string{"a"}, [][20]byte{}); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("expected length mismatch, got %v", err)
	}
}

func TestResolveChecksBoundVerifier(t *testing.T) {
	c, _, resolver := newTestCoordinator()
	owner := addr(0xA0)
	verifier := addr(0x0D)
	if err := c.SetDefaultVerifier(owner, verifier); err != nil {
		t.Fatalf("set default: %v", err)
	}
	if err := c.RouteProposal(7, "schema"); err != nil {
		t.Fatalf("route: %v", err)
	}

	if err := c.Resolve(addr(0x66), 7, true); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("foreign caller must be rejected, got %v", err)
	}
	if err := c.Resolve(verifier, 7, true); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(resolver.accepted) != 1 || resolver.accepted[0] != 7 {
		t.Fatalf("expected accept forwarded, got %+v", resolver)
	}
	// The pending entry is consumed; a second resolution conflicts.
	if err := c.Resolve(verifier, 7, true); !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected not-pending on replay, got %v", err)
	}
}

func TestReroutingTagDoesNotHijackInFlight(t *testing.T) {
	c, _, resolver := newTestCoordinator()
	owner := addr(0xA0)
	original := addr(0x0D)
	replacement := addr(0x0E)
	if err := c.SetTagVerifier(owner, "schema", original); err != nil {
		t.Fatalf("set tag verifier: %v", err)
	}
	if err := c.RouteProposal(3, "schema"); err != nil {
		t.Fatalf("route: %v", err)
	}
	if err := c.SetTagVerifier(owner, "schema", replacement); err != nil {
		t.Fatalf("re-route tag: %v", err)
	}

	if err := c.Resolve(replacement, 3, false); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("replacement must not resolve in-flight proposal, got %v", err)
	}
	if err := c.Resolve(original, 3, false); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(resolver.rejected) != 1 || resolver.rejected[0] != 3 {
		t.Fatalf("expected reject forwarded, got %+v", resolver)
	}
}

func TestInlineVerifierResolvesWithinPropose(t *testing.T) {
	c, state, resolver := newTestCoordinator()
	owner := addr(0xA0)
	verifier := addr(0x0D)
	if err := c.SetDefaultVerifier(owner, verifier); err != nil {
		t.Fatalf("set default: %v", err)
	}
	c.RegisterHook(verifier, NewInlineVerifier(func(id uint64, tag string) bool {
		return tag != "spam"
	}))

	if err := c.RouteProposal(1, "schema"); err != nil {
		t.Fatalf("route: %v", err)
	}
	if err := c.RouteProposal(2, "spam"); err != nil {
		t.Fatalf("route: %v", err)
	}
	if len(resolver.accepted) != 1 || resolver.accepted[0] != 1 {
		t.Fatalf("expected inline accept of 1, got %+v", resolver)
	}
	if len(resolver.rejected) != 1 || resolver.rejected[0] != 2 {
		t.Fatalf("expected inline reject of 2, got %+v", resolver)
	}
	if len(state.pending) != 0 {
		t.Fatalf("inline resolution must consume pending entries, got %+v", state.pending)
	}
}

func TestCancelProposal(t *testing.T) {
	c, _, _ := newTestCoordinator()
	owner := addr(0xA0)
	if err := c.SetDefaultVerifier(owner, addr(0x0D)); err != nil {
		t.Fatalf("set default: %v", err)
	}
	if err := c.RouteProposal(4, "schema"); err != nil {
		t.Fatalf("route: %v", err)
	}
	if err := c.CancelProposal(4); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := c.Resolve(addr(0x0D), 4, true); !errors.Is(err, ErrNotPending) {
		t.Fatalf("cancelled proposal must not resolve, got %v", err)
	}
	if err := c.CancelProposal(4); !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected not-pending on double cancel, got %v", err)
	}
}
