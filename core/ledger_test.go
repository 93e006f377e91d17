package core

import (
	"crypto/ecdsa"
	"crypto/rand"
	"errors"
	"math/big"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"revledger/core/events"
	"revledger/native/common"
	"revledger/native/distribution"
	"revledger/native/registry"
	"revledger/native/verification"
	"revledger/storage"
)

type recordedEvents struct {
	types []string
}

func (r *recordedEvents) Emit(evt events.Event) {
	r.types = append(r.types, evt.EventType())
}

func (r *recordedEvents) has(eventType string) bool {
	for _, t := range r.types {
		if t == eventType {
			return true
		}
	}
	return false
}

type harness struct {
	ledger   *Ledger
	db       *storage.MemDB
	events   *recordedEvents
	key      *ecdsa.PrivateKey
	owner    [20]byte
	verifier [20]byte
	now      int64
}

func addr(last byte) [20]byte {
	var out [20]byte
	out[19] = last
	return out
}

func keyAddr(key *ecdsa.PrivateKey) [20]byte {
	var out [20]byte
	copy(out[:], ethcrypto.PubkeyToAddress(key.PublicKey).Bytes())
	return out
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	key, err := ecdsa.GenerateKey(ethcrypto.S256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	h := &harness{
		db:       storage.NewMemDB(),
		events:   &recordedEvents{},
		key:      key,
		owner:    addr(0xA0),
		verifier: addr(0xB0),
		now:      1_000,
	}
	h.ledger = NewLedger(h.db, Config{
		RegistryID: "pool-1",
		PoolOwner:  h.owner,
		Authorizer: keyAddr(key),
	})
	h.ledger.SetEmitter(h.events)
	h.ledger.SetNowFunc(func() int64 { return h.now })
	h.ledger.RegisterVerifierHook(h.verifier, verification.NewInlineVerifier(nil))
	if err := h.ledger.SetDefaultVerifier(h.owner, h.verifier); err != nil {
		t.Fatalf("set default verifier: %v", err)
	}
	return h
}

func (h *harness) propose(t *testing.T, owner [20]byte, tag string) uint64 {
	t.Helper()
	count := h.nextID(t)
	ticket := registry.ProposeTicket{RegistryID: "pool-1", ID: count, Owner: owner, Tag: tag}
	sig, err := ethcrypto.Sign(ticket.Hash(), h.key)
	if err != nil {
		t.Fatalf("sign propose ticket: %v", err)
	}
	id, err := h.ledger.Propose(owner, tag, sig)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if id != count {
		t.Fatalf("expected id %d, got %d", count, id)
	}
	return id
}

func (h *harness) nextID(t *testing.T) uint64 {
	t.Helper()
	for id := uint64(0); ; id++ {
		if _, err := h.ledger.ContributionAt(id); errors.Is(err, registry.ErrNotFound) {
			return id
		}
	}
}

func (h *harness) claimTicket(t *testing.T, kind distribution.ClaimKind, account [20]byte) distribution.ClaimTicket {
	t.Helper()
	ticket := distribution.ClaimTicket{
		RegistryID: "pool-1",
		Kind:       kind,
		Account:    account,
		IssuedAt:   h.now - 10,
		ExpiresAt:  h.now + 60,
		Nonce:      "n-1",
	}
	sig, err := ethcrypto.Sign(ticket.Hash(), h.key)
	if err != nil {
		t.Fatalf("sign claim ticket: %v", err)
	}
	ticket.Signature = sig
	return ticket
}

func percent(num int64) *big.Int { return common.Percent(num, 100) }

func TestLedgerLifecycleEndToEnd(t *testing.T) {
	h := newHarness(t)
	alice := addr(0x01)
	bob := addr(0x02)

	// The inline verifier accepts during the propose chain, so all three
	// land accepted within one operation each.
	h.propose(t, alice, "schema")
	h.propose(t, alice, "schema")
	h.propose(t, bob, "rows")

	c, err := h.ledger.ContributionAt(0)
	if err != nil {
		t.Fatalf("contribution query: %v", err)
	}
	if c.Status != registry.StatusAccepted || c.Owner != alice {
		t.Fatalf("unexpected contribution %+v", c)
	}

	if _, err := h.ledger.SetTagWeights(h.owner, []distribution.TagWeight{
		{Tag: "schema", Weight: percent(40)},
		{Tag: "rows", Weight: percent(60)},
	}); err != nil {
		t.Fatalf("set tag weights: %v", err)
	}

	record, err := h.ledger.ReceivePayment("usd", big.NewInt(1000))
	if err != nil {
		t.Fatalf("receive payment: %v", err)
	}
	if record.Amount.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("no fees configured, pool must be the full amount, got %s", record.Amount)
	}

	settled, err := h.ledger.ClaimContributorPayouts(h.claimTicket(t, distribution.ClaimKindContributor, alice))
	if err != nil {
		t.Fatalf("claim alice: %v", err)
	}
	if len(settled) != 1 || settled[0].Amount.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("expected alice 400, got %+v", settled)
	}
	settled, err = h.ledger.ClaimContributorPayouts(h.claimTicket(t, distribution.ClaimKindContributor, bob))
	if err != nil {
		t.Fatalf("claim bob: %v", err)
	}
	if len(settled) != 1 || settled[0].Amount.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("expected bob 600, got %+v", settled)
	}

	balance, err := h.ledger.Balance(alice, "usd")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("expected settled balance 400, got %s", balance)
	}

	for _, want := range []string{
		events.TypeContributionProposed,
		events.TypeContributionAccepted,
		events.TypePaymentReceived,
		events.TypeContributorPayoutsClaimed,
	} {
		if !h.events.has(want) {
			t.Fatalf("missing event %q in %v", want, h.events.types)
		}
	}
}

func TestLedgerFailedOperationLeavesNoTrace(t *testing.T) {
	h := newHarness(t)
	alice := addr(0x01)

	// A signature from the wrong key must fail without consuming the id or
	// leaving a pending proposal behind.
	wrongKey, err := ecdsa.GenerateKey(ethcrypto.S256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	ticket := registry.ProposeTicket{RegistryID: "pool-1", ID: 0, Owner: alice, Tag: "schema"}
	sig, err := ethcrypto.Sign(ticket.Hash(), wrongKey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := h.ledger.Propose(alice, "schema", sig); !errors.Is(err, registry.ErrSignatureInvalid) {
		t.Fatalf("expected signature rejection, got %v", err)
	}
	if len(h.events.types) != 1 { // only the verifier routing setup
		t.Fatalf("failed operation must emit nothing, got %v", h.events.types)
	}

	// The id is still free for a correct ticket.
	id := h.propose(t, alice, "schema")
	if id != 0 {
		t.Fatalf("expected first id 0, got %d", id)
	}
}

func TestLedgerRejectingVerifierDiscardsNothingElse(t *testing.T) {
	h := newHarness(t)
	alice := addr(0x01)

	rejecting := addr(0xB1)
	h.ledger.RegisterVerifierHook(rejecting, verification.NewInlineVerifier(func(id uint64, tag string) bool {
		return tag != "spam"
	}))
	if err := h.ledger.SetTagVerifier(h.owner, "spam", rejecting); err != nil {
		t.Fatalf("set tag verifier: %v", err)
	}

	id := h.propose(t, alice, "spam")
	c, err := h.ledger.ContributionAt(id)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if c.Status != registry.StatusRejected {
		t.Fatalf("expected rejected, got %s", c.Status)
	}

	// The id is consumed; the next proposal gets a fresh one.
	next := h.propose(t, alice, "schema")
	if next != id+1 {
		t.Fatalf("expected id %d, got %d", id+1, next)
	}
}

func TestLedgerExternalVerifierResolution(t *testing.T) {
	h := newHarness(t)
	alice := addr(0x01)

	external := addr(0xC0)
	if err := h.ledger.SetTagVerifier(h.owner, "audit", external); err != nil {
		t.Fatalf("set tag verifier: %v", err)
	}

	id := h.propose(t, alice, "audit")
	c, err := h.ledger.ContributionAt(id)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if c.Status != registry.StatusPending {
		t.Fatalf("expected pending until the external verifier resolves, got %s", c.Status)
	}

	if err := h.ledger.Resolve(addr(0xC1), id, true); !errors.Is(err, verification.ErrUnauthorized) {
		t.Fatalf("foreign resolver must be rejected, got %v", err)
	}
	if err := h.ledger.Resolve(external, id, true); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	c, err = h.ledger.ContributionAt(id)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if c.Status != registry.StatusAccepted {
		t.Fatalf("expected accepted, got %s", c.Status)
	}
}

func TestLedgerOwnerShareAndFees(t *testing.T) {
	key, err := ecdsa.GenerateKey(ethcrypto.S256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	owner := addr(0xA0)
	collector := addr(0xFE)
	verifierAddr := addr(0xB0)
	db := storage.NewMemDB()
	ledger := NewLedger(db, Config{
		RegistryID:   "pool-1",
		PoolOwner:    owner,
		Authorizer:   keyAddr(key),
		FeeCollector: collector,
		PlatformFee:  percent(10),
	})
	now := int64(1_000)
	ledger.SetNowFunc(func() int64 { return now })
	ledger.RegisterVerifierHook(verifierAddr, verification.NewInlineVerifier(nil))
	if err := ledger.SetDefaultVerifier(owner, verifierAddr); err != nil {
		t.Fatalf("set default verifier: %v", err)
	}
	if err := ledger.SetOwnerPercentage(owner, percent(20)); err != nil {
		t.Fatalf("set owner percentage: %v", err)
	}
	if _, err := ledger.SetTagWeights(owner, []distribution.TagWeight{
		{Tag: "schema", Weight: common.PercentBase},
	}); err != nil {
		t.Fatalf("set tag weights: %v", err)
	}

	record, err := ledger.ReceivePayment("usd", big.NewInt(1000))
	if err != nil {
		t.Fatalf("receive payment: %v", err)
	}
	if record.Amount.Cmp(big.NewInt(720)) != 0 {
		t.Fatalf("expected pool 720 after fee and owner share, got %s", record.Amount)
	}
	feeBalance, err := ledger.Balance(collector, "usd")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if feeBalance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected fee 100 settled immediately, got %s", feeBalance)
	}

	ticket := distribution.ClaimTicket{
		RegistryID: "pool-1",
		Kind:       distribution.ClaimKindOwner,
		Account:    owner,
		IssuedAt:   now - 10,
		ExpiresAt:  now + 60,
		Nonce:      "n-1",
	}
	sig, err := ethcrypto.Sign(ticket.Hash(), key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	ticket.Signature = sig
	settled, err := ledger.ClaimOwnerPayouts(ticket)
	if err != nil {
		t.Fatalf("owner claim: %v", err)
	}
	if len(settled) != 1 || settled[0].Amount.Cmp(big.NewInt(180)) != 0 {
		t.Fatalf("expected owner 180, got %+v", settled)
	}
}

func TestLedgerSnapshotQueriesTrackRemoval(t *testing.T) {
	h := newHarness(t)
	alice := addr(0x01)

	id := h.propose(t, alice, "schema")
	h.propose(t, alice, "rows")
	if _, err := h.ledger.SetTagWeights(h.owner, []distribution.TagWeight{
		{Tag: "schema", Weight: percent(50)},
		{Tag: "rows", Weight: percent(50)},
	}); err != nil {
		t.Fatalf("set tag weights: %v", err)
	}
	if _, err := h.ledger.ReceivePayment("usd", big.NewInt(100)); err != nil {
		t.Fatalf("payment: %v", err)
	}

	if err := h.ledger.Remove(h.owner, id); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := h.ledger.ReceivePayment("usd", big.NewInt(100)); err != nil {
		t.Fatalf("payment: %v", err)
	}

	// Snapshot 0 still sees both tags; snapshot 1 only the survivor.
	counts, err := h.ledger.TagCountsAt(0)
	if err != nil {
		t.Fatalf("counts at 0: %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("expected two tags at snapshot 0, got %+v", counts)
	}
	counts, err = h.ledger.OwnerTagCountsAt(1, alice)
	if err != nil {
		t.Fatalf("counts at 1: %v", err)
	}
	if len(counts) != 1 || counts[0].Tag != "rows" {
		t.Fatalf("expected only rows at snapshot 1, got %+v", counts)
	}
}

func (h *harness) batchTicket(t *testing.T, first uint64, owners [][20]byte, tags []string) []byte {
	t.Helper()
	ticket := registry.ProposeBatchTicket{RegistryID: "pool-1", First: first, Owners: owners, Tags: tags}
	sig, err := ethcrypto.Sign(ticket.Hash(), h.key)
	if err != nil {
		t.Fatalf("sign batch ticket: %v", err)
	}
	return sig
}

func TestLedgerBatchProposalConsumesNoIDOnFailure(t *testing.T) {
	h := newHarness(t)
	owners := [][20]byte{addr(0x01), {}}
	tags := []string{"schema", "rows"}

	_, err := h.ledger.ProposeBatch(owners, tags, h.batchTicket(t, 0, owners, tags))
	if !errors.Is(err, registry.ErrZeroOwner) {
		t.Fatalf("expected zero owner rejection, got %v", err)
	}

	// The failed batch must not have advanced the id sequence.
	if id := h.propose(t, addr(0x01), "schema"); id != 0 {
		t.Fatalf("expected id 0 after failed batch, got %d", id)
	}
}

func TestLedgerBatchProposalAndRemoveBatch(t *testing.T) {
	h := newHarness(t)
	contributor := addr(0x01)
	owners := [][20]byte{contributor, contributor}
	tags := []string{"schema", "rows"}

	ids, err := h.ledger.ProposeBatch(owners, tags, h.batchTicket(t, 0, owners, tags))
	if err != nil {
		t.Fatalf("propose batch: %v", err)
	}
	if len(ids) != 2 || ids[0] != 0 || ids[1] != 1 {
		t.Fatalf("expected ids 0,1 got %v", ids)
	}
	for _, id := range ids {
		c, err := h.ledger.ContributionAt(id)
		if err != nil {
			t.Fatalf("contribution %d: %v", id, err)
		}
		if c.Status != registry.StatusAccepted || c.Owner != contributor {
			t.Fatalf("unexpected contribution %d: %+v", id, c)
		}
	}

	// A batch containing an unknown id removes nothing.
	if err := h.ledger.RemoveBatch(h.owner, []uint64{0, 99}); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	c, err := h.ledger.ContributionAt(0)
	if err != nil {
		t.Fatalf("contribution 0: %v", err)
	}
	if c.Status != registry.StatusAccepted {
		t.Fatalf("partial batch removal leaked, status %v", c.Status)
	}

	if err := h.ledger.RemoveBatch(h.owner, []uint64{0, 1}); err != nil {
		t.Fatalf("remove batch: %v", err)
	}
	for _, id := range ids {
		c, err := h.ledger.ContributionAt(id)
		if err != nil {
			t.Fatalf("contribution %d: %v", id, err)
		}
		if c.Status != registry.StatusRemoved {
			t.Fatalf("expected contribution %d removed, got %v", id, c.Status)
		}
	}
}
