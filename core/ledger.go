package core

import (
	"math/big"
	"sync"

	"revledger/core/events"
	"revledger/core/state"
	"revledger/native/distribution"
	"revledger/native/registry"
	"revledger/native/verification"
	"revledger/storage"
)

// Config carries the wiring-time identities of one revenue pool.
type Config struct {
	// RegistryID is the identity bound into every authorization ticket; it
	// separates this deployment from siblings.
	RegistryID string
	// PoolOwner is the resource owner: may remove contributions, configure
	// verifier routing and weights, and receives the owner share.
	PoolOwner [20]byte
	// Authorizer is the trusted service whose signatures gate proposals and
	// claims.
	Authorizer [20]byte
	// FeeCollector receives the platform fee, settled at payment receipt.
	FeeCollector [20]byte
	// PlatformFee is the PercentBase-scaled fee percentage; nil disables the
	// fee.
	PlatformFee *big.Int
}

// Ledger composes the registry, verification and distribution engines over
// one database. Every mutating operation runs single-threaded against a
// write overlay that commits only when the whole operation succeeds, so a
// failing step anywhere in the chain leaves no partial effect.
type Ledger struct {
	mu      sync.Mutex
	db      storage.Database
	emitter events.Emitter
	cfg     Config
	hooks   map[[20]byte]verification.Verifier
	nowFn   func() int64
}

// NewLedger constructs a ledger over the given database.
func NewLedger(db storage.Database, cfg Config) *Ledger {
	return &Ledger{
		db:      db,
		emitter: events.NoopEmitter{},
		cfg:     cfg,
		hooks:   make(map[[20]byte]verification.Verifier),
	}
}

// SetEmitter configures the emitter receiving committed events.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetNowFunc overrides the claim-window clock, for deterministic testing.
func (l *Ledger) SetNowFunc(now func() int64) { l.nowFn = now }

// RegisterVerifierHook attaches an in-process verifier implementation for a
// verifier address. Hooks run inside the propose chain.
func (l *Ledger) RegisterVerifierHook(addr [20]byte, hook verification.Verifier) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if hook == nil {
		delete(l.hooks, addr)
		return
	}
	l.hooks[addr] = hook
}

// Owner reports the configured pool owner.
func (l *Ledger) Owner() [20]byte { return l.cfg.PoolOwner }

type engineSet struct {
	registry     *registry.Engine
	coordinator  *verification.Coordinator
	distribution *distribution.Engine
	manager      *state.Manager
}

func (l *Ledger) engines(mgr *state.Manager, emitter events.Emitter) engineSet {
	reg := registry.NewEngine()
	reg.SetState(mgr)
	reg.SetEmitter(emitter)
	reg.SetRegistryID(l.cfg.RegistryID)
	reg.SetAuthorizer(l.cfg.Authorizer)
	reg.SetPoolOwner(l.cfg.PoolOwner)

	coord := verification.NewCoordinator()
	coord.SetState(mgr)
	coord.SetEmitter(emitter)
	coord.SetPoolOwner(l.cfg.PoolOwner)
	coord.SetResolver(reg)
	for addr, hook := range l.hooks {
		coord.RegisterHook(addr, hook)
	}
	reg.SetRouter(coord)

	dist := distribution.NewEngine()
	dist.SetState(mgr)
	dist.SetEmitter(emitter)
	dist.SetRegistry(reg)
	dist.SetVault(mgr)
	dist.SetRegistryID(l.cfg.RegistryID)
	dist.SetAuthorizer(l.cfg.Authorizer)
	dist.SetPoolOwner(l.cfg.PoolOwner)
	dist.SetFeeModel(l.cfg.PlatformFee, l.cfg.FeeCollector)
	if l.nowFn != nil {
		dist.SetNowFunc(l.nowFn)
	}

	return engineSet{registry: reg, coordinator: coord, distribution: dist, manager: mgr}
}

// write runs one mutating operation transactionally: overlay in, commit on
// success, discard on error, flush buffered events only after commit.
func (l *Ledger) write(op func(engineSet) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	overlay := storage.NewOverlay(l.db)
	buffer := &events.Buffer{}
	set := l.engines(state.NewManager(overlay), buffer)
	if err := op(set); err != nil {
		overlay.Discard()
		return err
	}
	if err := overlay.Commit(); err != nil {
		return err
	}
	buffer.Flush(l.emitter)
	return nil
}

// read runs a query against committed state.
func (l *Ledger) read(op func(engineSet) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	set := l.engines(state.NewManager(l.db), events.NoopEmitter{})
	return op(set)
}

// --- Contribution lifecycle ---

func (l *Ledger) Propose(owner [20]byte, tag string, signature []byte) (uint64, error) {
	var id uint64
	err := l.write(func(set engineSet) error {
		var err error
		id, err = set.registry.Propose(owner, tag, signature)
		return err
	})
	return id, err
}

func (l *Ledger) ProposeBatch(owners [][20]byte, tags []string, signature []byte) ([]uint64, error) {
	var ids []uint64
	err := l.write(func(set engineSet) error {
		var err error
		ids, err = set.registry.ProposeBatch(owners, tags, signature)
		return err
	})
	return ids, err
}

// Resolve relays an external verifier's decision for a routed proposal.
func (l *Ledger) Resolve(caller [20]byte, id uint64, accept bool) error {
	return l.write(func(set engineSet) error {
		return set.coordinator.Resolve(caller, id, accept)
	})
}

func (l *Ledger) Remove(caller [20]byte, id uint64) error {
	return l.write(func(set engineSet) error {
		return set.registry.Remove(caller, id)
	})
}

func (l *Ledger) RemoveBatch(caller [20]byte, ids []uint64) error {
	return l.write(func(set engineSet) error {
		return set.registry.RemoveBatch(caller, ids)
	})
}

// --- Verifier routing ---

func (l *Ledger) SetDefaultVerifier(caller [20]byte, verifier [20]byte) error {
	return l.write(func(set engineSet) error {
		return set.coordinator.SetDefaultVerifier(caller, verifier)
	})
}

func (l *Ledger) SetTagVerifier(caller [20]byte, tag string, verifier [20]byte) error {
	return l.write(func(set engineSet) error {
		return set.coordinator.SetTagVerifier(caller, tag, verifier)
	})
}

func (l *Ledger) SetTagVerifiers(caller [20]byte, tags []string, verifiers [][20]byte) error {
	return l.write(func(set engineSet) error {
		return set.coordinator.SetTagVerifiers(caller, tags, verifiers)
	})
}

// --- Distribution configuration ---

func (l *Ledger) SetTagWeights(caller [20]byte, weights []distribution.TagWeight) (uint64, error) {
	var version uint64
	err := l.write(func(set engineSet) error {
		var err error
		version, err = set.distribution.SetTagWeights(caller, weights)
		return err
	})
	return version, err
}

func (l *Ledger) SetOwnerPercentage(caller [20]byte, pct *big.Int) error {
	return l.write(func(set engineSet) error {
		return set.distribution.SetOwnerPercentage(caller, pct)
	})
}

// --- Payments and claims ---

func (l *Ledger) ReceivePayment(currency string, amount *big.Int) (*distribution.PaymentRecord, error) {
	var record *distribution.PaymentRecord
	err := l.write(func(set engineSet) error {
		var err error
		record, err = set.distribution.ReceivePayment(currency, amount)
		return err
	})
	return record, err
}

func (l *Ledger) ClaimOwnerPayouts(ticket distribution.ClaimTicket) ([]distribution.Settlement, error) {
	var settled []distribution.Settlement
	err := l.write(func(set engineSet) error {
		var err error
		settled, err = set.distribution.ClaimOwnerPayouts(ticket)
		return err
	})
	return settled, err
}

func (l *Ledger) ClaimContributorPayouts(ticket distribution.ClaimTicket) ([]distribution.Settlement, error) {
	var settled []distribution.Settlement
	err := l.write(func(set engineSet) error {
		var err error
		settled, err = set.distribution.ClaimContributorPayouts(ticket)
		return err
	})
	return settled, err
}

func (l *Ledger) ClaimAllPayouts(ticket distribution.ClaimTicket) (contributor, owner []distribution.Settlement, err error) {
	err = l.write(func(set engineSet) error {
		var opErr error
		contributor, owner, opErr = set.distribution.ClaimAllPayouts(ticket)
		return opErr
	})
	return contributor, owner, err
}

// --- Queries ---

func (l *Ledger) ContributionAt(id uint64) (*registry.Contribution, error) {
	var out *registry.Contribution
	err := l.read(func(set engineSet) error {
		var err error
		out, err = set.registry.ContributionAt(id)
		return err
	})
	return out, err
}

func (l *Ledger) TagCountsAt(s uint64) ([]registry.TagCount, error) {
	var out []registry.TagCount
	err := l.read(func(set engineSet) error {
		var err error
		out, err = set.registry.TagCountsAt(s)
		return err
	})
	return out, err
}

func (l *Ledger) OwnerTagCountsAt(s uint64, owner [20]byte) ([]registry.TagCount, error) {
	var out []registry.TagCount
	err := l.read(func(set engineSet) error {
		var err error
		out, err = set.registry.OwnerTagCountsAt(s, owner)
		return err
	})
	return out, err
}

func (l *Ledger) OwnerTagPercentageAt(s uint64, owner [20]byte, tags []string) ([]*big.Int, error) {
	var out []*big.Int
	err := l.read(func(set engineSet) error {
		var err error
		out, err = set.registry.OwnerTagPercentageAt(s, owner, tags)
		return err
	})
	return out, err
}

func (l *Ledger) PaymentAt(index uint64) (*distribution.PaymentRecord, error) {
	var out *distribution.PaymentRecord
	err := l.read(func(set engineSet) error {
		var err error
		out, err = set.distribution.PaymentAt(index)
		return err
	})
	return out, err
}

func (l *Ledger) WeightVersionAt(index uint64) (*distribution.WeightVersion, error) {
	var out *distribution.WeightVersion
	err := l.read(func(set engineSet) error {
		var err error
		out, err = set.distribution.WeightVersionAt(index)
		return err
	})
	return out, err
}

func (l *Ledger) ProjectPayout(currency string, account [20]byte) (*big.Int, error) {
	var out *big.Int
	err := l.read(func(set engineSet) error {
		var err error
		out, err = set.distribution.ProjectPayout(currency, account)
		return err
	})
	return out, err
}

// Balance reads an account's settled vault balance for a currency.
func (l *Ledger) Balance(account [20]byte, currency string) (*big.Int, error) {
	var out *big.Int
	err := l.read(func(set engineSet) error {
		var err error
		out, err = set.manager.Balance(account, currency)
		return err
	})
	return out, err
}
