package distribution

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"revledger/core/events"
	"revledger/native/common"
)

// MaxOwnerPercentage is the protocol ceiling on the resource owner's cut of
// a payment's post-fee remainder: 50%, guaranteeing the majority always
// flows to contributors and the platform fee.
var MaxOwnerPercentage = common.Percent(50, 100)

// State is the persistence surface the distribution engine requires.
type State interface {
	WeightVersionCount() (uint64, error)
	SetWeightVersionCount(count uint64) error
	WeightVersionGet(index uint64) (*WeightVersion, bool, error)
	WeightVersionPut(v *WeightVersion) error

	PaymentCount() (uint64, error)
	SetPaymentCount(count uint64) error
	PaymentGet(index uint64) (*PaymentRecord, bool, error)
	PaymentPut(r *PaymentRecord) error

	OwnerCursor() (uint64, error)
	SetOwnerCursor(cursor uint64) error
	ContributorCursor(account [20]byte) (uint64, error)
	SetContributorCursor(account [20]byte, cursor uint64) error

	PendingOwnerBalance(currency string) (*big.Int, error)
	SetPendingOwnerBalance(currency string, amount *big.Int) error

	OwnerPercentage() (*big.Int, bool, error)
	SetOwnerPercentage(pct *big.Int) error
}

// RegistryView is the slice of the contribution registry the engine reads:
// snapshot closing at payment time and historical ownership percentages at
// claim time.
type RegistryView interface {
	CloseSnapshot() (uint64, error)
	OwnerTagPercentageAt(s uint64, owner [20]byte, tags []string) ([]*big.Int, error)
}

// Vault settles value onto accounts. The state manager implements it as a
// per-currency balance book; a failing credit aborts the whole call.
type Vault interface {
	Credit(account [20]byte, currency string, amount *big.Int) error
}

// Engine owns the versioned tag-weight configuration and the append-only
// payment ledger, and computes and settles payouts from historical
// ownership shares.
type Engine struct {
	state        State
	emitter      events.Emitter
	registry     RegistryView
	vault        Vault
	registryID   string
	authorizer   [20]byte
	poolOwner    [20]byte
	feeCollector [20]byte
	platformFee  *big.Int
	nowFn        func() int64
	receiving    bool
}

// NewEngine constructs a distribution engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn: func() int64 {
			return time.Now().Unix()
		},
	}
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

// SetRegistry wires the contribution registry's read surface.
func (e *Engine) SetRegistry(registry RegistryView) { e.registry = registry }

// SetVault wires the settlement vault.
func (e *Engine) SetVault(vault Vault) { e.vault = vault }

// SetRegistryID configures the identity bound into claim tickets.
func (e *Engine) SetRegistryID(id string) { e.registryID = strings.TrimSpace(id) }

// SetAuthorizer registers the signer whose tickets gate claims.
func (e *Engine) SetAuthorizer(addr [20]byte) { e.authorizer = addr }

// SetPoolOwner registers the resource owner.
func (e *Engine) SetPoolOwner(addr [20]byte) { e.poolOwner = addr }

// SetFeeModel configures the platform fee percentage (PercentBase-scaled)
// and its beneficiary. A nil percentage disables the fee.
func (e *Engine) SetFeeModel(pct *big.Int, collector [20]byte) {
	if pct == nil {
		e.platformFee = nil
	} else {
		e.platformFee = new(big.Int).Set(pct)
	}
	e.feeCollector = collector
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) ready() error {
	if e.state == nil {
		return ErrNilState
	}
	return nil
}

func (e *Engine) ownerOnly(caller [20]byte) error {
	if caller != e.poolOwner || caller == ([20]byte{}) {
		return ErrUnauthorized
	}
	return nil
}

// --- Weight configuration ---

// SetTagWeights appends a new weight version. The weights must sum exactly
// to the percent base so a payment's contributor pool is fully, and only,
// allocated.
func (e *Engine) SetTagWeights(caller [20]byte, weights []TagWeight) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if err := e.ownerOnly(caller); err != nil {
		return 0, err
	}
	if len(weights) == 0 {
		return 0, ErrEmptyWeights
	}
	seen := make(map[string]struct{}, len(weights))
	sum := big.NewInt(0)
	cleaned := make([]TagWeight, len(weights))
	for i, w := range weights {
		tag := strings.TrimSpace(w.Tag)
		if tag == "" {
			return 0, ErrEmptyTag
		}
		if _, dup := seen[tag]; dup {
			return 0, ErrDuplicateTag
		}
		seen[tag] = struct{}{}
		if w.Weight == nil || w.Weight.Sign() < 0 {
			return 0, ErrNegativeWeight
		}
		sum.Add(sum, w.Weight)
		cleaned[i] = TagWeight{Tag: tag, Weight: new(big.Int).Set(w.Weight)}
	}
	if sum.Cmp(common.PercentBase) != 0 {
		return 0, ErrWeightSum
	}
	index, err := e.state.WeightVersionCount()
	if err != nil {
		return 0, err
	}
	version := &WeightVersion{Index: index, Weights: cleaned}
	if err := e.state.WeightVersionPut(version); err != nil {
		return 0, err
	}
	if err := e.state.SetWeightVersionCount(index + 1); err != nil {
		return 0, err
	}
	e.emitter.Emit(events.WeightVersionSet{Version: index, Tags: version.Tags()})
	return index, nil
}

// SetOwnerPercentage bounds the owner's cut of the post-fee remainder.
func (e *Engine) SetOwnerPercentage(caller [20]byte, pct *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.ownerOnly(caller); err != nil {
		return err
	}
	if pct == nil || pct.Sign() < 0 {
		return ErrInvalidAmount
	}
	if pct.Cmp(MaxOwnerPercentage) > 0 {
		return ErrPercentageTooHigh
	}
	if err := e.state.SetOwnerPercentage(new(big.Int).Set(pct)); err != nil {
		return err
	}
	e.emitter.Emit(events.OwnerPercentageSet{Percentage: new(big.Int).Set(pct)})
	return nil
}

func (e *Engine) ownerPercentage() (*big.Int, error) {
	pct, ok, err := e.state.OwnerPercentage()
	if err != nil {
		return nil, err
	}
	if !ok || pct == nil {
		return big.NewInt(0), nil
	}
	return pct, nil
}

// --- Payment receipt ---

// ReceivePayment ingests one externally collected payment: it closes the
// registry's open snapshot (so later contribution changes cannot
// retroactively affect this payment's attribution), settles the platform
// fee immediately, accrues the owner share into the per-currency pending
// balance and appends a payment record for the contributor pool.
func (e *Engine) ReceivePayment(currency string, amount *big.Int) (*PaymentRecord, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.registry == nil {
		return nil, ErrRegistryNotSet
	}
	if e.vault == nil {
		return nil, ErrVaultNotSet
	}
	if e.receiving {
		return nil, ErrReentrant
	}
	e.receiving = true
	defer func() { e.receiving = false }()

	currency = strings.TrimSpace(currency)
	if currency == "" {
		return nil, ErrEmptyCurrency
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	versions, err := e.state.WeightVersionCount()
	if err != nil {
		return nil, err
	}
	if versions == 0 {
		return nil, ErrNoWeightVersion
	}

	snapshot, err := e.registry.CloseSnapshot()
	if err != nil {
		return nil, err
	}

	fee := common.ApplyPercent(amount, e.platformFee)
	if fee.Sign() > 0 {
		if err := e.vault.Credit(e.feeCollector, currency, fee); err != nil {
			return nil, fmt.Errorf("%w: platform fee: %v", ErrSettlementFailed, err)
		}
	}
	remainder := new(big.Int).Sub(amount, fee)

	ownerPct, err := e.ownerPercentage()
	if err != nil {
		return nil, err
	}
	ownerShare := common.ApplyPercent(remainder, ownerPct)
	if ownerShare.Sign() > 0 {
		pending, err := e.state.PendingOwnerBalance(currency)
		if err != nil {
			return nil, err
		}
		if err := e.state.SetPendingOwnerBalance(currency, new(big.Int).Add(pending, ownerShare)); err != nil {
			return nil, err
		}
	}
	pool := new(big.Int).Sub(remainder, ownerShare)

	index, err := e.state.PaymentCount()
	if err != nil {
		return nil, err
	}
	record := &PaymentRecord{
		Index:         index,
		Currency:      currency,
		Amount:        pool,
		Snapshot:      snapshot,
		WeightVersion: versions - 1,
	}
	if err := e.state.PaymentPut(record); err != nil {
		return nil, err
	}
	if err := e.state.SetPaymentCount(index + 1); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.PaymentReceived{
		Index:         index,
		Currency:      currency,
		Gross:         new(big.Int).Set(amount),
		Pool:          new(big.Int).Set(pool),
		Snapshot:      snapshot,
		WeightVersion: versions - 1,
	})
	return record.Clone(), nil
}

// --- Queries ---

// PaymentAt returns a copy of one payment record.
func (e *Engine) PaymentAt(index uint64) (*PaymentRecord, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	record, found, err := e.state.PaymentGet(index)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrPaymentNotFound
	}
	return record.Clone(), nil
}

// WeightVersionAt returns a copy of one weight version.
func (e *Engine) WeightVersionAt(index uint64) (*WeightVersion, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	version, found, err := e.state.WeightVersionGet(index)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrVersionNotFound
	}
	return version.Clone(), nil
}
