package state

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"revledger/native/distribution"
	"revledger/native/registry"
	"revledger/native/verification"
	"revledger/storage"
)

// Manager persists every ledger record family onto a flat key-value store
// using RLP encoding. It implements the state interfaces of the registry,
// verification and distribution engines, plus the settlement vault.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database,
// which is typically a storage.Overlay during a unit of work.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func (m *Manager) getUint(key []byte) (uint64, error) {
	data, err := m.db.Get(key)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, nil
	}
	var out uint64
	if err := rlp.DecodeBytes(data, &out); err != nil {
		return 0, fmt.Errorf("state: decode counter: %w", err)
	}
	return out, nil
}

func (m *Manager) putUint(key []byte, v uint64) error {
	data, err := rlp.EncodeToBytes(v)
	if err != nil {
		return err
	}
	return m.db.Put(key, data)
}

// --- registry.State ---

func (m *Manager) ContributionGet(id uint64) (*registry.Contribution, bool, error) {
	data, err := m.db.Get(contributionKey(id))
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	var out registry.Contribution
	if err := rlp.DecodeBytes(data, &out); err != nil {
		return nil, false, fmt.Errorf("state: decode contribution %d: %w", id, err)
	}
	return &out, true, nil
}

func (m *Manager) ContributionPut(c *registry.Contribution) error {
	if c == nil {
		return fmt.Errorf("state: nil contribution")
	}
	data, err := rlp.EncodeToBytes(c)
	if err != nil {
		return err
	}
	return m.db.Put(contributionKey(c.ID), data)
}

func (m *Manager) ContributionCount() (uint64, error) {
	return m.getUint(contribCountKey)
}

func (m *Manager) SetContributionCount(count uint64) error {
	return m.putUint(contribCountKey, count)
}

func (m *Manager) OpenFrame() (uint64, error) {
	return m.getUint(openFrameKey)
}

func (m *Manager) SetOpenFrame(frame uint64) error {
	return m.putUint(openFrameKey, frame)
}

func (m *Manager) CheckpointList(party [20]byte) ([]uint64, error) {
	data, err := m.db.Get(checkpointListKey(party))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return []uint64{}, nil
	}
	var out []uint64
	if err := rlp.DecodeBytes(data, &out); err != nil {
		return nil, fmt.Errorf("state: decode checkpoint list: %w", err)
	}
	return out, nil
}

func (m *Manager) CheckpointAppend(party [20]byte, frame uint64, counts []registry.TagCount) error {
	frames, err := m.CheckpointList(party)
	if err != nil {
		return err
	}
	if n := len(frames); n > 0 && frames[n-1] >= frame {
		return fmt.Errorf("state: checkpoint frame %d not beyond tail %d", frame, frames[n-1])
	}
	frames = append(frames, frame)
	listData, err := rlp.EncodeToBytes(frames)
	if err != nil {
		return err
	}
	if err := m.db.Put(checkpointListKey(party), listData); err != nil {
		return err
	}
	return m.putCounts(party, frame, counts)
}

func (m *Manager) CheckpointUpdate(party [20]byte, frame uint64, counts []registry.TagCount) error {
	exists, err := m.db.Has(checkpointKey(party, frame))
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("state: checkpoint %d not materialized", frame)
	}
	return m.putCounts(party, frame, counts)
}

func (m *Manager) putCounts(party [20]byte, frame uint64, counts []registry.TagCount) error {
	if counts == nil {
		counts = []registry.TagCount{}
	}
	data, err := rlp.EncodeToBytes(counts)
	if err != nil {
		return err
	}
	return m.db.Put(checkpointKey(party, frame), data)
}

func (m *Manager) CheckpointCounts(party [20]byte, frame uint64) ([]registry.TagCount, bool, error) {
	data, err := m.db.Get(checkpointKey(party, frame))
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		// An empty view RLP-encodes to a non-empty list header, so absent
		// and empty are distinguishable via Has.
		exists, err := m.db.Has(checkpointKey(party, frame))
		if err != nil {
			return nil, false, err
		}
		if !exists {
			return nil, false, nil
		}
		return []registry.TagCount{}, true, nil
	}
	var out []registry.TagCount
	if err := rlp.DecodeBytes(data, &out); err != nil {
		return nil, false, fmt.Errorf("state: decode checkpoint counts: %w", err)
	}
	return out, true, nil
}

// --- verification.State ---

func (m *Manager) DefaultVerifier() ([20]byte, bool, error) {
	return m.getAddress(defaultVerifierKey)
}

func (m *Manager) SetDefaultVerifier(addr [20]byte) error {
	return m.db.Put(defaultVerifierKey, addr[:])
}

func (m *Manager) TagVerifier(tag string) ([20]byte, bool, error) {
	return m.getAddress(tagVerifierKey(tag))
}

func (m *Manager) SetTagVerifier(tag string, addr [20]byte) error {
	return m.db.Put(tagVerifierKey(tag), addr[:])
}

func (m *Manager) getAddress(key []byte) ([20]byte, bool, error) {
	var out [20]byte
	data, err := m.db.Get(key)
	if err != nil {
		return out, false, err
	}
	if len(data) == 0 {
		return out, false, nil
	}
	if len(data) != 20 {
		return out, false, fmt.Errorf("state: malformed address record of %d bytes", len(data))
	}
	copy(out[:], data)
	return out, true, nil
}

func (m *Manager) PendingProposalGet(id uint64) (*verification.PendingProposal, bool, error) {
	data, err := m.db.Get(pendingProposalKey(id))
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	var out verification.PendingProposal
	if err := rlp.DecodeBytes(data, &out); err != nil {
		return nil, false, fmt.Errorf("state: decode pending proposal %d: %w", id, err)
	}
	return &out, true, nil
}

func (m *Manager) PendingProposalPut(id uint64, p *verification.PendingProposal) error {
	if p == nil {
		return fmt.Errorf("state: nil pending proposal")
	}
	data, err := rlp.EncodeToBytes(p)
	if err != nil {
		return err
	}
	return m.db.Put(pendingProposalKey(id), data)
}

func (m *Manager) PendingProposalDelete(id uint64) error {
	return m.db.Delete(pendingProposalKey(id))
}

// --- distribution.State ---

func (m *Manager) WeightVersionCount() (uint64, error) {
	return m.getUint(weightCountKey)
}

func (m *Manager) SetWeightVersionCount(count uint64) error {
	return m.putUint(weightCountKey, count)
}

func (m *Manager) WeightVersionGet(index uint64) (*distribution.WeightVersion, bool, error) {
	data, err := m.db.Get(weightVersionKey(index))
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	var out distribution.WeightVersion
	if err := rlp.DecodeBytes(data, &out); err != nil {
		return nil, false, fmt.Errorf("state: decode weight version %d: %w", index, err)
	}
	return &out, true, nil
}

func (m *Manager) WeightVersionPut(v *distribution.WeightVersion) error {
	if v == nil {
		return fmt.Errorf("state: nil weight version")
	}
	data, err := rlp.EncodeToBytes(v)
	if err != nil {
		return err
	}
	return m.db.Put(weightVersionKey(v.Index), data)
}

func (m *Manager) PaymentCount() (uint64, error) {
	return m.getUint(paymentCountKey)
}

func (m *Manager) SetPaymentCount(count uint64) error {
	return m.putUint(paymentCountKey, count)
}

func (m *Manager) PaymentGet(index uint64) (*distribution.PaymentRecord, bool, error) {
	data, err := m.db.Get(paymentKey(index))
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	var out distribution.PaymentRecord
	if err := rlp.DecodeBytes(data, &out); err != nil {
		return nil, false, fmt.Errorf("state: decode payment %d: %w", index, err)
	}
	return &out, true, nil
}

func (m *Manager) PaymentPut(r *distribution.PaymentRecord) error {
	if r == nil {
		return fmt.Errorf("state: nil payment record")
	}
	data, err := rlp.EncodeToBytes(r)
	if err != nil {
		return err
	}
	return m.db.Put(paymentKey(r.Index), data)
}

func (m *Manager) OwnerCursor() (uint64, error) {
	return m.getUint(ownerCursorKey)
}

func (m *Manager) SetOwnerCursor(cursor uint64) error {
	return m.putUint(ownerCursorKey, cursor)
}

func (m *Manager) ContributorCursor(account [20]byte) (uint64, error) {
	return m.getUint(contributorCursorKey(account))
}

func (m *Manager) SetContributorCursor(account [20]byte, cursor uint64) error {
	return m.putUint(contributorCursorKey(account), cursor)
}

func (m *Manager) PendingOwnerBalance(currency string) (*big.Int, error) {
	return m.getAmount(pendingOwnerKey(currency))
}

func (m *Manager) SetPendingOwnerBalance(currency string, amount *big.Int) error {
	return m.putAmount(pendingOwnerKey(currency), amount)
}

func (m *Manager) OwnerPercentage() (*big.Int, bool, error) {
	data, err := m.db.Get(ownerPctKey)
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	out := new(big.Int)
	if err := rlp.DecodeBytes(data, out); err != nil {
		return nil, false, fmt.Errorf("state: decode owner percentage: %w", err)
	}
	return out, true, nil
}

func (m *Manager) SetOwnerPercentage(pct *big.Int) error {
	return m.putAmount(ownerPctKey, pct)
}

func (m *Manager) getAmount(key []byte) (*big.Int, error) {
	data, err := m.db.Get(key)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return big.NewInt(0), nil
	}
	out := new(big.Int)
	if err := rlp.DecodeBytes(data, out); err != nil {
		return nil, fmt.Errorf("state: decode amount: %w", err)
	}
	return out, nil
}

func (m *Manager) putAmount(key []byte, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("state: negative amount")
	}
	data, err := rlp.EncodeToBytes(amount)
	if err != nil {
		return err
	}
	return m.db.Put(key, data)
}

// --- distribution.Vault ---

// Credit adds amount to an account's balance for a currency. The balance
// book is the settlement boundary: external transfer rails reconcile against
// it.
func (m *Manager) Credit(account [20]byte, currency string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: credit amount must be non-negative")
	}
	if amount.Sign() == 0 {
		return nil
	}
	balance, err := m.getAmount(balanceKey(account, currency))
	if err != nil {
		return err
	}
	return m.putAmount(balanceKey(account, currency), new(big.Int).Add(balance, amount))
}

// Balance reads an account's settled balance for a currency.
func (m *Manager) Balance(account [20]byte, currency string) (*big.Int, error) {
	return m.getAmount(balanceKey(account, currency))
}
