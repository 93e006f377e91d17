package distribution

import "math/big"

// TagWeight assigns one tag its slice of a payment's contributor pool,
// scaled to common.PercentBase.
type TagWeight struct {
	Tag    string
	Weight *big.Int
}

// WeightVersion is an immutable tag→weight mapping. Versions form an
// append-only sequence; payments bind the version current at receipt time.
type WeightVersion struct {
	Index   uint64
	Weights []TagWeight
}

// Clone produces a deep copy safe to hand across the state boundary.
func (v *WeightVersion) Clone() *WeightVersion {
	if v == nil {
		return nil
	}
	clone := &WeightVersion{Index: v.Index, Weights: make([]TagWeight, len(v.Weights))}
	for i, w := range v.Weights {
		clone.Weights[i] = TagWeight{Tag: w.Tag}
		if w.Weight != nil {
			clone.Weights[i].Weight = new(big.Int).Set(w.Weight)
		}
	}
	return clone
}

// Tags returns the version's tags in declaration order.
func (v *WeightVersion) Tags() []string {
	tags := make([]string, len(v.Weights))
	for i, w := range v.Weights {
		tags[i] = w.Tag
	}
	return tags
}

// PaymentRecord is the authoritative log entry for one received payment's
// contributor-distributable residue, bound to the snapshot and weight
// version current at receipt.
type PaymentRecord struct {
	Index         uint64
	Currency      string
	Amount        *big.Int
	Snapshot      uint64
	WeightVersion uint64
}

// Clone produces a deep copy safe to hand across the state boundary.
func (r *PaymentRecord) Clone() *PaymentRecord {
	if r == nil {
		return nil
	}
	clone := *r
	if r.Amount != nil {
		clone.Amount = new(big.Int).Set(r.Amount)
	}
	return &clone
}

// Settlement summarises one value transfer produced by a claim.
type Settlement struct {
	Currency string
	Amount   *big.Int
}
