package common

import "math/big"

// PercentBase is the fixed-point unit for percentages: 10^18 represents 100%.
// Every product of two percent-scale factors divides by PercentBase squared,
// truncating toward zero.
var PercentBase = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Percent returns a defensive copy of PercentBase scaled by num/den, for
// building test fixtures and configuration values (e.g. Percent(40, 100) is
// 40%).
func Percent(num, den int64) *big.Int {
	out := new(big.Int).Mul(PercentBase, big.NewInt(num))
	return out.Div(out, big.NewInt(den))
}

// ApplyPercent computes amount * pct / PercentBase, truncating toward zero.
// Nil inputs are treated as zero.
func ApplyPercent(amount, pct *big.Int) *big.Int {
	if amount == nil || pct == nil || amount.Sign() == 0 || pct.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, pct)
	return out.Div(out, PercentBase)
}

// ApplyPercentSquared computes amount * a * b / PercentBase^2 with a single
// truncating division, for terms combining two percent-scale factors (a tag
// weight and an ownership share).
func ApplyPercentSquared(amount, a, b *big.Int) *big.Int {
	if amount == nil || a == nil || b == nil {
		return big.NewInt(0)
	}
	if amount.Sign() == 0 || a.Sign() == 0 || b.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, a)
	out.Mul(out, b)
	den := new(big.Int).Mul(PercentBase, PercentBase)
	return out.Div(out, den)
}

// Fraction returns count/total scaled to PercentBase, truncating toward
// zero. A zero total yields zero rather than an error: a party simply owns
// nothing of an empty population.
func Fraction(count, total uint64) *big.Int {
	if total == 0 || count == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(new(big.Int).SetUint64(count), PercentBase)
	return out.Div(out, new(big.Int).SetUint64(total))
}
