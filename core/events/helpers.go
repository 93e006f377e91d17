package events

import (
	"math/big"
	"strconv"

	"revledger/crypto"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatAddress(addr [20]byte) string {
	return crypto.NewAddress(crypto.LedgerPrefix, addr[:]).String()
}

func uintToString(v uint64) string {
	return strconv.FormatUint(v, 10)
}
