package state

import (
	"encoding/binary"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Every record lives under a keccak of a human-readable prefixed key, so the
// flat KV namespace cannot collide across record families.

var (
	contribPrefix        = []byte("contrib:")
	contribCountKey      = ethcrypto.Keccak256([]byte("contrib-count"))
	openFrameKey         = ethcrypto.Keccak256([]byte("snapshot-open-frame"))
	checkpointListPrefix = []byte("ckpt-list:")
	checkpointPrefix     = []byte("ckpt:")
	weightCountKey       = ethcrypto.Keccak256([]byte("weight-version-count"))
	weightPrefix         = []byte("weight-version:")
	paymentCountKey      = ethcrypto.Keccak256([]byte("payment-count"))
	paymentPrefix        = []byte("payment:")
	ownerCursorKey       = ethcrypto.Keccak256([]byte("owner-cursor"))
	contribCursorPrefix  = []byte("contrib-cursor:")
	pendingOwnerPrefix   = []byte("pending-owner:")
	ownerPctKey          = ethcrypto.Keccak256([]byte("owner-percentage"))
	defaultVerifierKey   = ethcrypto.Keccak256([]byte("verifier-default"))
	tagVerifierPrefix    = []byte("verifier-tag:")
	pendingPropPrefix    = []byte("pending-proposal:")
	balancePrefix        = []byte("balance:")
)

func uintSuffix(prefix []byte, v uint64) []byte {
	buf := make([]byte, len(prefix)+8)
	copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[len(prefix):], v)
	return ethcrypto.Keccak256(buf)
}

func bytesSuffix(prefix []byte, parts ...[]byte) []byte {
	buf := append([]byte{}, prefix...)
	for _, part := range parts {
		buf = append(buf, part...)
		buf = append(buf, ':')
	}
	return ethcrypto.Keccak256(buf)
}

func contributionKey(id uint64) []byte {
	return uintSuffix(contribPrefix, id)
}

func checkpointListKey(party [20]byte) []byte {
	return bytesSuffix(checkpointListPrefix, party[:])
}

func checkpointKey(party [20]byte, frame uint64) []byte {
	buf := make([]byte, len(checkpointPrefix)+20+8)
	copy(buf, checkpointPrefix)
	copy(buf[len(checkpointPrefix):], party[:])
	binary.BigEndian.PutUint64(buf[len(checkpointPrefix)+20:], frame)
	return ethcrypto.Keccak256(buf)
}

func weightVersionKey(index uint64) []byte {
	return uintSuffix(weightPrefix, index)
}

func paymentKey(index uint64) []byte {
	return uintSuffix(paymentPrefix, index)
}

func contributorCursorKey(account [20]byte) []byte {
	return bytesSuffix(contribCursorPrefix, account[:])
}

func pendingOwnerKey(currency string) []byte {
	return bytesSuffix(pendingOwnerPrefix, []byte(currency))
}

func tagVerifierKey(tag string) []byte {
	return bytesSuffix(tagVerifierPrefix, []byte(tag))
}

func pendingProposalKey(id uint64) []byte {
	return uintSuffix(pendingPropPrefix, id)
}

func balanceKey(account [20]byte, currency string) []byte {
	return bytesSuffix(balancePrefix, account[:], []byte(currency))
}
