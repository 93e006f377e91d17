package distribution

import (
	"encoding/hex"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ClaimTicketDomain separates claim authorizations from every other signed
// payload and from sibling deployments.
const ClaimTicketDomain = "REVLEDGER_CLAIM_V1"

// ClaimKind selects which payout path a ticket unlocks.
type ClaimKind string

const (
	ClaimKindOwner       ClaimKind = "owner"
	ClaimKindContributor ClaimKind = "contributor"
	ClaimKindAll         ClaimKind = "all"
)

// ClaimTicket is a time-bounded authorization issued by the trusted
// authorization service. It only gates when a self-claim is permitted; the
// payable amount always comes from the ledger, never from the ticket.
type ClaimTicket struct {
	RegistryID string
	Kind       ClaimKind
	Account    [20]byte
	IssuedAt   int64
	ExpiresAt  int64
	Nonce      string
	Signature  []byte
}

// CanonicalMessage renders the deterministic payload covered by the
// signature.
func (t ClaimTicket) CanonicalMessage() string {
	return fmt.Sprintf("%s|registry=%s|kind=%s|account=%s|iat=%d|exp=%d|nonce=%s",
		ClaimTicketDomain,
		strings.TrimSpace(t.RegistryID),
		t.Kind,
		hex.EncodeToString(t.Account[:]),
		t.IssuedAt,
		t.ExpiresAt,
		strings.TrimSpace(t.Nonce),
	)
}

// Hash computes the keccak256 digest of the canonical message.
func (t ClaimTicket) Hash() []byte {
	return ethcrypto.Keccak256([]byte(t.CanonicalMessage()))
}
