package registry

import (
	"encoding/hex"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	// ProposeTicketDomain separates single-contribution authorizations from
	// every other signed payload and from sibling deployments.
	ProposeTicketDomain = "REVLEDGER_CONTRIB_V1"
	// ProposeBatchTicketDomain covers a contiguous id range under one
	// signature.
	ProposeBatchTicketDomain = "REVLEDGER_CONTRIB_BATCH_V1"
)

// ProposeTicket authorizes the creation of a single contribution. The digest
// binds the allocated id, the proposed owner, the tag and the registry
// identity, so a ticket issued for one registry cannot be replayed against
// another, nor against a different id.
type ProposeTicket struct {
	RegistryID string
	ID         uint64
	Owner      [20]byte
	Tag        string
	Signature  []byte
}

// CanonicalMessage renders the deterministic payload covered by the
// signature.
func (t ProposeTicket) CanonicalMessage() string {
	return fmt.Sprintf("%s|registry=%s|id=%d|owner=%s|tag=%s",
		ProposeTicketDomain,
		strings.TrimSpace(t.RegistryID),
		t.ID,
		hex.EncodeToString(t.Owner[:]),
		strings.TrimSpace(t.Tag),
	)
}

// Hash computes the keccak256 digest of the canonical message.
func (t ProposeTicket) Hash() []byte {
	return ethcrypto.Keccak256([]byte(t.CanonicalMessage()))
}

// ProposeBatchTicket authorizes a contiguous run of contributions starting at
// First. Owners and tags are bound position by position.
type ProposeBatchTicket struct {
	RegistryID string
	First      uint64
	Owners     [][20]byte
	Tags       []string
	Signature  []byte
}

func (t ProposeBatchTicket) CanonicalMessage() string {
	owners := make([]string, 0, len(t.Owners))
	for _, owner := range t.Owners {
		owners = append(owners, hex.EncodeToString(owner[:]))
	}
	return fmt.Sprintf("%s|registry=%s|first=%d|count=%d|owners=%s|tags=%s",
		ProposeBatchTicketDomain,
		strings.TrimSpace(t.RegistryID),
		t.First,
		len(t.Owners),
		strings.Join(owners, ","),
		strings.Join(t.Tags, ","),
	)
}

func (t ProposeBatchTicket) Hash() []byte {
	return ethcrypto.Keccak256([]byte(t.CanonicalMessage()))
}
