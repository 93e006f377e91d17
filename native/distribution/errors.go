package distribution

import "errors"

var (
	ErrNilState          = errors.New("distribution: state not configured")
	ErrRegistryNotSet    = errors.New("distribution: registry view not configured")
	ErrVaultNotSet       = errors.New("distribution: vault not configured")
	ErrUnauthorized      = errors.New("distribution: unauthorized")
	ErrEmptyWeights      = errors.New("distribution: weight set must not be empty")
	ErrEmptyTag          = errors.New("distribution: tag must not be empty")
	ErrDuplicateTag      = errors.New("distribution: duplicate tag in weight set")
	ErrNegativeWeight    = errors.New("distribution: weight must not be negative")
	ErrWeightSum         = errors.New("distribution: weights must sum to the percent base")
	ErrPercentageTooHigh = errors.New("distribution: owner percentage above ceiling")
	ErrNoWeightVersion   = errors.New("distribution: no tag weights configured")
	ErrInvalidAmount     = errors.New("distribution: amount must be positive")
	ErrEmptyCurrency     = errors.New("distribution: currency must not be empty")
	ErrReentrant         = errors.New("distribution: payment receipt already in progress")
	ErrSignatureInvalid  = errors.New("distribution: claim signature invalid")
	ErrSignerUnknown     = errors.New("distribution: claim signer not registered")
	ErrTicketExpired     = errors.New("distribution: claim ticket expired")
	ErrTicketNotYetValid = errors.New("distribution: claim ticket not yet valid")
	ErrTicketKind        = errors.New("distribution: claim ticket kind mismatch")
	ErrSettlementFailed  = errors.New("distribution: settlement failed")
	ErrPaymentNotFound   = errors.New("distribution: payment record not found")
	ErrVersionNotFound   = errors.New("distribution: weight version not found")
)
