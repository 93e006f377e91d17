package verification

import "errors"

var (
	ErrNilState       = errors.New("verification: state not configured")
	ErrResolverNotSet = errors.New("verification: registry resolver not configured")
	ErrUnauthorized   = errors.New("verification: caller is not the bound verifier")
	ErrVerifierNotSet = errors.New("verification: no verifier configured for tag")
	ErrZeroVerifier   = errors.New("verification: verifier address must not be zero")
	ErrLengthMismatch = errors.New("verification: batch array lengths differ")
	ErrNotPending     = errors.New("verification: no pending proposal for id")
	ErrAlreadyPending = errors.New("verification: proposal already pending for id")
)
