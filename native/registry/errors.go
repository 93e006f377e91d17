package registry

import "errors"

var (
	ErrNilState           = errors.New("registry: state not configured")
	ErrRouterNotSet       = errors.New("registry: verification router not configured")
	ErrUnauthorized       = errors.New("registry: unauthorized")
	ErrSignatureInvalid   = errors.New("registry: authorization signature invalid")
	ErrSignerUnknown      = errors.New("registry: authorization signer not registered")
	ErrEmptyTag           = errors.New("registry: tag must not be empty")
	ErrZeroOwner          = errors.New("registry: owner address must not be zero")
	ErrLengthMismatch     = errors.New("registry: batch array lengths differ")
	ErrNotFound           = errors.New("registry: contribution not found")
	ErrNotPending         = errors.New("registry: contribution not pending")
	ErrNotRemovable       = errors.New("registry: contribution not removable")
	ErrSnapshotOutOfRange = errors.New("registry: snapshot index out of range")
	ErrCheckpointClash    = errors.New("registry: checkpoint already materialized for open frame")
	ErrCountUnderflow     = errors.New("registry: tag count underflow")
)
