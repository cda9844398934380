package types

import "errors"

// Signature engine error taxonomy. Callers match with errors.Is; every site wraps
// one of these with the account or record that caused it.
var (
	// ErrMalformedSignature is a structural or bounds violation while decoding a blob
	ErrMalformedSignature = errors.New("malformed signature")

	// ErrDuplicateSigner is raised at aggregation time when two contributions share a signer
	ErrDuplicateSigner = errors.New("duplicate signer")

	// ErrOutOfOrderOrDuplicate is raised at validation time when signers are not strictly ascending
	ErrOutOfOrderOrDuplicate = errors.New("signers out of order or duplicated")

	// ErrUnknownSigner means the signer is not an owner of the account
	ErrUnknownSigner = errors.New("signer is not an owner")

	// ErrInsufficientSignatures means aggregation found fewer contributions than the threshold
	ErrInsufficientSignatures = errors.New("insufficient signatures")

	// ErrBelowThreshold means a blob carries fewer valid records than the threshold
	ErrBelowThreshold = errors.New("signature count below threshold")

	// ErrCyclicOwnership means an account appears twice in one ownership chain
	ErrCyclicOwnership = errors.New("cyclic ownership")

	// ErrOwnershipTooDeep means the ownership chain exceeds the configured maximum depth.
	// The configuration must be rejected outright.
	ErrOwnershipTooDeep = errors.New("ownership too deep")

	// ErrConfigurationUnavailable means the account configuration could not be resolved
	ErrConfigurationUnavailable = errors.New("account configuration unavailable")

	// ErrPartialBlob means an in-progress blob was presented for validation or publication
	ErrPartialBlob = errors.New("partial signature blob")

	// ErrInvalidAction means the action kind does not match its payload
	ErrInvalidAction = errors.New("invalid action")

	// ErrInvalidAccount means an account configuration breaks the owner/threshold invariants
	ErrInvalidAccount = errors.New("invalid account")
)
