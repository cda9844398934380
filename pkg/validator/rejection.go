package validator

import (
	"errors"
	"fmt"

	"github.com/clemsos/safe-docs/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

// State is the validation step reached before a verdict
type State uint8

const (
	StateStart State = iota
	StateRecordsParsed
	StateThresholdChecked
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateRecordsParsed:
		return "records-parsed"
	case StateThresholdChecked:
		return "threshold-checked"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Reason says why a blob was rejected
type Reason uint8

const (
	ReasonMalformed Reason = iota + 1
	ReasonUnknownSigner
	ReasonOutOfOrderOrDuplicate
	ReasonBelowThreshold
	ReasonCyclicOwnership
	ReasonOwnershipTooDeep
	ReasonConfigurationUnavailable
	ReasonPartialBlob
)

var reasons = map[Reason]struct {
	name     string
	sentinel error
}{
	ReasonMalformed:                {"malformed", types.ErrMalformedSignature},
	ReasonUnknownSigner:            {"unknown-signer", types.ErrUnknownSigner},
	ReasonOutOfOrderOrDuplicate:    {"out-of-order-or-duplicate", types.ErrOutOfOrderOrDuplicate},
	ReasonBelowThreshold:           {"below-threshold", types.ErrBelowThreshold},
	ReasonCyclicOwnership:          {"cyclic-ownership", types.ErrCyclicOwnership},
	ReasonOwnershipTooDeep:         {"ownership-too-deep", types.ErrOwnershipTooDeep},
	ReasonConfigurationUnavailable: {"configuration-unavailable", types.ErrConfigurationUnavailable},
	ReasonPartialBlob:              {"partial-blob", types.ErrPartialBlob},
}

func (r Reason) String() string {
	if info, ok := reasons[r]; ok {
		return info.name
	}
	return fmt.Sprintf("reason(%d)", uint8(r))
}

// Sentinel returns the error taxonomy entry for r
func (r Reason) Sentinel() error {
	return reasons[r].sentinel
}

// RejectionError is the verdict for a rejected blob. Account is the account whose
// records failed, which is a nested account when the failure happened below the root.
type RejectionError struct {
	Reason  Reason
	Account common.Address
	State   State
	Err     error
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("signatures rejected for %s at %s (%s): %v", e.Account.Hex(), e.State, e.Reason, e.Err)
}

func (e *RejectionError) Unwrap() error {
	return e.Err
}

// ReasonOf extracts the rejection reason from err
func ReasonOf(err error) (Reason, bool) {
	var rejection *RejectionError
	if errors.As(err, &rejection) {
		return rejection.Reason, true
	}
	return 0, false
}

func reject(reason Reason, account common.Address, state State, err error) *RejectionError {
	if sentinel := reason.Sentinel(); sentinel != nil && !errors.Is(err, sentinel) {
		err = fmt.Errorf("%w: %w", sentinel, err)
	}
	return &RejectionError{Reason: reason, Account: account, State: state, Err: err}
}

func rejectf(reason Reason, account common.Address, state State, format string, args ...interface{}) *RejectionError {
	return &RejectionError{
		Reason:  reason,
		Account: account,
		State:   state,
		Err:     fmt.Errorf("%w: "+format, append([]interface{}{reason.Sentinel()}, args...)...),
	}
}
