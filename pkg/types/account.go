package types

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Digest is the canonical 32-byte hash of an action bound to its domain
type Digest = common.Hash

// Account is a multi-owner identity with an approval threshold. Owners are either
// external keys or other accounts; which one is decided by the resolver, not here.
type Account struct {
	Address   common.Address   `json:"address"`
	Owners    []common.Address `json:"owners"`
	Threshold uint64           `json:"threshold"`
	Version   string           `json:"version"`
}

// Validate checks 1 <= threshold <= len(owners) and that owners are unique and non-zero.
// Self-ownership is allowed here; cycles are a resolution-time failure.
func (a *Account) Validate() error {
	if a == nil {
		return fmt.Errorf("%w: account is nil", ErrInvalidAccount)
	}
	if a.Address == (common.Address{}) {
		return fmt.Errorf("%w: account address is empty", ErrInvalidAccount)
	}
	if len(a.Owners) == 0 {
		return fmt.Errorf("%w: account %s has no owners", ErrInvalidAccount, a.Address.Hex())
	}
	if a.Threshold == 0 {
		return fmt.Errorf("%w: account %s has a zero threshold", ErrInvalidAccount, a.Address.Hex())
	}
	if a.Threshold > uint64(len(a.Owners)) {
		return fmt.Errorf("%w: account %s threshold %d exceeds owner count %d",
			ErrInvalidAccount, a.Address.Hex(), a.Threshold, len(a.Owners))
	}

	seen := make(map[common.Address]struct{}, len(a.Owners))
	for _, owner := range a.Owners {
		if owner == (common.Address{}) {
			return fmt.Errorf("%w: account %s has an empty owner", ErrInvalidAccount, a.Address.Hex())
		}
		if _, ok := seen[owner]; ok {
			return fmt.Errorf("%w: account %s lists owner %s twice", ErrInvalidAccount, a.Address.Hex(), owner.Hex())
		}
		seen[owner] = struct{}{}
	}
	return nil
}

// IsOwner reports whether addr is one of the account's owners
func (a *Account) IsOwner(addr common.Address) bool {
	for _, owner := range a.Owners {
		if owner == addr {
			return true
		}
	}
	return false
}

// Copy returns a deep copy so cached configurations cannot be mutated by callers
func (a *Account) Copy() *Account {
	if a == nil {
		return nil
	}
	owners := make([]common.Address, len(a.Owners))
	copy(owners, a.Owners)
	return &Account{
		Address:   a.Address,
		Owners:    owners,
		Threshold: a.Threshold,
		Version:   a.Version,
	}
}

// CompareAddresses orders addresses by their numeric value
func CompareAddresses(a, b common.Address) int {
	return bytes.Compare(a.Bytes(), b.Bytes())
}
