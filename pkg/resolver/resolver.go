package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/clemsos/safe-docs/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

// ErrNotAnAccount is returned for addresses that are plain keys rather than accounts
var ErrNotAnAccount = errors.New("address is not a multisig account")

// Resolver returns the current configuration of an account.
// Failures other than ErrNotAnAccount must wrap types.ErrConfigurationUnavailable.
type Resolver interface {
	ResolveAccount(ctx context.Context, address common.Address) (*types.Account, error)
}

// Snapshot is a fixed set of account configurations. It performs no I/O, which
// keeps anything resolving through it a pure function of the snapshot.
type Snapshot struct {
	accounts map[common.Address]*types.Account
}

func NewSnapshot(accounts ...*types.Account) (*Snapshot, error) {
	s := &Snapshot{accounts: make(map[common.Address]*types.Account, len(accounts))}
	for _, account := range accounts {
		if err := account.Validate(); err != nil {
			return nil, err
		}
		if _, ok := s.accounts[account.Address]; ok {
			return nil, fmt.Errorf("%w: account %s appears twice in snapshot", types.ErrInvalidAccount, account.Address.Hex())
		}
		s.accounts[account.Address] = account.Copy()
	}
	return s, nil
}

func (s *Snapshot) ResolveAccount(_ context.Context, address common.Address) (*types.Account, error) {
	account, ok := s.accounts[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotAnAccount, address.Hex())
	}
	return account.Copy(), nil
}

func (s *Snapshot) Len() int {
	return len(s.accounts)
}
