package testutil

import (
	"crypto/ecdsa"
	"fmt"
	"sort"
	"testing"

	"github.com/clemsos/safe-docs/pkg/signature"
	"github.com/clemsos/safe-docs/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

// TestOwner is an external key owning test accounts
type TestOwner struct {
	Key     *ecdsa.PrivateKey
	Address common.Address
}

// CreateTestOwners generates n keys sorted by ascending address
func CreateTestOwners(t *testing.T, n int) []*TestOwner {
	t.Helper()
	owners := make([]*TestOwner, n)
	for i := range owners {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		owners[i] = &TestOwner{Key: key, Address: crypto.PubkeyToAddress(key.PublicKey)}
	}
	sort.Slice(owners, func(i, j int) bool {
		return types.CompareAddresses(owners[i].Address, owners[j].Address) < 0
	})
	return owners
}

// Sign produces the owner's contribution over digest
func (o *TestOwner) Sign(t *testing.T, digest types.Digest, method signature.Method) *signature.Contribution {
	t.Helper()
	sig, err := crypto.Sign(method.SigningHash(digest).Bytes(), o.Key)
	require.NoError(t, err)
	ds, err := signature.NewDirectSignature(sig, method)
	require.NoError(t, err)
	c, err := signature.NewDirectContribution(ds, digest)
	require.NoError(t, err)
	return c
}

// Addresses returns the owners' addresses in order
func Addresses(owners ...*TestOwner) []common.Address {
	addrs := make([]common.Address, len(owners))
	for i, o := range owners {
		addrs[i] = o.Address
	}
	return addrs
}

// TestAccountAddress returns a deterministic contract-like address for account n
func TestAccountAddress(n int) common.Address {
	return common.HexToAddress(fmt.Sprintf("0x5afe%036x", n))
}

// CreateTestAccount builds a valid account owned by owners
func CreateTestAccount(t *testing.T, n int, threshold uint64, owners ...common.Address) *types.Account {
	t.Helper()
	account := &types.Account{
		Address:   TestAccountAddress(n),
		Owners:    owners,
		Threshold: threshold,
		Version:   "1.4.1",
	}
	require.NoError(t, account.Validate())
	return account
}
