package chainResolver

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/clemsos/safe-docs/pkg/resolver"
	"github.com/clemsos/safe-docs/pkg/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeAccountContract struct {
	t         *testing.T
	abi       abi.ABI
	code      map[common.Address][]byte
	owners    []common.Address
	threshold *big.Int
	version   string
	callErr   error
	blocks    []*big.Int
}

func newFakeAccountContract(t *testing.T) *fakeAccountContract {
	parsed, err := abi.JSON(strings.NewReader(accountABI))
	require.NoError(t, err)
	return &fakeAccountContract{t: t, abi: parsed, code: make(map[common.Address][]byte)}
}

func (f *fakeAccountContract) CodeAt(_ context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	f.blocks = append(f.blocks, blockNumber)
	return f.code[account], nil
}

func (f *fakeAccountContract) CallContract(_ context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.blocks = append(f.blocks, blockNumber)
	if f.callErr != nil {
		return nil, f.callErr
	}

	var (
		method abi.Method
		value  interface{}
	)
	switch {
	case bytes.HasPrefix(call.Data, f.abi.Methods[methodGetOwners].ID):
		method, value = f.abi.Methods[methodGetOwners], f.owners
	case bytes.HasPrefix(call.Data, f.abi.Methods[methodGetThreshold].ID):
		method, value = f.abi.Methods[methodGetThreshold], f.threshold
	case bytes.HasPrefix(call.Data, f.abi.Methods[methodVersion].ID):
		method, value = f.abi.Methods[methodVersion], f.version
	default:
		return nil, errors.New("execution reverted")
	}
	out, err := method.Outputs.Pack(value)
	require.NoError(f.t, err)
	return out, nil
}

func TestChainResolver(t *testing.T) {
	account := common.HexToAddress("0x000000000000000000000000000000000000a001")
	owners := []common.Address{
		common.HexToAddress("0x0000000000000000000000000000000000000001"),
		common.HexToAddress("0x0000000000000000000000000000000000000002"),
	}

	setup := func(t *testing.T) *fakeAccountContract {
		fake := newFakeAccountContract(t)
		fake.code[account] = []byte{0x60, 0x80}
		fake.owners = owners
		fake.threshold = big.NewInt(2)
		fake.version = "1.4.1"
		return fake
	}

	t.Run("reads configuration at pinned block", func(t *testing.T) {
		fake := setup(t)
		block := big.NewInt(1234)
		cr, err := NewChainResolver(fake, &ChainResolverConfig{BlockNumber: block, RequestsPerSecond: 1000}, zaptest.NewLogger(t))
		require.NoError(t, err)

		got, err := cr.ResolveAccount(context.Background(), account)
		require.NoError(t, err)
		require.Equal(t, &types.Account{Address: account, Owners: owners, Threshold: 2, Version: "1.4.1"}, got)
		for _, b := range fake.blocks {
			require.Equal(t, block, b)
		}
	})

	t.Run("address without code is not an account", func(t *testing.T) {
		cr, err := NewChainResolver(setup(t), nil, zaptest.NewLogger(t))
		require.NoError(t, err)

		_, err = cr.ResolveAccount(context.Background(), owners[0])
		require.ErrorIs(t, err, resolver.ErrNotAnAccount)
	})

	t.Run("rpc failure is unavailable", func(t *testing.T) {
		fake := setup(t)
		fake.callErr = errors.New("connection refused")
		cr, err := NewChainResolver(fake, nil, zaptest.NewLogger(t))
		require.NoError(t, err)

		_, err = cr.ResolveAccount(context.Background(), account)
		require.ErrorIs(t, err, types.ErrConfigurationUnavailable)
	})

	t.Run("inconsistent configuration is unavailable", func(t *testing.T) {
		fake := setup(t)
		fake.threshold = big.NewInt(3)
		cr, err := NewChainResolver(fake, nil, zaptest.NewLogger(t))
		require.NoError(t, err)

		_, err = cr.ResolveAccount(context.Background(), account)
		require.ErrorIs(t, err, types.ErrConfigurationUnavailable)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cr, err := NewChainResolver(setup(t), &ChainResolverConfig{RequestsPerSecond: 0.001}, zaptest.NewLogger(t))
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = cr.ResolveAccount(ctx, account)
		require.ErrorIs(t, err, types.ErrConfigurationUnavailable)
	})
}
