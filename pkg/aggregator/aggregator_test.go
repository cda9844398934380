package aggregator

import (
	"context"
	"errors"
	"testing"

	"github.com/clemsos/safe-docs/pkg/resolver"
	"github.com/clemsos/safe-docs/pkg/signature"
	"github.com/clemsos/safe-docs/pkg/testutil"
	"github.com/clemsos/safe-docs/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type unavailableResolver struct{}

func (unavailableResolver) ResolveAccount(context.Context, common.Address) (*types.Account, error) {
	return nil, errors.New("rpc timeout")
}

func newTestAggregator(t *testing.T, maxDepth int, accounts ...*types.Account) *Aggregator {
	snapshot, err := resolver.NewSnapshot(accounts...)
	require.NoError(t, err)
	return NewAggregator(&AggregatorConfig{MaxDepth: maxDepth}, snapshot, zaptest.NewLogger(t))
}

func TestAggregate_OrdersOwnerContributions(t *testing.T) {
	owners := testutil.CreateTestOwners(t, 4)
	a, b, c, outsider := owners[0], owners[1], owners[2], owners[3]
	account := testutil.CreateTestAccount(t, 1, 2, testutil.Addresses(c, a, b)...)
	digest := crypto.Keccak256Hash([]byte("action"))

	sigC := c.Sign(t, digest, signature.MethodTypedData)
	sigA := a.Sign(t, digest, signature.MethodEthSign)
	set := signature.NewSet(sigC, outsider.Sign(t, digest, signature.MethodEthSign), sigA)

	blob, err := newTestAggregator(t, 0).Aggregate(context.Background(), account, set, Options{})
	require.NoError(t, err)
	require.False(t, blob.Partial)
	require.Equal(t, []common.Address{a.Address, c.Address}, blob.Signers)

	expected, err := signature.Encode(sigA, sigC)
	require.NoError(t, err)
	require.Equal(t, expected, []byte(blob.Signatures))
}

func TestAggregate_Threshold(t *testing.T) {
	owners := testutil.CreateTestOwners(t, 3)
	account := testutil.CreateTestAccount(t, 1, 2, testutil.Addresses(owners...)...)
	digest := crypto.Keccak256Hash([]byte("action"))
	set := signature.NewSet(owners[1].Sign(t, digest, signature.MethodEthSign))
	agg := newTestAggregator(t, 0)

	_, err := agg.Aggregate(context.Background(), account, set, Options{})
	require.ErrorIs(t, err, types.ErrInsufficientSignatures)

	blob, err := agg.Aggregate(context.Background(), account, set, Options{AllowPartial: true})
	require.NoError(t, err)
	assert.True(t, blob.Partial)
	assert.False(t, blob.IsFinal())
	assert.Equal(t, []common.Address{owners[1].Address}, blob.Signers)

	blob, err = agg.Aggregate(context.Background(), account, nil, Options{AllowPartial: true})
	require.NoError(t, err)
	assert.True(t, blob.Partial)
	assert.Empty(t, blob.Signatures)
}

func TestAggregateContributions_DuplicateSigner(t *testing.T) {
	owners := testutil.CreateTestOwners(t, 2)
	account := testutil.CreateTestAccount(t, 1, 1, testutil.Addresses(owners...)...)
	digest := crypto.Keccak256Hash([]byte("action"))

	_, err := newTestAggregator(t, 0).AggregateContributions(context.Background(), account, []*signature.Contribution{
		owners[0].Sign(t, digest, signature.MethodEthSign),
		owners[0].Sign(t, digest, signature.MethodTypedData),
	}, Options{})
	require.ErrorIs(t, err, types.ErrDuplicateSigner)
}

func TestAggregate_Nested(t *testing.T) {
	keys := testutil.CreateTestOwners(t, 3)
	leaf := testutil.CreateTestAccount(t, 1, 2, testutil.Addresses(keys[0], keys[1])...)
	parent := testutil.CreateTestAccount(t, 2, 1, leaf.Address, keys[2].Address)
	nestedDigest := crypto.Keccak256Hash([]byte("nested"))
	agg := newTestAggregator(t, 0, leaf, parent)

	leafSet := signature.NewSet(
		keys[1].Sign(t, nestedDigest, signature.MethodTypedData),
		keys[0].Sign(t, nestedDigest, signature.MethodTypedData),
	)

	t.Run("embeds the aggregated nested blob", func(t *testing.T) {
		blob, err := agg.Aggregate(context.Background(), parent, signature.NewSet(
			signature.NewPendingNestedContribution(leaf.Address, leafSet),
		), Options{})
		require.NoError(t, err)
		require.Equal(t, []common.Address{leaf.Address}, blob.Signers)

		leafBlob, err := agg.Aggregate(context.Background(), leaf, leafSet, Options{})
		require.NoError(t, err)
		expected, err := signature.Encode(signature.NewNestedContribution(leaf.Address, leafBlob.Signatures))
		require.NoError(t, err)
		require.Equal(t, expected, []byte(blob.Signatures))
	})

	t.Run("insufficient nested signatures", func(t *testing.T) {
		partialLeaf := signature.NewSet(keys[0].Sign(t, nestedDigest, signature.MethodTypedData))
		set := signature.NewSet(signature.NewPendingNestedContribution(leaf.Address, partialLeaf))

		_, err := agg.Aggregate(context.Background(), parent, set, Options{})
		require.ErrorIs(t, err, types.ErrInsufficientSignatures)

		blob, err := agg.Aggregate(context.Background(), parent, set, Options{AllowPartial: true})
		require.NoError(t, err)
		require.True(t, blob.Partial)
		require.Equal(t, []common.Address{leaf.Address}, blob.Signers)
	})

	t.Run("nested owner that is a plain key", func(t *testing.T) {
		set := signature.NewSet(signature.NewPendingNestedContribution(keys[2].Address, leafSet))
		_, err := agg.Aggregate(context.Background(), parent, set, Options{})
		require.ErrorIs(t, err, types.ErrUnknownSigner)
	})

	t.Run("resolver failure", func(t *testing.T) {
		failing := NewAggregator(nil, unavailableResolver{}, zaptest.NewLogger(t))
		set := signature.NewSet(signature.NewPendingNestedContribution(leaf.Address, leafSet))
		_, err := failing.Aggregate(context.Background(), parent, set, Options{})
		require.ErrorIs(t, err, types.ErrConfigurationUnavailable)
	})
}

func TestAggregate_CyclicOwnership(t *testing.T) {
	keys := testutil.CreateTestOwners(t, 1)
	first := testutil.CreateTestAccount(t, 1, 1, testutil.TestAccountAddress(2), keys[0].Address)
	second := testutil.CreateTestAccount(t, 2, 1, first.Address)
	agg := newTestAggregator(t, 0, first, second)

	inner := signature.NewSet(signature.NewPendingNestedContribution(first.Address, signature.NewSet()))
	set := signature.NewSet(signature.NewPendingNestedContribution(second.Address, inner))

	_, err := agg.Aggregate(context.Background(), first, set, Options{})
	require.ErrorIs(t, err, types.ErrCyclicOwnership)
}

func TestAggregate_OwnershipTooDeep(t *testing.T) {
	keys := testutil.CreateTestOwners(t, 1)
	bottom := testutil.CreateTestAccount(t, 3, 1, keys[0].Address)
	middle := testutil.CreateTestAccount(t, 2, 1, bottom.Address)
	top := testutil.CreateTestAccount(t, 1, 1, middle.Address)
	digest := crypto.Keccak256Hash([]byte("deep"))

	set := signature.NewSet(signature.NewPendingNestedContribution(middle.Address, signature.NewSet(
		signature.NewPendingNestedContribution(bottom.Address, signature.NewSet(
			keys[0].Sign(t, digest, signature.MethodEthSign),
		)),
	)))

	_, err := newTestAggregator(t, 1, top, middle, bottom).Aggregate(context.Background(), top, set, Options{})
	require.ErrorIs(t, err, types.ErrOwnershipTooDeep)

	blob, err := newTestAggregator(t, 2, top, middle, bottom).Aggregate(context.Background(), top, set, Options{})
	require.NoError(t, err)
	require.True(t, blob.IsFinal())
}
