package persistenceTest

import (
	"fmt"
	"sync"
	"testing"

	"github.com/clemsos/safe-docs/pkg/persistence"
	"github.com/clemsos/safe-docs/pkg/signature"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory opens a fresh, empty store for one subtest
type Factory func(t *testing.T) persistence.IBlobPersistence

// NewTestRecord builds a final record for account with a digest derived from seed
func NewTestRecord(t *testing.T, account common.Address, seed string, createdAt int64) *persistence.BlobRecord {
	t.Helper()
	record, err := persistence.NewBlobRecord(account, crypto.Keccak256Hash([]byte(seed)), &signature.Blob{
		Signatures: crypto.Keccak256([]byte(seed + ":sigs")),
		Signers:    []common.Address{common.BytesToAddress(crypto.Keccak256([]byte(seed + ":signer")))},
	})
	require.NoError(t, err)
	record.CreatedAt = createdAt
	return record
}

// RunConformanceTests exercises the IBlobPersistence contract against a store implementation
func RunConformanceTests(t *testing.T, open Factory) {
	account := common.HexToAddress("0x5AFE000000000000000000000000000000000001")
	other := common.HexToAddress("0x5AFE000000000000000000000000000000000002")

	t.Run("SaveAndLoad", func(t *testing.T) {
		store := open(t)
		record := NewTestRecord(t, account, "save-and-load", 100)

		require.NoError(t, store.SaveBlob(record))

		loaded, err := store.LoadBlob(account, record.Digest)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, record, loaded)
	})

	t.Run("LoadNotFound", func(t *testing.T) {
		store := open(t)
		loaded, err := store.LoadBlob(account, crypto.Keccak256Hash([]byte("missing")))
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("SaveReplaces", func(t *testing.T) {
		store := open(t)
		first := NewTestRecord(t, account, "replace", 100)
		second := first.Copy()
		second.Signatures = []byte{0xaa}
		second.CreatedAt = 200

		require.NoError(t, store.SaveBlob(first))
		require.NoError(t, store.SaveBlob(second))

		loaded, err := store.LoadBlob(account, first.Digest)
		require.NoError(t, err)
		assert.Equal(t, second, loaded)

		list, err := store.ListBlobs(account)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("ListByAccount", func(t *testing.T) {
		store := open(t)
		late := NewTestRecord(t, account, "late", 300)
		early := NewTestRecord(t, account, "early", 100)
		foreign := NewTestRecord(t, other, "foreign", 200)
		for _, r := range []*persistence.BlobRecord{late, early, foreign} {
			require.NoError(t, store.SaveBlob(r))
		}

		list, err := store.ListBlobs(account)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, early.Digest, list[0].Digest)
		assert.Equal(t, late.Digest, list[1].Digest)

		empty, err := store.ListBlobs(common.HexToAddress("0x03"))
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		store := open(t)
		record := NewTestRecord(t, account, "delete", 100)
		require.NoError(t, store.SaveBlob(record))

		require.NoError(t, store.DeleteBlob(account, record.Digest))
		require.NoError(t, store.DeleteBlob(account, record.Digest))

		loaded, err := store.LoadBlob(account, record.Digest)
		require.NoError(t, err)
		assert.Nil(t, loaded)

		list, err := store.ListBlobs(account)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("RejectsInvalid", func(t *testing.T) {
		store := open(t)
		require.Error(t, store.SaveBlob(nil))
		require.Error(t, store.SaveBlob(&persistence.BlobRecord{Account: account}))
	})

	t.Run("ReturnsCopies", func(t *testing.T) {
		store := open(t)
		record := NewTestRecord(t, account, "copies", 100)
		require.NoError(t, store.SaveBlob(record))
		record.Signatures[0] ^= 0xff

		loaded, err := store.LoadBlob(account, record.Digest)
		require.NoError(t, err)
		assert.NotEqual(t, record.Signatures, loaded.Signatures)
	})

	t.Run("ConcurrentSaves", func(t *testing.T) {
		store := open(t)
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, store.SaveBlob(NewTestRecord(t, account, fmt.Sprintf("concurrent-%d", i), int64(i))))
			}(i)
		}
		wg.Wait()

		list, err := store.ListBlobs(account)
		require.NoError(t, err)
		assert.Len(t, list, 20)
	})

	t.Run("Closed", func(t *testing.T) {
		store := open(t)
		require.NoError(t, store.HealthCheck())
		require.NoError(t, store.Close())
		require.NoError(t, store.Close())

		assert.Error(t, store.HealthCheck())
		assert.Error(t, store.SaveBlob(NewTestRecord(t, account, "closed", 1)))
		_, err := store.LoadBlob(account, crypto.Keccak256Hash([]byte("closed")))
		assert.Error(t, err)
		_, err = store.ListBlobs(account)
		assert.Error(t, err)
		assert.Error(t, store.DeleteBlob(account, crypto.Keccak256Hash([]byte("closed"))))
	})
}
