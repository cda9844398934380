package badger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/clemsos/safe-docs/pkg/persistence"
	"github.com/clemsos/safe-docs/pkg/persistence/persistenceTest"
	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var _ persistence.IBlobPersistence = (*BadgerPersistence)(nil)

func TestBadgerPersistence(t *testing.T) {
	persistenceTest.RunConformanceTests(t, func(t *testing.T) persistence.IBlobPersistence {
		bp, err := NewBadgerPersistence(t.TempDir(), zaptest.NewLogger(t))
		require.NoError(t, err)
		t.Cleanup(func() { _ = bp.Close() })
		return bp
	})
}

func TestBadgerPersistence_SurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	account := common.HexToAddress("0x5AFE000000000000000000000000000000000001")
	record := persistenceTest.NewTestRecord(t, account, "restart", 42)

	bp, err := NewBadgerPersistence(dir, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, bp.SaveBlob(record))
	require.NoError(t, bp.Close())

	reopened, err := NewBadgerPersistence(dir, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	loaded, err := reopened.LoadBlob(account, record.Digest)
	require.NoError(t, err)
	assert.Equal(t, record, loaded)
}

func TestBadgerPersistence_SchemaMismatch(t *testing.T) {
	dir := t.TempDir()

	bp, err := NewBadgerPersistence(dir, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, bp.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(keySchemaVersion), []byte("v0"))
	}))
	require.NoError(t, bp.Close())

	_, err = NewBadgerPersistence(dir, zaptest.NewLogger(t))
	require.ErrorContains(t, err, "unsupported schema version")
}

func TestNewBadgerPersistence_BadPath(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	_, err := NewBadgerPersistence(file, zaptest.NewLogger(t))
	require.Error(t, err)
}
