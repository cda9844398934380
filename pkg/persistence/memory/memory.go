package memory

import (
	"fmt"
	"sync"

	"github.com/clemsos/safe-docs/pkg/persistence"
	"github.com/clemsos/safe-docs/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

type blobKey struct {
	account common.Address
	digest  types.Digest
}

// MemoryPersistence is an in-memory implementation of IBlobPersistence for tests and
// single-process use. Everything is lost when the process exits.
type MemoryPersistence struct {
	mu     sync.RWMutex
	blobs  map[blobKey]*persistence.BlobRecord
	closed bool
}

func NewMemoryPersistence(logger *zap.Logger) *MemoryPersistence {
	logger.Sugar().Warnw("Using in-memory blob persistence, published blobs are lost on restart")

	return &MemoryPersistence{
		blobs: make(map[blobKey]*persistence.BlobRecord),
	}
}

func (m *MemoryPersistence) SaveBlob(record *persistence.BlobRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	m.blobs[blobKey{record.Account, record.Digest}] = record.Copy()
	return nil
}

func (m *MemoryPersistence) LoadBlob(account common.Address, digest types.Digest) (*persistence.BlobRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	record, ok := m.blobs[blobKey{account, digest}]
	if !ok {
		return nil, nil
	}
	return record.Copy(), nil
}

func (m *MemoryPersistence) ListBlobs(account common.Address) ([]*persistence.BlobRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	result := make([]*persistence.BlobRecord, 0)
	for key, record := range m.blobs {
		if key.account == account {
			result = append(result, record.Copy())
		}
	}
	persistence.SortBlobRecords(result)
	return result, nil
}

func (m *MemoryPersistence) DeleteBlob(account common.Address, digest types.Digest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	delete(m.blobs, blobKey{account, digest})
	return nil
}

func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}
	return nil
}
