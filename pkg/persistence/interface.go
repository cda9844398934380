package persistence

import (
	"github.com/clemsos/safe-docs/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

// IBlobPersistence publishes finalized signature blobs keyed by (account, digest).
// All implementations must be thread-safe.
type IBlobPersistence interface {
	// SaveBlob stores a record, replacing any earlier record for the same key.
	SaveBlob(record *BlobRecord) error

	// LoadBlob returns nil if no blob exists, error only on storage failure.
	LoadBlob(account common.Address, digest types.Digest) (*BlobRecord, error)

	// ListBlobs returns every blob published for account, oldest first.
	ListBlobs(account common.Address) ([]*BlobRecord, error)

	// DeleteBlob is idempotent.
	DeleteBlob(account common.Address, digest types.Digest) error

	// Close is idempotent. After Close all other operations return errors.
	Close() error

	// HealthCheck returns nil if the store is operational.
	HealthCheck() error
}
