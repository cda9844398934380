package persistence

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/clemsos/safe-docs/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

// MarshalBlobRecord serializes a BlobRecord to JSON bytes.
func MarshalBlobRecord(r *BlobRecord) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("cannot marshal nil BlobRecord")
	}

	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal BlobRecord to JSON: %w", err)
	}
	return data, nil
}

// UnmarshalBlobRecord deserializes a BlobRecord from JSON bytes.
func UnmarshalBlobRecord(data []byte) (*BlobRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var r BlobRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to BlobRecord: %w", err)
	}
	return &r, nil
}

// AccountKey is the lowercase hex form used in storage keys
func AccountKey(account common.Address) string {
	return strings.ToLower(account.Hex())
}

// BlobKey is the storage key suffix for (account, digest)
func BlobKey(account common.Address, digest types.Digest) string {
	return AccountKey(account) + ":" + digest.Hex()
}

// SortBlobRecords orders records oldest first, then by digest
func SortBlobRecords(records []*BlobRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt != records[j].CreatedAt {
			return records[i].CreatedAt < records[j].CreatedAt
		}
		return records[i].Digest.Hex() < records[j].Digest.Hex()
	})
}
