package persistence

import (
	"fmt"
	"time"

	"github.com/clemsos/safe-docs/pkg/signature"
	"github.com/clemsos/safe-docs/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// BlobRecord is a published blob together with what it approves
type BlobRecord struct {
	Account    common.Address   `json:"account"`
	Digest     types.Digest     `json:"digest"`
	Signatures hexutil.Bytes    `json:"signatures"`
	Signers    []common.Address `json:"signers"`
	CreatedAt  int64            `json:"createdAt"`
}

// NewBlobRecord wraps a final blob for publication. Partial blobs are refused.
func NewBlobRecord(account common.Address, digest types.Digest, blob *signature.Blob) (*BlobRecord, error) {
	if blob == nil {
		return nil, fmt.Errorf("cannot publish nil blob")
	}
	if blob.Partial {
		return nil, fmt.Errorf("%w: account %s digest %s", types.ErrPartialBlob, account.Hex(), digest.Hex())
	}
	return (&BlobRecord{
		Account:    account,
		Digest:     digest,
		Signatures: blob.Signatures,
		Signers:    blob.Signers,
		CreatedAt:  time.Now().Unix(),
	}).Copy(), nil
}

// Blob returns the record's signatures as a final blob
func (r *BlobRecord) Blob() *signature.Blob {
	c := r.Copy()
	return &signature.Blob{Signatures: c.Signatures, Signers: c.Signers}
}

// Copy returns a deep copy
func (r *BlobRecord) Copy() *BlobRecord {
	if r == nil {
		return nil
	}
	sigs := make(hexutil.Bytes, len(r.Signatures))
	copy(sigs, r.Signatures)
	signers := make([]common.Address, len(r.Signers))
	copy(signers, r.Signers)
	return &BlobRecord{
		Account:    r.Account,
		Digest:     r.Digest,
		Signatures: sigs,
		Signers:    signers,
		CreatedAt:  r.CreatedAt,
	}
}

// Validate checks a record is safe to store
func (r *BlobRecord) Validate() error {
	if r == nil {
		return fmt.Errorf("cannot save nil BlobRecord")
	}
	if r.Account == (common.Address{}) {
		return fmt.Errorf("blob record has no account")
	}
	if len(r.Signatures) == 0 {
		return fmt.Errorf("blob record for %s has no signatures", r.Account.Hex())
	}
	return nil
}
