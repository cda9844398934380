package signature

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Blob is the aggregated, canonically ordered signature data of one account.
// Partial blobs are in-progress collections and are never accepted by the validator.
type Blob struct {
	Signatures hexutil.Bytes    `json:"signatures"`
	Signers    []common.Address `json:"signers"`
	Partial    bool             `json:"partial"`
}

// IsFinal reports whether the blob may be validated or published
func (b *Blob) IsFinal() bool {
	return b != nil && !b.Partial
}
