package ownerSigner

import (
	"context"

	"github.com/clemsos/safe-docs/pkg/signature"
	"github.com/clemsos/safe-docs/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

// IOwnerSigner produces direct signatures for one owner key. Key material never
// leaves the implementation.
type IOwnerSigner interface {
	// Address returns the owner address the signatures recover to
	Address() common.Address

	// SignDigest signs digest under method
	SignDigest(ctx context.Context, digest types.Digest, method signature.Method) (*signature.DirectSignature, error)
}
