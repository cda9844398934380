package keyGenerator

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/clemsos/safe-docs/pkg/ownerSigner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// GeneratedOwnerKey describes a secp256k1 key provisioned for an account owner
type GeneratedOwnerKey struct {
	PublicKey *ecdsa.PublicKey
	Address   common.Address
	KeyId     string
}

// GetPublicKeyHex returns the uncompressed public key (0x04 prefixed)
func (k *GeneratedOwnerKey) GetPublicKeyHex() (string, error) {
	if k.PublicKey == nil {
		return "", fmt.Errorf("public key is nil")
	}
	return hexutil.Encode(crypto.FromECDSAPub(k.PublicKey)), nil
}

// IKeyGenerator provisions owner keys and hands out signers for them. Used by
// operator tooling only; the signing engine never creates keys.
type IKeyGenerator interface {
	GenerateOwnerKey(ctx context.Context, keyName string, aliasName string) (*GeneratedOwnerKey, error)
	GetOwnerKey(ctx context.Context, keyId string) (*GeneratedOwnerKey, error)
	Signer(ctx context.Context, keyId string) (ownerSigner.IOwnerSigner, error)
}
