package inMemoryOwnerSigner

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/clemsos/safe-docs/pkg/signature"
	"github.com/clemsos/safe-docs/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// InMemoryOwnerSigner holds an owner's private key in process memory
type InMemoryOwnerSigner struct {
	logger     *zap.Logger
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewInMemoryOwnerSignerFromHex loads a hex private key, with or without 0x
func NewInMemoryOwnerSignerFromHex(privateKey string, logger *zap.Logger) (*InMemoryOwnerSigner, error) {
	if privateKey == "" {
		return nil, fmt.Errorf("private key cannot be empty")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("error loading private key: %w", err)
	}
	return NewInMemoryOwnerSigner(key, logger), nil
}

func NewInMemoryOwnerSigner(key *ecdsa.PrivateKey, logger *zap.Logger) *InMemoryOwnerSigner {
	return &InMemoryOwnerSigner{
		logger:     logger,
		privateKey: key,
		address:    crypto.PubkeyToAddress(key.PublicKey),
	}
}

func (s *InMemoryOwnerSigner) Address() common.Address {
	return s.address
}

func (s *InMemoryOwnerSigner) SignDigest(_ context.Context, digest types.Digest, method signature.Method) (*signature.DirectSignature, error) {
	if !method.Valid() {
		return nil, fmt.Errorf("unsupported signing %s", method)
	}

	sig, err := crypto.Sign(method.SigningHash(digest).Bytes(), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign digest: %w", err)
	}

	s.logger.Sugar().Debugw("Signed digest",
		zap.String("owner", s.address.Hex()),
		zap.String("digest", digest.Hex()),
		zap.String("method", method.String()),
	)
	return signature.NewDirectSignature(sig, method)
}
