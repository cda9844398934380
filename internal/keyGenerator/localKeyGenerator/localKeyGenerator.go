package localKeyGenerator

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"sync"

	"github.com/clemsos/safe-docs/internal/keyGenerator"
	"github.com/clemsos/safe-docs/pkg/ownerSigner"
	"github.com/clemsos/safe-docs/pkg/ownerSigner/inMemoryOwnerSigner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type keyEntry struct {
	privateKey *ecdsa.PrivateKey
	keyName    string
	aliasName  string
	address    common.Address
}

// LocalKeyGenerator keeps generated owner keys in process memory. For development
// and tests.
type LocalKeyGenerator struct {
	logger   *zap.Logger
	keyStore map[string]*keyEntry
	mu       sync.RWMutex
}

func NewLocalKeyGenerator(logger *zap.Logger) *LocalKeyGenerator {
	return &LocalKeyGenerator{
		logger:   logger,
		keyStore: make(map[string]*keyEntry),
	}
}

func (l *LocalKeyGenerator) GenerateOwnerKey(ctx context.Context, keyName string, aliasName string) (*keyGenerator.GeneratedOwnerKey, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate owner key: %w", err)
	}

	keyId := fmt.Sprintf("local-key-%s", uuid.New().String())
	if err := l.LoadPrivateKey(keyId, privateKey, keyName, aliasName); err != nil {
		return nil, err
	}
	return l.GetOwnerKey(ctx, keyId)
}

func (l *LocalKeyGenerator) GetOwnerKey(_ context.Context, keyId string) (*keyGenerator.GeneratedOwnerKey, error) {
	entry, err := l.entry(keyId)
	if err != nil {
		return nil, err
	}
	return &keyGenerator.GeneratedOwnerKey{
		PublicKey: &entry.privateKey.PublicKey,
		Address:   entry.address,
		KeyId:     keyId,
	}, nil
}

func (l *LocalKeyGenerator) Signer(_ context.Context, keyId string) (ownerSigner.IOwnerSigner, error) {
	entry, err := l.entry(keyId)
	if err != nil {
		return nil, err
	}
	return inMemoryOwnerSigner.NewInMemoryOwnerSigner(entry.privateKey, l.logger), nil
}

// ExportPrivateKeyHex returns the raw key so it can be handed to an owner
func (l *LocalKeyGenerator) ExportPrivateKeyHex(keyId string) (string, error) {
	entry, err := l.entry(keyId)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(crypto.FromECDSA(entry.privateKey)), nil
}

// LoadPrivateKey adds an existing key under keyId
func (l *LocalKeyGenerator) LoadPrivateKey(keyId string, privateKey *ecdsa.PrivateKey, keyName string, aliasName string) error {
	if privateKey == nil {
		return fmt.Errorf("private key cannot be nil")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.keyStore[keyId]; exists {
		return fmt.Errorf("key with ID %s already exists", keyId)
	}

	entry := &keyEntry{
		privateKey: privateKey,
		keyName:    keyName,
		aliasName:  aliasName,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
	}
	l.keyStore[keyId] = entry

	l.logger.Info("Loaded owner key",
		zap.String("keyId", keyId),
		zap.String("keyName", keyName),
		zap.String("aliasName", aliasName),
		zap.String("address", entry.address.Hex()),
	)
	return nil
}

// GetKeyIdByAlias returns the id of the key registered under alias
func (l *LocalKeyGenerator) GetKeyIdByAlias(alias string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for keyId, entry := range l.keyStore {
		if entry.aliasName == alias {
			return keyId, true
		}
	}
	return "", false
}

func (l *LocalKeyGenerator) GetKeyCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.keyStore)
}

func (l *LocalKeyGenerator) entry(keyId string) (*keyEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	entry, ok := l.keyStore[keyId]
	if !ok {
		return nil, fmt.Errorf("key with ID %s not found", keyId)
	}
	return entry, nil
}
