package localKeyGenerator

import (
	"context"
	"strings"
	"testing"

	"github.com/clemsos/safe-docs/internal/keyGenerator"
	"github.com/clemsos/safe-docs/pkg/signature"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var _ keyGenerator.IKeyGenerator = (*LocalKeyGenerator)(nil)

func Test_LocalKeyGenerator(t *testing.T) {
	ctx := context.Background()
	generator := NewLocalKeyGenerator(zaptest.NewLogger(t))

	t.Run("Should generate owner keys with unique ids", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 5; i++ {
			key, err := generator.GenerateOwnerKey(ctx, "owner", "owner-alias")
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(key.KeyId, "local-key-"))
			assert.Equal(t, crypto.PubkeyToAddress(*key.PublicKey), key.Address)
			assert.False(t, seen[key.KeyId])
			seen[key.KeyId] = true

			pubHex, err := key.GetPublicKeyHex()
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(pubHex, "0x04"))
		}
		assert.Equal(t, 5, generator.GetKeyCount())
	})

	t.Run("Should sign as the generated owner", func(t *testing.T) {
		key, err := generator.GenerateOwnerKey(ctx, "signer", "signer-alias")
		require.NoError(t, err)

		signer, err := generator.Signer(ctx, key.KeyId)
		require.NoError(t, err)
		assert.Equal(t, key.Address, signer.Address())

		digest := crypto.Keccak256Hash([]byte("payload"))
		sig, err := signer.SignDigest(ctx, digest, signature.MethodTypedData)
		require.NoError(t, err)
		recovered, err := sig.Recover(digest)
		require.NoError(t, err)
		assert.Equal(t, key.Address, recovered)

		keyId, ok := generator.GetKeyIdByAlias("signer-alias")
		require.True(t, ok)
		assert.Equal(t, key.KeyId, keyId)
	})

	t.Run("Should export and reload a key", func(t *testing.T) {
		key, err := generator.GenerateOwnerKey(ctx, "export", "export-alias")
		require.NoError(t, err)
		hexKey, err := generator.ExportPrivateKeyHex(key.KeyId)
		require.NoError(t, err)

		privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
		require.NoError(t, err)
		require.Error(t, generator.LoadPrivateKey(key.KeyId, privateKey, "dup", "dup"))
		require.NoError(t, generator.LoadPrivateKey("imported", privateKey, "import", "import"))

		imported, err := generator.GetOwnerKey(ctx, "imported")
		require.NoError(t, err)
		assert.Equal(t, key.Address, imported.Address)
	})

	t.Run("Should fail for unknown keys", func(t *testing.T) {
		_, err := generator.GetOwnerKey(ctx, "missing")
		require.Error(t, err)
		_, err = generator.Signer(ctx, "missing")
		require.Error(t, err)
		_, err = generator.ExportPrivateKeyHex("missing")
		require.Error(t, err)
		require.Error(t, generator.LoadPrivateKey("nil", nil, "", ""))
	})
}
