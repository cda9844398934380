package inMemoryOwnerSigner

import (
	"context"
	"testing"

	"github.com/clemsos/safe-docs/pkg/ownerSigner"
	"github.com/clemsos/safe-docs/pkg/signature"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// well-known anvil/hardhat account 0
const (
	testPrivateKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress    = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

var _ ownerSigner.IOwnerSigner = (*InMemoryOwnerSigner)(nil)

func TestInMemoryOwnerSigner(t *testing.T) {
	signer, err := NewInMemoryOwnerSignerFromHex(testPrivateKey, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testAddress), signer.Address())

	digest := crypto.Keccak256Hash([]byte("approve"))
	for _, method := range []signature.Method{signature.MethodEthSign, signature.MethodTypedData} {
		t.Run(method.String(), func(t *testing.T) {
			sig, err := signer.SignDigest(context.Background(), digest, method)
			require.NoError(t, err)
			assert.Equal(t, method, sig.Method)

			recovered, err := sig.Recover(digest)
			require.NoError(t, err)
			assert.Equal(t, signer.Address(), recovered)
		})
	}

	_, err = signer.SignDigest(context.Background(), digest, signature.MethodUnknown)
	require.Error(t, err)
}

func TestNewInMemoryOwnerSignerFromHex_Invalid(t *testing.T) {
	_, err := NewInMemoryOwnerSignerFromHex("", zaptest.NewLogger(t))
	require.Error(t, err)

	_, err = NewInMemoryOwnerSignerFromHex("0x1234", zaptest.NewLogger(t))
	require.Error(t, err)
}
