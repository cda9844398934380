package awsKmsOwnerSigner

import (
	"context"
	"crypto/ecdsa"
	"encoding/asn1"
	"errors"
	"math/big"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/clemsos/safe-docs/pkg/ownerSigner"
	"github.com/clemsos/safe-docs/pkg/signature"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var _ ownerSigner.IOwnerSigner = (*AWSKMSOwnerSigner)(nil)

var (
	oidEcPublicKey = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidSecp256k1   = asn1.ObjectIdentifier{1, 3, 132, 0, 10}
)

// fakeKMS signs with a local key and answers in the DER encodings KMS uses
type fakeKMS struct {
	t        *testing.T
	key      *ecdsa.PrivateKey
	highS    bool
	signErr  error
	lastSign *kms.SignInput
}

func (f *fakeKMS) GetPublicKey(_ context.Context, params *kms.GetPublicKeyInput, _ ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error) {
	pub := crypto.FromECDSAPub(&f.key.PublicKey)
	der, err := asn1.Marshal(asn1EcPublicKey{
		EcPublicKeyInfo: asn1EcPublicKeyInfo{Algorithm: oidEcPublicKey, Parameters: oidSecp256k1},
		PublicKey:       asn1.BitString{Bytes: pub, BitLength: len(pub) * 8},
	})
	require.NoError(f.t, err)
	return &kms.GetPublicKeyOutput{KeyId: params.KeyId, PublicKey: der}, nil
}

func (f *fakeKMS) Sign(_ context.Context, params *kms.SignInput, _ ...func(*kms.Options)) (*kms.SignOutput, error) {
	f.lastSign = params
	if f.signErr != nil {
		return nil, f.signErr
	}
	sig, err := crypto.Sign(params.Message, f.key)
	require.NoError(f.t, err)

	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if f.highS {
		s = new(big.Int).Sub(secp256k1N, s)
	}
	der, err := asn1.Marshal(struct{ R, S *big.Int }{r, s})
	require.NoError(f.t, err)
	return &kms.SignOutput{KeyId: params.KeyId, Signature: der}, nil
}

func TestAWSKMSOwnerSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	digest := crypto.Keccak256Hash([]byte("approve"))

	for _, highS := range []bool{false, true} {
		fake := &fakeKMS{t: t, key: key, highS: highS}
		signer, err := NewAWSKMSOwnerSigner(context.Background(), fake, "alias/owner", zaptest.NewLogger(t))
		require.NoError(t, err)
		require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), signer.Address())

		for _, method := range []signature.Method{signature.MethodEthSign, signature.MethodTypedData} {
			sig, err := signer.SignDigest(context.Background(), digest, method)
			require.NoError(t, err)

			assert.Equal(t, method.SigningHash(digest).Bytes(), fake.lastSign.Message)
			assert.Equal(t, "alias/owner", aws.ToString(fake.lastSign.KeyId))
			assert.LessOrEqual(t, new(big.Int).SetBytes(sig.Signature[32:64]).Cmp(secp256k1HalfN), 0)

			recovered, err := sig.Recover(digest)
			require.NoError(t, err)
			assert.Equal(t, signer.Address(), recovered)
		}
	}
}

func TestAWSKMSOwnerSigner_Errors(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	_, err = NewAWSKMSOwnerSigner(context.Background(), &fakeKMS{t: t, key: key}, "", zaptest.NewLogger(t))
	require.Error(t, err)

	fake := &fakeKMS{t: t, key: key, signErr: errors.New("AccessDeniedException")}
	signer, err := NewAWSKMSOwnerSigner(context.Background(), fake, "key", zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = signer.SignDigest(context.Background(), crypto.Keccak256Hash([]byte("x")), signature.MethodEthSign)
	require.ErrorContains(t, err, "AccessDeniedException")

	_, err = signer.SignDigest(context.Background(), crypto.Keccak256Hash([]byte("x")), signature.MethodUnknown)
	require.Error(t, err)
}
