package awsKmsOwnerSigner

import (
	"context"
	"crypto/ecdsa"
	"encoding/asn1"
	"fmt"
	"math/big"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmsTypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/clemsos/safe-docs/pkg/signature"
	"github.com/clemsos/safe-docs/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// KMSClient is the subset of the KMS API the signer needs. *kms.Client satisfies it.
type KMSClient interface {
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
}

var (
	secp256k1N     = crypto.S256().Params().N
	secp256k1HalfN = new(big.Int).Rsh(secp256k1N, 1)
)

// AWSKMSOwnerSigner signs with an ECC_SECG_P256K1 key held in AWS KMS
type AWSKMSOwnerSigner struct {
	logger    *zap.Logger
	kmsClient KMSClient
	keyId     string
	publicKey *ecdsa.PublicKey
	address   common.Address
}

func NewAWSKMSOwnerSignerFromConfig(ctx context.Context, awsCfg aws.Config, keyId string, logger *zap.Logger) (*AWSKMSOwnerSigner, error) {
	return NewAWSKMSOwnerSigner(ctx, kms.NewFromConfig(awsCfg), keyId, logger)
}

// NewAWSKMSOwnerSigner fetches the key's public half once so every signature can be
// checked against it.
func NewAWSKMSOwnerSigner(ctx context.Context, client KMSClient, keyId string, logger *zap.Logger) (*AWSKMSOwnerSigner, error) {
	if keyId == "" {
		return nil, errors.New("KMS key id cannot be empty")
	}

	out, err := client.GetPublicKey(ctx, &kms.GetPublicKeyInput{KeyId: aws.String(keyId)})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get public key for key %s", keyId)
	}
	pub, err := ParsePublicKey(out.PublicKey)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse public key for key %s", keyId)
	}

	return &AWSKMSOwnerSigner{
		logger:    logger,
		kmsClient: client,
		keyId:     keyId,
		publicKey: pub,
		address:   crypto.PubkeyToAddress(*pub),
	}, nil
}

func (a *AWSKMSOwnerSigner) Address() common.Address {
	return a.address
}

func (a *AWSKMSOwnerSigner) SignDigest(ctx context.Context, digest types.Digest, method signature.Method) (*signature.DirectSignature, error) {
	if !method.Valid() {
		return nil, fmt.Errorf("unsupported signing %s", method)
	}
	hash := method.SigningHash(digest)

	out, err := a.kmsClient.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(a.keyId),
		Message:          hash.Bytes(),
		SigningAlgorithm: kmsTypes.SigningAlgorithmSpecEcdsaSha256,
		MessageType:      kmsTypes.MessageTypeDigest,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to sign with key %s", a.keyId)
	}

	sig, err := a.recoverableSignature(hash, out.Signature)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to convert signature from key %s", a.keyId)
	}

	a.logger.Sugar().Debugw("Signed digest with KMS",
		zap.String("owner", a.address.Hex()),
		zap.String("keyId", a.keyId),
		zap.String("method", method.String()),
	)
	return signature.NewDirectSignature(sig, method)
}

// recoverableSignature turns a DER signature into r||s||v with low S, picking the
// recovery id that yields the key's own public key.
func (a *AWSKMSOwnerSigner) recoverableSignature(hash common.Hash, der []byte) ([]byte, error) {
	var parsed asn1EcSig
	if _, err := asn1.Unmarshal(der, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse DER signature: %w", err)
	}

	r := new(big.Int).SetBytes(parsed.R.Bytes)
	s := new(big.Int).SetBytes(parsed.S.Bytes)
	if s.Cmp(secp256k1HalfN) > 0 {
		s = new(big.Int).Sub(secp256k1N, s)
	}

	sig := make([]byte, 65)
	r.FillBytes(sig[0:32])
	s.FillBytes(sig[32:64])

	expected := crypto.FromECDSAPub(a.publicKey)
	for recoveryId := byte(0); recoveryId < 2; recoveryId++ {
		sig[64] = recoveryId
		recovered, err := crypto.Ecrecover(hash.Bytes(), sig)
		if err != nil {
			a.logger.Debug("Ecrecover failed",
				zap.Uint8("recoveryId", recoveryId),
				zap.Error(err))
			continue
		}
		if string(recovered) == string(expected) {
			return sig, nil
		}
	}
	return nil, fmt.Errorf("could not determine valid recovery id")
}

type asn1EcSig struct {
	R asn1.RawValue
	S asn1.RawValue
}

type asn1EcPublicKey struct {
	EcPublicKeyInfo asn1EcPublicKeyInfo
	PublicKey       asn1.BitString
}

type asn1EcPublicKeyInfo struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.ObjectIdentifier
}

// ParsePublicKey parses the DER SubjectPublicKeyInfo returned by KMS
func ParsePublicKey(der []byte) (*ecdsa.PublicKey, error) {
	var info asn1EcPublicKey
	if _, err := asn1.Unmarshal(der, &info); err != nil {
		return nil, fmt.Errorf("failed to parse ASN.1 public key: %w", err)
	}
	return crypto.UnmarshalPubkey(info.PublicKey.Bytes)
}
