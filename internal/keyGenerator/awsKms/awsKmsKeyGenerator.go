package awsKms

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmsTypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/clemsos/safe-docs/internal/keyGenerator"
	"github.com/clemsos/safe-docs/pkg/config"
	"github.com/clemsos/safe-docs/pkg/ownerSigner"
	"github.com/clemsos/safe-docs/pkg/ownerSigner/awsKmsOwnerSigner"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// KMSKeyClient is the subset of the KMS API used to provision owner keys. *kms.Client satisfies it.
type KMSKeyClient interface {
	awsKmsOwnerSigner.KMSClient
	CreateKey(ctx context.Context, params *kms.CreateKeyInput, optFns ...func(*kms.Options)) (*kms.CreateKeyOutput, error)
	CreateAlias(ctx context.Context, params *kms.CreateAliasInput, optFns ...func(*kms.Options)) (*kms.CreateAliasOutput, error)
}

type AWSKMSKeyGenerator struct {
	logger    *zap.Logger
	kmsClient KMSKeyClient
	awsRegion string
	chainName config.ChainName
}

func NewAWSKMSKeyGeneratorFromConfig(awsCfg aws.Config, chainName config.ChainName, logger *zap.Logger) *AWSKMSKeyGenerator {
	return NewAWSKMSKeyGenerator(kms.NewFromConfig(awsCfg), awsCfg.Region, chainName, logger)
}

func NewAWSKMSKeyGenerator(client KMSKeyClient, awsRegion string, chainName config.ChainName, logger *zap.Logger) *AWSKMSKeyGenerator {
	return &AWSKMSKeyGenerator{
		logger:    logger,
		kmsClient: client,
		awsRegion: awsRegion,
		chainName: chainName,
	}
}

// GenerateOwnerKey creates an ECC_SECG_P256K1 signing key and an alias for it
func (a *AWSKMSKeyGenerator) GenerateOwnerKey(ctx context.Context, keyName string, aliasName string) (*keyGenerator.GeneratedOwnerKey, error) {
	keyRes, err := a.createOwnerSigningKey(ctx, keyName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create owner key %s in region %s", keyName, a.awsRegion)
	}
	keyId := aws.ToString(keyRes.KeyMetadata.KeyId)

	if aliasName != "" {
		if err := a.createKeyAlias(ctx, keyId, aliasName); err != nil {
			return nil, errors.Wrapf(err, "failed to create alias %s for key %s in region %s", aliasName, keyId, a.awsRegion)
		}
	}

	key, err := a.GetOwnerKey(ctx, keyId)
	if err != nil {
		return nil, err
	}
	a.logger.Sugar().Infow("Created KMS owner key",
		zap.String("keyId", keyId),
		zap.String("alias", aliasName),
		zap.String("address", key.Address.Hex()),
	)
	return key, nil
}

func (a *AWSKMSKeyGenerator) GetOwnerKey(ctx context.Context, keyId string) (*keyGenerator.GeneratedOwnerKey, error) {
	out, err := a.kmsClient.GetPublicKey(ctx, &kms.GetPublicKeyInput{KeyId: aws.String(keyId)})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get public key for key %s in region %s", keyId, a.awsRegion)
	}
	pub, err := awsKmsOwnerSigner.ParsePublicKey(out.PublicKey)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse public key for key %s in region %s", keyId, a.awsRegion)
	}
	return &keyGenerator.GeneratedOwnerKey{
		PublicKey: pub,
		Address:   crypto.PubkeyToAddress(*pub),
		KeyId:     keyId,
	}, nil
}

func (a *AWSKMSKeyGenerator) Signer(ctx context.Context, keyId string) (ownerSigner.IOwnerSigner, error) {
	return awsKmsOwnerSigner.NewAWSKMSOwnerSigner(ctx, a.kmsClient, keyId, a.logger)
}

func (a *AWSKMSKeyGenerator) createOwnerSigningKey(ctx context.Context, keyName string) (*kms.CreateKeyOutput, error) {
	input := &kms.CreateKeyInput{
		KeyUsage:    kmsTypes.KeyUsageTypeSignVerify,
		KeySpec:     kmsTypes.KeySpecEccSecgP256k1,
		Description: aws.String(fmt.Sprintf("Multisig account owner key - %s", keyName)),
		Tags: []kmsTypes.Tag{
			{TagKey: aws.String("Name"), TagValue: aws.String(keyName)},
			{TagKey: aws.String("Environment"), TagValue: aws.String(string(a.chainName))},
			{TagKey: aws.String("Purpose"), TagValue: aws.String("multisig-owner")},
			{TagKey: aws.String("Curve"), TagValue: aws.String("secp256k1")},
		},
	}

	result, err := a.kmsClient.CreateKey(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create KMS key: %w", err)
	}
	if result.KeyMetadata == nil || result.KeyMetadata.KeyId == nil {
		return nil, fmt.Errorf("KMS returned no key metadata")
	}
	return result, nil
}

func (a *AWSKMSKeyGenerator) createKeyAlias(ctx context.Context, keyId, aliasName string) error {
	_, err := a.kmsClient.CreateAlias(ctx, &kms.CreateAliasInput{
		AliasName:   aws.String(fmt.Sprintf("alias/%s", aliasName)),
		TargetKeyId: aws.String(keyId),
	})
	if err != nil {
		return fmt.Errorf("failed to create key alias: %w", err)
	}
	return nil
}
