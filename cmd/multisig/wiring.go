package main

import (
	"context"
	"fmt"

	"github.com/clemsos/safe-docs/internal/aws"
	"github.com/clemsos/safe-docs/pkg/config"
	"github.com/clemsos/safe-docs/pkg/logger"
	"github.com/clemsos/safe-docs/pkg/multisig"
	"github.com/clemsos/safe-docs/pkg/ownerSigner"
	"github.com/clemsos/safe-docs/pkg/ownerSigner/awsKmsOwnerSigner"
	"github.com/clemsos/safe-docs/pkg/ownerSigner/inMemoryOwnerSigner"
	"github.com/clemsos/safe-docs/pkg/persistence"
	"github.com/clemsos/safe-docs/pkg/persistence/badger"
	"github.com/clemsos/safe-docs/pkg/persistence/memory"
	"github.com/clemsos/safe-docs/pkg/persistence/redis"
	"github.com/clemsos/safe-docs/pkg/resolver"
	"github.com/clemsos/safe-docs/pkg/resolver/chainResolver"
	"github.com/clemsos/safe-docs/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func newLogger(c *cli.Context) (*zap.Logger, error) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return l, nil
}

func parseEngineConfig(c *cli.Context) (*config.EngineConfig, error) {
	cfg := &config.EngineConfig{
		ChainID:     config.ChainId(c.Uint64("chain-id")),
		MaxDepth:    c.Int("max-depth"),
		RpcUrl:      c.String("rpc-url"),
		ResolverRPS: c.Float64("resolver-rps"),
		Verbose:     c.Bool("verbose"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newResolver reads configurations from chain, or serves the single account
// described by --owners when it is set.
func newResolver(ctx context.Context, c *cli.Context, cfg *config.EngineConfig, l *zap.Logger) (resolver.Resolver, func(), error) {
	if owners := c.StringSlice("owners"); len(owners) > 0 {
		account, err := offlineAccount(c.String("account"), owners, c.Uint64("threshold"), c.String("account-version"))
		if err != nil {
			return nil, nil, err
		}
		snapshot, err := resolver.NewSnapshot(account)
		if err != nil {
			return nil, nil, err
		}
		return snapshot, func() {}, nil
	}

	if cfg.RpcUrl == "" {
		return nil, nil, fmt.Errorf("either --rpc-url or --owners is required")
	}
	client, err := ethclient.DialContext(ctx, cfg.RpcUrl)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", cfg.RpcUrl, err)
	}
	cr, err := chainResolver.NewChainResolver(client, &chainResolver.ChainResolverConfig{
		RequestsPerSecond: cfg.ResolverRPS,
	}, l)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return cr, client.Close, nil
}

func offlineAccount(address string, owners []string, threshold uint64, version string) (*types.Account, error) {
	addr, err := config.ParseAddress(address)
	if err != nil {
		return nil, err
	}
	account := &types.Account{
		Address:   addr,
		Owners:    make([]common.Address, 0, len(owners)),
		Threshold: threshold,
		Version:   version,
	}
	for _, o := range owners {
		owner, err := config.ParseAddress(o)
		if err != nil {
			return nil, fmt.Errorf("invalid owner: %w", err)
		}
		account.Owners = append(account.Owners, owner)
	}
	if err := account.Validate(); err != nil {
		return nil, err
	}
	return account, nil
}

func newPersistence(c *cli.Context, l *zap.Logger) (persistence.IBlobPersistence, error) {
	cfg := &config.PersistenceConfig{
		Type:           config.PersistenceType(c.String("persistence-type")),
		BadgerPath:     c.String("badger-path"),
		RedisAddress:   c.String("redis-address"),
		RedisPassword:  c.String("redis-password"),
		RedisDB:        c.Int("redis-db"),
		RedisKeyPrefix: c.String("redis-key-prefix"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid persistence configuration: %w", err)
	}

	switch cfg.Type {
	case config.PersistenceType_Badger:
		return badger.NewBadgerPersistence(cfg.BadgerPath, l)
	case config.PersistenceType_Redis:
		return redis.NewRedisPersistence(&redis.RedisConfig{
			Address:   cfg.RedisAddress,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
		}, l)
	default:
		return memory.NewMemoryPersistence(l), nil
	}
}

// newEngine wires an engine for one command. The returned cleanup closes
// everything newEngine opened.
func newEngine(c *cli.Context, l *zap.Logger, withPersistence bool) (*multisig.Engine, func(), error) {
	cfg, err := parseEngineConfig(c)
	if err != nil {
		return nil, nil, err
	}

	res, closeResolver, err := newResolver(c.Context, c, cfg, l)
	if err != nil {
		return nil, nil, err
	}

	var store persistence.IBlobPersistence
	if withPersistence {
		store, err = newPersistence(c, l)
		if err != nil {
			closeResolver()
			return nil, nil, err
		}
	}

	engine, err := multisig.NewEngine(cfg, res, store, nil, l)
	if err != nil {
		closeResolver()
		if store != nil {
			_ = store.Close()
		}
		return nil, nil, err
	}

	cleanup := func() {
		if store != nil {
			if err := store.Close(); err != nil {
				l.Sugar().Warnw("Failed to close persistence", "error", err)
			}
		}
		closeResolver()
	}
	return engine, cleanup, nil
}

func newOwnerSigner(c *cli.Context, l *zap.Logger) (ownerSigner.IOwnerSigner, error) {
	cfg := &config.OwnerSignerConfig{
		PrivateKey: c.String("private-key"),
		KMSKeyId:   c.String("kms-key-id"),
		AWSRegion:  c.String("aws-region"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid signer configuration: %w", err)
	}

	if cfg.PrivateKey != "" {
		return inMemoryOwnerSigner.NewInMemoryOwnerSignerFromHex(cfg.PrivateKey, l)
	}

	awsCfg, err := aws.LoadAWSConfig(c.Context, cfg.AWSRegion)
	if err != nil {
		return nil, err
	}
	if c.Bool("verbose") {
		if identity, err := aws.GetCallerIdentity(c.Context, awsCfg); err == nil && identity.Arn != nil {
			l.Sugar().Debugw("Using AWS identity", "arn", *identity.Arn)
		}
	}
	return awsKmsOwnerSigner.NewAWSKMSOwnerSignerFromConfig(c.Context, awsCfg, cfg.KMSKeyId, l)
}
