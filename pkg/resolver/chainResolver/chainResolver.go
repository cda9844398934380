package chainResolver

import (
	"context"
	"math/big"
	"strings"

	"github.com/clemsos/safe-docs/pkg/resolver"
	"github.com/clemsos/safe-docs/pkg/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const accountABI = `[
	{"type":"function","name":"getOwners","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address[]"}]},
	{"type":"function","name":"getThreshold","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"VERSION","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]}
]`

const (
	methodGetOwners    = "getOwners"
	methodGetThreshold = "getThreshold"
	methodVersion      = "VERSION"
)

// ContractReader is the read-only slice of an RPC client. *ethclient.Client satisfies it.
type ContractReader interface {
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type ChainResolverConfig struct {
	// BlockNumber pins every read to one block. Nil reads the latest state.
	BlockNumber *big.Int

	// RequestsPerSecond limits RPC calls. Zero or less means unlimited.
	RequestsPerSecond float64
}

// ChainResolver reads account configurations from the deployed account contracts
type ChainResolver struct {
	client  ContractReader
	config  *ChainResolverConfig
	logger  *zap.Logger
	abi     abi.ABI
	limiter *rate.Limiter
}

func NewChainResolver(client ContractReader, cfg *ChainResolverConfig, logger *zap.Logger) (*ChainResolver, error) {
	if client == nil {
		return nil, errors.New("contract reader cannot be nil")
	}
	if cfg == nil {
		cfg = &ChainResolverConfig{}
	}

	parsed, err := abi.JSON(strings.NewReader(accountABI))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse account ABI")
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &ChainResolver{
		client:  client,
		config:  cfg,
		logger:  logger,
		abi:     parsed,
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

func (cr *ChainResolver) ResolveAccount(ctx context.Context, address common.Address) (*types.Account, error) {
	if err := cr.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrapf(types.ErrConfigurationUnavailable, "rate limiter: %v", err)
	}
	code, err := cr.client.CodeAt(ctx, address, cr.config.BlockNumber)
	if err != nil {
		return nil, errors.Wrapf(types.ErrConfigurationUnavailable, "failed to get code at %s: %v", address.Hex(), err)
	}
	if len(code) == 0 {
		return nil, errors.Wrapf(resolver.ErrNotAnAccount, "no code at %s", address.Hex())
	}

	var owners []common.Address
	if err := cr.call(ctx, address, methodGetOwners, &owners); err != nil {
		return nil, err
	}
	var threshold *big.Int
	if err := cr.call(ctx, address, methodGetThreshold, &threshold); err != nil {
		return nil, err
	}
	var version string
	if err := cr.call(ctx, address, methodVersion, &version); err != nil {
		return nil, err
	}

	if threshold == nil || !threshold.IsUint64() {
		return nil, errors.Wrapf(types.ErrConfigurationUnavailable, "account %s returned threshold %v", address.Hex(), threshold)
	}

	account := &types.Account{
		Address:   address,
		Owners:    owners,
		Threshold: threshold.Uint64(),
		Version:   version,
	}
	if err := account.Validate(); err != nil {
		return nil, errors.Wrapf(types.ErrConfigurationUnavailable, "account %s returned an unusable configuration: %v", address.Hex(), err)
	}

	cr.logger.Sugar().Debugw("Resolved account configuration",
		zap.String("address", address.Hex()),
		zap.Int("owners", len(owners)),
		zap.Uint64("threshold", account.Threshold),
		zap.String("version", version),
	)
	return account, nil
}

func (cr *ChainResolver) call(ctx context.Context, address common.Address, method string, out interface{}) error {
	data, err := cr.abi.Pack(method)
	if err != nil {
		return errors.Wrapf(err, "failed to pack %s", method)
	}
	if err := cr.limiter.Wait(ctx); err != nil {
		return errors.Wrapf(types.ErrConfigurationUnavailable, "rate limiter: %v", err)
	}

	result, err := cr.client.CallContract(ctx, ethereum.CallMsg{To: &address, Data: data}, cr.config.BlockNumber)
	if err != nil {
		return errors.Wrapf(types.ErrConfigurationUnavailable, "failed to call %s on %s: %v", method, address.Hex(), err)
	}
	if err := cr.abi.UnpackIntoInterface(out, method, result); err != nil {
		return errors.Wrapf(types.ErrConfigurationUnavailable, "failed to decode %s from %s: %v", method, address.Hex(), err)
	}
	return nil
}
