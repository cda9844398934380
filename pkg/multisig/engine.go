// Package multisig composes hashing, aggregation, validation and publication into
// signing sessions for multi-owner accounts.
package multisig

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/clemsos/safe-docs/pkg/aggregator"
	"github.com/clemsos/safe-docs/pkg/config"
	"github.com/clemsos/safe-docs/pkg/hashing"
	"github.com/clemsos/safe-docs/pkg/metrics"
	"github.com/clemsos/safe-docs/pkg/persistence"
	"github.com/clemsos/safe-docs/pkg/resolver"
	"github.com/clemsos/safe-docs/pkg/signature"
	"github.com/clemsos/safe-docs/pkg/types"
	"github.com/clemsos/safe-docs/pkg/validator"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// ErrNoPersistence is returned by Publish when the engine was built without blob persistence
var ErrNoPersistence = errors.New("no blob persistence configured")

type Engine struct {
	chainID     *big.Int
	cache       *resolver.Cache
	aggregator  *aggregator.Aggregator
	validator   *validator.Validator
	persistence persistence.IBlobPersistence
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewEngine builds an engine around res. Account lookups are cached until
// InvalidateAccount or PurgeAccounts is called. store and m may be nil.
func NewEngine(
	cfg *config.EngineConfig,
	res resolver.Resolver,
	store persistence.IBlobPersistence,
	m *metrics.Metrics,
	logger *zap.Logger,
) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("engine config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	if res == nil {
		return nil, fmt.Errorf("account resolver is required")
	}

	cache := resolver.NewCache(res, logger, m.CacheHook())
	chainID := cfg.ChainID.BigInt()

	return &Engine{
		chainID:     chainID,
		cache:       cache,
		aggregator:  aggregator.NewAggregator(&aggregator.AggregatorConfig{MaxDepth: cfg.MaxDepth}, cache, logger),
		validator:   validator.NewValidator(&validator.ValidatorConfig{ChainID: chainID, MaxDepth: cfg.MaxDepth}, cache, logger),
		persistence: store,
		metrics:     m,
		logger:      logger,
	}, nil
}

// ChainID returns a copy of the chain id digests are bound to
func (e *Engine) ChainID() *big.Int {
	return new(big.Int).Set(e.chainID)
}

// ResolveAccount returns the configuration of address. A plain key is reported as
// types.ErrUnknownSigner.
func (e *Engine) ResolveAccount(ctx context.Context, address common.Address) (*types.Account, error) {
	account, err := e.cache.ResolveAccount(ctx, address)
	if err != nil {
		if errors.Is(err, resolver.ErrNotAnAccount) {
			return nil, fmt.Errorf("%w: %s: %w", types.ErrUnknownSigner, address.Hex(), err)
		}
		return nil, err
	}
	return account, nil
}

func (e *Engine) InvalidateAccount(address common.Address) {
	e.cache.Invalidate(address)
}

func (e *Engine) PurgeAccounts() {
	e.cache.Purge()
}

// Digest computes the digest account approves for action on this engine's chain
func (e *Engine) Digest(account *types.Account, action *types.Action) (types.Digest, error) {
	domain, err := hashing.DomainFor(account, e.chainID)
	if err != nil {
		return types.Digest{}, err
	}
	return hashing.DigestOf(action, domain)
}

// NestedDigest computes the digest nested account approves when requester asks it to
// co-sign parentDigest
func (e *Engine) NestedDigest(nested *types.Account, requester common.Address, parentDigest types.Digest) (types.Digest, error) {
	domain, err := hashing.DomainFor(nested, e.chainID)
	if err != nil {
		return types.Digest{}, err
	}
	return hashing.NestedDigest(requester, domain, parentDigest)
}

// NewSession resolves account and opens a session collecting approvals of action
func (e *Engine) NewSession(ctx context.Context, address common.Address, action *types.Action) (*Session, error) {
	account, err := e.ResolveAccount(ctx, address)
	if err != nil {
		return nil, err
	}
	digest, err := e.Digest(account, action)
	if err != nil {
		return nil, err
	}
	return e.NewSessionForDigest(account, digest)
}

// NewSessionForDigest opens a session for a digest computed elsewhere
func (e *Engine) NewSessionForDigest(account *types.Account, digest types.Digest) (*Session, error) {
	if err := account.Validate(); err != nil {
		return nil, err
	}
	s := newSession(e, account.Copy(), digest, nil)
	e.logger.Sugar().Debugw("Opened signing session",
		zap.String("session", s.ID()),
		zap.String("account", account.Address.Hex()),
		zap.String("digest", digest.Hex()),
	)
	return s, nil
}

// Validate checks blob against account and digest. It returns nil when the blob is
// accepted and a *validator.RejectionError otherwise.
func (e *Engine) Validate(ctx context.Context, account *types.Account, digest types.Digest, blob *signature.Blob) error {
	err := e.validator.Validate(ctx, account, digest, blob)
	if err == nil {
		e.metrics.ObserveValidation("accepted")
		return nil
	}
	reason, _ := validator.ReasonOf(err)
	e.metrics.ObserveValidation(reason.String())
	return err
}

// Publish stores a final blob. Partial blobs are refused with types.ErrPartialBlob.
func (e *Engine) Publish(account common.Address, digest types.Digest, blob *signature.Blob) (*persistence.BlobRecord, error) {
	if e.persistence == nil {
		return nil, ErrNoPersistence
	}
	record, err := persistence.NewBlobRecord(account, digest, blob)
	if err != nil {
		return nil, err
	}
	if err := e.persistence.SaveBlob(record); err != nil {
		return nil, fmt.Errorf("failed to publish blob for %s: %w", account.Hex(), err)
	}
	e.logger.Sugar().Infow("Published signature blob",
		zap.String("account", account.Hex()),
		zap.String("digest", digest.Hex()),
		zap.Int("signers", len(record.Signers)),
	)
	return record, nil
}

// Finalize aggregates a complete blob from s, validates it and publishes it
func (e *Engine) Finalize(ctx context.Context, s *Session) (*persistence.BlobRecord, error) {
	if s.engine != e {
		return nil, fmt.Errorf("session %s belongs to another engine", s.ID())
	}
	if s.parent != nil {
		return nil, fmt.Errorf("session %s is nested; finalize its root session", s.ID())
	}

	blob, err := s.Aggregate(ctx, false)
	if err != nil {
		return nil, err
	}
	if err := e.Validate(ctx, s.account, s.digest, blob); err != nil {
		return nil, err
	}
	return e.Publish(s.account.Address, s.digest, blob)
}

// Fetch loads a published blob and re-validates it against the current account
// configuration. A missing blob returns (nil, nil).
func (e *Engine) Fetch(ctx context.Context, address common.Address, digest types.Digest) (*signature.Blob, error) {
	if e.persistence == nil {
		return nil, ErrNoPersistence
	}
	record, err := e.persistence.LoadBlob(address, digest)
	if err != nil {
		return nil, fmt.Errorf("failed to load blob for %s: %w", address.Hex(), err)
	}
	if record == nil {
		return nil, nil
	}

	account, err := e.ResolveAccount(ctx, address)
	if err != nil {
		return nil, err
	}
	blob := record.Blob()
	if err := e.Validate(ctx, account, digest, blob); err != nil {
		return nil, err
	}
	return blob, nil
}

// List returns the blobs published for address, oldest first. Records that no longer
// validate against the account's current configuration are skipped.
func (e *Engine) List(ctx context.Context, address common.Address) ([]*persistence.BlobRecord, error) {
	if e.persistence == nil {
		return nil, ErrNoPersistence
	}
	records, err := e.persistence.ListBlobs(address)
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs for %s: %w", address.Hex(), err)
	}
	if len(records) == 0 {
		return records, nil
	}

	account, err := e.ResolveAccount(ctx, address)
	if err != nil {
		return nil, err
	}
	valid := make([]*persistence.BlobRecord, 0, len(records))
	for _, record := range records {
		if err := e.Validate(ctx, account, record.Digest, record.Blob()); err != nil {
			e.logger.Sugar().Warnw("Skipping stale blob",
				zap.String("account", address.Hex()),
				zap.String("digest", record.Digest.Hex()),
				zap.Error(err),
			)
			continue
		}
		valid = append(valid, record)
	}
	return valid, nil
}
