package validator

import (
	"context"
	"errors"
	"math/big"

	"github.com/clemsos/safe-docs/pkg/aggregator"
	"github.com/clemsos/safe-docs/pkg/hashing"
	"github.com/clemsos/safe-docs/pkg/resolver"
	"github.com/clemsos/safe-docs/pkg/signature"
	"github.com/clemsos/safe-docs/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

type ValidatorConfig struct {
	// ChainID is used to derive the hashing domain of nested accounts
	ChainID  *big.Int
	MaxDepth int
}

// Validator decides whether a blob satisfies an account for a digest. Nested account
// configurations come from the resolver; with a resolver.Snapshot the result depends
// only on its inputs.
type Validator struct {
	resolver resolver.Resolver
	chainID  *big.Int
	maxDepth int
	logger   *zap.Logger
}

func NewValidator(cfg *ValidatorConfig, res resolver.Resolver, logger *zap.Logger) *Validator {
	v := &Validator{
		resolver: res,
		chainID:  new(big.Int),
		maxDepth: aggregator.DefaultMaxDepth,
		logger:   logger,
	}
	if cfg != nil {
		if cfg.ChainID != nil {
			v.chainID = new(big.Int).Set(cfg.ChainID)
		}
		if cfg.MaxDepth > 0 {
			v.maxDepth = cfg.MaxDepth
		}
	}
	return v
}

// Validate returns nil when blob is accepted and a *RejectionError otherwise.
// Partial blobs are always rejected.
func (v *Validator) Validate(ctx context.Context, account *types.Account, digest types.Digest, blob *signature.Blob) error {
	var address common.Address
	if account != nil {
		address = account.Address
	}
	if blob == nil {
		return rejectf(ReasonMalformed, address, StateStart, "blob is nil")
	}
	if blob.Partial {
		return rejectf(ReasonPartialBlob, address, StateStart, "blob is still collecting signatures")
	}
	return v.ValidateSignatures(ctx, account, digest, blob.Signatures)
}

// ValidateSignatures validates raw encoded signatures
func (v *Validator) ValidateSignatures(ctx context.Context, account *types.Account, digest types.Digest, sigs []byte) error {
	if err := account.Validate(); err != nil {
		var address common.Address
		if account != nil {
			address = account.Address
		}
		return reject(ReasonConfigurationUnavailable, address, StateStart, err)
	}

	chain := map[common.Address]struct{}{account.Address: {}}
	err := v.validate(ctx, account, digest, sigs, chain, 0)
	if err != nil {
		v.logger.Sugar().Debugw("Rejected signatures",
			zap.String("account", account.Address.Hex()),
			zap.String("digest", digest.Hex()),
			zap.Error(err),
		)
	}
	return err
}

func (v *Validator) validate(
	ctx context.Context,
	account *types.Account,
	digest types.Digest,
	sigs []byte,
	chain map[common.Address]struct{},
	depth int,
) error {
	contributions, err := signature.DecodeAll(sigs, digest)
	if err != nil {
		return reject(ReasonMalformed, account.Address, StateStart, err)
	}

	var valid uint64
	var previous common.Address
	for i, c := range contributions {
		if !account.IsOwner(c.Signer) {
			return rejectf(ReasonUnknownSigner, account.Address, StateRecordsParsed,
				"record %d signer %s", i, c.Signer.Hex())
		}
		if i > 0 && types.CompareAddresses(c.Signer, previous) <= 0 {
			return rejectf(ReasonOutOfOrderOrDuplicate, account.Address, StateRecordsParsed,
				"record %d signer %s does not follow %s", i, c.Signer.Hex(), previous.Hex())
		}
		previous = c.Signer

		switch p := c.Payload.(type) {
		case *signature.DirectSignature:
			valid++
		case *signature.NestedSignature:
			if err := v.validateNested(ctx, account, c.Signer, digest, p.Signatures, chain, depth); err != nil {
				return err
			}
			valid++
		default:
			return rejectf(ReasonMalformed, account.Address, StateRecordsParsed,
				"record %d has unsupported payload %T", i, c.Payload)
		}
	}

	if valid < account.Threshold {
		return rejectf(ReasonBelowThreshold, account.Address, StateThresholdChecked,
			"%d of %d required signatures", valid, account.Threshold)
	}
	return nil
}

func (v *Validator) validateNested(
	ctx context.Context,
	parent *types.Account,
	owner common.Address,
	digest types.Digest,
	sigs []byte,
	chain map[common.Address]struct{},
	depth int,
) error {
	if _, ok := chain[owner]; ok {
		return rejectf(ReasonCyclicOwnership, parent.Address, StateRecordsParsed,
			"account %s already appears in the ownership chain", owner.Hex())
	}
	if depth+1 > v.maxDepth {
		return rejectf(ReasonOwnershipTooDeep, parent.Address, StateRecordsParsed,
			"account %s is nested deeper than %d", owner.Hex(), v.maxDepth)
	}

	nested, err := v.resolver.ResolveAccount(ctx, owner)
	switch {
	case errors.Is(err, resolver.ErrNotAnAccount):
		return reject(ReasonUnknownSigner, parent.Address, StateRecordsParsed, err)
	case err != nil:
		return reject(ReasonConfigurationUnavailable, parent.Address, StateRecordsParsed, err)
	}
	if err := nested.Validate(); err != nil {
		return reject(ReasonConfigurationUnavailable, owner, StateRecordsParsed, err)
	}

	domain, err := hashing.DomainFor(nested, v.chainID)
	if err != nil {
		return reject(ReasonConfigurationUnavailable, owner, StateRecordsParsed, err)
	}
	nestedDigest, err := hashing.NestedDigest(parent.Address, domain, digest)
	if err != nil {
		return reject(ReasonConfigurationUnavailable, owner, StateRecordsParsed, err)
	}

	chain[owner] = struct{}{}
	defer delete(chain, owner)

	return v.validate(ctx, nested, nestedDigest, sigs, chain, depth+1)
}
