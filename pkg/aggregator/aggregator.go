package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/clemsos/safe-docs/pkg/resolver"
	"github.com/clemsos/safe-docs/pkg/signature"
	"github.com/clemsos/safe-docs/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// DefaultMaxDepth bounds how many nested accounts one ownership chain may cross
const DefaultMaxDepth = 8

type AggregatorConfig struct {
	MaxDepth int
}

// Options control a single aggregation
type Options struct {
	// AllowPartial returns an in-progress blob instead of ErrInsufficientSignatures
	AllowPartial bool
}

// Aggregator turns collected contributions into canonical blobs. It resolves nested
// accounts through the resolver and never persists or transmits anything.
type Aggregator struct {
	resolver resolver.Resolver
	maxDepth int
	logger   *zap.Logger
}

func NewAggregator(cfg *AggregatorConfig, res resolver.Resolver, logger *zap.Logger) *Aggregator {
	maxDepth := DefaultMaxDepth
	if cfg != nil && cfg.MaxDepth > 0 {
		maxDepth = cfg.MaxDepth
	}
	return &Aggregator{
		resolver: res,
		maxDepth: maxDepth,
		logger:   logger,
	}
}

// Aggregate builds the blob for account from set
func (a *Aggregator) Aggregate(ctx context.Context, account *types.Account, set *signature.Set, opts Options) (*signature.Blob, error) {
	if set == nil {
		set = signature.NewSet()
	}
	return a.AggregateContributions(ctx, account, set.All(), opts)
}

// AggregateContributions is Aggregate over a plain list. Two contributions from the
// same signer are an error rather than being deduplicated.
func (a *Aggregator) AggregateContributions(ctx context.Context, account *types.Account, contributions []*signature.Contribution, opts Options) (*signature.Blob, error) {
	if err := account.Validate(); err != nil {
		return nil, err
	}
	chain := map[common.Address]struct{}{account.Address: {}}
	return a.aggregate(ctx, account, contributions, opts, chain, 0)
}

func (a *Aggregator) aggregate(
	ctx context.Context,
	account *types.Account,
	contributions []*signature.Contribution,
	opts Options,
	chain map[common.Address]struct{},
	depth int,
) (*signature.Blob, error) {
	selected := make([]*signature.Contribution, 0, len(contributions))
	for _, c := range contributions {
		if c == nil || !account.IsOwner(c.Signer) {
			continue
		}
		selected = append(selected, c)
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return types.CompareAddresses(selected[i].Signer, selected[j].Signer) < 0
	})
	for i := 1; i < len(selected); i++ {
		if selected[i].Signer == selected[i-1].Signer {
			return nil, fmt.Errorf("%w: %s signed twice for account %s",
				types.ErrDuplicateSigner, selected[i].Signer.Hex(), account.Address.Hex())
		}
	}

	encoded := make([]*signature.Contribution, 0, len(selected))
	signers := make([]common.Address, 0, len(selected))
	satisfied := 0
	childPartial := false

	for _, c := range selected {
		switch p := c.Payload.(type) {
		case *signature.DirectSignature:
			encoded = append(encoded, c)
			signers = append(signers, c.Signer)
			satisfied++
		case *signature.NestedSignature:
			if p.Set == nil {
				if len(p.Signatures) == 0 {
					continue
				}
				encoded = append(encoded, c)
				signers = append(signers, c.Signer)
				satisfied++
				continue
			}

			child, err := a.aggregateNested(ctx, account, c.Signer, p.Set, opts, chain, depth)
			if err != nil {
				return nil, err
			}
			if len(child.Signatures) == 0 {
				continue
			}
			encoded = append(encoded, signature.NewNestedContribution(c.Signer, child.Signatures))
			signers = append(signers, c.Signer)
			if child.Partial {
				childPartial = true
			} else {
				satisfied++
			}
		default:
			return nil, fmt.Errorf("contribution from %s has unsupported payload %T", c.Signer.Hex(), c.Payload)
		}
	}

	if uint64(satisfied) < account.Threshold && !opts.AllowPartial {
		return nil, fmt.Errorf("%w: account %s has %d of %d required signatures",
			types.ErrInsufficientSignatures, account.Address.Hex(), satisfied, account.Threshold)
	}

	sigs, err := signature.Encode(encoded...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode signatures for account %s: %w", account.Address.Hex(), err)
	}

	blob := &signature.Blob{
		Signatures: sigs,
		Signers:    signers,
		Partial:    childPartial || uint64(satisfied) < account.Threshold,
	}
	a.logger.Sugar().Debugw("Aggregated signatures",
		zap.String("account", account.Address.Hex()),
		zap.Int("records", len(encoded)),
		zap.Int("satisfied", satisfied),
		zap.Uint64("threshold", account.Threshold),
		zap.Bool("partial", blob.Partial),
		zap.Int("depth", depth),
	)
	return blob, nil
}

func (a *Aggregator) aggregateNested(
	ctx context.Context,
	parent *types.Account,
	owner common.Address,
	set *signature.Set,
	opts Options,
	chain map[common.Address]struct{},
	depth int,
) (*signature.Blob, error) {
	if _, ok := chain[owner]; ok {
		return nil, fmt.Errorf("%w: account %s already appears above %s",
			types.ErrCyclicOwnership, owner.Hex(), parent.Address.Hex())
	}
	if depth+1 > a.maxDepth {
		return nil, fmt.Errorf("%w: account %s is nested deeper than %d",
			types.ErrOwnershipTooDeep, owner.Hex(), a.maxDepth)
	}

	nested, err := a.resolver.ResolveAccount(ctx, owner)
	if err != nil {
		if errors.Is(err, resolver.ErrNotAnAccount) {
			return nil, fmt.Errorf("%w: nested owner %s of %s: %w", types.ErrUnknownSigner, owner.Hex(), parent.Address.Hex(), err)
		}
		if errors.Is(err, types.ErrConfigurationUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", types.ErrConfigurationUnavailable, err)
	}
	if err := nested.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrConfigurationUnavailable, err)
	}

	chain[owner] = struct{}{}
	defer delete(chain, owner)

	return a.aggregate(ctx, nested, set.All(), opts, chain, depth+1)
}
