package multisig

import (
	"context"
	"fmt"
	"sync"

	"github.com/clemsos/safe-docs/pkg/aggregator"
	"github.com/clemsos/safe-docs/pkg/metrics"
	"github.com/clemsos/safe-docs/pkg/ownerSigner"
	"github.com/clemsos/safe-docs/pkg/signature"
	"github.com/clemsos/safe-docs/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session collects approvals of one digest by one account. Re-signing by the same
// owner replaces the earlier contribution. Safe for concurrent use.
type Session struct {
	id      string
	engine  *Engine
	account *types.Account
	digest  types.Digest
	parent  *Session

	mu       sync.Mutex
	set      *signature.Set
	children map[common.Address]*Session
}

func newSession(e *Engine, account *types.Account, digest types.Digest, parent *Session) *Session {
	return &Session{
		id:       uuid.New().String(),
		engine:   e,
		account:  account,
		digest:   digest,
		parent:   parent,
		set:      signature.NewSet(),
		children: make(map[common.Address]*Session),
	}
}

func (s *Session) ID() string {
	return s.id
}

// Account returns a copy of the account being signed for
func (s *Session) Account() *types.Account {
	return s.account.Copy()
}

// Digest is what the session's owners sign. For a nested session it is the nested
// digest, not the root one.
func (s *Session) Digest() types.Digest {
	return s.digest
}

// AddSignature recovers the signer of sig and records it if the signer is an owner
func (s *Session) AddSignature(sig *signature.DirectSignature) (common.Address, error) {
	if sig == nil {
		return common.Address{}, fmt.Errorf("%w: signature is nil", types.ErrMalformedSignature)
	}
	c, err := signature.NewDirectContribution(sig, s.digest)
	if err != nil {
		return common.Address{}, err
	}
	if !s.account.IsOwner(c.Signer) {
		return common.Address{}, fmt.Errorf("%w: %s is not an owner of %s",
			types.ErrUnknownSigner, c.Signer.Hex(), s.account.Address.Hex())
	}

	s.put(c)
	s.engine.metrics.ObserveSignature(sig.Method.String())
	s.engine.logger.Sugar().Debugw("Added signature",
		zap.String("session", s.id),
		zap.String("signer", c.Signer.Hex()),
		zap.String("method", sig.Method.String()),
	)
	return c.Signer, nil
}

// Sign asks signer for a signature and records it. The signature must recover to
// the signer's address.
func (s *Session) Sign(ctx context.Context, signer ownerSigner.IOwnerSigner, method signature.Method) error {
	owner := signer.Address()
	if !s.account.IsOwner(owner) {
		return fmt.Errorf("%w: %s is not an owner of %s", types.ErrUnknownSigner, owner.Hex(), s.account.Address.Hex())
	}

	sig, err := signer.SignDigest(ctx, s.digest, method)
	if err != nil {
		return fmt.Errorf("owner %s failed to sign: %w", owner.Hex(), err)
	}
	recovered, err := sig.Recover(s.digest)
	if err != nil {
		return err
	}
	if recovered != owner {
		return fmt.Errorf("%w: signature from %s recovers to %s", types.ErrMalformedSignature, owner.Hex(), recovered.Hex())
	}

	_, err = s.AddSignature(sig)
	return err
}

// AddNestedSignatures records an already aggregated blob from a nested account owner
func (s *Session) AddNestedSignatures(owner common.Address, sigs []byte) error {
	if !s.account.IsOwner(owner) {
		return fmt.Errorf("%w: %s is not an owner of %s", types.ErrUnknownSigner, owner.Hex(), s.account.Address.Hex())
	}
	if len(sigs) == 0 {
		return fmt.Errorf("%w: nested signatures from %s are empty", types.ErrMalformedSignature, owner.Hex())
	}
	buf := make([]byte, len(sigs))
	copy(buf, sigs)
	s.put(signature.NewNestedContribution(owner, buf))
	s.engine.metrics.ObserveSignature("nested")
	return nil
}

// NestedSession opens a session for owner, itself an account, approving this
// session's digest. Its owners sign the nested digest bound to this account.
// The child is not attached until AddNested is called.
func (s *Session) NestedSession(ctx context.Context, owner common.Address) (*Session, error) {
	if !s.account.IsOwner(owner) {
		return nil, fmt.Errorf("%w: %s is not an owner of %s", types.ErrUnknownSigner, owner.Hex(), s.account.Address.Hex())
	}
	for p := s; p != nil; p = p.parent {
		if p.account.Address == owner {
			return nil, fmt.Errorf("%w: account %s already appears above %s",
				types.ErrCyclicOwnership, owner.Hex(), s.account.Address.Hex())
		}
	}

	nested, err := s.engine.ResolveAccount(ctx, owner)
	if err != nil {
		return nil, err
	}
	digest, err := s.engine.NestedDigest(nested, s.account.Address, s.digest)
	if err != nil {
		return nil, err
	}

	child := newSession(s.engine, nested, digest, s)
	s.engine.logger.Sugar().Debugw("Opened nested signing session",
		zap.String("session", child.id),
		zap.String("parent", s.id),
		zap.String("account", owner.Hex()),
		zap.String("digest", digest.Hex()),
	)
	return child, nil
}

// AddNested attaches a session opened by NestedSession. The child's contributions
// are read at aggregation time, so signatures added to it later still count.
func (s *Session) AddNested(child *Session) error {
	if child == nil || child.parent != s {
		return fmt.Errorf("session is not a nested session of %s", s.id)
	}

	owner := child.account.Address
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set.Remove(owner)
	s.children[owner] = child
	s.engine.metrics.ObserveSignature("nested")
	return nil
}

// Contributions returns a snapshot of every contribution, attached nested sessions
// included as pending nested contributions.
func (s *Session) Contributions() []*signature.Contribution {
	return s.snapshot().All()
}

// Aggregate builds a blob from the current contributions. With partial set, an
// insufficient blob is returned marked Partial instead of failing.
func (s *Session) Aggregate(ctx context.Context, partial bool) (*signature.Blob, error) {
	blob, err := s.engine.aggregator.Aggregate(ctx, s.account, s.snapshot(), aggregator.Options{AllowPartial: partial})
	switch {
	case err != nil:
		s.engine.metrics.ObserveAggregation(metrics.OutcomeFailed)
	case blob.Partial:
		s.engine.metrics.ObserveAggregation(metrics.OutcomePartial)
	default:
		s.engine.metrics.ObserveAggregation(metrics.OutcomeComplete)
	}
	return blob, err
}

func (s *Session) put(c *signature.Contribution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.children, c.Signer)
	s.set.Add(c)
}

// snapshot copies the set and freezes attached children. Locks are taken parent
// before child, and a child never locks its parent.
func (s *Session) snapshot() *signature.Set {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.set.Clone()
	for owner, child := range s.children {
		set.Add(signature.NewPendingNestedContribution(owner, child.snapshot()))
	}
	return set
}
