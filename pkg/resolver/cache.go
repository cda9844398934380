package resolver

import (
	"context"
	"errors"
	"sync"

	"github.com/clemsos/safe-docs/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

type cacheEntry struct {
	account *types.Account
	err     error
}

// LookupHook is called on every cache lookup with whether it was served from the cache
type LookupHook func(hit bool)

// Cache memoizes another resolver. Entries live until the caller invalidates them;
// unavailable results are never stored.
type Cache struct {
	next   Resolver
	logger *zap.Logger
	hook   LookupHook

	mu      sync.RWMutex
	entries map[common.Address]cacheEntry
}

func NewCache(next Resolver, logger *zap.Logger, hook LookupHook) *Cache {
	return &Cache{
		next:    next,
		logger:  logger,
		hook:    hook,
		entries: make(map[common.Address]cacheEntry),
	}
}

func (c *Cache) ResolveAccount(ctx context.Context, address common.Address) (*types.Account, error) {
	c.mu.RLock()
	entry, ok := c.entries[address]
	c.mu.RUnlock()
	c.observe(ok)

	if ok {
		if entry.err != nil {
			return nil, entry.err
		}
		return entry.account.Copy(), nil
	}

	account, err := c.next.ResolveAccount(ctx, address)
	switch {
	case err == nil:
		entry = cacheEntry{account: account.Copy()}
	case errors.Is(err, ErrNotAnAccount):
		entry = cacheEntry{err: err}
	default:
		return nil, err
	}

	c.mu.Lock()
	c.entries[address] = entry
	c.mu.Unlock()

	c.logger.Sugar().Debugw("Cached account configuration",
		zap.String("address", address.Hex()),
		zap.Bool("isAccount", entry.err == nil),
	)
	return account, err
}

// Invalidate drops the entry for address, forcing the next lookup through
func (c *Cache) Invalidate(address common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, address)
}

// Purge drops every entry
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[common.Address]cacheEntry)
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) observe(hit bool) {
	if c.hook != nil {
		c.hook(hit)
	}
}
