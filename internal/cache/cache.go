// Package cache holds the in-memory view of marginfi program state shared
// by every worker: the ledger clock plus the account collections.
package cache

import (
	"sync"

	"marginfi-liquidator/internal/solana"
)

// CachedAccount is one account's cached state.
type CachedAccount struct {
	Address solana.Pubkey
	// Slot at which the data was captured.
	Slot uint64
	Data []byte
}

func (a CachedAccount) clone() CachedAccount {
	out := a
	out.Data = make([]byte, len(a.Data))
	copy(out.Data, a.Data)
	return out
}

// AccountsCache is a concurrency-safe collection of accounts keyed by
// address. Writers replace whole entries; readers get copies. No interior
// reference ever crosses the cache boundary.
type AccountsCache struct {
	mu       sync.RWMutex
	accounts map[solana.Pubkey]CachedAccount
}

// NewAccountsCache creates an empty collection.
func NewAccountsCache() *AccountsCache {
	return &AccountsCache{
		accounts: make(map[solana.Pubkey]CachedAccount),
	}
}

// Upsert inserts or overwrites the entry for the account's address.
func (c *AccountsCache) Upsert(account CachedAccount) {
	entry := account.clone()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accounts[account.Address] = entry
}

// Get returns a copy of the entry for addr.
func (c *AccountsCache) Get(addr solana.Pubkey) (CachedAccount, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.accounts[addr]
	if !ok {
		return CachedAccount{}, false
	}
	return entry.clone(), true
}

// Len returns the number of cached entries.
func (c *AccountsCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.accounts)
}

// SnapshotEntries returns a consistent point-in-time copy of the whole
// collection.
func (c *AccountsCache) SnapshotEntries() []CachedAccount {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]CachedAccount, 0, len(c.accounts))
	for _, entry := range c.accounts {
		out = append(out, entry.clone())
	}
	return out
}

// RestoreFromSnapshot atomically replaces the whole collection.
func (c *AccountsCache) RestoreFromSnapshot(entries []CachedAccount) {
	accounts := make(map[solana.Pubkey]CachedAccount, len(entries))
	for _, entry := range entries {
		accounts[entry.Address] = entry.clone()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accounts = accounts
}

// Cache is the single writable owner of shared state: the clock and the
// account collections. MarginfiAccounts and Banks are covered by snapshots;
// Oracles is an auxiliary collection reloaded from the ledger instead.
type Cache struct {
	clockMu sync.RWMutex
	clock   solana.Clock

	MarginfiAccounts *AccountsCache
	Banks            *AccountsCache
	Oracles          *AccountsCache
}

// New creates a Cache seeded with the given clock.
func New(clock solana.Clock) *Cache {
	return &Cache{
		clock:            clock,
		MarginfiAccounts: NewAccountsCache(),
		Banks:            NewAccountsCache(),
		Oracles:          NewAccountsCache(),
	}
}

// GetClock returns the current clock value.
func (c *Cache) GetClock() solana.Clock {
	c.clockMu.RLock()
	defer c.clockMu.RUnlock()
	return c.clock
}

// UpdateClock replaces the clock wholesale.
func (c *Cache) UpdateClock(clock solana.Clock) {
	c.clockMu.Lock()
	defer c.clockMu.Unlock()
	c.clock = clock
}
