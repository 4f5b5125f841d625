package cache

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"marginfi-liquidator/internal/comms"
	"marginfi-liquidator/internal/observability"
	"marginfi-liquidator/internal/solana"
)

// Loader populates the cache from the remote ledger. LoadCache is the full
// bootstrap path; LoadAuxiliaryAccounts is the supplemental path run after a
// snapshot restore, covering the account kinds the snapshot format omits.
type Loader struct {
	client    comms.CommsClient
	programID solana.Pubkey
	cache     *Cache
	logger    zerolog.Logger
}

// NewLoader creates a loader bound to the cache.
func NewLoader(client comms.CommsClient, programID solana.Pubkey, c *Cache) *Loader {
	return &Loader{
		client:    client,
		programID: programID,
		cache:     c,
		logger:    observability.NewLogger("loader"),
	}
}

// LoadCache runs the full bootstrap: every program account is fetched and
// the cached collections are populated from scratch. Group accounts are
// used by the fetcher as partition keys only and are not cached.
func (l *Loader) LoadCache(ctx context.Context) error {
	accounts, err := l.client.GetProgramAccounts(ctx, l.programID)
	if err != nil {
		return fmt.Errorf("load cache: %w", err)
	}

	clockSlot := l.cache.GetClock().Slot
	var groups, banks, marginfiAccounts int
	for _, entry := range accounts {
		kind, ok := comms.KindForData(entry.Account.Data)
		if !ok {
			l.logger.Warn().Str("address", entry.Pubkey.String()).Msg("Skipping account of unknown kind")
			continue
		}

		cached := CachedAccount{
			Address: entry.Pubkey,
			Slot:    captureSlot(entry.Account, clockSlot),
			Data:    entry.Account.Data,
		}

		switch kind {
		case comms.KindBank:
			l.cache.Banks.Upsert(cached)
			banks++
		case comms.KindMarginfiAccount:
			l.cache.MarginfiAccounts.Upsert(cached)
			marginfiAccounts++
		case comms.KindGroup:
			groups++
		}
	}

	l.logger.Info().
		Int("groups", groups).
		Int("banks", banks).
		Int("marginfi_accounts", marginfiAccounts).
		Msg("Cache loaded from ledger")
	observability.UpdateCacheSizes(l.cache.MarginfiAccounts.Len(), l.cache.Banks.Len())

	return l.LoadAuxiliaryAccounts(ctx)
}

// LoadAuxiliaryAccounts fetches the accounts the snapshot format does not
// cover: the oracle accounts referenced by the cached banks. Callers that
// restore a snapshot must invoke this before serving decisions.
func (l *Loader) LoadAuxiliaryAccounts(ctx context.Context) error {
	seen := make(map[solana.Pubkey]struct{})
	var oracleKeys []solana.Pubkey
	for _, bank := range l.cache.Banks.SnapshotEntries() {
		oracle, ok := comms.OracleKey(bank.Data)
		if !ok {
			continue
		}
		if _, dup := seen[oracle]; dup {
			continue
		}
		seen[oracle] = struct{}{}
		oracleKeys = append(oracleKeys, oracle)
	}

	if len(oracleKeys) == 0 {
		l.logger.Info().Msg("No auxiliary oracle accounts to load")
		return nil
	}

	accounts, err := l.client.GetAccounts(ctx, oracleKeys)
	if err != nil {
		return fmt.Errorf("load auxiliary accounts: %w", err)
	}

	clockSlot := l.cache.GetClock().Slot
	for _, entry := range accounts {
		l.cache.Oracles.Upsert(CachedAccount{
			Address: entry.Pubkey,
			Slot:    captureSlot(entry.Account, clockSlot),
			Data:    entry.Account.Data,
		})
	}

	l.logger.Info().
		Int("requested", len(oracleKeys)).
		Int("loaded", len(accounts)).
		Msg("Auxiliary oracle accounts loaded")
	return nil
}

// captureSlot prefers the slot reported by the RPC context and falls back
// to the cached clock slot for calls that report none.
func captureSlot(account solana.Account, clockSlot uint64) uint64 {
	if account.Slot != 0 {
		return account.Slot
	}
	return clockSlot
}
