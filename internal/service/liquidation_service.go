package service

import (
	"context"
	"encoding/binary"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"marginfi-liquidator/internal/cache"
	"marginfi-liquidator/internal/comms"
	"marginfi-liquidator/internal/journal"
	"marginfi-liquidator/internal/observability"
	"marginfi-liquidator/internal/solana"
)

// Health cache layout inside a marginfi account: aggregate asset and
// liability values in quote units, maintained by the program.
const (
	healthCacheAssetsOffset      = 2216
	healthCacheLiabilitiesOffset = 2224
)

// liquidationFeeVaultAuthSeed derives a group's liquidation fee vault
// authority.
var liquidationFeeVaultAuthSeed = []byte("liquidation_fee_vault_auth")

// LiquidationService periodically sweeps the cached margin accounts for
// positions below the maintenance health threshold and journals them.
type LiquidationService struct {
	cache     *cache.Cache
	client    comms.CommsClient
	store     journal.Store
	programID solana.Pubkey
	interval  time.Duration
	threshold float64
	logger    zerolog.Logger
}

// NewLiquidationService creates the decision worker.
func NewLiquidationService(c *cache.Cache, client comms.CommsClient, store journal.Store, programID solana.Pubkey, interval time.Duration, threshold float64) *LiquidationService {
	return &LiquidationService{
		cache:     c,
		client:    client,
		store:     store,
		programID: programID,
		interval:  interval,
		threshold: threshold,
		logger:    observability.NewLogger("liquidation_service"),
	}
}

// Run sweeps the cache on a fixed interval until the context is cancelled.
func (s *LiquidationService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.evaluate(ctx); err != nil {
				return err
			}
		}
	}
}

func (s *LiquidationService) evaluate(ctx context.Context) error {
	accounts := s.cache.MarginfiAccounts.SnapshotEntries()
	clock := s.cache.GetClock()

	liquidatable := 0
	for _, account := range accounts {
		health, ok := accountHealth(account.Data)
		if !ok {
			continue
		}
		if health >= s.threshold {
			continue
		}
		liquidatable++

		group, _ := comms.GroupKey(account.Data)
		feeVaultAuth, _, err := solana.FindProgramAddress(
			[][]byte{liquidationFeeVaultAuthSeed, group.Bytes()},
			s.programID,
		)
		if err != nil {
			s.logger.Warn().Err(err).Str("group", group.String()).Msg("Deriving fee vault authority failed")
		}

		s.logger.Info().
			Str("account", account.Address.String()).
			Str("group", group.String()).
			Float64("health", health).
			Str("fee_vault_authority", feeVaultAuth.String()).
			Msg("Liquidatable account")

		entry := &journal.Entry{
			Account:      account.Address,
			Group:        group,
			Slot:         clock.Slot,
			Health:       health,
			Liquidatable: true,
			ObservedAt:   time.Now().UTC(),
		}
		if err := s.store.Record(ctx, entry); err != nil && !errors.Is(err, journal.ErrDuplicateKey) {
			return err
		}
	}

	observability.RecordEvaluation(len(accounts), liquidatable)
	return nil
}

// accountHealth computes maintenance health from the account's health
// cache: (assets - liabilities) / assets, in [-1, 1]. The second return
// value is false when the data is too short to carry a health cache.
func accountHealth(data []byte) (float64, bool) {
	if len(data) < healthCacheLiabilitiesOffset+8 {
		return 0, false
	}
	assets := binary.LittleEndian.Uint64(data[healthCacheAssetsOffset : healthCacheAssetsOffset+8])
	liabilities := binary.LittleEndian.Uint64(data[healthCacheLiabilitiesOffset : healthCacheLiabilitiesOffset+8])

	if assets == 0 {
		if liabilities > 0 {
			return -1, true
		}
		return 1, true
	}

	health := (float64(assets) - float64(liabilities)) / float64(assets)
	if health < -1 {
		health = -1
	}
	return health, true
}
