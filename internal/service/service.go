// Package service wires the cache, fetcher and workers into the running
// liquidator process.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"marginfi-liquidator/internal/cache"
	"marginfi-liquidator/internal/comms"
	"marginfi-liquidator/internal/config"
	"marginfi-liquidator/internal/journal"
	"marginfi-liquidator/internal/observability"
	"marginfi-liquidator/internal/solana"
)

// ServiceManager owns process startup and the supervising loop. Lifecycle:
// construct (clock fetch + cache init), restore-or-bootstrap, spawn the
// three workers, then supervise until cancelled.
type ServiceManager struct {
	cfg       config.Config
	programID solana.Pubkey

	cache  *cache.Cache
	loader *cache.Loader
	client comms.CommsClient

	subscriber *GeyserSubscriber
	processor  *GeyserProcessor
	liquidator *LiquidationService

	// fatal reports an unrecoverable worker failure. Overridable in tests;
	// the default logs and terminates the process.
	fatal func(worker string, err error)

	logger zerolog.Logger
}

// NewServiceManager fetches the current clock, initializes the cache and
// constructs every worker. No worker runs until Start.
func NewServiceManager(ctx context.Context, cfg config.Config, client comms.CommsClient, ws solana.WSClient, store journal.Store) (*ServiceManager, error) {
	logger := observability.NewLogger("service")

	programID, err := solana.ParsePubkey(cfg.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("program id: %w", err)
	}

	logger.Info().Msg("Fetching the Solana clock")
	clock, err := FetchClock(ctx, client)
	if err != nil {
		return nil, err
	}

	logger.Info().Uint64("slot", clock.Slot).Msg("Initializing the cache")
	c := cache.New(clock)
	loader := cache.NewLoader(client, programID, c)

	queue := NewQueue[GeyserMessage]()
	subscriber := NewGeyserSubscriber(ws, programID, queue)
	processor := NewGeyserProcessor(queue, c)
	liquidator := NewLiquidationService(c, client, store, programID, cfg.LiquidationInterval, cfg.HealthThreshold)

	m := &ServiceManager{
		cfg:        cfg,
		programID:  programID,
		cache:      c,
		loader:     loader,
		client:     client,
		subscriber: subscriber,
		processor:  processor,
		liquidator: liquidator,
		logger:     logger,
	}
	m.fatal = func(worker string, err error) {
		// Fail fast: a dead pipeline feeding the decision service is worse
		// than no process at all.
		m.logger.Fatal().Err(err).Str("worker", worker).Msg("Worker failed")
	}
	return m, nil
}

// Cache exposes the shared cache handle.
func (m *ServiceManager) Cache() *cache.Cache {
	return m.cache
}

// Start brings the cache current (snapshot restore or full bootstrap),
// spawns the workers and runs the supervising loop until ctx is cancelled.
func (m *ServiceManager) Start(ctx context.Context) error {
	m.logger.Info().Msg("Starting services")

	if err := m.prepareCache(ctx); err != nil {
		return err
	}

	m.spawn(ctx, "geyser_processor", m.processor.Run)
	m.spawn(ctx, "geyser_subscriber", m.subscriber.Run)
	m.spawn(ctx, "liquidation_service", m.liquidator.Run)

	m.logger.Info().Msg("Entering the main loop")
	m.superviseLoop(ctx)
	m.logger.Info().Msg("The main loop stopped")
	return nil
}

// prepareCache restores the snapshot when possible and falls back to a full
// bootstrap otherwise. The cache is fully populated when this returns.
func (m *ServiceManager) prepareCache(ctx context.Context) error {
	restored, err := cache.RestoreSnapshot(m.cache, m.cfg.SnapshotPath)
	if err != nil {
		m.logger.Warn().Err(err).Str("path", m.cfg.SnapshotPath).Msg("Failed to restore cache snapshot")
		restored = false
	}

	if restored {
		m.logger.Info().Str("path", m.cfg.SnapshotPath).Msg("Cache snapshot restored")
		// The snapshot covers only banks and marginfi accounts; oracles
		// must come from the ledger.
		return m.loader.LoadAuxiliaryAccounts(ctx)
	}

	m.logger.Info().Msg("Inflating the cache")
	if err := m.loader.LoadCache(ctx); err != nil {
		return err
	}
	if err := cache.PersistSnapshot(m.cache, m.cfg.SnapshotPath); err != nil {
		m.logger.Warn().Err(err).Str("path", m.cfg.SnapshotPath).Msg("Failed to persist initial cache snapshot")
	}
	return nil
}

func (m *ServiceManager) spawn(ctx context.Context, name string, run func(context.Context) error) {
	go func() {
		if err := run(ctx); err != nil {
			m.fatal(name, err)
		}
	}()
}

func (m *ServiceManager) superviseLoop(ctx context.Context) {
	lastSnapshot := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if time.Since(lastSnapshot) >= m.cfg.SnapshotInterval {
			if err := cache.PersistSnapshot(m.cache, m.cfg.SnapshotPath); err != nil {
				m.logger.Warn().Err(err).Str("path", m.cfg.SnapshotPath).Msg("Failed to persist cache snapshot")
			}
			lastSnapshot = time.Now()
		}

		m.logStats()

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.cfg.StatsInterval):
		}
	}
}

func (m *ServiceManager) logStats() {
	clock := m.cache.GetClock()
	depth := m.processor.QueueDepth()

	m.logger.Info().
		Uint64("latest_slot", clock.Slot).
		Int("geyser_queue_depth", depth).
		Msg("Stats")

	observability.UpdateClockSlot(clock.Slot)
	observability.UpdateGeyserQueueDepth(depth)
	observability.UpdateCacheSizes(m.cache.MarginfiAccounts.Len(), m.cache.Banks.Len())
}

// FetchClock reads and decodes the clock sysvar.
func FetchClock(ctx context.Context, client comms.CommsClient) (solana.Clock, error) {
	account, err := client.GetAccount(ctx, solana.ClockSysvar)
	if err != nil {
		return solana.Clock{}, fmt.Errorf("fetch clock: %w", err)
	}
	clock, err := solana.ParseClock(account.Data)
	if err != nil {
		return solana.Clock{}, fmt.Errorf("fetch clock: %w", err)
	}
	return clock, nil
}
