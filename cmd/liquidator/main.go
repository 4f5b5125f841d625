package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marginfi-liquidator/internal/comms"
	"marginfi-liquidator/internal/config"
	"marginfi-liquidator/internal/journal"
	journalmem "marginfi-liquidator/internal/journal/memory"
	journalpg "marginfi-liquidator/internal/journal/postgres"
	"marginfi-liquidator/internal/observability"
	"marginfi-liquidator/internal/service"
	"marginfi-liquidator/internal/solana"
)

func main() {
	defaults := config.Default()

	rpcEndpoint := flag.String("rpc-endpoint", defaults.RPCEndpoint, "Solana RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", defaults.WSEndpoint, "Solana WebSocket endpoint")
	programID := flag.String("program-id", defaults.ProgramID, "Marginfi program address")
	snapshotPath := flag.String("snapshot-path", defaults.SnapshotPath, "Cache snapshot file path")
	snapshotInterval := flag.Duration("snapshot-interval", defaults.SnapshotInterval, "Minimum time between periodic snapshots")
	statsInterval := flag.Duration("stats-interval", defaults.StatsInterval, "Supervising loop poll interval")
	liquidationInterval := flag.Duration("liquidation-interval", defaults.LiquidationInterval, "Decision sweep interval")
	healthThreshold := flag.Float64("health-threshold", defaults.HealthThreshold, "Maintenance health liquidation threshold")
	postgresDSN := flag.String("postgres-dsn", defaults.PostgresDSN, "PostgreSQL DSN for the liquidation journal (empty for in-memory)")
	metricsAddr := flag.String("metrics-addr", defaults.MetricsAddr, "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	cfg := config.Config{
		RPCEndpoint:         *rpcEndpoint,
		WSEndpoint:          *wsEndpoint,
		ProgramID:           *programID,
		SnapshotPath:        *snapshotPath,
		SnapshotInterval:    *snapshotInterval,
		StatsInterval:       *statsInterval,
		LiquidationInterval: *liquidationInterval,
		HealthThreshold:     *healthThreshold,
		PostgresDSN:         *postgresDSN,
		MetricsAddr:         *metricsAddr,
	}

	logger := observability.NewLogger("liquidator")

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("Starting metrics server")
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("Metrics server error")
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("Initiating graceful shutdown")
		cancel()

		select {
		case sig := <-sigCh:
			logger.Info().Str("signal", sig.String()).Msg("Forcing immediate shutdown")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Error().Msg("Graceful shutdown timed out, forcing exit")
			os.Exit(1)
		}
	}()

	rpc := solana.NewHTTPClient(cfg.RPCEndpoint)
	client := comms.NewRPCCommsClient(rpc)

	ws, err := solana.NewWSClient(ctx, cfg.WSEndpoint, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("Connecting WebSocket failed")
	}
	defer ws.Close()

	var store journal.Store = journalmem.NewStore()
	if cfg.PostgresDSN != "" {
		pool, err := journalpg.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("Connecting Postgres failed")
		}
		defer pool.Close()
		if err := journalpg.Migrate(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("Migrating journal schema failed")
		}
		store = journalpg.NewStore(pool)
		logger.Info().Msg("Using Postgres liquidation journal")
	}

	manager, err := service.NewServiceManager(ctx, cfg, client, ws, store)
	if err != nil {
		logger.Fatal().Err(err).Msg("Initializing services failed")
	}

	if err := manager.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Service failed")
	}
}
