// Package config holds runtime configuration for the liquidator.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// MarginfiProgramID is the mainnet marginfi v2 program.
const MarginfiProgramID = "MFv2hWf31Z9kbCa1snEPYctwafyhdvnV7FZnsebVacA"

// Config holds all application configuration. Defaults come from
// environment variables (LIQ_*) and are overridable by flags in main.
type Config struct {
	// RPCEndpoint is the Solana JSON-RPC HTTP endpoint.
	RPCEndpoint string
	// WSEndpoint is the Solana WebSocket endpoint.
	WSEndpoint string
	// ProgramID is the marginfi program address (base58).
	ProgramID string

	// SnapshotPath is where the cache snapshot file lives.
	SnapshotPath string
	// SnapshotInterval is the minimum time between periodic snapshots.
	SnapshotInterval time.Duration
	// StatsInterval is the supervising loop's poll interval.
	StatsInterval time.Duration

	// LiquidationInterval is the decision sweep interval.
	LiquidationInterval time.Duration
	// HealthThreshold is the maintenance health below which an account is
	// considered liquidatable.
	HealthThreshold float64

	// PostgresDSN enables the Postgres-backed journal when non-empty.
	PostgresDSN string

	// MetricsAddr is the Prometheus/health HTTP listen address; empty
	// disables the server.
	MetricsAddr string
}

// Default returns the configuration with environment fallbacks applied.
func Default() Config {
	return Config{
		RPCEndpoint:         envOrDefault("LIQ_RPC_ENDPOINT", "https://api.mainnet-beta.solana.com"),
		WSEndpoint:          envOrDefault("LIQ_WS_ENDPOINT", "wss://api.mainnet-beta.solana.com"),
		ProgramID:           envOrDefault("LIQ_PROGRAM_ID", MarginfiProgramID),
		SnapshotPath:        envOrDefault("LIQ_SNAPSHOT_PATH", "cache_snapshot.bin"),
		SnapshotInterval:    envDurationOrDefault("LIQ_SNAPSHOT_INTERVAL", 5*time.Minute),
		StatsInterval:       envDurationOrDefault("LIQ_STATS_INTERVAL", 10*time.Second),
		LiquidationInterval: envDurationOrDefault("LIQ_LIQUIDATION_INTERVAL", 5*time.Second),
		HealthThreshold:     envFloatOrDefault("LIQ_HEALTH_THRESHOLD", 0.0),
		PostgresDSN:         envOrDefault("LIQ_POSTGRES_DSN", ""),
		MetricsAddr:         envOrDefault("LIQ_METRICS_ADDR", ":9090"),
	}
}

// Validate checks that required settings are present and sane.
func (c Config) Validate() error {
	if c.RPCEndpoint == "" {
		return fmt.Errorf("rpc endpoint is required")
	}
	if c.WSEndpoint == "" {
		return fmt.Errorf("ws endpoint is required")
	}
	if c.ProgramID == "" {
		return fmt.Errorf("program id is required")
	}
	if c.SnapshotPath == "" {
		return fmt.Errorf("snapshot path is required")
	}
	if c.SnapshotInterval <= 0 || c.StatsInterval <= 0 || c.LiquidationInterval <= 0 {
		return fmt.Errorf("intervals must be positive")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDurationOrDefault(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envFloatOrDefault(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
