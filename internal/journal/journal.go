// Package journal records liquidation evaluations for post-hoc review.
package journal

import (
	"context"
	"errors"
	"time"

	"marginfi-liquidator/internal/solana"
)

// Storage errors.
var (
	// ErrDuplicateKey indicates an entry for (account, slot) already exists.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrInvalidInput indicates a malformed entry.
	ErrInvalidInput = errors.New("invalid input")
)

// Entry is one recorded evaluation of a margin account.
type Entry struct {
	Account      solana.Pubkey
	Group        solana.Pubkey
	Slot         uint64
	Health       float64
	Liquidatable bool
	ObservedAt   time.Time
}

// Store persists liquidation journal entries.
type Store interface {
	// Record stores an entry. Returns ErrDuplicateKey if an entry for the
	// same (account, slot) exists.
	Record(ctx context.Context, entry *Entry) error

	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]*Entry, error)
}
