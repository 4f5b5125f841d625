package postgres

import (
	"context"
	"fmt"

	"marginfi-liquidator/internal/journal"
	"marginfi-liquidator/internal/solana"
)

// Store implements journal.Store using PostgreSQL.
type Store struct {
	pool *Pool
}

// NewStore creates a new Store.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

// Compile-time interface check.
var _ journal.Store = (*Store)(nil)

// Record stores an entry. Returns ErrDuplicateKey if (account, slot) exists.
func (s *Store) Record(ctx context.Context, entry *journal.Entry) error {
	if entry == nil || entry.Account.IsZero() {
		return journal.ErrInvalidInput
	}

	query := `
		INSERT INTO liquidation_journal (
			account, group_key, slot, health, liquidatable, observed_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		entry.Account.String(),
		entry.Group.String(),
		int64(entry.Slot),
		entry.Health,
		entry.Liquidatable,
		entry.ObservedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return journal.ErrDuplicateKey
		}
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*journal.Entry, error) {
	query := `
		SELECT account, group_key, slot, health, liquidatable, observed_at
		FROM liquidation_journal
		ORDER BY observed_at DESC, slot DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal entries: %w", err)
	}
	defer rows.Close()

	var entries []*journal.Entry
	for rows.Next() {
		var (
			entry    journal.Entry
			account  string
			groupKey string
			slot     int64
		)
		if err := rows.Scan(&account, &groupKey, &slot, &entry.Health, &entry.Liquidatable, &entry.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		if entry.Account, err = solana.ParsePubkey(account); err != nil {
			return nil, fmt.Errorf("journal entry account: %w", err)
		}
		if entry.Group, err = solana.ParsePubkey(groupKey); err != nil {
			return nil, fmt.Errorf("journal entry group: %w", err)
		}
		entry.Slot = uint64(slot)
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
