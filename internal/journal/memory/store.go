// Package memory provides an in-memory journal.Store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"marginfi-liquidator/internal/journal"
	"marginfi-liquidator/internal/solana"
)

// Store is an in-memory implementation of journal.Store.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*journal.Entry
}

// NewStore creates a new in-memory journal store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]*journal.Entry),
	}
}

var _ journal.Store = (*Store)(nil)

func entryKey(account solana.Pubkey, slot uint64) string {
	return fmt.Sprintf("%s|%d", account, slot)
}

// Record stores an entry. Returns ErrDuplicateKey if (account, slot) exists.
func (s *Store) Record(_ context.Context, entry *journal.Entry) error {
	if entry == nil || entry.Account.IsZero() {
		return journal.ErrInvalidInput
	}

	key := entryKey(entry.Account, entry.Slot)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; exists {
		return journal.ErrDuplicateKey
	}

	copied := *entry
	s.entries[key] = &copied
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(_ context.Context, limit int) ([]*journal.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*journal.Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		copied := *entry
		result = append(result, &copied)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].ObservedAt.Equal(result[j].ObservedAt) {
			return result[i].ObservedAt.After(result[j].ObservedAt)
		}
		return result[i].Slot > result[j].Slot
	})

	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}
