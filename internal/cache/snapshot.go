package cache

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"time"

	"marginfi-liquidator/internal/observability"
	"marginfi-liquidator/internal/solana"
)

// SnapshotVersion gates restores: any other version on disk is treated as
// no usable snapshot, never migrated.
const SnapshotVersion uint32 = 1

// cacheSnapshot is the on-disk envelope. It covers the clock and the two
// snapshot-backed collections; auxiliary collections are reloaded from the
// ledger after restore.
type cacheSnapshot struct {
	Version          uint32
	GeneratedAtUnix  uint64
	Clock            solana.Clock
	MarginfiAccounts []CachedAccount
	Banks            []CachedAccount
}

func captureSnapshot(c *Cache) cacheSnapshot {
	return cacheSnapshot{
		Version:          SnapshotVersion,
		GeneratedAtUnix:  uint64(time.Now().Unix()),
		Clock:            c.GetClock(),
		MarginfiAccounts: c.MarginfiAccounts.SnapshotEntries(),
		Banks:            c.Banks.SnapshotEntries(),
	}
}

// PersistSnapshot captures the cache and writes it to path atomically: the
// envelope goes to a temporary file next to path, which then replaces path
// by rename. A reader of path never observes a partial write, even across a
// crash mid-persist.
func PersistSnapshot(c *Cache, path string) error {
	start := time.Now()

	snapshot := captureSnapshot(c)

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snapshot); err != nil {
		observability.RecordSnapshotFailure()
		return fmt.Errorf("encode cache snapshot: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o644); err != nil {
		observability.RecordSnapshotFailure()
		return fmt.Errorf("write cache snapshot to %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		observability.RecordSnapshotFailure()
		return fmt.Errorf("finalize cache snapshot rename from %s to %s: %w", tmpPath, path, err)
	}

	observability.RecordSnapshotPersisted(time.Since(start).Seconds(), buf.Len())
	return nil
}

// RestoreSnapshot loads the snapshot at path into the cache. It returns
// false without touching the cache when no file exists or the snapshot's
// version does not exactly match SnapshotVersion. Unreadable or corrupt
// files return an error; callers treat that the same as no snapshot.
func RestoreSnapshot(c *Cache, path string) (bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read cache snapshot from %s: %w", path, err)
	}

	var snapshot cacheSnapshot
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&snapshot); err != nil {
		return false, fmt.Errorf("decode cache snapshot %s: %w", path, err)
	}

	if snapshot.Version != SnapshotVersion {
		return false, nil
	}

	c.UpdateClock(snapshot.Clock)
	c.MarginfiAccounts.RestoreFromSnapshot(snapshot.MarginfiAccounts)
	c.Banks.RestoreFromSnapshot(snapshot.Banks)
	return true, nil
}
