package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marginfi-liquidator/internal/solana"
)

func testKey(b byte) solana.Pubkey {
	var pk solana.Pubkey
	pk[0] = b
	pk[31] = 1
	return pk
}

func TestAccountsCache_UpsertGet(t *testing.T) {
	c := NewAccountsCache()
	addr := testKey(1)

	c.Upsert(CachedAccount{Address: addr, Slot: 100, Data: []byte{1, 2, 3}})

	got, ok := c.Get(addr)
	require.True(t, ok)
	assert.Equal(t, uint64(100), got.Slot)
	assert.Equal(t, []byte{1, 2, 3}, got.Data)
	assert.Equal(t, 1, c.Len())
}

func TestAccountsCache_UpsertReplaces(t *testing.T) {
	c := NewAccountsCache()
	addr := testKey(1)

	c.Upsert(CachedAccount{Address: addr, Slot: 100, Data: []byte{1}})
	c.Upsert(CachedAccount{Address: addr, Slot: 200, Data: []byte{2}})

	got, _ := c.Get(addr)
	assert.Equal(t, uint64(200), got.Slot)
	assert.Equal(t, []byte{2}, got.Data)
	assert.Equal(t, 1, c.Len())
}

func TestAccountsCache_GetMissing(t *testing.T) {
	c := NewAccountsCache()
	_, ok := c.Get(testKey(9))
	assert.False(t, ok)
}

func TestAccountsCache_NoSharedData(t *testing.T) {
	c := NewAccountsCache()
	addr := testKey(1)

	data := []byte{1, 2, 3}
	c.Upsert(CachedAccount{Address: addr, Slot: 1, Data: data})
	data[0] = 0xFF

	got, _ := c.Get(addr)
	assert.Equal(t, byte(1), got.Data[0], "caller mutation leaked into the cache")

	got.Data[1] = 0xFF
	again, _ := c.Get(addr)
	assert.Equal(t, byte(2), again.Data[1], "reader mutation leaked into the cache")
}

func TestAccountsCache_SnapshotEntriesIsolated(t *testing.T) {
	c := NewAccountsCache()
	c.Upsert(CachedAccount{Address: testKey(1), Slot: 1, Data: []byte{1}})
	c.Upsert(CachedAccount{Address: testKey(2), Slot: 2, Data: []byte{2}})

	entries := c.SnapshotEntries()
	require.Len(t, entries, 2)

	entries[0].Data[0] = 0xFF
	got, _ := c.Get(entries[0].Address)
	assert.NotEqual(t, byte(0xFF), got.Data[0])
}

func TestAccountsCache_RestoreFromSnapshot(t *testing.T) {
	c := NewAccountsCache()
	c.Upsert(CachedAccount{Address: testKey(1), Slot: 1, Data: []byte{1}})

	c.RestoreFromSnapshot([]CachedAccount{
		{Address: testKey(2), Slot: 2, Data: []byte{2}},
		{Address: testKey(3), Slot: 3, Data: []byte{3}},
	})

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get(testKey(1))
	assert.False(t, ok, "restore must replace, not merge")
	got, ok := c.Get(testKey(3))
	require.True(t, ok)
	assert.Equal(t, uint64(3), got.Slot)
}

func TestCache_Clock(t *testing.T) {
	c := New(solana.Clock{Slot: 10, UnixTimestamp: 1000})
	assert.Equal(t, uint64(10), c.GetClock().Slot)

	c.UpdateClock(solana.Clock{Slot: 20, UnixTimestamp: 2000})
	clock := c.GetClock()
	assert.Equal(t, uint64(20), clock.Slot)
	assert.Equal(t, int64(2000), clock.UnixTimestamp)
}
