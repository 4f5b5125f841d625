package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marginfi-liquidator/internal/comms"
	"marginfi-liquidator/internal/solana"
)

// fakeCommsClient serves scripted program and address lookups.
type fakeCommsClient struct {
	programAccounts []solana.KeyedAccount
	programErr      error

	accounts    map[solana.Pubkey]solana.Account
	getAccounts [][]solana.Pubkey
}

var _ comms.CommsClient = (*fakeCommsClient)(nil)

func (f *fakeCommsClient) GetAccount(_ context.Context, pubkey solana.Pubkey) (*solana.Account, error) {
	if acc, ok := f.accounts[pubkey]; ok {
		copied := acc
		return &copied, nil
	}
	return nil, errors.New("not found")
}

func (f *fakeCommsClient) GetProgramAccounts(_ context.Context, _ solana.Pubkey) ([]solana.KeyedAccount, error) {
	return f.programAccounts, f.programErr
}

func (f *fakeCommsClient) GetAccounts(_ context.Context, addresses []solana.Pubkey) ([]solana.KeyedAccount, error) {
	recorded := make([]solana.Pubkey, len(addresses))
	copy(recorded, addresses)
	f.getAccounts = append(f.getAccounts, recorded)

	var out []solana.KeyedAccount
	for _, addr := range addresses {
		if acc, ok := f.accounts[addr]; ok {
			out = append(out, solana.KeyedAccount{Pubkey: addr, Account: acc})
		}
	}
	return out, nil
}

func kindData(kind comms.AccountKind) []byte {
	data := make([]byte, kind.DataSize())
	copy(data, kind.Discriminator())
	return data
}

func bankDataWithOracle(oracle solana.Pubkey) []byte {
	data := kindData(comms.KindBank)
	copy(data[comms.BankOracleOffset:], oracle.Bytes())
	return data
}

var testProgramID = solana.MustParsePubkey("MFv2hWf31Z9kbCa1snEPYctwafyhdvnV7FZnsebVacA")

func TestLoadCache_PartitionsByKind(t *testing.T) {
	oracle := testKey(0x50)
	client := &fakeCommsClient{
		programAccounts: []solana.KeyedAccount{
			{Pubkey: testKey(1), Account: solana.Account{Data: kindData(comms.KindGroup), Slot: 10}},
			{Pubkey: testKey(2), Account: solana.Account{Data: bankDataWithOracle(oracle), Slot: 10}},
			{Pubkey: testKey(3), Account: solana.Account{Data: kindData(comms.KindMarginfiAccount), Slot: 11}},
			{Pubkey: testKey(4), Account: solana.Account{Data: []byte{0xDE, 0xAD}, Slot: 10}},
		},
		accounts: map[solana.Pubkey]solana.Account{
			oracle: {Data: []byte{9, 9}, Slot: 12},
		},
	}

	c := New(solana.Clock{Slot: 5})
	loader := NewLoader(client, testProgramID, c)
	require.NoError(t, loader.LoadCache(context.Background()))

	// Groups and unknown accounts are not cached.
	assert.Equal(t, 1, c.Banks.Len())
	assert.Equal(t, 1, c.MarginfiAccounts.Len())

	margin, ok := c.MarginfiAccounts.Get(testKey(3))
	require.True(t, ok)
	assert.Equal(t, uint64(11), margin.Slot)

	// The banks' oracle was loaded as an auxiliary account.
	got, ok := c.Oracles.Get(oracle)
	require.True(t, ok)
	assert.Equal(t, []byte{9, 9}, got.Data)
}

func TestLoadCache_PropagatesFetchError(t *testing.T) {
	client := &fakeCommsClient{programErr: errors.New("scan failed")}

	c := New(solana.Clock{})
	err := NewLoader(client, testProgramID, c).LoadCache(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan failed")
	assert.Equal(t, 0, c.Banks.Len())
}

func TestLoadAuxiliaryAccounts_DeduplicatesOracles(t *testing.T) {
	oracle := testKey(0x60)
	client := &fakeCommsClient{
		accounts: map[solana.Pubkey]solana.Account{
			oracle: {Data: []byte{1}, Slot: 20},
		},
	}

	c := New(solana.Clock{Slot: 5})
	c.Banks.Upsert(CachedAccount{Address: testKey(1), Slot: 1, Data: bankDataWithOracle(oracle)})
	c.Banks.Upsert(CachedAccount{Address: testKey(2), Slot: 1, Data: bankDataWithOracle(oracle)})

	loader := NewLoader(client, testProgramID, c)
	require.NoError(t, loader.LoadAuxiliaryAccounts(context.Background()))

	require.Len(t, client.getAccounts, 1)
	assert.Len(t, client.getAccounts[0], 1, "duplicate oracle keys must collapse to one lookup")
	assert.Equal(t, 1, c.Oracles.Len())
}

func TestLoadAuxiliaryAccounts_NoOracles(t *testing.T) {
	client := &fakeCommsClient{}

	c := New(solana.Clock{})
	c.Banks.Upsert(CachedAccount{Address: testKey(1), Slot: 1, Data: kindData(comms.KindBank)})

	require.NoError(t, NewLoader(client, testProgramID, c).LoadAuxiliaryAccounts(context.Background()))
	assert.Empty(t, client.getAccounts, "zero-valued oracle keys must not trigger a lookup")
}

func TestCaptureSlot_FallsBackToClock(t *testing.T) {
	assert.Equal(t, uint64(77), captureSlot(solana.Account{Slot: 77}, 5))
	assert.Equal(t, uint64(5), captureSlot(solana.Account{}, 5))
}
