package comms

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marginfi-liquidator/internal/solana"
	"marginfi-liquidator/internal/solana/stub"
)

var (
	testProgramID = solana.MustParsePubkey("MFv2hWf31Z9kbCa1snEPYctwafyhdvnV7FZnsebVacA")
	testGroupKey  = solana.MustParsePubkey("4qp6Fx6tnZkY5Wropq9wUYgtFxXKwE6viZxFHg3rdAG8")
)

func keyWithFirstByte(b byte) solana.Pubkey {
	var pk solana.Pubkey
	pk[0] = b
	pk[31] = 1
	return pk
}

func marginfiAccountData(group, authority solana.Pubkey) []byte {
	data := makeAccountData(KindMarginfiAccount)
	copy(data[MarginfiAccountGroupOffset:], group.Bytes())
	copy(data[MarginfiAccountAuthorityOffset:], authority.Bytes())
	return data
}

func scanLimitErr() error {
	return fmt.Errorf("rpc error -32010: %s", scanLimitPattern)
}

func TestGetAccount(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.AddAccount(testGroupKey, solana.Account{Lamports: 7, Slot: 42})

	client := NewRPCCommsClient(rpc)
	account, err := client.GetAccount(context.Background(), testGroupKey)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), account.Lamports)
	assert.Equal(t, uint64(42), account.Slot)
}

func TestGetAccount_MissingIsError(t *testing.T) {
	client := NewRPCCommsClient(stub.NewRPCClient())

	_, err := client.GetAccount(context.Background(), testGroupKey)
	require.Error(t, err)
	assert.Contains(t, err.Error(), testGroupKey.String())
}

func TestGetProgramAccounts_Ordering(t *testing.T) {
	rpc := stub.NewRPCClient()

	groupData := makeAccountData(KindGroup)
	rpc.AddProgramAccount(testGroupKey, solana.Account{Data: groupData, Slot: 10})

	bankKey := keyWithFirstByte(0x02)
	rpc.AddProgramAccount(bankKey, solana.Account{Data: makeAccountData(KindBank), Slot: 10})

	marginKey := keyWithFirstByte(0x03)
	marginData := marginfiAccountData(testGroupKey, keyWithFirstByte(0x04))
	rpc.AddProgramAccount(marginKey, solana.Account{Data: marginData, Slot: 10})

	client := NewRPCCommsClient(rpc)
	accounts, err := client.GetProgramAccounts(context.Background(), testProgramID)
	require.NoError(t, err)

	require.Len(t, accounts, 3)
	assert.Equal(t, testGroupKey, accounts[0].Pubkey)
	assert.Equal(t, bankKey, accounts[1].Pubkey)
	assert.Equal(t, marginKey, accounts[2].Pubkey)

	// Marginfi accounts are scoped per group with a memcmp on the group key.
	require.Len(t, rpc.Calls, 3)
	marginCall := rpc.Calls[2]
	assert.Equal(t, solana.PubkeyLen, stub.MemcmpLen(marginCall, MarginfiAccountGroupOffset))
}

func TestGetProgramAccounts_NoGroupsFallsBackToFlatScan(t *testing.T) {
	rpc := stub.NewRPCClient()

	marginKey := keyWithFirstByte(0x03)
	marginData := marginfiAccountData(testGroupKey, keyWithFirstByte(0x04))
	rpc.AddProgramAccount(marginKey, solana.Account{Data: marginData, Slot: 10})

	client := NewRPCCommsClient(rpc)
	accounts, err := client.GetProgramAccounts(context.Background(), testProgramID)
	require.NoError(t, err)

	require.Len(t, accounts, 1)
	assert.Equal(t, marginKey, accounts[0].Pubkey)

	// With no groups the marginfi scan carries no group memcmp.
	require.Len(t, rpc.Calls, 3)
	assert.Equal(t, -1, stub.MemcmpLen(rpc.Calls[2], MarginfiAccountGroupOffset))
}

func TestFetchMarginfiAccounts_SplitsOnScanLimit(t *testing.T) {
	rpc := stub.NewRPCClient()

	authorities := []solana.Pubkey{keyWithFirstByte(0x01), keyWithFirstByte(0xFE)}
	for i, authority := range authorities {
		key := keyWithFirstByte(byte(0x10 + i))
		rpc.AddProgramAccount(key, solana.Account{
			Data: marginfiAccountData(testGroupKey, authority),
			Slot: 20,
		})
	}

	// The unprefixed query trips the scan limit; any one-byte prefix succeeds.
	rpc.ProgramAccountsFunc = func(_ solana.Pubkey, filters []solana.Filter) ([]solana.KeyedAccount, error) {
		if stub.MemcmpLen(stub.Call{Filters: filters}, MarginfiAccountAuthorityOffset) < 1 {
			return nil, scanLimitErr()
		}
		var out []solana.KeyedAccount
		for _, entry := range rpc.ProgramAccounts {
			ok, err := stub.MatchesFilters(entry.Account.Data, filters)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, entry)
			}
		}
		return out, nil
	}

	client := NewRPCCommsClient(rpc)
	accounts, err := client.fetchMarginfiAccountsForPrefix(context.Background(), testProgramID, testGroupKey, nil)
	require.NoError(t, err)

	// One rejected unprefixed call plus one per prefix byte.
	assert.Len(t, rpc.Calls, 1+256)
	require.Len(t, accounts, 2)

	// Sub-query results assemble in prefix-byte order.
	gotAuth0, _ := AuthorityKey(accounts[0].Account.Data)
	gotAuth1, _ := AuthorityKey(accounts[1].Account.Data)
	assert.Equal(t, byte(0x01), gotAuth0[0])
	assert.Equal(t, byte(0xFE), gotAuth1[0])
}

func TestFetchMarginfiAccounts_DepthCap(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.ProgramAccountsFunc = func(_ solana.Pubkey, _ []solana.Filter) ([]solana.KeyedAccount, error) {
		return nil, scanLimitErr()
	}

	client := NewRPCCommsClient(rpc)
	_, err := client.fetchMarginfiAccountsForPrefix(context.Background(), testProgramID, testGroupKey, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), scanLimitPattern)

	// Depth-first descent on byte 0x00 reaches the full key length and stops.
	assert.Len(t, rpc.Calls, solana.PubkeyLen+1)
}

func TestFetchMarginfiAccounts_NonScanErrorFailsFast(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.ProgramAccountsFunc = func(_ solana.Pubkey, _ []solana.Filter) ([]solana.KeyedAccount, error) {
		return nil, errors.New("connection refused")
	}

	client := NewRPCCommsClient(rpc)
	_, err := client.fetchMarginfiAccountsForPrefix(context.Background(), testProgramID, testGroupKey, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Len(t, rpc.Calls, 1)
}

func TestGetAccounts_Batches(t *testing.T) {
	rpc := stub.NewRPCClient()

	addresses := make([]solana.Pubkey, 250)
	for i := range addresses {
		var pk solana.Pubkey
		pk[0] = byte(i)
		pk[1] = byte(i >> 8)
		pk[31] = 1
		addresses[i] = pk
		// Leave every tenth address absent.
		if i%10 != 0 {
			rpc.AddAccount(pk, solana.Account{Lamports: uint64(i), Slot: 30})
		}
	}

	client := NewRPCCommsClient(rpc)
	accounts, err := client.GetAccounts(context.Background(), addresses)
	require.NoError(t, err)

	require.Len(t, rpc.MultipleCalls, 3)
	assert.Len(t, rpc.MultipleCalls[0], 100)
	assert.Len(t, rpc.MultipleCalls[1], 100)
	assert.Len(t, rpc.MultipleCalls[2], 50)

	assert.Len(t, accounts, 225)
	for _, entry := range accounts {
		assert.NotZero(t, entry.Account.Lamports)
	}
}

func TestGetAccounts_Empty(t *testing.T) {
	client := NewRPCCommsClient(stub.NewRPCClient())

	accounts, err := client.GetAccounts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, accounts)
	assert.Empty(t, client.rpc.(*stub.RPCClient).MultipleCalls)
}
