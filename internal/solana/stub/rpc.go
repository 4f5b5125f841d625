// Package stub provides a scripted solana.RPCClient for tests.
package stub

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/mr-tron/base58"

	"marginfi-liquidator/internal/solana"
)

// Call records one getProgramAccounts invocation.
type Call struct {
	ProgramID solana.Pubkey
	Filters   []solana.Filter
}

// RPCClient implements solana.RPCClient for testing. Program account scans
// are served from ProgramAccounts with real filter matching, so tests
// exercise the same dataSize/memcmp semantics the node applies. The
// ProgramAccountsFunc hook takes precedence when set.
type RPCClient struct {
	mu sync.Mutex

	Accounts        map[solana.Pubkey]*solana.Account
	ProgramAccounts []solana.KeyedAccount

	// ProgramAccountsFunc, when non-nil, fully replaces scan handling.
	ProgramAccountsFunc func(programID solana.Pubkey, filters []solana.Filter) ([]solana.KeyedAccount, error)

	// Calls holds every recorded getProgramAccounts invocation.
	Calls []Call

	// MultipleCalls holds the address list of every getMultipleAccounts
	// invocation.
	MultipleCalls [][]solana.Pubkey
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Accounts: make(map[solana.Pubkey]*solana.Account),
	}
}

var _ solana.RPCClient = (*RPCClient)(nil)

// AddAccount adds an account to the stub store.
func (c *RPCClient) AddAccount(pubkey solana.Pubkey, account solana.Account) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accounts[pubkey] = &account
}

// AddProgramAccount adds an account served by scans.
func (c *RPCClient) AddProgramAccount(pubkey solana.Pubkey, account solana.Account) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ProgramAccounts = append(c.ProgramAccounts, solana.KeyedAccount{Pubkey: pubkey, Account: account})
}

// GetAccountInfo retrieves an account from the stub store.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey solana.Pubkey) (*solana.Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	acc, ok := c.Accounts[pubkey]
	if !ok {
		return nil, nil
	}
	copied := *acc
	return &copied, nil
}

// GetMultipleAccounts retrieves accounts positionally from the stub store.
func (c *RPCClient) GetMultipleAccounts(_ context.Context, pubkeys []solana.Pubkey) ([]*solana.Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	recorded := make([]solana.Pubkey, len(pubkeys))
	copy(recorded, pubkeys)
	c.MultipleCalls = append(c.MultipleCalls, recorded)
	out := make([]*solana.Account, len(pubkeys))
	for i, pk := range pubkeys {
		if acc, ok := c.Accounts[pk]; ok {
			copied := *acc
			out[i] = &copied
		}
	}
	return out, nil
}

// GetProgramAccounts serves a filtered scan over ProgramAccounts, or defers
// to ProgramAccountsFunc when set. Every call is recorded.
func (c *RPCClient) GetProgramAccounts(_ context.Context, programID solana.Pubkey, filters []solana.Filter) ([]solana.KeyedAccount, error) {
	c.mu.Lock()
	c.Calls = append(c.Calls, Call{ProgramID: programID, Filters: filters})
	hook := c.ProgramAccountsFunc
	accounts := make([]solana.KeyedAccount, len(c.ProgramAccounts))
	copy(accounts, c.ProgramAccounts)
	c.mu.Unlock()

	if hook != nil {
		return hook(programID, filters)
	}

	var out []solana.KeyedAccount
	for _, entry := range accounts {
		ok, err := MatchesFilters(entry.Account.Data, filters)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, entry)
		}
	}
	return out, nil
}

// MatchesFilters applies dataSize and memcmp filters to account data.
func MatchesFilters(data []byte, filters []solana.Filter) (bool, error) {
	for _, f := range filters {
		switch {
		case f.DataSize != nil:
			if uint64(len(data)) != *f.DataSize {
				return false, nil
			}
		case f.Memcmp != nil:
			raw, err := base58.Decode(f.Memcmp.Bytes)
			if err != nil {
				return false, fmt.Errorf("memcmp bytes: %w", err)
			}
			offset := int(f.Memcmp.Offset)
			if offset+len(raw) > len(data) {
				return false, nil
			}
			if !bytes.Equal(data[offset:offset+len(raw)], raw) {
				return false, nil
			}
		}
	}
	return true, nil
}

// MemcmpLen returns the decoded byte length of a recorded memcmp filter at
// the given offset, or -1 if the call carries none.
func MemcmpLen(call Call, offset uint64) int {
	for _, f := range call.Filters {
		if f.Memcmp != nil && f.Memcmp.Offset == offset {
			raw, err := base58.Decode(f.Memcmp.Bytes)
			if err != nil {
				return -1
			}
			return len(raw)
		}
	}
	return -1
}
