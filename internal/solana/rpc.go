package solana

import "context"

// RPCClient defines the Solana RPC HTTP interface consumed by the fetcher.
type RPCClient interface {
	// GetAccountInfo retrieves a single account. Returns nil if the account
	// does not exist.
	GetAccountInfo(ctx context.Context, pubkey Pubkey) (*Account, error)

	// GetMultipleAccounts retrieves up to 100 accounts in one call. The
	// result is positional: a nil entry means the address has no account.
	GetMultipleAccounts(ctx context.Context, pubkeys []Pubkey) ([]*Account, error)

	// GetProgramAccounts retrieves all accounts owned by programID that
	// match every filter.
	GetProgramAccounts(ctx context.Context, programID Pubkey, filters []Filter) ([]KeyedAccount, error)
}
