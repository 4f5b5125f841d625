// Package comms fetches marginfi program accounts from a Solana RPC node.
//
// Full bootstrap works around the node's undocumented scan result limit: a
// rejected per-group scan is split into 256 sub-scans by extending a byte
// prefix filter over the owner authority key, recursively, down to the full
// key length.
package comms

import (
	"context"

	"marginfi-liquidator/internal/solana"
)

// CommsClient is the remote-ledger access contract consumed by the cache
// loader and the liquidation service.
type CommsClient interface {
	// GetAccount fetches a single account. A missing account is an error.
	GetAccount(ctx context.Context, pubkey solana.Pubkey) (*solana.Account, error)

	// GetProgramAccounts fetches every group, bank and marginfi account
	// owned by the program. Groups come first, then banks, then the
	// per-group marginfi accounts.
	GetProgramAccounts(ctx context.Context, programID solana.Pubkey) ([]solana.KeyedAccount, error)

	// GetAccounts looks up a known address list in batches of 100.
	// Addresses with no account are silently omitted from the result.
	GetAccounts(ctx context.Context, addresses []solana.Pubkey) ([]solana.KeyedAccount, error)
}
