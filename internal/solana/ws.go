package solana

import "context"

// WSClient defines the Solana WebSocket subscription interface.
type WSClient interface {
	// SubscribeProgram subscribes to updates of every account owned by the
	// program.
	SubscribeProgram(ctx context.Context, programID Pubkey) (<-chan AccountNotification, error)

	// SubscribeAccount subscribes to updates of a single account.
	SubscribeAccount(ctx context.Context, pubkey Pubkey) (<-chan AccountNotification, error)

	// Close closes the WebSocket connection.
	Close() error
}

// AccountNotification is a live account update.
type AccountNotification struct {
	Pubkey  Pubkey
	Slot    uint64
	Account Account
}
