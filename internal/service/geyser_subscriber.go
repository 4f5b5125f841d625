package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"marginfi-liquidator/internal/observability"
	"marginfi-liquidator/internal/solana"
)

// GeyserMessage is one live account update in flight between the
// subscriber and the processor.
type GeyserMessage struct {
	Pubkey  solana.Pubkey
	Slot    uint64
	Account solana.Account
}

// GeyserSubscriber maintains the live WebSocket subscriptions and forwards
// every update into the processing queue.
type GeyserSubscriber struct {
	ws        solana.WSClient
	programID solana.Pubkey
	queue     *Queue[GeyserMessage]
	logger    zerolog.Logger
}

// NewGeyserSubscriber creates a subscriber feeding queue.
func NewGeyserSubscriber(ws solana.WSClient, programID solana.Pubkey, queue *Queue[GeyserMessage]) *GeyserSubscriber {
	return &GeyserSubscriber{
		ws:        ws,
		programID: programID,
		queue:     queue,
		logger:    observability.NewLogger("geyser_subscriber"),
	}
}

// Run subscribes to program-account and clock updates and pumps them into
// the queue until the context is cancelled. Any subscription failure is
// returned; the supervisor treats it as fatal.
func (s *GeyserSubscriber) Run(ctx context.Context) error {
	programCh, err := s.ws.SubscribeProgram(ctx, s.programID)
	if err != nil {
		return fmt.Errorf("subscribe program %s: %w", s.programID, err)
	}

	clockCh, err := s.ws.SubscribeAccount(ctx, solana.ClockSysvar)
	if err != nil {
		return fmt.Errorf("subscribe clock sysvar: %w", err)
	}

	s.logger.Info().Str("program", s.programID.String()).Msg("Geyser subscriptions established")

	for {
		select {
		case <-ctx.Done():
			return nil

		case notif, ok := <-programCh:
			if !ok {
				return fmt.Errorf("program subscription closed")
			}
			s.queue.Push(GeyserMessage{Pubkey: notif.Pubkey, Slot: notif.Slot, Account: notif.Account})

		case notif, ok := <-clockCh:
			if !ok {
				return fmt.Errorf("clock subscription closed")
			}
			// Account subscriptions carry no pubkey in the payload.
			s.queue.Push(GeyserMessage{Pubkey: solana.ClockSysvar, Slot: notif.Slot, Account: notif.Account})
		}
	}
}
