package service

import (
	"context"

	"github.com/rs/zerolog"

	"marginfi-liquidator/internal/cache"
	"marginfi-liquidator/internal/comms"
	"marginfi-liquidator/internal/observability"
	"marginfi-liquidator/internal/solana"
)

// GeyserProcessor drains the update queue and applies each message to the
// cache: the clock wholesale, program accounts by discriminator.
type GeyserProcessor struct {
	queue  *Queue[GeyserMessage]
	cache  *cache.Cache
	logger zerolog.Logger
}

// NewGeyserProcessor creates a processor draining queue into c.
func NewGeyserProcessor(queue *Queue[GeyserMessage], c *cache.Cache) *GeyserProcessor {
	return &GeyserProcessor{
		queue:  queue,
		cache:  c,
		logger: observability.NewLogger("geyser_processor"),
	}
}

// QueueDepth reports the number of pending updates.
func (p *GeyserProcessor) QueueDepth() int {
	return p.queue.Len()
}

// Run applies queued updates until the context is cancelled and the queue
// closed.
func (p *GeyserProcessor) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		p.queue.Close()
	}()

	for {
		msg, ok := p.queue.Pop()
		if !ok {
			return nil
		}
		p.apply(msg)
	}
}

func (p *GeyserProcessor) apply(msg GeyserMessage) {
	if msg.Pubkey == solana.ClockSysvar {
		clock, err := solana.ParseClock(msg.Account.Data)
		if err != nil {
			p.logger.Warn().Err(err).Msg("Dropping malformed clock update")
			return
		}
		p.cache.UpdateClock(clock)
		observability.UpdateClockSlot(clock.Slot)
		observability.RecordGeyserUpdate("Clock")
		return
	}

	kind, ok := comms.KindForData(msg.Account.Data)
	if !ok {
		// Oracles and any other non-program accounts land here.
		p.cache.Oracles.Upsert(cache.CachedAccount{Address: msg.Pubkey, Slot: msg.Slot, Data: msg.Account.Data})
		observability.RecordGeyserUpdate("Other")
		return
	}

	entry := cache.CachedAccount{Address: msg.Pubkey, Slot: msg.Slot, Data: msg.Account.Data}
	switch kind {
	case comms.KindBank:
		p.cache.Banks.Upsert(entry)
	case comms.KindMarginfiAccount:
		p.cache.MarginfiAccounts.Upsert(entry)
	case comms.KindGroup:
		// Groups are not cached.
	}
	observability.RecordGeyserUpdate(kind.String())
}
