package comms

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"marginfi-liquidator/internal/observability"
	"marginfi-liquidator/internal/solana"
)

const addressesChunkSize = 100

// scanLimitPattern is the substring that identifies a scan-size rejection.
// The node reports no structured code for this condition; swapping the RPC
// backend requires preserving this exact text contract.
const scanLimitPattern = "scan aborted: The accumulated scan results exceeded the limit"

// RPCCommsClient implements CommsClient over a Solana RPC client.
type RPCCommsClient struct {
	rpc    solana.RPCClient
	logger zerolog.Logger
}

// NewRPCCommsClient creates a comms client on top of rpc.
func NewRPCCommsClient(rpc solana.RPCClient) *RPCCommsClient {
	return &RPCCommsClient{
		rpc:    rpc,
		logger: observability.NewLogger("comms"),
	}
}

var _ CommsClient = (*RPCCommsClient)(nil)

// GetAccount fetches a single account. A missing account is an error.
func (c *RPCCommsClient) GetAccount(ctx context.Context, pubkey solana.Pubkey) (*solana.Account, error) {
	account, err := c.rpc.GetAccountInfo(ctx, pubkey)
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", pubkey, err)
	}
	if account == nil {
		return nil, fmt.Errorf("account %s not found", pubkey)
	}
	return account, nil
}

// GetProgramAccounts fetches all groups, then all banks, then the marginfi
// accounts partitioned by group.
func (c *RPCCommsClient) GetProgramAccounts(ctx context.Context, programID solana.Pubkey) ([]solana.KeyedAccount, error) {
	var accounts []solana.KeyedAccount

	c.logger.Info().Msg("Fetching marginfi groups")
	groups, err := c.getProgramAccountsForKind(ctx, programID, KindGroup)
	if err != nil {
		return nil, err
	}
	c.logger.Info().Int("count", len(groups)).Msg("Fetched marginfi groups")
	observability.RecordAccountsFetched(KindGroup.String(), len(groups))

	groupKeys := make([]solana.Pubkey, len(groups))
	for i, group := range groups {
		groupKeys[i] = group.Pubkey
	}
	accounts = append(accounts, groups...)

	c.logger.Info().Msg("Fetching marginfi banks")
	banks, err := c.getProgramAccountsForKind(ctx, programID, KindBank)
	if err != nil {
		return nil, err
	}
	c.logger.Info().Int("count", len(banks)).Msg("Fetched marginfi banks")
	observability.RecordAccountsFetched(KindBank.String(), len(banks))
	accounts = append(accounts, banks...)

	c.logger.Info().Int("groups", len(groupKeys)).Msg("Fetching marginfi accounts")
	marginfiAccounts, err := c.getMarginfiAccountsByGroup(ctx, programID, groupKeys)
	if err != nil {
		return nil, err
	}
	c.logger.Info().Int("count", len(marginfiAccounts)).Msg("Fetched marginfi accounts")
	observability.RecordAccountsFetched(KindMarginfiAccount.String(), len(marginfiAccounts))
	accounts = append(accounts, marginfiAccounts...)

	return accounts, nil
}

// GetAccounts looks up a known address list in batches of 100. Addresses
// with no account are silently omitted.
func (c *RPCCommsClient) GetAccounts(ctx context.Context, addresses []solana.Pubkey) ([]solana.KeyedAccount, error) {
	var out []solana.KeyedAccount

	for start := 0; start < len(addresses); start += addressesChunkSize {
		end := start + addressesChunkSize
		if end > len(addresses) {
			end = len(addresses)
		}
		chunk := addresses[start:end]

		accounts, err := c.rpc.GetMultipleAccounts(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("get %d accounts: %w", len(chunk), err)
		}
		for i, account := range accounts {
			if account == nil {
				continue
			}
			out = append(out, solana.KeyedAccount{Pubkey: chunk[i], Account: *account})
		}
	}

	return out, nil
}

func (c *RPCCommsClient) getProgramAccountsForKind(ctx context.Context, programID solana.Pubkey, kind AccountKind) ([]solana.KeyedAccount, error) {
	return c.getProgramAccountsWithFilters(ctx, programID, kind.Filters(), kind)
}

func (c *RPCCommsClient) getProgramAccountsWithFilters(ctx context.Context, programID solana.Pubkey, filters []solana.Filter, kind AccountKind) ([]solana.KeyedAccount, error) {
	c.logger.Debug().
		Str("kind", kind.String()).
		Str("filters", summarizeFilters(filters)).
		Msg("Querying program accounts")

	accounts, err := c.rpc.GetProgramAccounts(ctx, programID, filters)
	if err != nil {
		return nil, fmt.Errorf("get %s accounts for program %s: %w", kind, programID, err)
	}

	c.logger.Debug().
		Str("kind", kind.String()).
		Int("count", len(accounts)).
		Msg("Fetched program accounts")
	return accounts, nil
}

func (c *RPCCommsClient) getMarginfiAccountsByGroup(ctx context.Context, programID solana.Pubkey, groupKeys []solana.Pubkey) ([]solana.KeyedAccount, error) {
	if len(groupKeys) == 0 {
		return c.getProgramAccountsForKind(ctx, programID, KindMarginfiAccount)
	}

	var accounts []solana.KeyedAccount
	for _, groupKey := range groupKeys {
		groupAccounts, err := c.fetchMarginfiAccountsForPrefix(ctx, programID, groupKey, nil)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, groupAccounts...)
	}

	return accounts, nil
}

// fetchMarginfiAccountsForPrefix fetches the marginfi accounts of one group,
// optionally narrowed to an authority-key byte prefix. A scan-limit
// rejection splits the query into 256 sub-queries over the next prefix byte,
// depth-first and sequential. The split bottoms out at the full key length.
func (c *RPCCommsClient) fetchMarginfiAccountsForPrefix(ctx context.Context, programID solana.Pubkey, groupKey solana.Pubkey, authorityPrefix []byte) ([]solana.KeyedAccount, error) {
	filters := KindMarginfiAccount.Filters()
	filters = append(filters, solana.MemcmpFilter(MarginfiAccountGroupOffset, groupKey.Bytes()))
	if len(authorityPrefix) > 0 {
		filters = append(filters, solana.MemcmpFilter(MarginfiAccountAuthorityOffset, authorityPrefix))
	}

	if len(authorityPrefix) == 0 {
		c.logger.Info().Str("group", groupKey.String()).Msg("Fetching marginfi accounts for group")
	} else {
		c.logger.Debug().
			Str("group", groupKey.String()).
			Str("prefix", formatPrefix(authorityPrefix)).
			Msg("Fetching marginfi accounts for prefix")
	}

	accounts, err := c.getProgramAccountsWithFilters(ctx, programID, filters, KindMarginfiAccount)
	if err == nil {
		return accounts, nil
	}
	if !isScanLimitError(err) {
		return nil, err
	}

	c.logger.Info().
		Str("group", groupKey.String()).
		Str("prefix", formatPrefix(authorityPrefix)).
		Msg("Scan limit hit, splitting further")

	// Hard depth cap: a full-length prefix cannot be split any further.
	if len(authorityPrefix) >= solana.PubkeyLen {
		return nil, err
	}
	observability.RecordScanPartition()

	var chunked []solana.KeyedAccount
	for b := 0; b <= 0xFF; b++ {
		nextPrefix := make([]byte, len(authorityPrefix)+1)
		copy(nextPrefix, authorityPrefix)
		nextPrefix[len(authorityPrefix)] = byte(b)

		accounts, err := c.fetchMarginfiAccountsForPrefix(ctx, programID, groupKey, nextPrefix)
		if err != nil {
			return nil, err
		}
		chunked = append(chunked, accounts...)
	}

	return chunked, nil
}

func isScanLimitError(err error) bool {
	return err != nil && strings.Contains(err.Error(), scanLimitPattern)
}

func summarizeFilters(filters []solana.Filter) string {
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		switch {
		case f.DataSize != nil:
			parts = append(parts, fmt.Sprintf("data_size=%d", *f.DataSize))
		case f.Memcmp != nil:
			parts = append(parts, fmt.Sprintf("memcmp@%d", f.Memcmp.Offset))
		}
	}
	return strings.Join(parts, ", ")
}

func formatPrefix(prefix []byte) string {
	if len(prefix) == 0 {
		return "<full>"
	}
	return strings.ToUpper(hex.EncodeToString(prefix))
}
