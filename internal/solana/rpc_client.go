package solana

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0

	// DefaultCommitment is used on every account query.
	DefaultCommitment = "confirmed"
)

// HTTPClient implements RPCClient using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new Solana RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ RPCClient = (*HTTPClient)(nil)

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error. The node's message text is
// preserved verbatim: scan-limit classification in the fetcher depends on
// matching a substring of it.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call with retries and exponential backoff.
// Transport-level failures are retried; RPC errors are returned immediately.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqID := c.requestID.Add(1)
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			// RPC errors are not retried
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// accountConfig is the shared account_config block for account queries.
func accountConfig() map[string]interface{} {
	return map[string]interface{}{
		"encoding":   "base64",
		"commitment": DefaultCommitment,
	}
}

// rawAccount is the wire representation of an account.
type rawAccount struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Data       []string `json:"data"` // [base64_data, encoding]
	Executable bool     `json:"executable"`
	RentEpoch  uint64   `json:"rentEpoch"`
}

func (r *rawAccount) decode(slot uint64) (Account, error) {
	owner, err := ParsePubkey(r.Owner)
	if err != nil {
		return Account{}, fmt.Errorf("account owner: %w", err)
	}

	var data []byte
	if len(r.Data) >= 1 && r.Data[0] != "" {
		data, err = base64.StdEncoding.DecodeString(r.Data[0])
		if err != nil {
			return Account{}, fmt.Errorf("decode account data: %w", err)
		}
	}

	return Account{
		Lamports:   r.Lamports,
		Owner:      owner,
		Data:       data,
		Executable: r.Executable,
		RentEpoch:  r.RentEpoch,
		Slot:       slot,
	}, nil
}

type rpcContext struct {
	Slot uint64 `json:"slot"`
}

// GetAccountInfo retrieves a single account. Returns nil if the account
// does not exist.
func (c *HTTPClient) GetAccountInfo(ctx context.Context, pubkey Pubkey) (*Account, error) {
	params := []interface{}{pubkey.String(), accountConfig()}

	var result struct {
		Context rpcContext  `json:"context"`
		Value   *rawAccount `json:"value"`
	}
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}

	if result.Value == nil {
		return nil, nil
	}

	acc, err := result.Value.decode(result.Context.Slot)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// GetMultipleAccounts retrieves up to 100 accounts in one call. The result
// is positional: a nil entry means the address has no account.
func (c *HTTPClient) GetMultipleAccounts(ctx context.Context, pubkeys []Pubkey) ([]*Account, error) {
	keys := make([]string, len(pubkeys))
	for i, pk := range pubkeys {
		keys[i] = pk.String()
	}
	params := []interface{}{keys, accountConfig()}

	var result struct {
		Context rpcContext    `json:"context"`
		Value   []*rawAccount `json:"value"`
	}
	if err := c.call(ctx, "getMultipleAccounts", params, &result); err != nil {
		return nil, err
	}

	accounts := make([]*Account, len(result.Value))
	for i, raw := range result.Value {
		if raw == nil {
			continue
		}
		acc, err := raw.decode(result.Context.Slot)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", pubkeys[i], err)
		}
		accounts[i] = &acc
	}

	return accounts, nil
}

// GetProgramAccounts retrieves all accounts owned by programID matching
// every filter.
func (c *HTTPClient) GetProgramAccounts(ctx context.Context, programID Pubkey, filters []Filter) ([]KeyedAccount, error) {
	config := accountConfig()
	if len(filters) > 0 {
		config["filters"] = filters
	}
	params := []interface{}{programID.String(), config}

	var result []struct {
		Pubkey  string     `json:"pubkey"`
		Account rawAccount `json:"account"`
	}
	if err := c.call(ctx, "getProgramAccounts", params, &result); err != nil {
		return nil, err
	}

	accounts := make([]KeyedAccount, 0, len(result))
	for _, entry := range result {
		pk, err := ParsePubkey(entry.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("program account pubkey: %w", err)
		}
		acc, err := entry.Account.decode(0)
		if err != nil {
			return nil, fmt.Errorf("program account %s: %w", entry.Pubkey, err)
		}
		accounts = append(accounts, KeyedAccount{Pubkey: pk, Account: acc})
	}

	return accounts, nil
}
