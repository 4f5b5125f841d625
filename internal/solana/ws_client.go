package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// NotifyBuffer is the capacity of each subscription channel.
	NotifyBuffer int
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		WriteTimeout:      10 * time.Second,
		NotifyBuffer:      1024,
	}
}

// subRequest describes a subscription so it can be replayed after reconnect.
type subRequest struct {
	method string // "programSubscribe" or "accountSubscribe"
	key    Pubkey
}

// WSClientImpl implements WSClient using gorilla/websocket.
type WSClientImpl struct {
	endpoint string
	config   WSClientConfig

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// subs maps subscription ID to delivery channel.
	subs   map[int64]chan AccountNotification
	subsMu sync.RWMutex

	// activeSubs stores subscription requests for replay after reconnect,
	// keyed by the channel they deliver to.
	activeSubs   map[chan AccountNotification]subRequest
	activeSubsMu sync.Mutex

	// pendingSubs maps request ID to channel waiting for subscription ID.
	pendingSubs   map[uint64]chan int64
	pendingSubsMu sync.Mutex

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWSClient creates a new WebSocket client and connects to the endpoint.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig) (*WSClientImpl, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	c := &WSClientImpl{
		endpoint:    endpoint,
		config:      cfg,
		subs:        make(map[int64]chan AccountNotification),
		activeSubs:  make(map[chan AccountNotification]subRequest),
		pendingSubs: make(map[uint64]chan int64),
		done:        make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

var _ WSClient = (*WSClientImpl)(nil)

func (c *WSClientImpl) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

// SubscribeProgram subscribes to updates of every account owned by programID.
func (c *WSClientImpl) SubscribeProgram(ctx context.Context, programID Pubkey) (<-chan AccountNotification, error) {
	return c.subscribe(ctx, subRequest{method: "programSubscribe", key: programID})
}

// SubscribeAccount subscribes to updates of a single account.
func (c *WSClientImpl) SubscribeAccount(ctx context.Context, pubkey Pubkey) (<-chan AccountNotification, error) {
	return c.subscribe(ctx, subRequest{method: "accountSubscribe", key: pubkey})
}

func (c *WSClientImpl) subscribe(ctx context.Context, req subRequest) (<-chan AccountNotification, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("client closed")
	}

	ch := make(chan AccountNotification, c.config.NotifyBuffer)

	subID, err := c.sendSubscribe(ctx, req)
	if err != nil {
		return nil, err
	}

	c.subsMu.Lock()
	c.subs[subID] = ch
	c.subsMu.Unlock()

	c.activeSubsMu.Lock()
	c.activeSubs[ch] = req
	c.activeSubsMu.Unlock()

	return ch, nil
}

func (c *WSClientImpl) sendSubscribe(ctx context.Context, req subRequest) (int64, error) {
	reqID := c.requestID.Add(1)

	msg := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      reqID,
		"method":  req.method,
		"params": []interface{}{
			req.key.String(),
			map[string]interface{}{
				"encoding":   "base64",
				"commitment": DefaultCommitment,
			},
		},
	}

	wait := make(chan int64, 1)
	c.pendingSubsMu.Lock()
	c.pendingSubs[reqID] = wait
	c.pendingSubsMu.Unlock()

	defer func() {
		c.pendingSubsMu.Lock()
		delete(c.pendingSubs, reqID)
		c.pendingSubsMu.Unlock()
	}()

	if err := c.writeJSON(msg); err != nil {
		return 0, fmt.Errorf("send %s: %w", req.method, err)
	}

	select {
	case subID := <-wait:
		return subID, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-c.done:
		return 0, fmt.Errorf("client closed")
	}
}

func (c *WSClientImpl) writeJSON(v interface{}) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return c.conn.WriteJSON(v)
}

// wsMessage covers both subscription confirmations and notifications.
type wsMessage struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Method string          `json:"method"`
	Params *wsNotifyParams `json:"params"`
}

type wsNotifyParams struct {
	Subscription int64           `json:"subscription"`
	Result       wsNotifyPayload `json:"result"`
}

type wsNotifyPayload struct {
	Context rpcContext      `json:"context"`
	Value   json.RawMessage `json:"value"`
}

type wsProgramValue struct {
	Pubkey  string     `json:"pubkey"`
	Account rawAccount `json:"account"`
}

func (c *WSClientImpl) readLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()
		if conn == nil {
			if !c.reconnect() {
				return
			}
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			if !c.reconnect() {
				return
			}
			continue
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch {
		case msg.ID != 0 && msg.Result != nil:
			var subID int64
			if err := json.Unmarshal(msg.Result, &subID); err != nil {
				continue
			}
			c.pendingSubsMu.Lock()
			if wait, ok := c.pendingSubs[msg.ID]; ok {
				wait <- subID
			}
			c.pendingSubsMu.Unlock()

		case msg.Params != nil:
			c.dispatch(msg.Method, msg.Params)
		}
	}
}

func (c *WSClientImpl) dispatch(method string, params *wsNotifyParams) {
	c.subsMu.RLock()
	ch, ok := c.subs[params.Subscription]
	c.subsMu.RUnlock()
	if !ok {
		return
	}

	var notif AccountNotification
	notif.Slot = params.Result.Context.Slot

	switch method {
	case "programNotification":
		var value wsProgramValue
		if err := json.Unmarshal(params.Result.Value, &value); err != nil {
			return
		}
		pk, err := ParsePubkey(value.Pubkey)
		if err != nil {
			return
		}
		acc, err := value.Account.decode(notif.Slot)
		if err != nil {
			return
		}
		notif.Pubkey = pk
		notif.Account = acc

	case "accountNotification":
		var value rawAccount
		if err := json.Unmarshal(params.Result.Value, &value); err != nil {
			return
		}
		acc, err := value.decode(notif.Slot)
		if err != nil {
			return
		}
		// Single-account subscriptions carry no pubkey in the payload; the
		// subscriber resolves it from the subscription it created.
		notif.Account = acc
	default:
		return
	}

	select {
	case ch <- notif:
	case <-c.done:
	}
}

// reconnect re-establishes the connection and replays active subscriptions.
// Returns false if the client was closed.
func (c *WSClientImpl) reconnect() bool {
	delay := c.config.ReconnectDelay

	for {
		select {
		case <-c.done:
			return false
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := c.connect(ctx)
		cancel()
		if err != nil {
			delay *= 2
			if delay > c.config.MaxReconnectDelay {
				delay = c.config.MaxReconnectDelay
			}
			continue
		}

		c.resubscribe()
		return true
	}
}

// resubscribe replays every active subscription on the fresh connection and
// rebinds the new subscription IDs to the existing delivery channels.
func (c *WSClientImpl) resubscribe() {
	c.activeSubsMu.Lock()
	pending := make(map[chan AccountNotification]subRequest, len(c.activeSubs))
	for ch, req := range c.activeSubs {
		pending[ch] = req
	}
	c.activeSubsMu.Unlock()

	c.subsMu.Lock()
	c.subs = make(map[int64]chan AccountNotification, len(pending))
	c.subsMu.Unlock()

	for ch, req := range pending {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		subID, err := c.sendSubscribe(ctx, req)
		cancel()
		if err != nil {
			continue
		}
		c.subsMu.Lock()
		c.subs[subID] = ch
		c.subsMu.Unlock()
	}
}

func (c *WSClientImpl) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				c.conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.connMu.Unlock()
		}
	}
}

// Close closes the WebSocket connection and stops background goroutines.
func (c *WSClientImpl) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)

	c.connMu.Lock()
	var err error
	if c.conn != nil {
		err = c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	c.wg.Wait()
	return err
}
