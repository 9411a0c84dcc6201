// Package ledgerrpc implements the source.Ledger boundary over a
// JSON-RPC endpoint fronting the license-token chain and its wallet
// session. Transport failures surface as source.ErrUnavailable; signer
// declines and balance refusals map to their own sentinels.
package ledgerrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/newsprint/paywall/content"
	"github.com/newsprint/paywall/source"
)

// RPC methods exposed by the license endpoint.
const (
	methodSubscriptionExpiry = "origin_subscriptionExpiry"
	methodBuyAccess          = "origin_buyAccess"
)

// EIP-1193 style provider error codes.
const (
	codeUserRejected = 4001
	codeInternal     = -32000
)

var _ source.Ledger = (*Client)(nil)

// Client is a JSON-RPC 2.0 client for the license ledger.
type Client struct {
	endpoint string
	httpc    *http.Client
	logger   *slog.Logger
	reqID    atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpc = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) { cl.logger = logger }
}

// New creates a ledger RPC client for the given endpoint.
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		httpc:    &http.Client{Timeout: 15 * time.Second},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubscriptionExpiry implements source.Ledger.
func (c *Client) SubscriptionExpiry(ctx context.Context, viewer content.Address, contentID string) (int64, bool, error) {
	var raw string
	err := c.call(ctx, methodSubscriptionExpiry, []any{viewer.Normalize().String(), contentID}, &raw)
	if err != nil {
		return 0, false, err
	}
	if raw == "" || raw == "0x0" || raw == "0" {
		return 0, false, nil
	}

	expiry, err := parseQuantity(raw)
	if err != nil {
		return 0, false, source.Unavailable(methodSubscriptionExpiry, err)
	}
	return expiry, true, nil
}

// SubmitPurchase implements source.Ledger. The endpoint brokers the
// wallet session, so the call blocks until the signer approves, declines,
// or the transport gives out.
func (c *Client) SubmitPurchase(ctx context.Context, viewer content.Address, item *content.Item) (string, error) {
	params := []any{map[string]string{
		"from":    viewer.Normalize().String(),
		"tokenId": item.TokenID,
		"value":   item.Price.BaseString(),
	}}

	var txRef string
	if err := c.call(ctx, methodBuyAccess, params, &txRef); err != nil {
		return "", err
	}
	if txRef == "" {
		return "", source.Unavailable(methodBuyAccess, fmt.Errorf("empty transaction reference"))
	}

	c.logger.Debug("purchase submitted",
		"viewer", viewer.Normalize(),
		"token_id", item.TokenID,
		"tx_ref", txRef,
	)
	return txRef, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (c *Client) call(ctx context.Context, method string, params, result any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.reqID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("ledgerrpc: encode %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ledgerrpc: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return source.Unavailable(method, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-side close

	if resp.StatusCode != http.StatusOK {
		return source.Unavailable(method, fmt.Errorf("http status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return source.Unavailable(method, err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return source.Unavailable(method, err)
	}
	if rpcResp.Error != nil {
		return mapRPCError(rpcResp.Error)
	}
	if result != nil && len(rpcResp.Result) > 0 && string(rpcResp.Result) != "null" {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return source.Unavailable(method, err)
		}
	}
	return nil
}

// mapRPCError translates provider error codes into the source taxonomy.
func mapRPCError(e *rpcError) error {
	switch {
	case e.Code == codeUserRejected:
		return fmt.Errorf("%w: %s", source.ErrRejected, e.Message)
	case e.Code == codeInternal && strings.Contains(strings.ToLower(e.Message), "insufficient funds"):
		return fmt.Errorf("%w: %s", source.ErrInsufficientFunds, e.Message)
	default:
		return source.Unavailable("rpc", e)
	}
}

// parseQuantity accepts decimal and 0x-prefixed hex quantities.
func parseQuantity(s string) (int64, error) {
	if v, ok := strings.CutPrefix(s, "0x"); ok {
		return strconv.ParseInt(v, 16, 64)
	}
	return strconv.ParseInt(s, 10, 64)
}
