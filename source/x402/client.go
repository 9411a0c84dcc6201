// Package x402 implements the source.Payloads boundary over HTTP with
// 402-style metered payment handling. A first request without proof of
// payment answers 402 with a machine-readable challenge; the client asks
// its ProofSigner for a proof header and retries once. Proof signing
// itself (the cryptography) lives behind the ProofSigner interface.
package x402

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/newsprint/paywall/content"
	"github.com/newsprint/paywall/source"
)

// ProofHeader carries the payment proof on retried requests.
const ProofHeader = "X-Payment"

// Challenge is the machine-readable payment-required response body.
type Challenge struct {
	Scheme    string `json:"scheme"`
	Network   string `json:"network"`
	Recipient string `json:"recipient"`
	Asset     string `json:"asset"`
	Amount    string `json:"amount"` // base units, decimal string
	Nonce     string `json:"nonce"`
	ExpiresAt int64  `json:"expires_at"`
}

// ProofSigner produces a payment proof for a challenge. Implementations
// wrap the wallet session; this package never touches key material.
type ProofSigner interface {
	SignPayment(ctx context.Context, c *Challenge) (proof string, err error)
}

var _ source.Payloads = (*Client)(nil)

// Client retrieves gated payloads, transparently settling x402
// challenges for metered items when a ProofSigner is configured.
type Client struct {
	httpc  *http.Client
	signer ProofSigner
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpc = c }
}

// WithProofSigner sets the signer used to answer 402 challenges.
func WithProofSigner(s ProofSigner) Option {
	return func(cl *Client) { cl.signer = s }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) { cl.logger = logger }
}

// New creates a payload client.
func New(opts ...Option) *Client {
	c := &Client{
		httpc:  &http.Client{Timeout: 30 * time.Second},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch implements source.Payloads.
func (c *Client) Fetch(ctx context.Context, item *content.Item) (*content.Payload, error) {
	if item.PayloadLocator == "" {
		return nil, fmt.Errorf("%w: no locator for %s", source.ErrPayloadUnavailable, item.ID)
	}

	resp, err := c.get(ctx, item.PayloadLocator, "")
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusPaymentRequired {
		challenge, cerr := decodeChallenge(resp)
		if cerr != nil {
			return nil, cerr
		}
		if c.signer == nil {
			return nil, fmt.Errorf("%w: %s", source.ErrPaymentProofRequired, item.ID)
		}

		proof, serr := c.signer.SignPayment(ctx, challenge)
		if serr != nil {
			return nil, fmt.Errorf("%w: sign payment: %w", source.ErrRejected, serr)
		}

		c.logger.Debug("retrying with payment proof",
			"content_id", item.ID,
			"amount", challenge.Amount,
			"recipient", challenge.Recipient,
		)
		resp, err = c.get(ctx, item.PayloadLocator, proof)
		if err != nil {
			return nil, err
		}
	}

	return decodePayload(item.ID, resp)
}

func (c *Client) get(ctx context.Context, locator, proof string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, fmt.Errorf("x402: build request: %w", err)
	}
	if proof != "" {
		req.Header.Set(ProofHeader, proof)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, source.Unavailable("payload fetch", err)
	}
	return resp, nil
}

func decodeChallenge(resp *http.Response) (*Challenge, error) {
	defer resp.Body.Close() //nolint:errcheck // read-side close

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, source.Unavailable("payment challenge", err)
	}

	var ch Challenge
	if err := json.Unmarshal(data, &ch); err != nil {
		return nil, source.Unavailable("payment challenge", err)
	}
	if ch.Recipient == "" || ch.Amount == "" {
		return nil, source.Unavailable("payment challenge", fmt.Errorf("incomplete challenge"))
	}
	return &ch, nil
}

func decodePayload(contentID string, resp *http.Response) (*content.Payload, error) {
	defer resp.Body.Close() //nolint:errcheck // read-side close

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusPaymentRequired:
		return nil, fmt.Errorf("%w: proof not accepted for %s", source.ErrPaymentProofRequired, contentID)
	case resp.StatusCode >= 500:
		return nil, source.Unavailable("payload fetch", fmt.Errorf("http status %d", resp.StatusCode))
	default:
		return nil, fmt.Errorf("%w: http status %d", source.ErrPayloadUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, source.Unavailable("payload read", err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body for %s", source.ErrPayloadUnavailable, contentID)
	}

	mediaType := "application/octet-stream"
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if parsed, _, err := mime.ParseMediaType(ct); err == nil {
			mediaType = parsed
		}
	}

	return &content.Payload{
		ContentID: contentID,
		Body:      body,
		MediaType: mediaType,
		FetchedAt: time.Now().UTC(),
	}, nil
}
