// Package source defines the narrow adapter boundaries over the three
// independently-consistent systems the engine reconciles: the ledger
// (authoritative, slow to settle), the index (fast, lagging), and the
// metered-payment payload host (immediate, stateless per request).
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/newsprint/paywall/content"
)

// Sentinel errors shared by all adapters.
var (
	// ErrUnavailable marks a transient transport failure. Callers must
	// treat it as "unknown", never as "denied".
	ErrUnavailable = errors.New("source: unavailable")

	// ErrRejected means the viewer declined the signing prompt.
	ErrRejected = errors.New("source: rejected by signer")

	// ErrInsufficientFunds means the ledger refused the purchase for
	// lack of balance.
	ErrInsufficientFunds = errors.New("source: insufficient funds")

	// ErrPayloadUnavailable means the locator resolved to an empty or
	// malformed resource.
	ErrPayloadUnavailable = errors.New("source: payload unavailable")

	// ErrPaymentProofRequired means the payload host demanded a payment
	// proof and no signer was configured to produce one.
	ErrPaymentProofRequired = errors.New("source: payment proof required")
)

// Unavailable wraps a transport error with the ErrUnavailable sentinel so
// callers can test with errors.Is while keeping the underlying cause.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}

// IsUnavailable reports whether err is a transient source failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// Ledger is the authoritative chain boundary.
type Ledger interface {
	// SubscriptionExpiry returns the unix-seconds expiry recorded for
	// (viewer, content), with ok=false when no record exists. The caller
	// compares the value against wall-clock time.
	SubscriptionExpiry(ctx context.Context, viewer content.Address, contentID string) (expiry int64, ok bool, err error)

	// SubmitPurchase broadcasts a ledger-settled purchase transaction
	// and returns its transaction reference. It may block on an external
	// signing prompt and fail with ErrRejected, ErrInsufficientFunds, or
	// ErrUnavailable.
	SubmitPurchase(ctx context.Context, viewer content.Address, item *content.Item) (txRef string, err error)
}

// Index is the eventually-consistent subgraph boundary. Its lag behind
// the ledger is bounded in practice by tens of seconds to minutes.
type Index interface {
	// HasPermanentGrant reports whether the index records a permanent
	// grant for (viewer, content). Viewer identity is matched lowercased.
	HasPermanentGrant(ctx context.Context, viewer content.Address, contentID string) (bool, error)
}

// Payloads retrieves gated content bodies by the item's payload locator.
// For metered items the implementation carries the per-request payment
// exchange; persistent-license items fetch plainly.
type Payloads interface {
	Fetch(ctx context.Context, item *content.Item) (*content.Payload, error)
}
