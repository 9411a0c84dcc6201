// Package purchase defines the purchase attempt state machine records
// and the receipts persisted for settled purchases.
package purchase

import (
	"time"

	"github.com/newsprint/paywall/content"
	"github.com/newsprint/paywall/id"
	"github.com/newsprint/paywall/types"
)

// State is a purchase attempt's position in its lifecycle.
type State string

const (
	StateIdle                       State = "idle"
	StateSubmitting                 State = "submitting"
	StateAwaitingLedgerConfirmation State = "awaiting_ledger_confirmation"
	StateAwaitingIndexConfirmation  State = "awaiting_index_confirmation"
	StateGranted                    State = "granted"
	StateFailed                     State = "failed"
)

// Terminal reports whether the state ends the attempt. Terminal attempts
// release their (viewer, content) key for a fresh request.
func (s State) Terminal() bool {
	return s == StateGranted || s == StateFailed
}

// FailCause categorizes a terminal failure for user-facing display.
type FailCause string

const (
	CauseRejected          FailCause = "rejected"
	CauseInsufficientFunds FailCause = "insufficient_funds"
	CauseUnavailable       FailCause = "unavailable"
	CauseTimeout           FailCause = "timeout"
)

// Attempt tracks one in-flight purchase. Exactly one attempt may be
// active per (viewer, content) pair at any instant.
type Attempt struct {
	ID         id.AttemptID    `json:"id"`
	ContentID  string          `json:"content_id"`
	Viewer     content.Address `json:"viewer"`
	State      State           `json:"state"`
	TxRef      string          `json:"tx_ref,omitempty"`
	Cause      FailCause       `json:"cause,omitempty"`
	Err        error           `json:"-"`
	StartedAt  time.Time       `json:"started_at"`
	LastPollAt time.Time       `json:"last_poll_at,omitempty"`
}

// Key returns the registry key for the attempt's (viewer, content) pair.
func Key(viewer content.Address, contentID string) string {
	return string(viewer.Normalize()) + "|" + contentID
}

// Transition is one observable state change, delivered to subscribers in
// the order transitions occur within the attempt.
type Transition struct {
	Attempt Attempt   `json:"attempt"`
	From    State     `json:"from"`
	To      State     `json:"to"`
	At      time.Time `json:"at"`
}

// Receipt records a settled purchase. Receipts are written once when an
// attempt reaches Granted and are the durable audit trail of payments.
type Receipt struct {
	types.Entity
	ID        id.ReceiptID        `json:"id"`
	ContentID string              `json:"content_id"`
	Viewer    content.Address     `json:"viewer"`
	Kind      content.LicenseKind `json:"kind"`
	Amount    types.Amount        `json:"amount"`
	TxRef     string              `json:"tx_ref"`
	SettledAt time.Time           `json:"settled_at"`
}

// ListOpts filters receipt listings.
type ListOpts struct {
	ContentID string
	Limit     int
	Offset    int
}
