// Package entitlement defines the access decision returned by the resolver.
package entitlement

import (
	"time"

	"github.com/newsprint/paywall/content"
)

// Reason explains why a decision granted or denied access.
type Reason string

const (
	// IsCreator: the viewer authored the item.
	IsCreator Reason = "is_creator"

	// ActiveSubscription: the ledger records an unexpired subscription.
	ActiveSubscription Reason = "active_subscription"

	// PermanentGrantRecorded: the index records a permanent grant.
	PermanentGrantRecorded Reason = "permanent_grant_recorded"

	// MeteredPaymentRequired: access is never pre-granted; retrieval
	// must carry a fresh payment proof.
	MeteredPaymentRequired Reason = "metered_payment_required"

	// NoGrant: access was definitively evaluated and denied, or a
	// source outage degraded the check to locked (fail-closed).
	NoGrant Reason = "no_grant"
)

// Decision is the outcome of one entitlement resolution. Decisions are
// ephemeral: they are recomputed on every call and never cached, because
// ledger and index state can change outside this process at any time.
type Decision struct {
	Granted   bool            `json:"granted"`
	Reason    Reason          `json:"reason"`
	Viewer    content.Address `json:"viewer"`
	ContentID string          `json:"content_id"`
	CheckedAt time.Time       `json:"checked_at"`
}
