// Package content defines the licensable work model: items minted as
// on-chain license tokens, viewer identities, and the gated payload.
package content

import (
	"strings"
	"time"

	"github.com/newsprint/paywall/types"
)

// LicenseKind classifies how access to an item is sold.
type LicenseKind string

const (
	// DurationSubscription grants access for a fixed window recorded in
	// the ledger's expiry slot. A zero duration means permanent.
	DurationSubscription LicenseKind = "duration_subscription"

	// PermanentSinglePayment grants access forever after one payment.
	// Grants are recorded by the index, not the ledger's expiry slot.
	PermanentSinglePayment LicenseKind = "permanent_single_payment"

	// MeteredPerRequest never persists a grant; every retrieval must
	// carry fresh payment proof at the transport boundary.
	MeteredPerRequest LicenseKind = "metered_per_request"
)

// Valid reports whether k is a known license kind.
func (k LicenseKind) Valid() bool {
	switch k {
	case DurationSubscription, PermanentSinglePayment, MeteredPerRequest:
		return true
	}
	return false
}

// Address is a wallet-style viewer or creator identity. Comparison is
// case-insensitive; the canonical form is lowercase hex.
type Address string

// Normalize returns the canonical lowercase form.
func (a Address) Normalize() Address {
	return Address(strings.ToLower(strings.TrimSpace(string(a))))
}

// Equal reports case-insensitive identity equality.
func (a Address) Equal(other Address) bool {
	return a.Normalize() == other.Normalize()
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return strings.TrimSpace(string(a)) == ""
}

func (a Address) String() string { return string(a) }

// Item identifies a licensable work. Items are immutable after minting
// except for PayloadLocator, which is filled in once minting completes.
type Item struct {
	types.Entity
	ID              string       `json:"id"`
	Title           string       `json:"title"`
	Author          string       `json:"author"`
	CreatorID       Address      `json:"creator_id"`
	TokenID         string       `json:"token_id"`
	LicenseKind     LicenseKind  `json:"license_kind"`
	Price           types.Amount `json:"price"`
	DurationSeconds int64        `json:"duration_seconds"`
	Excerpt         string       `json:"excerpt"`
	Tags            []string     `json:"tags,omitempty"`
	PublishedAt     time.Time    `json:"published_at"`
	ParentIDs       []string     `json:"parent_ids,omitempty"`
	PayloadLocator  string       `json:"payload_locator,omitempty"`
}

// IsCreator reports whether viewer is the item's creator. This is a pure
// check against already-fetched metadata and never touches the network.
func (it *Item) IsCreator(viewer Address) bool {
	return !viewer.IsZero() && it.CreatorID.Equal(viewer)
}

// MeteredPaymentRequired reports whether retrieval of this item must carry
// a per-request payment proof. Pure function of the license kind.
func (it *Item) MeteredPaymentRequired() bool {
	return it.LicenseKind == MeteredPerRequest
}

// ListOpts filters catalog listings.
type ListOpts struct {
	Creator Address
	Kind    LicenseKind
	Limit   int
	Offset  int
}

// Payload is decoded gated content for one item.
type Payload struct {
	ContentID string    `json:"content_id"`
	Body      []byte    `json:"body"`
	MediaType string    `json:"media_type"`
	FetchedAt time.Time `json:"fetched_at"`
}
