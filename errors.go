package paywall

import (
	"errors"

	"github.com/newsprint/paywall/source"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("paywall: not found")
	ErrAlreadyExists = errors.New("paywall: already exists")
	ErrInvalidInput  = errors.New("paywall: invalid input")

	// Source errors, re-exported from the source package so callers can
	// test against either layer with errors.Is. ErrUnavailable marks a
	// transient transport failure against the ledger, the index, or the
	// payload host. It is never a denial: callers must treat it as
	// "unknown".
	ErrUnavailable       = source.ErrUnavailable
	ErrRejected          = source.ErrRejected
	ErrInsufficientFunds = source.ErrInsufficientFunds

	// Resolution errors
	ErrNoGrant     = errors.New("paywall: no grant for viewer")
	ErrViewerUnset = errors.New("paywall: viewer address unset")

	// Purchase errors
	ErrAttemptInFlight = errors.New("paywall: purchase attempt already in flight")
	ErrAlreadyGranted  = errors.New("paywall: viewer already has access")
	ErrTimeout         = errors.New("paywall: confirmation polling timed out")

	// Content errors
	ErrContentNotFound    = errors.New("paywall: content not found")
	ErrPayloadUnavailable = source.ErrPayloadUnavailable
	ErrLocatorUnset       = errors.New("paywall: payload locator not set")

	// Receipt errors
	ErrReceiptNotFound = errors.New("paywall: receipt not found")

	// Access log errors
	ErrAccessBufferFull = errors.New("paywall: access event buffer full")
)

// IsUnavailable reports whether err is a transient source failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
