// Package plugin provides an extensible plugin system for the paywall engine.
// Plugins can hook into various lifecycle events to extend functionality.
package plugin

import (
	"context"
	"time"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Content lifecycle hooks
// ──────────────────────────────────────────────────

// OnContentRegistered is called when a new content item is registered.
type OnContentRegistered interface {
	Plugin
	OnContentRegistered(ctx context.Context, item interface{}) error
}

// OnLocatorUpdated is called when a content payload locator changes.
type OnLocatorUpdated interface {
	Plugin
	OnLocatorUpdated(ctx context.Context, contentID, locator string) error
}

// ──────────────────────────────────────────────────
// Entitlement hooks
// ──────────────────────────────────────────────────

// OnDecisionResolved is called when an entitlement decision is produced.
type OnDecisionResolved interface {
	Plugin
	OnDecisionResolved(ctx context.Context, decision interface{}) error
}

// OnSourceUnavailable is called when a data source fails during resolution.
type OnSourceUnavailable interface {
	Plugin
	OnSourceUnavailable(ctx context.Context, source string, err error) error
}

// ──────────────────────────────────────────────────
// Purchase lifecycle hooks
// ──────────────────────────────────────────────────

// OnPurchaseStarted is called when a purchase attempt begins.
type OnPurchaseStarted interface {
	Plugin
	OnPurchaseStarted(ctx context.Context, attempt interface{}) error
}

// OnPurchaseStateChanged is called on every purchase state transition.
type OnPurchaseStateChanged interface {
	Plugin
	OnPurchaseStateChanged(ctx context.Context, transition interface{}) error
}

// OnPurchaseSettled is called when a purchase reaches the granted state.
type OnPurchaseSettled interface {
	Plugin
	OnPurchaseSettled(ctx context.Context, receipt interface{}) error
}

// OnPurchaseFailed is called when a purchase terminates in failure.
type OnPurchaseFailed interface {
	Plugin
	OnPurchaseFailed(ctx context.Context, attempt interface{}, err error) error
}

// ──────────────────────────────────────────────────
// Payload hooks
// ──────────────────────────────────────────────────

// OnPayloadFetched is called when a content payload is retrieved from its host.
type OnPayloadFetched interface {
	Plugin
	OnPayloadFetched(ctx context.Context, contentID string, size int, elapsed time.Duration) error
}

// ──────────────────────────────────────────────────
// Access log hooks
// ──────────────────────────────────────────────────

// OnAccessFlushed is called when buffered access events are flushed to the store.
type OnAccessFlushed interface {
	Plugin
	OnAccessFlushed(ctx context.Context, count int, elapsed time.Duration) error
}

// ──────────────────────────────────────────────────
// Payment proof signers
// ──────────────────────────────────────────────────

// ProofSignerPlugin provides a metered payment proof signer implementation.
type ProofSignerPlugin interface {
	Plugin
	Signer() interface{} // Returns x402.ProofSigner
}
