// Package store defines the unified storage interface for the Paywall
// catalog, receipts, and access log. The purchase-attempt registry and
// payload cache are deliberately NOT here: both are process-local by
// design and owned by the engine.
package store

import (
	"context"
	"time"

	"github.com/newsprint/paywall/access"
	"github.com/newsprint/paywall/content"
	"github.com/newsprint/paywall/id"
	"github.com/newsprint/paywall/purchase"
)

// Store is the unified storage interface for all persisted Paywall data.
type Store interface {
	// Content catalog methods
	PutContent(ctx context.Context, item *content.Item) error
	GetContent(ctx context.Context, contentID string) (*content.Item, error)
	ListContent(ctx context.Context, opts content.ListOpts) ([]*content.Item, error)
	SetPayloadLocator(ctx context.Context, contentID, locator string) error

	// Receipt methods
	RecordReceipt(ctx context.Context, r *purchase.Receipt) error
	GetReceipt(ctx context.Context, receiptID id.ReceiptID) (*purchase.Receipt, error)
	ListReceipts(ctx context.Context, viewer content.Address, opts purchase.ListOpts) ([]*purchase.Receipt, error)

	// Access log methods
	IngestAccessBatch(ctx context.Context, events []*access.Event) error
	QueryAccess(ctx context.Context, opts access.QueryOpts) ([]*access.Event, error)
	PurgeAccess(ctx context.Context, before time.Time) (int64, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
