// Package access defines the access-log events batched to the store.
package access

import (
	"time"

	"github.com/newsprint/paywall/content"
	"github.com/newsprint/paywall/entitlement"
	"github.com/newsprint/paywall/id"
)

// Event records one resolved entitlement decision for analytics.
// Events are buffered in-process and flushed in batches; they are
// observational and never feed back into resolution.
type Event struct {
	ID        id.AccessEventID   `json:"id"`
	ContentID string             `json:"content_id"`
	Viewer    content.Address    `json:"viewer"`
	Granted   bool               `json:"granted"`
	Reason    entitlement.Reason `json:"reason"`
	Timestamp time.Time          `json:"timestamp"`
}

// QueryOpts filters access-log queries.
type QueryOpts struct {
	ContentID string
	Viewer    content.Address
	Start     time.Time
	End       time.Time
	Limit     int
	Offset    int
}
