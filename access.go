package paywall

import (
	"context"
	"time"

	"github.com/newsprint/paywall/access"
	"github.com/newsprint/paywall/entitlement"
	"github.com/newsprint/paywall/id"
)

// recordAccess enqueues one access event for the flush worker. Recording
// is strictly best-effort: a full buffer drops the event rather than
// blocking resolution.
func (e *Engine) recordAccess(d *entitlement.Decision) {
	event := &access.Event{
		ID:        id.NewAccessEventID(),
		ContentID: d.ContentID,
		Viewer:    d.Viewer,
		Granted:   d.Granted,
		Reason:    d.Reason,
		Timestamp: d.CheckedAt,
	}

	select {
	case e.accessBuffer <- event:
	default:
		e.logger.Warn("access event buffer full, dropping event",
			"content_id", d.ContentID,
		)
	}
}

// QueryAccess reads back persisted access events.
func (e *Engine) QueryAccess(ctx context.Context, opts access.QueryOpts) ([]*access.Event, error) {
	return e.store.QueryAccess(ctx, opts)
}

// PurgeAccess deletes access events older than the cutoff and returns the
// number removed. Retention is the operator's call; nothing purges
// automatically.
func (e *Engine) PurgeAccess(ctx context.Context, before time.Time) (int64, error) {
	return e.store.PurgeAccess(ctx, before)
}

// accessFlushWorker flushes access events to the store in batches.
func (e *Engine) accessFlushWorker(ctx context.Context) {
	defer e.wg.Done()

	batch := make([]*access.Event, 0, e.accessBatchSize)
	ticker := time.NewTicker(e.accessFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			// Final flush
			if len(batch) > 0 {
				e.flushAccessBatch(ctx, batch)
			}
			return

		case event := <-e.accessBuffer:
			batch = append(batch, event)
			if len(batch) >= e.accessBatchSize {
				e.flushAccessBatch(ctx, batch)
				batch = make([]*access.Event, 0, e.accessBatchSize)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				e.flushAccessBatch(ctx, batch)
				batch = make([]*access.Event, 0, e.accessBatchSize)
			}
		}
	}
}

func (e *Engine) flushAccessBatch(ctx context.Context, batch []*access.Event) {
	start := time.Now()

	if err := e.store.IngestAccessBatch(ctx, batch); err != nil {
		e.logger.Error("failed to flush access batch",
			"error", err,
			"batch_size", len(batch),
		)
		return
	}

	elapsed := time.Since(start)
	e.plugins.EmitAccessFlushed(ctx, len(batch), elapsed)

	e.logger.Debug("flushed access batch",
		"batch_size", len(batch),
		"elapsed_ms", elapsed.Milliseconds(),
	)
}
