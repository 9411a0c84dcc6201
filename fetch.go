package paywall

import (
	"context"
	"time"

	"github.com/newsprint/paywall/content"
)

// fetchFailure remembers a failed retrieval briefly so a transient error
// does not wedge callers, while a later retry is still allowed.
type fetchFailure struct {
	err error
	at  time.Time
}

// FetchContent retrieves the gated payload for a content item, exactly
// once per id: concurrent callers await the same in-flight retrieval,
// and a successful payload is memoized for the process lifetime.
//
// Callers must have already observed granted=true from Resolve for the
// requesting viewer. Retrieval and authorization are separate concerns;
// this boundary does not re-check entitlement. For metered items the
// configured payload source carries the per-request payment exchange.
func (e *Engine) FetchContent(ctx context.Context, contentID string) (*content.Payload, error) {
	if p, failed := e.cachedPayload(contentID); p != nil || failed != nil {
		if p != nil {
			return p, nil
		}
		return nil, failed
	}

	v, err, _ := e.fetchGroup.Do(contentID, func() (interface{}, error) {
		// A racing caller may have populated the cache while this call
		// was queued behind the flight.
		if p, failed := e.cachedPayload(contentID); p != nil || failed != nil {
			if p != nil {
				return p, nil
			}
			return nil, failed
		}
		return e.retrievePayload(ctx, contentID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*content.Payload), nil
}

// cachedPayload consults the positive and negative caches. The negative
// entry expires after the configured TTL.
func (e *Engine) cachedPayload(contentID string) (*content.Payload, error) {
	e.fetchMu.RLock()
	defer e.fetchMu.RUnlock()

	if p, ok := e.payloadCache[contentID]; ok {
		return p, nil
	}
	if f, ok := e.fetchFailures[contentID]; ok && time.Since(f.at) < e.fetchFailureTTL {
		return nil, f.err
	}
	return nil, nil
}

func (e *Engine) retrievePayload(ctx context.Context, contentID string) (*content.Payload, error) {
	item, err := e.store.GetContent(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if item.PayloadLocator == "" {
		return nil, e.rememberFailure(contentID, ErrLocatorUnset)
	}
	if e.payloads == nil {
		return nil, e.rememberFailure(contentID, ErrUnavailable)
	}

	start := time.Now()
	payload, err := e.payloads.Fetch(ctx, item)
	if err != nil {
		e.logger.Warn("payload fetch failed",
			"content_id", contentID,
			"error", err,
		)
		return nil, e.rememberFailure(contentID, err)
	}

	e.fetchMu.Lock()
	e.payloadCache[contentID] = payload
	delete(e.fetchFailures, contentID)
	e.fetchMu.Unlock()

	e.plugins.EmitPayloadFetched(ctx, contentID, len(payload.Body), time.Since(start))

	return payload, nil
}

// fetchSettling retrieves the payload for confirmation polling. It honors
// the positive cache and joins the shared flight, but skips the negative
// cache: while an attempt is settling, the poll cadence sets the retry
// rhythm, not the failure TTL.
func (e *Engine) fetchSettling(ctx context.Context, contentID string) (*content.Payload, error) {
	e.fetchMu.RLock()
	p, ok := e.payloadCache[contentID]
	e.fetchMu.RUnlock()
	if ok {
		return p, nil
	}

	v, err, _ := e.fetchGroup.Do(contentID, func() (interface{}, error) {
		return e.retrievePayload(ctx, contentID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*content.Payload), nil
}

func (e *Engine) rememberFailure(contentID string, err error) error {
	e.fetchMu.Lock()
	e.fetchFailures[contentID] = fetchFailure{err: err, at: time.Now()}
	e.fetchMu.Unlock()
	return err
}
