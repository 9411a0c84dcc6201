package paywall

import (
	"context"
	"time"

	"github.com/newsprint/paywall/content"
	"github.com/newsprint/paywall/entitlement"
)

// Resolve derives a fresh entitlement decision for (viewer, item). Rules
// are evaluated in strict precedence order, short-circuiting on the first
// match: creator, active subscription, recorded permanent grant, metered
// gate, no grant. Decisions are never cached: ledger and index state can
// change at any time outside this process's control.
//
// Transport failures against either source degrade to a denial rather
// than an error. Paid content fails closed.
func (e *Engine) Resolve(ctx context.Context, viewer content.Address, item *content.Item) *entitlement.Decision {
	d := &entitlement.Decision{
		Viewer:    viewer.Normalize(),
		ContentID: item.ID,
		Reason:    entitlement.NoGrant,
		CheckedAt: time.Now().UTC(),
	}

	switch {
	case viewer.IsZero():
		// No identity, nothing to check against.

	case item.IsCreator(viewer):
		d.Granted = true
		d.Reason = entitlement.IsCreator

	default:
		e.resolveByKind(ctx, viewer, item, d)
	}

	e.recordAccess(d)
	e.plugins.EmitDecisionResolved(ctx, d)

	return d
}

func (e *Engine) resolveByKind(ctx context.Context, viewer content.Address, item *content.Item, d *entitlement.Decision) {
	switch item.LicenseKind {
	case content.DurationSubscription:
		if e.ledger == nil {
			return
		}
		expiry, ok, err := e.ledger.SubscriptionExpiry(ctx, viewer, item.ID)
		if err != nil {
			e.sourceFailed(ctx, "ledger", item.ID, err)
			return
		}
		if ok && expiry > time.Now().Unix() {
			d.Granted = true
			d.Reason = entitlement.ActiveSubscription
		}

	case content.PermanentSinglePayment:
		if e.index == nil {
			return
		}
		has, err := e.index.HasPermanentGrant(ctx, viewer, item.ID)
		if err != nil {
			e.sourceFailed(ctx, "index", item.ID, err)
			return
		}
		if has {
			d.Granted = true
			d.Reason = entitlement.PermanentGrantRecorded
		}

	case content.MeteredPerRequest:
		// Never pre-granted: every retrieval carries fresh payment proof
		// at the fetch boundary.
		d.Reason = entitlement.MeteredPaymentRequired
	}
}

// sourceFailed logs a transport failure absorbed by the fail-closed policy.
func (e *Engine) sourceFailed(ctx context.Context, name, contentID string, err error) {
	e.logger.Warn("source unavailable, failing closed",
		"source", name,
		"content_id", contentID,
		"error", err,
	)
	e.plugins.EmitSourceUnavailable(ctx, name, err)
}

// ResolveByID loads the item from the catalog and resolves against it.
func (e *Engine) ResolveByID(ctx context.Context, viewer content.Address, contentID string) (*entitlement.Decision, error) {
	item, err := e.store.GetContent(ctx, contentID)
	if err != nil {
		return nil, err
	}
	return e.Resolve(ctx, viewer, item), nil
}

// Preview returns the ungated excerpt for a content item. A denied or
// unknown entitlement always degrades to "show excerpt, offer purchase",
// never to a blank state.
func (e *Engine) Preview(ctx context.Context, contentID string) (string, error) {
	item, err := e.store.GetContent(ctx, contentID)
	if err != nil {
		return "", err
	}
	return content.Truncate(item.Excerpt, 280), nil
}
