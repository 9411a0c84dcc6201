// Package audithook bridges paywall lifecycle events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not depend on
// any concrete audit system. Callers inject a RecorderFunc adapter that
// bridges to their backend at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/newsprint/paywall/entitlement"
	"github.com/newsprint/paywall/plugin"
	"github.com/newsprint/paywall/purchase"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin              = (*Extension)(nil)
	_ plugin.OnContentRegistered = (*Extension)(nil)
	_ plugin.OnLocatorUpdated    = (*Extension)(nil)
	_ plugin.OnDecisionResolved  = (*Extension)(nil)
	_ plugin.OnSourceUnavailable = (*Extension)(nil)
	_ plugin.OnPurchaseStarted   = (*Extension)(nil)
	_ plugin.OnPurchaseSettled   = (*Extension)(nil)
	_ plugin.OnPurchaseFailed    = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement. It is
// defined locally so this package does not import the backend directly;
// callers inject the concrete recorder at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges paywall lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Catalog lifecycle hooks
// ──────────────────────────────────────────────────

// OnContentRegistered implements plugin.OnContentRegistered.
func (e *Extension) OnContentRegistered(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionContentRegistered, SeverityInfo, OutcomeSuccess,
		ResourceContent, "", CategoryCatalog, nil,
		"event", "content_registered",
	)
}

// OnLocatorUpdated implements plugin.OnLocatorUpdated.
func (e *Extension) OnLocatorUpdated(ctx context.Context, contentID, _ string) error {
	return e.record(ctx, ActionLocatorUpdated, SeverityInfo, OutcomeSuccess,
		ResourceContent, contentID, CategoryCatalog, nil,
		"content_id", contentID,
	)
}

// ──────────────────────────────────────────────────
// Entitlement lifecycle hooks
// ──────────────────────────────────────────────────

// OnDecisionResolved implements plugin.OnDecisionResolved.
func (e *Extension) OnDecisionResolved(ctx context.Context, decision interface{}) error {
	// Only audit denied decisions to reduce noise
	d, ok := decision.(*entitlement.Decision)
	if !ok || d.Granted {
		return nil
	}

	return e.record(ctx, ActionEntitlementDenied, SeverityInfo, OutcomeFailure,
		ResourceEntitlement, d.ContentID, CategoryAccess, nil,
		"viewer", string(d.Viewer),
		"content_id", d.ContentID,
		"reason", string(d.Reason),
	)
}

// OnSourceUnavailable implements plugin.OnSourceUnavailable.
func (e *Extension) OnSourceUnavailable(ctx context.Context, source string, err error) error {
	return e.record(ctx, ActionSourceUnavailable, SeverityWarning, OutcomeFailure,
		ResourceEntitlement, "", CategoryAccess, err,
		"source", source,
	)
}

// ──────────────────────────────────────────────────
// Purchase lifecycle hooks
// ──────────────────────────────────────────────────

// OnPurchaseStarted implements plugin.OnPurchaseStarted.
func (e *Extension) OnPurchaseStarted(ctx context.Context, attempt interface{}) error {
	var contentID, viewer string
	if a, ok := attempt.(*purchase.Attempt); ok {
		contentID = a.ContentID
		viewer = string(a.Viewer)
	}

	return e.record(ctx, ActionPurchaseStarted, SeverityInfo, OutcomeSuccess,
		ResourcePurchase, contentID, CategoryPayment, nil,
		"viewer", viewer,
		"content_id", contentID,
	)
}

// OnPurchaseSettled implements plugin.OnPurchaseSettled.
func (e *Extension) OnPurchaseSettled(ctx context.Context, receipt interface{}) error {
	var contentID, viewer, txRef string
	if r, ok := receipt.(*purchase.Receipt); ok {
		contentID = r.ContentID
		viewer = string(r.Viewer)
		txRef = r.TxRef
	}

	return e.record(ctx, ActionPurchaseSettled, SeverityInfo, OutcomeSuccess,
		ResourcePurchase, contentID, CategoryPayment, nil,
		"viewer", viewer,
		"content_id", contentID,
		"tx_ref", txRef,
	)
}

// OnPurchaseFailed implements plugin.OnPurchaseFailed.
func (e *Extension) OnPurchaseFailed(ctx context.Context, attempt interface{}, err error) error {
	var contentID, viewer, cause string
	if a, ok := attempt.(*purchase.Attempt); ok {
		contentID = a.ContentID
		viewer = string(a.Viewer)
		cause = string(a.Cause)
	}

	return e.record(ctx, ActionPurchaseFailed, SeverityWarning, OutcomeFailure,
		ResourcePurchase, contentID, CategoryPayment, err,
		"viewer", viewer,
		"content_id", contentID,
		"cause", cause,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
