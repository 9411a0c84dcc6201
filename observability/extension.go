// Package observability provides a metrics extension for the paywall
// engine that records lifecycle event counts via an injected MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/newsprint/paywall/entitlement"
	"github.com/newsprint/paywall/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                 = (*MetricsExtension)(nil)
	_ plugin.OnInit                 = (*MetricsExtension)(nil)
	_ plugin.OnContentRegistered    = (*MetricsExtension)(nil)
	_ plugin.OnLocatorUpdated       = (*MetricsExtension)(nil)
	_ plugin.OnDecisionResolved     = (*MetricsExtension)(nil)
	_ plugin.OnSourceUnavailable    = (*MetricsExtension)(nil)
	_ plugin.OnPurchaseStarted      = (*MetricsExtension)(nil)
	_ plugin.OnPurchaseStateChanged = (*MetricsExtension)(nil)
	_ plugin.OnPurchaseSettled      = (*MetricsExtension)(nil)
	_ plugin.OnPurchaseFailed       = (*MetricsExtension)(nil)
	_ plugin.OnPayloadFetched       = (*MetricsExtension)(nil)
	_ plugin.OnAccessFlushed        = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as an engine plugin to automatically track paywall metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Catalog metrics
	ContentRegistered Counter
	LocatorUpdated    Counter

	// Entitlement metrics
	DecisionsResolved Counter
	DecisionsGranted  Counter
	DecisionsDenied   Counter
	SourceFailures    Counter

	// Purchase metrics
	PurchaseStarted     Counter
	PurchaseTransitions Counter
	PurchaseSettled     Counter
	PurchaseFailed      Counter

	// Payload metrics
	PayloadFetched      Counter
	PayloadBytes        Histogram
	PayloadFetchLatency Histogram

	// Access log metrics
	AccessBatchSize    Histogram
	AccessFlushLatency Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Catalog metrics
		ContentRegistered: factory.Counter("paywall.content.registered"),
		LocatorUpdated:    factory.Counter("paywall.content.locator.updated"),

		// Entitlement metrics
		DecisionsResolved: factory.Counter("paywall.entitlement.resolved"),
		DecisionsGranted:  factory.Counter("paywall.entitlement.granted"),
		DecisionsDenied:   factory.Counter("paywall.entitlement.denied"),
		SourceFailures:    factory.Counter("paywall.source.failures"),

		// Purchase metrics
		PurchaseStarted:     factory.Counter("paywall.purchase.started"),
		PurchaseTransitions: factory.Counter("paywall.purchase.transitions"),
		PurchaseSettled:     factory.Counter("paywall.purchase.settled"),
		PurchaseFailed:      factory.Counter("paywall.purchase.failed"),

		// Payload metrics
		PayloadFetched:      factory.Counter("paywall.payload.fetched"),
		PayloadBytes:        factory.Histogram("paywall.payload.bytes"),
		PayloadFetchLatency: factory.Histogram("paywall.payload.fetch.latency_ms"),

		// Access log metrics
		AccessBatchSize:    factory.Histogram("paywall.access.batch.size"),
		AccessFlushLatency: factory.Histogram("paywall.access.flush.latency_ms"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Catalog lifecycle hooks
// ──────────────────────────────────────────────────

// OnContentRegistered implements plugin.OnContentRegistered.
func (m *MetricsExtension) OnContentRegistered(_ context.Context, _ interface{}) error {
	m.ContentRegistered.Inc()
	return nil
}

// OnLocatorUpdated implements plugin.OnLocatorUpdated.
func (m *MetricsExtension) OnLocatorUpdated(_ context.Context, _, _ string) error {
	m.LocatorUpdated.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Entitlement lifecycle hooks
// ──────────────────────────────────────────────────

// OnDecisionResolved implements plugin.OnDecisionResolved.
func (m *MetricsExtension) OnDecisionResolved(_ context.Context, decision interface{}) error {
	m.DecisionsResolved.Inc()
	if d, ok := decision.(*entitlement.Decision); ok {
		if d.Granted {
			m.DecisionsGranted.Inc()
		} else {
			m.DecisionsDenied.Inc()
		}
	}
	return nil
}

// OnSourceUnavailable implements plugin.OnSourceUnavailable.
func (m *MetricsExtension) OnSourceUnavailable(_ context.Context, _ string, _ error) error {
	m.SourceFailures.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Purchase lifecycle hooks
// ──────────────────────────────────────────────────

// OnPurchaseStarted implements plugin.OnPurchaseStarted.
func (m *MetricsExtension) OnPurchaseStarted(_ context.Context, _ interface{}) error {
	m.PurchaseStarted.Inc()
	return nil
}

// OnPurchaseStateChanged implements plugin.OnPurchaseStateChanged.
func (m *MetricsExtension) OnPurchaseStateChanged(_ context.Context, _ interface{}) error {
	m.PurchaseTransitions.Inc()
	return nil
}

// OnPurchaseSettled implements plugin.OnPurchaseSettled.
func (m *MetricsExtension) OnPurchaseSettled(_ context.Context, _ interface{}) error {
	m.PurchaseSettled.Inc()
	return nil
}

// OnPurchaseFailed implements plugin.OnPurchaseFailed.
func (m *MetricsExtension) OnPurchaseFailed(_ context.Context, _ interface{}, _ error) error {
	m.PurchaseFailed.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Payload lifecycle hooks
// ──────────────────────────────────────────────────

// OnPayloadFetched implements plugin.OnPayloadFetched.
func (m *MetricsExtension) OnPayloadFetched(_ context.Context, _ string, size int, elapsed time.Duration) error {
	m.PayloadFetched.Inc()
	m.PayloadBytes.Observe(float64(size))
	m.PayloadFetchLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}

// ──────────────────────────────────────────────────
// Access log lifecycle hooks
// ──────────────────────────────────────────────────

// OnAccessFlushed implements plugin.OnAccessFlushed.
func (m *MetricsExtension) OnAccessFlushed(_ context.Context, count int, elapsed time.Duration) error {
	m.AccessBatchSize.Observe(float64(count))
	m.AccessFlushLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}
