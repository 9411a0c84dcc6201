package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit                 []OnInit
	onShutdown             []OnShutdown
	onContentRegistered    []OnContentRegistered
	onLocatorUpdated       []OnLocatorUpdated
	onDecisionResolved     []OnDecisionResolved
	onSourceUnavailable    []OnSourceUnavailable
	onPurchaseStarted      []OnPurchaseStarted
	onPurchaseStateChanged []OnPurchaseStateChanged
	onPurchaseSettled      []OnPurchaseSettled
	onPurchaseFailed       []OnPurchaseFailed
	onPayloadFetched       []OnPayloadFetched
	onAccessFlushed        []OnAccessFlushed
	proofSigners           []ProofSignerPlugin
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnContentRegistered); ok {
		r.onContentRegistered = append(r.onContentRegistered, v)
	}
	if v, ok := p.(OnLocatorUpdated); ok {
		r.onLocatorUpdated = append(r.onLocatorUpdated, v)
	}
	if v, ok := p.(OnDecisionResolved); ok {
		r.onDecisionResolved = append(r.onDecisionResolved, v)
	}
	if v, ok := p.(OnSourceUnavailable); ok {
		r.onSourceUnavailable = append(r.onSourceUnavailable, v)
	}
	if v, ok := p.(OnPurchaseStarted); ok {
		r.onPurchaseStarted = append(r.onPurchaseStarted, v)
	}
	if v, ok := p.(OnPurchaseStateChanged); ok {
		r.onPurchaseStateChanged = append(r.onPurchaseStateChanged, v)
	}
	if v, ok := p.(OnPurchaseSettled); ok {
		r.onPurchaseSettled = append(r.onPurchaseSettled, v)
	}
	if v, ok := p.(OnPurchaseFailed); ok {
		r.onPurchaseFailed = append(r.onPurchaseFailed, v)
	}
	if v, ok := p.(OnPayloadFetched); ok {
		r.onPayloadFetched = append(r.onPayloadFetched, v)
	}
	if v, ok := p.(OnAccessFlushed); ok {
		r.onAccessFlushed = append(r.onAccessFlushed, v)
	}
	if v, ok := p.(ProofSignerPlugin); ok {
		r.proofSigners = append(r.proofSigners, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	// Check each interface
	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	// List all interfaces to check
	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnContentRegistered)(nil)).Elem(), "OnContentRegistered")
	checkInterface(reflect.TypeOf((*OnDecisionResolved)(nil)).Elem(), "OnDecisionResolved")
	checkInterface(reflect.TypeOf((*OnPurchaseStarted)(nil)).Elem(), "OnPurchaseStarted")
	checkInterface(reflect.TypeOf((*OnPurchaseStateChanged)(nil)).Elem(), "OnPurchaseStateChanged")
	checkInterface(reflect.TypeOf((*OnPurchaseSettled)(nil)).Elem(), "OnPurchaseSettled")
	checkInterface(reflect.TypeOf((*OnPayloadFetched)(nil)).Elem(), "OnPayloadFetched")
	checkInterface(reflect.TypeOf((*ProofSignerPlugin)(nil)).Elem(), "ProofSigner")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitContentRegistered emits a content registered event.
func (r *Registry) EmitContentRegistered(ctx context.Context, item interface{}) {
	r.mu.RLock()
	plugins := r.onContentRegistered
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnContentRegistered(ctx, item)
		}); err != nil {
			r.logger.Warn("plugin OnContentRegistered failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitLocatorUpdated emits a payload locator updated event.
func (r *Registry) EmitLocatorUpdated(ctx context.Context, contentID, locator string) {
	r.mu.RLock()
	plugins := r.onLocatorUpdated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnLocatorUpdated(ctx, contentID, locator)
		}); err != nil {
			r.logger.Warn("plugin OnLocatorUpdated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitDecisionResolved emits an entitlement decision event.
func (r *Registry) EmitDecisionResolved(ctx context.Context, decision interface{}) {
	r.mu.RLock()
	plugins := r.onDecisionResolved
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnDecisionResolved(ctx, decision)
		}); err != nil {
			r.logger.Warn("plugin OnDecisionResolved failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitSourceUnavailable emits a source failure event.
func (r *Registry) EmitSourceUnavailable(ctx context.Context, source string, cause error) {
	r.mu.RLock()
	plugins := r.onSourceUnavailable
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSourceUnavailable(ctx, source, cause)
		}); err != nil {
			r.logger.Warn("plugin OnSourceUnavailable failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPurchaseStarted emits a purchase started event.
func (r *Registry) EmitPurchaseStarted(ctx context.Context, attempt interface{}) {
	r.mu.RLock()
	plugins := r.onPurchaseStarted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPurchaseStarted(ctx, attempt)
		}); err != nil {
			r.logger.Warn("plugin OnPurchaseStarted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPurchaseStateChanged emits a purchase state transition event.
func (r *Registry) EmitPurchaseStateChanged(ctx context.Context, transition interface{}) {
	r.mu.RLock()
	plugins := r.onPurchaseStateChanged
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPurchaseStateChanged(ctx, transition)
		}); err != nil {
			r.logger.Warn("plugin OnPurchaseStateChanged failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPurchaseSettled emits a purchase settled event.
func (r *Registry) EmitPurchaseSettled(ctx context.Context, receipt interface{}) {
	r.mu.RLock()
	plugins := r.onPurchaseSettled
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPurchaseSettled(ctx, receipt)
		}); err != nil {
			r.logger.Warn("plugin OnPurchaseSettled failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPurchaseFailed emits a purchase failed event.
func (r *Registry) EmitPurchaseFailed(ctx context.Context, attempt interface{}, cause error) {
	r.mu.RLock()
	plugins := r.onPurchaseFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPurchaseFailed(ctx, attempt, cause)
		}); err != nil {
			r.logger.Warn("plugin OnPurchaseFailed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPayloadFetched emits a payload fetched event.
func (r *Registry) EmitPayloadFetched(ctx context.Context, contentID string, size int, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onPayloadFetched
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPayloadFetched(ctx, contentID, size, elapsed)
		}); err != nil {
			r.logger.Warn("plugin OnPayloadFetched failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitAccessFlushed emits an access events flushed event.
func (r *Registry) EmitAccessFlushed(ctx context.Context, count int, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onAccessFlushed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnAccessFlushed(ctx, count, elapsed)
		}); err != nil {
			r.logger.Warn("plugin OnAccessFlushed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// GetProofSigners returns all registered proof signer plugins.
func (r *Registry) GetProofSigners() []ProofSignerPlugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]ProofSignerPlugin, len(r.proofSigners))
	copy(result, r.proofSigners)
	return result
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the entitlement pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
