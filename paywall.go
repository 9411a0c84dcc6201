package paywall

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/newsprint/paywall/access"
	"github.com/newsprint/paywall/content"
	"github.com/newsprint/paywall/plugin"
	"github.com/newsprint/paywall/poll"
	"github.com/newsprint/paywall/purchase"
	"github.com/newsprint/paywall/source"
	"github.com/newsprint/paywall/store"
	"github.com/newsprint/paywall/types"
)

// Engine is the entitlement resolution and reconciliation engine.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger

	// Data sources
	ledger   source.Ledger
	index    source.Index
	payloads source.Payloads

	// Keyed confirmation polling
	poller *poll.Poller

	// Active purchase attempt registry
	attemptMu sync.Mutex
	attempts  map[string]*attemptEntry

	// Payload cache
	fetchGroup    singleflight.Group
	fetchMu       sync.RWMutex
	payloadCache  map[string]*content.Payload
	fetchFailures map[string]fetchFailure

	// Background workers
	accessBuffer chan *access.Event
	stopChan     chan struct{}
	wg           sync.WaitGroup

	// Configuration
	pollInterval        time.Duration
	purchaseTimeout     time.Duration
	fetchFailureTTL     time.Duration
	accessBatchSize     int
	accessFlushInterval time.Duration
	skipMigrate         bool
}

// New creates a new Engine instance.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:               s,
		plugins:             plugin.NewRegistry(),
		logger:              slog.Default(),
		attempts:            make(map[string]*attemptEntry),
		payloadCache:        make(map[string]*content.Payload),
		fetchFailures:       make(map[string]fetchFailure),
		accessBuffer:        make(chan *access.Event, 10000),
		stopChan:            make(chan struct{}),
		pollInterval:        3 * time.Second,
		purchaseTimeout:     60 * time.Second,
		fetchFailureTTL:     15 * time.Second,
		accessBatchSize:     100,
		accessFlushInterval: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.poller = poll.New(poll.WithLogger(e.logger))

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithSources wires the three data source adapters.
func WithSources(ledger source.Ledger, index source.Index, payloads source.Payloads) Option {
	return func(e *Engine) {
		e.ledger = ledger
		e.index = index
		e.payloads = payloads
	}
}

// WithPollInterval sets the confirmation polling cadence.
func WithPollInterval(interval time.Duration) Option {
	return func(e *Engine) {
		e.pollInterval = interval
	}
}

// WithPurchaseTimeout sets the budget for a purchase attempt to confirm.
func WithPurchaseTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		e.purchaseTimeout = timeout
	}
}

// WithFetchFailureTTL sets how long a failed payload fetch is remembered
// before a retry is allowed through. The TTL throttles FetchContent
// callers only; confirmation polling inside a settling purchase retries
// at the poll interval regardless.
func WithFetchFailureTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.fetchFailureTTL = ttl
	}
}

// WithAccessConfig configures access-event batching parameters.
func WithAccessConfig(batchSize int, flushInterval time.Duration) Option {
	return func(e *Engine) {
		e.accessBatchSize = batchSize
		e.accessFlushInterval = flushInterval
	}
}

// WithoutMigrate skips store migration on Start, for deployments that
// manage schema out of band.
func WithoutMigrate() Option {
	return func(e *Engine) {
		e.skipMigrate = true
	}
}

// Start begins background workers.
func (e *Engine) Start(ctx context.Context) error {
	// Migrate database
	if !e.skipMigrate {
		if err := e.store.Migrate(ctx); err != nil {
			return err
		}
	}

	// Initialize plugins
	e.plugins.EmitInit(ctx, e)

	// Start access flush worker
	e.wg.Add(1)
	go e.accessFlushWorker(ctx)

	e.logger.Info("paywall engine started",
		"poll_interval", e.pollInterval,
		"purchase_timeout", e.purchaseTimeout,
		"access_batch_size", e.accessBatchSize,
	)

	return nil
}

// Stop shuts down the Engine.
func (e *Engine) Stop() error {
	e.poller.CancelAll()

	close(e.stopChan)
	e.wg.Wait()

	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// ──────────────────────────────────────────────────
// Content Catalog
// ──────────────────────────────────────────────────

// RegisterContent adds a licensable work to the catalog. The item is
// immutable afterward except for its payload locator, filled in once
// minting completes.
func (e *Engine) RegisterContent(ctx context.Context, item *content.Item) error {
	if item.ID == "" || item.CreatorID.IsZero() {
		return ErrInvalidInput
	}
	if !item.LicenseKind.Valid() {
		return ErrInvalidInput
	}

	item.Entity = types.NewEntity()
	if item.PublishedAt.IsZero() {
		item.PublishedAt = time.Now().UTC()
	}

	if err := e.store.PutContent(ctx, item); err != nil {
		return err
	}

	e.plugins.EmitContentRegistered(ctx, item)
	return nil
}

// GetContent retrieves a content item by id.
func (e *Engine) GetContent(ctx context.Context, contentID string) (*content.Item, error) {
	return e.store.GetContent(ctx, contentID)
}

// ListContent lists catalog items.
func (e *Engine) ListContent(ctx context.Context, opts content.ListOpts) ([]*content.Item, error) {
	return e.store.ListContent(ctx, opts)
}

// SetPayloadLocator records the gated resource reference once minting
// completes.
func (e *Engine) SetPayloadLocator(ctx context.Context, contentID, locator string) error {
	if locator == "" {
		return ErrInvalidInput
	}
	if err := e.store.SetPayloadLocator(ctx, contentID, locator); err != nil {
		return err
	}
	e.plugins.EmitLocatorUpdated(ctx, contentID, locator)
	return nil
}

// ──────────────────────────────────────────────────
// Receipts
// ──────────────────────────────────────────────────

// ListReceipts lists settled purchase receipts for a viewer.
func (e *Engine) ListReceipts(ctx context.Context, viewer content.Address, opts purchase.ListOpts) ([]*purchase.Receipt, error) {
	if viewer.IsZero() {
		return nil, ErrViewerUnset
	}
	return e.store.ListReceipts(ctx, viewer, opts)
}
