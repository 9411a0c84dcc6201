package extension

import (
	"time"

	paywall "github.com/newsprint/paywall"
	"github.com/newsprint/paywall/plugin"
	"github.com/newsprint/paywall/store"
)

// Option configures the Paywall Forge extension.
type Option func(*Extension)

// WithStore sets the store for the paywall engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithPaywallOption passes a paywall.Option through to the underlying engine.
func WithPaywallOption(opt paywall.Option) Option {
	return func(e *Extension) {
		e.paywallOpts = append(e.paywallOpts, opt)
	}
}

// WithPlugin registers a paywall plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.paywallOpts = append(e.paywallOpts, paywall.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRPCEndpoint sets the ledger node JSON-RPC endpoint.
func WithRPCEndpoint(endpoint string) Option {
	return func(e *Extension) { e.config.RPCEndpoint = endpoint }
}

// WithSubgraphEndpoint sets the index GraphQL endpoint.
func WithSubgraphEndpoint(endpoint string) Option {
	return func(e *Extension) { e.config.SubgraphEndpoint = endpoint }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithPollInterval sets the confirmation polling cadence.
func WithPollInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.PollInterval = d }
}

// WithPurchaseTimeout sets the budget for a purchase attempt to confirm.
func WithPurchaseTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.PurchaseTimeout = d }
}

// WithFetchFailureTTL sets how long a failed payload fetch is remembered.
func WithFetchFailureTTL(d time.Duration) Option {
	return func(e *Extension) { e.config.FetchFailureTTL = d }
}

// WithAccessBatchSize sets the number of access events to buffer before flushing.
func WithAccessBatchSize(size int) Option {
	return func(e *Extension) { e.config.AccessBatchSize = size }
}

// WithAccessFlushInterval sets how frequently the access buffer is flushed.
func WithAccessFlushInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.AccessFlushInterval = d }
}
