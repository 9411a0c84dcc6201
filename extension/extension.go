// Package extension provides the Forge extension adapter for Paywall.
//
// It implements the forge.Extension interface to integrate Paywall
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.paywall" or "paywall" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	paywall "github.com/newsprint/paywall"
	"github.com/newsprint/paywall/source"
	"github.com/newsprint/paywall/source/ledgerrpc"
	"github.com/newsprint/paywall/source/subgraph"
	"github.com/newsprint/paywall/source/x402"
	"github.com/newsprint/paywall/store"
	"github.com/newsprint/paywall/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "paywall"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Entitlement resolution and purchase engine for token-gated content"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Paywall as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config      Config
	engine      *paywall.Engine
	store       store.Store
	paywallOpts []paywall.Option
}

// New creates a new Paywall Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying paywall Engine.
// This is nil until Register is called.
func (e *Extension) Engine() *paywall.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the paywall engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	// Build engine options from resolved config.
	opts := e.buildEngineOpts()

	eng := paywall.New(e.store, opts...)
	e.engine = eng

	return vessel.Provide(fapp.Container(), func() (*paywall.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("paywall: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("paywall: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs paywall.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []paywall.Option {
	opts := make([]paywall.Option, 0, len(e.paywallOpts)+5)

	if e.config.DisableMigrate {
		opts = append(opts, paywall.WithoutMigrate())
	}

	// Construct source adapters from configured endpoints.
	if e.config.RPCEndpoint != "" || e.config.SubgraphEndpoint != "" {
		var (
			ledgerSrc   source.Ledger
			indexSrc    source.Index
			payloadsSrc = x402.New()
		)
		if e.config.RPCEndpoint != "" {
			ledgerSrc = ledgerrpc.New(e.config.RPCEndpoint)
		}
		if e.config.SubgraphEndpoint != "" {
			indexSrc = subgraph.New(e.config.SubgraphEndpoint)
		}
		opts = append(opts, paywall.WithSources(ledgerSrc, indexSrc, payloadsSrc))
	}

	if e.config.PollInterval > 0 {
		opts = append(opts, paywall.WithPollInterval(e.config.PollInterval))
	}
	if e.config.PurchaseTimeout > 0 {
		opts = append(opts, paywall.WithPurchaseTimeout(e.config.PurchaseTimeout))
	}
	if e.config.FetchFailureTTL > 0 {
		opts = append(opts, paywall.WithFetchFailureTTL(e.config.FetchFailureTTL))
	}

	if e.config.AccessBatchSize > 0 || e.config.AccessFlushInterval > 0 {
		batchSize := e.config.AccessBatchSize
		flushInterval := e.config.AccessFlushInterval
		defaults := DefaultConfig()
		if batchSize == 0 {
			batchSize = defaults.AccessBatchSize
		}
		if flushInterval == 0 {
			flushInterval = defaults.AccessFlushInterval
		}
		opts = append(opts, paywall.WithAccessConfig(batchSize, flushInterval))
	}

	// Append any pass-through paywall options.
	opts = append(opts, e.paywallOpts...)

	return opts
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("paywall: configuration is required but not found in config files; " +
				"ensure 'extensions.paywall' or 'paywall' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("paywall: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("rpc_endpoint", e.config.RPCEndpoint),
		forge.F("subgraph_endpoint", e.config.SubgraphEndpoint),
		forge.F("poll_interval", e.config.PollInterval),
		forge.F("purchase_timeout", e.config.PurchaseTimeout),
		forge.F("fetch_failure_ttl", e.config.FetchFailureTTL),
		forge.F("access_batch_size", e.config.AccessBatchSize),
		forge.F("access_flush_interval", e.config.AccessFlushInterval),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.paywall" first (namespaced pattern).
	if cm.IsSet("extensions.paywall") {
		if err := cm.Bind("extensions.paywall", &cfg); err == nil {
			e.Logger().Debug("paywall: loaded config from file",
				forge.F("key", "extensions.paywall"),
			)
			return cfg, true
		}
		e.Logger().Warn("paywall: failed to bind extensions.paywall config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "paywall" key.
	if cm.IsSet("paywall") {
		if err := cm.Bind("paywall", &cfg); err == nil {
			e.Logger().Debug("paywall: loaded config from file",
				forge.F("key", "paywall"),
			)
			return cfg, true
		}
		e.Logger().Warn("paywall: failed to bind paywall config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.PurchaseTimeout == 0 {
		cfg.PurchaseTimeout = defaults.PurchaseTimeout
	}
	if cfg.FetchFailureTTL == 0 {
		cfg.FetchFailureTTL = defaults.FetchFailureTTL
	}
	if cfg.AccessBatchSize == 0 {
		cfg.AccessBatchSize = defaults.AccessBatchSize
	}
	if cfg.AccessFlushInterval == 0 {
		cfg.AccessFlushInterval = defaults.AccessFlushInterval
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.RPCEndpoint == "" && programmaticConfig.RPCEndpoint != "" {
		yamlConfig.RPCEndpoint = programmaticConfig.RPCEndpoint
	}
	if yamlConfig.SubgraphEndpoint == "" && programmaticConfig.SubgraphEndpoint != "" {
		yamlConfig.SubgraphEndpoint = programmaticConfig.SubgraphEndpoint
	}

	// Duration/int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.PollInterval == 0 && programmaticConfig.PollInterval != 0 {
		yamlConfig.PollInterval = programmaticConfig.PollInterval
	}
	if yamlConfig.PurchaseTimeout == 0 && programmaticConfig.PurchaseTimeout != 0 {
		yamlConfig.PurchaseTimeout = programmaticConfig.PurchaseTimeout
	}
	if yamlConfig.FetchFailureTTL == 0 && programmaticConfig.FetchFailureTTL != 0 {
		yamlConfig.FetchFailureTTL = programmaticConfig.FetchFailureTTL
	}
	if yamlConfig.AccessBatchSize == 0 && programmaticConfig.AccessBatchSize != 0 {
		yamlConfig.AccessBatchSize = programmaticConfig.AccessBatchSize
	}
	if yamlConfig.AccessFlushInterval == 0 && programmaticConfig.AccessFlushInterval != 0 {
		yamlConfig.AccessFlushInterval = programmaticConfig.AccessFlushInterval
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
