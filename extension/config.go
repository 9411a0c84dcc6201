package extension

import "time"

// Config holds the Paywall extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.paywall" or "paywall" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// RPCEndpoint is the JSON-RPC endpoint of the ledger node. When set,
	// the extension constructs the ledger adapter automatically.
	RPCEndpoint string `json:"rpc_endpoint" mapstructure:"rpc_endpoint" yaml:"rpc_endpoint"`

	// SubgraphEndpoint is the GraphQL endpoint of the index. When set,
	// the extension constructs the index adapter automatically.
	SubgraphEndpoint string `json:"subgraph_endpoint" mapstructure:"subgraph_endpoint" yaml:"subgraph_endpoint"`

	// PollInterval is the confirmation polling cadence (default: 3s).
	PollInterval time.Duration `json:"poll_interval" mapstructure:"poll_interval" yaml:"poll_interval"`

	// PurchaseTimeout is the budget for a purchase attempt to confirm
	// before failing with a timeout (default: 60s).
	PurchaseTimeout time.Duration `json:"purchase_timeout" mapstructure:"purchase_timeout" yaml:"purchase_timeout"`

	// FetchFailureTTL is how long a failed payload fetch is remembered
	// before a retry is allowed through (default: 15s).
	FetchFailureTTL time.Duration `json:"fetch_failure_ttl" mapstructure:"fetch_failure_ttl" yaml:"fetch_failure_ttl"`

	// AccessBatchSize is the number of access events to buffer before
	// flushing to the store (default: 100).
	AccessBatchSize int `json:"access_batch_size" mapstructure:"access_batch_size" yaml:"access_batch_size"`

	// AccessFlushInterval is how frequently the access buffer is flushed
	// even if the batch size has not been reached (default: 5s).
	AccessFlushInterval time.Duration `json:"access_flush_interval" mapstructure:"access_flush_interval" yaml:"access_flush_interval"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:        3 * time.Second,
		PurchaseTimeout:     60 * time.Second,
		FetchFailureTTL:     15 * time.Second,
		AccessBatchSize:     100,
		AccessFlushInterval: 5 * time.Second,
	}
}
