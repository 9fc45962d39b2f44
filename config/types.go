package config

// Config is the top-level configuration for the oracle daemon.
type Config struct {
	// ChainID is the id of the chain this daemon produces reports for.
	ChainID uint64 `json:"chain_id"`

	// Logging
	LogLevel   int    `json:"log_level"`   // zerolog levels: -1=trace .. 5=panic
	LogFormat  string `json:"log_format"`  // "console" or "json"
	LogSampler bool   `json:"log_sampler"` // sample 1-in-N info logs

	// BaseDir is where the daemon keeps its SQLite database.
	BaseDir string `json:"base_dir"`

	// QueryServerPort is the HTTP query/admin API port.
	QueryServerPort int `json:"query_server_port"`

	// PriceStalenessSeconds bounds how old a cached asset price may be and
	// still serve as a fallback. Defaults to 24h.
	PriceStalenessSeconds int64 `json:"price_staleness_seconds"`

	// SharePriceMaxAgeSeconds bounds the cached share-price fallback.
	// Zero means a stale observed price is still preferred over the flat
	// terminal fallback.
	SharePriceMaxAgeSeconds int64 `json:"share_price_max_age_seconds"`

	// SequencerGracePeriodSeconds is how long after a sequencer restart the
	// chain's own data is still treated as unreliable. Defaults to 1h.
	SequencerGracePeriodSeconds int64 `json:"sequencer_grace_period_seconds"`

	// Background job intervals.
	PriceRefreshIntervalSeconds    int `json:"price_refresh_interval_seconds"`
	ReportBroadcastIntervalSeconds int `json:"report_broadcast_interval_seconds"`

	// Assets is the local asset catalog.
	Assets []AssetConfig `json:"assets"`

	// Feeds configures the price adapters, ordered by priority at load.
	Feeds []FeedConfig `json:"feeds"`

	// SequencerFeed, when set, gates every price resolution.
	SequencerFeed *SequencerFeedConfig `json:"sequencer_feed,omitempty"`

	// Peers maps remote chain ids (decimal strings, JSON keys must be
	// strings) to the transport peers allowed to deliver for them.
	Peers map[string]PeerConfig `json:"peers"`

	// AssetMappings shortcut conversions for bridged assets.
	AssetMappings []AssetMapConfig `json:"asset_mappings"`

	// EnforcedOptions are per-destination, per-message-type option floors.
	EnforcedOptions []EnforcedOptionsConfig `json:"enforced_options"`

	// Vaults lists the local vaults this daemon can report on.
	Vaults []VaultConfig `json:"vaults"`

	// BroadcastVaults are the local vault addresses pushed to every peer by
	// the broadcast job. Empty means all configured vaults.
	BroadcastVaults []string `json:"broadcast_vaults"`

	// RewardsDelegate is stamped on locally built reports.
	RewardsDelegate string `json:"rewards_delegate,omitempty"`

	// Transport configures the libp2p message transport.
	Transport TransportConfig `json:"transport"`
}

// AssetConfig describes one local asset.
type AssetConfig struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	Category string `json:"category"` // "STABLE", "ETH_LIKE", "BTC_LIKE" or "UNKNOWN"
}

// FeedConfig describes one price adapter for one asset.
type FeedConfig struct {
	Asset            string `json:"asset"`
	Kind             string `json:"kind"` // "evm" or "static"
	Endpoint         string `json:"endpoint,omitempty"`
	FeedAddress      string `json:"feed_address,omitempty"`
	Priority         uint64 `json:"priority"`
	InUSD            bool   `json:"in_usd"`
	HeartbeatSeconds int64  `json:"heartbeat_seconds,omitempty"`
	// StaticPrice is a fixed 18-decimal price for the "static" kind,
	// intended for tests and local development.
	StaticPrice string `json:"static_price,omitempty"`
}

// SequencerFeedConfig describes the L2 sequencer-uptime feed.
type SequencerFeedConfig struct {
	Endpoint    string `json:"endpoint"`
	FeedAddress string `json:"feed_address"`
}

// PeerConfig identifies the authenticated counterpart for one remote chain.
type PeerConfig struct {
	PeerID string   `json:"peer_id"`
	Addrs  []string `json:"addrs"`
}

// AssetMapConfig maps a remote asset to its local economic equivalent.
type AssetMapConfig struct {
	SourceChainID uint64 `json:"source_chain_id"`
	SourceAsset   string `json:"source_asset"`
	LocalAsset    string `json:"local_asset"`
}

// EnforcedOptionsConfig is an option floor merged into every send toward a
// destination chain for a message type.
type EnforcedOptionsConfig struct {
	ChainID uint64 `json:"chain_id"`
	MsgType uint16 `json:"msg_type"`
	Options string `json:"options"` // hex-encoded, version-prefixed
}

// VaultConfig describes one local ERC-4626 vault.
type VaultConfig struct {
	Address  string `json:"address"`
	Endpoint string `json:"endpoint"`
}

// TransportConfig configures the libp2p transport.
type TransportConfig struct {
	ListenAddrs      []string `json:"listen_addrs"`
	PrivateKeyBase64 string   `json:"private_key_base64,omitempty"`
	ProtocolID       string   `json:"protocol_id,omitempty"`
	// Fee schedule used to quote outbound messages, in wei.
	FeeBaseWei    string `json:"fee_base_wei,omitempty"`
	FeePerByteWei string `json:"fee_per_byte_wei,omitempty"`
}
