package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	configSubdir   = "config"
	configFileName = "oracled_config.json"
)

//go:embed default_config.json
var defaultConfigJSON []byte

func validateConfig(cfg *Config) error {
	if cfg.ChainID == 0 {
		return fmt.Errorf("chain_id must be set")
	}

	// Validate log level
	if cfg.LogLevel < -1 || cfg.LogLevel > 5 {
		return fmt.Errorf("log level must be between -1 and 5")
	}

	// Validate log format
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return fmt.Errorf("log format must be 'json' or 'console'")
	}

	// Set defaults for staleness windows
	if cfg.PriceStalenessSeconds == 0 {
		cfg.PriceStalenessSeconds = 86400
	}
	if cfg.PriceStalenessSeconds < 0 {
		return fmt.Errorf("price_staleness_seconds must not be negative")
	}
	if cfg.SharePriceMaxAgeSeconds < 0 {
		return fmt.Errorf("share_price_max_age_seconds must not be negative")
	}
	if cfg.SequencerGracePeriodSeconds == 0 {
		cfg.SequencerGracePeriodSeconds = 3600
	}

	// Set defaults for background jobs
	if cfg.PriceRefreshIntervalSeconds == 0 {
		cfg.PriceRefreshIntervalSeconds = 300
	}
	if cfg.ReportBroadcastIntervalSeconds == 0 {
		cfg.ReportBroadcastIntervalSeconds = 600
	}

	// Set defaults for query server
	if cfg.QueryServerPort == 0 {
		cfg.QueryServerPort = 8080
	}

	// Validate asset catalog
	seen := make(map[string]bool, len(cfg.Assets))
	for _, asset := range cfg.Assets {
		if asset.Address == "" {
			return fmt.Errorf("asset %q has no address", asset.Symbol)
		}
		if seen[asset.Address] {
			return fmt.Errorf("duplicate asset %s", asset.Address)
		}
		seen[asset.Address] = true
		switch asset.Category {
		case "", "UNKNOWN", "STABLE", "ETH_LIKE", "BTC_LIKE":
		default:
			return fmt.Errorf("asset %s has unknown category %q", asset.Address, asset.Category)
		}
	}

	// Feed priorities are global: every feed becomes one adapter in the
	// shared resolver chain, so the priority must be unique across the
	// whole catalog, not just per asset.
	feedPriorities := make(map[uint64]string)
	for _, feed := range cfg.Feeds {
		if feed.Kind != "evm" && feed.Kind != "static" {
			return fmt.Errorf("feed for %s has unknown kind %q", feed.Asset, feed.Kind)
		}
		if prev, dup := feedPriorities[feed.Priority]; dup {
			return fmt.Errorf("feed priority %d used by both %s and %s", feed.Priority, prev, feed.Asset)
		}
		feedPriorities[feed.Priority] = feed.Asset
	}

	// Peers must carry both a peer id and at least one address
	for chainID, peer := range cfg.Peers {
		if peer.PeerID == "" || len(peer.Addrs) == 0 {
			return fmt.Errorf("peer for chain %s is missing peer_id or addrs", chainID)
		}
	}

	// Transport defaults
	if len(cfg.Transport.ListenAddrs) == 0 {
		cfg.Transport.ListenAddrs = []string{"/ip4/0.0.0.0/tcp/0"}
	}
	if cfg.Transport.ProtocolID == "" {
		cfg.Transport.ProtocolID = "/omnivault/oracle/1.0.0"
	}

	return nil
}

// DefaultConfig returns the embedded default configuration.
func DefaultConfig() (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(defaultConfigJSON, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse embedded default config: %w", err)
	}
	return &cfg, nil
}

// Load reads the config file under baseDir (creating it from the embedded
// defaults when absent), applies defaulting and validates the result.
func Load(baseDir string) (*Config, error) {
	path := filepath.Join(baseDir, configSubdir, configFileName)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", mkErr)
		}
		if wrErr := os.WriteFile(path, defaultConfigJSON, 0o600); wrErr != nil {
			return nil, fmt.Errorf("failed to write default config: %w", wrErr)
		}
		data = defaultConfigJSON
	} else if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if cfg.BaseDir == "" {
		cfg.BaseDir = baseDir
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// LoadFile reads and validates an explicit config file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
