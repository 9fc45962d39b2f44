// Package core assembles the oracle daemon: storage, pricing, the share
// price oracle, the cross-chain messenger, the HTTP API and the background
// jobs, all built from one configuration.
package core

import (
	"context"
	"fmt"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/omnivault/oracle-node/api"
	"github.com/omnivault/oracle-node/config"
	"github.com/omnivault/oracle-node/cron"
	"github.com/omnivault/oracle-node/db"
	"github.com/omnivault/oracle-node/messenger"
	"github.com/omnivault/oracle-node/messenger/transport"
	"github.com/omnivault/oracle-node/messenger/transport/p2p"
	"github.com/omnivault/oracle-node/metrics"
	"github.com/omnivault/oracle-node/oracle"
	"github.com/omnivault/oracle-node/pricing"
	"github.com/omnivault/oracle-node/pricing/adapters"
	"github.com/omnivault/oracle-node/store"
)

const databaseFilename = "oracled.db"

// Client is the assembled oracle daemon.
type Client struct {
	cfg    *config.Config
	logger zerolog.Logger

	database  *db.DB
	store     *store.Store
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	assets    *pricing.AssetRegistry
	resolver  *pricing.Resolver
	converter *pricing.Converter
	vaults    *oracle.VaultRegistry
	oracle    *oracle.Oracle
	transport transport.Transport
	msgr      *messenger.Messenger
	apiServer *api.Server

	priceJob     *cron.PriceRefreshJob
	broadcastJob *cron.ReportBroadcastJob
}

// NewClient builds every component from the configuration. Nothing is
// started yet; Start brings the daemon up.
func NewClient(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Client, error) {
	c := &Client{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	c.metrics = metrics.New(c.registry)

	database, err := db.OpenFileDB(cfg.BaseDir, databaseFilename, true)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	c.database = database
	c.store = store.New(database.Client())

	if err := c.buildPricing(); err != nil {
		c.Stop()
		return nil, err
	}
	if err := c.buildOracle(); err != nil {
		c.Stop()
		return nil, err
	}
	if err := c.buildMessenger(ctx); err != nil {
		c.Stop()
		return nil, err
	}

	c.apiServer = api.NewServer(logger, cfg.QueryServerPort, api.Deps{
		SharePrices: c.oracle,
		Prices:      c.resolver,
		Reports:     c.store,
		Messenger:   c.msgr,
		Builder:     c.oracle,
		Peers:       c.msgr.Peers(),
		Assets:      c.assets,
		Gatherer:    c.registry,
	})

	c.priceJob = cron.NewPriceRefreshJob(
		c.resolver, c.assets,
		time.Duration(cfg.PriceRefreshIntervalSeconds)*time.Second,
		logger,
	)
	broadcastVaults, err := parseAddresses(cfg.BroadcastVaults)
	if err != nil {
		c.Stop()
		return nil, fmt.Errorf("invalid broadcast_vaults: %w", err)
	}
	c.broadcastJob = cron.NewReportBroadcastJob(
		c.oracle, c.msgr, c.msgr.Peers(), broadcastVaults,
		time.Duration(cfg.ReportBroadcastIntervalSeconds)*time.Second,
		logger,
	)

	return c, nil
}

// buildPricing wires the asset catalog, the adapter chain and the conversion
// engine.
func (c *Client) buildPricing() error {
	c.assets = pricing.NewAssetRegistry(c.logger)
	for _, a := range c.cfg.Assets {
		if !common.IsHexAddress(a.Address) {
			return fmt.Errorf("asset %s has an invalid address", a.Symbol)
		}
		c.assets.Register(pricing.AssetInfo{
			Addr:     common.HexToAddress(a.Address),
			Symbol:   a.Symbol,
			Decimals: a.Decimals,
			Category: pricing.ParseCategory(a.Category),
		})
	}
	for _, m := range c.cfg.AssetMappings {
		if !common.IsHexAddress(m.SourceAsset) || !common.IsHexAddress(m.LocalAsset) {
			return fmt.Errorf("asset mapping for chain %d has an invalid address", m.SourceChainID)
		}
		if err := c.assets.SetLocalEquivalent(m.SourceChainID, common.HexToAddress(m.SourceAsset), common.HexToAddress(m.LocalAsset)); err != nil {
			return fmt.Errorf("invalid asset mapping: %w", err)
		}
	}

	adapterRegistry := pricing.NewAdapterRegistry()
	for _, feed := range c.cfg.Feeds {
		if !common.IsHexAddress(feed.Asset) {
			return fmt.Errorf("feed at priority %d has an invalid asset address", feed.Priority)
		}
		asset := common.HexToAddress(feed.Asset)
		name := fmt.Sprintf("%s-%d", feed.Kind, feed.Priority)

		var adapter pricing.Adapter
		switch feed.Kind {
		case "evm":
			evm, err := adapters.NewEVMFeedAdapter(name, feed.Endpoint, c.logger)
			if err != nil {
				return fmt.Errorf("failed to create feed adapter %s: %w", name, err)
			}
			evm.SetFeed(asset, adapters.FeedSpec{
				FeedAddress: common.HexToAddress(feed.FeedAddress),
				InUSD:       feed.InUSD,
				Heartbeat:   time.Duration(feed.HeartbeatSeconds) * time.Second,
			})
			adapter = evm
		case "static":
			price, ok := sdkmath.NewIntFromString(feed.StaticPrice)
			if !ok {
				return fmt.Errorf("feed %s has an invalid static price %q", name, feed.StaticPrice)
			}
			static := adapters.NewStaticAdapter(name)
			static.SetPrice(asset, price, feed.InUSD)
			adapter = static
		default:
			return fmt.Errorf("feed %s has unknown kind %q", name, feed.Kind)
		}
		if err := adapterRegistry.Add(feed.Priority, adapter); err != nil {
			return fmt.Errorf("failed to register adapter %s: %w", name, err)
		}
	}

	c.resolver = pricing.NewResolver(
		adapterRegistry, c.store,
		time.Duration(c.cfg.PriceStalenessSeconds)*time.Second,
		c.metrics, c.logger,
	)
	if c.cfg.SequencerFeed != nil {
		feed, err := adapters.NewEVMUptimeFeed(c.cfg.SequencerFeed.Endpoint, common.HexToAddress(c.cfg.SequencerFeed.FeedAddress))
		if err != nil {
			return fmt.Errorf("failed to create sequencer feed: %w", err)
		}
		c.resolver.SetSequencerGate(pricing.NewSequencerGate(feed, time.Duration(c.cfg.SequencerGracePeriodSeconds)*time.Second))
	}

	c.converter = pricing.NewConverter(c.resolver, c.assets, c.logger)
	return nil
}

// buildOracle wires the local vault set and the share-price oracle.
func (c *Client) buildOracle() error {
	c.vaults = oracle.NewVaultRegistry()
	for _, v := range c.cfg.Vaults {
		if !common.IsHexAddress(v.Address) {
			return fmt.Errorf("vault %q has an invalid address", v.Address)
		}
		addr := common.HexToAddress(v.Address)
		vault, err := oracle.NewERC4626Vault(v.Endpoint, addr)
		if err != nil {
			return fmt.Errorf("failed to create vault client for %s: %w", v.Address, err)
		}
		c.vaults.Register(addr, vault)
	}

	c.oracle = oracle.New(
		c.cfg.ChainID, c.store, c.converter, c.assets, c.vaults,
		time.Duration(c.cfg.SharePriceMaxAgeSeconds)*time.Second,
		c.metrics, c.logger,
	)
	if c.cfg.RewardsDelegate != "" {
		if !common.IsHexAddress(c.cfg.RewardsDelegate) {
			return fmt.Errorf("rewards_delegate is not a hex address")
		}
		c.oracle.SetRewardsDelegate(common.HexToAddress(c.cfg.RewardsDelegate))
	}
	return nil
}

// buildMessenger wires the libp2p transport, the peer table and the enforced
// options.
func (c *Client) buildMessenger(ctx context.Context) error {
	tr, err := p2p.New(ctx, p2p.Config{
		ListenAddrs:      c.cfg.Transport.ListenAddrs,
		ProtocolID:       c.cfg.Transport.ProtocolID,
		PrivateKeyBase64: c.cfg.Transport.PrivateKeyBase64,
		Fees: transport.FeeSchedule{
			BaseWei:    parseWei(c.cfg.Transport.FeeBaseWei),
			PerByteWei: parseWei(c.cfg.Transport.FeePerByteWei),
		},
	}, c.logger)
	if err != nil {
		return fmt.Errorf("failed to create transport: %w", err)
	}
	c.transport = tr

	peers := messenger.NewPeerTable()
	for rawChainID, pc := range c.cfg.Peers {
		chainID, err := strconv.ParseUint(rawChainID, 10, 64)
		if err != nil {
			return fmt.Errorf("peer key %q is not a chain id: %w", rawChainID, err)
		}
		if err := peers.Set(messenger.Peer{ChainID: chainID, TransportID: pc.PeerID, Addrs: pc.Addrs}); err != nil {
			return fmt.Errorf("invalid peer for chain %d: %w", chainID, err)
		}
	}

	enforced := messenger.NewEnforcedOptions()
	for _, e := range c.cfg.EnforcedOptions {
		if err := enforced.Set(e.ChainID, e.MsgType, common.FromHex(e.Options)); err != nil {
			return fmt.Errorf("invalid enforced options for chain %d: %w", e.ChainID, err)
		}
	}

	c.msgr = messenger.New(
		c.cfg.ChainID, tr, peers, enforced, c.store,
		c.oracle, c.oracle, sdkmath.Int{}, c.metrics, c.logger,
	)
	return nil
}

// Start brings the daemon up: the HTTP API first, then the background jobs.
func (c *Client) Start(ctx context.Context) error {
	if err := c.apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start query server: %w", err)
	}
	if err := c.priceJob.Start(ctx); err != nil {
		return err
	}
	if err := c.broadcastJob.Start(ctx); err != nil {
		return err
	}

	c.logger.Info().
		Uint64("chain_id", c.cfg.ChainID).
		Str("transport_id", c.transport.ID()).
		Strs("listen_addrs", c.transport.ListenAddrs()).
		Int("query_port", c.cfg.QueryServerPort).
		Msg("oracle daemon started")
	return nil
}

// Stop shuts everything down in reverse start order. Safe to call on a
// partially built client.
func (c *Client) Stop() {
	if c.broadcastJob != nil {
		c.broadcastJob.Stop()
	}
	if c.priceJob != nil {
		c.priceJob.Stop()
	}
	if c.apiServer != nil {
		if err := c.apiServer.Stop(); err != nil {
			c.logger.Warn().Err(err).Msg("failed to stop query server")
		}
	}
	if c.transport != nil {
		if err := c.transport.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("failed to close transport")
		}
	}
	if c.database != nil {
		if err := c.database.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("failed to close database")
		}
	}
	c.logger.Info().Msg("oracle daemon stopped")
}

// Oracle exposes the share-price oracle, mainly for tests.
func (c *Client) Oracle() *oracle.Oracle {
	return c.oracle
}

// Messenger exposes the cross-chain messenger, mainly for tests.
func (c *Client) Messenger() *messenger.Messenger {
	return c.msgr
}

func parseWei(raw string) sdkmath.Int {
	if raw == "" {
		return sdkmath.ZeroInt()
	}
	parsed, ok := sdkmath.NewIntFromString(raw)
	if !ok {
		return sdkmath.ZeroInt()
	}
	return parsed
}

func parseAddresses(raw []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(raw))
	for _, r := range raw {
		if !common.IsHexAddress(r) {
			return nil, fmt.Errorf("%q is not a hex address", r)
		}
		out = append(out, common.HexToAddress(r))
	}
	return out, nil
}
