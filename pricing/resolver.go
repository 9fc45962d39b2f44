package pricing

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	oerrors "github.com/omnivault/oracle-node/errors"
	"github.com/omnivault/oracle-node/metrics"
	"github.com/omnivault/oracle-node/store"
)

// DefaultStalenessThreshold bounds the age of a cached price serving as a
// fallback.
const DefaultStalenessThreshold = 24 * time.Hour

// Resolver answers "latest price of asset X" by walking the adapter chain in
// priority order and falling back to the stored cache.
type Resolver struct {
	adapters  *AdapterRegistry
	store     *store.Store
	gate      *SequencerGate // nil disables the sequencer check
	staleness time.Duration
	now       func() time.Time
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewResolver creates a resolver. staleness <= 0 selects the 24h default.
func NewResolver(
	adapters *AdapterRegistry,
	st *store.Store,
	staleness time.Duration,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Resolver {
	if staleness <= 0 {
		staleness = DefaultStalenessThreshold
	}
	return &Resolver{
		adapters:  adapters,
		store:     st,
		staleness: staleness,
		now:       time.Now,
		metrics:   m,
		logger:    logger.With().Str("component", "price_resolver").Logger(),
	}
}

// SetSequencerGate installs the liveness gate consulted before any adapter.
func (r *Resolver) SetSequencerGate(gate *SequencerGate) {
	r.gate = gate
}

// Adapters exposes the registry for administrative add/remove.
func (r *Resolver) Adapters() *AdapterRegistry {
	return r.adapters
}

// GetLatestPrice returns the first live adapter price, in priority order,
// or the cached price when every adapter fails and the cache is fresh
// enough. Live prices are timestamped by the resolver's clock, never by the
// adapter. Fails closed with ErrNoAdaptersConfigured or ErrNoValidPrice.
func (r *Resolver) GetLatestPrice(ctx context.Context, asset common.Address, wantUSD bool) (sdkmath.Int, time.Time, bool, error) {
	if r.gate != nil {
		if err := r.gate.Check(ctx); err != nil {
			return sdkmath.Int{}, time.Time{}, false, err
		}
	}

	ordered := r.adapters.Ordered()
	if len(ordered) == 0 {
		return sdkmath.Int{}, time.Time{}, false, oerrors.ErrNoAdaptersConfigured
	}

	for _, adapter := range ordered {
		if !adapter.IsSupportedAsset(asset) {
			continue
		}
		data, err := adapter.GetPrice(ctx, asset, wantUSD)
		if err != nil {
			r.logger.Debug().
				Err(err).
				Str("adapter", adapter.Describe()).
				Str("asset", asset.Hex()).
				Msg("adapter errored, trying next")
			continue
		}
		if data.HadError || data.Price.IsNil() || !data.Price.IsPositive() {
			continue
		}
		r.metrics.RecordPriceResolution("adapter")
		return data.Price, r.now(), data.InUSD, nil
	}

	// Every adapter failed or declined; consult the cache.
	price, ts, found, err := r.store.GetAssetPrice(asset.Hex(), wantUSD)
	if err != nil {
		return sdkmath.Int{}, time.Time{}, false, oerrors.ErrNoValidPrice.WithCause(err)
	}
	if found && r.now().Sub(ts) <= r.staleness {
		r.metrics.RecordPriceResolution("cache")
		return price, ts, wantUSD, nil
	}

	r.metrics.RecordPriceFailure()
	return sdkmath.Int{}, time.Time{}, false, oerrors.ErrNoValidPrice
}

// UpdatePrice resolves the asset's price and writes it into the cache. Safe
// for anyone to call: it is idempotent and the cache only ever moves forward
// in time.
func (r *Resolver) UpdatePrice(ctx context.Context, asset common.Address, wantUSD bool) error {
	price, ts, _, err := r.GetLatestPrice(ctx, asset, wantUSD)
	if err != nil {
		return err
	}
	if !FitsStoredWidth(price) {
		return oerrors.ErrInvalidPrice.WithCause(
			oerrors.Newf(oerrors.ErrCodeInvalidPrice, "price exceeds %d bits", MaxStoredPriceBits))
	}
	if err := r.store.SaveAssetPrice(asset.Hex(), wantUSD, price, ts); err != nil {
		return oerrors.Wrap(err, "failed to cache price")
	}
	r.logger.Debug().
		Str("asset", asset.Hex()).
		Bool("usd", wantUSD).
		Str("price", price.String()).
		Msg("price cache updated")
	return nil
}
