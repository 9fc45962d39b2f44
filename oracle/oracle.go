package oracle

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	oerrors "github.com/omnivault/oracle-node/errors"
	"github.com/omnivault/oracle-node/metrics"
	"github.com/omnivault/oracle-node/pricing"
	"github.com/omnivault/oracle-node/store"
)

// Oracle answers share-price queries for vaults on any chain. Local vaults
// are read live, remote vaults through ingested reports, and a layered
// fallback guarantees that GetLatestSharePrice always produces an answer.
type Oracle struct {
	localChainID    uint64
	store           *store.Store
	converter       *pricing.Converter
	assets          *pricing.AssetRegistry
	vaults          *VaultRegistry
	shareMaxAge     time.Duration // 0 means cached share prices never expire
	rewardsDelegate common.Address
	now             func() time.Time
	metrics         *metrics.Metrics
	logger          zerolog.Logger
}

// New creates the oracle. shareMaxAge bounds how old a cached share price may
// be before the terminal fallback takes over; zero disables the bound.
func New(
	localChainID uint64,
	st *store.Store,
	converter *pricing.Converter,
	assets *pricing.AssetRegistry,
	vaults *VaultRegistry,
	shareMaxAge time.Duration,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Oracle {
	return &Oracle{
		localChainID: localChainID,
		store:        st,
		converter:    converter,
		assets:       assets,
		vaults:       vaults,
		shareMaxAge:  shareMaxAge,
		now:          time.Now,
		metrics:      m,
		logger:       logger.With().Str("component", "oracle").Logger(),
	}
}

// SetRewardsDelegate sets the delegate address stamped on locally built
// reports.
func (o *Oracle) SetRewardsDelegate(addr common.Address) {
	o.rewardsDelegate = addr
}

// LocalChainID returns the chain this node reports for.
func (o *Oracle) LocalChainID() uint64 {
	return o.localChainID
}

// GetLatestSharePrice returns the value of one share of the given vault,
// denominated in dstAsset base units, together with the timestamp the answer
// is current as of. It never fails: each resolution layer that cannot answer
// hands over to the next, and the last layer is a flat one-to-one ratio.
//
//  1. The vault lives on this chain and is registered: read it live.
//  2. A report for (originChainID, vault) has been ingested: convert it.
//  3. The share-price cache holds a previous answer that is not too old.
//  4. Terminal: one share equals one destination base unit times decimals.
//
// Layers 1 and 2 write their answer back into the cache so layer 3 has
// something to serve when feeds or peers degrade later.
func (o *Oracle) GetLatestSharePrice(ctx context.Context, originChainID uint64, vault, dstAsset common.Address) (sdkmath.Int, time.Time) {
	if price, ts, ok := o.fromLocalVault(ctx, originChainID, vault, dstAsset); ok {
		o.metrics.RecordFallbackAnswer("local")
		return price, ts
	}
	if price, ts, ok := o.fromStoredReport(ctx, originChainID, vault, dstAsset); ok {
		o.metrics.RecordFallbackAnswer("report")
		return price, ts
	}
	if price, ts, ok := o.fromCache(ctx, originChainID, vault, dstAsset); ok {
		o.metrics.RecordFallbackAnswer("cache")
		return price, ts
	}

	o.metrics.RecordFallbackAnswer("terminal")
	o.logger.Warn().
		Uint64("origin_chain_id", originChainID).
		Str("vault", vault.Hex()).
		Str("dst_asset", dstAsset.Hex()).
		Msg("no share price available, answering flat 1:1")
	return oneToOne(o.dstDecimals(dstAsset)), o.now()
}

// fromLocalVault reads a registered local vault live and converts the result
// into dstAsset terms.
func (o *Oracle) fromLocalVault(ctx context.Context, originChainID uint64, vaultAddr, dstAsset common.Address) (sdkmath.Int, time.Time, bool) {
	if originChainID != o.localChainID {
		return sdkmath.Int{}, time.Time{}, false
	}
	vault, ok := o.vaults.Get(vaultAddr)
	if !ok {
		return sdkmath.Int{}, time.Time{}, false
	}

	report, err := o.readVault(ctx, vaultAddr, vault)
	if err != nil {
		o.logger.Warn().Err(err).Str("vault", vaultAddr.Hex()).Msg("live vault read failed")
		return sdkmath.Int{}, time.Time{}, false
	}

	price, ts := report.SharePrice, report.LastUpdate
	if report.Asset != dstAsset {
		price, ts, err = o.converter.Convert(ctx, report.SharePrice, report.Asset, dstAsset)
		if err != nil {
			o.logger.Warn().Err(err).Str("vault", vaultAddr.Hex()).Msg("local share price conversion failed")
			return sdkmath.Int{}, time.Time{}, false
		}
		if ts.After(report.LastUpdate) {
			ts = report.LastUpdate
		}
	}

	o.cacheSharePrice(originChainID, vaultAddr, dstAsset, price, ts)
	return price, ts, true
}

// fromStoredReport answers out of the ingested report set, converting the
// report's asset into dstAsset terms.
func (o *Oracle) fromStoredReport(ctx context.Context, originChainID uint64, vaultAddr, dstAsset common.Address) (sdkmath.Int, time.Time, bool) {
	model, err := o.store.GetVaultReport(originChainID, vaultAddr.Hex())
	if err != nil {
		o.logger.Warn().Err(err).Str("vault", vaultAddr.Hex()).Msg("report lookup failed")
		return sdkmath.Int{}, time.Time{}, false
	}
	if model == nil {
		return sdkmath.Int{}, time.Time{}, false
	}
	report, err := reportFromModel(model)
	if err != nil {
		o.logger.Error().Err(err).Str("vault", vaultAddr.Hex()).Msg("stored report is corrupt")
		return sdkmath.Int{}, time.Time{}, false
	}

	var (
		price sdkmath.Int
		ts    time.Time
	)
	if originChainID == o.localChainID {
		price, ts, err = o.converter.Convert(ctx, report.SharePrice, report.Asset, dstAsset)
	} else {
		price, ts, err = o.converter.ConvertFromRemote(ctx, report.SharePrice, originChainID, report.Asset, report.AssetDecimals, dstAsset)
	}
	if err != nil {
		o.logger.Warn().Err(err).
			Uint64("origin_chain_id", originChainID).
			Str("vault", vaultAddr.Hex()).
			Msg("report conversion failed")
		return sdkmath.Int{}, time.Time{}, false
	}
	if ts.After(report.LastUpdate) {
		ts = report.LastUpdate
	}

	o.cacheSharePrice(originChainID, vaultAddr, dstAsset, price, ts)
	return price, ts, true
}

// fromCache serves a previously converted answer within the age bound. An
// entry cached for another destination asset is still usable when the
// conversion engine can reprice it into dstAsset terms.
func (o *Oracle) fromCache(ctx context.Context, originChainID uint64, vaultAddr, dstAsset common.Address) (sdkmath.Int, time.Time, bool) {
	entry, err := o.store.GetSharePrice(originChainID, vaultAddr.Hex())
	if err != nil {
		o.logger.Warn().Err(err).Str("vault", vaultAddr.Hex()).Msg("share price cache lookup failed")
		return sdkmath.Int{}, time.Time{}, false
	}
	if entry == nil {
		return sdkmath.Int{}, time.Time{}, false
	}

	ts := time.Unix(entry.Timestamp, 0)
	if o.shareMaxAge > 0 && o.now().Sub(ts) > o.shareMaxAge {
		return sdkmath.Int{}, time.Time{}, false
	}

	price, err := store.ParsePrice(entry.Price)
	if err != nil {
		o.logger.Error().Err(err).Str("vault", vaultAddr.Hex()).Msg("cached share price is corrupt")
		return sdkmath.Int{}, time.Time{}, false
	}

	cachedAsset := common.HexToAddress(entry.Asset)
	if cachedAsset == dstAsset {
		return price, ts, true
	}
	converted, convTS, err := o.converter.Convert(ctx, price, cachedAsset, dstAsset)
	if err != nil {
		o.logger.Warn().Err(err).
			Str("vault", vaultAddr.Hex()).
			Str("cached_asset", cachedAsset.Hex()).
			Str("dst_asset", dstAsset.Hex()).
			Msg("cached share price conversion failed")
		return sdkmath.Int{}, time.Time{}, false
	}
	if convTS.Before(ts) {
		ts = convTS
	}
	return converted, ts, true
}

func (o *Oracle) cacheSharePrice(originChainID uint64, vaultAddr, dstAsset common.Address, price sdkmath.Int, ts time.Time) {
	if err := o.store.SaveSharePrice(originChainID, vaultAddr.Hex(), dstAsset.Hex(), o.dstDecimals(dstAsset), price, ts); err != nil {
		o.logger.Warn().Err(err).Str("vault", vaultAddr.Hex()).Msg("failed to cache share price")
	}
}

// dstDecimals looks up a destination asset's decimals, defaulting to 18 for
// assets outside the catalog.
func (o *Oracle) dstDecimals(dstAsset common.Address) uint8 {
	if info, ok := o.assets.Get(dstAsset); ok {
		return info.Decimals
	}
	return pricing.WadDecimals
}

// oneToOne is the terminal answer: one share is worth one whole unit of the
// destination asset.
func oneToOne(decimals uint8) sdkmath.Int {
	return sdkmath.NewIntWithDecimal(1, int(decimals))
}

// UpdateSharePrices ingests a batch of reports. The whole batch is validated
// before any write, then applied in one database transaction: a bad report
// anywhere leaves the store untouched.
func (o *Oracle) UpdateSharePrices(ctx context.Context, reports []Report) error {
	if len(reports) > MaxReportsPerBatch {
		return oerrors.ErrExceedsMaxReports
	}
	for _, r := range reports {
		if r.OriginChainID == 0 {
			return oerrors.ErrInvalidChainID
		}
		if r.SharePrice.IsNil() || !r.SharePrice.IsPositive() || !pricing.FitsStoredWidth(r.SharePrice) {
			return oerrors.ErrInvalidPrice.WithChain(r.OriginChainID)
		}
	}

	err := o.store.WithTx(func(tx *store.Store) error {
		for _, r := range reports {
			if err := tx.UpsertVaultReport(r.toModel()); err != nil {
				return err
			}
			// When the report's asset has a configured local equivalent we
			// can pre-warm the share-price cache without touching any feed.
			if local, ok := o.assets.LocalEquivalent(r.OriginChainID, r.Asset); ok {
				info, known := o.assets.Get(local)
				if !known {
					continue
				}
				rebased := pricing.ScaleDecimals(r.SharePrice, r.AssetDecimals, info.Decimals)
				if err := tx.SaveSharePrice(r.OriginChainID, r.VaultAddress.Hex(), local.Hex(), info.Decimals, rebased, r.LastUpdate); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return oerrors.New(oerrors.ErrCodeDatabase, "failed to apply report batch").WithCause(err)
	}

	o.metrics.RecordReportsIngested(len(reports))
	o.logger.Info().Int("reports", len(reports)).Msg("report batch applied")
	return nil
}

// BuildLocalReports reads every registered local vault and produces the
// report set this node broadcasts. Vaults that fail to read are skipped with
// a warning so one dead RPC endpoint cannot silence the rest.
func (o *Oracle) BuildLocalReports(ctx context.Context) []Report {
	addrs := o.vaults.Addresses()
	reports := make([]Report, 0, len(addrs))
	for _, addr := range addrs {
		vault, ok := o.vaults.Get(addr)
		if !ok {
			continue
		}
		report, err := o.readVault(ctx, addr, vault)
		if err != nil {
			o.logger.Warn().Err(err).Str("vault", addr.Hex()).Msg("skipping unreadable vault")
			continue
		}
		reports = append(reports, report)
	}
	return reports
}

// readVault snapshots one local vault: one whole share converted into the
// underlying asset's base units.
func (o *Oracle) readVault(ctx context.Context, addr common.Address, vault Vault) (Report, error) {
	asset, err := vault.Asset(ctx)
	if err != nil {
		return Report{}, err
	}
	shareDecimals, err := vault.Decimals(ctx)
	if err != nil {
		return Report{}, err
	}
	oneShare := sdkmath.NewIntWithDecimal(1, int(shareDecimals))
	price, err := vault.ConvertToAssets(ctx, oneShare)
	if err != nil {
		return Report{}, err
	}
	if !price.IsPositive() || !pricing.FitsStoredWidth(price) {
		return Report{}, oerrors.ErrInvalidPrice.WithChain(o.localChainID)
	}

	assetDecimals := o.dstDecimals(asset)
	return Report{
		SharePrice:      price,
		LastUpdate:      o.now(),
		OriginChainID:   o.localChainID,
		RewardsDelegate: o.rewardsDelegate,
		VaultAddress:    addr,
		Asset:           asset,
		AssetDecimals:   assetDecimals,
	}, nil
}
