package pricing

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	oerrors "github.com/omnivault/oracle-node/errors"
)

// Converter moves amounts between assets. Conversion paths, cheapest first:
// same-asset decimal adjustment, same-category price ratio, cross-category
// through USD legs. Remote assets go through the local-equivalent map before
// any priced path.
type Converter struct {
	resolver *Resolver
	assets   *AssetRegistry
	now      func() time.Time
	logger   zerolog.Logger
}

// NewConverter creates a conversion engine on top of a resolver and the
// asset catalog.
func NewConverter(resolver *Resolver, assets *AssetRegistry, logger zerolog.Logger) *Converter {
	return &Converter{
		resolver: resolver,
		assets:   assets,
		now:      time.Now,
		logger:   logger.With().Str("component", "conversion_engine").Logger(),
	}
}

// Convert converts an amount of srcAsset into dstAsset terms. The returned
// timestamp is the earlier of the legs' timestamps, propagating staleness
// pessimistically through chained conversions.
func (c *Converter) Convert(ctx context.Context, amount sdkmath.Int, srcAsset, dstAsset common.Address) (sdkmath.Int, time.Time, error) {
	src, ok := c.assets.Get(srcAsset)
	if !ok {
		return sdkmath.Int{}, time.Time{}, oerrors.Newf(oerrors.ErrCodeValidation, "unknown asset %s", srcAsset.Hex())
	}
	dst, ok := c.assets.Get(dstAsset)
	if !ok {
		return sdkmath.Int{}, time.Time{}, oerrors.Newf(oerrors.ErrCodeValidation, "unknown asset %s", dstAsset.Hex())
	}

	if srcAsset == dstAsset {
		return ScaleDecimals(amount, src.Decimals, dst.Decimals), c.now(), nil
	}

	// Priced conversions need both sides categorized.
	if src.Category == CategoryUnknown || dst.Category == CategoryUnknown {
		return sdkmath.Int{}, time.Time{}, oerrors.ErrInvalidAssetType
	}

	if src.Category == dst.Category {
		return c.convertSameCategory(ctx, amount, src, dst)
	}
	return c.convertViaUSD(ctx, amount, src, dst)
}

// ConvertFromRemote converts an amount of a remote chain's asset into a
// local asset. A configured local equivalent short-circuits to decimal
// adjustment; otherwise the remote address must itself be a registered local
// asset (e.g. a canonical token shared across chains).
func (c *Converter) ConvertFromRemote(
	ctx context.Context,
	amount sdkmath.Int,
	sourceChainID uint64,
	sourceAsset common.Address,
	sourceDecimals uint8,
	dstAsset common.Address,
) (sdkmath.Int, time.Time, error) {
	if local, ok := c.assets.LocalEquivalent(sourceChainID, sourceAsset); ok {
		localInfo, known := c.assets.Get(local)
		if !known {
			return sdkmath.Int{}, time.Time{}, oerrors.Newf(oerrors.ErrCodeValidation, "mapped local asset %s not registered", local.Hex())
		}
		// Mapping means economic equivalence: rebase the amount into the
		// local asset's decimals, then convert locally if needed.
		rebased := ScaleDecimals(amount, sourceDecimals, localInfo.Decimals)
		if local == dstAsset {
			return rebased, c.now(), nil
		}
		return c.Convert(ctx, rebased, local, dstAsset)
	}

	if _, known := c.assets.Get(sourceAsset); known {
		rebased := amount
		if info, _ := c.assets.Get(sourceAsset); info.Decimals != sourceDecimals {
			rebased = ScaleDecimals(amount, sourceDecimals, info.Decimals)
		}
		return c.Convert(ctx, rebased, sourceAsset, dstAsset)
	}

	return sdkmath.Int{}, time.Time{}, oerrors.ErrNoValidPrice.WithChain(sourceChainID)
}

// convertSameCategory prices both assets in the category's natural
// denomination (USD for stables, the reference unit for BTC/ETH-likes) and
// applies amount * srcPrice / dstPrice with full-precision big-int math.
func (c *Converter) convertSameCategory(ctx context.Context, amount sdkmath.Int, src, dst AssetInfo) (sdkmath.Int, time.Time, error) {
	wantUSD := src.Category == CategoryStable

	srcPrice, srcTs, srcUSD, err := c.resolver.GetLatestPrice(ctx, src.Addr, wantUSD)
	if err != nil {
		return sdkmath.Int{}, time.Time{}, err
	}
	dstPrice, dstTs, dstUSD, err := c.resolver.GetLatestPrice(ctx, dst.Addr, wantUSD)
	if err != nil {
		return sdkmath.Int{}, time.Time{}, err
	}
	// A ratio only cancels the denomination when both legs were served in
	// the same one; adapters may answer in a unit other than the requested.
	if srcUSD != dstUSD {
		return sdkmath.Int{}, time.Time{}, oerrors.ErrNoValidPrice
	}
	if !dstPrice.IsPositive() || !srcPrice.IsPositive() {
		return sdkmath.Int{}, time.Time{}, oerrors.ErrNoValidPrice
	}

	converted := amount.Mul(srcPrice).Quo(dstPrice)
	converted = ScaleDecimals(converted, src.Decimals, dst.Decimals)
	return converted, earlier(srcTs, dstTs), nil
}

// convertViaUSD computes the 18-decimal USD value of the amount, then
// divides by the destination's USD price. The multiply happens before any
// divide so no intermediate precision is lost.
func (c *Converter) convertViaUSD(ctx context.Context, amount sdkmath.Int, src, dst AssetInfo) (sdkmath.Int, time.Time, error) {
	srcPrice, srcTs, srcUSD, err := c.resolver.GetLatestPrice(ctx, src.Addr, true)
	if err != nil {
		return sdkmath.Int{}, time.Time{}, err
	}
	dstPrice, dstTs, dstUSD, err := c.resolver.GetLatestPrice(ctx, dst.Addr, true)
	if err != nil {
		return sdkmath.Int{}, time.Time{}, err
	}
	// The USD bridge only works when both legs actually came back in USD.
	if !srcUSD || !dstUSD {
		return sdkmath.Int{}, time.Time{}, oerrors.ErrNoValidPrice
	}
	if !srcPrice.IsPositive() || !dstPrice.IsPositive() {
		return sdkmath.Int{}, time.Time{}, oerrors.ErrNoValidPrice
	}

	// out = amount * srcPrice * 10^dstDec / (10^srcDec * dstPrice)
	numerator := amount.Mul(srcPrice).Mul(sdkmath.NewIntWithDecimal(1, int(dst.Decimals)))
	denominator := sdkmath.NewIntWithDecimal(1, int(src.Decimals)).Mul(dstPrice)
	converted := numerator.Quo(denominator)
	return converted, earlier(srcTs, dstTs), nil
}

func earlier(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
