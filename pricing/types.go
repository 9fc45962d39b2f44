// Package pricing implements the price-resolution half of the oracle: a
// priority-ordered adapter chain with a cached fallback, and the conversion
// engine that moves amounts between assets using category classification and
// decimal normalization.
package pricing

import (
	"context"
	"strings"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// WadDecimals is the fixed-point precision used for prices.
const WadDecimals = 18

// MaxStoredPriceBits bounds cached prices to a storage-safe width.
const MaxStoredPriceBits = 240

// Wad returns the 1e18 fixed-point unit.
func Wad() sdkmath.Int {
	return sdkmath.NewIntWithDecimal(1, WadDecimals)
}

// PriceData is the normalized reading returned by a feed adapter. Adapters
// apply their own heartbeat and staleness checks internally and signal
// failure through HadError; they never timestamp the reading themselves.
type PriceData struct {
	Price    sdkmath.Int
	HadError bool
	InUSD    bool
}

// Adapter reads one external price source.
type Adapter interface {
	// Describe identifies the adapter in logs.
	Describe() string
	// GetPrice returns the asset's 18-decimal price. wantUSD asks for a USD
	// denomination; the adapter reports the denomination it actually served
	// through PriceData.InUSD.
	GetPrice(ctx context.Context, asset common.Address, wantUSD bool) (PriceData, error)
	// IsSupportedAsset reports whether the adapter can serve the asset.
	IsSupportedAsset(asset common.Address) bool
}

// Category is the coarse asset classification driving conversion paths.
type Category uint8

const (
	CategoryUnknown Category = iota
	CategoryBTCLike
	CategoryETHLike
	CategoryStable
)

func (c Category) String() string {
	switch c {
	case CategoryBTCLike:
		return "BTC_LIKE"
	case CategoryETHLike:
		return "ETH_LIKE"
	case CategoryStable:
		return "STABLE"
	default:
		return "UNKNOWN"
	}
}

// ParseCategory maps a config string to a Category. Unrecognized input maps
// to CategoryUnknown.
func ParseCategory(raw string) Category {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "BTC_LIKE":
		return CategoryBTCLike
	case "ETH_LIKE":
		return CategoryETHLike
	case "STABLE":
		return CategoryStable
	default:
		return CategoryUnknown
	}
}

// FitsStoredWidth reports whether a price fits the 240-bit storage bound.
func FitsStoredWidth(price sdkmath.Int) bool {
	if price.IsNegative() {
		return false
	}
	u, overflow := uint256.FromBig(price.BigInt())
	if overflow {
		return false
	}
	return u.BitLen() <= MaxStoredPriceBits
}

// ScaleDecimals rescales an amount between decimal precisions. Scaling down
// truncates toward zero; the lost low-order digits are accepted precision
// loss, not an error.
func ScaleDecimals(amount sdkmath.Int, from, to uint8) sdkmath.Int {
	if from == to {
		return amount
	}
	if to > from {
		return amount.Mul(sdkmath.NewIntWithDecimal(1, int(to-from)))
	}
	return amount.Quo(sdkmath.NewIntWithDecimal(1, int(from-to)))
}
