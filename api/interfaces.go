package api

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/omnivault/oracle-node/oracle"
	"github.com/omnivault/oracle-node/store"
)

// SharePriceService answers share-price queries.
type SharePriceService interface {
	GetLatestSharePrice(ctx context.Context, originChainID uint64, vault, dstAsset common.Address) (sdkmath.Int, time.Time)
}

// PriceService answers asset-price queries and refreshes the cache.
type PriceService interface {
	GetLatestPrice(ctx context.Context, asset common.Address, wantUSD bool) (sdkmath.Int, time.Time, bool, error)
	UpdatePrice(ctx context.Context, asset common.Address, wantUSD bool) error
}

// ReportReader lists stored vault reports.
type ReportReader interface {
	ListVaultReports(originChainID uint64) ([]store.VaultReport, error)
}

// ReportMessenger sends report pushes and requests to peer chains.
type ReportMessenger interface {
	SendReports(ctx context.Context, dstChainID uint64, reports []oracle.Report, callerOptions []byte, feeBudget sdkmath.Int) error
	RequestReports(ctx context.Context, dstChainID uint64, vaults []common.Address, rewardsDelegate common.Address, callerOptions, returnOptions []byte, feeBudget sdkmath.Int) error
}

// ReportBuilder produces the local report set for outbound pushes.
type ReportBuilder interface {
	BuildLocalReports(ctx context.Context) []oracle.Report
}
