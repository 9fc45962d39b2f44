// Package oracle implements share-price resolution for tokenized vaults:
// report ingestion from remote chains and the layered fallback chain that
// answers "how much is one share of vault V on chain C worth in asset A"
// without ever failing.
package oracle

import (
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/omnivault/oracle-node/store"
)

// MaxReportsPerBatch caps a single ingestion batch.
const MaxReportsPerBatch = 100

// Report is a snapshot of a vault's valuation, created on the chain where
// the vault lives and consumed anywhere.
type Report struct {
	SharePrice      sdkmath.Int // asset base units per one share unit
	LastUpdate      time.Time   // producer timestamp
	OriginChainID   uint64      // chain that produced the report, never the ingester
	RewardsDelegate common.Address
	VaultAddress    common.Address
	Asset           common.Address
	AssetDecimals   uint8
}

// toModel converts a report into its storage row.
func (r Report) toModel() *store.VaultReport {
	return &store.VaultReport{
		OriginChainID:   r.OriginChainID,
		VaultAddress:    r.VaultAddress.Hex(),
		Asset:           r.Asset.Hex(),
		AssetDecimals:   r.AssetDecimals,
		SharePrice:      r.SharePrice.String(),
		LastUpdate:      r.LastUpdate.Unix(),
		RewardsDelegate: r.RewardsDelegate.Hex(),
	}
}

// reportFromModel rebuilds a report from its storage row.
func reportFromModel(m *store.VaultReport) (Report, error) {
	price, err := store.ParsePrice(m.SharePrice)
	if err != nil {
		return Report{}, err
	}
	return Report{
		SharePrice:      price,
		LastUpdate:      time.Unix(m.LastUpdate, 0),
		OriginChainID:   m.OriginChainID,
		RewardsDelegate: common.HexToAddress(m.RewardsDelegate),
		VaultAddress:    common.HexToAddress(m.VaultAddress),
		Asset:           common.HexToAddress(m.Asset),
		AssetDecimals:   m.AssetDecimals,
	}, nil
}
