// Package store contains the GORM-backed SQLite models used by the oracle
// daemon and a typed store around them.
//
// Database structure (database file: oracled.db):
//
//	oracled.db
//	├── vault_reports       latest report per (origin chain, vault)
//	├── asset_prices        cached last-known price per (asset, denomination)
//	├── share_prices        cached last converted share price per (origin chain, vault)
//	└── processed_messages  replay-protection set, append-only
package store

import (
	"gorm.io/gorm"
)

// VaultReport is the most recent share-price report for a vault on a remote
// chain. Last-write-wins per (origin chain, vault); no history is kept.
type VaultReport struct {
	gorm.Model
	OriginChainID   uint64 `gorm:"uniqueIndex:idx_origin_vault;not null"`
	VaultAddress    string `gorm:"uniqueIndex:idx_origin_vault;not null"`
	Asset           string `gorm:"not null"`
	AssetDecimals   uint8
	SharePrice      string `gorm:"not null"` // decimal big-int string, asset units per share unit
	LastUpdate      int64  `gorm:"not null"` // producer unix timestamp
	RewardsDelegate string // opaque pass-through address
}

// AssetPrice is the cached last-known price for one asset in one
// denomination. Read only as a fallback when every live adapter fails.
type AssetPrice struct {
	gorm.Model
	Asset     string `gorm:"uniqueIndex:idx_asset_denom;not null"`
	InUSD     bool   `gorm:"uniqueIndex:idx_asset_denom"`
	Price     string `gorm:"not null"` // decimal big-int string, 18-decimal fixed point
	Timestamp int64  `gorm:"not null"` // unix seconds of the resolution
}

// SharePrice is the cached last converted share price for a vault, expressed
// in a local asset. Fallback of last resort for share-price queries.
type SharePrice struct {
	gorm.Model
	OriginChainID uint64 `gorm:"uniqueIndex:idx_share_origin_vault;not null"`
	VaultAddress  string `gorm:"uniqueIndex:idx_share_origin_vault;not null"`
	Asset         string `gorm:"not null"`
	Decimals      uint8
	Price         string `gorm:"not null"`
	Timestamp     int64  `gorm:"not null"`
}

// ProcessedMessage records a delivered message id. Append-only; the unique
// index is the replay-protection mechanism.
type ProcessedMessage struct {
	gorm.Model
	MessageID     string `gorm:"uniqueIndex;not null"` // hex-encoded 32-byte delivery id
	OriginChainID uint64 `gorm:"index"`
}
