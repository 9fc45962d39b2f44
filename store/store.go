package store

import (
	"fmt"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store provides typed database operations over the oracle schema. All
// methods are safe for concurrent use; batch operations run inside a single
// SQLite transaction so a failing batch leaves no partial writes.
type Store struct {
	client *gorm.DB
}

// New creates a store around a GORM handle.
func New(client *gorm.DB) *Store {
	return &Store{client: client}
}

// WithTx runs fn inside one database transaction. The store handed to fn
// must not escape it.
func (s *Store) WithTx(fn func(tx *Store) error) error {
	if s.client == nil {
		return fmt.Errorf("database is nil")
	}
	return s.client.Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}

// normKey lower-cases address keys so lookups are case-insensitive across
// checksummed and plain hex forms.
func normKey(addr string) string {
	return strings.ToLower(addr)
}

// UpsertVaultReport stores a report, overwriting any previous report for the
// same (origin chain, vault) pair.
func (s *Store) UpsertVaultReport(report *VaultReport) error {
	if s.client == nil {
		return fmt.Errorf("database is nil")
	}
	report.VaultAddress = normKey(report.VaultAddress)
	report.Asset = normKey(report.Asset)

	return s.client.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "origin_chain_id"}, {Name: "vault_address"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"asset", "asset_decimals", "share_price", "last_update", "rewards_delegate", "updated_at",
		}),
	}).Create(report).Error
}

// GetVaultReport returns the latest report for (origin chain, vault), or nil
// when none has been ingested.
func (s *Store) GetVaultReport(originChainID uint64, vault string) (*VaultReport, error) {
	if s.client == nil {
		return nil, fmt.Errorf("database is nil")
	}
	var report VaultReport
	err := s.client.
		Where("origin_chain_id = ? AND vault_address = ?", originChainID, normKey(vault)).
		First(&report).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query vault report: %w", err)
	}
	return &report, nil
}

// ListVaultReports returns every stored report for one origin chain.
func (s *Store) ListVaultReports(originChainID uint64) ([]VaultReport, error) {
	if s.client == nil {
		return nil, fmt.Errorf("database is nil")
	}
	var reports []VaultReport
	if err := s.client.
		Where("origin_chain_id = ?", originChainID).
		Order("vault_address ASC").
		Find(&reports).Error; err != nil {
		return nil, fmt.Errorf("failed to list vault reports: %w", err)
	}
	return reports, nil
}

// CountVaultReports returns the total number of stored reports.
func (s *Store) CountVaultReports() (int64, error) {
	if s.client == nil {
		return 0, fmt.Errorf("database is nil")
	}
	var count int64
	if err := s.client.Model(&VaultReport{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count vault reports: %w", err)
	}
	return count, nil
}

// SaveAssetPrice caches a resolved price. The cache only ever moves forward
// in time: an older timestamp never overwrites a newer entry.
func (s *Store) SaveAssetPrice(asset string, inUSD bool, price sdkmath.Int, ts time.Time) error {
	if s.client == nil {
		return fmt.Errorf("database is nil")
	}

	var existing AssetPrice
	err := s.client.
		Where("asset = ? AND in_usd = ?", normKey(asset), inUSD).
		First(&existing).Error

	if err == gorm.ErrRecordNotFound {
		entry := AssetPrice{
			Asset:     normKey(asset),
			InUSD:     inUSD,
			Price:     price.String(),
			Timestamp: ts.Unix(),
		}
		if err := s.client.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to create asset price: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to query asset price: %w", err)
	}

	if ts.Unix() < existing.Timestamp {
		return nil
	}
	existing.Price = price.String()
	existing.Timestamp = ts.Unix()
	if err := s.client.Save(&existing).Error; err != nil {
		return fmt.Errorf("failed to update asset price: %w", err)
	}
	return nil
}

// GetAssetPrice returns the cached price for (asset, denomination).
// found is false when no entry exists.
func (s *Store) GetAssetPrice(asset string, inUSD bool) (price sdkmath.Int, ts time.Time, found bool, err error) {
	if s.client == nil {
		return sdkmath.Int{}, time.Time{}, false, fmt.Errorf("database is nil")
	}
	var entry AssetPrice
	qerr := s.client.
		Where("asset = ? AND in_usd = ?", normKey(asset), inUSD).
		First(&entry).Error
	if qerr == gorm.ErrRecordNotFound {
		return sdkmath.Int{}, time.Time{}, false, nil
	}
	if qerr != nil {
		return sdkmath.Int{}, time.Time{}, false, fmt.Errorf("failed to query asset price: %w", qerr)
	}

	parsed, ok := sdkmath.NewIntFromString(entry.Price)
	if !ok {
		return sdkmath.Int{}, time.Time{}, false, fmt.Errorf("corrupt price entry for asset %s", asset)
	}
	return parsed, time.Unix(entry.Timestamp, 0), true, nil
}

// SaveSharePrice caches a converted share price for a vault.
func (s *Store) SaveSharePrice(originChainID uint64, vault, asset string, decimals uint8, price sdkmath.Int, ts time.Time) error {
	if s.client == nil {
		return fmt.Errorf("database is nil")
	}
	entry := SharePrice{
		OriginChainID: originChainID,
		VaultAddress:  normKey(vault),
		Asset:         normKey(asset),
		Decimals:      decimals,
		Price:         price.String(),
		Timestamp:     ts.Unix(),
	}
	return s.client.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "origin_chain_id"}, {Name: "vault_address"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"asset", "decimals", "price", "timestamp", "updated_at",
		}),
	}).Create(&entry).Error
}

// GetSharePrice returns the cached share price for (origin chain, vault).
func (s *Store) GetSharePrice(originChainID uint64, vault string) (*SharePrice, error) {
	if s.client == nil {
		return nil, fmt.Errorf("database is nil")
	}
	var entry SharePrice
	err := s.client.
		Where("origin_chain_id = ? AND vault_address = ?", originChainID, normKey(vault)).
		First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query share price: %w", err)
	}
	return &entry, nil
}

// MarkProcessed records a message id in the replay-protection set. Returns
// false when the id was already present; the set is append-only.
func (s *Store) MarkProcessed(messageID string, originChainID uint64) (bool, error) {
	if s.client == nil {
		return false, fmt.Errorf("database is nil")
	}
	entry := ProcessedMessage{
		MessageID:     messageID,
		OriginChainID: originChainID,
	}
	result := s.client.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry)
	if result.Error != nil {
		return false, fmt.Errorf("failed to record processed message: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// IsProcessed reports whether a message id has already been applied.
func (s *Store) IsProcessed(messageID string) (bool, error) {
	if s.client == nil {
		return false, fmt.Errorf("database is nil")
	}
	var count int64
	if err := s.client.Model(&ProcessedMessage{}).
		Where("message_id = ?", messageID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to query processed messages: %w", err)
	}
	return count > 0, nil
}

// ParsePrice converts a stored decimal string back into an Int.
func ParsePrice(raw string) (sdkmath.Int, error) {
	parsed, ok := sdkmath.NewIntFromString(raw)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("corrupt stored price %q", raw)
	}
	return parsed, nil
}
