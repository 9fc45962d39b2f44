package pricing

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	oerrors "github.com/omnivault/oracle-node/errors"
)

// AssetInfo describes one local asset.
type AssetInfo struct {
	Addr     common.Address
	Symbol   string
	Decimals uint8
	Category Category
}

type remoteAssetKey struct {
	ChainID uint64
	Addr    common.Address
}

// AssetRegistry is the administratively configured asset catalog: per-asset
// category and decimals, plus the cross-chain local-equivalent map. Data can
// only change through the Set methods.
type AssetRegistry struct {
	mu         sync.RWMutex
	assets     map[common.Address]AssetInfo
	localEquiv map[remoteAssetKey]common.Address
	lastUpdate time.Time
	logger     zerolog.Logger
}

// NewAssetRegistry creates an empty registry.
func NewAssetRegistry(logger zerolog.Logger) *AssetRegistry {
	return &AssetRegistry{
		assets:     make(map[common.Address]AssetInfo),
		localEquiv: make(map[remoteAssetKey]common.Address),
		logger:     logger.With().Str("component", "asset_registry").Logger(),
	}
}

// Register adds or replaces an asset entry.
func (r *AssetRegistry) Register(info AssetInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets[info.Addr] = info
	r.lastUpdate = time.Now()
	r.logger.Debug().
		Str("asset", info.Addr.Hex()).
		Str("category", info.Category.String()).
		Uint8("decimals", info.Decimals).
		Msg("asset registered")
}

// SetCategory reassigns the category of a known asset.
func (r *AssetRegistry) SetCategory(addr common.Address, category Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.assets[addr]
	if !ok {
		return oerrors.Newf(oerrors.ErrCodeValidation, "unknown asset %s", addr.Hex())
	}
	info.Category = category
	r.assets[addr] = info
	r.lastUpdate = time.Now()
	return nil
}

// Get returns the asset entry for an address.
func (r *AssetRegistry) Get(addr common.Address) (AssetInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.assets[addr]
	return info, ok
}

// All returns a copy of the catalog.
func (r *AssetRegistry) All() []AssetInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]AssetInfo, 0, len(r.assets))
	for _, info := range r.assets {
		out = append(out, info)
	}
	return out
}

// SetLocalEquivalent maps a (source chain, source asset) pair to the local
// asset considered economically equivalent.
func (r *AssetRegistry) SetLocalEquivalent(sourceChainID uint64, sourceAsset, localAsset common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assets[localAsset]; !ok {
		return oerrors.Newf(oerrors.ErrCodeValidation, "local asset %s not registered", localAsset.Hex())
	}
	r.localEquiv[remoteAssetKey{ChainID: sourceChainID, Addr: sourceAsset}] = localAsset
	r.lastUpdate = time.Now()
	return nil
}

// LocalEquivalent looks up the local equivalent for a remote asset.
func (r *AssetRegistry) LocalEquivalent(sourceChainID uint64, sourceAsset common.Address) (common.Address, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	local, ok := r.localEquiv[remoteAssetKey{ChainID: sourceChainID, Addr: sourceAsset}]
	return local, ok
}

// LastUpdated returns the last time the catalog changed.
func (r *AssetRegistry) LastUpdated() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastUpdate
}
