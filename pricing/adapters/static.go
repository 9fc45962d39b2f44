package adapters

import (
	"context"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/omnivault/oracle-node/pricing"
)

// StaticAdapter serves fixed 18-decimal prices from configuration. Intended
// for tests and local development, not production feeds.
type StaticAdapter struct {
	name string

	mu     sync.RWMutex
	prices map[common.Address]staticEntry
}

type staticEntry struct {
	price sdkmath.Int
	inUSD bool
}

// NewStaticAdapter creates an empty static adapter.
func NewStaticAdapter(name string) *StaticAdapter {
	return &StaticAdapter{
		name:   name,
		prices: make(map[common.Address]staticEntry),
	}
}

// SetPrice fixes the price served for an asset.
func (a *StaticAdapter) SetPrice(asset common.Address, price sdkmath.Int, inUSD bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prices[asset] = staticEntry{price: price, inUSD: inUSD}
}

// Describe implements pricing.Adapter.
func (a *StaticAdapter) Describe() string { return a.name }

// IsSupportedAsset implements pricing.Adapter.
func (a *StaticAdapter) IsSupportedAsset(asset common.Address) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.prices[asset]
	return ok
}

// GetPrice implements pricing.Adapter.
func (a *StaticAdapter) GetPrice(_ context.Context, asset common.Address, _ bool) (pricing.PriceData, error) {
	a.mu.RLock()
	entry, ok := a.prices[asset]
	a.mu.RUnlock()
	if !ok {
		return pricing.PriceData{HadError: true}, nil
	}
	return pricing.PriceData{Price: entry.price, InUSD: entry.inUSD}, nil
}
