package oracle

import (
	"context"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// Vault is the capability the oracle needs from a local vault: its
// underlying asset, that asset's decimals, and the share-to-asset ratio.
type Vault interface {
	Asset(ctx context.Context) (common.Address, error)
	Decimals(ctx context.Context) (uint8, error)
	ConvertToAssets(ctx context.Context, shares sdkmath.Int) (sdkmath.Int, error)
}

// VaultRegistry holds the local vaults the daemon can report on.
type VaultRegistry struct {
	mu     sync.RWMutex
	vaults map[common.Address]Vault
}

// NewVaultRegistry creates an empty registry.
func NewVaultRegistry() *VaultRegistry {
	return &VaultRegistry{vaults: make(map[common.Address]Vault)}
}

// Register adds or replaces a vault.
func (r *VaultRegistry) Register(addr common.Address, vault Vault) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vaults[addr] = vault
}

// Get returns the vault registered at an address.
func (r *VaultRegistry) Get(addr common.Address) (Vault, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.vaults[addr]
	return v, ok
}

// Addresses lists every registered vault address.
func (r *VaultRegistry) Addresses() []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]common.Address, 0, len(r.vaults))
	for addr := range r.vaults {
		out = append(out, addr)
	}
	return out
}
