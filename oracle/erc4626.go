package oracle

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// erc4626ABIJSON is the subset of the ERC-4626 surface the oracle reads.
const erc4626ABIJSON = `[
  {"inputs":[],"name":"asset","outputs":[
    {"internalType":"address","name":"","type":"address"}],
   "stateMutability":"view","type":"function"},
  {"inputs":[],"name":"decimals","outputs":[
    {"internalType":"uint8","name":"","type":"uint8"}],
   "stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"uint256","name":"shares","type":"uint256"}],
   "name":"convertToAssets","outputs":[
    {"internalType":"uint256","name":"","type":"uint256"}],
   "stateMutability":"view","type":"function"}
]`

var (
	erc4626ABI     abi.ABI
	erc4626ABIOnce sync.Once
)

func loadERC4626ABI() abi.ABI {
	erc4626ABIOnce.Do(func() {
		parsed, err := abi.JSON(strings.NewReader(erc4626ABIJSON))
		if err != nil {
			panic(fmt.Sprintf("invalid erc4626 ABI: %v", err))
		}
		erc4626ABI = parsed
	})
	return erc4626ABI
}

// contractCaller abstracts eth_call so tests can substitute the RPC client.
type contractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ERC4626Vault reads a live ERC-4626 vault over an EVM RPC endpoint.
type ERC4626Vault struct {
	client contractCaller
	addr   common.Address
}

// NewERC4626Vault dials the endpoint and wraps the vault address.
func NewERC4626Vault(endpoint string, addr common.Address) (*ERC4626Vault, error) {
	client, err := ethclient.Dial(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to dial vault endpoint %s: %w", endpoint, err)
	}
	return &ERC4626Vault{client: client, addr: addr}, nil
}

func (v *ERC4626Vault) call(ctx context.Context, method string, args ...any) ([]any, error) {
	parsed := loadERC4626ABI()
	input, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	output, err := v.client.CallContract(ctx, ethereum.CallMsg{To: &v.addr, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}
	return parsed.Unpack(method, output)
}

// Asset implements Vault.
func (v *ERC4626Vault) Asset(ctx context.Context) (common.Address, error) {
	values, err := v.call(ctx, "asset")
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected asset type %T", values[0])
	}
	return addr, nil
}

// Decimals implements Vault.
func (v *ERC4626Vault) Decimals(ctx context.Context) (uint8, error) {
	values, err := v.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected decimals type %T", values[0])
	}
	return decimals, nil
}

// ConvertToAssets implements Vault.
func (v *ERC4626Vault) ConvertToAssets(ctx context.Context, shares sdkmath.Int) (sdkmath.Int, error) {
	values, err := v.call(ctx, "convertToAssets", shares.BigInt())
	if err != nil {
		return sdkmath.Int{}, err
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("unexpected convertToAssets type %T", values[0])
	}
	return sdkmath.NewIntFromBigInt(amount), nil
}
