// Package adapters contains the concrete price-source adapters wired into
// the resolver: an EVM aggregator-feed reader and a static fixture adapter
// for tests and local development.
package adapters

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"github.com/omnivault/oracle-node/pricing"
)

// aggregatorABIJSON is the subset of the aggregator interface the adapter
// reads: the answer with its update time, and the feed's decimals.
const aggregatorABIJSON = `[
  {"inputs":[],"name":"latestRoundData","outputs":[
    {"internalType":"uint80","name":"roundId","type":"uint80"},
    {"internalType":"int256","name":"answer","type":"int256"},
    {"internalType":"uint256","name":"startedAt","type":"uint256"},
    {"internalType":"uint256","name":"updatedAt","type":"uint256"},
    {"internalType":"uint80","name":"answeredInRound","type":"uint80"}],
   "stateMutability":"view","type":"function"},
  {"inputs":[],"name":"decimals","outputs":[
    {"internalType":"uint8","name":"","type":"uint8"}],
   "stateMutability":"view","type":"function"}
]`

var (
	aggregatorABI     abi.ABI
	aggregatorABIOnce sync.Once
)

func loadAggregatorABI() abi.ABI {
	aggregatorABIOnce.Do(func() {
		parsed, err := abi.JSON(strings.NewReader(aggregatorABIJSON))
		if err != nil {
			panic(fmt.Sprintf("invalid aggregator ABI: %v", err))
		}
		aggregatorABI = parsed
	})
	return aggregatorABI
}

// FeedSpec configures one on-chain feed served by the adapter.
type FeedSpec struct {
	FeedAddress common.Address
	InUSD       bool
	// Heartbeat bounds the age of the feed's own update timestamp; a
	// reading older than this is reported through HadError. Zero disables
	// the check.
	Heartbeat time.Duration
}

// caller abstracts the eth_call surface the adapter needs, so tests can
// substitute the RPC client.
type caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// EVMFeedAdapter reads aggregator-style feeds over an EVM RPC endpoint. One
// adapter instance serves every asset it has a FeedSpec for.
type EVMFeedAdapter struct {
	name   string
	client caller

	mu    sync.RWMutex
	feeds map[common.Address]FeedSpec

	now    func() time.Time
	logger zerolog.Logger
}

// NewEVMFeedAdapter dials the endpoint and creates an empty adapter.
func NewEVMFeedAdapter(name, endpoint string, logger zerolog.Logger) (*EVMFeedAdapter, error) {
	client, err := ethclient.Dial(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to dial feed endpoint %s: %w", endpoint, err)
	}
	return newEVMFeedAdapter(name, client, logger), nil
}

func newEVMFeedAdapter(name string, client caller, logger zerolog.Logger) *EVMFeedAdapter {
	return &EVMFeedAdapter{
		name:   name,
		client: client,
		feeds:  make(map[common.Address]FeedSpec),
		now:    time.Now,
		logger: logger.With().Str("component", "evm_feed_adapter").Str("adapter", name).Logger(),
	}
}

// SetFeed registers the feed serving an asset.
func (a *EVMFeedAdapter) SetFeed(asset common.Address, spec FeedSpec) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.feeds[asset] = spec
}

// Describe implements pricing.Adapter.
func (a *EVMFeedAdapter) Describe() string { return a.name }

// IsSupportedAsset implements pricing.Adapter.
func (a *EVMFeedAdapter) IsSupportedAsset(asset common.Address) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.feeds[asset]
	return ok
}

// GetPrice implements pricing.Adapter. The reading is normalized to 18
// decimals; heartbeat violations and non-positive answers surface through
// HadError rather than an error, so the resolver moves on to the next
// adapter.
func (a *EVMFeedAdapter) GetPrice(ctx context.Context, asset common.Address, wantUSD bool) (pricing.PriceData, error) {
	a.mu.RLock()
	spec, ok := a.feeds[asset]
	a.mu.RUnlock()
	if !ok {
		return pricing.PriceData{HadError: true}, nil
	}

	answer, updatedAt, err := a.latestRoundData(ctx, spec.FeedAddress)
	if err != nil {
		return pricing.PriceData{}, err
	}
	if answer.Sign() <= 0 {
		return pricing.PriceData{HadError: true, InUSD: spec.InUSD}, nil
	}
	if spec.Heartbeat > 0 && a.now().Sub(updatedAt) > spec.Heartbeat {
		a.logger.Debug().
			Str("asset", asset.Hex()).
			Time("updated_at", updatedAt).
			Msg("feed reading past heartbeat")
		return pricing.PriceData{HadError: true, InUSD: spec.InUSD}, nil
	}

	feedDecimals, err := a.feedDecimals(ctx, spec.FeedAddress)
	if err != nil {
		return pricing.PriceData{}, err
	}

	price := pricing.ScaleDecimals(sdkmath.NewIntFromBigInt(answer), feedDecimals, pricing.WadDecimals)
	return pricing.PriceData{Price: price, InUSD: spec.InUSD}, nil
}

func (a *EVMFeedAdapter) latestRoundData(ctx context.Context, feed common.Address) (*big.Int, time.Time, error) {
	parsed := loadAggregatorABI()
	input, err := parsed.Pack("latestRoundData")
	if err != nil {
		return nil, time.Time{}, err
	}

	output, err := a.client.CallContract(ctx, ethereum.CallMsg{To: &feed, Data: input}, nil)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("latestRoundData call failed: %w", err)
	}

	values, err := parsed.Unpack("latestRoundData", output)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to decode latestRoundData: %w", err)
	}
	if len(values) != 5 {
		return nil, time.Time{}, fmt.Errorf("unexpected latestRoundData arity %d", len(values))
	}

	answer, ok := values[1].(*big.Int)
	if !ok {
		return nil, time.Time{}, fmt.Errorf("unexpected answer type %T", values[1])
	}
	updatedAt, ok := values[3].(*big.Int)
	if !ok {
		return nil, time.Time{}, fmt.Errorf("unexpected updatedAt type %T", values[3])
	}
	return answer, time.Unix(updatedAt.Int64(), 0), nil
}

func (a *EVMFeedAdapter) feedDecimals(ctx context.Context, feed common.Address) (uint8, error) {
	parsed := loadAggregatorABI()
	input, err := parsed.Pack("decimals")
	if err != nil {
		return 0, err
	}
	output, err := a.client.CallContract(ctx, ethereum.CallMsg{To: &feed, Data: input}, nil)
	if err != nil {
		return 0, fmt.Errorf("decimals call failed: %w", err)
	}
	values, err := parsed.Unpack("decimals", output)
	if err != nil {
		return 0, fmt.Errorf("failed to decode decimals: %w", err)
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected decimals type %T", values[0])
	}
	return decimals, nil
}
