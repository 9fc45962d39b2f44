package adapters

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// EVMUptimeFeed reads an aggregator-style sequencer-uptime feed: answer 0
// means the sequencer is up, and startedAt is when that status began.
type EVMUptimeFeed struct {
	client caller
	feed   common.Address
}

// NewEVMUptimeFeed dials the endpoint and wraps the uptime feed address.
func NewEVMUptimeFeed(endpoint string, feed common.Address) (*EVMUptimeFeed, error) {
	client, err := ethclient.Dial(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to dial uptime feed endpoint %s: %w", endpoint, err)
	}
	return &EVMUptimeFeed{client: client, feed: feed}, nil
}

// Status implements pricing.UptimeFeed.
func (f *EVMUptimeFeed) Status(ctx context.Context) (bool, time.Time, error) {
	parsed := loadAggregatorABI()
	input, err := parsed.Pack("latestRoundData")
	if err != nil {
		return false, time.Time{}, err
	}
	output, err := f.client.CallContract(ctx, ethereum.CallMsg{To: &f.feed, Data: input}, nil)
	if err != nil {
		return false, time.Time{}, fmt.Errorf("uptime feed call failed: %w", err)
	}
	values, err := parsed.Unpack("latestRoundData", output)
	if err != nil {
		return false, time.Time{}, fmt.Errorf("failed to decode uptime feed: %w", err)
	}
	if len(values) != 5 {
		return false, time.Time{}, fmt.Errorf("unexpected uptime feed arity %d", len(values))
	}

	answer, ok := values[1].(*big.Int)
	if !ok {
		return false, time.Time{}, fmt.Errorf("unexpected answer type %T", values[1])
	}
	startedAt, ok := values[2].(*big.Int)
	if !ok {
		return false, time.Time{}, fmt.Errorf("unexpected startedAt type %T", values[2])
	}

	return answer.Sign() == 0, time.Unix(startedAt.Int64(), 0), nil
}
