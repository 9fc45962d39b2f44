package adapters

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testAsset = common.HexToAddress("0x00000000000000000000000000000000000000A1")
	testFeed  = common.HexToAddress("0x00000000000000000000000000000000000000F1")
)

// fakeCaller answers eth_call requests with pre-encoded ABI outputs keyed by
// contract address and method selector.
type fakeCaller struct {
	answer    *big.Int
	updatedAt int64
	startedAt int64
	decimals  uint8
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	parsed := loadAggregatorABI()
	method, err := parsed.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "latestRoundData":
		return method.Outputs.Pack(
			big.NewInt(1),
			f.answer,
			big.NewInt(f.startedAt),
			big.NewInt(f.updatedAt),
			big.NewInt(1),
		)
	case "decimals":
		return method.Outputs.Pack(f.decimals)
	}
	return nil, nil
}

func newFeedAdapter(t *testing.T, c *fakeCaller, heartbeat time.Duration) *EVMFeedAdapter {
	t.Helper()
	a := newEVMFeedAdapter("test", c, zerolog.Nop())
	a.SetFeed(testAsset, FeedSpec{FeedAddress: testFeed, InUSD: true, Heartbeat: heartbeat})
	return a
}

func TestEVMFeedAdapterNormalizesDecimals(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	// 100.000000 with 8 feed decimals.
	c := &fakeCaller{answer: big.NewInt(100_0000_0000), updatedAt: now.Unix(), decimals: 8}
	a := newFeedAdapter(t, c, 0)
	a.now = func() time.Time { return now }

	data, err := a.GetPrice(context.Background(), testAsset, true)
	require.NoError(t, err)
	require.False(t, data.HadError)
	assert.True(t, data.InUSD)
	assert.Equal(t, "100000000000000000000", data.Price.String(), "8-decimal reading must be scaled to 18")
}

func TestEVMFeedAdapterHeartbeat(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := &fakeCaller{answer: big.NewInt(1_0000_0000), updatedAt: now.Add(-2 * time.Hour).Unix(), decimals: 8}
	a := newFeedAdapter(t, c, time.Hour)
	a.now = func() time.Time { return now }

	data, err := a.GetPrice(context.Background(), testAsset, true)
	require.NoError(t, err)
	assert.True(t, data.HadError, "a reading past the heartbeat must signal failure, not error")
}

func TestEVMFeedAdapterRejectsNonPositive(t *testing.T) {
	c := &fakeCaller{answer: big.NewInt(-1), updatedAt: time.Now().Unix(), decimals: 8}
	a := newFeedAdapter(t, c, 0)

	data, err := a.GetPrice(context.Background(), testAsset, true)
	require.NoError(t, err)
	assert.True(t, data.HadError)
}

func TestEVMFeedAdapterUnknownAsset(t *testing.T) {
	a := newEVMFeedAdapter("test", &fakeCaller{}, zerolog.Nop())

	assert.False(t, a.IsSupportedAsset(testAsset))
	data, err := a.GetPrice(context.Background(), testAsset, true)
	require.NoError(t, err)
	assert.True(t, data.HadError)
}

func TestEVMUptimeFeedStatus(t *testing.T) {
	started := time.Unix(1_700_000_000, 0)

	t.Run("zero answer means up", func(t *testing.T) {
		f := &EVMUptimeFeed{client: &fakeCaller{answer: big.NewInt(0), startedAt: started.Unix()}, feed: testFeed}
		up, changedAt, err := f.Status(context.Background())
		require.NoError(t, err)
		assert.True(t, up)
		assert.Equal(t, started.Unix(), changedAt.Unix())
	})

	t.Run("non-zero answer means down", func(t *testing.T) {
		f := &EVMUptimeFeed{client: &fakeCaller{answer: big.NewInt(1), startedAt: started.Unix()}, feed: testFeed}
		up, _, err := f.Status(context.Background())
		require.NoError(t, err)
		assert.False(t, up)
	})
}
