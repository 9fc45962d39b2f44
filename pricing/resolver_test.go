package pricing

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oerrors "github.com/omnivault/oracle-node/errors"
	"github.com/omnivault/oracle-node/db"
	"github.com/omnivault/oracle-node/store"
)

var testAsset = common.HexToAddress("0x00000000000000000000000000000000000000AA")

type stubAdapter struct {
	name      string
	data      PriceData
	err       error
	supported bool
	calls     int
}

func (s *stubAdapter) Describe() string { return s.name }

func (s *stubAdapter) GetPrice(context.Context, common.Address, bool) (PriceData, error) {
	s.calls++
	return s.data, s.err
}

func (s *stubAdapter) IsSupportedAsset(common.Address) bool { return s.supported }

func newTestResolver(t *testing.T) (*Resolver, *store.Store) {
	t.Helper()
	database, err := db.OpenInMemoryDB(true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	st := store.New(database.Client())
	r := NewResolver(NewAdapterRegistry(), st, 0, nil, zerolog.Nop())
	return r, st
}

func TestGetLatestPricePriorityOrder(t *testing.T) {
	r, _ := newTestResolver(t)

	failing := &stubAdapter{name: "a", supported: true, data: PriceData{Price: sdkmath.NewInt(1), HadError: true}}
	good := &stubAdapter{
		name:      "b",
		supported: true,
		data:      PriceData{Price: sdkmath.NewIntWithDecimal(100, 18), InUSD: true},
	}
	ignored := &stubAdapter{
		name:      "c",
		supported: true,
		data:      PriceData{Price: sdkmath.NewInt(999), InUSD: true},
	}
	require.NoError(t, r.Adapters().Add(1, failing))
	require.NoError(t, r.Adapters().Add(2, good))
	require.NoError(t, r.Adapters().Add(3, ignored))

	before := time.Now()
	price, ts, isUSD, err := r.GetLatestPrice(context.Background(), testAsset, true)
	require.NoError(t, err)

	assert.Equal(t, sdkmath.NewIntWithDecimal(100, 18).String(), price.String())
	assert.True(t, isUSD)
	assert.False(t, ts.Before(before), "live prices are stamped by the resolver clock")
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, good.calls)
	assert.Equal(t, 0, ignored.calls, "lower-priority adapters must not be consulted after a hit")
}

func TestGetLatestPriceSkipsUnsupported(t *testing.T) {
	r, _ := newTestResolver(t)

	unsupported := &stubAdapter{name: "a", supported: false}
	good := &stubAdapter{name: "b", supported: true, data: PriceData{Price: sdkmath.NewInt(5), InUSD: true}}
	require.NoError(t, r.Adapters().Add(1, unsupported))
	require.NoError(t, r.Adapters().Add(2, good))

	price, _, _, err := r.GetLatestPrice(context.Background(), testAsset, true)
	require.NoError(t, err)
	assert.Equal(t, "5", price.String())
	assert.Equal(t, 0, unsupported.calls)
}

func TestGetLatestPriceNoAdapters(t *testing.T) {
	r, _ := newTestResolver(t)

	_, _, _, err := r.GetLatestPrice(context.Background(), testAsset, true)
	require.Error(t, err)
	assert.True(t, oerrors.Is(err, oerrors.ErrNoAdaptersConfigured))
}

func TestGetLatestPriceCacheFallback(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, cacheAge time.Duration) (*Resolver, time.Time) {
		r, st := newTestResolver(t)
		require.NoError(t, r.Adapters().Add(1, &stubAdapter{name: "dead", supported: true, data: PriceData{HadError: true}}))

		now := time.Unix(1_700_000_000, 0)
		r.now = func() time.Time { return now }
		require.NoError(t, st.SaveAssetPrice(testAsset.Hex(), true, sdkmath.NewInt(42), now.Add(-cacheAge)))
		return r, now
	}

	t.Run("cache exactly at threshold is usable", func(t *testing.T) {
		r, now := setup(t, DefaultStalenessThreshold)
		price, ts, isUSD, err := r.GetLatestPrice(ctx, testAsset, true)
		require.NoError(t, err)
		assert.Equal(t, "42", price.String())
		assert.True(t, isUSD)
		assert.Equal(t, now.Add(-DefaultStalenessThreshold).Unix(), ts.Unix())
	})

	t.Run("one second past threshold fails", func(t *testing.T) {
		r, _ := setup(t, DefaultStalenessThreshold+time.Second)
		_, _, _, err := r.GetLatestPrice(ctx, testAsset, true)
		require.Error(t, err)
		assert.True(t, oerrors.Is(err, oerrors.ErrNoValidPrice))
	})

	t.Run("no cache entry fails", func(t *testing.T) {
		r, _ := newTestResolver(t)
		require.NoError(t, r.Adapters().Add(1, &stubAdapter{name: "dead", supported: true, data: PriceData{HadError: true}}))
		_, _, _, err := r.GetLatestPrice(ctx, testAsset, true)
		require.Error(t, err)
		assert.True(t, oerrors.Is(err, oerrors.ErrNoValidPrice))
	})
}

func TestUpdatePrice(t *testing.T) {
	t.Run("writes through to the cache", func(t *testing.T) {
		r, st := newTestResolver(t)
		require.NoError(t, r.Adapters().Add(1, &stubAdapter{
			name:      "live",
			supported: true,
			data:      PriceData{Price: sdkmath.NewIntWithDecimal(2, 18), InUSD: true},
		}))

		require.NoError(t, r.UpdatePrice(context.Background(), testAsset, true))

		price, _, found, err := st.GetAssetPrice(testAsset.Hex(), true)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, sdkmath.NewIntWithDecimal(2, 18).String(), price.String())
	})

	t.Run("rejects prices wider than 240 bits", func(t *testing.T) {
		r, _ := newTestResolver(t)
		huge := sdkmath.NewIntFromBigInt(new(big.Int).Lsh(big.NewInt(1), 250))
		require.NoError(t, r.Adapters().Add(1, &stubAdapter{
			name:      "wide",
			supported: true,
			data:      PriceData{Price: huge, InUSD: true},
		}))

		err := r.UpdatePrice(context.Background(), testAsset, true)
		require.Error(t, err)
		assert.True(t, oerrors.Is(err, oerrors.ErrInvalidPrice))
	})
}

type stubUptimeFeed struct {
	up        bool
	changedAt time.Time
	err       error
}

func (s *stubUptimeFeed) Status(context.Context) (bool, time.Time, error) {
	return s.up, s.changedAt, s.err
}

func TestSequencerGate(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	gateWith := func(feed *stubUptimeFeed) *SequencerGate {
		g := NewSequencerGate(feed, time.Hour)
		g.now = func() time.Time { return now }
		return g
	}

	t.Run("down sequencer blocks resolution", func(t *testing.T) {
		r, _ := newTestResolver(t)
		require.NoError(t, r.Adapters().Add(1, &stubAdapter{
			name: "live", supported: true, data: PriceData{Price: sdkmath.NewInt(1), InUSD: true},
		}))
		r.SetSequencerGate(gateWith(&stubUptimeFeed{up: false}))

		_, _, _, err := r.GetLatestPrice(context.Background(), testAsset, true)
		require.Error(t, err)
		assert.True(t, oerrors.Is(err, oerrors.ErrSequencerDown))
	})

	t.Run("grace period not elapsed blocks resolution", func(t *testing.T) {
		g := gateWith(&stubUptimeFeed{up: true, changedAt: now.Add(-30 * time.Minute)})
		err := g.Check(context.Background())
		require.Error(t, err)
		assert.True(t, oerrors.Is(err, oerrors.ErrSequencerDown))
	})

	t.Run("feed failure is treated as down", func(t *testing.T) {
		g := gateWith(&stubUptimeFeed{err: fmt.Errorf("rpc unavailable")})
		err := g.Check(context.Background())
		require.Error(t, err)
		assert.True(t, oerrors.Is(err, oerrors.ErrSequencerDown))
	})

	t.Run("healthy sequencer passes", func(t *testing.T) {
		g := gateWith(&stubUptimeFeed{up: true, changedAt: now.Add(-2 * time.Hour)})
		require.NoError(t, g.Check(context.Background()))
	})
}
