package transport

import (
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeeScheduleQuote(t *testing.T) {
	fees := FeeSchedule{BaseWei: sdkmath.NewInt(100), PerByteWei: sdkmath.NewInt(3)}
	assert.Equal(t, "100", fees.QuoteFor(0).String())
	assert.Equal(t, "130", fees.QuoteFor(10).String())

	assert.True(t, fees.Covers(sdkmath.NewInt(130), 10))
	assert.False(t, fees.Covers(sdkmath.NewInt(129), 10))
	assert.False(t, fees.Covers(sdkmath.Int{}, 10), "a nil fee pays nothing")

	// A zero-value schedule prices everything at zero.
	free := FeeSchedule{}
	assert.True(t, free.Covers(sdkmath.Int{}, 1_000))
}

func TestMemoryTransportDelivery(t *testing.T) {
	net := NewNetwork()
	a := net.Join("a", FeeSchedule{})
	b := net.Join("b", FeeSchedule{BaseWei: sdkmath.NewInt(10)})

	var got []Delivery
	b.SetHandler(func(_ context.Context, d Delivery) {
		got = append(got, d)
	})

	require.NoError(t, a.EnsurePeer("b", nil))
	quote, err := a.Quote(context.Background(), "b", 5)
	require.NoError(t, err)
	assert.Equal(t, "10", quote.String(), "the receiver's schedule prices the delivery")

	err = a.Send(context.Background(), "b", []byte("hello"), sdkmath.NewInt(9))
	assert.Error(t, err, "underpaying the quote must fail")
	require.Empty(t, got)

	require.NoError(t, a.Send(context.Background(), "b", []byte("hello"), quote))
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Sender)
	assert.Equal(t, []byte("hello"), got[0].Payload)
	assert.NotEqual(t, [32]byte{}, got[0].MessageID)

	// Identical payloads still get distinct ids.
	require.NoError(t, a.Send(context.Background(), "b", []byte("hello"), quote))
	require.Len(t, got, 2)
	assert.NotEqual(t, got[0].MessageID, got[1].MessageID)
}

func TestMemoryTransportUnknownPeer(t *testing.T) {
	net := NewNetwork()
	a := net.Join("a", FeeSchedule{})

	assert.Error(t, a.EnsurePeer("ghost", nil))
	_, err := a.Quote(context.Background(), "ghost", 1)
	assert.Error(t, err)
	assert.Error(t, a.Send(context.Background(), "ghost", nil, sdkmath.ZeroInt()))
}

func TestMemoryTransportClose(t *testing.T) {
	net := NewNetwork()
	a := net.Join("a", FeeSchedule{})
	b := net.Join("b", FeeSchedule{})
	require.NoError(t, a.EnsurePeer("b", nil))

	require.NoError(t, b.Close())
	assert.Error(t, a.Send(context.Background(), "b", []byte("x"), sdkmath.ZeroInt()), "a closed peer is unreachable")
}
