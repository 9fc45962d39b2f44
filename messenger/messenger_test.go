package messenger

import (
	"context"
	"sync"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnivault/oracle-node/db"
	oerrors "github.com/omnivault/oracle-node/errors"
	"github.com/omnivault/oracle-node/messenger/transport"
	"github.com/omnivault/oracle-node/oracle"
	"github.com/omnivault/oracle-node/store"
)

type captureIngester struct {
	mu      sync.Mutex
	batches [][]oracle.Report
}

func (c *captureIngester) UpdateSharePrices(_ context.Context, reports []oracle.Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, reports)
	return nil
}

func (c *captureIngester) batchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

func (c *captureIngester) lastBatch() []oracle.Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.batches) == 0 {
		return nil
	}
	return c.batches[len(c.batches)-1]
}

type staticProducer struct {
	reports []oracle.Report
}

func (p *staticProducer) BuildLocalReports(context.Context) []oracle.Report {
	out := make([]oracle.Report, len(p.reports))
	copy(out, p.reports)
	return out
}

type node struct {
	msgr     *Messenger
	store    *store.Store
	ingester *captureIngester
	producer *staticProducer
}

func newNode(t *testing.T, net *transport.Network, chainID uint64, name string, fees transport.FeeSchedule) *node {
	t.Helper()

	database, err := db.OpenInMemoryDB(true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	st := store.New(database.Client())

	n := &node{
		store:    st,
		ingester: &captureIngester{},
		producer: &staticProducer{},
	}
	n.msgr = New(chainID, net.Join(name, fees), NewPeerTable(), NewEnforcedOptions(), st, n.ingester, n.producer, sdkmath.Int{}, nil, zerolog.Nop())
	return n
}

// linkedPair wires two nodes that know each other as peers.
func linkedPair(t *testing.T, fees transport.FeeSchedule) (*node, *node) {
	t.Helper()
	net := transport.NewNetwork()
	a := newNode(t, net, 1, "nodeA", fees)
	b := newNode(t, net, 2, "nodeB", fees)
	require.NoError(t, a.msgr.Peers().Set(Peer{ChainID: 2, TransportID: "nodeB", Addrs: []string{"memory://nodeB"}}))
	require.NoError(t, b.msgr.Peers().Set(Peer{ChainID: 1, TransportID: "nodeA", Addrs: []string{"memory://nodeA"}}))
	return a, b
}

func testReport(vault byte, origin uint64) oracle.Report {
	return oracle.Report{
		SharePrice:    sdkmath.NewInt(1_050_000),
		LastUpdate:    time.Unix(1_700_000_000, 0),
		OriginChainID: origin,
		VaultAddress:  common.BytesToAddress([]byte{vault}),
		Asset:         common.HexToAddress("0x00000000000000000000000000000000000000C1"),
		AssetDecimals: 6,
	}
}

func TestSendReportsDeliversToPeer(t *testing.T) {
	a, b := linkedPair(t, transport.FeeSchedule{})

	err := a.msgr.SendReports(context.Background(), 2, []oracle.Report{testReport(0x11, 1)}, nil, sdkmath.Int{})
	require.NoError(t, err)

	require.Equal(t, 1, b.ingester.batchCount())
	batch := b.ingester.lastBatch()
	require.Len(t, batch, 1)
	assert.EqualValues(t, 1, batch[0].OriginChainID, "ingested reports carry the sender's chain id")
	assert.Equal(t, "1050000", batch[0].SharePrice.String())
}

func TestSendReportsWithoutPeer(t *testing.T) {
	a, _ := linkedPair(t, transport.FeeSchedule{})

	err := a.msgr.SendReports(context.Background(), 9, []oracle.Report{testReport(0x11, 1)}, nil, sdkmath.Int{})
	assert.True(t, oerrors.Is(err, oerrors.ErrPeerNotSet))
}

func TestSendReportsRespectsFeeBudget(t *testing.T) {
	fees := transport.FeeSchedule{BaseWei: sdkmath.NewInt(1_000), PerByteWei: sdkmath.NewInt(2)}
	a, b := linkedPair(t, fees)

	err := a.msgr.SendReports(context.Background(), 2, []oracle.Report{testReport(0x11, 1)}, nil, sdkmath.NewInt(1))
	assert.True(t, oerrors.Is(err, oerrors.ErrInsufficientFee))
	assert.Zero(t, b.ingester.batchCount(), "an underfunded send must not reach the peer")

	// A budget at or above the quote goes through.
	err = a.msgr.SendReports(context.Background(), 2, []oracle.Report{testReport(0x11, 1)}, nil, sdkmath.NewInt(1_000_000))
	require.NoError(t, err)
	assert.Equal(t, 1, b.ingester.batchCount())
}

func TestReplayedMessageIsDropped(t *testing.T) {
	_, b := linkedPair(t, transport.FeeSchedule{})

	payload, err := EncodeReportPush(1, []oracle.Report{testReport(0x11, 1)}, nil)
	require.NoError(t, err)
	d := transport.Delivery{
		Sender:    "nodeA",
		MessageID: [32]byte{0x01, 0x02},
		Payload:   payload,
	}

	b.msgr.handleDelivery(context.Background(), d)
	b.msgr.handleDelivery(context.Background(), d)

	assert.Equal(t, 1, b.ingester.batchCount(), "the same message id must apply exactly once")
}

func TestUnknownSenderIsDropped(t *testing.T) {
	_, b := linkedPair(t, transport.FeeSchedule{})

	payload, err := EncodeReportPush(1, []oracle.Report{testReport(0x11, 1)}, nil)
	require.NoError(t, err)
	d := transport.Delivery{
		Sender:    "intruder",
		MessageID: [32]byte{0x03},
		Payload:   payload,
	}
	b.msgr.handleDelivery(context.Background(), d)

	assert.Zero(t, b.ingester.batchCount())
	// Authentication precedes the replay record: an unauthenticated message
	// must not occupy its id.
	processed, err := b.store.IsProcessed("0300000000000000000000000000000000000000000000000000000000000000")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestSpoofedOriginIsDropped(t *testing.T) {
	_, b := linkedPair(t, transport.FeeSchedule{})

	// nodeA is the chain-1 peer but the envelope claims chain 3.
	payload, err := EncodeReportPush(3, []oracle.Report{testReport(0x11, 3)}, nil)
	require.NoError(t, err)
	b.msgr.handleDelivery(context.Background(), transport.Delivery{
		Sender:    "nodeA",
		MessageID: [32]byte{0x04},
		Payload:   payload,
	})

	assert.Zero(t, b.ingester.batchCount())
}

func TestRequestReportsRoundTrip(t *testing.T) {
	a, b := linkedPair(t, transport.FeeSchedule{})
	b.producer.reports = []oracle.Report{testReport(0x11, 2), testReport(0x22, 2)}
	delegate := common.HexToAddress("0x00000000000000000000000000000000000000D1")

	err := a.msgr.RequestReports(context.Background(), 2, []common.Address{common.BytesToAddress([]byte{0x11})}, delegate, nil, nil, sdkmath.Int{})
	require.NoError(t, err)

	require.Equal(t, 1, a.ingester.batchCount(), "the response push must come back to the requester")
	batch := a.ingester.lastBatch()
	require.Len(t, batch, 1, "only the requested vault is returned")
	assert.Equal(t, common.BytesToAddress([]byte{0x11}), batch[0].VaultAddress)
	assert.Equal(t, delegate, batch[0].RewardsDelegate, "the requester's delegate overrides the producer's")
	assert.EqualValues(t, 2, batch[0].OriginChainID)
}

func TestRequestWithNoMatchingVaultsSendsNothing(t *testing.T) {
	a, b := linkedPair(t, transport.FeeSchedule{})
	b.producer.reports = []oracle.Report{testReport(0x11, 2)}

	err := a.msgr.RequestReports(context.Background(), 2, []common.Address{common.BytesToAddress([]byte{0x99})}, common.Address{}, nil, nil, sdkmath.Int{})
	require.NoError(t, err)
	assert.Zero(t, a.ingester.batchCount())
}

func TestResponseCarriesEnforcedOptions(t *testing.T) {
	a, b := linkedPair(t, transport.FeeSchedule{})
	b.producer.reports = []oracle.Report{testReport(0x11, 2)}
	// B enforces executor options on pushes to chain 1; the requester's
	// return options are merged on top of that floor.
	require.NoError(t, b.msgr.EnforcedOptions().Set(1, MsgTypeReportPush, []byte{0x00, 0x03, 0xAA}))

	err := a.msgr.RequestReports(context.Background(), 2, nil, common.Address{}, nil, []byte{0x00, 0x03, 0xCC}, sdkmath.Int{})
	require.NoError(t, err)
	assert.Equal(t, 1, a.ingester.batchCount())
}

func TestRequestReportsRejectsBadReturnOptions(t *testing.T) {
	a, _ := linkedPair(t, transport.FeeSchedule{})

	err := a.msgr.RequestReports(context.Background(), 2, nil, common.Address{}, nil, []byte{0x00, 0x01, 0xCC}, sdkmath.Int{})
	assert.Error(t, err, "return options with a wrong version must be rejected before any send")
}
