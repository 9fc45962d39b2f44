package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oerrors "github.com/omnivault/oracle-node/errors"
	"github.com/omnivault/oracle-node/messenger"
	"github.com/omnivault/oracle-node/oracle"
	"github.com/omnivault/oracle-node/pricing"
	"github.com/omnivault/oracle-node/store"
)

type fakeSharePrices struct {
	price sdkmath.Int
	ts    time.Time
}

func (f *fakeSharePrices) GetLatestSharePrice(context.Context, uint64, common.Address, common.Address) (sdkmath.Int, time.Time) {
	return f.price, f.ts
}

type fakePrices struct {
	price   sdkmath.Int
	ts      time.Time
	err     error
	updated []common.Address
}

func (f *fakePrices) GetLatestPrice(_ context.Context, _ common.Address, wantUSD bool) (sdkmath.Int, time.Time, bool, error) {
	if f.err != nil {
		return sdkmath.Int{}, time.Time{}, false, f.err
	}
	return f.price, f.ts, wantUSD, nil
}

func (f *fakePrices) UpdatePrice(_ context.Context, asset common.Address, _ bool) error {
	if f.err != nil {
		return f.err
	}
	f.updated = append(f.updated, asset)
	return nil
}

type fakeReports struct {
	reports []store.VaultReport
}

func (f *fakeReports) ListVaultReports(uint64) ([]store.VaultReport, error) {
	return f.reports, nil
}

func newTestServer(t *testing.T, deps Deps) *Server {
	t.Helper()
	if deps.Peers == nil {
		deps.Peers = messenger.NewPeerTable()
	}
	if deps.Assets == nil {
		deps.Assets = pricing.NewAssetRegistry(zerolog.Nop())
	}
	return &Server{
		logger: zerolog.New(zerolog.NewTestWriter(t)),
		deps:   deps,
	}
}

func TestHandleHealth(t *testing.T) {
	server := newTestServer(t, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	server.handleHealth(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestHandlePrice(t *testing.T) {
	ts := time.Unix(1_700_000_000, 0)
	server := newTestServer(t, Deps{
		Prices: &fakePrices{price: sdkmath.NewInt(100).Mul(pricing.Wad()), ts: ts},
	})

	t.Run("serves a resolved price", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/price?asset=0x00000000000000000000000000000000000000C1", nil)
		w := httptest.NewRecorder()
		server.handlePrice(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp QueryResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		data := resp.Data.(map[string]any)
		assert.Equal(t, "100000000000000000000", data["price"])
		assert.Equal(t, true, data["in_usd"])
	})

	t.Run("rejects a malformed asset", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/price?asset=not-an-address", nil)
		w := httptest.NewRecorder()
		server.handlePrice(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("maps resolution failure to 404", func(t *testing.T) {
		failing := newTestServer(t, Deps{Prices: &fakePrices{err: oerrors.ErrNoValidPrice}})
		req := httptest.NewRequest(http.MethodGet, "/api/v1/price?asset=0x00000000000000000000000000000000000000C1", nil)
		w := httptest.NewRecorder()
		failing.handlePrice(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandleSharePrice(t *testing.T) {
	ts := time.Unix(1_700_000_000, 0)
	server := newTestServer(t, Deps{
		SharePrices: &fakeSharePrices{price: sdkmath.NewInt(1_050_000), ts: ts},
	})

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/share-price?origin_chain=10&vault=0x0000000000000000000000000000000000000011&dst_asset=0x00000000000000000000000000000000000000C1", nil)
	w := httptest.NewRecorder()
	server.handleSharePrice(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp.Data.(map[string]any)
	assert.Equal(t, "1050000", data["price"])
	assert.EqualValues(t, 10, data["origin_chain_id"])

	t.Run("requires a positive origin chain", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet,
			"/api/v1/share-price?origin_chain=0&vault=0x0000000000000000000000000000000000000011&dst_asset=0x00000000000000000000000000000000000000C1", nil)
		w := httptest.NewRecorder()
		server.handleSharePrice(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleReports(t *testing.T) {
	server := newTestServer(t, Deps{
		Reports: &fakeReports{reports: []store.VaultReport{{
			OriginChainID: 10,
			VaultAddress:  "0x0000000000000000000000000000000000000011",
			Asset:         "0x00000000000000000000000000000000000000c1",
			AssetDecimals: 6,
			SharePrice:    "2000000",
			LastUpdate:    1_700_000_000,
		}}},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports?origin_chain=10", nil)
	w := httptest.NewRecorder()
	server.handleReports(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	entries := resp.Data.([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "2000000", entries[0].(map[string]any)["share_price"])
}

func TestHandleSetPeer(t *testing.T) {
	server := newTestServer(t, Deps{})

	body := `{"chain_id":10,"peer_id":"12D3KooTest","addrs":["/ip4/10.0.0.1/tcp/4001"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/peer", strings.NewReader(body))
	w := httptest.NewRecorder()
	server.handleSetPeer(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	peer, ok := server.deps.Peers.Get(10)
	require.True(t, ok)
	assert.Equal(t, "12D3KooTest", peer.TransportID)

	t.Run("rejects a zero chain id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/peer", strings.NewReader(`{"chain_id":0,"peer_id":"x"}`))
		w := httptest.NewRecorder()
		server.handleSetPeer(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleSetAssetCategoryAndMap(t *testing.T) {
	server := newTestServer(t, Deps{})
	local := common.HexToAddress("0x00000000000000000000000000000000000000C1")
	server.deps.Assets.Register(pricing.AssetInfo{Addr: local, Symbol: "USDC", Decimals: 6})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/asset-category",
		strings.NewReader(`{"asset":"0x00000000000000000000000000000000000000C1","category":"STABLE"}`))
	w := httptest.NewRecorder()
	server.handleSetAssetCategory(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	info, ok := server.deps.Assets.Get(local)
	require.True(t, ok)
	assert.Equal(t, pricing.CategoryStable, info.Category)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/admin/asset-map",
		strings.NewReader(`{"source_chain_id":10,"source_asset":"0x00000000000000000000000000000000000000C2","local_asset":"0x00000000000000000000000000000000000000C1"}`))
	w = httptest.NewRecorder()
	server.handleSetAssetMap(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	mapped, ok := server.deps.Assets.LocalEquivalent(10, common.HexToAddress("0x00000000000000000000000000000000000000C2"))
	require.True(t, ok)
	assert.Equal(t, local, mapped)
}

func TestHandleUpdatePrice(t *testing.T) {
	prices := &fakePrices{price: pricing.Wad(), ts: time.Now()}
	server := newTestServer(t, Deps{Prices: prices})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/update-price",
		strings.NewReader(`{"asset":"0x00000000000000000000000000000000000000C1","in_usd":true}`))
	w := httptest.NewRecorder()
	server.handleUpdatePrice(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, prices.updated, 1)
}

type fakeMessenger struct {
	sent      map[uint64][]oracle.Report
	requested map[uint64][]common.Address
	err       error
}

func (f *fakeMessenger) SendReports(_ context.Context, dstChainID uint64, reports []oracle.Report, _ []byte, _ sdkmath.Int) error {
	if f.err != nil {
		return f.err
	}
	if f.sent == nil {
		f.sent = make(map[uint64][]oracle.Report)
	}
	f.sent[dstChainID] = reports
	return nil
}

func (f *fakeMessenger) RequestReports(_ context.Context, dstChainID uint64, vaults []common.Address, _ common.Address, _, _ []byte, _ sdkmath.Int) error {
	if f.err != nil {
		return f.err
	}
	if f.requested == nil {
		f.requested = make(map[uint64][]common.Address)
	}
	f.requested[dstChainID] = vaults
	return nil
}

type fakeBuilder struct {
	reports []oracle.Report
}

func (f *fakeBuilder) BuildLocalReports(context.Context) []oracle.Report {
	out := make([]oracle.Report, len(f.reports))
	copy(out, f.reports)
	return out
}

func TestHandleSendReports(t *testing.T) {
	vault := common.HexToAddress("0x0000000000000000000000000000000000000011")
	other := common.HexToAddress("0x0000000000000000000000000000000000000022")
	msgr := &fakeMessenger{}
	server := newTestServer(t, Deps{
		Messenger: msgr,
		Builder: &fakeBuilder{reports: []oracle.Report{
			{VaultAddress: vault, SharePrice: sdkmath.NewInt(1_050_000), OriginChainID: 1},
			{VaultAddress: other, SharePrice: sdkmath.NewInt(2_000_000), OriginChainID: 1},
		}},
	})

	t.Run("filters to the requested vaults", func(t *testing.T) {
		body := `{"dst_chain_id":10,"vaults":["0x0000000000000000000000000000000000000011"]}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/send-reports", strings.NewReader(body))
		w := httptest.NewRecorder()
		server.handleSendReports(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		require.Len(t, msgr.sent[10], 1)
		assert.Equal(t, vault, msgr.sent[10][0].VaultAddress)
	})

	t.Run("rejects a zero destination chain", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/send-reports", strings.NewReader(`{"dst_chain_id":0}`))
		w := httptest.NewRecorder()
		server.handleSendReports(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("surfaces a send failure", func(t *testing.T) {
		failing := newTestServer(t, Deps{
			Messenger: &fakeMessenger{err: oerrors.ErrPeerNotSet},
			Builder:   &fakeBuilder{reports: []oracle.Report{{VaultAddress: vault, SharePrice: sdkmath.NewInt(1), OriginChainID: 1}}},
		})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/send-reports", strings.NewReader(`{"dst_chain_id":10}`))
		w := httptest.NewRecorder()
		failing.handleSendReports(w, req)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestHandleRequestReports(t *testing.T) {
	msgr := &fakeMessenger{}
	server := newTestServer(t, Deps{Messenger: msgr})

	body := `{"dst_chain_id":10,"vaults":["0x0000000000000000000000000000000000000011"],"return_options":"0x0003aa"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/request-reports", strings.NewReader(body))
	w := httptest.NewRecorder()
	server.handleRequestReports(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, msgr.requested[10], 1)

	t.Run("rejects a malformed vault address", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/request-reports",
			strings.NewReader(`{"dst_chain_id":10,"vaults":["nope"]}`))
		w := httptest.NewRecorder()
		server.handleRequestReports(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects a malformed fee budget", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/request-reports",
			strings.NewReader(`{"dst_chain_id":10,"fee_budget":"lots"}`))
		w := httptest.NewRecorder()
		server.handleRequestReports(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
