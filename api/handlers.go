package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/omnivault/oracle-node/messenger"
	"github.com/omnivault/oracle-node/pricing"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func parseAddress(raw string) (common.Address, bool) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// handlePrice handles GET /api/v1/price?asset=<address>&usd=<bool>
func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	asset, ok := parseAddress(r.URL.Query().Get("asset"))
	if !ok {
		writeError(w, http.StatusBadRequest, "asset parameter must be a hex address")
		return
	}
	wantUSD := true
	if raw := r.URL.Query().Get("usd"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "usd parameter must be a boolean")
			return
		}
		wantUSD = parsed
	}

	price, ts, inUSD, err := s.deps.Prices.GetLatestPrice(r.Context(), asset, wantUSD)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, QueryResponse{
		Data: PriceResponse{
			Asset:     asset.Hex(),
			Price:     price.String(),
			InUSD:     inUSD,
			Timestamp: ts,
		},
		LastFetched: ts,
	})
}

// handleSharePrice handles
// GET /api/v1/share-price?origin_chain=<id>&vault=<address>&dst_asset=<address>
func (s *Server) handleSharePrice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	originChain, err := strconv.ParseUint(r.URL.Query().Get("origin_chain"), 10, 64)
	if err != nil || originChain == 0 {
		writeError(w, http.StatusBadRequest, "origin_chain parameter must be a positive integer")
		return
	}
	vault, ok := parseAddress(r.URL.Query().Get("vault"))
	if !ok {
		writeError(w, http.StatusBadRequest, "vault parameter must be a hex address")
		return
	}
	dstAsset, ok := parseAddress(r.URL.Query().Get("dst_asset"))
	if !ok {
		writeError(w, http.StatusBadRequest, "dst_asset parameter must be a hex address")
		return
	}

	price, ts := s.deps.SharePrices.GetLatestSharePrice(r.Context(), originChain, vault, dstAsset)

	writeJSON(w, http.StatusOK, QueryResponse{
		Data: SharePriceResponse{
			OriginChainID: originChain,
			Vault:         vault.Hex(),
			DstAsset:      dstAsset.Hex(),
			Price:         price.String(),
			Timestamp:     ts,
		},
		LastFetched: ts,
	})
}

// handleReports handles GET /api/v1/reports?origin_chain=<id>
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	originChain, err := strconv.ParseUint(r.URL.Query().Get("origin_chain"), 10, 64)
	if err != nil || originChain == 0 {
		writeError(w, http.StatusBadRequest, "origin_chain parameter must be a positive integer")
		return
	}

	reports, err := s.deps.Reports.ListVaultReports(originChain)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]ReportResponse, 0, len(reports))
	for _, rep := range reports {
		out = append(out, ReportResponse{
			OriginChainID:   rep.OriginChainID,
			Vault:           rep.VaultAddress,
			Asset:           rep.Asset,
			AssetDecimals:   rep.AssetDecimals,
			SharePrice:      rep.SharePrice,
			LastUpdate:      time.Unix(rep.LastUpdate, 0),
			RewardsDelegate: rep.RewardsDelegate,
		})
	}

	writeJSON(w, http.StatusOK, QueryResponse{Data: out, LastFetched: time.Now()})
}

// handleAssets handles GET /api/v1/assets
func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	type assetEntry struct {
		Address  string `json:"address"`
		Symbol   string `json:"symbol"`
		Decimals uint8  `json:"decimals"`
		Category string `json:"category"`
	}
	infos := s.deps.Assets.All()
	out := make([]assetEntry, 0, len(infos))
	for _, info := range infos {
		out = append(out, assetEntry{
			Address:  info.Addr.Hex(),
			Symbol:   info.Symbol,
			Decimals: info.Decimals,
			Category: info.Category.String(),
		})
	}

	writeJSON(w, http.StatusOK, QueryResponse{Data: out, LastFetched: s.deps.Assets.LastUpdated()})
}

// handlePeers handles GET /api/v1/peers
func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	peers := s.deps.Peers.All()
	out := make([]PeerResponse, 0, len(peers))
	for _, p := range peers {
		out = append(out, PeerResponse{
			ChainID:     p.ChainID,
			TransportID: p.TransportID,
			Addrs:       p.Addrs,
		})
	}

	writeJSON(w, http.StatusOK, QueryResponse{Data: out, LastFetched: time.Now()})
}

// handleUpdatePrice handles POST /api/v1/admin/update-price
func (s *Server) handleUpdatePrice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req UpdatePriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	asset, ok := parseAddress(req.Asset)
	if !ok {
		writeError(w, http.StatusBadRequest, "asset must be a hex address")
		return
	}

	if err := s.deps.Prices.UpdatePrice(r.Context(), asset, req.InUSD); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{Data: "price updated", LastFetched: time.Now()})
}

// handleSetPeer handles POST /api/v1/admin/peer
func (s *Server) handleSetPeer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SetPeerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := s.deps.Peers.Set(messenger.Peer{
		ChainID:     req.ChainID,
		TransportID: req.PeerID,
		Addrs:       req.Addrs,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Info().Uint64("chain_id", req.ChainID).Str("peer_id", req.PeerID).Msg("peer updated")
	writeJSON(w, http.StatusOK, QueryResponse{Data: "peer updated", LastFetched: time.Now()})
}

// handleSetAssetCategory handles POST /api/v1/admin/asset-category
func (s *Server) handleSetAssetCategory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SetAssetCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	asset, ok := parseAddress(req.Asset)
	if !ok {
		writeError(w, http.StatusBadRequest, "asset must be a hex address")
		return
	}

	if err := s.deps.Assets.SetCategory(asset, pricing.ParseCategory(req.Category)); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{Data: "category updated", LastFetched: time.Now()})
}

// handleSetAssetMap handles POST /api/v1/admin/asset-map
func (s *Server) handleSetAssetMap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SetAssetMapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	source, ok := parseAddress(req.SourceAsset)
	if !ok {
		writeError(w, http.StatusBadRequest, "source_asset must be a hex address")
		return
	}
	local, ok := parseAddress(req.LocalAsset)
	if !ok {
		writeError(w, http.StatusBadRequest, "local_asset must be a hex address")
		return
	}
	if req.SourceChainID == 0 {
		writeError(w, http.StatusBadRequest, "source_chain_id must be a positive integer")
		return
	}

	if err := s.deps.Assets.SetLocalEquivalent(req.SourceChainID, source, local); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{Data: "asset mapping updated", LastFetched: time.Now()})
}

// parseFeeBudget parses an optional decimal fee budget; empty means "pay
// whatever is quoted", represented by the nil Int.
func parseFeeBudget(raw string) (sdkmath.Int, bool) {
	if raw == "" {
		return sdkmath.Int{}, true
	}
	return sdkmath.NewIntFromString(raw)
}

// handleSendReports handles POST /api/v1/admin/send-reports
func (s *Server) handleSendReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SendReportsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DstChainID == 0 {
		writeError(w, http.StatusBadRequest, "dst_chain_id must be a positive integer")
		return
	}
	budget, ok := parseFeeBudget(req.FeeBudget)
	if !ok {
		writeError(w, http.StatusBadRequest, "fee_budget must be a decimal integer")
		return
	}

	reports := s.deps.Builder.BuildLocalReports(r.Context())
	if len(req.Vaults) > 0 {
		wanted := make(map[common.Address]struct{}, len(req.Vaults))
		for _, raw := range req.Vaults {
			vault, ok := parseAddress(raw)
			if !ok {
				writeError(w, http.StatusBadRequest, "vaults must be hex addresses")
				return
			}
			wanted[vault] = struct{}{}
		}
		filtered := reports[:0]
		for _, rep := range reports {
			if _, ok := wanted[rep.VaultAddress]; ok {
				filtered = append(filtered, rep)
			}
		}
		reports = filtered
	}
	if req.RewardsDelegate != "" {
		delegate, ok := parseAddress(req.RewardsDelegate)
		if !ok {
			writeError(w, http.StatusBadRequest, "rewards_delegate must be a hex address")
			return
		}
		for i := range reports {
			reports[i].RewardsDelegate = delegate
		}
	}
	if len(reports) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "no local reports for the requested vaults")
		return
	}

	if err := s.deps.Messenger.SendReports(r.Context(), req.DstChainID, reports, common.FromHex(req.Options), budget); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.logger.Info().Uint64("dst_chain_id", req.DstChainID).Int("reports", len(reports)).Msg("reports sent via admin api")
	writeJSON(w, http.StatusOK, QueryResponse{Data: "reports sent", LastFetched: time.Now()})
}

// handleRequestReports handles POST /api/v1/admin/request-reports
func (s *Server) handleRequestReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RequestReportsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DstChainID == 0 {
		writeError(w, http.StatusBadRequest, "dst_chain_id must be a positive integer")
		return
	}
	budget, ok := parseFeeBudget(req.FeeBudget)
	if !ok {
		writeError(w, http.StatusBadRequest, "fee_budget must be a decimal integer")
		return
	}

	vaults := make([]common.Address, 0, len(req.Vaults))
	for _, raw := range req.Vaults {
		vault, ok := parseAddress(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "vaults must be hex addresses")
			return
		}
		vaults = append(vaults, vault)
	}
	var delegate common.Address
	if req.RewardsDelegate != "" {
		parsed, ok := parseAddress(req.RewardsDelegate)
		if !ok {
			writeError(w, http.StatusBadRequest, "rewards_delegate must be a hex address")
			return
		}
		delegate = parsed
	}

	err := s.deps.Messenger.RequestReports(r.Context(), req.DstChainID, vaults, delegate,
		common.FromHex(req.Options), common.FromHex(req.ReturnOptions), budget)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.logger.Info().Uint64("dst_chain_id", req.DstChainID).Int("vaults", len(vaults)).Msg("report request sent via admin api")
	writeJSON(w, http.StatusOK, QueryResponse{Data: "report request sent", LastFetched: time.Now()})
}
