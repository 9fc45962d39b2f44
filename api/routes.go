package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRoutes configures all HTTP routes for the API server
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", s.handleHealth)

	if s.deps.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}

	// API v1 query endpoints
	mux.HandleFunc("/api/v1/price", s.handlePrice)
	mux.HandleFunc("/api/v1/share-price", s.handleSharePrice)
	mux.HandleFunc("/api/v1/reports", s.handleReports)
	mux.HandleFunc("/api/v1/assets", s.handleAssets)
	mux.HandleFunc("/api/v1/peers", s.handlePeers)

	// API v1 admin endpoints
	mux.HandleFunc("/api/v1/admin/update-price", s.handleUpdatePrice)
	mux.HandleFunc("/api/v1/admin/peer", s.handleSetPeer)
	mux.HandleFunc("/api/v1/admin/asset-category", s.handleSetAssetCategory)
	mux.HandleFunc("/api/v1/admin/asset-map", s.handleSetAssetMap)
	mux.HandleFunc("/api/v1/admin/send-reports", s.handleSendReports)
	mux.HandleFunc("/api/v1/admin/request-reports", s.handleRequestReports)

	return mux
}
