package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestSetupRoutes(t *testing.T) {
	registry := prometheus.NewRegistry()
	server := newTestServer(t, Deps{Gatherer: registry})

	mux := server.setupRoutes()

	// Test that all routes are registered correctly
	testCases := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
	}{
		{
			name:           "Health endpoint",
			method:         http.MethodGet,
			path:           "/health",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Metrics endpoint",
			method:         http.MethodGet,
			path:           "/metrics",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Peers endpoint",
			method:         http.MethodGet,
			path:           "/api/v1/peers",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Admin endpoint rejects GET",
			method:         http.MethodGet,
			path:           "/api/v1/admin/peer",
			expectedStatus: http.StatusMethodNotAllowed,
		},
		{
			name:           "Non-existent endpoint",
			method:         http.MethodGet,
			path:           "/api/v1/non-existent",
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			assert.Equal(t, tc.expectedStatus, w.Code)
		})
	}
}
