package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	logger := zerolog.New(zerolog.NewTestWriter(t))

	t.Run("Create server with valid config", func(t *testing.T) {
		server := NewServer(logger, 8080, Deps{})

		assert.NotNil(t, server)
		assert.NotNil(t, server.server)
		assert.Equal(t, ":8080", server.server.Addr)
	})

	t.Run("Create server with different port", func(t *testing.T) {
		server := NewServer(logger, 9090, Deps{})

		assert.NotNil(t, server)
		assert.Equal(t, ":9090", server.server.Addr)
	})
}

func TestServerStartStop(t *testing.T) {
	logger := zerolog.New(zerolog.NewTestWriter(t))

	t.Run("Start and stop server", func(t *testing.T) {
		server := NewServer(logger, 18081, Deps{})

		err := server.Start()
		require.NoError(t, err)

		time.Sleep(200 * time.Millisecond)

		resp, err := http.Get("http://localhost:18081/health")
		if err == nil {
			defer resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		}

		err = server.Stop()
		assert.NoError(t, err)
	})

	t.Run("Start with nil server", func(t *testing.T) {
		server := &Server{logger: logger}

		err := server.Start()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "query server is nil")
	})

	t.Run("Stop with nil server", func(t *testing.T) {
		server := &Server{logger: logger}

		err := server.Stop()
		assert.NoError(t, err)
	})
}
