package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esglens/esglens/internal/config"
)

func TestNewServer_Defaults(t *testing.T) {
	mux := http.NewServeMux()
	s := NewServer(config.ServerConfig{Port: 8080}, mux, nil)
	require.NotNil(t, s)

	assert.Equal(t, ":8080", s.srv.Addr)
	assert.Equal(t, defaultReadTimeout, s.srv.ReadTimeout)
	assert.Equal(t, defaultWriteTimeout, s.srv.WriteTimeout)
	assert.Equal(t, defaultShutdownTimeout, s.shutdownTimeout)
	assert.Equal(t, http.Handler(mux), s.Handler())
}

func TestNewServer_ConfiguredTimeouts(t *testing.T) {
	cfg := config.ServerConfig{
		Port:            9090,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 2 * time.Second,
	}
	s := NewServer(cfg, http.NewServeMux(), nil)

	assert.Equal(t, ":9090", s.srv.Addr)
	assert.Equal(t, 5*time.Second, s.srv.ReadTimeout)
	assert.Equal(t, 10*time.Second, s.srv.WriteTimeout)
	assert.Equal(t, 2*time.Second, s.shutdownTimeout)
}

func TestServer_StopWithoutStart(t *testing.T) {
	s := NewServer(config.ServerConfig{Port: 0}, http.NewServeMux(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
