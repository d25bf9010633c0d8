package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_MemoryServesAPIAndShutsDown(t *testing.T) {
	httpPort := findFreePort(t)
	metricsPort := findFreePort(t)

	cfg := DefaultConfig()
	cfg.HTTPAddr = fmt.Sprintf("127.0.0.1:%d", httpPort)
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.MetricsAddr = fmt.Sprintf("127.0.0.1:%d", metricsPort)
	cfg.OutboxPollInterval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg) }()

	waitForListener(t, httpPort)
	waitForListener(t, metricsPort)

	resp, err := http.Post(
		fmt.Sprintf("http://127.0.0.1:%d/api/v1/customers", httpPort),
		"application/json",
		bytes.NewReader([]byte(`{"name":"Alice","email":"alice@example.com","address":"Austin, USA"}`)),
	)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	status, _ := httpGet(t, fmt.Sprintf("http://127.0.0.1:%d/readyz", metricsPort))
	assert.Equal(t, http.StatusOK, status)

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled), "unexpected error: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

func TestRun_InvalidStorageDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageDriver = "invalid-driver"

	err := Run(context.Background(), cfg)
	assert.ErrorContains(t, err, "unsupported storage driver")
}

func TestRun_InvalidGRPCAddr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"
	cfg.GRPCAddr = "256.0.0.1:1"

	err := Run(context.Background(), cfg)
	assert.Error(t, err)
}
