package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	healthcheck "github.com/vladislavdragonenkov/salescore/internal/health"
	"github.com/vladislavdragonenkov/salescore/internal/version"
)

func TestStartMetricsServer_Endpoints(t *testing.T) {
	port := findFreePort(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := startMetricsServer(ctx, fmt.Sprintf(":%d", port), log.WithField("test", "http"), healthcheck.NewHandler(version.GetVersion()))
	require.NotNil(t, srv)
	waitForListener(t, port)

	for path, wantBody := range map[string]string{
		"/metrics": "",
		"/healthz": "",
		"/livez":   "ok",
		"/readyz":  "ready",
	} {
		status, body := httpGet(t, fmt.Sprintf("http://localhost:%d%s", port, path))
		assert.Equal(t, http.StatusOK, status, path)
		assert.NotEmpty(t, body, path)
		if wantBody != "" {
			assert.Equal(t, wantBody, body, path)
		}
	}
}

func TestStartMetricsServer_ReadinessFailsOnUnhealthyStorage(t *testing.T) {
	port := findFreePort(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := healthcheck.NewHandler(version.GetVersion())
	handler.Register("storage", healthcheck.NewStorageChecker("storage", func(context.Context) error {
		return errors.New("connection refused")
	}, time.Second), true)
	startMetricsServer(ctx, fmt.Sprintf(":%d", port), log.WithField("test", "http-unready"), handler)
	waitForListener(t, port)

	status, body := httpGet(t, fmt.Sprintf("http://localhost:%d/readyz", port))
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "not ready: storage", body)

	status, _ = httpGet(t, fmt.Sprintf("http://localhost:%d/livez", port))
	assert.Equal(t, http.StatusOK, status)
}

func TestStartMetricsServer_StopsWithContext(t *testing.T) {
	port := findFreePort(t)
	ctx, cancel := context.WithCancel(context.Background())

	startMetricsServer(ctx, fmt.Sprintf(":%d", port), log.WithField("test", "http-shutdown"), healthcheck.NewHandler(version.GetVersion()))
	waitForListener(t, port)

	cancel()
	assert.Eventually(t, func() bool {
		_, err := http.Get(fmt.Sprintf("http://localhost:%d/livez", port))
		return err != nil
	}, 2*time.Second, 50*time.Millisecond)
}

func TestShutdownHTTP_NilServer(_ *testing.T) {
	shutdownHTTP(nil, log.WithField("test", "http-nil"))
}

func httpGet(t *testing.T, url string) (int, string) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func waitForListener(t *testing.T, port int) {
	t.Helper()

	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", fmt.Sprintf("localhost:%d", port), 50*time.Millisecond)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 2*time.Second, 20*time.Millisecond)
}

// findFreePort находит свободный порт для тестов.
func findFreePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer listener.Close()

	return listener.Addr().(*net.TCPAddr).Port
}
