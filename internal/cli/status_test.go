package cli

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{45 * time.Second, "45s"},
		{1500 * time.Millisecond, "2s"},
		{2*time.Minute + 30*time.Second, "2m30s"},
		{3*time.Hour + 20*time.Second, "3h0m20s"},
		{26*time.Hour + 4*time.Minute, "1d2h4m0s"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatDuration(tt.in))
		})
	}
}

func TestProbeHost(t *testing.T) {
	assert.Equal(t, "127.0.0.1", healthHost(""))
	assert.Equal(t, "127.0.0.1", healthHost("0.0.0.0"))
	assert.Equal(t, "127.0.0.1", healthHost("::"))
	assert.Equal(t, "10.0.0.5", healthHost("10.0.0.5"))
}

func TestProbeHealth(t *testing.T) {
	code := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}))
	defer srv.Close()

	assert.Equal(t, "ok", checkHealth(context.Background(), srv.URL))

	code = http.StatusServiceUnavailable
	assert.Equal(t, "shutting down", checkHealth(context.Background(), srv.URL))

	code = http.StatusTeapot
	assert.Equal(t, "unexpected status 418", checkHealth(context.Background(), srv.URL))

	srv.Close()
	assert.Equal(t, "unreachable", checkHealth(context.Background(), srv.URL))
}

func TestStatusRunning(t *testing.T) {
	path := setupCLI(t)

	// The test binary stands in for a running server.
	pidFile := filepath.Join(filepath.Dir(path), "eap.pid")
	require.NoError(t, writePIDFile(pidFile))
	t.Cleanup(func() { os.Remove(pidFile) })

	out, err := runCLI(t, "", "--config", path, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Status: running")
	assert.Contains(t, out, "Address: 127.0.0.1:8080")
	assert.Contains(t, out, "Health: ")
}

func TestWaitForExit(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "eap.pid")
	assert.True(t, waitForExit(pidFile, time.Second))

	require.NoError(t, writePIDFile(pidFile))
	start := time.Now()
	assert.False(t, waitForExit(pidFile, 150*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}
