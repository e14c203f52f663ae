package cli

import (
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCommand(t *testing.T) {
	t.Run("stopped", func(t *testing.T) {
		isolate(t)

		out, _, err := executeCommand(t, nil, "status")
		require.NoError(t, err)
		assert.Equal(t, "Status: stopped\n", out)
	})

	t.Run("running", func(t *testing.T) {
		dir := isolate(t)
		pidFile := filepath.Join(dir, ".lineapi", "lineapi.pid")
		require.NoError(t, os.MkdirAll(filepath.Dir(pidFile), 0700))
		require.NoError(t, os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0644))

		out, _, err := executeCommand(t, nil, "status")
		require.NoError(t, err)
		assert.Contains(t, out, "Status: running")
		assert.Contains(t, out, "PID: "+strconv.Itoa(os.Getpid()))
		assert.Contains(t, out, "Uptime:")
	})
}

func TestStatusReportsDeliveries(t *testing.T) {
	health := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","deliveries":{"accepted":4,"rejected":1},` +
			`"events":[{"kind":"message","processed":3,"duplicates":1}]}`))
	}))
	defer health.Close()

	dir := isolate(t)
	pidFile := filepath.Join(dir, ".lineapi", "lineapi.pid")
	require.NoError(t, os.MkdirAll(filepath.Dir(pidFile), 0700))
	require.NoError(t, os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0644))

	_, port, err := net.SplitHostPort(strings.TrimPrefix(health.URL, "http://"))
	require.NoError(t, err)
	configPath := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{"webhook":{"host":"127.0.0.1","port":`+port+`}}`), 0600))

	out, _, err := executeCommand(t, nil, "status", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Deliveries: 4 accepted, 1 rejected")
	assert.Contains(t, out, "  message: 3 processed, 1 duplicates")
}

func TestStopCommandNotRunning(t *testing.T) {
	isolate(t)

	_, _, err := executeCommand(t, nil, "stop", "--timeout", "1")
	assert.ErrorContains(t, err, "not running")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{"seconds only", 45 * time.Second, "45s"},
		{"minutes and seconds", 2*time.Minute + 30*time.Second, "2m30s"},
		{"hours minutes seconds", 3*time.Hour + 15*time.Minute + 20*time.Second, "3h15m20s"},
		{"zero", 0, "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatDuration(tt.duration))
		})
	}
}
