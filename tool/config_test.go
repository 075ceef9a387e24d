package tool

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moyoez/pairdrop-go/types"
)

func TestLoadConfigCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.FileExists(t, path)
	assert.Equal(t, cfg, *GetCurrentConfig())
}

func TestLoadConfigSanitizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "endpoint: ws://127.0.0.1:9000/ws/transfer\nmaxAttempts: 0\nconnectTimeoutMs: -5\nmaxFileSizeBytes: 2048\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	def := DefaultConfig()
	assert.Equal(t, "ws://127.0.0.1:9000/ws/transfer", cfg.Endpoint)
	assert.Equal(t, def.MaxAttempts, cfg.MaxAttempts)
	assert.Equal(t, def.ConnectTimeoutMs, cfg.ConnectTimeoutMs)
	assert.Equal(t, int64(2048), cfg.MaxFileSizeBytes)
	assert.Equal(t, 0, cfg.ReconnectMinIntervalMs)
}

func TestLoadConfigReconnectInterval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reconnectMinIntervalMs: -1\n"), 0o644))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.ReconnectMinIntervalMs)

	require.NoError(t, os.WriteFile(path, []byte("reconnectMinIntervalMs: 1500\n"), 0o644))
	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1500, cfg.ReconnectMinIntervalMs)
}

func TestLoadConfigRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("endpoint: [unterminated"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := DefaultConfig()
	ApplyFlagOverrides(&cfg, types.Config{UseEndpoint: "ws://x/ws", UseApiBase: "http://x/api"})
	assert.Equal(t, "ws://x/ws", cfg.Endpoint)
	assert.Equal(t, "http://x/api", cfg.APIBase)

	ApplyFlagOverrides(&cfg, types.Config{})
	assert.Equal(t, "ws://x/ws", cfg.Endpoint)
}

func TestMillis(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, Millis(1500))
}
