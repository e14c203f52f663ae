package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoader(t *testing.T) {
	loader := NewLoader("/path/to/config.json")
	assert.NotNil(t, loader)
	assert.Equal(t, "/path/to/config.json", loader.configPath)
	assert.Equal(t, "/path/to/config.json", loader.GetConfigPath())
}

func TestLoaderLoad(t *testing.T) {
	t.Run("load default config when file doesn't exist", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "nonexistent.json")

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("load config from JSON file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")

		testConfig := `{
			"line": {
				"channel_secret": "file-secret",
				"track_processed_events": false
			},
			"webhook": {
				"port": 9000,
				"path": "/callback"
			}
		}`
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0600))

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.Equal(t, "file-secret", cfg.Line.ChannelSecret)
		assert.False(t, cfg.Line.TrackProcessedEvents)
		assert.Equal(t, 9000, cfg.Webhook.Port)
		assert.Equal(t, "/callback", cfg.Webhook.Path)
		// Keys absent from the file keep their defaults
		assert.True(t, cfg.Line.VerifySignature)
		assert.Equal(t, 600, cfg.Webhook.RateLimitPerMinute)
	})

	t.Run("load config from YAML file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.yaml")

		testConfig := "redis:\n  enabled: true\n  addr: redis:6379\nnats:\n  subject_prefix: bot.events\n"
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0600))

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.True(t, cfg.Redis.Enabled)
		assert.Equal(t, "redis:6379", cfg.Redis.Addr)
		assert.Equal(t, "bot.events", cfg.NATS.SubjectPrefix)
	})

	t.Run("invalid file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{"line":`), 0600))

		_, err := NewLoader(configPath).Load()
		assert.Error(t, err)
	})
}

func TestLoaderEnvironment(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{"webhook":{"port":9000}}`), 0600))

	t.Setenv("LINE_CHANNEL_SECRET", "env-secret")
	t.Setenv("LINE_CHANNEL_ACCESS_TOKEN", "env-token")
	t.Setenv("LINEAPI_WEBHOOK_PORT", "9100")
	t.Setenv("LINEAPI_REDIS_ENABLED", "true")
	t.Setenv("LINEAPI_TRACING_SAMPLE_RATIO", "0.25")

	cfg, err := NewLoader(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.Line.ChannelSecret)
	assert.Equal(t, "env-token", cfg.Line.ChannelAccessToken)
	assert.Equal(t, 9100, cfg.Webhook.Port, "environment overrides the file")
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 0.25, cfg.Tracing.SampleRatio)
}

func TestLoaderPrefixedSecretWins(t *testing.T) {
	t.Setenv("LINE_CHANNEL_SECRET", "plain")
	t.Setenv("LINEAPI_LINE_CHANNEL_SECRET", "prefixed")

	cfg, err := NewLoader(filepath.Join(t.TempDir(), "none.json")).Load()
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.Line.ChannelSecret)
}

func TestLoaderSave(t *testing.T) {
	for _, name := range []string{"config.json", "config.yaml"} {
		t.Run(name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "nested", name)
			loader := NewLoader(configPath)

			cfg := DefaultConfig()
			cfg.Line.ChannelSecret = testSecret
			cfg.Webhook.Port = 8123
			cfg.NATS.Enabled = true

			require.NoError(t, loader.Save(cfg))

			info, err := os.Stat(configPath)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

			loaded, err := loader.Load()
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}
