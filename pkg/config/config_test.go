package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults applied", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yml")
		require.NoError(t, os.WriteFile(path, []byte("sources: my/sources.yaml\n"), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "my/sources.yaml", cfg.Sources)
		assert.InDelta(t, 0.3, cfg.Scoring.MinImportance, 1e-9)
		assert.Equal(t, 6*time.Hour, cfg.Cache.FreshFor)
		assert.Equal(t, 7*24*time.Hour, cfg.Cache.RetainFor)
		assert.Equal(t, int64(1<<30), cfg.Cache.MaxSize)
		assert.Equal(t, "data/progress_state.json", cfg.Progress.Path)
		assert.Equal(t, 20000, cfg.Dedup.MaxItems)
	})

	t.Run("env expansion", func(t *testing.T) {
		t.Setenv("TEST_LLM_KEY", "secret-key")
		path := filepath.Join(t.TempDir(), "config.yml")
		data := "llm:\n  enabled: true\n  endpoint: http://localhost/v1\n  api_key: ${TEST_LLM_KEY}\n  timeout: 5s\n"
		require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "secret-key", cfg.GetLLMConfig().APIKey)
		assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	})

	t.Run("llm enabled without endpoint", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yml")
		require.NoError(t, os.WriteFile(path, []byte("llm:\n  enabled: true\n"), 0o600))
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "llm.endpoint is required")
	})

	t.Run("invalid min importance", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yml")
		require.NoError(t, os.WriteFile(path, []byte("scoring:\n  min_importance: 1.5\n"), 0o600))
		_, err := Load(path)
		require.Error(t, err)
	})

	t.Run("event providers", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yml")
		data := "events:\n  enabled: true\n  providers:\n    - name: ethlist\n      category: crypto\n" +
			"      url: https://api.example.com/events?from={start}&to={end}\n      per_minute: 30\n"
		require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.True(t, cfg.Events.Enabled)
		assert.Equal(t, 4, cfg.Events.Concurrency)
		require.Len(t, cfg.Events.Providers, 1)
		assert.Equal(t, EventProvider{Name: "ethlist", Category: "crypto",
			URL: "https://api.example.com/events?from={start}&to={end}", PerMinute: 30}, cfg.Events.Providers[0])
	})

	t.Run("event provider without url", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yml")
		require.NoError(t, os.WriteFile(path, []byte("events:\n  providers:\n    - name: x\n"), 0o600))
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "events.providers[0]")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load("/nonexistent/config.yml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read config file")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yml")
		require.NoError(t, os.WriteFile(path, []byte("invalid: yaml: content: ["), 0o600))
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse config")
	})
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "config/data/sources.yaml", cfg.Sources)
	assert.Equal(t, CacheConfig{Dir: "data/cache", MaxSize: 1 << 30, FreshFor: 6 * time.Hour, RetainFor: 168 * time.Hour}, cfg.GetCacheConfig())
	require.NoError(t, VerifyAgainstEmbeddedSchema(cfg))
}

func TestGenerateSchema(t *testing.T) {
	schema := GenerateSchema()
	require.NotNil(t, schema)
	def, ok := schema.Definitions["Config"]
	require.True(t, ok)
	_, ok = def.Properties.Get("scoring")
	assert.True(t, ok)
}
