package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "intentcore.db", cfg.CatalogPath)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.False(t, cfg.PilotMode)
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
catalog_path: /var/lib/intents.db
pilot_mode: true
embedding:
  provider: genai
  genai_model: gemini-embedding-001
resolver:
  match_threshold: 0.80
discovery:
  k: 40
  coverage_threshold: 0.70
logging:
  debug: true
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/intents.db", cfg.CatalogPath)
	assert.True(t, cfg.PilotMode)
	assert.Equal(t, "genai", cfg.Embedding.Provider)
	assert.InDelta(t, 0.80, cfg.Resolver.MatchThreshold, 1e-9)
	assert.Equal(t, 40, cfg.Discovery.K)
	assert.True(t, cfg.Logging.Debug)

	// Unset embedding fields keep their defaults.
	assert.Equal(t, "http://localhost:11434", cfg.Embedding.OllamaEndpoint)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("catalog_path: [unclosed"), 0644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("INTENTCORE_DB", "/tmp/override.db")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "test-key", cfg.Embedding.GenAIAPIKey)
	assert.Equal(t, "/tmp/override.db", cfg.CatalogPath)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg := DefaultConfig()
	cfg.PilotMode = true
	cfg.Discovery.K = 25
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.True(t, loaded.PilotMode)
	assert.Equal(t, 25, loaded.Discovery.K)
}

func TestDiscoveryConfigConversion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Discovery.K = 40
	cfg.Discovery.CoverageThreshold = 0.7

	dc := cfg.DiscoveryConfig()
	assert.Equal(t, 40, dc.K)
	assert.InDelta(t, 0.7, dc.CoverageThreshold, 1e-9)
	assert.Zero(t, dc.MaxIterations, "unset knobs stay zero for the pipeline defaults")
}
