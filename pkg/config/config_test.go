package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaultsWhenMissing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	require.Equal(t, 0.75, cfg.Memory.SimilarityThreshold)
	require.Equal(t, 5, cfg.Memory.TopK)
	require.Equal(t, "heuristic", cfg.Extractor.Mode)
	require.Equal(t, 18890, cfg.Gateway.Port)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := DefaultConfig()
	cfg.Memory.TopK = 9
	cfg.Gateway.Host = "0.0.0.0"
	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 9, loaded.Memory.TopK)
	require.Equal(t, "0.0.0.0", loaded.Gateway.Host)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, SaveConfig(path, DefaultConfig()))

	t.Setenv("AETHER_MEMORY_TOP_K", "12")
	t.Setenv("AETHER_GATEWAY_PORT", "9000")
	t.Setenv("AETHER_MEMORY_SIMILARITY_THRESHOLD", "0.8")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 12, cfg.Memory.TopK)
	require.Equal(t, 9000, cfg.Gateway.Port)
	require.Equal(t, 0.8, cfg.Memory.SimilarityThreshold)
}

func TestExpandHome(t *testing.T) {
	require.Equal(t, "", expandHome(""))
	require.Equal(t, "/abs/path", expandHome("/abs/path"))
	require.NotContains(t, expandHome("~/workspace"), "~")
}
