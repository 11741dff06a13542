package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "gorm", cfg.Cache.Backend)
	assert.Equal(t, float32(0.9), cfg.Cache.SimilarityThreshold)
	assert.Equal(t, 1536, cfg.Embedding.Dimensions)
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  addr: ":9090"
cache:
  backend: memory
  similarity_threshold: 0.85
upstream:
  timeout: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, float32(0.85), cfg.Cache.SimilarityThreshold)
	// unset values keep their defaults
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PROXY_ADDR", ":7070")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
}

func TestLoadRejectsBadBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  backend: mongo\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsBadThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  backend: memory\n  similarity_threshold: 1.5\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
