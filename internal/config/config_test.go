package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CONFIG_FILE", filepath.Join(dir, "missing.toml"))
	t.Setenv("ENV_FILE", filepath.Join(dir, "missing.env"))
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Chunking.Size)
	assert.Equal(t, 200, cfg.Chunking.Overlap)
	assert.Equal(t, 2000, cfg.Embedding.Dimensions)
	assert.Equal(t, 100, cfg.Embedding.BatchSize)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, ScopeOwner, cfg.Retrieval.Scope)
	assert.Equal(t, "documents", cfg.Storage.DocsFolder)
	assert.Equal(t, "boe", cfg.Storage.BoeFolder)
	assert.Equal(t, int64(3600), int64(cfg.PresignTTL().Seconds()))
	assert.Empty(t, cfg.LLM.APIKey)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[chunking]
size = 500
overlap = 50

[retrieval]
scope = "visible"
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("CHUNK_OVERLAP", "100")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Chunking.Size)
	assert.Equal(t, 100, cfg.Chunking.Overlap)
	assert.Equal(t, ScopeVisible, cfg.Retrieval.Scope)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.App.CORSOrigins)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("RETRIEVAL_TOP_K=9\n"), 0o600))
	t.Setenv("ENV_FILE", envPath)
	t.Cleanup(func() { os.Unsetenv("RETRIEVAL_TOP_K") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Retrieval.TopK)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"overlap equals size", func(c *Config) { c.Chunking.Overlap = c.Chunking.Size }},
		{"negative overlap", func(c *Config) { c.Chunking.Overlap = -1 }},
		{"batch too large", func(c *Config) { c.Embedding.BatchSize = 101 }},
		{"zero dimensions", func(c *Config) { c.Embedding.Dimensions = 0 }},
		{"unknown scope", func(c *Config) { c.Retrieval.Scope = "everyone" }},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "local" }},
		{"empty secret", func(c *Config) { c.Auth.JWTSecret = " " }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, defaultConfig().Validate())
}
