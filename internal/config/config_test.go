package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{"FOFA_API_KEY", "FOFA_EMAIL", "OTX_API_KEY", "DEEPX_CACHE_DIR", "DISABLE_CACHE"} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"otx", "crtsh", "archive"}, cfg.Sources)
	assert.Equal(t, 72*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "file", cfg.Cache.Backend)
	assert.Equal(t, 4, cfg.SourceConcurrency)
	assert.Equal(t, 100, cfg.BruteConcurrency)
	assert.Equal(t, 50, cfg.ProbeConcurrency)
	assert.Equal(t, 2, cfg.DictLevels)
	assert.True(t, cfg.DetectWildcard)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Sources, cfg.Sources)
}

func TestLoadOverlaysFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sources: [crtsh]
brute_concurrency: 20
dns_timeout: 1500ms
cache:
  backend: sqlite
  ttl: 24h
fofa:
  api_key: filekey
  max_pages: 5
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"crtsh"}, cfg.Sources)
	assert.Equal(t, 20, cfg.BruteConcurrency)
	assert.Equal(t, 1500*time.Millisecond, cfg.DNSTimeout)
	assert.Equal(t, "sqlite", cfg.Cache.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "filekey", cfg.Fofa.APIKey)
	assert.Equal(t, 5, cfg.Fofa.MaxPages)
	// untouched keys keep their defaults
	assert.Equal(t, 100, cfg.Fofa.PageSize)
	assert.Equal(t, 50, cfg.ProbeConcurrency)
}

func TestLoadBadYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sources: [unterminated"), 0600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fofa:\n  api_key: filekey\n"), 0600))

	t.Setenv("FOFA_API_KEY", "envkey")
	t.Setenv("FOFA_EMAIL", "me@example.com")
	t.Setenv("OTX_API_KEY", "otxkey")
	t.Setenv("DEEPX_CACHE_DIR", "/tmp/deepx-cache")
	t.Setenv("DISABLE_CACHE", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "envkey", cfg.Fofa.APIKey)
	assert.Equal(t, "me@example.com", cfg.Fofa.Email)
	assert.Equal(t, "otxkey", cfg.OTX.APIKey)
	assert.Equal(t, "/tmp/deepx-cache", cfg.Cache.Dir)
	assert.True(t, cfg.Cache.Disabled)
	assert.True(t, cfg.HasFofa())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown source", func(c *Config) { c.Sources = []string{"shodan"} }},
		{"zero source concurrency", func(c *Config) { c.SourceConcurrency = 0 }},
		{"negative brute concurrency", func(c *Config) { c.BruteConcurrency = -1 }},
		{"zero probe concurrency", func(c *Config) { c.ProbeConcurrency = 0 }},
		{"zero levels", func(c *Config) { c.DictLevels = 0 }},
		{"bad backend", func(c *Config) { c.Cache.Backend = "redis" }},
		{"negative ttl", func(c *Config) { c.Cache.TTL = -time.Second }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad fofa paging", func(c *Config) { c.Fofa.PageSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := DefaultConfig()
	cfg.Fofa.Query = `domain="{domain}"`
	cfg.Resolvers = []string{"9.9.9.9"}
	require.NoError(t, cfg.Save(path))

	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}

func TestMasked(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Fofa.APIKey = "abcdefghijklmnop"
	cfg.OTX.APIKey = "short"

	m := cfg.Masked()
	assert.Equal(t, "abcd...mnop", m.Fofa.APIKey)
	assert.Equal(t, "****", m.OTX.APIKey)
	assert.Equal(t, "abcdefghijklmnop", cfg.Fofa.APIKey)

	cfg.OTX.APIKey = ""
	assert.Equal(t, "", cfg.Masked().OTX.APIKey)
}
