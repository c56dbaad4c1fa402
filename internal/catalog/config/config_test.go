package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abgdnv/bookstore/pkg/config"
	"github.com/abgdnv/bookstore/pkg/config/configloader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validLookup() LookupConfig {
	return LookupConfig{
		Enabled:   true,
		BaseURL:   "https://openlibrary.org",
		Timeout:   3 * time.Second,
		RateLimit: 1,
		Burst:     1,
		CircuitBreaker: config.CircuitBreakerConfig{
			ConsecutiveFailures: 5,
			ErrorRatePercent:    50,
			OpenTimeout:         30 * time.Second,
		},
	}
}

func TestLookupConfig_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		modify  func(c *LookupConfig)
		wantErr bool
	}{
		{name: "valid", modify: func(*LookupConfig) {}},
		{name: "disabled skips checks", modify: func(c *LookupConfig) { *c = LookupConfig{} }},
		{name: "relative base url", modify: func(c *LookupConfig) { c.BaseURL = "openlibrary.org" }, wantErr: true},
		{name: "ftp base url", modify: func(c *LookupConfig) { c.BaseURL = "ftp://openlibrary.org" }, wantErr: true},
		{name: "missing timeout", modify: func(c *LookupConfig) { c.Timeout = 0 }, wantErr: true},
		{name: "negative rate", modify: func(c *LookupConfig) { c.RateLimit = -1 }, wantErr: true},
		{name: "unlimited rate", modify: func(c *LookupConfig) { c.RateLimit = 0; c.Burst = 0 }},
		{name: "breaker not configured", modify: func(c *LookupConfig) { c.CircuitBreaker = config.CircuitBreakerConfig{} }, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			cfg := validLookup()
			tc.modify(&cfg)

			// when
			err := cfg.Validate()

			// then
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

const sampleYAML = `
server:
  port: 8080
  timeout:
    read: 5s
    write: 10s
    idle: 60s
    readHeader: 2s
database:
  inmemory: true
log:
  level: debug
grpc:
  port: "9090"
shutdown:
  timeout: 5s
lookup:
  enabled: true
  baseurl: https://openlibrary.org
  timeout: 3s
  ratelimit: 2
  burst: 1
  circuitbreaker:
    consecutivefailures: 5
    errorratepercent: 50
    opentimeout: 30s
`

func TestConfig_Load(t *testing.T) {
	// given
	dir := t.TempDir()
	yamlFile := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlFile, []byte(sampleYAML), 0o600))
	t.Setenv("CATALOG_LOOKUP_ENABLED", "false")

	// when
	cfg, err := configloader.LoadFrom[*Config]("catalog", yamlFile, filepath.Join(dir, ".env"))

	// then
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTPServer.Port)
	assert.True(t, cfg.Database.InMemory)
	assert.False(t, cfg.Lookup.Enabled)
	assert.Equal(t, 2.0, cfg.Lookup.RateLimit)
	assert.Equal(t, uint32(5), cfg.Lookup.CircuitBreaker.ConsecutiveFailures)
	assert.Equal(t, 20*time.Second, cfg.Probes.Interval, "probe defaults are applied")
	assert.Contains(t, cfg.String(), "--- Lookup ---")
}

func TestConfig_String_MasksDatabaseURL(t *testing.T) {
	// given
	cfg := &Config{Database: config.DatabaseConfig{URL: "postgres://user:secret@db:5432/catalog", Timeout: time.Second}}

	// when
	out := cfg.String()

	// then
	assert.NotContains(t, out, "secret")
	assert.Contains(t, out, "****@db:5432/catalog")
}
