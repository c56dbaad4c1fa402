// Package config holds the configuration of the catalog service.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/abgdnv/bookstore/pkg/config"
	"github.com/abgdnv/bookstore/pkg/config/configloader"
)

var _ configloader.Validator = (*Config)(nil)

type Config struct {
	HTTPServer config.HTTPConfig       `koanf:"server"`
	Database   config.DatabaseConfig   `koanf:"database"`
	Log        config.LogConfig        `koanf:"log"`
	PProf      config.PProfConfig      `koanf:"pprof"`
	GRPCServer config.GrpcServerConfig `koanf:"grpc"`
	Shutdown   config.ShutdownConfig   `koanf:"shutdown"`
	Lookup     LookupConfig            `koanf:"lookup"`
	Telemetry  config.TelemetryConfig  `koanf:"telemetry"`
	Nats       config.NATSConfig       `koanf:"nats"`
	IdP        config.IdP              `koanf:"idp"`
	Probes     config.ProbesConfig     `koanf:"probes"`
}

// LookupConfig configures the OpenLibrary metadata fallback.
type LookupConfig struct {
	Enabled   bool          `koanf:"enabled"`
	BaseURL   string        `koanf:"baseurl"`
	Timeout   time.Duration `koanf:"timeout"`
	UserAgent string        `koanf:"useragent"`
	// RateLimit is the number of requests per second sent to OpenLibrary. Zero means unlimited.
	RateLimit      float64                     `koanf:"ratelimit"`
	Burst          int                         `koanf:"burst"`
	CircuitBreaker config.CircuitBreakerConfig `koanf:"circuitbreaker"`
}

// String returns a string representation of the lookup configuration.
func (c *LookupConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Lookup ---\n")
	b.WriteString(fmt.Sprintf("  enabled: %t\n", c.Enabled))
	b.WriteString(fmt.Sprintf("  baseurl: %s\n", c.BaseURL))
	b.WriteString(fmt.Sprintf("  timeout: %s\n", c.Timeout))
	b.WriteString(fmt.Sprintf("  useragent: %s\n", c.UserAgent))
	b.WriteString(fmt.Sprintf("  ratelimit: %g\n", c.RateLimit))
	b.WriteString(fmt.Sprintf("  burst: %d\n", c.Burst))
	b.WriteString(c.CircuitBreaker.String())
	return b.String()
}

func (c *LookupConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("lookup base URL must be an absolute http(s) URL: %q", c.BaseURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("lookup timeout must be greater than 0")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("lookup rate limit must not be negative")
	}
	if c.Burst < 0 {
		return fmt.Errorf("lookup burst must not be negative")
	}
	if err := c.CircuitBreaker.Validate(); err != nil {
		return fmt.Errorf("lookup: %w", err)
	}
	return nil
}

func (c *Config) String() string {
	var b strings.Builder
	b.WriteString(c.HTTPServer.String())
	b.WriteString(c.Database.String())
	b.WriteString(c.GRPCServer.String())
	b.WriteString(c.Lookup.String())
	b.WriteString(c.Nats.String())
	b.WriteString(c.IdP.String())
	b.WriteString(c.Telemetry.String())
	b.WriteString(c.Log.String())
	b.WriteString(c.PProf.String())
	b.WriteString(c.Probes.String())
	b.WriteString(c.Shutdown.String())
	return b.String()
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	validators := []configloader.Validator{
		&c.HTTPServer,
		&c.Database,
		&c.Log,
		&c.PProf,
		&c.GRPCServer,
		&c.Shutdown,
		&c.Lookup,
		&c.Telemetry,
		&c.Nats,
		&c.IdP,
		&c.Probes,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
