// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"clinictrack/internal/platform/database"
)

const (
	DevLicenseSecret = "dev-license-secret-change-in-production"
	DevJWTSigningKey = "dev-jwt-signing-key-change-in-production"
)

// Server holds everything cmd/server needs. Env names carry no prefix.
type Server struct {
	Addr        string `envconfig:"ADDR" default:":8080"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DBDriver        string        `envconfig:"DB_DRIVER" default:"sqlite"`
	DBPath          string        `envconfig:"DB_PATH" default:"clinictrack.db"`
	DatabaseURL     string        `envconfig:"DATABASE_URL"`
	DBMaxOpenConns  int           `envconfig:"DB_MAX_OPEN_CONNS" default:"10"`
	DBBusyTimeout   time.Duration `envconfig:"DB_BUSY_TIMEOUT" default:"5s"`
	InMemoryStores  bool          `envconfig:"IN_MEMORY_STORES" default:"false"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	MaxBodyBytes    int64         `envconfig:"MAX_BODY_BYTES" default:"1048576"`
	RateLimitPerMin int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"20"`
	// TrustedProxies is a comma-separated list of addresses or CIDR prefixes
	// whose X-Forwarded-For header names the client.
	TrustedProxies []string `envconfig:"TRUSTED_PROXIES"`

	LicenseSecret string        `envconfig:"LICENSE_SECRET" default:"dev-license-secret-change-in-production"`
	AdminToken    string        `envconfig:"ADMIN_TOKEN"`
	JWTSigningKey string        `envconfig:"JWT_SIGNING_KEY" default:"dev-jwt-signing-key-change-in-production"`
	TokenTTL      time.Duration `envconfig:"TOKEN_TTL" default:"12h"`
	BcryptCost    int           `envconfig:"BCRYPT_COST" default:"10"`

	AdminUser        string `envconfig:"ADMIN_USER"`
	AdminPass        string `envconfig:"ADMIN_PASS"`
	AdminMaxUsers    *int   `envconfig:"ADMIN_MAX_USERS"`
	AdminLicenseType string `envconfig:"ADMIN_LICENSE_TYPE" default:"basica"`
}

// FromEnv reads and validates the configuration.
func FromEnv() (*Server, error) {
	var cfg Server
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Server) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Validate rejects inconsistent settings, and the development secrets when
// running in production.
func (c *Server) Validate() error {
	var errs []error
	switch database.Dialect(c.DBDriver) {
	case database.DialectSQLite:
	case database.DialectPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q is not supported", c.DBDriver))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.RateLimitPerMin < 1 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_MINUTE must be at least 1"))
	}
	if _, err := parsePrefixes(c.TrustedProxies); err != nil {
		errs = append(errs, fmt.Errorf("TRUSTED_PROXIES: %w", err))
	}
	if c.AdminMaxUsers != nil && *c.AdminMaxUsers < 1 {
		errs = append(errs, errors.New("ADMIN_MAX_USERS must be at least 1"))
	}
	if c.IsProduction() {
		if c.LicenseSecret == DevLicenseSecret {
			errs = append(errs, errors.New("LICENSE_SECRET must be set in production"))
		}
		if c.JWTSigningKey == DevJWTSigningKey {
			errs = append(errs, errors.New("JWT_SIGNING_KEY must be set in production"))
		}
		if c.AdminToken == "" {
			errs = append(errs, errors.New("ADMIN_TOKEN must be set in production"))
		}
	}
	return errors.Join(errs...)
}

// Proxies returns TRUSTED_PROXIES as prefixes. Bare addresses become
// single-host prefixes. Entries are assumed valid after Validate.
func (c *Server) Proxies() []netip.Prefix {
	prefixes, _ := parsePrefixes(c.TrustedProxies)
	return prefixes
}

func parsePrefixes(entries []string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, err
			}
			out = append(out, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, err
		}
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// Database maps the DB_* settings onto the database package config.
func (c *Server) Database() database.Config {
	cfg := database.DefaultConfig()
	cfg.Driver = database.Dialect(c.DBDriver)
	cfg.Path = c.DBPath
	cfg.URL = c.DatabaseURL
	cfg.MaxOpenConns = c.DBMaxOpenConns
	cfg.BusyTimeout = c.DBBusyTimeout
	return cfg
}
