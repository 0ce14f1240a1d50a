package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/netip"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":3000"`
	DBPath   string     `env:"DB_PATH" envDefault:":memory:"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	// StaticDir is served at / when it exists.
	StaticDir string `env:"STATIC_DIR" envDefault:"public"`
	// RedisURL switches rate limiting to a shared Redis counter.
	RedisURL string `env:"REDIS_URL"`

	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"100"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"15m"`
	CORSOrigins       []string      `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// TrustedProxies lists addresses or CIDRs whose forwarding headers
	// name the client. Requests from anywhere else are keyed on the
	// socket peer.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	proxies []netip.Prefix
}

// ProxyPrefixes is TrustedProxies parsed by Load.
func (c *Config) ProxyPrefixes() []netip.Prefix {
	return c.proxies
}

// Load reads an optional .env file from the working directory and then
// parses the process environment. Variables already set win over .env.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.RateLimitRequests <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_REQUESTS must be positive, got %d", cfg.RateLimitRequests)
	}
	if cfg.RateLimitWindow <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", cfg.RateLimitWindow)
	}
	if cfg.RateLimitWindow < time.Duration(cfg.RateLimitRequests) {
		return nil, fmt.Errorf("RATE_LIMIT_WINDOW %s is too short for %d requests", cfg.RateLimitWindow, cfg.RateLimitRequests)
	}

	for _, raw := range cfg.TrustedProxies {
		p, err := parsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
		}
		cfg.proxies = append(cfg.proxies, p)
	}
	return &cfg, nil
}

// parsePrefix accepts a CIDR or a single address.
func parsePrefix(raw string) (netip.Prefix, error) {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "/") {
		p, err := netip.ParsePrefix(raw)
		if err != nil {
			return netip.Prefix{}, err
		}
		return p.Masked(), nil
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}
