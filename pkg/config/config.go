// Package config loads a connector configuration from REQT_* environment
// variables, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/reqt/pkg/auth"
	"github.com/Sternrassler/reqt/pkg/client"
	"github.com/Sternrassler/reqt/pkg/logging"
	"github.com/Sternrassler/reqt/pkg/pagination"
	"github.com/Sternrassler/reqt/pkg/ratelimit"
)

// ErrParsingConfig is returned when the environment cannot be parsed into a
// Config.
var ErrParsingConfig = errors.New("failed to parse config")

// Config is the environment form of a connector plus the ambient settings
// of a process hosting it.
type Config struct {
	BaseURL   string            `env:"REQT_BASE_URL,required"`
	UserAgent string            `env:"REQT_USER_AGENT" envDefault:"reqt/1.0"`
	Scope     string            `env:"REQT_SCOPE"`
	Timeout   time.Duration     `env:"REQT_TIMEOUT" envDefault:"30s"`
	Headers   map[string]string `env:"REQT_HEADERS" envSeparator:"," envKeyValSeparator:":"`

	Auth       AuthConfig       `envPrefix:"REQT_AUTH_"`
	RateLimit  RateLimitConfig  `envPrefix:"REQT_RATE_LIMIT_"`
	Retry      RetryConfig      `envPrefix:"REQT_RETRY_"`
	Pagination PaginationConfig `envPrefix:"REQT_PAGINATION_"`
	Redis      RedisConfig      `envPrefix:"REQT_REDIS_"`
	Log        LogConfig        `envPrefix:"REQT_LOG_"`

	// ListenAddr is the address of the proxy server.
	ListenAddr string `env:"REQT_LISTEN_ADDR" envDefault:":8080"`
}

// AuthConfig mirrors auth.Config.
type AuthConfig struct {
	Scheme        string        `env:"SCHEME" envDefault:"none"`
	Username      string        `env:"USERNAME"`
	Password      string        `env:"PASSWORD"`
	Token         string        `env:"TOKEN"`
	RefreshToken  string        `env:"REFRESH_TOKEN"`
	APIKey        string        `env:"API_KEY"`
	APIKeyHeader  string        `env:"API_KEY_HEADER"`
	ClientID      string        `env:"CLIENT_ID"`
	ClientSecret  string        `env:"CLIENT_SECRET"`
	Scopes        []string      `env:"SCOPES" envSeparator:","`
	TokenURL      string        `env:"TOKEN_URL"`
	Issuer        string        `env:"ISSUER"`
	KeycloakURL   string        `env:"KEYCLOAK_URL"`
	Realm         string        `env:"REALM"`
	RefreshMargin time.Duration `env:"REFRESH_MARGIN" envDefault:"30s"`
}

// RateLimitConfig mirrors ratelimit.Config.
type RateLimitConfig struct {
	Capacity int           `env:"CAPACITY" envDefault:"1"`
	Period   time.Duration `env:"PERIOD" envDefault:"1s"`
	Mode     string        `env:"MODE" envDefault:"automatic"`
	Adaptive bool          `env:"ADAPTIVE" envDefault:"false"`
}

// RetryConfig mirrors client.RetryConfig.
type RetryConfig struct {
	MaxAttempts int           `env:"MAX_ATTEMPTS" envDefault:"3"`
	BaseDelay   time.Duration `env:"BASE_DELAY" envDefault:"500ms"`
	MaxDelay    time.Duration `env:"MAX_DELAY" envDefault:"30s"`
}

// PaginationConfig selects the default pagination rule.
type PaginationConfig struct {
	// Rule is one-shot, fixed or all.
	Rule string `env:"RULE" envDefault:"one-shot"`
	// Pages is the page limit of the fixed rule.
	Pages int `env:"PAGES" envDefault:"1"`
	Size  int `env:"SIZE" envDefault:"100"`
}

// RedisConfig enables shared rate limiting and the response cache.
type RedisConfig struct {
	// URL in the form redis://:password@host:6379/0. Empty disables Redis.
	URL   string `env:"URL"`
	Cache bool   `env:"CACHE" envDefault:"false"`
}

// LogConfig mirrors logging.Config.
type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Pretty bool   `env:"PRETTY" envDefault:"false"`
}

// Load reads the given .env files (default ".env", which may be missing)
// into the process environment and parses it. Variables already set in the
// environment win over the files.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && (len(files) > 0 || !errors.Is(err, fs.ErrNotExist)) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, errors.Join(ErrParsingConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromEnvironment parses cfg from the given variables only, ignoring the
// process environment.
func FromEnvironment(environ map[string]string) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return nil, errors.Join(ErrParsingConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields whose syntax env cannot check.
func (c *Config) Validate() error {
	if _, err := auth.ParseScheme(c.Auth.Scheme); err != nil {
		return err
	}
	if _, err := ratelimit.ParseMode(c.RateLimit.Mode); err != nil {
		return err
	}
	if _, err := c.Pagination.rule(); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Redis.Cache && c.Redis.URL == "" {
		return errors.New("REQT_REDIS_CACHE requires REQT_REDIS_URL")
	}
	return nil
}

func (p PaginationConfig) rule() (pagination.Rule, error) {
	var rule pagination.Rule
	switch strings.ToLower(p.Rule) {
	case "one-shot", "oneshot", "":
		rule = pagination.OneShot()
	case "fixed":
		rule = pagination.Fixed(p.Pages)
	case "all":
		rule = pagination.All()
	default:
		return nil, fmt.Errorf("%w: unknown rule %q", pagination.ErrInvalidRule, p.Rule)
	}
	return rule, pagination.Validate(rule)
}

// RedisClient connects to the configured Redis, or returns nil when no URL
// is set.
func (c *Config) RedisClient() (*redis.Client, error) {
	if c.Redis.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(c.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	level, _ := logging.ParseLevel(c.Log.Level)
	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Pretty = c.Log.Pretty
	return cfg
}

// Client converts the configuration into a connector configuration. rdb
// may be nil unless the cache is enabled.
func (c *Config) Client(rdb *redis.Client) (client.Config, error) {
	scheme, err := auth.ParseScheme(c.Auth.Scheme)
	if err != nil {
		return client.Config{}, err
	}
	mode, err := ratelimit.ParseMode(c.RateLimit.Mode)
	if err != nil {
		return client.Config{}, err
	}
	rule, err := c.Pagination.rule()
	if err != nil {
		return client.Config{}, err
	}

	cfg := client.DefaultConfig(c.BaseURL)
	cfg.UserAgent = c.UserAgent
	cfg.Scope = c.Scope
	cfg.Timeout = c.Timeout

	if len(c.Headers) > 0 {
		cfg.Headers = http.Header{}
		for name, value := range c.Headers {
			cfg.Headers.Set(strings.TrimSpace(name), strings.TrimSpace(value))
		}
	}

	cfg.Auth = auth.Config{
		Scheme:        scheme,
		Username:      c.Auth.Username,
		Password:      c.Auth.Password,
		Token:         c.Auth.Token,
		RefreshToken:  c.Auth.RefreshToken,
		APIKey:        c.Auth.APIKey,
		APIKeyHeader:  c.Auth.APIKeyHeader,
		ClientID:      c.Auth.ClientID,
		ClientSecret:  c.Auth.ClientSecret,
		Scopes:        c.Auth.Scopes,
		TokenURL:      c.Auth.TokenURL,
		Issuer:        c.Auth.Issuer,
		BaseURL:       c.Auth.KeycloakURL,
		Realm:         c.Auth.Realm,
		RefreshMargin: c.Auth.RefreshMargin,
	}
	cfg.RateLimit = ratelimit.Config{
		Capacity: c.RateLimit.Capacity,
		Period:   c.RateLimit.Period,
		Mode:     mode,
		Adaptive: c.RateLimit.Adaptive,
	}
	cfg.Retry = client.RetryConfig{
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   c.Retry.BaseDelay,
		MaxDelay:    c.Retry.MaxDelay,
	}
	cfg.Pagination = rule
	cfg.PageSize = c.Pagination.Size
	cfg.Redis = rdb
	cfg.EnableCache = c.Redis.Cache

	return cfg, nil
}
