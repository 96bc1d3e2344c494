package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// ErrAuthExpired is returned when a token could not be refreshed. It is
// terminal for the request that needed the token.
var ErrAuthExpired = errors.New("authorization expired")

// refreshTimeout bounds a token exchange shared by several callers.
const refreshTimeout = 30 * time.Second

// Provider supplies the authorization headers of one API. It is safe for
// concurrent use.
type Provider struct {
	cfg       Config
	logger    zerolog.Logger
	exchanger exchanger
	now       func() time.Time

	group singleflight.Group

	mu          sync.RWMutex
	token       Token
	invalidated bool
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the provider logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

// NewProvider validates cfg and creates a provider. No token is requested
// until the first call needing one.
func NewProvider(cfg Config, opts ...Option) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid auth config: %w", err)
	}
	if cfg.RefreshMargin == 0 {
		cfg.RefreshMargin = DefaultRefreshMargin
	}
	if cfg.APIKeyHeader == "" {
		cfg.APIKeyHeader = DefaultAPIKeyHeader
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	p := &Provider{
		cfg:    cfg,
		logger: log.With().Str("component", "auth").Str("scheme", cfg.Scheme.String()).Logger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	if cfg.Scheme.Stateful() {
		p.exchanger = newExchanger(cfg, cfg.HTTPClient, p.logger)
		p.token = Token{
			AccessToken:  cfg.Token,
			RefreshToken: cfg.RefreshToken,
			ExpiresAt:    jwtExpiry(cfg.Token),
		}
	}

	return p, nil
}

// Scheme returns the configured scheme.
func (p *Provider) Scheme() Scheme {
	return p.cfg.Scheme
}

// Headers returns the headers authorizing a request. Token schemes make
// sure the token is valid first.
func (p *Provider) Headers(ctx context.Context) (http.Header, error) {
	h := http.Header{}

	switch p.cfg.Scheme {
	case None:
	case Basic:
		creds := base64.StdEncoding.EncodeToString([]byte(p.cfg.Username + ":" + p.cfg.Password))
		h.Set("Authorization", "Basic "+creds)
	case Bearer:
		h.Set("Authorization", "Bearer "+p.cfg.Token)
	case APIKey:
		h.Set(p.cfg.APIKeyHeader, p.cfg.APIKey)
	default:
		if err := p.EnsureValid(ctx); err != nil {
			return nil, err
		}
		h.Set("Authorization", "Bearer "+p.Token().AccessToken)
	}

	return h, nil
}

// EnsureValid refreshes the token if it is missing, invalidated, or within
// the refresh margin of its expiry. Concurrent callers share one exchange;
// each may stop waiting through its own ctx without cancelling it.
func (p *Provider) EnsureValid(ctx context.Context) error {
	if !p.cfg.Scheme.Stateful() {
		return nil
	}
	if p.valid() {
		return nil
	}

	ch := p.group.DoChan("refresh", func() (any, error) {
		return nil, p.refresh(ctx)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return fmt.Errorf("wait for token refresh: %w", ctx.Err())
	}
}

func (p *Provider) valid() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.invalidated && p.token.Valid(p.now(), p.cfg.RefreshMargin)
}

// refresh runs inside the single flight. It is detached from the caller
// that started it so that callers joining later are not failed by its
// cancellation.
func (p *Provider) refresh(ctx context.Context) error {
	if p.valid() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
	defer cancel()

	start := time.Now()
	current := p.Token()

	tok, err := p.exchanger.Exchange(ctx, current)
	if err != nil {
		refreshTotal.WithLabelValues(p.cfg.Scheme.String(), "failure").Inc()
		p.logger.Error().Err(err).Msg("Token refresh failed")
		return fmt.Errorf("%w: %v", ErrAuthExpired, err)
	}

	next := tokenFrom(tok, current)

	p.mu.Lock()
	p.token = next
	p.invalidated = false
	p.mu.Unlock()

	refreshTotal.WithLabelValues(p.cfg.Scheme.String(), "success").Inc()
	refreshDuration.Observe(time.Since(start).Seconds())

	event := p.logger.Info().Dur("duration", time.Since(start))
	if !next.ExpiresAt.IsZero() {
		event = event.Time("expires_at", next.ExpiresAt)
	}
	event.Msg("Token refreshed")

	return nil
}

// Invalidate marks the current token as unusable, typically after the API
// rejected it. The next EnsureValid refreshes it.
func (p *Provider) Invalidate() {
	if !p.cfg.Scheme.Stateful() {
		return
	}

	p.mu.Lock()
	p.invalidated = true
	p.mu.Unlock()

	p.logger.Debug().Msg("Token invalidated")
}

// Token returns a snapshot of the current token.
func (p *Provider) Token() Token {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token
}
