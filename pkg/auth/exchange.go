package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// exchanger obtains a new token from an authorization server.
type exchanger interface {
	Exchange(ctx context.Context, current Token) (*oauth2.Token, error)
}

// grantExchanger uses the refresh_token grant when a refresh token is held
// and falls back to the primary grant of the scheme.
type grantExchanger struct {
	cfg      Config
	client   *http.Client
	logger   zerolog.Logger
	endpoint func(ctx context.Context) (string, error)
	primary  func(ctx context.Context, tokenURL string) (*oauth2.Token, error)
}

func newExchanger(cfg Config, client *http.Client, logger zerolog.Logger) exchanger {
	e := &grantExchanger{cfg: cfg, client: client, logger: logger}

	switch cfg.Scheme {
	case Keycloak:
		tokenURL := KeycloakTokenURL(cfg.BaseURL, cfg.Realm)
		e.endpoint = staticEndpoint(tokenURL)
		e.primary = e.passwordGrant
	case OIDC:
		d := &discovery{issuer: cfg.Issuer, client: client}
		e.endpoint = d.tokenEndpoint
		e.primary = e.clientCredentialsGrant
	default:
		e.endpoint = staticEndpoint(cfg.TokenURL)
		e.primary = e.clientCredentialsGrant
	}
	return e
}

func staticEndpoint(url string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return url, nil }
}

// Exchange implements exchanger.
func (e *grantExchanger) Exchange(ctx context.Context, current Token) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.client)

	tokenURL, err := e.endpoint(ctx)
	if err != nil {
		return nil, err
	}

	if current.RefreshToken != "" {
		tok, err := e.refreshGrant(ctx, tokenURL, current.RefreshToken)
		if err == nil {
			return tok, nil
		}
		e.logger.Warn().Err(err).Msg("Refresh token rejected, requesting a new token")
	}

	return e.primary(ctx, tokenURL)
}

func (e *grantExchanger) oauthConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     e.cfg.ClientID,
		ClientSecret: e.cfg.ClientSecret,
		Scopes:       e.cfg.Scopes,
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
	}
}

func (e *grantExchanger) refreshGrant(ctx context.Context, tokenURL, refreshToken string) (*oauth2.Token, error) {
	// An empty access token forces the source to use the refresh token.
	src := e.oauthConfig(tokenURL).TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token grant: %w", err)
	}
	return tok, nil
}

func (e *grantExchanger) clientCredentialsGrant(ctx context.Context, tokenURL string) (*oauth2.Token, error) {
	cc := &clientcredentials.Config{
		ClientID:     e.cfg.ClientID,
		ClientSecret: e.cfg.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       e.cfg.Scopes,
	}
	tok, err := cc.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("client credentials grant: %w", err)
	}
	return tok, nil
}

func (e *grantExchanger) passwordGrant(ctx context.Context, tokenURL string) (*oauth2.Token, error) {
	tok, err := e.oauthConfig(tokenURL).PasswordCredentialsToken(ctx, e.cfg.Username, e.cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("password grant: %w", err)
	}
	return tok, nil
}

// discovery resolves the token endpoint of an OpenID Connect issuer once.
type discovery struct {
	issuer string
	client *http.Client

	mu       sync.Mutex
	endpoint string
}

type providerMetadata struct {
	Issuer        string `json:"issuer"`
	TokenEndpoint string `json:"token_endpoint"`
}

func (d *discovery) tokenEndpoint(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.endpoint != "" {
		return d.endpoint, nil
	}

	url := strings.TrimRight(d.issuer, "/") + "/.well-known/openid-configuration"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create discovery request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch openid configuration: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch openid configuration: status %d", resp.StatusCode)
	}

	var meta providerMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return "", fmt.Errorf("decode openid configuration: %w", err)
	}
	if meta.TokenEndpoint == "" {
		return "", errors.New("openid configuration has no token_endpoint")
	}

	d.endpoint = meta.TokenEndpoint
	return d.endpoint, nil
}
