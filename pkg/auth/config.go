// Package auth materializes the authorization headers of outbound requests.
//
// Static schemes (Basic, Bearer, API key) render fixed headers. Token schemes
// (OAuth2 client credentials, OpenID Connect, Keycloak) hold an access token
// and refresh it shortly before it expires. Concurrent callers needing a
// refresh share a single token exchange.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultRefreshMargin is how long before expiry a token is refreshed.
const DefaultRefreshMargin = 30 * time.Second

// DefaultAPIKeyHeader carries the key for the APIKey scheme.
const DefaultAPIKeyHeader = "X-API-Key"

// Scheme identifies an authorization mechanism.
type Scheme int

const (
	None Scheme = iota
	Basic
	Bearer
	APIKey
	OAuth2
	OIDC
	Keycloak
)

var schemeNames = map[Scheme]string{
	None:     "none",
	Basic:    "basic",
	Bearer:   "bearer",
	APIKey:   "api_key",
	OAuth2:   "oauth2",
	OIDC:     "oidc",
	Keycloak: "keycloak",
}

func (s Scheme) String() string {
	if name, ok := schemeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("scheme(%d)", int(s))
}

// Stateful reports whether the scheme holds a refreshable token.
func (s Scheme) Stateful() bool {
	return s == OAuth2 || s == OIDC || s == Keycloak
}

// ParseScheme parses a scheme name such as "bearer" or "api_key".
func ParseScheme(s string) (Scheme, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	if name == "" || name == "no_auth" {
		return None, nil
	}
	if name == "apikey" {
		return APIKey, nil
	}
	for scheme, n := range schemeNames {
		if n == name {
			return scheme, nil
		}
	}
	return None, fmt.Errorf("unknown auth scheme %q", s)
}

// Config describes the credentials of one API.
type Config struct {
	Scheme Scheme

	// Basic, and the Keycloak password grant.
	Username string
	Password string

	// Token is the Bearer token, or a previously obtained access token for
	// token schemes.
	Token string

	// RefreshToken seeds token schemes with a refresh token.
	RefreshToken string

	// APIKey is sent in APIKeyHeader (default X-API-Key).
	APIKey       string
	APIKeyHeader string

	// Client credentials for token schemes.
	ClientID     string
	ClientSecret string
	Scopes       []string

	// TokenURL is the OAuth2 token endpoint.
	TokenURL string

	// Issuer is the OpenID Connect issuer; the token endpoint is discovered
	// from {Issuer}/.well-known/openid-configuration.
	Issuer string

	// BaseURL and Realm locate the Keycloak token endpoint.
	BaseURL string
	Realm   string

	// RefreshMargin triggers a refresh when now+RefreshMargin reaches the
	// token expiry. Defaults to DefaultRefreshMargin.
	RefreshMargin time.Duration

	// HTTPClient is used for token exchanges. Defaults to a client with a
	// 30s timeout.
	HTTPClient *http.Client
}

// Validate checks that the credentials required by the scheme are present.
func (c Config) Validate() error {
	var missing []string
	require := func(value, name string) {
		if value == "" {
			missing = append(missing, name)
		}
	}

	switch c.Scheme {
	case None:
	case Basic:
		require(c.Username, "username")
	case Bearer:
		require(c.Token, "token")
	case APIKey:
		require(c.APIKey, "api key")
	case OAuth2:
		require(c.TokenURL, "token url")
		require(c.ClientID, "client id")
	case OIDC:
		require(c.Issuer, "issuer")
		require(c.ClientID, "client id")
	case Keycloak:
		require(c.BaseURL, "base url")
		require(c.Realm, "realm")
		require(c.ClientID, "client id")
		require(c.Username, "username")
	default:
		return fmt.Errorf("unknown auth scheme %v", c.Scheme)
	}

	if c.RefreshMargin < 0 {
		return errors.New("refresh margin must be >= 0")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s auth requires %s", c.Scheme, strings.Join(missing, ", "))
	}
	return nil
}

// KeycloakTokenURL returns the token endpoint of a Keycloak realm.
func KeycloakTokenURL(baseURL, realm string) string {
	return strings.TrimRight(baseURL, "/") + "/realms/" + realm + "/protocol/openid-connect/token"
}
