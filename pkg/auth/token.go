package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// Token is the state of a token scheme.
type Token struct {
	AccessToken  string
	RefreshToken string

	// ExpiresAt is zero for tokens without a known expiry.
	ExpiresAt time.Time
}

// Valid reports whether the token can still be used at now, refreshing
// margin ahead of expiry.
func (t Token) Valid(now time.Time, margin time.Duration) bool {
	if t.AccessToken == "" {
		return false
	}
	if t.ExpiresAt.IsZero() {
		return true
	}
	return now.Add(margin).Before(t.ExpiresAt)
}

// tokenFrom converts an exchanged token. A refresh token missing from the
// response keeps the previous one. Without an expiry in the response, the
// exp claim of a JWT access token is used.
func tokenFrom(tok *oauth2.Token, previous Token) Token {
	t := Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
	if t.RefreshToken == "" {
		t.RefreshToken = previous.RefreshToken
	}
	if t.ExpiresAt.IsZero() {
		t.ExpiresAt = jwtExpiry(t.AccessToken)
	}
	return t
}

// jwtExpiry returns the exp claim of an access token, or zero if the token
// is not a JWT. The signature is not verified; the token is only forwarded.
func jwtExpiry(access string) time.Time {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(access, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
