package auth

import (
	"context"
	"errors"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
)

// OAuthIdentity is what a verified provider ID token says about the user.
type OAuthIdentity struct {
	Subject string
	Email   string
	Name    string
}

// TokenVerifier validates a provider ID token.
type TokenVerifier interface {
	Verify(ctx context.Context, idToken string) (OAuthIdentity, error)
}

// JWKSVerifier checks RS256 ID tokens against a provider's published key set.
type JWKSVerifier struct {
	jwks     *keyfunc.JWKS
	audience string
	issuer   string
	parser   *jwt.Parser
	now      func() time.Time
}

// NewJWKSVerifier wraps a fetched key set. Empty audience or issuer skip that check.
func NewJWKSVerifier(jwks *keyfunc.JWKS, audience, issuer string) *JWKSVerifier {
	return &JWKSVerifier{
		jwks:     jwks,
		audience: audience,
		issuer:   issuer,
		parser:   jwt.NewParser(jwt.WithValidMethods([]string{"RS256"})),
		now:      time.Now,
	}
}

// FetchJWKSVerifier downloads the key set at url and keeps it refreshed.
func FetchJWKSVerifier(url, audience, issuer string, refresh time.Duration) (*JWKSVerifier, error) {
	jwks, err := keyfunc.Get(url, keyfunc.Options{
		RefreshInterval:   refresh,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, err
	}
	return NewJWKSVerifier(jwks, audience, issuer), nil
}

// JWKS exposes the key set so callers can stop its background refresh.
func (v *JWKSVerifier) JWKS() *keyfunc.JWKS {
	return v.jwks
}

func (v *JWKSVerifier) Verify(ctx context.Context, idToken string) (OAuthIdentity, error) {
	if err := ctx.Err(); err != nil {
		return OAuthIdentity{}, err
	}
	if v.jwks == nil {
		return OAuthIdentity{}, errors.New("jwks not configured")
	}
	token, err := v.parser.Parse(idToken, v.jwks.Keyfunc)
	if err != nil {
		return OAuthIdentity{}, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return OAuthIdentity{}, errors.New("invalid claims")
	}

	now := v.now().Unix()
	if !claims.VerifyExpiresAt(now, true) {
		return OAuthIdentity{}, errors.New("token expired")
	}
	if v.audience != "" && !claims.VerifyAudience(v.audience, true) {
		return OAuthIdentity{}, errors.New("invalid audience")
	}
	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return OAuthIdentity{}, errors.New("invalid issuer")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return OAuthIdentity{}, errors.New("missing sub")
	}
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	return OAuthIdentity{Subject: sub, Email: email, Name: name}, nil
}
