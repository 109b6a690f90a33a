package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// OIDCConfig holds configuration for OIDC-based token verification.
type OIDCConfig struct {
	Issuer     string // OIDC provider discovery URL
	ClientID   string // expected audience of issued tokens
	EmailClaim string // claim holding the account email (default: "email")
}

func (c OIDCConfig) emailClaim() string {
	if c.EmailClaim != "" {
		return c.EmailClaim
	}
	return "email"
}

// oidcClaimsVerifier abstracts ID token verification so tests can inject a
// fake without an OIDC discovery round-trip.
type oidcClaimsVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (claims map[string]any, err error)
}

// goOIDCVerifier wraps go-oidc's IDTokenVerifier.
type goOIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func (v *goOIDCVerifier) Verify(ctx context.Context, rawIDToken string) (map[string]any, error) {
	token, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, err
	}
	var claims map[string]any
	if err := token.Claims(&claims); err != nil {
		return nil, fmt.Errorf("extract claims: %w", err)
	}
	return claims, nil
}

// OIDCVerifier validates tokens against the auth service's OIDC discovery
// document (remote JWKS). Key rotation is handled by go-oidc.
type OIDCVerifier struct {
	config   OIDCConfig
	verifier oidcClaimsVerifier
}

// NewOIDCVerifier creates a verifier using OIDC discovery against the issuer.
func NewOIDCVerifier(ctx context.Context, config OIDCConfig) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, config.Issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery for %s: %w", config.Issuer, err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: config.ClientID})
	return &OIDCVerifier{
		config:   config,
		verifier: &goOIDCVerifier{verifier: verifier},
	}, nil
}

// NewTestOIDCVerifier creates a verifier with an injected claims verifier,
// avoiding an OIDC discovery round-trip in tests.
func NewTestOIDCVerifier(config OIDCConfig, claims oidcClaimsVerifier) *OIDCVerifier {
	return &OIDCVerifier{config: config, verifier: claims}
}

// DiscoveryEndpoint returns the provider's oauth2 endpoints, for clients that
// drive the browser sign-in flow themselves.
func DiscoveryEndpoint(ctx context.Context, issuer string) (oauth2.Endpoint, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return oauth2.Endpoint{}, fmt.Errorf("oidc discovery for %s: %w", issuer, err)
	}
	return provider.Endpoint(), nil
}

// Verify validates the raw ID token and maps its claims to an account
// identity. Verification failures collapse to ErrInvalidToken.
func (v *OIDCVerifier) Verify(ctx context.Context, rawIDToken string) (*AccountIdentity, error) {
	if rawIDToken == "" {
		return nil, ErrInvalidToken
	}

	claims, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		slog.Debug("oidc token verification failed", "error", err)
		return nil, ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, ErrInvalidToken
	}

	// Reject tokens for unverified email addresses when the claim is present.
	if verified, ok := claims["email_verified"].(bool); ok && !verified {
		email, _ := claims[v.config.emailClaim()].(string)
		slog.Warn("token rejected: email not verified", "email", email)
		return nil, ErrInvalidToken
	}

	email, _ := claims[v.config.emailClaim()].(string)
	return &AccountIdentity{ID: sub, Email: email}, nil
}
