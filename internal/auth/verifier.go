package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrInvalidToken is returned for missing, malformed, unknown, or expired
// tokens. Callers must treat it identically to "no session" and must never
// surface the underlying provider error to the end user.
var ErrInvalidToken = errors.New("invalid or expired token")

// Verifier validates a bearer token against the external auth service and
// yields the account identity it belongs to. Verification is pure: no side
// effects, no caching.
type Verifier interface {
	Verify(ctx context.Context, token string) (*AccountIdentity, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. Returns "" if the header is absent or malformed.
func BearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// IntrospectConfig holds configuration for the introspection verifier.
type IntrospectConfig struct {
	// UserInfoURL is the auth service endpoint that returns the account
	// behind a bearer token (e.g. "https://auth.example.com/auth/v1/user").
	UserInfoURL string
	// Timeout bounds each introspection call (default 5s).
	Timeout time.Duration
}

// IntrospectVerifier delegates token validation to the auth service's
// user-info endpoint. It never inspects token contents or validates
// signatures itself; the auth service is the sole arbiter of validity.
type IntrospectVerifier struct {
	url    string
	client *http.Client
}

// NewIntrospectVerifier creates a verifier backed by the auth service's
// user-info endpoint.
func NewIntrospectVerifier(cfg IntrospectConfig) (*IntrospectVerifier, error) {
	if cfg.UserInfoURL == "" {
		return nil, errors.New("user-info URL is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &IntrospectVerifier{
		url:    cfg.UserInfoURL,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// userInfoResponse is the subset of the auth service's user payload we read.
type userInfoResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Verify asks the auth service who holds the token. A 401/403 from the
// service maps to ErrInvalidToken; any transport or 5xx failure is returned
// as-is so callers can distinguish "bad credentials" from "service down".
func (v *IntrospectVerifier) Verify(ctx context.Context, token string) (*AccountIdentity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build introspection request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("introspect token: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		slog.Debug("token introspection rejected", "status", resp.StatusCode)
		return nil, ErrInvalidToken
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("introspection endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var info userInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode introspection response: %w", err)
	}
	if info.ID == "" {
		// A 200 with no account id means the service changed shape on us;
		// fail closed rather than fabricate an identity.
		return nil, ErrInvalidToken
	}

	return &AccountIdentity{ID: info.ID, Email: info.Email}, nil
}
