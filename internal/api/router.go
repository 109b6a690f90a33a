package api

import (
	"context"
	stdjson "encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/oauth2"

	"github.com/locomotion-ai/locomotion/internal/audit"
	"github.com/locomotion-ai/locomotion/internal/auth"
	"github.com/locomotion-ai/locomotion/internal/gate"
	"github.com/locomotion-ai/locomotion/internal/profile"
	"github.com/locomotion-ai/locomotion/internal/storage"
)

// DefaultSessionCookie is the fallback token carrier for browser navigations,
// where the client cannot attach an Authorization header.
const DefaultSessionCookie = "locomotion_session"

// Server is the HTTP API server.
type Server struct {
	store         storage.Store
	verifier      auth.Verifier
	profiles      *profile.Cache
	sessionCookie string
	authEndpoints *oauth2.Endpoint
	humaAPI       huma.API
}

// NewServer creates a new API server.
func NewServer(store storage.Store, verifier auth.Verifier, profiles *profile.Cache, opts ...ServerOption) *Server {
	s := &Server{
		store:         store,
		verifier:      verifier,
		profiles:      profiles,
		sessionCookie: DefaultSessionCookie,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServerOption configures the API server.
type ServerOption func(*Server)

// WithSessionCookie overrides the cookie name checked for a session token.
func WithSessionCookie(name string) ServerOption {
	return func(s *Server) { s.sessionCookie = name }
}

// WithAuthEndpoints advertises the identity provider's oauth2 endpoints on the
// sign-in route, for clients that drive the browser sign-in flow themselves.
func WithAuthEndpoints(ep oauth2.Endpoint) ServerOption {
	return func(s *Server) { s.authEndpoints = &ep }
}

// humaJSONFormat uses stdlib encoding/json for huma request/response serialization.
var humaJSONFormat = huma.Format{
	Marshal: func(w io.Writer, v any) error {
		return stdjson.NewEncoder(w).Encode(v)
	},
	Unmarshal: stdjson.Unmarshal,
}

// newHumaConfig creates the huma configuration for the API.
func newHumaConfig() huma.Config {
	registry := huma.NewMapRegistry("#/components/schemas/", huma.DefaultSchemaNamer)
	config := huma.Config{
		OpenAPI: &huma.OpenAPI{
			OpenAPI: "3.1.0",
			Info: &huma.Info{
				Title:   "Locomotion API",
				Version: "0.1.0",
			},
			Components: &huma.Components{
				Schemas: registry,
			},
		},
		OpenAPIPath:   "", // Disabled — we serve the spec via our own route.
		DocsPath:      "",
		SchemasPath:   "",
		Formats:       map[string]huma.Format{"application/json": humaJSONFormat, "json": humaJSONFormat},
		DefaultFormat: "application/json",
	}
	// Frontend clients send fields we don't parse.
	config.AllowAdditionalPropertiesByDefault = true
	return config
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Router returns the configured HTTP handler with all endpoints.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Public huma routes (no auth).
	publicAPI := humago.New(mux, newHumaConfig())
	publicAPI.UseMiddleware(metricsHumaMiddleware)
	s.registerPublicRoutes(publicAPI)

	// Auth-protected API routes.
	api := humago.New(mux, newHumaConfig())
	api.UseMiddleware(metricsHumaMiddleware)
	api.UseMiddleware(s.authHumaMiddleware(api))
	api.UseMiddleware(s.permissionMiddleware(api))
	api.UseMiddleware(auditHumaMiddleware)
	s.humaAPI = api

	// Register huma operations.
	s.registerProfile(api)
	s.registerTenants(api)
	s.registerCustomers(api)
	s.registerVehicles(api)
	s.registerWorkOrders(api)
	s.registerUsers(api)

	// Server-side route gating for dashboard navigations. Plain handlers:
	// the gate answers with redirects, not API error envelopes.
	mux.HandleFunc("GET /dashboard/", s.handleDashboard)
	mux.HandleFunc("GET "+gate.SignInPath, s.handleSignIn)

	// HTTP-level middleware (outermost applied last).
	var handler http.Handler = mux
	handler = gzipDecompressor(handler)
	handler = requestLogger(handler)
	handler = recoverer(handler)
	handler = realIP(handler)
	return handler
}

// registerPublicRoutes registers unauthenticated huma operations.
func (s *Server) registerPublicRoutes(api huma.API) {
	// Health check.
	huma.Register(api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/",
		Tags:        []string{"Health"},
	}, func(ctx context.Context, input *struct{}) (*HealthCheckOutput, error) {
		out := &HealthCheckOutput{}
		out.Body.Status = "ok"
		return out, nil
	})

	// Prometheus metrics.
	huma.Register(api, huma.Operation{
		OperationID: "getMetrics",
		Method:      http.MethodGet,
		Path:        "/metrics",
		Tags:        []string{"Meta"},
	}, func(ctx context.Context, input *struct{}) (*huma.StreamResponse, error) {
		return &huma.StreamResponse{
			Body: func(ctx huma.Context) {
				rec := httptest.NewRecorder()
				MetricsHandler().ServeHTTP(rec, &http.Request{})
				for k, vals := range rec.Header() {
					for _, v := range vals {
						ctx.SetHeader(k, v)
					}
				}
				_, _ = ctx.BodyWriter().Write(rec.Body.Bytes())
			},
		}, nil
	})

	// OpenAPI spec.
	huma.Register(api, huma.Operation{
		OperationID: "getOpenAPISpec",
		Method:      http.MethodGet,
		Path:        "/api/openapi",
		Tags:        []string{"Meta"},
	}, func(ctx context.Context, input *struct{}) (*huma.StreamResponse, error) {
		return &huma.StreamResponse{
			Body: func(ctx huma.Context) {
				ctx.SetHeader("Content-Type", "application/json")
				if s.humaAPI != nil {
					data, _ := stdjson.Marshal(s.humaAPI.OpenAPI())
					_, _ = ctx.BodyWriter().Write(data)
				} else {
					_, _ = ctx.BodyWriter().Write([]byte(`{}`))
				}
			},
		}, nil
	})
}

// requestToken extracts the bearer token from the Authorization header, falling
// back to the session cookie for cookie-carrying clients.
func (s *Server) requestToken(ctx huma.Context) string {
	if tok := auth.BearerToken(ctx.Header("Authorization")); tok != "" {
		return tok
	}
	if cookie, err := huma.ReadCookie(ctx, s.sessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

// authHumaMiddleware validates the bearer token and sets the account identity
// on the request context. A missing or rejected token is a 401; a verifier
// backend failure is a 500 so clients retry instead of treating a healthy
// session as signed out.
func (s *Server) authHumaMiddleware(api huma.API) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		token := s.requestToken(ctx)
		if token == "" {
			_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, "Unauthorized")
			return
		}

		identity, err := s.verifier.Verify(ctx.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				slog.Debug("token verification rejected", "error", err)
				_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, "Unauthorized")
				return
			}
			slog.Error("token verification failed", "error", err)
			_ = huma.WriteErr(api, ctx, http.StatusInternalServerError, "Internal server error")
			return
		}

		next(huma.WithContext(ctx, auth.WithIdentity(ctx.Context(), identity)))
	}
}

// permissionMiddleware resolves the caller's profile and enforces role
// permissions on business routes. It runs after authHumaMiddleware, which sets
// the account identity. The session endpoints under /api/auth are exempt: the
// profile endpoint owns its own not-found contract.
func (s *Server) permissionMiddleware(api huma.API) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if strings.HasPrefix(ctx.Operation().Path, "/api/auth/") {
			next(ctx)
			return
		}

		identity := auth.IdentityFromContext(ctx.Context())
		p, err := s.profiles.Resolve(ctx.Context(), identity)
		if err != nil {
			if errors.Is(err, profile.ErrProfileNotFound) {
				profileResolutionsTotal.WithLabelValues("not_found").Inc()
				_ = huma.WriteErr(api, ctx, http.StatusForbidden, "no profile provisioned for this account")
				return
			}
			profileResolutionsTotal.WithLabelValues("error").Inc()
			slog.Error("profile resolution failed", "user_id", identity.ID, "error", err)
			_ = huma.WriteErr(api, ctx, http.StatusInternalServerError, "Internal server error")
			return
		}
		profileResolutionsTotal.WithLabelValues("ok").Inc()

		if perm := requiredPermission(ctx.Method(), ctx.Operation()); !p.HasPermission(perm) {
			_ = huma.WriteErr(api, ctx, http.StatusForbidden, "insufficient permissions")
			return
		}

		next(huma.WithContext(ctx, profile.WithProfile(ctx.Context(), p)))
	}
}

// requiredPermission maps an HTTP method and operation to the minimum
// permission required. Admin provisioning routes require the wildcard.
func requiredPermission(method string, op *huma.Operation) string {
	if strings.HasPrefix(op.Path, "/api/admin/") {
		return profile.PermissionAll
	}
	if method == http.MethodGet || method == http.MethodHead {
		return "read"
	}
	return "write"
}

// handleDashboard gates dashboard navigations server-side. Anonymous or
// unprovisioned visitors are bounced to sign-in with a return target; a
// signed-in visitor on the wrong dashboard is bounced to their own home.
// Verifier or database outages are 500s, never sign-in redirects.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	route := r.URL.Path

	p, err := s.profileForRequest(r)
	if err != nil {
		gateDecisionsTotal.WithLabelValues("error").Inc()
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	decision := gate.Decide(route, p)
	if decision.Allow {
		gateDecisionsTotal.WithLabelValues("allow").Inc()
		w.Header().Set("Content-Type", "application/json")
		_ = stdjson.NewEncoder(w).Encode(map[string]any{"allowed": true, "route": route})
		return
	}

	outcome := "redirect_home"
	if strings.HasPrefix(decision.RedirectTo, gate.SignInPath) {
		outcome = "redirect_signin"
	}
	gateDecisionsTotal.WithLabelValues(outcome).Inc()
	audit.Event{
		Actor:  actorForProfile(p),
		Action: "gateRedirect",
		Route:  route,
		Reason: outcome,
		IP:     r.RemoteAddr,
	}.Info("Audit Log: Gate Decision")
	http.Redirect(w, r, decision.RedirectTo, http.StatusSeeOther)
}

// handleSignIn answers the sign-in route. The page itself is frontend
// territory; the server's job is to echo back a safe continue target so an
// attacker-supplied redirectTo can never leave the site.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	target := gate.SanitizeRedirect(r.URL.Query().Get("redirectTo"), "/dashboard")

	// A visitor who still has a working session shouldn't see the sign-in
	// page at all. A role outside the route table has no home to bounce to
	// and stays on the sign-in page.
	if p, err := s.profileForRequest(r); err == nil && p != nil {
		if home := gate.RouteForRole(p.Role.Name); home != "" {
			http.Redirect(w, r, home, http.StatusSeeOther)
			return
		}
	}

	body := map[string]any{"redirectTo": target}
	if s.authEndpoints != nil {
		body["authorizationUrl"] = s.authEndpoints.AuthURL
		body["tokenUrl"] = s.authEndpoints.TokenURL
	}
	w.Header().Set("Content-Type", "application/json")
	_ = stdjson.NewEncoder(w).Encode(body)
}

// profileForRequest resolves the caller's profile from the request token, or
// nil when the visitor is anonymous, carries a rejected token, or has no
// provisioned profile. Only infrastructure failures surface as errors.
func (s *Server) profileForRequest(r *http.Request) (*profile.Profile, error) {
	token := auth.BearerToken(r.Header.Get("Authorization"))
	if token == "" {
		if cookie, err := r.Cookie(s.sessionCookie); err == nil {
			token = cookie.Value
		}
	}
	if token == "" {
		return nil, nil
	}

	identity, err := s.verifier.Verify(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			return nil, nil
		}
		return nil, err
	}

	p, err := s.profiles.Resolve(r.Context(), identity)
	if err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func actorForProfile(p *profile.Profile) string {
	if p == nil {
		return "anonymous"
	}
	return p.Email
}

// metricsHumaMiddleware records Prometheus metrics for each huma request using
// the operation path as the route label for clean, low-cardinality metrics.
func metricsHumaMiddleware(ctx huma.Context, next func(huma.Context)) {
	start := time.Now()
	next(ctx)
	elapsed := time.Since(start)

	route := ctx.Operation().Path
	status := ctx.Status()
	if status == 0 {
		status = 200
	}

	httpRequestsTotal.WithLabelValues(ctx.Method(), route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(ctx.Method(), route).Observe(elapsed.Seconds())
}

// auditHumaMiddleware logs structured audit entries for state-mutating API
// operations. It runs after permissionMiddleware, so identity is always set.
func auditHumaMiddleware(ctx huma.Context, next func(huma.Context)) {
	next(ctx)

	// Only audit state-mutating methods.
	method := ctx.Method()
	if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
		return
	}

	actor := "unknown"
	if identity := auth.IdentityFromContext(ctx.Context()); identity != nil {
		actor = identity.Email
	}
	role := ""
	if p := profile.FromContext(ctx.Context()); p != nil {
		role = p.Role.Name
	}

	status := ctx.Status()
	if status == 0 {
		status = 200
	}

	e := audit.Event{
		Actor:      actor,
		Action:     ctx.Operation().OperationID,
		Method:     method,
		Role:       role,
		Route:      ctx.Operation().Path,
		HTTPStatus: status,
		IP:         ctx.RemoteAddr(),
	}
	if status >= 400 {
		e.Warn("Audit Log: API Request")
	} else {
		e.Info("Audit Log: API Request")
	}
}

// requestLogger logs each HTTP request with method, path, status, and latency.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(sw, r)
		slog.Info("request", //nolint:gosec // structured logger, not format string
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"latency", time.Since(start),
		)
	})
}

// realIP extracts the real client IP from X-Real-Ip or X-Forwarded-For headers.
func realIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rip := r.Header.Get("X-Real-Ip"); rip != "" {
			r.RemoteAddr = rip
		} else if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if i := strings.IndexByte(xff, ','); i > 0 {
				r.RemoteAddr = strings.TrimSpace(xff[:i])
			} else {
				r.RemoteAddr = xff
			}
		}
		next.ServeHTTP(w, r)
	})
}

// recoverer recovers from panics and returns a 500 Internal Server Error.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				slog.Error("panic recovered", "error", rvr, "method", r.Method, "path", r.URL.Path) //nolint:gosec // structured logger, not format string
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// gzipDecompressor transparently decompresses gzip request bodies.
func gzipDecompressor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Encoding") == "gzip" {
			gz, err := gzip.NewReader(r.Body)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_ = stdjson.NewEncoder(w).Encode(map[string]any{
					"error": "invalid gzip body",
				})
				return
			}
			r.Body = io.NopCloser(gz)
			r.Header.Del("Content-Encoding")
		}
		next.ServeHTTP(w, r)
	})
}
