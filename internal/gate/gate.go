// Package gate is the route admission policy: given a requested route and a
// resolved profile (or none), it decides allow or redirect. The role→home
// table here is the single source of truth consulted by both the server's
// request middleware (authoritative) and post-login client redirection
// (advisory) — the two must never disagree.
package gate

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/locomotion-ai/locomotion/internal/profile"
)

// SignInPath is the shared sign-in route. It accepts a redirectTo query
// parameter honored only after successful authorization.
const SignInPath = "/login"

// roleHomes maps each fixed role to its home route. One entry per role;
// a role's allowed dashboard routes are exactly those under its home.
var roleHomes = map[string]string{
	profile.RoleOwner:      "/dashboard/owner",
	profile.RoleManager:    "/dashboard/manager",
	profile.RoleTechnician: "/dashboard/lift-worker",
	profile.RoleFrontDesk:  "/dashboard/front-desk",
}

// RouteForRole returns the home route for a role name, or "" if the role is
// not in the fixed mapping.
func RouteForRole(roleName string) string {
	return roleHomes[roleName]
}

// Decision is the outcome of a gate evaluation.
type Decision struct {
	Allow      bool
	RedirectTo string // set when Allow is false
}

func allow() Decision               { return Decision{Allow: true} }
func redirect(path string) Decision { return Decision{RedirectTo: path} }

// Decide evaluates route admission for a profile (nil = unauthenticated).
//
//   - no profile → redirect to sign-in, preserving the requested route as a
//     return target
//   - unrecognized role → redirect to sign-in (data-integrity warning; no
//     safe return target exists)
//   - recognized role, route outside its home → redirect to the role's home
//   - otherwise → allow
func Decide(route string, p *profile.Profile) Decision {
	if p == nil {
		return redirect(signInWithReturn(route))
	}

	home, ok := roleHomes[p.Role.Name]
	if !ok {
		// A role outside the fixed mapping means a role was deleted or
		// renamed without migrating its users.
		slog.Warn("access gate: unrecognized role, failing closed",
			"role", p.Role.Name, "user", p.ID, "route", route)
		return redirect(SignInPath)
	}

	if covers(home, route) {
		return allow()
	}
	return redirect(home)
}

// covers reports whether route falls under the role's home prefix, matching
// on path segments so /dashboard/owner does not cover /dashboard/owners.
func covers(home, route string) bool {
	if route == home {
		return true
	}
	return strings.HasPrefix(route, home+"/")
}

// signInWithReturn builds the sign-in path with the original route preserved.
func signInWithReturn(route string) string {
	if route == "" || route == SignInPath {
		return SignInPath
	}
	return SignInPath + "?redirectTo=" + url.QueryEscape(route)
}

// SanitizeRedirect validates a redirectTo value. Only same-origin relative
// paths are honored; anything that could leave the origin (absolute URLs,
// scheme-relative "//host" forms, embedded schemes) falls back to the given
// default. This keeps the sign-in flow from being an open redirect.
func SanitizeRedirect(target, fallback string) string {
	if target == "" {
		return fallback
	}
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return fallback
	}
	if strings.Contains(target, "://") || strings.ContainsAny(target, "\\\r\n") {
		return fallback
	}
	return target
}
