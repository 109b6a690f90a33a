package gate

import (
	"testing"

	"github.com/locomotion-ai/locomotion/internal/profile"
)

func profileWithRole(role string) *profile.Profile {
	return &profile.Profile{
		ID:    "account-1",
		Email: "user@example.com",
		Role:  profile.Role{ID: "r1", Name: role, Permissions: []string{"read", "write"}},
	}
}

func TestDecide_Anonymous(t *testing.T) {
	d := Decide("/dashboard/owner", nil)
	if d.Allow {
		t.Fatal("anonymous visitor must not be allowed")
	}
	want := "/login?redirectTo=%2Fdashboard%2Fowner"
	if d.RedirectTo != want {
		t.Errorf("RedirectTo = %q, want %q", d.RedirectTo, want)
	}
}

func TestDecide_AnonymousOnSignIn(t *testing.T) {
	// Already on the sign-in route: no self-referencing return target.
	d := Decide(SignInPath, nil)
	if d.RedirectTo != SignInPath {
		t.Errorf("RedirectTo = %q, want %q", d.RedirectTo, SignInPath)
	}
}

func TestDecide_RoleHomes(t *testing.T) {
	tests := []struct {
		role string
		home string
	}{
		{profile.RoleOwner, "/dashboard/owner"},
		{profile.RoleManager, "/dashboard/manager"},
		{profile.RoleTechnician, "/dashboard/lift-worker"},
		{profile.RoleFrontDesk, "/dashboard/front-desk"},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			if got := RouteForRole(tt.role); got != tt.home {
				t.Errorf("RouteForRole(%q) = %q, want %q", tt.role, got, tt.home)
			}
			if d := Decide(tt.home, profileWithRole(tt.role)); !d.Allow {
				t.Errorf("role %q should be allowed on its own home", tt.role)
			}
		})
	}
}

func TestDecide_SubrouteAllowed(t *testing.T) {
	d := Decide("/dashboard/lift-worker/queue", profileWithRole(profile.RoleTechnician))
	if !d.Allow {
		t.Errorf("subroute of own home should be allowed, got redirect to %q", d.RedirectTo)
	}
}

func TestDecide_PrefixIsSegmentAware(t *testing.T) {
	// /dashboard/owners is not under /dashboard/owner.
	d := Decide("/dashboard/owners", profileWithRole(profile.RoleOwner))
	if d.Allow {
		t.Fatal("string-prefix sibling route must not be covered")
	}
	if d.RedirectTo != "/dashboard/owner" {
		t.Errorf("RedirectTo = %q, want /dashboard/owner", d.RedirectTo)
	}
}

func TestDecide_WrongDashboard(t *testing.T) {
	// A technician poking at the owner dashboard lands on their own home,
	// not the sign-in page. They are signed in; they're just lost.
	d := Decide("/dashboard/owner", profileWithRole(profile.RoleTechnician))
	if d.Allow {
		t.Fatal("technician must not reach the owner dashboard")
	}
	if d.RedirectTo != "/dashboard/lift-worker" {
		t.Errorf("RedirectTo = %q, want /dashboard/lift-worker", d.RedirectTo)
	}
}

func TestDecide_UnrecognizedRole(t *testing.T) {
	// A role missing from the mapping (deleted, renamed, or mistyped in the
	// database) fails closed to sign-in with no return target.
	d := Decide("/dashboard/owner", profileWithRole("auditor"))
	if d.Allow {
		t.Fatal("unrecognized role must fail closed")
	}
	if d.RedirectTo != SignInPath {
		t.Errorf("RedirectTo = %q, want %q", d.RedirectTo, SignInPath)
	}
}

func TestRouteForRole_Unknown(t *testing.T) {
	if got := RouteForRole("auditor"); got != "" {
		t.Errorf("RouteForRole(auditor) = %q, want empty", got)
	}
}

func TestSanitizeRedirect(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"empty falls back", "", "/dashboard"},
		{"relative path ok", "/dashboard/owner", "/dashboard/owner"},
		{"path with query ok", "/dashboard/owner?tab=fleet", "/dashboard/owner?tab=fleet"},
		{"absolute URL rejected", "https://evil.example.com/", "/dashboard"},
		{"scheme-relative rejected", "//evil.example.com/", "/dashboard"},
		{"embedded scheme rejected", "/redirect?to=https://evil.example.com", "/dashboard"},
		{"backslash rejected", "/\\evil.example.com", "/dashboard"},
		{"CRLF rejected", "/dashboard\r\nSet-Cookie: x=y", "/dashboard"},
		{"no leading slash rejected", "dashboard/owner", "/dashboard"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeRedirect(tt.target, "/dashboard"); got != tt.want {
				t.Errorf("SanitizeRedirect(%q) = %q, want %q", tt.target, got, tt.want)
			}
		})
	}
}
