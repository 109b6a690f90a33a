// Package profile resolves verified account identities into application
// profiles: the user row joined to its role, with tenant access expanded to
// concrete tenant ids. Nothing downstream of this package ever sees a raw
// join shape or a sentinel tenant value.
package profile

import "slices"

// PermissionAll is the wildcard permission matching every permission check.
const PermissionAll = "all"

// TenantAccessAll is the stored sentinel meaning "every active tenant".
// The resolver expands it before a Profile escapes this package.
const TenantAccessAll = "all"

// Fixed role names. Anything else is treated as an unknown role and fails
// closed at the access gate.
const (
	RoleOwner      = "owner"
	RoleManager    = "manager"
	RoleTechnician = "technician"
	RoleFrontDesk  = "front_desk"
)

// Role is the normalized view of a role row. Permissions is never nil.
type Role struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// HasPermission reports whether the role grants the named permission,
// honoring the "all" wildcard.
func (r Role) HasPermission(perm string) bool {
	return slices.Contains(r.Permissions, PermissionAll) || slices.Contains(r.Permissions, perm)
}

// Profile is the application's joined view of a user: identity fields plus
// resolved role and concrete tenant access. TenantAccess never contains the
// "all" sentinel and is never nil.
type Profile struct {
	ID           string   `json:"id"`
	Email        string   `json:"email"`
	FullName     string   `json:"full_name"`
	Role         Role     `json:"role"`
	TenantAccess []string `json:"tenant_access"`
	IsActive     bool     `json:"is_active"`
}

// HasTenantAccess reports whether the profile may see data for the tenant.
func (p *Profile) HasTenantAccess(tenantID string) bool {
	return slices.Contains(p.TenantAccess, tenantID)
}

// HasPermission is shorthand for p.Role.HasPermission.
func (p *Profile) HasPermission(perm string) bool {
	return p.Role.HasPermission(perm)
}
