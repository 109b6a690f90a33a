package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/locomotion-ai/locomotion/internal/auth"
	"github.com/locomotion-ai/locomotion/internal/storage"
)

// ErrProfileNotFound means the account verified fine but has no application
// user row (or the row is unusable: deactivated, roleless). Distinct from
// auth.ErrInvalidToken so operators can tell the two apart in logs, though
// end users see both as "sign in again".
var ErrProfileNotFound = errors.New("user profile not found")

// Reader is the slice of the store the resolver needs: the joined user/role
// read plus the active tenant list. The store behind it holds a privileged
// credential so the read works even for not-yet-authorized requests.
type Reader interface {
	GetUserWithRole(ctx context.Context, id string) (*storage.User, *storage.Role, error)
	ListActiveTenants(ctx context.Context) ([]storage.Tenant, error)
}

// Resolver turns a verified account identity into a normalized Profile.
type Resolver struct {
	store  Reader
	policy *Policy
}

// NewResolver creates a resolver. A nil policy falls back to DefaultPolicy.
func NewResolver(store Reader, policy *Policy) *Resolver {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Resolver{store: store, policy: policy}
}

// Resolve performs the single logical joined read for the identity and
// normalizes the result. Every field is coerced to its declared type here;
// no ambiguous shape escapes this boundary.
//
// Failure modes:
//   - ErrProfileNotFound: no user row, deactivated user, or a row whose role
//     reference is broken. Fails closed — never a profile without a role.
//   - anything else: backend/transport failure; the caller must not cache it.
func (r *Resolver) Resolve(ctx context.Context, identity *auth.AccountIdentity) (*Profile, error) {
	if identity == nil || identity.ID == "" {
		return nil, ErrProfileNotFound
	}

	user, role, err := r.store.GetUserWithRole(ctx, identity.ID)
	if errors.Is(err, storage.ErrNotFound) {
		slog.Warn("profile resolution: no user row for account", "account_id", identity.ID)
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve profile for %s: %w", identity.ID, err)
	}

	if role == nil || role.Name == "" {
		// A user row pointing at a missing/unnamed role is a data-integrity
		// problem; treat as unauthenticated rather than half-resolve.
		slog.Warn("profile resolution: user has no usable role", "account_id", identity.ID)
		return nil, ErrProfileNotFound
	}
	if !user.IsActive {
		slog.Warn("profile resolution: user is deactivated", "account_id", identity.ID, "email", user.Email)
		return nil, ErrProfileNotFound
	}

	p := &Profile{
		ID:       user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		Role: Role{
			ID:          role.ID,
			Name:        role.Name,
			Permissions: normalizeStrings(role.Permissions),
		},
		IsActive: true,
	}

	access, err := r.expandTenantAccess(ctx, role.Name, user.TenantAccess)
	if err != nil {
		return nil, fmt.Errorf("expand tenant access for %s: %w", identity.ID, err)
	}
	p.TenantAccess = access

	return p, nil
}

// expandTenantAccess replaces the "all" sentinel (explicit, or implied by the
// per-role policy default on an empty list) with the concrete active tenant
// id list, ordered by tenant name for stability.
func (r *Resolver) expandTenantAccess(ctx context.Context, roleName string, stored []string) ([]string, error) {
	expandAll := slices.Contains(stored, TenantAccessAll) ||
		(len(stored) == 0 && r.policy.defaultsToAll(roleName))

	if !expandAll {
		return normalizeStrings(stored), nil
	}

	tenants, err := r.store.ListActiveTenants(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(tenants))
	for _, t := range tenants {
		ids = append(ids, t.ID)
	}
	return ids, nil
}

// normalizeStrings guarantees a non-nil slice with empty entries dropped.
func normalizeStrings(ss []string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
