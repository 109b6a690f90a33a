package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// defaultRoles is the fixed role set the application ships with. The "all"
// permission is a wildcard matching every permission check.
var defaultRoles = []Role{
	{Name: "owner", Permissions: []string{"all"}},
	{Name: "manager", Permissions: []string{"read", "write"}},
	{Name: "technician", Permissions: []string{"read", "write"}},
	{Name: "front_desk", Permissions: []string{"read", "write"}},
}

var demoTenants = []Tenant{
	{Name: "Arlington", Code: "LAT-ARL", Type: "shop", IsActive: true},
	{Name: "Dallas Parts Depot", Code: "LAT-DAL", Type: "parts", IsActive: true},
	{Name: "Fort Worth", Code: "LAT-FTW", Type: "shop", IsActive: true},
}

// Seed ensures the fixed role set exists and, when withDemo is set, a few
// demo tenants. Idempotent: existing rows are left untouched.
func Seed(ctx context.Context, store Store, withDemo bool) error {
	for _, r := range defaultRoles {
		_, err := store.GetRoleByName(ctx, r.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("check role %s: %w", r.Name, err)
		}
		r.ID = uuid.NewString()
		if err := store.CreateRole(ctx, &r); err != nil {
			return err
		}
	}

	if !withDemo {
		return nil
	}

	existing, err := store.ListTenants(ctx)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}
	codes := make(map[string]struct{}, len(existing))
	for _, t := range existing {
		codes[t.Code] = struct{}{}
	}
	for _, t := range demoTenants {
		if _, ok := codes[t.Code]; ok {
			continue
		}
		t.ID = uuid.NewString()
		if err := store.CreateTenant(ctx, &t); err != nil {
			return err
		}
	}
	return nil
}
