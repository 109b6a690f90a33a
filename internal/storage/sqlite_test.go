package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func mustSeed(t *testing.T, store *SQLiteStore, withDemo bool) {
	t.Helper()
	if err := Seed(context.Background(), store, withDemo); err != nil {
		t.Fatal(err)
	}
}

func TestSeed_CreatesRoles(t *testing.T) {
	store := newTestStore(t)
	mustSeed(t, store, false)

	ctx := context.Background()
	for _, name := range []string{"owner", "manager", "technician", "front_desk"} {
		role, err := store.GetRoleByName(ctx, name)
		if err != nil {
			t.Fatalf("role %s: %v", name, err)
		}
		if len(role.Permissions) == 0 {
			t.Errorf("role %s has no permissions", name)
		}
	}

	owner, err := store.GetRoleByName(ctx, "owner")
	if err != nil {
		t.Fatal(err)
	}
	if len(owner.Permissions) != 1 || owner.Permissions[0] != "all" {
		t.Errorf("owner permissions = %v, want [all]", owner.Permissions)
	}
}

func TestSeed_Idempotent(t *testing.T) {
	store := newTestStore(t)
	mustSeed(t, store, true)
	mustSeed(t, store, true)

	roles, err := store.ListRoles(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(roles) != 4 {
		t.Errorf("got %d roles after double seed, want 4", len(roles))
	}
}

func TestUserRoundTrip(t *testing.T) {
	store := newTestStore(t)
	mustSeed(t, store, false)
	ctx := context.Background()

	role, err := store.GetRoleByName(ctx, "technician")
	if err != nil {
		t.Fatal(err)
	}

	u := &User{
		ID:           "acct-1",
		Email:        "tech@example.com",
		FullName:     "Terry Tech",
		RoleID:       role.ID,
		TenantAccess: []string{"t-arl", "t-dal"},
		IsActive:     true,
	}
	if err := store.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}

	got, gotRole, err := store.GetUserWithRole(ctx, "acct-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Email != "tech@example.com" || got.FullName != "Terry Tech" {
		t.Errorf("unexpected user: %+v", got)
	}
	if len(got.TenantAccess) != 2 || got.TenantAccess[0] != "t-arl" {
		t.Errorf("tenant access = %v", got.TenantAccess)
	}
	if gotRole.Name != "technician" {
		t.Errorf("role = %q, want technician", gotRole.Name)
	}
}

func TestGetUserWithRole_NotFound(t *testing.T) {
	store := newTestStore(t)
	mustSeed(t, store, false)

	_, _, err := store.GetUserWithRole(context.Background(), "nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateUser(t *testing.T) {
	store := newTestStore(t)
	mustSeed(t, store, false)
	ctx := context.Background()

	tech, _ := store.GetRoleByName(ctx, "technician")
	mgr, _ := store.GetRoleByName(ctx, "manager")

	u := &User{ID: "acct-1", Email: "user@example.com", RoleID: tech.ID, IsActive: true}
	if err := store.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}

	u.RoleID = mgr.ID
	u.IsActive = false
	if err := store.UpdateUser(ctx, u); err != nil {
		t.Fatal(err)
	}

	got, gotRole, err := store.GetUserWithRole(ctx, "acct-1")
	if err != nil {
		t.Fatal(err)
	}
	if gotRole.Name != "manager" {
		t.Errorf("role = %q, want manager", gotRole.Name)
	}
	if got.IsActive {
		t.Error("user should be deactivated")
	}
}

func TestUpdateUser_Missing(t *testing.T) {
	store := newTestStore(t)
	mustSeed(t, store, false)

	tech, _ := store.GetRoleByName(context.Background(), "technician")
	err := store.UpdateUser(context.Background(), &User{ID: "nobody", RoleID: tech.ID})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListActiveTenants_OrderedByName(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, tn := range []*Tenant{
		{ID: "t-c", Name: "Charlie", Code: "C", Type: "shop", IsActive: true},
		{ID: "t-a", Name: "Alpha", Code: "A", Type: "shop", IsActive: true},
		{ID: "t-b", Name: "Bravo", Code: "B", Type: "shop", IsActive: false},
	} {
		if err := store.CreateTenant(ctx, tn); err != nil {
			t.Fatal(err)
		}
	}

	active, err := store.ListActiveTenants(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 2 {
		t.Fatalf("got %d active tenants, want 2", len(active))
	}
	if active[0].Name != "Alpha" || active[1].Name != "Charlie" {
		t.Errorf("unexpected order: %s, %s", active[0].Name, active[1].Name)
	}
}

func TestTenantAccess_LegacyBareString(t *testing.T) {
	// Legacy rows stored tenant_access as a bare JSON string rather than an
	// array; the decoder coerces it to a one-element slice.
	store := newTestStore(t)
	mustSeed(t, store, false)
	ctx := context.Background()

	tech, _ := store.GetRoleByName(ctx, "technician")
	u := &User{ID: "acct-1", Email: "legacy@example.com", RoleID: tech.ID, IsActive: true}
	if err := store.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}
	if _, err := store.db.ExecContext(ctx,
		`UPDATE users SET tenant_access = '"t-arl"' WHERE id = ?`, u.ID); err != nil {
		t.Fatal(err)
	}

	got, _, err := store.GetUserWithRole(ctx, "acct-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.TenantAccess) != 1 || got.TenantAccess[0] != "t-arl" {
		t.Errorf("tenant access = %v, want [t-arl]", got.TenantAccess)
	}
}

func TestCustomerAndVehicleScoping(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, tn := range []*Tenant{
		{ID: "t-1", Name: "One", Code: "ONE", Type: "shop", IsActive: true},
		{ID: "t-2", Name: "Two", Code: "TWO", Type: "shop", IsActive: true},
	} {
		if err := store.CreateTenant(ctx, tn); err != nil {
			t.Fatal(err)
		}
	}
	for _, c := range []*Customer{
		{ID: "c-1", TenantID: "t-1", LastName: "Adams", CustomerType: "retail"},
		{ID: "c-2", TenantID: "t-2", LastName: "Baker", CustomerType: "fleet"},
	} {
		if err := store.CreateCustomer(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	scoped, err := store.ListCustomers(ctx, []string{"t-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(scoped) != 1 || scoped[0].ID != "c-1" {
		t.Errorf("scoped customers = %+v, want only c-1", scoped)
	}

	none, err := store.ListCustomers(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("empty scope returned %d customers, want 0", len(none))
	}

	v := &Vehicle{ID: "v-1", CustomerID: "c-1", Make: "Ford", Model: "F-150", Year: 2019}
	if err := store.CreateVehicle(ctx, v); err != nil {
		t.Fatal(err)
	}
	vehicles, err := store.ListVehiclesByCustomer(ctx, "c-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(vehicles) != 1 || vehicles[0].Model != "F-150" {
		t.Errorf("vehicles = %+v", vehicles)
	}
}

func TestWorkOrderFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateTenant(ctx, &Tenant{ID: "t-1", Name: "One", Code: "ONE", Type: "shop", IsActive: true}); err != nil {
		t.Fatal(err)
	}
	if err := store.CreateCustomer(ctx, &Customer{ID: "c-1", TenantID: "t-1", CustomerType: "retail"}); err != nil {
		t.Fatal(err)
	}
	if err := store.CreateVehicle(ctx, &Vehicle{ID: "v-1", CustomerID: "c-1"}); err != nil {
		t.Fatal(err)
	}

	for i, status := range []string{"open", "open", "completed"} {
		w := &WorkOrder{
			ID: "w-" + string(rune('a'+i)), TenantID: "t-1", RONumber: "RO-" + string(rune('a'+i)),
			CustomerID: "c-1", VehicleID: "v-1", Status: status, Priority: "normal",
		}
		if err := store.CreateWorkOrder(ctx, w); err != nil {
			t.Fatal(err)
		}
	}

	open, err := store.ListWorkOrders(ctx, WorkOrderFilter{TenantIDs: []string{"t-1"}, Status: "open"})
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 2 {
		t.Errorf("got %d open work orders, want 2", len(open))
	}

	all, err := store.ListWorkOrders(ctx, WorkOrderFilter{TenantIDs: []string{"t-1"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("got %d work orders, want 3", len(all))
	}

	// Tenant scope is mandatory: an empty scope yields nothing.
	none, err := store.ListWorkOrders(ctx, WorkOrderFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("empty tenant scope returned %d work orders, want 0", len(none))
	}
}

func TestBackup_VacuumInto(t *testing.T) {
	store := newTestStore(t)
	mustSeed(t, store, true)

	dest := filepath.Join(t.TempDir(), "snapshot.db")
	if err := store.Backup(context.Background(), dest); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() == 0 {
		t.Fatal("backup file is empty")
	}

	// The snapshot is a complete, openable database.
	snap, err := NewSQLiteStore(dest)
	if err != nil {
		t.Fatal(err)
	}
	defer snap.Close()
	roles, err := snap.ListRoles(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(roles) != 4 {
		t.Errorf("snapshot has %d roles, want 4", len(roles))
	}
}

func TestTimestampsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tn := &Tenant{ID: "t-1", Name: "One", Code: "ONE", Type: "shop", IsActive: true, CreatedAt: created}
	if err := store.CreateTenant(ctx, tn); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetTenant(ctx, "t-1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, created)
	}
}
