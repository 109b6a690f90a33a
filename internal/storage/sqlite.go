package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite in WAL mode. It is the default
// backend for development and small self-hosted deployments.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at path with WAL mode enabled.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Single connection avoids "database is locked" with this driver.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS roles (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    permissions TEXT NOT NULL DEFAULT '[]',
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    full_name TEXT NOT NULL DEFAULT '',
    role_id TEXT NOT NULL REFERENCES roles(id),
    tenant_access TEXT NOT NULL DEFAULT '[]',
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tenants (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    code TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL DEFAULT 'shop',
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS customers (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL REFERENCES tenants(id),
    first_name TEXT NOT NULL DEFAULT '',
    last_name TEXT NOT NULL DEFAULT '',
    company_name TEXT NOT NULL DEFAULT '',
    email TEXT NOT NULL DEFAULT '',
    phone TEXT NOT NULL DEFAULT '',
    customer_type TEXT NOT NULL DEFAULT 'retail',
    notes TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS vehicles (
    id TEXT PRIMARY KEY,
    customer_id TEXT NOT NULL REFERENCES customers(id),
    vin TEXT NOT NULL DEFAULT '',
    make TEXT NOT NULL DEFAULT '',
    model TEXT NOT NULL DEFAULT '',
    year INTEGER NOT NULL DEFAULT 0,
    license_plate TEXT NOT NULL DEFAULT '',
    color TEXT NOT NULL DEFAULT '',
    mileage INTEGER NOT NULL DEFAULT 0,
    notes TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS work_orders (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL REFERENCES tenants(id),
    ro_number TEXT NOT NULL UNIQUE,
    customer_id TEXT NOT NULL REFERENCES customers(id),
    vehicle_id TEXT NOT NULL REFERENCES vehicles(id),
    status TEXT NOT NULL DEFAULT 'open',
    priority TEXT NOT NULL DEFAULT 'normal',
    description TEXT NOT NULL DEFAULT '',
    total_labor_cost REAL NOT NULL DEFAULT 0,
    total_parts_cost REAL NOT NULL DEFAULT 0,
    total_cost REAL NOT NULL DEFAULT 0,
    created_by TEXT NOT NULL DEFAULT '',
    assigned_technician TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_customers_tenant ON customers(tenant_id);
CREATE INDEX IF NOT EXISTS idx_vehicles_customer ON vehicles(customer_id);
CREATE INDEX IF NOT EXISTS idx_work_orders_tenant ON work_orders(tenant_id, status);
CREATE INDEX IF NOT EXISTS idx_tenants_active ON tenants(is_active, name);
`

// encodeStrings marshals a string slice to its JSON column representation.
func encodeStrings(ss []string) string {
	if ss == nil {
		ss = []string{}
	}
	b, _ := json.Marshal(ss)
	return string(b)
}

// decodeStrings unmarshals a JSON array column. A bare string value (a shape
// seen in legacy rows) is coerced to a one-element slice rather than failing.
func decodeStrings(raw string) []string {
	if raw == "" {
		return []string{}
	}
	var ss []string
	if err := json.Unmarshal([]byte(raw), &ss); err == nil {
		if ss == nil {
			return []string{}
		}
		return ss
	}
	var single string
	if err := json.Unmarshal([]byte(raw), &single); err == nil && single != "" {
		return []string{single}
	}
	return []string{}
}

// --- Roles ---

func (s *SQLiteStore) CreateRole(ctx context.Context, r *Role) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO roles (id, name, permissions, created_at) VALUES (?, ?, ?, ?)`,
		r.ID, r.Name, encodeStrings(r.Permissions), r.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("create role %s: %w", r.Name, err)
	}
	return nil
}

func (s *SQLiteStore) GetRoleByName(ctx context.Context, name string) (*Role, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, permissions, created_at FROM roles WHERE name = ?`, name)
	return scanRole(row)
}

func (s *SQLiteStore) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, permissions, created_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var r Role
		var perms string
		var created int64
		if err := rows.Scan(&r.ID, &r.Name, &perms, &created); err != nil {
			return nil, err
		}
		r.Permissions = decodeStrings(perms)
		r.CreatedAt = time.Unix(created, 0)
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRole(row rowScanner) (*Role, error) {
	var r Role
	var perms string
	var created int64
	err := row.Scan(&r.ID, &r.Name, &perms, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.Permissions = decodeStrings(perms)
	r.CreatedAt = time.Unix(created, 0)
	return &r, nil
}

// --- Users ---

func (s *SQLiteStore) CreateUser(ctx context.Context, u *User) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, full_name, role_id, tenant_access, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.FullName, u.RoleID, encodeStrings(u.TenantAccess),
		boolToInt(u.IsActive), u.CreatedAt.Unix(), u.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("create user %s: %w", u.Email, err)
	}
	return nil
}

func (s *SQLiteStore) UpdateUser(ctx context.Context, u *User) error {
	u.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET email = ?, full_name = ?, role_id = ?, tenant_access = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		u.Email, u.FullName, u.RoleID, encodeStrings(u.TenantAccess),
		boolToInt(u.IsActive), u.UpdatedAt.Unix(), u.ID)
	if err != nil {
		return fmt.Errorf("update user %s: %w", u.ID, err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) GetUserWithRole(ctx context.Context, id string) (*User, *Role, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT u.id, u.email, u.full_name, u.role_id, u.tenant_access, u.is_active, u.created_at, u.updated_at,
		        r.id, r.name, r.permissions, r.created_at
		 FROM users u
		 JOIN roles r ON r.id = u.role_id
		 WHERE u.id = ?`, id)

	var u User
	var r Role
	var access, perms string
	var uCreated, uUpdated, rCreated int64
	var active int
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.RoleID, &access, &active, &uCreated, &uUpdated,
		&r.ID, &r.Name, &perms, &rCreated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	u.TenantAccess = decodeStrings(access)
	u.IsActive = active != 0
	u.CreatedAt = time.Unix(uCreated, 0)
	u.UpdatedAt = time.Unix(uUpdated, 0)
	r.Permissions = decodeStrings(perms)
	r.CreatedAt = time.Unix(rCreated, 0)
	return &u, &r, nil
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, full_name, role_id, tenant_access, is_active, created_at, updated_at
		 FROM users ORDER BY email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		var access string
		var active int
		var created, updated int64
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.RoleID, &access, &active, &created, &updated); err != nil {
			return nil, err
		}
		u.TenantAccess = decodeStrings(access)
		u.IsActive = active != 0
		u.CreatedAt = time.Unix(created, 0)
		u.UpdatedAt = time.Unix(updated, 0)
		users = append(users, u)
	}
	return users, rows.Err()
}

// --- Tenants ---

func (s *SQLiteStore) CreateTenant(ctx context.Context, t *Tenant) error {
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tenants (id, name, code, type, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Code, t.Type, boolToInt(t.IsActive), t.CreatedAt.Unix(), t.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("create tenant %s: %w", t.Code, err)
	}
	return nil
}

func (s *SQLiteStore) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, code, type, is_active, created_at, updated_at FROM tenants WHERE id = ?`, id)
	return scanTenant(row)
}

func scanTenant(row rowScanner) (*Tenant, error) {
	var t Tenant
	var active int
	var created, updated int64
	err := row.Scan(&t.ID, &t.Name, &t.Code, &t.Type, &active, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.IsActive = active != 0
	t.CreatedAt = time.Unix(created, 0)
	t.UpdatedAt = time.Unix(updated, 0)
	return &t, nil
}

func (s *SQLiteStore) ListTenants(ctx context.Context) ([]Tenant, error) {
	return s.listTenants(ctx, false)
}

func (s *SQLiteStore) ListActiveTenants(ctx context.Context) ([]Tenant, error) {
	return s.listTenants(ctx, true)
}

func (s *SQLiteStore) listTenants(ctx context.Context, activeOnly bool) ([]Tenant, error) {
	q := `SELECT id, name, code, type, is_active, created_at, updated_at FROM tenants`
	if activeOnly {
		q += ` WHERE is_active = 1`
	}
	q += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []Tenant
	for rows.Next() {
		var t Tenant
		var active int
		var created, updated int64
		if err := rows.Scan(&t.ID, &t.Name, &t.Code, &t.Type, &active, &created, &updated); err != nil {
			return nil, err
		}
		t.IsActive = active != 0
		t.CreatedAt = time.Unix(created, 0)
		t.UpdatedAt = time.Unix(updated, 0)
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// --- Customers ---

func (s *SQLiteStore) CreateCustomer(ctx context.Context, c *Customer) error {
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO customers (id, tenant_id, first_name, last_name, company_name, email, phone, customer_type, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.TenantID, c.FirstName, c.LastName, c.CompanyName, c.Email, c.Phone,
		c.CustomerType, c.Notes, c.CreatedAt.Unix(), c.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("create customer: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, first_name, last_name, company_name, email, phone, customer_type, notes, created_at, updated_at
		 FROM customers WHERE id = ?`, id)
	return scanCustomer(row)
}

func scanCustomer(row rowScanner) (*Customer, error) {
	var c Customer
	var created, updated int64
	err := row.Scan(&c.ID, &c.TenantID, &c.FirstName, &c.LastName, &c.CompanyName,
		&c.Email, &c.Phone, &c.CustomerType, &c.Notes, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.CreatedAt = time.Unix(created, 0)
	c.UpdatedAt = time.Unix(updated, 0)
	return &c, nil
}

func (s *SQLiteStore) ListCustomers(ctx context.Context, tenantIDs []string) ([]Customer, error) {
	if len(tenantIDs) == 0 {
		return nil, nil
	}
	q := `SELECT id, tenant_id, first_name, last_name, company_name, email, phone, customer_type, notes, created_at, updated_at
	      FROM customers WHERE tenant_id IN (` + placeholders(len(tenantIDs)) + `) ORDER BY last_name, first_name`

	rows, err := s.db.QueryContext(ctx, q, stringArgs(tenantIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		var c Customer
		var created, updated int64
		if err := rows.Scan(&c.ID, &c.TenantID, &c.FirstName, &c.LastName, &c.CompanyName,
			&c.Email, &c.Phone, &c.CustomerType, &c.Notes, &created, &updated); err != nil {
			return nil, err
		}
		c.CreatedAt = time.Unix(created, 0)
		c.UpdatedAt = time.Unix(updated, 0)
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (s *SQLiteStore) UpdateCustomer(ctx context.Context, c *Customer) error {
	c.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE customers SET first_name = ?, last_name = ?, company_name = ?, email = ?, phone = ?, customer_type = ?, notes = ?, updated_at = ?
		 WHERE id = ?`,
		c.FirstName, c.LastName, c.CompanyName, c.Email, c.Phone, c.CustomerType, c.Notes, c.UpdatedAt.Unix(), c.ID)
	if err != nil {
		return fmt.Errorf("update customer %s: %w", c.ID, err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) DeleteCustomer(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete customer %s: %w", id, err)
	}
	return requireRow(res)
}

// --- Vehicles ---

func (s *SQLiteStore) CreateVehicle(ctx context.Context, v *Vehicle) error {
	now := time.Now()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	v.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vehicles (id, customer_id, vin, make, model, year, license_plate, color, mileage, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.CustomerID, v.VIN, v.Make, v.Model, v.Year, v.LicensePlate, v.Color,
		v.Mileage, v.Notes, v.CreatedAt.Unix(), v.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("create vehicle: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetVehicle(ctx context.Context, id string) (*Vehicle, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, customer_id, vin, make, model, year, license_plate, color, mileage, notes, created_at, updated_at
		 FROM vehicles WHERE id = ?`, id)
	return scanVehicle(row)
}

func scanVehicle(row rowScanner) (*Vehicle, error) {
	var v Vehicle
	var created, updated int64
	err := row.Scan(&v.ID, &v.CustomerID, &v.VIN, &v.Make, &v.Model, &v.Year,
		&v.LicensePlate, &v.Color, &v.Mileage, &v.Notes, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	v.CreatedAt = time.Unix(created, 0)
	v.UpdatedAt = time.Unix(updated, 0)
	return &v, nil
}

func (s *SQLiteStore) ListVehiclesByCustomer(ctx context.Context, customerID string) ([]Vehicle, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, customer_id, vin, make, model, year, license_plate, color, mileage, notes, created_at, updated_at
		 FROM vehicles WHERE customer_id = ? ORDER BY created_at DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []Vehicle
	for rows.Next() {
		var v Vehicle
		var created, updated int64
		if err := rows.Scan(&v.ID, &v.CustomerID, &v.VIN, &v.Make, &v.Model, &v.Year,
			&v.LicensePlate, &v.Color, &v.Mileage, &v.Notes, &created, &updated); err != nil {
			return nil, err
		}
		v.CreatedAt = time.Unix(created, 0)
		v.UpdatedAt = time.Unix(updated, 0)
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

func (s *SQLiteStore) UpdateVehicle(ctx context.Context, v *Vehicle) error {
	v.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE vehicles SET vin = ?, make = ?, model = ?, year = ?, license_plate = ?, color = ?, mileage = ?, notes = ?, updated_at = ?
		 WHERE id = ?`,
		v.VIN, v.Make, v.Model, v.Year, v.LicensePlate, v.Color, v.Mileage, v.Notes, v.UpdatedAt.Unix(), v.ID)
	if err != nil {
		return fmt.Errorf("update vehicle %s: %w", v.ID, err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) DeleteVehicle(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM vehicles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete vehicle %s: %w", id, err)
	}
	return requireRow(res)
}

// --- Work orders ---

func (s *SQLiteStore) CreateWorkOrder(ctx context.Context, w *WorkOrder) error {
	now := time.Now()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	w.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO work_orders (id, tenant_id, ro_number, customer_id, vehicle_id, status, priority, description,
		                          total_labor_cost, total_parts_cost, total_cost, created_by, assigned_technician, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.TenantID, w.RONumber, w.CustomerID, w.VehicleID, w.Status, w.Priority, w.Description,
		w.TotalLaborCost, w.TotalPartsCost, w.TotalCost, w.CreatedBy, w.AssignedTechnician,
		w.CreatedAt.Unix(), w.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("create work order %s: %w", w.RONumber, err)
	}
	return nil
}

func (s *SQLiteStore) GetWorkOrder(ctx context.Context, id string) (*WorkOrder, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, ro_number, customer_id, vehicle_id, status, priority, description,
		        total_labor_cost, total_parts_cost, total_cost, created_by, assigned_technician, created_at, updated_at
		 FROM work_orders WHERE id = ?`, id)
	return scanWorkOrder(row)
}

func scanWorkOrder(row rowScanner) (*WorkOrder, error) {
	var w WorkOrder
	var created, updated int64
	err := row.Scan(&w.ID, &w.TenantID, &w.RONumber, &w.CustomerID, &w.VehicleID, &w.Status,
		&w.Priority, &w.Description, &w.TotalLaborCost, &w.TotalPartsCost, &w.TotalCost,
		&w.CreatedBy, &w.AssignedTechnician, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	w.CreatedAt = time.Unix(created, 0)
	w.UpdatedAt = time.Unix(updated, 0)
	return &w, nil
}

func (s *SQLiteStore) ListWorkOrders(ctx context.Context, filter WorkOrderFilter) ([]WorkOrder, error) {
	if len(filter.TenantIDs) == 0 {
		return nil, nil
	}

	q := `SELECT id, tenant_id, ro_number, customer_id, vehicle_id, status, priority, description,
	             total_labor_cost, total_parts_cost, total_cost, created_by, assigned_technician, created_at, updated_at
	      FROM work_orders WHERE tenant_id IN (` + placeholders(len(filter.TenantIDs)) + `)`
	args := stringArgs(filter.TenantIDs)
	if filter.Status != "" {
		q += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.Priority != "" {
		q += ` AND priority = ?`
		args = append(args, filter.Priority)
	}
	q += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []WorkOrder
	for rows.Next() {
		var w WorkOrder
		var created, updated int64
		if err := rows.Scan(&w.ID, &w.TenantID, &w.RONumber, &w.CustomerID, &w.VehicleID, &w.Status,
			&w.Priority, &w.Description, &w.TotalLaborCost, &w.TotalPartsCost, &w.TotalCost,
			&w.CreatedBy, &w.AssignedTechnician, &created, &updated); err != nil {
			return nil, err
		}
		w.CreatedAt = time.Unix(created, 0)
		w.UpdatedAt = time.Unix(updated, 0)
		orders = append(orders, w)
	}
	return orders, rows.Err()
}

func (s *SQLiteStore) UpdateWorkOrder(ctx context.Context, w *WorkOrder) error {
	w.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE work_orders SET status = ?, priority = ?, description = ?, total_labor_cost = ?, total_parts_cost = ?,
		        total_cost = ?, assigned_technician = ?, updated_at = ?
		 WHERE id = ?`,
		w.Status, w.Priority, w.Description, w.TotalLaborCost, w.TotalPartsCost,
		w.TotalCost, w.AssignedTechnician, w.UpdatedAt.Unix(), w.ID)
	if err != nil {
		return fmt.Errorf("update work order %s: %w", w.ID, err)
	}
	return requireRow(res)
}

// Backup creates a consistent snapshot at destPath using VACUUM INTO.
func (s *SQLiteStore) Backup(ctx context.Context, destPath string) error {
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, destPath); err != nil {
		return fmt.Errorf("vacuum into %s: %w", destPath, err)
	}
	return nil
}

// --- helpers ---

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(ss []string) []any {
	args := make([]any, len(ss))
	for i, s := range ss {
		args[i] = s
	}
	return args
}
