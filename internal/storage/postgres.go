package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements Store against the hosted relational data service.
// The connection uses a privileged service-level credential: gating decisions
// must read the authoritative user/role mapping regardless of the per-row
// policies the service enforces on direct client reads.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection pool to the given database URL and
// verifies connectivity.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, pgSchema)
	return err
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS roles (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    permissions JSONB NOT NULL DEFAULT '[]',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    full_name TEXT NOT NULL DEFAULT '',
    role_id TEXT NOT NULL REFERENCES roles(id),
    tenant_access JSONB NOT NULL DEFAULT '[]',
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tenants (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    code TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL DEFAULT 'shop',
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
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
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
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
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
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
    total_labor_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
    total_parts_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
    total_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_by TEXT NOT NULL DEFAULT '',
    assigned_technician TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_customers_tenant ON customers(tenant_id);
CREATE INDEX IF NOT EXISTS idx_vehicles_customer ON vehicles(customer_id);
CREATE INDEX IF NOT EXISTS idx_work_orders_tenant ON work_orders(tenant_id, status);
CREATE INDEX IF NOT EXISTS idx_tenants_active ON tenants(is_active, name);
`

// pgPlaceholders renders $1..$n starting at "from".
func pgPlaceholders(from, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "$" + strconv.Itoa(from+i)
	}
	return strings.Join(parts, ", ")
}

// --- Roles ---

func (s *PostgresStore) CreateRole(ctx context.Context, r *Role) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO roles (id, name, permissions, created_at) VALUES ($1, $2, $3, $4)`,
		r.ID, r.Name, encodeStrings(r.Permissions), r.CreatedAt)
	if err != nil {
		return fmt.Errorf("create role %s: %w", r.Name, err)
	}
	return nil
}

func (s *PostgresStore) GetRoleByName(ctx context.Context, name string) (*Role, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, permissions::text, created_at FROM roles WHERE name = $1`, name)

	var r Role
	var perms string
	err := row.Scan(&r.ID, &r.Name, &perms, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.Permissions = decodeStrings(perms)
	return &r, nil
}

func (s *PostgresStore) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, permissions::text, created_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var r Role
		var perms string
		if err := rows.Scan(&r.ID, &r.Name, &perms, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Permissions = decodeStrings(perms)
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

// --- Users ---

func (s *PostgresStore) CreateUser(ctx context.Context, u *User) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, full_name, role_id, tenant_access, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Email, u.FullName, u.RoleID, encodeStrings(u.TenantAccess), u.IsActive, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create user %s: %w", u.Email, err)
	}
	return nil
}

func (s *PostgresStore) UpdateUser(ctx context.Context, u *User) error {
	u.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET email = $1, full_name = $2, role_id = $3, tenant_access = $4, is_active = $5, updated_at = $6
		 WHERE id = $7`,
		u.Email, u.FullName, u.RoleID, encodeStrings(u.TenantAccess), u.IsActive, u.UpdatedAt, u.ID)
	if err != nil {
		return fmt.Errorf("update user %s: %w", u.ID, err)
	}
	return requireRow(res)
}

func (s *PostgresStore) GetUserWithRole(ctx context.Context, id string) (*User, *Role, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT u.id, u.email, u.full_name, u.role_id, u.tenant_access::text, u.is_active, u.created_at, u.updated_at,
		        r.id, r.name, r.permissions::text, r.created_at
		 FROM users u
		 JOIN roles r ON r.id = u.role_id
		 WHERE u.id = $1`, id)

	var u User
	var r Role
	var access, perms string
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.RoleID, &access, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
		&r.ID, &r.Name, &perms, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	u.TenantAccess = decodeStrings(access)
	r.Permissions = decodeStrings(perms)
	return &u, &r, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, full_name, role_id, tenant_access::text, is_active, created_at, updated_at
		 FROM users ORDER BY email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		var access string
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.RoleID, &access, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		u.TenantAccess = decodeStrings(access)
		users = append(users, u)
	}
	return users, rows.Err()
}

// --- Tenants ---

func (s *PostgresStore) CreateTenant(ctx context.Context, t *Tenant) error {
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tenants (id, name, code, type, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.Name, t.Code, t.Type, t.IsActive, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create tenant %s: %w", t.Code, err)
	}
	return nil
}

func (s *PostgresStore) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, code, type, is_active, created_at, updated_at FROM tenants WHERE id = $1`, id)

	var t Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Code, &t.Type, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) ListTenants(ctx context.Context) ([]Tenant, error) {
	return s.listTenants(ctx, false)
}

func (s *PostgresStore) ListActiveTenants(ctx context.Context) ([]Tenant, error) {
	return s.listTenants(ctx, true)
}

func (s *PostgresStore) listTenants(ctx context.Context, activeOnly bool) ([]Tenant, error) {
	q := `SELECT id, name, code, type, is_active, created_at, updated_at FROM tenants`
	if activeOnly {
		q += ` WHERE is_active`
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
		if err := rows.Scan(&t.ID, &t.Name, &t.Code, &t.Type, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// --- Customers ---

func (s *PostgresStore) CreateCustomer(ctx context.Context, c *Customer) error {
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO customers (id, tenant_id, first_name, last_name, company_name, email, phone, customer_type, notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.TenantID, c.FirstName, c.LastName, c.CompanyName, c.Email, c.Phone,
		c.CustomerType, c.Notes, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create customer: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, first_name, last_name, company_name, email, phone, customer_type, notes, created_at, updated_at
		 FROM customers WHERE id = $1`, id)

	var c Customer
	err := row.Scan(&c.ID, &c.TenantID, &c.FirstName, &c.LastName, &c.CompanyName,
		&c.Email, &c.Phone, &c.CustomerType, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) ListCustomers(ctx context.Context, tenantIDs []string) ([]Customer, error) {
	if len(tenantIDs) == 0 {
		return nil, nil
	}
	q := `SELECT id, tenant_id, first_name, last_name, company_name, email, phone, customer_type, notes, created_at, updated_at
	      FROM customers WHERE tenant_id IN (` + pgPlaceholders(1, len(tenantIDs)) + `) ORDER BY last_name, first_name`

	rows, err := s.db.QueryContext(ctx, q, stringArgs(tenantIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.TenantID, &c.FirstName, &c.LastName, &c.CompanyName,
			&c.Email, &c.Phone, &c.CustomerType, &c.Notes, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (s *PostgresStore) UpdateCustomer(ctx context.Context, c *Customer) error {
	c.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE customers SET first_name = $1, last_name = $2, company_name = $3, email = $4, phone = $5,
		        customer_type = $6, notes = $7, updated_at = $8
		 WHERE id = $9`,
		c.FirstName, c.LastName, c.CompanyName, c.Email, c.Phone, c.CustomerType, c.Notes, c.UpdatedAt, c.ID)
	if err != nil {
		return fmt.Errorf("update customer %s: %w", c.ID, err)
	}
	return requireRow(res)
}

func (s *PostgresStore) DeleteCustomer(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete customer %s: %w", id, err)
	}
	return requireRow(res)
}

// --- Vehicles ---

func (s *PostgresStore) CreateVehicle(ctx context.Context, v *Vehicle) error {
	now := time.Now()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	v.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vehicles (id, customer_id, vin, make, model, year, license_plate, color, mileage, notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		v.ID, v.CustomerID, v.VIN, v.Make, v.Model, v.Year, v.LicensePlate, v.Color,
		v.Mileage, v.Notes, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create vehicle: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetVehicle(ctx context.Context, id string) (*Vehicle, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, customer_id, vin, make, model, year, license_plate, color, mileage, notes, created_at, updated_at
		 FROM vehicles WHERE id = $1`, id)

	var v Vehicle
	err := row.Scan(&v.ID, &v.CustomerID, &v.VIN, &v.Make, &v.Model, &v.Year,
		&v.LicensePlate, &v.Color, &v.Mileage, &v.Notes, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *PostgresStore) ListVehiclesByCustomer(ctx context.Context, customerID string) ([]Vehicle, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, customer_id, vin, make, model, year, license_plate, color, mileage, notes, created_at, updated_at
		 FROM vehicles WHERE customer_id = $1 ORDER BY created_at DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []Vehicle
	for rows.Next() {
		var v Vehicle
		if err := rows.Scan(&v.ID, &v.CustomerID, &v.VIN, &v.Make, &v.Model, &v.Year,
			&v.LicensePlate, &v.Color, &v.Mileage, &v.Notes, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

func (s *PostgresStore) UpdateVehicle(ctx context.Context, v *Vehicle) error {
	v.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE vehicles SET vin = $1, make = $2, model = $3, year = $4, license_plate = $5, color = $6,
		        mileage = $7, notes = $8, updated_at = $9
		 WHERE id = $10`,
		v.VIN, v.Make, v.Model, v.Year, v.LicensePlate, v.Color, v.Mileage, v.Notes, v.UpdatedAt, v.ID)
	if err != nil {
		return fmt.Errorf("update vehicle %s: %w", v.ID, err)
	}
	return requireRow(res)
}

func (s *PostgresStore) DeleteVehicle(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM vehicles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete vehicle %s: %w", id, err)
	}
	return requireRow(res)
}

// --- Work orders ---

func (s *PostgresStore) CreateWorkOrder(ctx context.Context, w *WorkOrder) error {
	now := time.Now()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	w.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO work_orders (id, tenant_id, ro_number, customer_id, vehicle_id, status, priority, description,
		                          total_labor_cost, total_parts_cost, total_cost, created_by, assigned_technician, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		w.ID, w.TenantID, w.RONumber, w.CustomerID, w.VehicleID, w.Status, w.Priority, w.Description,
		w.TotalLaborCost, w.TotalPartsCost, w.TotalCost, w.CreatedBy, w.AssignedTechnician, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create work order %s: %w", w.RONumber, err)
	}
	return nil
}

func (s *PostgresStore) GetWorkOrder(ctx context.Context, id string) (*WorkOrder, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, ro_number, customer_id, vehicle_id, status, priority, description,
		        total_labor_cost, total_parts_cost, total_cost, created_by, assigned_technician, created_at, updated_at
		 FROM work_orders WHERE id = $1`, id)

	var w WorkOrder
	err := row.Scan(&w.ID, &w.TenantID, &w.RONumber, &w.CustomerID, &w.VehicleID, &w.Status,
		&w.Priority, &w.Description, &w.TotalLaborCost, &w.TotalPartsCost, &w.TotalCost,
		&w.CreatedBy, &w.AssignedTechnician, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *PostgresStore) ListWorkOrders(ctx context.Context, filter WorkOrderFilter) ([]WorkOrder, error) {
	if len(filter.TenantIDs) == 0 {
		return nil, nil
	}

	q := `SELECT id, tenant_id, ro_number, customer_id, vehicle_id, status, priority, description,
	             total_labor_cost, total_parts_cost, total_cost, created_by, assigned_technician, created_at, updated_at
	      FROM work_orders WHERE tenant_id IN (` + pgPlaceholders(1, len(filter.TenantIDs)) + `)`
	args := stringArgs(filter.TenantIDs)
	n := len(args)
	if filter.Status != "" {
		n++
		q += ` AND status = $` + strconv.Itoa(n)
		args = append(args, filter.Status)
	}
	if filter.Priority != "" {
		n++
		q += ` AND priority = $` + strconv.Itoa(n)
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
		if err := rows.Scan(&w.ID, &w.TenantID, &w.RONumber, &w.CustomerID, &w.VehicleID, &w.Status,
			&w.Priority, &w.Description, &w.TotalLaborCost, &w.TotalPartsCost, &w.TotalCost,
			&w.CreatedBy, &w.AssignedTechnician, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, w)
	}
	return orders, rows.Err()
}

func (s *PostgresStore) UpdateWorkOrder(ctx context.Context, w *WorkOrder) error {
	w.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE work_orders SET status = $1, priority = $2, description = $3, total_labor_cost = $4,
		        total_parts_cost = $5, total_cost = $6, assigned_technician = $7, updated_at = $8
		 WHERE id = $9`,
		w.Status, w.Priority, w.Description, w.TotalLaborCost, w.TotalPartsCost,
		w.TotalCost, w.AssignedTechnician, w.UpdatedAt, w.ID)
	if err != nil {
		return fmt.Errorf("update work order %s: %w", w.ID, err)
	}
	return requireRow(res)
}

// Backup is owned by the hosted database service for Postgres deployments.
func (s *PostgresStore) Backup(ctx context.Context, destPath string) error {
	return ErrBackupUnsupported
}
