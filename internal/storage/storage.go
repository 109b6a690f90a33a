package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get* methods when no row matches.
var ErrNotFound = errors.New("not found")

// Role is a named permission bundle. The role set is static reference data:
// owner, manager, technician, front_desk. A permission list containing "all"
// is a wildcard matching every permission check.
type Role struct {
	ID          string
	Name        string
	Permissions []string
	CreatedAt   time.Time
}

// User is the application-level profile row keyed by the auth service's
// account id. Created by admin provisioning, never implicitly by the
// session flow.
type User struct {
	ID           string
	Email        string
	FullName     string
	RoleID       string
	TenantAccess []string // tenant ids, or the single sentinel "all"
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Tenant is a business location the application partitions data by
// (an "entity" in the shop's vocabulary).
type Tenant struct {
	ID        string
	Name      string
	Code      string
	Type      string // shop, parts, sales, inactive
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Customer belongs to a tenant.
type Customer struct {
	ID           string
	TenantID     string
	FirstName    string
	LastName     string
	CompanyName  string
	Email        string
	Phone        string
	CustomerType string // retail, fleet, wholesale
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Vehicle belongs to a customer.
type Vehicle struct {
	ID           string
	CustomerID   string
	VIN          string
	Make         string
	Model        string
	Year         int
	LicensePlate string
	Color        string
	Mileage      int
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// WorkOrder is a repair order for a vehicle at a tenant.
type WorkOrder struct {
	ID                 string
	TenantID           string
	RONumber           string
	CustomerID         string
	VehicleID          string
	Status             string // open, in_progress, completed, delivered
	Priority           string // low, normal, high, urgent
	Description        string
	TotalLaborCost     float64
	TotalPartsCost     float64
	TotalCost          float64
	CreatedBy          string
	AssignedTechnician string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// WorkOrderFilter narrows ListWorkOrders. Zero values mean "no filter"
// except TenantIDs, which is mandatory (callers always scope by the
// requester's tenant access).
type WorkOrderFilter struct {
	TenantIDs []string
	Status    string
	Priority  string
}

// Store is the relational data service interface. Implementations hold a
// privileged (service-level) credential: row-level policy for direct client
// reads is the hosted service's concern, not this process's.
type Store interface {
	// Lifecycle
	Close() error

	// Roles
	GetRoleByName(ctx context.Context, name string) (*Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	CreateRole(ctx context.Context, r *Role) error

	// Users. GetUserWithRole performs the single logical joined read the
	// profile resolver depends on: user row plus its role row by role_id,
	// equality-filtered on the account id.
	GetUserWithRole(ctx context.Context, id string) (*User, *Role, error)
	CreateUser(ctx context.Context, u *User) error
	UpdateUser(ctx context.Context, u *User) error
	ListUsers(ctx context.Context) ([]User, error)

	// Tenants. ListActiveTenants returns active tenants ordered by name;
	// the ordering carries no meaning but must be stable.
	CreateTenant(ctx context.Context, t *Tenant) error
	GetTenant(ctx context.Context, id string) (*Tenant, error)
	ListTenants(ctx context.Context) ([]Tenant, error)
	ListActiveTenants(ctx context.Context) ([]Tenant, error)

	// Customers
	CreateCustomer(ctx context.Context, c *Customer) error
	GetCustomer(ctx context.Context, id string) (*Customer, error)
	ListCustomers(ctx context.Context, tenantIDs []string) ([]Customer, error)
	UpdateCustomer(ctx context.Context, c *Customer) error
	DeleteCustomer(ctx context.Context, id string) error

	// Vehicles
	CreateVehicle(ctx context.Context, v *Vehicle) error
	GetVehicle(ctx context.Context, id string) (*Vehicle, error)
	ListVehiclesByCustomer(ctx context.Context, customerID string) ([]Vehicle, error)
	UpdateVehicle(ctx context.Context, v *Vehicle) error
	DeleteVehicle(ctx context.Context, id string) error

	// Work orders
	CreateWorkOrder(ctx context.Context, w *WorkOrder) error
	GetWorkOrder(ctx context.Context, id string) (*WorkOrder, error)
	ListWorkOrders(ctx context.Context, filter WorkOrderFilter) ([]WorkOrder, error)
	UpdateWorkOrder(ctx context.Context, w *WorkOrder) error

	// Backup creates a consistent snapshot of the database at destPath.
	// Backends managed by a hosted service may return ErrBackupUnsupported.
	Backup(ctx context.Context, destPath string) error
}

// ErrBackupUnsupported is returned by stores whose backing service owns
// backups (e.g. hosted Postgres).
var ErrBackupUnsupported = errors.New("backup not supported by this store")
