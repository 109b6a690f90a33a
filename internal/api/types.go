package api

import (
	"time"

	"github.com/locomotion-ai/locomotion/internal/profile"
	"github.com/locomotion-ai/locomotion/internal/storage"
)

// HealthCheckOutput is the response for the health endpoint.
type HealthCheckOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

// ProfileOutput is the success envelope for the profile endpoint:
// {"success": true, "profile": {...}}.
type ProfileOutput struct {
	Body struct {
		Success bool            `json:"success"`
		Profile profile.Profile `json:"profile"`
	}
}

// HomeRouteOutput tells a just-signed-in client where to land. Backed by the
// same role→route table the server-side gate enforces.
type HomeRouteOutput struct {
	Body struct {
		Route string `json:"route"`
	}
}

// --- Tenants ---

type TenantDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Type      string    `json:"type" enum:"shop,parts,sales,inactive"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func tenantDTO(t storage.Tenant) TenantDTO {
	return TenantDTO{
		ID:        t.ID,
		Name:      t.Name,
		Code:      t.Code,
		Type:      t.Type,
		IsActive:  t.IsActive,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

type ListTenantsOutput struct {
	Body struct {
		Tenants []TenantDTO `json:"tenants"`
	}
}

type CreateTenantInput struct {
	Body struct {
		Name string `json:"name" minLength:"1"`
		Code string `json:"code" minLength:"1"`
		Type string `json:"type,omitempty" enum:"shop,parts,sales,inactive"`
	}
}

type TenantOutput struct {
	Body TenantDTO
}

// --- Customers ---

type CustomerDTO struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	CompanyName  string    `json:"company_name,omitempty"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	CustomerType string    `json:"customer_type" enum:"retail,fleet,wholesale"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func customerDTO(c storage.Customer) CustomerDTO {
	return CustomerDTO{
		ID:           c.ID,
		TenantID:     c.TenantID,
		FirstName:    c.FirstName,
		LastName:     c.LastName,
		CompanyName:  c.CompanyName,
		Email:        c.Email,
		Phone:        c.Phone,
		CustomerType: c.CustomerType,
		Notes:        c.Notes,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

type ListCustomersOutput struct {
	Body struct {
		Customers []CustomerDTO `json:"customers"`
	}
}

type CustomerBody struct {
	TenantID     string `json:"tenant_id" minLength:"1"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	CompanyName  string `json:"company_name,omitempty"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	CustomerType string `json:"customer_type,omitempty" enum:"retail,fleet,wholesale"`
	Notes        string `json:"notes,omitempty"`
}

type CreateCustomerInput struct {
	Body CustomerBody
}

type UpdateCustomerInput struct {
	CustomerID string `path:"customerID"`
	Body       CustomerBody
}

type GetCustomerInput struct {
	CustomerID string `path:"customerID"`
}

type CustomerOutput struct {
	Body CustomerDTO
}

// --- Vehicles ---

type VehicleDTO struct {
	ID           string    `json:"id"`
	CustomerID   string    `json:"customer_id"`
	VIN          string    `json:"vin,omitempty"`
	Make         string    `json:"make,omitempty"`
	Model        string    `json:"model,omitempty"`
	Year         int       `json:"year,omitempty"`
	LicensePlate string    `json:"license_plate,omitempty"`
	Color        string    `json:"color,omitempty"`
	Mileage      int       `json:"mileage,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func vehicleDTO(v storage.Vehicle) VehicleDTO {
	return VehicleDTO{
		ID:           v.ID,
		CustomerID:   v.CustomerID,
		VIN:          v.VIN,
		Make:         v.Make,
		Model:        v.Model,
		Year:         v.Year,
		LicensePlate: v.LicensePlate,
		Color:        v.Color,
		Mileage:      v.Mileage,
		Notes:        v.Notes,
		CreatedAt:    v.CreatedAt,
		UpdatedAt:    v.UpdatedAt,
	}
}

type VehicleBody struct {
	CustomerID   string `json:"customer_id" minLength:"1"`
	VIN          string `json:"vin,omitempty"`
	Make         string `json:"make,omitempty"`
	Model        string `json:"model,omitempty"`
	Year         int    `json:"year,omitempty" minimum:"0"`
	LicensePlate string `json:"license_plate,omitempty"`
	Color        string `json:"color,omitempty"`
	Mileage      int    `json:"mileage,omitempty" minimum:"0"`
	Notes        string `json:"notes,omitempty"`
}

type CreateVehicleInput struct {
	Body VehicleBody
}

type UpdateVehicleInput struct {
	VehicleID string `path:"vehicleID"`
	Body      VehicleBody
}

type GetVehicleInput struct {
	VehicleID string `path:"vehicleID"`
}

type ListVehiclesInput struct {
	CustomerID string `query:"customer_id" required:"true"`
}

type ListVehiclesOutput struct {
	Body struct {
		Vehicles []VehicleDTO `json:"vehicles"`
	}
}

type VehicleOutput struct {
	Body VehicleDTO
}

// --- Work orders ---

type WorkOrderDTO struct {
	ID                 string    `json:"id"`
	TenantID           string    `json:"tenant_id"`
	RONumber           string    `json:"ro_number"`
	CustomerID         string    `json:"customer_id"`
	VehicleID          string    `json:"vehicle_id"`
	Status             string    `json:"status" enum:"open,in_progress,completed,delivered"`
	Priority           string    `json:"priority" enum:"low,normal,high,urgent"`
	Description        string    `json:"description,omitempty"`
	TotalLaborCost     float64   `json:"total_labor_cost"`
	TotalPartsCost     float64   `json:"total_parts_cost"`
	TotalCost          float64   `json:"total_cost"`
	CreatedBy          string    `json:"created_by"`
	AssignedTechnician string    `json:"assigned_technician,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func workOrderDTO(w storage.WorkOrder) WorkOrderDTO {
	return WorkOrderDTO{
		ID:                 w.ID,
		TenantID:           w.TenantID,
		RONumber:           w.RONumber,
		CustomerID:         w.CustomerID,
		VehicleID:          w.VehicleID,
		Status:             w.Status,
		Priority:           w.Priority,
		Description:        w.Description,
		TotalLaborCost:     w.TotalLaborCost,
		TotalPartsCost:     w.TotalPartsCost,
		TotalCost:          w.TotalCost,
		CreatedBy:          w.CreatedBy,
		AssignedTechnician: w.AssignedTechnician,
		CreatedAt:          w.CreatedAt,
		UpdatedAt:          w.UpdatedAt,
	}
}

type ListWorkOrdersInput struct {
	TenantID string `query:"tenant_id"`
	Status   string `query:"status" enum:"open,in_progress,completed,delivered,"`
	Priority string `query:"priority" enum:"low,normal,high,urgent,"`
}

type ListWorkOrdersOutput struct {
	Body struct {
		WorkOrders []WorkOrderDTO `json:"work_orders"`
	}
}

type CreateWorkOrderInput struct {
	Body struct {
		TenantID           string `json:"tenant_id" minLength:"1"`
		CustomerID         string `json:"customer_id" minLength:"1"`
		VehicleID          string `json:"vehicle_id" minLength:"1"`
		Description        string `json:"description,omitempty"`
		Priority           string `json:"priority,omitempty" enum:"low,normal,high,urgent"`
		AssignedTechnician string `json:"assigned_technician,omitempty"`
	}
}

// UpdateWorkOrderInput is a partial patch. Pointer fields distinguish
// "absent" from zero so costs can be reset and a technician unassigned.
type UpdateWorkOrderInput struct {
	WorkOrderID string `path:"workOrderID"`
	Body        struct {
		Status             *string  `json:"status,omitempty" enum:"open,in_progress,completed,delivered"`
		Priority           *string  `json:"priority,omitempty" enum:"low,normal,high,urgent"`
		Description        *string  `json:"description,omitempty"`
		TotalLaborCost     *float64 `json:"total_labor_cost,omitempty" minimum:"0"`
		TotalPartsCost     *float64 `json:"total_parts_cost,omitempty" minimum:"0"`
		AssignedTechnician *string  `json:"assigned_technician,omitempty"`
	}
}

type GetWorkOrderInput struct {
	WorkOrderID string `path:"workOrderID"`
}

type WorkOrderOutput struct {
	Body WorkOrderDTO
}

// --- Admin: user provisioning ---

type UserDTO struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name,omitempty"`
	Role         string    `json:"role"`
	TenantAccess []string  `json:"tenant_access"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ListUsersOutput struct {
	Body struct {
		Users []UserDTO `json:"users"`
	}
}

type CreateUserInput struct {
	Body struct {
		// ID is the auth service's account id for this user; profile rows
		// share their primary key with the account identity.
		ID           string   `json:"id" minLength:"1"`
		Email        string   `json:"email" format:"email"`
		FullName     string   `json:"full_name,omitempty"`
		Role         string   `json:"role" enum:"owner,manager,technician,front_desk"`
		TenantAccess []string `json:"tenant_access,omitempty"`
	}
}

type UpdateUserInput struct {
	UserID string `path:"userID"`
	Body   struct {
		FullName     *string   `json:"full_name,omitempty"`
		Role         *string   `json:"role,omitempty" enum:"owner,manager,technician,front_desk"`
		TenantAccess *[]string `json:"tenant_access,omitempty"`
		IsActive     *bool     `json:"is_active,omitempty"`
	}
}

type UserOutput struct {
	Body UserDTO
}
