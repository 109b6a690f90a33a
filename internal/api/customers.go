package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/locomotion-ai/locomotion/internal/profile"
	"github.com/locomotion-ai/locomotion/internal/storage"
)

// getScopedCustomer fetches a customer and rejects callers whose tenant
// access does not cover the row's tenant.
func (s *Server) getScopedCustomer(ctx context.Context, p *profile.Profile, id string) (*storage.Customer, error) {
	c, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, huma.Error404NotFound("customer not found")
		}
		return nil, internalError("get customer", err)
	}
	if err := requireTenantAccess(p, c.TenantID); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Server) registerCustomers(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listCustomers",
		Method:      http.MethodGet,
		Path:        "/api/customers",
		Tags:        []string{"Customers"},
	}, func(ctx context.Context, input *struct {
		TenantID string `query:"tenant_id"`
	}) (*ListCustomersOutput, error) {
		p := profile.FromContext(ctx)
		scope, err := tenantScope(p, input.TenantID)
		if err != nil {
			return nil, err
		}

		customers, err := s.store.ListCustomers(ctx, scope)
		if err != nil {
			return nil, internalError("list customers", err)
		}

		out := &ListCustomersOutput{}
		out.Body.Customers = make([]CustomerDTO, 0, len(customers))
		for _, c := range customers {
			out.Body.Customers = append(out.Body.Customers, customerDTO(c))
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "getCustomer",
		Method:      http.MethodGet,
		Path:        "/api/customers/{customerID}",
		Tags:        []string{"Customers"},
	}, func(ctx context.Context, input *GetCustomerInput) (*CustomerOutput, error) {
		p := profile.FromContext(ctx)
		c, err := s.getScopedCustomer(ctx, p, input.CustomerID)
		if err != nil {
			return nil, err
		}
		return &CustomerOutput{Body: customerDTO(*c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "createCustomer",
		Method:        http.MethodPost,
		Path:          "/api/customers",
		DefaultStatus: http.StatusCreated,
		Tags:          []string{"Customers"},
	}, func(ctx context.Context, input *CreateCustomerInput) (*CustomerOutput, error) {
		p := profile.FromContext(ctx)
		if err := requireTenantAccess(p, input.Body.TenantID); err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		c := &storage.Customer{
			ID:           uuid.NewString(),
			TenantID:     input.Body.TenantID,
			FirstName:    input.Body.FirstName,
			LastName:     input.Body.LastName,
			CompanyName:  input.Body.CompanyName,
			Email:        input.Body.Email,
			Phone:        input.Body.Phone,
			CustomerType: input.Body.CustomerType,
			Notes:        input.Body.Notes,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if c.CustomerType == "" {
			c.CustomerType = "retail"
		}
		if err := s.store.CreateCustomer(ctx, c); err != nil {
			return nil, internalError("create customer", err)
		}
		return &CustomerOutput{Body: customerDTO(*c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "updateCustomer",
		Method:      http.MethodPut,
		Path:        "/api/customers/{customerID}",
		Tags:        []string{"Customers"},
	}, func(ctx context.Context, input *UpdateCustomerInput) (*CustomerOutput, error) {
		p := profile.FromContext(ctx)
		c, err := s.getScopedCustomer(ctx, p, input.CustomerID)
		if err != nil {
			return nil, err
		}
		// Rows never move between entities through this endpoint.
		if input.Body.TenantID != "" && input.Body.TenantID != c.TenantID {
			return nil, huma.Error422UnprocessableEntity("customer cannot change entity")
		}

		c.FirstName = input.Body.FirstName
		c.LastName = input.Body.LastName
		c.CompanyName = input.Body.CompanyName
		c.Email = input.Body.Email
		c.Phone = input.Body.Phone
		if input.Body.CustomerType != "" {
			c.CustomerType = input.Body.CustomerType
		}
		c.Notes = input.Body.Notes
		c.UpdatedAt = time.Now().UTC()

		if err := s.store.UpdateCustomer(ctx, c); err != nil {
			return nil, internalError("update customer", err)
		}
		return &CustomerOutput{Body: customerDTO(*c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "deleteCustomer",
		Method:        http.MethodDelete,
		Path:          "/api/customers/{customerID}",
		DefaultStatus: http.StatusNoContent,
		Tags:          []string{"Customers"},
	}, func(ctx context.Context, input *GetCustomerInput) (*struct{}, error) {
		p := profile.FromContext(ctx)
		if _, err := s.getScopedCustomer(ctx, p, input.CustomerID); err != nil {
			return nil, err
		}
		if err := s.store.DeleteCustomer(ctx, input.CustomerID); err != nil {
			return nil, internalError("delete customer", err)
		}
		return nil, nil
	})
}
