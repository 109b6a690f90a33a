package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/locomotion-ai/locomotion/internal/auth"
	"github.com/locomotion-ai/locomotion/internal/profile"
	"github.com/locomotion-ai/locomotion/internal/storage"
)

// newRONumber mints a repair-order number. Uniqueness comes from the uuid
// suffix; the date prefix is for humans reading paperwork.
func newRONumber(now time.Time) string {
	return fmt.Sprintf("RO-%s-%s", now.Format("20060102"), uuid.NewString()[:8])
}

func (s *Server) getScopedWorkOrder(ctx context.Context, p *profile.Profile, id string) (*storage.WorkOrder, error) {
	w, err := s.store.GetWorkOrder(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, huma.Error404NotFound("work order not found")
		}
		return nil, internalError("get work order", err)
	}
	if err := requireTenantAccess(p, w.TenantID); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Server) registerWorkOrders(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listWorkOrders",
		Method:      http.MethodGet,
		Path:        "/api/work-orders",
		Tags:        []string{"WorkOrders"},
	}, func(ctx context.Context, input *ListWorkOrdersInput) (*ListWorkOrdersOutput, error) {
		p := profile.FromContext(ctx)
		scope, err := tenantScope(p, input.TenantID)
		if err != nil {
			return nil, err
		}

		orders, err := s.store.ListWorkOrders(ctx, storage.WorkOrderFilter{
			TenantIDs: scope,
			Status:    input.Status,
			Priority:  input.Priority,
		})
		if err != nil {
			return nil, internalError("list work orders", err)
		}

		out := &ListWorkOrdersOutput{}
		out.Body.WorkOrders = make([]WorkOrderDTO, 0, len(orders))
		for _, w := range orders {
			out.Body.WorkOrders = append(out.Body.WorkOrders, workOrderDTO(w))
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "getWorkOrder",
		Method:      http.MethodGet,
		Path:        "/api/work-orders/{workOrderID}",
		Tags:        []string{"WorkOrders"},
	}, func(ctx context.Context, input *GetWorkOrderInput) (*WorkOrderOutput, error) {
		p := profile.FromContext(ctx)
		w, err := s.getScopedWorkOrder(ctx, p, input.WorkOrderID)
		if err != nil {
			return nil, err
		}
		return &WorkOrderOutput{Body: workOrderDTO(*w)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "createWorkOrder",
		Method:        http.MethodPost,
		Path:          "/api/work-orders",
		DefaultStatus: http.StatusCreated,
		Tags:          []string{"WorkOrders"},
	}, func(ctx context.Context, input *CreateWorkOrderInput) (*WorkOrderOutput, error) {
		p := profile.FromContext(ctx)
		if err := requireTenantAccess(p, input.Body.TenantID); err != nil {
			return nil, err
		}

		// The vehicle must belong to the named customer, and the customer
		// to an accessible tenant.
		c, err := s.getScopedCustomer(ctx, p, input.Body.CustomerID)
		if err != nil {
			return nil, err
		}
		v, err := s.getScopedVehicle(ctx, p, input.Body.VehicleID)
		if err != nil {
			return nil, err
		}
		if v.CustomerID != c.ID {
			return nil, huma.Error422UnprocessableEntity("vehicle does not belong to customer")
		}

		createdBy := ""
		if identity := auth.IdentityFromContext(ctx); identity != nil {
			createdBy = identity.ID
		}

		now := time.Now().UTC()
		w := &storage.WorkOrder{
			ID:                 uuid.NewString(),
			TenantID:           input.Body.TenantID,
			RONumber:           newRONumber(now),
			CustomerID:         input.Body.CustomerID,
			VehicleID:          input.Body.VehicleID,
			Status:             "open",
			Priority:           input.Body.Priority,
			Description:        input.Body.Description,
			CreatedBy:          createdBy,
			AssignedTechnician: input.Body.AssignedTechnician,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if w.Priority == "" {
			w.Priority = "normal"
		}
		if err := s.store.CreateWorkOrder(ctx, w); err != nil {
			return nil, internalError("create work order", err)
		}
		return &WorkOrderOutput{Body: workOrderDTO(*w)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "updateWorkOrder",
		Method:      http.MethodPatch,
		Path:        "/api/work-orders/{workOrderID}",
		Tags:        []string{"WorkOrders"},
	}, func(ctx context.Context, input *UpdateWorkOrderInput) (*WorkOrderOutput, error) {
		p := profile.FromContext(ctx)
		w, err := s.getScopedWorkOrder(ctx, p, input.WorkOrderID)
		if err != nil {
			return nil, err
		}

		if input.Body.Status != nil {
			w.Status = *input.Body.Status
		}
		if input.Body.Priority != nil {
			w.Priority = *input.Body.Priority
		}
		if input.Body.Description != nil {
			w.Description = *input.Body.Description
		}
		if input.Body.TotalLaborCost != nil {
			w.TotalLaborCost = *input.Body.TotalLaborCost
		}
		if input.Body.TotalPartsCost != nil {
			w.TotalPartsCost = *input.Body.TotalPartsCost
		}
		if input.Body.AssignedTechnician != nil {
			w.AssignedTechnician = *input.Body.AssignedTechnician
		}
		w.TotalCost = w.TotalLaborCost + w.TotalPartsCost
		w.UpdatedAt = time.Now().UTC()

		if err := s.store.UpdateWorkOrder(ctx, w); err != nil {
			return nil, internalError("update work order", err)
		}
		return &WorkOrderOutput{Body: workOrderDTO(*w)}, nil
	})
}
