package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/locomotion-ai/locomotion/internal/profile"
	"github.com/locomotion-ai/locomotion/internal/storage"
)

// tenantScope returns the tenant ids the caller may touch. When requested is
// non-empty the scope narrows to that single tenant, or fails if the caller
// has no access to it.
func tenantScope(p *profile.Profile, requested string) ([]string, error) {
	if requested != "" {
		if !p.HasTenantAccess(requested) {
			return nil, huma.Error403Forbidden("no access to this entity")
		}
		return []string{requested}, nil
	}
	return p.TenantAccess, nil
}

// requireTenantAccess rejects callers without access to the given tenant.
func requireTenantAccess(p *profile.Profile, tenantID string) error {
	if !p.HasTenantAccess(tenantID) {
		return huma.Error403Forbidden("no access to this entity")
	}
	return nil
}

func internalError(action string, err error) error {
	slog.Error(action+" failed", "error", err)
	return huma.Error500InternalServerError("Internal server error")
}

// registerTenants registers entity (business location) endpoints. Creation
// lives under /api/admin so only wildcard-permission roles reach it.
func (s *Server) registerTenants(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listTenants",
		Method:      http.MethodGet,
		Path:        "/api/tenants",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *struct{}) (*ListTenantsOutput, error) {
		p := profile.FromContext(ctx)

		all, err := s.store.ListTenants(ctx)
		if err != nil {
			return nil, internalError("list tenants", err)
		}

		out := &ListTenantsOutput{}
		out.Body.Tenants = []TenantDTO{}
		for _, t := range all {
			if p.HasTenantAccess(t.ID) {
				out.Body.Tenants = append(out.Body.Tenants, tenantDTO(t))
			}
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "getTenant",
		Method:      http.MethodGet,
		Path:        "/api/tenants/{tenantID}",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *struct {
		TenantID string `path:"tenantID"`
	}) (*TenantOutput, error) {
		p := profile.FromContext(ctx)
		if err := requireTenantAccess(p, input.TenantID); err != nil {
			return nil, err
		}

		t, err := s.store.GetTenant(ctx, input.TenantID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, huma.Error404NotFound("entity not found")
			}
			return nil, internalError("get tenant", err)
		}
		return &TenantOutput{Body: tenantDTO(*t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "createTenant",
		Method:        http.MethodPost,
		Path:          "/api/admin/tenants",
		DefaultStatus: http.StatusCreated,
		Tags:          []string{"Admin"},
	}, func(ctx context.Context, input *CreateTenantInput) (*TenantOutput, error) {
		now := time.Now().UTC()
		t := &storage.Tenant{
			ID:        uuid.NewString(),
			Name:      input.Body.Name,
			Code:      input.Body.Code,
			Type:      input.Body.Type,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if t.Type == "" {
			t.Type = "shop"
		}
		if err := s.store.CreateTenant(ctx, t); err != nil {
			return nil, internalError("create tenant", err)
		}
		return &TenantOutput{Body: tenantDTO(*t)}, nil
	})
}
