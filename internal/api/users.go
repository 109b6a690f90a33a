package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/locomotion-ai/locomotion/internal/audit"
	"github.com/locomotion-ai/locomotion/internal/auth"
	"github.com/locomotion-ai/locomotion/internal/storage"
)

func userDTO(u storage.User, roleName string) UserDTO {
	access := u.TenantAccess
	if access == nil {
		access = []string{}
	}
	return UserDTO{
		ID:           u.ID,
		Email:        u.Email,
		FullName:     u.FullName,
		Role:         roleName,
		TenantAccess: access,
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// registerUsers registers admin user provisioning under /api/admin, which the
// permission middleware restricts to wildcard-permission roles. Profiles are
// only ever created here: an authenticated account with no row stays
// unprovisioned until an admin acts.
func (s *Server) registerUsers(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listUsers",
		Method:      http.MethodGet,
		Path:        "/api/admin/users",
		Tags:        []string{"Admin"},
	}, func(ctx context.Context, input *struct{}) (*ListUsersOutput, error) {
		users, err := s.store.ListUsers(ctx)
		if err != nil {
			return nil, internalError("list users", err)
		}
		roles, err := s.store.ListRoles(ctx)
		if err != nil {
			return nil, internalError("list roles", err)
		}
		roleNames := make(map[string]string, len(roles))
		for _, r := range roles {
			roleNames[r.ID] = r.Name
		}

		out := &ListUsersOutput{}
		out.Body.Users = make([]UserDTO, 0, len(users))
		for _, u := range users {
			out.Body.Users = append(out.Body.Users, userDTO(u, roleNames[u.RoleID]))
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "createUser",
		Method:        http.MethodPost,
		Path:          "/api/admin/users",
		DefaultStatus: http.StatusCreated,
		Tags:          []string{"Admin"},
	}, func(ctx context.Context, input *CreateUserInput) (*UserOutput, error) {
		role, err := s.store.GetRoleByName(ctx, input.Body.Role)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, huma.Error422UnprocessableEntity("unknown role: " + input.Body.Role)
			}
			return nil, internalError("get role", err)
		}

		now := time.Now().UTC()
		u := &storage.User{
			ID:           input.Body.ID,
			Email:        input.Body.Email,
			FullName:     input.Body.FullName,
			RoleID:       role.ID,
			TenantAccess: input.Body.TenantAccess,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.store.CreateUser(ctx, u); err != nil {
			return nil, internalError("create user", err)
		}

		actor := ""
		if identity := auth.IdentityFromContext(ctx); identity != nil {
			actor = identity.Email
		}
		audit.Event{
			Actor:      actor,
			Action:     "createUser",
			TargetUser: u.Email,
			Role:       role.Name,
		}.Info("Audit Log: User Provisioned")

		out := &UserOutput{Body: userDTO(*u, role.Name)}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "updateUser",
		Method:      http.MethodPatch,
		Path:        "/api/admin/users/{userID}",
		Tags:        []string{"Admin"},
	}, func(ctx context.Context, input *UpdateUserInput) (*UserOutput, error) {
		u, role, err := s.store.GetUserWithRole(ctx, input.UserID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, huma.Error404NotFound("user not found")
			}
			return nil, internalError("get user", err)
		}

		roleName := ""
		if role != nil {
			roleName = role.Name
		}
		if input.Body.Role != nil {
			newRole, err := s.store.GetRoleByName(ctx, *input.Body.Role)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return nil, huma.Error422UnprocessableEntity("unknown role: " + *input.Body.Role)
				}
				return nil, internalError("get role", err)
			}
			u.RoleID = newRole.ID
			roleName = newRole.Name
		}
		if input.Body.FullName != nil {
			u.FullName = *input.Body.FullName
		}
		if input.Body.TenantAccess != nil {
			u.TenantAccess = *input.Body.TenantAccess
		}
		if input.Body.IsActive != nil {
			u.IsActive = *input.Body.IsActive
		}
		u.UpdatedAt = time.Now().UTC()

		if err := s.store.UpdateUser(ctx, u); err != nil {
			return nil, internalError("update user", err)
		}

		// Changed roles and deactivations must not ride out the cache TTL.
		s.profiles.Invalidate(u.ID)

		actor := ""
		if identity := auth.IdentityFromContext(ctx); identity != nil {
			actor = identity.Email
		}
		audit.Event{
			Actor:      actor,
			Action:     "updateUser",
			TargetUser: u.Email,
			Role:       roleName,
		}.Info("Audit Log: User Updated")

		return &UserOutput{Body: userDTO(*u, roleName)}, nil
	})
}
