package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/locomotion-ai/locomotion/internal/auth"
	"github.com/locomotion-ai/locomotion/internal/gate"
	"github.com/locomotion-ai/locomotion/internal/profile"
)

// registerProfile registers the session endpoints under /api/auth. These run
// with token verification only; profile resolution happens here so the
// endpoint can report "authenticated but unprovisioned" as its own status.
func (s *Server) registerProfile(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getProfile",
		Method:      http.MethodGet,
		Path:        "/api/auth/profile",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *struct{}) (*ProfileOutput, error) {
		identity := auth.IdentityFromContext(ctx)

		p, err := s.profiles.Resolve(ctx, identity)
		if err != nil {
			if errors.Is(err, profile.ErrProfileNotFound) {
				profileResolutionsTotal.WithLabelValues("not_found").Inc()
				return nil, &APIError{
					Status:  http.StatusNotFound,
					Message: "User profile not found",
					Details: "The authenticated account has no provisioned profile. Ask an administrator to create one.",
					UserID:  identity.ID,
				}
			}
			profileResolutionsTotal.WithLabelValues("error").Inc()
			slog.Error("profile resolution failed", "user_id", identity.ID, "error", err)
			return nil, huma.Error500InternalServerError("Internal server error")
		}
		profileResolutionsTotal.WithLabelValues("ok").Inc()

		out := &ProfileOutput{}
		out.Body.Success = true
		out.Body.Profile = *p
		return out, nil
	})

	// Home route for the caller's role. Lets a just-signed-in client land on
	// the right dashboard without duplicating the role table.
	huma.Register(api, huma.Operation{
		OperationID: "getHomeRoute",
		Method:      http.MethodGet,
		Path:        "/api/auth/home",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *struct{}) (*HomeRouteOutput, error) {
		identity := auth.IdentityFromContext(ctx)

		p, err := s.profiles.Resolve(ctx, identity)
		if err != nil {
			if errors.Is(err, profile.ErrProfileNotFound) {
				return nil, &APIError{
					Status:  http.StatusNotFound,
					Message: "User profile not found",
					UserID:  identity.ID,
				}
			}
			slog.Error("profile resolution failed", "user_id", identity.ID, "error", err)
			return nil, huma.Error500InternalServerError("Internal server error")
		}

		out := &HomeRouteOutput{}
		out.Body.Route = gate.RouteForRole(p.Role.Name)
		return out, nil
	})
}
