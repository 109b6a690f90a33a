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

// getScopedVehicle fetches a vehicle and checks tenant access through its
// owning customer.
func (s *Server) getScopedVehicle(ctx context.Context, p *profile.Profile, id string) (*storage.Vehicle, error) {
	v, err := s.store.GetVehicle(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, huma.Error404NotFound("vehicle not found")
		}
		return nil, internalError("get vehicle", err)
	}
	if _, err := s.getScopedCustomer(ctx, p, v.CustomerID); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Server) registerVehicles(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listVehicles",
		Method:      http.MethodGet,
		Path:        "/api/vehicles",
		Tags:        []string{"Vehicles"},
	}, func(ctx context.Context, input *ListVehiclesInput) (*ListVehiclesOutput, error) {
		p := profile.FromContext(ctx)
		if _, err := s.getScopedCustomer(ctx, p, input.CustomerID); err != nil {
			return nil, err
		}

		vehicles, err := s.store.ListVehiclesByCustomer(ctx, input.CustomerID)
		if err != nil {
			return nil, internalError("list vehicles", err)
		}

		out := &ListVehiclesOutput{}
		out.Body.Vehicles = make([]VehicleDTO, 0, len(vehicles))
		for _, v := range vehicles {
			out.Body.Vehicles = append(out.Body.Vehicles, vehicleDTO(v))
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "getVehicle",
		Method:      http.MethodGet,
		Path:        "/api/vehicles/{vehicleID}",
		Tags:        []string{"Vehicles"},
	}, func(ctx context.Context, input *GetVehicleInput) (*VehicleOutput, error) {
		p := profile.FromContext(ctx)
		v, err := s.getScopedVehicle(ctx, p, input.VehicleID)
		if err != nil {
			return nil, err
		}
		return &VehicleOutput{Body: vehicleDTO(*v)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "createVehicle",
		Method:        http.MethodPost,
		Path:          "/api/vehicles",
		DefaultStatus: http.StatusCreated,
		Tags:          []string{"Vehicles"},
	}, func(ctx context.Context, input *CreateVehicleInput) (*VehicleOutput, error) {
		p := profile.FromContext(ctx)
		if _, err := s.getScopedCustomer(ctx, p, input.Body.CustomerID); err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		v := &storage.Vehicle{
			ID:           uuid.NewString(),
			CustomerID:   input.Body.CustomerID,
			VIN:          input.Body.VIN,
			Make:         input.Body.Make,
			Model:        input.Body.Model,
			Year:         input.Body.Year,
			LicensePlate: input.Body.LicensePlate,
			Color:        input.Body.Color,
			Mileage:      input.Body.Mileage,
			Notes:        input.Body.Notes,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.store.CreateVehicle(ctx, v); err != nil {
			return nil, internalError("create vehicle", err)
		}
		return &VehicleOutput{Body: vehicleDTO(*v)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "updateVehicle",
		Method:      http.MethodPut,
		Path:        "/api/vehicles/{vehicleID}",
		Tags:        []string{"Vehicles"},
	}, func(ctx context.Context, input *UpdateVehicleInput) (*VehicleOutput, error) {
		p := profile.FromContext(ctx)
		v, err := s.getScopedVehicle(ctx, p, input.VehicleID)
		if err != nil {
			return nil, err
		}
		if input.Body.CustomerID != "" && input.Body.CustomerID != v.CustomerID {
			return nil, huma.Error422UnprocessableEntity("vehicle cannot change customer")
		}

		v.VIN = input.Body.VIN
		v.Make = input.Body.Make
		v.Model = input.Body.Model
		v.Year = input.Body.Year
		v.LicensePlate = input.Body.LicensePlate
		v.Color = input.Body.Color
		v.Mileage = input.Body.Mileage
		v.Notes = input.Body.Notes
		v.UpdatedAt = time.Now().UTC()

		if err := s.store.UpdateVehicle(ctx, v); err != nil {
			return nil, internalError("update vehicle", err)
		}
		return &VehicleOutput{Body: vehicleDTO(*v)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "deleteVehicle",
		Method:        http.MethodDelete,
		Path:          "/api/vehicles/{vehicleID}",
		DefaultStatus: http.StatusNoContent,
		Tags:          []string{"Vehicles"},
	}, func(ctx context.Context, input *GetVehicleInput) (*struct{}, error) {
		p := profile.FromContext(ctx)
		if _, err := s.getScopedVehicle(ctx, p, input.VehicleID); err != nil {
			return nil, err
		}
		if err := s.store.DeleteVehicle(ctx, input.VehicleID); err != nil {
			return nil, internalError("delete vehicle", err)
		}
		return nil, nil
	})
}
