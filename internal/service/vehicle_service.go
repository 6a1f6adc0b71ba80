package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"permit-service/internal/model"
	"permit-service/internal/repository"
)

type VehicleService struct {
	vehicles repository.VehicleRepository
	log      zerolog.Logger
}

func NewVehicleService(vehicles repository.VehicleRepository, log zerolog.Logger) *VehicleService {
	return &VehicleService{vehicles: vehicles, log: log}
}

// Resolve returns the vehicle registered under plate, creating it when it is
// unknown. plate must already be normalized. A concurrent first insert of the
// same plate is resolved by re-reading.
func (s *VehicleService) Resolve(ctx context.Context, plate, vehicleModel string, ownerID *uuid.UUID) (*model.Vehicle, error) {
	vehicle, err := s.vehicles.FindByPlate(ctx, plate)
	if err == nil {
		if vehicle.Model == "" && vehicleModel != "" {
			vehicle.Model = vehicleModel
			if err := s.vehicles.Update(ctx, vehicle); err != nil {
				s.log.Warn().Err(err).Str("plate", plate).Msg("fill vehicle model")
			}
		}
		return vehicle, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	vehicle = &model.Vehicle{
		Plate:  plate,
		Model:  vehicleModel,
		UserID: ownerID,
	}
	err = s.vehicles.Create(ctx, vehicle)
	if errors.Is(err, repository.ErrDuplicate) {
		return s.vehicles.FindByPlate(ctx, plate)
	}
	if err != nil {
		return nil, err
	}
	return vehicle, nil
}

func (s *VehicleService) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Vehicle, error) {
	return s.vehicles.ListByUser(ctx, userID)
}

type VehicleDetailsInput struct {
	Model       string `json:"model" validate:"max=128"`
	Description string `json:"description" validate:"max=1024"`
}

// UpdateDetails edits model and description. The owner and pricing managers
// may edit; the plate itself never changes.
func (s *VehicleService) UpdateDetails(ctx context.Context, principal model.Principal, rawPlate string, input VehicleDetailsInput) (*model.Vehicle, error) {
	plate, ok := model.ParsePlate(rawPlate)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPlate, rawPlate)
	}
	if err := validateStruct(input, ErrInvalidInput); err != nil {
		return nil, err
	}

	vehicle, err := s.vehicles.FindByPlate(ctx, plate)
	if err != nil {
		return nil, notFound(err, "vehicle")
	}
	owned := vehicle.UserID != nil && *vehicle.UserID == principal.UserID
	if !owned && !principal.CanManagePricing() {
		return nil, ErrPermissionDenied
	}

	vehicle.Model = strings.TrimSpace(input.Model)
	vehicle.Description = strings.TrimSpace(input.Description)
	if err := s.vehicles.Update(ctx, vehicle); err != nil {
		return nil, notFound(err, "vehicle")
	}
	return vehicle, nil
}
