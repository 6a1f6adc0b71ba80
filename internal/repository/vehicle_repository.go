package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"permit-service/internal/model"
)

type VehicleRepository interface {
	// FindByPlate expects a normalized plate. Returns ErrNotFound on a miss.
	FindByPlate(ctx context.Context, plate string) (*model.Vehicle, error)
	// Create returns ErrDuplicate when the plate is already registered.
	Create(ctx context.Context, vehicle *model.Vehicle) error
	// Update changes model and description only; the plate is immutable.
	Update(ctx context.Context, vehicle *model.Vehicle) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Vehicle, error)
}

type vehicleRepository struct {
	db *gorm.DB
}

func NewVehicleRepository(db *gorm.DB) VehicleRepository {
	return &vehicleRepository{db: db}
}

func (r *vehicleRepository) FindByPlate(ctx context.Context, plate string) (*model.Vehicle, error) {
	var vehicle model.Vehicle
	if err := r.db.WithContext(ctx).
		Where("plate = ?", plate).
		First(&vehicle).Error; err != nil {
		return nil, translateError(err)
	}
	return &vehicle, nil
}

func (r *vehicleRepository) Create(ctx context.Context, vehicle *model.Vehicle) error {
	return translateError(r.db.WithContext(ctx).Create(vehicle).Error)
}

func (r *vehicleRepository) Update(ctx context.Context, vehicle *model.Vehicle) error {
	res := r.db.WithContext(ctx).
		Model(&model.Vehicle{}).
		Where("id = ?", vehicle.ID).
		Updates(map[string]interface{}{
			"model":       vehicle.Model,
			"description": vehicle.Description,
		})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *vehicleRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Vehicle, error) {
	var vehicles []model.Vehicle
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&vehicles).Error; err != nil {
		return nil, err
	}
	return vehicles, nil
}
