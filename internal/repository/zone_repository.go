package repository

import (
	"context"

	"gorm.io/gorm"

	"permit-service/internal/model"
)

type ZoneRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Zone, error)
	List(ctx context.Context, activeOnly bool) ([]model.Zone, error)
	Create(ctx context.Context, zone *model.Zone) error
	Update(ctx context.Context, zone *model.Zone) error
}

type zoneRepository struct {
	db *gorm.DB
}

func NewZoneRepository(db *gorm.DB) ZoneRepository {
	return &zoneRepository{db: db}
}

func (r *zoneRepository) GetByID(ctx context.Context, id int64) (*model.Zone, error) {
	var zone model.Zone
	if err := r.db.WithContext(ctx).First(&zone, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &zone, nil
}

func (r *zoneRepository) List(ctx context.Context, activeOnly bool) ([]model.Zone, error) {
	query := r.db.WithContext(ctx).Model(&model.Zone{})
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var zones []model.Zone
	if err := query.Order("name ASC").Find(&zones).Error; err != nil {
		return nil, err
	}
	return zones, nil
}

func (r *zoneRepository) Create(ctx context.Context, zone *model.Zone) error {
	return translateError(r.db.WithContext(ctx).Create(zone).Error)
}

func (r *zoneRepository) Update(ctx context.Context, zone *model.Zone) error {
	res := r.db.WithContext(ctx).
		Model(&model.Zone{}).
		Where("id = ?", zone.ID).
		Updates(map[string]interface{}{
			"name":        zone.Name,
			"description": zone.Description,
			"active":      zone.Active,
		})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
