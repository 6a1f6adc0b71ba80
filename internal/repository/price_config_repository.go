package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"permit-service/internal/model"
)

type PriceConfigRepository interface {
	// ListByZone returns every config of the zone, newest ValidFrom first.
	ListByZone(ctx context.Context, zoneID int64) ([]model.PriceConfig, error)
	// FindEffective returns all configs of the zone whose window contains at.
	// More than one result means the non-overlap invariant is broken.
	FindEffective(ctx context.Context, zoneID int64, at time.Time) ([]model.PriceConfig, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.PriceConfig, error)
	Create(ctx context.Context, cfg *model.PriceConfig) error
	Update(ctx context.Context, cfg *model.PriceConfig) error
	Delete(ctx context.Context, id uuid.UUID) error
	// WithZoneLock runs fn in a transaction holding an exclusive lock on the
	// zone row. fn receives a repository bound to that transaction. Returns
	// ErrNotFound when the zone does not exist.
	WithZoneLock(ctx context.Context, zoneID int64, fn func(tx PriceConfigRepository) error) error
}

type priceConfigRepository struct {
	db *gorm.DB
}

func NewPriceConfigRepository(db *gorm.DB) PriceConfigRepository {
	return &priceConfigRepository{db: db}
}

func (r *priceConfigRepository) ListByZone(ctx context.Context, zoneID int64) ([]model.PriceConfig, error) {
	var configs []model.PriceConfig
	if err := r.db.WithContext(ctx).
		Where("zone_id = ?", zoneID).
		Order("valid_from DESC").
		Find(&configs).Error; err != nil {
		return nil, err
	}
	return configs, nil
}

func (r *priceConfigRepository) FindEffective(ctx context.Context, zoneID int64, at time.Time) ([]model.PriceConfig, error) {
	var configs []model.PriceConfig
	if err := r.db.WithContext(ctx).
		Where("zone_id = ?", zoneID).
		Where("valid_from <= ?", at).
		Where("(valid_to IS NULL OR valid_to > ?)", at).
		Order("valid_from DESC").
		Find(&configs).Error; err != nil {
		return nil, err
	}
	return configs, nil
}

func (r *priceConfigRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.PriceConfig, error) {
	var cfg model.PriceConfig
	if err := r.db.WithContext(ctx).First(&cfg, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &cfg, nil
}

func (r *priceConfigRepository) Create(ctx context.Context, cfg *model.PriceConfig) error {
	return translateError(r.db.WithContext(ctx).Create(cfg).Error)
}

func (r *priceConfigRepository) Update(ctx context.Context, cfg *model.PriceConfig) error {
	res := r.db.WithContext(ctx).
		Model(&model.PriceConfig{}).
		Where("id = ?", cfg.ID).
		Updates(map[string]interface{}{
			"valid_from":   cfg.ValidFrom,
			"valid_to":     cfg.ValidTo,
			"hour1_price":  cfg.Hour1Price,
			"hour2_price":  cfg.Hour2Price,
			"hour3_price":  cfg.Hour3Price,
			"hour4_price":  cfg.Hour4Price,
			"hour5_price":  cfg.Hour5Price,
			"hour6_price":  cfg.Hour6Price,
			"hour12_price": cfg.Hour12Price,
		})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *priceConfigRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&model.PriceConfig{}, "id = ?", id)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *priceConfigRepository) WithZoneLock(ctx context.Context, zoneID int64, fn func(tx PriceConfigRepository) error) error {
	return translateError(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var zone model.Zone
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&zone, "id = ?", zoneID).Error; err != nil {
			return err
		}
		return fn(&priceConfigRepository{db: tx})
	}))
}
