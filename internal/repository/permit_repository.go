package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"permit-service/internal/model"
)

const (
	defaultPermitPage = 20
	maxPermitPage     = 100
)

type PermitRepository interface {
	// Create inserts a new permit. Returns ErrDuplicate on a transaction code clash.
	Create(ctx context.Context, permit *model.Permit) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Permit, error)
	GetByTransactionCode(ctx context.Context, code string) (*model.Permit, error)
	// ListActiveByPlate returns COMPLETED permits of the plate whose window
	// contains at, most recently created first.
	ListActiveByPlate(ctx context.Context, plate string, at time.Time) ([]model.Permit, error)
	// LatestByPlate returns the most recently created permit of the plate in
	// any status.
	LatestByPlate(ctx context.Context, plate string) (*model.Permit, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Permit, error)
	// UpdateStatus moves the permit from one status to another and records the
	// change. Returns ErrStale when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.PaymentStatus, logEntry *model.PermitStatusLog) error
}

type permitRepository struct {
	db *gorm.DB
}

func NewPermitRepository(db *gorm.DB) PermitRepository {
	return &permitRepository{db: db}
}

func (r *permitRepository) Create(ctx context.Context, permit *model.Permit) error {
	return translateError(r.db.WithContext(ctx).Omit("Vehicle", "Zone").Create(permit).Error)
}

func (r *permitRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Permit, error) {
	var permit model.Permit
	if err := r.db.WithContext(ctx).
		Preload("Vehicle").
		Preload("Zone").
		First(&permit, "permits.id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &permit, nil
}

func (r *permitRepository) GetByTransactionCode(ctx context.Context, code string) (*model.Permit, error) {
	var permit model.Permit
	if err := r.db.WithContext(ctx).
		Preload("Vehicle").
		Preload("Zone").
		Where("transaction_code = ?", code).
		First(&permit).Error; err != nil {
		return nil, translateError(err)
	}
	return &permit, nil
}

func (r *permitRepository) ListActiveByPlate(ctx context.Context, plate string, at time.Time) ([]model.Permit, error) {
	var permits []model.Permit
	if err := r.db.WithContext(ctx).
		Model(&model.Permit{}).
		Joins("JOIN vehicles v ON v.id = permits.vehicle_id").
		Where("v.plate = ?", plate).
		Where("permits.payment_status = ?", model.PaymentStatusCompleted).
		Where("permits.start_time <= ? AND permits.end_time > ?", at, at).
		Order("permits.created_at DESC").
		Preload("Vehicle").
		Preload("Zone").
		Find(&permits).Error; err != nil {
		return nil, err
	}
	return permits, nil
}

func (r *permitRepository) LatestByPlate(ctx context.Context, plate string) (*model.Permit, error) {
	var permit model.Permit
	if err := r.db.WithContext(ctx).
		Model(&model.Permit{}).
		Joins("JOIN vehicles v ON v.id = permits.vehicle_id").
		Where("v.plate = ?", plate).
		Order("permits.created_at DESC").
		Preload("Vehicle").
		Preload("Zone").
		First(&permit).Error; err != nil {
		return nil, translateError(err)
	}
	return &permit, nil
}

func (r *permitRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Permit, error) {
	query := r.db.WithContext(ctx).
		Model(&model.Permit{}).
		Where("permits.user_id = ?", userID).
		Limit(pageLimit(limit, defaultPermitPage, maxPermitPage))
	if offset > 0 {
		query = query.Offset(offset)
	}

	var permits []model.Permit
	if err := query.
		Order("permits.created_at DESC").
		Preload("Vehicle").
		Preload("Zone").
		Find(&permits).Error; err != nil {
		return nil, err
	}
	return permits, nil
}

func (r *permitRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.PaymentStatus, logEntry *model.PermitStatusLog) error {
	return translateError(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Permit{}).
			Where("id = ? AND payment_status = ?", id, from).
			Update("payment_status", to)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStale
		}
		if logEntry != nil {
			logEntry.PermitID = id
			if err := tx.Create(logEntry).Error; err != nil {
				return err
			}
		}
		return nil
	}))
}
