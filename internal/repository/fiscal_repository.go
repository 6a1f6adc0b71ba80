package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"permit-service/internal/model"
)

const (
	defaultFiscalPage = 50
	maxFiscalPage     = 200
)

type FiscalActionFilter struct {
	Scope       model.Scope
	ActionTypes []model.FiscalActionType
	Plate       string
	DateFrom    *time.Time
	DateTo      *time.Time
	Limit       int
	Offset      int
}

type InfringementFilter struct {
	Scope    model.Scope
	Statuses []model.InfringementStatus
	Types    []model.InfringementType
	Plate    string
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
	Offset   int
}

type FiscalRepository interface {
	CreateAction(ctx context.Context, action *model.FiscalAction) error
	// CreateVerification stores the action and its verification atomically.
	CreateVerification(ctx context.Context, action *model.FiscalAction, verification *model.Verification) error
	// CreateInfringement stores the action, the infringement and its initial
	// status log entry atomically.
	CreateInfringement(ctx context.Context, action *model.FiscalAction, infringement *model.Infringement, logEntry *model.InfringementStatusLog) error
	GetInfringement(ctx context.Context, id uuid.UUID) (*model.Infringement, error)
	ListInfringements(ctx context.Context, filter InfringementFilter) ([]model.Infringement, error)
	ListActions(ctx context.Context, filter FiscalActionFilter) ([]model.FiscalAction, error)
	// UpdateInfringementStatus returns ErrStale when the stored status is no
	// longer from.
	UpdateInfringementStatus(ctx context.Context, id uuid.UUID, from, to model.InfringementStatus, logEntry *model.InfringementStatusLog) error
}

type fiscalRepository struct {
	db *gorm.DB
}

func NewFiscalRepository(db *gorm.DB) FiscalRepository {
	return &fiscalRepository{db: db}
}

func (r *fiscalRepository) CreateAction(ctx context.Context, action *model.FiscalAction) error {
	return translateError(r.db.WithContext(ctx).Create(action).Error)
}

func (r *fiscalRepository) CreateVerification(ctx context.Context, action *model.FiscalAction, verification *model.Verification) error {
	return translateError(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(action).Error; err != nil {
			return err
		}
		verification.FiscalActionID = action.ID
		return tx.Omit("FiscalAction", "Permit").Create(verification).Error
	}))
}

func (r *fiscalRepository) CreateInfringement(ctx context.Context, action *model.FiscalAction, infringement *model.Infringement, logEntry *model.InfringementStatusLog) error {
	return translateError(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(action).Error; err != nil {
			return err
		}
		infringement.FiscalActionID = action.ID
		if err := tx.Omit("Vehicle", "FiscalAction").Create(infringement).Error; err != nil {
			return err
		}
		if logEntry != nil {
			logEntry.InfringementID = infringement.ID
			if err := tx.Create(logEntry).Error; err != nil {
				return err
			}
		}
		return nil
	}))
}

func (r *fiscalRepository) GetInfringement(ctx context.Context, id uuid.UUID) (*model.Infringement, error) {
	var infringement model.Infringement
	if err := r.db.WithContext(ctx).
		Preload("Vehicle").
		Preload("FiscalAction").
		First(&infringement, "infringements.id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &infringement, nil
}

func (r *fiscalRepository) ListInfringements(ctx context.Context, filter InfringementFilter) ([]model.Infringement, error) {
	query := r.db.WithContext(ctx).
		Model(&model.Infringement{}).
		Joins("JOIN fiscal_actions fa ON fa.id = infringements.fiscal_action_id").
		Joins("JOIN vehicles v ON v.id = infringements.vehicle_id")

	query = applyScopeFilter(query, filter.Scope)

	if len(filter.Statuses) > 0 {
		query = query.Where("infringements.status IN ?", filter.Statuses)
	}
	if len(filter.Types) > 0 {
		query = query.Where("infringements.infringement_type IN ?", filter.Types)
	}
	if filter.Plate != "" {
		query = query.Where("v.plate = ?", filter.Plate)
	}
	if filter.DateFrom != nil {
		query = query.Where("infringements.created_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("infringements.created_at <= ?", *filter.DateTo)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	query = query.Limit(pageLimit(filter.Limit, defaultFiscalPage, maxFiscalPage))

	var infringements []model.Infringement
	if err := query.
		Order("infringements.created_at DESC").
		Preload("Vehicle").
		Preload("FiscalAction").
		Find(&infringements).Error; err != nil {
		return nil, err
	}
	return infringements, nil
}

func (r *fiscalRepository) ListActions(ctx context.Context, filter FiscalActionFilter) ([]model.FiscalAction, error) {
	query := r.db.WithContext(ctx).Table("fiscal_actions AS fa").Select("fa.*")

	query = applyScopeFilter(query, filter.Scope)

	if len(filter.ActionTypes) > 0 {
		query = query.Where("fa.action_type IN ?", filter.ActionTypes)
	}
	if filter.Plate != "" {
		query = query.Where("fa.plate = ?", filter.Plate)
	}
	if filter.DateFrom != nil {
		query = query.Where("fa.performed_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("fa.performed_at <= ?", *filter.DateTo)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	query = query.Limit(pageLimit(filter.Limit, defaultFiscalPage, maxFiscalPage))

	var actions []model.FiscalAction
	if err := query.Order("fa.performed_at DESC").Find(&actions).Error; err != nil {
		return nil, err
	}
	return actions, nil
}

func (r *fiscalRepository) UpdateInfringementStatus(ctx context.Context, id uuid.UUID, from, to model.InfringementStatus, logEntry *model.InfringementStatusLog) error {
	return translateError(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Infringement{}).
			Where("id = ? AND status = ?", id, from).
			Update("status", to)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStale
		}
		if logEntry != nil {
			logEntry.InfringementID = id
			if err := tx.Create(logEntry).Error; err != nil {
				return err
			}
		}
		return nil
	}))
}

// applyScopeFilter expects the fiscal_actions table aliased as fa.
func applyScopeFilter(query *gorm.DB, scope model.Scope) *gorm.DB {
	switch scope.Type {
	case model.ScopeAll:
		return query
	case model.ScopeOwn:
		if scope.UserID == nil {
			return query.Where("1=0")
		}
		return query.Where("fa.fiscal_user_id = ?", *scope.UserID)
	default:
		return query.Where("1=0")
	}
}
