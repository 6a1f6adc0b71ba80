package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"permit-service/internal/interval"
	"permit-service/internal/model"
	"permit-service/internal/repository"
)

// PricingService owns the per-zone price periods. Every mutation runs under
// the zone lock so the overlap check and the write are atomic.
type PricingService struct {
	zones  repository.ZoneRepository
	prices repository.PriceConfigRepository
	log    zerolog.Logger
	now    func() time.Time
}

func NewPricingService(zones repository.ZoneRepository, prices repository.PriceConfigRepository, log zerolog.Logger) *PricingService {
	return &PricingService{
		zones:  zones,
		prices: prices,
		log:    log,
		now:    time.Now,
	}
}

// PriceConfigInput carries a full price table. Every tier is required.
type PriceConfigInput struct {
	ValidFrom   time.Time        `json:"validFrom" validate:"required"`
	ValidTo     *time.Time       `json:"validTo"`
	Hour1Price  *decimal.Decimal `json:"hour1Price" validate:"required"`
	Hour2Price  *decimal.Decimal `json:"hour2Price" validate:"required"`
	Hour3Price  *decimal.Decimal `json:"hour3Price" validate:"required"`
	Hour4Price  *decimal.Decimal `json:"hour4Price" validate:"required"`
	Hour5Price  *decimal.Decimal `json:"hour5Price" validate:"required"`
	Hour6Price  *decimal.Decimal `json:"hour6Price" validate:"required"`
	Hour12Price *decimal.Decimal `json:"hour12Price" validate:"required"`
}

func (in PriceConfigInput) tiers() []*decimal.Decimal {
	return []*decimal.Decimal{
		in.Hour1Price, in.Hour2Price, in.Hour3Price, in.Hour4Price,
		in.Hour5Price, in.Hour6Price, in.Hour12Price,
	}
}

func (in PriceConfigInput) check() error {
	for _, tier := range in.tiers() {
		if tier == nil {
			return fmt.Errorf("%w: every tier price is required", ErrInvalidPrices)
		}
		if tier.IsNegative() {
			return fmt.Errorf("%w: tier price %s is negative", ErrInvalidPrices, tier.String())
		}
		if !tier.Equal(tier.Round(2)) {
			return fmt.Errorf("%w: tier price %s has more than two decimal places", ErrInvalidPrices, tier.String())
		}
	}
	if err := validateStruct(in, ErrInvalidInput); err != nil {
		return err
	}
	if in.ValidTo != nil && !in.ValidTo.After(in.ValidFrom) {
		return fmt.Errorf("%w: validTo must be after validFrom", ErrInvalidInput)
	}
	return nil
}

func (in PriceConfigInput) apply(cfg *model.PriceConfig) {
	cfg.ValidFrom = in.ValidFrom
	cfg.ValidTo = in.ValidTo
	cfg.Hour1Price = *in.Hour1Price
	cfg.Hour2Price = *in.Hour2Price
	cfg.Hour3Price = *in.Hour3Price
	cfg.Hour4Price = *in.Hour4Price
	cfg.Hour5Price = *in.Hour5Price
	cfg.Hour6Price = *in.Hour6Price
	cfg.Hour12Price = *in.Hour12Price
}

func (in PriceConfigInput) Interval() interval.Interval {
	return interval.New(in.ValidFrom, in.ValidTo)
}

// GetCurrent returns the config of the zone whose window contains at.
// More than one match is reported as ErrConsistencyFault.
func (s *PricingService) GetCurrent(ctx context.Context, zoneID int64, at time.Time) (*model.PriceConfig, error) {
	configs, err := s.prices.FindEffective(ctx, zoneID, at)
	if err != nil {
		return nil, err
	}
	switch len(configs) {
	case 0:
		return nil, fmt.Errorf("%w: zone %d at %s", ErrNoPriceConfig, zoneID, at.Format(time.RFC3339))
	case 1:
		return &configs[0], nil
	}

	ids := make([]string, 0, len(configs))
	for _, c := range configs {
		ids = append(ids, c.ID.String())
	}
	s.log.Error().
		Int64("zone_id", zoneID).
		Time("at", at).
		Strs("price_config_ids", ids).
		Msg("multiple price configs in effect")
	return nil, fmt.Errorf("%w: %d price configs in effect for zone %d", ErrConsistencyFault, len(configs), zoneID)
}

// WouldOverlap reports whether candidate overlaps any config of the zone other
// than excludeID.
func (s *PricingService) WouldOverlap(ctx context.Context, zoneID int64, candidate interval.Interval, excludeID *uuid.UUID) (bool, error) {
	return wouldOverlap(ctx, s.prices, zoneID, candidate, excludeID)
}

func wouldOverlap(ctx context.Context, prices repository.PriceConfigRepository, zoneID int64, candidate interval.Interval, excludeID *uuid.UUID) (bool, error) {
	configs, err := prices.ListByZone(ctx, zoneID)
	if err != nil {
		return false, err
	}
	for _, c := range configs {
		if excludeID != nil && c.ID == *excludeID {
			continue
		}
		if interval.Overlaps(candidate, c.Interval()) {
			return true, nil
		}
	}
	return false, nil
}

func (s *PricingService) Create(ctx context.Context, zoneID int64, input PriceConfigInput, actorID *uuid.UUID) (*model.PriceConfig, error) {
	if err := input.check(); err != nil {
		return nil, err
	}

	cfg := &model.PriceConfig{ZoneID: zoneID, CreatedBy: actorID}
	input.apply(cfg)

	err := s.prices.WithZoneLock(ctx, zoneID, func(tx repository.PriceConfigRepository) error {
		overlap, err := wouldOverlap(ctx, tx, zoneID, cfg.Interval(), nil)
		if err != nil {
			return err
		}
		if overlap {
			return ErrOverlappingPeriod
		}
		return tx.Create(ctx, cfg)
	})
	if err != nil {
		return nil, s.mutationError(err, zoneID)
	}

	s.log.Info().
		Int64("zone_id", zoneID).
		Str("price_config_id", cfg.ID.String()).
		Time("valid_from", cfg.ValidFrom).
		Msg("price config created")
	return cfg, nil
}

func (s *PricingService) Update(ctx context.Context, id uuid.UUID, input PriceConfigInput) (*model.PriceConfig, error) {
	if err := input.check(); err != nil {
		return nil, err
	}

	existing, err := s.prices.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "price config")
	}

	var updated *model.PriceConfig
	err = s.prices.WithZoneLock(ctx, existing.ZoneID, func(tx repository.PriceConfigRepository) error {
		current, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		input.apply(current)

		overlap, err := wouldOverlap(ctx, tx, current.ZoneID, current.Interval(), &current.ID)
		if err != nil {
			return err
		}
		if overlap {
			return ErrOverlappingPeriod
		}
		if err := tx.Update(ctx, current); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, s.mutationError(err, existing.ZoneID)
	}
	return updated, nil
}

// Delete removes a config that is not in effect now.
func (s *PricingService) Delete(ctx context.Context, id uuid.UUID) error {
	existing, err := s.prices.GetByID(ctx, id)
	if err != nil {
		return notFound(err, "price config")
	}

	err = s.prices.WithZoneLock(ctx, existing.ZoneID, func(tx repository.PriceConfigRepository) error {
		current, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if current.Interval().Contains(s.now()) {
			return ErrCannotDeleteCurrent
		}
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return s.mutationError(err, existing.ZoneID)
	}

	s.log.Info().
		Int64("zone_id", existing.ZoneID).
		Str("price_config_id", id.String()).
		Msg("price config deleted")
	return nil
}

// History lists the zone's configs, newest ValidFrom first.
func (s *PricingService) History(ctx context.Context, zoneID int64) ([]model.PriceConfig, error) {
	if _, err := s.zones.GetByID(ctx, zoneID); err != nil {
		return nil, notFound(err, "zone")
	}
	return s.prices.ListByZone(ctx, zoneID)
}

func (s *PricingService) mutationError(err error, zoneID int64) error {
	switch {
	case errors.Is(err, ErrOverlappingPeriod), errors.Is(err, repository.ErrOverlap):
		return fmt.Errorf("%w: zone %d", ErrOverlappingPeriod, zoneID)
	case errors.Is(err, ErrCannotDeleteCurrent):
		return err
	case errors.Is(err, repository.ErrReferenced):
		return ErrPriceConfigInUse
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: zone %d or price config", ErrNotFound, zoneID)
	default:
		return err
	}
}
