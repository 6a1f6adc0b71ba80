package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"permit-service/internal/model"
	"permit-service/internal/repository"
)

type ZoneService struct {
	zones   repository.ZoneRepository
	pricing *PricingService
	log     zerolog.Logger
	now     func() time.Time
}

func NewZoneService(zones repository.ZoneRepository, pricing *PricingService, log zerolog.Logger) *ZoneService {
	return &ZoneService{
		zones:   zones,
		pricing: pricing,
		log:     log,
		now:     time.Now,
	}
}

type ZoneInput struct {
	Name        string `json:"name" validate:"required,max=128"`
	Description string `json:"description"`
	Active      *bool  `json:"active"`
}

func (s *ZoneService) Create(ctx context.Context, input ZoneInput) (*model.Zone, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := validateStruct(input, ErrInvalidInput); err != nil {
		return nil, err
	}

	zone := &model.Zone{
		Name:        input.Name,
		Description: strings.TrimSpace(input.Description),
		Active:      true,
	}
	if input.Active != nil {
		zone.Active = *input.Active
	}
	if err := s.zones.Create(ctx, zone); err != nil {
		return nil, err
	}

	s.log.Info().Int64("zone_id", zone.ID).Str("name", zone.Name).Msg("zone created")
	return zone, nil
}

// Update replaces name and description. Deactivation leaves past permits
// untouched; it only blocks new purchases.
func (s *ZoneService) Update(ctx context.Context, id int64, input ZoneInput) (*model.Zone, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := validateStruct(input, ErrInvalidInput); err != nil {
		return nil, err
	}

	zone, err := s.zones.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "zone")
	}
	zone.Name = input.Name
	zone.Description = strings.TrimSpace(input.Description)
	if input.Active != nil {
		zone.Active = *input.Active
	}
	if err := s.zones.Update(ctx, zone); err != nil {
		return nil, notFound(err, "zone")
	}
	return zone, nil
}

func (s *ZoneService) Get(ctx context.Context, id int64) (*model.Zone, error) {
	zone, err := s.zones.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "zone")
	}
	return zone, nil
}

func (s *ZoneService) List(ctx context.Context, activeOnly bool) ([]model.Zone, error) {
	return s.zones.List(ctx, activeOnly)
}

// ListWithCurrentPrice pairs each zone with the config in effect now. Zones
// without one get a nil price.
func (s *ZoneService) ListWithCurrentPrice(ctx context.Context, activeOnly bool) ([]model.ZoneWithPrice, error) {
	zones, err := s.zones.List(ctx, activeOnly)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]model.ZoneWithPrice, 0, len(zones))
	for _, zone := range zones {
		cfg, err := s.pricing.GetCurrent(ctx, zone.ID, now)
		if err != nil && !errors.Is(err, ErrNoPriceConfig) {
			return nil, err
		}
		out = append(out, model.ZoneWithPrice{Zone: zone, CurrentPrice: cfg})
	}
	return out, nil
}
