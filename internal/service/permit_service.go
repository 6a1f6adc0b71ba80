package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"permit-service/internal/model"
	"permit-service/internal/repository"
)

const (
	defaultTxCodePrefix   = "ZA"
	defaultTxCodeAttempts = 5
)

type PermitOptions struct {
	TxCodePrefix   string
	TxCodeAttempts int
}

// PermitService issues permits: it prices the request against the zone's
// current config and appends the result to the ledger.
type PermitService struct {
	zones    repository.ZoneRepository
	vehicles *VehicleService
	pricing  *PricingService
	ledger   *LedgerService
	log      zerolog.Logger

	now         func() time.Time
	newCode     func(time.Time) string
	maxAttempts int
}

func NewPermitService(
	zones repository.ZoneRepository,
	vehicles *VehicleService,
	pricing *PricingService,
	ledger *LedgerService,
	opts PermitOptions,
	log zerolog.Logger,
) *PermitService {
	prefix := opts.TxCodePrefix
	if prefix == "" {
		prefix = defaultTxCodePrefix
	}
	attempts := opts.TxCodeAttempts
	if attempts <= 0 {
		attempts = defaultTxCodeAttempts
	}
	return &PermitService{
		zones:       zones,
		vehicles:    vehicles,
		pricing:     pricing,
		ledger:      ledger,
		log:         log,
		now:         time.Now,
		newCode:     TransactionCodeGenerator(prefix),
		maxAttempts: attempts,
	}
}

// TransactionCodeGenerator returns codes shaped prefix + YYYYMMDD + four
// random digits, e.g. ZA202406011234.
func TransactionCodeGenerator(prefix string) func(time.Time) string {
	prefix = strings.ToUpper(prefix)
	return func(at time.Time) string {
		return fmt.Sprintf("%s%s%04d", prefix, at.UTC().Format("20060102"), rand.Intn(10000))
	}
}

type PurchaseInput struct {
	Plate         string              `json:"plate" validate:"required"`
	VehicleModel  string              `json:"vehicleModel" validate:"max=128"`
	ZoneID        int64               `json:"zoneId" validate:"required,gt=0"`
	DurationHours int                 `json:"durationHours"`
	PaymentMethod model.PaymentMethod `json:"paymentMethod" validate:"required"`
}

// Purchase issues a COMPLETED permit starting now. Validation, zone and price
// lookups all happen before the first write.
func (s *PermitService) Purchase(ctx context.Context, input PurchaseInput, actingUserID *uuid.UUID) (*model.Permit, error) {
	plate, ok := model.ParsePlate(input.Plate)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPlate, input.Plate)
	}
	if !model.ValidDuration(input.DurationHours) {
		return nil, fmt.Errorf("%w: %d hours", ErrInvalidDuration, input.DurationHours)
	}
	if err := validateStruct(input, ErrInvalidInput); err != nil {
		return nil, err
	}
	if !input.PaymentMethod.Valid() {
		return nil, fmt.Errorf("%w: payment method %q", ErrInvalidInput, input.PaymentMethod)
	}

	zone, err := s.zones.GetByID(ctx, input.ZoneID)
	if err != nil {
		return nil, notFound(err, "zone")
	}
	if !zone.Active {
		return nil, fmt.Errorf("%w: zone %d", ErrZoneInactive, zone.ID)
	}

	start := s.now().UTC()
	end := start.Add(time.Duration(input.DurationHours) * time.Hour)

	cfg, err := s.pricing.GetCurrent(ctx, zone.ID, start)
	if err != nil {
		return nil, err
	}
	amount, ok := cfg.PriceFor(input.DurationHours)
	if !ok {
		return nil, fmt.Errorf("%w: %d hours", ErrInvalidDuration, input.DurationHours)
	}

	vehicle, err := s.vehicles.Resolve(ctx, plate, strings.TrimSpace(input.VehicleModel), actingUserID)
	if err != nil {
		return nil, err
	}

	permit := &model.Permit{
		VehicleID:     vehicle.ID,
		ZoneID:        zone.ID,
		PriceConfigID: cfg.ID,
		UserID:        actingUserID,
		DurationHours: input.DurationHours,
		StartTime:     start,
		EndTime:       end,
		Amount:        amount,
		// Payment capture is not integrated; purchases settle immediately.
		PaymentStatus: model.PaymentStatusCompleted,
		PaymentMethod: input.PaymentMethod,
	}

	if err := s.appendWithFreshCode(ctx, permit); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("permit_id", permit.ID.String()).
		Str("plate", plate).
		Int64("zone_id", zone.ID).
		Int("duration_hours", permit.DurationHours).
		Str("amount", permit.Amount.StringFixed(2)).
		Str("transaction_code", permit.TransactionCode).
		Msg("permit issued")

	return s.ledger.Get(ctx, permit.ID)
}

func (s *PermitService) appendWithFreshCode(ctx context.Context, permit *model.Permit) error {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		permit.TransactionCode = s.newCode(permit.StartTime)
		err := s.ledger.Append(ctx, permit)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return err
		}
		s.log.Warn().
			Int("attempt", attempt).
			Str("transaction_code", permit.TransactionCode).
			Msg("transaction code collision")
		permit.ID = uuid.Nil
	}
	return fmt.Errorf("%w: %d attempts", ErrTransactionCodeExhausted, s.maxAttempts)
}
