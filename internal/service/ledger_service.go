package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"permit-service/internal/model"
	"permit-service/internal/repository"
)

// LedgerService is the append-only permit ledger.
type LedgerService struct {
	permits repository.PermitRepository
	log     zerolog.Logger
}

func NewLedgerService(permits repository.PermitRepository, log zerolog.Logger) *LedgerService {
	return &LedgerService{permits: permits, log: log}
}

// ActiveByPlate returns the COMPLETED permit of the plate whose window
// contains at. When several match, the most recently created wins.
func (s *LedgerService) ActiveByPlate(ctx context.Context, rawPlate string, at time.Time) (*model.Permit, error) {
	plate, ok := model.ParsePlate(rawPlate)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPlate, rawPlate)
	}

	permits, err := s.permits.ListActiveByPlate(ctx, plate, at)
	if err != nil {
		return nil, err
	}
	if len(permits) == 0 {
		return nil, fmt.Errorf("%w: no active permit for %s", ErrNotFound, plate)
	}
	if len(permits) > 1 {
		s.log.Warn().
			Str("plate", plate).
			Time("at", at).
			Int("active_permits", len(permits)).
			Str("chosen_permit_id", permits[0].ID.String()).
			Msg("multiple active permits for plate")
	}
	return &permits[0], nil
}

// LatestByPlate returns the newest permit of the plate in any status.
func (s *LedgerService) LatestByPlate(ctx context.Context, rawPlate string) (*model.Permit, error) {
	plate, ok := model.ParsePlate(rawPlate)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPlate, rawPlate)
	}
	permit, err := s.permits.LatestByPlate(ctx, plate)
	if err != nil {
		return nil, notFound(err, "permit")
	}
	return permit, nil
}

func (s *LedgerService) HistoryByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Permit, error) {
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", ErrInvalidInput)
	}
	return s.permits.ListByUser(ctx, userID, limit, offset)
}

// Append stores a new permit. repository.ErrDuplicate is returned unchanged
// on a transaction code clash so the caller can retry with a fresh code.
func (s *LedgerService) Append(ctx context.Context, permit *model.Permit) error {
	if !model.ValidDuration(permit.DurationHours) {
		return fmt.Errorf("%w: %d hours", ErrInvalidDuration, permit.DurationHours)
	}
	if !permit.EndTime.After(permit.StartTime) {
		return fmt.Errorf("%w: end time must be after start time", ErrInvalidInput)
	}
	if !permit.PaymentStatus.Valid() {
		return fmt.Errorf("%w: payment status %q", ErrInvalidInput, permit.PaymentStatus)
	}
	if permit.Amount.IsNegative() {
		return fmt.Errorf("%w: negative amount", ErrInvalidPrices)
	}
	return s.permits.Create(ctx, permit)
}

func (s *LedgerService) Get(ctx context.Context, id uuid.UUID) (*model.Permit, error) {
	permit, err := s.permits.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "permit")
	}
	return permit, nil
}

func (s *LedgerService) GetByCode(ctx context.Context, code string) (*model.Permit, error) {
	permit, err := s.permits.GetByTransactionCode(ctx, code)
	if err != nil {
		return nil, notFound(err, "permit")
	}
	return permit, nil
}

// SetStatus applies a payment status transition and records it in the status
// log. A concurrent change of the same permit surfaces as
// ErrInvalidStatusTransition.
func (s *LedgerService) SetStatus(ctx context.Context, id uuid.UUID, target model.PaymentStatus, note string, actorID *uuid.UUID) (*model.Permit, error) {
	permit, err := s.permits.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "permit")
	}

	prev := permit.PaymentStatus
	if !prev.CanTransitionTo(target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, prev, target)
	}

	err = s.permits.UpdateStatus(ctx, id, prev, target, &model.PermitStatusLog{
		OldStatus: &prev,
		NewStatus: target,
		Note:      note,
		ChangedBy: actorID,
	})
	if errors.Is(err, repository.ErrStale) {
		return nil, fmt.Errorf("%w: permit changed concurrently", ErrInvalidStatusTransition)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("permit_id", id.String()).
		Str("from", string(prev)).
		Str("to", string(target)).
		Msg("permit status changed")
	return s.Get(ctx, id)
}
