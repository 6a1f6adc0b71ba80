package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"permit-service/internal/model"
	"permit-service/internal/repository"
)

type FiscalOptions struct {
	MaxEvidence int
}

// FiscalService records field verifications and infringements.
type FiscalService struct {
	fiscal      repository.FiscalRepository
	vehicles    *VehicleService
	ledger      *LedgerService
	log         zerolog.Logger
	now         func() time.Time
	maxEvidence int
}

func NewFiscalService(
	fiscal repository.FiscalRepository,
	vehicles *VehicleService,
	ledger *LedgerService,
	opts FiscalOptions,
	log zerolog.Logger,
) *FiscalService {
	return &FiscalService{
		fiscal:      fiscal,
		vehicles:    vehicles,
		ledger:      ledger,
		log:         log,
		now:         time.Now,
		maxEvidence: opts.MaxEvidence,
	}
}

type VerifyInput struct {
	Plate       string             `json:"plate" validate:"required"`
	CheckTime   *time.Time         `json:"checkTime"`
	Coordinates *model.Coordinates `json:"coordinates"`
}

// Verify classifies the plate at the check time and always records the
// attempt, whatever the outcome.
func (s *FiscalService) Verify(ctx context.Context, fiscalUserID uuid.UUID, input VerifyInput) (*model.VerificationOutcome, error) {
	plate, ok := model.ParsePlate(input.Plate)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPlate, input.Plate)
	}
	if err := checkCoordinates(input.Coordinates); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	checkTime := now
	if input.CheckTime != nil {
		checkTime = *input.CheckTime
	}

	result, permit, err := s.classify(ctx, plate, checkTime)
	if err != nil {
		return nil, err
	}

	action := &model.FiscalAction{
		FiscalUserID: fiscalUserID,
		Plate:        plate,
		ActionType:   model.FiscalActionVerification,
		PerformedAt:  now,
	}
	action.SetCoordinates(input.Coordinates)

	verification := &model.Verification{Result: result}
	if permit != nil {
		verification.PermitID = &permit.ID
	}

	if err := s.fiscal.CreateVerification(ctx, action, verification); err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("plate", plate).
		Str("result", string(result)).
		Str("fiscal_user_id", fiscalUserID.String()).
		Msg("plate verified")

	return &model.VerificationOutcome{
		Status:         result,
		Plate:          plate,
		Permit:         permit,
		FiscalActionID: action.ID.String(),
	}, nil
}

// classify returns VALID with the active permit, EXPIRED when the plate has
// any permit that does not cover at, and NOT_FOUND otherwise.
func (s *FiscalService) classify(ctx context.Context, plate string, at time.Time) (model.VerificationResult, *model.Permit, error) {
	permit, err := s.ledger.ActiveByPlate(ctx, plate, at)
	if err == nil {
		return model.VerificationValid, permit, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", nil, err
	}

	_, err = s.ledger.LatestByPlate(ctx, plate)
	switch {
	case err == nil:
		return model.VerificationExpired, nil, nil
	case errors.Is(err, ErrNotFound):
		return model.VerificationNotFound, nil, nil
	default:
		return "", nil, err
	}
}

type InfringementInput struct {
	Plate       string                 `json:"plate" validate:"required"`
	Type        model.InfringementType `json:"infringementType" validate:"required"`
	Notes       string                 `json:"notes" validate:"max=2000"`
	Evidence    []string               `json:"evidence" validate:"dive,required,max=512"`
	Coordinates *model.Coordinates     `json:"coordinates"`
}

// RegisterInfringement files an infringement for the plate, registering the
// vehicle if it is unknown. It is not tied to a prior verification.
func (s *FiscalService) RegisterInfringement(ctx context.Context, fiscalUserID uuid.UUID, input InfringementInput) (*model.Infringement, error) {
	plate, ok := model.ParsePlate(input.Plate)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPlate, input.Plate)
	}
	if err := validateStruct(input, ErrInvalidInput); err != nil {
		return nil, err
	}
	if !input.Type.Valid() {
		return nil, fmt.Errorf("%w: infringement type %q", ErrInvalidInput, input.Type)
	}
	if s.maxEvidence > 0 && len(input.Evidence) > s.maxEvidence {
		return nil, fmt.Errorf("%w: at most %d evidence references", ErrInvalidInput, s.maxEvidence)
	}
	if err := checkCoordinates(input.Coordinates); err != nil {
		return nil, err
	}

	vehicle, err := s.vehicles.Resolve(ctx, plate, "", nil)
	if err != nil {
		return nil, err
	}

	action := &model.FiscalAction{
		FiscalUserID: fiscalUserID,
		Plate:        plate,
		ActionType:   model.FiscalActionInfringement,
		PerformedAt:  s.now().UTC(),
	}
	action.SetCoordinates(input.Coordinates)

	evidence := make([]string, 0, len(input.Evidence))
	for _, ref := range input.Evidence {
		evidence = append(evidence, strings.TrimSpace(ref))
	}

	infringement := &model.Infringement{
		VehicleID: vehicle.ID,
		Type:      input.Type,
		Notes:     strings.TrimSpace(input.Notes),
		Evidence:  datatypes.NewJSONSlice(evidence),
		Status:    model.InfringementStatusRegistered,
	}

	if err := s.fiscal.CreateInfringement(ctx, action, infringement, &model.InfringementStatusLog{
		NewStatus: model.InfringementStatusRegistered,
		Note:      "registered",
		ChangedBy: &fiscalUserID,
	}); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("infringement_id", infringement.ID.String()).
		Str("plate", plate).
		Str("type", string(infringement.Type)).
		Msg("infringement registered")

	return s.fiscal.GetInfringement(ctx, infringement.ID)
}

type PatrolInput struct {
	Plate       string             `json:"plate"`
	Coordinates *model.Coordinates `json:"coordinates"`
}

// RecordPatrol logs a patrol checkpoint. The plate is optional.
func (s *FiscalService) RecordPatrol(ctx context.Context, fiscalUserID uuid.UUID, input PatrolInput) (*model.FiscalAction, error) {
	plate := ""
	if strings.TrimSpace(input.Plate) != "" {
		var ok bool
		if plate, ok = model.ParsePlate(input.Plate); !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPlate, input.Plate)
		}
	}
	if err := checkCoordinates(input.Coordinates); err != nil {
		return nil, err
	}

	action := &model.FiscalAction{
		FiscalUserID: fiscalUserID,
		Plate:        plate,
		ActionType:   model.FiscalActionPatrol,
		PerformedAt:  s.now().UTC(),
	}
	action.SetCoordinates(input.Coordinates)

	if err := s.fiscal.CreateAction(ctx, action); err != nil {
		return nil, err
	}
	return action, nil
}

func (s *FiscalService) GetInfringement(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.Infringement, error) {
	infringement, err := s.fiscal.GetInfringement(ctx, id)
	if err != nil {
		return nil, notFound(err, "infringement")
	}
	if !s.visible(principal, infringement) {
		return nil, fmt.Errorf("%w: infringement", ErrNotFound)
	}
	return infringement, nil
}

// UpdateInfringementStatus moves an infringement along its state machine and
// records the change.
func (s *FiscalService) UpdateInfringementStatus(ctx context.Context, principal model.Principal, id uuid.UUID, target model.InfringementStatus, note string) (*model.Infringement, error) {
	infringement, err := s.GetInfringement(ctx, principal, id)
	if err != nil {
		return nil, err
	}

	prev := infringement.Status
	if !prev.CanTransitionTo(target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, prev, target)
	}

	actor := principal.UserID
	err = s.fiscal.UpdateInfringementStatus(ctx, id, prev, target, &model.InfringementStatusLog{
		OldStatus: &prev,
		NewStatus: target,
		Note:      strings.TrimSpace(note),
		ChangedBy: &actor,
	})
	if errors.Is(err, repository.ErrStale) {
		return nil, fmt.Errorf("%w: infringement changed concurrently", ErrInvalidStatusTransition)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("infringement_id", id.String()).
		Str("from", string(prev)).
		Str("to", string(target)).
		Msg("infringement status changed")

	return s.fiscal.GetInfringement(ctx, id)
}

type InfringementListOptions struct {
	Statuses []model.InfringementStatus
	Types    []model.InfringementType
	Plate    string
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
	Offset   int
}

func (s *FiscalService) ListInfringements(ctx context.Context, principal model.Principal, opts InfringementListOptions) ([]model.Infringement, error) {
	if !principal.CanPatrol() {
		return nil, ErrPermissionDenied
	}
	return s.fiscal.ListInfringements(ctx, repository.InfringementFilter{
		Scope:    model.ScopeFor(principal),
		Statuses: opts.Statuses,
		Types:    opts.Types,
		Plate:    model.NormalizePlate(opts.Plate),
		DateFrom: opts.DateFrom,
		DateTo:   opts.DateTo,
		Limit:    opts.Limit,
		Offset:   opts.Offset,
	})
}

type ActionListOptions struct {
	ActionTypes []model.FiscalActionType
	Plate       string
	DateFrom    *time.Time
	DateTo      *time.Time
	Limit       int
	Offset      int
}

func (s *FiscalService) ListActions(ctx context.Context, principal model.Principal, opts ActionListOptions) ([]model.FiscalAction, error) {
	if !principal.CanPatrol() {
		return nil, ErrPermissionDenied
	}
	return s.fiscal.ListActions(ctx, repository.FiscalActionFilter{
		Scope:       model.ScopeFor(principal),
		ActionTypes: opts.ActionTypes,
		Plate:       model.NormalizePlate(opts.Plate),
		DateFrom:    opts.DateFrom,
		DateTo:      opts.DateTo,
		Limit:       opts.Limit,
		Offset:      opts.Offset,
	})
}

func (s *FiscalService) visible(principal model.Principal, infringement *model.Infringement) bool {
	if infringement.FiscalAction == nil {
		return principal.CanManagePricing()
	}
	return model.ScopeFor(principal).AllowsUser(infringement.FiscalAction.FiscalUserID)
}

func checkCoordinates(c *model.Coordinates) error {
	if c == nil {
		return nil
	}
	if c.Latitude < -90 || c.Latitude > 90 || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: coordinates out of range", ErrInvalidInput)
	}
	return nil
}
