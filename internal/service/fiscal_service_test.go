package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permit-service/internal/model"
)

// scenarioFixture sets up Scenario A: ABC1234 holds a 2h permit in Centro
// from 2024-06-01T10:00.
func scenarioFixture(t *testing.T) (*fixture, *model.Permit) {
	t.Helper()
	f := newFixture(t, date(2024, 6, 1, 10, 0))
	zone := f.zone(t, "Centro")
	f.price(t, zone.ID, date(2024, 1, 1, 0, 0), nil, "5.00")
	permit, err := f.permits.Purchase(context.Background(), purchaseInput("ABC1234", zone.ID, 2), nil)
	require.NoError(t, err)
	return f, permit
}

func TestFiscalService_Verify(t *testing.T) {
	agent := uuid.New()

	tests := []struct {
		name     string
		plate    string
		at       time.Time
		expected model.VerificationResult
	}{
		{"valid inside window", "ABC1234", date(2024, 6, 1, 11, 0), model.VerificationValid},
		{"expired after window", "ABC1234", date(2024, 6, 1, 13, 0), model.VerificationExpired},
		{"expired exactly at end", "abc-1234", date(2024, 6, 1, 12, 0), model.VerificationExpired},
		{"before first permit", "ABC1234", date(2024, 6, 1, 9, 0), model.VerificationExpired},
		{"never seen plate", "ZZZ9999", date(2024, 6, 1, 11, 0), model.VerificationNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, permit := scenarioFixture(t)

			outcome, err := f.fiscal.Verify(context.Background(), agent, VerifyInput{
				Plate:       tt.plate,
				CheckTime:   &tt.at,
				Coordinates: &model.Coordinates{Latitude: -23.55, Longitude: -46.63},
			})

			require.NoError(t, err)
			assert.Equal(t, tt.expected, outcome.Status)
			assert.NotEmpty(t, outcome.FiscalActionID)

			if tt.expected == model.VerificationValid {
				require.NotNil(t, outcome.Permit)
				assert.Equal(t, permit.ID, outcome.Permit.ID)
			} else {
				assert.Nil(t, outcome.Permit)
			}

			assert.Equal(t, 1, f.store.ActionCount())
			verifications := f.store.Verifications()
			require.Len(t, verifications, 1)
			assert.Equal(t, tt.expected, verifications[0].Result)
			assert.Equal(t, outcome.FiscalActionID, verifications[0].FiscalActionID.String())
		})
	}
}

func TestFiscalService_Verify_DefaultsToNow(t *testing.T) {
	f, permit := scenarioFixture(t)
	f.clock.Set(date(2024, 6, 1, 11, 30))

	outcome, err := f.fiscal.Verify(context.Background(), uuid.New(), VerifyInput{Plate: "ABC1234"})

	require.NoError(t, err)
	assert.Equal(t, model.VerificationValid, outcome.Status)
	assert.Equal(t, permit.ID, outcome.Permit.ID)
}

func TestFiscalService_Verify_DoesNotCreateVehicle(t *testing.T) {
	f := newFixture(t, date(2024, 6, 1, 10, 0))

	outcome, err := f.fiscal.Verify(context.Background(), uuid.New(), VerifyInput{Plate: "ZZZ9999"})

	require.NoError(t, err)
	assert.Equal(t, model.VerificationNotFound, outcome.Status)
	assert.Zero(t, f.store.VehicleCount())
}

func TestFiscalService_Verify_Rejects(t *testing.T) {
	f := newFixture(t, date(2024, 6, 1, 10, 0))

	_, err := f.fiscal.Verify(context.Background(), uuid.New(), VerifyInput{Plate: "NOPE"})
	assert.ErrorIs(t, err, ErrInvalidPlate)

	_, err = f.fiscal.Verify(context.Background(), uuid.New(), VerifyInput{
		Plate:       "ABC1234",
		Coordinates: &model.Coordinates{Latitude: 91},
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Zero(t, f.store.ActionCount())
}

func TestFiscalService_RegisterInfringement(t *testing.T) {
	f := newFixture(t, date(2024, 6, 1, 10, 0))
	agent := uuid.New()

	inf, err := f.fiscal.RegisterInfringement(context.Background(), agent, InfringementInput{
		Plate:    "xyz-9876",
		Type:     model.InfringementNoPermit,
		Notes:    " parked on the curb ",
		Evidence: []string{"photos/1.jpg", "photos/2.jpg"},
	})

	require.NoError(t, err)
	assert.Equal(t, model.InfringementStatusRegistered, inf.Status)
	assert.Equal(t, model.InfringementNoPermit, inf.Type)
	assert.Equal(t, "parked on the curb", inf.Notes)
	assert.Equal(t, []string{"photos/1.jpg", "photos/2.jpg"}, []string(inf.Evidence))
	require.NotNil(t, inf.Vehicle)
	assert.Equal(t, "XYZ9876", inf.Vehicle.Plate)
	assert.Nil(t, inf.Vehicle.UserID)
	require.NotNil(t, inf.FiscalAction)
	assert.Equal(t, model.FiscalActionInfringement, inf.FiscalAction.ActionType)
	assert.Equal(t, agent, inf.FiscalAction.FiscalUserID)

	logs := f.store.InfringementLogs()
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].OldStatus)
	assert.Equal(t, model.InfringementStatusRegistered, logs[0].NewStatus)
}

func TestFiscalService_RegisterInfringement_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		input    InfringementInput
		expected error
	}{
		{"invalid plate", InfringementInput{Plate: "X", Type: model.InfringementNoPermit}, ErrInvalidPlate},
		{"missing type", InfringementInput{Plate: "ABC1234"}, ErrInvalidInput},
		{"unknown type", InfringementInput{Plate: "ABC1234", Type: "SPEEDING"}, ErrInvalidInput},
		{"too much evidence", InfringementInput{Plate: "ABC1234", Type: model.InfringementNoPermit, Evidence: []string{"a", "b", "c", "d"}}, ErrInvalidInput},
		{"blank evidence", InfringementInput{Plate: "ABC1234", Type: model.InfringementNoPermit, Evidence: []string{""}}, ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, date(2024, 6, 1, 10, 0))

			_, err := f.fiscal.RegisterInfringement(context.Background(), uuid.New(), tt.input)

			assert.ErrorIs(t, err, tt.expected)
			assert.Zero(t, f.store.ActionCount())
			assert.Zero(t, f.store.VehicleCount())
		})
	}
}

func TestFiscalService_UpdateInfringementStatus(t *testing.T) {
	f := newFixture(t, date(2024, 6, 1, 10, 0))
	agent := model.Principal{UserID: uuid.New(), Role: model.UserRoleFiscal}
	inf, err := f.fiscal.RegisterInfringement(context.Background(), agent.UserID, InfringementInput{
		Plate: "ABC1234",
		Type:  model.InfringementExpiredPermit,
	})
	require.NoError(t, err)

	path := []model.InfringementStatus{
		model.InfringementStatusNotified,
		model.InfringementStatusContested,
		model.InfringementStatusConfirmed,
		model.InfringementStatusPaid,
	}
	for _, next := range path {
		updated, err := f.fiscal.UpdateInfringementStatus(context.Background(), agent, inf.ID, next, "step")
		require.NoError(t, err)
		assert.Equal(t, next, updated.Status)
	}

	_, err = f.fiscal.UpdateInfringementStatus(context.Background(), agent, inf.ID, model.InfringementStatusCancelled, "")
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	assert.Len(t, f.store.InfringementLogs(), 1+len(path))
}

func TestFiscalService_UpdateInfringementStatus_Invalid(t *testing.T) {
	f := newFixture(t, date(2024, 6, 1, 10, 0))
	agent := model.Principal{UserID: uuid.New(), Role: model.UserRoleFiscal}
	inf, err := f.fiscal.RegisterInfringement(context.Background(), agent.UserID, InfringementInput{
		Plate: "ABC1234",
		Type:  model.InfringementNoPermit,
	})
	require.NoError(t, err)

	_, err = f.fiscal.UpdateInfringementStatus(context.Background(), agent, inf.ID, model.InfringementStatusPaid, "")
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	other := model.Principal{UserID: uuid.New(), Role: model.UserRoleFiscal}
	_, err = f.fiscal.UpdateInfringementStatus(context.Background(), other, inf.ID, model.InfringementStatusNotified, "")
	assert.ErrorIs(t, err, ErrNotFound)

	admin := model.Principal{UserID: uuid.New(), Role: model.UserRoleAdmin}
	updated, err := f.fiscal.UpdateInfringementStatus(context.Background(), admin, inf.ID, model.InfringementStatusCancelled, "duplicate")
	require.NoError(t, err)
	assert.Equal(t, model.InfringementStatusCancelled, updated.Status)
	assert.True(t, updated.Status.Terminal())
}

func TestFiscalService_ListScoped(t *testing.T) {
	f := newFixture(t, date(2024, 6, 1, 10, 0))
	alice := model.Principal{UserID: uuid.New(), Role: model.UserRoleFiscal}
	bob := model.Principal{UserID: uuid.New(), Role: model.UserRoleFiscal}
	manager := model.Principal{UserID: uuid.New(), Role: model.UserRoleManager}
	citizen := model.Principal{UserID: uuid.New(), Role: model.UserRoleCitizen}

	_, err := f.fiscal.RegisterInfringement(context.Background(), alice.UserID, InfringementInput{Plate: "ABC1234", Type: model.InfringementNoPermit})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.fiscal.RegisterInfringement(context.Background(), bob.UserID, InfringementInput{Plate: "XYZ9876", Type: model.InfringementExpiredPermit})
	require.NoError(t, err)
	_, err = f.fiscal.Verify(context.Background(), alice.UserID, VerifyInput{Plate: "ABC1234"})
	require.NoError(t, err)
	_, err = f.fiscal.RecordPatrol(context.Background(), bob.UserID, PatrolInput{})
	require.NoError(t, err)

	aliceInfs, err := f.fiscal.ListInfringements(context.Background(), alice, InfringementListOptions{})
	require.NoError(t, err)
	require.Len(t, aliceInfs, 1)
	assert.Equal(t, "ABC1234", aliceInfs[0].Vehicle.Plate)

	all, err := f.fiscal.ListInfringements(context.Background(), manager, InfringementListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	expired, err := f.fiscal.ListInfringements(context.Background(), manager, InfringementListOptions{
		Types: []model.InfringementType{model.InfringementExpiredPermit},
	})
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "XYZ9876", expired[0].Vehicle.Plate)

	byPlate, err := f.fiscal.ListInfringements(context.Background(), manager, InfringementListOptions{Plate: "xyz-9876"})
	require.NoError(t, err)
	assert.Len(t, byPlate, 1)

	aliceActions, err := f.fiscal.ListActions(context.Background(), alice, ActionListOptions{})
	require.NoError(t, err)
	assert.Len(t, aliceActions, 2)

	patrols, err := f.fiscal.ListActions(context.Background(), manager, ActionListOptions{
		ActionTypes: []model.FiscalActionType{model.FiscalActionPatrol},
	})
	require.NoError(t, err)
	require.Len(t, patrols, 1)
	assert.Equal(t, bob.UserID, patrols[0].FiscalUserID)

	_, err = f.fiscal.ListInfringements(context.Background(), citizen, InfringementListOptions{})
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = f.fiscal.ListActions(context.Background(), citizen, ActionListOptions{})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestFiscalService_RecordPatrol(t *testing.T) {
	f := newFixture(t, date(2024, 6, 1, 10, 0))
	agent := uuid.New()

	action, err := f.fiscal.RecordPatrol(context.Background(), agent, PatrolInput{
		Plate:       "abc1234",
		Coordinates: &model.Coordinates{Latitude: -23.5, Longitude: -46.6},
	})

	require.NoError(t, err)
	assert.Equal(t, model.FiscalActionPatrol, action.ActionType)
	assert.Equal(t, "ABC1234", action.Plate)
	require.NotNil(t, action.Latitude)
	assert.Equal(t, -23.5, *action.Latitude)

	_, err = f.fiscal.RecordPatrol(context.Background(), agent, PatrolInput{Plate: "??"})
	assert.ErrorIs(t, err, ErrInvalidPlate)
}
