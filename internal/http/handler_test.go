package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permit-service/internal/auth"
	"permit-service/internal/model"
	"permit-service/internal/repository/repotest"
	"permit-service/internal/service"
)

const testSecret = "handler-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	store  *repotest.Store
}

func newTestServer(t *testing.T, health func(context.Context) error) *testServer {
	t.Helper()

	log := zerolog.New(io.Discard)
	store := repotest.NewStore()

	pricing := service.NewPricingService(store.Zones(), store.Prices(), log)
	zones := service.NewZoneService(store.Zones(), pricing, log)
	vehicles := service.NewVehicleService(store.Vehicles(), log)
	ledger := service.NewLedgerService(store.Permits(), log)
	permits := service.NewPermitService(store.Zones(), vehicles, pricing, ledger, service.PermitOptions{}, log)
	fiscal := service.NewFiscalService(store.Fiscal(), vehicles, ledger, service.FiscalOptions{MaxEvidence: 5}, log)

	handler := NewHandler(zones, pricing, ledger, permits, vehicles, fiscal, log)
	router := NewRouter(handler, auth.NewParser(testSecret), RouterConfig{
		Environment: "test",
		HealthCheck: health,
	}, log)

	return &testServer{router: router, store: store}
}

func bearer(t *testing.T, userID uuid.UUID, role model.UserRole) string {
	t.Helper()
	claims := auth.Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func mustDecimal(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	require.NoError(t, err)
	return d
}

func priceBody(validFrom time.Time) gin.H {
	return gin.H{
		"validFrom":   validFrom.UTC().Format(time.RFC3339),
		"hour1Price":  "3.50",
		"hour2Price":  "6.00",
		"hour3Price":  "8.00",
		"hour4Price":  "10.00",
		"hour5Price":  "12.00",
		"hour6Price":  "13.50",
		"hour12Price": "20.00",
	}
}

// seedZone creates a zone with a price table that has been valid since
// yesterday.
func (s *testServer) seedZone(t *testing.T, admin string) (int64, uuid.UUID) {
	t.Helper()

	code, env := s.do(t, http.MethodPost, "/api/v1/zones", admin, gin.H{"name": "Centro"})
	require.Equal(t, http.StatusCreated, code, env.Error)
	zone := decode[model.Zone](t, env.Data)

	code, env = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/zones/%d/prices", zone.ID), admin,
		priceBody(time.Now().Add(-24*time.Hour)))
	require.Equal(t, http.StatusCreated, code, env.Error)
	cfg := decode[model.PriceConfig](t, env.Data)

	return zone.ID, cfg.ID
}

func TestPurchaseAndVerifyFlow(t *testing.T) {
	s := newTestServer(t, nil)
	admin := bearer(t, uuid.New(), model.UserRoleAdmin)
	agent := bearer(t, uuid.New(), model.UserRoleFiscal)
	zoneID, _ := s.seedZone(t, admin)

	code, env := s.do(t, http.MethodPost, "/api/v1/permits", "", gin.H{
		"plate":         "abc-1234",
		"zoneId":        zoneID,
		"durationHours": 2,
		"paymentMethod": "pix",
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	permit := decode[model.Permit](t, env.Data)
	assert.Equal(t, model.PaymentStatusCompleted, permit.PaymentStatus)
	assert.Equal(t, model.PaymentMethodPix, permit.PaymentMethod)
	assert.True(t, permit.Amount.Equal(mustDecimal(t, "6.00")))
	assert.True(t, strings.HasPrefix(permit.TransactionCode, "ZA"))
	assert.Len(t, permit.TransactionCode, 14)
	assert.Nil(t, permit.UserID)

	code, env = s.do(t, http.MethodGet, "/api/v1/permits/active?plate=ABC1234", "", nil)
	require.Equal(t, http.StatusOK, code)
	active := decode[struct {
		Active bool          `json:"active"`
		Permit *model.Permit `json:"permit"`
	}](t, env.Data)
	assert.True(t, active.Active)
	require.NotNil(t, active.Permit)
	assert.Equal(t, permit.ID, active.Permit.ID)

	code, env = s.do(t, http.MethodGet, "/api/v1/permits/code/"+permit.TransactionCode, "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, permit.ID, decode[model.Permit](t, env.Data).ID)

	code, env = s.do(t, http.MethodPost, "/api/v1/fiscal/verify", agent, gin.H{"plate": "ABC 1234"})
	require.Equal(t, http.StatusOK, code, env.Error)
	outcome := decode[model.VerificationOutcome](t, env.Data)
	assert.Equal(t, model.VerificationValid, outcome.Status)
	assert.Equal(t, "ABC1234", outcome.Plate)

	code, env = s.do(t, http.MethodPost, "/api/v1/fiscal/verify", agent, gin.H{"plate": "XYZ9876"})
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, model.VerificationNotFound, decode[model.VerificationOutcome](t, env.Data).Status)
	assert.Equal(t, 2, s.store.ActionCount())
}

func TestPurchaseLinksAuthenticatedUser(t *testing.T) {
	s := newTestServer(t, nil)
	zoneID, _ := s.seedZone(t, bearer(t, uuid.New(), model.UserRoleAdmin))
	userID := uuid.New()
	citizen := bearer(t, userID, model.UserRoleCitizen)

	code, env := s.do(t, http.MethodPost, "/api/v1/permits", citizen, gin.H{
		"plate":         "BRA2E19",
		"vehicleModel":  "Onix",
		"zoneId":        zoneID,
		"durationHours": 12,
		"paymentMethod": "CREDIT_CARD",
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	permit := decode[model.Permit](t, env.Data)
	require.NotNil(t, permit.UserID)
	assert.Equal(t, userID, *permit.UserID)

	code, env = s.do(t, http.MethodGet, "/api/v1/me/permits", citizen, nil)
	require.Equal(t, http.StatusOK, code)
	list := decode[struct {
		Items []model.Permit `json:"items"`
	}](t, env.Data)
	require.Len(t, list.Items, 1)
	assert.Equal(t, permit.ID, list.Items[0].ID)

	code, env = s.do(t, http.MethodGet, "/api/v1/me/vehicles", citizen, nil)
	require.Equal(t, http.StatusOK, code)
	vehicles := decode[struct {
		Items []model.Vehicle `json:"items"`
	}](t, env.Data)
	require.Len(t, vehicles.Items, 1)
	assert.Equal(t, "BRA2E19", vehicles.Items[0].Plate)

	code, _ = s.do(t, http.MethodPut, "/api/v1/me/vehicles/BRA2E19", bearer(t, uuid.New(), model.UserRoleCitizen),
		gin.H{"model": "Other"})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestPurchaseRejections(t *testing.T) {
	s := newTestServer(t, nil)
	zoneID, _ := s.seedZone(t, bearer(t, uuid.New(), model.UserRoleAdmin))

	tests := []struct {
		name   string
		body   gin.H
		status int
	}{
		{"invalid plate", gin.H{"plate": "AB12", "zoneId": zoneID, "durationHours": 2, "paymentMethod": "PIX"}, http.StatusBadRequest},
		{"invalid duration", gin.H{"plate": "ABC1234", "zoneId": zoneID, "durationHours": 7, "paymentMethod": "PIX"}, http.StatusBadRequest},
		{"unknown payment method", gin.H{"plate": "ABC1234", "zoneId": zoneID, "durationHours": 2, "paymentMethod": "BARTER"}, http.StatusBadRequest},
		{"unknown zone", gin.H{"plate": "ABC1234", "zoneId": 999, "durationHours": 2, "paymentMethod": "PIX"}, http.StatusNotFound},
		{"malformed body", gin.H{"plate": 12}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := s.do(t, http.MethodPost, "/api/v1/permits", "", tt.body)
			assert.Equal(t, tt.status, code)
			assert.NotEmpty(t, env.Error)
		})
	}
	assert.Equal(t, 0, s.store.PermitCount())
	assert.Equal(t, 0, s.store.VehicleCount())
}

func TestActivePermitLookup(t *testing.T) {
	s := newTestServer(t, nil)
	zoneID, _ := s.seedZone(t, bearer(t, uuid.New(), model.UserRoleAdmin))

	code, env := s.do(t, http.MethodGet, "/api/v1/permits/active?plate=ZZZ9999", "", nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	unseen := decode[struct {
		Active bool          `json:"active"`
		Permit *model.Permit `json:"permit"`
	}](t, env.Data)
	assert.False(t, unseen.Active)
	assert.Nil(t, unseen.Permit)

	code, env = s.do(t, http.MethodPost, "/api/v1/permits", "", gin.H{
		"plate": "ABC1234", "zoneId": zoneID, "durationHours": 1, "paymentMethod": "PIX",
	})
	require.Equal(t, http.StatusCreated, code, env.Error)

	future := time.Now().Add(3 * time.Hour).UTC().Format(time.RFC3339)
	code, env = s.do(t, http.MethodGet, "/api/v1/permits/active?plate=ABC1234&at="+future, "", nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Contains(t, string(env.Data), `"active":false`)

	code, env = s.do(t, http.MethodGet, "/api/v1/permits/active?plate=AB12", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.NotEmpty(t, env.Error)

	code, _ = s.do(t, http.MethodGet, "/api/v1/permits/active", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestPriceConfigAdministration(t *testing.T) {
	s := newTestServer(t, nil)
	admin := bearer(t, uuid.New(), model.UserRoleManager)
	zoneID, priceID := s.seedZone(t, admin)

	code, env := s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/zones/%d/prices", zoneID), admin,
		priceBody(time.Now().Add(48*time.Hour)))
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, env.Error, "overlap")

	code, env = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/zones/%d/prices/current", zoneID), admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, priceID, decode[model.PriceConfig](t, env.Data).ID)

	code, _ = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/zones/%d/prices/current?at=2001-01-01T00:00:00Z", zoneID), admin, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/zones/%d/prices/current?at=yesterday", zoneID), admin, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodDelete, "/api/v1/prices/"+priceID.String(), admin, nil)
	assert.Equal(t, http.StatusConflict, code)

	bad := priceBody(time.Now().Add(-24 * time.Hour))
	bad["hour6Price"] = "-1"
	code, _ = s.do(t, http.MethodPut, "/api/v1/prices/"+priceID.String(), admin, bad)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/zones/%d/prices", zoneID), admin, nil)
	require.Equal(t, http.StatusOK, code)
	history := decode[struct {
		Items []model.PriceConfig `json:"items"`
	}](t, env.Data)
	assert.Len(t, history.Items, 1)

	code, env = s.do(t, http.MethodGet, "/api/v1/zones", "", nil)
	require.Equal(t, http.StatusOK, code)
	zones := decode[struct {
		Items []model.ZoneWithPrice `json:"items"`
	}](t, env.Data)
	require.Len(t, zones.Items, 1)
	require.NotNil(t, zones.Items[0].CurrentPrice)
	assert.Equal(t, priceID, zones.Items[0].CurrentPrice.ID)
}

func TestRoleGates(t *testing.T) {
	s := newTestServer(t, nil)
	citizen := bearer(t, uuid.New(), model.UserRoleCitizen)
	agent := bearer(t, uuid.New(), model.UserRoleFiscal)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"anonymous me", http.MethodGet, "/api/v1/me/permits", "", http.StatusUnauthorized},
		{"anonymous verify", http.MethodPost, "/api/v1/fiscal/verify", "", http.StatusUnauthorized},
		{"citizen verify", http.MethodPost, "/api/v1/fiscal/verify", citizen, http.StatusForbidden},
		{"citizen creates zone", http.MethodPost, "/api/v1/zones", citizen, http.StatusForbidden},
		{"agent creates zone", http.MethodPost, "/api/v1/zones", agent, http.StatusForbidden},
		{"agent changes permit status", http.MethodPut, "/api/v1/permits/" + uuid.NewString() + "/status", agent, http.StatusForbidden},
		{"invalid token on public route", http.MethodGet, "/api/v1/zones", "Bearer broken", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := s.do(t, tt.method, tt.path, tt.token, gin.H{})
			assert.Equal(t, tt.status, code)
		})
	}
}

func TestPermitStatusEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	admin := bearer(t, uuid.New(), model.UserRoleAdmin)
	zoneID, _ := s.seedZone(t, admin)

	code, env := s.do(t, http.MethodPost, "/api/v1/permits", "", gin.H{
		"plate": "ABC1234", "zoneId": zoneID, "durationHours": 1, "paymentMethod": "CASH",
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	permit := decode[model.Permit](t, env.Data)

	path := "/api/v1/permits/" + permit.ID.String() + "/status"
	code, _ = s.do(t, http.MethodPut, path, admin, gin.H{"status": "pending"})
	assert.Equal(t, http.StatusConflict, code)

	code, env = s.do(t, http.MethodPut, path, admin, gin.H{"status": "refunded", "note": "customer request"})
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, model.PaymentStatusRefunded, decode[model.Permit](t, env.Data).PaymentStatus)

	code, env = s.do(t, http.MethodGet, "/api/v1/permits/active?plate=ABC1234", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"active":false`)

	code, _ = s.do(t, http.MethodPut, "/api/v1/permits/not-a-uuid/status", admin, gin.H{"status": "REFUNDED"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestInfringementEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	agentID := uuid.New()
	agent := bearer(t, agentID, model.UserRoleFiscal)
	otherAgent := bearer(t, uuid.New(), model.UserRoleFiscal)
	manager := bearer(t, uuid.New(), model.UserRoleManager)

	code, env := s.do(t, http.MethodPost, "/api/v1/fiscal/infringements", agent, gin.H{
		"plate":            "QWE4R56",
		"infringementType": "no_permit",
		"evidence":         []string{"https://cdn.example.com/a.jpg"},
		"coordinates":      gin.H{"latitude": -23.55, "longitude": -46.63},
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	infringement := decode[model.Infringement](t, env.Data)
	assert.Equal(t, model.InfringementStatusRegistered, infringement.Status)

	path := "/api/v1/fiscal/infringements/" + infringement.ID.String()
	code, _ = s.do(t, http.MethodGet, path, otherAgent, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodGet, path, manager, nil)
	assert.Equal(t, http.StatusOK, code)

	code, env = s.do(t, http.MethodPut, path+"/status", agent, gin.H{"status": "NOTIFIED"})
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, model.InfringementStatusNotified, decode[model.Infringement](t, env.Data).Status)

	code, _ = s.do(t, http.MethodPut, path+"/status", agent, gin.H{"status": "PAID"})
	assert.Equal(t, http.StatusConflict, code)

	code, env = s.do(t, http.MethodGet, "/api/v1/fiscal/infringements?status=notified&plate=qwe-4r56", agent, nil)
	require.Equal(t, http.StatusOK, code)
	list := decode[struct {
		Items []model.Infringement `json:"items"`
	}](t, env.Data)
	assert.Len(t, list.Items, 1)

	code, env = s.do(t, http.MethodGet, "/api/v1/fiscal/infringements", otherAgent, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[struct {
		Items []model.Infringement `json:"items"`
	}](t, env.Data).Items, 0)

	code, _ = s.do(t, http.MethodGet, "/api/v1/fiscal/actions?dateFrom=nope", agent, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.do(t, http.MethodPost, "/api/v1/fiscal/patrols", agent, gin.H{
		"coordinates": gin.H{"latitude": -23.55, "longitude": -46.63},
	})
	require.Equal(t, http.StatusCreated, code, env.Error)

	code, env = s.do(t, http.MethodGet, "/api/v1/fiscal/actions?actionType=patrol,infringement", agent, nil)
	require.Equal(t, http.StatusOK, code)
	actions := decode[struct {
		Items []model.FiscalAction `json:"items"`
	}](t, env.Data)
	assert.Len(t, actions.Items, 2)
}

func TestHealthz(t *testing.T) {
	code, env := newTestServer(t, nil).do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, env.Error)

	failing := newTestServer(t, func(context.Context) error { return errors.New("db down") })
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	failing.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
