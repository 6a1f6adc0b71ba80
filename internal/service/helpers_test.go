package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"permit-service/internal/model"
	"permit-service/internal/repository"
	"permit-service/internal/repository/repotest"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	store *repotest.Store
	clock *fakeClock

	pricing  *PricingService
	zones    *ZoneService
	vehicles *VehicleService
	ledger   *LedgerService
	permits  *PermitService
	fiscal   *FiscalService
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()

	log := zerolog.New(io.Discard)
	store := repotest.NewStore()
	clock := newFakeClock(now)
	store.Now = clock.Now

	pricing := NewPricingService(store.Zones(), store.Prices(), log)
	pricing.now = clock.Now
	zones := NewZoneService(store.Zones(), pricing, log)
	zones.now = clock.Now
	vehicles := NewVehicleService(store.Vehicles(), log)
	ledger := NewLedgerService(store.Permits(), log)
	permits := NewPermitService(store.Zones(), vehicles, pricing, ledger, PermitOptions{}, log)
	permits.now = clock.Now
	fiscal := NewFiscalService(store.Fiscal(), vehicles, ledger, FiscalOptions{MaxEvidence: 3}, log)
	fiscal.now = clock.Now

	return &fixture{
		store:    store,
		clock:    clock,
		pricing:  pricing,
		zones:    zones,
		vehicles: vehicles,
		ledger:   ledger,
		permits:  permits,
		fiscal:   fiscal,
	}
}

func (f *fixture) zone(t *testing.T, name string) *model.Zone {
	t.Helper()
	zone, err := f.zones.Create(context.Background(), ZoneInput{Name: name})
	require.NoError(t, err)
	return zone
}

func (f *fixture) price(t *testing.T, zoneID int64, from time.Time, to *time.Time, hour2 string) *model.PriceConfig {
	t.Helper()
	cfg, err := f.pricing.Create(context.Background(), zoneID, priceInput(from, to, hour2), nil)
	require.NoError(t, err)
	return cfg
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// priceInput builds a full table where every tier except hour 2 costs its
// hour count.
func priceInput(from time.Time, to *time.Time, hour2 string) PriceConfigInput {
	return PriceConfigInput{
		ValidFrom:   from,
		ValidTo:     to,
		Hour1Price:  dec("1.00"),
		Hour2Price:  dec(hour2),
		Hour3Price:  dec("3.00"),
		Hour4Price:  dec("4.00"),
		Hour5Price:  dec("5.00"),
		Hour6Price:  dec("6.00"),
		Hour12Price: dec("12.00"),
	}
}

func date(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, time.UTC)
}

func ptr[T any](v T) *T {
	return &v
}

// mockPriceConfigRepository injects failures into the price path.
type mockPriceConfigRepository struct {
	mock.Mock
}

func (m *mockPriceConfigRepository) ListByZone(ctx context.Context, zoneID int64) ([]model.PriceConfig, error) {
	args := m.Called(ctx, zoneID)
	configs, _ := args.Get(0).([]model.PriceConfig)
	return configs, args.Error(1)
}

func (m *mockPriceConfigRepository) FindEffective(ctx context.Context, zoneID int64, at time.Time) ([]model.PriceConfig, error) {
	args := m.Called(ctx, zoneID, at)
	configs, _ := args.Get(0).([]model.PriceConfig)
	return configs, args.Error(1)
}

func (m *mockPriceConfigRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.PriceConfig, error) {
	args := m.Called(ctx, id)
	cfg, _ := args.Get(0).(*model.PriceConfig)
	return cfg, args.Error(1)
}

func (m *mockPriceConfigRepository) Create(ctx context.Context, cfg *model.PriceConfig) error {
	return m.Called(ctx, cfg).Error(0)
}

func (m *mockPriceConfigRepository) Update(ctx context.Context, cfg *model.PriceConfig) error {
	return m.Called(ctx, cfg).Error(0)
}

func (m *mockPriceConfigRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockPriceConfigRepository) WithZoneLock(ctx context.Context, zoneID int64, fn func(tx repository.PriceConfigRepository) error) error {
	args := m.Called(ctx, zoneID)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(m)
}
