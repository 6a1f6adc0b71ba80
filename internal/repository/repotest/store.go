// Package repotest provides goroutine-safe in-memory implementations of the
// repository interfaces for service and handler tests.
package repotest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"permit-service/internal/interval"
	"permit-service/internal/model"
	"permit-service/internal/repository"
)

// Store holds every entity in memory. Repositories handed out by the Store
// share its state, so a vehicle created through Vehicles() is visible to the
// plate joins of Permits().
type Store struct {
	mu sync.RWMutex

	seq      int64
	nextZone int64

	vehicles      map[uuid.UUID]model.Vehicle
	zones         map[int64]model.Zone
	prices        map[uuid.UUID]model.PriceConfig
	permits       map[uuid.UUID]model.Permit
	permitSeq     map[uuid.UUID]int64
	permitLogs    []model.PermitStatusLog
	actions       map[uuid.UUID]model.FiscalAction
	verifications map[uuid.UUID]model.Verification
	infringements map[uuid.UUID]model.Infringement
	infLogs       []model.InfringementStatusLog

	zoneLocksMu sync.Mutex
	zoneLocks   map[int64]*sync.Mutex

	// Now stamps CreatedAt on records that do not carry one.
	Now func() time.Time
}

func NewStore() *Store {
	return &Store{
		vehicles:      make(map[uuid.UUID]model.Vehicle),
		zones:         make(map[int64]model.Zone),
		prices:        make(map[uuid.UUID]model.PriceConfig),
		permits:       make(map[uuid.UUID]model.Permit),
		permitSeq:     make(map[uuid.UUID]int64),
		actions:       make(map[uuid.UUID]model.FiscalAction),
		verifications: make(map[uuid.UUID]model.Verification),
		infringements: make(map[uuid.UUID]model.Infringement),
		zoneLocks:     make(map[int64]*sync.Mutex),
		Now:           time.Now,
	}
}

func (s *Store) Vehicles() repository.VehicleRepository {
	return &vehicleRepo{s: s}
}

func (s *Store) Zones() repository.ZoneRepository {
	return &zoneRepo{s: s}
}

func (s *Store) Prices() repository.PriceConfigRepository {
	return &priceRepo{s: s}
}

func (s *Store) Permits() repository.PermitRepository {
	return &permitRepo{s: s}
}

func (s *Store) Fiscal() repository.FiscalRepository {
	return &fiscalRepo{s: s}
}

// PriceConfigs returns a snapshot of every stored config of the zone.
func (s *Store) PriceConfigs(zoneID int64) []model.PriceConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.PriceConfig
	for _, c := range s.prices {
		if c.ZoneID == zoneID {
			out = append(out, c)
		}
	}
	return out
}

func (s *Store) PermitCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.permits)
}

func (s *Store) VehicleCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vehicles)
}

func (s *Store) ActionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.actions)
}

func (s *Store) Verifications() []model.Verification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Verification, 0, len(s.verifications))
	for _, v := range s.verifications {
		out = append(out, v)
	}
	return out
}

func (s *Store) PermitLogs() []model.PermitStatusLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.PermitStatusLog(nil), s.permitLogs...)
}

func (s *Store) InfringementLogs() []model.InfringementStatusLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.InfringementStatusLog(nil), s.infLogs...)
}

func (s *Store) stamp(t *time.Time) {
	if t.IsZero() {
		*t = s.Now()
	}
}

func (s *Store) zoneLock(zoneID int64) *sync.Mutex {
	s.zoneLocksMu.Lock()
	defer s.zoneLocksMu.Unlock()
	l, ok := s.zoneLocks[zoneID]
	if !ok {
		l = &sync.Mutex{}
		s.zoneLocks[zoneID] = l
	}
	return l
}

// vehicles

type vehicleRepo struct{ s *Store }

func (r *vehicleRepo) FindByPlate(_ context.Context, plate string) (*model.Vehicle, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	v, ok := r.s.vehicleByPlate(plate)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &v, nil
}

func (r *vehicleRepo) Create(_ context.Context, vehicle *model.Vehicle) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.vehicleByPlate(vehicle.Plate); ok {
		return repository.ErrDuplicate
	}
	if vehicle.ID == uuid.Nil {
		vehicle.ID = uuid.New()
	}
	r.s.stamp(&vehicle.CreatedAt)
	vehicle.UpdatedAt = vehicle.CreatedAt
	r.s.vehicles[vehicle.ID] = *vehicle
	return nil
}

func (r *vehicleRepo) Update(_ context.Context, vehicle *model.Vehicle) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.vehicles[vehicle.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.Model = vehicle.Model
	stored.Description = vehicle.Description
	stored.UpdatedAt = r.s.Now()
	r.s.vehicles[vehicle.ID] = stored
	return nil
}

func (r *vehicleRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]model.Vehicle, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.Vehicle
	for _, v := range r.s.vehicles {
		if v.UserID != nil && *v.UserID == userID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) vehicleByPlate(plate string) (model.Vehicle, bool) {
	for _, v := range s.vehicles {
		if v.Plate == plate {
			return v, true
		}
	}
	return model.Vehicle{}, false
}

// zones

type zoneRepo struct{ s *Store }

func (r *zoneRepo) GetByID(_ context.Context, id int64) (*model.Zone, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	z, ok := r.s.zones[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &z, nil
}

func (r *zoneRepo) List(_ context.Context, activeOnly bool) ([]model.Zone, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.Zone
	for _, z := range r.s.zones {
		if activeOnly && !z.Active {
			continue
		}
		out = append(out, z)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *zoneRepo) Create(_ context.Context, zone *model.Zone) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if zone.ID == 0 {
		r.s.nextZone++
		zone.ID = r.s.nextZone
	} else if _, ok := r.s.zones[zone.ID]; ok {
		return repository.ErrDuplicate
	}
	if zone.ID > r.s.nextZone {
		r.s.nextZone = zone.ID
	}
	r.s.stamp(&zone.CreatedAt)
	zone.UpdatedAt = zone.CreatedAt
	r.s.zones[zone.ID] = *zone
	return nil
}

func (r *zoneRepo) Update(_ context.Context, zone *model.Zone) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.zones[zone.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.Name = zone.Name
	stored.Description = zone.Description
	stored.Active = zone.Active
	stored.UpdatedAt = r.s.Now()
	r.s.zones[zone.ID] = stored
	return nil
}

// price configs

type priceRepo struct{ s *Store }

func (r *priceRepo) ListByZone(_ context.Context, zoneID int64) ([]model.PriceConfig, error) {
	out := r.s.PriceConfigs(zoneID)
	sortByValidFromDesc(out)
	return out, nil
}

func (r *priceRepo) FindEffective(_ context.Context, zoneID int64, at time.Time) ([]model.PriceConfig, error) {
	var out []model.PriceConfig
	for _, c := range r.s.PriceConfigs(zoneID) {
		if c.Interval().Contains(at) {
			out = append(out, c)
		}
	}
	sortByValidFromDesc(out)
	return out, nil
}

func (r *priceRepo) GetByID(_ context.Context, id uuid.UUID) (*model.PriceConfig, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.prices[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r *priceRepo) Create(_ context.Context, cfg *model.PriceConfig) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.zones[cfg.ZoneID]; !ok {
		return repository.ErrNotFound
	}
	if r.s.overlapsLocked(cfg.ZoneID, cfg.Interval(), uuid.Nil) {
		return repository.ErrOverlap
	}
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	r.s.stamp(&cfg.CreatedAt)
	cfg.UpdatedAt = cfg.CreatedAt
	r.s.prices[cfg.ID] = *cfg
	return nil
}

func (r *priceRepo) Update(_ context.Context, cfg *model.PriceConfig) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.prices[cfg.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if r.s.overlapsLocked(stored.ZoneID, cfg.Interval(), cfg.ID) {
		return repository.ErrOverlap
	}
	stored.ValidFrom = cfg.ValidFrom
	stored.ValidTo = cfg.ValidTo
	stored.Hour1Price = cfg.Hour1Price
	stored.Hour2Price = cfg.Hour2Price
	stored.Hour3Price = cfg.Hour3Price
	stored.Hour4Price = cfg.Hour4Price
	stored.Hour5Price = cfg.Hour5Price
	stored.Hour6Price = cfg.Hour6Price
	stored.Hour12Price = cfg.Hour12Price
	stored.UpdatedAt = r.s.Now()
	r.s.prices[cfg.ID] = stored
	return nil
}

func (r *priceRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.prices[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.prices, id)
	return nil
}

// WithZoneLock serializes callers per zone. There is no rollback: writes made
// by fn before it fails stay in the store.
func (r *priceRepo) WithZoneLock(_ context.Context, zoneID int64, fn func(tx repository.PriceConfigRepository) error) error {
	r.s.mu.RLock()
	_, ok := r.s.zones[zoneID]
	r.s.mu.RUnlock()
	if !ok {
		return repository.ErrNotFound
	}
	l := r.s.zoneLock(zoneID)
	l.Lock()
	defer l.Unlock()
	return fn(r)
}

// overlapsLocked mirrors the exclusion constraint on price_configs.
func (s *Store) overlapsLocked(zoneID int64, candidate interval.Interval, exclude uuid.UUID) bool {
	for id, c := range s.prices {
		if c.ZoneID != zoneID || id == exclude {
			continue
		}
		if interval.Overlaps(candidate, c.Interval()) {
			return true
		}
	}
	return false
}

func sortByValidFromDesc(configs []model.PriceConfig) {
	sort.Slice(configs, func(i, j int) bool { return configs[i].ValidFrom.After(configs[j].ValidFrom) })
}

// permits

type permitRepo struct{ s *Store }

func (r *permitRepo) Create(_ context.Context, permit *model.Permit) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.permits {
		if p.TransactionCode == permit.TransactionCode {
			return repository.ErrDuplicate
		}
	}
	if permit.ID == uuid.Nil {
		permit.ID = uuid.New()
	}
	r.s.stamp(&permit.CreatedAt)
	permit.UpdatedAt = permit.CreatedAt
	stored := *permit
	stored.Vehicle, stored.Zone = nil, nil
	r.s.seq++
	r.s.permits[permit.ID] = stored
	r.s.permitSeq[permit.ID] = r.s.seq
	return nil
}

func (r *permitRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Permit, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.permits[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.s.joinPermit(p), nil
}

func (r *permitRepo) GetByTransactionCode(_ context.Context, code string) (*model.Permit, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.permits {
		if p.TransactionCode == code {
			return r.s.joinPermit(p), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *permitRepo) ListActiveByPlate(_ context.Context, plate string, at time.Time) ([]model.Permit, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.Permit
	for _, p := range r.s.permitsByPlateLocked(plate) {
		if p.ActiveAt(at) {
			out = append(out, *r.s.joinPermit(p))
		}
	}
	return out, nil
}

func (r *permitRepo) LatestByPlate(_ context.Context, plate string) (*model.Permit, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	permits := r.s.permitsByPlateLocked(plate)
	if len(permits) == 0 {
		return nil, repository.ErrNotFound
	}
	return r.s.joinPermit(permits[0]), nil
}

func (r *permitRepo) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]model.Permit, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var all []model.Permit
	for _, p := range r.s.permits {
		if p.UserID != nil && *p.UserID == userID {
			all = append(all, p)
		}
	}
	r.s.sortNewestFirst(all)

	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	out := make([]model.Permit, 0, end-offset)
	for _, p := range all[offset:end] {
		out = append(out, *r.s.joinPermit(p))
	}
	return out, nil
}

func (r *permitRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to model.PaymentStatus, logEntry *model.PermitStatusLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.permits[id]
	if !ok || p.PaymentStatus != from {
		return repository.ErrStale
	}
	p.PaymentStatus = to
	p.UpdatedAt = r.s.Now()
	r.s.permits[id] = p
	if logEntry != nil {
		logEntry.PermitID = id
		if logEntry.ID == uuid.Nil {
			logEntry.ID = uuid.New()
		}
		r.s.stamp(&logEntry.CreatedAt)
		r.s.permitLogs = append(r.s.permitLogs, *logEntry)
	}
	return nil
}

func (s *Store) permitsByPlateLocked(plate string) []model.Permit {
	v, ok := s.vehicleByPlate(plate)
	if !ok {
		return nil
	}
	var out []model.Permit
	for _, p := range s.permits {
		if p.VehicleID == v.ID {
			out = append(out, p)
		}
	}
	s.sortNewestFirst(out)
	return out
}

// sortNewestFirst orders by CreatedAt, falling back to insertion order.
func (s *Store) sortNewestFirst(permits []model.Permit) {
	sort.Slice(permits, func(i, j int) bool {
		a, b := permits[i], permits[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return s.permitSeq[a.ID] > s.permitSeq[b.ID]
	})
}

func (s *Store) joinPermit(p model.Permit) *model.Permit {
	if v, ok := s.vehicles[p.VehicleID]; ok {
		p.Vehicle = &v
	}
	if z, ok := s.zones[p.ZoneID]; ok {
		p.Zone = &z
	}
	return &p
}

// fiscal

type fiscalRepo struct{ s *Store }

func (r *fiscalRepo) CreateAction(_ context.Context, action *model.FiscalAction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.putActionLocked(action)
	return nil
}

func (r *fiscalRepo) CreateVerification(_ context.Context, action *model.FiscalAction, verification *model.Verification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.putActionLocked(action)
	verification.FiscalActionID = action.ID
	if verification.ID == uuid.Nil {
		verification.ID = uuid.New()
	}
	r.s.stamp(&verification.CreatedAt)
	stored := *verification
	stored.FiscalAction, stored.Permit = nil, nil
	r.s.verifications[verification.ID] = stored
	return nil
}

func (r *fiscalRepo) CreateInfringement(_ context.Context, action *model.FiscalAction, infringement *model.Infringement, logEntry *model.InfringementStatusLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.vehicles[infringement.VehicleID]; !ok {
		return repository.ErrNotFound
	}
	r.s.putActionLocked(action)
	infringement.FiscalActionID = action.ID
	if infringement.ID == uuid.Nil {
		infringement.ID = uuid.New()
	}
	if infringement.Status == "" {
		infringement.Status = model.InfringementStatusRegistered
	}
	r.s.stamp(&infringement.CreatedAt)
	infringement.UpdatedAt = infringement.CreatedAt
	stored := *infringement
	stored.Vehicle, stored.FiscalAction = nil, nil
	r.s.infringements[infringement.ID] = stored
	if logEntry != nil {
		logEntry.InfringementID = infringement.ID
		r.s.appendInfLogLocked(logEntry)
	}
	return nil
}

func (r *fiscalRepo) GetInfringement(_ context.Context, id uuid.UUID) (*model.Infringement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	inf, ok := r.s.infringements[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.s.joinInfringement(inf), nil
}

func (r *fiscalRepo) ListInfringements(_ context.Context, filter repository.InfringementFilter) ([]model.Infringement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.Infringement
	for _, inf := range r.s.infringements {
		action := r.s.actions[inf.FiscalActionID]
		if !filter.Scope.AllowsUser(action.FiscalUserID) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, inf.Status) {
			continue
		}
		if len(filter.Types) > 0 && !containsType(filter.Types, inf.Type) {
			continue
		}
		if filter.Plate != "" && r.s.vehicles[inf.VehicleID].Plate != filter.Plate {
			continue
		}
		if !inRange(inf.CreatedAt, filter.DateFrom, filter.DateTo) {
			continue
		}
		out = append(out, *r.s.joinInfringement(inf))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, filter.Limit, filter.Offset), nil
}

func (r *fiscalRepo) ListActions(_ context.Context, filter repository.FiscalActionFilter) ([]model.FiscalAction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.FiscalAction
	for _, a := range r.s.actions {
		if !filter.Scope.AllowsUser(a.FiscalUserID) {
			continue
		}
		if len(filter.ActionTypes) > 0 && !containsActionType(filter.ActionTypes, a.ActionType) {
			continue
		}
		if filter.Plate != "" && !strings.EqualFold(a.Plate, filter.Plate) {
			continue
		}
		if !inRange(a.PerformedAt, filter.DateFrom, filter.DateTo) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PerformedAt.After(out[j].PerformedAt) })
	return page(out, filter.Limit, filter.Offset), nil
}

func (r *fiscalRepo) UpdateInfringementStatus(_ context.Context, id uuid.UUID, from, to model.InfringementStatus, logEntry *model.InfringementStatusLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inf, ok := r.s.infringements[id]
	if !ok || inf.Status != from {
		return repository.ErrStale
	}
	inf.Status = to
	inf.UpdatedAt = r.s.Now()
	r.s.infringements[id] = inf
	if logEntry != nil {
		logEntry.InfringementID = id
		r.s.appendInfLogLocked(logEntry)
	}
	return nil
}

func (s *Store) putActionLocked(action *model.FiscalAction) {
	if action.ID == uuid.Nil {
		action.ID = uuid.New()
	}
	s.stamp(&action.CreatedAt)
	s.actions[action.ID] = *action
}

func (s *Store) appendInfLogLocked(entry *model.InfringementStatusLog) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	s.stamp(&entry.CreatedAt)
	s.infLogs = append(s.infLogs, *entry)
}

func (s *Store) joinInfringement(inf model.Infringement) *model.Infringement {
	if v, ok := s.vehicles[inf.VehicleID]; ok {
		inf.Vehicle = &v
	}
	if a, ok := s.actions[inf.FiscalActionID]; ok {
		inf.FiscalAction = &a
	}
	return &inf
}

func containsStatus(list []model.InfringementStatus, s model.InfringementStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsType(list []model.InfringementType, t model.InfringementType) bool {
	for _, v := range list {
		if v == t {
			return true
		}
	}
	return false
}

func containsActionType(list []model.FiscalActionType, t model.FiscalActionType) bool {
	for _, v := range list {
		if v == t {
			return true
		}
	}
	return false
}

func inRange(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
