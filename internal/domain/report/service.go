package report

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/apperror"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/calendar"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/infrastructure/cache"
)

// DefaultCacheTTL bounds how stale a cached report may be.
const DefaultCacheTTL = time.Minute

var statusOrder = []string{"scheduled", "completed", "cancelled", "no-show"}

type Service struct {
	store  Store
	cache  cache.Cache
	ttl    time.Duration
	zone   *calendar.Zone
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store Store, c cache.Cache, ttl time.Duration, zone *calendar.Zone, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if c == nil {
		c = cache.NewMemory()
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Service{store: store, cache: c, ttl: ttl, zone: zone, logger: logger, now: time.Now}
}

func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	return cache.GetOrLoad(ctx, s.cache, "reports:dashboard", s.ttl, s.buildDashboard)
}

func (s *Service) buildDashboard(ctx context.Context) (*Dashboard, error) {
	loc := s.zone.Location(ctx)
	now := s.now().In(loc)
	thisMonth := monthStart(now, loc)
	lastMonth := thisMonth.AddDate(0, -1, 0)
	nextMonth := thisMonth.AddDate(0, 1, 0)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	d := &Dashboard{GeneratedAt: now.UTC()}

	counts, err := s.store.PatientCounts(ctx)
	if err != nil {
		return nil, err
	}
	d.TotalPatients, d.ActivePatients, d.CriticalPatients = counts.Total, counts.Active, counts.Critical

	if d.NewPatientsThisMonth, err = s.store.NewPatients(ctx, thisMonth, nextMonth, loc); err != nil {
		return nil, err
	}
	prevPatients, err := s.store.NewPatients(ctx, lastMonth, thisMonth, loc)
	if err != nil {
		return nil, err
	}
	d.PatientGrowthPct = GrowthPct(int64(d.NewPatientsThisMonth), int64(prevPatients))

	if d.AppointmentsToday, d.RemainingToday, err = s.store.AppointmentsBetween(ctx, today, today.AddDate(0, 0, 1), now); err != nil {
		return nil, err
	}
	if d.LowStockItems, err = s.store.LowStockCount(ctx); err != nil {
		return nil, err
	}
	if d.RevenueThisMonth, err = s.store.Revenue(ctx, thisMonth, nextMonth); err != nil {
		return nil, err
	}
	prevRevenue, err := s.store.Revenue(ctx, lastMonth, thisMonth)
	if err != nil {
		return nil, err
	}
	d.RevenueGrowthPct = GrowthPct(d.RevenueThisMonth, prevRevenue)
	if d.PendingInvoices, err = s.store.PendingInvoices(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// ParseMonths reads the series window, defaulting to DefaultMonths.
func ParseMonths(raw string) (int, error) {
	if raw == "" {
		return DefaultMonths, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxMonths {
		v := &apperror.ValidationError{}
		v.Add("months", "must be between 1 and "+strconv.Itoa(maxMonths))
		return 0, v
	}
	return n, nil
}

// Series builds the chart series over the last months months.
func (s *Service) Series(ctx context.Context, months int) (*Series, error) {
	key := "reports:series:" + strconv.Itoa(months)
	return cache.GetOrLoad(ctx, s.cache, key, s.ttl, func(ctx context.Context) (*Series, error) {
		return s.buildSeries(ctx, months)
	})
}

func (s *Service) buildSeries(ctx context.Context, months int) (*Series, error) {
	loc := s.zone.Location(ctx)
	keys := monthKeys(s.now(), months, loc)
	from := keys[0]

	regs, err := s.store.MonthlyRegistrations(ctx, from, loc)
	if err != nil {
		return nil, err
	}
	revenue, err := s.store.MonthlyRevenue(ctx, from, loc)
	if err != nil {
		return nil, err
	}
	weekday, err := s.store.AppointmentsByWeekday(ctx, from, loc)
	if err != nil {
		return nil, err
	}
	status, err := s.store.AppointmentsByStatus(ctx, from)
	if err != nil {
		return nil, err
	}
	value, err := s.store.InventoryValueByCategory(ctx)
	if err != nil {
		return nil, err
	}
	if value == nil {
		value = []Point{}
	}

	return &Series{
		Months:                months,
		PatientRegistrations:  fillMonths(keys, regs),
		Revenue:               fillMonths(keys, revenue),
		AppointmentsByWeekday: fillWeekdays(weekday),
		AppointmentsByStatus:  fillNamed(statusOrder, status),
		InventoryValue:        value,
	}, nil
}

// Activity returns the newest activity feed entries.
func (s *Service) Activity(ctx context.Context, limit int) ([]Activity, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	items, err := s.store.Activity(ctx, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Activity{}
	}
	return items, nil
}
