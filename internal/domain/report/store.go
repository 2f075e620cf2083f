package report

import (
	"context"
	"time"
)

// PatientCounts are head counts by status.
type PatientCounts struct {
	Total    int
	Active   int
	Critical int
}

// Store runs the aggregate queries behind the reports. Month keys are
// "YYYY-MM" in the given location.
type Store interface {
	PatientCounts(ctx context.Context) (PatientCounts, error)
	NewPatients(ctx context.Context, from, to time.Time, loc *time.Location) (int, error)
	// AppointmentsBetween counts appointments in [from, to) and how many
	// of them are still scheduled after now.
	AppointmentsBetween(ctx context.Context, from, to, now time.Time) (total, remaining int, err error)
	LowStockCount(ctx context.Context) (int, error)
	// Revenue sums paid invoice totals with paid_at in [from, to).
	Revenue(ctx context.Context, from, to time.Time) (int64, error)
	PendingInvoices(ctx context.Context) (int, error)

	MonthlyRegistrations(ctx context.Context, from time.Time, loc *time.Location) (map[string]int64, error)
	MonthlyRevenue(ctx context.Context, from time.Time, loc *time.Location) (map[string]int64, error)
	AppointmentsByWeekday(ctx context.Context, from time.Time, loc *time.Location) (map[int]int64, error)
	AppointmentsByStatus(ctx context.Context, from time.Time) ([]Point, error)
	InventoryValueByCategory(ctx context.Context) ([]Point, error)

	Activity(ctx context.Context, limit int) ([]Activity, error)
}
