// Package report computes dashboard figures and chart series.
package report

import (
	"math"
	"time"
)

// Dashboard holds the headline figures.
type Dashboard struct {
	TotalPatients        int       `json:"total_patients"`
	ActivePatients       int       `json:"active_patients"`
	CriticalPatients     int       `json:"critical_patients"`
	NewPatientsThisMonth int       `json:"new_patients_this_month"`
	PatientGrowthPct     float64   `json:"patient_growth_pct"`
	AppointmentsToday    int       `json:"appointments_today"`
	RemainingToday       int       `json:"remaining_today"`
	LowStockItems        int       `json:"low_stock_items"`
	RevenueThisMonth     int64     `json:"revenue_this_month"`
	RevenueGrowthPct     float64   `json:"revenue_growth_pct"`
	PendingInvoices      int       `json:"pending_invoices"`
	GeneratedAt          time.Time `json:"generated_at"`
}

// Point is one bar or slice of a chart.
type Point struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

type Series struct {
	Months                int     `json:"months"`
	PatientRegistrations  []Point `json:"patient_registrations"`
	Revenue               []Point `json:"revenue"`
	AppointmentsByWeekday []Point `json:"appointments_by_weekday"`
	AppointmentsByStatus  []Point `json:"appointments_by_status"`
	InventoryValue        []Point `json:"inventory_value"`
}

// Activity is one entry of the activity feed.
type Activity struct {
	ID            int64     `json:"id"`
	EventType     string    `json:"event_type"`
	AggregateType string    `json:"aggregate_type"`
	AggregateID   string    `json:"aggregate_id"`
	Actor         string    `json:"actor"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// DefaultMonths is the default series window.
const DefaultMonths = 7

const maxMonths = 36

// GrowthPct is the change from prev to cur in percent, one decimal.
func GrowthPct(cur, prev int64) float64 {
	if prev == 0 {
		if cur == 0 {
			return 0
		}
		return 100
	}
	pct := float64(cur-prev) / float64(prev) * 100
	return math.Round(pct*10) / 10
}

// monthStart is midnight on the first of t's month in loc.
func monthStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
}

// monthKeys returns the starts of the last n months up to and including
// now's month, oldest first.
func monthKeys(now time.Time, n int, loc *time.Location) []time.Time {
	start := monthStart(now, loc)
	out := make([]time.Time, n)
	for i := 0; i < n; i++ {
		out[i] = start.AddDate(0, i-n+1, 0)
	}
	return out
}

// fillMonths turns sparse per-month totals into a zero-filled series.
func fillMonths(months []time.Time, values map[string]int64) []Point {
	out := make([]Point, len(months))
	for i, m := range months {
		out[i] = Point{Name: m.Format("Jan"), Value: values[m.Format("2006-01")]}
	}
	return out
}

var weekdays = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// fillWeekdays maps ISO day numbers (1 = Monday) onto Mon..Sun.
func fillWeekdays(values map[int]int64) []Point {
	out := make([]Point, len(weekdays))
	for i, name := range weekdays {
		out[i] = Point{Name: name, Value: values[i+1]}
	}
	return out
}

// fillNamed orders a keyed series by the given names first, then any
// remaining keys in the order the store returned them.
func fillNamed(names []string, values []Point) []Point {
	byName := make(map[string]int64, len(values))
	for _, p := range values {
		byName[p.Name] = p.Value
	}
	out := make([]Point, 0, len(names)+len(values))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		out = append(out, Point{Name: n, Value: byName[n]})
		seen[n] = true
	}
	for _, p := range values {
		if !seen[p.Name] {
			out = append(out, p)
		}
	}
	return out
}
