package report

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/calendar"
)

type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) PatientCounts(ctx context.Context) (PatientCounts, error) {
	var c PatientCounts
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'Active'),
		       COUNT(*) FILTER (WHERE status = 'Critical')
		FROM patients`,
	).Scan(&c.Total, &c.Active, &c.Critical)
	if err != nil {
		return c, fmt.Errorf("count patients: %w", err)
	}
	return c, nil
}

func (s *PGStore) NewPatients(ctx context.Context, from, to time.Time, loc *time.Location) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM patients WHERE registration_date >= $1::date AND registration_date < $2::date`,
		calendar.Of(from.In(loc)).String(), calendar.Of(to.In(loc)).String(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count new patients: %w", err)
	}
	return n, nil
}

func (s *PGStore) AppointmentsBetween(ctx context.Context, from, to, now time.Time) (int, int, error) {
	var total, remaining int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE status <> 'cancelled'),
		       COUNT(*) FILTER (WHERE status = 'scheduled' AND appointment_at >= $3)
		FROM appointments
		WHERE appointment_at >= $1 AND appointment_at < $2`,
		from, to, now,
	).Scan(&total, &remaining)
	if err != nil {
		return 0, 0, fmt.Errorf("count appointments: %w", err)
	}
	return total, remaining, nil
}

func (s *PGStore) LowStockCount(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM inventory WHERE quantity <= reorder_level`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count low stock: %w", err)
	}
	return n, nil
}

func (s *PGStore) Revenue(ctx context.Context, from, to time.Time) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(total), 0)::bigint FROM invoices
		WHERE status = 'paid' AND paid_at >= $1 AND paid_at < $2`,
		from, to,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum revenue: %w", err)
	}
	return total, nil
}

func (s *PGStore) PendingInvoices(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE status = 'issued'`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending invoices: %w", err)
	}
	return n, nil
}

func collectKeyed[K comparable](rows pgx.Rows, what string) (map[K]int64, error) {
	defer rows.Close()
	out := make(map[K]int64)
	for rows.Next() {
		var k K
		var v int64
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan %s: %w", what, err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (s *PGStore) MonthlyRegistrations(ctx context.Context, from time.Time, loc *time.Location) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT to_char(registration_date, 'YYYY-MM') AS month, COUNT(*)
		FROM patients
		WHERE registration_date >= $1::date
		GROUP BY month`,
		calendar.Of(from.In(loc)).String())
	if err != nil {
		return nil, fmt.Errorf("query registrations: %w", err)
	}
	return collectKeyed[string](rows, "registrations")
}

func (s *PGStore) MonthlyRevenue(ctx context.Context, from time.Time, loc *time.Location) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT to_char(paid_at AT TIME ZONE $2, 'YYYY-MM') AS month, SUM(total)::bigint
		FROM invoices
		WHERE status = 'paid' AND paid_at >= $1
		GROUP BY month`,
		from, loc.String())
	if err != nil {
		return nil, fmt.Errorf("query revenue: %w", err)
	}
	return collectKeyed[string](rows, "revenue")
}

func (s *PGStore) AppointmentsByWeekday(ctx context.Context, from time.Time, loc *time.Location) (map[int]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT EXTRACT(ISODOW FROM appointment_at AT TIME ZONE $2)::int AS dow, COUNT(*)
		FROM appointments
		WHERE appointment_at >= $1 AND status <> 'cancelled'
		GROUP BY dow`,
		from, loc.String())
	if err != nil {
		return nil, fmt.Errorf("query appointments by weekday: %w", err)
	}
	return collectKeyed[int](rows, "weekday counts")
}

func collectPoints(rows pgx.Rows, what string) ([]Point, error) {
	points, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Point, error) {
		var p Point
		err := row.Scan(&p.Name, &p.Value)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", what, err)
	}
	return points, nil
}

func (s *PGStore) AppointmentsByStatus(ctx context.Context, from time.Time) ([]Point, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT status, COUNT(*) FROM appointments
		WHERE appointment_at >= $1
		GROUP BY status
		ORDER BY status`, from)
	if err != nil {
		return nil, fmt.Errorf("query appointments by status: %w", err)
	}
	return collectPoints(rows, "status counts")
}

func (s *PGStore) InventoryValueByCategory(ctx context.Context) ([]Point, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT COALESCE(NULLIF(category, ''), 'Uncategorized') AS cat, SUM(quantity::bigint * unit_price)::bigint
		FROM inventory
		GROUP BY cat
		ORDER BY 2 DESC, cat`)
	if err != nil {
		return nil, fmt.Errorf("query inventory value: %w", err)
	}
	return collectPoints(rows, "inventory value")
}

func (s *PGStore) Activity(ctx context.Context, limit int) ([]Activity, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, event_type, aggregate_type, aggregate_id, actor, title, description, occurred_at
		FROM activity_log
		ORDER BY occurred_at DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Activity])
	if err != nil {
		return nil, fmt.Errorf("scan activity: %w", err)
	}
	return items, nil
}
