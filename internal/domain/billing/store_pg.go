package billing

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/apperror"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/infrastructure/postgres"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/listing"
)

var columns = []string{"id", "number", "patient_id", "appointment_id", "items", "subtotal",
	"tax_bps", "tax", "discount", "total", "status", "payment_method", "notes", "created_by",
	"issued_at", "paid_at", "created_at", "updated_at"}

var listQuery = postgres.ListQuery{
	Table:         "invoices",
	Columns:       postgres.Cols(columns...),
	SearchColumns: []string{"number", "notes"},
	SortColumns: map[string]exp.Orderable{
		"created_at": goqu.C("created_at"),
		"total":      goqu.C("total"),
		"number":     goqu.C("number"),
		"status":     goqu.C("status"),
	},
	Tiebreak: "id",
}

func scanInvoice(row pgx.CollectableRow) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.Number, &inv.PatientID, &inv.AppointmentID, &inv.Items,
		&inv.Subtotal, &inv.TaxBPS, &inv.Tax, &inv.Discount, &inv.Total, &inv.Status,
		&inv.PaymentMethod, &inv.Notes, &inv.CreatedBy, &inv.IssuedAt, &inv.PaidAt,
		&inv.CreatedAt, &inv.UpdatedAt)
	return inv, err
}

type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Create(ctx context.Context, inv *Invoice) error {
	var seq int64
	if err := s.pool.QueryRow(ctx, `SELECT nextval('invoice_number_seq')`).Scan(&seq); err != nil {
		return fmt.Errorf("next invoice number: %w", err)
	}
	inv.Number = FormatNumber(inv.CreatedAt, seq)

	err := s.pool.QueryRow(ctx, `
		INSERT INTO invoices (id, number, patient_id, appointment_id, items, subtotal, tax_bps, tax,
			discount, total, status, payment_method, notes, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
		RETURNING updated_at`,
		inv.ID, inv.Number, inv.PatientID, inv.AppointmentID, inv.Items, inv.Subtotal, inv.TaxBPS,
		inv.Tax, inv.Discount, inv.Total, string(inv.Status), string(inv.PaymentMethod), inv.Notes,
		inv.CreatedBy, inv.CreatedAt,
	).Scan(&inv.UpdatedAt)
	if postgres.IsForeignKeyViolation(err) {
		return apperror.NotFound("patient or appointment", inv.PatientID.String())
	}
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

func getInvoice(ctx context.Context, q postgres.Querier, id uuid.UUID, lock bool) (*Invoice, error) {
	sql := `SELECT id, number, patient_id, appointment_id, items, subtotal, tax_bps, tax, discount,
		total, status, payment_method, notes, created_by, issued_at, paid_at, created_at, updated_at
		FROM invoices WHERE id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	rows, err := q.Query(ctx, sql, id)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	inv, err := pgx.CollectExactlyOneRow(rows, scanInvoice)
	if postgres.IsNoRows(err) {
		return nil, apperror.NotFound("invoice", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("scan invoice: %w", err)
	}
	return &inv, nil
}

func (s *PGStore) Get(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return getInvoice(ctx, s.pool, id, false)
}

func (s *PGStore) Modify(ctx context.Context, id uuid.UUID, fn ModifyFunc) (*Invoice, error) {
	var out *Invoice
	err := postgres.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		inv, err := getInvoice(ctx, tx, id, true)
		if err != nil {
			return err
		}
		evts, err := fn(inv)
		if err != nil {
			return err
		}
		err = tx.QueryRow(ctx, `
			UPDATE invoices SET appointment_id = $2, items = $3, subtotal = $4, tax_bps = $5, tax = $6,
				discount = $7, total = $8, status = $9, payment_method = $10, notes = $11,
				issued_at = $12, paid_at = $13, updated_at = NOW()
			WHERE id = $1
			RETURNING updated_at`,
			inv.ID, inv.AppointmentID, inv.Items, inv.Subtotal, inv.TaxBPS, inv.Tax, inv.Discount,
			inv.Total, string(inv.Status), string(inv.PaymentMethod), inv.Notes, inv.IssuedAt, inv.PaidAt,
		).Scan(&inv.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update invoice: %w", err)
		}
		for _, evt := range evts {
			if err := postgres.AppendEvent(ctx, tx, evt); err != nil {
				return err
			}
		}
		out = inv
		return nil
	})
	return out, err
}

func (s *PGStore) List(ctx context.Context, params listing.Params, f Filter) (*listing.Page[Invoice], error) {
	var where []exp.Expression
	if f.PatientID != uuid.Nil {
		where = append(where, goqu.C("patient_id").Eq(f.PatientID.String()))
	}
	if f.Status != "" {
		where = append(where, goqu.C("status").Eq(string(f.Status)))
	}
	if !f.From.IsZero() {
		where = append(where, goqu.C("created_at").Gte(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, goqu.C("created_at").Lt(f.To))
	}
	return postgres.SelectPage(ctx, s.pool, listQuery, params, scanInvoice, where...)
}
