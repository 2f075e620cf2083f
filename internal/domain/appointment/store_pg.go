package appointment

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/apperror"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/events"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/infrastructure/postgres"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/listing"
)

var listQuery = postgres.ListQuery{
	Table: "appointment_details",
	Columns: postgres.Cols("id", "patient_id", "doctor_id", "patient_name", "doctor_name",
		"department", "appointment_at", "reason", "notes", "status", "created_by",
		"created_at", "updated_at"),
	SearchColumns: []string{"patient_name", "doctor_name", "reason"},
	SortColumns: map[string]exp.Orderable{
		"appointment_at": goqu.C("appointment_at"),
		"created_at":     goqu.C("created_at"),
		"status":         goqu.C("status"),
	},
	Tiebreak: "id",
}

func scanAppointment(row pgx.CollectableRow) (Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.PatientName, &a.DoctorName,
		&a.Department, &a.AppointmentAt, &a.Reason, &a.Notes, &a.Status, &a.CreatedBy,
		&a.CreatedAt, &a.UpdatedAt)
	return a, err
}

type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func slotConflict() error {
	return apperror.Conflict("doctor already has an appointment in this slot")
}

func (s *PGStore) Create(ctx context.Context, a *Appointment, evt *events.Event) error {
	return postgres.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO appointments (id, patient_id, doctor_id, appointment_at, slot_start, reason,
				notes, status, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING created_at, updated_at`,
			a.ID, a.PatientID, a.DoctorID, a.AppointmentAt, SlotStart(a.AppointmentAt), a.Reason,
			a.Notes, string(a.Status), a.CreatedBy,
		).Scan(&a.CreatedAt, &a.UpdatedAt)
		switch {
		case postgres.IsUniqueViolation(err):
			return slotConflict()
		case postgres.IsForeignKeyViolation(err):
			return apperror.NotFound("patient or doctor", a.PatientID.String())
		case err != nil:
			return fmt.Errorf("insert appointment: %w", err)
		}
		return postgres.AppendEvent(ctx, tx, evt)
	})
}

func (s *PGStore) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, patient_id, doctor_id, patient_name, doctor_name, department, appointment_at,
			reason, notes, status, created_by, created_at, updated_at
		FROM appointment_details WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	a, err := pgx.CollectExactlyOneRow(rows, scanAppointment)
	if postgres.IsNoRows(err) {
		return nil, apperror.NotFound("appointment", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("scan appointment: %w", err)
	}
	return &a, nil
}

func (s *PGStore) Update(ctx context.Context, a *Appointment, evt *events.Event) error {
	return postgres.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE appointments SET appointment_at = $2, slot_start = $3, reason = $4, notes = $5,
				updated_at = NOW()
			WHERE id = $1 AND status = 'scheduled'
			RETURNING updated_at`,
			a.ID, a.AppointmentAt, SlotStart(a.AppointmentAt), a.Reason, a.Notes,
		).Scan(&a.UpdatedAt)
		switch {
		case postgres.IsUniqueViolation(err):
			return slotConflict()
		case postgres.IsNoRows(err):
			return apperror.InvalidState("only scheduled appointments can be changed")
		case err != nil:
			return fmt.Errorf("update appointment: %w", err)
		}
		if evt == nil {
			return nil
		}
		return postgres.AppendEvent(ctx, tx, evt)
	})
}

func (s *PGStore) ChangeStatus(ctx context.Context, ch StatusChange, evt *events.Event) error {
	return postgres.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var patientID uuid.UUID
		err := tx.QueryRow(ctx, `
			UPDATE appointments
			SET status = $2, notes = CASE WHEN $3::text = '' THEN notes ELSE $3::text END, updated_at = NOW()
			WHERE id = $1 AND status = 'scheduled'
			RETURNING patient_id`,
			ch.ID, string(ch.To), ch.Notes,
		).Scan(&patientID)
		if postgres.IsNoRows(err) {
			return apperror.InvalidState("only scheduled appointments can change status")
		}
		if err != nil {
			return fmt.Errorf("change appointment status: %w", err)
		}

		if ch.Visit != nil {
			if _, err := tx.Exec(ctx, `
				UPDATE patients SET last_visit_date = GREATEST(COALESCE(last_visit_date, $2::date), $2::date),
					updated_at = NOW()
				WHERE id = $1`, patientID, *ch.Visit); err != nil {
				return fmt.Errorf("record patient visit: %w", err)
			}
		}
		return postgres.AppendEvent(ctx, tx, evt)
	})
}

func (s *PGStore) List(ctx context.Context, params listing.Params, f Filter) (*listing.Page[Appointment], error) {
	var where []exp.Expression
	if f.PatientID != uuid.Nil {
		where = append(where, goqu.C("patient_id").Eq(f.PatientID.String()))
	}
	if f.DoctorID != uuid.Nil {
		where = append(where, goqu.C("doctor_id").Eq(f.DoctorID.String()))
	}
	if f.Status != "" {
		where = append(where, goqu.C("status").Eq(string(f.Status)))
	}
	if !f.From.IsZero() {
		where = append(where, goqu.C("appointment_at").Gte(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, goqu.C("appointment_at").Lt(f.To))
	}
	return postgres.SelectPage(ctx, s.pool, listQuery, params, scanAppointment, where...)
}
