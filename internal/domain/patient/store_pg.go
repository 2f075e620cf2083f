package patient

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

const columns = `id, first_name, last_name, email, phone, gender, date_of_birth, blood_group,
	address, city, state, pincode, emergency_contact, emergency_phone, medical_history,
	status, registration_date, last_visit_date, created_at, updated_at`

var listQuery = postgres.ListQuery{
	Table: "patients",
	Columns: postgres.Cols("id", "first_name", "last_name", "email", "phone", "gender",
		"date_of_birth", "blood_group", "address", "city", "state", "pincode",
		"emergency_contact", "emergency_phone", "medical_history", "status",
		"registration_date", "last_visit_date", "created_at", "updated_at"),
	SearchColumns: []string{"first_name", "last_name", "email", "phone"},
	SearchExprs:   []exp.Likeable{postgres.FullName()},
	SortColumns: map[string]exp.Orderable{
		"name":              goqu.L("lower(first_name || ' ' || last_name)"),
		"registration_date": goqu.C("registration_date"),
		"last_visit_date":   goqu.C("last_visit_date"),
		"created_at":        goqu.C("created_at"),
	},
	Tiebreak: "id",
}

// PGStore is the PostgreSQL Store.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Create(ctx context.Context, p *Patient, evt *events.Event) error {
	return postgres.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO patients (id, first_name, last_name, email, phone, gender, date_of_birth,
				blood_group, address, city, state, pincode, emergency_contact, emergency_phone,
				medical_history, status, registration_date, last_visit_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
			RETURNING created_at, updated_at`,
			p.ID, p.FirstName, p.LastName, p.Email, p.Phone, string(p.Gender), p.DateOfBirth,
			p.BloodGroup, p.Address, p.City, p.State, p.Pincode, p.EmergencyContact, p.EmergencyPhone,
			p.MedicalHistory, string(p.Status), p.RegistrationDate, p.LastVisitDate,
		).Scan(&p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert patient: %w", err)
		}
		return postgres.AppendEvent(ctx, tx, evt)
	})
}

func (s *PGStore) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+columns+` FROM patients WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get patient: %w", err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[Patient])
	if postgres.IsNoRows(err) {
		return nil, apperror.NotFound("patient", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("scan patient: %w", err)
	}
	return p, nil
}

func (s *PGStore) Update(ctx context.Context, p *Patient, evt *events.Event) error {
	return postgres.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE patients SET first_name = $2, last_name = $3, email = $4, phone = $5, gender = $6,
				date_of_birth = $7, blood_group = $8, address = $9, city = $10, state = $11,
				pincode = $12, emergency_contact = $13, emergency_phone = $14, medical_history = $15,
				status = $16, last_visit_date = $17, updated_at = NOW()
			WHERE id = $1
			RETURNING updated_at`,
			p.ID, p.FirstName, p.LastName, p.Email, p.Phone, string(p.Gender), p.DateOfBirth,
			p.BloodGroup, p.Address, p.City, p.State, p.Pincode, p.EmergencyContact, p.EmergencyPhone,
			p.MedicalHistory, string(p.Status), p.LastVisitDate,
		).Scan(&p.UpdatedAt)
		if postgres.IsNoRows(err) {
			return apperror.NotFound("patient", p.ID.String())
		}
		if err != nil {
			return fmt.Errorf("update patient: %w", err)
		}
		return postgres.AppendEvent(ctx, tx, evt)
	})
}

func (s *PGStore) Delete(ctx context.Context, id uuid.UUID, evt *events.Event) ([]string, error) {
	var keys []string
	err := postgres.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `DELETE FROM documents WHERE patient_id = $1 RETURNING storage_key`, id)
		if err != nil {
			return fmt.Errorf("delete patient documents: %w", err)
		}
		keys, err = pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return fmt.Errorf("collect document keys: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete patient: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperror.NotFound("patient", id.String())
		}
		return postgres.AppendEvent(ctx, tx, evt)
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *PGStore) List(ctx context.Context, params listing.Params) (*listing.Page[Patient], error) {
	var where []exp.Expression
	if g, ok := params.Filter("gender"); ok {
		where = append(where, goqu.C("gender").Eq(g))
	}
	if st, ok := params.Filter("status"); ok {
		where = append(where, goqu.C("status").Eq(st))
	}
	return postgres.SelectPage(ctx, s.pool, listQuery, params, pgx.RowToStructByName[Patient], where...)
}
