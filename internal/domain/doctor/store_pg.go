package doctor

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

var columnNames = []string{"id", "first_name", "last_name", "email", "phone", "department",
	"specialization", "qualification", "experience_years", "available_days", "hours_start",
	"hours_end", "created_at", "updated_at"}

var listQuery = postgres.ListQuery{
	Table:         "doctors",
	Columns:       postgres.Cols(columnNames...),
	SearchColumns: []string{"first_name", "last_name", "department", "specialization"},
	SearchExprs:   []exp.Likeable{postgres.FullName()},
	SortColumns: map[string]exp.Orderable{
		"name":             goqu.L("lower(first_name || ' ' || last_name)"),
		"department":       goqu.C("department"),
		"experience_years": goqu.C("experience_years"),
		"created_at":       goqu.C("created_at"),
	},
	Tiebreak: "id",
}

func scanDoctor(row pgx.CollectableRow) (Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.FirstName, &d.LastName, &d.Email, &d.Phone, &d.Department,
		&d.Specialization, &d.Qualification, &d.ExperienceYears, &d.AvailableDays,
		&d.AvailableHours.Start, &d.AvailableHours.End, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Create(ctx context.Context, d *Doctor) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO doctors (id, first_name, last_name, email, phone, department, specialization,
			qualification, experience_years, available_days, hours_start, hours_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`,
		d.ID, d.FirstName, d.LastName, d.Email, d.Phone, d.Department, d.Specialization,
		d.Qualification, d.ExperienceYears, d.AvailableDays, d.AvailableHours.Start, d.AvailableHours.End,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert doctor: %w", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, first_name, last_name, email, phone, department,
		specialization, qualification, experience_years, available_days, hours_start, hours_end,
		created_at, updated_at FROM doctors WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get doctor: %w", err)
	}
	d, err := pgx.CollectExactlyOneRow(rows, scanDoctor)
	if postgres.IsNoRows(err) {
		return nil, apperror.NotFound("doctor", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("scan doctor: %w", err)
	}
	return &d, nil
}

func (s *PGStore) Update(ctx context.Context, d *Doctor) error {
	err := s.pool.QueryRow(ctx, `
		UPDATE doctors SET first_name = $2, last_name = $3, email = $4, phone = $5, department = $6,
			specialization = $7, qualification = $8, experience_years = $9, available_days = $10,
			hours_start = $11, hours_end = $12, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		d.ID, d.FirstName, d.LastName, d.Email, d.Phone, d.Department, d.Specialization,
		d.Qualification, d.ExperienceYears, d.AvailableDays, d.AvailableHours.Start, d.AvailableHours.End,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if postgres.IsNoRows(err) {
		return apperror.NotFound("doctor", d.ID.String())
	}
	if err != nil {
		return fmt.Errorf("update doctor: %w", err)
	}
	return nil
}

func (s *PGStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM doctors WHERE id = $1`, id)
	if postgres.IsForeignKeyViolation(err) {
		return apperror.Conflict("doctor has appointments or prescriptions")
	}
	if err != nil {
		return fmt.Errorf("delete doctor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("doctor", id.String())
	}
	return nil
}

func (s *PGStore) List(ctx context.Context, params listing.Params) (*listing.Page[Doctor], error) {
	var where []exp.Expression
	if dep, ok := params.Filter("department"); ok {
		where = append(where, goqu.C("department").Eq(dep))
	}
	if spec, ok := params.Filter("specialization"); ok {
		where = append(where, goqu.C("specialization").Eq(spec))
	}
	return postgres.SelectPage(ctx, s.pool, listQuery, params, scanDoctor, where...)
}
