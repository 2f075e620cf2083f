package settings

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

const profileColumns = `id, email, first_name, last_name, phone, department, designation,
	avatar_url, role, created_at, updated_at`

var profileQuery = postgres.ListQuery{
	Table: "profiles",
	Columns: postgres.Cols("id", "email", "first_name", "last_name", "phone", "department",
		"designation", "avatar_url", "role", "created_at", "updated_at"),
	SearchColumns: []string{"email", "first_name", "last_name", "department"},
	SearchExprs:   []exp.Likeable{postgres.FullName()},
	SortColumns: map[string]exp.Orderable{
		"name":       goqu.L("lower(first_name || ' ' || last_name)"),
		"email":      goqu.C("email"),
		"role":       goqu.C("role"),
		"created_at": goqu.C("created_at"),
	},
	Tiebreak: "id",
}

func scanProfile(row pgx.CollectableRow) (Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.Email, &p.FirstName, &p.LastName, &p.Phone, &p.Department,
		&p.Designation, &p.AvatarURL, &p.Role, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) one(ctx context.Context, id uuid.UUID, sql string, args ...any) (*Profile, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query profile: %w", err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProfile)
	if postgres.IsNoRows(err) {
		return nil, apperror.NotFound("profile", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	return &p, nil
}

func (s *PGStore) GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return s.one(ctx, id, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
}

func (s *PGStore) EnsureProfile(ctx context.Context, p *Profile) (*Profile, error) {
	err := postgres.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO profiles (id, email, first_name, last_name, phone, department, designation,
				avatar_url, role)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO NOTHING`,
			p.ID, p.Email, p.FirstName, p.LastName, p.Phone, p.Department, p.Designation,
			p.AvatarURL, string(p.Role))
		if postgres.IsUniqueViolation(err) {
			return apperror.Conflict("a profile with this email already exists")
		}
		if err != nil {
			return fmt.Errorf("insert profile: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		evt, err := events.Record(ctx, events.UserSignedUp, "profile", p.ID.String(),
			map[string]string{"email": p.Email, "role": string(p.Role)})
		if err != nil {
			return err
		}
		return postgres.AppendEvent(ctx, tx, evt)
	})
	if err != nil {
		return nil, err
	}
	return s.GetProfile(ctx, p.ID)
}

func (s *PGStore) UpdateProfile(ctx context.Context, id uuid.UUID, in ProfileInput) (*Profile, error) {
	return s.one(ctx, id, `
		UPDATE profiles SET first_name = $2, last_name = $3, phone = $4, department = $5,
			designation = $6, avatar_url = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING `+profileColumns,
		id, in.FirstName, in.LastName, in.Phone, in.Department, in.Designation, in.AvatarURL)
}

func (s *PGStore) SetRole(ctx context.Context, id uuid.UUID, role Role) (*Profile, error) {
	return s.one(ctx, id, `
		UPDATE profiles SET role = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+profileColumns,
		id, string(role))
}

func (s *PGStore) ListProfiles(ctx context.Context, params listing.Params, role Role) (*listing.Page[Profile], error) {
	var where []exp.Expression
	if role != "" {
		where = append(where, goqu.C("role").Eq(string(role)))
	}
	return postgres.SelectPage(ctx, s.pool, profileQuery, params, scanProfile, where...)
}

func (s *PGStore) Values(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		values[k] = v
	}
	return values, rows.Err()
}

func (s *PGStore) SetValues(ctx context.Context, values map[string]string, actor string) error {
	return postgres.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		for k, v := range values {
			_, err := tx.Exec(ctx, `
				INSERT INTO settings (key, value, updated_by, updated_at)
				VALUES ($1, $2, $3, NOW())
				ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value,
					updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`,
				k, v, actor)
			if err != nil {
				return fmt.Errorf("write setting %s: %w", k, err)
			}
		}
		return nil
	})
}
