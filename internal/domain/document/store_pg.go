package document

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

const columnList = `id, patient_id, category, title, file_name, content_type, size_bytes,
	checksum, storage_key, uploaded_by, created_at`

var listQuery = postgres.ListQuery{
	Table: "documents",
	Columns: postgres.Cols("id", "patient_id", "category", "title", "file_name", "content_type",
		"size_bytes", "checksum", "storage_key", "uploaded_by", "created_at"),
	SearchColumns: []string{"title", "file_name"},
	SortColumns: map[string]exp.Orderable{
		"created_at": goqu.C("created_at"),
		"title":      goqu.L("lower(title)"),
		"size_bytes": goqu.C("size_bytes"),
	},
	Tiebreak: "id",
}

func scanDocument(row pgx.CollectableRow) (Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.PatientID, &d.Category, &d.Title, &d.FileName, &d.ContentType,
		&d.SizeBytes, &d.Checksum, &d.StorageKey, &d.UploadedBy, &d.CreatedAt)
	return d, err
}

type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Create(ctx context.Context, d *Document, evt *events.Event) error {
	return postgres.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO documents (id, patient_id, category, title, file_name, content_type,
				size_bytes, checksum, storage_key, uploaded_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING created_at`,
			d.ID, d.PatientID, string(d.Category), d.Title, d.FileName, d.ContentType,
			d.SizeBytes, d.Checksum, d.StorageKey, d.UploadedBy,
		).Scan(&d.CreatedAt)
		if postgres.IsForeignKeyViolation(err) {
			return apperror.NotFound("patient", d.PatientID.String())
		}
		if err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
		return postgres.AppendEvent(ctx, tx, evt)
	})
}

func (s *PGStore) one(ctx context.Context, sql string, id uuid.UUID) (*Document, error) {
	rows, err := s.pool.Query(ctx, sql, id)
	if err != nil {
		return nil, fmt.Errorf("query document: %w", err)
	}
	d, err := pgx.CollectExactlyOneRow(rows, scanDocument)
	if postgres.IsNoRows(err) {
		return nil, apperror.NotFound("document", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return &d, nil
}

func (s *PGStore) Get(ctx context.Context, id uuid.UUID) (*Document, error) {
	return s.one(ctx, `SELECT `+columnList+` FROM documents WHERE id = $1`, id)
}

func (s *PGStore) Delete(ctx context.Context, id uuid.UUID) (*Document, error) {
	return s.one(ctx, `DELETE FROM documents WHERE id = $1 RETURNING `+columnList, id)
}

func (s *PGStore) List(ctx context.Context, params listing.Params, f Filter) (*listing.Page[Document], error) {
	var where []exp.Expression
	if f.PatientID != uuid.Nil {
		where = append(where, goqu.C("patient_id").Eq(f.PatientID.String()))
	}
	if f.Category != "" {
		where = append(where, goqu.C("category").Eq(string(f.Category)))
	}
	return postgres.SelectPage(ctx, s.pool, listQuery, params, scanDocument, where...)
}
