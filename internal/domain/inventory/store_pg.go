package inventory

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

const selectColumns = `SELECT id, name, category, quantity, unit, unit_price, reorder_level,
	supplier, location, expiry_date, last_restocked, created_at, updated_at FROM inventory`

var listQuery = postgres.ListQuery{
	Table: "inventory",
	Columns: postgres.Cols("id", "name", "category", "quantity", "unit", "unit_price",
		"reorder_level", "supplier", "location", "expiry_date", "last_restocked",
		"created_at", "updated_at"),
	SearchColumns: []string{"name", "supplier"},
	SortColumns: map[string]exp.Orderable{
		"name":        goqu.L("lower(name)"),
		"quantity":    goqu.C("quantity"),
		"expiry_date": goqu.C("expiry_date"),
		"unit_price":  goqu.C("unit_price"),
		"created_at":  goqu.C("created_at"),
	},
	Tiebreak: "id",
}

func scanItem(row pgx.CollectableRow) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.Name, &it.Category, &it.Quantity, &it.Unit, &it.UnitPrice,
		&it.ReorderLevel, &it.Supplier, &it.Location, &it.ExpiryDate, &it.LastRestocked,
		&it.CreatedAt, &it.UpdatedAt)
	return it, err
}

type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Create(ctx context.Context, it *Item) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO inventory (id, name, category, quantity, unit, unit_price, reorder_level,
			supplier, location, expiry_date, last_restocked)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`,
		it.ID, it.Name, it.Category, it.Quantity, it.Unit, it.UnitPrice, it.ReorderLevel,
		it.Supplier, it.Location, it.ExpiryDate, it.LastRestocked,
	).Scan(&it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert inventory item: %w", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, id uuid.UUID) (*Item, error) {
	return getItem(ctx, s.pool, selectColumns+` WHERE id = $1`, id)
}

func getItem(ctx context.Context, q postgres.Querier, sql string, id uuid.UUID) (*Item, error) {
	rows, err := q.Query(ctx, sql, id)
	if err != nil {
		return nil, fmt.Errorf("get inventory item: %w", err)
	}
	it, err := pgx.CollectExactlyOneRow(rows, scanItem)
	if postgres.IsNoRows(err) {
		return nil, apperror.NotFound("inventory item", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("scan inventory item: %w", err)
	}
	return &it, nil
}

// LockItem loads an item with FOR UPDATE inside tx.
func LockItem(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Item, error) {
	return getItem(ctx, tx, selectColumns+` WHERE id = $1 FOR UPDATE`, id)
}

// SaveItem writes every mutable column of a locked item.
func SaveItem(ctx context.Context, tx pgx.Tx, it *Item) error {
	err := tx.QueryRow(ctx, `
		UPDATE inventory SET name = $2, category = $3, quantity = $4, unit = $5, unit_price = $6,
			reorder_level = $7, supplier = $8, location = $9, expiry_date = $10,
			last_restocked = $11, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		it.ID, it.Name, it.Category, it.Quantity, it.Unit, it.UnitPrice, it.ReorderLevel,
		it.Supplier, it.Location, it.ExpiryDate, it.LastRestocked,
	).Scan(&it.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update inventory item: %w", err)
	}
	return nil
}

func (s *PGStore) Modify(ctx context.Context, id uuid.UUID, fn ModifyFunc) (*Item, error) {
	var out *Item
	err := postgres.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		it, err := LockItem(ctx, tx, id)
		if err != nil {
			return err
		}
		evts, err := fn(it)
		if err != nil {
			return err
		}
		if err := SaveItem(ctx, tx, it); err != nil {
			return err
		}
		for _, evt := range evts {
			if err := postgres.AppendEvent(ctx, tx, evt); err != nil {
				return err
			}
		}
		out = it
		return nil
	})
	return out, err
}

func (s *PGStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM inventory WHERE id = $1`, id)
	if postgres.IsForeignKeyViolation(err) {
		return apperror.Conflict("item is referenced by prescriptions")
	}
	if err != nil {
		return fmt.Errorf("delete inventory item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("inventory item", id.String())
	}
	return nil
}

func (s *PGStore) List(ctx context.Context, params listing.Params, f Filter) (*listing.Page[Item], error) {
	var where []exp.Expression
	if f.Category != "" {
		where = append(where, goqu.C("category").Eq(f.Category))
	}
	if f.LowStock {
		where = append(where, goqu.C("quantity").Lte(goqu.C("reorder_level")))
	}
	if f.ExpiringBy != nil {
		where = append(where, goqu.C("expiry_date").Lte(f.ExpiringBy.String()))
	}
	return postgres.SelectPage(ctx, s.pool, listQuery, params, scanItem, where...)
}
