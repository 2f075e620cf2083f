package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/listing"
)

// Dialect builds PostgreSQL statements with numbered placeholders.
var Dialect = goqu.Dialect("postgres")

// ListQuery describes how listing params map onto one table.
type ListQuery struct {
	Table string
	// Columns selected, in struct field order.
	Columns []any
	// SearchColumns are matched with ILIKE against the free-text search.
	SearchColumns []string
	// SearchExprs are matched like SearchColumns, for computed values
	// such as a full name.
	SearchExprs []exp.Likeable
	// SortColumns maps a public sort key to a column or expression.
	SortColumns map[string]exp.Orderable
	// Tiebreak keeps paging stable when sort values collide.
	Tiebreak string
}

// Build returns the page query and the count query for p with extra
// conditions ANDed in.
func (q ListQuery) Build(p listing.Params, where ...exp.Expression) (*goqu.SelectDataset, *goqu.SelectDataset) {
	conds := append([]exp.Expression{}, where...)
	if p.Search != "" && len(q.SearchColumns)+len(q.SearchExprs) > 0 {
		pattern := "%" + EscapeLike(p.Search) + "%"
		ors := make([]exp.Expression, 0, len(q.SearchColumns)+len(q.SearchExprs))
		for _, col := range q.SearchColumns {
			ors = append(ors, goqu.I(col).ILike(pattern))
		}
		for _, e := range q.SearchExprs {
			ors = append(ors, e.ILike(pattern))
		}
		conds = append(conds, goqu.Or(ors...))
	}

	base := Dialect.From(q.Table).Prepared(true)
	if len(conds) > 0 {
		base = base.Where(conds...)
	}

	count := base.Select(goqu.COUNT(goqu.Star()))

	page := base.Select(q.Columns...)
	if col, ok := q.SortColumns[p.Sort]; ok {
		if p.Desc {
			page = page.Order(col.Desc().NullsLast())
		} else {
			page = page.Order(col.Asc().NullsLast())
		}
	}
	if q.Tiebreak != "" {
		page = page.OrderAppend(goqu.I(q.Tiebreak).Asc())
	}
	if p.Limit > 0 {
		page = page.Limit(uint(p.Limit))
	}
	if p.Offset > 0 {
		page = page.Offset(uint(p.Offset))
	}
	return page, count
}

// SelectPage runs the page and count queries built by q, scanning rows with
// scan.
func SelectPage[T any](ctx context.Context, pool *pgxpool.Pool, q ListQuery, p listing.Params, scan pgx.RowToFunc[T], where ...exp.Expression) (*listing.Page[T], error) {
	pageDS, countDS := q.Build(p, where...)

	countSQL, countArgs, err := countDS.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count %s: %w", q.Table, err)
	}

	pageSQL, pageArgs, err := pageDS.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}
	rows, err := pool.Query(ctx, pageSQL, pageArgs...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", q.Table, err)
	}
	items, err := pgx.CollectRows(rows, scan)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", q.Table, err)
	}
	if items == nil {
		items = []T{}
	}

	return &listing.Page[T]{Items: items, Total: total, Limit: p.Limit, Offset: p.Offset}, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike quotes the LIKE wildcards in s so it matches literally under
// the default backslash escape.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// FullName matches "first last" as one string.
func FullName() exp.LiteralExpression {
	return goqu.L("(first_name || ' ' || last_name)")
}

// Cols turns column names into select expressions.
func Cols(names ...string) []any {
	out := make([]any, len(names))
	for i, n := range names {
		out[i] = goqu.C(n)
	}
	return out
}
