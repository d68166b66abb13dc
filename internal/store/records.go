// ABOUTME: Read access to the tables behind admin-registered models
// ABOUTME: Describes columns via pragma_table_info and iterates rows lazily as model.Records

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/2389/csvexport/internal/model"
)

// quoteIdent quotes a validated SQL identifier.
func quoteIdent(name string) string {
	return `"` + name + `"`
}

// DescribeTable returns the declared columns of a table in declaration order.
// Returns ErrNotFound if the table does not exist.
func (s *SQLiteStore) DescribeTable(ctx context.Context, table string) ([]model.Field, error) {
	if !model.ValidIdentifier(table) {
		return nil, fmt.Errorf("%w: table %q", model.ErrInvalidIdentifier, table)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT name, type FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, fmt.Errorf("describing table %s: %w", table, err)
	}
	defer rows.Close()

	var fields []model.Field
	for rows.Next() {
		var f model.Field
		if err := rows.Scan(&f.Name, &f.Type); err != nil {
			return nil, fmt.Errorf("scanning column: %w", err)
		}
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating columns: %w", err)
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("table %s: %w", table, ErrNotFound)
	}
	return fields, nil
}

// selectClause builds "SELECT cols FROM table" for a model.
func selectClause(meta *model.Meta) string {
	cols := "*"
	if names := meta.FieldNames(); len(names) > 0 {
		quoted := make([]string, len(names))
		for i, n := range names {
			quoted[i] = quoteIdent(n)
		}
		cols = strings.Join(quoted, ", ")
	}
	return "SELECT " + cols + " FROM " + quoteIdent(meta.Table)
}

// orderClause builds the ORDER BY clause from the model's default ordering,
// falling back to the primary key.
func orderClause(meta *model.Meta) string {
	if len(meta.Ordering) == 0 {
		return " ORDER BY " + quoteIdent(meta.PrimaryKey())
	}
	parts := make([]string, len(meta.Ordering))
	for i, o := range meta.Ordering {
		if name, desc := strings.CutPrefix(o, "-"); desc {
			parts[i] = quoteIdent(name) + " DESC"
		} else {
			parts[i] = quoteIdent(o) + " ASC"
		}
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

// Records returns the rows whose primary key is in ids, in the model's
// default ordering. A nil ids selects every row; an empty non-nil ids
// selects nothing. The query runs when the sequence is first iterated.
func (s *SQLiteStore) Records(ctx context.Context, meta *model.Meta, ids []string) model.QuerySet {
	if ids != nil && len(ids) == 0 {
		return model.Collect()
	}

	query := selectClause(meta)
	args := make([]any, len(ids))
	if ids != nil {
		placeholders := make([]string, len(ids))
		for i, id := range ids {
			placeholders[i] = "?"
			args[i] = pkArg(id)
		}
		query += " WHERE " + quoteIdent(meta.PrimaryKey()) + " IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += orderClause(meta)

	return s.iterate(ctx, meta, query, args...)
}

// pkArg binds a canonical integer id as an integer, anything else as text.
// Columns declared without a type apply no affinity, so 1 IN ('1') is false
// there; integer binds still match TEXT columns through their affinity.
func pkArg(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil && strconv.FormatInt(n, 10) == id {
		return n
	}
	return id
}

// ListRecords returns up to limit rows in the model's default ordering.
func (s *SQLiteStore) ListRecords(ctx context.Context, meta *model.Meta, limit int) model.QuerySet {
	query := selectClause(meta) + orderClause(meta) + " LIMIT ?"
	return s.iterate(ctx, meta, query, limit)
}

// CountRecords returns the number of rows in the model's table.
func (s *SQLiteStore) CountRecords(ctx context.Context, meta *model.Meta) (int, error) {
	if err := meta.Validate(); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(meta.Table)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", meta.Label(), err)
	}
	return count, nil
}

// iterate runs query when the returned sequence is ranged over and yields
// one model.Row per result row. The cursor is closed when iteration ends.
func (s *SQLiteStore) iterate(ctx context.Context, meta *model.Meta, query string, args ...any) model.QuerySet {
	return func(yield func(model.Record, error) bool) {
		if err := meta.Validate(); err != nil {
			yield(nil, err)
			return
		}

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(nil, fmt.Errorf("querying %s: %w", meta.Label(), err))
			return
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			yield(nil, fmt.Errorf("reading columns: %w", err))
			return
		}

		for rows.Next() {
			row, err := scanRow(rows, cols)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(row, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("iterating %s: %w", meta.Label(), err))
		}
	}
}

// scanRow reads the current row into a model.Row keyed by column name.
func scanRow(rows *sql.Rows, cols []string) (model.Row, error) {
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scanning row: %w", err)
	}

	row := make(model.Row, len(cols))
	for i, c := range cols {
		row[c] = values[i]
	}
	return row, nil
}
