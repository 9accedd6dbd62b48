package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/celulas/locator/internal/domain"
)

// scanRawRows reads every row into a column-name keyed map. Byte slices are
// copied into strings since the driver may reuse them.
func scanRawRows(rows *sql.Rows) ([]domain.RawRow, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []domain.RawRow
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(domain.RawRow, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// relationIndex runs query and indexes the resulting rows by their id column.
func (s *Store) relationIndex(ctx context.Context, query string) (map[string]domain.RawRow, error) {
	rows, err := s.query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	raw, err := scanRawRows(rows)
	if err != nil {
		return nil, err
	}
	index := make(map[string]domain.RawRow, len(raw))
	for _, row := range raw {
		index[idKey(row["id"])] = row
	}
	return index, nil
}

func idKey(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
