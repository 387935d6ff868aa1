package types

import (
	"database/sql"
	"fmt"
)

// ScanRows reads every remaining row of rs into Rows tagged with shape.
// The caller still owns rs and must close it.
func ScanRows(rs *sql.Rows, shape Shape) ([]*Row, error) {
	cols, err := rs.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var out []*Row
	for rs.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := NewRow().WithShape(shape)
		for i, col := range cols {
			row.Set(col, normalizeValue(values[i]))
		}
		out = append(out, row)
	}

	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}
