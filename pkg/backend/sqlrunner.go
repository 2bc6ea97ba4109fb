package backend

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLRunner executes statements over a database/sql handle and scans
// rows into maps. It is the default Runner for hosts that hand the
// compiler a plain *sql.DB.
type SQLRunner struct {
	db *sql.DB
}

// NewSQLRunner wraps an open database handle.
func NewSQLRunner(db *sql.DB) *SQLRunner {
	return &SQLRunner{db: db}
}

// Query runs the statement and returns all rows.
func (r *SQLRunner) Query(ctx context.Context, query string) ([]Row, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(Row, len(cols))
		for i, col := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
