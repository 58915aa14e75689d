package extractors

import (
	"context"
	"database/sql"
	"fmt"

	"schemaextract/internal/db"
)

// queryNames runs a query that returns a single text column.
func queryNames(ctx context.Context, q db.Querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// scanForeignKeys reads (column, referenced table, referenced column) rows
// and closes them.
func scanForeignKeys(rows *sql.Rows, table string) ([]db.ForeignKeyInfo, error) {
	defer rows.Close()
	var fks []db.ForeignKeyInfo
	for rows.Next() {
		var (
			fk  db.ForeignKeyInfo
			ref sql.NullString
		)
		if err := rows.Scan(&fk.Column, &fk.RefTable, &ref); err != nil {
			return nil, fmt.Errorf("scan foreign key for %s: %w", table, err)
		}
		fk.RefColumn = ref.String
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}
