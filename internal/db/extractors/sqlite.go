package extractors

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite"

	"schemaextract/internal/db"
	"schemaextract/pkg/config"
)

// sqliteCatalog implements db.Catalog for SQLite files through sqlite_master
// and the table-valued pragma functions.
type sqliteCatalog struct{}

func (sqliteCatalog) ConnString(d config.Descriptor) (string, string, error) {
	if d.Database == "" {
		return "", "", fmt.Errorf("sqlite needs a file path in database")
	}
	if _, err := os.Stat(d.Database); err != nil {
		return "", "", fmt.Errorf("sqlite database file: %w", err)
	}
	return "sqlite", fmt.Sprintf("file:%s?mode=ro", d.Database), nil
}

func (sqliteCatalog) Scope(config.Descriptor) string { return "main" }

func (sqliteCatalog) Tables(ctx context.Context, q db.Querier, _ string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
	    SELECT name
		FROM sqlite_master
		WHERE type = 'table'
		AND name NOT LIKE 'sqlite_%'
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table row: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (sqliteCatalog) Columns(ctx context.Context, q db.Querier, _ string, table string) ([]db.ColumnInfo, error) {
	rows, err := q.QueryContext(ctx, `
	    SELECT name, type, "notnull", dflt_value, pk
		FROM pragma_table_info(?)
		ORDER BY cid`, table)
	if err != nil {
		return nil, fmt.Errorf("query columns for %s: %w", table, err)
	}
	defer rows.Close()

	var (
		cols    []db.ColumnInfo
		pkCount int
		intPK   = -1
	)
	for rows.Next() {
		var (
			name, ctype string
			notnull, pk int
			dflt        sql.NullString
		)
		if err := rows.Scan(&name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan column for %s: %w", table, err)
		}
		col := db.ColumnInfo{Name: name, NativeType: ctype, Nullable: notnull == 0}
		if dflt.Valid {
			col.Default = &dflt.String
		}
		if pk > 0 {
			pkCount++
			if strings.EqualFold(ctype, "integer") {
				intPK = len(cols)
			}
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// a lone INTEGER primary key aliases the rowid
	if pkCount == 1 && intPK >= 0 {
		cols[intPK].AutoIncrement = true
	}
	return cols, nil
}

func (sqliteCatalog) PrimaryKeys(ctx context.Context, q db.Querier, _ string, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
	    SELECT name
		FROM pragma_table_info(?)
		WHERE pk > 0
		ORDER BY pk`, table)
	if err != nil {
		return nil, fmt.Errorf("query primary key for %s: %w", table, err)
	}
	defer rows.Close()

	var pks []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan primary key for %s: %w", table, err)
		}
		pks = append(pks, name)
	}
	return pks, rows.Err()
}

func (sqliteCatalog) ForeignKeys(ctx context.Context, q db.Querier, _ string, table string) ([]db.ForeignKeyInfo, error) {
	rows, err := q.QueryContext(ctx, `
	    SELECT "from", "table", "to"
		FROM pragma_foreign_key_list(?)
		ORDER BY id, seq`, table)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys for %s: %w", table, err)
	}
	defer rows.Close()

	var fks []db.ForeignKeyInfo
	for rows.Next() {
		var (
			from, target string
			to           sql.NullString
		)
		if err := rows.Scan(&from, &target, &to); err != nil {
			return nil, fmt.Errorf("scan foreign key for %s: %w", table, err)
		}
		fks = append(fks, db.ForeignKeyInfo{Column: from, RefTable: target, RefColumn: to.String})
	}
	return fks, rows.Err()
}

func init() {
	db.Register("sqlite", sqliteCatalog{})
}
