package extractors

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"

	"schemaextract/internal/db"
	"schemaextract/pkg/config"
)

// pgCatalog implements db.Catalog using information_schema + pg_catalog queries.
// lib/pq is the default driver; additional_params driver=pgx selects pgx.
type pgCatalog struct{}

// params that are handled here rather than passed through to the server
var pgReserved = map[string]bool{"driver": true, "schema": true}

func (pgCatalog) ConnString(d config.Descriptor) (string, string, error) {
	if d.Host == "" {
		return "", "", fmt.Errorf("postgres needs a host")
	}
	query := url.Values{}
	query.Set("sslmode", d.Param("sslmode", "disable"))
	query.Set("connect_timeout", strconv.Itoa(int(d.Timeout().Seconds())))
	for k, v := range d.AdditionalParams {
		if !pgReserved[k] && k != "sslmode" {
			query.Set(k, v)
		}
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.Username, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.PortOrDefault())),
		Path:     "/" + d.Database,
		RawQuery: query.Encode(),
	}

	driver := "postgres"
	if d.Param("driver", "") == "pgx" {
		driver = "pgx"
	}
	return driver, u.String(), nil
}

func (pgCatalog) Scope(d config.Descriptor) string {
	return d.Param("schema", "public")
}

func (pgCatalog) Tables(ctx context.Context, q db.Querier, scope string) ([]string, error) {
	return queryNames(ctx, q, `
        SELECT table_name
        FROM information_schema.tables
        WHERE table_type = 'BASE TABLE'
          AND table_schema = $1
        ORDER BY table_name`, scope)
}

func (pgCatalog) Columns(ctx context.Context, q db.Querier, scope, table string) ([]db.ColumnInfo, error) {
	rows, err := q.QueryContext(ctx, `
        SELECT column_name,
               CASE WHEN data_type = 'USER-DEFINED' THEN udt_name
                    WHEN data_type = 'ARRAY' THEN ltrim(udt_name, '_') || '[]'
                    ELSE data_type END,
               is_nullable = 'YES',
               column_default,
               coalesce(column_default LIKE 'nextval(%', false) OR is_identity = 'YES'
        FROM information_schema.columns
        WHERE table_schema = $1 AND table_name = $2
        ORDER BY ordinal_position`, scope, table)
	if err != nil {
		return nil, fmt.Errorf("query columns for %s.%s: %w", scope, table, err)
	}
	defer rows.Close()

	var cols []db.ColumnInfo
	for rows.Next() {
		var (
			col  db.ColumnInfo
			dflt sql.NullString
		)
		if err := rows.Scan(&col.Name, &col.NativeType, &col.Nullable, &dflt, &col.AutoIncrement); err != nil {
			return nil, fmt.Errorf("scan column for %s.%s: %w", scope, table, err)
		}
		if dflt.Valid {
			col.Default = &dflt.String
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func (pgCatalog) PrimaryKeys(ctx context.Context, q db.Querier, scope, table string) ([]string, error) {
	return queryNames(ctx, q, `
        SELECT a.attname
        FROM pg_index i
        JOIN pg_class c ON i.indrelid = c.oid
        JOIN pg_namespace ns ON c.relnamespace = ns.oid
        JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = ANY(i.indkey)
        WHERE ns.nspname = $1 AND c.relname = $2 AND i.indisprimary
        ORDER BY array_position(i.indkey::int2[], a.attnum)`, scope, table)
}

func (pgCatalog) ForeignKeys(ctx context.Context, q db.Querier, scope, table string) ([]db.ForeignKeyInfo, error) {
	rows, err := q.QueryContext(ctx, `
        SELECT kcu.column_name, rkcu.table_name, rkcu.column_name
        FROM information_schema.table_constraints tc
        JOIN information_schema.key_column_usage kcu
          ON tc.constraint_name = kcu.constraint_name
         AND tc.constraint_schema = kcu.constraint_schema
        JOIN information_schema.referential_constraints rc
          ON tc.constraint_name = rc.constraint_name
         AND tc.constraint_schema = rc.constraint_schema
        JOIN information_schema.key_column_usage rkcu
          ON rc.unique_constraint_name = rkcu.constraint_name
         AND rc.unique_constraint_schema = rkcu.constraint_schema
         AND kcu.position_in_unique_constraint = rkcu.ordinal_position
        WHERE tc.constraint_type = 'FOREIGN KEY'
          AND tc.table_schema = $1 AND tc.table_name = $2
        ORDER BY tc.constraint_name, kcu.ordinal_position`, scope, table)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys for %s.%s: %w", scope, table, err)
	}
	return scanForeignKeys(rows, table)
}

func init() {
	db.Register("postgres", pgCatalog{})
}
