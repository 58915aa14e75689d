//go:build oracle
// +build oracle

package extractors

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/godror/godror"

	"schemaextract/internal/db"
	"schemaextract/pkg/config"
)

// oracleCatalog implements db.Catalog for Oracle. The scope is the owning
// schema, which defaults to the connecting user.
type oracleCatalog struct{}

func (oracleCatalog) ConnString(d config.Descriptor) (string, string, error) {
	if d.Host == "" || d.Database == "" {
		return "", "", fmt.Errorf("oracle needs a host and a service name in database")
	}
	var p godror.ConnectionParams
	p.Username = d.Username
	p.Password = godror.NewPassword(d.Password)
	p.ConnectString = net.JoinHostPort(d.Host, strconv.Itoa(d.PortOrDefault())) + "/" + d.Database
	return "godror", p.StringWithPassword(), nil
}

func (oracleCatalog) Scope(d config.Descriptor) string {
	return strings.ToUpper(d.Param("schema", d.Username))
}

func (oracleCatalog) Tables(ctx context.Context, q db.Querier, scope string) ([]string, error) {
	return queryNames(ctx, q, `
	    SELECT table_name
	    FROM all_tables
	    WHERE owner = :1
	    ORDER BY table_name`, scope)
}

func (oracleCatalog) Columns(ctx context.Context, q db.Querier, scope, table string) ([]db.ColumnInfo, error) {
	rows, err := q.QueryContext(ctx, `
            SELECT column_name,
                   data_type || CASE
                       WHEN data_type IN ('VARCHAR2', 'NVARCHAR2', 'CHAR', 'NCHAR') THEN '(' || char_length || ')'
                       WHEN data_type = 'NUMBER' AND data_precision IS NOT NULL THEN '(' || data_precision || ',' || nvl(data_scale, 0) || ')'
                       ELSE '' END,
                   nullable,
                   data_default,
                   identity_column
            FROM all_tab_columns
            WHERE owner = :1 AND table_name = :2
            ORDER BY column_id`, scope, table)
	if err != nil {
		return nil, fmt.Errorf("query columns for %s.%s: %w", scope, table, err)
	}
	defer rows.Close()

	var cols []db.ColumnInfo
	for rows.Next() {
		var (
			col                db.ColumnInfo
			nullable, identity string
			dflt               sql.NullString
		)
		if err := rows.Scan(&col.Name, &col.NativeType, &nullable, &dflt, &identity); err != nil {
			return nil, fmt.Errorf("scan column for %s.%s: %w", scope, table, err)
		}
		col.Nullable = nullable == "Y"
		col.AutoIncrement = identity == "YES"
		if dflt.Valid {
			v := strings.TrimSpace(dflt.String)
			col.Default = &v
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func (oracleCatalog) PrimaryKeys(ctx context.Context, q db.Querier, scope, table string) ([]string, error) {
	return queryNames(ctx, q, `
            SELECT acc.column_name
            FROM all_cons_columns acc
            JOIN all_constraints ac ON acc.owner = ac.owner AND acc.constraint_name = ac.constraint_name
            WHERE ac.constraint_type = 'P' AND acc.owner = :1 AND acc.table_name = :2
            ORDER BY acc.position`, scope, table)
}

func (oracleCatalog) ForeignKeys(ctx context.Context, q db.Querier, scope, table string) ([]db.ForeignKeyInfo, error) {
	rows, err := q.QueryContext(ctx, `
        SELECT acc.column_name, rcc.table_name, rcc.column_name
        FROM all_constraints a
        JOIN all_cons_columns acc
          ON a.owner = acc.owner
         AND a.constraint_name = acc.constraint_name
        JOIN all_cons_columns rcc
          ON a.r_owner = rcc.owner
         AND a.r_constraint_name = rcc.constraint_name
         AND nvl(acc.position, 0) = nvl(rcc.position, 0)
        WHERE a.constraint_type = 'R'
          AND a.owner = :1 AND a.table_name = :2
        ORDER BY a.constraint_name, acc.position`, scope, table)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys for %s.%s: %w", scope, table, err)
	}
	return scanForeignKeys(rows, table)
}

func init() {
	db.Register("oracle", oracleCatalog{})
}
