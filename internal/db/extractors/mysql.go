package extractors

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"schemaextract/internal/db"
	"schemaextract/pkg/config"
)

// myCatalog implements db.Catalog for MySQL and MariaDB (information_schema).
type myCatalog struct{}

func (myCatalog) ConnString(d config.Descriptor) (string, string, error) {
	if d.Host == "" || d.Database == "" {
		return "", "", fmt.Errorf("mysql needs a host and a database")
	}
	c := mysql.NewConfig()
	c.User = d.Username
	c.Passwd = d.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(d.Host, strconv.Itoa(d.PortOrDefault()))
	c.DBName = d.Database
	c.Timeout = d.Timeout()
	c.ParseTime = true
	for k, v := range d.AdditionalParams {
		if c.Params == nil {
			c.Params = map[string]string{}
		}
		c.Params[k] = v
	}
	return "mysql", c.FormatDSN(), nil
}

func (myCatalog) Scope(d config.Descriptor) string { return d.Database }

func (myCatalog) Tables(ctx context.Context, q db.Querier, scope string) ([]string, error) {
	return queryNames(ctx, q, `
        SELECT table_name
        FROM information_schema.tables
        WHERE table_type = 'BASE TABLE'
          AND table_schema = ?
        ORDER BY table_name`, scope)
}

func (myCatalog) Columns(ctx context.Context, q db.Querier, scope, table string) ([]db.ColumnInfo, error) {
	rows, err := q.QueryContext(ctx, `
        SELECT column_name, column_type, is_nullable = 'YES', column_default,
               extra LIKE '%auto_increment%'
        FROM information_schema.columns
        WHERE table_schema = ? AND table_name = ?
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

func (myCatalog) PrimaryKeys(ctx context.Context, q db.Querier, scope, table string) ([]string, error) {
	return queryNames(ctx, q, `
        SELECT column_name
        FROM information_schema.key_column_usage
        WHERE table_schema = ? AND table_name = ?
          AND constraint_name = 'PRIMARY'
        ORDER BY ordinal_position`, scope, table)
}

func (myCatalog) ForeignKeys(ctx context.Context, q db.Querier, scope, table string) ([]db.ForeignKeyInfo, error) {
	rows, err := q.QueryContext(ctx, `
        SELECT column_name, referenced_table_name, referenced_column_name
        FROM information_schema.key_column_usage
        WHERE table_schema = ? AND table_name = ?
          AND referenced_table_name IS NOT NULL
        ORDER BY constraint_name, ordinal_position`, scope, table)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys for %s.%s: %w", scope, table, err)
	}
	return scanForeignKeys(rows, table)
}

func init() {
	db.Register("mysql", myCatalog{})
}
