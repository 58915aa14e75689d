package extractors

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"

	_ "github.com/denisenkom/go-mssqldb"

	"schemaextract/internal/db"
	"schemaextract/pkg/config"
)

// mssqlCatalog implements db.Catalog for Microsoft SQL Server.
type mssqlCatalog struct{}

func (mssqlCatalog) ConnString(d config.Descriptor) (string, string, error) {
	if d.Host == "" {
		return "", "", fmt.Errorf("sqlserver needs a host")
	}
	query := url.Values{}
	query.Set("database", d.Database)
	query.Set("connection timeout", strconv.Itoa(int(d.Timeout().Seconds())))
	query.Set("ApplicationIntent", "ReadOnly")
	for k, v := range d.AdditionalParams {
		if k != "schema" {
			query.Set(k, v)
		}
	}
	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(d.Username, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.PortOrDefault())),
		RawQuery: query.Encode(),
	}
	return "sqlserver", u.String(), nil
}

func (mssqlCatalog) Scope(d config.Descriptor) string {
	return d.Param("schema", "dbo")
}

func (mssqlCatalog) Tables(ctx context.Context, q db.Querier, scope string) ([]string, error) {
	return queryNames(ctx, q, `
        SELECT t.name
        FROM sys.tables AS t
        JOIN sys.schemas AS s
          ON s.schema_id = t.schema_id
        WHERE s.name = @schema
        ORDER BY t.name`, sql.Named("schema", scope))
}

func (mssqlCatalog) Columns(ctx context.Context, q db.Querier, scope, table string) ([]db.ColumnInfo, error) {
	rows, err := q.QueryContext(ctx, `
        SELECT c.COLUMN_NAME,
               c.DATA_TYPE + CASE
                   WHEN c.CHARACTER_MAXIMUM_LENGTH = -1 THEN '(max)'
                   WHEN c.CHARACTER_MAXIMUM_LENGTH IS NOT NULL THEN '(' + CAST(c.CHARACTER_MAXIMUM_LENGTH AS varchar(10)) + ')'
                   ELSE '' END,
               CASE WHEN c.IS_NULLABLE = 'YES' THEN 1 ELSE 0 END,
               c.COLUMN_DEFAULT,
               COALESCE(COLUMNPROPERTY(OBJECT_ID(QUOTENAME(c.TABLE_SCHEMA) + '.' + QUOTENAME(c.TABLE_NAME)), c.COLUMN_NAME, 'IsIdentity'), 0)
        FROM INFORMATION_SCHEMA.COLUMNS AS c
        WHERE c.TABLE_SCHEMA = @schema AND c.TABLE_NAME = @table
        ORDER BY c.ORDINAL_POSITION`, sql.Named("schema", scope), sql.Named("table", table))
	if err != nil {
		return nil, fmt.Errorf("query columns for %s.%s: %w", scope, table, err)
	}
	defer rows.Close()

	var cols []db.ColumnInfo
	for rows.Next() {
		var (
			col      db.ColumnInfo
			dflt     sql.NullString
			identity int
		)
		if err := rows.Scan(&col.Name, &col.NativeType, &col.Nullable, &dflt, &identity); err != nil {
			return nil, fmt.Errorf("scan column for %s.%s: %w", scope, table, err)
		}
		if dflt.Valid {
			col.Default = &dflt.String
		}
		col.AutoIncrement = identity == 1
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func (mssqlCatalog) PrimaryKeys(ctx context.Context, q db.Querier, scope, table string) ([]string, error) {
	return queryNames(ctx, q, `
        SELECT kcu.COLUMN_NAME
        FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS AS tc
        JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE AS kcu
          ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
         AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
        WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
          AND tc.TABLE_SCHEMA = @schema AND tc.TABLE_NAME = @table
        ORDER BY kcu.ORDINAL_POSITION`, sql.Named("schema", scope), sql.Named("table", table))
}

func (mssqlCatalog) ForeignKeys(ctx context.Context, q db.Querier, scope, table string) ([]db.ForeignKeyInfo, error) {
	rows, err := q.QueryContext(ctx, `
        SELECT pc.name, rt.name, rc.name
        FROM sys.foreign_key_columns AS fkc
        JOIN sys.tables AS pt
          ON pt.object_id = fkc.parent_object_id
        JOIN sys.schemas AS s
          ON s.schema_id = pt.schema_id
        JOIN sys.columns AS pc
          ON pc.object_id = fkc.parent_object_id
         AND pc.column_id = fkc.parent_column_id
        JOIN sys.tables AS rt
          ON rt.object_id = fkc.referenced_object_id
        JOIN sys.columns AS rc
          ON rc.object_id = fkc.referenced_object_id
         AND rc.column_id = fkc.referenced_column_id
        WHERE s.name = @schema AND pt.name = @table
        ORDER BY fkc.constraint_object_id, fkc.constraint_column_id`, sql.Named("schema", scope), sql.Named("table", table))
	if err != nil {
		return nil, fmt.Errorf("query foreign keys for %s.%s: %w", scope, table, err)
	}
	return scanForeignKeys(rows, table)
}

func init() {
	db.Register("sqlserver", mssqlCatalog{})
}
