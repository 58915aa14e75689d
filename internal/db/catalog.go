package db

import (
	"context"
	"database/sql"
	"slices"
	"sync"

	"schemaextract/pkg/config"
)

// Querier is the read side of *sql.DB that catalogs need.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ColumnInfo is a column as reported by a dialect catalog.
type ColumnInfo struct {
	Name          string
	NativeType    string
	Nullable      bool
	Default       *string
	AutoIncrement bool
}

// ForeignKeyInfo is one column of a foreign key constraint. RefColumn is
// empty when the catalog only names the target table.
type ForeignKeyInfo struct {
	Column    string
	RefTable  string
	RefColumn string
}

// Catalog is the per-dialect strategy. Implementations hold no state and
// only issue read statements.
type Catalog interface {
	// ConnString returns the database/sql driver name and DSN for d.
	ConnString(d config.Descriptor) (driver, dsn string, err error)

	// Scope returns the schema or owner that extraction is limited to.
	Scope(d config.Descriptor) string

	// Tables lists base tables in scope, in catalog order.
	Tables(ctx context.Context, q Querier, scope string) ([]string, error)

	// Columns lists the columns of table in declaration order.
	Columns(ctx context.Context, q Querier, scope, table string) ([]ColumnInfo, error)

	PrimaryKeys(ctx context.Context, q Querier, scope, table string) ([]string, error)

	ForeignKeys(ctx context.Context, q Querier, scope, table string) ([]ForeignKeyInfo, error)
}

var (
	dialectsMu sync.RWMutex
	dialects   = map[config.Dialect]Catalog{}
)

// Register makes a Catalog available under name. Aliases are folded with
// config.ParseDialect.
func Register(name string, c Catalog) {
	dialectsMu.Lock()
	defer dialectsMu.Unlock()
	dialects[config.ParseDialect(name)] = c
}

func lookup(d config.Dialect) (Catalog, bool) {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	c, ok := dialects[d]
	return c, ok
}

// RegisteredDialects returns the registered dialect names, sorted.
func RegisteredDialects() []string {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	keys := make([]string, 0, len(dialects))
	for k := range dialects {
		keys = append(keys, string(k))
	}
	slices.Sort(keys)
	return keys
}
