package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	"schemaextract/internal/logger"
	"schemaextract/internal/relate"
	"schemaextract/internal/schema"
	"schemaextract/internal/typemap"
	"schemaextract/pkg/config"
)

// Handle is an open, read-only connection to one database. It is valid
// between Connect and Disconnect.
type Handle struct {
	db      *sql.DB
	desc    config.Descriptor
	dialect config.Dialect
	catalog Catalog
	scope   string
	closed  atomic.Bool
}

func (h *Handle) Dialect() config.Dialect { return h.dialect }

// Closed reports whether the handle has been released.
func (h *Handle) Closed() bool { return h.closed.Load() }

// Close releases the pool. Calling it more than once is a no-op.
func (h *Handle) Close() error {
	if h.closed.Swap(true) {
		return nil
	}
	return h.db.Close()
}

// TestResult is the outcome of a connection test.
type TestResult struct {
	Success    bool    `json:"success"`
	Message    string  `json:"message"`
	Dialect    *string `json:"dialect"`
	TableCount *int    `json:"table_count"`
	Error      *string `json:"error"`
}

// Introspector reads live database catalogs into the canonical model.
type Introspector struct {
	normalizer *typemap.Normalizer
	relate     *relate.Engine
	workers    int
}

func NewIntrospector(n *typemap.Normalizer, r *relate.Engine, cfg config.ExtractionConfig) *Introspector {
	workers := cfg.Workers
	if workers <= 0 {
		workers = config.DefaultWorkers
	}
	return &Introspector{normalizer: n, relate: r, workers: workers}
}

// Connect opens a pool for desc and verifies it within the descriptor
// timeout. Every failure is a *ConnectionError.
func (in *Introspector) Connect(ctx context.Context, desc config.Descriptor) (*Handle, error) {
	d := desc.Dialect()
	catalog, ok := lookup(d)
	if !ok {
		return nil, newConnectionError(desc, fmt.Errorf("dialect not registered: %q (available: %v)", d, RegisteredDialects()))
	}
	driver, dsn, err := catalog.ConnString(desc)
	if err != nil {
		return nil, newConnectionError(desc, err)
	}
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, newConnectionError(desc, err)
	}
	conn.SetMaxOpenConns(in.workers)

	pctx, cancel := context.WithTimeout(ctx, desc.Timeout())
	defer cancel()
	if err := conn.PingContext(pctx); err != nil {
		conn.Close()
		return nil, newConnectionError(desc, err)
	}
	logger.Debug("connected to %s", desc)
	return &Handle{
		db:      conn,
		desc:    desc,
		dialect: d,
		catalog: catalog,
		scope:   catalog.Scope(desc),
	}, nil
}

// Disconnect releases h. It is safe on a nil or already closed handle.
func (in *Introspector) Disconnect(h *Handle) error {
	if h == nil {
		return nil
	}
	return h.Close()
}

// WithConnection runs fn with a connected handle and always disconnects,
// whatever fn returns.
func (in *Introspector) WithConnection(ctx context.Context, desc config.Descriptor, fn func(*Handle) error) error {
	h, err := in.Connect(ctx, desc)
	if err != nil {
		return err
	}
	defer in.Disconnect(h)
	return fn(h)
}

// Extract connects, extracts the structure and disconnects.
func (in *Introspector) Extract(ctx context.Context, desc config.Descriptor) (schema.DatabaseStructure, []schema.Warning, error) {
	var (
		s        schema.DatabaseStructure
		warnings []schema.Warning
	)
	err := in.WithConnection(ctx, desc, func(h *Handle) error {
		var err error
		s, warnings, err = in.ExtractStructure(ctx, h)
		return err
	})
	if err != nil {
		return schema.DatabaseStructure{}, nil, err
	}
	return s, warnings, nil
}

// TestConnection connects and lists tables, nothing more. It never panics
// and always releases the connection.
func (in *Introspector) TestConnection(ctx context.Context, desc config.Descriptor) (res TestResult) {
	var dialect *string
	if _, ok := lookup(desc.Dialect()); ok {
		d := string(desc.Dialect())
		dialect = &d
	}
	failed := func(msg string) TestResult {
		return TestResult{Message: "connection failed", Dialect: dialect, Error: &msg}
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("connection test panicked: %v", redact(fmt.Sprint(r), desc.Password))
			res = failed(redact(fmt.Sprint(r), desc.Password))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, desc.Timeout())
	defer cancel()

	h, err := in.Connect(ctx, desc)
	if err != nil {
		return failed(err.Error())
	}
	defer in.Disconnect(h)

	names, err := h.catalog.Tables(ctx, h.db, h.scope)
	if err != nil {
		return failed(h.fail("tables", "", err).Error())
	}
	n := len(names)
	return TestResult{
		Success:    true,
		Message:    fmt.Sprintf("connected to %s, %d tables found", desc, n),
		Dialect:    dialect,
		TableCount: &n,
	}
}
