package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	mssql "github.com/denisenkom/go-mssqldb"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"schemaextract/pkg/config"
)

// ConnectionError reports a failure to reach or stay connected to a
// database: authentication, network, timeout or cancellation. Its message
// never contains the descriptor password.
type ConnectionError struct {
	Dialect config.Dialect
	Target  string
	Msg     string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %s", e.Target, e.Msg)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IntrospectionError reports a catalog query that failed on a working
// connection, for example for lack of privileges on a system view.
type IntrospectionError struct {
	Dialect config.Dialect
	Stage   string
	Table   string
	Err     error
}

func (e *IntrospectionError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("introspect %s: query %s: %v", e.Dialect, e.Stage, e.Err)
	}
	return fmt.Sprintf("introspect %s: query %s for %s: %v", e.Dialect, e.Stage, e.Table, e.Err)
}

func (e *IntrospectionError) Unwrap() error { return e.Err }

func newConnectionError(desc config.Descriptor, err error) *ConnectionError {
	return &ConnectionError{
		Dialect: desc.Dialect(),
		Target:  desc.String(),
		Msg:     redact(err.Error(), desc.Password),
		Err:     err,
	}
}

// redact removes every spelling of password that a DSN may carry.
func redact(msg, password string) string {
	if password == "" {
		return msg
	}
	for _, p := range []string{password, url.QueryEscape(password), url.PathEscape(password), url.UserPassword("", password).String()[1:]} {
		if p != "" {
			msg = strings.ReplaceAll(msg, p, "****")
		}
	}
	return msg
}

// isConnectionFailure tells errors that mean the connection itself is
// unusable apart from failed catalog queries.
func isConnectionFailure(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		class := pqErr.Code.Class()
		return class == "08" || class == "28"
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "28")
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1044 || myErr.Number == 1045
	}
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return msErr.Number == 18456
	}
	return false
}

// fail classifies err raised while querying stage of the catalog.
func (h *Handle) fail(stage, table string, err error) error {
	if isConnectionFailure(err) {
		return newConnectionError(h.desc, err)
	}
	return &IntrospectionError{Dialect: h.dialect, Stage: stage, Table: table, Err: err}
}
