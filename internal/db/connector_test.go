package db

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"schemaextract/internal/relate"
	"schemaextract/internal/schema"
	"schemaextract/internal/typemap"
	"schemaextract/pkg/config"
)

// fakeCatalog serves a fixed catalog over an in-memory SQLite pool.
type fakeCatalog struct {
	names   []string
	columns map[string][]ColumnInfo
	pks     map[string][]string
	fks     map[string][]ForeignKeyInfo

	failOn  string
	failErr error
	cancel  context.CancelFunc // when set, failOn cancels the extraction instead
	panics  bool

	inFlight, maxInFlight atomic.Int32
}

func (f *fakeCatalog) ConnString(config.Descriptor) (string, string, error) {
	return "sqlite", ":memory:", nil
}

func (f *fakeCatalog) Scope(config.Descriptor) string { return "main" }

func (f *fakeCatalog) Tables(context.Context, Querier, string) ([]string, error) {
	if f.panics {
		panic("catalog exploded")
	}
	return f.names, nil
}

func (f *fakeCatalog) Columns(ctx context.Context, q Querier, _ string, table string) ([]ColumnInfo, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	if table == f.failOn {
		if f.cancel == nil {
			return nil, f.failErr
		}
		f.cancel()
		rows, err := q.QueryContext(ctx, "SELECT 1")
		if err != nil {
			return nil, err
		}
		rows.Close()
		return nil, ctx.Err()
	}
	return f.columns[table], nil
}

func (f *fakeCatalog) PrimaryKeys(_ context.Context, _ Querier, _ string, table string) ([]string, error) {
	return f.pks[table], nil
}

func (f *fakeCatalog) ForeignKeys(_ context.Context, _ Querier, _ string, table string) ([]ForeignKeyInfo, error) {
	return f.fks[table], nil
}

func shopCatalog() *fakeCatalog {
	c := &fakeCatalog{
		names: []string{"clientes", "itens", "pedidos"},
		columns: map[string][]ColumnInfo{
			"clientes": {{Name: "id", NativeType: "INTEGER"}, {Name: "nome", NativeType: "VARCHAR(60)", Nullable: true}},
			"pedidos":  {{Name: "id", NativeType: "INTEGER"}, {Name: "cliente_id", NativeType: "INTEGER", Nullable: true}},
			"itens":    {{Name: "pedido_id", NativeType: "INTEGER"}, {Name: "produto_id", NativeType: "INTEGER"}},
		},
		pks: map[string][]string{"clientes": {"id"}, "pedidos": {"id"}},
		fks: map[string][]ForeignKeyInfo{
			"pedidos": {{Column: "cliente_id", RefTable: "clientes"}},
			"itens":   {{Column: "pedido_id", RefTable: "pedidos", RefColumn: "id"}, {Column: "produto_id", RefTable: "produtos", RefColumn: "id"}},
		},
	}
	for i := range 20 {
		name := fmt.Sprintf("extra%02d", i)
		c.names = append(c.names, name)
		c.columns[name] = []ColumnInfo{{Name: "x", NativeType: "TEXT"}}
	}
	return c
}

func newIntrospector(workers int) *Introspector {
	return NewIntrospector(typemap.New(), relate.New(config.InferenceConfig{}), config.ExtractionConfig{Workers: workers})
}

func TestRegister(t *testing.T) {
	Register("Test-Dialect", &fakeCatalog{})

	if _, ok := lookup("test-dialect"); !ok {
		t.Errorf("\ndialect test-dialect not registered correctly")
	}
	rd := RegisteredDialects()
	if !slices.Contains(rd, "test-dialect") || !slices.IsSorted(rd) {
		t.Errorf("\nRegisteredDialects returned unexpected result %v", rd)
	}
}

func TestConnect(t *testing.T) {
	Register("fake-connect", &fakeCatalog{})

	var tests = []struct {
		name     string
		dialect  string
		errIsNil bool
	}{
		{"unregistered dialect", "no-such-dialect", false},
		{"registered dialect", "fake-connect", true},
	}

	in := newIntrospector(2)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := in.Connect(context.Background(), config.Descriptor{DBType: tt.dialect, Password: "s3cret"})
			if (err == nil) != tt.errIsNil {
				t.Fatalf("\ngot error %v, wanted error: %v", err, !tt.errIsNil)
			}
			if err != nil {
				var ce *ConnectionError
				if !errors.As(err, &ce) {
					t.Errorf("\ngot %T, wanted *ConnectionError", err)
				}
				if strings.Contains(err.Error(), "s3cret") {
					t.Errorf("\nerror leaks the password: %v", err)
				}
				return
			}
			if err := in.Disconnect(h); err != nil {
				t.Errorf("\ngot unexpected error: \"%v\"", err)
			}
			if !h.Closed() {
				t.Errorf("\nhandle still open after Disconnect")
			}
			if err := in.Disconnect(h); err != nil {
				t.Errorf("\nsecond Disconnect failed: %v", err)
			}
		})
	}
}

func TestExtractStructure(t *testing.T) {
	cat := shopCatalog()
	Register("fake-shop", cat)

	in := newIntrospector(3)
	s, warnings, err := in.Extract(context.Background(), config.Descriptor{DBType: "fake-shop", Database: "loja"})
	if err != nil {
		t.Fatalf("\ngot unexpected error: \"%v\"", err)
	}

	if want := (schema.Metadata{Source: schema.SourceDatabase, Dialect: "fake-shop", DatabaseName: "loja"}); s.Metadata != want {
		t.Errorf("\ngot metadata %+v, wanted %+v", s.Metadata, want)
	}
	if len(s.Tables) != 23 || s.Tables[0].Name != "clientes" {
		t.Fatalf("\ngot %d tables starting with %s", len(s.Tables), s.Tables[0].Name)
	}
	if m := cat.maxInFlight.Load(); m > 3 {
		t.Errorf("\ngot %d tables in flight, wanted at most 3", m)
	}

	clientes, _ := s.Table("clientes")
	id, _ := clientes.Field("id")
	if !id.PrimaryKey || id.Nullable || id.Type != schema.TypeInt {
		t.Errorf("\ngot clientes.id %+v", id)
	}
	nome, _ := clientes.Field("nome")
	if nome.Type != schema.TypeVarchar || nome.NativeType != "VARCHAR(60)" {
		t.Errorf("\ngot clientes.nome %+v", nome)
	}

	var got []string
	for _, r := range s.Relationships {
		got = append(got, r.String()+" "+string(r.Confidence))
	}
	want := []string{"itens.pedido_id -> pedidos.id high", "pedidos.cliente_id -> clientes.id high"}
	if !slices.Equal(got, want) {
		t.Errorf("\ngot %q, wanted %q", got, want)
	}
	pedidos, _ := s.Table("pedidos")
	if f, _ := pedidos.Field("cliente_id"); !f.ForeignKey || f.Reference == nil {
		t.Errorf("\nforeign key flag missing on pedidos.cliente_id")
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0].Message, "produtos") {
		t.Errorf("\ngot warnings %v, wanted the dangling produtos key", warnings)
	}
	if v := schema.Validate(s); len(v) != 0 {
		t.Errorf("\ngot violations %q", v)
	}
}

func TestExtractFailureClosesHandle(t *testing.T) {
	var tests = []struct {
		name    string
		err     error
		cancel  bool
		wantErr any
		cause   error
	}{
		{"catalog query failure", errors.New("permission denied for table pedidos"), false, &IntrospectionError{}, nil},
		{"connection lost", context.DeadlineExceeded, false, &ConnectionError{}, context.DeadlineExceeded},
		{"cancelled mid extraction", nil, true, &ConnectionError{}, context.Canceled},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			cat := shopCatalog()
			cat.failOn, cat.failErr = "pedidos", tt.err
			if tt.cancel {
				cat.cancel = cancel
			}
			name := fmt.Sprintf("fake-broken-%d", i)
			Register(name, cat)

			in := newIntrospector(2)
			h, err := in.Connect(ctx, config.Descriptor{DBType: name})
			if err != nil {
				t.Fatalf("\ngot unexpected error: \"%v\"", err)
			}
			s, warnings, err := in.ExtractStructure(ctx, h)

			switch tt.wantErr.(type) {
			case *IntrospectionError:
				var ie *IntrospectionError
				if !errors.As(err, &ie) || ie.Stage != "columns" || ie.Table != "pedidos" {
					t.Errorf("\ngot %v, wanted an IntrospectionError on pedidos columns", err)
				}
			case *ConnectionError:
				var ce *ConnectionError
				if !errors.As(err, &ce) || !errors.Is(err, tt.cause) {
					t.Errorf("\ngot %v, wanted a ConnectionError caused by %v", err, tt.cause)
				}
			}
			if s.Tables != nil || s.Relationships != nil || warnings != nil {
				t.Errorf("\ngot partial structure %+v", s)
			}
			if !h.Closed() {
				t.Errorf("\nhandle left open after a failed extraction")
			}
		})
	}
}

func TestExtractOnClosedHandle(t *testing.T) {
	Register("fake-closed", &fakeCatalog{})
	in := newIntrospector(1)
	h, err := in.Connect(context.Background(), config.Descriptor{DBType: "fake-closed"})
	if err != nil {
		t.Fatalf("\ngot unexpected error: \"%v\"", err)
	}
	in.Disconnect(h)

	var ce *ConnectionError
	if _, _, err := in.ExtractStructure(context.Background(), h); !errors.As(err, &ce) {
		t.Errorf("\ngot %v, wanted a ConnectionError", err)
	}
}

func TestTestConnection(t *testing.T) {
	ok := shopCatalog()
	Register("fake-test-ok", ok)
	Register("fake-test-panic", &fakeCatalog{panics: true})

	in := newIntrospector(1)

	res := in.TestConnection(context.Background(), config.Descriptor{DBType: "fake-test-ok"})
	if !res.Success || res.TableCount == nil || *res.TableCount != 23 || res.Dialect == nil || *res.Dialect != "fake-test-ok" || res.Error != nil {
		t.Errorf("\ngot %+v, wanted success with 23 tables", res)
	}
	if ok.maxInFlight.Load() != 0 {
		t.Errorf("\nconnection test fetched columns")
	}

	res = in.TestConnection(context.Background(), config.Descriptor{DBType: "fake-test-panic", Password: "hunter2"})
	if res.Success || res.Error == nil || !strings.Contains(*res.Error, "exploded") {
		t.Errorf("\ngot %+v, wanted a recovered failure", res)
	}

	res = in.TestConnection(context.Background(), config.Descriptor{DBType: "nope"})
	if res.Success || res.Dialect != nil || res.Error == nil {
		t.Errorf("\ngot %+v, wanted failure without a dialect", res)
	}
}

func TestRedact(t *testing.T) {
	var tests = []struct {
		msg, password, want string
	}{
		{"dial postgres://u:p@ss w0rd@h", "p@ss w0rd", "dial postgres://u:****@h"},
		{"dial postgres://u:p%40ss%20w0rd@h", "p@ss w0rd", "dial postgres://u:****@h"},
		{"password=p%40ss+w0rd", "p@ss w0rd", "password=****"},
		{"nothing to hide", "", "nothing to hide"},
	}
	for _, tt := range tests {
		if got := redact(tt.msg, tt.password); got != tt.want {
			t.Errorf("\nredact(%q) got %q, wanted %q", tt.msg, got, tt.want)
		}
	}
}

func TestIsConnectionFailure(t *testing.T) {
	var tests = []struct {
		name string
		err  error
		want bool
	}{
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), true},
		{"canceled", context.Canceled, true},
		{"plain query error", errors.New("no such table"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionFailure(tt.err); got != tt.want {
				t.Errorf("\ngot %v, wanted %v", got, tt.want)
			}
		})
	}
}
