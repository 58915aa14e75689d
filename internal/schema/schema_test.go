package schema

import (
	"reflect"
	"testing"
)

func shopTables() []Table {
	return []Table{
		NewTable("pedidos", []Field{
			{Name: "id", Type: TypeInt, PrimaryKey: true},
			{Name: "cliente_id", Type: TypeInt, Nullable: true},
			{Name: "total", Type: TypeDecimal},
		}),
		NewTable("clientes", []Field{
			{Name: "id", Type: TypeInt, PrimaryKey: true},
			{Name: "nome", Type: TypeVarchar},
		}),
	}
}

func TestNewTableDerivesKeys(t *testing.T) {
	tab := NewTable("itens", []Field{
		{Name: "pedido_id", PrimaryKey: true, ForeignKey: true, Reference: &Reference{"pedidos", "id"}},
		{Name: "produto_id", PrimaryKey: true},
		{Name: "qtd"},
	})
	if want := []string{"pedido_id", "produto_id"}; !reflect.DeepEqual(tab.PrimaryKeys, want) {
		t.Errorf("\ngot primary keys %v, wanted %v", tab.PrimaryKeys, want)
	}
	if want := []string{"pedido_id"}; !reflect.DeepEqual(tab.ForeignKeys, want) {
		t.Errorf("\ngot foreign keys %v, wanted %v", tab.ForeignKeys, want)
	}
	if _, ok := tab.SinglePrimaryKey(); ok {
		t.Errorf("\ncomposite key reported as single-column")
	}
}

func TestValidate(t *testing.T) {
	var tests = []struct {
		name      string
		structure DatabaseStructure
		want      []string
	}{
		{"valid", DatabaseStructure{
			Tables:        shopTables(),
			Relationships: []Relationship{Explicit("pedidos", "cliente_id", "clientes", "id")},
		}, nil},
		{"duplicate table", DatabaseStructure{
			Tables: []Table{NewTable("a", nil), NewTable("a", nil)},
		}, []string{`duplicate table "a"`}},
		{"duplicate field", DatabaseStructure{
			Tables: []Table{NewTable("a", []Field{{Name: "x"}, {Name: "x"}})},
		}, []string{`duplicate field "x" in table "a"`}},
		{"missing primary key field", DatabaseStructure{
			Tables: []Table{{Name: "a", Fields: []Field{{Name: "x"}}, PrimaryKeys: []string{"id"}}},
		}, []string{`primary key "id" not found in table "a"`}},
		{"dangling relationship", DatabaseStructure{
			Tables:        shopTables(),
			Relationships: []Relationship{Explicit("pedidos", "cliente_id", "contas", "id")},
		}, []string{"relationship pedidos.cliente_id -> contas.id: target contas.id does not exist"}},
		{"foreign key without reference", DatabaseStructure{
			Tables: []Table{NewTable("a", []Field{{Name: "b_id", ForeignKey: true}})},
		}, []string{"field a.b_id is a foreign key without a reference"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(tt.structure)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("\ngot violations %q, wanted %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeOrder(t *testing.T) {
	s := DatabaseStructure{
		Tables: shopTables(),
		Relationships: []Relationship{
			Explicit("pedidos", "cliente_id", "clientes", "id"),
			Explicit("clientes", "nome", "pedidos", "id"),
			Explicit("pedidos", "cliente_id", "contas", "id"),
		},
		Metadata: Metadata{Source: SourceText},
	}

	once := NormalizeOrder(s)
	twice := NormalizeOrder(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("\nNormalizeOrder is not idempotent:\n%+v\n%+v", once, twice)
	}
	if !reflect.DeepEqual(Validate(once), Validate(s)) {
		t.Errorf("\nordering changed violations: got %q, wanted %q", Validate(once), Validate(s))
	}

	wantOrder := []string{
		"clientes.nome -> pedidos.id",
		"pedidos.cliente_id -> clientes.id",
		"pedidos.cliente_id -> contas.id",
	}
	for i, r := range once.Relationships {
		if r.String() != wantOrder[i] {
			t.Errorf("\nrelationship %d: got %s, wanted %s", i, r, wantOrder[i])
		}
	}
	if once.Tables[0].Name != "pedidos" || once.Tables[1].Name != "clientes" {
		t.Errorf("\ntable order changed: %s, %s", once.Tables[0].Name, once.Tables[1].Name)
	}

	// the copy must not alias the input
	once.Tables[0].Fields[0].Name = "changed"
	if s.Tables[0].Fields[0].Name != "id" {
		t.Errorf("\nNormalizeOrder aliases the input fields")
	}
}

func TestAssemble(t *testing.T) {
	tables := shopTables()
	tables[0].Fields[2].ForeignKey = true // stale flag without a relationship
	rels := []Relationship{
		Explicit("pedidos", "cliente_id", "clientes", "id"),
		Explicit("pedidos", "cliente_id", "contas", "id"),
		{FromTable: "clientes", FromField: "nome", ToTable: "pedidos", ToField: "id",
			Kind: KindForeignKey, Origin: OriginInferred, Confidence: ConfidenceLow},
	}

	s, warnings := Assemble(tables, rels, Metadata{Source: SourceDatabase, Dialect: "sqlite"})

	if len(s.Relationships) != 2 {
		t.Fatalf("\ngot %d relationships, wanted 2: %v", len(s.Relationships), s.Relationships)
	}
	if len(warnings) != 1 {
		t.Errorf("\ngot warnings %v, wanted one dangling drop", warnings)
	}
	pedidos, _ := s.Table("pedidos")
	fk, _ := pedidos.Field("cliente_id")
	if !fk.ForeignKey || fk.Reference == nil || *fk.Reference != (Reference{"clientes", "id"}) {
		t.Errorf("\ngot field %+v, wanted a foreign key to clientes.id", fk)
	}
	total, _ := pedidos.Field("total")
	if total.ForeignKey {
		t.Errorf("\nstale foreign key flag survived assembly")
	}
	clientes, _ := s.Table("clientes")
	nome, _ := clientes.Field("nome")
	if nome.ForeignKey {
		t.Errorf("\ninferred relationship marked its source field")
	}
	if v := Validate(s); len(v) != 0 {
		t.Errorf("\nassembled structure has violations: %q", v)
	}
	if tables[0].Fields[1].ForeignKey {
		t.Errorf("\nAssemble mutated its input")
	}
}
