package engine

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"slices"
	"testing"

	_ "schemaextract/internal/db/extractors"

	"schemaextract/internal/schema"
	"schemaextract/internal/textparse"
	"schemaextract/pkg/config"
)

const shopText = `tabela: clientes
campos: id (int, pk), nome (varchar)

tabela: pedidos
campos: id (int, pk), cliente_id (int)
`

func TestFromText(t *testing.T) {
	e := New(config.Default())

	var tests = []struct {
		name   string
		parse  func(string) (schema.DatabaseStructure, []schema.Warning, error)
		source schema.SourceKind
	}{
		{"text", e.FromText, schema.SourceText},
		{"ocr", e.FromOCR, schema.SourceOCR},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, warnings, err := tt.parse(shopText)
			if err != nil {
				t.Fatalf("\ngot unexpected error: \"%v\"", err)
			}
			if len(warnings) != 0 {
				t.Errorf("\ngot warnings %v, wanted none", warnings)
			}
			if s.Metadata.Source != tt.source {
				t.Errorf("\ngot source %s, wanted %s", s.Metadata.Source, tt.source)
			}
			if len(s.Relationships) != 1 || s.Relationships[0].Origin != schema.OriginInferred {
				t.Errorf("\ngot relationships %+v, wanted one inferred", s.Relationships)
			}
		})
	}
}

func TestFromTextError(t *testing.T) {
	_, _, err := New(config.Default()).FromText("nothing to see here")
	var pe *textparse.ParseError
	if !errors.As(err, &pe) {
		t.Errorf("\ngot %v, wanted a ParseError", err)
	}
}

func TestInferenceConfigIsApplied(t *testing.T) {
	cfg := config.Default()
	cfg.Inference.ForeignKeySuffix = "_ref"

	s, _, err := New(cfg).FromText(`tabela: clientes
campos: id (int, pk)
tabela: pedidos
campos: id (int, pk), cliente_ref (int), cliente_id (int)
`)
	if err != nil {
		t.Fatalf("\ngot unexpected error: \"%v\"", err)
	}
	if len(s.Relationships) != 1 || s.Relationships[0].FromField != "cliente_ref" {
		t.Errorf("\ngot relationships %+v, wanted only cliente_ref", s.Relationships)
	}
}

func TestFromDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loja.db")
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	_, err = conn.Exec(`
CREATE TABLE clientes (id INTEGER PRIMARY KEY, nome TEXT);
CREATE TABLE pedidos (id INTEGER PRIMARY KEY, cliente_id INTEGER REFERENCES clientes(id));`)
	conn.Close()
	if err != nil {
		t.Fatalf("\ncreate fixture: %v", err)
	}

	e := New(config.Default())
	desc := config.Descriptor{DBType: "sqlite", Database: path}

	s, _, err := e.FromDatabase(context.Background(), desc)
	if err != nil {
		t.Fatalf("\ngot unexpected error: \"%v\"", err)
	}
	var names []string
	for _, tab := range s.Tables {
		names = append(names, tab.Name)
	}
	if !slices.Equal(names, []string{"clientes", "pedidos"}) {
		t.Errorf("\ngot tables %v", names)
	}
	if len(s.Relationships) != 1 || s.Relationships[0].Origin != schema.OriginExplicit {
		t.Errorf("\ngot relationships %+v, wanted one explicit", s.Relationships)
	}

	res := e.TestConnection(context.Background(), desc)
	if !res.Success || res.TableCount == nil || *res.TableCount != 2 {
		t.Errorf("\ngot %+v, wanted success with 2 tables", res)
	}
}
