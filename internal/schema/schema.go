package schema

import (
	"strconv"
	"strings"
)

// CanonicalType is the dialect-independent column type vocabulary.
type CanonicalType string

const (
	TypeInt      CanonicalType = "int"
	TypeVarchar  CanonicalType = "varchar"
	TypeText     CanonicalType = "text"
	TypeDecimal  CanonicalType = "decimal"
	TypeBoolean  CanonicalType = "boolean"
	TypeDatetime CanonicalType = "datetime"
	TypeDate     CanonicalType = "date"
	TypeUnknown  CanonicalType = "unknown"
)

// Reference points at the target of a foreign key.
type Reference struct {
	Table string `json:"table"`
	Field string `json:"field"`
}

// Field represents a table column.
type Field struct {
	Name          string        `json:"name"`
	Type          CanonicalType `json:"type"`
	NativeType    string        `json:"native_type,omitempty"` // as written by the source, for diagnostics
	Nullable      bool          `json:"nullable"`
	PrimaryKey    bool          `json:"primary_key"`
	ForeignKey    bool          `json:"foreign_key"`
	Reference     *Reference    `json:"reference,omitempty"`
	Default       *string       `json:"default,omitempty"`
	AutoIncrement bool          `json:"autoincrement"`
}

// Table represents a table and its fields in declaration order.
// PrimaryKeys and ForeignKeys are derived from Fields by NewTable.
type Table struct {
	Name        string   `json:"name"`
	Fields      []Field  `json:"fields"`
	PrimaryKeys []string `json:"primary_keys"`
	ForeignKeys []string `json:"foreign_keys"`
}

// NewTable builds a table and derives its key lists.
func NewTable(name string, fields []Field) Table {
	t := Table{Name: name, Fields: fields}
	t.derive()
	return t
}

func (t *Table) derive() {
	t.PrimaryKeys = []string{}
	t.ForeignKeys = []string{}
	for _, f := range t.Fields {
		if f.PrimaryKey {
			t.PrimaryKeys = append(t.PrimaryKeys, f.Name)
		}
		if f.ForeignKey {
			t.ForeignKeys = append(t.ForeignKeys, f.Name)
		}
	}
}

// Field returns the named field.
func (t *Table) Field(name string) (*Field, bool) {
	for i := range t.Fields {
		if t.Fields[i].Name == name {
			return &t.Fields[i], true
		}
	}
	return nil, false
}

// SinglePrimaryKey returns the primary key field when the key has exactly one column.
func (t *Table) SinglePrimaryKey() (*Field, bool) {
	var pk *Field
	for i := range t.Fields {
		if !t.Fields[i].PrimaryKey {
			continue
		}
		if pk != nil {
			return nil, false
		}
		pk = &t.Fields[i]
	}
	return pk, pk != nil
}

type RelationKind string

const KindForeignKey RelationKind = "foreign_key"

// Origin tells declared relationships apart from guessed ones.
type Origin string

const (
	OriginExplicit Origin = "explicit"
	OriginInferred Origin = "inferred"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Relationship represents a foreign key between two fields.
type Relationship struct {
	FromTable  string       `json:"from_table"`
	FromField  string       `json:"from_field"`
	ToTable    string       `json:"to_table"`
	ToField    string       `json:"to_field"`
	Kind       RelationKind `json:"type"`
	Origin     Origin       `json:"origin"`
	Confidence Confidence   `json:"confidence"`
}

// Explicit builds a declared relationship.
func Explicit(fromTable, fromField, toTable, toField string) Relationship {
	return Relationship{
		FromTable:  fromTable,
		FromField:  fromField,
		ToTable:    toTable,
		ToField:    toField,
		Kind:       KindForeignKey,
		Origin:     OriginExplicit,
		Confidence: ConfidenceHigh,
	}
}

// Endpoints is the identity of a relationship.
type Endpoints struct {
	FromTable, FromField, ToTable, ToField string
}

func (r Relationship) Endpoints() Endpoints {
	return Endpoints{r.FromTable, r.FromField, r.ToTable, r.ToField}
}

func (r Relationship) String() string {
	return r.FromTable + "." + r.FromField + " -> " + r.ToTable + "." + r.ToField
}

type SourceKind string

const (
	SourceText     SourceKind = "text"
	SourceOCR      SourceKind = "ocr"
	SourceDatabase SourceKind = "database"
)

type Metadata struct {
	Source       SourceKind `json:"source"`
	Dialect      string     `json:"dialect,omitempty"`
	DatabaseName string     `json:"database_name,omitempty"`
}

// DatabaseStructure is the canonical schema handed to downstream consumers.
type DatabaseStructure struct {
	Tables        []Table        `json:"tables"`
	Relationships []Relationship `json:"relationships"`
	Metadata      Metadata       `json:"metadata"`
}

// Table returns the named table.
func (s *DatabaseStructure) Table(name string) (*Table, bool) {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// HasEndpoint reports whether table.field exists in s.
func (s *DatabaseStructure) HasEndpoint(table, field string) bool {
	t, ok := s.Table(table)
	if !ok {
		return false
	}
	_, ok = t.Field(field)
	return ok
}

type WarningKind string

const (
	WarningParse     WarningKind = "parse"
	WarningInference WarningKind = "inference"
	WarningIntegrity WarningKind = "integrity"
)

// Warning is a non-fatal issue found while building a structure.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Line    int         `json:"line,omitempty"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	var b strings.Builder
	b.WriteString(string(w.Kind))
	if w.Line > 0 {
		b.WriteString(" line ")
		b.WriteString(strconv.Itoa(w.Line))
	}
	b.WriteString(": ")
	b.WriteString(w.Message)
	return b.String()
}
