// Package typemap maps dialect-native column types onto the canonical type set.
package typemap

import (
	"regexp"
	"strings"

	"schemaextract/internal/schema"
	"schemaextract/pkg/config"
)

type lookup map[string]schema.CanonicalType

// base covers the ANSI vocabulary and the spellings shared by most engines.
var base = lookup{
	"int": schema.TypeInt, "integer": schema.TypeInt, "bigint": schema.TypeInt,
	"smallint": schema.TypeInt, "tinyint": schema.TypeInt, "mediumint": schema.TypeInt,

	"varchar": schema.TypeVarchar, "character varying": schema.TypeVarchar,
	"char": schema.TypeVarchar, "character": schema.TypeVarchar,
	"nvarchar": schema.TypeVarchar, "nchar": schema.TypeVarchar,
	"national character varying": schema.TypeVarchar, "string": schema.TypeVarchar,
	"varchar2": schema.TypeVarchar, "nvarchar2": schema.TypeVarchar,

	"text": schema.TypeText, "clob": schema.TypeText, "nclob": schema.TypeText,

	"decimal": schema.TypeDecimal, "numeric": schema.TypeDecimal, "number": schema.TypeDecimal,
	"float": schema.TypeDecimal, "double": schema.TypeDecimal, "real": schema.TypeDecimal,
	"double precision": schema.TypeDecimal,

	"boolean": schema.TypeBoolean, "bool": schema.TypeBoolean,

	"datetime": schema.TypeDatetime, "timestamp": schema.TypeDatetime,
	"date": schema.TypeDate,
}

// dialectTable holds the overrides a single dialect layers on top of base.
type dialectTable struct {
	// exact is matched against the lowercased type before annotations are stripped.
	exact    lookup
	families lookup
	fallback func(string) schema.CanonicalType
}

var dialects = map[config.Dialect]dialectTable{
	config.Postgres: {
		families: lookup{
			"int2": schema.TypeInt, "int4": schema.TypeInt, "int8": schema.TypeInt,
			"serial": schema.TypeInt, "bigserial": schema.TypeInt, "smallserial": schema.TypeInt,
			"float4": schema.TypeDecimal, "float8": schema.TypeDecimal, "money": schema.TypeDecimal,
			"bpchar": schema.TypeVarchar, "citext": schema.TypeText, "uuid": schema.TypeVarchar,
			"json": schema.TypeText, "jsonb": schema.TypeText, "xml": schema.TypeText,
			"timestamptz": schema.TypeDatetime,
		},
	},
	config.MySQL: {
		exact: lookup{"tinyint(1)": schema.TypeBoolean, "bit(1)": schema.TypeBoolean},
		families: lookup{
			"tinytext": schema.TypeText, "mediumtext": schema.TypeText, "longtext": schema.TypeText,
			"json": schema.TypeText, "enum": schema.TypeVarchar, "set": schema.TypeVarchar,
			"year": schema.TypeInt, "bit": schema.TypeInt,
		},
	},
	config.SQLServer: {
		families: lookup{
			"bit": schema.TypeBoolean, "ntext": schema.TypeText, "xml": schema.TypeText,
			"money": schema.TypeDecimal, "smallmoney": schema.TypeDecimal,
			"datetime2": schema.TypeDatetime, "smalldatetime": schema.TypeDatetime,
			"datetimeoffset": schema.TypeDatetime, "uniqueidentifier": schema.TypeVarchar,
		},
	},
	config.Oracle: {
		families: lookup{
			"date": schema.TypeDatetime, "long": schema.TypeText,
			"binary_float": schema.TypeDecimal, "binary_double": schema.TypeDecimal,
		},
	},
	config.SQLite: {
		fallback: sqliteAffinity,
	},
}

var annotation = regexp.MustCompile(`\([^)]*\)|\[\]`)

// Normalizer resolves native types through read-only per-dialect tables.
type Normalizer struct {
	tables map[config.Dialect]dialectTable
}

// New builds a Normalizer over the built-in tables.
func New() *Normalizer {
	return &Normalizer{tables: dialects}
}

var std = New()

// Normalize resolves native with the built-in tables.
func Normalize(native string, d config.Dialect) schema.CanonicalType {
	return std.Normalize(native, d)
}

// Normalize maps a native type string such as "VARCHAR(255)" or
// "timestamp(6) with time zone" to its canonical type. Unrecognized input
// yields TypeUnknown. An empty dialect uses only the shared table.
func (n *Normalizer) Normalize(native string, d config.Dialect) schema.CanonicalType {
	raw := strings.ToLower(strings.TrimSpace(native))
	if raw == "" {
		return schema.TypeUnknown
	}
	dt := n.tables[d]
	if c, ok := dt.exact[strings.Join(strings.Fields(raw), "")]; ok {
		return c
	}

	bare := Strip(raw)
	if c, ok := dt.families[bare]; ok {
		return c
	}
	if c, ok := base[bare]; ok {
		return c
	}
	if c, ok := longestFamily(bare, dt.families); ok {
		return c
	}
	if c, ok := longestFamily(bare, base); ok {
		return c
	}
	if dt.fallback != nil {
		return dt.fallback(bare)
	}
	return schema.TypeUnknown
}

// Strip lowercases a type and removes length, precision and array
// annotations as well as modifiers that do not change the family.
func Strip(native string) string {
	s := annotation.ReplaceAllString(strings.ToLower(native), " ")
	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		switch w {
		case "unsigned", "signed", "zerofill", "identity":
			if len(kept) > 0 {
				continue
			}
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// longestFamily finds the longest key that prefixes s at a word boundary.
func longestFamily(s string, l lookup) (schema.CanonicalType, bool) {
	best := ""
	for k := range l {
		if len(k) <= len(best) || !strings.HasPrefix(s, k) {
			continue
		}
		if len(s) > len(k) && s[len(k)] != ' ' {
			continue
		}
		best = k
	}
	if best == "" {
		return "", false
	}
	return l[best], true
}

// sqliteAffinity applies SQLite's column affinity rules to declared types
// that no table knows.
func sqliteAffinity(s string) schema.CanonicalType {
	switch {
	case strings.Contains(s, "int"):
		return schema.TypeInt
	case strings.Contains(s, "char"), strings.Contains(s, "clob"), strings.Contains(s, "text"):
		return schema.TypeText
	case strings.Contains(s, "real"), strings.Contains(s, "floa"), strings.Contains(s, "doub"):
		return schema.TypeDecimal
	case strings.Contains(s, "bool"):
		return schema.TypeBoolean
	case strings.Contains(s, "date"), strings.Contains(s, "time"):
		return schema.TypeDatetime
	}
	return schema.TypeUnknown
}
