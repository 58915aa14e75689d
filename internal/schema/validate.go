package schema

import (
	"cmp"
	"fmt"
	"slices"
)

// Validate lists every invariant violation in s. The result is sorted so it
// does not depend on the order of tables or relationships.
func Validate(s DatabaseStructure) []string {
	var out []string

	seenTables := map[string]bool{}
	for _, t := range s.Tables {
		if seenTables[t.Name] {
			out = append(out, fmt.Sprintf("duplicate table %q", t.Name))
		}
		seenTables[t.Name] = true

		seenFields := map[string]bool{}
		for _, f := range t.Fields {
			if seenFields[f.Name] {
				out = append(out, fmt.Sprintf("duplicate field %q in table %q", f.Name, t.Name))
			}
			seenFields[f.Name] = true
			if f.ForeignKey && f.Reference == nil {
				out = append(out, fmt.Sprintf("field %s.%s is a foreign key without a reference", t.Name, f.Name))
			}
		}
		for _, pk := range t.PrimaryKeys {
			if !seenFields[pk] {
				out = append(out, fmt.Sprintf("primary key %q not found in table %q", pk, t.Name))
			}
		}
	}

	for _, r := range s.Relationships {
		if !s.HasEndpoint(r.FromTable, r.FromField) {
			out = append(out, fmt.Sprintf("relationship %s: source %s.%s does not exist", r, r.FromTable, r.FromField))
		}
		if !s.HasEndpoint(r.ToTable, r.ToField) {
			out = append(out, fmt.Sprintf("relationship %s: target %s.%s does not exist", r, r.ToTable, r.ToField))
		}
	}

	slices.Sort(out)
	return out
}

// CompareRelationships orders relationships by source then target endpoint.
func CompareRelationships(a, b Relationship) int {
	return cmp.Or(
		cmp.Compare(a.FromTable, b.FromTable),
		cmp.Compare(a.FromField, b.FromField),
		cmp.Compare(a.ToTable, b.ToTable),
		cmp.Compare(a.ToField, b.ToField),
	)
}

// NormalizeOrder returns a copy of s in canonical order: tables and fields
// keep their source order, relationships are sorted by endpoints.
// It is idempotent.
func NormalizeOrder(s DatabaseStructure) DatabaseStructure {
	out := DatabaseStructure{
		Tables:        make([]Table, len(s.Tables)),
		Relationships: slices.Clone(s.Relationships),
		Metadata:      s.Metadata,
	}
	for i, t := range s.Tables {
		out.Tables[i] = Table{
			Name:        t.Name,
			Fields:      cloneFields(t.Fields),
			PrimaryKeys: cloneNames(t.PrimaryKeys),
			ForeignKeys: cloneNames(t.ForeignKeys),
		}
	}
	if out.Relationships == nil {
		out.Relationships = []Relationship{}
	}
	slices.SortStableFunc(out.Relationships, CompareRelationships)
	return out
}

func cloneFields(fields []Field) []Field {
	out := make([]Field, len(fields))
	for i, f := range fields {
		if f.Reference != nil {
			ref := *f.Reference
			f.Reference = &ref
		}
		if f.Default != nil {
			d := *f.Default
			f.Default = &d
		}
		out[i] = f
	}
	return out
}

func cloneNames(names []string) []string {
	if names == nil {
		return []string{}
	}
	return slices.Clone(names)
}
