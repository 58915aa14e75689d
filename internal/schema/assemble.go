package schema

import (
	"fmt"
	"slices"
)

// Assemble builds the final structure from producer output. Relationships
// with a missing endpoint are dropped. Source fields of explicit
// relationships get ForeignKey and Reference set; no other field keeps the
// flag, so a foreign key always carries a reference. Inferred relationships
// never mark fields.
func Assemble(tables []Table, rels []Relationship, meta Metadata) (DatabaseStructure, []Warning) {
	var warnings []Warning
	s := DatabaseStructure{
		Tables:   make([]Table, len(tables)),
		Metadata: meta,
	}
	for i, t := range tables {
		fields := cloneFields(t.Fields)
		for j := range fields {
			fields[j].ForeignKey = false
			fields[j].Reference = nil
		}
		s.Tables[i] = Table{Name: t.Name, Fields: fields}
	}

	kept := make([]Relationship, 0, len(rels))
	for _, r := range rels {
		if !s.HasEndpoint(r.FromTable, r.FromField) || !s.HasEndpoint(r.ToTable, r.ToField) {
			warnings = append(warnings, Warning{
				Kind:    WarningIntegrity,
				Message: fmt.Sprintf("dropped relationship %s: endpoint not found", r),
			})
			continue
		}
		kept = append(kept, r)
	}
	slices.SortStableFunc(kept, CompareRelationships)

	for _, r := range kept {
		if r.Origin != OriginExplicit {
			continue
		}
		t, _ := s.Table(r.FromTable)
		f, _ := t.Field(r.FromField)
		if f.Reference != nil {
			warnings = append(warnings, Warning{
				Kind:    WarningIntegrity,
				Message: fmt.Sprintf("field %s.%s has several foreign keys, keeping %s.%s", r.FromTable, r.FromField, f.Reference.Table, f.Reference.Field),
			})
			continue
		}
		f.ForeignKey = true
		f.Reference = &Reference{Table: r.ToTable, Field: r.ToField}
	}

	for i := range s.Tables {
		s.Tables[i].derive()
	}
	s.Relationships = kept
	return NormalizeOrder(s), warnings
}
