// Package relate combines declared foreign keys with relationships guessed
// from field naming conventions.
package relate

import (
	"fmt"
	"strings"

	"schemaextract/internal/schema"
	"schemaextract/pkg/config"
)

// Engine runs the naming-convention heuristic. It holds no per-call state.
type Engine struct {
	suffix string
	plural string
}

// New builds an Engine from the inference configuration.
func New(cfg config.InferenceConfig) *Engine {
	e := &Engine{
		suffix: strings.ToLower(cfg.ForeignKeySuffix),
		plural: strings.ToLower(cfg.PluralSuffix),
	}
	if e.suffix == "" {
		e.suffix = "_id"
	}
	if e.plural == "" {
		e.plural = "s"
	}
	return e
}

type fieldKey struct{ table, field string }

// Infer returns the explicit relationships, deduplicated and without dangling
// endpoints, followed by relationships inferred from field names. Fields
// already covered by an explicit relationship are not considered.
func (e *Engine) Infer(tables []schema.Table, explicit []schema.Relationship) ([]schema.Relationship, []schema.Warning) {
	var warnings []schema.Warning
	idx := schema.DatabaseStructure{Tables: tables}

	out := make([]schema.Relationship, 0, len(explicit))
	seen := map[schema.Endpoints]bool{}
	covered := map[fieldKey]bool{}
	for _, r := range explicit {
		if !idx.HasEndpoint(r.FromTable, r.FromField) || !idx.HasEndpoint(r.ToTable, r.ToField) {
			warnings = append(warnings, schema.Warning{
				Kind:    schema.WarningInference,
				Message: fmt.Sprintf("dropped relationship %s: endpoint not found", r),
			})
			continue
		}
		if seen[r.Endpoints()] {
			continue
		}
		seen[r.Endpoints()] = true
		r.Kind, r.Origin, r.Confidence = schema.KindForeignKey, schema.OriginExplicit, schema.ConfidenceHigh
		out = append(out, r)
		covered[fieldKey{r.FromTable, r.FromField}] = true
	}

	for ti := range tables {
		src := &tables[ti]
		for fi := range src.Fields {
			f := &src.Fields[fi]
			if covered[fieldKey{src.Name, f.Name}] {
				continue
			}
			r, warn, ok := e.inferField(tables, src, f)
			if warn != "" {
				warnings = append(warnings, schema.Warning{Kind: schema.WarningInference, Message: warn})
			}
			if !ok || seen[r.Endpoints()] {
				continue
			}
			seen[r.Endpoints()] = true
			out = append(out, r)
		}
	}
	return out, warnings
}

// Noun returns the table noun a field name refers to, or "" when the name
// does not follow the <noun><suffix> convention.
func (e *Engine) Noun(field string) string {
	name := strings.ToLower(field)
	if name == "id" || !strings.HasSuffix(name, e.suffix) {
		return ""
	}
	return strings.TrimSuffix(name, e.suffix)
}

func (e *Engine) inferField(tables []schema.Table, src *schema.Table, f *schema.Field) (schema.Relationship, string, bool) {
	noun := e.Noun(f.Name)
	if noun == "" {
		return schema.Relationship{}, "", false
	}

	target, warn := e.candidate(tables, noun)
	if target == nil {
		return schema.Relationship{}, warnFor(src, f, warn), false
	}
	if target.Name == src.Name && f.PrimaryKey {
		return schema.Relationship{}, "", false
	}

	r := schema.Relationship{
		FromTable: src.Name,
		FromField: f.Name,
		ToTable:   target.Name,
		Kind:      schema.KindForeignKey,
		Origin:    schema.OriginInferred,
	}
	if pk, ok := target.SinglePrimaryKey(); ok {
		if target.Name == src.Name && pk.Name == f.Name {
			return schema.Relationship{}, "", false
		}
		r.ToField = pk.Name
		r.Confidence = schema.ConfidenceLow
		if compatible(f.Type, pk.Type) {
			r.Confidence = schema.ConfidenceMedium
		}
		return r, "", true
	}
	if id, ok := target.Field("id"); ok {
		r.ToField = id.Name
		r.Confidence = schema.ConfidenceLow
		return r, "", true
	}
	return schema.Relationship{}, fmt.Sprintf("%s.%s looks like a reference to %s, which has no single-column key", src.Name, f.Name, target.Name), false
}

func warnFor(src *schema.Table, f *schema.Field, msg string) string {
	if msg == "" {
		return ""
	}
	return fmt.Sprintf("%s.%s: %s", src.Name, f.Name, msg)
}

// candidate finds the table a noun refers to. An exact name match beats a
// plural/singular folded one; several matches at the same level are ambiguous.
func (e *Engine) candidate(tables []schema.Table, noun string) (*schema.Table, string) {
	var exact, folded []*schema.Table
	for i := range tables {
		name := strings.ToLower(tables[i].Name)
		switch {
		case name == noun:
			exact = append(exact, &tables[i])
		case name == noun+e.plural, noun == name+e.plural:
			folded = append(folded, &tables[i])
		}
	}
	for _, set := range [][]*schema.Table{exact, folded} {
		switch len(set) {
		case 0:
			continue
		case 1:
			return set[0], ""
		default:
			names := make([]string, len(set))
			for i, t := range set {
				names[i] = t.Name
			}
			return nil, fmt.Sprintf("ambiguous reference, candidates %s", strings.Join(names, ", "))
		}
	}
	return nil, ""
}

// compatible reports whether a referencing field type can hold the key type.
// An unknown type on either side says nothing about a mismatch.
func compatible(a, b schema.CanonicalType) bool {
	if a == schema.TypeUnknown || b == schema.TypeUnknown {
		return true
	}
	if a == b {
		return true
	}
	isString := func(t schema.CanonicalType) bool { return t == schema.TypeVarchar || t == schema.TypeText }
	return isString(a) && isString(b)
}
