// Package textparse reads schema descriptions written as structured text,
// markdown or SQL DDL, including OCR output of such documents.
package textparse

import (
	"fmt"
	"regexp"
	"strings"

	"schemaextract/internal/relate"
	"schemaextract/internal/schema"
	"schemaextract/internal/typemap"
)

// optional identifier quoting: "name", `name`, 'name' or [name]
const (
	openQuote  = "[`\"'\\[]?"
	closeQuote = "[`\"'\\]]?"
)

var (
	tableHeadRe = regexp.MustCompile(`(?i)^#*\s*(?:tabela|table)\s*:`)
	tableRe     = regexp.MustCompile(`(?i)^#*\s*(?:tabela|table)\s*:\s*(?:` + openQuote + ident + closeQuote + `\.)?` + openQuote + `(` + ident + `)` + closeQuote + `(.*)$`)
	fieldsRe    = regexp.MustCompile(`(?i)^(?:[-*]\s*)?(?:campos|fields|colunas|columns)\s*:\s*(.*)$`)
	relHeaderRe = regexp.MustCompile(`(?i)^#*\s*(?:relacionamentos|relationships)\s*:?\s*$`)
	databaseRe  = regexp.MustCompile(`(?i)^#*\s*(?:banco|database|db)\s*:\s*(\S.*)$`)
	relLineRe   = regexp.MustCompile(`^(` + ident + `)\.(` + ident + `)\s*(?:-+>|→)\s*(` + ident + `)(?:\.(` + ident + `))?\s*;?$`)
	createRe    = regexp.MustCompile(`(?i)^create\s+table\s+(?:if\s+not\s+exists\s+)?([^\s(]+)\s*(\(.*)?$`)
)

// Parser turns text into a canonical structure. It keeps no state between
// calls and is safe for concurrent use.
type Parser struct {
	normalizer *typemap.Normalizer
	relate     *relate.Engine
}

func New(n *typemap.Normalizer, r *relate.Engine) *Parser {
	return &Parser{normalizer: n, relate: r}
}

type mode int

const (
	modeNone mode = iota
	modeTable
	modeFields
	modeRelations
)

type draft struct {
	name   string
	fields []schema.Field
}

func (d *draft) field(name string) *schema.Field {
	for i := range d.fields {
		if strings.EqualFold(d.fields[i].Name, name) {
			return &d.fields[i]
		}
	}
	return nil
}

// request is a reference that can only be resolved once every table is known.
type request struct {
	line                 int
	fromTable, fromField string
	toTable, toField     string
}

type state struct {
	p        *Parser
	lines    []string
	drafts   []*draft
	cur      *draft
	mode     mode
	requests []request
	warnings []schema.Warning
	database string
}

// Parse reads raw in two passes: the first collects tables and pending
// references, the second resolves references against the complete table
// set. Malformed fragments become warnings. Non-empty input without any
// table definition fails with a *ParseError.
func (p *Parser) Parse(raw string, source schema.SourceKind) (schema.DatabaseStructure, []schema.Warning, error) {
	meta := schema.Metadata{Source: source}
	if strings.TrimSpace(raw) == "" {
		s, _ := schema.Assemble(nil, nil, meta)
		return s, nil, nil
	}

	st := &state{p: p, lines: strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")}
	st.scan()
	if len(st.drafts) == 0 {
		return schema.DatabaseStructure{}, st.warnings, &ParseError{Lines: len(st.lines), Msg: "no table definition found"}
	}

	tables := make([]schema.Table, 0, len(st.drafts))
	for _, d := range st.drafts {
		if len(d.fields) == 0 {
			st.warn(0, "table %s has no fields", d.name)
		}
		tables = append(tables, schema.NewTable(d.name, d.fields))
	}
	explicit := st.resolve(tables)

	rels, inferWarnings := p.relate.Infer(tables, explicit)
	meta.DatabaseName = st.database
	s, assembleWarnings := schema.Assemble(tables, rels, meta)

	warnings := append(st.warnings, inferWarnings...)
	warnings = append(warnings, assembleWarnings...)
	return s, warnings, nil
}

func (st *state) warn(line int, format string, args ...interface{}) {
	st.warnings = append(st.warnings, schema.Warning{
		Kind:    schema.WarningParse,
		Line:    line,
		Message: fmt.Sprintf(format, args...),
	})
}

func isComment(line string) bool {
	return strings.HasPrefix(line, "--") || strings.HasPrefix(line, "//")
}

func isBullet(line string) bool {
	return stripBullet(line) != strings.TrimSpace(line)
}

func (st *state) scan() {
	for i := 0; i < len(st.lines); i++ {
		lineNo := i + 1
		rawLine := st.lines[i]
		line := strings.TrimSpace(rawLine)
		if line == "" || isComment(line) {
			continue
		}

		if m := createRe.FindStringSubmatch(line); m != nil {
			i = st.ddl(i, m[1], m[2])
			st.mode = modeNone
			continue
		}
		if tableHeadRe.MatchString(line) {
			m := tableRe.FindStringSubmatch(line)
			if m == nil {
				st.warn(lineNo, "table header without a name %q", line)
				st.cur = nil
				st.mode = modeNone
				continue
			}
			st.open(m[1], lineNo)
			if rest := strings.TrimSpace(m[2]); rest != "" {
				st.warn(lineNo, "ignored %q after table name %s", rest, m[1])
			}
			st.mode = modeTable
			continue
		}
		if m := fieldsRe.FindStringSubmatch(line); m != nil {
			if st.cur == nil || st.mode == modeRelations {
				st.warn(lineNo, "fields outside a table block")
				continue
			}
			var text string
			text, i = st.continued(m[1], i)
			st.addFields(text, lineNo)
			st.mode = modeFields
			continue
		}
		if relHeaderRe.MatchString(line) {
			st.mode = modeRelations
			continue
		}
		if m := databaseRe.FindStringSubmatch(line); m != nil {
			st.database = unquote(m[1])
			continue
		}
		if m := relLineRe.FindStringSubmatch(stripBullet(line)); m != nil {
			st.requests = append(st.requests, request{line: lineNo, fromTable: m[1], fromField: m[2], toTable: m[3], toField: m[4]})
			continue
		}
		if st.mode == modeFields && (isBullet(line) || rawLine != strings.TrimLeft(rawLine, " \t")) {
			var text string
			text, i = st.continued(stripBullet(line), i)
			st.addFields(text, lineNo)
			continue
		}
		st.warn(lineNo, "unrecognized line %q", line)
	}
}

// continued joins the lines following index i while text ends with a comma
// or has an open parenthesis, which is how OCR tends to break long field
// lists. It returns the joined text and the last consumed index.
func (st *state) continued(text string, i int) (string, int) {
	for i+1 < len(st.lines) {
		t := strings.TrimSpace(text)
		if !strings.HasSuffix(t, ",") && balance(t) <= 0 {
			break
		}
		next := strings.TrimSpace(st.lines[i+1])
		if tableHeadRe.MatchString(next) || createRe.MatchString(next) || fieldsRe.MatchString(next) {
			break
		}
		i++
		text = t + " " + stripBullet(next)
	}
	return text, i
}

func (st *state) open(name string, line int) {
	for _, d := range st.drafts {
		if strings.EqualFold(d.name, name) {
			st.warn(line, "table %s declared again, merging into the first declaration", name)
			st.cur = d
			return
		}
	}
	st.cur = &draft{name: name}
	st.drafts = append(st.drafts, st.cur)
}

func (st *state) addFields(text string, line int) {
	for _, spec := range splitTopLevel(text) {
		fs, ok := parseFieldSpec(spec)
		if !ok {
			st.warn(line, "invalid field specification %q in table %s", spec, st.cur.name)
			continue
		}
		st.addField(fs, line)
	}
}

func (st *state) addField(fs fieldSpec, line int) {
	d := st.cur
	if d.field(fs.name) != nil {
		st.warn(line, "duplicate field %s.%s ignored", d.name, fs.name)
		return
	}
	f := schema.Field{
		Name:          fs.name,
		Type:          st.p.normalizer.Normalize(fs.native, ""),
		NativeType:    fs.native,
		Nullable:      true,
		PrimaryKey:    fs.pk,
		Default:       fs.def,
		AutoIncrement: fs.autoInc,
	}
	if fs.nullable != nil {
		f.Nullable = *fs.nullable
	}
	if f.PrimaryKey {
		f.Nullable = false
	}
	for _, x := range fs.extra {
		st.warn(line, "field %s.%s: ignored %q", d.name, fs.name, x)
	}
	if fs.bareFK {
		st.warn(line, "field %s.%s is marked fk without a target table", d.name, fs.name)
	}
	if fs.ref != nil {
		st.requests = append(st.requests, request{
			line:      line,
			fromTable: d.name,
			fromField: fs.name,
			toTable:   fs.ref.table,
			toField:   fs.ref.field,
		})
	}
	d.fields = append(d.fields, f)
}

// resolve turns pending references into explicit relationships. A reference
// without a target field points at the target's single-column primary key,
// or at a field named id.
func (st *state) resolve(tables []schema.Table) []schema.Relationship {
	find := func(name string) *schema.Table {
		for i := range tables {
			if strings.EqualFold(tables[i].Name, name) {
				return &tables[i]
			}
		}
		return nil
	}
	field := func(t *schema.Table, name string) *schema.Field {
		for i := range t.Fields {
			if strings.EqualFold(t.Fields[i].Name, name) {
				return &t.Fields[i]
			}
		}
		return nil
	}

	var rels []schema.Relationship
	for _, r := range st.requests {
		from := find(r.fromTable)
		if from == nil {
			st.warn(r.line, "relationship source table %s not found", r.fromTable)
			continue
		}
		ff := field(from, r.fromField)
		if ff == nil {
			st.warn(r.line, "relationship source field %s.%s not found", from.Name, r.fromField)
			continue
		}
		to := find(r.toTable)
		if to == nil {
			st.warn(r.line, "%s.%s references unknown table %s", from.Name, ff.Name, r.toTable)
			continue
		}
		var tf *schema.Field
		switch {
		case r.toField != "":
			if tf = field(to, r.toField); tf == nil {
				st.warn(r.line, "%s.%s references unknown field %s.%s", from.Name, ff.Name, to.Name, r.toField)
				continue
			}
		default:
			if pk, ok := to.SinglePrimaryKey(); ok {
				tf = pk
			} else if tf = field(to, "id"); tf == nil {
				st.warn(r.line, "%s.%s references %s, which has no single-column key", from.Name, ff.Name, to.Name)
				continue
			}
		}
		rels = append(rels, schema.Explicit(from.Name, ff.Name, to.Name, tf.Name))
	}
	return rels
}
