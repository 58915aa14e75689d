package textparse

import (
	"regexp"
	"strings"
)

var (
	pkConstraintRe = regexp.MustCompile(`(?i)^(?:constraint\s+\S+\s+)?primary\s+key\s*\(([^)]*)\)`)
	fkConstraintRe = regexp.MustCompile(`(?i)^(?:constraint\s+\S+\s+)?foreign\s+key\s*\(([^)]*)\)\s*references\s+(?:\S+\.)?(` + ident + `)\s*(?:\(([^)]*)\))?`)
	otherClauseRe  = regexp.MustCompile(`(?i)^(?:constraint|unique|check|index|key|exclude)\b`)

	quoteStripper = strings.NewReplacer("`", "", `"`, "", "[", "", "]", "")
)

// ddl reads a CREATE TABLE statement starting at line i and returns the index
// of the last line it consumed.
func (st *state) ddl(i int, rawName, body string) int {
	lineNo := i + 1
	parts := strings.Split(quoteStripper.Replace(rawName), ".")
	name := parts[len(parts)-1]

	j := i
	for (!strings.Contains(body, "(") || balance(body) > 0) && j+1 < len(st.lines) {
		j++
		next := st.lines[j]
		if k := strings.Index(next, "--"); k >= 0 {
			next = next[:k]
		}
		body += "\n" + next
	}

	if !nameRe.MatchString(name) {
		st.warn(lineNo, "invalid table name %q in CREATE TABLE", rawName)
		return j
	}
	start := strings.Index(body, "(")
	if start < 0 {
		st.warn(lineNo, "CREATE TABLE %s has no column list", name)
		return j
	}
	inner, closed := enclosed(body[start:])
	if !closed {
		st.warn(lineNo, "unterminated CREATE TABLE %s", name)
	}

	st.open(name, lineNo)
	for _, item := range splitTopLevel(inner) {
		clause := strings.Join(strings.Fields(quoteStripper.Replace(item)), " ")
		switch {
		case pkConstraintRe.MatchString(clause):
			st.primaryKey(splitNames(pkConstraintRe.FindStringSubmatch(clause)[1]), lineNo)
		case fkConstraintRe.MatchString(clause):
			m := fkConstraintRe.FindStringSubmatch(clause)
			st.foreignKey(splitNames(m[1]), m[2], splitNames(m[3]), lineNo)
		case otherClauseRe.MatchString(clause):
			st.warn(lineNo, "skipped clause %q in table %s", clause, name)
		default:
			fs, ok := parseFieldSpec(clause)
			if !ok || fs.native == "" {
				st.warn(lineNo, "invalid column definition %q in table %s", clause, name)
				continue
			}
			st.addField(fs, lineNo)
		}
	}
	st.cur = nil
	return j
}

// enclosed returns the text inside the parenthesis that opens s and whether
// the matching close was found.
func enclosed(s string) (string, bool) {
	depth := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return s[1:i], true
			}
		}
	}
	return s[1:], false
}

func splitNames(list string) []string {
	var names []string
	for _, n := range strings.Split(list, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}

func (st *state) primaryKey(cols []string, line int) {
	for _, c := range cols {
		f := st.cur.field(c)
		if f == nil {
			st.warn(line, "primary key column %s.%s not declared", st.cur.name, c)
			continue
		}
		f.PrimaryKey = true
		f.Nullable = false
	}
}

func (st *state) foreignKey(cols []string, table string, refs []string, line int) {
	if len(refs) > 0 && len(refs) != len(cols) {
		st.warn(line, "foreign key on %s(%s) has %d referenced columns", st.cur.name, strings.Join(cols, ", "), len(refs))
		return
	}
	for k, c := range cols {
		req := request{line: line, fromTable: st.cur.name, fromField: c, toTable: table}
		if len(refs) > 0 {
			req.toField = refs[k]
		}
		st.requests = append(st.requests, req)
	}
}
