package textparse

import (
	"regexp"
	"strings"
)

const ident = `[\p{L}\p{N}_$]+`

var (
	nameRe      = regexp.MustCompile(`^` + ident + `$`)
	parenSpecRe = regexp.MustCompile(`^(` + ident + `)\s*\((.*)\)\s*$`)
	typedSpecRe = regexp.MustCompile(`^(` + ident + `)\s+(.+)$`)

	fkTargetRe = regexp.MustCompile(`(?i)\bfk\s*(?:-+>|→)\s*(` + ident + `)(?:\.(` + ident + `))?`)
	refsRe     = regexp.MustCompile(`(?i)\breferences\s+(` + ident + `)\s*(?:\(\s*(` + ident + `)\s*\)|\.(` + ident + `))?`)
	fkBareRe   = regexp.MustCompile(`(?i)\b(?:fk|foreign\s+key)\b`)
	pkRe       = regexp.MustCompile(`(?i)\b(?:pk|primary[\s_]+key)\b`)
	notNullRe  = regexp.MustCompile(`(?i)\bnot\s+null\b`)
	nullRe     = regexp.MustCompile(`(?i)\b(?:nullable|null)\b`)
	autoIncRe  = regexp.MustCompile(`(?i)\b(?:auto_?increment|auto\s+increment|identity)\b`)
	uniqueRe   = regexp.MustCompile(`(?i)\bunique\b`)
	defaultRe  = regexp.MustCompile(`(?i)\bdefault\s+('[^']*'|"[^"]*"|\S+)`)
)

// fieldSpec is a field as written, before type normalization and reference
// resolution.
type fieldSpec struct {
	name     string
	native   string
	pk       bool
	nullable *bool
	autoInc  bool
	def      *string
	ref      *refTarget
	bareFK   bool
	extra    []string
}

type refTarget struct {
	table, field string
}

// splitTopLevel splits s at commas that are not inside parentheses.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// balance returns the parenthesis depth at the end of s.
func balance(s string) int {
	return strings.Count(s, "(") - strings.Count(s, ")")
}

func unquote(s string) string {
	return strings.Trim(strings.TrimSpace(s), "`\"'[]")
}

func stripBullet(s string) string {
	s = strings.TrimSpace(s)
	for _, b := range []string{"- ", "* ", "• ", "+ "} {
		if strings.HasPrefix(s, b) {
			return strings.TrimSpace(s[len(b):])
		}
	}
	return s
}

// parseFieldSpec reads one of
//
//	name (type, pk, fk->table[.field], not null, auto_increment, default v)
//	name type [modifiers]
//	name
//
// and reports false when the name is not an identifier.
func parseFieldSpec(raw string) (fieldSpec, bool) {
	raw = stripBullet(raw)
	var name, rest string
	if m := parenSpecRe.FindStringSubmatch(raw); m != nil {
		name, rest = m[1], m[2]
	} else if m := typedSpecRe.FindStringSubmatch(raw); m != nil {
		name, rest = m[1], m[2]
	} else {
		name = unquote(raw)
	}
	if !nameRe.MatchString(name) {
		return fieldSpec{}, false
	}

	f := fieldSpec{name: name}
	for _, tok := range splitTopLevel(rest) {
		if left := f.modifiers(tok); left != "" {
			if f.native == "" {
				f.native = left
			} else {
				f.extra = append(f.extra, left)
			}
		}
	}
	return f, true
}

// modifiers consumes the modifier phrases in tok and returns what is left,
// which is type text when it is the first such remainder.
func (f *fieldSpec) modifiers(tok string) string {
	if m := fkTargetRe.FindStringSubmatch(tok); m != nil {
		f.ref = &refTarget{table: m[1], field: m[2]}
		tok = fkTargetRe.ReplaceAllString(tok, " ")
	}
	if m := refsRe.FindStringSubmatch(tok); m != nil {
		f.ref = &refTarget{table: m[1], field: m[2] + m[3]}
		tok = refsRe.ReplaceAllString(tok, " ")
	}
	if fkBareRe.MatchString(tok) {
		f.bareFK = f.ref == nil
		tok = fkBareRe.ReplaceAllString(tok, " ")
	}
	if m := defaultRe.FindStringSubmatch(tok); m != nil {
		v := strings.Trim(m[1], `'"`)
		f.def = &v
		tok = defaultRe.ReplaceAllString(tok, " ")
	}
	if pkRe.MatchString(tok) {
		f.pk = true
		tok = pkRe.ReplaceAllString(tok, " ")
	}
	if notNullRe.MatchString(tok) {
		f.nullable = new(bool)
		tok = notNullRe.ReplaceAllString(tok, " ")
	}
	if nullRe.MatchString(tok) {
		yes := true
		f.nullable = &yes
		tok = nullRe.ReplaceAllString(tok, " ")
	}
	if autoIncRe.MatchString(tok) {
		f.autoInc = true
		tok = autoIncRe.ReplaceAllString(tok, " ")
	}
	tok = uniqueRe.ReplaceAllString(tok, " ")
	return strings.Join(strings.Fields(tok), " ")
}
