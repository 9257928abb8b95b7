package resolve

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxSegments is the deepest path the resolver follows ("hubs.primary_key").
const MaxSegments = 2

// Path is a dotted attribute path split into segments.
type Path []string

func (p Path) String() string { return strings.Join(p, ".") }

// ParsePath splits "a.b" into segments. Depth is checked at resolve time so
// the error can name the entity.
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty path")
	}
	p := Path(strings.Split(s, "."))
	for _, seg := range p {
		if seg == "" {
			return nil, fmt.Errorf("empty segment in path %q", s)
		}
	}
	return p, nil
}

// Part is one piece of a parsed expression: literal text or a path reference.
type Part struct {
	Lit    string
	Ref    Path
	Joined bool // <path,> form: values are joined with ", "
}

func (p Part) IsRef() bool { return p.Ref != nil }

// Expr is a parsed text fragment such as "<name>_key" or
// "CONSTRAINT <name>_pk PRIMARY KEY (<nat_keys.name,>)".
type Expr []Part

var placeholderRe = regexp.MustCompile(`<([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)*)(,?)>`)

// ParseExpr splits s into literal and reference parts. Text between angle
// brackets that is not a dotted identifier ("a <> b", "x < y") stays literal.
func ParseExpr(s string) Expr {
	var out Expr
	last := 0
	for _, m := range placeholderRe.FindAllStringSubmatchIndex(s, -1) {
		if m[0] > last {
			out = append(out, Part{Lit: s[last:m[0]]})
		}
		// the regexp only matches well-formed paths
		p, _ := ParsePath(s[m[2]:m[3]])
		out = append(out, Part{Ref: p, Joined: m[5] > m[4]})
		last = m[1]
	}
	if last < len(s) {
		out = append(out, Part{Lit: s[last:]})
	}
	return out
}

// Refs returns the reference parts in order of appearance.
func (x Expr) Refs() []Part {
	var out []Part
	for _, p := range x {
		if p.IsRef() {
			out = append(out, p)
		}
	}
	return out
}

// HasRefs reports whether the expression embeds at least one path.
func (x Expr) HasRefs() bool {
	for _, p := range x {
		if p.IsRef() {
			return true
		}
	}
	return false
}

// Literal concatenates the literal parts.
func (x Expr) Literal() string {
	var b strings.Builder
	for _, p := range x {
		if !p.IsRef() {
			b.WriteString(p.Lit)
		}
	}
	return b.String()
}
