// Package expand turns templates into concrete statements for one entity.
//
// DDL templates multiply lines: a line is repeated once per value of its
// longest placeholder list. DML templates join: every placeholder becomes its
// values separated by ", ". In both, a line with an absent placeholder is
// dropped.
package expand

import (
	"strings"

	"go.uber.org/zap"

	"dvh/internal/dsl"
	"dvh/internal/resolve"
)

type Expander struct {
	r   *resolve.Resolver
	log *zap.Logger
}

func New(r *resolve.Resolver, log *zap.Logger) *Expander {
	if log == nil {
		log = zap.NewNop()
	}
	return &Expander{r: r, log: log}
}

// DDL expands a DDL template for e. A separator left dangling by a dropped
// line (an optional unique key constraint, say) is removed.
func (x *Expander) DDL(e *dsl.Entity, tmpl string) (string, error) {
	var out output
	for _, line := range strings.Split(tmpl, "\n") {
		lines, err := x.ddlLine(e, line)
		if err != nil {
			return "", err
		}
		if len(lines) == 0 {
			out.drop()
			continue
		}
		out.add(lines...)
	}
	return out.text(), nil
}

func (x *Expander) ddlLine(e *dsl.Entity, line string) ([]string, error) {
	expr := resolve.ParseExpr(line)
	if !expr.HasRefs() {
		return []string{line}, nil
	}

	lists, ok, err := x.resolveParts(e, expr)
	if err != nil || !ok {
		return nil, err
	}

	n := 1
	for _, l := range lists {
		if len(l) > n {
			n = len(l)
		}
	}
	out := make([]string, 0, n)
	for k := 0; k < n; k++ {
		var b strings.Builder
		for i, p := range expr {
			if !p.IsRef() {
				b.WriteString(p.Lit)
				continue
			}
			b.WriteString(resolve.Broadcast(lists[i], k, n))
		}
		out = append(out, b.String())
	}
	return out, nil
}

// resolveParts resolves every placeholder of expr. The <path,> form is
// collapsed to a single joined value. ok is false when a placeholder is
// absent or empty and the line has to go.
func (x *Expander) resolveParts(e *dsl.Entity, expr resolve.Expr) ([][]string, bool, error) {
	lists := make([][]string, len(expr))
	for i, p := range expr {
		if !p.IsRef() {
			continue
		}
		vals, ok, err := x.r.ResolvePath(e, p.Ref, false)
		if err != nil {
			return nil, false, err
		}
		if !ok || len(vals) == 0 {
			x.log.Debug("line dropped",
				zap.String("entity", e.Name),
				zap.String("placeholder", p.Ref.String()))
			return nil, false, nil
		}
		ss := vals.Strings()
		if p.Joined {
			ss = []string{strings.Join(ss, ", ")}
		}
		lists[i] = ss
	}
	return lists, true, nil
}

// DML expands each load step for e. Placeholder values are joined with ", "
// in place; separators left dangling by dropped lines are removed.
func (x *Expander) DML(e *dsl.Entity, steps []string) ([]string, error) {
	out := make([]string, 0, len(steps))
	for _, step := range steps {
		var kept output
		for _, line := range strings.Split(step, "\n") {
			s, ok, err := x.dmlLine(e, line)
			if err != nil {
				return nil, err
			}
			if !ok {
				kept.drop()
				continue
			}
			kept.add(s)
		}
		out = append(out, kept.text())
	}
	return out, nil
}

func (x *Expander) dmlLine(e *dsl.Entity, line string) (string, bool, error) {
	expr := resolve.ParseExpr(line)
	if !expr.HasRefs() {
		return line, true, nil
	}
	lists, ok, err := x.resolveParts(e, expr)
	if err != nil || !ok {
		return "", false, err
	}
	var b strings.Builder
	for i, p := range expr {
		if !p.IsRef() {
			b.WriteString(p.Lit)
			continue
		}
		b.WriteString(strings.Join(lists[i], ", "))
	}
	return b.String(), true, nil
}
