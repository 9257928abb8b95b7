// Package resolve evaluates dotted attribute paths ("hubs.primary_key")
// against the entity graph, with fan-out over related entities and a
// default-expression fallback chain.
package resolve

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"dvh/internal/dsl"
)

const defaultMaxDepth = 8

// Resolver resolves paths against the entities of one Model.
type Resolver struct {
	model    *dsl.Model
	log      *zap.Logger
	maxDepth int
}

type Option func(*Resolver)

// WithLogger logs default fallbacks at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.log = l
		}
	}
}

// WithMaxDepth bounds how many defaults may chain into each other.
func WithMaxDepth(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxDepth = n
		}
	}
}

func New(m *dsl.Model, opts ...Option) *Resolver {
	r := &Resolver{model: m, log: zap.NewNop(), maxDepth: defaultMaxDepth}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve looks path up on e without defaults. ok is false when any level is
// absent; with mandatory set that is a definition error instead.
func (r *Resolver) Resolve(e *dsl.Entity, path string, mandatory bool) (Values, bool, error) {
	p, err := r.parse(e, path)
	if err != nil {
		return nil, false, err
	}
	slots, headOK, err := r.collect(e, p, 0)
	if err != nil {
		return nil, false, err
	}
	vals, ok := flatten(slots, headOK)
	if !ok {
		return r.absent(e, p, mandatory)
	}
	return vals, true, nil
}

// ResolveDefault is Resolve with the entity's default table consulted for
// absent values.
func (r *Resolver) ResolveDefault(e *dsl.Entity, path string, mandatory bool) (Values, bool, error) {
	p, err := r.parse(e, path)
	if err != nil {
		return nil, false, err
	}
	return r.resolveDefault(e, p, mandatory, 0)
}

// ResolvePath is ResolveDefault for an already parsed path.
func (r *Resolver) ResolvePath(e *dsl.Entity, p Path, mandatory bool) (Values, bool, error) {
	if len(p) > MaxSegments {
		return nil, false, dsl.NewDefinitionError(e, p.String(),
			fmt.Sprintf("attributes resolve at most %d levels deep", MaxSegments), nil)
	}
	return r.resolveDefault(e, p, mandatory, 0)
}

func (r *Resolver) parse(e *dsl.Entity, path string) (Path, error) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, dsl.NewDefinitionError(e, path, "invalid path", err)
	}
	if len(p) > MaxSegments {
		return nil, dsl.NewDefinitionError(e, path,
			fmt.Sprintf("attributes resolve at most %d levels deep", MaxSegments), nil)
	}
	return p, nil
}

func (r *Resolver) absent(e *dsl.Entity, p Path, mandatory bool) (Values, bool, error) {
	if mandatory {
		return nil, false, dsl.NewDefinitionError(e, p.String(), "mandatory attribute not resolvable", nil)
	}
	return nil, false, nil
}

// slot is the outcome for one element of the head of a path.
type slot struct {
	vals Values
	ok   bool
}

// collect resolves p without defaults. For a two-segment path there is one
// slot per element of the head; headOK is false when the head is absent.
func (r *Resolver) collect(e *dsl.Entity, p Path, depth int) ([]slot, bool, error) {
	head, ok, err := r.attr(e, p[0], depth)
	if err != nil || !ok {
		return nil, false, err
	}
	if len(p) == 1 {
		return []slot{{vals: head, ok: true}}, true, nil
	}
	slots := make([]slot, 0, len(head))
	for _, h := range head {
		vals, ok, err := r.step(h, p[1], depth)
		if err != nil {
			return nil, false, err
		}
		slots = append(slots, slot{vals: vals, ok: ok})
	}
	return slots, true, nil
}

func flatten(slots []slot, headOK bool) (Values, bool) {
	if !headOK {
		return nil, false
	}
	out := Values{}
	for _, s := range slots {
		if !s.ok {
			return nil, false
		}
		out = append(out, s.vals...)
	}
	return out, true
}

// step resolves one segment on an already resolved element.
func (r *Resolver) step(v Value, seg string, depth int) (Values, bool, error) {
	switch {
	case v.Entity != nil:
		return r.attr(v.Entity, seg, depth)
	case v.Mapping != nil:
		s, ok := v.Mapping[seg]
		if !ok {
			return nil, false, nil
		}
		return scalars(s), true, nil
	}
	return nil, false, nil
}

// attr reads a declared attribute, falling back to computing a derived one.
func (r *Resolver) attr(e *dsl.Entity, name string, depth int) (Values, bool, error) {
	a, ok := e.Attr(name)
	if !ok {
		if isDerived(name) {
			return r.derive(e, name, depth)
		}
		return nil, false, nil
	}
	switch a.Kind {
	case dsl.AttrScalar:
		return scalars(a.Scalar), true, nil
	case dsl.AttrScalars:
		return scalars(a.Scalars...), true, nil
	case dsl.AttrMapping:
		return Values{{Mapping: a.Mapping}}, true, nil
	case dsl.AttrMappings:
		out := make(Values, 0, len(a.Mappings))
		for _, d := range a.Mappings {
			out = append(out, Value{Mapping: d})
		}
		return out, true, nil
	case dsl.AttrRef, dsl.AttrRefs:
		out := make(Values, 0, len(a.Refs))
		for _, ref := range a.Refs {
			target, ok := r.model.Lookup(ref)
			if !ok {
				return nil, false, dsl.NewDefinitionError(e, name,
					fmt.Sprintf("refers to unknown entity %q", ref), nil)
			}
			out = append(out, Value{Entity: target})
		}
		return out, true, nil
	}
	return nil, false, nil
}

func (r *Resolver) resolveDefault(e *dsl.Entity, p Path, mandatory bool, depth int) (Values, bool, error) {
	if depth > r.maxDepth {
		return nil, false, dsl.NewDefinitionError(e, p.String(),
			fmt.Sprintf("defaults nested deeper than %d levels", r.maxDepth), nil)
	}
	slots, headOK, err := r.collect(e, p, depth)
	if err != nil {
		return nil, false, err
	}
	if vals, ok := flatten(slots, headOK); ok {
		return vals, true, nil
	}

	raw, hasDefault := e.Defaults[p.String()]
	if !hasDefault {
		return r.absent(e, p, mandatory)
	}
	// no sur_key declared: its name/format defaults do not conjure one up
	if !headOK && len(p) > 1 && dsl.IsOptionalFeature(e.Kind, p[0]) {
		return r.absent(e, p, mandatory)
	}

	dv, err := r.eval(e, ParseExpr(raw), depth+1)
	if err != nil {
		return nil, false, dsl.NewDefinitionError(e, p.String(),
			fmt.Sprintf("default %q failed", raw), err)
	}
	r.log.Debug("default applied",
		zap.String("entity", e.Name),
		zap.String("path", p.String()),
		zap.String("default", raw))

	if !headOK || len(p) == 1 {
		return dv, true, nil
	}

	// fill the fan-out elements that lack a value, index for index
	out := Values{}
	for i, s := range slots {
		switch {
		case s.ok:
			out = append(out, s.vals...)
		case len(dv) == len(slots):
			out = append(out, dv[i])
		case len(dv) == 1:
			out = append(out, dv[0])
		default:
			return nil, false, dsl.NewDefinitionError(e, p.String(),
				fmt.Sprintf("default %q yields %d values for %d elements", raw, len(dv), len(slots)), nil)
		}
	}
	return out, true, nil
}

// Eval evaluates a default expression: literal text with embedded paths that
// are resolved as mandatory.
func (r *Resolver) Eval(e *dsl.Entity, expr string) (Values, error) {
	return r.eval(e, ParseExpr(expr), 0)
}

func (r *Resolver) eval(e *dsl.Entity, x Expr, depth int) (Values, error) {
	if !x.HasRefs() {
		return scalars(x.Literal()), nil
	}
	lists := make([][]string, len(x))
	n := 1
	for i, part := range x {
		if !part.IsRef() {
			continue
		}
		if len(part.Ref) > MaxSegments {
			return nil, dsl.NewDefinitionError(e, part.Ref.String(),
				fmt.Sprintf("attributes resolve at most %d levels deep", MaxSegments), nil)
		}
		vals, _, err := r.resolveDefault(e, part.Ref, true, depth)
		if err != nil {
			return nil, err
		}
		ss := vals.Strings()
		if part.Joined {
			ss = []string{strings.Join(ss, ", ")}
		}
		if len(ss) == 0 {
			return nil, dsl.NewDefinitionError(e, part.Ref.String(), "resolves to an empty list", nil)
		}
		lists[i] = ss
		if len(ss) > n {
			n = len(ss)
		}
	}

	out := make(Values, 0, n)
	for k := 0; k < n; k++ {
		var b strings.Builder
		for i, part := range x {
			if !part.IsRef() {
				b.WriteString(part.Lit)
				continue
			}
			b.WriteString(Broadcast(lists[i], k, n))
		}
		out = append(out, Value{Scalar: b.String()})
	}
	return out, nil
}

// Broadcast returns element k of a list taking part in n repetitions. A list
// shorter than n is held at its first element for every repetition.
func Broadcast(ss []string, k, n int) string {
	if len(ss) < n {
		return ss[0]
	}
	return ss[k]
}
