// Package generate drives a whole model through validation, setup and
// template expansion, and returns the statements in schedule order.
package generate

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dvh/internal/dsl"
	"dvh/internal/expand"
	"dvh/internal/resolve"
	"dvh/internal/templates"
	"dvh/internal/validate"
)

var (
	// ErrValidation is returned while a validation pass reports violations.
	ErrValidation = errors.New("dvh: model has validation errors")
	// ErrNotPrepared is returned when generating before Prepare.
	ErrNotPrepared = errors.New("dvh: model not prepared")
)

// Script is the generated text of one entity. DDL and drop scripts carry a
// single statement; DML scripts one per load step.
type Script struct {
	Entity     string   `json:"entity"`
	Kind       string   `json:"kind"`
	Statements []string `json:"statements"`
}

// SQL joins the statements into one text.
func (s Script) SQL() string { return strings.Join(s.Statements, "\n") }

type Generator struct {
	model   *dsl.Model
	catalog *templates.Catalog
	r       *resolve.Resolver
	x       *expand.Expander
	log     *zap.Logger
	workers int

	prepared bool
	failed   map[string]error
}

type Option func(*Generator)

func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.log = l
		}
	}
}

// WithWorkers bounds how many entities are expanded at once.
func WithWorkers(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.workers = n
		}
	}
}

func New(m *dsl.Model, c *templates.Catalog, opts ...Option) *Generator {
	g := &Generator{model: m, catalog: c, log: zap.NewNop(), workers: 4}
	for _, o := range opts {
		o(g)
	}
	g.r = resolve.New(m, resolve.WithLogger(g.log))
	g.x = expand.New(g.r, g.log)
	return g
}

func (g *Generator) Model() *dsl.Model { return g.model }
func (g *Generator) Catalog() *templates.Catalog { return g.catalog }
func (g *Generator) Resolver() *resolve.Resolver { return g.r }

// Prepare initializes every entity, runs the structural validation and
// computes the DDL attributes. Violations stop it with ErrValidation. An
// entity whose setup fails is reported and left out of generation; the others
// are still prepared.
func (g *Generator) Prepare() (validate.Report, error) {
	// model overrides win over catalog defaults
	if g.model.Overrides == nil {
		g.model.Overrides = map[dsl.Kind]dsl.Defaults{}
	}
	for k, d := range g.catalog.Defaults {
		g.model.Overrides[k] = d.Merge(g.model.Overrides[k])
	}
	g.model.Init()

	rep := validate.Model(g.model)
	if rep.HasErrors() {
		g.log.Warn("model validation failed", zap.Int("violations", len(rep)))
		return rep, fmt.Errorf("%w: %d violation(s)", ErrValidation, len(rep))
	}

	var errs error
	g.failed = map[string]error{}
	for _, e := range g.model.All() {
		if err := g.r.SetupForDDL(e); err != nil {
			g.failed[e.Name] = err
			errs = multierr.Append(errs, err)
			g.log.Warn("entity setup failed", zap.String("entity", e.Name), zap.Error(err))
		}
	}
	g.prepared = true
	g.log.Debug("model prepared",
		zap.Int("entities", len(g.model.Entities)),
		zap.Int("failed", len(g.failed)))
	return rep, errs
}

// DDL expands the create templates of the named entities (all when none is
// named), in creation order.
func (g *Generator) DDL(names ...string) ([]Script, error) {
	es, err := g.selected(names)
	if err != nil {
		return nil, err
	}
	return g.run(dsl.OrderForCreate(es), func(e *dsl.Entity) (Script, error) {
		tmpl, err := g.catalog.DDLFor(e)
		if err != nil {
			return Script{}, err
		}
		text, err := g.x.DDL(e, tmpl)
		if err != nil {
			return Script{}, err
		}
		return script(e, text), nil
	})
}

// Drop expands the drop templates in drop order.
func (g *Generator) Drop(names ...string) ([]Script, error) {
	es, err := g.selected(names)
	if err != nil {
		return nil, err
	}
	return g.run(dsl.OrderForDrop(es), func(e *dsl.Entity) (Script, error) {
		tmpl, err := g.catalog.DropFor(e)
		if err != nil {
			return Script{}, err
		}
		text, err := g.x.DDL(e, tmpl)
		if err != nil {
			return Script{}, err
		}
		return script(e, text), nil
	})
}

// DML checks the source bindings of the named entities, computes their join
// predicates and expands their load steps in creation order. Source
// violations stop it with ErrValidation and are returned as a report.
func (g *Generator) DML(names ...string) ([]Script, validate.Report, error) {
	es, err := g.selected(names)
	if err != nil {
		return nil, nil, err
	}
	es = dsl.OrderForCreate(es)

	var rep validate.Report
	for _, e := range es {
		rep = append(rep, validate.EntitySources(g.model, e)...)
	}
	if rep.HasErrors() {
		return nil, rep, fmt.Errorf("%w: %d source mapping violation(s)", ErrValidation, len(rep))
	}

	// join predicates are computed before the concurrent expansion
	setupErrs := map[string]error{}
	for _, e := range es {
		if g.failed[e.Name] != nil {
			continue
		}
		if err := g.r.SetupForDML(e); err != nil {
			setupErrs[e.Name] = err
			g.log.Warn("entity DML setup failed", zap.String("entity", e.Name), zap.Error(err))
		}
	}

	scripts, err := g.run(es, func(e *dsl.Entity) (Script, error) {
		if err := setupErrs[e.Name]; err != nil {
			return Script{}, err
		}
		steps, err := g.catalog.DMLFor(e)
		if err != nil {
			return Script{}, err
		}
		out, err := g.x.DML(e, steps)
		if err != nil {
			return Script{}, err
		}
		return Script{Entity: e.Name, Kind: e.Kind.String(), Statements: out}, nil
	})
	return scripts, rep, err
}

func script(e *dsl.Entity, text string) Script {
	return Script{Entity: e.Name, Kind: e.Kind.String(), Statements: []string{text}}
}

func (g *Generator) selected(names []string) ([]*dsl.Entity, error) {
	if !g.prepared {
		return nil, ErrNotPrepared
	}
	if len(names) == 0 {
		return g.model.All(), nil
	}
	out := make([]*dsl.Entity, 0, len(names))
	for _, n := range names {
		e, ok := g.model.Lookup(dsl.Ref(n))
		if !ok {
			return nil, fmt.Errorf("unknown entity %q", n)
		}
		out = append(out, e)
	}
	return out, nil
}

// run applies fn to every entity. Entities fail independently: the scripts
// of the others keep their order and the failures are combined.
func (g *Generator) run(es []*dsl.Entity, fn func(*dsl.Entity) (Script, error)) ([]Script, error) {
	results := make([]Script, len(es))
	errs := make([]error, len(es))

	var eg errgroup.Group
	eg.SetLimit(g.workers)
	for i, e := range es {
		eg.Go(func() error {
			if err := g.failed[e.Name]; err != nil {
				errs[i] = err
				return nil
			}
			s, err := fn(e)
			if err != nil {
				g.log.Warn("generation failed", zap.String("entity", e.Name), zap.Error(err))
				errs[i] = err
				return nil
			}
			g.log.Debug("entity generated", zap.String("entity", e.Name), zap.String("kind", s.Kind))
			results[i] = s
			return nil
		})
	}
	_ = eg.Wait()

	out := make([]Script, 0, len(es))
	for i := range es {
		if errs[i] == nil {
			out = append(out, results[i])
		}
	}
	return out, multierr.Combine(errs...)
}
