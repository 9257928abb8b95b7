// Package validate checks an entity graph against the structural rules that
// gate generation, and against the source bindings data loads need.
// Violations are collected, never raised.
package validate

import (
	"fmt"

	"dvh/internal/dsl"
)

// Kind separates the two independent passes.
type Kind string

const (
	Structural Kind = "structural"
	Source     Kind = "source"
)

// Violation codes.
const (
	CodeNatKeysMissing  = "nat_keys_missing"
	CodeNatKeysSingle   = "nat_keys_single"
	CodeKeyNameMissing  = "key_name_missing"
	CodeHubsTooFew      = "hubs_too_few"
	CodeNotHub          = "not_hub"
	CodeNotLink         = "not_link"
	CodeRefUnknown      = "ref_unknown"
	CodeForKeysMismatch = "for_keys_mismatch"
	CodeHubMissing      = "hub_missing"
	CodeLinkMissing     = "link_missing"
	CodeSrcMissing      = "src_missing"
	CodeTableSrcMissing = "table_src_missing"
	CodeSrcInherit      = "src_inherit"
)

type Violation struct {
	Kind    Kind   `json:"kind"`
	Entity  string `json:"entity"`
	Variant string `json:"variant"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (v Violation) Error() string {
	return fmt.Sprintf("%s %q: %s", v.Variant, v.Entity, v.Message)
}

type checker struct {
	m    *dsl.Model
	e    *dsl.Entity
	kind Kind
	out  []Violation
}

func (c *checker) add(code, format string, args ...any) {
	c.out = append(c.out, Violation{
		Kind:    c.kind,
		Entity:  c.e.Name,
		Variant: c.e.Kind.String(),
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	})
}

// ref dereferences r and checks its variant. what names the attribute.
func (c *checker) ref(r dsl.Ref, want dsl.Kind, what string) {
	target, ok := c.m.Lookup(r)
	if !ok {
		c.add(CodeRefUnknown, "'%s' refers to unknown entity %q", what, r)
		return
	}
	if target.Kind != want {
		code := CodeNotHub
		if want == dsl.KindLink {
			code = CodeNotLink
		}
		c.add(code, "'%s' can only refer to %s type, %q is a %s", what, want, r, target.Kind)
	}
}

// Entity runs the structural rules for one entity.
func Entity(m *dsl.Model, e *dsl.Entity) []Violation {
	c := &checker{m: m, e: e, kind: Structural}

	switch e.Kind {
	case dsl.KindHub:
		if len(e.NatKeys) == 0 {
			c.add(CodeNatKeysMissing, "Hub must have a 'nat_keys' list of at least one natural key")
			break
		}
		if e.SurKey == nil && len(e.NatKeys) > 1 {
			c.add(CodeNatKeysSingle, "Hub without 'sur_key' can only have one 'nat_keys' item (its primary key)")
		}
		for i, k := range e.NatKeys {
			if k.Name() == "" {
				c.add(CodeKeyNameMissing, "'nat_keys' item %d has no 'name'", i+1)
			}
		}

	case dsl.KindLink:
		if len(e.Hubs) < 2 {
			c.add(CodeHubsTooFew, "Link must have a 'hubs' list of at least two Hubs")
		}
		for _, h := range e.Hubs {
			c.ref(h, dsl.KindHub, "hubs")
		}
		if e.ForKeys != nil && len(e.ForKeys) != len(e.Hubs) {
			c.add(CodeForKeysMismatch, "Link's 'for_keys' (%d) mismatch the number of 'hubs' (%d)",
				len(e.ForKeys), len(e.Hubs))
		}

	case dsl.KindSat:
		if e.Hub == "" {
			c.add(CodeHubMissing, "Satellite must refer to a single 'hub'")
		} else {
			c.ref(e.Hub, dsl.KindHub, "hub")
		}
		atts(c)

	case dsl.KindSatLink:
		if e.Link == "" {
			c.add(CodeLinkMissing, "Sat-Link must refer to a single 'link'")
		} else {
			c.ref(e.Link, dsl.KindLink, "link")
		}
		atts(c)
	}
	return c.out
}

func atts(c *checker) {
	for i, a := range c.e.Atts {
		if a.Name() == "" {
			c.add(CodeKeyNameMissing, "'atts' item %d has no 'name'", i+1)
		}
	}
}

// Model runs the structural rules over every entity, in creation order.
func Model(m *dsl.Model) Report {
	var r Report
	for _, e := range m.All() {
		r = append(r, Entity(m, e)...)
	}
	return r
}

// EntitySources checks the bindings needed to generate load statements for
// e. It assumes e is structurally valid.
func EntitySources(m *dsl.Model, e *dsl.Entity) []Violation {
	c := &checker{m: m, e: e, kind: Source}

	switch e.Kind {
	case dsl.KindHub:
		hubSources(c, e)

	case dsl.KindLink:
		surKeySource(c, e)
		if e.Src != "" {
			break
		}
		// inherited from the hubs: each sourced, all the same
		srcs := map[string]bool{}
		for _, r := range e.Hubs {
			h, ok := m.Lookup(r)
			if !ok {
				continue
			}
			hc := &checker{m: m, e: h, kind: Source}
			hubSources(hc, h)
			if len(hc.out) > 0 {
				c.add(CodeSrcInherit, "Link sourcing inherited from Hub requires valid Hub sourcing (%q)", h.Name)
				return c.out
			}
			srcs[h.Src] = true
		}
		if len(srcs) > 1 {
			c.add(CodeSrcInherit, "Link sourcing inherited from Hub requires same source for all Hub")
		}

	case dsl.KindSat, dsl.KindSatLink:
		for i, a := range e.Atts {
			if _, ok := a.Src(); !ok {
				c.add(CodeSrcMissing, "'src' attribute required for every 'atts' (item %d %q)", i+1, a.Name())
			}
		}
		if m.SourceOf(e) == "" {
			parent := e.Hub
			if e.Kind == dsl.KindSatLink {
				parent = e.Link
			}
			c.add(CodeSrcMissing, "'src' attribute required, none declared nor inherited from %q", parent)
		}
	}
	return c.out
}

func hubSources(c *checker, h *dsl.Entity) {
	// load statements read the staging table named by the Hub's own src,
	// on top of the per-key bindings
	if h.Src == "" {
		c.add(CodeTableSrcMissing, "table-level 'src' (the staging table load statements read) required to generate DML")
	}
	for i, k := range h.NatKeys {
		if _, ok := k.Src(); !ok {
			c.add(CodeSrcMissing, "'src' attribute required for every 'nat_keys' (item %d %q)", i+1, k.Name())
		}
	}
	surKeySource(c, h)
}

func surKeySource(c *checker, e *dsl.Entity) {
	if e.SurKey == nil {
		return
	}
	if _, ok := e.SurKey.Src(); !ok {
		c.add(CodeSrcMissing, "'src' attribute required for 'sur_key' (ex. a sequence: seq.nextval())")
	}
}

// Sources runs the source-mapping pass over every entity, in creation order.
func Sources(m *dsl.Model) Report {
	var r Report
	for _, e := range m.All() {
		r = append(r, EntitySources(m, e)...)
	}
	return r
}
