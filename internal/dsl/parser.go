package dsl

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// A model document looks like:
//
//	defaults:
//	  hub: {sur_key.format: NUMBER(12)}
//	tables:
//	  h1: &h1 !Hub
//	    nat_keys:
//	      - {name: h1_id, format: number(9), src: stg.id}
//	  l1:
//	    type: link
//	    hubs: [*h1, h2]
//
// An entity's variant comes from its YAML tag or from a "type" key.
// References are YAML aliases to other tables or plain table names.

// ParseModel decodes one model document.
func ParseModel(data []byte) (*Model, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	m := NewModel()
	if len(doc.Content) == 0 {
		return m, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: model document must be a mapping", root.Line)
	}

	tables := root
	var defaultsNode *yaml.Node
	if t := mappingValue(root, "tables"); t != nil {
		tables = t
		defaultsNode = mappingValue(root, "defaults")
	}
	if tables.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: 'tables' must be a mapping", tables.Line)
	}

	if defaultsNode != nil {
		ov, err := decodeOverrides(defaultsNode)
		if err != nil {
			return nil, err
		}
		m.Overrides = ov
	}

	// anchored table nodes -> table name, for alias references
	names := map[*yaml.Node]string{}
	for i := 0; i+1 < len(tables.Content); i += 2 {
		names[tables.Content[i+1]] = tables.Content[i].Value
	}

	for i := 0; i+1 < len(tables.Content); i += 2 {
		k, v := tables.Content[i], tables.Content[i+1]
		if k.Value == "defaults" && tables == root {
			ov, err := decodeOverrides(v)
			if err != nil {
				return nil, err
			}
			m.Overrides = ov
			continue
		}
		if _, dup := m.Entities[k.Value]; dup {
			return nil, fmt.Errorf("line %d: duplicate table %q", k.Line, k.Value)
		}
		e, err := decodeEntity(v, names)
		if err != nil {
			return nil, fmt.Errorf("table %q: %w", k.Value, err)
		}
		e.Name = k.Value
		m.Entities[k.Value] = e
	}
	return m, nil
}

// LoadModel reads a single model file.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := ParseModel(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return m, nil
}

// LoadAllModels merges every *.yaml / *.yml under root into one Model.
// A path to a single file is accepted too.
func LoadAllModels(root string) (*Model, error) {
	st, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return LoadModel(root)
	}

	result := NewModel()
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if d.IsDir() || (ext != ".yaml" && ext != ".yml") {
			return nil
		}
		m, err := LoadModel(path)
		if err != nil {
			return err
		}
		for name, e := range m.Entities {
			if _, exists := result.Entities[name]; exists {
				return fmt.Errorf("duplicate table %q (file: %s)", name, path)
			}
			result.Entities[name] = e
		}
		for k, d := range m.Overrides {
			result.Overrides[k] = result.Overrides[k].Merge(d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func decodeOverrides(n *yaml.Node) (map[Kind]Defaults, error) {
	out := map[Kind]Defaults{}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: 'defaults' must be a mapping", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		kind, ok := ParseKind(k.Value)
		if !ok {
			return nil, fmt.Errorf("line %d: defaults for unknown entity type %q", k.Line, k.Value)
		}
		var d map[string]string
		if err := v.Decode(&d); err != nil {
			return nil, fmt.Errorf("line %d: defaults for %s: %w", v.Line, kind, err)
		}
		out[kind] = out[kind].Merge(d)
	}
	return out, nil
}

func decodeEntity(n *yaml.Node, names map[*yaml.Node]string) (*Entity, error) {
	if n.Kind == yaml.AliasNode {
		return nil, fmt.Errorf("line %d: a table cannot be an alias", n.Line)
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: table must be a mapping", n.Line)
	}

	e := &Entity{Extra: map[string]Attr{}}
	if n.Tag != "" && !strings.HasPrefix(n.Tag, "!!") {
		k, ok := ParseKind(n.Tag)
		if !ok {
			return nil, fmt.Errorf("line %d: unknown entity tag %s", n.Line, n.Tag)
		}
		e.Kind = k
	}
	if t := mappingValue(n, "type"); t != nil && e.Kind == 0 {
		k, ok := ParseKind(t.Value)
		if !ok {
			return nil, fmt.Errorf("line %d: unknown entity type %q", t.Line, t.Value)
		}
		e.Kind = k
	}
	if e.Kind == 0 {
		return nil, fmt.Errorf("line %d: entity type missing (use a !Hub/!Link/!Sat/!SatLink tag or 'type')", n.Line)
	}

	for i := 0; i+1 < len(n.Content); i += 2 {
		key, v := n.Content[i].Value, n.Content[i+1]
		if key == "type" {
			continue
		}
		a, err := decodeAttr(v, names)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", key, err)
		}
		if !assign(e, key, a) {
			e.Extra[key] = a
		}
	}
	return e, nil
}

// assign stores a onto the variant field named key. It returns false when
// key is not a field of the variant or a has an unusable shape; the caller
// keeps such attributes in Extra.
func assign(e *Entity, key string, a Attr) bool {
	switch key {
	case "src":
		switch a.Kind {
		case AttrScalar:
			e.Src = a.Scalar
			return true
		case AttrMapping:
			e.Src = a.Mapping.Name()
			return e.Src != ""
		}
		return false
	case "template", "ddl_template":
		if a.Kind != AttrScalar {
			return false
		}
		e.Template = a.Scalar
		return true
	}

	switch e.Kind {
	case KindHub:
		switch key {
		case "nat_keys":
			return asMappings(a, &e.NatKeys)
		case "sur_key":
			return asMapping(a, &e.SurKey)
		}
	case KindLink:
		switch key {
		case "hubs":
			switch a.Kind {
			case AttrRefs, AttrRef:
				e.Hubs = append([]Ref{}, a.Refs...)
				return true
			case AttrScalars:
				e.Hubs = make([]Ref, 0, len(a.Scalars))
				for _, s := range a.Scalars {
					e.Hubs = append(e.Hubs, Ref(s))
				}
				return true
			case AttrScalar:
				e.Hubs = []Ref{Ref(a.Scalar)}
				return true
			}
			return false
		case "for_keys":
			return asMappings(a, &e.ForKeys)
		case "sur_key":
			return asMapping(a, &e.SurKey)
		}
	case KindSat, KindSatLink:
		switch key {
		case "hub", "link":
			if (key == "hub") != (e.Kind == KindSat) {
				return false
			}
			var r Ref
			switch a.Kind {
			case AttrRef:
				r = a.Refs[0]
			case AttrScalar:
				r = Ref(a.Scalar)
			default:
				return false
			}
			if key == "hub" {
				e.Hub = r
			} else {
				e.Link = r
			}
			return true
		case "atts":
			return asMappings(a, &e.Atts)
		case "for_key":
			return asMapping(a, &e.ForKey)
		case "lfc_dts":
			return asMapping(a, &e.LfcDts)
		}
	}
	return false
}

func asMapping(a Attr, dst *Descriptor) bool {
	switch a.Kind {
	case AttrMapping:
		*dst = a.Mapping
		return true
	case AttrScalar:
		// lfc_dts: effective_date
		*dst = Descriptor{"name": a.Scalar}
		return true
	}
	return false
}

func asMappings(a Attr, dst *[]Descriptor) bool {
	switch a.Kind {
	case AttrMappings:
		*dst = a.Mappings
		return true
	case AttrScalars:
		if len(a.Scalars) == 0 {
			*dst = []Descriptor{}
			return true
		}
	}
	return false
}

func decodeAttr(n *yaml.Node, names map[*yaml.Node]string) (Attr, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return ScalarAttr(n.Value), nil
	case yaml.AliasNode:
		name, ok := names[n.Alias]
		if !ok {
			return Attr{}, fmt.Errorf("line %d: alias *%s does not refer to a table", n.Line, n.Value)
		}
		return RefAttr(Ref(name)), nil
	case yaml.MappingNode:
		d, err := decodeDescriptor(n)
		if err != nil {
			return Attr{}, err
		}
		return MappingAttr(d), nil
	case yaml.SequenceNode:
		return decodeList(n, names)
	}
	return Attr{}, fmt.Errorf("line %d: unsupported value", n.Line)
}

func decodeDescriptor(n *yaml.Node) (Descriptor, error) {
	d := make(Descriptor, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: descriptor key %q must be a scalar", v.Line, k.Value)
		}
		d[k.Value] = v.Value
	}
	return d, nil
}

// decodeList accepts a list of scalars, of mappings, or of table references
// (aliases possibly mixed with plain names).
func decodeList(n *yaml.Node, names map[*yaml.Node]string) (Attr, error) {
	if len(n.Content) == 0 {
		return ScalarsAttr([]string{}), nil
	}
	var scalars, mappings, aliases int
	for _, c := range n.Content {
		switch c.Kind {
		case yaml.ScalarNode:
			scalars++
		case yaml.MappingNode:
			mappings++
		case yaml.AliasNode:
			aliases++
		default:
			return Attr{}, fmt.Errorf("line %d: nested lists are not supported", c.Line)
		}
	}

	switch {
	case mappings == len(n.Content):
		out := make([]Descriptor, 0, len(n.Content))
		for _, c := range n.Content {
			d, err := decodeDescriptor(c)
			if err != nil {
				return Attr{}, err
			}
			out = append(out, d)
		}
		return MappingsAttr(out), nil
	case scalars == len(n.Content):
		out := make([]string, 0, len(n.Content))
		for _, c := range n.Content {
			out = append(out, c.Value)
		}
		return ScalarsAttr(out), nil
	case mappings == 0:
		out := make([]Ref, 0, len(n.Content))
		for _, c := range n.Content {
			if c.Kind == yaml.ScalarNode {
				out = append(out, Ref(c.Value))
				continue
			}
			name, ok := names[c.Alias]
			if !ok {
				return Attr{}, fmt.Errorf("line %d: alias *%s does not refer to a table", c.Line, c.Value)
			}
			out = append(out, Ref(name))
		}
		return RefsAttr(out), nil
	}
	return Attr{}, fmt.Errorf("line %d: mixed list", n.Line)
}
