package dsl

import (
	"fmt"
	"sort"
	"strings"
)

// Kind is the Data Vault variant of an entity. Its numeric value is the
// creation tier: hubs first, satellite-links last.
type Kind int

const (
	KindHub Kind = iota + 1
	KindLink
	KindSat
	KindSatLink
)

// Tier is the creation-order tier of the kind.
func (k Kind) Tier() int { return int(k) }

func (k Kind) String() string {
	switch k {
	case KindHub:
		return "Hub"
	case KindLink:
		return "Link"
	case KindSat:
		return "Sat"
	case KindSatLink:
		return "SatLink"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Key is the lower-case name used for template and defaults lookups.
func (k Kind) Key() string { return strings.ToLower(k.String()) }

// ParseKind accepts "hub", "Hub", "!Hub", "sat_link", ...
func ParseKind(s string) (Kind, bool) {
	s = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "!"))
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, "-", "")
	switch s {
	case "hub":
		return KindHub, true
	case "link":
		return KindLink, true
	case "sat", "satellite":
		return KindSat, true
	case "satlink", "satellitelink":
		return KindSatLink, true
	}
	return 0, false
}

// Descriptor is a key/attribute descriptor: name, format, optionally src and
// any other author-declared key (size, ...).
type Descriptor map[string]string

func (d Descriptor) Name() string { return d["name"] }
func (d Descriptor) Format() string { return d["format"] }

// Src returns the source-system binding, if declared.
func (d Descriptor) Src() (string, bool) {
	v, ok := d["src"]
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// Clone returns a copy; nil stays nil.
func (d Descriptor) Clone() Descriptor {
	if d == nil {
		return nil
	}
	out := make(Descriptor, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// String renders a descriptor as a column definition ("name format").
func (d Descriptor) String() string {
	return strings.TrimSpace(d.Name() + " " + d.Format())
}

// Ref is a non-owning handle to another entity of the same Model.
type Ref string

// AttrKind tags the shape held by an Attr.
type AttrKind uint8

const (
	AttrScalar AttrKind = iota + 1
	AttrScalars
	AttrMapping
	AttrMappings
	AttrRef
	AttrRefs
)

// Attr is one attribute value of an entity.
type Attr struct {
	Kind     AttrKind
	Scalar   string
	Scalars  []string
	Mapping  Descriptor
	Mappings []Descriptor
	Refs     []Ref
}

func ScalarAttr(s string) Attr { return Attr{Kind: AttrScalar, Scalar: s} }
func ScalarsAttr(s []string) Attr { return Attr{Kind: AttrScalars, Scalars: s} }
func MappingAttr(d Descriptor) Attr { return Attr{Kind: AttrMapping, Mapping: d} }
func MappingsAttr(ds []Descriptor) Attr { return Attr{Kind: AttrMappings, Mappings: ds} }
func RefAttr(r Ref) Attr { return Attr{Kind: AttrRef, Refs: []Ref{r}} }
func RefsAttr(rs []Ref) Attr { return Attr{Kind: AttrRefs, Refs: rs} }

// Derived holds the attributes computed by the setup steps. Nil slices mean
// "not computed" or "none".
type Derived struct {
	PrimaryKey       []string
	PrimaryKeyFormat []string
	UniqueKey        []string
	KeysJoin         string
	NatKeysJoin      string
	Src              string // inherited source binding

	DDLReady bool
	DMLReady bool
}

// Entity is a Hub, Link, Sat or SatLink. Only the fields of its Kind are used.
type Entity struct {
	Name     string
	Kind     Kind
	Src      string
	Template string // custom template suffix

	// Hub
	NatKeys []Descriptor
	SurKey  Descriptor // Hub and Link

	// Link
	Hubs    []Ref
	ForKeys []Descriptor

	// Sat / SatLink
	Hub    Ref
	Link   Ref
	Atts   []Descriptor
	ForKey Descriptor
	LfcDts Descriptor

	// Extra holds author-declared attributes outside the variant's field set.
	Extra map[string]Attr

	Defaults Defaults
	Derived  Derived
}

// Attr returns the named attribute. ok is false when the attribute is not
// declared (or not derived yet); it never fails.
func (e *Entity) Attr(name string) (Attr, bool) {
	switch name {
	case "name":
		if e.Name == "" {
			return Attr{}, false
		}
		return ScalarAttr(e.Name), true
	case "src":
		if e.Src != "" {
			return ScalarAttr(e.Src), true
		}
		if e.Derived.Src != "" {
			return ScalarAttr(e.Derived.Src), true
		}
		return Attr{}, false
	case "template":
		if e.Template == "" {
			return Attr{}, false
		}
		return ScalarAttr(e.Template), true
	case "primary_key":
		return scalarsOrAbsent(e.Derived.PrimaryKey)
	case "primary_key_format":
		return scalarsOrAbsent(e.Derived.PrimaryKeyFormat)
	case "unique_key":
		return scalarsOrAbsent(e.Derived.UniqueKey)
	case "keys_join":
		if !e.Derived.DMLReady || e.Derived.KeysJoin == "" {
			return Attr{}, false
		}
		return ScalarAttr(e.Derived.KeysJoin), true
	case "nat_keys_join":
		if !e.Derived.DMLReady || e.Derived.NatKeysJoin == "" {
			return Attr{}, false
		}
		return ScalarAttr(e.Derived.NatKeysJoin), true
	}

	switch e.Kind {
	case KindHub:
		switch name {
		case "nat_keys":
			return mappingsOrAbsent(e.NatKeys)
		case "sur_key":
			return mappingOrAbsent(e.SurKey)
		}
	case KindLink:
		switch name {
		case "hubs":
			if e.Hubs == nil {
				return Attr{}, false
			}
			return RefsAttr(e.Hubs), true
		case "for_keys":
			return mappingsOrAbsent(e.ForKeys)
		case "sur_key":
			return mappingOrAbsent(e.SurKey)
		}
	case KindSat, KindSatLink:
		switch name {
		case "hub":
			if e.Kind != KindSat || e.Hub == "" {
				return Attr{}, false
			}
			return RefAttr(e.Hub), true
		case "link":
			if e.Kind != KindSatLink || e.Link == "" {
				return Attr{}, false
			}
			return RefAttr(e.Link), true
		case "atts":
			return mappingsOrAbsent(e.Atts)
		case "for_key":
			return mappingOrAbsent(e.ForKey)
		case "lfc_dts":
			return mappingOrAbsent(e.LfcDts)
		}
	}

	a, ok := e.Extra[name]
	return a, ok
}

func scalarsOrAbsent(s []string) (Attr, bool) {
	if s == nil {
		return Attr{}, false
	}
	return ScalarsAttr(s), true
}

func mappingOrAbsent(d Descriptor) (Attr, bool) {
	if d == nil {
		return Attr{}, false
	}
	return MappingAttr(d), true
}

func mappingsOrAbsent(ds []Descriptor) (Attr, bool) {
	if ds == nil {
		return Attr{}, false
	}
	return MappingsAttr(ds), true
}

// Init assigns the entity's name and merges the variant built-in defaults
// with the model overrides (overrides win).
func (e *Entity) Init(name string, overrides Defaults) {
	e.Name = name
	e.Defaults = BuiltinDefaults(e.Kind).Merge(overrides)
}

func (e *Entity) String() string {
	return fmt.Sprintf("%s %q", e.Kind, e.Name)
}

// Model is the aggregate of entities keyed by unique name.
type Model struct {
	Entities  map[string]*Entity
	// Overrides are per-variant default overrides declared by the model.
	Overrides map[Kind]Defaults
}

func NewModel() *Model {
	return &Model{
		Entities:  make(map[string]*Entity),
		Overrides: make(map[Kind]Defaults),
	}
}

// Init writes every key onto its entity and merges defaults.
func (m *Model) Init() {
	for name, e := range m.Entities {
		e.Init(name, m.Overrides[e.Kind])
	}
}

// Lookup dereferences a Ref.
func (m *Model) Lookup(r Ref) (*Entity, bool) {
	e, ok := m.Entities[string(r)]
	return e, ok && e != nil
}

// SourceOf returns the source binding e loads from: its own src, else the one
// all its parents agree on. Empty when there is none.
func (m *Model) SourceOf(e *Entity) string {
	return m.sourceOf(e, 0)
}

func (m *Model) sourceOf(e *Entity, depth int) string {
	if e.Src != "" {
		return e.Src
	}
	var parents []Ref
	switch e.Kind {
	case KindLink:
		parents = e.Hubs
	case KindSat:
		parents = []Ref{e.Hub}
	case KindSatLink:
		parents = []Ref{e.Link}
	}
	// sat-link -> link -> hub at most
	if len(parents) == 0 || depth > 2 {
		return ""
	}
	src := ""
	for _, r := range parents {
		p, ok := m.Lookup(r)
		if !ok {
			return ""
		}
		s := m.sourceOf(p, depth+1)
		if s == "" || (src != "" && s != src) {
			return ""
		}
		src = s
	}
	return src
}

// Names returns entity names sorted alphabetically.
func (m *Model) Names() []string {
	out := make([]string, 0, len(m.Entities))
	for k := range m.Entities {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// All returns the entities in creation order.
func (m *Model) All() []*Entity {
	out := make([]*Entity, 0, len(m.Entities))
	for _, e := range m.Entities {
		out = append(out, e)
	}
	return OrderForCreate(out)
}
