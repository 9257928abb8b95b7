package dsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(es []*Entity) []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.Name)
	}
	return out
}

func TestAttrAbsentIsNotAnError(t *testing.T) {
	h := &Entity{Kind: KindHub, NatKeys: []Descriptor{{"name": "id1", "format": "number(9)"}}}
	h.Init("hub1", nil)

	_, ok := h.Attr("sur_key")
	assert.False(t, ok)
	_, ok = h.Attr("whatever")
	assert.False(t, ok)
	_, ok = h.Attr("hubs") // not a Hub field
	assert.False(t, ok)

	a, ok := h.Attr("nat_keys")
	require.True(t, ok)
	assert.Equal(t, AttrMappings, a.Kind)
	assert.Equal(t, "id1", a.Mappings[0].Name())

	a, ok = h.Attr("name")
	require.True(t, ok)
	assert.Equal(t, "hub1", a.Scalar)
}

func TestAttrExtra(t *testing.T) {
	h := &Entity{Kind: KindHub, Extra: map[string]Attr{
		"extras": MappingsAttr([]Descriptor{{"name": "x", "format": "date"}}),
	}}
	a, ok := h.Attr("extras")
	require.True(t, ok)
	assert.Equal(t, "x date", a.Mappings[0].String())
}

func TestInitMergesDefaults(t *testing.T) {
	m := NewModel()
	m.Entities["h1"] = &Entity{Kind: KindHub}
	m.Entities["s1"] = &Entity{Kind: KindSat, Hub: "h1"}
	m.Overrides[KindHub] = Defaults{"sur_key.format": "NUMBER(18)"}

	m.Init()

	h := m.Entities["h1"]
	assert.Equal(t, "h1", h.Name)
	assert.Equal(t, "NUMBER(18)", h.Defaults["sur_key.format"])
	assert.Equal(t, "<name>_key", h.Defaults["sur_key.name"])
	assert.Equal(t, "effective_date", m.Entities["s1"].Defaults["lfc_dts.name"])

	// built-ins are not shared between entities
	h.Defaults["sur_key.name"] = "changed"
	assert.Equal(t, "<name>_key", BuiltinDefaults(KindHub)["sur_key.name"])
}

func TestOrderForCreateAndDrop(t *testing.T) {
	m := NewModel()
	m.Entities["s1"] = &Entity{Kind: KindSat, Hub: "h1"}
	m.Entities["l1"] = &Entity{Kind: KindLink, Hubs: []Ref{"h1", "h2"}}
	m.Entities["h2"] = &Entity{Kind: KindHub}
	m.Entities["h1"] = &Entity{Kind: KindHub}
	m.Init()

	create := m.All()
	assert.Equal(t, []string{"h1", "h2", "l1", "s1"}, names(create))
	assert.Equal(t, []string{"s1", "l1", "h2", "h1"}, names(OrderForDrop(create)))
}

func TestOrderTierBeatsName(t *testing.T) {
	es := []*Entity{
		{Name: "a_satlink", Kind: KindSatLink},
		{Name: "z_hub", Kind: KindHub},
		{Name: "a_sat", Kind: KindSat},
		{Name: "m_link", Kind: KindLink},
	}
	assert.Equal(t, []string{"z_hub", "m_link", "a_sat", "a_satlink"}, names(OrderForCreate(es)))
	assert.Equal(t, "a_satlink", es[0].Name, "input must not be reordered")
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{
		"hub": KindHub, "!Hub": KindHub, "Link": KindLink, "sat": KindSat,
		"!Sat": KindSat, "SatLink": KindSatLink, "sat_link": KindSatLink,
	} {
		k, ok := ParseKind(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, k, in)
	}
	_, ok := ParseKind("!DVModel")
	assert.False(t, ok)
}

func TestDefinitionErrorMatchesSentinel(t *testing.T) {
	h := &Entity{Kind: KindHub}
	h.Init("h1", nil)
	err := NewDefinitionError(h, "a.b.c", "too deep", nil)
	assert.ErrorIs(t, err, ErrDefinition)
	assert.Equal(t, `definition error for Hub "h1" at 'a.b.c': too deep`, err.Error())
}
