package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dvh/internal/dsl"
)

func TestSetupForDDLHubWithoutSurrogate(t *testing.T) {
	m := dsl.NewModel()
	m.Entities["hub1"] = &dsl.Entity{
		Kind:    dsl.KindHub,
		NatKeys: []dsl.Descriptor{{"name": "id1", "format": "number(9)"}},
	}
	m.Init()
	r := New(m)
	h := m.Entities["hub1"]

	require.NoError(t, r.SetupForDDL(h))
	assert.Equal(t, []string{"id1"}, h.Derived.PrimaryKey)
	assert.Equal(t, []string{"number(9)"}, h.Derived.PrimaryKeyFormat)
	assert.Nil(t, h.Derived.UniqueKey)
	assert.Nil(t, h.SurKey)

	_, ok := h.Attr("unique_key")
	assert.False(t, ok)
}

func TestSetupForDDLFillsKeys(t *testing.T) {
	m, r := load(t, vault)
	for _, e := range m.All() {
		require.NoError(t, r.SetupForDDL(e), e.Name)
	}

	h1 := m.Entities["h1"]
	assert.Equal(t, dsl.Descriptor{"name": "h1_key", "format": "NUMBER(9)"}, h1.SurKey)
	assert.Equal(t, []string{"h1_key"}, h1.Derived.PrimaryKey)
	assert.Equal(t, []string{"h1_id"}, h1.Derived.UniqueKey)

	l1 := m.Entities["l1"]
	assert.Equal(t, dsl.Descriptor{"name": "l1_key", "format": "NUMBER(9)"}, l1.SurKey)
	assert.Equal(t, []dsl.Descriptor{
		{"name": "h1_key", "format": "NUMBER(9)"},
		{"name": "h2_id", "format": "number(5)"},
	}, l1.ForKeys)
	assert.Equal(t, []string{"l1_key"}, l1.Derived.PrimaryKey)
	assert.Equal(t, []string{"h1_key", "h2_id"}, l1.Derived.UniqueKey)

	s1 := m.Entities["s1"]
	assert.Equal(t, dsl.Descriptor{"name": "h1_key", "format": "NUMBER(9)"}, s1.ForKey)
	assert.Equal(t, dsl.Descriptor{"name": "effective_date", "format": "DATE"}, s1.LfcDts)
	assert.Equal(t, []string{"h1_key", "effective_date"}, s1.Derived.PrimaryKey)
	assert.Equal(t, []string{"NUMBER(9)", "DATE"}, s1.Derived.PrimaryKeyFormat)
	assert.Nil(t, s1.Derived.UniqueKey)

	sl1 := m.Entities["sl1"]
	assert.Equal(t, dsl.Descriptor{"name": "l1_key", "format": "NUMBER(9)"}, sl1.ForKey)
	assert.Equal(t, []string{"l1_key", "effective_date"}, sl1.Derived.PrimaryKey)
}

func TestSetupForDDLLinkWithoutSurrogate(t *testing.T) {
	m, r := load(t, `
tables:
  h1: {type: hub, nat_keys: [{name: a, format: int}]}
  h2: {type: hub, nat_keys: [{name: b, format: text}]}
  l1: {type: link, hubs: [h1, h2]}
`)
	l1 := m.Entities["l1"]
	require.NoError(t, r.SetupForDDL(l1))

	assert.Nil(t, l1.SurKey)
	assert.Equal(t, []string{"a", "b"}, l1.Derived.PrimaryKey)
	assert.Equal(t, []string{"int", "text"}, l1.Derived.PrimaryKeyFormat)
	assert.Nil(t, l1.Derived.UniqueKey)
}

func TestSetupForDDLIsIdempotent(t *testing.T) {
	m, r := load(t, vault)
	for _, e := range m.All() {
		require.NoError(t, r.SetupForDDL(e))
	}
	first := map[string]dsl.Entity{}
	for name, e := range m.Entities {
		first[name] = *e
	}

	for _, e := range m.All() {
		require.NoError(t, r.SetupForDDL(e))
	}
	for name, e := range m.Entities {
		assert.Equal(t, first[name], *e, name)
	}
}

func TestSetupForDDLNoPrimaryKey(t *testing.T) {
	m, r := load(t, `
tables:
  h1: {type: hub, nat_keys: []}
`)
	err := r.SetupForDDL(m.Entities["h1"])
	require.Error(t, err)
	assert.ErrorIs(t, err, dsl.ErrDefinition)
}

func TestSetupForDML(t *testing.T) {
	m, r := load(t, `
tables:
  h1:
    type: hub
    src: stg
    sur_key: {}
    nat_keys: [{name: h1_id, src: stg.id}]
  h2:
    type: hub
    src: stg
    nat_keys: [{name: h2_id, format: int, src: stg.code}]
  l1:
    type: link
    hubs: [h1, h2]
    for_keys: [{name: fk1}, {name: fk2}]
  s1: {type: sat, hub: h1}
  sl1: {type: satlink, link: l1}
`)
	for _, e := range m.All() {
		require.NoError(t, r.SetupForDML(e), e.Name)
		assert.True(t, e.Derived.DDLReady)
		assert.True(t, e.Derived.DMLReady)
	}

	assert.Equal(t, "stg.id = h1_id", m.Entities["h1"].Derived.NatKeysJoin)
	assert.Empty(t, m.Entities["h1"].Derived.KeysJoin)

	l1 := m.Entities["l1"]
	assert.Equal(t, "fk1 = h1_key and fk2 = h2_id", l1.Derived.KeysJoin)
	assert.Equal(t, "stg.id = h1_id and stg.code = h2_id", l1.Derived.NatKeysJoin)

	s1 := m.Entities["s1"]
	assert.Equal(t, "h1_key = h1_key", s1.Derived.KeysJoin)
	assert.Equal(t, "stg.id = h1_id", s1.Derived.NatKeysJoin)

	sl1 := m.Entities["sl1"]
	assert.Equal(t, "fk1 = fk1 and fk2 = fk2", sl1.Derived.KeysJoin)

	a, ok := l1.Attr("keys_join")
	require.True(t, ok)
	assert.Equal(t, l1.Derived.KeysJoin, a.Scalar)

	// src inherited down the graph
	for _, name := range []string{"l1", "s1", "sl1"} {
		v, ok, err := r.Resolve(m.Entities[name], "src", true)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []string{"stg"}, v.Strings(), name)
		assert.Empty(t, m.Entities[name].Src)
	}
}

func TestSetupForDMLMissingSource(t *testing.T) {
	m, r := load(t, `
tables:
  h1: {type: hub, nat_keys: [{name: h1_id}]}
`)
	err := r.SetupForDML(m.Entities["h1"])
	require.Error(t, err)
	assert.ErrorIs(t, err, dsl.ErrDefinition)
	assert.Contains(t, err.Error(), "no 'src'")
	assert.False(t, m.Entities["h1"].Derived.DMLReady)
}

func TestJoinPairs(t *testing.T) {
	s, err := JoinPairs([]string{"a", "b"}, []string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, "a = x and b = y", s)

	_, err = JoinPairs([]string{"a"}, []string{"x", "y"})
	assert.Error(t, err)

	_, err = JoinPairs(nil, nil)
	assert.Error(t, err)
}
