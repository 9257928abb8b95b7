package pg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dvh/internal/dsl"
)

func TestCheckIdentifiers(t *testing.T) {
	m, err := dsl.ParseModel([]byte(`
tables:
  user: {type: hub, nat_keys: [{name: login}]}
  h2: {type: hub, nat_keys: [{name: ` + strings.Repeat("x", 64) + `}]}
  s1:
    type: sat
    hub: h2
    for_key: {name: k}
    atts: [{name: k}, {name: order}]
`))
	require.NoError(t, err)
	m.Init()

	got := CheckIdentifiers(m)
	require.Len(t, got, 4)
	assert.Equal(t, Issue{Entity: "h2", Ident: strings.Repeat("x", 64), Message: "is longer than 63 bytes"}, got[0])
	assert.Equal(t, "user", got[1].Ident)
	assert.Equal(t, `s1: "k" is declared twice`, got[2].String())
	assert.Equal(t, Issue{Entity: "s1", Ident: "order", Message: "is a reserved word"}, got[3])
}
