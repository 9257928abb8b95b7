package templates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dvh/internal/dsl"
)

const doc = `
defaults:
  hub: {sur_key.format: BIGINT}
DDL_Hub: |
  CREATE TABLE <name> (
      <nat_keys.name> <nat_keys.format>
  );
ddl_sat_multi: CREATE TABLE <name>_m ();
dml_hub:
  - INSERT INTO <name> VALUES (1);
  - UPDATE <name> SET x = 1;
dml_link: INSERT INTO <name> VALUES (2);
drop_hub: DROP TABLE <name>;
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "CREATE TABLE <name> (\n    <nat_keys.name> <nat_keys.format>\n);\n", c.DDL["hub"])
	assert.Equal(t, []string{"INSERT INTO <name> VALUES (1);", "UPDATE <name> SET x = 1;"}, c.DML["hub"])
	assert.Equal(t, []string{"INSERT INTO <name> VALUES (2);"}, c.DML["link"])
	assert.Equal(t, "DROP TABLE <name>;", c.Drop["hub"])
	assert.Equal(t, dsl.Defaults{"sur_key.format": "BIGINT"}, c.Defaults[dsl.KindHub])
	assert.Equal(t, 5, c.Len())
}

func TestLookup(t *testing.T) {
	c, err := Parse([]byte(doc))
	require.NoError(t, err)

	h := &dsl.Entity{Name: "h1", Kind: dsl.KindHub}
	ddl, err := c.DDLFor(h)
	require.NoError(t, err)
	assert.Contains(t, ddl, "CREATE TABLE <name>")

	s := &dsl.Entity{Name: "s1", Kind: dsl.KindSat, Template: "Multi"}
	assert.Equal(t, "sat_multi", Key(s))
	ddl, err = c.DDLFor(s)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE <name>_m ();", ddl)

	_, err = c.DropFor(s)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
	assert.ErrorIs(t, err, dsl.ErrDefinition)
	assert.Contains(t, err.Error(), "drop_sat_multi")

	_, err = c.DMLFor(&dsl.Entity{Name: "s2", Kind: dsl.KindSat})
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"no section":      "hub: x",
		"unknown section": "alter_hub: x",
		"unknown variant": "ddl_table: x",
		"ddl not string":  "ddl_hub: [a, b]",
		"dml mapping":     "dml_hub: {a: b}",
		"bad defaults":    "defaults: {table: {a: b}}",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(src))
			assert.Error(t, err)
		})
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("hub.yaml", "ddl_hub: A\ndefaults: {hub: {sur_key.format: BIGINT}}\n")
	write("link.yml", "ddl_link: B\ndefaults: {hub: {sur_key.name: <name>_sk}}\n")
	write("notes.txt", "not a template")

	c, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "A", c.DDL["hub"])
	assert.Equal(t, "B", c.DDL["link"])
	assert.Equal(t, dsl.Defaults{"sur_key.format": "BIGINT", "sur_key.name": "<name>_sk"}, c.Defaults[dsl.KindHub])

	single, err := Load(filepath.Join(dir, "hub.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 1, single.Len())

	write("again.yaml", "ddl_hub: C\n")
	_, err = Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate template ddl_hub")
}
