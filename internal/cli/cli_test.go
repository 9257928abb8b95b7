package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dvh/internal/generate"
)

const (
	sampleModel     = "../../model"
	sampleTemplates = "../../templates"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errw bytes.Buffer
	cmd := NewRootCmd(&out, &errw)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errw.String(), err
}

func sample(args ...string) []string {
	return append(args, "--model", sampleModel, "--templates", sampleTemplates)
}

func TestVersion(t *testing.T) {
	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "dvh version: dev")
}

func TestDDL(t *testing.T) {
	out, _, err := run(t, sample("ddl")...)
	require.NoError(t, err)

	assert.Contains(t, out, "-- Hub h_customer\nCREATE SEQUENCE IF NOT EXISTS h_customer_key_seq;\n")
	assert.Contains(t, out, "    h_customer_key BIGINT NOT NULL,\n    customer_no VARCHAR(20) NOT NULL,\n")
	assert.Contains(t, out, "    CONSTRAINT h_customer_uk UNIQUE (customer_no)\n);")
	// no surrogate: no sequence, no unique key
	assert.NotContains(t, out, "h_product_key")
	assert.Contains(t, out, "    CONSTRAINT h_product_pk PRIMARY KEY (product_code)\n);")
	assert.Contains(t, out, "    CONSTRAINT l_sale_h_customer_fk FOREIGN KEY (h_customer_key) REFERENCES h_customer (h_customer_key),\n"+
		"    CONSTRAINT l_sale_h_product_fk FOREIGN KEY (product_code) REFERENCES h_product (product_code),\n"+
		"    CONSTRAINT l_sale_pk PRIMARY KEY (l_sale_key),\n"+
		"    CONSTRAINT l_sale_uk UNIQUE (h_customer_key, product_code)\n);")
	assert.Contains(t, out, "REFERENCES h_customer (h_customer_key)\n);")
	assert.Contains(t, out, "    CONSTRAINT s_customer_pk PRIMARY KEY (h_customer_key, effective_date),\n")
	assert.Contains(t, out, "    unit_price NUMERIC(12,2),\n")
}

func TestDDLDrop(t *testing.T) {
	out, _, err := run(t, sample("ddl", "--drop", "h_customer", "s_customer")...)
	require.NoError(t, err)
	assert.Equal(t, "-- Sat s_customer\nDROP TABLE IF EXISTS s_customer;\n"+
		"-- Hub h_customer\nDROP TABLE IF EXISTS h_customer;\nDROP SEQUENCE IF EXISTS h_customer_key_seq;\n\n", out)
}

func TestDML(t *testing.T) {
	out, _, err := run(t, sample("dml")...)
	require.NoError(t, err)

	assert.Contains(t, out, "    SELECT DISTINCT h_customer_key, product_code\n"+
		"    FROM stg_sales, h_customer, h_product\n"+
		"    WHERE cust_no = customer_no and prod_code = product_code\n")
	assert.Contains(t, out, "    nextval('h_customer_key_seq'),\n")
	assert.Contains(t, out, "FROM (SELECT DISTINCT prod_code FROM stg_sales) s\n")
	assert.Contains(t, out, "    full_name, email,\n")
	assert.Contains(t, out, "FROM stg_customers, h_customer\nWHERE cust_no = customer_no\n")
	// the product satellite inherits its source from the hub
	assert.Contains(t, out, "now(), 'stg_sales'\nFROM stg_sales, h_product\nWHERE prod_code = product_code\n")
}

func TestValidate(t *testing.T) {
	_, errOut, err := run(t, sample("validate")...)
	require.NoError(t, err)
	assert.Contains(t, errOut, "model is valid: 5 entities")
}

func TestValidateFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tables:\n  h1: {type: hub}\n"), 0o644))

	_, errOut, err := run(t, "validate", "--model", path, "--templates", sampleTemplates)
	require.Error(t, err)
	assert.ErrorIs(t, err, generate.ErrValidation)
	assert.Contains(t, errOut, "structural violations (1):")
	assert.Contains(t, errOut, `Hub "h1": Hub must have a 'nat_keys' list`)
}

func TestApplyNeedsDatabase(t *testing.T) {
	t.Setenv("DVH_DB_URL", "")
	_, _, err := run(t, sample("apply")...)
	assert.ErrorContains(t, err, "no database")
}

func TestUnknownEntity(t *testing.T) {
	_, _, err := run(t, sample("ddl", "nope")...)
	assert.ErrorContains(t, err, `unknown entity "nope"`)
}

func TestPrintScriptsHeader(t *testing.T) {
	scripts := []generate.Script{{Entity: "h1", Kind: "Hub", Statements: []string{"SELECT 1;"}}}

	var plain bytes.Buffer
	printScripts(&plain, scripts)
	assert.Equal(t, "-- Hub h1\nSELECT 1;\n", plain.String())

	color.NoColor = false
	t.Cleanup(func() { color.NoColor = true })
	var colored bytes.Buffer
	printScripts(&colored, scripts)
	assert.True(t, strings.HasPrefix(colored.String(), "\x1b[2m-- Hub h1"), "%q", colored.String())
	assert.True(t, strings.HasSuffix(colored.String(), "\nSELECT 1;\n"))
}
