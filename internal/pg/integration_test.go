//go:build integration

package pg

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap/zaptest"

	"dvh/internal/dsl"
	"dvh/internal/generate"
	"dvh/internal/templates"
)

const staging = `
CREATE TABLE stg_sales (cust_no VARCHAR(20), prod_code VARCHAR(20), price NUMERIC(12,2));
CREATE TABLE stg_customers (cust_no VARCHAR(20), cust_name VARCHAR(100), cust_email VARCHAR(100));
INSERT INTO stg_sales VALUES ('C1', 'P1', 10), ('C1', 'P2', 20), ('C2', 'P1', 10);
INSERT INTO stg_customers VALUES ('C1', 'Ann', 'ann@example.com'), ('C2', 'Bob', 'bob@example.com');
`

// Generates the sample sales vault, creates it in a throwaway Postgres and
// loads the staging rows twice.
func TestSampleVaultRoundTrip(t *testing.T) {
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("dvh"),
		postgres.WithUsername("dvh"),
		postgres.WithPassword("dvh"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := Open(ctx, url)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.ExecContext(ctx, staging)
	require.NoError(t, err)

	m, err := dsl.LoadAllModels("../../model")
	require.NoError(t, err)
	c, err := templates.Load("../../templates")
	require.NoError(t, err)
	log := zaptest.NewLogger(t)
	g := generate.New(m, c, generate.WithLogger(log))
	_, err = g.Prepare()
	require.NoError(t, err)
	assert.Empty(t, CheckIdentifiers(m))

	ddl, err := g.DDL()
	require.NoError(t, err)
	a := NewApplier(db, log)
	_, err = a.Apply(ctx, ddl)
	require.NoError(t, err)
	// create is repeatable
	_, err = a.Apply(ctx, ddl)
	require.NoError(t, err)

	dml, _, err := g.DML()
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = a.Apply(ctx, dml)
		require.NoError(t, err)
	}

	count := func(table string) int {
		var n int
		require.NoError(t, db.QueryRowContext(ctx, "SELECT count(*) FROM "+table).Scan(&n))
		return n
	}
	assert.Equal(t, 2, count("h_customer"))
	assert.Equal(t, 2, count("h_product"))
	assert.Equal(t, 3, count("l_sale"))
	assert.Equal(t, 2, count("s_customer"))
	assert.Equal(t, 2, count("s_product"))

	drop, err := g.Drop()
	require.NoError(t, err)
	_, err = a.Apply(ctx, drop)
	require.NoError(t, err)
}
