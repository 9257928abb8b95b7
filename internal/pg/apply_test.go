package pg

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"dvh/internal/generate"
)

func newMock(t *testing.T) (*Applier, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewApplier(db, zaptest.NewLogger(t)), mock
}

var scripts = []generate.Script{
	{Entity: "h1", Kind: "Hub", Statements: []string{"CREATE TABLE h1 (id int);\n"}},
	{Entity: "s1", Kind: "Sat", Statements: []string{"INSERT INTO s1 SELECT 1;", "  ", "UPDATE s1 SET x = 1;"}},
}

func TestApply(t *testing.T) {
	a, mock := newMock(t)
	mock.ExpectExec("CREATE TABLE h1 (id int);").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO s1 SELECT 1;").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE s1 SET x = 1;").WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := a.Apply(context.Background(), scripts)
	require.NoError(t, err)
	assert.Equal(t, Result{Applied: 3}, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplySkipsExisting(t *testing.T) {
	a, mock := newMock(t)
	mock.ExpectExec("CREATE TABLE h1 (id int);").
		WillReturnError(&pgconn.PgError{Code: "42P07", Message: `relation "h1" already exists`})
	mock.ExpectExec("INSERT INTO s1 SELECT 1;").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE s1 SET x = 1;").WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := a.Apply(context.Background(), scripts)
	require.NoError(t, err)
	assert.Equal(t, Result{Applied: 2, Skipped: 1}, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyStopsOnFailure(t *testing.T) {
	a, mock := newMock(t)
	mock.ExpectExec("CREATE TABLE h1 (id int);").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO s1 SELECT 1;").
		WillReturnError(&pgconn.PgError{Code: "42703", Message: `column "x" does not exist`})

	res, err := a.Apply(context.Background(), scripts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply s1 step 1")
	var pgErr *pgconn.PgError
	assert.True(t, errors.As(err, &pgErr))
	assert.Equal(t, Result{Applied: 1}, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyStrict(t *testing.T) {
	a, mock := newMock(t)
	a.SkipExisting = false
	mock.ExpectExec("CREATE TABLE h1 (id int);").
		WillReturnError(&pgconn.PgError{Code: "42P07", Message: `relation "h1" already exists`})

	_, err := a.Apply(context.Background(), scripts[:1])
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAlreadyExists(t *testing.T) {
	assert.True(t, alreadyExists(&pgconn.PgError{Code: "42710"}))
	assert.False(t, alreadyExists(&pgconn.PgError{Code: "23505"}))
	assert.True(t, alreadyExists(errors.New(`sequence "x" already exists`)))
	assert.False(t, alreadyExists(errors.New("connection refused")))
}
