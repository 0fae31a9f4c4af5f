package sql

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/pocket/dialect"
)

// TestOpenDB tests the OpenDB function with different driver names.
func TestOpenDB(t *testing.T) {
	tests := []struct {
		name    string
		driver  string
		dialect string
	}{
		{"pgx", "pgx", dialect.Postgres},
		{"postgres", "postgres", dialect.Postgres},
		{"mysql", "mysql", dialect.MySQL},
		{"sqlite", "sqlite", dialect.SQLite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, _, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			drv := OpenDB(tt.driver, db)
			assert.NotNil(t, drv)
			assert.Equal(t, tt.dialect, drv.Dialect())
			assert.Equal(t, tt.dialect, NewExecutor(drv).Dialect(), "executor picks up the driver dialect")
		})
	}
}

func TestVarFromContext(t *testing.T) {
	ctx := WithVar(context.Background(), "search_path", "tenant_a")
	ctx = WithIntVar(ctx, "statement_timeout", 500)

	v, ok := VarFromContext(ctx, "search_path")
	assert.True(t, ok)
	assert.Equal(t, "tenant_a", v)

	v, ok = VarFromContext(ctx, "statement_timeout")
	assert.True(t, ok)
	assert.Equal(t, "500", v)

	_, ok = VarFromContext(ctx, "missing")
	assert.False(t, ok)

	shadowed := WithVar(ctx, "search_path", "tenant_b")
	v, _ = VarFromContext(shadowed, "search_path")
	assert.Equal(t, "tenant_b", v)
	v, _ = VarFromContext(ctx, "search_path")
	assert.Equal(t, "tenant_a", v, "parent context is not modified")
}

func TestWithVarsInTransaction(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	ex := NewExecutor(OpenDB("pgx", db))
	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL search_path = 'it''s'").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectPrepare("DELETE FROM customers WHERE id=$1").
		ExpectExec().WithArgs("c-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ctx := WithVar(context.Background(), "search_path", "it's")
	res, err := ex.ExecuteInTransaction(ctx, []Statement{{
		Op: OpDelete, Entity: "customer", Query: "DELETE FROM customers WHERE id=?", Args: []any{"c-1"},
	}}, false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.AffectedRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithVarsKeepsBackslashes(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	ex := NewExecutor(OpenDB("pgx", db))
	mock.ExpectBegin()
	mock.ExpectExec(`SET LOCAL application_name = 'C:\pocket'`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	_, err = ex.ExecuteInTransaction(WithVar(context.Background(), "application_name", `C:\pocket`), nil, false)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestWithVarsInvalidIdentifier tests that invalid identifiers are rejected.
func TestWithVarsInvalidIdentifier(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ex := NewExecutor(OpenDB("pgx", db))
	mock.ExpectBegin()
	mock.ExpectRollback()

	ctx := WithVar(context.Background(), "foo; DROP TABLE users", "x")
	_, err = ex.ExecuteInTransaction(ctx, nil, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid session variable name")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithVarsUnsupportedDialect(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ex := NewExecutor(db, WithDialect(dialect.SQLite))
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err = ex.ExecuteInTransaction(WithVar(context.Background(), "foo", "bar"), nil, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEscapeStringValue(t *testing.T) {
	assert.Equal(t, "plain", escapeStringValue("plain"))
	assert.Equal(t, "it''s", escapeStringValue("it's"))
	assert.Equal(t, `a\b`, escapeStringValue(`a\b`))
	assert.Equal(t, `'' OR ''1''=''1`, escapeStringValue(`' OR '1'='1`))
}
