//go:build integration

package sql

import (
	"context"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/syssam/pocket"
	"github.com/syssam/pocket/dialect"
)

func openPostgres(t *testing.T) *Driver {
	t.Helper()
	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("pocket"),
		postgres.WithUsername("pocket"),
		postgres.WithPassword("pocket"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	drv, err := Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { drv.Close() })

	_, err = drv.ExecContext(ctx, sqliteSchema)
	require.NoError(t, err)
	return drv
}

func TestPostgresTransaction(t *testing.T) {
	drv := openPostgres(t)
	ex := NewExecutor(drv)
	require.Equal(t, dialect.Postgres, ex.Dialect())
	ctx := context.Background()

	res, err := ex.ExecuteInTransaction(ctx, orderStatements(), true)
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.AffectedRows)
	assert.Empty(t, res.GeneratedKeys, "pgx does not report LastInsertId")

	rows, err := ex.Query(ctx, Statement{
		Op: OpSelect, Query: "SELECT * FROM lineitems WHERE order_id=? AND sku=?", Args: []any{"o-1", "DEF"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "l-2", rows[0]["id"])

	_, err = ex.ExecuteInTransaction(ctx, orderStatements()[:1], false)
	assert.True(t, pocket.IsConstraintError(err))
}

func TestPostgresAtomicity(t *testing.T) {
	drv := openPostgres(t)
	ex := NewExecutor(drv)

	stmts := orderStatements()
	stmts[2].Query = "INSERT INTO lineitem_typo (id,order_id,sku) VALUES (?,?,?)"
	_, err := ex.ExecuteInTransaction(context.Background(), stmts, false)
	require.Error(t, err)

	assert.Zero(t, countRows(t, drv.DB, "orders"))
	assert.Zero(t, countRows(t, drv.DB, "lineitems"))
}

func TestPostgresSessionVars(t *testing.T) {
	drv := openPostgres(t)
	ex := NewExecutor(drv)

	ctx := WithVar(context.Background(), "application_name", "pocket-test")
	_, err := ex.ExecuteInTransaction(ctx, orderStatements()[:1], false)
	require.NoError(t, err)
	assert.Equal(t, 1, countRows(t, drv.DB, "orders"))
}
