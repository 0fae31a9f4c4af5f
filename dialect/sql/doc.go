// Package sql runs parameterized statements against a database/sql backend.
//
// A Statement carries a query with positional "?" placeholders and its bind
// values. An Executor runs statements on a Conn (*sql.DB, *sql.Conn or
// *Driver), rewriting placeholders for the connection's dialect:
//
//	drv, err := sql.Open("sqlite", "file:pocket.db?_pragma=foreign_keys(1)")
//	if err != nil {
//	    return err
//	}
//	ex := sql.NewExecutor(drv,
//	    sql.WithSlowThreshold(200*time.Millisecond),
//	    sql.WithSlowQueryLog(),
//	)
//	res, err := ex.ExecuteInTransaction(ctx, stmts, true)
//
// # Transactions
//
// ExecuteInTransaction runs a batch all-or-nothing: statements run strictly
// in order, the first failure rolls the transaction back, and a panic rolls
// it back before propagating. ExecuteAll runs a batch inside a transaction
// the caller owns and leaves commit to the caller.
//
// # Errors
//
// Driver failures are returned as *pocket.ExecutionError. Constraint
// violations, as classified by the sqlgraph package, additionally wrap a
// pocket.ConstraintError.
//
// # Statistics
//
// Every executor records counts and durations into a QueryStats. Several
// executors may share one with WithStats.
package sql
