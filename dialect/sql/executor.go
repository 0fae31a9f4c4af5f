package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/syssam/pocket"
	"github.com/syssam/pocket/dialect"
	"github.com/syssam/pocket/dialect/sql/sqlgraph"
)

// Executor runs statements against a storage connection. It never closes
// the connection it was given.
type Executor struct {
	conn    Conn
	dialect string
	log     *slog.Logger
	txOpts  *sql.TxOptions

	stats         *QueryStats
	slowThreshold time.Duration
	slowHook      SlowQueryHook
	mu            sync.RWMutex
}

// Option configures an Executor.
type Option func(*Executor)

// WithDialect sets the placeholder dialect. It defaults to the dialect of the
// connection when it reports one (see Driver), and to "?" placeholders otherwise.
func WithDialect(name string) Option {
	return func(e *Executor) {
		e.dialect = dialect.FromDriver(name)
	}
}

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.log = l
		}
	}
}

// WithTxOptions sets the options transactions are started with.
func WithTxOptions(opts *sql.TxOptions) Option {
	return func(e *Executor) {
		e.txOpts = opts
	}
}

// NewExecutor returns an executor over conn.
func NewExecutor(conn Conn, opts ...Option) *Executor {
	e := &Executor{
		conn:          conn,
		log:           slog.Default(),
		stats:         &QueryStats{},
		slowThreshold: 100 * time.Millisecond,
	}
	if d, ok := conn.(interface{ Dialect() string }); ok {
		e.dialect = d.Dialect()
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Conn returns the connection the executor runs on.
func (e *Executor) Conn() Conn { return e.conn }

// Dialect returns the placeholder dialect in use.
func (e *Executor) Dialect() string { return e.dialect }

// QueryStats returns the underlying QueryStats for reading statistics.
func (e *Executor) QueryStats() *QueryStats { return e.stats }

// Execute runs a single statement outside any explicit transaction. The
// statement is prepared, bound positionally, executed and closed. When
// wantKeys is set and stmt is an insert, the key reported by the driver is
// returned in GeneratedKeys.
func (e *Executor) Execute(ctx context.Context, stmt Statement, wantKeys bool) (Result, error) {
	return e.exec(ctx, e.conn, -1, stmt, wantKeys)
}

// ExecuteInTransaction runs stmts in order within a single transaction and
// commits. On the first failure the transaction is rolled back and the
// triggering error returned; a failing rollback is joined to it as a
// *pocket.RollbackError. The transaction is rolled back on panic as well,
// so the connection is never left inside an open transaction.
func (e *Executor) ExecuteInTransaction(ctx context.Context, stmts []Statement, wantKeys bool) (res Result, err error) {
	tx, err := e.conn.BeginTx(ctx, e.txOpts)
	if err != nil {
		e.stats.Errors.Add(1)
		return Result{}, pocket.NewExecutionError("begin", -1, "", err)
	}
	defer func() {
		if v := recover(); v != nil {
			_ = e.rollback(ctx, tx, fmt.Errorf("panic: %v", v))
			panic(v)
		}
	}()
	if err := setVars(ctx, tx, e.dialect); err != nil {
		return Result{}, e.rollback(ctx, tx, pocket.NewExecutionError("set", -1, "", err))
	}
	res, err = e.ExecuteAll(ctx, tx, stmts, wantKeys)
	if err != nil {
		return Result{}, e.rollback(ctx, tx, err)
	}
	if err := tx.Commit(); err != nil {
		e.stats.Errors.Add(1)
		return Result{}, pocket.NewExecutionError("commit", -1, "", err)
	}
	e.stats.Commits.Add(1)
	e.log.DebugContext(ctx, "transaction committed", "statements", len(stmts), "rows", res.AffectedRows)
	return res, nil
}

// ExecuteAll runs stmts in order on eq, typically a caller-owned *sql.Tx,
// and stops at the first failure. It neither commits nor rolls back.
func (e *Executor) ExecuteAll(ctx context.Context, eq ExecQuerier, stmts []Statement, wantKeys bool) (Result, error) {
	var res Result
	for i, stmt := range stmts {
		r, err := e.exec(ctx, eq, i, stmt, wantKeys)
		if err != nil {
			return Result{}, err
		}
		res.add(r)
	}
	return res, nil
}

func (e *Executor) exec(ctx context.Context, eq ExecQuerier, i int, stmt Statement, wantKeys bool) (Result, error) {
	if err := stmt.Validate(); err != nil {
		return Result{}, pocket.NewExecutionError("prepare", i, stmt.Query, err)
	}
	query := dialect.Rebind(e.dialect, stmt.Query)
	e.log.DebugContext(ctx, "exec statement", "index", i, "op", stmt.Op, "entity", stmt.Entity, "query", query)

	start := time.Now()
	ps, err := eq.PrepareContext(ctx, query)
	if err != nil {
		e.record(ctx, query, stmt.Args, start, err, false)
		return Result{}, wrapError("prepare", i, query, err)
	}
	r, err := ps.ExecContext(ctx, stmt.Args...)
	cerr := ps.Close()
	e.record(ctx, query, stmt.Args, start, err, false)
	if err != nil {
		return Result{}, wrapError("exec", i, query, err)
	}
	if cerr != nil {
		return Result{}, wrapError("close", i, query, cerr)
	}

	var res Result
	if n, err := r.RowsAffected(); err == nil {
		res.AffectedRows = n
	} else {
		e.log.DebugContext(ctx, "rows affected unavailable", "index", i, "entity", stmt.Entity, "error", err)
	}
	if wantKeys && stmt.Op == OpInsert {
		if id, err := r.LastInsertId(); err == nil {
			res.GeneratedKeys = append(res.GeneratedKeys, id)
		} else {
			e.log.DebugContext(ctx, "generated key unavailable", "index", i, "entity", stmt.Entity, "error", err)
		}
	}
	return res, nil
}

// Query runs a select statement on the executor's connection and returns
// each row as a column keyed map. Byte slices are returned as strings.
func (e *Executor) Query(ctx context.Context, stmt Statement) ([]map[string]any, error) {
	if err := stmt.Validate(); err != nil {
		return nil, pocket.NewExecutionError("query", -1, stmt.Query, err)
	}
	query := dialect.Rebind(e.dialect, stmt.Query)
	e.log.DebugContext(ctx, "query", "entity", stmt.Entity, "query", query)

	start := time.Now()
	rows, err := e.conn.QueryContext(ctx, query, stmt.Args...)
	e.record(ctx, query, stmt.Args, start, err, true)
	if err != nil {
		return nil, wrapError("query", -1, query, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, wrapError("query", -1, query, err)
	}
	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, wrapError("scan", -1, query, err)
		}
		row := make(map[string]any, len(columns))
		for i, c := range columns {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("query", -1, query, err)
	}
	return out, nil
}

func (e *Executor) rollback(ctx context.Context, tx *sql.Tx, cause error) error {
	e.stats.Rollbacks.Add(1)
	e.log.WarnContext(ctx, "rolling back transaction", "cause", cause)
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return errors.Join(cause, &pocket.RollbackError{Err: err})
	}
	return cause
}

// wrapError wraps a driver error, classifying constraint violations.
func wrapError(op string, i int, query string, err error) error {
	if kind := sqlgraph.ConstraintKind(err); kind != "" {
		err = pocket.NewConstraintError(kind+": "+err.Error(), err)
	}
	return pocket.NewExecutionError(op, i, query, err)
}
