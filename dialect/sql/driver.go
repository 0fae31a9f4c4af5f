package sql

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/syssam/pocket/dialect"
)

// validIdentifierRe validates SQL identifiers (alphanumeric, underscores, dots for schema.name)
var validIdentifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

// isValidIdentifier checks if the string is a valid SQL identifier.
func isValidIdentifier(s string) bool {
	return s != "" && len(s) <= 128 && validIdentifierRe.MatchString(s)
}

// escapeStringValue quotes s for a standard conforming string literal,
// where only single quotes are special.
func escapeStringValue(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// ExecQuerier is the subset of database/sql shared by *sql.DB, *sql.Conn
// and *sql.Tx that statements are run through.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Conn is a storage connection able to start transactions. *sql.DB,
// *sql.Conn and *Driver implement it.
type Conn interface {
	ExecQuerier
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// TxOptions holds the transaction options to be used in DB.BeginTx.
type TxOptions = sql.TxOptions

// Driver couples a *sql.DB with the dialect it speaks.
type Driver struct {
	*sql.DB
	dialect string
}

// Open wraps the database/sql.Open method and records the dialect of the
// named driver.
func Open(driverName, source string) (*Driver, error) {
	db, err := sql.Open(driverName, source)
	if err != nil {
		return nil, err
	}
	return OpenDB(driverName, db), nil
}

// OpenDB wraps the given database/sql.DB with a Driver.
func OpenDB(driverName string, db *sql.DB) *Driver {
	return &Driver{DB: db, dialect: driverName}
}

// Dialect returns the dialect of the underlying driver.
func (d *Driver) Dialect() string {
	return dialect.FromDriver(d.dialect)
}

// ctxVarsKey is the key used for attaching and reading the context variables.
type ctxVarsKey struct{}

// sessionVars holds transaction variables to set before the first statement.
type sessionVars struct {
	vars []struct{ k, v string }
}

// WithVar returns a new context that holds a session variable to be set at
// the start of every transaction run with it. Only Postgres supports it;
// variables are set with SET LOCAL and end with the transaction.
func WithVar(ctx context.Context, name, value string) context.Context {
	sv, _ := ctx.Value(ctxVarsKey{}).(sessionVars)
	vars := make([]struct{ k, v string }, len(sv.vars), len(sv.vars)+1)
	copy(vars, sv.vars)
	vars = append(vars, struct{ k, v string }{k: name, v: value})
	return context.WithValue(ctx, ctxVarsKey{}, sessionVars{vars: vars})
}

// VarFromContext returns the session variable value from the context.
func VarFromContext(ctx context.Context, name string) (string, bool) {
	sv, _ := ctx.Value(ctxVarsKey{}).(sessionVars)
	var (
		val   string
		found bool
	)
	for _, s := range sv.vars {
		if s.k == name {
			val, found = s.v, true
		}
	}
	return val, found
}

// WithIntVar calls WithVar with the string representation of the value.
func WithIntVar(ctx context.Context, name string, value int) context.Context {
	return WithVar(ctx, name, strconv.Itoa(value))
}

// setVars applies the session variables of ctx to a freshly started transaction.
func setVars(ctx context.Context, tx ExecQuerier, d string) error {
	sv, _ := ctx.Value(ctxVarsKey{}).(sessionVars)
	if len(sv.vars) == 0 {
		return nil
	}
	if d != dialect.Postgres {
		return fmt.Errorf("session variables are not supported by dialect %q", d)
	}
	for _, s := range sv.vars {
		// Validate the variable name to prevent SQL injection
		if !isValidIdentifier(s.k) {
			return fmt.Errorf("invalid session variable name: %q", s.k)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL %s = '%s'", s.k, escapeStringValue(s.v))); err != nil {
			return err
		}
	}
	return nil
}

var (
	_ Conn        = (*sql.DB)(nil)
	_ Conn        = (*sql.Conn)(nil)
	_ Conn        = (*Driver)(nil)
	_ ExecQuerier = (*sql.Tx)(nil)
)
