// Package sqlgraph classifies errors reported by the supported SQL drivers.
package sqlgraph

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/syssam/pocket"
)

// Constraint kinds reported by ConstraintKind.
const (
	KindUnique     = "unique"
	KindForeignKey = "foreign key"
	KindCheck      = "check"
	KindNotNull    = "not null"
)

// IsConstraintError returns true if the error resulted from a database constraint violation.
func IsConstraintError(err error) bool {
	return pocket.IsConstraintError(err) || ConstraintKind(err) != ""
}

// ConstraintKind returns the kind of constraint err violates, or "" when
// err is not a constraint violation.
func ConstraintKind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsUniqueConstraintError(err):
		return KindUnique
	case IsForeignKeyConstraintError(err):
		return KindForeignKey
	case IsCheckConstraintError(err):
		return KindCheck
	case IsNotNullConstraintError(err):
		return KindNotNull
	default:
		return ""
	}
}

// sqlStateError is an interface for errors that provide SQLSTATE codes.
type sqlStateError interface {
	SQLState() string
}

// errorNumberer is an interface for database errors that provide numeric error codes.
type errorNumberer interface {
	Number() uint16
}

// extendedCoder is implemented by modernc.org/sqlite errors.
type extendedCoder interface {
	Code() int
}

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgNotNullViolation    = "23502"
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

// MySQL error numbers for constraint violations.
const (
	mysqlBadNull                = 1048
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
)

// sqlState extracts the SQLSTATE of a Postgres error from either driver.
func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	if e, ok := asError[sqlStateError](err); ok {
		return e.SQLState()
	}
	return ""
}

// mysqlNumber extracts the MySQL error number.
func mysqlNumber(err error) uint16 {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number
	}
	if e, ok := asError[errorNumberer](err); ok {
		return e.Number()
	}
	return 0
}

// sqliteCode extracts the extended result code of a SQLite error.
func sqliteCode(err error) int {
	if e, ok := asError[extendedCoder](err); ok {
		return e.Code()
	}
	return 0
}

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness constraint violation.
// e.g. duplicate value in unique index.
func IsUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if sqlState(err) == pgUniqueViolation || mysqlNumber(err) == mysqlDuplicateEntry {
		return true
	}
	if code := sqliteCode(err); code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
		return true
	}
	// Fallback to string matching for drivers that don't expose codes
	return containsAny(err.Error(),
		"Error 1062",                 // MySQL (string fallback)
		"violates unique constraint", // Postgres (string fallback)
		"UNIQUE constraint failed",   // SQLite
	)
}

// IsForeignKeyConstraintError reports if the error resulted from a database foreign-key constraint violation.
// e.g. parent row does not exist.
func IsForeignKeyConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if sqlState(err) == pgForeignKeyViolation {
		return true
	}
	if num := mysqlNumber(err); num == mysqlForeignKeyParent || num == mysqlForeignKeyChild {
		return true
	}
	if sqliteCode(err) == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY {
		return true
	}
	return containsAny(err.Error(),
		"Error 1451",                      // MySQL (Cannot delete or update a parent row)
		"Error 1452",                      // MySQL (Cannot add or update a child row)
		"violates foreign key constraint", // Postgres
		"FOREIGN KEY constraint failed",   // SQLite
	)
}

// IsCheckConstraintError reports if the error resulted from a database check constraint violation.
// e.g. a value does not satisfy a check condition.
func IsCheckConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if sqlState(err) == pgCheckViolation || mysqlNumber(err) == mysqlCheckConstraintViolate {
		return true
	}
	if sqliteCode(err) == sqlite3.SQLITE_CONSTRAINT_CHECK {
		return true
	}
	return containsAny(err.Error(),
		"Error 3819",                // MySQL
		"violates check constraint", // Postgres
		"CHECK constraint failed",   // SQLite
	)
}

// IsNotNullConstraintError reports if the error resulted from a NOT NULL violation.
func IsNotNullConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if sqlState(err) == pgNotNullViolation || mysqlNumber(err) == mysqlBadNull {
		return true
	}
	if sqliteCode(err) == sqlite3.SQLITE_CONSTRAINT_NOTNULL {
		return true
	}
	return containsAny(err.Error(),
		"Error 1048",                   // MySQL
		"violates not-null constraint", // Postgres
		"NOT NULL constraint failed",   // SQLite
	)
}

// asError attempts to extract an error implementing interface T from the error chain.
func asError[T any](err error) (T, bool) {
	var target T
	for err != nil {
		if e, ok := err.(T); ok {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return target, false
}

// containsAny returns true if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
