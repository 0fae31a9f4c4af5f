// Package dialect names the SQL backends the engine targets and adapts
// statement text to each of them.
//
// # Supported Dialects
//
// Each dialect is identified by a constant string:
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//
// FromDriver maps a database/sql driver name ("pgx", "postgres", "mysql",
// "sqlite", "sqlite3") onto one of them.
//
// # Placeholders
//
// Statements are built with positional "?" placeholders. Rebind rewrites
// them for dialects that use numbered parameters:
//
//	dialect.Rebind(dialect.Postgres, "UPDATE t SET a=? WHERE id=?")
//	// UPDATE t SET a=$1 WHERE id=$2
//
// Question marks inside quoted literals and identifiers are left untouched.
//
// # Sub-packages
//
//   - dialect/sql: statements, the connection contract and the transactional executor
//   - dialect/sql/sqlgraph: classification of driver errors
package dialect
