package sql

import (
	"fmt"
	"strings"
)

// Op is the kind of a Statement.
type Op string

// Statement kinds.
const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpSelect Op = "select"
)

// Statement is a parameterized SQL statement ready for execution. Query uses
// positional "?" placeholders and Args holds one bind value per placeholder,
// in order.
type Statement struct {
	Op     Op
	Entity string
	Query  string
	Args   []any
}

// String returns the query with its arguments, for logging.
func (s Statement) String() string {
	return fmt.Sprintf("%s %v", s.Query, s.Args)
}

// Placeholders counts the "?" placeholders of the query that lie outside
// quoted literals and identifiers.
func (s Statement) Placeholders() int {
	n := 0
	var quote byte
	for i := 0; i < len(s.Query); i++ {
		c := s.Query[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '?':
			n++
		}
	}
	return n
}

// Validate reports a statement whose argument count does not match its
// placeholders.
func (s Statement) Validate() error {
	if strings.TrimSpace(s.Query) == "" {
		return fmt.Errorf("dialect/sql: empty query")
	}
	if n := s.Placeholders(); n != len(s.Args) {
		return fmt.Errorf("dialect/sql: query has %d placeholders but %d args", n, len(s.Args))
	}
	return nil
}

// Result reports the outcome of executing one or more statements.
type Result struct {
	// AffectedRows is the total number of rows affected.
	AffectedRows int64
	// GeneratedKeys holds the keys the backend assigned to inserted rows,
	// in statement order, when requested and reported by the driver.
	GeneratedKeys []any
}

func (r *Result) add(o Result) {
	r.AffectedRows += o.AffectedRows
	r.GeneratedKeys = append(r.GeneratedKeys, o.GeneratedKeys...)
}
