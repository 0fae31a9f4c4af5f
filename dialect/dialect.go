package dialect

import (
	"strconv"
	"strings"
)

// Dialect names for external usage.
const (
	MySQL    = "mysql"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// FromDriver returns the dialect for a database/sql driver name. Unknown
// names are returned unchanged.
func FromDriver(driverName string) string {
	switch name := strings.ToLower(driverName); {
	case strings.HasPrefix(name, "pgx"), strings.HasPrefix(name, "postgres"):
		return Postgres
	case strings.HasPrefix(name, "sqlite"):
		return SQLite
	case strings.HasPrefix(name, MySQL):
		return MySQL
	default:
		return driverName
	}
}

// Rebind rewrites "?" placeholders in query to the parameter syntax of d.
// Only Postgres needs rewriting; other dialects get query back as is.
func Rebind(d, query string) string {
	if d != Postgres || !strings.Contains(query, "?") {
		return query
	}
	var (
		b     strings.Builder
		n     int
		quote byte
	)
	b.Grow(len(query) + 8)
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '?':
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
