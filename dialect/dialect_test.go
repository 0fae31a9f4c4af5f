package dialect_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/pocket/dialect"
)

func TestFromDriver(t *testing.T) {
	tests := map[string]string{
		"pgx":      dialect.Postgres,
		"pgx/v5":   dialect.Postgres,
		"postgres": dialect.Postgres,
		"sqlite":   dialect.SQLite,
		"sqlite3":  dialect.SQLite,
		"mysql":    dialect.MySQL,
		"oracle":   "oracle",
	}
	for name, want := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, want, dialect.FromDriver(name))
		})
	}
}

func TestRebind(t *testing.T) {
	tests := []struct {
		name    string
		dialect string
		query   string
		want    string
	}{
		{
			name:    "postgres",
			dialect: dialect.Postgres,
			query:   "INSERT INTO orders (id,total) VALUES (?,?)",
			want:    "INSERT INTO orders (id,total) VALUES ($1,$2)",
		},
		{
			name:    "postgres_quoted",
			dialect: dialect.Postgres,
			query:   `SELECT * FROM t WHERE a='?' AND "b?"=? AND c=?`,
			want:    `SELECT * FROM t WHERE a='?' AND "b?"=$1 AND c=$2`,
		},
		{
			name:    "postgres_no_params",
			dialect: dialect.Postgres,
			query:   "SELECT * FROM customers",
			want:    "SELECT * FROM customers",
		},
		{
			name:    "sqlite",
			dialect: dialect.SQLite,
			query:   "DELETE FROM customers WHERE id=?",
			want:    "DELETE FROM customers WHERE id=?",
		},
		{
			name:    "mysql",
			dialect: dialect.MySQL,
			query:   "UPDATE customers SET name=? WHERE id=?",
			want:    "UPDATE customers SET name=? WHERE id=?",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dialect.Rebind(tt.dialect, tt.query))
		})
	}
}
