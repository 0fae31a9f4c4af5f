package planner

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"strings"

	"github.com/syssam/pocket"
	"github.com/syssam/pocket/dialect/sql"
	"github.com/syssam/pocket/record"
	"github.com/syssam/pocket/schema"
)

// BuildInsert returns an insert covering every declared field of entity in
// descriptor order, along with a copy of rec carrying the primary key. A
// missing or null primary key is generated. A missing or null value for any
// other non-nullable field is a *pocket.ValidationError.
func (p *Planner) BuildInsert(entity string, rec record.Record) (sql.Statement, record.Record, error) {
	e, _, err := resolve(p.src.Catalog(), entity)
	if err != nil {
		return sql.Statement{}, nil, err
	}
	out := rec.Clone()
	if out == nil {
		out = record.Record{}
	}
	stmt, _, err := p.insert(e, out)
	if err != nil {
		return sql.Statement{}, nil, err
	}
	return stmt, out, nil
}

// insert ensures r carries a primary key, then builds the insert for it.
// r must be owned by the planner.
func (p *Planner) insert(e *schema.Entity, r record.Record) (sql.Statement, Key, error) {
	pk := e.PrimaryKey()
	key := Key{Entity: e.Name, Field: pk.Name}
	if v, ok := r[pk.Name]; ok && !v.IsNull() {
		s, err := scalar(e.Name, pk.Name, v)
		if err != nil {
			return sql.Statement{}, Key{}, err
		}
		key.Value = s
	} else {
		id, err := p.keys.NewKey()
		if err != nil {
			return sql.Statement{}, Key{}, fmt.Errorf("planner: generate key for %s: %w", e.Name, err)
		}
		r[pk.Name] = record.Scalar(id)
		key.Value, key.Generated = id, true
	}

	columns := make([]string, 0, len(e.Fields))
	args := make([]any, 0, len(e.Fields))
	for _, f := range e.Fields {
		var val any
		if v, ok := r[f.Name]; ok {
			s, err := scalar(e.Name, f.Name, v)
			if err != nil {
				return sql.Statement{}, Key{}, err
			}
			val = s
		}
		if val == nil && !f.Nullable && !f.PrimaryKey {
			return sql.Statement{}, Key{}, pocket.NewValidationError(e.Name, f.Name, pocket.ErrRequired)
		}
		columns = append(columns, f.Column)
		args = append(args, val)
	}
	return sql.Statement{
		Op:     sql.OpInsert,
		Entity: e.Name,
		Query:  "INSERT INTO " + e.Table + " (" + strings.Join(columns, ",") + ") VALUES (" + placeholders(len(columns)) + ")",
		Args:   args,
	}, key, nil
}

// BuildUpdate returns an update assigning the declared non-key fields
// present in rec, in descriptor order, keyed by the primary key. Fields
// present with a null value are assigned NULL.
func (p *Planner) BuildUpdate(entity string, rec record.Record) (sql.Statement, error) {
	e, pk, err := resolve(p.src.Catalog(), entity)
	if err != nil {
		return sql.Statement{}, err
	}
	id, ok := rec[pk.Name]
	if !ok || id.IsNull() {
		return sql.Statement{}, pocket.NewValidationError(e.Name, pk.Name, fmt.Errorf("%w for update", pocket.ErrMissingKey))
	}
	idVal, err := scalar(e.Name, pk.Name, id)
	if err != nil {
		return sql.Statement{}, err
	}

	var (
		assignments []string
		args        []any
	)
	for _, f := range e.Fields {
		if f.PrimaryKey {
			continue
		}
		v, ok := rec[f.Name]
		if !ok {
			continue
		}
		s, err := scalar(e.Name, f.Name, v)
		if err != nil {
			return sql.Statement{}, err
		}
		assignments = append(assignments, f.Column+"=?")
		args = append(args, s)
	}
	if len(assignments) == 0 {
		return sql.Statement{}, pocket.NewValidationError(e.Name, "", pocket.ErrEmptyUpdate)
	}
	return sql.Statement{
		Op:     sql.OpUpdate,
		Entity: e.Name,
		Query:  "UPDATE " + e.Table + " SET " + strings.Join(assignments, ",") + " WHERE " + e.PrimaryKeyColumn + "=?",
		Args:   append(args, idVal),
	}, nil
}

// BuildDelete returns a delete of the row whose primary key is id.
func (p *Planner) BuildDelete(entity string, id any) (sql.Statement, error) {
	e, pk, err := resolve(p.src.Catalog(), entity)
	if err != nil {
		return sql.Statement{}, err
	}
	if id == nil {
		return sql.Statement{}, pocket.NewValidationError(e.Name, pk.Name, fmt.Errorf("%w for delete", pocket.ErrMissingKey))
	}
	if !bindable(id) {
		return sql.Statement{}, notBindable(e.Name, pk.Name, id)
	}
	return sql.Statement{
		Op:     sql.OpDelete,
		Entity: e.Name,
		Query:  "DELETE FROM " + e.Table + " WHERE " + e.PrimaryKeyColumn + "=?",
		Args:   []any{id},
	}, nil
}

// BuildGet returns a select of the row whose primary key is id.
func (p *Planner) BuildGet(entity string, id any) (sql.Statement, error) {
	e, pk, err := resolve(p.src.Catalog(), entity)
	if err != nil {
		return sql.Statement{}, err
	}
	if id == nil {
		return sql.Statement{}, pocket.NewValidationError(e.Name, pk.Name, fmt.Errorf("%w for select", pocket.ErrMissingKey))
	}
	if !bindable(id) {
		return sql.Statement{}, notBindable(e.Name, pk.Name, id)
	}
	return sql.Statement{
		Op:     sql.OpSelect,
		Entity: e.Name,
		Query:  "SELECT * FROM " + e.Table + " WHERE " + e.PrimaryKeyColumn + "=?",
		Args:   []any{id},
	}, nil
}

// BuildSelect returns a select ANDing one equality predicate per declared
// field present in filters, in descriptor order. Unknown filter keys are
// ignored; no usable filter selects every row.
func (p *Planner) BuildSelect(entity string, filters map[string]any) (sql.Statement, error) {
	e, _, err := resolve(p.src.Catalog(), entity)
	if err != nil {
		return sql.Statement{}, err
	}
	stmt := sql.Statement{Op: sql.OpSelect, Entity: e.Name, Query: "SELECT * FROM " + e.Table}
	var predicates []string
	for _, f := range e.Fields {
		v, ok := filters[f.Name]
		if !ok {
			continue
		}
		if rv, ok := v.(record.Value); ok {
			s, err := scalar(e.Name, f.Name, rv)
			if err != nil {
				return sql.Statement{}, err
			}
			v = s
		} else if !bindable(v) {
			return sql.Statement{}, notBindable(e.Name, f.Name, v)
		}
		predicates = append(predicates, f.Column+"=?")
		stmt.Args = append(stmt.Args, v)
	}
	if len(predicates) > 0 {
		stmt.Query += " WHERE " + strings.Join(predicates, " AND ")
	}
	return stmt, nil
}

// scalar returns the bind argument held by v. Nested values and scalars a
// driver cannot bind, such as slices of scalars, are a *pocket.ValidationError.
func scalar(entity, field string, v record.Value) (any, error) {
	s, ok := v.Scalar()
	if !ok {
		return nil, notScalar(entity, field, v)
	}
	if !bindable(s) {
		return nil, notBindable(entity, field, s)
	}
	return s, nil
}

// bindable reports whether v can be passed to a driver as a single argument.
func bindable(v any) bool {
	switch v.(type) {
	case nil, []byte, driver.Valuer:
		return true
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Chan, reflect.Func:
		return false
	}
	return true
}

func notScalar(entity, field string, v record.Value) error {
	return pocket.NewValidationError(entity, field, fmt.Errorf("expected a scalar value, got %s", v.Kind()))
}

func notBindable(entity, field string, v any) error {
	return pocket.NewValidationError(entity, field, fmt.Errorf("unsupported value of type %T", v))
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}
