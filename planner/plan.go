package planner

import (
	"fmt"

	"github.com/syssam/pocket/catalog"
	"github.com/syssam/pocket/dialect/sql"
	"github.com/syssam/pocket/record"
)

// Key records the primary key of one record of an insert plan.
type Key struct {
	// Entity and Field name the primary-key field.
	Entity string
	Field  string
	// Path locates the record within the input graph, e.g. "order/lineitem[1]".
	Path  string
	Value any
	// Generated is set when the key was synthesized by the planner.
	Generated bool
}

// Plan is an ordered list of inserts in which every record's statement
// precedes the statements of the records nested beneath it.
type Plan struct {
	Statements []sql.Statement
	// Keys holds one entry per statement, in statement order.
	Keys []Key
	// Records holds the enriched record of every statement, in statement
	// order. Each is shared with the graph under Record.
	Records []record.Record
	// Record is a copy of the input enriched with the generated primary
	// keys and propagated foreign keys.
	Record record.Record
}

// RootKey returns the key of the top-level record.
func (p *Plan) RootKey() Key {
	if len(p.Keys) == 0 {
		return Key{}
	}
	return p.Keys[0]
}

// Generated returns the keys that were synthesized by the planner.
func (p *Plan) Generated() []Key {
	var keys []Key
	for _, k := range p.Keys {
		if k.Generated {
			keys = append(keys, k)
		}
	}
	return keys
}

// parent is the resolved context a nested record is planned under.
type parent struct {
	table  string
	column string
	key    any
}

// BuildInsertPlan plans the insertion of rec as an entity record together
// with every nested child record. A nested value is planned as a child when
// its field name is a relation of the parent entity in the catalog (see
// catalog.Catalog.Relations); other nested values are skipped.
func (p *Planner) BuildInsertPlan(entity string, rec record.Record) (*Plan, error) {
	cat := p.src.Catalog()
	out := rec.Clone()
	if out == nil {
		out = record.Record{}
	}
	plan := &Plan{Record: out}
	if err := p.plan(cat, plan, entity, out, entity, nil); err != nil {
		return nil, err
	}
	return plan, nil
}

func (p *Planner) plan(cat *catalog.Catalog, plan *Plan, entity string, r record.Record, path string, from *parent) error {
	e, _, err := resolve(cat, entity)
	if err != nil {
		return err
	}
	if from != nil {
		if fk := e.ForeignKeyTo(from.table, from.column); fk != nil && !r.Has(fk.Name) {
			r[fk.Name] = record.Scalar(from.key)
		}
	}
	stmt, key, err := p.insert(e, r)
	if err != nil {
		return err
	}
	key.Path = path
	plan.Statements = append(plan.Statements, stmt)
	plan.Keys = append(plan.Keys, key)
	plan.Records = append(plan.Records, r)

	self := &parent{table: e.Table, column: e.PrimaryKeyColumn, key: key.Value}
	for _, field := range r.Keys() {
		v := r[field]
		if v.Kind() != record.KindRecord && v.Kind() != record.KindList {
			continue
		}
		if !cat.IsRelation(entity, field) {
			p.log.Debug("skipping nested value that is not a relation", "entity", entity, "field", field, "path", path)
			continue
		}
		if child, ok := v.Record(); ok {
			if child == nil {
				child = record.Record{}
				r[field] = record.Nested(child)
			}
			if err := p.plan(cat, plan, field, child, path+"/"+field, self); err != nil {
				return err
			}
			continue
		}
		list, _ := v.List()
		for i, child := range list {
			if child == nil {
				child = record.Record{}
				list[i] = child
			}
			if err := p.plan(cat, plan, field, child, fmt.Sprintf("%s/%s[%d]", path, field, i), self); err != nil {
				return err
			}
		}
	}
	return nil
}
