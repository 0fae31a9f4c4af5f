// Package planner translates entity names and input records into
// parameterized statements.
//
// Every operation is a pure function of the catalog snapshot, the entity
// name and the input; nothing is cached between calls. Input records are
// never modified: operations that need to add a generated key work on, and
// return, a deep copy.
//
// BuildInsertPlan walks a record graph and emits one insert per entity in
// parent-before-child order:
//
//	p := planner.New(cat)
//	plan, err := p.BuildInsertPlan("order", record.MustFromMap(map[string]any{
//	    "total": 123.45,
//	    "lineitem": []any{
//	        map[string]any{"sku": "ABC"},
//	        map[string]any{"sku": "DEF"},
//	    },
//	}))
//	// plan.Statements: INSERT INTO orders ..., INSERT INTO lineitems ... (x2)
//	// plan.Keys:       order, order/lineitem[0], order/lineitem[1]
package planner

import (
	"log/slog"

	"github.com/syssam/pocket"
	"github.com/syssam/pocket/catalog"
	"github.com/syssam/pocket/schema"
)

// Planner builds statements against the catalog published by a Source.
type Planner struct {
	src  catalog.Source
	keys KeyGenerator
	log  *slog.Logger
}

// Option configures a Planner.
type Option func(*Planner)

// WithKeyGenerator sets the generator for missing primary keys.
// Default is UUIDGenerator.
func WithKeyGenerator(g KeyGenerator) Option {
	return func(p *Planner) {
		if g != nil {
			p.keys = g
		}
	}
}

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Planner) {
		if l != nil {
			p.log = l
		}
	}
}

// New returns a planner reading descriptors from src. A *catalog.Holder
// source lets the catalog be swapped between calls.
func New(src catalog.Source, opts ...Option) *Planner {
	p := &Planner{
		src:  src,
		keys: UUIDGenerator{},
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Catalog returns the catalog snapshot the next call would plan against.
func (p *Planner) Catalog() *catalog.Catalog {
	return p.src.Catalog()
}

// resolve looks up an entity and checks it can be planned.
func resolve(cat *catalog.Catalog, name string) (*schema.Entity, *schema.Field, error) {
	e, err := cat.Get(name)
	if err != nil {
		return nil, nil, err
	}
	pk := e.PrimaryKey()
	if pk == nil {
		return nil, nil, pocket.NewConfigurationError(name, "no primary key declared")
	}
	return e, pk, nil
}
