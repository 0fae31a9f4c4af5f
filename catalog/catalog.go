// Package catalog holds the immutable set of entity descriptors the engine
// plans against.
//
// A Catalog is validated once at construction and never mutated afterwards,
// so it is safe for concurrent use without synchronization. Reloading is done
// by building a new Catalog and swapping it into a Holder.
package catalog

import (
	"slices"
	"sort"
	"strings"

	"github.com/syssam/pocket"
	"github.com/syssam/pocket/schema"
)

// Source yields the catalog to plan against. Both *Catalog and *Holder
// implement it.
type Source interface {
	Catalog() *Catalog
}

// Catalog is a validated, read-only registry of entity descriptors.
type Catalog struct {
	entities map[string]*schema.Entity
	names    []string
	warnings []*Issue
}

// New validates the given descriptors and returns a catalog holding them.
// Validation errors are reported as a *pocket.ConfigurationError.
func New(entities ...*schema.Entity) (*Catalog, error) {
	owned := make([]*schema.Entity, len(entities))
	for i, e := range entities {
		owned[i] = e.Clone()
	}
	entities = owned
	result := Validate(entities)
	if result.HasErrors() {
		msgs := make([]string, len(result.Errors))
		for i, e := range result.Errors {
			msgs[i] = e.Error()
		}
		return nil, pocket.NewConfigurationError(result.Errors[0].Entity, strings.Join(msgs, "; "))
	}
	c := &Catalog{
		entities: make(map[string]*schema.Entity, len(entities)),
		names:    make([]string, 0, len(entities)),
		warnings: result.Warnings,
	}
	for _, e := range entities {
		c.entities[e.Name] = e
		c.names = append(c.names, e.Name)
	}
	sort.Strings(c.names)
	return c, nil
}

// MustNew is like New but panics on error.
func MustNew(entities ...*schema.Entity) *Catalog {
	c, err := New(entities...)
	if err != nil {
		panic(err)
	}
	return c
}

// Catalog implements Source.
func (c *Catalog) Catalog() *Catalog { return c }

// Get returns a copy of the descriptor registered under name, or a
// *pocket.NotFoundError. Changing the copy does not affect the catalog.
func (c *Catalog) Get(name string) (*schema.Entity, error) {
	if e, ok := c.entities[name]; ok {
		return e.Clone(), nil
	}
	return nil, pocket.NewNotFoundError(name)
}

// Has reports whether name is a registered entity.
func (c *Catalog) Has(name string) bool {
	_, ok := c.entities[name]
	return ok
}

// Entities returns the registered entity names, sorted.
func (c *Catalog) Entities() []string {
	return slices.Clone(c.names)
}

// Len returns the number of registered entities.
func (c *Catalog) Len() int { return len(c.names) }

// Warnings returns the non-fatal findings recorded at construction.
func (c *Catalog) Warnings() []*Issue {
	return slices.Clone(c.warnings)
}

// Relations returns the entity names that may be nested beneath a record of
// parent: its declared children, or every registered entity when none are
// declared.
func (c *Catalog) Relations(parent string) []string {
	e, ok := c.entities[parent]
	if !ok {
		return nil
	}
	if len(e.Children) > 0 {
		return slices.Clone(e.Children)
	}
	return c.Entities()
}

// IsRelation reports whether a nested value stored under field of a parent
// record denotes a child entity.
func (c *Catalog) IsRelation(parent, field string) bool {
	e, ok := c.entities[parent]
	if !ok || !c.Has(field) {
		return false
	}
	if len(e.Children) > 0 {
		return slices.Contains(e.Children, field)
	}
	return true
}
