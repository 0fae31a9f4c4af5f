package schema

import "slices"

// Entity describes how one logical record type maps onto a table.
// Descriptors are built once at load time and never mutated afterwards.
type Entity struct {
	// Name is the logical entity name callers persist under.
	Name string
	// Table is the backing table.
	Table string
	// PrimaryKeyColumn is the column of the primary-key field.
	PrimaryKeyColumn string
	// Fields lists the declared fields in column order.
	Fields []*Field
	// Children optionally enumerates the entity names that may be nested
	// beneath a record of this entity. When empty, any catalog entity whose
	// name matches a nested field is treated as a child.
	Children []string
}

// Field describes a single column of an entity.
type Field struct {
	Name       string
	Column     string
	Type       string
	PrimaryKey bool
	Nullable   bool
	Unique     bool
	// References is set for foreign-key fields.
	References *Reference
}

// Reference names the table and column a foreign key points at.
type Reference struct {
	Table  string
	Column string
}

// NewEntity returns an entity descriptor whose PrimaryKeyColumn is taken
// from the first primary-key field, if any.
func NewEntity(name, table string, fields ...*Field) *Entity {
	e := &Entity{Name: name, Table: table, Fields: fields}
	if pk := e.PrimaryKey(); pk != nil {
		e.PrimaryKeyColumn = pk.Column
	}
	return e
}

// WithChildren sets the explicit nested-child relations and returns e.
func (e *Entity) WithChildren(children ...string) *Entity {
	e.Children = children
	return e
}

// Clone returns a deep copy of e.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	c := *e
	c.Children = slices.Clone(e.Children)
	if e.Fields != nil {
		c.Fields = make([]*Field, len(e.Fields))
		for i, f := range e.Fields {
			c.Fields[i] = f.Clone()
		}
	}
	return &c
}

// PrimaryKey returns the primary-key field, or nil if none is declared.
func (e *Entity) PrimaryKey() *Field {
	for _, f := range e.Fields {
		if f.PrimaryKey {
			return f
		}
	}
	return nil
}

// Field returns the field with the given name, or nil.
func (e *Entity) Field(name string) *Field {
	for _, f := range e.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// ForeignKeyTo returns the first field referencing table.column, or nil.
func (e *Entity) ForeignKeyTo(table, column string) *Field {
	for _, f := range e.Fields {
		if f.References != nil && f.References.Table == table && f.References.Column == column {
			return f
		}
	}
	return nil
}

// PrimaryKey returns a primary-key field. Primary keys are unique and never nullable.
func PrimaryKey(name, column, typ string) *Field {
	return &Field{Name: name, Column: column, Type: typ, PrimaryKey: true, Unique: true}
}

// ForeignKey returns a non-nullable field referencing refTable.refColumn.
func ForeignKey(name, column, typ, refTable, refColumn string) *Field {
	return &Field{
		Name:       name,
		Column:     column,
		Type:       typ,
		References: &Reference{Table: refTable, Column: refColumn},
	}
}

// Column returns a regular field.
func Column(name, column, typ string, nullable, unique bool) *Field {
	return &Field{Name: name, Column: column, Type: typ, Nullable: nullable, Unique: unique}
}

// Optional marks the field nullable and returns it.
func (f *Field) Optional() *Field {
	f.Nullable = true
	return f
}

// Clone returns a deep copy of f.
func (f *Field) Clone() *Field {
	if f == nil {
		return nil
	}
	c := *f
	if f.References != nil {
		ref := *f.References
		c.References = &ref
	}
	return &c
}

// IsForeignKey reports whether the field references another table.
func (f *Field) IsForeignKey() bool {
	return f.References != nil
}
