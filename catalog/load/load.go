// Package load reads entity descriptors from YAML metadata files.
//
// A metadata file lists entities:
//
//	entities:
//	  - name: order
//	    children: [lineitem]
//	    fields:
//	      - name: id
//	        primaryKey: true
//	      - name: total
//	        type: NUMERIC
//	  - name: lineitem
//	    fields:
//	      - name: id
//	        primaryKey: true
//	      - name: orderId
//	        references: {table: orders, column: id}
//	      - name: sku
//
// The table defaults to the pluralized, underscored entity name and a column
// defaults to the underscored field name.
package load

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-openapi/inflect"
	"gopkg.in/yaml.v3"

	"github.com/syssam/pocket/catalog"
	"github.com/syssam/pocket/schema"
)

// DefaultType is the column type of fields declaring none.
const DefaultType = "TEXT"

// File is the layout of a metadata file.
type File struct {
	Entities []EntityDef `yaml:"entities"`
}

// EntityDef describes one entity.
type EntityDef struct {
	Name     string     `yaml:"name"`
	Table    string     `yaml:"table,omitempty"`
	Children []string   `yaml:"children,omitempty"`
	Fields   []FieldDef `yaml:"fields"`
}

// FieldDef describes one field.
type FieldDef struct {
	Name       string  `yaml:"name"`
	Column     string  `yaml:"column,omitempty"`
	Type       string  `yaml:"type,omitempty"`
	PrimaryKey bool    `yaml:"primaryKey,omitempty"`
	Nullable   bool    `yaml:"nullable,omitempty"`
	Unique     bool    `yaml:"unique,omitempty"`
	References *RefDef `yaml:"references,omitempty"`
}

// RefDef is the target of a foreign key.
type RefDef struct {
	Table  string `yaml:"table"`
	Column string `yaml:"column"`
}

// Parse decodes a metadata document. Unknown keys are rejected.
func Parse(data []byte) ([]*schema.Entity, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("load: decode metadata: %w", err)
	}
	entities := make([]*schema.Entity, 0, len(f.Entities))
	for i, def := range f.Entities {
		if def.Name == "" {
			return nil, fmt.Errorf("load: entity #%d has no name", i)
		}
		entities = append(entities, def.Entity())
	}
	return entities, nil
}

// Entity converts the definition into a descriptor, applying defaults.
func (d EntityDef) Entity() *schema.Entity {
	table := d.Table
	if table == "" {
		table = inflect.Pluralize(inflect.Underscore(d.Name))
	}
	fields := make([]*schema.Field, 0, len(d.Fields))
	for _, fd := range d.Fields {
		fields = append(fields, fd.Field())
	}
	e := schema.NewEntity(d.Name, table, fields...)
	if len(d.Children) > 0 {
		e.WithChildren(d.Children...)
	}
	return e
}

// Field converts the definition into a descriptor, applying defaults.
func (d FieldDef) Field() *schema.Field {
	column := d.Column
	if column == "" {
		column = inflect.Underscore(d.Name)
	}
	typ := d.Type
	if typ == "" {
		typ = DefaultType
	}
	f := &schema.Field{
		Name:       d.Name,
		Column:     column,
		Type:       typ,
		PrimaryKey: d.PrimaryKey,
		Nullable:   d.Nullable,
		Unique:     d.Unique || d.PrimaryKey,
	}
	if d.References != nil {
		f.References = &schema.Reference{Table: d.References.Table, Column: d.References.Column}
	}
	return f
}

// LoadFile reads the entities of a single metadata file.
func LoadFile(path string) ([]*schema.Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	entities, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entities, nil
}

// IsMetadataFile reports whether path has a YAML extension.
func IsMetadataFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// LoadDir reads every metadata file of dir, in name order. An entity
// declared by more than one file is an error.
func LoadDir(dir string) ([]*schema.Entity, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	var names []string
	for _, de := range dirents {
		if !de.IsDir() && IsMetadataFile(de.Name()) {
			names = append(names, de.Name())
		}
	}
	slices.Sort(names)

	var (
		all    []*schema.Entity
		origin = make(map[string]string)
	)
	for _, name := range names {
		path := filepath.Join(dir, name)
		entities, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		for _, e := range entities {
			if prev, ok := origin[e.Name]; ok {
				return nil, fmt.Errorf("load: entity %q declared in both %s and %s", e.Name, prev, path)
			}
			origin[e.Name] = path
		}
		all = append(all, entities...)
	}
	return all, nil
}

// Catalog builds a catalog from path, which is either a metadata file or a
// directory of them.
func Catalog(path string) (*catalog.Catalog, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	var entities []*schema.Entity
	if info.IsDir() {
		entities, err = LoadDir(path)
	} else {
		entities, err = LoadFile(path)
	}
	if err != nil {
		return nil, err
	}
	return catalog.New(entities...)
}
