package schema

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/syssam/pocket/record"
)

// TagName is the struct tag read by Bind.
const TagName = "pocket"

// Binding couples an Entity derived from a struct type with accessors
// resolved once at bind time.
type Binding[T any] struct {
	Entity    *Entity
	accessors []accessor
}

type accessor struct {
	field *Field
	index []int
}

// Bind derives an Entity from the `pocket` tags of T, which must be a struct.
//
// The tag holds the column name followed by options:
//
//	pk              primary key
//	nullable        column accepts NULL
//	unique          unique column
//	type=NUMERIC    column type tag, derived from the Go type when omitted
//	field=orderId   logical field name, defaults to the column name
//	fk=orders.id    foreign key to table.column
//
// Untagged fields and fields tagged "-" are ignored.
func Bind[T any](name, table string) (*Binding[T], error) {
	typ := reflect.TypeFor[T]()
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("schema: bind %s: %s is not a struct", name, typ)
	}
	b := &Binding[T]{}
	var fields []*Field
	for _, sf := range reflect.VisibleFields(typ) {
		tag, ok := sf.Tag.Lookup(TagName)
		if !ok || tag == "-" || !sf.IsExported() {
			continue
		}
		f, err := parseTag(sf, tag)
		if err != nil {
			return nil, fmt.Errorf("schema: bind %s.%s: %w", name, sf.Name, err)
		}
		fields = append(fields, f)
		b.accessors = append(b.accessors, accessor{field: f, index: sf.Index})
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("schema: bind %s: %s has no %q tags", name, typ, TagName)
	}
	b.Entity = NewEntity(name, table, fields...)
	return b, nil
}

// MustBind is like Bind but panics on error.
func MustBind[T any](name, table string) *Binding[T] {
	b, err := Bind[T](name, table)
	if err != nil {
		panic(err)
	}
	return b
}

func parseTag(sf reflect.StructField, tag string) (*Field, error) {
	parts := strings.Split(tag, ",")
	column := strings.TrimSpace(parts[0])
	if column == "" {
		return nil, fmt.Errorf("empty column name")
	}
	f := &Field{Name: column, Column: column, Type: columnType(sf.Type)}
	for _, opt := range parts[1:] {
		key, val, _ := strings.Cut(strings.TrimSpace(opt), "=")
		switch key {
		case "pk":
			f.PrimaryKey, f.Unique = true, true
		case "nullable":
			f.Nullable = true
		case "unique":
			f.Unique = true
		case "type":
			f.Type = val
		case "field":
			f.Name = val
		case "fk":
			tbl, col, ok := strings.Cut(val, ".")
			if !ok || tbl == "" || col == "" {
				return nil, fmt.Errorf("fk %q must be table.column", val)
			}
			f.References = &Reference{Table: tbl, Column: col}
		case "":
		default:
			return nil, fmt.Errorf("unknown option %q", key)
		}
	}
	if sf.Type.Kind() == reflect.Pointer {
		f.Nullable = true
	}
	return f, nil
}

var timeType = reflect.TypeFor[time.Time]()

func columnType(t reflect.Type) string {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == timeType {
		return "TIMESTAMP"
	}
	switch t.Kind() {
	case reflect.Bool:
		return "BOOLEAN"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "INTEGER"
	case reflect.Float32, reflect.Float64:
		return "REAL"
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return "BLOB"
		}
	}
	return "TEXT"
}

// Record converts v into an input record. A zero-valued primary key is left
// out so that the planner generates one; nil pointers become null scalars.
func (b *Binding[T]) Record(v T) record.Record {
	rv := reflect.ValueOf(v)
	r := make(record.Record, len(b.accessors))
	for _, a := range b.accessors {
		fv := rv.FieldByIndex(a.index)
		if a.field.PrimaryKey && fv.IsZero() {
			continue
		}
		if fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				r[a.field.Name] = record.Null()
				continue
			}
			fv = fv.Elem()
		}
		r[a.field.Name] = record.Scalar(fv.Interface())
	}
	return r
}

// Load copies the scalar fields of r into dst, converting between
// convertible types. Fields absent from r are left untouched.
func (b *Binding[T]) Load(r record.Record, dst *T) error {
	rv := reflect.ValueOf(dst).Elem()
	for _, a := range b.accessors {
		val, ok := r[a.field.Name]
		if !ok {
			continue
		}
		s, ok := val.Scalar()
		if !ok {
			return fmt.Errorf("schema: load %s.%s: %s is not a scalar", b.Entity.Name, a.field.Name, val.Kind())
		}
		fv := rv.FieldByIndex(a.index)
		if err := assign(fv, s); err != nil {
			return fmt.Errorf("schema: load %s.%s: %w", b.Entity.Name, a.field.Name, err)
		}
	}
	return nil
}

func assign(dst reflect.Value, v any) error {
	if v == nil {
		dst.SetZero()
		return nil
	}
	src := reflect.ValueOf(v)
	target := dst.Type()
	if target.Kind() == reflect.Pointer {
		p := reflect.New(target.Elem())
		if err := assign(p.Elem(), v); err != nil {
			return err
		}
		dst.Set(p)
		return nil
	}
	switch {
	case src.Type().AssignableTo(target):
		dst.Set(src)
	case src.Type().ConvertibleTo(target) && src.Kind() != reflect.String && target.Kind() != reflect.String:
		dst.Set(src.Convert(target))
	case src.Kind() == reflect.Slice && src.Type().Elem().Kind() == reflect.Uint8 && target.Kind() == reflect.String:
		dst.SetString(string(src.Bytes()))
	default:
		return fmt.Errorf("cannot assign %T to %s", v, target)
	}
	return nil
}
