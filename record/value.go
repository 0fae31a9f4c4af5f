// Package record defines the input record handed to the engine.
//
// A Record maps field names to Values. A Value is exactly one of a scalar,
// a single nested Record, or an ordered list of nested Records. Planning code
// switches on Kind instead of probing dynamic types.
package record

import (
	"fmt"
	"sort"
)

// Kind tags the variant held by a Value.
type Kind uint8

// Value kinds.
const (
	KindInvalid Kind = iota
	KindScalar
	KindRecord
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindRecord:
		return "record"
	case KindList:
		return "list"
	default:
		return "invalid"
	}
}

// Value is a tagged variant over scalar, nested record and record list.
// The zero Value is invalid.
type Value struct {
	kind   Kind
	scalar any
	rec    Record
	list   []Record
}

// Record is a field-name keyed input record.
type Record map[string]Value

// Scalar wraps a bind value. Scalar(nil) is SQL NULL.
func Scalar(v any) Value {
	return Value{kind: KindScalar, scalar: v}
}

// Null is shorthand for Scalar(nil).
func Null() Value {
	return Scalar(nil)
}

// Nested wraps a single child record.
func Nested(r Record) Value {
	return Value{kind: KindRecord, rec: r}
}

// List wraps an ordered list of child records.
func List(rs ...Record) Value {
	return Value{kind: KindList, list: rs}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is a null scalar.
func (v Value) IsNull() bool { return v.kind == KindScalar && v.scalar == nil }

// Scalar returns the bind value and whether v is a scalar.
func (v Value) Scalar() (any, bool) {
	return v.scalar, v.kind == KindScalar
}

// Record returns the nested record and whether v holds one.
func (v Value) Record() (Record, bool) {
	return v.rec, v.kind == KindRecord
}

// List returns the nested records and whether v is a list.
func (v Value) List() ([]Record, bool) {
	return v.list, v.kind == KindList
}

// Records returns the nested records of a Record or List value in order,
// and nil for scalars.
func (v Value) Records() []Record {
	switch v.kind {
	case KindRecord:
		return []Record{v.rec}
	case KindList:
		return v.list
	default:
		return nil
	}
}

// Interface returns v in the untyped form accepted by FromMap.
func (v Value) Interface() any {
	switch v.kind {
	case KindScalar:
		return v.scalar
	case KindRecord:
		return v.rec.Map()
	case KindList:
		out := make([]any, len(v.list))
		for i, r := range v.list {
			out[i] = r.Map()
		}
		return out
	default:
		return nil
	}
}

// String implements fmt.Stringer.
func (v Value) String() string {
	switch v.kind {
	case KindScalar:
		return fmt.Sprintf("%v", v.scalar)
	case KindRecord:
		return fmt.Sprintf("record(%d fields)", len(v.rec))
	case KindList:
		return fmt.Sprintf("list(%d records)", len(v.list))
	default:
		return "<invalid>"
	}
}

// Get returns the value for field and whether it is present.
func (r Record) Get(field string) (Value, bool) {
	v, ok := r[field]
	return v, ok
}

// Has reports whether field is present and not null.
func (r Record) Has(field string) bool {
	v, ok := r[field]
	return ok && !v.IsNull()
}

// Set stores v under field.
func (r Record) Set(field string, v Value) {
	r[field] = v
}

// Keys returns the field names sorted.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy of r. Scalars are copied by value.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		switch v.kind {
		case KindRecord:
			out[k] = Nested(v.rec.Clone())
		case KindList:
			list := make([]Record, len(v.list))
			for i, c := range v.list {
				list[i] = c.Clone()
			}
			out[k] = List(list...)
		default:
			out[k] = v
		}
	}
	return out
}

// Map converts r back into untyped form.
func (r Record) Map() map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[k] = v.Interface()
	}
	return out
}
