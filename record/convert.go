package record

import "fmt"

// FromMap converts an untyped mapping, as produced by encoding/json or
// yaml.v3, into a Record. Nested maps become Nested values and slices whose
// elements are all maps become List values. Every other value, including
// slices of scalars, is kept as a Scalar.
func FromMap(m map[string]any) (Record, error) {
	return fromMap(m, "")
}

// MustFromMap is like FromMap but panics on error. Intended for tests and
// literals.
func MustFromMap(m map[string]any) Record {
	r, err := FromMap(m)
	if err != nil {
		panic(err)
	}
	return r
}

func fromMap(m map[string]any, path string) (Record, error) {
	r := make(Record, len(m))
	for k, raw := range m {
		v, err := fromAny(raw, join(path, k))
		if err != nil {
			return nil, err
		}
		r[k] = v
	}
	return r, nil
}

func fromAny(raw any, path string) (Value, error) {
	switch x := raw.(type) {
	case Value:
		return x, nil
	case Record:
		return Nested(x), nil
	case []Record:
		return List(x...), nil
	case map[string]any:
		r, err := fromMap(x, path)
		if err != nil {
			return Value{}, err
		}
		return Nested(r), nil
	case []map[string]any:
		list := make([]Record, len(x))
		for i, item := range x {
			r, err := fromMap(item, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return Value{}, err
			}
			list[i] = r
		}
		return List(list...), nil
	case []any:
		return fromSlice(x, path)
	default:
		return Scalar(raw), nil
	}
}

// fromSlice treats a slice as a record list when every element is a map, and
// as a scalar otherwise. Mixing maps and scalars is rejected.
func fromSlice(items []any, path string) (Value, error) {
	maps := 0
	for _, item := range items {
		if _, ok := item.(map[string]any); ok {
			maps++
		}
	}
	switch {
	case maps == 0:
		return Scalar(items), nil
	case maps != len(items):
		return Value{}, fmt.Errorf("record: %s mixes nested records and scalars", path)
	}
	list := make([]Record, len(items))
	for i, item := range items {
		r, err := fromMap(item.(map[string]any), fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return Value{}, err
		}
		list[i] = r
	}
	return List(list...), nil
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
