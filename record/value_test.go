package record_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/pocket/record"
)

func TestFromMap(t *testing.T) {
	t.Run("variants", func(t *testing.T) {
		r, err := record.FromMap(map[string]any{
			"total":    123.45,
			"note":     nil,
			"customer": map[string]any{"name": "Alice"},
			"lineitem": []any{
				map[string]any{"sku": "ABC"},
				map[string]any{"sku": "DEF"},
			},
			"tags": []any{"a", "b"},
		})
		require.NoError(t, err)

		assert.Equal(t, record.KindScalar, r["total"].Kind())
		assert.True(t, r["note"].IsNull())
		assert.Equal(t, record.KindRecord, r["customer"].Kind())
		assert.Equal(t, record.KindScalar, r["tags"].Kind(), "a slice of scalars is a scalar")

		items, ok := r["lineitem"].List()
		require.True(t, ok)
		require.Len(t, items, 2)
		sku, _ := items[1]["sku"].Scalar()
		assert.Equal(t, "DEF", sku)
	})

	t.Run("typed_slice", func(t *testing.T) {
		r, err := record.FromMap(map[string]any{
			"lineitem": []map[string]any{{"sku": "ABC"}},
		})
		require.NoError(t, err)
		assert.Len(t, r["lineitem"].Records(), 1)
	})

	t.Run("mixed_slice", func(t *testing.T) {
		_, err := record.FromMap(map[string]any{
			"order": map[string]any{
				"lineitem": []any{map[string]any{"sku": "ABC"}, "oops"},
			},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "order.lineitem")
	})
}

func TestRecordClone(t *testing.T) {
	orig := record.Record{
		"total":    record.Scalar(10),
		"lineitem": record.List(record.Record{"sku": record.Scalar("ABC")}),
		"customer": record.Nested(record.Record{"name": record.Scalar("Bob")}),
	}
	cp := orig.Clone()

	items, _ := cp["lineitem"].List()
	items[0].Set("orderId", record.Scalar("o-1"))
	c, _ := cp["customer"].Record()
	c.Set("name", record.Scalar("Carol"))
	cp.Set("id", record.Scalar("x"))

	origItems, _ := orig["lineitem"].List()
	assert.NotContains(t, origItems[0], "orderId")
	origCustomer, _ := orig["customer"].Record()
	name, _ := origCustomer["name"].Scalar()
	assert.Equal(t, "Bob", name)
	assert.NotContains(t, orig, "id")
}

func TestRecordAccessors(t *testing.T) {
	r := record.Record{
		"id":   record.Null(),
		"name": record.Scalar("Alice"),
	}
	assert.False(t, r.Has("id"), "null counts as absent for Has")
	_, present := r.Get("id")
	assert.True(t, present)
	assert.True(t, r.Has("name"))
	assert.Equal(t, []string{"id", "name"}, r.Keys())
	assert.Nil(t, r["name"].Records())

	var zero record.Value
	assert.Equal(t, record.KindInvalid, zero.Kind())
	assert.Equal(t, "<invalid>", zero.String())
	assert.Equal(t, "list", record.KindList.String())
}

func TestRecordMapRoundTrip(t *testing.T) {
	in := map[string]any{
		"total": 1.5,
		"lineitem": []any{
			map[string]any{"sku": "ABC"},
		},
	}
	r := record.MustFromMap(in)
	assert.Equal(t, in, r.Map())
}
