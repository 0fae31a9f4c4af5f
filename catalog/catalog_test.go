package catalog_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/pocket"
	"github.com/syssam/pocket/catalog"
	"github.com/syssam/pocket/schema"
)

func orderEntity() *schema.Entity {
	return schema.NewEntity("order", "orders",
		schema.PrimaryKey("id", "id", "TEXT"),
		schema.Column("total", "total", "NUMERIC", false, false),
	)
}

func lineitemEntity() *schema.Entity {
	return schema.NewEntity("lineitem", "lineitems",
		schema.PrimaryKey("id", "id", "TEXT"),
		schema.ForeignKey("orderId", "order_id", "TEXT", "orders", "id"),
		schema.Column("sku", "sku", "TEXT", false, false),
	)
}

func customerEntity() *schema.Entity {
	return schema.NewEntity("customer", "customers",
		schema.PrimaryKey("id", "id", "TEXT"),
		schema.Column("name", "name", "TEXT", false, false),
		schema.Column("email", "email", "TEXT", true, true),
	)
}

func TestNew(t *testing.T) {
	c, err := catalog.New(orderEntity(), lineitemEntity(), customerEntity())
	require.NoError(t, err)

	assert.Equal(t, []string{"customer", "lineitem", "order"}, c.Entities())
	assert.Equal(t, 3, c.Len())
	assert.Empty(t, c.Warnings())

	e, err := c.Get("order")
	require.NoError(t, err)
	assert.Equal(t, "orders", e.Table)

	_, err = c.Get("invoice")
	require.Error(t, err)
	assert.True(t, pocket.IsNotFound(err))
	assert.True(t, errors.Is(err, pocket.ErrNotFound))
}

func TestCatalogOwnsDescriptors(t *testing.T) {
	e := orderEntity().WithChildren("lineitem")
	c, err := catalog.New(e, lineitemEntity())
	require.NoError(t, err)

	e.Table = "orders; DROP TABLE orders"
	e.Fields[0].PrimaryKey = false
	e.Fields = append(e.Fields, schema.ForeignKey("parent", "parent_id", "TEXT", "orders", "id"))
	e.Children[0] = "customer"

	got, err := c.Get("order")
	require.NoError(t, err)
	assert.Equal(t, "orders", got.Table)
	require.Len(t, got.Fields, 2)
	require.NotNil(t, got.PrimaryKey())
	assert.Equal(t, "id", got.PrimaryKey().Name)
	assert.Equal(t, []string{"lineitem"}, c.Relations("order"))

	got.Table = "changed"
	got.Fields[1].Column = "changed"
	again, err := c.Get("order")
	require.NoError(t, err)
	assert.Equal(t, "orders", again.Table)
	assert.Equal(t, "total", again.Fields[1].Column)

	li, err := c.Get("lineitem")
	require.NoError(t, err)
	li.Fields[1].References.Table = "changed"
	li, err = c.Get("lineitem")
	require.NoError(t, err)
	assert.Equal(t, "orders", li.Fields[1].References.Table)
}

func TestNewRejectsInvalidDescriptors(t *testing.T) {
	tests := []struct {
		name     string
		entities []*schema.Entity
		wantMsg  string
	}{
		{
			name: "no_primary_key",
			entities: []*schema.Entity{
				schema.NewEntity("log", "logs", schema.Column("msg", "msg", "TEXT", false, false)),
			},
			wantMsg: "no primary key",
		},
		{
			name: "two_primary_keys",
			entities: []*schema.Entity{
				schema.NewEntity("pair", "pairs",
					schema.PrimaryKey("a", "a", "TEXT"),
					schema.PrimaryKey("b", "b", "TEXT"),
				),
			},
			wantMsg: "2 primary keys",
		},
		{
			name: "pk_column_mismatch",
			entities: []*schema.Entity{
				{
					Name:             "x",
					Table:            "xs",
					PrimaryKeyColumn: "uid",
					Fields:           []*schema.Field{schema.PrimaryKey("id", "id", "TEXT")},
				},
			},
			wantMsg: "does not match",
		},
		{
			name: "pk_and_fk",
			entities: []*schema.Entity{
				schema.NewEntity("x", "xs", &schema.Field{
					Name: "id", Column: "id", PrimaryKey: true,
					References: &schema.Reference{Table: "ys", Column: "id"},
				}),
			},
			wantMsg: "both primary key and foreign key",
		},
		{
			name: "half_reference",
			entities: []*schema.Entity{
				schema.NewEntity("x", "xs",
					schema.PrimaryKey("id", "id", "TEXT"),
					&schema.Field{Name: "y", Column: "y_id", References: &schema.Reference{Table: "ys"}},
				),
			},
			wantMsg: "both table and column",
		},
		{
			name: "bad_table_identifier",
			entities: []*schema.Entity{
				schema.NewEntity("x", "xs; DROP TABLE users", schema.PrimaryKey("id", "id", "TEXT")),
			},
			wantMsg: "invalid table name",
		},
		{
			name: "duplicate_column",
			entities: []*schema.Entity{
				schema.NewEntity("x", "xs",
					schema.PrimaryKey("id", "id", "TEXT"),
					schema.Column("a", "val", "TEXT", false, false),
					schema.Column("b", "val", "TEXT", false, false),
				),
			},
			wantMsg: "duplicate column",
		},
		{
			name:     "duplicate_entity",
			entities: []*schema.Entity{orderEntity(), orderEntity()},
			wantMsg:  "duplicate entity name",
		},
		{
			name:     "unknown_child",
			entities: []*schema.Entity{orderEntity().WithChildren("shipment")},
			wantMsg:  `declared child "shipment"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := catalog.New(tt.entities...)
			require.Error(t, err)
			assert.True(t, pocket.IsConfigurationError(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidateWarnings(t *testing.T) {
	orphan := schema.NewEntity("note", "notes",
		schema.PrimaryKey("id", "id", "TEXT"),
		schema.ForeignKey("authorId", "author_id", "TEXT", "authors", "id"),
	)
	parent := orderEntity().WithChildren("note")

	result := catalog.Validate([]*schema.Entity{parent, orphan})
	require.False(t, result.HasErrors(), result.String())
	require.True(t, result.HasWarnings())

	var msgs []string
	for _, w := range result.Warnings {
		msgs = append(msgs, w.Error())
	}
	assert.Contains(t, msgs, `note.authorId: foreign key references table "authors" not mapped by any entity`)
	assert.Contains(t, msgs, `order: declared child "note" has no foreign key to orders.id`)

	c, err := catalog.New(parent, orphan)
	require.NoError(t, err)
	assert.Len(t, c.Warnings(), 2)
	assert.Contains(t, result.String(), "Warnings:")
}

func TestValidationResultString(t *testing.T) {
	assert.Equal(t, "No issues found", (&catalog.ValidationResult{}).String())
	r := catalog.ValidateEntity(nil)
	assert.True(t, r.HasErrors())
	assert.Contains(t, r.String(), "nil entity descriptor")
}

func TestRelations(t *testing.T) {
	t.Run("inferred", func(t *testing.T) {
		c := catalog.MustNew(orderEntity(), lineitemEntity(), customerEntity())
		assert.Equal(t, []string{"customer", "lineitem", "order"}, c.Relations("order"))
		assert.True(t, c.IsRelation("order", "lineitem"))
		assert.False(t, c.IsRelation("order", "total"))
		assert.False(t, c.IsRelation("invoice", "lineitem"))
		assert.Nil(t, c.Relations("invoice"))
	})

	t.Run("declared", func(t *testing.T) {
		c := catalog.MustNew(orderEntity().WithChildren("lineitem"), lineitemEntity(), customerEntity())
		assert.Equal(t, []string{"lineitem"}, c.Relations("order"))
		assert.True(t, c.IsRelation("order", "lineitem"))
		assert.False(t, c.IsRelation("order", "customer"))
	})
}

func TestMustNewPanics(t *testing.T) {
	assert.Panics(t, func() {
		catalog.MustNew(schema.NewEntity("log", "logs"))
	})
}

func TestHolder(t *testing.T) {
	first := catalog.MustNew(orderEntity())
	second := catalog.MustNew(orderEntity(), lineitemEntity())

	h := catalog.NewHolder(first)
	var src catalog.Source = h
	assert.Same(t, first, src.Catalog())

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := h.Catalog()
			_, err := c.Get("order")
			assert.NoError(t, err)
		}()
	}
	prev := h.Store(second)
	wg.Wait()

	assert.Same(t, first, prev)
	assert.Same(t, second, h.Catalog())
	assert.True(t, h.Catalog().Has("lineitem"))
}
