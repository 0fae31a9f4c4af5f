// Package schema provides the static descriptors that map entities onto tables.
//
// An Entity names its table, its primary-key column and an ordered list of
// fields. Each Field carries its column, a column type tag, the primary-key,
// nullable and unique flags, and an optional foreign-key Reference.
//
// # Building descriptors
//
// The constructors mirror the three kinds of field:
//
//	order := schema.NewEntity("order", "orders",
//	    schema.PrimaryKey("id", "id", "TEXT"),
//	    schema.Column("total", "total", "NUMERIC", false, false),
//	).WithChildren("lineitem")
//
//	lineitem := schema.NewEntity("lineitem", "lineitems",
//	    schema.PrimaryKey("id", "id", "TEXT"),
//	    schema.ForeignKey("orderId", "order_id", "TEXT", "orders", "id"),
//	    schema.Column("sku", "sku", "TEXT", false, false),
//	)
//
// # Struct binding
//
// Bind derives a descriptor from struct tags and resolves the field accessors
// once, so converting a value into a record never looks fields up by name:
//
//	type Customer struct {
//	    ID    string `pocket:"id,pk"`
//	    Name  string `pocket:"name"`
//	    Email string `pocket:"email,nullable,unique"`
//	}
//
//	b, err := schema.Bind[Customer]("customer", "customers")
//	rec := b.Record(Customer{Name: "Alice"})
//
// Descriptors are not validated here; the catalog enforces the invariants
// when it is built.
package schema
