package catalog

import "sync/atomic"

// Holder publishes the current catalog and allows it to be replaced
// atomically. Readers that obtained a catalog keep using it for the rest of
// their call.
type Holder struct {
	current atomic.Pointer[Catalog]
}

// NewHolder returns a holder publishing c.
func NewHolder(c *Catalog) *Holder {
	h := &Holder{}
	h.current.Store(c)
	return h
}

// Catalog implements Source.
func (h *Holder) Catalog() *Catalog { return h.current.Load() }

// Store replaces the published catalog and returns the previous one.
func (h *Holder) Store(c *Catalog) *Catalog {
	return h.current.Swap(c)
}
