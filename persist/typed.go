package persist

import (
	"context"

	"github.com/syssam/pocket"
	"github.com/syssam/pocket/dialect/sql"
	"github.com/syssam/pocket/record"
	"github.com/syssam/pocket/schema"
)

// Repository persists values of a struct type bound with schema.Bind. The
// bound entity must be registered in the service's catalog.
type Repository[T any] struct {
	svc     *Service
	binding *schema.Binding[T]
}

// NewRepository returns a repository storing T through svc.
func NewRepository[T any](svc *Service, b *schema.Binding[T]) *Repository[T] {
	return &Repository[T]{svc: svc, binding: b}
}

// Entity returns the name of the bound entity.
func (r *Repository[T]) Entity() string { return r.binding.Entity.Name }

// Create inserts v and returns a copy carrying the primary key, generated
// when v leaves it zero.
func (r *Repository[T]) Create(ctx context.Context, conn sql.Conn, v T) (T, error) {
	res, err := r.svc.Persist(ctx, conn, r.Entity(), r.binding.Record(v))
	if err != nil {
		var zero T
		return zero, err
	}
	if err := r.binding.Load(res.Record, &v); err != nil {
		var zero T
		return zero, pocket.NewValidationError(r.Entity(), "", err)
	}
	return v, nil
}

// Get loads the value keyed by id.
func (r *Repository[T]) Get(ctx context.Context, conn sql.Conn, id any) (T, error) {
	var v T
	row, err := r.svc.Get(ctx, conn, r.Entity(), id)
	if err != nil {
		return v, err
	}
	if err := r.load(row, &v); err != nil {
		return v, err
	}
	return v, nil
}

// Find loads every value matching the field filters.
func (r *Repository[T]) Find(ctx context.Context, conn sql.Conn, filters map[string]any) ([]T, error) {
	rows, err := r.svc.Find(ctx, conn, r.Entity(), filters)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(rows))
	for i, row := range rows {
		if err := r.load(row, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Update writes every bound field of v, keyed by its primary key.
func (r *Repository[T]) Update(ctx context.Context, conn sql.Conn, v T) (sql.Result, error) {
	return r.svc.Update(ctx, conn, r.Entity(), r.binding.Record(v))
}

// Delete removes the value keyed by id.
func (r *Repository[T]) Delete(ctx context.Context, conn sql.Conn, id any) (sql.Result, error) {
	return r.svc.Delete(ctx, conn, r.Entity(), id)
}

func (r *Repository[T]) load(row map[string]any, dst *T) error {
	rec := make(record.Record, len(row))
	for k, v := range row {
		rec[k] = record.Scalar(v)
	}
	if err := r.binding.Load(rec, dst); err != nil {
		return pocket.NewExecutionError("scan", -1, "", err)
	}
	return nil
}
