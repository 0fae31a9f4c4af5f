package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/pocket"
	"github.com/syssam/pocket/catalog"
	"github.com/syssam/pocket/dialect/sql"
	"github.com/syssam/pocket/dispatch"
	"github.com/syssam/pocket/persist"
	"github.com/syssam/pocket/planner"
	"github.com/syssam/pocket/record"
	"github.com/syssam/pocket/schema"
)

func jobs(n int) []dispatch.Job {
	out := make([]dispatch.Job, n)
	for i := range out {
		out[i] = dispatch.Job{
			Entity: "customer",
			Record: record.Record{"name": record.Scalar(fmt.Sprintf("c-%d", i))},
		}
	}
	return out
}

func echo(ctx context.Context, entity string, rec record.Record) (*persist.Result, error) {
	name, _ := rec["name"].Scalar()
	return &persist.Result{
		AffectedRows: 1,
		Keys:         []planner.Key{{Entity: entity, Field: "id", Value: name}},
	}, nil
}

func TestRunPreservesOrder(t *testing.T) {
	d := dispatch.New(echo, dispatch.WithWorkers(3))
	out := d.Run(context.Background(), jobs(20))
	require.Len(t, out, 20)
	for i, o := range out {
		require.NoError(t, o.Err)
		assert.Equal(t, i, o.Index)
		assert.Equal(t, fmt.Sprintf("c-%d", i), o.Result.ID())
	}
}

func TestRunBoundsWorkers(t *testing.T) {
	var inflight, peak atomic.Int32
	fn := func(ctx context.Context, entity string, rec record.Record) (*persist.Result, error) {
		n := inflight.Add(1)
		defer inflight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return echo(ctx, entity, rec)
	}
	d := dispatch.New(fn, dispatch.WithWorkers(2))
	assert.Equal(t, 2, d.Workers())
	d.Run(context.Background(), jobs(10))
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Positive(t, peak.Load())
}

func TestRunIsolatesFailures(t *testing.T) {
	boom := errors.New("boom")
	fn := func(ctx context.Context, entity string, rec record.Record) (*persist.Result, error) {
		if name, _ := rec["name"].Scalar(); name == "c-2" {
			return nil, boom
		}
		return echo(ctx, entity, rec)
	}
	out := dispatch.New(fn, dispatch.WithWorkers(4)).Run(context.Background(), jobs(5))
	for i, o := range out {
		if i == 2 {
			assert.ErrorIs(t, o.Err, boom)
			assert.Nil(t, o.Result)
			continue
		}
		assert.NoError(t, o.Err)
	}
}

func TestRunCanceled(t *testing.T) {
	var calls atomic.Int32
	fn := func(ctx context.Context, entity string, rec record.Record) (*persist.Result, error) {
		calls.Add(1)
		return echo(ctx, entity, rec)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := dispatch.New(fn).Run(ctx, jobs(3))
	for _, o := range out {
		assert.ErrorIs(t, o.Err, context.Canceled)
	}
	assert.Zero(t, calls.Load())
}

func TestRunRateLimited(t *testing.T) {
	d := dispatch.New(echo, dispatch.WithWorkers(5), dispatch.WithRate(50, 1))
	start := time.Now()
	out := d.Run(context.Background(), jobs(5))
	for _, o := range out {
		require.NoError(t, o.Err)
	}
	// 5 starts at 50/s with a burst of 1 need at least 4 intervals of 20ms.
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)
}

func TestSubmit(t *testing.T) {
	d := dispatch.New(echo)
	ch := d.Submit(context.Background(), jobs(2)...)
	select {
	case out, ok := <-ch:
		require.True(t, ok)
		require.Len(t, out, 2)
		assert.Equal(t, "c-1", out[1].Result.ID())
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for outcomes")
	}
	_, ok := <-ch
	assert.False(t, ok, "channel is closed after delivery")
}

func TestForDB(t *testing.T) {
	cat, err := catalog.New(schema.NewEntity("customer", "customers",
		schema.PrimaryKey("id", "id", "TEXT"),
		schema.Column("name", "name", "TEXT", false, true),
	))
	require.NoError(t, err)

	dsn := "file:" + filepath.Join(t.TempDir(), "pocket.db") + "?_pragma=foreign_keys(1)"
	drv, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { drv.Close() })
	drv.SetMaxOpenConns(1)
	_, err = drv.ExecContext(context.Background(),
		"CREATE TABLE customers (id TEXT PRIMARY KEY, name TEXT NOT NULL UNIQUE)")
	require.NoError(t, err)

	svc := persist.New(cat, persist.WithKeyGenerator(planner.NewULIDGenerator()))
	d := dispatch.New(dispatch.ForDB(svc, drv.DB), dispatch.WithWorkers(4))

	batch := append(jobs(8), dispatch.Job{
		Entity: "customer",
		Record: record.Record{"name": record.Scalar("c-0")},
	})
	out := d.Run(context.Background(), batch)
	failed := 0
	for _, o := range out {
		if o.Err != nil {
			failed++
			assert.True(t, pocket.IsConstraintError(o.Err), "unexpected error: %v", o.Err)
			continue
		}
		assert.NotEmpty(t, o.Result.ID())
	}
	assert.Equal(t, 1, failed, "the duplicate name fails on its own")

	var n int
	require.NoError(t, drv.QueryRow("SELECT COUNT(*) FROM customers").Scan(&n))
	assert.Equal(t, 8, n)
}
