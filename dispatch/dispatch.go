// Package dispatch runs persist calls concurrently on a bounded set of
// workers. Each call still runs in a transaction of its own, so one failed
// job never affects the others.
package dispatch

import (
	"context"
	stdsql "database/sql"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/syssam/pocket/persist"
	"github.com/syssam/pocket/record"
)

// PersistFunc persists one record. It must be safe for concurrent use.
type PersistFunc func(ctx context.Context, entity string, rec record.Record) (*persist.Result, error)

// ForDB returns a PersistFunc running each call on its own connection
// taken from db.
func ForDB(svc *persist.Service, db *stdsql.DB) PersistFunc {
	return func(ctx context.Context, entity string, rec record.Record) (*persist.Result, error) {
		return svc.PersistDB(ctx, db, entity, rec)
	}
}

// Job is a single unit of work.
type Job struct {
	Entity string
	Record record.Record
}

// Outcome is the result of one job. Outcomes are reported in job order.
type Outcome struct {
	Index  int
	Result *persist.Result
	Err    error
}

// Dispatcher submits jobs to a PersistFunc.
type Dispatcher struct {
	fn      PersistFunc
	workers int
	limiter *rate.Limiter
	log     *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithWorkers bounds the number of jobs in flight. Defaults to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithRate limits job starts to perSecond, allowing bursts of burst jobs.
// A non-positive rate disables limiting.
func WithRate(perSecond float64, burst int) Option {
	return func(d *Dispatcher) {
		if perSecond <= 0 {
			d.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// New returns a dispatcher calling fn.
func New(fn PersistFunc, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		fn:      fn,
		workers: runtime.GOMAXPROCS(0),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Workers returns the maximum number of jobs in flight.
func (d *Dispatcher) Workers() int { return d.workers }

// Run executes jobs and blocks until all of them finished. Jobs not yet
// started when ctx is done report the context error.
func (d *Dispatcher) Run(ctx context.Context, jobs []Job) []Outcome {
	out := make([]Outcome, len(jobs))
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(d.workers)
	for i, job := range jobs {
		out[i].Index = i
		g.Go(func() error {
			out[i].Result, out[i].Err = d.do(ctx, job)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, o := range out {
		if o.Err != nil {
			failed++
		}
	}
	d.log.DebugContext(ctx, "dispatched jobs",
		"jobs", len(jobs),
		"failed", failed,
		"workers", d.workers,
		"duration", time.Since(start),
	)
	return out
}

// Submit runs jobs in the background. The returned channel receives the
// outcomes once and is then closed.
func (d *Dispatcher) Submit(ctx context.Context, jobs ...Job) <-chan []Outcome {
	ch := make(chan []Outcome, 1)
	go func() {
		defer close(ch)
		ch <- d.Run(ctx, jobs)
	}()
	return ch
}

func (d *Dispatcher) do(ctx context.Context, job Job) (*persist.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return d.fn(ctx, job.Entity, job.Record)
}
