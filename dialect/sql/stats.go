package sql

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// QueryStats holds query execution statistics.
type QueryStats struct {
	// TotalQueries is the total number of queries executed.
	TotalQueries atomic.Int64
	// TotalExecs is the total number of exec statements executed.
	TotalExecs atomic.Int64
	// TotalDuration is the total time spent executing queries.
	TotalDuration atomic.Int64 // nanoseconds
	// SlowQueries is the count of queries exceeding the slow threshold.
	SlowQueries atomic.Int64
	// Errors is the count of query errors.
	Errors atomic.Int64
	// Commits and Rollbacks count finished transactions.
	Commits   atomic.Int64
	Rollbacks atomic.Int64
}

// Stats returns a snapshot of the current statistics.
func (s *QueryStats) Stats() StatsSnapshot {
	return StatsSnapshot{
		TotalQueries:  s.TotalQueries.Load(),
		TotalExecs:    s.TotalExecs.Load(),
		TotalDuration: time.Duration(s.TotalDuration.Load()),
		SlowQueries:   s.SlowQueries.Load(),
		Errors:        s.Errors.Load(),
		Commits:       s.Commits.Load(),
		Rollbacks:     s.Rollbacks.Load(),
	}
}

// Reset resets all statistics to zero.
func (s *QueryStats) Reset() {
	s.TotalQueries.Store(0)
	s.TotalExecs.Store(0)
	s.TotalDuration.Store(0)
	s.SlowQueries.Store(0)
	s.Errors.Store(0)
	s.Commits.Store(0)
	s.Rollbacks.Store(0)
}

// StatsSnapshot is a point-in-time snapshot of query statistics.
type StatsSnapshot struct {
	TotalQueries  int64
	TotalExecs    int64
	TotalDuration time.Duration
	SlowQueries   int64
	Errors        int64
	Commits       int64
	Rollbacks     int64
}

// AvgQueryDuration returns the average query duration.
func (s StatsSnapshot) AvgQueryDuration() time.Duration {
	total := s.TotalQueries + s.TotalExecs
	if total == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(total)
}

// String returns a human-readable summary of the statistics.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"queries=%d execs=%d duration=%s avg=%s slow=%d errors=%d commits=%d rollbacks=%d",
		s.TotalQueries, s.TotalExecs, s.TotalDuration, s.AvgQueryDuration(),
		s.SlowQueries, s.Errors, s.Commits, s.Rollbacks,
	)
}

// SlowQueryHook is a function called when a slow query is detected.
type SlowQueryHook func(ctx context.Context, query string, args []any, duration time.Duration)

// WithStats makes the executor record into s instead of a private QueryStats,
// so several executors can share one set of counters.
func WithStats(s *QueryStats) Option {
	return func(e *Executor) {
		e.stats = s
	}
}

// WithSlowThreshold sets the threshold for slow query detection.
// Queries taking longer than this duration will be counted as slow queries.
// Default is 100ms.
func WithSlowThreshold(d time.Duration) Option {
	return func(e *Executor) {
		e.slowThreshold = d
	}
}

// WithSlowQueryHook sets a callback function for slow queries.
// The hook is called whenever a query exceeds the slow threshold.
func WithSlowQueryHook(hook SlowQueryHook) Option {
	return func(e *Executor) {
		e.slowHook = hook
	}
}

// WithSlowQueryLog logs slow queries to the executor's logger.
// This is a convenience wrapper around WithSlowQueryHook.
func WithSlowQueryLog() Option {
	return func(e *Executor) {
		e.slowHook = func(ctx context.Context, query string, args []any, duration time.Duration) {
			e.log.WarnContext(ctx, "slow query detected", "duration", duration, "query", query, "args", args)
		}
	}
}

// SlowThreshold returns the current slow query threshold.
func (e *Executor) SlowThreshold() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.slowThreshold
}

// SetSlowThreshold updates the slow query threshold.
func (e *Executor) SetSlowThreshold(threshold time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.slowThreshold = threshold
}

func (e *Executor) record(ctx context.Context, query string, args []any, start time.Time, err error, isQuery bool) {
	duration := time.Since(start)
	if isQuery {
		e.stats.TotalQueries.Add(1)
	} else {
		e.stats.TotalExecs.Add(1)
	}
	e.stats.TotalDuration.Add(int64(duration))

	if err != nil {
		e.stats.Errors.Add(1)
	}

	e.mu.RLock()
	threshold := e.slowThreshold
	hook := e.slowHook
	e.mu.RUnlock()

	if duration > threshold {
		e.stats.SlowQueries.Add(1)
		if hook != nil {
			hook(ctx, query, args, duration)
		}
	}
}
