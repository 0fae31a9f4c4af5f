// Package persist is the entry point for persisting input records.
//
// A Service turns an entity name and a record graph into an insert plan and
// runs it all-or-nothing on a caller-supplied connection:
//
//	svc := persist.New(cat)
//	res, err := svc.PersistMap(ctx, db, "order", map[string]any{
//	    "total": 123.45,
//	    "lineitem": []any{
//	        map[string]any{"sku": "ABC"},
//	        map[string]any{"sku": "DEF"},
//	    },
//	})
//	// res.Keys[0].Value is the generated order id
//
// The service holds no connection of its own and never closes the ones it
// is given.
package persist

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"log/slog"

	"github.com/syssam/pocket"
	"github.com/syssam/pocket/catalog"
	"github.com/syssam/pocket/dialect/sql"
	"github.com/syssam/pocket/planner"
	"github.com/syssam/pocket/privacy"
	"github.com/syssam/pocket/record"
	"github.com/syssam/pocket/schema"
)

// Result reports the outcome of a Persist call.
type Result struct {
	// AffectedRows is the total row count across all statements.
	AffectedRows int64
	// GeneratedKeys holds the keys reported by the backend, in statement
	// order. Drivers that do not report them leave it empty.
	GeneratedKeys []any
	// Keys holds the primary key of every inserted record, in statement order.
	Keys []planner.Key
	// Record is a copy of the input carrying every primary and foreign key.
	Record record.Record
}

// ID returns the primary key of the top-level record.
func (r *Result) ID() any {
	if len(r.Keys) == 0 {
		return nil
	}
	return r.Keys[0].Value
}

// Service persists records described by a catalog.
type Service struct {
	planner  *planner.Planner
	log      *slog.Logger
	keys     planner.KeyGenerator
	execOpts []sql.Option
	stats    *sql.QueryStats
	policy   privacy.Policy
}

// Option configures a Service.
type Option func(*Service)

// WithKeyGenerator sets the generator for missing primary keys.
func WithKeyGenerator(g planner.KeyGenerator) Option {
	return func(s *Service) {
		s.keys = g
	}
}

// WithLogger sets the logger used by the service, its planner and executors.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithExecutorOptions sets options applied to every executor the service
// creates, e.g. sql.WithDialect or sql.WithSlowThreshold.
func WithExecutorOptions(opts ...sql.Option) Option {
	return func(s *Service) {
		s.execOpts = append(s.execOpts, opts...)
	}
}

// WithPolicy sets the policy every operation is checked against before any
// statement runs. An insert is checked once per record of its graph.
func WithPolicy(p privacy.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// New returns a service planning against src.
func New(src catalog.Source, opts ...Option) *Service {
	s := &Service{
		log:   slog.Default(),
		stats: &sql.QueryStats{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.planner = planner.New(src, planner.WithKeyGenerator(s.keys), planner.WithLogger(s.log))
	return s
}

// Planner returns the planner used by the service.
func (s *Service) Planner() *planner.Planner { return s.planner }

// QueryStats returns the statistics shared by every executor of the service.
func (s *Service) QueryStats() *sql.QueryStats { return s.stats }

func (s *Service) executor(conn sql.Conn) *sql.Executor {
	opts := make([]sql.Option, 0, len(s.execOpts)+2)
	opts = append(opts, sql.WithLogger(s.log), sql.WithStats(s.stats))
	opts = append(opts, s.execOpts...)
	return sql.NewExecutor(conn, opts...)
}

// Persist inserts rec and every nested child record as entity, in a single
// transaction on conn. Nothing is written when any statement fails.
// Planning errors are returned before the connection is touched.
func (s *Service) Persist(ctx context.Context, conn sql.Conn, entity string, rec record.Record) (*Result, error) {
	plan, err := s.plan(ctx, entity, rec)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, conn, entity, plan)
}

func (s *Service) plan(ctx context.Context, entity string, rec record.Record) (*planner.Plan, error) {
	plan, err := s.planner.BuildInsertPlan(entity, rec)
	if err != nil {
		return nil, err
	}
	for i, k := range plan.Keys {
		op := privacy.Operation{Op: sql.OpInsert, Entity: k.Entity, Path: k.Path, Record: plan.Records[i]}
		if err := s.policy.Eval(ctx, op); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

func (s *Service) run(ctx context.Context, conn sql.Conn, entity string, plan *planner.Plan) (*Result, error) {
	res, err := s.executor(conn).ExecuteInTransaction(ctx, plan.Statements, true)
	if err != nil {
		return nil, err
	}
	s.log.DebugContext(ctx, "persisted record",
		"entity", entity,
		"statements", len(plan.Statements),
		"rows", res.AffectedRows,
		"id", plan.RootKey().Value,
	)
	return &Result{
		AffectedRows:  res.AffectedRows,
		GeneratedKeys: res.GeneratedKeys,
		Keys:          plan.Keys,
		Record:        plan.Record,
	}, nil
}

// PersistMap is like Persist for an untyped input, as decoded from JSON.
func (s *Service) PersistMap(ctx context.Context, conn sql.Conn, entity string, m map[string]any) (*Result, error) {
	rec, err := record.FromMap(m)
	if err != nil {
		return nil, pocket.NewValidationError(entity, "", err)
	}
	return s.Persist(ctx, conn, entity, rec)
}

// PersistDB is like Persist, but runs on a connection of its own taken from
// the db pool and released when the call returns.
func (s *Service) PersistDB(ctx context.Context, db *stdsql.DB, entity string, rec record.Record) (*Result, error) {
	plan, err := s.plan(ctx, entity, rec)
	if err != nil {
		return nil, err
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, pocket.NewExecutionError("connect", -1, "", err)
	}
	defer conn.Close()
	return s.run(ctx, conn, entity, plan)
}

// Update applies the declared fields present in rec to the row keyed by
// its primary key.
func (s *Service) Update(ctx context.Context, conn sql.Conn, entity string, rec record.Record) (sql.Result, error) {
	stmt, err := s.planner.BuildUpdate(entity, rec)
	if err != nil {
		return sql.Result{}, err
	}
	op := privacy.Operation{Op: sql.OpUpdate, Entity: entity, Record: rec, ID: stmt.Args[len(stmt.Args)-1]}
	if err := s.policy.Eval(ctx, op); err != nil {
		return sql.Result{}, err
	}
	return s.executor(conn).Execute(ctx, stmt, false)
}

// Delete removes the row of entity keyed by id.
func (s *Service) Delete(ctx context.Context, conn sql.Conn, entity string, id any) (sql.Result, error) {
	stmt, err := s.planner.BuildDelete(entity, id)
	if err != nil {
		return sql.Result{}, err
	}
	if err := s.policy.Eval(ctx, privacy.Operation{Op: sql.OpDelete, Entity: entity, ID: id}); err != nil {
		return sql.Result{}, err
	}
	return s.executor(conn).Execute(ctx, stmt, false)
}

// Find returns the rows of entity matching every filter, keyed by field
// name. Filters on undeclared fields are ignored.
func (s *Service) Find(ctx context.Context, conn sql.Conn, entity string, filters map[string]any) ([]map[string]any, error) {
	stmt, err := s.planner.BuildSelect(entity, filters)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Eval(ctx, privacy.Operation{Op: sql.OpSelect, Entity: entity, Filters: filters}); err != nil {
		return nil, err
	}
	rows, err := s.executor(conn).Query(ctx, stmt)
	if err != nil {
		return nil, err
	}
	return s.byField(entity, rows), nil
}

// Get returns the row of entity keyed by id. A missing row is reported as
// an error matching pocket.ErrNoRows (and so pocket.ErrNotFound).
func (s *Service) Get(ctx context.Context, conn sql.Conn, entity string, id any) (map[string]any, error) {
	stmt, err := s.planner.BuildGet(entity, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Eval(ctx, privacy.Operation{Op: sql.OpSelect, Entity: entity, ID: id}); err != nil {
		return nil, err
	}
	rows, err := s.executor(conn).Query(ctx, stmt)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s %v", pocket.ErrNoRows, entity, id)
	}
	return s.byField(entity, rows)[0], nil
}

// byField renames the columns of rows to the field names of entity.
func (s *Service) byField(entity string, rows []map[string]any) []map[string]any {
	e, err := s.planner.Catalog().Get(entity)
	if err != nil {
		return rows
	}
	names := fieldNames(e)
	for i, row := range rows {
		out := make(map[string]any, len(row))
		for col, v := range row {
			if name, ok := names[col]; ok {
				col = name
			}
			out[col] = v
		}
		rows[i] = out
	}
	return rows
}

func fieldNames(e *schema.Entity) map[string]string {
	names := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		names[f.Column] = f.Name
	}
	return names
}
