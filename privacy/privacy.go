// Package privacy provides rules deciding whether an operation on an entity
// may run, and their evaluation at runtime.
//
// A Policy is an ordered list of rules. Each rule returns Allow, Deny or
// Skip; the first Allow or Deny ends the evaluation, and a policy whose
// rules all skip allows the operation:
//
//	policy := privacy.Policy{
//	    privacy.ReadOnly("audit_log"),
//	    privacy.OnMutation(privacy.DenyIfNoViewer()),
//	}
//	svc := persist.New(cat, persist.WithPolicy(policy))
package privacy

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/syssam/pocket/dialect/sql"
	"github.com/syssam/pocket/record"
)

// Policy decision sentinel errors.
//
//	if errors.Is(err, privacy.Deny) { ... }
var (
	// Allow may be returned by rules to indicate that the policy
	// evaluation should terminate with an allow decision.
	Allow = errors.New("pocket/privacy: allow rule")

	// Deny may be returned by rules to indicate that the policy
	// evaluation should terminate with a deny decision.
	Deny = errors.New("pocket/privacy: deny rule")

	// Skip may be returned by rules to indicate that the policy
	// evaluation should continue to the next rule.
	Skip = errors.New("pocket/privacy: skip rule")
)

// Allowf returns a formatted wrapped Allow decision.
func Allowf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Allow)...)
}

// Denyf returns a formatted wrapped Deny decision.
func Denyf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Deny)...)
}

// Skipf returns a formatted wrapped Skip decision.
func Skipf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Skip)...)
}

// IsDenied reports whether err is a deny decision.
func IsDenied(err error) bool {
	return errors.Is(err, Deny)
}

// Operation describes what is about to run.
type Operation struct {
	Op     sql.Op
	Entity string
	// Path locates an inserted record within its graph, e.g. "order/lineitem[0]".
	Path string
	// Record is the record being inserted or updated.
	Record record.Record
	// ID is the primary key of a get, update or delete.
	ID any
	// Filters are the equality filters of a find.
	Filters map[string]any
}

// IsMutation reports whether the operation writes.
func (o Operation) IsMutation() bool {
	return o.Op != sql.OpSelect
}

// Value returns the scalar value of field, looked up in the record and then
// in the filters.
func (o Operation) Value(field string) (any, bool) {
	if v, ok := o.Record.Get(field); ok {
		return v.Scalar()
	}
	v, ok := o.Filters[field]
	return v, ok
}

// Rule decides whether an operation may run.
type Rule interface {
	Eval(context.Context, Operation) error
}

// RuleFunc is an adapter which allows the use of ordinary functions as rules.
type RuleFunc func(context.Context, Operation) error

// Eval returns f(ctx, op).
func (f RuleFunc) Eval(ctx context.Context, op Operation) error {
	return f(ctx, op)
}

// Policy combines rules, evaluated in order.
type Policy []Rule

// Eval evaluates the policy. It returns nil when the operation is allowed
// and the deciding error otherwise. A decision attached to ctx with
// DecisionContext takes precedence over the rules.
func (p Policy) Eval(ctx context.Context, op Operation) error {
	if decision, ok := DecisionFromContext(ctx); ok {
		return decision
	}
	for _, rule := range p {
		switch decision := rule.Eval(ctx, op); {
		case decision == nil || errors.Is(decision, Skip):
		case errors.Is(decision, Allow):
			return nil
		default:
			return decision
		}
	}
	return nil
}

type decisionCtxKey struct{}

// DecisionContext creates a new context from the given parent context with
// a policy decision attached to it.
func DecisionContext(parent context.Context, decision error) context.Context {
	if decision == nil || errors.Is(decision, Skip) {
		return parent
	}
	return context.WithValue(parent, decisionCtxKey{}, decision)
}

// DecisionFromContext retrieves the policy decision from the context.
func DecisionFromContext(ctx context.Context) (error, bool) {
	decision, ok := ctx.Value(decisionCtxKey{}).(error)
	if ok && errors.Is(decision, Allow) {
		decision = nil
	}
	return decision, ok
}

// AlwaysAllowRule returns a rule that always returns an Allow decision.
func AlwaysAllowRule() Rule {
	return fixedDecision{Allow}
}

// AlwaysDenyRule returns a rule that always returns a Deny decision.
func AlwaysDenyRule() Rule {
	return fixedDecision{Deny}
}

// ContextRule creates a rule from a context evaluation function. Returning
// nil is equivalent to returning Skip.
func ContextRule(eval func(context.Context) error) Rule {
	return RuleFunc(func(ctx context.Context, _ Operation) error {
		return eval(ctx)
	})
}

// OnOperation evaluates rule only for the given statement kinds.
func OnOperation(rule Rule, ops ...sql.Op) Rule {
	return RuleFunc(func(ctx context.Context, op Operation) error {
		if slices.Contains(ops, op.Op) {
			return rule.Eval(ctx, op)
		}
		return Skip
	})
}

// OnMutation evaluates rule only for inserts, updates and deletes.
func OnMutation(rule Rule) Rule {
	return OnOperation(rule, sql.OpInsert, sql.OpUpdate, sql.OpDelete)
}

// OnEntity evaluates rule only for the given entities.
func OnEntity(rule Rule, entities ...string) Rule {
	return RuleFunc(func(ctx context.Context, op Operation) error {
		if slices.Contains(entities, op.Entity) {
			return rule.Eval(ctx, op)
		}
		return Skip
	})
}

// DenyOperationRule returns a rule denying the given statement kind.
func DenyOperationRule(kind sql.Op) Rule {
	return OnOperation(RuleFunc(func(_ context.Context, op Operation) error {
		return Denyf("pocket/privacy: operation %s on %s is not allowed", op.Op, op.Entity)
	}), kind)
}

// AllowOperationRule returns a rule allowing the given statement kind.
func AllowOperationRule(kind sql.Op) Rule {
	return OnOperation(AlwaysAllowRule(), kind)
}

// ReadOnly returns a rule denying every mutation of the given entities.
func ReadOnly(entities ...string) Rule {
	return OnEntity(OnMutation(RuleFunc(func(_ context.Context, op Operation) error {
		return Denyf("pocket/privacy: entity %s is read-only", op.Entity)
	})), entities...)
}

type fixedDecision struct {
	decision error
}

func (f fixedDecision) Eval(context.Context, Operation) error {
	return f.decision
}
