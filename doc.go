// Package pocket holds the error taxonomy shared by the persistence engine.
//
// The engine turns untyped input records into parameterized SQL statements
// from a catalog of entity descriptors, and executes multi-row parent/child
// insert graphs in a single transaction. The packages are layered leaf-first:
//
//   - schema: entity and field descriptors, struct-tag binding
//   - record: the tagged-variant input record
//   - catalog: the immutable descriptor registry (catalog/load reads YAML)
//   - planner: statement builders and the recursive insert plan
//   - dialect/sql: the statement executor and connection contract
//   - persist: the facade composing planner and executor
//   - dispatch: whole Persist calls on a caller-owned worker pool
//
// # Errors
//
// Every error the engine raises is one of:
//
//   - NotFoundError: unknown entity name
//   - ValidationError: missing required field, missing key, empty update
//   - ConfigurationError: a descriptor violating the metadata invariants
//   - ExecutionError: a backend failure; may wrap a ConstraintError
//
// NotFoundError, ValidationError and ConfigurationError are raised before any
// SQL reaches the backend. An ExecutionError raised mid-plan is returned only
// after the transaction has been rolled back.
//
//	res, err := svc.Persist(ctx, conn, "order", rec)
//	switch {
//	case pocket.IsValidationError(err):
//	    // reject the input
//	case pocket.IsConstraintError(err):
//	    // conflict
//	}
package pocket
