package pocket_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/pocket"
)

func TestNotFoundError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := pocket.NewNotFoundError("order")
		assert.Equal(t, `pocket: unknown entity "order"`, err.Error())
		assert.Equal(t, "order", err.Entity())
	})

	t.Run("Is", func(t *testing.T) {
		err := pocket.NewNotFoundError("order")
		assert.True(t, errors.Is(err, pocket.ErrNotFound))
	})

	t.Run("IsNotFound", func(t *testing.T) {
		err := pocket.NewNotFoundError("lineitem")
		assert.True(t, pocket.IsNotFound(err))

		// Wrapped error
		wrapped := fmt.Errorf("wrapper: %w", err)
		assert.True(t, pocket.IsNotFound(wrapped))

		// Sentinel error
		assert.True(t, pocket.IsNotFound(pocket.ErrNotFound))

		// Non-matching error
		assert.False(t, pocket.IsNotFound(errors.New("other error")))
		assert.False(t, pocket.IsNotFound(nil))
	})

	t.Run("NoRows", func(t *testing.T) {
		err := fmt.Errorf("%w: order o-1", pocket.ErrNoRows)
		assert.True(t, pocket.IsNotFound(err))
		assert.True(t, errors.Is(err, pocket.ErrNotFound))
		assert.Equal(t, "pocket: not found: no row with that key: order o-1", err.Error())
		assert.False(t, errors.Is(pocket.NewNotFoundError("order"), pocket.ErrNoRows))
	})
}

func TestValidationError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := pocket.NewValidationError("customer", "name", pocket.ErrRequired)
		assert.Equal(t, "pocket: invalid customer.name: required field is missing", err.Error())

		err = pocket.NewValidationError("customer", "", pocket.ErrEmptyUpdate)
		assert.Equal(t, "pocket: invalid customer: no fields provided to update", err.Error())
	})

	t.Run("Unwrap", func(t *testing.T) {
		err := pocket.NewValidationError("customer", "id", pocket.ErrMissingKey)
		assert.True(t, errors.Is(err, pocket.ErrMissingKey))
	})

	t.Run("IsValidationError", func(t *testing.T) {
		err := pocket.NewValidationError("customer", "age", errors.New("must be positive"))
		assert.True(t, pocket.IsValidationError(err))
		assert.True(t, pocket.IsValidationError(fmt.Errorf("wrapper: %w", err)))
		assert.False(t, pocket.IsValidationError(errors.New("other error")))
		assert.False(t, pocket.IsValidationError(nil))
	})
}

func TestConfigurationError(t *testing.T) {
	err := pocket.NewConfigurationError("order", "no primary key")
	assert.Equal(t, "pocket: bad configuration for order: no primary key", err.Error())
	assert.Equal(t, "pocket: bad configuration: empty catalog", pocket.NewConfigurationError("", "empty catalog").Error())
	assert.True(t, pocket.IsConfigurationError(fmt.Errorf("load: %w", err)))
	assert.False(t, pocket.IsConfigurationError(nil))
}

func TestExecutionError(t *testing.T) {
	underlying := errors.New("syntax error")

	t.Run("Error", func(t *testing.T) {
		err := pocket.NewExecutionError("exec", 2, "INSERT INTO x", underlying)
		assert.Equal(t, "pocket: exec statement 2: syntax error", err.Error())

		err = pocket.NewExecutionError("commit", -1, "", underlying)
		assert.Equal(t, "pocket: commit: syntax error", err.Error())
	})

	t.Run("Unwrap", func(t *testing.T) {
		err := pocket.NewExecutionError("exec", 0, "", underlying)
		assert.True(t, errors.Is(err, underlying))
		assert.True(t, pocket.IsExecutionError(err))
		assert.False(t, pocket.IsExecutionError(underlying))
	})
}

func TestConstraintError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := pocket.NewConstraintError("UNIQUE constraint failed", nil)
		assert.Equal(t, "pocket: constraint failed: UNIQUE constraint failed", err.Error())
	})

	t.Run("IsConstraintError", func(t *testing.T) {
		underlying := errors.New("db error")
		err := pocket.NewConstraintError("check failed", underlying)
		assert.True(t, errors.Is(err, underlying))
		assert.True(t, pocket.IsConstraintError(err))

		// Nested inside an execution error
		wrapped := pocket.NewExecutionError("exec", 1, "", err)
		assert.True(t, pocket.IsConstraintError(wrapped))

		assert.False(t, pocket.IsConstraintError(errors.New("other error")))
		assert.False(t, pocket.IsConstraintError(nil))
	})
}

func TestRollbackError(t *testing.T) {
	underlying := errors.New("connection lost")
	err := &pocket.RollbackError{Err: underlying}
	assert.Equal(t, "pocket: rollback failed: connection lost", err.Error())
	assert.True(t, errors.Is(err, underlying))
}

func BenchmarkErrors(b *testing.B) {
	b.Run("NewNotFoundError", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = pocket.NewNotFoundError("order")
		}
	})

	b.Run("IsValidationError", func(b *testing.B) {
		err := fmt.Errorf("wrap: %w", pocket.NewValidationError("order", "id", pocket.ErrMissingKey))
		for i := 0; i < b.N; i++ {
			_ = pocket.IsValidationError(err)
		}
	})
}
