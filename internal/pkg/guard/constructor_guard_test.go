package guard_test

import (
	"errors"
	"testing"

	"freight/internal/pkg/guard"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorGuard_Validate(t *testing.T) {
	errNotConstructed := errors.New("allocation not constructed")

	t.Run("constructed_guard_returns_nil", func(t *testing.T) {
		g := guard.NewConstructorGuard()

		require.NoError(t, g.Validate(errNotConstructed))
		require.NoError(t, g.Validate(nil))
	})

	t.Run("zero_value_guard_returns_given_error", func(t *testing.T) {
		var g guard.ConstructorGuard

		err := g.Validate(errNotConstructed)

		require.Error(t, err)
		assert.Equal(t, errNotConstructed, err)
	})

	t.Run("zero_value_guard_falls_back_to_default_error", func(t *testing.T) {
		var g guard.ConstructorGuard

		assert.Equal(t, guard.ErrDefaultConstructorGuard, g.Validate(nil))
	})
}

func TestConstructorGuard_EmbeddedInValueObject(t *testing.T) {
	type allocation struct {
		weight float64
		guard  guard.ConstructorGuard
	}
	errAllocationNotConstructed := errors.New("allocation must be created via newAllocation")

	newAllocation := func(weight float64) (allocation, error) {
		if weight <= 0 {
			return allocation{}, errors.New("weight must be positive")
		}
		return allocation{weight: weight, guard: guard.NewConstructorGuard()}, nil
	}

	a, err := newAllocation(250)
	require.NoError(t, err)
	require.NoError(t, a.guard.Validate(errAllocationNotConstructed))
	assert.InDelta(t, 250.0, a.weight, 1e-9)

	_, err = newAllocation(-1)
	require.Error(t, err)

	var zero allocation
	require.ErrorIs(t, zero.guard.Validate(errAllocationNotConstructed), errAllocationNotConstructed)
}
