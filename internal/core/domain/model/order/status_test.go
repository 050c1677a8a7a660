package order_test

import (
	"testing"

	"freight/internal/core/domain/model/order"
	"freight/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	for _, s := range []order.Status{
		order.StatusOpen, order.StatusPartiallyFilled, order.StatusFilled,
		order.StatusInProgress, order.StatusCompleted, order.StatusCancelled,
	} {
		parsed, err := order.ParseStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
		require.NoError(t, s.Validate())
	}

	assert.True(t, order.StatusOpen.AcceptsBids())
	assert.True(t, order.StatusPartiallyFilled.AcceptsBids())
	assert.False(t, order.StatusFilled.AcceptsBids())
	assert.True(t, order.StatusCancelled.IsTerminal())
	assert.False(t, order.StatusInProgress.IsTerminal())

	require.ErrorIs(t, order.StatusUnknown.Validate(), errs.ErrValueIsInvalid)
	_, err := order.ParseStatus("SHIPPED")
	require.ErrorIs(t, err, errs.ErrValueIsInvalid)
	assert.Equal(t, "UNKNOWN", order.Status(42).String())
}

func TestPartialStatus(t *testing.T) {
	tests := []struct {
		status    order.PartialStatus
		pending   bool
		committed bool
	}{
		{order.PartialAvailable, true, false},
		{order.PartialBidding, true, false},
		{order.PartialAwarded, false, true},
		{order.PartialInProgress, false, true},
		{order.PartialCompleted, false, true},
		{order.PartialCancelled, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			assert.Equal(t, tt.pending, tt.status.IsPending())
			assert.Equal(t, tt.committed, tt.status.IsCommitted())
			assert.Equal(t, tt.pending || tt.committed, tt.status.IsActive())

			parsed, err := order.ParsePartialStatus(tt.status.String())
			require.NoError(t, err)
			assert.Equal(t, tt.status, parsed)
		})
	}

	_, err := order.ParsePartialStatus("LOST")
	require.ErrorIs(t, err, errs.ErrValueIsInvalid)
}
