package order_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/platepilot/ordering/internal/order"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, next order.Status }{
		{order.StatusPending, order.StatusConfirmed},
		{order.StatusPending, order.StatusCancelled},
		{order.StatusConfirmed, order.StatusPreparing},
		{order.StatusConfirmed, order.StatusCancelled},
		{order.StatusPreparing, order.StatusOutForDelivery},
		{order.StatusPreparing, order.StatusCancelled},
		{order.StatusOutForDelivery, order.StatusDelivered},
		{order.StatusOutForDelivery, order.StatusCancelled},
	}
	for _, tr := range allowed {
		assert.True(t, order.CanTransition(tr.from, tr.next), "%s -> %s should be allowed", tr.from, tr.next)
	}

	denied := []struct{ from, next order.Status }{
		{order.StatusPending, order.StatusPreparing},
		{order.StatusPending, order.StatusDelivered},
		{order.StatusConfirmed, order.StatusPending},
		{order.StatusPreparing, order.StatusConfirmed},
		{order.StatusOutForDelivery, order.StatusPreparing},
		{order.StatusDelivered, order.StatusCancelled},
		{order.StatusDelivered, order.StatusPending},
		{order.StatusCancelled, order.StatusConfirmed},
		{order.StatusCancelled, order.StatusCancelled},
		{order.StatusPending, order.StatusPending},
	}
	for _, tr := range denied {
		assert.False(t, order.CanTransition(tr.from, tr.next), "%s -> %s should be denied", tr.from, tr.next)
	}
}

func TestCheckTransition(t *testing.T) {
	tests := []struct {
		name      string
		from      order.Status
		next      order.Status
		wantErrIs error
	}{
		{name: "forward_step", from: order.StatusPending, next: order.StatusConfirmed},
		{name: "cancel_non_terminal", from: order.StatusPreparing, next: order.StatusCancelled},
		{name: "unknown_status", from: order.StatusPending, next: order.Status("shipped"), wantErrIs: order.ErrInvalidOrder},
		{name: "skip_ahead", from: order.StatusPending, next: order.StatusOutForDelivery, wantErrIs: order.ErrConflict},
		{name: "backward", from: order.StatusPreparing, next: order.StatusConfirmed, wantErrIs: order.ErrConflict},
		{name: "out_of_terminal", from: order.StatusDelivered, next: order.StatusPreparing, wantErrIs: order.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := order.CheckTransition(tt.from, tt.next)
			if tt.wantErrIs != nil {
				assert.True(t, errors.Is(err, tt.wantErrIs), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckCancel(t *testing.T) {
	for _, s := range []order.Status{order.StatusPending, order.StatusConfirmed, order.StatusPreparing, order.StatusOutForDelivery} {
		assert.NoError(t, order.CheckCancel(s), "cancel from %s should be allowed", s)
	}

	err := order.CheckCancel(order.StatusDelivered)
	assert.True(t, errors.Is(err, order.ErrConflict))
	assert.EqualError(t, err, "conflict: cannot cancel an order with status delivered")

	err = order.CheckCancel(order.StatusCancelled)
	assert.True(t, errors.Is(err, order.ErrConflict))
	assert.EqualError(t, err, "conflict: cannot cancel an order with status cancelled")
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, order.StatusDelivered.Terminal())
	assert.True(t, order.StatusCancelled.Terminal())
	assert.False(t, order.StatusPending.Terminal())
	assert.False(t, order.StatusOutForDelivery.Terminal())
}

func TestStatusValid(t *testing.T) {
	for _, s := range []order.Status{
		order.StatusPending, order.StatusConfirmed, order.StatusPreparing,
		order.StatusOutForDelivery, order.StatusDelivered, order.StatusCancelled,
	} {
		assert.True(t, s.Valid())
	}
	assert.False(t, order.Status("shipped").Valid())
	assert.False(t, order.Status("").Valid())
}
