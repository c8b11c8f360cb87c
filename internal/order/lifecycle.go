package order

import "fmt"

// allowedTransitions is the forward-only status graph. Every non-terminal
// status may be cancelled; delivered and cancelled are terminal.
//
// Administrator updates are validated against the full graph, not just
// status-string membership: a looser rule would let a delivered order be
// pulled back to preparing and corrupt the kitchen's view of the queue.
var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusConfirmed: true,
		StatusCancelled: true,
	},
	StatusConfirmed: {
		StatusPreparing: true,
		StatusCancelled: true,
	},
	StatusPreparing: {
		StatusOutForDelivery: true,
		StatusCancelled:      true,
	},
	StatusOutForDelivery: {
		StatusDelivered: true,
		StatusCancelled: true,
	},
	StatusDelivered: {},
	StatusCancelled: {},
}

// CanTransition reports whether moving from to next is a legal step.
func CanTransition(from, next Status) bool {
	return allowedTransitions[from][next]
}

// CheckTransition validates an administrator status update: next must be a
// known status and the move must follow the transition graph.
func CheckTransition(from, next Status) error {
	if !next.Valid() {
		return fmt.Errorf("%w: invalid status %q", ErrInvalidOrder, next)
	}
	if !CanTransition(from, next) {
		return fmt.Errorf("%w: cannot change status from %s to %s", ErrConflict, from, next)
	}
	return nil
}

// CheckCancel validates an owner- or administrator-initiated cancellation
// of an order currently in status from.
func CheckCancel(from Status) error {
	if from.Terminal() {
		return fmt.Errorf("%w: cannot cancel an order with status %s", ErrConflict, from)
	}
	return nil
}
