package lifecycle

import "errors"

var (
	// ErrIllegalTransition is returned when the requested (from, to) pair is
	// not in the legal transition table.
	ErrIllegalTransition = errors.New("illegal lifecycle transition")

	// ErrConcurrentModification is returned when the customer's status
	// changed between read and write and the automatic retry also lost.
	ErrConcurrentModification = errors.New("customer was modified concurrently")

	// ErrPermissionDenied is returned when the actor lacks the role required
	// for a lifecycle transition.
	ErrPermissionDenied = errors.New("permission denied")
)
