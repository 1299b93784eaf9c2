package retention

import "errors"

var (
	// ErrRecordLocked means a record matched for a destructive action cannot
	// be acted on because of a referential constraint (e.g. an unpaid
	// invoice still references the customer). Reported per record; never
	// aborts the batch.
	ErrRecordLocked = errors.New("record is locked by a referential constraint")

	// ErrUnsupportedAction means the record type cannot carry the requested
	// action (e.g. anonymizing an audit event).
	ErrUnsupportedAction = errors.New("action not supported for this record type")

	// ErrPermissionDenied is returned when the actor lacks the role required
	// to execute retention actions.
	ErrPermissionDenied = errors.New("permission denied")
)
