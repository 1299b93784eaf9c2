package checklist

import "errors"

var (
	// ErrInstantiationConflict is returned when an in-progress instance
	// already exists for the customer and template.
	ErrInstantiationConflict = errors.New("an in-progress checklist instance already exists")

	// ErrNoDefaultTemplate is returned when the organization has no default
	// template of the requested kind.
	ErrNoDefaultTemplate = errors.New("no default checklist template configured")

	// ErrInvalidSkipReason is returned when a skip is requested without a
	// reason. Rejected before any mutation.
	ErrInvalidSkipReason = errors.New("a reason is required to skip a checklist item")

	// ErrItemNotReopenable is returned when reopening an item that is not
	// COMPLETED or SKIPPED.
	ErrItemNotReopenable = errors.New("only completed or skipped items can be reopened")

	// ErrItemNotActionable is returned when mutating an item that has been
	// cancelled, or any item of a cancelled instance.
	ErrItemNotActionable = errors.New("checklist item or its instance is cancelled")

	// ErrInstanceNotCancellable is returned when cancelling an instance that
	// is not in progress.
	ErrInstanceNotCancellable = errors.New("only in-progress checklist instances can be cancelled")

	// ErrPermissionDenied is returned when the actor lacks the role required
	// for a mutating checklist operation.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrTemplateNotFound is returned when the template does not exist in
	// the tenant.
	ErrTemplateNotFound = errors.New("checklist template not found")

	// ErrInstanceNotFound is returned when the instance does not exist in
	// the tenant.
	ErrInstanceNotFound = errors.New("checklist instance not found")

	// ErrItemNotFound is returned when the item does not exist in the tenant.
	ErrItemNotFound = errors.New("checklist item not found")
)
