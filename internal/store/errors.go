package store

import "errors"

// ErrNotFound is returned when a record does not exist in the tenant.
var ErrNotFound = errors.New("record not found")
