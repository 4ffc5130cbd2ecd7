package savedquery

import "errors"

var (
	// ErrEmptyName is returned when a name is empty after trimming whitespace.
	ErrEmptyName = errors.New("saved query name is required")
	// ErrNotFound is returned when no saved query has the requested id.
	ErrNotFound = errors.New("saved query not found")
)
