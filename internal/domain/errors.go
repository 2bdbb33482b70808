package domain

import "errors"

var (
	// ErrPlayerNotFound indicates that an id does not resolve to a player row.
	ErrPlayerNotFound = errors.New("player not found")

	// ErrTransient marks storage failures that are safe to retry once the
	// transaction has been rolled back: deadlock, lock wait timeout,
	// serialization failure, lost connection. The repository wraps driver
	// errors with it; callers test with errors.Is.
	ErrTransient = errors.New("transient storage failure")
)
