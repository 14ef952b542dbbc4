// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service/client layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates malformed input or a missing required field.
	ErrValidation = errors.New("validation failed")

	// ErrUnavailable indicates the remote service could not be reached (timeout, abort, network).
	ErrUnavailable = errors.New("server unavailable")

	// ErrStorage indicates a local tier (cache or snapshot store) failed to read or write.
	ErrStorage = errors.New("storage failure")

	// ErrCorrupt indicates persisted state that could not be decoded or failed its checksum.
	ErrCorrupt = errors.New("corrupt persisted state")

	// ErrNoActiveProject indicates a timer operation that needs a selected project.
	ErrNoActiveProject = errors.New("no active project selected")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., duplicate id).
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnauthorized indicates a missing or invalid access token.
	ErrUnauthorized = errors.New("unauthorized")
)
