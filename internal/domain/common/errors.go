package common

import "errors"

// Sentinel errors shared across domain handlers. RespondError maps them
// to HTTP status codes; wrap them with fmt.Errorf("%w: ...") to attach
// request-specific detail.
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
	ErrBadRequest      = errors.New("invalid request")
)
