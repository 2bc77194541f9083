package types

import "errors"

// Config validation errors.
var (
	ErrBackendEmpty   = errors.New("backend must not be empty")
	ErrBackendUnknown = errors.New("unknown backend")
	ErrDuplicateUser  = errors.New("duplicate user id")
)

// Session store lifecycle errors.
var (
	ErrAlreadyAttached = errors.New("session store already attached")
	ErrDetached        = errors.New("session store is detached")
)

// Request and storage errors. Callers match them with errors.Is; storage
// implementations wrap the underlying cause.
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrForbidden        = errors.New("access denied")
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrInvalidInput     = errors.New("invalid input")
	ErrSerialization    = errors.New("serialization error")
	ErrIO               = errors.New("io error")
)
