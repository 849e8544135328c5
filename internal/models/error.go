package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound     = errors.New("resource not found")
	ErrConflict     = errors.New("resource already exists")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	// Governance errors. None of these are returned for a policy denial;
	// lockouts and exhausted quotas are ordinary decision values.
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrUnknownActor        = errors.New("unknown or unauthenticated actor")
	ErrInvalidActivityType = errors.New("invalid activity type")
)
