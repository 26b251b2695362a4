// Package common defines sentinel errors and random-token helpers shared
// across the server layers. Callers should use errors.Is to match the
// sentinel values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("already exists")

	// Capability verification failure (deletion token or append key).
	ErrorForbidden = errors.New("forbidden")

	// Limit errors.
	ErrorSizeLimitExceeded  = errors.New("size limit exceeded")
	ErrorEntryLimitExceeded = errors.New("entry limit exceeded")

	// Operation applied to the wrong record kind (e.g. downloading a post).
	ErrorWrongKind = errors.New("wrong record kind")
)
