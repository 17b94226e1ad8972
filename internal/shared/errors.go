package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrActorMissing occurs when a mutating request carries no identity.
	ErrActorMissing = errors.New("actor identity missing")
)
