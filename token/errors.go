package token

import "errors"

var (
	// ErrNotFound is returned when a referenced token id or name does not exist.
	ErrNotFound = errors.New("token not found")
	// ErrOwnerNotFound is returned when the owner does not resolve to a principal.
	ErrOwnerNotFound = errors.New("owner not found")
	// ErrInvalidArgument is returned for malformed requests: a missing or
	// ambiguous revocation selector, a non-positive expiry count.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict is reserved for future uniqueness enforcement on (owner, name).
	ErrConflict = errors.New("token name conflict")
	// ErrInvalidToken is returned when a presented secret matches no active token.
	ErrInvalidToken = errors.New("invalid token")
)
