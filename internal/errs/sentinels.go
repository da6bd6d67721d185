// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict indicates a compare-and-swap update lost a race
	// (the stored credential changed underneath the caller).
	ErrVersionConflict = errors.New("version conflict")

	// ErrUnauthorized indicates failed authentication.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., name taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the caller's input violates account policy.
	ErrInvalidInput = errors.New("invalid input")
)

// Credential hasher sentinels.
var (
	// ErrEntropySource indicates the secure random source failed. Retryable.
	ErrEntropySource = errors.New("entropy source unavailable")

	// ErrInvalidParameters indicates hash parameters outside the algorithm's
	// bounds. A configuration error; not retryable.
	ErrInvalidParameters = errors.New("invalid hash parameters")

	// ErrMalformedRecord indicates a stored credential that cannot be parsed
	// or violates its algorithm's length contract (corruption or tampering).
	ErrMalformedRecord = errors.New("malformed credential record")

	// ErrUnsupportedAlgorithm indicates a credential produced by an algorithm
	// this build cannot verify; the account needs a password reset.
	ErrUnsupportedAlgorithm = errors.New("unsupported credential algorithm")
)
