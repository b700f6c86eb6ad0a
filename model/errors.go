package model

import "errors"

// Error kinds. Specific errors in other packages wrap one of these.
var (
	// ErrSchema marks a malformed dimension, attribute or schema.
	ErrSchema = errors.New("schema error")

	// ErrDomain marks a coordinate or region outside the declared bounds.
	ErrDomain = errors.New("domain error")

	// ErrShapeMismatch marks a buffer size / cell count disagreement.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrConcurrency marks a conflicting session attempt.
	ErrConcurrency = errors.New("concurrency error")

	// ErrNotFound marks a missing array or a missing tile.
	ErrNotFound = errors.New("not found")

	// ErrStorageIO marks a failure of the underlying persistence layer.
	// It is the only kind that may succeed on retry.
	ErrStorageIO = errors.New("storage i/o error")
)
