package tessera

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/tessera/blobstore"
	"github.com/hupe1980/tessera/internal/columnar"
	"github.com/hupe1980/tessera/internal/resource"
	"github.com/hupe1980/tessera/model"
	"github.com/hupe1980/tessera/schema"
)

// Error kinds. Every error returned by this package matches exactly one of
// them with errors.Is.
var (
	ErrSchema        = model.ErrSchema
	ErrDomain        = model.ErrDomain
	ErrShapeMismatch = model.ErrShapeMismatch
	ErrConcurrency   = model.ErrConcurrency
	ErrNotFound      = model.ErrNotFound
	ErrStorageIO     = model.ErrStorageIO
)

var (
	// ErrOutOfDomain is returned for coordinates or regions outside the domain.
	ErrOutOfDomain = schema.ErrOutOfDomain

	// ErrInvalidRegion is returned for regions of the wrong rank or with an
	// inverted range.
	ErrInvalidRegion = schema.ErrInvalidRegion

	// ErrAttributeSchemaMismatch is returned when a write names an attribute
	// that is not in the schema or supplies a buffer of another cell type.
	ErrAttributeSchemaMismatch = fmt.Errorf("%w: attribute does not match schema", model.ErrSchema)

	// ErrUnknownAttribute is returned when a read selects an attribute that
	// is not in the schema.
	ErrUnknownAttribute = fmt.Errorf("%w: unknown attribute", model.ErrSchema)

	// ErrAlreadyExists is returned by CreateArray when an array is present.
	ErrAlreadyExists = fmt.Errorf("%w: array already exists", model.ErrConcurrency)

	// ErrSchemaNotFound is returned when no array exists at a URI.
	ErrSchemaNotFound = fmt.Errorf("%w: array schema not found", model.ErrNotFound)

	// ErrIncompatibleMode is returned when a write session is already active
	// on the array, or when a session is used against its mode.
	ErrIncompatibleMode = fmt.Errorf("%w: incompatible session mode", model.ErrConcurrency)

	// ErrClosed is returned when a closed session or engine is used.
	ErrClosed = fmt.Errorf("%w: closed", model.ErrConcurrency)

	// ErrTileNotFound is returned when reading cells that were never written.
	ErrTileNotFound = columnar.ErrTileNotFound

	// ErrMemoryLimitExceeded is returned when pending tiles would exceed the
	// engine memory budget. Closing or aborting other write sessions frees
	// memory, so the call may succeed on retry.
	ErrMemoryLimitExceeded = fmt.Errorf("%w: %w", model.ErrStorageIO, resource.ErrMemoryLimitExceeded)
)

// ShapeMismatchError reports a buffer whose cell count differs from the
// region's.
type ShapeMismatchError struct {
	Attribute string
	Expected  int64 // cells in the region
	Actual    int64 // cells in the buffer; -1 if the byte length is not a whole number of cells
}

func (e *ShapeMismatchError) Error() string {
	if e.Actual < 0 {
		return fmt.Sprintf("shape mismatch: attribute %q buffer is not a whole number of cells", e.Attribute)
	}
	return fmt.Sprintf("shape mismatch: attribute %q: expected %d cells, got %d", e.Attribute, e.Expected, e.Actual)
}

func (e *ShapeMismatchError) Unwrap() error { return model.ErrShapeMismatch }

// IsRetryable reports whether err may succeed when the same call is
// repeated. Only storage failures, including memory exhaustion, qualify.
func IsRetryable(err error) bool {
	return errors.Is(err, model.ErrStorageIO)
}

var kinds = []error{
	model.ErrSchema,
	model.ErrDomain,
	model.ErrShapeMismatch,
	model.ErrConcurrency,
	model.ErrNotFound,
	model.ErrStorageIO,
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	if errors.Is(err, resource.ErrMemoryLimitExceeded) && !errors.Is(err, model.ErrStorageIO) {
		return fmt.Errorf("%w: %w", ErrMemoryLimitExceeded, err)
	}
	if errors.Is(err, blobstore.ErrLocked) {
		return fmt.Errorf("%w: %w", ErrIncompatibleMode, err)
	}

	for _, k := range kinds {
		if errors.Is(err, k) {
			return err
		}
	}

	// Anything else comes from the persistence layer.
	return fmt.Errorf("%w: %w", ErrStorageIO, err)
}
