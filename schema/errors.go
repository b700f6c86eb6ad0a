package schema

import (
	"fmt"

	"github.com/hupe1980/tessera/model"
)

var (
	// ErrInvalidDimension is returned for malformed dimensions or domains.
	ErrInvalidDimension = fmt.Errorf("%w: invalid dimension", model.ErrSchema)

	// ErrInvalidAttribute is returned for attributes with an empty name or a
	// malformed cell type.
	ErrInvalidAttribute = fmt.Errorf("%w: invalid attribute", model.ErrSchema)

	// ErrDuplicateAttributeName is returned when two attributes share a name.
	ErrDuplicateAttributeName = fmt.Errorf("%w: duplicate attribute name", model.ErrSchema)

	// ErrEmptyAttributeSet is returned when a schema declares no attributes.
	ErrEmptyAttributeSet = fmt.Errorf("%w: empty attribute set", model.ErrSchema)

	// ErrSparseUnsupported is returned when a sparse schema is requested.
	ErrSparseUnsupported = fmt.Errorf("%w: sparse arrays are not supported", model.ErrSchema)

	// ErrCorruptDescriptor is returned when a persisted schema cannot be decoded.
	ErrCorruptDescriptor = fmt.Errorf("%w: corrupt schema descriptor", model.ErrStorageIO)

	// ErrOutOfDomain is returned when a coordinate or region exceeds the
	// domain bounds.
	ErrOutOfDomain = fmt.Errorf("%w: out of domain", model.ErrDomain)
)

// OutOfDomainError reports which dimension was violated.
type OutOfDomainError struct {
	Dim    string
	Lo, Hi int64 // offending interval (Lo == Hi for a single coordinate)
	Bounds model.Range
}

func (e *OutOfDomainError) Error() string {
	if e.Lo == e.Hi {
		return fmt.Sprintf("out of domain: dimension %q coordinate %d outside %s", e.Dim, e.Lo, e.Bounds)
	}
	return fmt.Sprintf("out of domain: dimension %q range [%d,%d] outside %s", e.Dim, e.Lo, e.Hi, e.Bounds)
}

func (e *OutOfDomainError) Unwrap() error { return ErrOutOfDomain }

// ErrInvalidRegion is returned for regions of the wrong rank or with an empty
// range on some dimension.
var ErrInvalidRegion = fmt.Errorf("%w: invalid region", model.ErrDomain)
