package schema

import (
	"fmt"
	"strings"
)

// Attribute is a named, typed value stored at every cell.
type Attribute struct {
	Name string
	Type CellType
}

// Option configures a Schema.
type Option func(*Schema)

// WithCellOrder sets the order of cells within a tile. It is also the
// canonical order of write input and read output buffers.
func WithCellOrder(o Order) Option {
	return func(s *Schema) { s.cellOrder = o }
}

// WithTileOrder sets the order in which tiles are visited.
func WithTileOrder(o Order) Option {
	return func(s *Schema) { s.tileOrder = o }
}

// Schema binds a Domain to an ordered set of Attributes.
type Schema struct {
	domain    *Domain
	attrs     []Attribute
	index     map[string]int
	sparse    bool
	cellOrder Order
	tileOrder Order
}

// DefineSchema validates and returns a schema. Only dense schemas
// (sparse == false) are supported.
func DefineSchema(domain *Domain, attrs []Attribute, sparse bool, opts ...Option) (*Schema, error) {
	if domain == nil {
		return nil, fmt.Errorf("%w: nil domain", ErrInvalidDimension)
	}
	if sparse {
		return nil, ErrSparseUnsupported
	}
	if len(attrs) == 0 {
		return nil, ErrEmptyAttributeSet
	}

	s := &Schema{
		domain:    domain,
		attrs:     make([]Attribute, len(attrs)),
		index:     make(map[string]int, len(attrs)),
		cellOrder: RowMajor,
		tileOrder: RowMajor,
	}
	for _, opt := range opts {
		opt(s)
	}
	if !s.cellOrder.Valid() || !s.tileOrder.Valid() {
		return nil, fmt.Errorf("%w: invalid layout order", ErrInvalidDimension)
	}

	for i, a := range attrs {
		if a.Name == "" {
			return nil, fmt.Errorf("%w: attribute %d has an empty name", ErrInvalidAttribute, i)
		}
		if err := a.Type.Validate(); err != nil {
			return nil, fmt.Errorf("attribute %q: %w", a.Name, err)
		}
		if _, dup := s.index[a.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateAttributeName, a.Name)
		}
		if _, clash := domain.DimensionIndex(a.Name); clash {
			return nil, fmt.Errorf("%w: %q collides with a dimension name", ErrInvalidAttribute, a.Name)
		}
		s.index[a.Name] = i
		s.attrs[i] = a
	}

	return s, nil
}

// Domain returns the schema's domain.
func (s *Schema) Domain() *Domain { return s.domain }

// Sparse reports whether the schema is sparse. Always false.
func (s *Schema) Sparse() bool { return s.sparse }

// CellOrder returns the in-tile cell order.
func (s *Schema) CellOrder() Order { return s.cellOrder }

// TileOrder returns the tile visiting order.
func (s *Schema) TileOrder() Order { return s.tileOrder }

// NumAttributes returns the number of attributes.
func (s *Schema) NumAttributes() int { return len(s.attrs) }

// AttributeAt returns the i-th attribute.
func (s *Schema) AttributeAt(i int) Attribute { return s.attrs[i] }

// Attributes returns a copy of the attributes in declaration order.
func (s *Schema) Attributes() []Attribute {
	out := make([]Attribute, len(s.attrs))
	copy(out, s.attrs)
	return out
}

// Attribute looks up an attribute by name.
func (s *Schema) Attribute(name string) (Attribute, bool) {
	i, ok := s.index[name]
	if !ok {
		return Attribute{}, false
	}
	return s.attrs[i], true
}

// AttributeIndex returns the declaration index of the named attribute.
func (s *Schema) AttributeIndex(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// AttributeNames returns attribute names in declaration order.
func (s *Schema) AttributeNames() []string {
	names := make([]string, len(s.attrs))
	for i, a := range s.attrs {
		names[i] = a.Name
	}
	return names
}

// Equal reports whether two schemas describe the same array.
func (s *Schema) Equal(o *Schema) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.sparse != o.sparse || s.cellOrder != o.cellOrder || s.tileOrder != o.tileOrder {
		return false
	}
	if !s.domain.Equal(o.domain) || len(s.attrs) != len(o.attrs) {
		return false
	}
	for i := range s.attrs {
		if s.attrs[i] != o.attrs[i] {
			return false
		}
	}
	return true
}

func (s *Schema) String() string {
	var b strings.Builder
	b.WriteString("dense(")
	for i, d := range s.domain.dims {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s:%s[%d,%d]/%d", d.Name, d.Type, d.Lo, d.Hi, d.Extent)
	}
	b.WriteString("; ")
	for i, a := range s.attrs {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s:%s", a.Name, a.Type)
	}
	fmt.Fprintf(&b, "; cells=%s tiles=%s)", s.cellOrder, s.tileOrder)
	return b.String()
}
