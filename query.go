package tessera

import (
	"context"
	"fmt"
	"slices"
)

// Result holds the buffers produced by a read, one per selected attribute.
type Result struct {
	// Region is the region that was read.
	Region  Region
	names   []string
	buffers map[string]Buffer
}

// Attributes returns the selected attribute names in result order.
func (r Result) Attributes() []string { return slices.Clone(r.names) }

// Buffer returns the buffer of attribute name.
func (r Result) Buffer(name string) (Buffer, bool) {
	b, ok := r.buffers[name]
	return b, ok
}

// Len returns the number of attributes in the result.
func (r Result) Len() int { return len(r.names) }

// ValuesOf decodes the buffer of attribute name as T.
func ValuesOf[T Number](r Result, name string) ([]T, error) {
	b, ok := r.buffers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
	}
	return Values[T](b)
}

// Query is a builder for subarray reads.
//
//	res, err := sess.Query().
//	    Select("a1").
//	    Region(tessera.R(1, 2, 2, 4)).
//	    Do(ctx)
type Query struct {
	s      *Session
	attrs  []string
	region Region
}

// Query starts a read on the session. Without Region the whole domain is
// read; without Select every attribute is returned.
func (s *Session) Query() *Query {
	return &Query{s: s}
}

// Select restricts the query to the named attributes.
func (q *Query) Select(attrs ...string) *Query {
	q.attrs = append(q.attrs, attrs...)
	return q
}

// Region sets the region to read.
func (q *Query) Region(r Region) *Query {
	q.region = r
	return q
}

// Do runs the query.
func (q *Query) Do(ctx context.Context) (Result, error) {
	region := q.region
	if region == nil {
		region = q.s.schema.Domain().Full()
	}
	return q.s.Read(ctx, region, q.attrs...)
}
