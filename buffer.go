package tessera

import (
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/tessera/schema"
)

// Number is the set of Go types that map onto a schema.Kind.
type Number interface {
	int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64
}

// Buffer holds the cells of one attribute for a region, in canonical cell
// order, encoded little-endian.
type Buffer struct {
	Type schema.CellType
	Data []byte
}

// KindOf returns the schema kind that T maps onto.
func KindOf[T Number]() schema.Kind {
	var zero T
	switch any(zero).(type) {
	case int8:
		return schema.Int8
	case int16:
		return schema.Int16
	case int32:
		return schema.Int32
	case int64:
		return schema.Int64
	case uint8:
		return schema.Uint8
	case uint16:
		return schema.Uint16
	case uint32:
		return schema.Uint32
	case uint64:
		return schema.Uint64
	case float32:
		return schema.Float32
	default:
		return schema.Float64
	}
}

// NewBuffer creates a buffer of scalar cells, one per value.
func NewBuffer[T Number](values ...T) Buffer {
	return NewTupleBuffer(1, values...)
}

// NewTupleBuffer creates a buffer of count-component cells from flattened
// values: cell i is values[i*count : (i+1)*count].
func NewTupleBuffer[T Number](count int, values ...T) Buffer {
	data, _ := binary.Append(make([]byte, 0, len(values)*KindOf[T]().Size()), binary.LittleEndian, values)
	return Buffer{
		Type: schema.Tuple(KindOf[T](), count),
		Data: data,
	}
}

// Len returns the number of whole cells in the buffer.
func (b Buffer) Len() int64 {
	size := b.Type.Size()
	if size <= 0 {
		return 0
	}
	return int64(len(b.Data) / size)
}

// Values decodes the flattened cell components of b as T.
func Values[T Number](b Buffer) ([]T, error) {
	if k := KindOf[T](); k != b.Type.Kind {
		return nil, fmt.Errorf("%w: buffer holds %s, not %s", ErrAttributeSchemaMismatch, b.Type.Kind, k)
	}
	out := make([]T, len(b.Data)/b.Type.Kind.Size())
	if _, err := binary.Decode(b.Data, binary.LittleEndian, out); err != nil {
		return nil, err
	}
	return out, nil
}
