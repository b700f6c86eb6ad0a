package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hupe1980/tessera"
	"github.com/hupe1980/tessera/schema"
)

// parseRegion parses "lo:hi,lo:hi,...", one range per dimension. A single
// value "v" stands for "v:v".
func parseRegion(s string) (tessera.Region, error) {
	parts := strings.Split(s, ",")
	r := make(tessera.Region, len(parts))
	for i, p := range parts {
		lo, hi, ranged := strings.Cut(strings.TrimSpace(p), ":")
		var err error
		if r[i].Lo, err = strconv.ParseInt(lo, 10, 64); err != nil {
			return nil, fmt.Errorf("region %q: range %d: %w", s, i, err)
		}
		r[i].Hi = r[i].Lo
		if ranged {
			if r[i].Hi, err = strconv.ParseInt(hi, 10, 64); err != nil {
				return nil, fmt.Errorf("region %q: range %d: %w", s, i, err)
			}
		}
	}
	return r, nil
}

// parseDimension parses "name:lo:hi:extent" with an optional ":type"
// suffix, e.g. "rows:1:4:4:int32".
func parseDimension(s string) (schema.Dimension, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 && len(parts) != 5 {
		return schema.Dimension{}, fmt.Errorf("dimension %q: want name:lo:hi:extent[:type]", s)
	}
	d := schema.Dimension{Name: parts[0]}
	for i, dst := range []*int64{&d.Lo, &d.Hi, &d.Extent} {
		v, err := strconv.ParseInt(parts[i+1], 10, 64)
		if err != nil {
			return schema.Dimension{}, fmt.Errorf("dimension %q: %w", s, err)
		}
		*dst = v
	}
	if len(parts) == 5 {
		t, err := schema.ParseDimType(parts[4])
		if err != nil {
			return schema.Dimension{}, err
		}
		d.Type = t
	}
	return d, nil
}

// parseAttribute parses "name:celltype", e.g. "a2:float32x2".
func parseAttribute(s string) (schema.Attribute, error) {
	name, typ, ok := strings.Cut(s, ":")
	if !ok {
		return schema.Attribute{}, fmt.Errorf("attribute %q: want name:type", s)
	}
	ct, err := schema.ParseCellType(typ)
	if err != nil {
		return schema.Attribute{}, err
	}
	return schema.Attribute{Name: name, Type: ct}, nil
}

// decodeValues returns the cell components of b as a JSON-friendly slice.
func decodeValues(b tessera.Buffer) (any, error) {
	switch b.Type.Kind {
	case schema.Int8:
		return tessera.Values[int8](b)
	case schema.Int16:
		return tessera.Values[int16](b)
	case schema.Int32:
		return tessera.Values[int32](b)
	case schema.Int64:
		return tessera.Values[int64](b)
	case schema.Uint8:
		// []uint8 would be marshaled as base64.
		v, err := tessera.Values[uint8](b)
		out := make([]uint16, len(v))
		for i, x := range v {
			out[i] = uint16(x)
		}
		return out, err
	case schema.Uint16:
		return tessera.Values[uint16](b)
	case schema.Uint32:
		return tessera.Values[uint32](b)
	case schema.Uint64:
		return tessera.Values[uint64](b)
	case schema.Float32:
		return tessera.Values[float32](b)
	case schema.Float64:
		return tessera.Values[float64](b)
	default:
		return nil, fmt.Errorf("unsupported kind %s", b.Type.Kind)
	}
}

// encodeValues builds a buffer of cell type ct from JSON numbers.
func encodeValues(ct schema.CellType, nums []json.Number) (tessera.Buffer, error) {
	switch ct.Kind {
	case schema.Int8:
		return convert(ct, nums, parseInt[int8](8))
	case schema.Int16:
		return convert(ct, nums, parseInt[int16](16))
	case schema.Int32:
		return convert(ct, nums, parseInt[int32](32))
	case schema.Int64:
		return convert(ct, nums, parseInt[int64](64))
	case schema.Uint8:
		return convert(ct, nums, parseUint[uint8](8))
	case schema.Uint16:
		return convert(ct, nums, parseUint[uint16](16))
	case schema.Uint32:
		return convert(ct, nums, parseUint[uint32](32))
	case schema.Uint64:
		return convert(ct, nums, parseUint[uint64](64))
	case schema.Float32:
		return convert(ct, nums, parseFloat[float32](32))
	case schema.Float64:
		return convert(ct, nums, parseFloat[float64](64))
	default:
		return tessera.Buffer{}, fmt.Errorf("unsupported kind %s", ct.Kind)
	}
}

func convert[T tessera.Number](ct schema.CellType, nums []json.Number, parse func(string) (T, error)) (tessera.Buffer, error) {
	vals := make([]T, len(nums))
	for i, n := range nums {
		v, err := parse(n.String())
		if err != nil {
			return tessera.Buffer{}, fmt.Errorf("value %d: %w", i, err)
		}
		vals[i] = v
	}
	return tessera.NewTupleBuffer(ct.Count, vals...), nil
}

func parseInt[T int8 | int16 | int32 | int64](bits int) func(string) (T, error) {
	return func(s string) (T, error) {
		v, err := strconv.ParseInt(s, 10, bits)
		return T(v), err
	}
}

func parseUint[T uint8 | uint16 | uint32 | uint64](bits int) func(string) (T, error) {
	return func(s string) (T, error) {
		v, err := strconv.ParseUint(s, 10, bits)
		return T(v), err
	}
}

func parseFloat[T float32 | float64](bits int) func(string) (T, error) {
	return func(s string) (T, error) {
		v, err := strconv.ParseFloat(s, bits)
		return T(v), err
	}
}
