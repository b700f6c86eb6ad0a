package schema

import (
	"fmt"
	"io"

	"github.com/hupe1980/tessera/internal/binenc"
)

const (
	binaryMagic   = 0x54534348 // "TSCH"
	binaryVersion = 1
)

// WriteBinary writes the schema descriptor to w.
func (s *Schema) WriteBinary(w io.Writer) error {
	pb := binenc.NewBuffer(make([]byte, 0, 64+len(s.domain.dims)*48+len(s.attrs)*24))

	pb.WriteUint8(uint8(s.cellOrder))
	pb.WriteUint8(uint8(s.tileOrder))
	if s.sparse {
		pb.WriteUint8(1)
	} else {
		pb.WriteUint8(0)
	}

	pb.WriteCount(len(s.domain.dims))
	for _, d := range s.domain.dims {
		pb.WriteString(d.Name)
		pb.WriteUint8(uint8(d.Type))
		pb.WriteInt64(d.Lo)
		pb.WriteInt64(d.Hi)
		pb.WriteInt64(d.Extent)
	}

	pb.WriteCount(len(s.attrs))
	for _, a := range s.attrs {
		pb.WriteString(a.Name)
		pb.WriteUint8(uint8(a.Type.Kind))
		pb.WriteCount(a.Type.Count)
	}

	if err := pb.Err(); err != nil {
		return err
	}
	return binenc.WriteFrame(w, binaryMagic, binaryVersion, pb.Bytes())
}

// ReadBinary reads a schema descriptor and re-validates it.
func ReadBinary(r io.Reader) (*Schema, error) {
	payload, err := binenc.ReadFrame(r, binaryMagic, binaryVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptDescriptor, err)
	}

	pb := binenc.NewBuffer(payload)
	cellOrder := Order(pb.ReadUint8())
	tileOrder := Order(pb.ReadUint8())
	sparse := pb.ReadUint8() != 0

	dims := make([]Dimension, pb.ReadCount(27))
	for i := range dims {
		dims[i].Name = pb.ReadString()
		dims[i].Type = DimType(pb.ReadUint8())
		dims[i].Lo = pb.ReadInt64()
		dims[i].Hi = pb.ReadInt64()
		dims[i].Extent = pb.ReadInt64()
	}

	attrs := make([]Attribute, pb.ReadCount(7))
	for i := range attrs {
		attrs[i].Name = pb.ReadString()
		attrs[i].Type.Kind = Kind(pb.ReadUint8())
		attrs[i].Type.Count = int(pb.ReadUint32())
	}

	if err := pb.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptDescriptor, err)
	}

	dom, err := DefineDomain(dims...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptDescriptor, err)
	}
	s, err := DefineSchema(dom, attrs, sparse, WithCellOrder(cellOrder), WithTileOrder(tileOrder))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptDescriptor, err)
	}
	return s, nil
}
