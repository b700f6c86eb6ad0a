// Package schema defines the logical shape of a dense array: its Domain (an
// ordered list of integer Dimensions, each with closed bounds and a tile
// extent), its typed Attributes, and the cell/tile orders used to lay cells
// out on storage.
//
// Schemas are pure data. They are validated once at definition time and are
// immutable afterwards:
//
//	dom, err := schema.DefineDomain(
//	    schema.Dimension{Name: "rows", Type: schema.DimInt32, Lo: 1, Hi: 4, Extent: 4},
//	    schema.Dimension{Name: "cols", Type: schema.DimInt32, Lo: 1, Hi: 4, Extent: 4},
//	)
//	s, err := schema.DefineSchema(dom, []schema.Attribute{
//	    {Name: "a1", Type: schema.Scalar(schema.Uint8)},
//	    {Name: "a2", Type: schema.Tuple(schema.Float32, 2)},
//	}, false)
//
// # Descriptor Format
//
// WriteBinary/ReadBinary persist a schema as a framed payload (magic "TSCH",
// version, CRC32, length):
//
//	CellOrder  (1 byte)
//	TileOrder  (1 byte)
//	Sparse     (1 byte)
//	NumDims    (4 bytes)
//	Dims[]     Name (string), Type (1 byte), Lo (8), Hi (8), Extent (8)
//	NumAttrs   (4 bytes)
//	Attrs[]    Name (string), Kind (1 byte), Count (4)
package schema
