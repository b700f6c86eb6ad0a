package manifest

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/tessera/internal/binenc"
	"github.com/hupe1980/tessera/internal/layout"
)

const (
	binaryMagic   = 0x544d4e46 // "TMNF"
	binaryVersion = 1
)

// WriteBinary writes the manifest in binary format. Tiles are written in
// key order so equal manifests encode to equal bytes.
func (m *Manifest) WriteBinary(w io.Writer) error {
	pb := binenc.NewBuffer(make([]byte, 0, 64+m.NumTiles()*96))

	pb.WriteUint64(m.ID)
	pb.WriteInt64(m.CreatedAt.UnixNano())
	pb.WriteCount(len(m.Attributes))

	for _, a := range m.Attributes {
		pb.WriteString(a.Name)
		pb.WriteCount(len(a.Tiles))

		keys := make([]string, 0, len(a.Tiles))
		for k := range a.Tiles {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		for _, k := range keys {
			ti := a.Tiles[k]
			pb.WriteCount(len(ti.Coord))
			for _, c := range ti.Coord {
				pb.WriteInt64(c)
			}
			pb.WriteString(ti.Path)
			pb.WriteInt64(ti.Size)
			pb.WriteUint32(ti.Checksum)

			written := ti.Written
			if written == nil {
				written = roaring.New()
			}
			bm, err := written.ToBytes()
			if err != nil {
				return fmt.Errorf("encode written set of %s: %w", ti.Path, err)
			}
			pb.WriteBytes(bm)
		}
	}

	if err := pb.Err(); err != nil {
		return err
	}
	return binenc.WriteFrame(w, binaryMagic, binaryVersion, pb.Bytes())
}

// ReadBinary reads a manifest written by WriteBinary.
func ReadBinary(r io.Reader) (*Manifest, error) {
	payload, err := binenc.ReadFrame(r, binaryMagic, binaryVersion)
	if err != nil {
		if errors.Is(err, binenc.ErrUnsupportedVersion) {
			return nil, fmt.Errorf("%w: %w", ErrIncompatibleVersion, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	pb := binenc.NewBuffer(payload)
	m := &Manifest{Version: binaryVersion}
	m.ID = pb.ReadUint64()
	m.CreatedAt = time.Unix(0, pb.ReadInt64())

	m.Attributes = make([]AttributeIndex, pb.ReadCount(6))
	for i := range m.Attributes {
		a := &m.Attributes[i]
		a.Name = pb.ReadString()
		n := pb.ReadCount(22)
		a.Tiles = make(map[string]*TileInfo, n)

		for range n {
			ti := &TileInfo{}
			ti.Coord = make([]int64, pb.ReadCount(8))
			for d := range ti.Coord {
				ti.Coord[d] = pb.ReadInt64()
			}
			ti.Path = pb.ReadString()
			ti.Size = pb.ReadInt64()
			ti.Checksum = pb.ReadUint32()

			raw := pb.ReadBytes()
			if pb.Err() != nil {
				break
			}
			ti.Written = roaring.New()
			if _, err := ti.Written.FromBuffer(raw); err != nil {
				return nil, fmt.Errorf("%w: written set of %s: %w", ErrCorrupt, ti.Path, err)
			}
			a.Tiles[layout.TileCoord(ti.Coord).Key()] = ti
		}
	}

	if err := pb.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if pb.Remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, pb.Remaining())
	}
	return m, nil
}
