package columnar

import (
	"fmt"

	"github.com/hupe1980/tessera/model"
)

var (
	// ErrTileNotFound is returned for tiles, or cells within a tile, that
	// have never been written.
	ErrTileNotFound = fmt.Errorf("%w: tile not written", model.ErrNotFound)

	// ErrCorrupt is returned when a tile blob fails its size or checksum check.
	ErrCorrupt = fmt.Errorf("%w: corrupt tile", model.ErrStorageIO)
)

// UnwrittenError identifies the tile or cell range that was never written.
type UnwrittenError struct {
	Attribute string
	Tile      string
	Offset    int64 // first in-tile offset that was not written, -1 for a whole tile
}

func (e *UnwrittenError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("attribute %q: tile %s not written", e.Attribute, e.Tile)
	}
	return fmt.Sprintf("attribute %q: tile %s cell %d not written", e.Attribute, e.Tile, e.Offset)
}

func (e *UnwrittenError) Unwrap() error { return ErrTileNotFound }
