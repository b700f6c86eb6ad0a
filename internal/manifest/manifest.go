package manifest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/tessera/blobstore"
)

const (
	ManifestFileName = "MANIFEST"
	CurrentFileName  = "CURRENT"
	// CurrentVersion is the version of the manifest format.
	CurrentVersion = 1
)

// Manifest describes the committed tiles of an array at one point in time.
type Manifest struct {
	Version    int
	ID         uint64 // commit ID; 0 for a freshly created array
	CreatedAt  time.Time
	Attributes []AttributeIndex
}

// AttributeIndex holds the committed tiles of one attribute, keyed by
// tile coordinate key ("0_1").
type AttributeIndex struct {
	Name  string
	Tiles map[string]*TileInfo
}

// TileInfo describes one committed tile blob. TileInfo values are shared
// between manifests and must not be modified once published.
type TileInfo struct {
	Coord    []int64
	Path     string // relative to the array location
	Size     int64
	Checksum uint32
	// Written holds the in-tile offsets that have ever been written.
	Written *roaring.Bitmap
}

// New creates an empty manifest for the given attribute names.
func New(attrs []string) *Manifest {
	m := &Manifest{
		Version:    CurrentVersion,
		CreatedAt:  time.Now(),
		Attributes: make([]AttributeIndex, len(attrs)),
	}
	for i, name := range attrs {
		m.Attributes[i] = AttributeIndex{Name: name, Tiles: make(map[string]*TileInfo)}
	}
	return m
}

// Clone returns a copy whose tile maps can be modified independently.
// TileInfo values are shared.
func (m *Manifest) Clone() *Manifest {
	c := *m
	c.Attributes = make([]AttributeIndex, len(m.Attributes))
	for i, a := range m.Attributes {
		c.Attributes[i] = AttributeIndex{Name: a.Name, Tiles: maps.Clone(a.Tiles)}
	}
	return &c
}

// Tile returns the committed tile of attribute attr with the given key.
func (m *Manifest) Tile(attr int, key string) (*TileInfo, bool) {
	if attr < 0 || attr >= len(m.Attributes) {
		return nil, false
	}
	ti, ok := m.Attributes[attr].Tiles[key]
	return ti, ok
}

// SetTile records a committed tile for attribute attr.
func (m *Manifest) SetTile(attr int, key string, ti *TileInfo) {
	m.Attributes[attr].Tiles[key] = ti
}

// NumTiles returns the number of committed tiles across all attributes.
func (m *Manifest) NumTiles() int {
	n := 0
	for _, a := range m.Attributes {
		n += len(a.Tiles)
	}
	return n
}

// FileName returns the manifest file name for a commit ID.
func FileName(id uint64) string {
	return fmt.Sprintf("%s-%06d.bin", ManifestFileName, id)
}

// Store manages the manifest files of one array and atomic updates.
type Store struct {
	store blobstore.BlobStore
	mu    sync.Mutex
}

// NewStore creates a new manifest store.
func NewStore(store blobstore.BlobStore) *Store {
	return &Store{store: store}
}

// Load loads the current manifest.
func (s *Store) Load(ctx context.Context) (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	content, err := blobstore.ReadAll(ctx, s.store, CurrentFileName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.loadFile(ctx, strings.TrimSpace(string(content)))
}

// LoadVersion loads the manifest of a specific commit ID.
func (s *Store) LoadVersion(ctx context.Context, id uint64) (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadFile(ctx, FileName(id))
}

func (s *Store) loadFile(ctx context.Context, name string) (*Manifest, error) {
	data, err := blobstore.ReadAll(ctx, s.store, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to open manifest %s: %w", name, err)
	}
	return ReadBinary(bytes.NewReader(data))
}

// Save atomically publishes m as the next commit. m.ID is advanced by one
// and becomes the commit ID of the published manifest.
func (s *Store) Save(ctx context.Context, m *Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.Version = CurrentVersion
	m.ID++
	m.CreatedAt = time.Now()

	filename := FileName(m.ID)

	var buf bytes.Buffer
	if err := m.WriteBinary(&buf); err != nil {
		return err
	}

	if err := s.store.Put(ctx, filename, buf.Bytes()); err != nil {
		return err
	}

	// The commit becomes visible only once CURRENT is replaced.
	return s.store.Put(ctx, CurrentFileName, []byte(filename))
}
