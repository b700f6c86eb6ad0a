package cache

import "context"

// Key identifies a tile blob within an array.
type Key struct {
	// Array is the URI of the array that owns the blob.
	Array string
	// Path is the blob name inside the array's store.
	Path string
}

// TileCache holds the bytes of immutable tile blobs. Returned slices are
// shared and must be treated as read-only.
type TileCache interface {
	// Get returns the cached bytes of key.
	Get(ctx context.Context, key Key) (b []byte, ok bool)
	// Add caches b under key. A key that is already cached is only
	// refreshed, since blobs never change once written.
	Add(ctx context.Context, key Key, b []byte)
	// Close drops every entry and returns the memory charged for them.
	Close() error
}
