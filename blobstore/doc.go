// Package blobstore provides the storage abstraction behind Tessera arrays.
//
// Every array lives in its own BlobStore: the schema descriptor, the
// manifest files and one immutable blob per committed tile. A Resolver maps
// an array URI to the store that holds it.
//
// # Built-in Implementations
//
//   - LocalStore: a directory on the local filesystem, with mmap reads,
//     atomic puts (temp file, fsync, rename) and an advisory writer lock
//   - MemoryStore: process-local map, used by tests and ephemeral arrays
//
// # Custom Implementations
//
// Implement BlobStore to support other backends:
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)
//	    Put(ctx, name, data) error   // atomic: readers see all or nothing
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// Blob names always use forward slashes.
package blobstore
