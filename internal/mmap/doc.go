// Package mmap provides read-only memory-mapped file access for tile blobs.
//
// Tiles are written once and never modified in place, so a read-only shared
// mapping is safe for the lifetime of the blob handle.
//
//	m, err := mmap.Open("tiles/0/0_0-3.tile")
//	if err != nil { ... }
//	defer m.Close()
//
//	m.Advise(mmap.AccessSequential)
//	data := m.Bytes()
//
// On unix platforms the package uses mmap(2) and madvise(2). Elsewhere the
// file is read into memory and Advise is a no-op.
//
// Close is idempotent. Callers must not touch the slice returned by Bytes
// after Close returns.
package mmap
