package blobstore

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"

	tfs "github.com/hupe1980/tessera/internal/fs"
)

// ErrInvalidURI is returned when a resolver cannot interpret an array URI.
var ErrInvalidURI = errors.New("invalid array uri")

// Resolver maps an array URI to the BlobStore that holds the array.
type Resolver interface {
	Resolve(uri string) (BlobStore, error)
}

// LocalResolver resolves URIs to directories on the local filesystem.
// A leading "file://" is accepted and stripped.
type LocalResolver struct {
	FS tfs.FileSystem
}

// Resolve returns a LocalStore rooted at the cleaned path of uri.
func (r LocalResolver) Resolve(uri string) (BlobStore, error) {
	p := strings.TrimPrefix(uri, "file://")
	if p == "" {
		return nil, ErrInvalidURI
	}
	return NewLocalStore(filepath.Clean(p), r.FS), nil
}

// MemoryResolver hands out one MemoryStore per URI and keeps it for the
// lifetime of the resolver, so arrays outlive the sessions that wrote them.
type MemoryResolver struct {
	mu     sync.Mutex
	stores map[string]*MemoryStore
}

// NewMemoryResolver creates an empty MemoryResolver.
func NewMemoryResolver() *MemoryResolver {
	return &MemoryResolver{stores: make(map[string]*MemoryStore)}
}

// Resolve returns the store for uri, creating it on first use.
func (r *MemoryResolver) Resolve(uri string) (BlobStore, error) {
	key := strings.TrimPrefix(uri, "mem://")
	if key == "" {
		return nil, ErrInvalidURI
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[key]
	if !ok {
		s = NewMemoryStore()
		r.stores[key] = s
	}
	return s, nil
}
