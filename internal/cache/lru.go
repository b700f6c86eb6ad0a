package cache

import (
	"context"
	"sync"

	"github.com/hupe1980/tessera/internal/resource"
)

// node is an entry of the recency list. The list is circular around
// LRU.head; head.next is the most recently used entry.
type node struct {
	key        Key
	data       []byte
	prev, next *node
}

// LRU is a TileCache bounded by a byte capacity that evicts the least
// recently used tile first.
type LRU struct {
	mu       sync.Mutex
	capacity int64
	size     int64
	nodes    map[Key]*node
	head     node
	rc       *resource.Controller
}

// NewLRU creates a cache holding at most capacity bytes. Cached bytes are
// charged to rc when it is non-nil; a tile the controller cannot fit is
// not cached.
func NewLRU(capacity int64, rc *resource.Controller) *LRU {
	c := &LRU{
		capacity: capacity,
		nodes:    make(map[Key]*node),
		rc:       rc,
	}
	c.head.prev, c.head.next = &c.head, &c.head
	return c
}

func (c *LRU) unlink(n *node) {
	n.prev.next = n.next
	n.next.prev = n.prev
}

func (c *LRU) pushFront(n *node) {
	n.prev, n.next = &c.head, c.head.next
	c.head.next.prev = n
	c.head.next = n
}

// Get returns the cached bytes of key and marks it recently used.
func (c *LRU) Get(_ context.Context, key Key) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.nodes[key]
	if !ok {
		return nil, false
	}
	c.unlink(n)
	c.pushFront(n)
	return n.data, true
}

// Add caches b under key, evicting older tiles to make room.
func (c *LRU) Add(_ context.Context, key Key, b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.nodes[key]; ok {
		c.unlink(n)
		c.pushFront(n)
		return
	}
	sz := int64(len(b))
	if sz > c.capacity {
		return
	}
	// Evicting first hands memory back to the controller before charging.
	for c.size+sz > c.capacity {
		c.drop(c.head.prev)
	}
	if c.rc != nil && !c.rc.TryAcquireMemory(sz) {
		return
	}
	n := &node{key: key, data: b}
	c.nodes[key] = n
	c.pushFront(n)
	c.size += sz
}

func (c *LRU) drop(n *node) {
	c.unlink(n)
	delete(c.nodes, n.key)
	sz := int64(len(n.data))
	c.size -= sz
	if c.rc != nil {
		c.rc.ReleaseMemory(sz)
	}
}

// Close drops every entry.
func (c *LRU) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.head.next != &c.head {
		c.drop(c.head.next)
	}
	return nil
}

// Size returns the cached bytes.
func (c *LRU) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Len returns the number of cached tiles.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.nodes)
}
