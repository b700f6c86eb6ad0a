// Package cache keeps recently read tile blobs in memory.
//
// Tile blobs are immutable and their names carry the commit that produced
// them, so cached entries never go stale; they only age out. Sharded
// spreads keys over 64 LRU shards so parallel read sessions rarely contend.
// Every cached byte is charged to the engine's resource.Controller, and a
// tile that would exceed the memory budget is simply not cached.
package cache
