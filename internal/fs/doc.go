// Package fs provides the filesystem abstraction used by Tessera's local
// storage, for testability and fault injection.
//
// The package defines two key interfaces:
//
//   - [File]: an open file with read/write/sync capabilities
//   - [FileSystem]: filesystem operations (open, remove, rename, lock, ...)
//
// # Implementations
//
//   - [LocalFS]: production implementation using the os package, with
//     advisory whole-file locks (flock on unix)
//   - [FaultyFS]: test utility that injects I/O errors per file pattern
//
// # Locking
//
// TryLock takes a non-blocking exclusive lock on a lock file and fails with
// [ErrLocked] if another holder exists. Tessera uses it to keep write
// sessions from different processes off the same array:
//
//	l, err := fs.Default.TryLock(filepath.Join(dir, "__lock"))
//	if errors.Is(err, fs.ErrLocked) {
//	    // another writer is active
//	}
//	defer l.Close()
//
// This package intentionally does NOT include context.Context parameters.
// Local filesystem calls are not interruptible at the syscall level.
package fs
