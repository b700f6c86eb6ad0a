// Package manifest implements the tile index of an array and its atomic
// persistence.
//
// # Overview
//
// A manifest is the committed state of an array: for every attribute, the
// tiles that have been written, where their immutable blobs live, their
// checksums and which in-tile cells hold data. A read session pins the
// manifest current at open; a write session publishes a new one on close.
//
// # Binary Format
//
//	Header (16 bytes):
//	  Magic    (4 bytes) - 0x544d4e46 ("TMNF")
//	  Version  (4 bytes) - Format version (currently 1)
//	  Checksum (4 bytes) - CRC32C of payload
//	  Length   (4 bytes) - Payload length in bytes
//
//	Payload:
//	  ID            (8 bytes) - Commit ID
//	  CreatedAt     (8 bytes) - Unix nanoseconds
//	  NumAttributes (4 bytes)
//	  Attributes[]:
//	    Name     (string)
//	    NumTiles (4 bytes)
//	    Tiles[] (sorted by key):
//	      Rank     (4 bytes)
//	      Coord    (8 bytes each)
//	      Path     (string)
//	      Size     (8 bytes)
//	      Checksum (4 bytes)
//	      Written  (bytes) - portable roaring bitmap
//
// # Atomic Protocol
//
// Save follows a two-phase commit protocol:
//
//  1. Write the manifest blob to MANIFEST-NNNNNN.bin (N is the commit ID)
//  2. Atomically replace the CURRENT pointer with the new file name
//
// Load reads CURRENT to find the active manifest, then loads that file.
// Tile blobs referenced by a manifest must be durable before Save is called.
package manifest
