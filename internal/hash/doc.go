// Package hash provides the checksum stored with every tile blob and every
// framed descriptor.
//
// All checksums use CRC32-Castagnoli (CRC32C), which the crc32 package
// computes with hardware instructions on x86 (SSE4.2) and ARM64.
//
//	sum := hash.CRC32C(data)
package hash
