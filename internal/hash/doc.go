// Package hash provides the CRC32-Castagnoli checksum used to guard
// snapshot frames. Go's hash/crc32 picks the hardware implementation
// (SSE4.2, ARM CRC) when available.
//
//	sum := hash.CRC32C(payload)
//
//	h := hash.NewCRC32C()
//	h.Write(header)
//	h.Write(body)
//	sum = h.Sum32()
package hash
