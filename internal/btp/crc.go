package btp

import "hash/crc32"

// Crc32Body computes the reflected CRC32 (poly 0xEDB88320, init and final
// XOR 0xFFFFFFFF) over the container body, everything past the fixed
// header. That is the standard IEEE polynomial.
func Crc32Body(data []byte) uint32 {
	if len(data) <= HeaderSize {
		return crc32.ChecksumIEEE(nil)
	}
	return crc32.ChecksumIEEE(data[HeaderSize:])
}

// VerifyCrc32 compares the body checksum against the stored value. The
// container format stores the checksum as a signed 32-bit quantity, so the
// comparison goes through int32.
func VerifyCrc32(data []byte, stored uint32) bool {
	return int32(Crc32Body(data)) == int32(stored)
}
