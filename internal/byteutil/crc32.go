package byteutil

import "hash/crc32"

// ByteRange is a half-open [Offset, Offset+Length) window, in bytes,
// relative to the start of the buffer passed to Crc32Exclude.
type ByteRange struct {
	Offset int
	Length int
}

// Crc32Exclude computes the EFI/GPT-flavored CRC32 over buf, treating every
// byte inside excl as if it were zero, without allocating a second copy of
// buf. Seed and final xor both use the EFI convention (0xFFFFFFFF), matching
// the table GPT headers are verified against: the header's own crc32 field
// must read as zero during the computation.
func Crc32Exclude(buf []byte, excl ByteRange) uint32 {
	const seed = 0xFFFFFFFF
	crc := uint32(seed)
	tbl := crc32.IEEETable

	lo, hi := excl.Offset, excl.Offset+excl.Length
	for i, b := range buf {
		if i >= lo && i < hi {
			b = 0
		}
		crc = tbl[byte(crc)^b] ^ (crc >> 8)
	}
	return crc ^ seed
}
