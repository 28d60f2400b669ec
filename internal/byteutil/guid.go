package byteutil

import "github.com/google/uuid"

// GuidSwap swaps the endianness of the first three GUID sub-fields
// (time-low, time-mid, time-hi-and-version) in place, converting between
// EFI's little-endian on-disk storage and the big-endian "network byte
// order" layout the printable/RFC-4122 form expects. The last two fields
// (clock-seq and node) are stored as plain byte sequences in the same order
// in both forms and are left untouched.
//
// Calling GuidSwap twice on the same 16 bytes is the identity operation —
// it is its own inverse, which is what lets both "disk bytes -> printable"
// and "printable -> disk bytes" share one implementation.
func GuidSwap(g *[16]byte) {
	g[0], g[1], g[2], g[3] = g[3], g[2], g[1], g[0]
	g[4], g[5] = g[5], g[4]
	g[6], g[7] = g[7], g[6]
}

// GuidFromDiskBytes converts 16 little-endian EFI-style GUID bytes (as
// stored in a GPT header or entry) into a uuid.UUID in its standard
// printable byte order.
func GuidFromDiskBytes(disk [16]byte) uuid.UUID {
	b := disk
	GuidSwap(&b)
	u, _ := uuid.FromBytes(b[:])
	return u
}

// GuidToDiskBytes is the inverse of GuidFromDiskBytes: it returns the 16
// little-endian EFI-style bytes for u, suitable for writing into a GPT
// header or entry.
func GuidToDiskBytes(u uuid.UUID) [16]byte {
	var b [16]byte
	copy(b[:], u[:])
	GuidSwap(&b)
	return b
}
