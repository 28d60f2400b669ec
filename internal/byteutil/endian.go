// Package byteutil holds the little/big-endian readers, CRC32-with-a-hole,
// GUID endian swap, and UTF-16LE decoding shared by every partition prober.
package byteutil

import "encoding/binary"

// U16LE reads a little-endian uint16 at off. It panics if the slice is too
// short, same as encoding/binary would on a short read.
func U16LE(b []byte, off int) uint16 { return binary.LittleEndian.Uint16(b[off : off+2]) }

// U32LE reads a little-endian uint32 at off.
func U32LE(b []byte, off int) uint32 { return binary.LittleEndian.Uint32(b[off : off+4]) }

// U64LE reads a little-endian uint64 at off.
func U64LE(b []byte, off int) uint64 { return binary.LittleEndian.Uint64(b[off : off+8]) }

// U16BE reads a big-endian uint16 at off.
func U16BE(b []byte, off int) uint16 { return binary.BigEndian.Uint16(b[off : off+2]) }

// U32BE reads a big-endian uint32 at off.
func U32BE(b []byte, off int) uint32 { return binary.BigEndian.Uint32(b[off : off+4]) }

// U64BE reads a big-endian uint64 at off.
func U64BE(b []byte, off int) uint64 { return binary.BigEndian.Uint64(b[off : off+8]) }

// PutU32LE writes v little-endian at off.
func PutU32LE(b []byte, off int, v uint32) { binary.LittleEndian.PutUint32(b[off:off+4], v) }
