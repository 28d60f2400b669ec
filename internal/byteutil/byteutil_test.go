package byteutil

import (
	"testing"

	"github.com/google/uuid"
)

func TestEndianReaders(t *testing.T) {
	buf := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}

	if got := U16LE(buf, 0); got != 0x0201 {
		t.Errorf("U16LE = 0x%x, want 0x0201", got)
	}
	if got := U32LE(buf, 0); got != 0x04030201 {
		t.Errorf("U32LE = 0x%x, want 0x04030201", got)
	}
	if got := U64LE(buf, 0); got != 0x0807060504030201 {
		t.Errorf("U64LE = 0x%x, want 0x0807060504030201", got)
	}
	if got := U16BE(buf, 0); got != 0x0102 {
		t.Errorf("U16BE = 0x%x, want 0x0102", got)
	}
	if got := U32BE(buf, 0); got != 0x01020304 {
		t.Errorf("U32BE = 0x%x, want 0x01020304", got)
	}
	if got := U64BE(buf, 0); got != 0x0102030405060708 {
		t.Errorf("U64BE = 0x%x, want 0x0102030405060708", got)
	}
}

func TestPutU32LERoundTrip(t *testing.T) {
	buf := make([]byte, 4)
	PutU32LE(buf, 0, 0xDEADBEEF)
	if got := U32LE(buf, 0); got != 0xDEADBEEF {
		t.Errorf("round trip = 0x%x, want 0xDEADBEEF", got)
	}
}

func TestCrc32ExcludeZeroesHole(t *testing.T) {
	buf := make([]byte, 16)
	for i := range buf {
		buf[i] = byte(i)
	}
	withHole := Crc32Exclude(buf, ByteRange{Offset: 4, Length: 4})

	zeroed := make([]byte, 16)
	copy(zeroed, buf)
	for i := 4; i < 8; i++ {
		zeroed[i] = 0
	}
	withZeroedBytes := Crc32Exclude(zeroed, ByteRange{Offset: 0, Length: 0})

	if withHole != withZeroedBytes {
		t.Errorf("Crc32Exclude(hole) = 0x%x, want 0x%x matching a pre-zeroed buffer", withHole, withZeroedBytes)
	}
}

func TestGuidSwapIsInvolution(t *testing.T) {
	g := [16]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10}
	orig := g
	GuidSwap(&g)
	if g == orig {
		t.Fatalf("GuidSwap did not change the bytes")
	}
	GuidSwap(&g)
	if g != orig {
		t.Errorf("GuidSwap twice = %v, want original %v", g, orig)
	}
}

func TestGuidDiskRoundTrip(t *testing.T) {
	u := uuid.MustParse("01234567-89ab-cdef-0123-456789abcdef")
	disk := GuidToDiskBytes(u)
	back := GuidFromDiskBytes(disk)
	if back != u {
		t.Errorf("round trip = %s, want %s", back, u)
	}
}

func TestUtf16leDecode(t *testing.T) {
	// "Go" in UTF-16LE, then trailing zero padding.
	src := []byte{'G', 0x00, 'o', 0x00, 0x00, 0x00, 0x00, 0x00}
	if got := Utf16leDecode(src, len(src)); got != "Go" {
		t.Errorf("Utf16leDecode = %q, want %q", got, "Go")
	}
}

func TestUtf16leDecodeTruncatesLength(t *testing.T) {
	src := []byte{'A', 0x00, 'B', 0x00, 'C', 0x00}
	if got := Utf16leDecode(src, 4); got != "AB" {
		t.Errorf("Utf16leDecode = %q, want %q", got, "AB")
	}
}

func TestUtf16leDecodeOddTrailingByteFallback(t *testing.T) {
	src := []byte{'A', 0x00, 'B'}
	got := Utf16leDecode(src, len(src))
	if got != "A" {
		t.Errorf("Utf16leDecode with odd trailing byte = %q, want %q", got, "A")
	}
}
