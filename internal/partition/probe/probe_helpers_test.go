package probe

import (
	"bytes"

	"github.com/blkcore/blkmount/internal/sector"
)

// newReader wraps a fixed byte buffer as a sector.Reader for prober tests.
func newReader(data []byte, sectSize uint32) sector.Reader {
	return sector.NewFileReader(bytes.NewReader(data), int64(len(data)), sectSize)
}

// padDevice extends head with zero bytes until the buffer spans the given
// number of 512-byte sectors, so ValidateEntryBounds checks against a
// device big enough to hold the entries the test declares.
func padDevice(head []byte, sectors int) []byte {
	total := sectors * 512
	if len(head) >= total {
		return head
	}
	out := make([]byte, total)
	copy(out, head)
	return out
}
