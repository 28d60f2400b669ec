package partition

import "github.com/google/uuid"

// MaxNameBytes is the spec's 128-byte UTF-8 partition-name cap.
const MaxNameBytes = 128

// Entry mirrors spec.md's PartitionEntry. Start/Size are always in
// 512-byte logical sectors regardless of the underlying device's native
// sector size — conversion happens at ingestion, inside each prober.
type Entry struct {
	Start      uint64 // 512-byte sectors
	Size       uint64 // 512-byte sectors
	TypeCode   uint32
	TypeString string
	Flags      uint64
	PartNumber int
	UUID       uuid.UUID
	Name       string // decoded, trimmed, ≤ MaxNameBytes UTF-8 bytes
	TableRef   TableID
}

// End returns the sector one past the last sector of the entry.
func (e Entry) End() uint64 { return e.Start + e.Size }

func truncateName(s string) string {
	if len(s) <= MaxNameBytes {
		return s
	}
	// Truncate on a rune boundary so we never split a multi-byte UTF-8
	// sequence.
	// s[n] is the first byte cut off; while it is a continuation byte the
	// cut falls inside a rune, so move the cut back to that rune's start.
	n := MaxNameBytes
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}
