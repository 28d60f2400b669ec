package probe

import (
	"encoding/binary"
	"testing"

	"github.com/blkcore/blkmount/internal/partition"
)

// buildAtariRoot pads the device out to 500 sectors so the declared entry
// (in 512-byte-sector units, per Entry's contract) always fits within the
// device bounds ValidateEntryBounds checks against.
func buildAtariRoot(id string, start, size uint32) []byte {
	root := make([]byte, 500*atariSectorSize)
	e := root[atariPrimaryOff : atariPrimaryOff+atariEntrySize]
	e[0] = atariFlagActive
	copy(e[1:4], id)
	binary.BigEndian.PutUint32(e[4:8], start)
	binary.BigEndian.PutUint32(e[8:12], size)
	return root
}

func TestAtariProbeParsesSinglePrimaryEntry(t *testing.T) {
	root := buildAtariRoot("LNX", 100, 200)
	r := newReader(root, atariSectorSize)
	list := partition.New()

	res, err := (&Atari{}).Probe(r, list, nil)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if res != partition.ProbeOK {
		t.Fatalf("Probe result = %v, want ProbeOK", res)
	}
	entries := list.Entries()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Start != 100 || entries[0].Size != 200 || entries[0].TypeString != "LNX" {
		t.Errorf("entry = %+v, want Start=100 Size=200 TypeString=LNX", entries[0])
	}
}

func TestAtariProbeNoneWithoutActiveEntry(t *testing.T) {
	root := make([]byte, atariSectorSize)
	r := newReader(root, atariSectorSize)
	list := partition.New()

	res, err := (&Atari{}).Probe(r, list, nil)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if res != partition.ProbeNone {
		t.Errorf("Probe result = %v, want ProbeNone", res)
	}
}

func TestAtariProbeRejectsNonStandardSectorSize(t *testing.T) {
	root := buildAtariRoot("LNX", 100, 200)
	r := newReader(root, 4096)
	list := partition.New()

	res, err := (&Atari{}).Probe(r, list, nil)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if res != partition.ProbeNone {
		t.Errorf("Probe result = %v, want ProbeNone for a non-512 logical sector size", res)
	}
}

func TestValidAtariIDRejectsNonAlphanumeric(t *testing.T) {
	if validAtariID("X-Y") {
		t.Errorf("expected an id containing '-' to be rejected")
	}
	if !validAtariID("GEM") {
		t.Errorf("expected a known alphanumeric id to be accepted")
	}
}
