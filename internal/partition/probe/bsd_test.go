package probe

import (
	"testing"

	"github.com/blkcore/blkmount/internal/byteutil"
	"github.com/blkcore/blkmount/internal/partition"
)

// buildBSDLabel places a disklabel at architecture offset archOff within a
// device of the given size (in sectors), with npart entries starting at
// bsdPartTblOff, entry 0 populated with {start,size,fstype}.
func buildBSDLabel(sectors int, archOff int64, npart int, start, size uint32, fstype byte) []byte {
	dev := make([]byte, sectors*512)
	label := dev[archOff:]
	byteutil.PutU32LE(label, 0, bsdMagic)
	label[bsdNPartOff] = byte(npart)
	label[bsdNPartOff+1] = byte(npart >> 8)

	e := label[bsdPartTblOff : bsdPartTblOff+bsdPartEntSize]
	byteutil.PutU32LE(e, 0, size)
	byteutil.PutU32LE(e, 4, start)
	e[11] = fstype
	return dev
}

func TestBSDProbeParsesSingleEntry(t *testing.T) {
	dev := buildBSDLabel(200, 0, 3, 100, 50, 7)
	r := newReader(dev, 512)
	list := partition.New()

	res, err := (&BSD{}).Probe(r, list, nil)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if res != partition.ProbeOK {
		t.Fatalf("Probe result = %v, want ProbeOK", res)
	}
	got := list.Entries()
	if len(got) != 1 {
		t.Fatalf("got %d entries, want 1", len(got))
	}
	if got[0].Start != 100 || got[0].Size != 50 || got[0].TypeCode != 7 {
		t.Errorf("entry = %+v, want Start=100 Size=50 TypeCode=7", got[0])
	}
}

func TestBSDProbeTriesEachArchOffset(t *testing.T) {
	dev := buildBSDLabel(200, 64, 3, 10, 20, 1)
	r := newReader(dev, 512)
	list := partition.New()

	res, err := (&BSD{}).Probe(r, list, nil)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if res != partition.ProbeOK {
		t.Fatalf("Probe result = %v, want ProbeOK for a label at the second arch offset", res)
	}
	if len(list.Entries()) != 1 {
		t.Errorf("got %d entries, want 1", len(list.Entries()))
	}
}

func TestBSDProbeNoneWithoutMagic(t *testing.T) {
	dev := make([]byte, 200*512)
	r := newReader(dev, 512)
	list := partition.New()

	res, err := (&BSD{}).Probe(r, list, nil)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if res != partition.ProbeNone {
		t.Errorf("Probe result = %v, want ProbeNone", res)
	}
}
