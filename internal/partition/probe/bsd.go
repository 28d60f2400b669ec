package probe

import (
	"fmt"

	"github.com/blkcore/blkmount/internal/byteutil"
	"github.com/blkcore/blkmount/internal/partition"
	"github.com/blkcore/blkmount/internal/sector"
)

const (
	bsdMagic       = 0x82564557
	bsdMaxEntries  = 16
	bsdFSUnused    = 0
	bsdLabelStart  = 0  // d_magic
	bsdNPartOff    = 140
	bsdPartTblOff  = 148
	bsdPartEntSize = 16
)

// bsdArchOffsets are the three architecture-dependent byte offsets the
// disklabel magic can appear at, relative to the start of the enclosing
// slice/partition (spec.md §4.3.3).
var bsdArchOffsets = []int64{0, 64, 128}

// BSD implements the BSD disklabel prober.
type BSD struct{}

func (b *BSD) Name() string              { return "bsd" }
func (b *BSD) Magics() []partition.Magic { return nil }

func (b *BSD) Probe(r sector.Reader, list *partition.List, parentHint *partition.ParentHint) (partition.Result, error) {
	for _, off := range bsdArchOffsets {
		if off+bsdPartTblOff+bsdPartEntSize > r.TotalBytes() {
			continue
		}
		head, err := r.ReadBytes(off, bsdPartTblOff)
		if err != nil {
			return partition.ProbeNone, err
		}
		if byteutil.U32LE(head, 0) != bsdMagic {
			continue
		}
		return b.probeAt(r, list, off, head, parentHint)
	}
	return partition.ProbeNone, nil
}

func (b *BSD) probeAt(r sector.Reader, list *partition.List, labelOff int64, head []byte, parentHint *partition.ParentHint) (partition.Result, error) {
	npart := int(byteutil.U16LE(head, bsdNPartOff))
	if npart <= 0 {
		npart = bsdMaxEntries
	}
	if npart > bsdMaxEntries {
		npart = bsdMaxEntries
	}

	tableOff := labelOff + bsdPartTblOff
	tblBytes, err := r.ReadBytes(tableOff, npart*bsdPartEntSize)
	if err != nil {
		return partition.ProbeNone, err
	}

	// Sentinel: a FreeBSD-typed DOS parent is detected by the third
	// entry having a zero offset (spec.md §4.3.3).
	relativeToParent := parentHint != nil && parentHint.FreeBSDTyped
	if npart >= 3 {
		third := tblBytes[2*bsdPartEntSize : 3*bsdPartEntSize]
		if byteutil.U32LE(third, 4) == 0 {
			relativeToParent = true
		}
	}

	typeName := "bsd"
	idString := fmt.Sprintf("%08x", labelOff)
	tableID := list.NewTable(typeName, idString, labelOff, list.ParentHint())

	deviceSectors := uint64(r.TotalBytes()) / 512
	var parentBase uint64
	if relativeToParent {
		// Offsets on disk are relative to the parent DOS partition's
		// start, but list entries live in the whole-device coordinate
		// space (same as the parent DOS table's own entries), so the
		// window's absolute base has to be folded back in.
		if win, ok := r.(*sector.Window); ok {
			parentBase = uint64(win.Base()) / 512
		}
	}

	for i := 0; i < npart; i++ {
		e := tblBytes[i*bsdPartEntSize : (i+1)*bsdPartEntSize]
		size := byteutil.U32LE(e, 0)
		start := byteutil.U32LE(e, 4)
		fstype := e[11]

		if size == 0 || fstype == bsdFSUnused {
			list.SkipPartno()
			continue
		}

		partno := list.NextPartno()
		// Bounds are checked against this window's own extent using the
		// on-disk (window-relative) start, before parentBase is folded
		// in for storage in the list's whole-device coordinate space.
		bound := partition.Entry{Start: uint64(start), Size: uint64(size)}
		if err := partition.ValidateEntryBounds(bound, deviceSectors); err != nil {
			continue
		}
		ent := partition.Entry{
			Start:      parentBase + uint64(start),
			Size:       uint64(size),
			TypeCode:   uint32(fstype),
			TypeString: fmt.Sprintf("%d", fstype),
			PartNumber: partno,
			TableRef:   tableID,
		}
		if _, err := list.AddEntry(ent); err != nil {
			continue
		}
	}

	return partition.ProbeOK, nil
}
