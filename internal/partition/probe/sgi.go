package probe

import (
	"fmt"

	"github.com/blkcore/blkmount/internal/byteutil"
	"github.com/blkcore/blkmount/internal/partition"
	"github.com/blkcore/blkmount/internal/sector"
)

// SGI volume-header layout, big-endian, 512 bytes. Field order follows
// the reference kernel's struct sgi_disklabel; summary-level per
// spec.md §4.3.3.
const (
	sgiLabelSize  = 512
	sgiMagic      = 0x0BE5A941
	sgiPartTblOff = 312
	sgiNumEntries = 16
	sgiPartEntSz  = 12
	sgiCsumOff    = 504
)

// SGI implements the SGI volume-header prober.
type SGI struct{}

func (s *SGI) Name() string { return "sgi" }

func (s *SGI) Magics() []partition.Magic {
	sig := []byte{0x0B, 0xE5, 0xA9, 0x41}
	return []partition.Magic{{Pattern: sig, Offset: 0}}
}

func (s *SGI) Probe(r sector.Reader, list *partition.List, _ *partition.ParentHint) (partition.Result, error) {
	if r.TotalBytes() < sgiLabelSize {
		return partition.ProbeNone, nil
	}
	label, err := r.ReadBytes(0, sgiLabelSize)
	if err != nil {
		return partition.ProbeNone, err
	}
	if byteutil.U32BE(label, 0) != sgiMagic {
		return partition.ProbeNone, nil
	}
	if !sgiChecksumOK(label) {
		return partition.ProbeNone, nil
	}

	// The classic SGI volume header carries no UUID-like identity field;
	// a CRC32 over the label stands in as a content-derived ID, the way
	// the DOS prober uses its disk signature.
	idString := fmt.Sprintf("%08x", byteutil.Crc32Exclude(label, byteutil.ByteRange{}))
	tableID := list.NewTable("sgi", idString, 0, list.ParentHint())
	deviceSectors := uint64(r.TotalBytes()) / 512

	for i := 0; i < sgiNumEntries; i++ {
		e := label[sgiPartTblOff+i*sgiPartEntSz : sgiPartTblOff+i*sgiPartEntSz+sgiPartEntSz]
		numBlocks := byteutil.U32BE(e, 0)
		firstBlock := byteutil.U32BE(e, 4)
		typ := byteutil.U32BE(e, 8)

		if numBlocks == 0 || typ == 0 {
			list.SkipPartno()
			continue
		}
		partno := list.NextPartno()
		ent := partition.Entry{
			Start:      uint64(firstBlock),
			Size:       uint64(numBlocks),
			TypeCode:   typ,
			TypeString: fmt.Sprintf("%d", typ),
			PartNumber: partno,
			TableRef:   tableID,
		}
		if err := partition.ValidateEntryBounds(ent, deviceSectors); err != nil {
			continue
		}
		if _, err := list.AddEntry(ent); err != nil {
			continue
		}
	}

	return partition.ProbeOK, nil
}

// sgiChecksumOK validates the SGI volume-header checksum: the sum of
// every 32-bit big-endian word in the 512-byte label must be zero
// (mod 2^32), per spec.md §4.3.3.
func sgiChecksumOK(label []byte) bool {
	var sum uint32
	for i := 0; i+3 < len(label); i += 4 {
		sum += byteutil.U32BE(label, i)
	}
	return sum == 0
}
