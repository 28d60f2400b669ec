package dispatch

import (
	"fmt"

	"github.com/blkcore/blkmount/internal/byteutil"
	"github.com/blkcore/blkmount/internal/partition"
	"github.com/blkcore/blkmount/internal/sector"
)

// pmbrAlone recognizes the fallback case spec.md §4.4 places right after
// GPT in priority order: a sector 0 shaped like a protective MBR (one
// 0xEE entry at LBA 1, nothing else) whose GPT header didn't validate —
// both copies missing, corrupt, or checksum-mismatched. Rather than
// reporting nothing, it yields a single whole-disk entry spanning the
// 0xEE slot, which is what a PMBR promises even when its GPT body is
// unreadable. The DOS and GPT probers run first and claim this sector
// whenever a genuine DOS or GPT table is present, so by the time this
// runs, a match here means "protective MBR, nothing readable behind it".
const (
	pmbrEntryOff  = 446
	pmbrEntrySize = 16
	pmbrSigOff    = 510
	pmbrNumSlots  = 4
	pmbrTypeEFI   = 0xEE
)

type pmbrAlone struct{}

func (p *pmbrAlone) Name() string              { return "pmbr" }
func (p *pmbrAlone) Magics() []partition.Magic { return nil }

func (p *pmbrAlone) Probe(r sector.Reader, list *partition.List, _ *partition.ParentHint) (partition.Result, error) {
	if r.TotalBytes() < 512 {
		return partition.ProbeNone, nil
	}
	sect, err := r.ReadBytes(0, 512)
	if err != nil {
		return partition.ProbeNone, err
	}
	if sect[pmbrSigOff] != 0x55 || sect[pmbrSigOff+1] != 0xAA {
		return partition.ProbeNone, nil
	}

	var start, size uint32
	eeCount := 0
	for i := 0; i < pmbrNumSlots; i++ {
		e := sect[pmbrEntryOff+i*pmbrEntrySize:]
		typ := e[4]
		sizeSectors := byteutil.U32LE(e, 12)
		if typ == pmbrTypeEFI {
			eeCount++
			start = byteutil.U32LE(e, 8)
			size = sizeSectors
		} else if sizeSectors != 0 {
			return partition.ProbeNone, nil
		}
	}
	if eeCount != 1 || start != 1 || size == 0 {
		return partition.ProbeNone, nil
	}

	deviceSectors := uint64(r.TotalBytes()) / 512
	tableID := list.NewTable("pmbr", fmt.Sprintf("%08x", start), 0, list.ParentHint())
	ent := partition.Entry{
		Start:      uint64(start),
		Size:       uint64(size),
		TypeCode:   pmbrTypeEFI,
		TypeString: fmt.Sprintf("0x%02x", pmbrTypeEFI),
		PartNumber: list.NextPartno(),
		TableRef:   tableID,
	}
	if err := partition.ValidateEntryBounds(ent, deviceSectors); err != nil {
		return partition.ProbeNone, nil
	}
	if _, err := list.AddEntry(ent); err != nil {
		return partition.ProbeNone, nil
	}

	return partition.ProbeOK, nil
}
