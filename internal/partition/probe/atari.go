package probe

import (
	"fmt"

	"github.com/elliotwutingfeng/asciiset"

	"github.com/blkcore/blkmount/internal/byteutil"
	"github.com/blkcore/blkmount/internal/partition"
	"github.com/blkcore/blkmount/internal/sector"
)

// Atari (AHDI) root-sector layout, big-endian, 512 bytes only — this
// scheme predates any other sector size and the prober rejects devices
// whose logical sector size isn't exactly 512 (spec.md §4.3.3).
const (
	atariSectorSize  = 512
	atariICDOff      = 0x156
	atariICDCount    = 8
	atariEntrySize   = 12
	atariPrimaryOff  = 0x1C6
	atariPrimaryCnt  = 4
	atariFlagActive  = 0x01
	atariFlagBoot    = 0x80
)

// atariIDAlphanumeric is the accept set for partition-id bytes: the same
// alphanumeric ASCII character class the reference kernel's Atari
// partition code tests against (spec.md §9 Open Question 2), pinned via
// asciiset so it's verifiable byte-for-byte rather than hand-maintained.
var atariIDAlphanumeric, _ = asciiset.MakeASCIISet(
	"0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz")

// Atari implements the Atari/AHDI partition prober.
type Atari struct{}

func (a *Atari) Name() string              { return "atari" }
func (a *Atari) Magics() []partition.Magic { return nil }

func (a *Atari) Probe(r sector.Reader, list *partition.List, _ *partition.ParentHint) (partition.Result, error) {
	if r.LogicalSectorSize() != atariSectorSize {
		return partition.ProbeNone, nil
	}
	if r.TotalBytes() < atariSectorSize {
		return partition.ProbeNone, nil
	}
	root, err := r.ReadBytes(0, atariSectorSize)
	if err != nil {
		return partition.ProbeNone, err
	}

	primary := parseAtariEntries(root[atariPrimaryOff:], atariPrimaryCnt)
	if !atAriAnyValid(primary) {
		return partition.ProbeNone, nil
	}

	tableID := list.NewTable("atari", fmt.Sprintf("%08x", byteutil.U32BE(root, atariPrimaryOff-4)), 0, list.ParentHint())
	deviceSectors := uint64(r.TotalBytes()) / 512

	hasXGM := false
	for _, e := range primary {
		if !e.active || !validAtariID(e.id) {
			list.SkipPartno()
			continue
		}
		if e.id == "XGM" {
			hasXGM = true
			list.SkipPartno()
			continue
		}
		addAtariEntry(list, tableID, e, 0, deviceSectors)
	}

	if hasXGM {
		for _, e := range primary {
			if e.id == "XGM" && e.active {
				walkAtariExtended(r, list, tableID, e.start, e.start, deviceSectors, 0)
			}
		}
	} else {
		icd := parseAtariEntries(root[atariICDOff:], atariICDCount)
		if len(icd) > 0 && icd[0].active && isKnownICDID(icd[0].id) {
			for _, e := range icd {
				if !e.active || !validAtariID(e.id) {
					list.SkipPartno()
					continue
				}
				addAtariEntry(list, tableID, e, 0, deviceSectors)
			}
		}
	}

	return partition.ProbeOK, nil
}

type atariRawEntry struct {
	active bool
	id     string
	start  uint32
	size   uint32
}

func parseAtariEntries(b []byte, n int) []atariRawEntry {
	out := make([]atariRawEntry, 0, n)
	for i := 0; i < n; i++ {
		e := b[i*atariEntrySize : i*atariEntrySize+atariEntrySize]
		out = append(out, atariRawEntry{
			active: e[0]&atariFlagActive != 0,
			id:     string(e[1:4]),
			start:  byteutil.U32BE(e, 4),
			size:   byteutil.U32BE(e, 8),
		})
	}
	return out
}

func atAriAnyValid(entries []atariRawEntry) bool {
	for _, e := range entries {
		if e.active && validAtariID(e.id) {
			return true
		}
	}
	return false
}

func validAtariID(id string) bool {
	if len(id) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if !atariIDAlphanumeric.Contains(id[i]) {
			return false
		}
	}
	return true
}

func isKnownICDID(id string) bool {
	switch id {
	case "GEM", "BGM", "LNX", "SWP", "RAW":
		return true
	default:
		return false
	}
}

func addAtariEntry(list *partition.List, tableID partition.TableID, e atariRawEntry, base uint64, deviceSectors uint64) {
	if e.size == 0 {
		list.SkipPartno()
		return
	}
	partno := list.NextPartno()
	ent := partition.Entry{
		Start:      base + uint64(e.start),
		Size:       uint64(e.size),
		TypeString: e.id,
		PartNumber: partno,
		TableRef:   tableID,
	}
	if err := partition.ValidateEntryBounds(ent, deviceSectors); err != nil {
		return
	}
	if _, err := list.AddEntry(ent); err != nil {
		return
	}
}

// walkAtariExtended walks the XGM chain using the same link-then-data
// convention as the DOS EBR chain (spec.md §4.3.3): each extended sector
// holds a data partition, relative to that extended sector, and a link to
// the next extended sector, relative to the parental extended head,
// bounded to MaxChainHops.
func walkAtariExtended(r sector.Reader, list *partition.List, tableID partition.TableID, extHead, nextSect uint64, deviceSectors uint64, hop int) {
	if hop >= partition.MaxChainHops {
		return
	}
	off := int64(nextSect) * 512
	if off < 0 || off+atariSectorSize > r.TotalBytes() {
		return
	}
	sect, err := r.ReadBytes(off, atariSectorSize)
	if err != nil {
		return
	}
	entries := parseAtariEntries(sect[atariPrimaryOff:], atariPrimaryCnt)

	var link *atariRawEntry
	for i := range entries {
		e := entries[i]
		if !e.active || !validAtariID(e.id) {
			list.SkipPartno()
			continue
		}
		if e.id == "XGM" {
			link = &entries[i]
			list.SkipPartno()
			continue
		}
		addAtariEntry(list, tableID, e, nextSect, deviceSectors)
	}

	if link == nil {
		return
	}
	walkAtariExtended(r, list, tableID, extHead, extHead+uint64(link.start), deviceSectors, hop+1)
}
