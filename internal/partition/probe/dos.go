// Package probe implements one Prober per supported partitioning scheme
// (spec.md §4.3): DOS/MBR, GPT, BSD, Sun, SGI, Atari, AIX.
package probe

import (
	"context"
	"errors"
	"fmt"

	"github.com/blkcore/blkmount/internal/byteutil"
	"github.com/blkcore/blkmount/internal/errkind"
	"github.com/blkcore/blkmount/internal/partition"
	"github.com/blkcore/blkmount/internal/sector"
)

const (
	mbrEntryOff    = 446
	mbrEntrySize   = 16
	mbrSigOff      = 510
	mbrDiskSigOff  = 440
	mbrNumPrimary  = 4
	mbrExtNextPart = 5 // next_partno is forced to this after primary entries

	typeExtendedDOS  = 0x05
	typeExtendedW95  = 0x0F
	typeExtendedLBA  = 0x0F
	typeExtendedLnx  = 0x85
	typeEFIGPT       = 0xEE
	typeFreeBSD      = 0xA5
	typeNetBSD       = 0xA9
	typeOpenBSD      = 0xA6
	typeUnixWare     = 0x63
	typeSolarisX86   = 0x82
	typeMinix        = 0x81
	typeMinixOld     = 0x80
	largeDiskSectors = 1 << 32 / 512 // "large disks only" threshold for nested-subtype dispatch
)

// DOS implements the MBR/DOS partition-table prober (spec.md §4.3.1).
type DOS struct {
	// Oracle lets the DOS prober ask an external filesystem-superblock
	// chain whether sector 0 is actually a FAT superblock (Open
	// Question 1). Nil behaves like partition.NoopSuperblockOracle.
	Oracle partition.SuperblockOracle
	// NestedDispatch is invoked for a primary slot whose type implies a
	// nested scheme (BSD family, UnixWare, Solaris x86, Minix), with a
	// window covering that partition. It's supplied by the top-level
	// dispatcher (C5) to avoid an import cycle between probe and
	// dispatch; DOS itself only decides *when* to recurse.
	NestedDispatch func(r sector.Reader, list *partition.List, hint *partition.ParentHint) error
}

func (d *DOS) Name() string { return "dos" }

func (d *DOS) Magics() []partition.Magic {
	sig := make([]byte, 2)
	sig[0], sig[1] = 0x55, 0xAA
	return []partition.Magic{{Pattern: sig, Offset: mbrSigOff}}
}

func (d *DOS) Probe(r sector.Reader, list *partition.List, parentHint *partition.ParentHint) (partition.Result, error) {
	sect, err := r.ReadBytes(0, 512)
	if err != nil {
		return partition.ProbeNone, err
	}
	if sect[mbrSigOff] != 0x55 || sect[mbrSigOff+1] != 0xAA {
		return partition.ProbeNone, nil
	}

	oracle := d.Oracle
	if oracle == nil {
		oracle = partition.NoopSuperblockOracle
	}
	if isFAT, _ := oracle.IsFilesystem(context.Background(), r, "vfat"); isFAT {
		return partition.ProbeNone, nil
	}

	entries := make([]mbrRawEntry, mbrNumPrimary)
	hasPMBR := false
	for i := 0; i < mbrNumPrimary; i++ {
		e := parseMBREntry(sect[mbrEntryOff+i*mbrEntrySize:])
		if e.boot != 0x00 && e.boot != 0x80 {
			return partition.ProbeNone, nil
		}
		if e.typ == typeEFIGPT {
			hasPMBR = true
		}
		entries[i] = e
	}
	if hasPMBR && looksLikeProtectiveMBR(entries) {
		// PMBR is handled by the GPT prober, not us.
		return partition.ProbeNone, nil
	}

	sectSize := r.LogicalSectorSize()
	factor := uint64(sectSize) / 512
	if factor == 0 {
		factor = 1
	}

	diskSig := sect[mbrDiskSigOff : mbrDiskSigOff+4]
	idString := fmt.Sprintf("%02x%02x%02x%02x", diskSig[3], diskSig[2], diskSig[1], diskSig[0])

	tableID := list.NewTable("dos", idString, 0, list.ParentHint())

	deviceSectors := uint64(r.TotalBytes()) / 512
	large := deviceSectors >= largeDiskSectors

	var extendedSlots []mbrRawEntry
	for i, e := range entries {
		if e.sizeSectors == 0 {
			list.SkipPartno()
			continue
		}
		partno := list.NextPartno()
		start := uint64(e.startLBA) * factor
		size := uint64(e.sizeSectors) * factor
		ent := partition.Entry{
			Start: start, Size: size,
			TypeCode: uint32(e.typ), TypeString: fmt.Sprintf("0x%02x", e.typ),
			PartNumber: partno, TableRef: tableID,
		}
		if err := partition.ValidateEntryBounds(ent, deviceSectors); err != nil {
			continue
		}
		if _, err := list.AddEntry(ent); err != nil {
			continue // duplicate start: partno already consumed above
		}

		switch e.typ {
		case typeExtendedDOS, typeExtendedW95, typeExtendedLnx:
			extendedSlots = append(extendedSlots, e)
		case typeFreeBSD, typeNetBSD, typeOpenBSD:
			if large && d.NestedDispatch != nil {
				hint := &partition.ParentHint{ParentTypeCode: uint32(e.typ), FreeBSDTyped: e.typ == typeFreeBSD}
				sub, werr := sector.NewWindow(r, int64(start)*512, int64(size)*512)
				if werr == nil {
					list.SetParentHint(tableID)
					_ = d.NestedDispatch(sub, list, hint)
					list.SetParentHint(partition.NoTable)
				}
			}
		case typeUnixWare, typeSolarisX86, typeMinix, typeMinixOld:
			if large && d.NestedDispatch != nil {
				hint := &partition.ParentHint{ParentTypeCode: uint32(e.typ)}
				sub, werr := sector.NewWindow(r, int64(start)*512, int64(size)*512)
				if werr == nil {
					list.SetParentHint(tableID)
					_ = d.NestedDispatch(sub, list, hint)
					list.SetParentHint(partition.NoTable)
				}
			}
		}
		_ = i
	}

	list.SetNextPartno(mbrExtNextPart)

	for _, ext := range extendedSlots {
		if err := walkExtendedChain(r, list, tableID, ext, factor, deviceSectors); err != nil {
			var kerr *errkind.Error
			if errors.As(err, &kerr) && kerr.Kind == errkind.IO {
				return partition.ProbeNone, err
			}
			// Circular/over-long EBR chain: corrupted but recognizable.
			// Primaries (and whatever of the chain was walked before the
			// hop limit hit) stay in list; DOS is still the winner.
			break
		}
	}

	return partition.ProbeOK, nil
}

type mbrRawEntry struct {
	boot        byte
	typ         byte
	startLBA    uint32
	sizeSectors uint32
}

func parseMBREntry(b []byte) mbrRawEntry {
	return mbrRawEntry{
		boot:        b[0],
		typ:         b[4],
		startLBA:    byteutil.U32LE(b, 8),
		sizeSectors: byteutil.U32LE(b, 12),
	}
}

// looksLikeProtectiveMBR reports whether entries is shaped like a PMBR: a
// single 0xEE entry starting at LBA 1, the rest empty.
func looksLikeProtectiveMBR(entries []mbrRawEntry) bool {
	eeCount := 0
	for _, e := range entries {
		if e.typ == typeEFIGPT {
			eeCount++
			if e.startLBA != 1 {
				return false
			}
		} else if e.sizeSectors != 0 {
			return false
		}
	}
	return eeCount == 1
}

// walkExtendedChain walks the linked EBR chain starting at the given
// DOS_EXT/W95_EXT/LINUX_EXT primary slot, bounded to partition.MaxChainHops
// EBRs to defuse circular references (spec.md §3/§4.3.1).
func walkExtendedChain(r sector.Reader, list *partition.List, tableID partition.TableID, head mbrRawEntry, factor, deviceSectors uint64) error {
	extendedHeadLBA := uint64(head.startLBA)
	nextLBA := extendedHeadLBA

	for hop := 0; hop < partition.MaxChainHops; hop++ {
		off := int64(nextLBA) * int64(factor) * 512
		if off < 0 || off+512 > r.TotalBytes() {
			return nil // malformed EBR: stop, keep what we have
		}
		sect, err := r.ReadBytes(off, 512)
		if err != nil {
			return err
		}
		if sect[mbrSigOff] != 0x55 || sect[mbrSigOff+1] != 0xAA {
			return nil
		}

		data := parseMBREntry(sect[mbrEntryOff:])
		link := parseMBREntry(sect[mbrEntryOff+mbrEntrySize:])

		if data.boot != 0x00 && data.boot != 0x80 {
			return nil
		}

		if data.sizeSectors != 0 {
			partno := list.NextPartno()
			start := (nextLBA + uint64(data.startLBA)) * factor
			size := uint64(data.sizeSectors) * factor
			ent := partition.Entry{
				Start: start, Size: size,
				TypeCode: uint32(data.typ), TypeString: fmt.Sprintf("0x%02x", data.typ),
				PartNumber: partno, TableRef: tableID,
			}
			if err := partition.ValidateEntryBounds(ent, deviceSectors); err == nil {
				if _, err := list.AddEntry(ent); err != nil {
					return nil
				}
			}
		} else {
			list.SkipPartno()
		}

		if link.boot != 0 && link.boot != 0x80 {
			return nil // inactive link: terminate
		}
		if link.sizeSectors == 0 {
			return nil // no further link: terminate
		}
		nextLBA = extendedHeadLBA + uint64(link.startLBA)
	}
	return errkind.New(errkind.Option, "probe.DOS.walkExtendedChain", fmt.Errorf("extended chain exceeded %d hops", partition.MaxChainHops))
}
