package probe

import (
	"github.com/blkcore/blkmount/internal/byteutil"
	"github.com/blkcore/blkmount/internal/partition"
	"github.com/blkcore/blkmount/internal/sector"
)

const (
	gptHeaderMinSize = 92
	gptEntrySize     = 128
	gptSignature     = "EFI PART"
)

// GPT implements the GUID Partition Table prober (spec.md §4.3.2). It
// declares no Magics — the dispatcher always invokes it, and it reports
// ProbeNone itself when no valid header is found at LBA 1 or the backup
// LBA.
type GPT struct {
	// GatePMBR, when true, requires a valid protective MBR before trying
	// the GPT header (the spec's "If PMBR gating is enabled").
	GatePMBR bool
}

func (g *GPT) Name() string              { return "gpt" }
func (g *GPT) Magics() []partition.Magic { return nil }

func (g *GPT) Probe(r sector.Reader, list *partition.List, _ *partition.ParentHint) (partition.Result, error) {
	sectSize := int64(r.LogicalSectorSize())
	if sectSize == 0 {
		sectSize = 512
	}
	totalLBA := r.TotalBytes() / sectSize
	if totalLBA < 3 {
		return partition.ProbeNone, nil
	}

	if g.GatePMBR {
		ok, err := validProtectiveMBR(r)
		if err != nil {
			return partition.ProbeNone, err
		}
		if !ok {
			return partition.ProbeNone, nil
		}
	}

	hdr, entBytes, ok, err := readValidHeader(r, sectSize, 1, totalLBA)
	if err != nil {
		return partition.ProbeNone, err
	}
	if !ok {
		hdr, entBytes, ok, err = readValidHeader(r, sectSize, totalLBA-1, totalLBA)
		if err != nil {
			return partition.ProbeNone, err
		}
		if !ok {
			return partition.ProbeNone, nil
		}
	}

	diskGUID := byteutil.GuidFromDiskBytes(hdr.diskGUID)
	tableID := list.NewTable("gpt", diskGUID.String(), hdr.myLBA*sectSize, list.ParentHint())

	factor := uint64(sectSize) / 512
	if factor == 0 {
		factor = 1
	}
	deviceSectors := uint64(r.TotalBytes()) / 512

	for i := uint32(0); i < hdr.numEntries; i++ {
		eb := entBytes[int(i)*gptEntrySize : int(i)*gptEntrySize+gptEntrySize]
		var typeGUID, partGUID [16]byte
		copy(typeGUID[:], eb[0:16])
		copy(partGUID[:], eb[16:32])
		if isZeroGUID(typeGUID) {
			list.SkipPartno()
			continue
		}
		startLBA := byteutil.U64LE(eb, 32)
		endLBA := byteutil.U64LE(eb, 40)
		attrs := byteutil.U64LE(eb, 48)
		name := byteutil.Utf16leDecode(eb[56:128], 72)

		if startLBA < hdr.firstUsable || endLBA > hdr.lastUsable || startLBA > endLBA {
			list.SkipPartno()
			continue
		}

		partno := list.NextPartno()
		ent := partition.Entry{
			Start:      startLBA * factor,
			Size:       (endLBA - startLBA + 1) * factor,
			TypeCode:   0,
			TypeString: byteutil.GuidFromDiskBytes(typeGUID).String(),
			Flags:      attrs,
			PartNumber: partno,
			UUID:       byteutil.GuidFromDiskBytes(partGUID),
			Name:       name,
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

type gptHeader struct {
	myLBA                int64
	firstUsable, lastUsable uint64
	diskGUID             [16]byte
	partEntryLBA         int64
	numEntries           uint32
	entrySize            uint32
	entryArrayCRC        uint32
}

// readValidHeader reads and validates the GPT header at lba, per spec.md
// §4.3.2's full header + entry-array check list. It returns ok=false (no
// error) for any "corrupted but recognizable" failure.
func readValidHeader(r sector.Reader, sectSize, lba, totalLBA int64) (gptHeader, []byte, bool, error) {
	var hdr gptHeader
	raw, err := r.ReadBytes(lba*sectSize, int(sectSize))
	if err != nil {
		return hdr, nil, false, err
	}
	if string(raw[0:8]) != gptSignature {
		return hdr, nil, false, nil
	}
	headerSize := byteutil.U32LE(raw, 12)
	if headerSize < gptHeaderMinSize || int64(headerSize) > sectSize {
		return hdr, nil, false, nil
	}
	storedCRC := byteutil.U32LE(raw, 16)

	check := make([]byte, headerSize)
	copy(check, raw[:headerSize])
	byteutil.PutU32LE(check, 16, 0)
	if byteutil.Crc32Exclude(check, byteutil.ByteRange{}) != storedCRC {
		return hdr, nil, false, nil
	}

	myLBA := int64(byteutil.U64LE(raw, 24))
	if myLBA != lba {
		return hdr, nil, false, nil
	}
	firstUsable := byteutil.U64LE(raw, 40)
	lastUsable := byteutil.U64LE(raw, 48)
	if firstUsable > lastUsable || lastUsable >= uint64(totalLBA) {
		return hdr, nil, false, nil
	}
	if myLBA >= int64(firstUsable) && myLBA <= int64(lastUsable) {
		return hdr, nil, false, nil // header must sit outside the usable range
	}

	var diskGUID [16]byte
	copy(diskGUID[:], raw[56:72])

	partEntryLBA := int64(byteutil.U64LE(raw, 72))
	numEntries := byteutil.U32LE(raw, 80)
	entrySize := byteutil.U32LE(raw, 84)
	entryArrayCRC := byteutil.U32LE(raw, 88)

	if entrySize != gptEntrySize {
		return hdr, nil, false, nil
	}
	totalArrayBytes := uint64(numEntries) * uint64(entrySize)
	if totalArrayBytes == 0 || totalArrayBytes > (1<<32) {
		return hdr, nil, false, nil
	}

	entBytes, err := r.ReadBytes(partEntryLBA*sectSize, int(totalArrayBytes))
	if err != nil {
		return hdr, nil, false, err
	}
	if byteutil.Crc32Exclude(entBytes, byteutil.ByteRange{}) != entryArrayCRC {
		return hdr, nil, false, nil
	}

	hdr = gptHeader{
		myLBA: myLBA, firstUsable: firstUsable, lastUsable: lastUsable,
		diskGUID: diskGUID, partEntryLBA: partEntryLBA,
		numEntries: numEntries, entrySize: entrySize, entryArrayCRC: entryArrayCRC,
	}
	return hdr, entBytes, true, nil
}

func isZeroGUID(g [16]byte) bool {
	for _, b := range g {
		if b != 0 {
			return false
		}
	}
	return true
}

// validProtectiveMBR reports whether sector 0 is shaped like a protective
// MBR (one 0xEE primary entry starting at LBA 1, the rest empty, and the
// boot signature present).
func validProtectiveMBR(r sector.Reader) (bool, error) {
	sect, err := r.ReadBytes(0, 512)
	if err != nil {
		return false, err
	}
	if sect[mbrSigOff] != 0x55 || sect[mbrSigOff+1] != 0xAA {
		return false, nil
	}
	entries := make([]mbrRawEntry, mbrNumPrimary)
	for i := 0; i < mbrNumPrimary; i++ {
		entries[i] = parseMBREntry(sect[mbrEntryOff+i*mbrEntrySize:])
	}
	return looksLikeProtectiveMBR(entries), nil
}
