package probe

import (
	"fmt"

	"github.com/blkcore/blkmount/internal/byteutil"
	"github.com/blkcore/blkmount/internal/partition"
	"github.com/blkcore/blkmount/internal/sector"
)

// Sun disklabel (SMI VTOC) layout, big-endian, within sector 0's 512
// bytes. Field order follows the reference kernel's struct
// sun_disklabel; this prober is "summary-level" per spec.md §4.3.3 (not a
// byte-for-byte compatibility requirement the way Atari is).
const (
	sunLabelSize   = 512
	sunVtocVerOff  = 128
	sunSanityOff   = 140
	sunNPartOff    = 144
	sunTagPermOff  = 146
	sunNcylOff     = 430
	sunNtrksOff    = 434
	sunNsectOff    = 436
	sunPartTblOff  = 444
	sunMagicOff    = 508
	sunCsumOff     = 510
	sunMagic       = 0xDABE
	sunVtocSanity  = 0x600DDEEE
	sunNumLegacy   = 8
	sunWholeDisk   = 5 // tag value meaning "whole disk"
)

// Sun implements the Sun/SMI disklabel prober.
type Sun struct{}

func (s *Sun) Name() string { return "sun" }

func (s *Sun) Magics() []partition.Magic {
	sig := []byte{0xDA, 0xBE}
	return []partition.Magic{{Pattern: sig, Offset: sunMagicOff}}
}

func (s *Sun) Probe(r sector.Reader, list *partition.List, _ *partition.ParentHint) (partition.Result, error) {
	if r.TotalBytes() < sunLabelSize {
		return partition.ProbeNone, nil
	}
	label, err := r.ReadBytes(0, sunLabelSize)
	if err != nil {
		return partition.ProbeNone, err
	}
	if byteutil.U16BE(label, sunMagicOff) != sunMagic {
		return partition.ProbeNone, nil
	}
	if !sunChecksumOK(label) {
		return partition.ProbeNone, nil
	}

	ntrks := uint64(byteutil.U16BE(label, sunNtrksOff))
	nsect := uint64(byteutil.U16BE(label, sunNsectOff))
	secPerCyl := ntrks * nsect
	if secPerCyl == 0 {
		secPerCyl = 1
	}

	vtocValid := byteutil.U32BE(label, sunSanityOff) == sunVtocSanity
	nparts := sunNumLegacy
	if vtocValid {
		if n := int(byteutil.U16BE(label, sunNPartOff)); n > 0 && n <= sunNumLegacy {
			nparts = n
		}
	}

	tableID := list.NewTable("sun", fmt.Sprintf("%08x", byteutil.U32BE(label, 0)), 0, list.ParentHint())
	deviceSectors := uint64(r.TotalBytes()) / 512

	for i := 0; i < sunNumLegacy; i++ {
		if i >= nparts {
			list.SkipPartno()
			continue
		}
		if vtocValid {
			tag := byteutil.U16BE(label, sunTagPermOff+i*4)
			if tag == sunWholeDisk {
				list.SkipPartno()
				continue
			}
		}
		e := label[sunPartTblOff+i*8 : sunPartTblOff+i*8+8]
		startCyl := byteutil.U32BE(e, 0)
		numSectors := byteutil.U32BE(e, 4)
		if numSectors == 0 {
			list.SkipPartno()
			continue
		}
		partno := list.NextPartno()
		ent := partition.Entry{
			Start:      uint64(startCyl) * secPerCyl,
			Size:       uint64(numSectors),
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

// sunChecksumOK validates the classic Sun disklabel checksum: XOR every
// 16-bit big-endian word of the 512-byte label together; a correctly
// checksummed label (csum field included) XORs to zero.
func sunChecksumOK(label []byte) bool {
	var x uint16
	for i := 0; i+1 < len(label); i += 2 {
		x ^= byteutil.U16BE(label, i)
	}
	return x == 0
}
