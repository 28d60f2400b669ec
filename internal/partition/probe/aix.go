package probe

import (
	"fmt"

	"github.com/blkcore/blkmount/internal/partition"
	"github.com/blkcore/blkmount/internal/sector"
)

// AIX LVM physical-volume identifier, stored in the IPL record at the
// very start of the device. Only the magic is recognized here — no
// internal layout is parsed, matching spec.md §4.3.3's "its presence
// pre-empts DOS detection" rule and nothing more.
const (
	aixMagicOff = 0
	aixMagic    = 0xC9C2D4C1
)

// AIX implements magic-only recognition of an AIX physical volume.
type AIX struct{}

func (a *AIX) Name() string { return "aix" }

func (a *AIX) Magics() []partition.Magic {
	return []partition.Magic{{
		Pattern: []byte{0xC9, 0xC2, 0xD4, 0xC1},
		Offset:  aixMagicOff,
	}}
}

func (a *AIX) Probe(r sector.Reader, list *partition.List, _ *partition.ParentHint) (partition.Result, error) {
	if r.TotalBytes() < 4 {
		return partition.ProbeNone, nil
	}
	head, err := r.ReadBytes(aixMagicOff, 4)
	if err != nil {
		return partition.ProbeNone, err
	}
	if head[0] != 0xC9 || head[1] != 0xC2 || head[2] != 0xD4 || head[3] != 0xC1 {
		return partition.ProbeNone, nil
	}

	// Recognized, but no entries are produced: an AIX PV carries its own
	// logical-volume manager metadata that this module does not parse.
	list.NewTable("aix", fmt.Sprintf("%08x", aixMagic), 0, list.ParentHint())
	return partition.ProbeOK, nil
}
