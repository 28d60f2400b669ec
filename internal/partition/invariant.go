package partition

import (
	"fmt"

	"github.com/blkcore/blkmount/internal/errkind"
)

// ValidateEntryBounds checks spec.md §8 invariant 5: 0 <= start and
// start+size <= deviceSectors (device size in 512-byte sectors).
func ValidateEntryBounds(e Entry, deviceSectors uint64) error {
	if e.Start > deviceSectors || e.End() > deviceSectors {
		return errkind.New(errkind.Option, "partition.ValidateEntryBounds",
			fmt.Errorf("entry [%d,%d) exceeds device of %d sectors", e.Start, e.End(), deviceSectors))
	}
	return nil
}

// ValidateNested checks spec.md §3: a nested table's byte offset lies
// within [parentStart, parentStart+parentSize) (both in 512-byte
// sectors), and that the table's own entries are fully inside that range.
func ValidateNested(tableOffsetSectors uint64, parentStart, parentSize uint64, entries []Entry) error {
	if tableOffsetSectors < parentStart || tableOffsetSectors >= parentStart+parentSize {
		return errkind.New(errkind.Option, "partition.ValidateNested",
			fmt.Errorf("nested table at sector %d outside parent [%d,%d)", tableOffsetSectors, parentStart, parentStart+parentSize))
	}
	parentEnd := parentStart + parentSize
	for _, e := range entries {
		if e.Start < parentStart || e.End() > parentEnd {
			return errkind.New(errkind.Option, "partition.ValidateNested",
				fmt.Errorf("nested entry [%d,%d) escapes parent [%d,%d)", e.Start, e.End(), parentStart, parentEnd))
		}
	}
	return nil
}
