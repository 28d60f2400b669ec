package partition

import (
	"context"

	"github.com/blkcore/blkmount/internal/sector"
)

// SuperblockOracle is the external collaborator spec.md §9 Open Question 1
// asks for: an explicit callback from the DOS prober into the
// filesystem-superblock probe chain this design treats as out of scope,
// used to reject an MBR that is actually a FAT superblock, instead of the
// partition subsystem duplicating FAT detection itself.
type SuperblockOracle interface {
	// IsFilesystem reports whether r looks like a superblock of the named
	// filesystem (e.g. "vfat").
	IsFilesystem(ctx context.Context, r sector.Reader, name string) (bool, error)
}

type noopOracle struct{}

func (noopOracle) IsFilesystem(context.Context, sector.Reader, string) (bool, error) {
	return false, nil
}

// NoopSuperblockOracle never recognizes anything as a filesystem, which
// makes the DOS prober behave exactly as if no external FAT chain were
// wired in at all.
var NoopSuperblockOracle SuperblockOracle = noopOracle{}
