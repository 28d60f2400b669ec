// Package collab holds the narrow external-collaborator interfaces
// spec.md's Out-of-scope list calls for (fstab parsing, mountinfo
// parsing, loop-device setup): the core depends on these interfaces, and
// ships only no-op or thin-adapter defaults, never the real parsers.
package collab

import "context"

// FstabEntry is the subset of a parsed /etc/fstab line MountContext
// fuses into a MountFs via apply_fstab (spec.md §4.7).
type FstabEntry struct {
	Source string
	Target string
	FSType string
	OptStr string
	Freq   int
	PassNo int
}

// FstabSource is consulted by apply_fstab; fstab parsing itself stays
// out of scope (spec.md §1).
type FstabSource interface {
	Lookup(ctx context.Context, source, target string) (*FstabEntry, error)
}

type noopFstab struct{}

func (noopFstab) Lookup(context.Context, string, string) (*FstabEntry, error) { return nil, nil }

// NoopFstabSource never finds an fstab entry.
var NoopFstabSource FstabSource = noopFstab{}

// MountInfoSource answers the questions the read-only retry and
// only-once checks need from /proc/self/mountinfo, without this module
// parsing it itself.
type MountInfoSource interface {
	Mounted(ctx context.Context, source string) (mounted, readonly bool, err error)
	IsOnlyOnce(ctx context.Context, source, target string) (bool, error)
}

type noopMountInfo struct{}

func (noopMountInfo) Mounted(context.Context, string) (bool, bool, error) { return false, false, nil }
func (noopMountInfo) IsOnlyOnce(context.Context, string, string) (bool, error) {
	return false, nil
}

// NoopMountInfoSource reports nothing mounted and nothing restricted to
// mount-once, which makes MountContext behave as if it always has a
// clean mountinfo view.
var NoopMountInfoSource MountInfoSource = noopMountInfo{}

// LoopDeviceSetup attaches/detaches a loop device for a file-backed
// mount source. The default implementation lives in internal/loophelper
// (a thin external-process adapter); this interface is what the core
// depends on instead.
type LoopDeviceSetup interface {
	Attach(ctx context.Context, imagePath string) (devicePath string, err error)
	Detach(ctx context.Context, devicePath string) error
}
