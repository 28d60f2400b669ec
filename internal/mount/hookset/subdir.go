package hookset

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/blkcore/blkmount/internal/utils/logger"
)

// SubdirState tracks the private scratch path allocated for one mount
// operation's X-mount.subdir handling, so the MOUNT_POST hook can find
// it without re-deriving anything.
type SubdirState struct {
	PrivatePath string
	RealTarget  string
	Subdir      string
}

// Subdir implements the "subdir" built-in hookset: at PREP_TARGET, if
// X-mount.subdir=<path> is present, swap the real target for a unique
// private namespace path, schedule a MOUNT_PRE hook to unshare the mount
// namespace and make that path private, and a MOUNT_POST hook to
// bind-mount (or kernel-move-mount, if available) private_path/<subdir>
// to the original target and unmount the private scratch.
var Subdir = &Hookset{
	Name:       "subdir",
	FirstStage: PrepTarget,
	FirstCall:  subdirPrepTarget,
}

func subdirPrepTarget(ctx Context) error {
	opts := ctx.Options()
	var subdir string
	var found bool
	for _, o := range opts.Options() {
		if o.Name == "X-mount.subdir" {
			subdir = o.Value
			found = true
			break
		}
	}
	if !found || subdir == "" {
		return nil
	}

	realTarget := ctx.Target()
	privatePath, err := os.MkdirTemp("", "blkmount-subdir-*")
	if err != nil {
		return fmt.Errorf("subdir hookset: %w", err)
	}

	ctx.SetState(Subdir.Name, &SubdirState{PrivatePath: privatePath, RealTarget: realTarget, Subdir: subdir})
	ctx.SetTarget(privatePath)

	ctx.QueueHook(MountPre, "subdir-unshare", subdirUnshare, "")
	ctx.QueueHook(MountPost, "subdir-relocate", subdirRelocate, "")
	return nil
}

func subdirUnshare(ctx Context) error {
	st, _ := ctx.State(Subdir.Name).(*SubdirState)
	if st == nil {
		return nil
	}
	if err := unix.Unshare(unix.CLONE_NEWNS); err != nil {
		return fmt.Errorf("subdir hookset: unshare: %w", err)
	}
	if err := unix.Mount("none", st.PrivatePath, "", unix.MS_PRIVATE|unix.MS_REC, ""); err != nil {
		return fmt.Errorf("subdir hookset: make-private %s: %w", st.PrivatePath, err)
	}
	return nil
}

func subdirRelocate(ctx Context) error {
	log := logger.Logger()
	st, _ := ctx.State(Subdir.Name).(*SubdirState)
	if st == nil {
		return nil
	}
	src := filepath.Join(st.PrivatePath, st.Subdir)

	if err := moveMountFD(src, st.RealTarget); err != nil {
		log.Debugf("subdir hookset: FD-based move_mount unavailable (%v), falling back to classic bind", err)
		if err := unix.Mount(src, st.RealTarget, "", unix.MS_BIND, ""); err != nil {
			return fmt.Errorf("subdir hookset: bind %s -> %s: %w", src, st.RealTarget, err)
		}
	}

	if err := unix.Unmount(st.PrivatePath, unix.MNT_DETACH); err != nil {
		log.Debugf("subdir hookset: detaching private scratch %s: %v", st.PrivatePath, err)
	}
	_ = os.Remove(st.PrivatePath)
	ctx.SetTarget(st.RealTarget)
	return nil
}

// moveMountFD tries the FD-based open_tree(2)/move_mount(2) pair, which
// avoids the path-based bind mount's races. It returns an error (never
// panics) on any older kernel that doesn't implement these syscalls, so
// callers can fall back to a classic bind mount.
func moveMountFD(src, dst string) error {
	fd, err := unix.OpenTree(unix.AT_FDCWD, src, unix.OPEN_TREE_CLONE|unix.AT_RECURSIVE)
	if err != nil {
		return fmt.Errorf("open_tree: %w", err)
	}
	defer unix.Close(fd)

	if err := unix.MoveMount(fd, "", unix.AT_FDCWD, dst, unix.MOVE_MOUNT_F_EMPTY_PATH); err != nil {
		return fmt.Errorf("move_mount: %w", err)
	}
	return nil
}
