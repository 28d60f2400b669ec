package mountctx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/blkcore/blkmount/internal/errkind"
	"github.com/blkcore/blkmount/internal/mount/hookset"
	"github.com/blkcore/blkmount/internal/mount/optlist"
	"github.com/blkcore/blkmount/internal/mount/optmap"
)

// Prepare runs CREATED -> PREPARED: apply_fstab, merge_mflags,
// follow_optlist, evaluate_permissions, fix_optstr, prepare_srcpath,
// guess_fstype, prepare_target, prepare_helper, hooks(PREP).
func (c *MountContext) Prepare(ctx context.Context) error {
	if c.hasStatus(StatusPrepared) {
		return errkind.New(errkind.Option, "mountctx.Prepare", fmt.Errorf("already prepared"))
	}

	if err := c.applyFstab(ctx); err != nil {
		return c.fail(err)
	}
	c.mergeMflags()
	c.followOptlist()
	if err := c.evaluatePermissions(); err != nil {
		return c.fail(err)
	}
	c.fixOptstr()
	if err := c.prepareSrcpath(ctx); err != nil {
		return c.fail(err)
	}
	if err := c.guessFstype(); err != nil {
		return c.fail(err)
	}
	if err := c.prepareTarget(); err != nil {
		return c.fail(err)
	}
	c.prepareHelper()

	if err := c.Engine.RunThrough(c, hookset.PrepSource, hookset.Prep); err != nil {
		return c.fail(err)
	}

	c.setStatus(StatusPrepared)
	return nil
}

// applyFstab fuses an fstab entry into Fs when the caller hasn't already
// supplied source/target/fstype/optstr explicitly (spec.md §4.7:
// restricted mode requires this to have already run).
func (c *MountContext) applyFstab(ctx context.Context) error {
	if c.Fs.Source != "" && c.Fs.Target != "" {
		return nil
	}
	entry, err := c.Fstab.Lookup(ctx, c.Fs.Source, c.Fs.Target)
	if err != nil {
		return errkind.New(errkind.Fstab, "mountctx.applyFstab", err)
	}
	if entry == nil {
		if c.Restricted {
			return errkind.New(errkind.Fstab, "mountctx.applyFstab", fmt.Errorf("no fstab entry for %s %s", c.Fs.Source, c.Fs.Target))
		}
		return nil
	}
	if c.Fs.Source == "" {
		c.Fs.Source = entry.Source
	}
	if c.Fs.Target == "" {
		c.Fs.Target = entry.Target
	}
	if c.Fs.FSType == "" {
		c.Fs.FSType = entry.FSType
	}
	if c.Fs.OptStr == "" {
		c.Fs.OptStr = entry.OptStr
	}
	c.setStatus(StatusTabApplied)
	return nil
}

// mergeMflags seeds Fs.Options from OptStr (linux-vfs preferred, falling
// back to userspace) and folds the option list into merged mode.
func (c *MountContext) mergeMflags() {
	if c.Fs.Options.Age() == 0 && c.Fs.OptStr != "" {
		_ = c.Fs.Options.AppendFromString(c.Fs.OptStr, c.VfsMap)
	}
	c.Fs.Options.Merge()
}

// followOptlist derives the convenience flag-word fields from the
// option list's O(1) aggregate bits.
func (c *MountContext) followOptlist() {
	opts := c.Fs.Options
	c.Fs.Attrs = opts.GetFlags(c.VfsMap, optlist.FilterAll)
	c.Fs.Propagation = opts.Propagation()
}

// evaluatePermissions implements restricted-user evaluation (spec.md
// §4.7): user/users/owner/group gating, MS_SECURE insertion on success.
func (c *MountContext) evaluatePermissions() error {
	if !c.Restricted {
		return nil
	}
	if !c.hasStatus(StatusTabApplied) {
		return errkind.New(errkind.Permission, "mountctx.evaluatePermissions", fmt.Errorf("fstab not applied"))
	}

	var hasUser, hasUsers, hasOwner, hasGroup bool
	var trigger string
	for _, o := range c.Fs.Options.Options() {
		switch o.Name {
		case "user":
			hasUser, trigger = true, "user"
		case "users":
			hasUsers, trigger = true, "users"
		case "owner":
			hasOwner, trigger = true, "owner"
		case "group":
			hasGroup, trigger = true, "group"
		}
	}

	allowed := false
	if hasOwner || hasGroup {
		if st, err := os.Stat(c.Fs.Source); err == nil && isBlockDeviceUnderDev(c.Fs.Source, st) {
			if hasOwner && ownedByCaller(st, c.RealUID) {
				allowed = true
			}
			if hasGroup && groupedWithCaller(st, c.RealGID) {
				allowed = true
			}
		}
	}
	if !allowed && (hasUser || hasUsers) {
		allowed = true
	}
	if !allowed {
		return errkind.New(errkind.Permission, "mountctx.evaluatePermissions", fmt.Errorf("no permitting option for restricted mount"))
	}

	_ = c.Fs.Options.InsertFlags(unix.MS_NOSUID|unix.MS_NODEV|unix.MS_NOEXEC, c.VfsMap, c.lookupTriggerID(trigger), c.UserMap)
	return nil
}

func (c *MountContext) lookupTriggerID(name string) uint64 {
	if c.UserMap == nil {
		return 0
	}
	e, ok := c.UserMap.Lookup(name)
	if !ok {
		return 0
	}
	return e.ID
}

func isBlockDeviceUnderDev(path string, fi os.FileInfo) bool {
	return strings.HasPrefix(path, "/dev/") && fi.Mode()&os.ModeDevice != 0 &&
		fi.Mode()&os.ModeCharDevice == 0
}

func ownedByCaller(fi os.FileInfo, uid int) bool {
	st, ok := fi.Sys().(*unix.Stat_t)
	return ok && int(st.Uid) == uid
}

func groupedWithCaller(fi os.FileInfo, gid int) bool {
	st, ok := fi.Sys().(*unix.Stat_t)
	return ok && int(st.Gid) == gid
}

// fixOptstr resolves uid=/gid= values (spec.md §4.7 "uid=/gid= fixup")
// in place, then marks the list dirty so cached strings rebuild.
func (c *MountContext) fixOptstr() {
	opts := c.Fs.Options.Options()
	changed := false
	for i, o := range opts {
		if o.Map != c.UserMap || !o.HasValue {
			continue
		}
		isGID := o.Name == "gid"
		if o.Name != "uid" && !isGID {
			continue
		}
		resolved, err := resolveID(o.Value, isGID, pick(isGID, c.RealGID, c.RealUID))
		if err != nil || resolved == o.Value {
			continue
		}
		_ = c.Fs.Options.UpdateValue(i, resolved)
		changed = true
	}
	if changed {
		c.setStatus(StatusMountOptsFixed)
	}
}

func pick(cond bool, a, b int) int {
	if cond {
		return a
	}
	return b
}

// prepareSrcpath resolves a file-backed Source through the loop-device
// collaborator when "loop" (or loop=<dev>) is present.
func (c *MountContext) prepareSrcpath(ctx context.Context) error {
	var wantLoop bool
	var explicit string
	for _, o := range c.Fs.Options.Options() {
		if o.Name == "loop" {
			wantLoop = true
			explicit = o.Value
		}
	}
	if !wantLoop || c.Loop == nil {
		return nil
	}
	if explicit != "" {
		c.Fs.Source = explicit
		return nil
	}
	dev, err := c.Loop.Attach(ctx, c.Fs.Source)
	if err != nil {
		return errkind.New(errkind.Loop, "mountctx.prepareSrcpath", err)
	}
	c.Fs.Source = dev
	return nil
}

// knownFilesystems is the configured guess list "auto" scans, in try
// order, mirroring the classic mount(8) probe-list convention.
var knownFilesystems = []string{"ext4", "xfs", "btrfs", "vfat", "ntfs3", "iso9660"}

// guessFstype implements the type-list behavior minus the actual
// mount() attempt (that happens per-candidate in do_mount): it resolves
// a bare "auto" (or empty FSType) to the configured guess list, leaving
// the full candidate list on Fs for do_mount to walk.
func (c *MountContext) guessFstype() error {
	if c.Fs.FSType == "" {
		c.Fs.FSType = "auto"
	}
	if c.Fs.FSType != "auto" {
		return nil
	}
	if len(knownFilesystems) == 0 {
		return errkind.New(errkind.Option, "mountctx.guessFstype", fmt.Errorf("no known filesystems configured for auto"))
	}
	return nil
}

// typeCandidates splits Fs.FSType on ',' and expands a bare "auto"
// member into the configured guess list (spec.md §4.7's type list).
func (c *MountContext) typeCandidates() []string {
	var out []string
	for _, t := range strings.Split(c.Fs.FSType, ",") {
		if t == "auto" {
			out = append(out, knownFilesystems...)
			continue
		}
		out = append(out, t)
	}
	return out
}

func (c *MountContext) prepareTarget() error {
	if c.Fs.Target == "" {
		return errkind.New(errkind.Option, "mountctx.prepareTarget", fmt.Errorf("no target"))
	}
	return nil
}

// prepareHelper is a no-op placeholder: external mount helper dispatch
// (/sbin/mount.<type>) is out of scope; the kernel path is always taken.
func (c *MountContext) prepareHelper() {}

// Do runs PREPARED -> MOUNTED: hooks(MOUNT_PRE/MOUNT/MOUNT_POST), the
// propagation-only fast path, bind+settable-flags two-call pattern, the
// type-list walk, and the read-only retry.
func (c *MountContext) Do(ctx context.Context) error {
	if !c.hasStatus(StatusPrepared) {
		return errkind.New(errkind.Option, "mountctx.Do", fmt.Errorf("not prepared"))
	}

	if err := c.rejectIfOnlyOnce(ctx); err != nil {
		return c.fail(err)
	}

	if err := c.Engine.RunStage(c, hookset.MountPre); err != nil {
		return c.fail(err)
	}

	if err := c.mountStage(ctx); err != nil {
		return c.fail(err)
	}

	if err := c.Engine.RunStage(c, hookset.MountPost); err != nil {
		return c.fail(err)
	}
	return nil
}

func (c *MountContext) mountStage(ctx context.Context) error {
	opts := c.Fs.Options

	if opts.PropagationOnly() {
		return c.mountOnce(ctx, c.Fs.FSType, opts.Propagation()|opts.GetFlags(c.VfsMap, optlist.FilterAll)&optmap.IDRec)
	}

	flags := opts.GetFlags(c.VfsMap, optlist.FilterAll)

	if opts.IsBind() && !opts.IsRemount() {
		bindFlags := uint64(optmap.IDBind)
		if opts.IsRBind() {
			bindFlags |= optmap.IDRec
		}
		if err := c.mountOnce(ctx, c.Fs.FSType, bindFlags); err != nil {
			return err
		}
		settable := flags &^ (optmap.IDBind | optmap.IDRec)
		if settable == 0 {
			return c.Engine.RunStage(c, hookset.Mount)
		}
		if err := c.mountOnce(ctx, c.Fs.FSType, optmap.IDRemount|bindFlags|settable); err != nil {
			return err
		}
		return c.Engine.RunStage(c, hookset.Mount)
	}

	var lastErr error
	for _, fstype := range c.typeCandidates() {
		err := c.mountOnce(ctx, fstype, flags)
		if err == nil {
			return c.Engine.RunStage(c, hookset.Mount)
		}
		lastErr = err
		if !errors.Is(err, unix.EINVAL) && !errors.Is(err, unix.ENODEV) {
			break
		}
	}
	if lastErr != nil {
		return lastErr
	}
	return c.Engine.RunStage(c, hookset.Mount)
}

// mountOnce issues a single mount(2) call through Kernel, applying the
// read-only retry rule on EROFS/EACCES/EBUSY (spec.md §4.7).
func (c *MountContext) mountOnce(ctx context.Context, fstype string, flags uint64) error {
	data := c.Fs.Options.GetOptstr(c.VfsMap, optlist.FilterDefault)
	err := c.Kernel.Mount(c.Fs.Source, c.Target(), fstype, uintptr(flags), data)
	if err == nil {
		c.lastErr = nil
		return nil
	}
	c.lastErr = err

	if c.shouldRetryReadonly(ctx, err, flags) {
		c.setStatus(StatusForcedRdonly)
		retryErr := c.Kernel.Mount(c.Fs.Source, c.Target(), fstype, uintptr(flags|optmap.IDReadOnly), data)
		c.lastErr = retryErr
		if retryErr == nil {
			return nil
		}
		return errkind.New(errkind.Kernel, "mountctx.mountOnce", retryErr)
	}
	return errkind.New(errkind.Kernel, "mountctx.mountOnce", err)
}

// rejectIfOnlyOnce implements the "Only-once" error kind (spec.md §7): a
// plain (non-bind, non-remount, non-propagation-only) mount request is
// rejected if mountinfo already reports an equivalent mount at the same
// source/target. Bind mounts and remounts are exempt since stacking them
// onto an existing mount is the whole point.
func (c *MountContext) rejectIfOnlyOnce(ctx context.Context) error {
	opts := c.Fs.Options
	if opts.IsBind() || opts.IsRemount() || opts.PropagationOnly() || c.MountInfo == nil {
		return nil
	}
	only, err := c.MountInfo.IsOnlyOnce(ctx, c.Fs.Source, c.Fs.Target)
	if err != nil {
		return errkind.New(errkind.OnlyOnce, "mountctx.Do", err)
	}
	if only {
		return errkind.New(errkind.OnlyOnce, "mountctx.Do", fmt.Errorf("%s already mounted on %s", c.Fs.Source, c.Fs.Target))
	}
	return nil
}

func (c *MountContext) shouldRetryReadonly(ctx context.Context, err error, flags uint64) bool {
	if flags&(optmap.IDReadOnly|optmap.IDRemount|optmap.IDBind) != 0 {
		return false
	}
	if errors.Is(err, unix.EROFS) || errors.Is(err, unix.EACCES) {
		return true
	}
	if errors.Is(err, unix.EBUSY) && c.MountInfo != nil {
		if mounted, readonly, _ := c.MountInfo.Mounted(ctx, c.Fs.Source); mounted && readonly {
			return true
		}
	}
	return false
}

// Finalize runs MOUNTED -> FINAL: the POST hook stage, then every
// hookset's Deinit. It does not write a utab record; no tab file is
// updated.
func (c *MountContext) Finalize(ctx context.Context) error {
	if err := c.Engine.RunStage(c, hookset.Post); err != nil {
		return c.fail(err)
	}
	c.Engine.RunDeinit(c)
	return nil
}

func (c *MountContext) fail(err error) error {
	c.lastErr = err
	c.Engine.RunDeinit(c)
	return err
}
