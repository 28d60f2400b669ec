package optmap

import "golang.org/x/sys/unix"

// Aggregate ids used by OptionList's O(1) aggregate-bit bookkeeping
// (spec.md §4.6 "Aggregate-bit maintenance"). These mirror the kernel's
// own MS_* flag values via golang.org/x/sys/unix so the flag word this
// module builds is directly usable by unix.Mount.
const (
	IDReadOnly     = unix.MS_RDONLY
	IDNoSuid       = unix.MS_NOSUID
	IDNoDev        = unix.MS_NODEV
	IDNoExec       = unix.MS_NOEXEC
	IDSync         = unix.MS_SYNCHRONOUS
	IDRemount      = unix.MS_REMOUNT
	IDMandLock     = unix.MS_MANDLOCK
	IDDirSync      = unix.MS_DIRSYNC
	IDNoATime      = unix.MS_NOATIME
	IDNoDirATime   = unix.MS_NODIRATIME
	IDBind         = unix.MS_BIND
	IDMove         = unix.MS_MOVE
	IDRec          = unix.MS_REC
	IDSilent       = unix.MS_SILENT
	IDRelATime     = unix.MS_RELATIME
	IDStrictATime  = unix.MS_STRICTATIME
	IDShared       = unix.MS_SHARED
	IDSlave        = unix.MS_SLAVE
	IDPrivate      = unix.MS_PRIVATE
	IDUnbindable   = unix.MS_UNBINDABLE
	idAtimeDefault = 0 // "atime" itself carries no bit — it's the reset target

	// IDNoSymFollow is MS_NOSYMFOLLOW (kernel 5.10+). golang.org/x/sys/unix
	// doesn't expose it yet, so it's hand-pinned against the kernel UAPI
	// header, same as the mount_attr bits in optlist/attrs.go.
	IDNoSymFollow = 0x100
)

// LinuxVFS is the built-in map of options the kernel's vfs layer
// interprets directly (spec.md §4.5).
func LinuxVFS() *Map {
	return New("linux-vfs", []MapEntry{
		{Name: "defaults", ID: 0},
		{Name: "ro", ID: IDReadOnly},
		{Name: "rw", ID: IDReadOnly, Mask: Invert},
		{Name: "suid", ID: IDNoSuid, Mask: Invert},
		{Name: "nosuid", ID: IDNoSuid},
		{Name: "dev", ID: IDNoDev, Mask: Invert},
		{Name: "nodev", ID: IDNoDev},
		{Name: "exec", ID: IDNoExec, Mask: Invert},
		{Name: "noexec", ID: IDNoExec},
		{Name: "sync", ID: IDSync},
		{Name: "async", ID: IDSync, Mask: Invert},
		{Name: "remount", ID: IDRemount},
		{Name: "mand", ID: IDMandLock},
		{Name: "nomand", ID: IDMandLock, Mask: Invert},
		{Name: "dirsync", ID: IDDirSync},
		{Name: "atime", ID: idAtimeDefault},
		{Name: "noatime", ID: IDNoATime},
		{Name: "diratime", ID: IDNoDirATime, Mask: Invert},
		{Name: "nodiratime", ID: IDNoDirATime},
		{Name: "relatime", ID: IDRelATime},
		{Name: "norelatime", ID: IDRelATime, Mask: Invert},
		{Name: "strictatime", ID: IDStrictATime},
		{Name: "symfollow", ID: IDNoSymFollow, Mask: Invert},
		{Name: "nosymfollow", ID: IDNoSymFollow},
		{Name: "bind", ID: IDBind},
		{Name: "rbind", ID: IDBind | IDRec},
		{Name: "move", ID: IDMove},
		{Name: "silent", ID: IDSilent},
		{Name: "loud", ID: IDSilent, Mask: Invert},
		{Name: "shared", ID: IDShared},
		{Name: "rshared", ID: IDShared | IDRec},
		{Name: "slave", ID: IDSlave},
		{Name: "rslave", ID: IDSlave | IDRec},
		{Name: "private", ID: IDPrivate},
		{Name: "rprivate", ID: IDPrivate | IDRec},
		{Name: "unbindable", ID: IDUnbindable},
		{Name: "runbindable", ID: IDUnbindable | IDRec},
	})
}

// Userspace-only ids: these never contribute to the kernel flag word
// (ExternalOnly) and several are consumed before the mount(2) call ever
// happens (SepNoData).
const (
	uidUser = 1 << iota
	uidUsers
	uidOwner
	uidGroup
	uidNoAuto
	uidAuto
	uidLoop
	uidUID
	uidGID
	uidMkdir
	uidSubdir
	uidContext
	uidFsContext
	uidDefContext
	uidRootContext
	uidSeclabel
	uidNoHelpers
)

// Userspace is the built-in map of options this module interprets itself
// rather than forwarding to the kernel (spec.md §4.5).
func Userspace() *Map {
	ext := ExternalOnly
	return New("userspace", []MapEntry{
		{Name: "user", ID: uidUser, Mask: ext | NoMtab},
		{Name: "users", ID: uidUsers, Mask: ext | NoMtab},
		{Name: "owner", ID: uidOwner, Mask: ext | NoMtab},
		{Name: "group", ID: uidGroup, Mask: ext | NoMtab},
		{Name: "noauto", ID: uidNoAuto, Mask: ext | NoMtab | SepNoData},
		{Name: "auto", ID: uidAuto, Mask: ext | Invert | NoMtab | SepNoData},
		{Name: "loop", ID: uidLoop, Mask: ext | SepNoData, TypeHint: StringValue},
		{Name: "uid", ID: uidUID, Mask: ext | SepNoData, TypeHint: StringValue},
		{Name: "gid", ID: uidGID, Mask: ext | SepNoData, TypeHint: StringValue},
		{Name: "X-mount.mkdir", ID: uidMkdir, Mask: ext | NoMtab | NoHelpers | SepNoData, TypeHint: StringValue},
		{Name: "X-mount.subdir", ID: uidSubdir, Mask: ext | NoMtab | NoHelpers | SepNoData, TypeHint: StringValue},
		{Name: "context", ID: uidContext, Mask: SepNoData, TypeHint: StringValue},
		{Name: "fscontext", ID: uidFsContext, Mask: SepNoData, TypeHint: StringValue},
		{Name: "defcontext", ID: uidDefContext, Mask: SepNoData, TypeHint: StringValue},
		{Name: "rootcontext", ID: uidRootContext, Mask: SepNoData, TypeHint: StringValue},
		{Name: "seclabel", ID: uidSeclabel, Mask: SepNoData},
		{Name: "X-mount.nohelpers", ID: uidNoHelpers, Mask: ext | NoMtab | NoHelpers},
	})
}
