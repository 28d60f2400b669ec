package optlist

import "github.com/blkcore/blkmount/internal/mount/optmap"

// Kernel mount_attr_t bits (linux/mount.h), used by get_attrs to convert
// accumulated linux-vfs flags into the set/clear masks fsmount/
// mount_setattr-style callers need. golang.org/x/sys/unix doesn't expose
// these (they're newer mount-API ABI constants, not syscall numbers), so
// they're hand-pinned here against the kernel UAPI header rather than
// left to a library that doesn't cover them.
const (
	AttrReadOnly    uint64 = 0x00000001
	AttrNoSuid      uint64 = 0x00000002
	AttrNoDev       uint64 = 0x00000004
	AttrNoExec      uint64 = 0x00000008
	attrAtimeMask   uint64 = 0x00000070
	AttrRelAtime    uint64 = 0x00000000
	AttrNoAtime     uint64 = 0x00000010
	AttrStrictAtime uint64 = 0x00000020
	AttrNoDirAtime  uint64 = 0x00000080
	AttrNoSymFollow uint64 = 0x00200000
)

// AttrMode names get_attrs' REC/NOREC split. GetAttrs returns the same
// masks for both values.
type AttrMode int

const (
	AttrNonRecursive AttrMode = iota
	AttrRecursive
)

// GetAttrs converts accumulated linux-vfs set/clr flag words (as
// returned by OptionList.GetFlags) into kernel mount-attribute set/clr
// masks (spec.md §4.6). Whenever any atime bit is set, the other atime
// bits are folded into clr so only one atime mode is ever active. No
// reset mask is added for a remount: isBindOrRemount only controls
// whether AttrRelAtime is ORed into the set, and AttrRelAtime is zero.
func GetAttrs(setFlags, clrFlags uint64, isBindOrRemount bool, mode AttrMode) (attrSet, attrClr uint64) {
	translate := func(flags uint64) uint64 {
		var a uint64
		if flags&optmap.IDReadOnly != 0 {
			a |= AttrReadOnly
		}
		if flags&optmap.IDNoSuid != 0 {
			a |= AttrNoSuid
		}
		if flags&optmap.IDNoDev != 0 {
			a |= AttrNoDev
		}
		if flags&optmap.IDNoExec != 0 {
			a |= AttrNoExec
		}
		if flags&optmap.IDNoDirATime != 0 {
			a |= AttrNoDirAtime
		}
		if flags&optmap.IDRelATime != 0 {
			a |= AttrRelAtime
		}
		if flags&optmap.IDNoATime != 0 {
			a |= AttrNoAtime
		}
		if flags&optmap.IDStrictATime != 0 {
			a |= AttrStrictAtime
		}
		if flags&optmap.IDNoSymFollow != 0 {
			a |= AttrNoSymFollow
		}
		return a
	}

	attrSet = translate(setFlags)
	attrClr = translate(clrFlags)

	if !isBindOrRemount {
		// AttrRelAtime is 0, so this leaves attrSet unchanged; no
		// atime-family or exec/dev/suid bits are reset here.
		attrSet |= AttrRelAtime
	}

	if attrSet&attrAtimeMask != 0 {
		attrClr |= attrAtimeMask &^ (attrSet & attrAtimeMask)
	}

	if mode == AttrRecursive {
		// Recursive application is a caller-side propagation concern
		// (AT_RECURSIVE on mount_setattr), not an additional bit in this
		// mask; callers pass AttrRecursive through to the syscall wrapper
		// directly. Kept as a parameter so call sites read symmetrically
		// with spec.md's REC/NOREC mode split.
		_ = mode
	}

	return attrSet, attrClr
}
