package mountctx

import (
	"github.com/blkcore/blkmount/internal/errkind"
	"github.com/blkcore/blkmount/internal/mount/collab"
	"github.com/blkcore/blkmount/internal/mount/hookset"
	"github.com/blkcore/blkmount/internal/mount/optlist"
	"github.com/blkcore/blkmount/internal/mount/optmap"
)

// Private status bits (spec.md §4.7).
const (
	StatusPrepared uint32 = 1 << iota
	StatusMountOptsFixed
	StatusSavedUser
	StatusForcedRdonly
	StatusTabApplied
)

// MountContext owns exactly one MountFs being acted upon (spec.md §3).
// It is single-use: once Finalize (or a terminal error) completes, a
// caller must build a new MountContext for the next mount.
type MountContext struct {
	Fs     *MountFs
	Action Action

	VfsMap   *optmap.Map
	UserMap  *optmap.Map
	Registry *optmap.Registry

	Fstab      collab.FstabSource
	MountInfo  collab.MountInfoSource
	Loop       collab.LoopDeviceSetup
	Kernel     Kernel
	Translator errkind.Translator

	Engine *hookset.Engine

	Restricted bool
	RealUID    int
	RealGID    int

	status       uint32
	lastErr      error
	queued       map[hookset.Stage][]hookset.QueuedHook
	stateDict    map[string]any
	savedUserOpt string
}

// New builds a MountContext for the given action, wired with registry's
// linux-vfs/userspace maps and engine. Collaborators start as the no-op
// fstab and mount-info sources, DefaultKernel, and a nil Loop. A nil
// MountInfo or Loop is skipped; Fstab is called without a nil check, so
// a nil Fstab panics in Prepare.
func New(action Action, registry *optmap.Registry, vfsMap, userMap *optmap.Map, engine *hookset.Engine) *MountContext {
	return &MountContext{
		Fs:        NewMountFs(registry),
		Action:    action,
		Registry:  registry,
		VfsMap:    vfsMap,
		UserMap:   userMap,
		Fstab:     collab.NoopFstabSource,
		MountInfo: collab.NoopMountInfoSource,
		Kernel:    DefaultKernel,
		Engine:    engine,
		queued:    make(map[hookset.Stage][]hookset.QueuedHook),
		stateDict: make(map[string]any),
	}
}

func (c *MountContext) hasStatus(bit uint32) bool { return c.status&bit != 0 }
func (c *MountContext) setStatus(bit uint32)      { c.status |= bit }

// LastError returns the last syscall/operation status preserved for
// diagnostic reporting, per spec.md §4.7's "Any failure preserves the
// last syscall status" rule.
func (c *MountContext) LastError() error { return c.lastErr }

// --- hookset.Context ---

func (c *MountContext) QueueHook(stage hookset.Stage, name string, fn hookset.Hook, after string) {
	c.queued[stage] = append(c.queued[stage], hookset.QueuedHook{Name: name, Fn: fn, After: after})
}

func (c *MountContext) PopQueued(stage hookset.Stage) []hookset.QueuedHook {
	q := c.queued[stage]
	c.queued[stage] = nil
	return q
}

func (c *MountContext) State(name string) any       { return c.stateDict[name] }
func (c *MountContext) SetState(name string, v any) { c.stateDict[name] = v }

func (c *MountContext) Options() *optlist.OptionList { return c.Fs.Options }
func (c *MountContext) Target() string               { return c.Fs.Target }
func (c *MountContext) SetTarget(path string)         { c.Fs.Target = path }

// Privileged reports whether the caller may perform privileged
// operations. A context is privileged unless Restricted was set true by
// the caller (mirroring "the real user is not privileged" in §4.7).
func (c *MountContext) Privileged() bool { return !c.Restricted }
