// Package mountctx implements the mount context (C8, spec.md §4.7): the
// per-request state machine that drives a single filesystem mount or
// unmount from a raw option string through to a completed kernel call.
package mountctx

import (
	"github.com/blkcore/blkmount/internal/mount/optlist"
	"github.com/blkcore/blkmount/internal/mount/optmap"
)

// Action is the operation a MountContext is performing.
type Action int

const (
	ActionMount Action = iota
	ActionUmount
)

// MountFs is spec.md's MountFs: the descriptor of a single filesystem
// line, optionally backed by a structured OptionList once the context
// needs more than the raw strings.
type MountFs struct {
	Source      string
	Target      string
	FSType      string
	OptStr      string
	UserOptStr  string
	VfsOptStr   string
	FsOptStr    string
	Attrs       uint64
	Root        string
	Propagation uint64

	Options *optlist.OptionList
}

// NewMountFs builds an empty MountFs with a fresh OptionList searching
// registry.
func NewMountFs(registry *optmap.Registry) *MountFs {
	return &MountFs{Options: optlist.New(registry)}
}
