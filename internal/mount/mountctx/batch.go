package mountctx

import (
	"context"

	"github.com/blkcore/blkmount/internal/errkind"
	"github.com/blkcore/blkmount/internal/mount/collab"
	"github.com/blkcore/blkmount/internal/mount/hookset"
	"github.com/blkcore/blkmount/internal/mount/optmap"
)

// Request is one already-resolved entry of a batch — fstab's shape
// ({source,target,fstype,optstr}) supplied programmatically instead of
// read from /etc/fstab.
type Request struct {
	Source string
	Target string
	FSType string
	OptStr string
}

// Result records how one Request's mount attempt went.
type Result struct {
	Request Request
	Err     error
}

// RequestSet drives a sequence of Requests through prepare_mount ->
// do_mount -> finalize_mount, one MountContext per entry (C10: the
// natural extension of C8's per-entry state machine to several
// already-resolved entries, filling the multi-entry driving loop the
// distillation dropped along with fstab parsing itself).
type RequestSet struct {
	Registry  *optmap.Registry
	VfsMap    *optmap.Map
	UserMap   *optmap.Map
	NewEngine func() *hookset.Engine

	// Kernel, Fstab, MountInfo, and Loop override the per-MountContext
	// defaults New sets (the real Kernel, no-op fstab/mount-info
	// sources, and a nil Loop). Nil here leaves New's own default in
	// place. Set these to drive a whole batch against fakes (testing
	// without root, or a dry-run mode) or to wire a real loophelper.Helper
	// so batch entries can mount loop-backed images.
	Kernel    Kernel
	Fstab     collab.FstabSource
	MountInfo collab.MountInfoSource
	Loop      collab.LoopDeviceSetup

	// ContinueOnError, when true, keeps driving later requests after a
	// hard failure instead of stopping at the first one.
	ContinueOnError bool
}

// Run drives every request in order, returning one Result per request.
// It stops after the first hard failure unless ContinueOnError is set;
// an Only-once failure (the target is already mounted as requested)
// never counts as hard and never halts the batch.
func (s *RequestSet) Run(ctx context.Context, requests []Request) []Result {
	results := make([]Result, 0, len(requests))
	for _, req := range requests {
		mc := New(ActionMount, s.Registry, s.VfsMap, s.UserMap, s.NewEngine())
		mc.Fs.Source = req.Source
		mc.Fs.Target = req.Target
		mc.Fs.FSType = req.FSType
		mc.Fs.OptStr = req.OptStr

		if s.Kernel != nil {
			mc.Kernel = s.Kernel
		}
		if s.Fstab != nil {
			mc.Fstab = s.Fstab
		}
		if s.MountInfo != nil {
			mc.MountInfo = s.MountInfo
		}
		if s.Loop != nil {
			mc.Loop = s.Loop
		}

		err := s.runOne(ctx, mc)
		results = append(results, Result{Request: req, Err: err})

		if err != nil && !errkind.OnlyOnce.Is(err) && !s.ContinueOnError {
			break
		}
	}
	return results
}

func (s *RequestSet) runOne(ctx context.Context, mc *MountContext) error {
	if err := mc.Prepare(ctx); err != nil {
		return err
	}
	if err := mc.Do(ctx); err != nil {
		return err
	}
	return mc.Finalize(ctx)
}
