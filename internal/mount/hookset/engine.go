// Package hookset implements the hookset engine (C9, spec.md §4.8): a
// staged dispatcher that runs named hook bundles and dynamically queued
// hooks through a fixed sequence of mount-lifecycle stages, honoring
// "after"-name dependency ordering within a stage.
package hookset

import "github.com/blkcore/blkmount/internal/mount/optlist"

// Stage is one point in the mount lifecycle hooks can anchor to.
type Stage int

const (
	PrepSource  Stage = 100
	PrepTarget  Stage = 101
	PrepOptions Stage = 102
	Prep        Stage = 103
	MountPre    Stage = 200
	Mount       Stage = 201
	MountPost   Stage = 202
	Post        Stage = 300
)

// Stages is every stage, in run order.
var Stages = []Stage{PrepSource, PrepTarget, PrepOptions, Prep, MountPre, Mount, MountPost, Post}

// Hook is a single unit of work run against a Context. A non-nil error
// aborts the current stage; hookset cleanup still runs (Engine.RunDeinit,
// or RunAll's own deinit pass).
type Hook func(ctx Context) error

// Hookset is a named bundle that runs FirstCall the first time Engine
// reaches FirstStage, plus an optional Deinit invoked once at the end of
// a mount operation regardless of success.
type Hookset struct {
	Name       string
	FirstStage Stage
	FirstCall  Hook
	Deinit     func(ctx Context) error
}

// QueuedHook is a hook dynamically registered (spec.md §4.8: "a hook may
// register additional hooks for any later stage on the same context"),
// optionally anchored to run only after another named hook in the same
// stage has already executed.
type QueuedHook struct {
	Name  string
	Fn    Hook
	After string
}

// Context is what MountContext implements so hookset.Engine never needs
// to import internal/mount/mountctx (which in turn imports hookset).
type Context interface {
	// QueueHook registers fn to run at stage, named name, optionally
	// anchored after another hook named "after" within the same stage.
	QueueHook(stage Stage, name string, fn Hook, after string)
	// PopQueued drains and returns every hook queued for stage since the
	// last call for that stage.
	PopQueued(stage Stage) []QueuedHook
	// State returns the per-hookset-keyed state previously stored via
	// SetState for hooksetName, or nil.
	State(hooksetName string) any
	SetState(hooksetName string, v any)

	// Options returns the mount request's option list.
	Options() *optlist.OptionList
	// Target returns the current mount target path.
	Target() string
	// SetTarget swaps the mount target (used by the subdir hookset).
	SetTarget(path string)
	// Privileged reports whether the caller may perform privileged
	// operations (mkdir on behalf of the request, SELinux relabeling).
	Privileged() bool
}

// Engine runs a fixed set of static Hooksets through every Stage in
// order, merging in whatever each hook dynamically queues along the way.
type Engine struct {
	hooksets []*Hookset
}

// NewEngine builds an Engine with the given static hooksets.
func NewEngine(hooksets ...*Hookset) *Engine {
	return &Engine{hooksets: hooksets}
}

// RunStage runs every hook due at stage: (a) every static Hookset whose
// FirstStage equals stage, then (b) every hook queued for stage (in
// registration order), recursively unblocking anything anchored `after`
// a name that just ran. Each hook runs at most once per call (the
// "executed-bit reset at stage boundaries" spec.md describes — it lives
// only for the duration of this call).
func (e *Engine) RunStage(ctx Context, stage Stage) error {
	type item struct {
		name  string
		fn    Hook
		after string
	}
	var items []item
	for _, hs := range e.hooksets {
		if hs.FirstStage == stage {
			items = append(items, item{hs.Name, hs.FirstCall, ""})
		}
	}

	executed := make(map[string]bool)
	for {
		for _, q := range ctx.PopQueued(stage) {
			items = append(items, item{q.Name, q.Fn, q.After})
		}
		progress := false
		for _, it := range items {
			if executed[it.name] {
				continue
			}
			if it.after != "" && !executed[it.after] {
				continue
			}
			if err := it.fn(ctx); err != nil {
				return err
			}
			executed[it.name] = true
			progress = true
		}
		if !progress {
			break
		}
	}
	return nil
}

// RunAll runs every stage in order, stopping at the first error. Deinit
// of every static hookset still runs afterward, in registration order,
// regardless of the stage error (spec.md: "Errors never prevent cleanup;
// cleanup runs by stage-boundary guards").
func (e *Engine) RunAll(ctx Context) error {
	var stageErr error
	for _, s := range Stages {
		if stageErr = e.RunStage(ctx, s); stageErr != nil {
			break
		}
	}
	for _, hs := range e.hooksets {
		if hs.Deinit != nil {
			_ = hs.Deinit(ctx)
		}
	}
	return stageErr
}

// RunThrough runs every stage up to and including upTo, stopping at the
// first error without running Deinit — used by MountContext.Prepare to
// run the PREP_* stages (spec.md §4.7's state machine); Do runs its
// MOUNT_* stages one at a time with RunStage.
func (e *Engine) RunThrough(ctx Context, from, upTo Stage) error {
	for _, s := range Stages {
		if s < from {
			continue
		}
		if err := e.RunStage(ctx, s); err != nil {
			return err
		}
		if s == upTo {
			break
		}
	}
	return nil
}

// RunDeinit runs every static hookset's Deinit, in registration order,
// ignoring individual errors (cleanup must not itself fail the caller).
func (e *Engine) RunDeinit(ctx Context) {
	for _, hs := range e.hooksets {
		if hs.Deinit != nil {
			_ = hs.Deinit(ctx)
		}
	}
}
