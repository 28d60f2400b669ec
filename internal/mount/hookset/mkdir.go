package hookset

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/djherbis/times"

	"github.com/blkcore/blkmount/internal/mount/optlist"
	"github.com/blkcore/blkmount/internal/utils/logger"
)

const mkdirDefaultMode = 0755

// MkdirState records what Mkdir created, for debug logging / utab-style
// bookkeeping — supplements, doesn't replace, the "recursively create
// the target" behavior spec.md §4.8 describes.
type MkdirState struct {
	Created   bool
	Path      string
	Mode      os.FileMode
	CreatedAt time.Time
}

// Mkdir implements the "mkdir" built-in hookset: at PREP_TARGET, if
// X-mount.mkdir[=<octal>] is present and the caller is privileged,
// recursively create the target with the requested mode (default 0755).
var Mkdir = &Hookset{
	Name:       "mkdir",
	FirstStage: PrepTarget,
	FirstCall:  mkdirRun,
}

func mkdirRun(ctx Context) error {
	opts := ctx.Options()
	var entry *optlist.Option
	for i := range opts.Options() {
		o := opts.Options()[i]
		if o.Name == "X-mount.mkdir" {
			entry = &o
			break
		}
	}
	if entry == nil {
		return nil
	}
	if !ctx.Privileged() {
		logger.Logger().Debugf("mkdir hookset: X-mount.mkdir requested but caller is not privileged, skipping")
		return nil
	}

	mode := os.FileMode(mkdirDefaultMode)
	if entry.HasValue && entry.Value != "" {
		if n, err := strconv.ParseUint(entry.Value, 8, 32); err == nil {
			mode = os.FileMode(n)
		}
	}

	target := ctx.Target()
	if err := os.MkdirAll(target, mode); err != nil {
		return fmt.Errorf("mkdir hookset: %s: %w", target, err)
	}

	state := &MkdirState{Created: true, Path: target, Mode: mode}
	if ts, err := times.Stat(target); err == nil {
		state.CreatedAt = ts.ModTime()
	}
	ctx.SetState(Mkdir.Name, state)
	logger.Logger().Debugf("mkdir hookset: created %s mode %o", target, mode)
	return nil
}
