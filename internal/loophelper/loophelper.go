// Package loophelper is the default collab.LoopDeviceSetup: a thin
// external-process adapter shelling a losetup-alike helper, in the same
// style as the teacher's shell.ExecCmd (command string built up front,
// logged at Debug, combined output captured) — not part of the core
// probing/mounting algorithms.
package loophelper

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/blkcore/blkmount/internal/errkind"
	"github.com/blkcore/blkmount/internal/utils/logger"
)

// Helper is the default collab.LoopDeviceSetup, shelling out to losetup.
type Helper struct {
	// Bin is the helper binary name, overridable in tests. Defaults to
	// "losetup".
	Bin string
}

// New returns a Helper using the system losetup binary.
func New() *Helper { return &Helper{Bin: "losetup"} }

func (h *Helper) bin() string {
	if h.Bin == "" {
		return "losetup"
	}
	return h.Bin
}

// Attach runs `losetup --find --show <imagePath>` and returns the
// allocated device path (losetup prints it to stdout on success).
func (h *Helper) Attach(ctx context.Context, imagePath string) (string, error) {
	log := logger.Logger()
	cmd := exec.CommandContext(ctx, h.bin(), "--find", "--show", imagePath)
	log.Debugf("loophelper: exec [%s --find --show %s]", h.bin(), imagePath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", errkind.New(errkind.Loop, "loophelper.Attach",
			fmt.Errorf("%s: %s: %w", h.bin(), strings.TrimSpace(string(out)), err))
	}
	dev := strings.TrimSpace(string(out))
	if dev == "" {
		return "", errkind.New(errkind.Loop, "loophelper.Attach", fmt.Errorf("no device path returned"))
	}
	return dev, nil
}

// Detach runs `losetup --detach <devicePath>`.
func (h *Helper) Detach(ctx context.Context, devicePath string) error {
	log := logger.Logger()
	cmd := exec.CommandContext(ctx, h.bin(), "--detach", devicePath)
	log.Debugf("loophelper: exec [%s --detach %s]", h.bin(), devicePath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return errkind.New(errkind.Loop, "loophelper.Detach",
			fmt.Errorf("%s: %s: %w", h.bin(), strings.TrimSpace(string(out)), err))
	}
	return nil
}
