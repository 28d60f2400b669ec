package mountctx

import (
	"golang.org/x/sys/unix"

	"github.com/blkcore/blkmount/internal/utils/logger"
)

// Kernel is the concrete "kernel" collaborator the spec's data-flow
// diagram calls mount() — wrapped behind an interface so tests can fake
// syscall outcomes (EROFS/EACCES/EBUSY) without a real block device.
type Kernel interface {
	Mount(source, target, fstype string, flags uintptr, data string) error
	Unmount(target string, flags int) error
}

type unixKernel struct{}

func (unixKernel) Mount(source, target, fstype string, flags uintptr, data string) error {
	return unix.Mount(source, target, fstype, flags, data)
}

func (unixKernel) Unmount(target string, flags int) error {
	return unix.Unmount(target, flags)
}

// DefaultKernel issues real mount(2)/umount(2) syscalls via
// golang.org/x/sys/unix.
var DefaultKernel Kernel = unixKernel{}

// fakeKernelImpl backs FakeKernel: it computes and logs exactly what
// would have been passed to mount(2)/umount(2) without ever calling the
// kernel (spec.md §6's fake-mode environment input).
type fakeKernelImpl struct{}

func (fakeKernelImpl) Mount(source, target, fstype string, flags uintptr, data string) error {
	logger.Logger().Infof("fake-mode: mount(%q, %q, %q, 0x%x, %q)", source, target, fstype, flags, data)
	return nil
}

func (fakeKernelImpl) Unmount(target string, flags int) error {
	logger.Logger().Infof("fake-mode: umount(%q, 0x%x)", target, flags)
	return nil
}

// FakeKernel never issues a real syscall; every call is reported via the
// logger instead. Selected when configuration's FakeMode is set.
var FakeKernel Kernel = fakeKernelImpl{}
