package hookset

import (
	"context"

	"github.com/blkcore/blkmount/internal/utils/logger"
)

// SelinuxOracle is the external collaborator the selinux hookset defers
// to for the actual "raw" transformation of a context string, and for
// reporting whether SELinux is present at all. A caller not running
// under SELinux simply never wires one in, and NoopSelinuxOracle's
// Enabled() returning false makes the hookset behave exactly as spec.md
// §4.8 describes ("On a system without SELinux... remove them").
type SelinuxOracle interface {
	Enabled() bool
	Raw(ctx context.Context, value string) (string, error)
	// KernelSupportsRemountRelabel reports whether the running kernel is
	// new enough (>= 2.6.39) to keep SELinux context options across a
	// remount; older kernels require them stripped on remount.
	KernelSupportsRemountRelabel() bool
	// TargetContext returns the real SELinux context of path, used to
	// resolve the rootcontext=@target sentinel once the target exists.
	TargetContext(ctx context.Context, path string) (string, error)
}

type noopSelinuxOracle struct{}

func (noopSelinuxOracle) Enabled() bool { return false }
func (noopSelinuxOracle) Raw(_ context.Context, value string) (string, error) {
	return value, nil
}
func (noopSelinuxOracle) KernelSupportsRemountRelabel() bool { return true }
func (noopSelinuxOracle) TargetContext(_ context.Context, _ string) (string, error) {
	return "", nil
}

// NoopSelinuxOracle is the identity/absent-SELinux default.
var NoopSelinuxOracle SelinuxOracle = noopSelinuxOracle{}

var selinuxContextNames = []string{"context", "fscontext", "defcontext", "rootcontext", "seclabel"}

// selinuxConfig lets a caller wire in a real oracle and the
// is-remount / pre-2.6.39-kernel facts the hookset needs; built via
// NewSelinux.
type selinuxConfig struct {
	oracle    SelinuxOracle
	isRemount bool
	oldKernel bool
}

// NewSelinux builds the "selinux" hookset (spec.md §4.8) wired to oracle
// (NoopSelinuxOracle if nil).
func NewSelinux(oracle SelinuxOracle, isRemount, oldKernel bool) *Hookset {
	if oracle == nil {
		oracle = NoopSelinuxOracle
	}
	cfg := &selinuxConfig{oracle: oracle, isRemount: isRemount, oldKernel: oldKernel}
	return &Hookset{
		Name:       "selinux",
		FirstStage: PrepOptions,
		FirstCall:  cfg.run,
	}
}

func (c *selinuxConfig) run(ctx Context) error {
	log := logger.Logger()
	opts := ctx.Options()

	stripAll := !c.oracle.Enabled() || (c.isRemount && c.oldKernel)

	for _, name := range selinuxContextNames {
		for _, o := range opts.Options() {
			if o.Name != name {
				continue
			}
			if stripAll {
				opts.RemoveNamed(name, o.Map)
				log.Debugf("selinux hookset: removed %s (selinux disabled or pre-2.6.39 remount)", name)
				continue
			}
			if name == "rootcontext" && o.Value == "@target" {
				ctx.QueueHook(PrepTarget, "selinux-rootcontext", func(c2 Context) error {
					real, err := c.oracle.TargetContext(context.Background(), c2.Target())
					if err != nil {
						return err
					}
					c2.Options().RemoveNamed("rootcontext", o.Map)
					return c2.Options().AppendFromString("rootcontext="+real, o.Map)
				}, Mkdir.Name)
				opts.RemoveNamed(name, o.Map)
				continue
			}
			raw, err := c.oracle.Raw(context.Background(), o.Value)
			if err != nil {
				return err
			}
			if raw != o.Value {
				opts.RemoveNamed(name, o.Map)
				if err := opts.AppendFromString(name+"="+raw, o.Map); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
