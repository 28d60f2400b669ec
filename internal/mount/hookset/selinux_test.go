package hookset

import (
	"context"
	"testing"

	"github.com/blkcore/blkmount/internal/mount/optmap"
)

func TestSelinuxStripsContextsWhenDisabled(t *testing.T) {
	ctx := newFakeCtx()
	if err := ctx.opts.AppendFromString("context=system_u:object_r:tmp_t:s0", optmap.Userspace()); err != nil {
		t.Fatalf("AppendFromString: %v", err)
	}

	hs := NewSelinux(nil, false, false)
	if err := hs.FirstCall(ctx); err != nil {
		t.Fatalf("selinux hookset: %v", err)
	}

	for _, o := range ctx.opts.Options() {
		if o.Name == "context" {
			t.Errorf("expected context to be stripped when SELinux is disabled")
		}
	}
}

type fakeSelinuxOracle struct{ enabled bool }

func (f fakeSelinuxOracle) Enabled() bool { return f.enabled }
func (f fakeSelinuxOracle) Raw(_ context.Context, value string) (string, error) {
	return "translated:" + value, nil
}
func (f fakeSelinuxOracle) KernelSupportsRemountRelabel() bool { return true }
func (f fakeSelinuxOracle) TargetContext(_ context.Context, _ string) (string, error) {
	return "system_u:object_r:real_t:s0", nil
}

func TestSelinuxRewritesRawContextWhenEnabled(t *testing.T) {
	ctx := newFakeCtx()
	if err := ctx.opts.AppendFromString("context=tmp_t", optmap.Userspace()); err != nil {
		t.Fatalf("AppendFromString: %v", err)
	}

	hs := NewSelinux(fakeSelinuxOracle{enabled: true}, false, false)
	if err := hs.FirstCall(ctx); err != nil {
		t.Fatalf("selinux hookset: %v", err)
	}

	found := false
	for _, o := range ctx.opts.Options() {
		if o.Name == "context" {
			found = true
			if o.Value != "translated:tmp_t" {
				t.Errorf("context value = %q, want %q", o.Value, "translated:tmp_t")
			}
		}
	}
	if !found {
		t.Errorf("expected context option to survive when SELinux is enabled")
	}
}

func TestSelinuxStripsOnOldKernelRemount(t *testing.T) {
	ctx := newFakeCtx()
	if err := ctx.opts.AppendFromString("context=tmp_t", optmap.Userspace()); err != nil {
		t.Fatalf("AppendFromString: %v", err)
	}

	hs := NewSelinux(fakeSelinuxOracle{enabled: true}, true, true)
	if err := hs.FirstCall(ctx); err != nil {
		t.Fatalf("selinux hookset: %v", err)
	}
	for _, o := range ctx.opts.Options() {
		if o.Name == "context" {
			t.Errorf("expected context stripped on pre-2.6.39 kernel remount")
		}
	}
}
