package hookset

import (
	"testing"

	"github.com/blkcore/blkmount/internal/mount/optmap"
)

func TestSubdirPrepTargetSwapsTargetAndQueuesHooks(t *testing.T) {
	ctx := newFakeCtx()
	if err := ctx.opts.AppendFromString("X-mount.subdir=data", optmap.Userspace()); err != nil {
		t.Fatalf("AppendFromString: %v", err)
	}
	ctx.target = "/mnt/real"

	if err := subdirPrepTarget(ctx); err != nil {
		t.Fatalf("subdirPrepTarget: %v", err)
	}

	if ctx.target == "/mnt/real" {
		t.Errorf("expected target to be swapped to a private scratch path")
	}
	st, _ := ctx.State(Subdir.Name).(*SubdirState)
	if st == nil {
		t.Fatalf("expected SubdirState to be recorded")
	}
	if st.RealTarget != "/mnt/real" || st.Subdir != "data" {
		t.Errorf("unexpected SubdirState: %+v", st)
	}

	pre := ctx.PopQueued(MountPre)
	if len(pre) != 1 || pre[0].Name != "subdir-unshare" {
		t.Errorf("expected subdir-unshare queued at MountPre, got %v", pre)
	}
	post := ctx.PopQueued(MountPost)
	if len(post) != 1 || post[0].Name != "subdir-relocate" {
		t.Errorf("expected subdir-relocate queued at MountPost, got %v", post)
	}
}

func TestSubdirPrepTargetNoopWithoutOption(t *testing.T) {
	ctx := newFakeCtx()
	ctx.target = "/mnt/real"

	if err := subdirPrepTarget(ctx); err != nil {
		t.Fatalf("subdirPrepTarget: %v", err)
	}
	if ctx.target != "/mnt/real" {
		t.Errorf("expected target unchanged without X-mount.subdir")
	}
	if ctx.State(Subdir.Name) != nil {
		t.Errorf("expected no SubdirState without X-mount.subdir")
	}
}
