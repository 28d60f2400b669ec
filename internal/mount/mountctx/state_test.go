package mountctx

import (
	"context"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/blkcore/blkmount/internal/errkind"
	"github.com/blkcore/blkmount/internal/mount/collab"
	"github.com/blkcore/blkmount/internal/mount/hookset"
	"github.com/blkcore/blkmount/internal/mount/optlist"
	"github.com/blkcore/blkmount/internal/mount/optmap"
)

func newTestContext() (*MountContext, *optmap.Map, *optmap.Map) {
	vfs := optmap.LinuxVFS()
	userMap := optmap.Userspace()
	registry := optmap.NewRegistry(vfs, userMap)
	mc := New(ActionMount, registry, vfs, userMap, hookset.NewEngine())
	return mc, vfs, userMap
}

type fakeFstab struct {
	entry *collab.FstabEntry
	err   error
}

func (f fakeFstab) Lookup(context.Context, string, string) (*collab.FstabEntry, error) {
	return f.entry, f.err
}

type callRecord struct {
	fstype string
	flags  uint64
}

type fakeKernel struct {
	calls []callRecord
	fn    func(call int, fstype string, flags uint64) error
}

func (k *fakeKernel) Mount(source, target, fstype string, flags uintptr, data string) error {
	idx := len(k.calls)
	k.calls = append(k.calls, callRecord{fstype: fstype, flags: uint64(flags)})
	if k.fn == nil {
		return nil
	}
	return k.fn(idx, fstype, uint64(flags))
}

func (k *fakeKernel) Unmount(target string, flags int) error { return nil }

type fakeMountInfo struct {
	mounted, readonly bool
	onlyOnce          bool
	onlyOnceErr       error
}

func (f fakeMountInfo) Mounted(context.Context, string) (bool, bool, error) {
	return f.mounted, f.readonly, nil
}
func (f fakeMountInfo) IsOnlyOnce(context.Context, string, string) (bool, error) {
	return f.onlyOnce, f.onlyOnceErr
}

func TestPrepareMergesOptstrAndFollowsAggregates(t *testing.T) {
	mc, vfs, _ := newTestContext()
	mc.Fs.Source = "/dev/sda1"
	mc.Fs.Target = "/mnt"
	mc.Fs.FSType = "ext4"
	mc.Fs.OptStr = "ro,nosuid"

	if err := mc.Prepare(context.Background()); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	want := optmap.IDReadOnly | optmap.IDNoSuid
	if mc.Fs.Attrs&want != want {
		t.Errorf("Attrs = 0x%x, want at least 0x%x", mc.Fs.Attrs, want)
	}
	if !mc.hasStatus(StatusPrepared) {
		t.Errorf("expected StatusPrepared to be set")
	}
	_ = vfs
}

func TestPrepareRejectsDoubleCall(t *testing.T) {
	mc, _, _ := newTestContext()
	mc.Fs.Source = "/dev/sda1"
	mc.Fs.Target = "/mnt"
	if err := mc.Prepare(context.Background()); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := mc.Prepare(context.Background()); err == nil {
		t.Errorf("expected second Prepare to fail")
	}
}

func TestApplyFstabFillsMissingFields(t *testing.T) {
	mc, _, _ := newTestContext()
	mc.Fs.Source = "/dev/sda1"
	mc.Fstab = fakeFstab{entry: &collab.FstabEntry{
		Source: "/dev/sda1", Target: "/mnt/data", FSType: "ext4", OptStr: "defaults",
	}}

	if err := mc.applyFstab(context.Background()); err != nil {
		t.Fatalf("applyFstab: %v", err)
	}
	if mc.Fs.Target != "/mnt/data" || mc.Fs.FSType != "ext4" {
		t.Errorf("expected fstab entry to fill target/fstype, got %+v", mc.Fs)
	}
	if !mc.hasStatus(StatusTabApplied) {
		t.Errorf("expected StatusTabApplied to be set")
	}
}

func TestApplyFstabRestrictedRequiresEntry(t *testing.T) {
	mc, _, _ := newTestContext()
	mc.Restricted = true
	mc.Fs.Source = "/dev/sda1"
	mc.Fstab = fakeFstab{entry: nil}

	err := mc.applyFstab(context.Background())
	if errkind.KindOf(err) != errkind.Fstab {
		t.Errorf("expected Fstab-kind error, got %v", err)
	}
}

func TestEvaluatePermissionsRequiresFstabApplied(t *testing.T) {
	mc, _, userMap := newTestContext()
	mc.Restricted = true
	_ = mc.Fs.Options.AppendFromString("user", userMap)

	err := mc.evaluatePermissions()
	if errkind.KindOf(err) != errkind.Permission {
		t.Errorf("expected Permission-kind error when fstab not applied, got %v", err)
	}
}

func TestEvaluatePermissionsUserOptionGrantsAndInsertsSecureFlags(t *testing.T) {
	mc, vfs, userMap := newTestContext()
	mc.Restricted = true
	mc.setStatus(StatusTabApplied)
	_ = mc.Fs.Options.AppendFromString("user", userMap)

	if err := mc.evaluatePermissions(); err != nil {
		t.Fatalf("evaluatePermissions: %v", err)
	}

	want := uint64(unix.MS_NOSUID | unix.MS_NODEV | unix.MS_NOEXEC)
	got := mc.Fs.Options.GetFlags(vfs, optlist.FilterDefault)
	if got&want != want {
		t.Errorf("expected secure flags inserted, got 0x%x want at least 0x%x", got, want)
	}
}

func TestEvaluatePermissionsRejectsWithoutPermittingOption(t *testing.T) {
	mc, _, vfs := newTestContext()
	mc.Restricted = true
	mc.setStatus(StatusTabApplied)
	_ = mc.Fs.Options.AppendFromString("noatime", vfs)

	err := mc.evaluatePermissions()
	if errkind.KindOf(err) != errkind.Permission {
		t.Errorf("expected Permission-kind error without user/users/owner/group, got %v", err)
	}
}

func TestFixOptstrResolvesUseruid(t *testing.T) {
	mc, _, userMap := newTestContext()
	mc.RealUID = 4242
	_ = mc.Fs.Options.AppendFromString("uid=useruid", userMap)

	mc.fixOptstr()

	found := false
	for _, o := range mc.Fs.Options.Options() {
		if o.Name == "uid" {
			found = true
			if o.Value != "4242" {
				t.Errorf("uid value = %q, want %q", o.Value, "4242")
			}
		}
	}
	if !found {
		t.Fatalf("expected uid option to survive fixup")
	}
	if !mc.hasStatus(StatusMountOptsFixed) {
		t.Errorf("expected StatusMountOptsFixed to be set")
	}
}

func TestGuessFstypeDefaultsToAuto(t *testing.T) {
	mc, _, _ := newTestContext()
	if err := mc.guessFstype(); err != nil {
		t.Fatalf("guessFstype: %v", err)
	}
	if mc.Fs.FSType != "auto" {
		t.Errorf("FSType = %q, want auto", mc.Fs.FSType)
	}
}

func TestTypeCandidatesExpandsAutoInPlace(t *testing.T) {
	mc, _, _ := newTestContext()
	mc.Fs.FSType = "auto,xfs"
	cands := mc.typeCandidates()
	if len(cands) != len(knownFilesystems)+1 {
		t.Fatalf("candidates = %v, want %d entries", cands, len(knownFilesystems)+1)
	}
	if cands[len(cands)-1] != "xfs" {
		t.Errorf("expected xfs to remain after the expanded guess list, got %v", cands)
	}
}

func TestPrepareTargetRequiresTarget(t *testing.T) {
	mc, _, _ := newTestContext()
	err := mc.prepareTarget()
	if errkind.KindOf(err) != errkind.Option {
		t.Errorf("expected Option-kind error for empty target, got %v", err)
	}
}

func TestDoRequiresPrepared(t *testing.T) {
	mc, _, _ := newTestContext()
	err := mc.Do(context.Background())
	if err == nil {
		t.Errorf("expected Do to fail before Prepare")
	}
}

func TestDoRejectsOnlyOnce(t *testing.T) {
	mc, _, _ := newTestContext()
	mc.Fs.Source, mc.Fs.Target, mc.Fs.FSType = "/dev/sda1", "/mnt", "ext4"
	mc.setStatus(StatusPrepared)
	mc.MountInfo = fakeMountInfo{onlyOnce: true}

	err := mc.Do(context.Background())
	if errkind.KindOf(err) != errkind.OnlyOnce {
		t.Errorf("expected OnlyOnce-kind error, got %v", err)
	}
}

func TestMountOnceRetriesReadonlyOnEROFS(t *testing.T) {
	mc, _, _ := newTestContext()
	mc.Fs.Source, mc.Fs.Target = "/dev/sda1", "/mnt"

	kernel := &fakeKernel{fn: func(call int, fstype string, flags uint64) error {
		if call == 0 {
			return unix.EROFS
		}
		return nil
	}}
	mc.Kernel = kernel

	if err := mc.mountOnce(context.Background(), "ext4", 0); err != nil {
		t.Fatalf("mountOnce: %v", err)
	}
	if len(kernel.calls) != 2 {
		t.Fatalf("expected 2 kernel calls (initial + ro retry), got %d", len(kernel.calls))
	}
	if kernel.calls[1].flags&optmap.IDReadOnly == 0 {
		t.Errorf("expected retry call to carry IDReadOnly, flags=0x%x", kernel.calls[1].flags)
	}
	if !mc.hasStatus(StatusForcedRdonly) {
		t.Errorf("expected StatusForcedRdonly to be set")
	}
}

func TestMountOnceDoesNotRetryWhenAlreadyBind(t *testing.T) {
	mc, _, _ := newTestContext()
	mc.Fs.Source, mc.Fs.Target = "/dev/sda1", "/mnt"

	kernel := &fakeKernel{fn: func(call int, fstype string, flags uint64) error {
		return unix.EROFS
	}}
	mc.Kernel = kernel

	err := mc.mountOnce(context.Background(), "ext4", optmap.IDBind)
	if err == nil {
		t.Fatalf("expected mountOnce to fail")
	}
	if len(kernel.calls) != 1 {
		t.Errorf("expected no retry for a bind mount, got %d calls", len(kernel.calls))
	}
}

func TestMountStageBindThenRemountTwoCalls(t *testing.T) {
	mc, vfs, _ := newTestContext()
	mc.Fs.Source, mc.Fs.Target, mc.Fs.FSType = "/some/dir", "/mnt", ""
	_ = mc.Fs.Options.AppendFromString("bind,ro", vfs)
	mc.Fs.Options.Merge()

	kernel := &fakeKernel{}
	mc.Kernel = kernel

	if err := mc.mountStage(context.Background()); err != nil {
		t.Fatalf("mountStage: %v", err)
	}
	if len(kernel.calls) != 2 {
		t.Fatalf("expected bind-then-remount two-call pattern, got %d calls: %+v", len(kernel.calls), kernel.calls)
	}
	if kernel.calls[0].flags&optmap.IDBind == 0 || kernel.calls[0].flags&optmap.IDReadOnly != 0 {
		t.Errorf("first call should be bind-only, got flags=0x%x", kernel.calls[0].flags)
	}
	if kernel.calls[1].flags&optmap.IDRemount == 0 || kernel.calls[1].flags&optmap.IDReadOnly == 0 {
		t.Errorf("second call should be remount|bind|ro, got flags=0x%x", kernel.calls[1].flags)
	}
}

func TestMountStageTypeListStopsOnNonEINVALError(t *testing.T) {
	mc, _, _ := newTestContext()
	mc.Fs.Source, mc.Fs.Target, mc.Fs.FSType = "/dev/sda1", "/mnt", "auto"

	kernel := &fakeKernel{fn: func(call int, fstype string, flags uint64) error {
		switch fstype {
		case "ext4":
			return unix.EINVAL
		case "xfs":
			return unix.ENOENT // not EINVAL/ENODEV/EROFS/EACCES/EBUSY: must stop here
		default:
			t.Fatalf("unexpected candidate tried: %s", fstype)
			return nil
		}
	}}
	mc.Kernel = kernel

	err := mc.mountStage(context.Background())
	if err == nil {
		t.Fatalf("expected mountStage to surface the final error")
	}
	if len(kernel.calls) != 2 {
		t.Fatalf("expected exactly 2 candidates tried (ext4, xfs), got %d: %+v", len(kernel.calls), kernel.calls)
	}
}

func TestFinalizeRunsDeinit(t *testing.T) {
	deinitRan := false
	hs := &hookset.Hookset{
		Name:       "probe",
		FirstStage: hookset.PrepSource,
		FirstCall:  func(hookset.Context) error { return nil },
		Deinit:     func(hookset.Context) error { deinitRan = true; return nil },
	}
	vfs := optmap.LinuxVFS()
	userMap := optmap.Userspace()
	registry := optmap.NewRegistry(vfs, userMap)
	mc := New(ActionMount, registry, vfs, userMap, hookset.NewEngine(hs))

	if err := mc.Finalize(context.Background()); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if !deinitRan {
		t.Errorf("expected Finalize to run Deinit")
	}
}
