package optlist

import (
	"testing"

	"github.com/blkcore/blkmount/internal/mount/optmap"
)

func newTestRegistry() (*optmap.Registry, *optmap.Map) {
	vfs := optmap.LinuxVFS()
	reg := optmap.NewRegistry(vfs, optmap.Userspace())
	return reg, vfs
}

// TestE3FlagsAndOptstr mirrors spec.md scenario E3.
func TestE3FlagsAndOptstr(t *testing.T) {
	reg, vfs := newTestRegistry()
	l := New(reg)
	if err := l.AppendFromString("ro,nosuid,nodev", vfs); err != nil {
		t.Fatalf("AppendFromString: %v", err)
	}

	want := optmap.IDReadOnly | optmap.IDNoSuid | optmap.IDNoDev
	if got := l.GetFlags(vfs, FilterAll); got != want {
		t.Errorf("GetFlags = 0x%x, want 0x%x", got, want)
	}
	if got := l.GetOptstr(nil, FilterAll); got != "ro,nosuid,nodev" {
		t.Errorf("GetOptstr = %q, want %q", got, "ro,nosuid,nodev")
	}
}

func TestRwRewrittenToLeadingRoWhenReadonly(t *testing.T) {
	reg, vfs := newTestRegistry()
	l := New(reg)
	_ = l.AppendFromString("noatime", vfs)
	l.Merge()
	_ = l.AppendFromFlags(optmap.IDReadOnly, vfs)

	str := l.GetOptstr(nil, FilterDefault)
	if str[:2] != "ro" {
		t.Errorf("GetOptstr = %q, want it to start with ro once read-only is set", str)
	}
}

// TestMergeCollapsesInverseLast checks that "rw,ro" collapses to ro
// (last occurrence wins), per the §3 dedup invariant.
func TestMergeCollapsesInverseLast(t *testing.T) {
	reg, vfs := newTestRegistry()
	l := New(reg)
	_ = l.AppendFromString("rw,ro", vfs)
	l.Merge()

	if !l.IsRdonly() {
		t.Errorf("expected ro (last) to win after merge")
	}
	if len(l.Options()) != 1 {
		t.Errorf("expected exactly one surviving option after merge, got %d", len(l.Options()))
	}
}

func TestAgeMonotonicAcrossMutations(t *testing.T) {
	reg, vfs := newTestRegistry()
	l := New(reg)
	ages := []uint64{l.Age()}

	_ = l.AppendFromString("ro", vfs)
	ages = append(ages, l.Age())
	_ = l.AppendFromFlags(optmap.IDNoSuid, vfs)
	ages = append(ages, l.Age())
	l.Merge()
	ages = append(ages, l.Age())
	l.RemoveNamed("ro", nil)
	ages = append(ages, l.Age())

	for i := 1; i < len(ages); i++ {
		if ages[i] <= ages[i-1] {
			t.Errorf("age not strictly increasing at step %d: %v", i, ages)
		}
	}
}

func TestCacheInvalidatedByMutation(t *testing.T) {
	reg, vfs := newTestRegistry()
	l := New(reg)
	_ = l.AppendFromString("ro", vfs)
	first := l.GetFlags(vfs, FilterAll)
	if first != optmap.IDReadOnly {
		t.Fatalf("expected IDReadOnly, got 0x%x", first)
	}

	_ = l.AppendFromString("nosuid", vfs)
	second := l.GetFlags(vfs, FilterAll)
	want := optmap.IDReadOnly | optmap.IDNoSuid
	if second != want {
		t.Errorf("GetFlags after mutation = 0x%x, want 0x%x (cache must invalidate on Age bump)", second, want)
	}
}

func TestAggregateBookkeepingBindRec(t *testing.T) {
	reg, vfs := newTestRegistry()
	l := New(reg)
	_ = l.AppendFromString("rbind", vfs)
	if !l.IsBind() || !l.IsRBind() || !l.IsRecursive() {
		t.Errorf("rbind should set IsBind/IsRBind/IsRecursive, got bind=%v rbind=%v rec=%v",
			l.IsBind(), l.IsRBind(), l.IsRecursive())
	}
}

func TestPropagationOnlyFastPath(t *testing.T) {
	reg, vfs := newTestRegistry()
	l := New(reg)
	_ = l.AppendFromString("rshared", vfs)
	if !l.PropagationOnly() {
		t.Errorf("expected rshared alone to qualify as propagation-only")
	}

	_ = l.AppendFromString("nosuid", vfs)
	if l.PropagationOnly() {
		t.Errorf("expected adding nosuid to disqualify propagation-only")
	}
}

func TestUnknownOptionSuggestion(t *testing.T) {
	reg, vfs := newTestRegistry()
	l := New(reg)
	_ = l.AppendFromString("raed", vfs) // 'raed' ~ Jaro-Winkler close to nothing useful but exercises the path
	_ = l.AppendFromString("norw", vfs)
	// "norw" is close to no registered name at 0.75; just assert no panic
	// and that unknown options are preserved verbatim.
	found := false
	for _, o := range l.Options() {
		if o.Name == "norw" {
			found = true
			if o.Map != nil {
				t.Errorf("expected norw to be unresolved (nil Map)")
			}
		}
	}
	if !found {
		t.Errorf("expected unresolved option to still be appended")
	}
}

func TestInsertFlagsAnchorsAfterOption(t *testing.T) {
	reg, vfs := newTestRegistry()
	l := New(reg)
	_ = l.AppendFromString("user", reg.Maps()[1])
	opts := l.Options()
	if len(opts) != 1 {
		t.Fatalf("expected 1 option, got %d", len(opts))
	}

	err := l.InsertFlags(optmap.IDNoSuid|optmap.IDNoDev, vfs, opts[0].Entry.ID, opts[0].Map)
	if err != nil {
		t.Fatalf("InsertFlags: %v", err)
	}
	opts = l.Options()
	if len(opts) != 3 {
		t.Fatalf("expected 3 options after insert, got %d", len(opts))
	}
	if opts[0].Name != "user" {
		t.Errorf("expected anchor to remain first, got %q", opts[0].Name)
	}
}

func TestRemoveFlagsAndRemoveOpt(t *testing.T) {
	reg, vfs := newTestRegistry()
	l := New(reg)
	_ = l.AppendFromString("ro,nosuid,nodev", vfs)

	l.RemoveFlags(optmap.IDNoSuid, vfs)
	for _, o := range l.Options() {
		if o.Name == "nosuid" {
			t.Errorf("nosuid should have been removed")
		}
	}

	if err := l.RemoveOpt(0); err != nil {
		t.Fatalf("RemoveOpt: %v", err)
	}
	if len(l.Options()) != 1 {
		t.Errorf("expected 1 remaining option, got %d", len(l.Options()))
	}
}
