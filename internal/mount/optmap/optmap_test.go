package optmap

import "testing"

func TestMapLookup(t *testing.T) {
	m := LinuxVFS()
	e, ok := m.Lookup("ro")
	if !ok {
		t.Fatalf("expected to find %q", "ro")
	}
	if e.ID != IDReadOnly {
		t.Errorf("ro.ID = %v, want IDReadOnly", e.ID)
	}
	if _, ok := m.Lookup("not-a-real-option"); ok {
		t.Errorf("expected lookup miss for unknown option")
	}
}

func TestInvertMask(t *testing.T) {
	m := LinuxVFS()
	rw, ok := m.Lookup("rw")
	if !ok {
		t.Fatalf("expected to find rw")
	}
	if !rw.HasMask(Invert) {
		t.Errorf("rw should carry the Invert mask")
	}
	if rw.ID != IDReadOnly {
		t.Errorf("rw.ID = %v, want IDReadOnly (inverted at apply time, not at id level)", rw.ID)
	}
}

func TestRegistryResolvePrefersPreferred(t *testing.T) {
	vfs := LinuxVFS()
	user := Userspace()
	reg := NewRegistry(user, vfs)

	// "loop" only exists in userspace; resolving with vfs preferred still
	// finds it by falling through to the registry order.
	m, e, ok := reg.Resolve(vfs, "loop")
	if !ok {
		t.Fatalf("expected to resolve loop via fallthrough")
	}
	if m != user || e.Name != "loop" {
		t.Errorf("resolved from wrong map: %+v", e)
	}

	// A name registered in both (none currently are) would prefer
	// "preferred" first; verify the preferred map wins when it has the
	// entry too.
	m2, _, ok2 := reg.Resolve(vfs, "ro")
	if !ok2 || m2 != vfs {
		t.Errorf("expected preferred map vfs to win for ro")
	}
}

func TestRegistryNamesCoversAllMaps(t *testing.T) {
	reg := NewRegistry(LinuxVFS(), Userspace())
	names := reg.Names()
	want := map[string]bool{"ro": false, "bind": false, "uid": false, "X-mount.mkdir": false}
	for _, n := range names {
		if _, ok := want[n]; ok {
			want[n] = true
		}
	}
	for n, found := range want {
		if !found {
			t.Errorf("expected %q among registry names", n)
		}
	}
}

func TestExternalOnlyCoversLifecycleOptionsNotSelinuxContexts(t *testing.T) {
	u := Userspace()
	extOnly := map[string]bool{"user": true, "users": true, "owner": true, "group": true, "loop": true, "uid": true, "gid": true}
	selinux := map[string]bool{"context": true, "fscontext": true, "defcontext": true, "rootcontext": true, "seclabel": true}

	for _, e := range u.Entries() {
		switch {
		case extOnly[e.Name]:
			if !e.HasMask(ExternalOnly) {
				t.Errorf("%q should be ExternalOnly", e.Name)
			}
		case selinux[e.Name]:
			if e.HasMask(ExternalOnly) {
				t.Errorf("%q is kernel-forwarded SELinux data, should not be ExternalOnly", e.Name)
			}
		}
	}
}
