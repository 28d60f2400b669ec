package partition

import "github.com/blkcore/blkmount/internal/errkind"

// MaxChainHops bounds extended-DOS / Atari-XGM chain walks so a circular
// reference terminates instead of looping forever (spec.md §3 invariant).
const MaxChainHops = 100

// List is spec.md's PartitionList: a growable vector of Entry, a table
// arena, a monotonically increasing next-partno counter (including
// reserved gaps for empty primary slots), and an optional parent-table
// hint used while a nested probe is in progress.
type List struct {
	entries    []Entry
	tables     []Table
	nextPartno int
	parentHint TableID
}

// New returns an empty List with partition numbering starting at 1.
func New() *List {
	return &List{nextPartno: 1, parentHint: NoTable}
}

// NewTable allocates a table in the arena and returns its id. Its
// refcount starts at zero; it is released automatically once created
// entries referencing it are all removed (see RemoveEntry).
func (l *List) NewTable(typeName, idString string, byteOffset int64, parent TableID) TableID {
	t := Table{TypeName: typeName, ByteOffset: byteOffset, IDString: idString, ParentRef: parent, live: true}
	for i := range l.tables {
		if !l.tables[i].live {
			l.tables[i] = t
			return TableID(i)
		}
	}
	l.tables = append(l.tables, t)
	return TableID(len(l.tables) - 1)
}

// Table returns the table at id, or nil if id is NoTable or has been
// released.
func (l *List) Table(id TableID) *Table {
	if id == NoTable || int(id) < 0 || int(id) >= len(l.tables) || !l.tables[id].live {
		return nil
	}
	return &l.tables[id]
}

// Tables returns every still-live table, in arena order.
func (l *List) Tables() []Table {
	out := make([]Table, 0, len(l.tables))
	for _, t := range l.tables {
		if t.live {
			out = append(out, t)
		}
	}
	return out
}

// NextPartno returns the next kernel-compatible partition number and
// advances the counter. Probers call this for every slot, including empty
// ones, so numbering stays aligned with what the kernel would assign.
func (l *List) NextPartno() int {
	n := l.nextPartno
	l.nextPartno++
	return n
}

// SetNextPartno forces the counter, used by the DOS prober after primary
// entries to jump straight to 5 before walking the extended chain.
func (l *List) SetNextPartno(n int) {
	if n > l.nextPartno {
		l.nextPartno = n
	}
}

// SkipPartno advances the counter without returning a value, used for
// reserved/empty slots where the caller doesn't need the number itself.
func (l *List) SkipPartno() { l.nextPartno++ }

// ParentHint returns the table a nested probe should attach new tables
// to, or NoTable if none is set.
func (l *List) ParentHint() TableID { return l.parentHint }

// SetParentHint is called by the DOS prober before invoking a nested
// dispatch, and restored afterward.
func (l *List) SetParentHint(id TableID) { l.parentHint = id }

// AddEntry appends e (after validating/truncating its Name) unless an
// entry with the same Start already exists under the same TableRef, in
// which case it is rejected but partno bookkeeping has already happened
// in the caller (duplicate-start candidates still advance next_partno,
// per spec.md §3). AddEntry increments the owning table's refcount.
func (l *List) AddEntry(e Entry) (int, error) {
	e.Name = truncateName(e.Name)

	for _, ex := range l.entries {
		if ex.TableRef == e.TableRef && ex.Start == e.Start {
			return -1, errkind.New(errkind.Option, "partition.AddEntry",
				errDuplicateStart(e.Start))
		}
	}

	if t := l.Table(e.TableRef); t != nil {
		t.refcount++
	}
	l.entries = append(l.entries, e)
	return len(l.entries) - 1, nil
}

// RemoveEntry removes the entry at idx and releases its table if that was
// the table's last referencing entry.
func (l *List) RemoveEntry(idx int) {
	if idx < 0 || idx >= len(l.entries) {
		return
	}
	ref := l.entries[idx].TableRef
	l.entries = append(l.entries[:idx], l.entries[idx+1:]...)
	if t := l.Table(ref); t != nil {
		t.refcount--
		if t.refcount <= 0 {
			t.live = false
		}
	}
}

// Entries returns every entry, in insertion order.
func (l *List) Entries() []Entry { return l.entries }

// EntriesInTable returns every entry belonging to table id.
func (l *List) EntriesInTable(id TableID) []Entry {
	var out []Entry
	for _, e := range l.entries {
		if e.TableRef == id {
			out = append(out, e)
		}
	}
	return out
}

// RemoveTable discards every entry belonging to table id and releases
// the table itself, used to roll back a nested table that failed
// ValidateNested after its entries were already added.
func (l *List) RemoveTable(id TableID) {
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].TableRef == id {
			l.RemoveEntry(i)
		}
	}
}

// TableIDsWithParent returns the ids of every live table whose ParentRef
// is parent, in arena order. Used by nested-probe callers that need to
// look up the table a just-completed sub-prober created without it being
// handed back directly.
func (l *List) TableIDsWithParent(parent TableID) []TableID {
	var out []TableID
	for i := range l.tables {
		if l.tables[i].live && l.tables[i].ParentRef == parent {
			out = append(out, TableID(i))
		}
	}
	return out
}

type dupStartError struct{ start uint64 }

func errDuplicateStart(start uint64) error { return dupStartError{start} }

func (e dupStartError) Error() string {
	return "duplicate partition start sector"
}
